package ledger

import (
	"log/slog"

	"github.com/malbeclabs/fomo/program/pkg/fomoerr"
	"github.com/malbeclabs/fomo/program/pkg/instruction"
	"github.com/malbeclabs/fomo/program/pkg/pda"
)

// feeClaim drains the mint fee vault to the authority. An empty vault is a
// successful zero transfer.
func (l *Ledger) feeClaim(t *txn, log *slog.Logger, ix *instruction.FeeClaim) error {
	a := ix.Accounts

	round, err := t.loadRound(a.Round)
	if err != nil {
		return err
	}
	if err := requireAuthority(round, a.Authority); err != nil {
		return err
	}
	if !round.Ended(t.now) {
		return fomoerr.Newf(fomoerr.CodeRoundNotOver, "round closes at %d", round.RoundCloseTimestamp)
	}
	if err := requireAccount("mint_fee_vault", a.MintFeeVault, round.MintFeeVault); err != nil {
		return err
	}
	if err := requireAccount("token_mint", a.TokenMint, round.TokenMint); err != nil {
		return err
	}

	vault, err := t.loadTokenAccount(a.MintFeeVault)
	if err != nil {
		return err
	}
	if err := t.ensureATA(a.Authority, round.TokenMint, a.AuthorityATA); err != nil {
		return err
	}
	if err := t.transferTokens(a.MintFeeVault, a.AuthorityATA, vault.Amount); err != nil {
		return err
	}

	log.Info("ledger: fees claimed", "round", a.Round, "authority", a.Authority, "amount", vault.Amount)
	return nil
}

func (l *Ledger) winnerClaim(t *txn, log *slog.Logger, ix *instruction.WinnerClaim) error {
	a, addr := ix.Accounts, ix.Args.Address

	round, err := t.loadRound(a.Round)
	if err != nil {
		return err
	}
	if !round.Ended(t.now) {
		return fomoerr.Newf(fomoerr.CodeRoundNotOver, "round closes at %d", round.RoundCloseTimestamp)
	}
	if round.WinnerClaimed != 0 {
		return fomoerr.Newf(fomoerr.CodeAlreadySettled, "round %s already paid its winner", a.Round)
	}
	if !a.Winner.Equals(addr) {
		return fomoerr.Newf(fomoerr.CodeInvalidOwner, "signer %s is not %s", a.Winner, addr)
	}

	keyPDA, _, err := pda.DeriveKeyPDA(l.cfg.ProgramID, a.Round, round.MintCounter)
	if err != nil {
		return err
	}
	if !a.Key.Equals(keyPDA) {
		return fomoerr.Newf(fomoerr.CodeInvalidKeyAccount, "last key #%d is %s, got %s", round.MintCounter, keyPDA, a.Key)
	}
	key, err := t.loadKey(a.Key)
	if err != nil {
		return fomoerr.Newf(fomoerr.CodeInvalidKeyAccount, "key #%d: %v", round.MintCounter, err)
	}
	if key.Burned() {
		return fomoerr.Newf(fomoerr.CodeInvalidKeyAccount, "last key #%d was burned", round.MintCounter)
	}
	if !key.NftMint.Equals(a.Asset) {
		return fomoerr.Newf(fomoerr.CodeInvalidAsset, "key #%d belongs to asset %s, got %s", key.KeyIndex, key.NftMint, a.Asset)
	}
	asset, err := t.loadAsset(a.Asset)
	if err != nil {
		return err
	}
	if !asset.Owner.Equals(addr) {
		return fomoerr.Newf(fomoerr.CodeInvalidOwner, "asset %s is owned by %s", a.Asset, asset.Owner)
	}
	if err := requireAccount("main_pool_vault", a.MainPoolVault, round.MainPoolVault); err != nil {
		return err
	}
	if err := requireAccount("token_mint", a.TokenMint, round.TokenMint); err != nil {
		return err
	}

	vault, err := t.loadTokenAccount(a.MainPoolVault)
	if err != nil {
		return err
	}
	if err := t.ensureATA(addr, round.TokenMint, a.WinnerATA); err != nil {
		return err
	}
	if err := t.transferTokens(a.MainPoolVault, a.WinnerATA, vault.Amount); err != nil {
		return err
	}

	round.WinnerClaimed = 1
	if err := t.saveRound(a.Round, round); err != nil {
		return err
	}

	log.Info("ledger: winner paid", "round", a.Round, "winner", addr, "index", key.KeyIndex, "amount", vault.Amount)
	return nil
}
