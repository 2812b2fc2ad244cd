package ledger

import (
	"fmt"
	"log/slog"
	"math/bits"

	"github.com/gagliardetto/solana-go"
	"github.com/malbeclabs/fomo/program/pkg/fomoerr"
	"github.com/malbeclabs/fomo/program/pkg/instruction"
	"github.com/malbeclabs/fomo/program/pkg/pda"
	"github.com/malbeclabs/fomo/program/pkg/state"
)

func (l *Ledger) startRound(t *txn, log *slog.Logger, ix *instruction.StartRound) error {
	a := ix.Accounts

	round, err := t.loadRound(a.Round)
	if err != nil {
		return err
	}
	if err := requireAuthority(round, a.Authority); err != nil {
		return err
	}
	if err := requireVaults(round, a.MintFeeVault, a.NftPoolVault, a.MainPoolVault); err != nil {
		return err
	}
	if round.Started() {
		return fomoerr.Newf(fomoerr.CodeRoundStarted, "round %s has %d keys", a.Round, round.MintCounter)
	}
	if err := requireAccount("collection", a.Collection, round.Collection); err != nil {
		return err
	}
	keyPDA, bump, err := pda.DeriveKeyPDA(l.cfg.ProgramID, a.Round, 1)
	if err != nil {
		return err
	}
	if !a.Key.Equals(keyPDA) {
		return fomoerr.Newf(fomoerr.CodeInvalidKeyAccount, "key #1 must be %s, got %s", keyPDA, a.Key)
	}
	if t.exists(a.Asset) || t.exists(a.Key) {
		return fomoerr.Newf(fomoerr.CodeAlreadyInitialized, "asset %s or key %s already exists", a.Asset, a.Key)
	}

	if l.cfg.StartDeposit > 0 {
		if err := l.collectPayment(t, round, a.Authority, a.Pool, l.cfg.StartDeposit); err != nil {
			return err
		}
	}
	if err := l.mintKey(t, round, a.Authority, a.Asset, a.Key, 1, bump); err != nil {
		return err
	}

	round.MintCounter = 1
	round.RoundCloseTimestamp = l.closeTimestamp(t.now)
	if err := t.saveRound(a.Round, round); err != nil {
		return err
	}

	log.Info("ledger: round started", "round", a.Round, "asset", a.Asset, "deposit", l.cfg.StartDeposit, "close", round.RoundCloseTimestamp)
	return nil
}

func (l *Ledger) createKey(t *txn, log *slog.Logger, ix *instruction.CreateKey) error {
	a := ix.Accounts

	round, err := t.loadRound(a.Round)
	if err != nil {
		return err
	}
	if !round.Started() {
		return fomoerr.Newf(fomoerr.CodeRoundNotStarted, "round %s has not started", a.Round)
	}
	if !round.Open(t.now) {
		return fomoerr.Newf(fomoerr.CodeRoundOver, "round closed at %d", round.RoundCloseTimestamp)
	}
	if err := requireVaults(round, a.MintFeeVault, a.NftPoolVault, a.MainPoolVault); err != nil {
		return err
	}
	if err := requireAccount("collection", a.Collection, round.Collection); err != nil {
		return err
	}

	index, carry := bits.Add64(round.MintCounter, 1, 0)
	if carry != 0 {
		return fomoerr.Newf(fomoerr.CodeCalculationError, "mint counter overflow")
	}

	// The key accounts pin the mint counter the transaction was built against.
	prevPDA, _, err := pda.DeriveKeyPDA(l.cfg.ProgramID, a.Round, round.MintCounter)
	if err != nil {
		return err
	}
	keyPDA, bump, err := pda.DeriveKeyPDA(l.cfg.ProgramID, a.Round, index)
	if err != nil {
		return err
	}
	if !a.PreviousKey.Equals(prevPDA) || !a.Key.Equals(keyPDA) {
		return fomoerr.Newf(fomoerr.CodeStaleKeyReference, "expected keys #%d %s and #%d %s", round.MintCounter, prevPDA, index, keyPDA)
	}

	prevKey, err := t.loadKey(a.PreviousKey)
	if err != nil {
		return err
	}
	if !prevKey.NftMint.Equals(a.PreviousAsset) {
		return fomoerr.Newf(fomoerr.CodeInvalidAsset, "key #%d belongs to asset %s, got %s", prevKey.KeyIndex, prevKey.NftMint, a.PreviousAsset)
	}
	if t.exists(a.Asset) {
		return fomoerr.Newf(fomoerr.CodeAlreadyInitialized, "asset %s already exists", a.Asset)
	}

	price, err := round.KeyPrice(index)
	if err != nil {
		return fomoerr.Newf(fomoerr.CodeCalculationError, "%v", err)
	}
	if ix.Args.MaxPrice > 0 && price > ix.Args.MaxPrice {
		return fomoerr.Newf(fomoerr.CodePriceAboveMax, "key #%d costs %d, max %d", index, price, ix.Args.MaxPrice)
	}
	if err := l.collectPayment(t, round, a.Authority, a.Pool, price); err != nil {
		return err
	}

	if !prevKey.Burned() {
		if err := t.demote(a.PreviousAsset); err != nil {
			return err
		}
	}
	if err := l.mintKey(t, round, a.Authority, a.Asset, a.Key, index, bump); err != nil {
		return err
	}

	round.MintCounter = index
	round.RoundCloseTimestamp = l.closeTimestamp(t.now)
	if err := t.saveRound(a.Round, round); err != nil {
		return err
	}

	log.Info("ledger: key created", "round", a.Round, "index", index, "owner", a.Authority, "asset", a.Asset, "price", price)
	return nil
}

// collectPayment swaps amount lamports from payer into the three round vaults.
func (l *Ledger) collectPayment(t *txn, round *state.Round, payer, pool solana.PublicKey, amount uint64) error {
	if !l.cfg.Pool.IsZero() && !pool.Equals(l.cfg.Pool) {
		return fomoerr.Newf(fomoerr.CodeInvalidAccount, "pool must be %s, got %s", l.cfg.Pool, pool)
	}
	if bal := t.lamportsOf(payer); bal < amount {
		return fomoerr.Newf(fomoerr.CodeInsufficientFunds, "wallet %s holds %d lamports, price is %d", payer, bal, amount)
	}

	mainPart, nftPart, feePart := l.cfg.FeeSplit.Split(amount)
	out, err := l.cfg.Quoter.QuoteSequence(t.ctx, []uint64{mainPart, nftPart, feePart})
	if err != nil {
		return fmt.Errorf("failed to quote payment: %w", err)
	}
	if len(out) != 3 {
		return fmt.Errorf("quoter returned %d amounts, want 3", len(out))
	}
	for i, vault := range []solana.PublicKey{round.MainPoolVault, round.NftPoolVault, round.MintFeeVault} {
		if err := t.creditTokens(vault, out[i]); err != nil {
			return err
		}
	}
	if err := t.debitLamports(payer, amount); err != nil {
		return err
	}
	if !pool.IsZero() {
		sum, carry := bits.Add64(t.lamportsOf(pool), amount, 0)
		if carry != 0 {
			return fomoerr.Newf(fomoerr.CodeCalculationError, "pool lamport overflow")
		}
		return t.setLamports(pool, sum)
	}
	return nil
}

func (l *Ledger) mintKey(t *txn, round *state.Round, owner, asset, key solana.PublicKey, index uint64, bump uint8) error {
	collection, err := t.loadCollection(round.Collection)
	if err != nil {
		return err
	}
	if collection.NumMinted == ^uint32(0) {
		return fomoerr.Newf(fomoerr.CodeCalculationError, "collection is full")
	}
	collection.NumMinted++
	collection.CurrentSize++

	if err := t.save(asset, &state.Asset{
		Owner:      owner,
		Collection: round.Collection,
		KeyIndex:   index,
		Name:       state.MasterKeyName,
		URI:        state.MasterKeyURI,
		Frozen:     true,
	}); err != nil {
		return err
	}
	if err := t.save(key, &state.NftKey{NftMint: asset, KeyIndex: index, Bump: bump}); err != nil {
		return err
	}
	return t.save(round.Collection, collection)
}

// demote turns the previous master key into a tradable collector key.
func (t *txn) demote(pk solana.PublicKey) error {
	asset, err := t.loadAsset(pk)
	if err != nil {
		return err
	}
	if asset.Burned {
		return nil
	}
	asset.Name = state.CollectorKeyName
	asset.URI = state.CollectorKeyURI
	asset.Frozen = false
	return t.save(pk, asset)
}
