package ledger

import (
	"log/slog"

	"github.com/gagliardetto/solana-go"
	"github.com/malbeclabs/fomo/program/pkg/fomoerr"
	"github.com/malbeclabs/fomo/program/pkg/instruction"
	"github.com/malbeclabs/fomo/program/pkg/pda"
	"github.com/malbeclabs/fomo/program/pkg/state"
)

func (l *Ledger) closeTimestamp(now uint64) uint64 {
	return now + uint64(l.cfg.RoundDuration.Seconds())
}

func requireAuthority(round *state.Round, signer solana.PublicKey) error {
	if !round.Authority.Equals(signer) {
		return fomoerr.Newf(fomoerr.CodeUnauthorized, "%s is not the round authority", signer)
	}
	return nil
}

func requireAccount(name string, got, want solana.PublicKey) error {
	if !got.Equals(want) {
		return fomoerr.Newf(fomoerr.CodeInvalidAccount, "%s must be %s, got %s", name, want, got)
	}
	return nil
}

func (l *Ledger) createRound(t *txn, log *slog.Logger, ix *instruction.CreateRound) error {
	a, args := ix.Accounts, ix.Args

	roundPDA, bump, err := pda.DeriveRoundPDA(l.cfg.ProgramID, args.Seed)
	if err != nil {
		return err
	}
	if err := requireAccount("round", a.Round, roundPDA); err != nil {
		return err
	}
	if t.exists(a.Round) {
		return fomoerr.Newf(fomoerr.CodeAlreadyInitialized, "round %d already exists at %s", args.Seed, a.Round)
	}
	if t.exists(a.Collection) {
		return fomoerr.Newf(fomoerr.CodeAlreadyInitialized, "collection %s already exists", a.Collection)
	}

	round := &state.Round{
		Authority:           a.Authority,
		Seed:                args.Seed,
		RoundCloseTimestamp: l.closeTimestamp(t.now),
		RoundBasicMintFee:   l.cfg.BasicMintFee,
		RoundIncrement:      l.cfg.Increment,
		Collection:          a.Collection,
		Name:                args.Name,
		URI:                 args.URI,
		CreatedAt:           int64(t.now),
		Bump:                bump,
	}
	collection := &state.Collection{
		UpdateAuthority: a.Round,
		Name:            args.Name,
		URI:             args.URI,
		RoyaltyBps:      state.CollectionRoyaltyBps,
	}
	if err := t.save(a.Collection, collection); err != nil {
		return err
	}
	if err := t.saveRound(a.Round, round); err != nil {
		return err
	}

	log.Info("ledger: round created", "round", a.Round, "seed", args.Seed, "authority", a.Authority, "name", args.Name)
	return nil
}

func (l *Ledger) createVaults(t *txn, log *slog.Logger, ix *instruction.CreateVaults) error {
	a := ix.Accounts

	round, err := t.loadRound(a.Round)
	if err != nil {
		return err
	}
	if err := requireAuthority(round, a.Authority); err != nil {
		return err
	}
	if round.VaultsInitialized() {
		return fomoerr.Newf(fomoerr.CodeAlreadyInitialized, "round %s already has vaults", a.Round)
	}

	vaults, err := pda.DeriveVaultPDAs(l.cfg.ProgramID, a.Round)
	if err != nil {
		return err
	}
	for _, v := range []struct {
		name      string
		got, want solana.PublicKey
	}{
		{"mint_fee_vault", a.MintFeeVault, vaults.MintFee},
		{"nft_pool_vault", a.NftPoolVault, vaults.NftPool},
		{"main_pool_vault", a.MainPoolVault, vaults.MainPool},
	} {
		if err := requireAccount(v.name, v.got, v.want); err != nil {
			return err
		}
		if t.exists(v.got) {
			return fomoerr.Newf(fomoerr.CodeAlreadyInitialized, "%s %s already exists", v.name, v.got)
		}
		if err := t.save(v.got, &state.TokenAccount{Mint: a.TokenMint, Owner: a.Round}); err != nil {
			return err
		}
	}

	round.MintFeeVault = vaults.MintFee
	round.NftPoolVault = vaults.NftPool
	round.MainPoolVault = vaults.MainPool
	round.TokenMint = a.TokenMint
	if err := t.saveRound(a.Round, round); err != nil {
		return err
	}

	log.Info("ledger: vaults created", "round", a.Round, "token_mint", a.TokenMint)
	return nil
}

func (l *Ledger) updateRound(t *txn, log *slog.Logger, ix *instruction.UpdateRound) error {
	a := ix.Accounts

	round, err := t.loadRound(a.Round)
	if err != nil {
		return err
	}
	if err := requireAuthority(round, a.Authority); err != nil {
		return err
	}

	prev := round.RoundIncrement
	round.RoundIncrement = ix.Args.IncrementAmount
	if err := t.saveRound(a.Round, round); err != nil {
		return err
	}

	log.Info("ledger: round updated", "round", a.Round, "increment", ix.Args.IncrementAmount, "previous_increment", prev)
	return nil
}

// requireVaults checks the vault accounts an instruction passed against the
// ones recorded on the round.
func requireVaults(round *state.Round, mintFee, nftPool, mainPool solana.PublicKey) error {
	if !round.VaultsInitialized() {
		return fomoerr.Newf(fomoerr.CodeNotInitialized, "round vaults not created")
	}
	if err := requireAccount("mint_fee_vault", mintFee, round.MintFeeVault); err != nil {
		return err
	}
	if err := requireAccount("nft_pool_vault", nftPool, round.NftPoolVault); err != nil {
		return err
	}
	return requireAccount("main_pool_vault", mainPool, round.MainPoolVault)
}
