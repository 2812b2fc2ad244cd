package fomo

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/malbeclabs/fomo/program/pkg/fomoerr"
	"github.com/malbeclabs/fomo/program/pkg/instruction"
	"github.com/malbeclabs/fomo/program/pkg/pda"
	"github.com/malbeclabs/fomo/utils/pkg/retry"
)

// Result is the outcome of a submitted instruction. Created holds the new
// account the instruction initialized, if any.
type Result struct {
	Signature solana.Signature
	Created   solana.PublicKey
}

// KeyResult is the outcome of create_key.
type KeyResult struct {
	Signature solana.Signature
	Index     uint64
	Asset     solana.PublicKey
	Attempts  int
}

func (c *Client) submit(ctx context.Context, name string, ix solana.Instruction, extra ...solana.PrivateKey) (solana.Signature, error) {
	payer, err := c.payer()
	if err != nil {
		return solana.Signature{}, err
	}
	signers := append([]solana.PrivateKey{payer}, extra...)
	sig, err := c.cfg.Backend.Submit(ctx, []solana.Instruction{ix}, signers)
	if err != nil {
		return sig, fmt.Errorf("%s: %w", name, err)
	}
	c.log.Info("fomo: transaction confirmed", "instruction", name, "signature", sig, "round", c.round)
	return sig, nil
}

func (c *Client) CreateRound(ctx context.Context, name, uri string) (*Result, error) {
	payer, err := c.payer()
	if err != nil {
		return nil, err
	}
	collection, err := c.cfg.NewKeypair()
	if err != nil {
		return nil, fmt.Errorf("failed to create collection keypair: %w", err)
	}
	ix, err := instruction.NewCreateRoundInstruction(c.cfg.ProgramID, instruction.CreateRoundAccounts{
		Authority:  payer.PublicKey(),
		Collection: collection.PublicKey(),
		Round:      c.round,
	}, instruction.CreateRoundArgs{Seed: c.cfg.Seed, Name: name, URI: uri})
	if err != nil {
		return nil, err
	}
	sig, err := c.submit(ctx, instruction.NameCreateRound, ix, collection)
	if err != nil {
		return nil, err
	}
	return &Result{Signature: sig, Created: collection.PublicKey()}, nil
}

func (c *Client) CreateVaults(ctx context.Context) (*Result, error) {
	payer, err := c.payer()
	if err != nil {
		return nil, err
	}
	ix, err := instruction.NewCreateVaultsInstruction(c.cfg.ProgramID, instruction.CreateVaultsAccounts{
		Authority:     payer.PublicKey(),
		Round:         c.round,
		TokenMint:     c.cfg.TokenMint,
		MintFeeVault:  c.vaults.MintFee,
		NftPoolVault:  c.vaults.NftPool,
		MainPoolVault: c.vaults.MainPool,
	})
	if err != nil {
		return nil, err
	}
	sig, err := c.submit(ctx, instruction.NameCreateVaults, ix)
	if err != nil {
		return nil, err
	}
	return &Result{Signature: sig}, nil
}

func (c *Client) StartRound(ctx context.Context) (*Result, error) {
	payer, err := c.payer()
	if err != nil {
		return nil, err
	}
	round, err := c.FetchRound(ctx)
	if err != nil {
		return nil, err
	}
	asset, err := c.cfg.NewKeypair()
	if err != nil {
		return nil, fmt.Errorf("failed to create asset keypair: %w", err)
	}
	key, _, err := pda.DeriveKeyPDA(c.cfg.ProgramID, c.round, 1)
	if err != nil {
		return nil, err
	}
	ix, err := instruction.NewStartRoundInstruction(c.cfg.ProgramID, instruction.StartRoundAccounts{
		Authority:     payer.PublicKey(),
		Asset:         asset.PublicKey(),
		Round:         c.round,
		Collection:    round.Collection,
		Key:           key,
		MintFeeVault:  c.vaults.MintFee,
		NftPoolVault:  c.vaults.NftPool,
		MainPoolVault: c.vaults.MainPool,
		PoolAccounts:  c.poolAccounts(),
	})
	if err != nil {
		return nil, err
	}
	sig, err := c.submit(ctx, instruction.NameStartRound, ix, asset)
	if err != nil {
		return nil, err
	}
	return &Result{Signature: sig, Created: asset.PublicKey()}, nil
}

// CreateKey mints the next key. Each attempt reads the mint counter afresh,
// so a transaction that lost the race to another buyer is rebuilt against
// the new counter and resubmitted. Only failures that prove nothing was
// applied are retried: a stale reference, or a transaction that never left
// the client. When the outcome of a send is unknown the new asset account is
// looked up instead, and the key is reported as minted if it exists.
func (c *Client) CreateKey(ctx context.Context, maxPrice uint64) (*KeyResult, error) {
	if _, err := c.payer(); err != nil {
		return nil, err
	}

	cfg := c.cfg.Retry
	cfg.Retryable = func(err error) bool {
		return fomoerr.KindOf(err) == fomoerr.KindStaleReference || errors.Is(err, ErrNotSent)
	}
	cfg.OnRetry = func(attempt int, err error) {
		c.log.Warn("fomo: create_key attempt failed, retrying", "attempt", attempt, "error", err)
	}

	var res *KeyResult
	attempts := 0
	err := retry.Do(ctx, cfg, func() error {
		attempts++
		r, err := c.createKey(ctx, maxPrice)
		if err != nil {
			return err
		}
		res = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	res.Attempts = attempts
	return res, nil
}

func (c *Client) createKey(ctx context.Context, maxPrice uint64) (*KeyResult, error) {
	payer := c.cfg.Payer
	round, err := c.FetchRound(ctx)
	if err != nil {
		return nil, err
	}
	prev, err := c.FetchKey(ctx, round.MintCounter)
	if err != nil {
		return nil, err
	}
	index := round.MintCounter + 1
	key, _, err := pda.DeriveKeyPDA(c.cfg.ProgramID, c.round, index)
	if err != nil {
		return nil, err
	}
	asset, err := c.cfg.NewKeypair()
	if err != nil {
		return nil, fmt.Errorf("failed to create asset keypair: %w", err)
	}

	ix, err := instruction.NewCreateKeyInstruction(c.cfg.ProgramID, instruction.CreateKeyAccounts{
		Authority:     payer.PublicKey(),
		Asset:         asset.PublicKey(),
		PreviousAsset: prev.Key.NftMint,
		Round:         c.round,
		Collection:    round.Collection,
		Key:           key,
		PreviousKey:   prev.Address,
		MintFeeVault:  round.MintFeeVault,
		NftPoolVault:  round.NftPoolVault,
		MainPoolVault: round.MainPoolVault,
		PoolAccounts:  c.poolAccounts(),
	}, instruction.CreateKeyArgs{MaxPrice: maxPrice})
	if err != nil {
		return nil, err
	}
	sig, err := c.submit(ctx, instruction.NameCreateKey, ix, asset)
	if err != nil {
		if !c.landed(ctx, err, asset.PublicKey()) {
			return nil, err
		}
		c.log.Warn("fomo: create_key landed despite submit error", "index", index, "asset", asset.PublicKey(), "error", err)
	}
	return &KeyResult{Signature: sig, Index: index, Asset: asset.PublicKey()}, nil
}

// landed reports whether a create_key whose submission failed with err was
// applied anyway. Program errors and unsent transactions are definite.
func (c *Client) landed(ctx context.Context, err error, asset solana.PublicKey) bool {
	var perr *fomoerr.Error
	if errors.As(err, &perr) || errors.Is(err, ErrNotSent) {
		return false
	}
	_, gerr := c.cfg.Backend.GetAccount(ctx, asset)
	return gerr == nil
}

// BurnKey burns the key at index for its share of the nft pool. A zero asset
// is looked up from the key record.
func (c *Client) BurnKey(ctx context.Context, index uint64, asset solana.PublicKey) (*Result, error) {
	payer, err := c.payer()
	if err != nil {
		return nil, err
	}
	round, err := c.FetchRound(ctx)
	if err != nil {
		return nil, err
	}
	key, _, err := pda.DeriveKeyPDA(c.cfg.ProgramID, c.round, index)
	if err != nil {
		return nil, err
	}
	if asset.IsZero() {
		info, err := c.FetchKey(ctx, index)
		if err != nil {
			return nil, err
		}
		asset = info.Key.NftMint
	}
	ata, _, err := solana.FindAssociatedTokenAddress(payer.PublicKey(), round.TokenMint)
	if err != nil {
		return nil, err
	}
	ix, err := instruction.NewBurnKeyInstruction(c.cfg.ProgramID, instruction.BurnKeyAccounts{
		Authority:    payer.PublicKey(),
		AuthorityATA: ata,
		Round:        c.round,
		Collection:   round.Collection,
		Asset:        asset,
		Key:          key,
		NftPoolVault: round.NftPoolVault,
		TokenMint:    round.TokenMint,
	}, instruction.BurnKeyArgs{Index: index})
	if err != nil {
		return nil, err
	}
	sig, err := c.submit(ctx, instruction.NameBurnKey, ix)
	if err != nil {
		return nil, err
	}
	return &Result{Signature: sig, Created: ata}, nil
}

func (c *Client) FeeClaim(ctx context.Context) (*Result, error) {
	payer, err := c.payer()
	if err != nil {
		return nil, err
	}
	round, err := c.FetchRound(ctx)
	if err != nil {
		return nil, err
	}
	ata, _, err := solana.FindAssociatedTokenAddress(payer.PublicKey(), round.TokenMint)
	if err != nil {
		return nil, err
	}
	ix, err := instruction.NewFeeClaimInstruction(c.cfg.ProgramID, instruction.FeeClaimAccounts{
		Authority:    payer.PublicKey(),
		AuthorityATA: ata,
		Round:        c.round,
		MintFeeVault: round.MintFeeVault,
		TokenMint:    round.TokenMint,
	})
	if err != nil {
		return nil, err
	}
	sig, err := c.submit(ctx, instruction.NameFeeClaim, ix)
	if err != nil {
		return nil, err
	}
	return &Result{Signature: sig, Created: ata}, nil
}

func (c *Client) UpdateRound(ctx context.Context, increment uint64) (*Result, error) {
	payer, err := c.payer()
	if err != nil {
		return nil, err
	}
	ix, err := instruction.NewUpdateRoundInstruction(c.cfg.ProgramID, instruction.UpdateRoundAccounts{
		Authority: payer.PublicKey(),
		Round:     c.round,
	}, instruction.UpdateRoundArgs{IncrementAmount: increment})
	if err != nil {
		return nil, err
	}
	sig, err := c.submit(ctx, instruction.NameUpdateRound, ix)
	if err != nil {
		return nil, err
	}
	return &Result{Signature: sig}, nil
}

// WinnerClaim pays the main pool to address, which must be the payer and
// hold the last minted key. A zero address means the payer.
func (c *Client) WinnerClaim(ctx context.Context, address solana.PublicKey) (*Result, error) {
	payer, err := c.payer()
	if err != nil {
		return nil, err
	}
	if address.IsZero() {
		address = payer.PublicKey()
	}
	round, err := c.FetchRound(ctx)
	if err != nil {
		return nil, err
	}
	last, err := c.FetchKey(ctx, round.MintCounter)
	if err != nil {
		return nil, err
	}
	ata, _, err := solana.FindAssociatedTokenAddress(address, round.TokenMint)
	if err != nil {
		return nil, err
	}
	ix, err := instruction.NewWinnerClaimInstruction(c.cfg.ProgramID, instruction.WinnerClaimAccounts{
		Winner:        payer.PublicKey(),
		WinnerATA:     ata,
		Round:         c.round,
		Asset:         last.Key.NftMint,
		Key:           last.Address,
		MainPoolVault: round.MainPoolVault,
		TokenMint:     round.TokenMint,
	}, instruction.WinnerClaimArgs{Address: address})
	if err != nil {
		return nil, err
	}
	sig, err := c.submit(ctx, instruction.NameWinnerClaim, ix)
	if err != nil {
		return nil, err
	}
	return &Result{Signature: sig, Created: ata}, nil
}

func (c *Client) TransferKey(ctx context.Context, asset, to solana.PublicKey) (*Result, error) {
	payer, err := c.payer()
	if err != nil {
		return nil, err
	}
	ix, err := instruction.NewTransferKeyInstruction(c.cfg.ProgramID, instruction.TransferKeyAccounts{
		Owner: payer.PublicKey(),
		Asset: asset,
	}, instruction.TransferKeyArgs{NewOwner: to})
	if err != nil {
		return nil, err
	}
	sig, err := c.submit(ctx, instruction.NameTransferKey, ix)
	if err != nil {
		return nil, err
	}
	return &Result{Signature: sig}, nil
}
