package fomo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gagliardetto/solana-go"
	"github.com/malbeclabs/fomo/program/pkg/amm"
	"github.com/malbeclabs/fomo/program/pkg/instruction"
	"github.com/malbeclabs/fomo/program/pkg/pda"
	"github.com/malbeclabs/fomo/program/pkg/state"
	"golang.org/x/sync/errgroup"
)

var ErrNoPayer = errors.New("payer keypair is required")

// Client drives one round of the fomo program.
type Client struct {
	log    *slog.Logger
	cfg    Config
	round  solana.PublicKey
	vaults pda.Vaults
}

func New(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	round, _, err := pda.DeriveRoundPDA(cfg.ProgramID, cfg.Seed)
	if err != nil {
		return nil, fmt.Errorf("failed to derive round: %w", err)
	}
	vaults, err := pda.DeriveVaultPDAs(cfg.ProgramID, round)
	if err != nil {
		return nil, fmt.Errorf("failed to derive vaults: %w", err)
	}
	return &Client{
		log:    cfg.Logger,
		cfg:    cfg,
		round:  round,
		vaults: vaults,
	}, nil
}

func (c *Client) Round() solana.PublicKey { return c.round }
func (c *Client) Vaults() pda.Vaults      { return c.vaults }
func (c *Client) Seed() uint64            { return c.cfg.Seed }

func (c *Client) payer() (solana.PrivateKey, error) {
	if len(c.cfg.Payer) == 0 {
		return nil, ErrNoPayer
	}
	return c.cfg.Payer, nil
}

func (c *Client) poolAccounts() instruction.PoolAccounts {
	return instruction.PoolAccounts{
		Pool:        c.cfg.Pool.Address,
		TokenAVault: c.cfg.Pool.TokenAVault,
		TokenBVault: c.cfg.Pool.TokenBVault,
	}
}

// FetchRound reads the round account.
func (c *Client) FetchRound(ctx context.Context) (*state.Round, error) {
	data, err := c.cfg.Backend.GetAccount(ctx, c.round)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch round %d: %w", c.cfg.Seed, err)
	}
	return state.DecodeRound(data)
}

// KeyInfo is a key record together with its asset.
type KeyInfo struct {
	Address solana.PublicKey
	Key     *state.NftKey
	Asset   *state.Asset
}

// FetchKey reads the key at index and its asset.
func (c *Client) FetchKey(ctx context.Context, index uint64) (*KeyInfo, error) {
	addr, _, err := pda.DeriveKeyPDA(c.cfg.ProgramID, c.round, index)
	if err != nil {
		return nil, err
	}
	data, err := c.cfg.Backend.GetAccount(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch key #%d: %w", index, err)
	}
	key, err := state.DecodeNftKey(data)
	if err != nil {
		return nil, err
	}
	data, err = c.cfg.Backend.GetAccount(ctx, key.NftMint)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch asset of key #%d: %w", index, err)
	}
	asset, err := state.DecodeAsset(data)
	if err != nil {
		return nil, err
	}
	return &KeyInfo{Address: addr, Key: key, Asset: asset}, nil
}

// CurrentKey returns the highest unburned key, or nil when every key has
// been burned.
func (c *Client) CurrentKey(ctx context.Context, round *state.Round) (*KeyInfo, error) {
	for i := round.MintCounter; i >= 1; i-- {
		info, err := c.FetchKey(ctx, i)
		if err != nil {
			return nil, err
		}
		if !info.Key.Burned() {
			return info, nil
		}
	}
	return nil, nil
}

// TokenBalance returns the token amount held by a token account. A missing
// account holds zero.
func (c *Client) TokenBalance(ctx context.Context, account solana.PublicKey) (uint64, error) {
	data, err := c.cfg.Backend.GetAccount(ctx, account)
	if errors.Is(err, ErrAccountNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	ta, err := state.DecodeTokenAccount(data)
	if err != nil {
		return 0, err
	}
	return ta.Amount, nil
}

type VaultBalances struct {
	MintFee  uint64
	NftPool  uint64
	MainPool uint64
}

// FetchVaultBalances reads the three vaults concurrently.
func (c *Client) FetchVaultBalances(ctx context.Context) (VaultBalances, error) {
	var out VaultBalances
	g, gctx := errgroup.WithContext(ctx)
	for _, v := range []struct {
		account solana.PublicKey
		dst     *uint64
	}{
		{c.vaults.MintFee, &out.MintFee},
		{c.vaults.NftPool, &out.NftPool},
		{c.vaults.MainPool, &out.MainPool},
	} {
		g.Go(func() error {
			amount, err := c.TokenBalance(gctx, v.account)
			if err != nil {
				return fmt.Errorf("failed to fetch vault %s: %w", v.account, err)
			}
			*v.dst = amount
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return VaultBalances{}, err
	}
	return out, nil
}

// Status is a point-in-time view of the round.
type Status struct {
	Address    solana.PublicKey
	Round      *state.Round
	Vaults     VaultBalances
	CurrentKey *KeyInfo
	NextPrice  uint64
	Open       bool
	Ended      bool
	Holders    uint64
}

func (c *Client) Status(ctx context.Context) (*Status, error) {
	round, err := c.FetchRound(ctx)
	if err != nil {
		return nil, err
	}
	st := &Status{Address: c.round, Round: round}

	now := uint64(max(c.cfg.Clock.Now().Unix(), 0))
	st.Open = round.Started() && round.Open(now)
	st.Ended = round.Ended(now)
	if holders, err := round.Holders(); err == nil {
		st.Holders = holders
	}
	if price, err := round.KeyPrice(round.MintCounter + 1); err == nil {
		st.NextPrice = price
	}

	if round.VaultsInitialized() {
		if st.Vaults, err = c.FetchVaultBalances(ctx); err != nil {
			return nil, err
		}
	}
	if round.Started() {
		if st.CurrentKey, err = c.CurrentKey(ctx, round); err != nil {
			return nil, err
		}
	}
	return st, nil
}

// Balance returns the payer's lamports.
func (c *Client) Balance(ctx context.Context) (uint64, error) {
	payer, err := c.payer()
	if err != nil {
		return 0, err
	}
	return c.cfg.Backend.GetBalance(ctx, payer.PublicKey())
}

// QuoteTokens prices lamports against the pool's live vault reserves, in the
// order the program swaps a key payment: main, nft, mint fee.
func (c *Client) QuoteTokens(ctx context.Context, lamports uint64) ([]uint64, error) {
	oracle := &amm.Oracle{
		Pool:   c.cfg.Pool,
		Reader: amm.TokenVaultReader{Fetch: c.cfg.Backend.GetAccount},
	}
	mainPart, nftPart, feePart := c.cfg.FeeSplit.Split(lamports)
	return oracle.QuoteSequence(ctx, []uint64{mainPart, nftPart, feePart})
}
