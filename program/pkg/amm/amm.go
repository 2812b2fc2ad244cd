package amm

import (
	"context"
	"errors"
	"fmt"
	"math/bits"

	"github.com/gagliardetto/solana-go"
	"github.com/malbeclabs/fomo/program/pkg/state"
	"golang.org/x/sync/errgroup"
)

const bpsDenominator = 10_000

var (
	ErrEmptyPool = errors.New("pool has no liquidity")
	ErrOverflow  = errors.New("swap arithmetic overflow")
)

// Pool identifies a SOL/token constant-product pool. Token A is the SOL side.
type Pool struct {
	Address     solana.PublicKey
	TokenAVault solana.PublicKey
	TokenBVault solana.PublicKey
	FeeBps      uint16
}

// Reserves are the pool balances at a point in time.
type Reserves struct {
	A uint64
	B uint64
}

// QuoteExactIn returns the B tokens received for amountIn A tokens and the
// reserves after the swap. The fee stays in the pool.
func QuoteExactIn(r Reserves, amountIn uint64, feeBps uint16) (uint64, Reserves, error) {
	if r.A == 0 || r.B == 0 {
		return 0, r, ErrEmptyPool
	}
	if feeBps >= bpsDenominator {
		return 0, r, fmt.Errorf("fee %d bps out of range", feeBps)
	}
	if amountIn == 0 {
		return 0, r, nil
	}

	hi, lo := bits.Mul64(amountIn, uint64(bpsDenominator-feeBps))
	inAfterFee, _ := bits.Div64(hi, lo, bpsDenominator)

	den, carry := bits.Add64(r.A, inAfterFee, 0)
	if carry != 0 {
		return 0, r, ErrOverflow
	}
	hi, lo = bits.Mul64(r.B, inAfterFee)
	out, _ := bits.Div64(hi, lo, den)

	newA, carry := bits.Add64(r.A, amountIn, 0)
	if carry != 0 {
		return 0, r, ErrOverflow
	}
	return out, Reserves{A: newA, B: r.B - out}, nil
}

// Quoter converts lamport amounts into vault tokens. Amounts are swapped in
// order, each against the reserves the previous swap left behind.
type Quoter interface {
	QuoteSequence(ctx context.Context, amountsIn []uint64) ([]uint64, error)
}

// ReserveReader loads the current reserves of a pool.
type ReserveReader interface {
	Reserves(ctx context.Context, pool Pool) (Reserves, error)
}

// StaticReserves is a ReserveReader with fixed balances.
type StaticReserves Reserves

func (s StaticReserves) Reserves(context.Context, Pool) (Reserves, error) {
	return Reserves(s), nil
}

// AccountFetcher returns raw account data.
type AccountFetcher func(ctx context.Context, account solana.PublicKey) ([]byte, error)

// TokenVaultReader reads reserves from the pool's two SPL token vaults.
type TokenVaultReader struct {
	Fetch AccountFetcher
}

func (r TokenVaultReader) Reserves(ctx context.Context, pool Pool) (Reserves, error) {
	var res Reserves
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		amount, err := r.balance(gctx, pool.TokenAVault)
		res.A = amount
		return err
	})
	g.Go(func() error {
		amount, err := r.balance(gctx, pool.TokenBVault)
		res.B = amount
		return err
	})
	if err := g.Wait(); err != nil {
		return Reserves{}, err
	}
	return res, nil
}

func (r TokenVaultReader) balance(ctx context.Context, vault solana.PublicKey) (uint64, error) {
	data, err := r.Fetch(ctx, vault)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch pool vault %s: %w", vault, err)
	}
	ta, err := state.DecodeTokenAccount(data)
	if err != nil {
		return 0, fmt.Errorf("failed to decode pool vault %s: %w", vault, err)
	}
	return ta.Amount, nil
}

// Oracle quotes swaps against a constant-product pool.
type Oracle struct {
	Pool   Pool
	Reader ReserveReader
}

func (o *Oracle) QuoteSequence(ctx context.Context, amountsIn []uint64) ([]uint64, error) {
	r, err := o.Reader.Reserves(ctx, o.Pool)
	if err != nil {
		return nil, fmt.Errorf("failed to read pool reserves: %w", err)
	}
	out := make([]uint64, len(amountsIn))
	for i, in := range amountsIn {
		out[i], r, err = QuoteExactIn(r, in, o.Pool.FeeBps)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// FixedRate converts at Num/Den tokens per lamport. It stands in for a pool
// on local ledgers.
type FixedRate struct {
	Num uint64
	Den uint64
}

func (f FixedRate) QuoteSequence(_ context.Context, amountsIn []uint64) ([]uint64, error) {
	if f.Den == 0 {
		return nil, errors.New("fixed rate denominator is zero")
	}
	out := make([]uint64, len(amountsIn))
	for i, in := range amountsIn {
		hi, lo := bits.Mul64(in, f.Num)
		if hi >= f.Den {
			return nil, ErrOverflow
		}
		out[i], _ = bits.Div64(hi, lo, f.Den)
	}
	return out, nil
}
