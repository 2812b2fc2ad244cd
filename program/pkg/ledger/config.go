package ledger

import (
	"errors"
	"fmt"
	"log/slog"
	"math/bits"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/jonboulle/clockwork"
	"github.com/malbeclabs/fomo/program/pkg/amm"
)

const (
	DefaultBasicMintFee  uint64 = 10_000_000
	DefaultIncrement     uint64 = 4_000_000
	DefaultRoundDuration        = 24 * time.Hour

	bpsDenominator = 10_000
)

// FeeSplit divides a key payment between the three round vaults.
type FeeSplit struct {
	MainBps    uint16
	NftBps     uint16
	MintFeeBps uint16
}

func DefaultFeeSplit() FeeSplit {
	return FeeSplit{MainBps: 7000, NftBps: 2500, MintFeeBps: 500}
}

func (s FeeSplit) IsZero() bool { return s == FeeSplit{} }

func (s FeeSplit) Validate() error {
	if sum := uint32(s.MainBps) + uint32(s.NftBps) + uint32(s.MintFeeBps); sum != bpsDenominator {
		return fmt.Errorf("fee split must sum to %d bps, got %d", bpsDenominator, sum)
	}
	return nil
}

// Split floors the nft and mint fee shares; the remainder goes to main.
func (s FeeSplit) Split(amount uint64) (main, nft, mintFee uint64) {
	nft = mulBps(amount, s.NftBps)
	mintFee = mulBps(amount, s.MintFeeBps)
	return amount - nft - mintFee, nft, mintFee
}

func mulBps(amount uint64, bps uint16) uint64 {
	hi, lo := bits.Mul64(amount, uint64(bps))
	q, _ := bits.Div64(hi, lo, bpsDenominator)
	return q
}

type Config struct {
	Logger    *slog.Logger
	Clock     clockwork.Clock
	Path      string
	ProgramID solana.PublicKey

	// Quoter converts key payments into vault tokens.
	Quoter amm.Quoter

	// Pool, when set, is the only pool address start_round and create_key
	// accept.
	Pool solana.PublicKey

	BasicMintFee  uint64
	Increment     uint64
	FeeSplit      FeeSplit
	RoundDuration time.Duration

	// StartDeposit is paid by the authority at start_round and split like a
	// key payment.
	StartDeposit uint64
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Path == "" {
		return errors.New("path is required")
	}
	if cfg.ProgramID.IsZero() {
		return errors.New("program id is required")
	}
	if cfg.Quoter == nil {
		return errors.New("quoter is required")
	}
	if cfg.FeeSplit.IsZero() {
		cfg.FeeSplit = DefaultFeeSplit()
	}
	if err := cfg.FeeSplit.Validate(); err != nil {
		return err
	}
	if cfg.BasicMintFee == 0 {
		cfg.BasicMintFee = DefaultBasicMintFee
	}
	if cfg.Increment == 0 {
		cfg.Increment = DefaultIncrement
	}
	if cfg.RoundDuration < 0 {
		return errors.New("round duration must not be negative")
	}
	if cfg.RoundDuration == 0 {
		cfg.RoundDuration = DefaultRoundDuration
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return nil
}
