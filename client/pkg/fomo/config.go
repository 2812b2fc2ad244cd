package fomo

import (
	"errors"
	"log/slog"

	"github.com/gagliardetto/solana-go"
	"github.com/jonboulle/clockwork"
	"github.com/malbeclabs/fomo/program/pkg/amm"
	"github.com/malbeclabs/fomo/program/pkg/config"
	"github.com/malbeclabs/fomo/program/pkg/ledger"
	"github.com/malbeclabs/fomo/utils/pkg/retry"
)

type Config struct {
	Logger  *slog.Logger
	Backend Backend
	Clock   clockwork.Clock

	// Payer signs every transaction. It is the round authority for the
	// restricted instructions and the buyer for create_key.
	Payer solana.PrivateKey

	ProgramID solana.PublicKey
	TokenMint solana.PublicKey
	Pool      amm.Pool
	Seed      uint64

	// FeeSplit mirrors the program's vault split for token quotes.
	FeeSplit ledger.FeeSplit

	// Retry applies to create_key, which is retried on stale key references
	// and transient transport errors.
	Retry retry.Config

	// NewKeypair creates fresh signer accounts for collections and assets.
	NewKeypair func() (solana.PrivateKey, error)
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Backend == nil {
		return errors.New("backend is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.ProgramID.IsZero() {
		cfg.ProgramID = config.ProgramID
	}
	if cfg.TokenMint.IsZero() {
		cfg.TokenMint = config.TokenMint
	}
	if cfg.Pool.Address.IsZero() {
		cfg.Pool.Address = config.PoolAddress
	}
	if cfg.Pool.TokenAVault.IsZero() || cfg.Pool.TokenBVault.IsZero() {
		a, b, err := config.PoolVaults(cfg.Pool.Address, cfg.TokenMint)
		if err != nil {
			return err
		}
		cfg.Pool.TokenAVault, cfg.Pool.TokenBVault = a, b
	}
	if cfg.Seed == 0 {
		cfg.Seed = config.DefaultRoundSeed
	}
	if cfg.FeeSplit.IsZero() {
		cfg.FeeSplit = ledger.DefaultFeeSplit()
	}
	if err := cfg.FeeSplit.Validate(); err != nil {
		return err
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = retry.DefaultConfig()
	}
	if cfg.NewKeypair == nil {
		cfg.NewKeypair = solana.NewRandomPrivateKey
	}
	return nil
}
