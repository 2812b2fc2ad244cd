package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/gagliardetto/solana-go"
	solanarpc "github.com/gagliardetto/solana-go/rpc"
	"github.com/mr-tron/base58"
	flag "github.com/spf13/pflag"

	"github.com/malbeclabs/fomo/client/pkg/fomo"
	"github.com/malbeclabs/fomo/program/pkg/amm"
	"github.com/malbeclabs/fomo/program/pkg/config"
	"github.com/malbeclabs/fomo/program/pkg/ledger"
	"github.com/malbeclabs/fomo/utils/pkg/logger"
)

type commonFlags struct {
	env       *string
	rpc       *string
	keypair   *string
	programID *string
	tokenMint *string
	seed      *uint64
	ledger    *string
	verbose   *bool

	poolSOLReserve   *uint64
	poolTokenReserve *uint64
}

func newFlagSet(name string) (*flag.FlagSet, *commonFlags) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	c := &commonFlags{
		env:       fs.StringP("env", "e", config.EnvDevnet, "Solana cluster env name: mainnet-beta, testnet, devnet, localnet (or set FOMO_ENV env var)"),
		rpc:       fs.StringP("rpc", "r", "", "Solana RPC URL, defaults to the env's public endpoint (or set FOMO_RPC_URL env var)"),
		keypair:   fs.StringP("keypair", "k", "", "wallet keypair file or base58 secret key (or set FOMO_KEYPAIR env var)"),
		programID: fs.String("program-id", config.ProgramID.String(), "fomo program ID (or set FOMO_PROGRAM_ID env var)"),
		tokenMint: fs.String("token-mint", config.TokenMint.String(), "vault token mint"),
		seed:      fs.Uint64("seed", config.DefaultRoundSeed, "round seed"),
		ledger:    fs.String("ledger", "", "path to a local ledger file; selects local mode (or set FOMO_LEDGER env var)"),
		verbose:   fs.Bool("verbose", false, "enable verbose (debug) logging"),

		poolSOLReserve:   fs.Uint64("pool-sol-reserve", 0, "local mode: SOL reserve of the simulated pool (0 prices keys 1:1)"),
		poolTokenReserve: fs.Uint64("pool-token-reserve", 0, "local mode: token reserve of the simulated pool"),
	}
	return fs, c
}

func (c *commonFlags) applyEnv() {
	if v := os.Getenv("FOMO_ENV"); v != "" {
		*c.env = v
	}
	if v := os.Getenv("FOMO_RPC_URL"); v != "" {
		*c.rpc = v
	}
	if v := os.Getenv("FOMO_KEYPAIR"); v != "" {
		*c.keypair = v
	}
	if v := os.Getenv("FOMO_PROGRAM_ID"); v != "" {
		*c.programID = v
	}
	if v := os.Getenv("FOMO_LEDGER"); v != "" {
		*c.ledger = v
	}
}

// session is everything a command needs, opened from the common flags.
type session struct {
	log    *slog.Logger
	client *fomo.Client
	ledger *ledger.Ledger
	payer  solana.PrivateKey
}

func (s *session) Close() {
	if s.ledger != nil {
		if err := s.ledger.Close(); err != nil {
			s.log.Warn("failed to close ledger", "error", err)
		}
	}
}

func parse(fs *flag.FlagSet, c *commonFlags, args []string) error {
	if err := fs.Parse(args); err != nil {
		return err
	}
	c.applyEnv()
	return nil
}

// open builds the client. needPayer commands fail early without a keypair.
func (c *commonFlags) open(needPayer bool) (*session, error) {
	log := logger.NewWithWriter(os.Stderr, *c.verbose)

	programID, err := solana.PublicKeyFromBase58(*c.programID)
	if err != nil {
		return nil, fmt.Errorf("invalid program id: %w", err)
	}

	tokenMint, err := solana.PublicKeyFromBase58(*c.tokenMint)
	if err != nil {
		return nil, fmt.Errorf("invalid token mint: %w", err)
	}

	var payer solana.PrivateKey
	if *c.keypair != "" {
		payer, err = loadKeypair(*c.keypair)
		if err != nil {
			return nil, err
		}
	} else if needPayer {
		return nil, errors.New("--keypair is required")
	}

	s := &session{log: log, payer: payer}
	var backend fomo.Backend
	if *c.ledger != "" {
		l, err := ledger.Open(ledger.Config{
			Logger:    log,
			Path:      *c.ledger,
			ProgramID: programID,
			Quoter:    c.localQuoter(),
		})
		if err != nil {
			return nil, err
		}
		s.ledger = l
		backend = &fomo.LocalBackend{Ledger: l}
		log.Debug("using local ledger", "path", *c.ledger)
	} else {
		url := *c.rpc
		if url == "" {
			if url, err = config.RPCURL(*c.env); err != nil {
				return nil, err
			}
		}
		rpcBackend, err := fomo.NewRPCBackend(fomo.RPCBackendConfig{
			Logger: log,
			RPC:    solanarpc.New(url),
		})
		if err != nil {
			return nil, err
		}
		backend = rpcBackend
		log.Debug("using rpc", "env", *c.env, "url", url)
	}

	s.client, err = fomo.New(fomo.Config{
		Logger:    log,
		Backend:   backend,
		Payer:     payer,
		ProgramID: programID,
		TokenMint: tokenMint,
		Seed:      *c.seed,
	})
	if err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (c *commonFlags) localQuoter() amm.Quoter {
	if *c.poolSOLReserve == 0 || *c.poolTokenReserve == 0 {
		return amm.FixedRate{Num: 1, Den: 1}
	}
	return &amm.Oracle{
		Pool:   amm.Pool{Address: config.PoolAddress},
		Reader: amm.StaticReserves{A: *c.poolSOLReserve, B: *c.poolTokenReserve},
	}
}

// loadKeypair reads a solana-keygen JSON file, or decodes a base58 secret key.
func loadKeypair(v string) (solana.PrivateKey, error) {
	if _, err := os.Stat(v); err == nil {
		key, err := solana.PrivateKeyFromSolanaKeygenFile(v)
		if err != nil {
			return nil, fmt.Errorf("failed to load keypair %s: %w", v, err)
		}
		return key, nil
	}
	b, err := base58.Decode(strings.TrimSpace(v))
	if err != nil {
		return nil, fmt.Errorf("keypair is neither a file nor a base58 secret key: %w", err)
	}
	if len(b) != 64 {
		return nil, fmt.Errorf("base58 secret key must be 64 bytes, got %d", len(b))
	}
	return solana.PrivateKey(b), nil
}

func requireLocal(s *session, name string) error {
	if s.ledger == nil {
		return fmt.Errorf("%s needs --ledger", name)
	}
	return nil
}

func withSession(ctx context.Context, c *commonFlags, needPayer bool, fn func(context.Context, *session) error) error {
	s, err := c.open(needPayer)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(ctx, s)
}
