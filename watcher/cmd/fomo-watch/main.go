package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gagliardetto/solana-go"
	solanarpc "github.com/gagliardetto/solana-go/rpc"
	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"

	"github.com/malbeclabs/fomo/client/pkg/fomo"
	"github.com/malbeclabs/fomo/program/pkg/config"
	"github.com/malbeclabs/fomo/utils/pkg/logger"
	"github.com/malbeclabs/fomo/watcher/pkg/metrics"
	"github.com/malbeclabs/fomo/watcher/pkg/server"
	"github.com/malbeclabs/fomo/watcher/pkg/view"
)

var (
	// Set by LDFLAGS
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	verboseFlag := flag.Bool("verbose", false, "enable verbose (debug) logging")
	listenAddrFlag := flag.String("listen-addr", ":8080", "HTTP listen address (or set LISTEN_ADDR env var)")
	envFlag := flag.StringP("env", "e", config.EnvDevnet, "Solana cluster env name: mainnet-beta, testnet, devnet, localnet (or set FOMO_ENV env var)")
	rpcFlag := flag.StringP("rpc", "r", "", "Solana RPC URL, defaults to the env's public endpoint (or set FOMO_RPC_URL env var)")
	programIDFlag := flag.String("program-id", config.ProgramID.String(), "fomo program ID (or set FOMO_PROGRAM_ID env var)")
	seedFlag := flag.Uint64("seed", config.DefaultRoundSeed, "round seed")
	refreshIntervalFlag := flag.Duration("refresh-interval", 15*time.Second, "round refresh interval")
	rpsFlag := flag.Float64("rpc-rps", 5, "max RPC requests per second")
	allowedOriginsFlag := flag.String("allowed-origins", "*", "comma-separated CORS origins (or set ALLOWED_ORIGINS env var)")
	flag.Parse()

	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		*listenAddrFlag = v
	}
	if v := os.Getenv("FOMO_ENV"); v != "" {
		*envFlag = v
	}
	if v := os.Getenv("FOMO_RPC_URL"); v != "" {
		*rpcFlag = v
	}
	if v := os.Getenv("FOMO_PROGRAM_ID"); v != "" {
		*programIDFlag = v
	}
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		*allowedOriginsFlag = v
	}

	log := logger.New(*verboseFlag)
	metrics.BuildInfo.WithLabelValues(version, commit, date).Set(1)

	programID, err := solana.PublicKeyFromBase58(*programIDFlag)
	if err != nil {
		return fmt.Errorf("invalid program id: %w", err)
	}
	rpcURL := *rpcFlag
	if rpcURL == "" {
		if rpcURL, err = config.RPCURL(*envFlag); err != nil {
			return err
		}
	}

	backend, err := fomo.NewRPCBackend(fomo.RPCBackendConfig{
		Logger:            log,
		RPC:               solanarpc.New(rpcURL),
		RequestsPerSecond: *rpsFlag,
	})
	if err != nil {
		return fmt.Errorf("failed to create rpc backend: %w", err)
	}
	client, err := fomo.New(fomo.Config{
		Logger:    log,
		Backend:   backend,
		ProgramID: programID,
		Seed:      *seedFlag,
	})
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}

	v, err := view.New(view.Config{
		Logger:          log,
		Source:          client,
		RefreshInterval: *refreshIntervalFlag,
	})
	if err != nil {
		return fmt.Errorf("failed to create view: %w", err)
	}

	var origins []string
	for _, o := range strings.Split(*allowedOriginsFlag, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}

	srv, err := server.New(server.Config{
		Logger:            log,
		ListenAddr:        *listenAddrFlag,
		ReadHeaderTimeout: 30 * time.Second,
		ShutdownTimeout:   10 * time.Second,
		VersionInfo:       server.VersionInfo{Version: version, Commit: commit, Date: date},
		AllowedOrigins:    origins,
		View:              v,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log.Info("fomo-watch: starting", "version", version, "commit", commit, "env", *envFlag, "round", client.Round(), "rpc", rpcURL)
	return srv.Run(ctx)
}
