package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/joho/godotenv"
)

const usage = `Usage: fomo <command> [flags]

Commands:
  create-round   create the round and its key collection
  create-vaults  create the mint fee, nft pool and main pool vaults
  start-round    mint key #1 and open the round
  create-key     buy the next key
  burn-key       burn a key for its share of the nft pool
  fee-claim      withdraw the mint fee vault (authority, after close)
  update-round   change the per-key price increment (authority)
  winner-claim   withdraw the main pool (holder of the last key, after close)
  transfer-key   give a collector key to another wallet
  round          show round state, vault balances and the current key
  airdrop        fund a wallet on a local ledger
  history        list transactions on a local ledger

Run 'fomo <command> --help' for command flags.
`

type command func(ctx context.Context, args []string) error

var commands = map[string]command{
	"create-round":  runCreateRound,
	"create-vaults": runCreateVaults,
	"start-round":   runStartRound,
	"create-key":    runCreateKey,
	"burn-key":      runBurnKey,
	"fee-claim":     runFeeClaim,
	"update-round":  runUpdateRound,
	"winner-claim":  runWinnerClaim,
	"transfer-key":  runTransferKey,
	"round":         runRound,
	"airdrop":       runAirdrop,
	"history":       runHistory,
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		fmt.Fprint(os.Stderr, usage)
		return nil
	}
	cmd, ok := commands[args[0]]
	if !ok {
		names := make([]string, 0, len(commands))
		for name := range commands {
			names = append(names, name)
		}
		sort.Strings(names)
		return fmt.Errorf("unknown command %q (want one of %v)", args[0], names)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	return cmd(ctx, args[1:])
}
