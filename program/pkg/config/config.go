package config

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

const (
	EnvMainnetBeta = "mainnet-beta"
	EnvTestnet     = "testnet"
	EnvDevnet      = "devnet"
	EnvLocalnet    = "localnet"
)

// DefaultRoundSeed is the seed of the round the CLI operates on unless told
// otherwise.
const DefaultRoundSeed uint64 = 1999

// ProgramID is the fomo program ID (same across all environments).
var ProgramID = solana.MustPublicKeyFromBase58("B3uXsDUBZkzPcDdHSRYLsgxC93ofimnUnHaUJADvdR6j")

var (
	// TokenMint denominates the round vaults.
	TokenMint = solana.MustPublicKeyFromBase58("9NGDi2tZtNmCCp8SVLKNuGjuWAVwNF3Vap5tT8km5er9")

	// PoolAddress is the SOL/token constant-product pool used to price keys.
	PoolAddress = solana.MustPublicKeyFromBase58("Bgf1Sy5kfeDgib4go4NgzHuZwek8wE8NZus56z6uizzi")

	// WrappedSOLMint is the SOL side of the pool.
	WrappedSOLMint = solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112")

	// ComputeBudgetProgramID is ignored by the ledger processor.
	ComputeBudgetProgramID = solana.MustPublicKeyFromBase58("ComputeBudget111111111111111111111111111111")
)

// SolanaRPCURLs are the Solana RPC URLs per environment.
var SolanaRPCURLs = map[string]string{
	EnvMainnetBeta: "https://api.mainnet-beta.solana.com",
	EnvTestnet:     "https://api.testnet.solana.com",
	EnvDevnet:      "https://api.devnet.solana.com",
	EnvLocalnet:    "http://localhost:8899",
}

func RPCURL(env string) (string, error) {
	url, ok := SolanaRPCURLs[env]
	if !ok {
		return "", fmt.Errorf("unknown environment %q (want one of mainnet-beta, testnet, devnet, localnet)", env)
	}
	return url, nil
}

// PoolVaults returns the pool's token vaults: its associated token accounts
// for wrapped SOL (side A) and the round token (side B).
func PoolVaults(pool, tokenMint solana.PublicKey) (a, b solana.PublicKey, err error) {
	a, _, err = solana.FindAssociatedTokenAddress(pool, WrappedSOLMint)
	if err != nil {
		return a, b, fmt.Errorf("failed to derive pool SOL vault: %w", err)
	}
	b, _, err = solana.FindAssociatedTokenAddress(pool, tokenMint)
	if err != nil {
		return a, b, fmt.Errorf("failed to derive pool token vault: %w", err)
	}
	return a, b, nil
}
