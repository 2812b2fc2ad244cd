package pda

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

var (
	SeedRound         = []byte("round")
	SeedKey           = []byte("key")
	SeedMintFeeVault  = []byte("mint_fee")
	SeedNftPoolVault  = []byte("nft_pool")
	SeedMainPoolVault = []byte("main_pool")
)

// ErrNoViableBump is returned when no bump in [0, 255] yields an off-curve
// address. Callers must treat it as fatal for the given seeds.
var ErrNoViableBump = errors.New("no viable bump seed")

func u64le(v uint64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)
	return b
}

func find(programID solana.PublicKey, seeds ...[]byte) (solana.PublicKey, uint8, error) {
	addr, bump, err := solana.FindProgramAddress(seeds, programID)
	if err != nil {
		return solana.PublicKey{}, 0, fmt.Errorf("%w: %v", ErrNoViableBump, err)
	}
	return addr, bump, nil
}

func DeriveRoundPDA(programID solana.PublicKey, seed uint64) (solana.PublicKey, uint8, error) {
	return find(programID, SeedRound, u64le(seed))
}

// DeriveKeyPDA derives the key record for index within round. Indices start
// at 1.
func DeriveKeyPDA(programID, round solana.PublicKey, index uint64) (solana.PublicKey, uint8, error) {
	return find(programID, SeedKey, round.Bytes(), u64le(index))
}

func DeriveMintFeeVaultPDA(programID, round solana.PublicKey) (solana.PublicKey, uint8, error) {
	return find(programID, SeedMintFeeVault, round.Bytes())
}

func DeriveNftPoolVaultPDA(programID, round solana.PublicKey) (solana.PublicKey, uint8, error) {
	return find(programID, SeedNftPoolVault, round.Bytes())
}

func DeriveMainPoolVaultPDA(programID, round solana.PublicKey) (solana.PublicKey, uint8, error) {
	return find(programID, SeedMainPoolVault, round.Bytes())
}

// Vaults holds the three escrow token accounts of a round.
type Vaults struct {
	MintFee  solana.PublicKey
	NftPool  solana.PublicKey
	MainPool solana.PublicKey
}

func DeriveVaultPDAs(programID, round solana.PublicKey) (Vaults, error) {
	var v Vaults
	var err error
	if v.MintFee, _, err = DeriveMintFeeVaultPDA(programID, round); err != nil {
		return Vaults{}, fmt.Errorf("failed to derive mint fee vault: %w", err)
	}
	if v.NftPool, _, err = DeriveNftPoolVaultPDA(programID, round); err != nil {
		return Vaults{}, fmt.Errorf("failed to derive nft pool vault: %w", err)
	}
	if v.MainPool, _, err = DeriveMainPoolVaultPDA(programID, round); err != nil {
		return Vaults{}, fmt.Errorf("failed to derive main pool vault: %w", err)
	}
	return v, nil
}
