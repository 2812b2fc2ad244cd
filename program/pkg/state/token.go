package state

import (
	"bytes"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// TokenAccountSize is the SPL token account length.
const TokenAccountSize = 165

const tokenAccountStateInitialized uint8 = 1

// TokenAccount is an SPL token account. Only the fields the program reads are
// surfaced; the rest are kept zeroed on write.
type TokenAccount struct {
	Mint   solana.PublicKey
	Owner  solana.PublicKey
	Amount uint64
}

// splTokenAccount mirrors the 165-byte on-chain layout.
type splTokenAccount struct {
	Mint                 solana.PublicKey
	Owner                solana.PublicKey
	Amount               uint64
	DelegateOption       uint32
	Delegate             solana.PublicKey
	State                uint8
	IsNativeOption       uint32
	IsNative             uint64
	DelegatedAmount      uint64
	CloseAuthorityOption uint32
	CloseAuthority       solana.PublicKey
}

func (t *TokenAccount) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	raw := splTokenAccount{
		Mint:   t.Mint,
		Owner:  t.Owner,
		Amount: t.Amount,
		State:  tokenAccountStateInitialized,
	}
	if err := bin.NewBinEncoder(&buf).Encode(&raw); err != nil {
		return nil, fmt.Errorf("failed to encode token account: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeTokenAccount reads an SPL token account. Extension bytes past the
// base layout are ignored.
func DecodeTokenAccount(data []byte) (*TokenAccount, error) {
	if len(data) < TokenAccountSize {
		return nil, fmt.Errorf("token account too short: %d bytes", len(data))
	}
	var raw splTokenAccount
	if err := bin.NewBinDecoder(data[:TokenAccountSize]).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode token account: %w", err)
	}
	if raw.State != tokenAccountStateInitialized {
		return nil, fmt.Errorf("token account not initialized (state %d)", raw.State)
	}
	return &TokenAccount{Mint: raw.Mint, Owner: raw.Owner, Amount: raw.Amount}, nil
}
