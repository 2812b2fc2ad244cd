package fomo

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/malbeclabs/fomo/program/pkg/ledger"
)

var ErrAccountNotFound = errors.New("account not found")

// ErrNotSent marks a submission that failed before the transaction could
// reach the cluster. Resubmitting it cannot double-apply.
var ErrNotSent = errors.New("transaction not sent")

// Backend reads accounts and submits transactions.
type Backend interface {
	GetAccount(ctx context.Context, account solana.PublicKey) ([]byte, error)
	GetBalance(ctx context.Context, account solana.PublicKey) (uint64, error)
	Submit(ctx context.Context, ixs []solana.Instruction, signers []solana.PrivateKey) (solana.Signature, error)
}

// LocalBackend executes transactions against a local ledger.
type LocalBackend struct {
	Ledger *ledger.Ledger
}

func (b *LocalBackend) GetAccount(ctx context.Context, account solana.PublicKey) ([]byte, error) {
	data, err := b.Ledger.Account(ctx, account)
	if errors.Is(err, ledger.ErrAccountNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, account)
	}
	return data, err
}

func (b *LocalBackend) GetBalance(ctx context.Context, account solana.PublicKey) (uint64, error) {
	return b.Ledger.Balance(ctx, account)
}

func (b *LocalBackend) Submit(ctx context.Context, ixs []solana.Instruction, signers []solana.PrivateKey) (solana.Signature, error) {
	pubkeys := make([]solana.PublicKey, 0, len(signers))
	for _, s := range signers {
		pubkeys = append(pubkeys, s.PublicKey())
	}
	return b.Ledger.Execute(ctx, ixs, pubkeys)
}
