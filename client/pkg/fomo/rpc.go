package fomo

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	solanarpc "github.com/gagliardetto/solana-go/rpc"
	"github.com/jonboulle/clockwork"
	"github.com/malbeclabs/fomo/program/pkg/config"
	"github.com/malbeclabs/fomo/program/pkg/fomoerr"
	"golang.org/x/time/rate"
)

var ErrConfirmTimeout = errors.New("transaction not confirmed in time")

const (
	defaultRequestsPerSecond = 10
	defaultComputeUnitLimit  = 400_000
	defaultPollInterval      = 500 * time.Millisecond
	defaultConfirmTimeout    = 60 * time.Second
)

// RPCClient is the subset of the Solana JSON-RPC client the backend uses.
type RPCClient interface {
	GetAccountInfoWithOpts(ctx context.Context, account solana.PublicKey, opts *solanarpc.GetAccountInfoOpts) (*solanarpc.GetAccountInfoResult, error)
	GetBalance(ctx context.Context, account solana.PublicKey, commitment solanarpc.CommitmentType) (*solanarpc.GetBalanceResult, error)
	GetLatestBlockhash(ctx context.Context, commitment solanarpc.CommitmentType) (*solanarpc.GetLatestBlockhashResult, error)
	SendTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts solanarpc.TransactionOpts) (solana.Signature, error)
	GetSignatureStatuses(ctx context.Context, searchTransactionHistory bool, signatures ...solana.Signature) (*solanarpc.GetSignatureStatusesResult, error)
}

type RPCBackendConfig struct {
	Logger     *slog.Logger
	RPC        RPCClient
	Clock      clockwork.Clock
	Commitment solanarpc.CommitmentType

	RequestsPerSecond float64
	ComputeUnitLimit  uint32
	PollInterval      time.Duration
	ConfirmTimeout    time.Duration
}

func (cfg *RPCBackendConfig) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.RPC == nil {
		return errors.New("rpc client is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Commitment == "" {
		cfg.Commitment = solanarpc.CommitmentConfirmed
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = defaultRequestsPerSecond
	}
	if cfg.ComputeUnitLimit == 0 {
		cfg.ComputeUnitLimit = defaultComputeUnitLimit
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.ConfirmTimeout <= 0 {
		cfg.ConfirmTimeout = defaultConfirmTimeout
	}
	return nil
}

// RPCBackend submits transactions to a Solana cluster and waits for them to
// reach the configured commitment.
type RPCBackend struct {
	log     *slog.Logger
	cfg     RPCBackendConfig
	limiter *rate.Limiter
}

func NewRPCBackend(cfg RPCBackendConfig) (*RPCBackend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	burst := int(cfg.RequestsPerSecond)
	if burst < 1 {
		burst = 1
	}
	return &RPCBackend{
		log:     cfg.Logger,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst),
	}, nil
}

func (b *RPCBackend) GetAccount(ctx context.Context, account solana.PublicKey) ([]byte, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	res, err := b.cfg.RPC.GetAccountInfoWithOpts(ctx, account, &solanarpc.GetAccountInfoOpts{
		Commitment: b.cfg.Commitment,
	})
	if errors.Is(err, solanarpc.ErrNotFound) || (err == nil && (res == nil || res.Value == nil)) {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, account)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account %s: %w", account, err)
	}
	return res.Value.Data.GetBinary(), nil
}

func (b *RPCBackend) GetBalance(ctx context.Context, account solana.PublicKey) (uint64, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return 0, err
	}
	res, err := b.cfg.RPC.GetBalance(ctx, account, b.cfg.Commitment)
	if err != nil {
		return 0, fmt.Errorf("failed to get balance of %s: %w", account, err)
	}
	return res.Value, nil
}

// Submit signs ixs with signers, the first being the fee payer, sends the
// transaction and waits for confirmation. Program failures come back as
// *fomoerr.Error.
func (b *RPCBackend) Submit(ctx context.Context, ixs []solana.Instruction, signers []solana.PrivateKey) (solana.Signature, error) {
	if len(signers) == 0 {
		return solana.Signature{}, errors.New("at least one signer is required")
	}
	payer := signers[0].PublicKey()

	if err := b.limiter.Wait(ctx); err != nil {
		return solana.Signature{}, err
	}
	recent, err := b.cfg.RPC.GetLatestBlockhash(ctx, solanarpc.CommitmentFinalized)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("%w: failed to get latest blockhash: %w", ErrNotSent, err)
	}

	all := append([]solana.Instruction{computeUnitLimit(b.cfg.ComputeUnitLimit)}, ixs...)
	tx, err := solana.NewTransaction(all, recent.Value.Blockhash, solana.TransactionPayer(payer))
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to build transaction: %w", err)
	}
	if _, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		for i := range signers {
			if signers[i].PublicKey().Equals(key) {
				return &signers[i]
			}
		}
		return nil
	}); err != nil {
		return solana.Signature{}, fmt.Errorf("failed to sign transaction: %w", err)
	}

	if err := b.limiter.Wait(ctx); err != nil {
		return solana.Signature{}, err
	}
	sig, err := b.cfg.RPC.SendTransactionWithOpts(ctx, tx, solanarpc.TransactionOpts{
		PreflightCommitment: b.cfg.Commitment,
	})
	if err != nil {
		if perr, ok := fomoerr.FromMessage(err.Error()); ok {
			return solana.Signature{}, fmt.Errorf("transaction rejected: %w", perr)
		}
		if strings.Contains(strings.ToLower(err.Error()), "blockhash not found") {
			return solana.Signature{}, fmt.Errorf("%w: %w", ErrNotSent, err)
		}
		return solana.Signature{}, fmt.Errorf("failed to send transaction: %w", err)
	}
	b.log.Debug("rpc: transaction sent", "signature", sig, "instructions", len(ixs))

	if err := b.confirm(ctx, sig); err != nil {
		return sig, err
	}
	return sig, nil
}

func (b *RPCBackend) confirm(ctx context.Context, sig solana.Signature) error {
	deadline := b.cfg.Clock.After(b.cfg.ConfirmTimeout)
	for {
		if err := b.limiter.Wait(ctx); err != nil {
			return err
		}
		res, err := b.cfg.RPC.GetSignatureStatuses(ctx, false, sig)
		if err != nil {
			b.log.Debug("rpc: signature status failed", "signature", sig, "error", err)
		} else if len(res.Value) > 0 && res.Value[0] != nil {
			status := res.Value[0]
			if status.Err != nil {
				if perr, ok := fomoerr.FromTransactionError(status.Err); ok {
					return fmt.Errorf("transaction %s failed: %w", sig, perr)
				}
				return fmt.Errorf("transaction %s failed: %v", sig, status.Err)
			}
			if reached(status.ConfirmationStatus, b.cfg.Commitment) {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline:
			return fmt.Errorf("%w: %s", ErrConfirmTimeout, sig)
		case <-b.cfg.Clock.After(b.cfg.PollInterval):
		}
	}
}

func reached(status solanarpc.ConfirmationStatusType, want solanarpc.CommitmentType) bool {
	switch status {
	case solanarpc.ConfirmationStatusFinalized:
		return true
	case solanarpc.ConfirmationStatusConfirmed:
		return want != solanarpc.CommitmentFinalized
	case solanarpc.ConfirmationStatusProcessed:
		return want == solanarpc.CommitmentProcessed
	}
	return false
}

// computeUnitLimit builds a SetComputeUnitLimit instruction.
func computeUnitLimit(units uint32) solana.Instruction {
	data := make([]byte, 5)
	data[0] = 2
	binary.LittleEndian.PutUint32(data[1:], units)
	return solana.NewInstruction(config.ComputeBudgetProgramID, solana.AccountMetaSlice{}, data)
}
