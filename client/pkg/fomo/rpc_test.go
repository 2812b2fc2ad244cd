package fomo

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	solanarpc "github.com/gagliardetto/solana-go/rpc"
	"github.com/jonboulle/clockwork"
	"github.com/malbeclabs/fomo/program/pkg/config"
	"github.com/malbeclabs/fomo/program/pkg/fomoerr"
	"github.com/malbeclabs/fomo/program/pkg/instruction"
	"github.com/malbeclabs/fomo/program/pkg/state"
	fomotesting "github.com/malbeclabs/fomo/utils/pkg/testing"
	"github.com/stretchr/testify/require"
)

type mockRPC struct {
	getAccountInfoFunc       func(context.Context, solana.PublicKey) (*solanarpc.GetAccountInfoResult, error)
	getBalanceFunc           func(context.Context, solana.PublicKey) (*solanarpc.GetBalanceResult, error)
	sendTransactionFunc      func(context.Context, *solana.Transaction) (solana.Signature, error)
	getSignatureStatusesFunc func(context.Context, ...solana.Signature) (*solanarpc.GetSignatureStatusesResult, error)
	getLatestBlockhashFunc   func(context.Context) (*solanarpc.GetLatestBlockhashResult, error)
}

func (m *mockRPC) GetAccountInfoWithOpts(ctx context.Context, account solana.PublicKey, _ *solanarpc.GetAccountInfoOpts) (*solanarpc.GetAccountInfoResult, error) {
	if m.getAccountInfoFunc != nil {
		return m.getAccountInfoFunc(ctx, account)
	}
	return nil, solanarpc.ErrNotFound
}

func (m *mockRPC) GetBalance(ctx context.Context, account solana.PublicKey, _ solanarpc.CommitmentType) (*solanarpc.GetBalanceResult, error) {
	if m.getBalanceFunc != nil {
		return m.getBalanceFunc(ctx, account)
	}
	return &solanarpc.GetBalanceResult{Value: 0}, nil
}

func (m *mockRPC) GetLatestBlockhash(ctx context.Context, _ solanarpc.CommitmentType) (*solanarpc.GetLatestBlockhashResult, error) {
	if m.getLatestBlockhashFunc != nil {
		return m.getLatestBlockhashFunc(ctx)
	}
	return &solanarpc.GetLatestBlockhashResult{
		Value: &solanarpc.LatestBlockhashResult{Blockhash: solana.Hash{1, 2, 3}},
	}, nil
}

func (m *mockRPC) SendTransactionWithOpts(ctx context.Context, tx *solana.Transaction, _ solanarpc.TransactionOpts) (solana.Signature, error) {
	if m.sendTransactionFunc != nil {
		return m.sendTransactionFunc(ctx, tx)
	}
	return tx.Signatures[0], nil
}

func (m *mockRPC) GetSignatureStatuses(ctx context.Context, _ bool, sigs ...solana.Signature) (*solanarpc.GetSignatureStatusesResult, error) {
	if m.getSignatureStatusesFunc != nil {
		return m.getSignatureStatusesFunc(ctx, sigs...)
	}
	return confirmed(), nil
}

func confirmed() *solanarpc.GetSignatureStatusesResult {
	return &solanarpc.GetSignatureStatusesResult{
		Value: []*solanarpc.SignatureStatusesResult{{ConfirmationStatus: solanarpc.ConfirmationStatusConfirmed}},
	}
}

func newTestRPCBackend(t *testing.T, rpc RPCClient, clock clockwork.Clock) *RPCBackend {
	t.Helper()
	b, err := NewRPCBackend(RPCBackendConfig{
		Logger:            fomotesting.NewLogger(),
		RPC:               rpc,
		Clock:             clock,
		RequestsPerSecond: 1000,
		PollInterval:      100 * time.Millisecond,
		ConfirmTimeout:    time.Second,
	})
	require.NoError(t, err)
	return b
}

func createRoundIx(t *testing.T) (solana.Instruction, []solana.PrivateKey) {
	t.Helper()
	payer, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	collection, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	ix, err := instruction.NewCreateRoundInstruction(config.ProgramID, instruction.CreateRoundAccounts{
		Authority:  payer.PublicKey(),
		Collection: collection.PublicKey(),
		Round:      solana.NewWallet().PublicKey(),
	}, instruction.CreateRoundArgs{Seed: 1999, Name: "fomo-test"})
	require.NoError(t, err)
	return ix, []solana.PrivateKey{payer, collection}
}

func TestFomo_RPCBackend_Config_Validate(t *testing.T) {
	t.Parallel()

	cfg := RPCBackendConfig{Logger: fomotesting.NewLogger(), RPC: &mockRPC{}}
	require.NoError(t, cfg.Validate())
	require.Equal(t, solanarpc.CommitmentConfirmed, cfg.Commitment)
	require.Equal(t, uint32(defaultComputeUnitLimit), cfg.ComputeUnitLimit)
	require.Equal(t, defaultConfirmTimeout, cfg.ConfirmTimeout)

	require.Error(t, (&RPCBackendConfig{Logger: fomotesting.NewLogger()}).Validate())
}

func TestFomo_RPCBackend_GetAccount(t *testing.T) {
	t.Parallel()

	t.Run("not found", func(t *testing.T) {
		t.Parallel()
		b := newTestRPCBackend(t, &mockRPC{}, clockwork.NewFakeClock())
		_, err := b.GetAccount(context.Background(), solana.NewWallet().PublicKey())
		require.ErrorIs(t, err, ErrAccountNotFound)
	})

	t.Run("returns data", func(t *testing.T) {
		t.Parallel()
		data, err := (&state.TokenAccount{Mint: config.TokenMint, Owner: config.ProgramID, Amount: 42}).Marshal()
		require.NoError(t, err)
		b := newTestRPCBackend(t, &mockRPC{
			getAccountInfoFunc: func(context.Context, solana.PublicKey) (*solanarpc.GetAccountInfoResult, error) {
				return &solanarpc.GetAccountInfoResult{
					Value: &solanarpc.Account{Data: solanarpc.DataBytesOrJSONFromBytes(data)},
				}, nil
			},
		}, clockwork.NewFakeClock())
		got, err := b.GetAccount(context.Background(), solana.NewWallet().PublicKey())
		require.NoError(t, err)
		require.Equal(t, data, got)
	})

	t.Run("transport error", func(t *testing.T) {
		t.Parallel()
		b := newTestRPCBackend(t, &mockRPC{
			getAccountInfoFunc: func(context.Context, solana.PublicKey) (*solanarpc.GetAccountInfoResult, error) {
				return nil, errors.New("connection refused")
			},
		}, clockwork.NewFakeClock())
		_, err := b.GetAccount(context.Background(), solana.NewWallet().PublicKey())
		require.Error(t, err)
		require.NotErrorIs(t, err, ErrAccountNotFound)
	})
}

func TestFomo_RPCBackend_Submit_SignsAndConfirms(t *testing.T) {
	t.Parallel()

	var sent *solana.Transaction
	b := newTestRPCBackend(t, &mockRPC{
		sendTransactionFunc: func(_ context.Context, tx *solana.Transaction) (solana.Signature, error) {
			sent = tx
			return tx.Signatures[0], nil
		},
	}, clockwork.NewFakeClock())

	ix, signers := createRoundIx(t)
	sig, err := b.Submit(context.Background(), []solana.Instruction{ix}, signers)
	require.NoError(t, err)
	require.NotNil(t, sent)
	require.Equal(t, sent.Signatures[0], sig)
	require.Len(t, sent.Signatures, 2)
	require.Equal(t, signers[0].PublicKey(), sent.Message.AccountKeys[0])

	require.Len(t, sent.Message.Instructions, 2)
	budget, err := sent.Message.Program(sent.Message.Instructions[0].ProgramIDIndex)
	require.NoError(t, err)
	require.Equal(t, config.ComputeBudgetProgramID, budget)
}

func TestFomo_RPCBackend_Submit_MapsProgramErrors(t *testing.T) {
	t.Parallel()

	t.Run("preflight", func(t *testing.T) {
		t.Parallel()
		b := newTestRPCBackend(t, &mockRPC{
			sendTransactionFunc: func(context.Context, *solana.Transaction) (solana.Signature, error) {
				return solana.Signature{}, errors.New("Transaction simulation failed: Error processing Instruction 1: custom program error: 0x177a")
			},
		}, clockwork.NewFakeClock())
		ix, signers := createRoundIx(t)
		_, err := b.Submit(context.Background(), []solana.Instruction{ix}, signers)
		require.ErrorIs(t, err, fomoerr.New(fomoerr.CodeStaleKeyReference))
		require.Equal(t, fomoerr.KindStaleReference, fomoerr.KindOf(err))
	})

	t.Run("confirmed failure", func(t *testing.T) {
		t.Parallel()
		b := newTestRPCBackend(t, &mockRPC{
			getSignatureStatusesFunc: func(context.Context, ...solana.Signature) (*solanarpc.GetSignatureStatusesResult, error) {
				return &solanarpc.GetSignatureStatusesResult{
					Value: []*solanarpc.SignatureStatusesResult{{
						ConfirmationStatus: solanarpc.ConfirmationStatusConfirmed,
						Err: map[string]any{
							"InstructionError": []any{float64(1), map[string]any{"Custom": float64(6001)}},
						},
					}},
				}, nil
			},
		}, clockwork.NewFakeClock())
		ix, signers := createRoundIx(t)
		_, err := b.Submit(context.Background(), []solana.Instruction{ix}, signers)
		require.ErrorIs(t, err, fomoerr.New(fomoerr.CodeRoundOver))
	})
}

func TestFomo_RPCBackend_Submit_MarksUnsent(t *testing.T) {
	t.Parallel()

	t.Run("blockhash fetch fails", func(t *testing.T) {
		t.Parallel()
		var sent atomic.Bool
		b := newTestRPCBackend(t, &mockRPC{
			getLatestBlockhashFunc: func(context.Context) (*solanarpc.GetLatestBlockhashResult, error) {
				return nil, errors.New("connection refused")
			},
			sendTransactionFunc: func(_ context.Context, tx *solana.Transaction) (solana.Signature, error) {
				sent.Store(true)
				return tx.Signatures[0], nil
			},
		}, clockwork.NewFakeClock())
		ix, signers := createRoundIx(t)
		_, err := b.Submit(context.Background(), []solana.Instruction{ix}, signers)
		require.ErrorIs(t, err, ErrNotSent)
		require.False(t, sent.Load())
	})

	t.Run("preflight blockhash not found", func(t *testing.T) {
		t.Parallel()
		b := newTestRPCBackend(t, &mockRPC{
			sendTransactionFunc: func(context.Context, *solana.Transaction) (solana.Signature, error) {
				return solana.Signature{}, errors.New("Transaction simulation failed: Blockhash not found")
			},
		}, clockwork.NewFakeClock())
		ix, signers := createRoundIx(t)
		_, err := b.Submit(context.Background(), []solana.Instruction{ix}, signers)
		require.ErrorIs(t, err, ErrNotSent)
	})

	t.Run("send transport failure is not marked", func(t *testing.T) {
		t.Parallel()
		b := newTestRPCBackend(t, &mockRPC{
			sendTransactionFunc: func(context.Context, *solana.Transaction) (solana.Signature, error) {
				return solana.Signature{}, errors.New("connection reset by peer")
			},
		}, clockwork.NewFakeClock())
		ix, signers := createRoundIx(t)
		_, err := b.Submit(context.Background(), []solana.Instruction{ix}, signers)
		require.Error(t, err)
		require.NotErrorIs(t, err, ErrNotSent)
	})
}

func TestFomo_RPCBackend_Submit_PollsUntilConfirmed(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	var calls atomic.Int32
	b := newTestRPCBackend(t, &mockRPC{
		getSignatureStatusesFunc: func(context.Context, ...solana.Signature) (*solanarpc.GetSignatureStatusesResult, error) {
			if calls.Add(1) == 1 {
				return &solanarpc.GetSignatureStatusesResult{Value: []*solanarpc.SignatureStatusesResult{nil}}, nil
			}
			return confirmed(), nil
		},
	}, clock)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go func() {
		// Deadline and poll timers.
		if err := clock.BlockUntilContext(ctx, 2); err == nil {
			clock.Advance(100 * time.Millisecond)
		}
	}()

	ix, signers := createRoundIx(t)
	_, err := b.Submit(ctx, []solana.Instruction{ix}, signers)
	require.NoError(t, err)
	require.Equal(t, int32(2), calls.Load())
}

func TestFomo_RPCBackend_Submit_ConfirmTimeout(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	b := newTestRPCBackend(t, &mockRPC{
		getSignatureStatusesFunc: func(context.Context, ...solana.Signature) (*solanarpc.GetSignatureStatusesResult, error) {
			return &solanarpc.GetSignatureStatusesResult{Value: []*solanarpc.SignatureStatusesResult{nil}}, nil
		},
	}, clock)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go func() {
		if err := clock.BlockUntilContext(ctx, 2); err == nil {
			clock.Advance(time.Second)
		}
	}()

	ix, signers := createRoundIx(t)
	sig, err := b.Submit(ctx, []solana.Instruction{ix}, signers)
	require.ErrorIs(t, err, ErrConfirmTimeout)
	require.NotEqual(t, solana.Signature{}, sig)
}
