package ledger

import (
	"bytes"
	"cmp"
	"context"
	"crypto/sha512"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"math/bits"
	"slices"
	"time"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/malbeclabs/fomo/program/pkg/config"
	"github.com/malbeclabs/fomo/program/pkg/fomoerr"
	"github.com/malbeclabs/fomo/program/pkg/instruction"
	"github.com/malbeclabs/fomo/program/pkg/metrics"
	bolt "go.etcd.io/bbolt"
)

var (
	ErrAccountNotFound    = errors.New("account not found")
	ErrUnsupportedProgram = errors.New("unsupported program")
	ErrEmptyTransaction   = errors.New("transaction has no instructions")
)

// Ledger executes fomo program instructions against a local bbolt store.
// Every Execute call is one bolt read-write transaction, so a failing
// instruction discards the whole transaction.
type Ledger struct {
	log *slog.Logger
	cfg Config
	db  *bolt.DB
}

// TransactionRecord is kept for every committed transaction.
type TransactionRecord struct {
	Signature    solana.Signature
	Seq          uint64
	UnixTime     int64
	Instructions []string
}

type txRecord struct {
	Seq          uint64
	UnixTime     int64
	Instructions []string
}

func Open(cfg Config) (*Ledger, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	db, err := bolt.Open(cfg.Path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger %s: %w", cfg.Path, err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketAccounts, bucketLamports, bucketSignatures} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}
		return nil
	}); err != nil {
		_ = db.Close()
		return nil, err
	}

	cfg.Logger.Debug("ledger: opened", "path", cfg.Path, "program_id", cfg.ProgramID)
	return &Ledger{log: cfg.Logger, cfg: cfg, db: db}, nil
}

func (l *Ledger) Close() error {
	return l.db.Close()
}

func (l *Ledger) ProgramID() solana.PublicKey { return l.cfg.ProgramID }

func (l *Ledger) now() uint64 {
	ts := l.cfg.Clock.Now().Unix()
	if ts < 0 {
		return 0
	}
	return uint64(ts)
}

// Execute runs instructions as one atomic transaction. signers are the
// accounts that signed it.
func (l *Ledger) Execute(ctx context.Context, ixs []solana.Instruction, signers []solana.PublicKey) (solana.Signature, error) {
	if err := ctx.Err(); err != nil {
		return solana.Signature{}, err
	}
	if len(ixs) == 0 {
		return solana.Signature{}, ErrEmptyTransaction
	}

	log := l.log.With("trace_id", uuid.NewString())
	signed := make(map[solana.PublicKey]bool, len(signers))
	for _, s := range signers {
		signed[s] = true
	}

	type result struct {
		name     string
		duration time.Duration
	}
	var (
		results []result
		sig     solana.Signature
		rounds  map[solana.PublicKey]uint64
	)

	err := l.db.Update(func(tx *bolt.Tx) error {
		t := newTxn(ctx, tx, l.now())
		var names []string
		for i, raw := range ixs {
			if raw.ProgramID().Equals(config.ComputeBudgetProgramID) {
				continue
			}
			if !raw.ProgramID().Equals(l.cfg.ProgramID) {
				return fmt.Errorf("instruction %d: %w: %s", i, ErrUnsupportedProgram, raw.ProgramID())
			}
			ix, err := instruction.DecodeInstruction(l.cfg.ProgramID, raw)
			if err != nil {
				if errors.Is(err, instruction.ErrMissingSigner) {
					return fmt.Errorf("instruction %d: %w", i, fomoerr.Newf(fomoerr.CodeMissingSignature, "%v", err))
				}
				return fmt.Errorf("instruction %d: %w", i, err)
			}
			for _, s := range instruction.Signers(ix) {
				if !signed[s] {
					metrics.InstructionsTotal.WithLabelValues(ix.Name(), fomoerr.CodeMissingSignature.String()).Inc()
					return fmt.Errorf("instruction %d (%s): %w", i, ix.Name(), fomoerr.Newf(fomoerr.CodeMissingSignature, "%s did not sign", s))
				}
			}

			start := time.Now()
			if err := l.dispatch(t, log, ix); err != nil {
				status := "error"
				if code, ok := fomoerr.CodeOf(err); ok {
					status = code.String()
				}
				metrics.InstructionsTotal.WithLabelValues(ix.Name(), status).Inc()
				return fmt.Errorf("instruction %d (%s): %w", i, ix.Name(), err)
			}
			results = append(results, result{name: ix.Name(), duration: time.Since(start)})
			names = append(names, ix.Name())
		}

		var err error
		sig, err = l.record(tx, ixs, names)
		if err != nil {
			return err
		}
		rounds = t.rounds
		return nil
	})
	if err != nil {
		metrics.TransactionsTotal.WithLabelValues("error").Inc()
		log.Debug("ledger: transaction rejected", "error", err)
		return solana.Signature{}, err
	}

	metrics.TransactionsTotal.WithLabelValues("ok").Inc()
	for _, r := range results {
		metrics.InstructionsTotal.WithLabelValues(r.name, "ok").Inc()
		metrics.InstructionDuration.WithLabelValues(r.name).Observe(r.duration.Seconds())
	}
	for round, counter := range rounds {
		metrics.RoundMintCounter.WithLabelValues(round.String()).Set(float64(counter))
	}
	log.Debug("ledger: transaction committed", "signature", sig, "instructions", len(results))
	return sig, nil
}

func (l *Ledger) dispatch(t *txn, log *slog.Logger, ix instruction.Instruction) error {
	switch ix := ix.(type) {
	case *instruction.CreateRound:
		return l.createRound(t, log, ix)
	case *instruction.CreateVaults:
		return l.createVaults(t, log, ix)
	case *instruction.UpdateRound:
		return l.updateRound(t, log, ix)
	case *instruction.StartRound:
		return l.startRound(t, log, ix)
	case *instruction.CreateKey:
		return l.createKey(t, log, ix)
	case *instruction.BurnKey:
		return l.burnKey(t, log, ix)
	case *instruction.TransferKey:
		return l.transferKey(t, log, ix)
	case *instruction.FeeClaim:
		return l.feeClaim(t, log, ix)
	case *instruction.WinnerClaim:
		return l.winnerClaim(t, log, ix)
	default:
		return fmt.Errorf("%w: %s", instruction.ErrUnknownInstruction, ix.Name())
	}
}

// record derives the transaction signature and appends it to the history.
func (l *Ledger) record(tx *bolt.Tx, ixs []solana.Instruction, names []string) (solana.Signature, error) {
	b := tx.Bucket(bucketSignatures)
	seq, err := b.NextSequence()
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to allocate sequence: %w", err)
	}

	h := sha512.New()
	_ = binary.Write(h, binary.LittleEndian, seq)
	for _, ix := range ixs {
		h.Write(ix.ProgramID().Bytes())
		for _, m := range ix.Accounts() {
			h.Write(m.PublicKey.Bytes())
		}
		if data, err := ix.Data(); err == nil {
			h.Write(data)
		}
	}
	var sig solana.Signature
	copy(sig[:], h.Sum(nil))

	rec := txRecord{Seq: seq, UnixTime: l.cfg.Clock.Now().Unix(), Instructions: names}
	var buf bytes.Buffer
	if err := bin.NewBorshEncoder(&buf).Encode(&rec); err != nil {
		return solana.Signature{}, fmt.Errorf("failed to encode transaction record: %w", err)
	}
	if err := b.Put(sig[:], buf.Bytes()); err != nil {
		return solana.Signature{}, fmt.Errorf("failed to write transaction record: %w", err)
	}
	return sig, nil
}

// Account returns the raw data stored at pk.
func (l *Ledger) Account(ctx context.Context, pk solana.PublicKey) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []byte
	err := l.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketAccounts).Get(pk.Bytes())
		if v == nil {
			return fmt.Errorf("%w: %s", ErrAccountNotFound, pk)
		}
		out = append([]byte(nil), v...)
		return nil
	})
	return out, err
}

// Balance returns the lamports held by a wallet.
func (l *Ledger) Balance(ctx context.Context, pk solana.PublicKey) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var bal uint64
	err := l.db.View(func(tx *bolt.Tx) error {
		bal = decodeU64(tx.Bucket(bucketLamports).Get(pk.Bytes()))
		return nil
	})
	return bal, err
}

// Airdrop credits lamports to a wallet.
func (l *Ledger) Airdrop(ctx context.Context, pk solana.PublicKey, lamports uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return l.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketLamports)
		sum, carry := bits.Add64(decodeU64(b.Get(pk.Bytes())), lamports, 0)
		if carry != 0 {
			return fomoerr.Newf(fomoerr.CodeCalculationError, "lamport overflow on %s", pk)
		}
		l.log.Debug("ledger: airdrop", "wallet", pk, "lamports", lamports, "balance", sum)
		return b.Put(pk.Bytes(), encodeU64(sum))
	})
}

// Transactions returns the committed transactions in execution order.
func (l *Ledger) Transactions(ctx context.Context) ([]TransactionRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []TransactionRecord
	err := l.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSignatures).ForEach(func(k, v []byte) error {
			var rec txRecord
			if err := bin.NewBorshDecoder(v).Decode(&rec); err != nil {
				return fmt.Errorf("failed to decode transaction record: %w", err)
			}
			var sig solana.Signature
			copy(sig[:], k)
			out = append(out, TransactionRecord{
				Signature:    sig,
				Seq:          rec.Seq,
				UnixTime:     rec.UnixTime,
				Instructions: rec.Instructions,
			})
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(out, func(a, b TransactionRecord) int { return cmp.Compare(a.Seq, b.Seq) })
	return out, nil
}

func encodeU64(v uint64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)
	return b
}

func decodeU64(b []byte) uint64 {
	if len(b) != 8 {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}
