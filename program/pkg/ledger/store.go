package ledger

import (
	"context"
	"fmt"
	"math/bits"

	"github.com/gagliardetto/solana-go"
	"github.com/malbeclabs/fomo/program/pkg/fomoerr"
	"github.com/malbeclabs/fomo/program/pkg/state"
	bolt "go.etcd.io/bbolt"
)

var (
	bucketAccounts   = []byte("accounts")
	bucketLamports   = []byte("lamports")
	bucketSignatures = []byte("signatures")
)

// txn is the view of the store one transaction executes against. Nothing it
// writes is visible until the surrounding bolt transaction commits.
type txn struct {
	ctx      context.Context
	accounts *bolt.Bucket
	lamports *bolt.Bucket
	now      uint64

	rounds map[solana.PublicKey]uint64
}

func newTxn(ctx context.Context, tx *bolt.Tx, now uint64) *txn {
	return &txn{
		ctx:      ctx,
		accounts: tx.Bucket(bucketAccounts),
		lamports: tx.Bucket(bucketLamports),
		now:      now,
		rounds:   make(map[solana.PublicKey]uint64),
	}
}

func (t *txn) get(pk solana.PublicKey) []byte {
	v := t.accounts.Get(pk.Bytes())
	if v == nil {
		return nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out
}

func (t *txn) exists(pk solana.PublicKey) bool {
	return t.accounts.Get(pk.Bytes()) != nil
}

func (t *txn) put(pk solana.PublicKey, data []byte) error {
	if err := t.accounts.Put(pk.Bytes(), data); err != nil {
		return fmt.Errorf("failed to write account %s: %w", pk, err)
	}
	return nil
}

type marshaler interface {
	Marshal() ([]byte, error)
}

func (t *txn) save(pk solana.PublicKey, v marshaler) error {
	data, err := v.Marshal()
	if err != nil {
		return err
	}
	return t.put(pk, data)
}

func load[T any](t *txn, pk solana.PublicKey, kind string, decode func([]byte) (*T, error)) (*T, error) {
	data := t.get(pk)
	if data == nil {
		return nil, fomoerr.Newf(fomoerr.CodeNotInitialized, "%s %s does not exist", kind, pk)
	}
	v, err := decode(data)
	if err != nil {
		return nil, fomoerr.Newf(fomoerr.CodeInvalidAccount, "%s %s: %v", kind, pk, err)
	}
	return v, nil
}

func (t *txn) loadRound(pk solana.PublicKey) (*state.Round, error) {
	return load(t, pk, "round", state.DecodeRound)
}

func (t *txn) saveRound(pk solana.PublicKey, r *state.Round) error {
	t.rounds[pk] = r.MintCounter
	return t.save(pk, r)
}

func (t *txn) loadKey(pk solana.PublicKey) (*state.NftKey, error) {
	return load(t, pk, "key", state.DecodeNftKey)
}

func (t *txn) loadAsset(pk solana.PublicKey) (*state.Asset, error) {
	return load(t, pk, "asset", state.DecodeAsset)
}

func (t *txn) loadCollection(pk solana.PublicKey) (*state.Collection, error) {
	return load(t, pk, "collection", state.DecodeCollection)
}

func (t *txn) loadTokenAccount(pk solana.PublicKey) (*state.TokenAccount, error) {
	return load(t, pk, "token account", state.DecodeTokenAccount)
}

// ensureATA returns the owner's associated token account for mint, creating
// it when absent.
func (t *txn) ensureATA(owner, mint, ata solana.PublicKey) error {
	want, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return fmt.Errorf("failed to derive associated token account: %w", err)
	}
	if !want.Equals(ata) {
		return fomoerr.Newf(fomoerr.CodeInvalidAccount, "token account %s is not the associated account of %s", ata, owner)
	}
	if t.exists(ata) {
		ta, err := t.loadTokenAccount(ata)
		if err != nil {
			return err
		}
		if !ta.Mint.Equals(mint) || !ta.Owner.Equals(owner) {
			return fomoerr.Newf(fomoerr.CodeInvalidAccount, "token account %s has mint %s owner %s", ata, ta.Mint, ta.Owner)
		}
		return nil
	}
	return t.save(ata, &state.TokenAccount{Mint: mint, Owner: owner})
}

func (t *txn) creditTokens(pk solana.PublicKey, amount uint64) error {
	ta, err := t.loadTokenAccount(pk)
	if err != nil {
		return err
	}
	sum, carry := bits.Add64(ta.Amount, amount, 0)
	if carry != 0 {
		return fomoerr.Newf(fomoerr.CodeCalculationError, "balance overflow on %s", pk)
	}
	ta.Amount = sum
	return t.save(pk, ta)
}

func (t *txn) transferTokens(from, to solana.PublicKey, amount uint64) error {
	src, err := t.loadTokenAccount(from)
	if err != nil {
		return err
	}
	if src.Amount < amount {
		return fomoerr.Newf(fomoerr.CodeInsufficientFunds, "token account %s holds %d, need %d", from, src.Amount, amount)
	}
	src.Amount -= amount
	if err := t.save(from, src); err != nil {
		return err
	}
	return t.creditTokens(to, amount)
}

func (t *txn) lamportsOf(pk solana.PublicKey) uint64 {
	return decodeU64(t.lamports.Get(pk.Bytes()))
}

func (t *txn) setLamports(pk solana.PublicKey, v uint64) error {
	if err := t.lamports.Put(pk.Bytes(), encodeU64(v)); err != nil {
		return fmt.Errorf("failed to write lamports for %s: %w", pk, err)
	}
	return nil
}

func (t *txn) debitLamports(pk solana.PublicKey, amount uint64) error {
	bal := t.lamportsOf(pk)
	if bal < amount {
		return fomoerr.Newf(fomoerr.CodeInsufficientFunds, "wallet %s holds %d lamports, need %d", pk, bal, amount)
	}
	return t.setLamports(pk, bal-amount)
}
