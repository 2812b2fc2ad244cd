package state

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"math/bits"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// ErrDiscriminatorMismatch is returned when account data does not start with
// the expected 8-byte discriminator.
var ErrDiscriminatorMismatch = errors.New("account discriminator mismatch")

// AccountDiscriminator returns sha256("account:<name>")[:8].
func AccountDiscriminator(name string) [8]byte {
	h := sha256.Sum256([]byte("account:" + name))
	var d [8]byte
	copy(d[:], h[:8])
	return d
}

var (
	RoundDiscriminator      = AccountDiscriminator("Round")
	NftKeyDiscriminator     = AccountDiscriminator("NftKey")
	CollectionDiscriminator = AccountDiscriminator("Collection")
	AssetDiscriminator      = AccountDiscriminator("Asset")
)

const (
	MasterKeyName    = "Master Key"
	MasterKeyURI     = "https://purple-quickest-catshark-409.mypinata.cloud/ipfs/QmXEFnXdMLeSCtzEk8gaiEcDq18DncZ8aRduSNmDgUa2kr"
	CollectorKeyName = "Collector Key"
	CollectorKeyURI  = "https://purple-quickest-catshark-409.mypinata.cloud/ipfs/QmQmaHT4SzGnRZHEf7YBRB37DCWmQvRaPgbkQmPhfKrT4i"

	// CollectionRoyaltyBps is paid to the round on secondary sales.
	CollectionRoyaltyBps uint16 = 690
)

// Round is the per-round ledger record at ["round", seed].
type Round struct {
	Authority           solana.PublicKey
	Seed                uint64
	MintCounter         uint64
	NftBurnCounter      uint64
	RoundCloseTimestamp uint64
	RoundBasicMintFee   uint64
	RoundIncrement      uint64
	MainPoolVault       solana.PublicKey
	NftPoolVault        solana.PublicKey
	MintFeeVault        solana.PublicKey
	Collection          solana.PublicKey
	TokenMint           solana.PublicKey
	Name                string
	URI                 string
	CreatedAt           int64
	WinnerClaimed       uint8
	Bump                uint8
}

func (r *Round) VaultsInitialized() bool {
	return !r.MintFeeVault.IsZero() && !r.NftPoolVault.IsZero() && !r.MainPoolVault.IsZero()
}

func (r *Round) Started() bool { return r.MintCounter > 0 }

// Open reports whether keys can still be minted at unix time now.
func (r *Round) Open(now uint64) bool { return now < r.RoundCloseTimestamp }

// Ended reports whether settlement is allowed at unix time now.
func (r *Round) Ended(now uint64) bool { return now > r.RoundCloseTimestamp }

// Holders is the number of keys not yet burned.
func (r *Round) Holders() (uint64, error) {
	if r.NftBurnCounter > r.MintCounter {
		return 0, fmt.Errorf("burn counter %d exceeds mint counter %d", r.NftBurnCounter, r.MintCounter)
	}
	return r.MintCounter - r.NftBurnCounter, nil
}

// KeyPrice returns basic + increment*index in lamports.
func (r *Round) KeyPrice(index uint64) (uint64, error) {
	hi, lo := bits.Mul64(r.RoundIncrement, index)
	if hi != 0 {
		return 0, fmt.Errorf("price overflow at index %d", index)
	}
	sum, carry := bits.Add64(r.RoundBasicMintFee, lo, 0)
	if carry != 0 {
		return 0, fmt.Errorf("price overflow at index %d", index)
	}
	return sum, nil
}

// NftKey is the key record at ["key", round, index].
type NftKey struct {
	NftMint  solana.PublicKey
	KeyIndex uint64
	Exited   uint8
	Bump     uint8
}

func (k *NftKey) Burned() bool { return k.Exited == 1 }

// Collection groups the key assets of one round.
type Collection struct {
	UpdateAuthority solana.PublicKey
	Name            string
	URI             string
	RoyaltyBps      uint16
	NumMinted       uint32
	CurrentSize     uint32
}

// Asset is a non-fungible key token. The newest key is frozen until a newer
// one is minted.
type Asset struct {
	Owner      solana.PublicKey
	Collection solana.PublicKey
	KeyIndex   uint64
	Name       string
	URI        string
	Frozen     bool
	Burned     bool
}

func marshal(disc [8]byte, v any) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(disc[:])
	if err := bin.NewBorshEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func unmarshal(disc [8]byte, data []byte, v any) error {
	if len(data) < 8 || !bytes.Equal(data[:8], disc[:]) {
		return ErrDiscriminatorMismatch
	}
	return bin.NewBorshDecoder(data[8:]).Decode(v)
}

func (r *Round) Marshal() ([]byte, error) { return marshal(RoundDiscriminator, r) }

func DecodeRound(data []byte) (*Round, error) {
	var r Round
	if err := unmarshal(RoundDiscriminator, data, &r); err != nil {
		return nil, fmt.Errorf("failed to decode round: %w", err)
	}
	return &r, nil
}

func (k *NftKey) Marshal() ([]byte, error) { return marshal(NftKeyDiscriminator, k) }

func DecodeNftKey(data []byte) (*NftKey, error) {
	var k NftKey
	if err := unmarshal(NftKeyDiscriminator, data, &k); err != nil {
		return nil, fmt.Errorf("failed to decode key: %w", err)
	}
	return &k, nil
}

func (c *Collection) Marshal() ([]byte, error) { return marshal(CollectionDiscriminator, c) }

func DecodeCollection(data []byte) (*Collection, error) {
	var c Collection
	if err := unmarshal(CollectionDiscriminator, data, &c); err != nil {
		return nil, fmt.Errorf("failed to decode collection: %w", err)
	}
	return &c, nil
}

func (a *Asset) Marshal() ([]byte, error) { return marshal(AssetDiscriminator, a) }

func DecodeAsset(data []byte) (*Asset, error) {
	var a Asset
	if err := unmarshal(AssetDiscriminator, data, &a); err != nil {
		return nil, fmt.Errorf("failed to decode asset: %w", err)
	}
	return &a, nil
}
