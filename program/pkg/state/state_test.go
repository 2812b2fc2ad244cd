package state

import (
	"crypto/sha256"
	"math"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"
)

func newKey(t *testing.T) solana.PublicKey {
	t.Helper()
	k, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	return k.PublicKey()
}

func TestFomo_State_AccountDiscriminator(t *testing.T) {
	t.Parallel()

	h := sha256.Sum256([]byte("account:Round"))
	require.Equal(t, h[:8], RoundDiscriminator[:])
	require.NotEqual(t, RoundDiscriminator, NftKeyDiscriminator)
}

func TestFomo_State_Round_RoundTrip(t *testing.T) {
	t.Parallel()

	r := &Round{
		Authority:           newKey(t),
		Seed:                1999,
		MintCounter:         7,
		NftBurnCounter:      2,
		RoundCloseTimestamp: 1_700_086_400,
		RoundBasicMintFee:   10_000_000,
		RoundIncrement:      4_000_000,
		MainPoolVault:       newKey(t),
		NftPoolVault:        newKey(t),
		MintFeeVault:        newKey(t),
		Collection:          newKey(t),
		TokenMint:           newKey(t),
		Name:                "fomo-test",
		URI:                 "",
		CreatedAt:           1_700_000_000,
		Bump:                254,
	}
	data, err := r.Marshal()
	require.NoError(t, err)
	require.Equal(t, RoundDiscriminator[:], data[:8])

	got, err := DecodeRound(data)
	require.NoError(t, err)
	require.Equal(t, r, got)

	_, err = DecodeNftKey(data)
	require.ErrorIs(t, err, ErrDiscriminatorMismatch)
}

func TestFomo_State_Round_Helpers(t *testing.T) {
	t.Parallel()

	r := &Round{RoundBasicMintFee: 10_000_000, RoundIncrement: 4_000_000, RoundCloseTimestamp: 100}
	require.False(t, r.VaultsInitialized())
	require.False(t, r.Started())
	require.True(t, r.Open(99))
	require.False(t, r.Open(100))
	require.False(t, r.Ended(100))
	require.True(t, r.Ended(101))

	price, err := r.KeyPrice(2)
	require.NoError(t, err)
	require.Equal(t, uint64(18_000_000), price)

	r.RoundIncrement = math.MaxUint64
	_, err = r.KeyPrice(2)
	require.Error(t, err)

	r.RoundIncrement = 1
	r.RoundBasicMintFee = math.MaxUint64
	_, err = r.KeyPrice(1)
	require.Error(t, err)

	r.MintCounter, r.NftBurnCounter = 3, 1
	holders, err := r.Holders()
	require.NoError(t, err)
	require.Equal(t, uint64(2), holders)
}

func TestFomo_State_KeyAndAsset_RoundTrip(t *testing.T) {
	t.Parallel()

	k := &NftKey{NftMint: newKey(t), KeyIndex: 2, Exited: 1, Bump: 253}
	data, err := k.Marshal()
	require.NoError(t, err)
	gotKey, err := DecodeNftKey(data)
	require.NoError(t, err)
	require.Equal(t, k, gotKey)
	require.True(t, gotKey.Burned())

	a := &Asset{Owner: newKey(t), Collection: newKey(t), KeyIndex: 2, Name: MasterKeyName, URI: MasterKeyURI, Frozen: true}
	data, err = a.Marshal()
	require.NoError(t, err)
	gotAsset, err := DecodeAsset(data)
	require.NoError(t, err)
	require.Equal(t, a, gotAsset)

	c := &Collection{UpdateAuthority: newKey(t), Name: "fomo-test", RoyaltyBps: CollectionRoyaltyBps, NumMinted: 3, CurrentSize: 2}
	data, err = c.Marshal()
	require.NoError(t, err)
	gotCollection, err := DecodeCollection(data)
	require.NoError(t, err)
	require.Equal(t, c, gotCollection)
}

func TestFomo_State_TokenAccount_Layout(t *testing.T) {
	t.Parallel()

	ta := &TokenAccount{Mint: newKey(t), Owner: newKey(t), Amount: 4_500_000}
	data, err := ta.Marshal()
	require.NoError(t, err)
	require.Len(t, data, TokenAccountSize)
	require.Equal(t, ta.Mint.Bytes(), data[:32])
	require.Equal(t, ta.Owner.Bytes(), data[32:64])
	require.Equal(t, uint8(1), data[108])

	got, err := DecodeTokenAccount(data)
	require.NoError(t, err)
	require.Equal(t, ta, got)

	// Token-2022 accounts carry extensions after the base layout.
	got, err = DecodeTokenAccount(append(data, 0x02, 0x00))
	require.NoError(t, err)
	require.Equal(t, ta.Amount, got.Amount)

	_, err = DecodeTokenAccount(data[:100])
	require.Error(t, err)

	uninit := make([]byte, TokenAccountSize)
	_, err = DecodeTokenAccount(uninit)
	require.Error(t, err)
}
