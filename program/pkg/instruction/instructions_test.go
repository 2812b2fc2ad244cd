package instruction

import (
	"crypto/sha256"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"
)

var testProgramID = solana.MustPublicKeyFromBase58("B3uXsDUBZkzPcDdHSRYLsgxC93ofimnUnHaUJADvdR6j")

func newKey(t *testing.T) solana.PublicKey {
	t.Helper()
	k, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	return k.PublicKey()
}

func TestFomo_Instruction_Discriminator(t *testing.T) {
	t.Parallel()

	h := sha256.Sum256([]byte("global:create_key"))
	disc := Discriminator(NameCreateKey)
	require.Equal(t, h[:8], disc[:])

	seen := map[[8]byte]bool{}
	for disc := range decoders {
		require.False(t, seen[disc])
		seen[disc] = true
	}
	require.Len(t, seen, 9)
}

func TestFomo_Instruction_CreateRound_RoundTrip(t *testing.T) {
	t.Parallel()

	accounts := CreateRoundAccounts{Authority: newKey(t), Collection: newKey(t), Round: newKey(t)}
	args := CreateRoundArgs{Seed: 1999, Name: "fomo-test", URI: ""}

	ix, err := NewCreateRoundInstruction(testProgramID, accounts, args)
	require.NoError(t, err)
	require.Equal(t, testProgramID, ix.ProgramID())

	metas := ix.Accounts()
	require.Len(t, metas, 4)
	require.True(t, metas[0].IsSigner)
	require.True(t, metas[1].IsSigner)
	require.False(t, metas[2].IsSigner)
	require.True(t, metas[2].IsWritable)
	require.Equal(t, solana.SystemProgramID, metas[3].PublicKey)

	decoded, err := DecodeInstruction(testProgramID, ix)
	require.NoError(t, err)
	cr, ok := decoded.(*CreateRound)
	require.True(t, ok)
	require.Equal(t, accounts, cr.Accounts)
	require.Equal(t, args, cr.Args)
	require.ElementsMatch(t, []solana.PublicKey{accounts.Authority, accounts.Collection}, Signers(decoded))
}

func TestFomo_Instruction_CreateKey_RoundTrip(t *testing.T) {
	t.Parallel()

	accounts := CreateKeyAccounts{
		Authority:     newKey(t),
		Asset:         newKey(t),
		PreviousAsset: newKey(t),
		Round:         newKey(t),
		Collection:    newKey(t),
		Key:           newKey(t),
		PreviousKey:   newKey(t),
		MintFeeVault:  newKey(t),
		NftPoolVault:  newKey(t),
		MainPoolVault: newKey(t),
		PoolAccounts: PoolAccounts{
			Pool:        newKey(t),
			TokenAVault: newKey(t),
			TokenBVault: newKey(t),
		},
	}
	ix, err := NewCreateKeyInstruction(testProgramID, accounts, CreateKeyArgs{MaxPrice: 25_000_000})
	require.NoError(t, err)

	data, err := ix.Data()
	require.NoError(t, err)
	require.Len(t, data, 16)

	decoded, err := Decode(ix.Accounts(), data)
	require.NoError(t, err)
	ck := decoded.(*CreateKey)
	require.Equal(t, accounts, ck.Accounts)
	require.Equal(t, uint64(25_000_000), ck.Args.MaxPrice)
}

func TestFomo_Instruction_SystemProgramAccounts(t *testing.T) {
	t.Parallel()

	accounts := BurnKeyAccounts{
		Authority:    newKey(t),
		AuthorityATA: newKey(t),
		Round:        newKey(t),
		Collection:   newKey(t),
		Asset:        newKey(t),
		Key:          newKey(t),
		NftPoolVault: newKey(t),
		TokenMint:    newKey(t),
	}
	ix, err := NewBurnKeyInstruction(testProgramID, accounts, BurnKeyArgs{Index: 3})
	require.NoError(t, err)

	metas := ix.Accounts()
	require.Equal(t, solana.TokenProgramID, metas[len(metas)-2].PublicKey)
	require.Equal(t, solana.SystemProgramID, metas[len(metas)-1].PublicKey)

	decoded, err := DecodeInstruction(testProgramID, ix)
	require.NoError(t, err)
	bk := decoded.(*BurnKey)
	require.Equal(t, accounts, bk.Accounts)
	require.Equal(t, uint64(3), bk.Args.Index)
	require.Equal(t, []solana.PublicKey{accounts.Authority}, Signers(decoded))

	data, err := ix.Data()
	require.NoError(t, err)
	metas[len(metas)-1] = solana.NewAccountMeta(newKey(t), false, false)
	_, err = Decode(metas, data)
	require.ErrorIs(t, err, ErrAccountsMismatch)
}

func TestFomo_Instruction_Build_MissingAccount(t *testing.T) {
	t.Parallel()

	_, err := NewUpdateRoundInstruction(testProgramID, UpdateRoundAccounts{Authority: newKey(t)}, UpdateRoundArgs{IncrementAmount: 1})
	require.ErrorIs(t, err, ErrMissingAccount)

	_, err = NewFeeClaimInstruction(solana.PublicKey{}, FeeClaimAccounts{})
	require.Error(t, err)
}

func TestFomo_Instruction_Decode_Errors(t *testing.T) {
	t.Parallel()

	accounts := TransferKeyAccounts{Owner: newKey(t), Asset: newKey(t)}
	ix, err := NewTransferKeyInstruction(testProgramID, accounts, TransferKeyArgs{NewOwner: newKey(t)})
	require.NoError(t, err)
	data, err := ix.Data()
	require.NoError(t, err)

	t.Run("short data", func(t *testing.T) {
		t.Parallel()
		_, err := Decode(ix.Accounts(), data[:4])
		require.ErrorIs(t, err, ErrUnknownInstruction)
	})

	t.Run("unknown discriminator", func(t *testing.T) {
		t.Parallel()
		_, err := Decode(ix.Accounts(), make([]byte, 40))
		require.ErrorIs(t, err, ErrUnknownInstruction)
	})

	t.Run("account count", func(t *testing.T) {
		t.Parallel()
		_, err := Decode(ix.Accounts()[:1], data)
		require.ErrorIs(t, err, ErrAccountsMismatch)
	})

	t.Run("signer flag stripped", func(t *testing.T) {
		t.Parallel()
		metas := solana.AccountMetaSlice{
			solana.NewAccountMeta(accounts.Owner, false, false),
			solana.NewAccountMeta(accounts.Asset, true, false),
		}
		_, err := Decode(metas, data)
		require.ErrorIs(t, err, ErrMissingSigner)
	})

	t.Run("wrong program", func(t *testing.T) {
		t.Parallel()
		_, err := DecodeInstruction(solana.SystemProgramID, ix)
		require.ErrorIs(t, err, ErrUnknownInstruction)
	})

	t.Run("fixed program account replaced", func(t *testing.T) {
		t.Parallel()
		fc, err := NewFeeClaimInstruction(testProgramID, FeeClaimAccounts{
			Authority: newKey(t), AuthorityATA: newKey(t), Round: newKey(t), MintFeeVault: newKey(t), TokenMint: newKey(t),
		})
		require.NoError(t, err)
		metas := fc.Accounts()
		metas[5] = solana.NewAccountMeta(newKey(t), false, false)
		fcData, err := fc.Data()
		require.NoError(t, err)
		_, err = Decode(metas, fcData)
		require.ErrorIs(t, err, ErrAccountsMismatch)
	})
}
