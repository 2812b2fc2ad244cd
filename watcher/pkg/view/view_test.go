package view

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/jonboulle/clockwork"
	"github.com/malbeclabs/fomo/client/pkg/fomo"
	"github.com/malbeclabs/fomo/program/pkg/state"
	fomotesting "github.com/malbeclabs/fomo/utils/pkg/testing"
	"github.com/malbeclabs/fomo/watcher/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

type mockSource struct {
	round        solana.PublicKey
	statusFunc   func(context.Context) (*fomo.Status, error)
	fetchKeyFunc func(context.Context, uint64) (*fomo.KeyInfo, error)
}

func (m *mockSource) Round() solana.PublicKey { return m.round }

func (m *mockSource) Status(ctx context.Context) (*fomo.Status, error) {
	if m.statusFunc != nil {
		return m.statusFunc(ctx)
	}
	return testStatus(m.round), nil
}

func (m *mockSource) FetchKey(ctx context.Context, index uint64) (*fomo.KeyInfo, error) {
	if m.fetchKeyFunc != nil {
		return m.fetchKeyFunc(ctx, index)
	}
	return testKey(index), nil
}

func testKey(index uint64) *fomo.KeyInfo {
	return &fomo.KeyInfo{
		Address: solana.NewWallet().PublicKey(),
		Key:     &state.NftKey{NftMint: solana.NewWallet().PublicKey(), KeyIndex: index},
		Asset: &state.Asset{
			Owner:    solana.NewWallet().PublicKey(),
			KeyIndex: index,
			Name:     "Master Key",
			Frozen:   true,
		},
	}
}

func testStatus(round solana.PublicKey) *fomo.Status {
	return &fomo.Status{
		Address: round,
		Round: &state.Round{
			Authority:           solana.NewWallet().PublicKey(),
			Seed:                1999,
			MintCounter:         2,
			RoundCloseTimestamp: 1_760_086_400,
			RoundBasicMintFee:   10_000_000,
			RoundIncrement:      4_000_000,
			Name:                "fomo-test",
		},
		Vaults:     fomo.VaultBalances{MintFee: 900_000, NftPool: 4_500_000, MainPool: 12_600_000},
		CurrentKey: testKey(2),
		NextPrice:  22_000_000,
		Open:       true,
		Holders:    2,
	}
}

func newTestView(t *testing.T, src Source, clock clockwork.Clock) *View {
	t.Helper()
	v, err := New(Config{
		Logger:          fomotesting.NewLogger(),
		Clock:           clock,
		Source:          src,
		RefreshInterval: time.Minute,
	})
	require.NoError(t, err)
	return v
}

func TestFomo_View_Config_Validate(t *testing.T) {
	t.Parallel()

	cfg := Config{Logger: fomotesting.NewLogger(), Source: &mockSource{}, RefreshInterval: time.Second}
	require.NoError(t, cfg.Validate())
	require.NotNil(t, cfg.Clock)

	require.Error(t, (&Config{Logger: fomotesting.NewLogger(), RefreshInterval: time.Second}).Validate())
	require.Error(t, (&Config{Logger: fomotesting.NewLogger(), Source: &mockSource{}}).Validate())
	require.Error(t, (&Config{Source: &mockSource{}, RefreshInterval: time.Second}).Validate())
}

func TestFomo_View_Ready(t *testing.T) {
	t.Parallel()

	t.Run("not ready before first refresh", func(t *testing.T) {
		t.Parallel()
		v := newTestView(t, &mockSource{round: solana.NewWallet().PublicKey()}, clockwork.NewFakeClock())
		require.False(t, v.Ready())
		require.Nil(t, v.Snapshot())
	})

	t.Run("ready after successful refresh", func(t *testing.T) {
		t.Parallel()
		v := newTestView(t, &mockSource{round: solana.NewWallet().PublicKey()}, clockwork.NewFakeClock())
		require.NoError(t, v.Refresh(context.Background()))
		require.True(t, v.Ready())
		require.NoError(t, v.WaitReady(context.Background()))
	})

	t.Run("stays unready when refresh fails", func(t *testing.T) {
		t.Parallel()
		v := newTestView(t, &mockSource{
			statusFunc: func(context.Context) (*fomo.Status, error) {
				return nil, errors.New("rpc unavailable")
			},
		}, clockwork.NewFakeClock())
		require.Error(t, v.Refresh(context.Background()))
		require.False(t, v.Ready())

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		require.ErrorIs(t, v.WaitReady(ctx), context.Canceled)
	})
}

func TestFomo_View_Refresh_Snapshot(t *testing.T) {
	t.Parallel()

	round := solana.NewWallet().PublicKey()
	clock := clockwork.NewFakeClockAt(time.Unix(1_760_000_000, 0))
	v := newTestView(t, &mockSource{round: round}, clock)
	require.NoError(t, v.Refresh(context.Background()))

	snap := v.Snapshot()
	require.NotNil(t, snap)
	require.Equal(t, round.String(), snap.Address)
	require.Equal(t, "fomo-test", snap.Name)
	require.Equal(t, uint64(2), snap.MintCounter)
	require.Equal(t, uint64(22_000_000), snap.NextPrice)
	require.Equal(t, Vaults{MintFee: 900_000, NftPool: 4_500_000, MainPool: 12_600_000}, snap.Vaults)
	require.True(t, snap.Open)
	require.False(t, snap.WinnerClaimed)
	require.NotNil(t, snap.CurrentKey)
	require.Equal(t, uint64(2), snap.CurrentKey.Index)
	require.True(t, snap.CurrentKey.Frozen)
	require.Equal(t, clock.Now().UTC(), snap.RefreshedAt)

	require.Equal(t, 2.0, testutil.ToFloat64(metrics.RoundMintCounter.WithLabelValues(round.String())))
	require.Equal(t, 12_600_000.0, testutil.ToFloat64(metrics.VaultBalance.WithLabelValues(round.String(), "main_pool")))
	require.Equal(t, 22_000_000.0, testutil.ToFloat64(metrics.NextKeyPrice.WithLabelValues(round.String())))
}

func TestFomo_View_Refresh_KeepsLastSnapshotOnError(t *testing.T) {
	t.Parallel()

	var fail atomic.Bool
	src := &mockSource{round: solana.NewWallet().PublicKey()}
	src.statusFunc = func(context.Context) (*fomo.Status, error) {
		if fail.Load() {
			return nil, errors.New("rpc unavailable")
		}
		return testStatus(src.round), nil
	}
	v := newTestView(t, src, clockwork.NewFakeClock())
	require.NoError(t, v.Refresh(context.Background()))
	first := v.Snapshot()

	fail.Store(true)
	require.Error(t, v.Refresh(context.Background()))
	require.Same(t, first, v.Snapshot())
	require.True(t, v.Ready())
}

func TestFomo_View_SafeRefresh_RecoversPanic(t *testing.T) {
	t.Parallel()

	v := newTestView(t, &mockSource{
		statusFunc: func(context.Context) (*fomo.Status, error) {
			panic("boom")
		},
	}, clockwork.NewFakeClock())
	require.NotPanics(t, func() { v.safeRefresh(context.Background()) })
	require.False(t, v.Ready())
}

func TestFomo_View_Start_RefreshesOnTicker(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	src := &mockSource{round: solana.NewWallet().PublicKey()}
	src.statusFunc = func(context.Context) (*fomo.Status, error) {
		calls.Add(1)
		return testStatus(src.round), nil
	}
	clock := clockwork.NewFakeClock()
	v := newTestView(t, src, clock)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	v.Start(ctx)
	require.NoError(t, v.WaitReady(ctx))

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(time.Minute)
	require.Eventually(t, func() bool { return calls.Load() >= 2 }, 2*time.Second, 10*time.Millisecond)
}

func TestFomo_View_Key(t *testing.T) {
	t.Parallel()

	v := newTestView(t, &mockSource{}, clockwork.NewFakeClock())
	key, err := v.Key(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, uint64(7), key.Index)
	require.Equal(t, "Master Key", key.Name)
	require.False(t, key.Burned)

	v = newTestView(t, &mockSource{
		fetchKeyFunc: func(context.Context, uint64) (*fomo.KeyInfo, error) {
			return nil, fomo.ErrAccountNotFound
		},
	}, clockwork.NewFakeClock())
	_, err = v.Key(context.Background(), 9)
	require.ErrorIs(t, err, fomo.ErrAccountNotFound)
}
