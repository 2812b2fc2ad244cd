package view

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/jonboulle/clockwork"

	"github.com/malbeclabs/fomo/client/pkg/fomo"
	"github.com/malbeclabs/fomo/watcher/pkg/metrics"
)

// Source reads round state. *fomo.Client satisfies it.
type Source interface {
	Round() solana.PublicKey
	Status(ctx context.Context) (*fomo.Status, error)
	FetchKey(ctx context.Context, index uint64) (*fomo.KeyInfo, error)
}

type Config struct {
	Logger          *slog.Logger
	Clock           clockwork.Clock
	Source          Source
	RefreshInterval time.Duration
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Source == nil {
		return errors.New("source is required")
	}
	if cfg.RefreshInterval <= 0 {
		return errors.New("refresh interval must be greater than 0")
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return nil
}

// View keeps the latest round snapshot in memory.
type View struct {
	log       *slog.Logger
	cfg       Config
	refreshMu sync.Mutex

	mu       sync.RWMutex
	snapshot *Snapshot

	readyOnce sync.Once
	readyCh   chan struct{}
}

func New(cfg Config) (*View, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &View{
		log:     cfg.Logger,
		cfg:     cfg,
		readyCh: make(chan struct{}),
	}, nil
}

func (v *View) Ready() bool {
	select {
	case <-v.readyCh:
		return true
	default:
		return false
	}
}

func (v *View) WaitReady(ctx context.Context) error {
	select {
	case <-v.readyCh:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("context cancelled while waiting for round view: %w", ctx.Err())
	}
}

// Snapshot returns the latest snapshot, or nil before the first refresh.
func (v *View) Snapshot() *Snapshot {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.snapshot
}

// Key reads a key directly from the source.
func (v *View) Key(ctx context.Context, index uint64) (*KeySnapshot, error) {
	info, err := v.cfg.Source.FetchKey(ctx, index)
	if err != nil {
		return nil, err
	}
	return newKeySnapshot(info), nil
}

func (v *View) Start(ctx context.Context) {
	go func() {
		v.log.Info("view: starting refresh loop", "round", v.cfg.Source.Round(), "interval", v.cfg.RefreshInterval)

		v.safeRefresh(ctx)

		ticker := v.cfg.Clock.NewTicker(v.cfg.RefreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.Chan():
				v.safeRefresh(ctx)
			}
		}
	}()
}

func (v *View) safeRefresh(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			v.log.Error("view: refresh panicked", "panic", r)
			metrics.ViewRefreshTotal.WithLabelValues("panic").Inc()
		}
	}()

	if err := v.Refresh(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		v.log.Error("view: refresh failed", "error", err)
	}
}

func (v *View) Refresh(ctx context.Context) error {
	v.refreshMu.Lock()
	defer v.refreshMu.Unlock()

	start := v.cfg.Clock.Now()
	defer func() {
		metrics.ViewRefreshDuration.Observe(v.cfg.Clock.Since(start).Seconds())
	}()

	st, err := v.cfg.Source.Status(ctx)
	if err != nil {
		metrics.ViewRefreshTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to fetch round status: %w", err)
	}

	snap := newSnapshot(st, v.cfg.Clock.Now())
	v.mu.Lock()
	v.snapshot = snap
	v.mu.Unlock()

	observe(snap)
	metrics.ViewRefreshTotal.WithLabelValues("success").Inc()
	v.log.Debug("view: refresh completed", "mint_counter", snap.MintCounter, "main_pool", snap.Vaults.MainPool)

	v.readyOnce.Do(func() {
		close(v.readyCh)
		v.log.Info("view: ready", "round", snap.Address)
	})
	return nil
}

func observe(s *Snapshot) {
	round := s.Address
	metrics.RoundMintCounter.WithLabelValues(round).Set(float64(s.MintCounter))
	metrics.RoundHolders.WithLabelValues(round).Set(float64(s.Holders))
	metrics.RoundCloseTimestamp.WithLabelValues(round).Set(float64(s.CloseTimestamp))
	metrics.NextKeyPrice.WithLabelValues(round).Set(float64(s.NextPrice))
	metrics.VaultBalance.WithLabelValues(round, "mint_fee").Set(float64(s.Vaults.MintFee))
	metrics.VaultBalance.WithLabelValues(round, "nft_pool").Set(float64(s.Vaults.NftPool))
	metrics.VaultBalance.WithLabelValues(round, "main_pool").Set(float64(s.Vaults.MainPool))
}
