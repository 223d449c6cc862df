package httpserver

import (
	"context"
	"log/slog"
	"time"
)

const sweepTimeout = 30 * time.Second

// Sweeper removes expired records and unreferenced bodies.
type Sweeper interface {
	SweepExpired(ctx context.Context, now time.Time) (int, error)
	SweepOrphans(ctx context.Context, grace time.Duration) (int, error)
}

// JanitorConfig tunes StartJanitor.
type JanitorConfig struct {
	Interval    time.Duration
	OrphanGrace time.Duration
	Logger      *slog.Logger
}

// StartJanitor launches a background janitor that deletes expired records and
// orphaned bodies until ctx is cancelled.
func StartJanitor(ctx context.Context, sweeper Sweeper, cfg JanitorConfig) {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.OrphanGrace <= 0 {
		cfg.OrphanGrace = time.Hour
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	ticker := time.NewTicker(cfg.Interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				cleanOnce(ctx, sweeper, cfg, time.Now())
			}
		}
	}()
}

func cleanOnce(ctx context.Context, sweeper Sweeper, cfg JanitorConfig, now time.Time) {
	c, cancel := context.WithTimeout(ctx, sweepTimeout)
	defer cancel()

	removed, err := sweeper.SweepExpired(c, now)
	if err != nil {
		cfg.Logger.Error("janitor error", "sweep", "expired", "error", err)
	} else if removed > 0 {
		cfg.Logger.Info("janitor removed expired records", "count", removed)
	}

	orphans, err := sweeper.SweepOrphans(c, cfg.OrphanGrace)
	if err != nil {
		cfg.Logger.Error("janitor error", "sweep", "orphans", "error", err)
	} else if orphans > 0 {
		cfg.Logger.Info("janitor removed orphaned bodies", "count", orphans)
	}
}
