package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"sheger-et-bot/internal/infra/metrics"
)

type TierExpirer interface {
	ExpireTiers(ctx context.Context, now time.Time) ([]int64, error)
}

type TierNotifier interface {
	TierExpired(ctx context.Context, userIDs []int64)
}

// TierExpiryWorker downgrades lapsed paid tiers and tells the affected users.
// Reads already treat a lapsed tier as basic; this only makes storage agree.
type TierExpiryWorker struct {
	interval time.Duration
	accounts TierExpirer
	notify   TierNotifier
	now      func() time.Time
	log      *zerolog.Logger
}

func NewTierExpiryWorker(interval time.Duration, accounts TierExpirer, notify TierNotifier, logger *zerolog.Logger) *TierExpiryWorker {
	if interval <= 0 {
		interval = time.Hour
	}
	compLog := logger.With().Str("component", "TierExpiryWorker").Logger()
	return &TierExpiryWorker{
		interval: interval,
		accounts: accounts,
		notify:   notify,
		now:      time.Now,
		log:      &compLog,
	}
}

func (w *TierExpiryWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("Starting tier expiry worker")
	// Run once on startup, then on every tick
	w.Tick(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping tier expiry worker")
			return ctx.Err()
		case <-ticker.C:
			w.Tick(ctx)
		}
	}
}

func (w *TierExpiryWorker) Tick(ctx context.Context) int {
	ids, err := w.accounts.ExpireTiers(ctx, w.now())
	if err != nil {
		metrics.IncJobRun("tier_expiry", "error")
		w.log.Error().Err(err).Msg("tier expiry failed")
		return 0
	}
	metrics.IncJobRun("tier_expiry", "ok")
	if len(ids) == 0 {
		return 0
	}
	metrics.AddTiersExpired(len(ids))
	w.log.Info().Int("count", len(ids)).Msg("lapsed tiers downgraded")
	if w.notify != nil {
		w.notify.TierExpired(ctx, ids)
	}
	return len(ids)
}
