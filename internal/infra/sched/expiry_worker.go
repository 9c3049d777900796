package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"sheger-et-bot/internal/infra/metrics"
)

// IntentSweeper expires pending payment intents past their TTL.
type IntentSweeper interface {
	ExpireSweep(ctx context.Context, now time.Time) (int, error)
}

// ExpiryWorker periodically expires stale payment intents via the use case.
type ExpiryWorker struct {
	interval time.Duration
	sweeper  IntentSweeper
	now      func() time.Time
	log      *zerolog.Logger
}

func NewExpiryWorker(interval time.Duration, sweeper IntentSweeper, logger *zerolog.Logger) *ExpiryWorker {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	exprLog := logger.With().Str("component", "ExpiryWorker").Logger()
	return &ExpiryWorker{
		interval: interval,
		sweeper:  sweeper,
		now:      time.Now,
		log:      &exprLog,
	}
}

func (w *ExpiryWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("Starting expiry worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping expiry worker")
			return ctx.Err()
		case <-ticker.C:
			w.Tick(ctx)
		}
	}
}

// Tick runs one sweep and reports how many intents expired.
func (w *ExpiryWorker) Tick(ctx context.Context) int {
	n, err := w.sweeper.ExpireSweep(ctx, w.now())
	if err != nil {
		metrics.IncJobRun("intent_expiry", "error")
		w.log.Error().Err(err).Msg("expiry sweep failed")
		return 0
	}
	metrics.IncJobRun("intent_expiry", "ok")
	if n > 0 {
		w.log.Info().Int("count", n).Msg("payment intents expired")
	}
	return n
}
