package scheduler

import (
	"context"
	"time"

	"sheger-et-bot/internal/infra/metrics"
)

type UsageResetter interface {
	ResetMonthlyUsage(ctx context.Context, now time.Time) (int, error)
}

// UsageResetJob opens the new monthly usage window. Accounts already on the
// current period are untouched, so extra runs are harmless.
type UsageResetJob struct {
	accounts UsageResetter
}

var _ Job = (*UsageResetJob)(nil)

func NewUsageResetJob(accounts UsageResetter) *UsageResetJob {
	return &UsageResetJob{accounts: accounts}
}

func (j *UsageResetJob) Name() string { return "usage_reset" }

func (j *UsageResetJob) Run(ctx context.Context, now time.Time) (int, error) {
	n, err := j.accounts.ResetMonthlyUsage(ctx, now)
	if err != nil {
		return 0, err
	}
	metrics.AddUsageReset(n)
	return n, nil
}
