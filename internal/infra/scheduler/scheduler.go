package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"sheger-et-bot/internal/infra/metrics"
)

// Job is one unit of periodic work. It returns how many records it touched.
type Job interface {
	Name() string
	Run(ctx context.Context, now time.Time) (int, error)
}

// Locker keeps replicas from running the same job at once.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}

// JobFunc adapts a function to Job.
type JobFunc struct {
	JobName string
	Fn      func(ctx context.Context, now time.Time) (int, error)
}

func (f JobFunc) Name() string { return f.JobName }
func (f JobFunc) Run(ctx context.Context, now time.Time) (int, error) {
	return f.Fn(ctx, now)
}

// Scheduler periodically runs a Job under a distributed lock.
type Scheduler struct {
	interval time.Duration
	timeout  time.Duration
	job      Job
	locker   Locker
	now      func() time.Time
	log      zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewScheduler runs job every interval (one minute when interval <= 0). A nil
// locker runs the job unguarded, which suits a single replica.
func NewScheduler(interval time.Duration, job Job, locker Locker, logger *zerolog.Logger) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Scheduler{
		interval: interval,
		timeout:  30 * time.Second,
		job:      job,
		locker:   locker,
		now:      time.Now,
		log:      logger.With().Str("component", "scheduler").Str("job", job.Name()).Logger(),
		done:     make(chan struct{}),
	}
}

// Start begins the loop in a background goroutine. Calling it twice has no effect.
func (s *Scheduler) Start(parentCtx context.Context) {
	if s.ctx != nil {
		return
	}
	s.ctx, s.cancel = context.WithCancel(parentCtx)
	go s.loop()
}

func (s *Scheduler) loop() {
	ticker := time.NewTicker(s.interval)
	defer func() {
		ticker.Stop()
		close(s.done)
	}()

	s.log.Info().Dur("interval", s.interval).Msg("scheduler started")
	s.RunOnce(s.ctx)
	for {
		select {
		case <-s.ctx.Done():
			s.log.Info().Msg("scheduler stopping")
			return
		case <-ticker.C:
			s.RunOnce(s.ctx)
		}
	}
}

// RunOnce takes the lock, runs the job with a bounded timeout and releases the
// lock. A held lock skips the run.
func (s *Scheduler) RunOnce(ctx context.Context) (int, error) {
	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	key := "lock:job:" + s.job.Name()
	if s.locker != nil {
		token, err := s.locker.TryLock(runCtx, key, s.timeout)
		if err != nil {
			metrics.IncJobRun(s.job.Name(), "skipped")
			s.log.Debug().Err(err).Msg("job lock not acquired; skipping run")
			return 0, err
		}
		defer func() {
			// the run context may already be done
			if err := s.locker.Unlock(context.WithoutCancel(ctx), key, token); err != nil {
				s.log.Warn().Err(err).Msg("job lock release failed")
			}
		}()
	}

	n, err := s.job.Run(runCtx, s.now())
	if err != nil {
		metrics.IncJobRun(s.job.Name(), "error")
		s.log.Error().Err(err).Msg("job failed")
		return 0, err
	}
	metrics.IncJobRun(s.job.Name(), "ok")
	if n > 0 {
		s.log.Info().Int("count", n).Msg("job finished")
	}
	return n, nil
}

// Stop cancels the loop and waits for it to exit. It is idempotent.
func (s *Scheduler) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.ctx = nil
	s.cancel = nil
	s.done = make(chan struct{})
	s.log.Info().Msg("scheduler stopped")
}
