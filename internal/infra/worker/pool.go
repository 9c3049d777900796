package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/rs/zerolog"
)

var (
	ErrNilTask   = errors.New("nil task")
	ErrQueueFull = errors.New("worker queue full")
)

// Task is a fire-and-forget unit of work: a notification, a broadcast send.
type Task func(ctx context.Context) error

// Pool runs submitted tasks on a fixed set of goroutines with a bounded queue.
type Pool struct {
	size  int
	queue chan Task
	quit  chan struct{}
	stop  sync.Once
	wg    sync.WaitGroup
	log   zerolog.Logger
}

func NewPool(size int, logger *zerolog.Logger) *Pool {
	if size <= 0 {
		size = runtime.NumCPU()
	}
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "worker_pool").Logger()
	}
	return &Pool{
		size:  size,
		queue: make(chan Task, size*4),
		quit:  make(chan struct{}),
		log:   l,
	}
}

func (p *Pool) Start(ctx context.Context) {
	p.wg.Add(p.size)
	for i := 0; i < p.size; i++ {
		go p.work(ctx, i)
	}
}

func (p *Pool) work(ctx context.Context, id int) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.quit:
			return
		case task := <-p.queue:
			if err := p.run(ctx, task); err != nil {
				p.log.Warn().Err(err).Int("worker", id).Msg("task failed")
			}
		}
	}
}

// run keeps a panicking task from taking its worker down.
func (p *Pool) run(ctx context.Context, task Task) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("task panicked: %v", rec)
		}
	}()
	return task(ctx)
}

// Stop signals the workers and waits for in-flight tasks. Queued tasks are dropped.
func (p *Pool) Stop() {
	p.stop.Do(func() { close(p.quit) })
	p.wg.Wait()
}

// Submit never blocks: a saturated queue rejects the task.
func (p *Pool) Submit(task Task) error {
	if task == nil {
		return ErrNilTask
	}
	select {
	case p.queue <- task:
		return nil
	default:
		return ErrQueueFull
	}
}
