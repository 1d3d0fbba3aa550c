// Package worker runs the polling consumer loop for thumbnail jobs.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/code19m/errx"
	"github.com/rise-and-shine/filevault/internal/queue"
	"github.com/rise-and-shine/filevault/internal/thumbnail"
	"github.com/rise-and-shine/filevault/pkg/logger"
)

const (
	shutdownTimeout = 30 * time.Second

	// settleTimeout bounds ack/nack calls issued after the job context is done.
	settleTimeout = 3 * time.Second
)

// Observer receives a callback after every settled job. Used by tests to
// synchronize on processing outcomes; the production pool runs without one.
type Observer interface {
	OnDone(job queue.Job, err error)
}

// Config configures the worker pool.
type Config struct {
	// Concurrency is the number of polling goroutines.
	Concurrency int `yaml:"concurrency" default:"4" validate:"gte=1,lte=64"`

	// PollInterval is the sleep between polls when the queue is empty.
	PollInterval time.Duration `yaml:"poll_interval" default:"1s"`

	// VisibilityTimeout is how long a leased job stays invisible.
	// Must exceed ProcessTimeout so a live job is never redelivered.
	VisibilityTimeout time.Duration `yaml:"visibility_timeout" default:"60s"`

	// ProcessTimeout bounds a single job's processing time.
	ProcessTimeout time.Duration `yaml:"process_timeout" default:"45s"`
}

// Pool polls the queue and hands jobs to the thumbnail task.
type Pool struct {
	cfg      Config
	queue    queue.Queue
	task     *thumbnail.Task
	log      logger.Logger
	observer Observer

	stopOnce  sync.Once
	stopCh    chan struct{}
	stoppedCh chan struct{}
}

// NewPool creates a worker pool. The observer may be nil.
func NewPool(cfg Config, q queue.Queue, task *thumbnail.Task, log logger.Logger, observer Observer) *Pool {
	return &Pool{
		cfg:       cfg,
		queue:     q,
		task:      task,
		log:       log.Named("worker.pool"),
		observer:  observer,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

// Start runs the polling goroutines and blocks until the context is
// cancelled or Stop is called.
func (p *Pool) Start(ctx context.Context) error {
	var wg sync.WaitGroup

	for range p.cfg.Concurrency {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.loop(ctx)
		}()
	}

	wg.Wait()
	close(p.stoppedCh)
	return nil
}

// Stop signals the polling goroutines and waits for in-flight jobs to settle.
func (p *Pool) Stop() error {
	p.stopOnce.Do(func() { close(p.stopCh) })

	select {
	case <-p.stoppedCh:
		return nil
	case <-time.After(shutdownTimeout):
		return errx.New("worker shutdown timeout exceeded")
	}
}

func (p *Pool) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		default:
			delivery, err := p.queue.Dequeue(ctx, p.cfg.VisibilityTimeout)
			if err != nil {
				p.log.With("error", err).Error("failed to dequeue job")
				p.sleep(ctx)
				continue
			}

			if delivery == nil {
				p.sleep(ctx)
				continue
			}

			p.handle(ctx, delivery)
		}
	}
}

func (p *Pool) sleep(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-p.stopCh:
	case <-time.After(p.cfg.PollInterval):
	}
}

func (p *Pool) handle(ctx context.Context, delivery *queue.Delivery) {
	start := time.Now()

	err := p.process(ctx, delivery.Job)
	p.settle(ctx, delivery, err)

	log := p.log.With(
		"delivery_id", delivery.ID,
		"file_id", delivery.Job.FileID,
		"attempt", delivery.Attempts,
		"duration", time.Since(start).Round(time.Microsecond),
	)
	if err != nil {
		log.Errorx(err)
	} else {
		log.Info("thumbnail job processed")
	}

	if p.observer != nil {
		p.observer.OnDone(delivery.Job, err)
	}
}

// process runs the task with a bounded timeout and panic recovery.
func (p *Pool) process(ctx context.Context, job queue.Job) (err error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.ProcessTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			stack := make([]byte, 4096)
			stack = stack[:runtime.Stack(stack, false)]

			err = errx.New(
				fmt.Sprintf("panic recovered: %v", r),
				errx.WithType(errx.T_Internal),
				errx.WithDetails(errx.D{"stack": string(stack)}),
			)
		}
	}()

	return p.task.Process(ctx, job)
}

func (p *Pool) settle(ctx context.Context, delivery *queue.Delivery, processErr error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), settleTimeout)
	defer cancel()

	if processErr == nil {
		if err := p.queue.Ack(ctx, delivery.ID); err != nil {
			p.log.With("delivery_id", delivery.ID, "error", err).Error("failed to ack job")
		}
		return
	}

	fatal := thumbnail.IsFatal(processErr)
	if err := p.queue.Nack(ctx, delivery.ID, processErr.Error(), fatal); err != nil {
		p.log.With("delivery_id", delivery.ID, "error", err).Error("failed to nack job")
	}
}
