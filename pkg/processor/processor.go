// Package processor runs similarity checks asynchronously.
//
// Enqueue records a queued check and returns at once; a fixed pool of
// workers picks checks off the queue and runs them through the service.
package processor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/aretw0/lifecycle"

	"github.com/aretw0/verbatim/pkg/core"
)

// Defaults.
const (
	DefaultWorkers   = 1
	DefaultQueueSize = 64
)

var (
	// ErrStopped is returned by Enqueue after Stop.
	ErrStopped = errors.New("processor stopped")
	// ErrNotStarted is returned by Enqueue before Start.
	ErrNotStarted = errors.New("processor not started")
)

// Checker is the part of core.Service the processor drives.
type Checker interface {
	CreateCheck(ctx context.Context, documentID string) (core.Check, error)
	ProcessCheck(ctx context.Context, checkID string) (core.Check, error)
}

// failer is implemented by checkers that can persist a failure the processor
// observed itself, such as a panic in ProcessCheck.
type failer interface {
	FailCheck(ctx context.Context, checkID string, cause error) (core.Check, error)
}

// Processor is an asynchronous check queue.
type Processor struct {
	checker   Checker
	workers   int
	queueSize int
	logger    *slog.Logger
	onDone    func(core.Check, error)

	queue   chan string
	done    chan struct{}
	cancel  context.CancelFunc
	running sync.WaitGroup

	mu        sync.Mutex
	started   bool
	stopped   bool
	drained   bool
	pending   int // queued + active
	active    int
	completed int
	failed    int
	idle      []chan struct{}
}

// Option configures a Processor.
type Option func(*Processor)

// WithWorkers sets the number of concurrent checks.
func WithWorkers(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithQueueSize sets how many checks may wait before Enqueue blocks.
func WithQueueSize(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.queueSize = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Processor) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithOnDone registers a callback invoked after every processed check.
func WithOnDone(fn func(core.Check, error)) Option {
	return func(p *Processor) { p.onDone = fn }
}

// New creates a Processor. Call Start before Enqueue.
func New(checker Checker, opts ...Option) *Processor {
	p := &Processor{
		checker:   checker,
		workers:   DefaultWorkers,
		queueSize: DefaultQueueSize,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.queue = make(chan string, p.queueSize)
	p.done = make(chan struct{})
	return p
}

// Start launches the workers. They run until ctx is cancelled or Stop is called.
func (p *Processor) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return ErrStopped
	}
	if p.started {
		return fmt.Errorf("processor already started")
	}
	p.started = true

	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	for i := 0; i < p.workers; i++ {
		p.running.Add(1)
		id := i
		lifecycle.Go(runCtx, func(ctx context.Context) error {
			defer p.running.Done()
			return p.work(ctx, id)
		}, lifecycle.WithErrorHandler(func(err error) {
			p.logger.Error("check worker panic", "worker", id, "error", err)
		}))
	}
	p.logger.Debug("processor started", "workers", p.workers, "queue", p.queueSize)
	return nil
}

func (p *Processor) work(ctx context.Context, id int) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case checkID := <-p.queue:
			if ctx.Err() != nil {
				p.release()
				return nil
			}
			p.process(ctx, id, checkID)
		}
	}
}

func (p *Processor) process(ctx context.Context, worker int, checkID string) {
	p.mu.Lock()
	p.active++
	p.mu.Unlock()

	var (
		check core.Check
		err   error
	)
	defer p.release()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("check %s panicked: %v", checkID, r)
			p.logger.Error("check panic", "worker", worker, "check", checkID, "panic", r)
			check = p.markFailed(ctx, checkID, err)
		}

		p.mu.Lock()
		p.active--
		if err != nil {
			p.failed++
		} else {
			p.completed++
		}
		p.mu.Unlock()

		if err != nil {
			p.logger.Warn("check failed", "check", checkID, "error", err)
		}
		if p.onDone != nil {
			p.onDone(check, err)
		}
	}()

	p.logger.Debug("processing check", "worker", worker, "check", checkID)
	check, err = p.checker.ProcessCheck(ctx, checkID)
}

// markFailed records cause on the check when the checker supports it.
func (p *Processor) markFailed(ctx context.Context, checkID string, cause error) core.Check {
	fallback := core.Check{ID: checkID, Status: core.CheckFailed, Error: cause.Error()}
	f, ok := p.checker.(failer)
	if !ok {
		return fallback
	}
	check, err := f.FailCheck(ctx, checkID, cause)
	if err != nil {
		p.logger.Error("failed to record check failure", "check", checkID, "error", err)
		return fallback
	}
	return check
}

// release marks one queued check as finished and wakes Wait callers when idle.
func (p *Processor) release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pending > 0 {
		p.pending--
	}
	if p.pending == 0 {
		for _, ch := range p.idle {
			close(ch)
		}
		p.idle = nil
	}
}

// Enqueue creates a queued check for the document and schedules it.
// The returned check is in the queued state.
func (p *Processor) Enqueue(ctx context.Context, documentID string) (core.Check, error) {
	p.mu.Lock()
	switch {
	case p.stopped:
		p.mu.Unlock()
		return core.Check{}, ErrStopped
	case !p.started:
		p.mu.Unlock()
		return core.Check{}, ErrNotStarted
	}
	p.pending++
	p.mu.Unlock()

	check, err := p.checker.CreateCheck(ctx, documentID)
	if err != nil {
		p.release()
		return core.Check{}, err
	}

	select {
	case <-p.done:
		p.release()
		return check, ErrStopped
	default:
	}

	select {
	case p.queue <- check.ID:
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.drained {
			// Stop already emptied the queue and nothing reads it anymore.
			p.drainLocked()
			return check, ErrStopped
		}
		return check, nil
	case <-p.done:
		p.release()
		return check, ErrStopped
	case <-ctx.Done():
		p.release()
		return check, ctx.Err()
	}
}

// Wait blocks until every enqueued check has been processed or ctx is done.
func (p *Processor) Wait(ctx context.Context) error {
	p.mu.Lock()
	if p.pending == 0 {
		p.mu.Unlock()
		return nil
	}
	ch := make(chan struct{})
	p.idle = append(p.idle, ch)
	p.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop cancels the workers and waits for them to exit. Checks still in the
// queue stay in the queued state.
func (p *Processor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.stopped = true
	close(p.done)
	cancel := p.cancel
	p.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	done := make(chan struct{})
	go func() {
		p.running.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	p.mu.Lock()
	dropped := p.drainLocked()
	p.drained = true
	p.mu.Unlock()

	p.logger.Debug("processor stopped", "dropped", dropped)
	return nil
}

// drainLocked empties the queue and releases waiters for checks that will
// never run. It returns the number of dropped checks. p.mu must be held.
func (p *Processor) drainLocked() int {
	dropped := 0
	for len(p.queue) > 0 {
		<-p.queue
		dropped++
	}
	p.pending = 0
	for _, ch := range p.idle {
		close(ch)
	}
	p.idle = nil
	return dropped
}

var _ failer = (*core.Service)(nil)
