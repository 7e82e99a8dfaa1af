package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/aretw0/lifecycle"

	"github.com/aretw0/verbatim"
	checkevents "github.com/aretw0/verbatim/pkg/adapters/lifecycle"
	"github.com/aretw0/verbatim/pkg/inbox"
	"github.com/aretw0/verbatim/pkg/processor"
)

const stopTimeout = 10 * time.Second

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// startProcessor starts the check queue and logs every finished check.
func startProcessor(ctx context.Context, vault *verbatim.Vault, workers int) (*processor.Processor, error) {
	cfg := vault.Config.Check
	if workers <= 0 {
		workers = cfg.Workers
	}

	events := checkevents.NewSource(cfg.QueueSize)
	if err := events.Start(ctx); err != nil {
		return nil, err
	}
	lifecycle.Go(ctx, func(ctx context.Context) error {
		for e := range events.Events() {
			if ev, ok := e.(checkevents.CheckEvent); ok && ev.Err != nil {
				slog.Warn("check failed", "check", ev.Check.ID, "document", ev.Check.DocumentID, "error", ev.Err)
				continue
			}
			slog.Info(e.String())
		}
		return nil
	})

	proc := processor.New(vault.Service,
		processor.WithWorkers(workers),
		processor.WithQueueSize(cfg.QueueSize),
		processor.WithLogger(slog.Default()),
		processor.WithOnDone(events.Publish),
	)
	if err := proc.Start(ctx); err != nil {
		return nil, err
	}
	return proc, nil
}

// inboxRunner is a supervised inbox watcher that remembers its live instance.
type inboxRunner struct {
	inbox.Runner
	current atomic.Pointer[inbox.Watcher]
}

// Stats returns the counters of the live watcher, if any.
func (r *inboxRunner) Stats() *inbox.Stats {
	w := r.current.Load()
	if w == nil {
		return nil
	}
	st := w.Stats()
	return &st
}

// startInbox watches dir and feeds settled files to the vault and the queue.
func startInbox(ctx context.Context, vault *verbatim.Vault, dir string, queue inbox.Enqueuer) (*inboxRunner, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	cfg := vault.Config.Inbox
	r := &inboxRunner{}
	r.Runner = inbox.Supervise(inbox.Config{
		Dir:          abs,
		Pattern:      cfg.Pattern,
		Debounce:     cfg.Debounce,
		ScanExisting: cfg.ScanExisting,
		Handler:      inbox.IngestHandler(vault.Service, queue),
		Logger:       slog.Default(),
		ErrorHandler: func(err error) {
			slog.Warn("inbox error", "error", err)
		},
	}, func(w *inbox.Watcher) {
		r.current.Store(w)
	})
	if err := r.Start(ctx); err != nil {
		return nil, err
	}
	slog.Info("watching inbox", "dir", abs, "pattern", cfg.Pattern)
	return r, nil
}

// stopAll stops the given components in order with a shared timeout.
func stopAll(stoppers ...func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	for _, stop := range stoppers {
		if err := stop(ctx); err != nil {
			slog.Warn("shutdown", "error", err)
		}
	}
}
