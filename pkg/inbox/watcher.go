// Package inbox watches a directory tree and ingests files dropped into it.
package inbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aretw0/lifecycle/pkg/core/worker"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
)

// Defaults.
const (
	DefaultPattern  = "**/*.pdf"
	DefaultDebounce = 250 * time.Millisecond
)

// Handler processes a file that settled in the inbox. rel is the slash
// separated path relative to the inbox root.
type Handler func(ctx context.Context, path, rel string) error

// Config configures a Watcher.
type Config struct {
	Dir      string
	Pattern  string
	Debounce time.Duration
	// ScanExisting hands files already present at start to the handler.
	ScanExisting bool
	Handler      Handler
	Logger       *slog.Logger
	ErrorHandler func(error)
}

// Stats are the watcher counters.
type Stats struct {
	Dir       string     `json:"dir"`
	Pattern   string     `json:"pattern"`
	Active    bool       `json:"active"`
	Pending   int        `json:"pending"`
	Handled   int        `json:"handled"`
	Failed    int        `json:"failed"`
	LastEvent *time.Time `json:"last_event,omitempty"`
}

// Watcher is a lifecycle worker feeding settled inbox files to a Handler.
type Watcher struct {
	*worker.BaseWorker
	config    Config
	watcher   *fsnotify.Watcher
	debouncer *debouncer
	cancel    context.CancelFunc
	active    atomic.Bool

	mu        sync.Mutex
	seen      map[string]time.Time
	handled   int
	failed    int
	lastEvent time.Time
}

// New validates cfg and creates an unstarted Watcher.
func New(cfg Config) (*Watcher, error) {
	if cfg.Dir == "" {
		return nil, errors.New("inbox: directory is required")
	}
	if cfg.Handler == nil {
		return nil, errors.New("inbox: handler is required")
	}
	if cfg.Pattern == "" {
		cfg.Pattern = DefaultPattern
	}
	if !doublestar.ValidatePattern(cfg.Pattern) {
		return nil, fmt.Errorf("inbox: invalid pattern %q", cfg.Pattern)
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	abs, err := filepath.Abs(cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("inbox: %w", err)
	}
	cfg.Dir = abs

	return &Watcher{
		BaseWorker: worker.NewBaseWorker("inbox-watcher"),
		config:     cfg,
		seen:       make(map[string]time.Time),
	}, nil
}

// Start begins watching. The directory is created if missing.
func (w *Watcher) Start(ctx context.Context) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	status := w.State().Status
	if status != worker.StatusCreated && status != worker.StatusPending {
		return fmt.Errorf("watcher already started (status: %s)", status)
	}

	if err := os.MkdirAll(w.config.Dir, 0o755); err != nil {
		return fmt.Errorf("failed to create inbox: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	w.debouncer = newDebouncer(w.config.Debounce)
	runCtx, cancel := context.WithCancel(ctx)

	existing, err := w.recursiveAdd(watcher, w.config.Dir)
	if err != nil {
		cancel()
		_ = watcher.Close()
		return err
	}

	w.watcher = watcher
	w.cancel = cancel
	w.active.Store(true)

	if w.config.ScanExisting {
		for _, path := range existing {
			w.schedule(runCtx, path)
		}
	}

	w.SetStatus(worker.StatusRunning)
	w.config.Logger.Info("watching inbox", "dir", w.config.Dir, "pattern", w.config.Pattern)
	return w.StartFunc(runCtx, w.run)
}

// Stop ends the watch loop and discards pending events.
func (w *Watcher) Stop(ctx context.Context) error {
	if w.cancel != nil {
		w.StopRequested = true
		w.cancel()
	}
	return w.BaseWorker.Stop(ctx)
}

// State implements worker.Worker.
func (w *Watcher) State() worker.State {
	return w.ExportState(func(s *worker.State) {
		s.Metadata = map[string]string{
			worker.MetadataType: string(worker.TypeGoroutine),
			"dir":               w.config.Dir,
			"pattern":           w.config.Pattern,
		}
	})
}

// Stats returns the watcher counters.
func (w *Watcher) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	st := Stats{
		Dir:     w.config.Dir,
		Pattern: w.config.Pattern,
		Active:  w.active.Load(),
		Handled: w.handled,
		Failed:  w.failed,
	}
	if w.debouncer != nil {
		st.Pending = w.debouncer.pending()
	}
	if !w.lastEvent.IsZero() {
		last := w.lastEvent
		st.LastEvent = &last
	}
	return st
}

// recursiveAdd watches root and every directory below it, returning the
// matching files found along the way.
func (w *Watcher) recursiveAdd(watcher *fsnotify.Watcher, root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path != root && ignored(d.Name()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if err := watcher.Add(path); err != nil {
				return fmt.Errorf("failed to watch %s: %w", path, err)
			}
			return nil
		}
		if w.matches(path) {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// ignored reports hidden files and editor or download temporaries.
func ignored(name string) bool {
	return strings.HasPrefix(name, ".") ||
		strings.HasPrefix(name, "~$") ||
		strings.HasSuffix(name, "~") ||
		strings.HasSuffix(name, ".part") ||
		strings.HasSuffix(name, ".crdownload")
}

func (w *Watcher) rel(path string) (string, bool) {
	rel, err := filepath.Rel(w.config.Dir, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

func (w *Watcher) matches(path string) bool {
	rel, ok := w.rel(path)
	if !ok || ignored(filepath.Base(path)) {
		return false
	}
	matched, err := doublestar.Match(w.config.Pattern, rel)
	return err == nil && matched
}

// schedule debounces a file and hands it to the handler once it settles.
func (w *Watcher) schedule(ctx context.Context, path string) {
	w.debouncer.add(path, func() {
		if ctx.Err() != nil {
			return
		}
		w.handle(ctx, path)
	})
}

func (w *Watcher) handle(ctx context.Context, path string) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return
	}

	w.mu.Lock()
	if prev, ok := w.seen[path]; ok && prev.Equal(info.ModTime()) {
		w.mu.Unlock()
		return
	}
	w.seen[path] = info.ModTime()
	w.lastEvent = time.Now()
	w.mu.Unlock()

	rel, _ := w.rel(path)
	err = w.config.Handler(ctx, path, rel)

	w.mu.Lock()
	if err != nil {
		w.failed++
		delete(w.seen, path)
	} else {
		w.handled++
	}
	w.mu.Unlock()

	if err != nil {
		w.config.Logger.Warn("inbox file failed", "file", rel, "error", err)
		w.reportError(fmt.Errorf("inbox %s: %w", rel, err))
		return
	}
	w.config.Logger.Debug("inbox file handled", "file", rel)
}

func (w *Watcher) reportError(err error) {
	if w.config.ErrorHandler != nil {
		w.config.ErrorHandler(err)
	}
}

// processEvent filters and debounces one filesystem event.
func (w *Watcher) processEvent(ctx context.Context, event fsnotify.Event) {
	w.config.Logger.Debug("event received", "name", event.Name, "op", event.Op.String())

	if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		w.debouncer.cancel(event.Name)
		w.mu.Lock()
		delete(w.seen, event.Name)
		w.mu.Unlock()
		return
	}
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if ignored(filepath.Base(event.Name)) {
				return
			}
			// Files may land in a new directory before it is watched.
			files, err := w.recursiveAdd(w.watcher, event.Name)
			if err != nil {
				w.config.Logger.Warn("failed to watch new directory", "dir", event.Name, "error", err)
				w.reportError(err)
			}
			for _, f := range files {
				w.schedule(ctx, f)
			}
			return
		}
	}

	if w.matches(event.Name) {
		w.schedule(ctx, event.Name)
	}
}

// run is the main event loop for the watcher worker.
func (w *Watcher) run(ctx context.Context) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("watcher panic: %v", recovered)
			if w.config.Logger.Enabled(ctx, slog.LevelDebug) {
				w.config.Logger.Error("watcher panic", "error", err, "stack", string(debug.Stack()))
			} else {
				w.config.Logger.Error("watcher panic", "error", err)
			}
		}
	}()
	defer w.active.Store(false)
	defer w.watcher.Close()

	err = w.loop(ctx)

	// Let in-flight handlers finish before the watcher reports stopped.
	w.debouncer.stopAndWait(5 * time.Second)
	return err
}

func (w *Watcher) loop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				if w.StopRequested || ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("watcher events channel closed")
			}
			w.processEvent(ctx, event)

		case wErr, ok := <-w.watcher.Errors:
			if !ok {
				if w.StopRequested || ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("watcher errors channel closed")
			}
			w.config.Logger.Error("fsnotify error", "error", wErr)
			w.reportError(wErr)
		}
	}
}
