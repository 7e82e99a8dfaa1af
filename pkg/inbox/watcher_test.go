package inbox

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/verbatim/pkg/core"
)

type recorder struct {
	mu    sync.Mutex
	calls map[string]int
	fail  error
}

func newRecorder() *recorder {
	return &recorder{calls: make(map[string]int)}
}

func (r *recorder) handle(ctx context.Context, path, rel string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls[rel]++
	return r.fail
}

func (r *recorder) count(rel string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[rel]
}

func (r *recorder) total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		n += c
	}
	return n
}

func startWatcher(t *testing.T, cfg Config) *Watcher {
	t.Helper()
	if cfg.Debounce == 0 {
		cfg.Debounce = 30 * time.Millisecond
	}
	w, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = w.Stop(ctx)
	})
	return w
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{Handler: newRecorder().handle})
	assert.Error(t, err)

	_, err = New(Config{Dir: t.TempDir()})
	assert.Error(t, err)

	_, err = New(Config{Dir: t.TempDir(), Handler: newRecorder().handle, Pattern: "[unclosed"})
	assert.Error(t, err)

	w, err := New(Config{Dir: t.TempDir(), Handler: newRecorder().handle})
	require.NoError(t, err)
	assert.Equal(t, DefaultPattern, w.config.Pattern)
	assert.Equal(t, DefaultDebounce, w.config.Debounce)
}

func TestMatches(t *testing.T) {
	dir := t.TempDir()
	w, err := New(Config{Dir: dir, Handler: newRecorder().handle})
	require.NoError(t, err)

	assert.True(t, w.matches(filepath.Join(w.config.Dir, "a.pdf")))
	assert.True(t, w.matches(filepath.Join(w.config.Dir, "group", "b.pdf")))
	assert.False(t, w.matches(filepath.Join(w.config.Dir, "a.txt")))
	assert.False(t, w.matches(filepath.Join(w.config.Dir, ".hidden.pdf")))
	assert.False(t, w.matches(filepath.Join(w.config.Dir, "~$lock.pdf")))
	assert.False(t, w.matches(filepath.Join(filepath.Dir(w.config.Dir), "outside.pdf")))
}

func TestWatcher_DebouncesWrites(t *testing.T) {
	dir := t.TempDir()
	rec := newRecorder()
	w := startWatcher(t, Config{Dir: dir, Handler: rec.handle, Debounce: 100 * time.Millisecond})

	path := filepath.Join(dir, "report.pdf")
	f, err := os.Create(path)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		_, err := f.WriteString("chunk ")
		require.NoError(t, err)
		time.Sleep(10 * time.Millisecond)
	}
	require.NoError(t, f.Close())

	require.Eventually(t, func() bool { return rec.count("report.pdf") == 1 }, 3*time.Second, 10*time.Millisecond)
	time.Sleep(250 * time.Millisecond)
	assert.Equal(t, 1, rec.count("report.pdf"))

	// Non-matching files are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	time.Sleep(250 * time.Millisecond)
	assert.Equal(t, 1, rec.total())

	st := w.Stats()
	assert.True(t, st.Active)
	assert.Equal(t, 1, st.Handled)
	assert.NotNil(t, st.LastEvent)
}

func TestWatcher_NewSubdirectory(t *testing.T) {
	dir := t.TempDir()
	rec := newRecorder()
	startWatcher(t, Config{Dir: dir, Handler: rec.handle})

	sub := filepath.Join(dir, "group-1")
	require.NoError(t, os.Mkdir(sub, 0o755))
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(sub, "lab.pdf"), []byte("data"), 0o644))

	require.Eventually(t, func() bool { return rec.count("group-1/lab.pdf") == 1 }, 3*time.Second, 10*time.Millisecond)
}

func TestWatcher_ScanExisting(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nested", "old.pdf"), []byte("data"), 0o644))

	rec := newRecorder()
	startWatcher(t, Config{Dir: dir, Handler: rec.handle, ScanExisting: true})

	require.Eventually(t, func() bool { return rec.count("nested/old.pdf") == 1 }, 3*time.Second, 10*time.Millisecond)
}

func TestWatcher_HandlerErrors(t *testing.T) {
	dir := t.TempDir()
	rec := newRecorder()
	rec.fail = errors.New("boom")

	var mu sync.Mutex
	var reported []error
	w := startWatcher(t, Config{Dir: dir, Handler: rec.handle, ErrorHandler: func(err error) {
		mu.Lock()
		defer mu.Unlock()
		reported = append(reported, err)
	}})

	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.pdf"), []byte("x"), 0o644))
	require.Eventually(t, func() bool { return w.Stats().Failed == 1 }, 3*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, reported, 1)
	assert.ErrorContains(t, reported[0], "bad.pdf")
}

func TestWatcher_StartTwice(t *testing.T) {
	w := startWatcher(t, Config{Dir: t.TempDir(), Handler: newRecorder().handle})
	assert.Error(t, w.Start(context.Background()))
}

func TestSupervise_RestartsWatcher(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	created := make(chan *Watcher, 4)
	sup := Supervise(Config{Dir: t.TempDir(), Handler: newRecorder().handle, Debounce: 20 * time.Millisecond},
		func(w *Watcher) { created <- w })
	require.NoError(t, sup.Start(ctx))

	var first *Watcher
	select {
	case first = <-created:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for first watcher")
	}
	require.Eventually(t, func() bool { return first.Stats().Active }, 2*time.Second, 10*time.Millisecond)

	// Closing the underlying watcher makes the loop fail and triggers a restart.
	_ = first.watcher.Close()

	select {
	case second := <-created:
		assert.NotSame(t, first, second)
	case <-time.After(3 * time.Second):
		t.Fatal("expected supervisor to restart watcher with a new instance")
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer stopCancel()
	require.NoError(t, sup.Stop(stopCtx))
}

type fakeIngester struct {
	mu   sync.Mutex
	docs []core.Document
}

func (f *fakeIngester) Ingest(ctx context.Context, name, text string, meta core.Metadata) (core.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc := core.Document{ID: name, Name: name, Content: text, Metadata: meta}
	f.docs = append(f.docs, doc)
	return doc, nil
}

func (f *fakeIngester) IngestPDF(ctx context.Context, name string, data []byte, meta core.Metadata) (core.Document, error) {
	return core.Document{}, errors.New("not a pdf")
}

type fakeQueue struct{ ids []string }

func (q *fakeQueue) Enqueue(ctx context.Context, documentID string) (core.Check, error) {
	q.ids = append(q.ids, documentID)
	return core.Check{ID: "c-" + documentID, DocumentID: documentID, Status: core.CheckQueued}, nil
}

func TestIngestHandler(t *testing.T) {
	dir := t.TempDir()
	txt := filepath.Join(dir, "essay.txt")
	require.NoError(t, os.WriteFile(txt, []byte("plain essay text"), 0o644))
	pdf := filepath.Join(dir, "scan.pdf")
	require.NoError(t, os.WriteFile(pdf, []byte("not really"), 0o644))

	svc := &fakeIngester{}
	queue := &fakeQueue{}
	handler := IngestHandler(svc, queue)

	require.NoError(t, handler(context.Background(), txt, "essay.txt"))
	require.Len(t, svc.docs, 1)
	assert.Equal(t, "essay", svc.docs[0].Name)
	assert.Equal(t, "plain essay text", svc.docs[0].Content)
	assert.Equal(t, "essay.txt", svc.docs[0].Metadata[MetaSource])
	assert.Equal(t, []string{"essay"}, queue.ids)

	err := handler(context.Background(), pdf, "scan.pdf")
	assert.ErrorContains(t, err, "not a pdf")
	assert.Len(t, queue.ids, 1)

	assert.NoError(t, IngestHandler(svc, nil)(context.Background(), txt, "essay.txt"))
}
