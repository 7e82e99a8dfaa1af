// Package fs stores documents as files in a vault directory: one Markdown
// (or JSON) file per document plus a system directory holding the metadata
// cache and check results.
package fs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aretw0/verbatim/internal/fsutil"
	"github.com/aretw0/verbatim/pkg/core"
)

// DefaultSystemDir is the vault subdirectory holding non-document state.
const DefaultSystemDir = ".verbatim"

// Repository implements core.Repository and core.CheckRepository using the filesystem.
type Repository struct {
	Path        string
	cache       *cache
	config      Config
	serializers map[string]Serializer

	mu       sync.RWMutex // guards file writes
	readOnly bool
	lastScan atomic.Pointer[time.Time]
}

// Config holds the configuration for the filesystem repository.
type Config struct {
	Path      string
	MustExist bool
	ReadOnly  bool
	Logger    *slog.Logger
	SystemDir string // e.g. ".verbatim"
	// Format is the extension used for new documents (".md" or ".json").
	Format string
}

// NewRepository creates a new filesystem-backed repository.
func NewRepository(config Config) *Repository {
	if config.SystemDir == "" {
		config.SystemDir = DefaultSystemDir
	}
	if config.Format == "" {
		config.Format = ".md"
	}
	if !strings.HasPrefix(config.Format, ".") {
		config.Format = "." + config.Format
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Repository{
		Path:        config.Path,
		config:      config,
		cache:       newCache(config.Path, config.SystemDir),
		serializers: DefaultSerializers(),
		readOnly:    config.ReadOnly,
	}
}

// RegisterSerializer adds or replaces the serializer for an extension.
func (r *Repository) RegisterSerializer(ext string, s Serializer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.serializers[ext] = s
}

// SystemPath returns the absolute path of the system directory.
func (r *Repository) SystemPath() string {
	return filepath.Join(r.Path, r.config.SystemDir)
}

// Initialize creates the vault and system directories.
func (r *Repository) Initialize(ctx context.Context) error {
	if r.config.MustExist || r.readOnly {
		info, err := os.Stat(r.Path)
		if os.IsNotExist(err) {
			return fmt.Errorf("vault path does not exist: %s", r.Path)
		}
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return fmt.Errorf("vault path is not a directory: %s", r.Path)
		}
	} else if err := os.MkdirAll(r.Path, 0o755); err != nil {
		return fmt.Errorf("failed to create vault directory: %w", err)
	}

	if r.readOnly {
		return nil
	}
	if err := os.MkdirAll(r.checksDir(), 0o755); err != nil {
		return fmt.Errorf("failed to create system directory: %w", err)
	}
	return nil
}

// validateID rejects IDs that would escape the vault or collide with system files.
func validateID(id string) error {
	if id == "" {
		return core.ErrEmptyID
	}
	if strings.ContainsAny(id, `/\`) || strings.HasPrefix(id, ".") || id != strings.TrimSpace(id) {
		return fmt.Errorf("invalid document id %q", id)
	}
	return nil
}

// locate finds the file holding a document, trying each known extension.
func (r *Repository) locate(id string) (path, ext string, err error) {
	exts := make([]string, 0, len(r.serializers))
	exts = append(exts, r.config.Format)
	for e := range r.serializers {
		if e != r.config.Format {
			exts = append(exts, e)
		}
	}
	sort.Strings(exts[1:])

	for _, e := range exts {
		p := filepath.Join(r.Path, id+e)
		if _, err := os.Stat(p); err == nil {
			return p, e, nil
		}
	}
	return "", "", fmt.Errorf("document %s: %w", id, core.ErrNotFound)
}

// Save persists a document, replacing any previous version.
// A document stored in another format is rewritten in its current format.
func (r *Repository) Save(ctx context.Context, doc core.Document) error {
	if err := validateID(doc.ID); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.readOnly {
		return core.ErrReadOnly
	}

	ext := r.config.Format
	if _, existing, err := r.locate(doc.ID); err == nil {
		ext = existing
	}
	ser, ok := r.serializers[ext]
	if !ok {
		return fmt.Errorf("no serializer for %s", ext)
	}

	data, err := ser.Serialize(doc)
	if err != nil {
		return fmt.Errorf("failed to serialize document: %w", err)
	}

	fullPath := filepath.Join(r.Path, doc.ID+ext)
	if err := fsutil.WriteFileAtomic(fullPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	if info, err := os.Stat(fullPath); err == nil {
		r.cache.Set(doc.ID+ext, entryFor(doc, info.ModTime()))
	}
	r.config.Logger.Debug("document saved", "id", doc.ID, "path", fullPath)
	return nil
}

// Get retrieves a document from the filesystem.
func (r *Repository) Get(ctx context.Context, id string) (core.Document, error) {
	if err := validateID(id); err != nil {
		return core.Document{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	path, ext, err := r.locate(id)
	if err != nil {
		return core.Document{}, err
	}
	return r.read(path, ext, id)
}

func (r *Repository) read(path, ext, id string) (core.Document, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return core.Document{}, fmt.Errorf("document %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Document{}, err
	}

	ser, ok := r.serializers[ext]
	if !ok {
		return core.Document{}, fmt.Errorf("no serializer for %s", ext)
	}
	doc, err := ser.Parse(bytes.NewReader(data))
	if err != nil {
		return core.Document{}, fmt.Errorf("failed to parse document %s: %w", id, err)
	}
	doc.ID = id
	if doc.Name == "" {
		doc.Name = id
	}
	if doc.CreatedAt.IsZero() {
		if info, err := os.Stat(path); err == nil {
			doc.CreatedAt = info.ModTime().UTC()
		}
	}
	return *doc, nil
}

// scan walks the vault root and calls fn for each document file.
func (r *Repository) scan(fn func(file, ext, id string, mtime time.Time) error) error {
	entries, err := os.ReadDir(r.Path)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() || fsutil.IsTemp(e.Name()) {
			continue
		}
		ext := filepath.Ext(e.Name())
		if _, ok := r.serializers[ext]; !ok {
			continue
		}
		id := strings.TrimSuffix(e.Name(), ext)
		if validateID(id) != nil {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if err := fn(e.Name(), ext, id, info.ModTime()); err != nil {
			return err
		}
	}
	return nil
}

// List returns every document with its content. Unparseable files are skipped.
func (r *Repository) List(ctx context.Context) ([]core.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_ = r.cache.Load()
	seen := make(map[string]bool)
	var docs []core.Document

	err := r.scan(func(file, ext, id string, mtime time.Time) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		doc, err := r.read(filepath.Join(r.Path, file), ext, id)
		if err != nil {
			r.config.Logger.Warn("skipping unreadable document", "file", file, "error", err)
			return nil
		}
		seen[file] = true
		if _, hit := r.cache.Get(file, mtime); !hit {
			r.cache.Set(file, entryFor(doc, mtime))
		}
		docs = append(docs, doc)
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.finishScan(seen)
	return docs, nil
}

// Summaries lists documents without content, serving unchanged files from the
// metadata cache.
//
// Strategy:
//  1. Load the cache index from disk.
//  2. For each document file, check for a cache hit (based on mtime).
//  3. On a miss, parse the file and update the cache.
//  4. Save the cache back to disk.
func (r *Repository) Summaries(ctx context.Context) ([]core.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_ = r.cache.Load()
	seen := make(map[string]bool)
	var docs []core.Document

	err := r.scan(func(file, ext, id string, mtime time.Time) error {
		if entry, hit := r.cache.Get(file, mtime); hit {
			seen[file] = true
			docs = append(docs, entry.document())
			return nil
		}
		doc, err := r.read(filepath.Join(r.Path, file), ext, id)
		if err != nil {
			return nil
		}
		seen[file] = true
		r.cache.Set(file, entryFor(doc, mtime))
		doc.Content = ""
		docs = append(docs, doc)
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.finishScan(seen)
	return docs, nil
}

func (r *Repository) finishScan(seen map[string]bool) {
	r.cache.Prune(seen)
	if !r.readOnly {
		if err := r.cache.Save(); err != nil {
			r.config.Logger.Warn("failed to save cache", "error", err)
		}
	}
	now := time.Now()
	r.lastScan.Store(&now)
}

// Delete removes a document.
func (r *Repository) Delete(ctx context.Context, id string) error {
	if err := validateID(id); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.readOnly {
		return core.ErrReadOnly
	}

	path, ext, err := r.locate(id)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("failed to remove file: %w", err)
	}
	r.cache.Delete(id + ext)
	if err := r.cache.Save(); err != nil {
		r.config.Logger.Warn("failed to save cache", "error", err)
	}
	return nil
}

var (
	_ core.Repository      = (*Repository)(nil)
	_ core.Summarizer      = (*Repository)(nil)
	_ core.CheckRepository = (*Repository)(nil)
)
