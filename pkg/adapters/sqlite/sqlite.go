// Package sqlite stores documents and checks in a SQLite database.
//
// Document text is kept zstd-compressed; metadata and check matches are
// stored as JSON columns.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/aretw0/verbatim/pkg/blobstore"
	"github.com/aretw0/verbatim/pkg/core"
)

// timeLayout has a fixed width so text columns sort chronologically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// MemoryPath opens a process-wide in-memory database.
const MemoryPath = ":memory:"

// Config holds the configuration for the SQLite repository.
type Config struct {
	Path     string
	ReadOnly bool
	Logger   *slog.Logger
}

// Repository implements core.Repository and core.CheckRepository on SQLite.
// All methods are safe for concurrent use.
type Repository struct {
	config Config
	logger *slog.Logger

	mu sync.RWMutex
	db *sql.DB
}

// NewRepository creates a repository. The database is opened by Initialize.
func NewRepository(config Config) *Repository {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Repository{config: config, logger: logger}
}

// Open creates and initializes a repository in one step.
func Open(ctx context.Context, config Config) (*Repository, error) {
	r := NewRepository(config)
	if err := r.Initialize(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

// Initialize opens the database and creates the schema.
// Uses WAL mode for file-based databases.
func (r *Repository) Initialize(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.db != nil {
		return nil
	}
	if r.config.Path == "" {
		return errors.New("sqlite: database path is required")
	}

	connStr := r.config.Path
	memory := r.config.Path == MemoryPath
	if memory {
		// Shared cache lets every pooled connection see the same database.
		connStr = "file::memory:?cache=shared"
	}

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	if memory {
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("ping database: %w", err)
	}

	if !memory {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return fmt.Errorf("enable WAL mode: %w", err)
		}
		if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
			db.Close()
			return fmt.Errorf("set busy timeout: %w", err)
		}
	}

	if err := createTables(ctx, db); err != nil {
		db.Close()
		return fmt.Errorf("create tables: %w", err)
	}

	r.db = db
	r.logger.Debug("database initialized", "path", r.config.Path)
	return nil
}

func createTables(ctx context.Context, db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS reports (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		created_at TEXT NOT NULL,
		metadata TEXT NOT NULL DEFAULT '{}',
		content BLOB NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_reports_created ON reports(created_at DESC);

	CREATE TABLE IF NOT EXISTS checks (
		id TEXT PRIMARY KEY,
		report_id TEXT NOT NULL,
		status TEXT NOT NULL,
		similarity REAL,
		matches TEXT NOT NULL DEFAULT '[]',
		created_at TEXT NOT NULL,
		completed_at TEXT,
		error TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_checks_report ON checks(report_id, created_at DESC);
	`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	return err
}

// conn returns the open database or an error if Initialize was not called.
func (r *Repository) conn() (*sql.DB, error) {
	if r.db == nil {
		return nil, errors.New("sqlite: repository not initialized")
	}
	return r.db, nil
}

// Save inserts or replaces a document.
func (r *Repository) Save(ctx context.Context, doc core.Document) error {
	if doc.ID == "" {
		return core.ErrEmptyID
	}
	if r.config.ReadOnly {
		return core.ErrReadOnly
	}

	meta, err := json.Marshal(orEmpty(doc.Metadata))
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	db, err := r.conn()
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO reports (id, name, created_at, metadata, content)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			created_at = excluded.created_at,
			metadata = excluded.metadata,
			content = excluded.content
	`, doc.ID, doc.Name, doc.CreatedAt.UTC().Format(timeLayout), string(meta), blobstore.Compress([]byte(doc.Content)))
	if err != nil {
		return fmt.Errorf("save report %s: %w", doc.ID, err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner, withContent bool) (core.Document, error) {
	var (
		doc     core.Document
		created string
		meta    string
		content []byte
	)
	dest := []any{&doc.ID, &doc.Name, &created, &meta}
	if withContent {
		dest = append(dest, &content)
	}
	if err := row.Scan(dest...); err != nil {
		return core.Document{}, err
	}

	t, err := time.Parse(timeLayout, created)
	if err != nil {
		return core.Document{}, fmt.Errorf("report %s: invalid created_at: %w", doc.ID, err)
	}
	doc.CreatedAt = t

	doc.Metadata = make(core.Metadata)
	if err := json.Unmarshal([]byte(meta), &doc.Metadata); err != nil {
		return core.Document{}, fmt.Errorf("report %s: invalid metadata: %w", doc.ID, err)
	}

	if withContent {
		text, err := blobstore.Decompress(content)
		if err != nil {
			return core.Document{}, fmt.Errorf("report %s: %w", doc.ID, err)
		}
		doc.Content = string(text)
	}
	return doc, nil
}

// Get retrieves a document by ID.
func (r *Repository) Get(ctx context.Context, id string) (core.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	db, err := r.conn()
	if err != nil {
		return core.Document{}, err
	}

	row := db.QueryRowContext(ctx,
		`SELECT id, name, created_at, metadata, content FROM reports WHERE id = ?`, id)
	doc, err := scanDocument(row, true)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Document{}, fmt.Errorf("document %s: %w", id, core.ErrNotFound)
	}
	return doc, err
}

// List returns every document, newest first.
func (r *Repository) List(ctx context.Context) ([]core.Document, error) {
	return r.query(ctx, true)
}

// Summaries returns every document without its content, newest first.
func (r *Repository) Summaries(ctx context.Context) ([]core.Document, error) {
	return r.query(ctx, false)
}

func (r *Repository) query(ctx context.Context, withContent bool) ([]core.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	db, err := r.conn()
	if err != nil {
		return nil, err
	}

	cols := "id, name, created_at, metadata"
	if withContent {
		cols += ", content"
	}
	rows, err := db.QueryContext(ctx, "SELECT "+cols+" FROM reports ORDER BY created_at DESC")
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	var docs []core.Document
	for rows.Next() {
		doc, err := scanDocument(rows, withContent)
		if err != nil {
			r.logger.Warn("skipping unreadable report", "error", err)
			continue
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// Delete removes a document.
func (r *Repository) Delete(ctx context.Context, id string) error {
	if r.config.ReadOnly {
		return core.ErrReadOnly
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	db, err := r.conn()
	if err != nil {
		return err
	}

	res, err := db.ExecContext(ctx, "DELETE FROM reports WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete report %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("document %s: %w", id, core.ErrNotFound)
	}
	return nil
}

func orEmpty(m core.Metadata) core.Metadata {
	if m == nil {
		return core.Metadata{}
	}
	return m
}

var (
	_ core.Repository      = (*Repository)(nil)
	_ core.Summarizer      = (*Repository)(nil)
	_ core.CheckRepository = (*Repository)(nil)
)
