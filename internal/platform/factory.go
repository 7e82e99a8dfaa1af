package platform

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/introspection"

	"github.com/aretw0/verbatim/pkg/adapters/fs"
	"github.com/aretw0/verbatim/pkg/adapters/sqlite"
	"github.com/aretw0/verbatim/pkg/blobstore"
	miniostore "github.com/aretw0/verbatim/pkg/blobstore/minio"
	s3store "github.com/aretw0/verbatim/pkg/blobstore/s3"
	"github.com/aretw0/verbatim/pkg/core"
	"github.com/aretw0/verbatim/pkg/matchindex"
	"github.com/aretw0/verbatim/pkg/pdftext"
	"github.com/aretw0/verbatim/pkg/similarity"
)

// DefaultDatabase is the file name used when the sqlite adapter is given a directory.
const DefaultDatabase = "verbatim.db"

// Vault is an opened document store with its service and supporting components.
type Vault struct {
	// Root is the directory holding the vault (or the database file).
	Root string
	// SystemPath holds the peer index and local originals.
	SystemPath string
	Adapter    string
	Config     Config

	Service    *core.Service
	Repository core.Repository
	Peers      *matchindex.Index
	Blobs      core.BlobStore

	logger  *slog.Logger
	closers []func() error
}

// New opens the vault at uri. The URI is adapter-specific: a directory for
// "fs", a database file (or directory) for "sqlite".
//
//	vault, err := platform.New("./reports", platform.WithAdapter("sqlite"))
func New(uri string, opts ...Option) (*Vault, error) {
	return Open(context.Background(), uri, opts...)
}

// Open is New with a context for the network calls some blob backends make.
func Open(ctx context.Context, uri string, opts ...Option) (*Vault, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	v := &Vault{Adapter: o.adapter, logger: o.logger}
	ok := false
	defer func() {
		if !ok {
			_ = v.Close()
		}
	}()

	if err := v.openRepository(ctx, uri, o); err != nil {
		return nil, err
	}

	cfg, err := resolveConfig(o, v.Root)
	if err != nil {
		return nil, err
	}
	v.Config = cfg

	ranker, err := similarity.NewRanker(cfg.Similarity)
	if err != nil {
		return nil, err
	}

	v.Peers = matchindex.Open(v.SystemPath)

	v.Blobs = o.blobs
	if v.Blobs == nil {
		if v.Blobs, err = openBlobs(ctx, cfg.Blob, v.SystemPath); err != nil {
			return nil, err
		}
	}
	if o.readOnly && v.Blobs != nil {
		v.Blobs = readOnlyBlobs{v.Blobs}
	}

	extractor := o.extractor
	if extractor == nil {
		extractor = pdftext.Extractor{}
	}

	svcOpts := []core.Option{
		core.WithLogger(o.logger),
		core.WithRanker(ranker),
		core.WithPreviewer(cfg.Previewer()),
		core.WithDiffTimeout(cfg.Check.DiffTimeout),
		core.WithMaxMatches(cfg.Check.MaxMatches),
		core.WithMinScore(cfg.Check.MinScore),
		core.WithParallelism(cfg.Check.Parallelism),
		core.WithCloudOnly(cfg.Check.CloudOnly),
		core.WithPeerIndex(v.Peers),
		core.WithExtractor(extractor),
		core.WithCloudScanner(cfg.CloudScanner(o.logger)),
	}
	if v.Blobs != nil {
		svcOpts = append(svcOpts, core.WithBlobStore(v.Blobs))
	}
	v.Service = core.NewService(v.Repository, svcOpts...)

	o.logger.Debug("vault opened", "adapter", v.Adapter, "root", v.Root, "system", v.SystemPath)
	ok = true
	return v, nil
}

func (v *Vault) openRepository(ctx context.Context, uri string, o *options) error {
	if o.repository != nil {
		v.Repository = o.repository
		v.Root = ResolveVaultPath(uri, false)
		v.SystemPath = filepath.Join(v.Root, systemDir(o))
		if err := os.MkdirAll(v.SystemPath, 0o755); err != nil {
			return err
		}
		return v.Repository.Initialize(ctx)
	}

	switch o.adapter {
	case AdapterFS:
		return v.openFS(ctx, uri, o)
	case AdapterSQLite:
		return v.openSQLite(ctx, uri, o)
	default:
		return fmt.Errorf("unknown adapter: %s", o.adapter)
	}
}

func (v *Vault) openFS(ctx context.Context, uri string, o *options) error {
	path := v.resolvePath(uri, o)
	repo := fs.NewRepository(fs.Config{
		Path:      path,
		MustExist: o.mustExist,
		ReadOnly:  o.readOnly,
		Logger:    o.logger,
		SystemDir: o.systemDir,
		Format:    o.format,
	})
	if err := repo.Initialize(ctx); err != nil {
		return err
	}
	v.Repository = repo
	v.Root = path
	v.SystemPath = repo.SystemPath()
	return nil
}

func (v *Vault) openSQLite(ctx context.Context, uri string, o *options) error {
	if uri == "" || uri == sqlite.MemoryPath {
		dir, err := os.MkdirTemp("", "verbatim-mem-*")
		if err != nil {
			return err
		}
		v.closers = append(v.closers, func() error { return os.RemoveAll(dir) })
		v.Root = dir
		v.SystemPath = dir
		return v.attachSQLite(ctx, sqlite.MemoryPath, o)
	}

	path := v.resolvePath(uri, o)
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		path = filepath.Join(path, DefaultDatabase)
	}
	if o.mustExist || o.readOnly {
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("database does not exist: %s", path)
		}
	}
	v.Root = filepath.Dir(path)
	v.SystemPath = filepath.Join(v.Root, systemDir(o))
	if !o.readOnly {
		if err := os.MkdirAll(v.SystemPath, 0o755); err != nil {
			return err
		}
	}
	return v.attachSQLite(ctx, path, o)
}

func (v *Vault) attachSQLite(ctx context.Context, path string, o *options) error {
	repo, err := sqlite.Open(ctx, sqlite.Config{Path: path, ReadOnly: o.readOnly, Logger: o.logger})
	if err != nil {
		return err
	}
	v.Repository = repo
	v.closers = append(v.closers, repo.Close)
	return nil
}

// resolvePath applies the dev sandbox. Read-only vaults always use the real path.
func (v *Vault) resolvePath(uri string, o *options) string {
	bypass := o.readOnly || !o.devSafety
	dev := IsDevRun()
	path := ResolveVaultPath(uri, o.forceTemp || (dev && !bypass))
	if dev {
		switch {
		case o.readOnly:
			o.logger.Debug("running in read-only mode (bypassing dev sandbox)", "path", path)
		case bypass:
			o.logger.Warn("running in unsafe mode (bypassing dev sandbox)", "path", path)
		default:
			o.logger.Debug("running in safe mode (dev sandbox enabled)", "path", path)
		}
	}
	return path
}

func systemDir(o *options) string {
	if o.systemDir != "" {
		return o.systemDir
	}
	return fs.DefaultSystemDir
}

func resolveConfig(o *options, root string) (Config, error) {
	if o.config != nil {
		cfg := *o.config
		return cfg, cfg.Validate()
	}
	path := o.configPath
	if path == "" {
		candidate := filepath.Join(root, ConfigFileName)
		if exists(candidate) {
			path = candidate
		}
	}
	return LoadConfig(path)
}

func openBlobs(ctx context.Context, cfg BlobConfig, systemPath string) (core.BlobStore, error) {
	var store blobstore.Store
	switch strings.ToLower(cfg.Backend) {
	case BlobNone:
		return nil, nil
	case BlobMemory:
		store = blobstore.NewMemoryStore()
	case "", BlobLocal:
		dir := cfg.Dir
		if dir == "" {
			dir = filepath.Join(systemPath, "originals")
		}
		store = blobstore.NewLocalStore(dir)
	case BlobS3:
		s, err := s3store.NewFromDefaultConfig(ctx, cfg.Bucket, cfg.Prefix, cfg.Region, cfg.Endpoint)
		if err != nil {
			return nil, err
		}
		store = s
	case BlobMinIO:
		s, err := miniostore.Dial(cfg.Endpoint, cfg.AccessKey, cfg.SecretKey, cfg.Secure, cfg.Bucket, cfg.Prefix)
		if err != nil {
			return nil, err
		}
		if err := s.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		store = s
	default:
		return nil, fmt.Errorf("%w: unknown blob backend %q", ErrInvalidConfig, cfg.Backend)
	}
	if cfg.Compress {
		store = blobstore.NewCompressedStore(store)
	}
	return store, nil
}

// readOnlyBlobs rejects writes to the wrapped store.
type readOnlyBlobs struct {
	core.BlobStore
}

func (readOnlyBlobs) Put(context.Context, string, []byte) error { return core.ErrReadOnly }
func (readOnlyBlobs) Delete(context.Context, string) error      { return core.ErrReadOnly }

// Close releases the database connection and temporary directories.
func (v *Vault) Close() error {
	var errs []error
	for i := len(v.closers) - 1; i >= 0; i-- {
		if err := v.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	v.closers = nil
	return errors.Join(errs...)
}

// VaultState aggregates the state of the vault components.
type VaultState struct {
	Adapter    string `json:"adapter"`
	Root       string `json:"root"`
	Service    any    `json:"service"`
	Repository any    `json:"repository,omitempty"`
	Peers      any    `json:"peers,omitempty"`
	Blobs      string `json:"blobs,omitempty"`
}

// State implements introspection.Introspectable.
func (v *Vault) State() any {
	st := VaultState{
		Adapter: v.Adapter,
		Root:    v.Root,
		Service: v.Service.State(),
		Peers:   v.Peers.State(),
	}
	if in, ok := v.Repository.(introspection.Introspectable); ok {
		st.Repository = in.State()
	}
	switch b := v.Blobs.(type) {
	case nil:
	case introspection.Component:
		st.Blobs = b.ComponentType()
	case readOnlyBlobs:
		st.Blobs = "read-only"
		if c, ok := b.BlobStore.(introspection.Component); ok {
			st.Blobs = c.ComponentType() + " (read-only)"
		}
	default:
		st.Blobs = "custom"
	}
	return st
}

// ComponentType implements introspection.Component.
func (v *Vault) ComponentType() string {
	return "vault"
}

var _ introspection.Introspectable = (*Vault)(nil)
