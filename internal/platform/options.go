package platform

import (
	"log/slog"

	"github.com/aretw0/verbatim/pkg/core"
)

// Adapter names.
const (
	AdapterFS     = "fs"
	AdapterSQLite = "sqlite"
)

// options holds the internal configuration for opening a vault.
type options struct {
	repository core.Repository
	blobs      core.BlobStore
	extractor  core.TextExtractor
	logger     *slog.Logger
	adapter    string
	config     *Config
	configPath string

	mustExist bool
	readOnly  bool
	forceTemp bool
	devSafety bool
	systemDir string
	format    string
}

// Option defines a functional option for opening a vault.
type Option func(*options)

// defaultOptions returns the default configuration.
func defaultOptions() *options {
	return &options{
		adapter:   AdapterFS,
		devSafety: true,
	}
}

// WithLogger sets the logger for every component.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithRepository injects a custom document store.
// If provided, the adapter named by WithAdapter is skipped.
func WithRepository(repo core.Repository) Option {
	return func(o *options) {
		o.repository = repo
	}
}

// WithBlobStore injects the store for original uploads, overriding the blob config.
func WithBlobStore(blobs core.BlobStore) Option {
	return func(o *options) {
		o.blobs = blobs
	}
}

// WithExtractor replaces the PDF text extractor.
func WithExtractor(e core.TextExtractor) Option {
	return func(o *options) {
		o.extractor = e
	}
}

// WithAdapter selects the storage adapter by name ("fs" or "sqlite").
// Defaults to "fs".
func WithAdapter(name string) Option {
	return func(o *options) {
		if name != "" {
			o.adapter = name
		}
	}
}

// WithConfig sets the vault configuration directly.
func WithConfig(cfg Config) Option {
	return func(o *options) {
		o.config = &cfg
	}
}

// WithConfigFile loads the configuration from a YAML file.
// Ignored when WithConfig is also given.
func WithConfigFile(path string) Option {
	return func(o *options) {
		o.configPath = path
	}
}

// WithMustExist requires the vault to exist already.
func WithMustExist(must bool) Option {
	return func(o *options) {
		o.mustExist = must
	}
}

// WithReadOnly opens the vault read-only.
// Writes return core.ErrReadOnly and the dev sandbox is bypassed.
func WithReadOnly(enabled bool) Option {
	return func(o *options) {
		o.readOnly = enabled
	}
}

// WithForceTemp re-roots the vault into the temporary directory.
func WithForceTemp(force bool) Option {
	return func(o *options) {
		o.forceTemp = force
	}
}

// WithDevSafety controls the sandbox used when running via `go run`.
// By default, writes from a dev build go to a temporary directory.
//
// CAUTION: Only disable this if you are sure your code is safe.
func WithDevSafety(enabled bool) Option {
	return func(o *options) {
		o.devSafety = enabled
	}
}

// WithSystemDir sets the hidden directory name of an fs vault.
func WithSystemDir(name string) Option {
	return func(o *options) {
		o.systemDir = name
	}
}

// WithFormat sets the file extension for new documents in an fs vault (".md" or ".json").
func WithFormat(ext string) Option {
	return func(o *options) {
		o.format = ext
	}
}
