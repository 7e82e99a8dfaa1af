package verbatim

import (
	"context"
	"log/slog"

	"github.com/aretw0/verbatim/internal/platform"
	"github.com/aretw0/verbatim/pkg/core"
)

// --- Types ---

// Vault is an opened document store with its check service.
type Vault = platform.Vault

// Config is the YAML-backed vault configuration.
type Config = platform.Config

// Option configures how a vault is opened.
type Option = platform.Option

// Adapter names accepted by WithAdapter.
const (
	AdapterFS     = platform.AdapterFS
	AdapterSQLite = platform.AdapterSQLite
)

// --- Configuration ---

// WithLogger sets the logger for every component.
func WithLogger(logger *slog.Logger) Option {
	return platform.WithLogger(logger)
}

// WithAdapter selects the storage adapter ("fs" or "sqlite").
func WithAdapter(name string) Option {
	return platform.WithAdapter(name)
}

// WithRepository injects a custom document store.
func WithRepository(repo core.Repository) Option {
	return platform.WithRepository(repo)
}

// WithBlobStore injects the store for original uploads.
func WithBlobStore(blobs core.BlobStore) Option {
	return platform.WithBlobStore(blobs)
}

// WithExtractor replaces the PDF text extractor.
func WithExtractor(e core.TextExtractor) Option {
	return platform.WithExtractor(e)
}

// WithConfig sets the configuration directly.
func WithConfig(cfg Config) Option {
	return platform.WithConfig(cfg)
}

// WithConfigFile loads the configuration from a YAML file.
func WithConfigFile(path string) Option {
	return platform.WithConfigFile(path)
}

// WithMustExist requires the vault to exist already.
func WithMustExist(must bool) Option {
	return platform.WithMustExist(must)
}

// WithReadOnly opens the vault read-only.
func WithReadOnly(enabled bool) Option {
	return platform.WithReadOnly(enabled)
}

// WithForceTemp re-roots the vault into the temporary directory (useful for testing).
func WithForceTemp(force bool) Option {
	return platform.WithForceTemp(force)
}

// WithDevSafety controls the sandbox used when running via `go run`.
func WithDevSafety(enabled bool) Option {
	return platform.WithDevSafety(enabled)
}

// WithSystemDir sets the hidden directory name (e.g. ".verbatim").
func WithSystemDir(name string) Option {
	return platform.WithSystemDir(name)
}

// WithFormat sets the file extension for new documents in an fs vault.
func WithFormat(ext string) Option {
	return platform.WithFormat(ext)
}

// --- Factory ---

// New opens the vault at uri.
func New(uri string, opts ...Option) (*Vault, error) {
	return platform.New(uri, opts...)
}

// Open is New with a context for blob backends that dial out.
func Open(ctx context.Context, uri string, opts ...Option) (*Vault, error) {
	return platform.Open(ctx, uri, opts...)
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() Config {
	return platform.DefaultConfig()
}

// LoadConfig reads a YAML config file over the defaults.
func LoadConfig(path string) (Config, error) {
	return platform.LoadConfig(path)
}

// --- Safety & Utils ---

// ResolveVaultPath determines the actual path for the vault based on safety rules.
func ResolveVaultPath(userPath string, forceTemp bool) string {
	return platform.ResolveVaultPath(userPath, forceTemp)
}

// IsDevRun checks if the current process is running via `go run` or `go test`.
func IsDevRun() bool {
	return platform.IsDevRun()
}

// FindVaultRoot looks upwards for a .verbatim directory or verbatim.yaml file.
func FindVaultRoot(startDir string) (string, error) {
	return platform.FindRoot(startDir)
}
