package platform

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aretw0/verbatim/pkg/cloudscan"
	"github.com/aretw0/verbatim/pkg/core"
	"github.com/aretw0/verbatim/pkg/similarity"
	"github.com/aretw0/verbatim/pkg/textdiff"
)

// ConfigFileName is looked up in the vault root when no config path is given.
const ConfigFileName = "verbatim.yaml"

// Blob backends.
const (
	BlobLocal  = "local"
	BlobMemory = "memory"
	BlobS3     = "s3"
	BlobMinIO  = "minio"
	BlobNone   = "none"
)

// ErrInvalidConfig is returned when a config file holds out-of-range values.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the file-level configuration of a vault.
type Config struct {
	Similarity similarity.Config `yaml:"similarity"`
	Preview    PreviewConfig     `yaml:"preview"`
	Check      CheckConfig       `yaml:"check"`
	Server     ServerConfig      `yaml:"server"`
	Inbox      InboxConfig       `yaml:"inbox"`
	Blob       BlobConfig        `yaml:"blob"`
	Cloud      CloudConfig       `yaml:"cloud"`
}

// PreviewConfig bounds the diff previews stored with each match.
type PreviewConfig struct {
	MaxLines  int    `yaml:"max_lines"`
	MaxLength int    `yaml:"max_length"`
	Locale    string `yaml:"locale"`
	// Labels overrides the locale labels field by field.
	Labels textdiff.Labels `yaml:"labels"`
}

// CheckConfig tunes check execution.
type CheckConfig struct {
	MaxMatches  int           `yaml:"max_matches"`
	MinScore    float64       `yaml:"min_score"`
	Parallelism int           `yaml:"parallelism"`
	DiffTimeout time.Duration `yaml:"diff_timeout"`
	CloudOnly   bool          `yaml:"cloud_only"`
	Workers     int           `yaml:"workers"`
	QueueSize   int           `yaml:"queue_size"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr          string  `yaml:"addr"`
	MaxUploadMB   int64   `yaml:"max_upload_mb"`
	UploadsPerSec float64 `yaml:"uploads_per_sec"`
	UploadBurst   int     `yaml:"upload_burst"`
}

// InboxConfig configures the directory watcher.
type InboxConfig struct {
	Dir          string        `yaml:"dir"`
	Pattern      string        `yaml:"pattern"`
	Debounce     time.Duration `yaml:"debounce"`
	ScanExisting bool          `yaml:"scan_existing"`
}

// CloudConfig tunes the shared cloud folder scanner.
type CloudConfig struct {
	RequestsPerSec float64       `yaml:"requests_per_sec"`
	Burst          int           `yaml:"burst"`
	Timeout        time.Duration `yaml:"timeout"`
	YandexAPI      string        `yaml:"yandex_api"`
	MaxDownloadMB  int64         `yaml:"max_download_mb"`
}

// BlobConfig selects where original uploads are kept.
type BlobConfig struct {
	Backend  string `yaml:"backend"`
	Dir      string `yaml:"dir"`
	Compress bool   `yaml:"compress"`

	Bucket string `yaml:"bucket"`
	Prefix string `yaml:"prefix"`

	// S3
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"`

	// MinIO
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key" json:"-"`
	Secure    bool   `yaml:"secure"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() Config {
	return Config{
		Similarity: similarity.DefaultConfig(),
		Preview: PreviewConfig{
			MaxLines:  textdiff.DefaultMaxLines,
			MaxLength: textdiff.DefaultMaxLength,
			Locale:    "en",
		},
		Check: CheckConfig{
			MaxMatches:  core.DefaultMaxMatches,
			Parallelism: core.DefaultParallelism,
			DiffTimeout: textdiff.DefaultTimeout,
			Workers:     1,
			QueueSize:   64,
		},
		Server: ServerConfig{
			Addr:          "127.0.0.1:8080",
			MaxUploadMB:   32,
			UploadsPerSec: 2,
			UploadBurst:   10,
		},
		Inbox: InboxConfig{
			Pattern:  "**/*.pdf",
			Debounce: 250 * time.Millisecond,
		},
		Blob: BlobConfig{
			Backend:  BlobLocal,
			Compress: true,
			Prefix:   "originals/",
		},
		Cloud: CloudConfig{
			RequestsPerSec: cloudscan.DefaultRate,
			Burst:          cloudscan.DefaultBurst,
			Timeout:        cloudscan.DefaultTimeout,
			YandexAPI:      cloudscan.DefaultYandexAPI,
			MaxDownloadMB:  cloudscan.DefaultMaxDownload >> 20,
		},
	}
}

// LoadConfig reads a YAML config file over the defaults.
// An empty path returns the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes YAML over the defaults and validates the result.
// Unknown keys are rejected.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if len(bytes.TrimSpace(data)) == 0 {
		return cfg, nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	if err := c.Similarity.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	switch {
	case c.Preview.MaxLines < 0, c.Preview.MaxLength < 0:
		return fmt.Errorf("%w: preview limits must be non-negative", ErrInvalidConfig)
	case c.Check.MaxMatches < 0:
		return fmt.Errorf("%w: check.max_matches must be non-negative", ErrInvalidConfig)
	case c.Check.MinScore < 0 || c.Check.MinScore > 100:
		return fmt.Errorf("%w: check.min_score must be within 0..100", ErrInvalidConfig)
	case c.Check.Workers < 0, c.Check.QueueSize < 0, c.Check.Parallelism < 0:
		return fmt.Errorf("%w: check workers, queue_size and parallelism must be non-negative", ErrInvalidConfig)
	case c.Server.MaxUploadMB < 0:
		return fmt.Errorf("%w: server.max_upload_mb must be non-negative", ErrInvalidConfig)
	case c.Cloud.Timeout < 0, c.Cloud.MaxDownloadMB < 0:
		return fmt.Errorf("%w: cloud.timeout and cloud.max_download_mb must be non-negative", ErrInvalidConfig)
	}
	switch strings.ToLower(c.Blob.Backend) {
	case "", BlobLocal, BlobMemory, BlobNone:
	case BlobS3, BlobMinIO:
		if c.Blob.Bucket == "" {
			return fmt.Errorf("%w: blob.bucket is required for %s", ErrInvalidConfig, c.Blob.Backend)
		}
		if strings.EqualFold(c.Blob.Backend, BlobMinIO) && c.Blob.Endpoint == "" {
			return fmt.Errorf("%w: blob.endpoint is required for minio", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown blob backend %q", ErrInvalidConfig, c.Blob.Backend)
	}
	return nil
}

// CloudScanner builds the cloud folder scanner described by the config.
func (c Config) CloudScanner(logger *slog.Logger) *cloudscan.Scanner {
	opts := []cloudscan.Option{
		cloudscan.WithRateLimit(c.Cloud.RequestsPerSec, c.Cloud.Burst),
		cloudscan.WithYandexAPI(c.Cloud.YandexAPI),
		cloudscan.WithMaxDownload(c.Cloud.MaxDownloadMB << 20),
		cloudscan.WithLogger(logger),
	}
	if c.Cloud.Timeout > 0 {
		opts = append(opts, cloudscan.WithHTTPClient(&http.Client{Timeout: c.Cloud.Timeout}))
	}
	return cloudscan.New(opts...)
}

// Previewer builds the preview renderer described by the config.
func (c Config) Previewer() textdiff.Previewer {
	return textdiff.Previewer{
		MaxLines:  c.Preview.MaxLines,
		MaxLength: c.Preview.MaxLength,
		Labels:    c.Preview.Labels.WithDefaults(textdiff.LabelsFor(c.Preview.Locale)),
	}
}
