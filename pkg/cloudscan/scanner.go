// Package cloudscan lists and downloads the PDFs shared in a public cloud
// folder. Yandex Disk folders are walked through the public resources API;
// any other link is fetched and read as a PDF, a JSON file list or an HTML
// page with PDF links.
//
// Every outbound request waits on a shared rate limiter.
package cloudscan

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/aretw0/verbatim/pkg/core"
)

// Defaults.
const (
	DefaultYandexAPI   = "https://cloud-api.yandex.net/v1/disk/public/resources"
	DefaultRate        = 2 // requests per second
	DefaultBurst       = 4
	DefaultTimeout     = 30 * time.Second
	DefaultMaxDownload = 64 << 20

	maxListing = 8 << 20
	userAgent  = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"
	acceptPage = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
	acceptPDF  = "application/pdf,application/octet-stream;q=0.9,*/*;q=0.8"
)

// Scanner implements core.CloudScanner over HTTP.
type Scanner struct {
	client      *http.Client
	limiter     *rate.Limiter
	yandexAPI   string
	maxDownload int64
	logger      *slog.Logger
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Scanner) {
		if c != nil {
			s.client = c
		}
	}
}

// WithRateLimit sets the outbound request rate (per second) and burst.
// A non-positive rate disables throttling.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(s *Scanner) {
		if perSecond <= 0 {
			s.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithYandexAPI points the scanner at another Yandex Disk public resources endpoint.
func WithYandexAPI(base string) Option {
	return func(s *Scanner) {
		if base != "" {
			s.yandexAPI = strings.TrimRight(base, "/")
		}
	}
}

// WithMaxDownload caps the size of a downloaded PDF in bytes.
func WithMaxDownload(n int64) Option {
	return func(s *Scanner) {
		if n > 0 {
			s.maxDownload = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scanner) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a Scanner.
func New(opts ...Option) *Scanner {
	s := &Scanner{
		client:      &http.Client{Timeout: DefaultTimeout},
		limiter:     rate.NewLimiter(rate.Limit(DefaultRate), DefaultBurst),
		yandexAPI:   DefaultYandexAPI,
		maxDownload: DefaultMaxDownload,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List implements core.CloudScanner.
func (s *Scanner) List(ctx context.Context, link string) ([]core.CloudResource, error) {
	if isYandexDisk(link) {
		return s.listYandex(ctx, link)
	}

	resp, err := s.get(ctx, link, acceptPage)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: failed to fetch the folder listing (status %d)", core.ErrCloudScan, resp.StatusCode)
	}

	final := link
	if resp.Request != nil && resp.Request.URL != nil {
		final = resp.Request.URL.String()
	}
	contentType := strings.ToLower(resp.Header.Get("Content-Type"))

	switch {
	case strings.Contains(contentType, "application/pdf") || pdfLink.MatchString(final):
		data, err := readLimited(resp.Body, s.maxDownload)
		if err != nil {
			return nil, err
		}
		return []core.CloudResource{{Name: guessFileName(final), URL: final, Data: data}}, nil
	case strings.Contains(contentType, "application/json") || strings.Contains(contentType, "text/json"):
		body, err := readLimited(resp.Body, maxListing)
		if err != nil {
			return nil, err
		}
		return parseJSONListing(final, body)
	default:
		body, err := readLimited(resp.Body, maxListing)
		if err != nil {
			return nil, err
		}
		return parseHTMLListing(final, body)
	}
}

// Download implements core.CloudScanner.
func (s *Scanner) Download(ctx context.Context, res core.CloudResource) ([]byte, error) {
	if res.Data != nil {
		return res.Data, nil
	}
	if res.URL == "" {
		return nil, fmt.Errorf("%w: no download link for %q", core.ErrCloudScan, res.Name)
	}

	resp, err := s.get(ctx, res.URL, acceptPDF)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: failed to download %q (status %d)", core.ErrCloudScan, res.Name, resp.StatusCode)
	}
	contentType := strings.ToLower(resp.Header.Get("Content-Type"))
	if !strings.Contains(contentType, "application/pdf") && !pdfLink.MatchString(res.URL) {
		return nil, fmt.Errorf("%w: %q is not a PDF", core.ErrCloudScan, res.Name)
	}
	data, err := readLimited(resp.Body, s.maxDownload)
	if err != nil {
		return nil, fmt.Errorf("failed to download %q: %w", res.Name, err)
	}
	s.logger.Debug("cloud file downloaded", "name", res.Name, "bytes", len(data))
	return data, nil
}

func (s *Scanner) get(ctx context.Context, url, accept string) (*http.Response, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrCloudScan, err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", accept)

	resp, err := s.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("request cancelled: %w", ctx.Err())
		}
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}

func readLimited(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: response exceeds %d bytes", core.ErrCloudScan, limit)
	}
	return data, nil
}

var _ core.CloudScanner = (*Scanner)(nil)
