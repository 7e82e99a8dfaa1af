package core

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// CloudHosts lists the cloud storage domains accepted by NormalizeCloudLink.
// Subdomains of a listed domain are accepted as well.
var CloudHosts = []string{
	"disk.yandex.ru",
	"yadi.sk",
	"cloud.mail.ru",
	"drive.google.com",
	"docs.google.com",
	"dropbox.com",
	"onedrive.live.com",
	"sharepoint.com",
	"mega.nz",
}

// IsCloudHost reports whether hostname belongs to a supported cloud storage.
func IsCloudHost(hostname string) bool {
	host := strings.ToLower(hostname)
	for _, domain := range CloudHosts {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}

// NormalizeCloudLink validates a link to a cloud folder and returns it in canonical form.
func NormalizeCloudLink(raw string) (string, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return "", fmt.Errorf("%w: link is required", ErrInvalidCloudLink)
	}

	u, err := url.Parse(value)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidCloudLink, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: scheme must be http or https", ErrInvalidCloudLink)
	}
	if !IsCloudHost(u.Hostname()) {
		return "", fmt.Errorf("%w: unsupported host %q", ErrInvalidCloudLink, u.Hostname())
	}
	u.Host = strings.ToLower(u.Host)
	if u.Path == "" {
		u.Path = "/"
	}
	return u.String(), nil
}

// CloudResource is a PDF listed in a shared cloud folder. Data is set when the
// folder link itself served the PDF.
type CloudResource struct {
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`
	Data []byte `json:"-"`
}

// CloudStatus tells how a listed cloud file relates to the stored reports.
type CloudStatus string

const (
	// CloudNew files have no stored report.
	CloudNew CloudStatus = "new"
	// CloudExisting files have a report already marked as added to the cloud.
	CloudExisting CloudStatus = "existing"
	// CloudPending files have a report that is not marked yet.
	CloudPending CloudStatus = "pending"
)

// CloudPreviewItem is one file of an inspected cloud folder.
type CloudPreviewItem struct {
	Name   string      `json:"name"`
	Status CloudStatus `json:"status"`
}

// CloudSyncResult summarizes a cloud folder sync.
type CloudSyncResult struct {
	Imported  int      `json:"imported"`
	Activated int      `json:"activated"`
	Skipped   int      `json:"skipped"`
	Errors    []string `json:"errors"`
}

// InspectCloud lists the PDFs of a shared cloud folder without importing
// anything. Files sharing a name are reported once.
func (s *Service) InspectCloud(ctx context.Context, link string) ([]CloudPreviewItem, error) {
	normalized, resources, err := s.listCloud(ctx, link)
	if err != nil {
		return nil, err
	}
	known, err := s.cloudReports(ctx, normalized)
	if err != nil {
		return nil, err
	}

	items := make([]CloudPreviewItem, 0, len(resources))
	seen := make(map[string]bool, len(resources))
	for _, res := range resources {
		if seen[res.Name] {
			continue
		}
		seen[res.Name] = true
		items = append(items, CloudPreviewItem{Name: res.Name, Status: cloudStatus(known, res.Name)})
	}
	return items, nil
}

// SyncCloud imports the PDFs of a shared cloud folder. Files that already
// have a report are skipped; reports not yet marked as added to the cloud
// are marked. Per-file failures are collected in the result.
func (s *Service) SyncCloud(ctx context.Context, link string) (CloudSyncResult, error) {
	result := CloudSyncResult{Errors: []string{}}
	normalized, resources, err := s.listCloud(ctx, link)
	if err != nil {
		return result, err
	}
	known, err := s.cloudReports(ctx, normalized)
	if err != nil {
		return result, err
	}

	for _, res := range resources {
		if doc, ok := known[res.Name]; ok {
			result.Skipped++
			if doc.AddedToCloud() {
				continue
			}
			doc.Metadata[MetaAddedToCloud] = true
			if err := s.repo.Save(ctx, doc); err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("failed to mark %q: %v", res.Name, err))
				continue
			}
			known[res.Name] = doc
			result.Activated++
			continue
		}

		data, err := s.cloud.Download(ctx, res)
		if err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			result.Errors = append(result.Errors, err.Error())
			continue
		}
		doc, err := s.IngestPDF(ctx, res.Name, data, Metadata{
			MetaCloudLink:    normalized,
			MetaAddedToCloud: true,
		})
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("failed to import %q: %v", res.Name, err))
			continue
		}
		known[res.Name] = doc
		result.Imported++
	}

	s.logger.Info("cloud sync finished",
		"link", normalized,
		"imported", result.Imported,
		"activated", result.Activated,
		"skipped", result.Skipped,
		"errors", len(result.Errors))
	if result.Imported+result.Activated+result.Skipped == 0 {
		return result, fmt.Errorf("%w: no usable PDF files in the cloud folder", ErrCloudScan)
	}
	return result, nil
}

func (s *Service) listCloud(ctx context.Context, link string) (string, []CloudResource, error) {
	if s.cloud == nil {
		return "", nil, fmt.Errorf("%w: no cloud scanner configured", ErrUnsupported)
	}
	normalized, err := NormalizeCloudLink(link)
	if err != nil {
		return "", nil, err
	}
	resources, err := s.cloud.List(ctx, normalized)
	if err != nil {
		return normalized, nil, err
	}
	return normalized, resources, nil
}

// cloudReports indexes by name the reports linked to a cloud folder.
func (s *Service) cloudReports(ctx context.Context, link string) (map[string]Document, error) {
	docs, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	known := make(map[string]Document)
	for _, doc := range docs {
		if doc.CloudLink() != link {
			continue
		}
		if doc.Metadata == nil {
			doc.Metadata = Metadata{}
		}
		if prev, ok := known[doc.Name]; ok && prev.AddedToCloud() {
			continue
		}
		known[doc.Name] = doc
	}
	return known, nil
}

func cloudStatus(known map[string]Document, name string) CloudStatus {
	doc, ok := known[name]
	switch {
	case !ok:
		return CloudNew
	case doc.AddedToCloud():
		return CloudExisting
	default:
		return CloudPending
	}
}

// IsCloudScanError reports whether err describes a cloud folder problem the
// user can fix, as opposed to a network or storage failure.
func IsCloudScanError(err error) bool {
	return errors.Is(err, ErrCloudScan) || errors.Is(err, ErrInvalidCloudLink)
}
