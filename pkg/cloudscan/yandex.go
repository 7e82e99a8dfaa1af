package cloudscan

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/aretw0/verbatim/pkg/core"
)

// yandexResource is an entry of the Yandex Disk public resources API.
type yandexResource struct {
	Type     string `json:"type"`
	Name     string `json:"name"`
	Path     string `json:"path"`
	File     string `json:"file"`
	Embedded *struct {
		Items []yandexResource `json:"items"`
	} `json:"_embedded"`
}

// listYandex walks a public Yandex Disk folder breadth first.
func (s *Scanner) listYandex(ctx context.Context, publicKey string) ([]core.CloudResource, error) {
	var out []core.CloudResource
	visited := map[string]bool{}
	queue := []string{""}

	for len(queue) > 0 {
		dir := queue[0]
		queue = queue[1:]

		var listing yandexResource
		params := url.Values{"public_key": {publicKey}, "limit": {"500"}}
		if dir != "" {
			params.Set("path", dir)
		}
		if err := s.getJSON(ctx, s.yandexAPI+"?"+params.Encode(), &listing); err != nil {
			return nil, fmt.Errorf("failed to list Yandex Disk folder: %w", err)
		}

		if listing.Type == "file" {
			res, ok, err := s.yandexFile(ctx, publicKey, listing)
			if err != nil {
				return nil, err
			}
			if ok {
				out = append(out, res)
			}
			continue
		}
		if listing.Embedded == nil {
			continue
		}
		for _, item := range listing.Embedded.Items {
			switch item.Type {
			case "dir":
				if item.Path != "" && !visited[item.Path] {
					visited[item.Path] = true
					queue = append(queue, item.Path)
				}
			case "file":
				res, ok, err := s.yandexFile(ctx, publicKey, item)
				if err != nil {
					return nil, err
				}
				if ok {
					out = append(out, res)
				}
			}
		}
	}

	if len(out) == 0 {
		return nil, errNoPDFs
	}
	s.logger.Debug("yandex disk folder listed", "link", publicKey, "files", len(out), "folders", len(visited)+1)
	return out, nil
}

// yandexFile turns a file entry into a resource. Non-PDF files are skipped.
func (s *Scanner) yandexFile(ctx context.Context, publicKey string, item yandexResource) (core.CloudResource, bool, error) {
	name := strings.TrimSpace(item.Name)
	if name == "" || !pdfLink.MatchString(name) {
		return core.CloudResource{}, false, nil
	}
	link := item.File
	if link == "" && item.Path != "" {
		var payload struct {
			Href string `json:"href"`
		}
		params := url.Values{"public_key": {publicKey}, "path": {item.Path}}
		if err := s.getJSON(ctx, s.yandexAPI+"/download?"+params.Encode(), &payload); err != nil {
			return core.CloudResource{}, false, fmt.Errorf("failed to resolve download link for %q: %w", name, err)
		}
		link = payload.Href
	}
	if link == "" {
		return core.CloudResource{}, false, fmt.Errorf("%w: no download link for %q", core.ErrCloudScan, name)
	}
	return core.CloudResource{Name: name, URL: link}, true, nil
}

func (s *Scanner) getJSON(ctx context.Context, endpoint string, v any) error {
	resp, err := s.get(ctx, endpoint, "application/json")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: Yandex Disk API returned status %d", core.ErrCloudScan, resp.StatusCode)
	}
	body, err := readLimited(resp.Body, maxListing)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: invalid Yandex Disk response", core.ErrCloudScan)
	}
	return nil
}
