package cloudscan

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"github.com/aretw0/verbatim/pkg/core"
)

const fallbackName = "cloud-file.pdf"

var (
	pdfLink = regexp.MustCompile(`(?i)\.pdf(?:$|[?#])`)
	// quotedPDF finds PDF paths embedded in page scripts, as on cloud.mail.ru.
	quotedPDF = regexp.MustCompile(`(?i)["']([^"'<>]*?\.pdf[^"'<>]*)["']`)
)

var errNoPDFs = fmt.Errorf("%w: no PDF files found in the cloud folder", core.ErrCloudScan)

// parseJSONListing accepts either an array or an object with a "files" array.
// Items are URL strings or objects with "url" or "href" and an optional "name".
func parseJSONListing(base string, body []byte) ([]core.CloudResource, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(body, &items); err != nil {
		var wrapped struct {
			Files []json.RawMessage `json:"files"`
		}
		if err := json.Unmarshal(body, &wrapped); err != nil {
			return nil, fmt.Errorf("%w: invalid JSON file list", core.ErrCloudScan)
		}
		items = wrapped.Files
	}

	var out []core.CloudResource
	for _, raw := range items {
		var ref, name string
		var entry struct {
			URL  string `json:"url"`
			Href string `json:"href"`
			Name string `json:"name"`
		}
		switch {
		case json.Unmarshal(raw, &ref) == nil:
		case json.Unmarshal(raw, &entry) == nil:
			ref = entry.URL
			if ref == "" {
				ref = entry.Href
			}
			name = strings.TrimSpace(entry.Name)
		}
		if ref == "" {
			continue
		}
		u, err := resolve(base, ref)
		if err != nil {
			continue
		}
		if name == "" {
			name = guessFileName(u)
		}
		out = append(out, core.CloudResource{Name: name, URL: u})
	}
	if len(out) == 0 {
		return nil, errNoPDFs
	}
	return out, nil
}

// parseHTMLListing collects the PDF links of a page. When the page has no
// PDF anchors and comes from cloud.mail.ru, public file paths quoted in its
// scripts are used instead.
func parseHTMLListing(base string, body []byte) ([]core.CloudResource, error) {
	list := resourceList{}
	z := html.NewTokenizer(bytes.NewReader(body))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}
		if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
			continue
		}
		for _, attr := range z.Token().Attr {
			if attr.Key != "href" || !pdfLink.MatchString(attr.Val) {
				continue
			}
			if u, err := resolve(base, attr.Val); err == nil {
				list.add(u)
			}
		}
	}

	if len(list.items) == 0 && isMailRu(base) {
		for _, m := range quotedPDF.FindAllSubmatch(body, -1) {
			candidate := unescapeScriptURL(string(m[1]))
			if !strings.Contains(candidate, "/public/") {
				continue
			}
			switch {
			case strings.HasPrefix(candidate, "//"):
				candidate = "https:" + candidate
			case strings.HasPrefix(candidate, "http"), strings.HasPrefix(candidate, "/"):
			default:
				candidate = "/public/" + strings.TrimPrefix(strings.TrimPrefix(candidate, "public"), "/")
			}
			if u, err := resolve(base, candidate); err == nil {
				list.add(u)
			}
		}
	}

	if len(list.items) == 0 {
		return nil, errNoPDFs
	}
	return list.items, nil
}

// resourceList keeps first-seen order and drops repeated URLs.
type resourceList struct {
	items []core.CloudResource
	seen  map[string]bool
}

func (l *resourceList) add(u string) {
	if l.seen == nil {
		l.seen = make(map[string]bool)
	}
	if l.seen[u] {
		return
	}
	l.seen[u] = true
	l.items = append(l.items, core.CloudResource{Name: guessFileName(u), URL: u})
}

// resolve interprets ref relative to base. A base whose last path segment has
// no extension is treated as a folder.
func resolve(base, ref string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	if last := path.Base(b.Path); !strings.HasSuffix(b.Path, "/") && b.Path != "" &&
		!strings.Contains(last, ".") && !strings.Contains(strings.ToLower(last), "%2e") {
		b.Path += "/"
		b.RawPath = ""
	}
	r, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return "", err
	}
	return b.ResolveReference(r).String(), nil
}

// guessFileName returns the unescaped last path segment of a URL.
func guessFileName(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return fallbackName
	}
	segments := strings.FieldsFunc(u.EscapedPath(), func(r rune) bool { return r == '/' })
	if len(segments) == 0 {
		return fallbackName
	}
	name, err := url.PathUnescape(segments[len(segments)-1])
	if err != nil || name == "" {
		return fallbackName
	}
	return name
}

func unescapeScriptURL(s string) string {
	s = strings.ReplaceAll(s, `\/`, "/")
	s = strings.ReplaceAll(s, `\u002f`, "/")
	s = strings.ReplaceAll(s, `\u002F`, "/")
	s = strings.ReplaceAll(s, "&amp;", "&")
	return strings.TrimSpace(s)
}

func isMailRu(link string) bool {
	u, err := url.Parse(link)
	return err == nil && hostHasSuffix(u.Hostname(), "cloud.mail.ru")
}

func isYandexDisk(link string) bool {
	u, err := url.Parse(link)
	if err != nil {
		return false
	}
	return hostHasSuffix(u.Hostname(), "disk.yandex.ru") || hostHasSuffix(u.Hostname(), "yadi.sk")
}

func hostHasSuffix(host, domain string) bool {
	host = strings.ToLower(host)
	return host == domain || strings.HasSuffix(host, "."+domain)
}
