package cloudscan_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/verbatim/pkg/cloudscan"
	"github.com/aretw0/verbatim/pkg/core"
)

func newScanner(opts ...cloudscan.Option) *cloudscan.Scanner {
	return cloudscan.New(append([]cloudscan.Option{cloudscan.WithRateLimit(0, 0)}, opts...)...)
}

func TestList_HTMLFolder(t *testing.T) {
	var mu sync.Mutex
	var agents []string
	mux := http.NewServeMux()
	mux.HandleFunc("/folder", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		agents = append(agents, r.Header.Get("User-Agent"))
		mu.Unlock()
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, `<html><body>
			<a href="report.pdf">Report</a>
			<a href='report.pdf'>Again</a>
			<a href="notes.txt">Notes</a>
			<a href="/abs/%D0%BE%D1%82%D1%87%D1%91%D1%82.pdf?dl=1">Cyrillic</a>
		</body></html>`)
	})
	mux.HandleFunc("/folder/report.pdf", func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("Accept"), "application/pdf")
		w.Header().Set("Content-Type", "application/pdf")
		fmt.Fprint(w, "%PDF-1.4 body")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	s := newScanner()
	resources, err := s.List(context.Background(), srv.URL+"/folder")
	require.NoError(t, err)
	require.Len(t, resources, 2)
	assert.Equal(t, "report.pdf", resources[0].Name)
	assert.Equal(t, srv.URL+"/folder/report.pdf", resources[0].URL)
	assert.Equal(t, "отчёт.pdf", resources[1].Name)

	mu.Lock()
	require.Len(t, agents, 1)
	assert.Contains(t, agents[0], "Mozilla/5.0")
	mu.Unlock()

	data, err := s.Download(context.Background(), resources[0])
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 body", string(data))
}

func TestList_JSONListing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"files": ["a.pdf", {"href": "/x/b.pdf", "name": "  B report  "}, {"name": "no link"}]}`)
	}))
	defer srv.Close()

	resources, err := newScanner().List(context.Background(), srv.URL+"/share/list.json")
	require.NoError(t, err)
	require.Len(t, resources, 2)
	assert.Equal(t, core.CloudResource{Name: "a.pdf", URL: srv.URL + "/share/a.pdf"}, resources[0])
	assert.Equal(t, core.CloudResource{Name: "B report", URL: srv.URL + "/x/b.pdf"}, resources[1])
}

func TestList_InvalidJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"files": [`)
	}))
	defer srv.Close()

	_, err := newScanner().List(context.Background(), srv.URL)
	assert.ErrorIs(t, err, core.ErrCloudScan)
}

func TestList_DirectPDF(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		fmt.Fprint(w, "%PDF-1.7")
	}))
	defer srv.Close()

	s := newScanner()
	resources, err := s.List(context.Background(), srv.URL+"/files/essay.pdf")
	require.NoError(t, err)
	require.Len(t, resources, 1)
	assert.Equal(t, "essay.pdf", resources[0].Name)

	data, err := s.Download(context.Background(), resources[0])
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7", string(data))
}

func TestList_NoPDFs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<a href="readme.txt">readme</a>`)
	}))
	defer srv.Close()

	_, err := newScanner().List(context.Background(), srv.URL)
	assert.ErrorIs(t, err, core.ErrCloudScan)
}

func TestList_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := newScanner().List(context.Background(), srv.URL)
	assert.ErrorIs(t, err, core.ErrCloudScan)
}

func TestList_YandexDisk(t *testing.T) {
	var srv *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/disk/public/resources", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "https://disk.yandex.ru/d/abc", r.URL.Query().Get("public_key"))
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Query().Get("path") {
		case "":
			fmt.Fprintf(w, `{"type": "dir", "_embedded": {"items": [
				{"type": "dir", "name": "sub", "path": "/sub"},
				{"type": "file", "name": "a.pdf", "path": "/a.pdf", "file": "%s/files/a.pdf"},
				{"type": "file", "name": "notes.txt", "path": "/notes.txt", "file": "%s/files/notes.txt"}
			]}}`, srv.URL, srv.URL)
		case "/sub":
			fmt.Fprint(w, `{"type": "dir", "_embedded": {"items": [
				{"type": "file", "name": "b.pdf", "path": "/sub/b.pdf"}
			]}}`)
		default:
			http.NotFound(w, r)
		}
	})
	mux.HandleFunc("/v1/disk/public/resources/download", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sub/b.pdf", r.URL.Query().Get("path"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"href": "%s/files/b.pdf"}`, srv.URL)
	})
	srv = httptest.NewServer(mux)
	defer srv.Close()

	s := newScanner(cloudscan.WithYandexAPI(srv.URL + "/v1/disk/public/resources"))
	resources, err := s.List(context.Background(), "https://disk.yandex.ru/d/abc")
	require.NoError(t, err)
	assert.Equal(t, []core.CloudResource{
		{Name: "a.pdf", URL: srv.URL + "/files/a.pdf"},
		{Name: "b.pdf", URL: srv.URL + "/files/b.pdf"},
	}, resources)
}

func TestList_YandexDiskSingleFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"type": "file", "name": "only.pdf", "file": "https://downloader.disk.yandex.ru/only.pdf"}`)
	}))
	defer srv.Close()

	resources, err := newScanner(cloudscan.WithYandexAPI(srv.URL)).List(context.Background(), "https://disk.yandex.ru/i/xyz")
	require.NoError(t, err)
	require.Len(t, resources, 1)
	assert.Equal(t, "only.pdf", resources[0].Name)
}

func TestList_YandexDiskAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := newScanner(cloudscan.WithYandexAPI(srv.URL)).List(context.Background(), "https://disk.yandex.ru/d/abc")
	assert.ErrorIs(t, err, core.ErrCloudScan)
}

func TestDownload_Rejects(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/page", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "<html></html>")
	})
	mux.HandleFunc("/big.pdf", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		fmt.Fprint(w, "0123456789")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	s := newScanner(cloudscan.WithMaxDownload(4))
	ctx := context.Background()

	_, err := s.Download(ctx, core.CloudResource{Name: "page", URL: srv.URL + "/page"})
	assert.ErrorIs(t, err, core.ErrCloudScan)

	_, err = s.Download(ctx, core.CloudResource{Name: "missing.pdf", URL: srv.URL + "/missing.pdf"})
	assert.ErrorIs(t, err, core.ErrCloudScan)

	_, err = s.Download(ctx, core.CloudResource{Name: "big.pdf", URL: srv.URL + "/big.pdf"})
	assert.ErrorIs(t, err, core.ErrCloudScan)

	_, err = s.Download(ctx, core.CloudResource{Name: "nolink.pdf"})
	assert.ErrorIs(t, err, core.ErrCloudScan)
}

func TestRateLimit(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/pdf")
		fmt.Fprint(w, "%PDF")
	}))
	defer srv.Close()

	s := cloudscan.New(cloudscan.WithRateLimit(0.01, 1))
	_, err := s.List(context.Background(), srv.URL+"/a.pdf")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = s.List(ctx, srv.URL+"/b.pdf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limiter")
	assert.Equal(t, int32(1), hits.Load())
}

func TestList_RedirectUsesFinalURL(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/s/abc", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/real/folder/", http.StatusFound)
	})
	mux.HandleFunc("/real/folder/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<a href="x.pdf">x</a>`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	resources, err := newScanner().List(context.Background(), srv.URL+"/s/abc")
	require.NoError(t, err)
	require.Len(t, resources, 1)
	u, err := url.Parse(resources[0].URL)
	require.NoError(t, err)
	assert.Equal(t, "/real/folder/x.pdf", u.Path)
}
