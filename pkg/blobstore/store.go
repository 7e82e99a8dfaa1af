// Package blobstore keeps the original uploaded files (PDFs) next to the
// extracted text. Backends: the local filesystem, S3 and MinIO/S3-compatible
// storage, optionally wrapped with zstd compression.
package blobstore

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/aretw0/verbatim/pkg/core"
)

// ErrNotFound is returned when a blob does not exist.
// It is the same value as core.ErrNotFound so callers can use either.
var ErrNotFound = core.ErrNotFound

// ErrInvalidName is returned for names that would escape the store root.
var ErrInvalidName = errors.New("invalid blob name")

// Store is the blob backend contract. It matches core.BlobStore.
type Store interface {
	Put(ctx context.Context, name string, data []byte) error
	Get(ctx context.Context, name string) ([]byte, error)
	Delete(ctx context.Context, name string) error
}

// CleanName validates a blob name and returns it in slash form.
func CleanName(name string) (string, error) {
	n := strings.ReplaceAll(strings.TrimSpace(name), "\\", "/")
	if n == "" || strings.HasPrefix(n, "/") {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	n = path.Clean(n)
	if n == "." || n == ".." || strings.HasPrefix(n, "../") {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return n, nil
}

var _ core.BlobStore = (Store)(nil)
