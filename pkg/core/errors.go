package core

import "errors"

// Common errors.
var (
	ErrReadOnly         = errors.New("repository is in read-only mode")
	ErrNotFound         = errors.New("not found")
	ErrEmptyID          = errors.New("id cannot be empty")
	ErrEmptyText        = errors.New("document contains no text")
	ErrInvalidCloudLink = errors.New("invalid cloud link")
	ErrUnsupported      = errors.New("operation not supported by repository")
	// ErrCloudScan marks cloud folder problems the user can fix, such as a
	// folder without PDFs or a file that is not a PDF.
	ErrCloudScan = errors.New("cloud scan")
)
