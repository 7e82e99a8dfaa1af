package core

import "context"

// Repository defines the contract for storing and retrieving documents.
// Adhering to this interface allows the core to be independent of the
// underlying storage mechanism (Filesystem, SQL, etc).
type Repository interface {
	// Save persists a document. It creates if not exists, or updates if it does.
	Save(ctx context.Context, doc Document) error

	// Get retrieves a document by its ID.
	Get(ctx context.Context, id string) (Document, error)

	// List returns all available documents, including their content.
	List(ctx context.Context) ([]Document, error)

	// Delete removes a document by its ID.
	Delete(ctx context.Context, id string) error

	// Initialize ensures the underlying storage is ready (e.g., create directories, schema migration).
	Initialize(ctx context.Context) error
}

// Summarizer is implemented by repositories that can list documents without
// loading their content (e.g. from a metadata cache).
type Summarizer interface {
	Summaries(ctx context.Context) ([]Document, error)
}

// CheckRepository stores check results.
type CheckRepository interface {
	SaveCheck(ctx context.Context, check Check) error
	GetCheck(ctx context.Context, id string) (Check, error)
	// ListChecks returns the checks of a document, newest first.
	ListChecks(ctx context.Context, documentID string) ([]Check, error)
	DeleteChecks(ctx context.Context, documentID string) error
}

// PeerIndex remembers which documents matched each other.
// The relation is symmetric: recording b as a peer of a also records a as a peer of b.
type PeerIndex interface {
	Peers(ctx context.Context, id string) ([]string, error)
	Update(ctx context.Context, id string, peers []string) error
	Remove(ctx context.Context, id string) error
	Reset(ctx context.Context) error
}

// BlobStore keeps the original uploaded files.
type BlobStore interface {
	Put(ctx context.Context, name string, data []byte) error
	Get(ctx context.Context, name string) ([]byte, error)
	Delete(ctx context.Context, name string) error
}

// TextExtractor turns an uploaded file into plain text.
type TextExtractor interface {
	Extract(data []byte) (text string, pages int, err error)
}

// CloudScanner lists and fetches the PDFs shared in a public cloud folder.
type CloudScanner interface {
	// List returns the PDFs reachable from a folder link.
	List(ctx context.Context, link string) ([]CloudResource, error)
	// Download returns the bytes of a listed PDF.
	Download(ctx context.Context, res CloudResource) ([]byte, error)
}
