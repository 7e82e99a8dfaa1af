// Document and Check are the central entities of the domain.
package core

import (
	"fmt"
	"sort"
	"time"
)

// Metadata represents the flexible key-value pairs associated with a document.
type Metadata map[string]any

// Well-known metadata keys.
const (
	MetaCloudLink    = "cloud_link"
	MetaAddedToCloud = "added_to_cloud"
	// MetaOriginal names the blob holding the uploaded original (e.g. the PDF).
	MetaOriginal = "original"
	MetaPages    = "pages"
)

// Document is a stored text submitted for checking.
// For scoring purposes only (ID, Name, Content) matter.
type Document struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Content   string    `json:"content,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	Metadata  Metadata  `json:"metadata,omitempty"`
}

// CloudLink returns the cloud link recorded for the document, if any.
func (d Document) CloudLink() string {
	link, _ := d.Metadata[MetaCloudLink].(string)
	return link
}

// AddedToCloud reports whether the document was marked as synced to a cloud folder.
func (d Document) AddedToCloud() bool {
	switch v := d.Metadata[MetaAddedToCloud].(type) {
	case bool:
		return v
	case string:
		return v == "true" || v == "1"
	case int:
		return v != 0
	}
	return false
}

// SortNewestFirst orders documents by creation time, newest first, then by ID.
func SortNewestFirst(docs []Document) {
	sort.SliceStable(docs, func(i, j int) bool {
		if !docs[i].CreatedAt.Equal(docs[j].CreatedAt) {
			return docs[i].CreatedAt.After(docs[j].CreatedAt)
		}
		return docs[i].ID < docs[j].ID
	})
}

// CheckStatus is the lifecycle state of a Check.
type CheckStatus string

const (
	CheckQueued     CheckStatus = "queued"
	CheckProcessing CheckStatus = "processing"
	CheckCompleted  CheckStatus = "completed"
	CheckFailed     CheckStatus = "failed"
)

// Done reports whether the status is terminal.
func (s CheckStatus) Done() bool {
	return s == CheckCompleted || s == CheckFailed
}

// Match is one stored document found similar to the checked document.
type Match struct {
	DocumentID   string  `json:"document_id"`
	DocumentName string  `json:"document_name"`
	Similarity   float64 `json:"similarity"`
	DiffPreview  string  `json:"diff_preview"`
}

// Check is the result of scoring a document against the corpus.
type Check struct {
	ID         string      `json:"id"`
	DocumentID string      `json:"document_id"`
	Status     CheckStatus `json:"status"`
	// Similarity is the highest match score in [0, 100]; nil until completed.
	Similarity  *float64   `json:"similarity"`
	Matches     []Match    `json:"matches"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// fail moves the check to the failed state with a zero score.
func (c *Check) fail(cause error) {
	c.Status = CheckFailed
	c.Error = cause.Error()
	c.Matches = []Match{}
	zero := 0.0
	c.Similarity = &zero
}

// FormatSimilarity renders a check score with two decimals, or "-" when unset.
func FormatSimilarity(s *float64) string {
	if s == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *s)
}

// SortChecksNewestFirst orders checks by creation time, newest first.
func SortChecksNewestFirst(checks []Check) {
	sort.SliceStable(checks, func(i, j int) bool {
		return checks[i].CreatedAt.After(checks[j].CreatedAt)
	})
}
