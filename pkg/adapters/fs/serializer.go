package fs

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aretw0/verbatim/pkg/core"
)

// Reserved frontmatter keys. Everything else is document metadata.
const (
	keyID        = "id"
	keyName      = "name"
	keyCreatedAt = "created_at"
)

// Serializer defines how to read and write a specific file format.
type Serializer interface {
	// Parse reads from r and returns a Document. The ID is set by the caller.
	Parse(r io.Reader) (*core.Document, error)
	// Serialize converts the Document to bytes.
	Serialize(doc core.Document) ([]byte, error)
}

// DefaultSerializers returns the standard set of serializers.
func DefaultSerializers() map[string]Serializer {
	return map[string]Serializer{
		".md":   NewMarkdownSerializer(),
		".json": NewJSONSerializer(),
	}
}

// --- Markdown Serializer ---

// MarkdownSerializer stores the extracted text as the body of a Markdown file
// with a YAML frontmatter holding the name, creation time and metadata.
type MarkdownSerializer struct{}

// NewMarkdownSerializer creates a new Markdown serializer.
func NewMarkdownSerializer() *MarkdownSerializer {
	return &MarkdownSerializer{}
}

var (
	frontmatterOpen     = []byte("---\n")
	frontmatterOpenCRLF = []byte("---\r\n")
	lineBreakDelimiter  = []byte("\n---")
)

// Parse reads a Markdown document. CRLF line endings are accepted in the
// frontmatter; the body is kept byte for byte.
func (s *MarkdownSerializer) Parse(r io.Reader) (*core.Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	doc := &core.Document{Metadata: make(core.Metadata)}
	rest, ok := cutDelimiter(data)
	if !ok {
		doc.Content = string(data)
		return doc, nil
	}

	var yamlData, content []byte
	if body, empty := cutDelimiter(rest); empty {
		content = body
	} else {
		idx, body, found := closingDelimiter(rest)
		if !found {
			return nil, errors.New("frontmatter started but no closing delimiter found")
		}
		yamlData = bytes.ReplaceAll(rest[:idx], []byte("\r\n"), []byte("\n"))
		content = body
	}

	meta := map[string]any{}
	if err := yaml.Unmarshal(yamlData, &meta); err != nil {
		return nil, fmt.Errorf("failed to parse frontmatter: %w", err)
	}
	if err := applyReserved(doc, meta); err != nil {
		return nil, err
	}
	doc.Content = string(content)
	return doc, nil
}

// cutDelimiter strips a leading "---" line ending in LF or CRLF.
func cutDelimiter(data []byte) ([]byte, bool) {
	for _, d := range [][]byte{frontmatterOpen, frontmatterOpenCRLF} {
		if bytes.HasPrefix(data, d) {
			return data[len(d):], true
		}
	}
	return data, false
}

// closingDelimiter finds the "---" line that ends the frontmatter and returns
// where the frontmatter stops and the body that follows.
func closingDelimiter(data []byte) (int, []byte, bool) {
	off := 0
	for {
		i := bytes.Index(data[off:], lineBreakDelimiter)
		if i < 0 {
			return 0, nil, false
		}
		i += off
		if body, ok := cutDelimiter(data[i+1:]); ok {
			end := i
			if end > 0 && data[end-1] == '\r' {
				end--
			}
			return end, body, true
		}
		off = i + 1
	}
}

func (s *MarkdownSerializer) Serialize(doc core.Document) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(frontmatterOpen)
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(frontmatter(doc)); err != nil {
		return nil, err
	}
	if err := encoder.Close(); err != nil {
		return nil, err
	}
	buf.WriteString("---\n")
	buf.WriteString(doc.Content)
	return buf.Bytes(), nil
}

// --- JSON Serializer ---

// JSONSerializer stores a document as a single JSON object.
type JSONSerializer struct{}

// NewJSONSerializer creates a new JSON serializer.
func NewJSONSerializer() *JSONSerializer {
	return &JSONSerializer{}
}

type jsonDocument struct {
	Name      string        `json:"name"`
	CreatedAt time.Time     `json:"created_at"`
	Metadata  core.Metadata `json:"metadata,omitempty"`
	Content   string        `json:"content"`
}

func (s *JSONSerializer) Parse(r io.Reader) (*core.Document, error) {
	var payload jsonDocument
	if err := json.NewDecoder(r).Decode(&payload); err != nil {
		return nil, fmt.Errorf("invalid json: %w", err)
	}
	doc := &core.Document{
		Name:      payload.Name,
		CreatedAt: payload.CreatedAt,
		Content:   payload.Content,
		Metadata:  payload.Metadata,
	}
	if doc.Metadata == nil {
		doc.Metadata = make(core.Metadata)
	}
	return doc, nil
}

func (s *JSONSerializer) Serialize(doc core.Document) ([]byte, error) {
	return json.MarshalIndent(jsonDocument{
		Name:      doc.Name,
		CreatedAt: doc.CreatedAt.UTC(),
		Metadata:  doc.Metadata,
		Content:   doc.Content,
	}, "", "  ")
}

// --- helpers ---

func frontmatter(doc core.Document) map[string]any {
	out := make(map[string]any, len(doc.Metadata)+2)
	for k, v := range doc.Metadata {
		out[k] = v
	}
	out[keyName] = doc.Name
	if !doc.CreatedAt.IsZero() {
		out[keyCreatedAt] = doc.CreatedAt.UTC().Format(time.RFC3339Nano)
	}
	return out
}

// applyReserved moves the reserved keys from meta into the document fields.
func applyReserved(doc *core.Document, meta map[string]any) error {
	if v, ok := meta[keyName]; ok {
		doc.Name = fmt.Sprint(v)
	}
	switch v := meta[keyCreatedAt].(type) {
	case nil:
	case time.Time:
		doc.CreatedAt = v.UTC()
	case string:
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", keyCreatedAt, err)
		}
		doc.CreatedAt = t.UTC()
	default:
		return fmt.Errorf("invalid %s: %v", keyCreatedAt, v)
	}
	delete(meta, keyID)
	delete(meta, keyName)
	delete(meta, keyCreatedAt)
	doc.Metadata = meta
	return nil
}
