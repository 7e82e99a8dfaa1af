// Package mcpserver exposes similarity checks as Model Context Protocol tools.
package mcpserver

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/aretw0/verbatim/pkg/core"
)

// Server wraps an MCP server bound to a document service.
type Server struct {
	svc    *core.Service
	logger *slog.Logger
	server *mcp.Server
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a Server and registers its tools.
func New(svc *core.Service, version string, opts ...Option) *Server {
	s := &Server{
		svc:    svc,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.server = mcp.NewServer(&mcp.Implementation{Name: "verbatim", Version: version}, nil)
	mcp.AddTool(s.server, MetadataCheckDocument, s.CheckDocument)
	mcp.AddTool(s.server, MetadataCompareTexts, s.CompareTexts)
	mcp.AddTool(s.server, MetadataListDocuments, s.ListDocuments)
	return s
}

// MCP returns the underlying MCP server.
func (s *Server) MCP() *mcp.Server {
	return s.server
}

// Run serves over stdin/stdout until the client disconnects or ctx is done.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("mcp server running on stdio")
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// MetadataCheckDocument describes the check_document tool.
var MetadataCheckDocument = &mcp.Tool{
	Name: "check_document",
	Description: "Check a document for overlap with the stored corpus. " +
		"Pass document_id to run and persist a check for a stored document, " +
		"or text to compare an unsaved text against every stored document. " +
		"Returns matches ordered by similarity (0-100) with a short preview of shared passages.",
	InputSchema: map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"document_id": map[string]interface{}{
				"type":        "string",
				"description": "ID of a stored document to check",
			},
			"text": map[string]interface{}{
				"type":        "string",
				"description": "Raw text to check without storing it",
			},
		},
	},
}

// InputCheckDocument is the input for the check_document tool.
type InputCheckDocument struct {
	DocumentID string `json:"document_id"`
	Text       string `json:"text"`
}

// OutputCheckDocument is the output for the check_document tool.
type OutputCheckDocument struct {
	CheckID    string       `json:"check_id,omitempty"`
	Similarity float64      `json:"similarity"`
	Matches    []core.Match `json:"matches"`
}

// CheckDocument runs a check for a stored document or an ad-hoc text.
func (s *Server) CheckDocument(ctx context.Context, _ *mcp.CallToolRequest, input InputCheckDocument) (*mcp.CallToolResult, OutputCheckDocument, error) {
	switch {
	case input.DocumentID != "" && input.Text != "":
		return nil, OutputCheckDocument{}, fmt.Errorf("document_id and text are mutually exclusive")
	case input.DocumentID != "":
		check, err := s.svc.RunCheck(ctx, input.DocumentID)
		if err != nil {
			return nil, OutputCheckDocument{}, err
		}
		out := OutputCheckDocument{CheckID: check.ID, Matches: check.Matches}
		if check.Similarity != nil {
			out.Similarity = *check.Similarity
		}
		return nil, out, nil
	case input.Text != "":
		matches, err := s.svc.CheckText(ctx, input.Text)
		if err != nil {
			return nil, OutputCheckDocument{}, err
		}
		out := OutputCheckDocument{Matches: matches}
		if len(matches) > 0 {
			out.Similarity = matches[0].Similarity
		}
		return nil, out, nil
	default:
		return nil, OutputCheckDocument{}, fmt.Errorf("document_id or text is required")
	}
}

// MetadataCompareTexts describes the compare_texts tool.
var MetadataCompareTexts = &mcp.Tool{
	Name:        "compare_texts",
	Description: "Score the similarity (0-100) of two texts and preview their shared passages.",
	InputSchema: map[string]interface{}{
		"type":     "object",
		"required": []string{"source", "target"},
		"properties": map[string]interface{}{
			"source": map[string]interface{}{
				"type":        "string",
				"description": "Text suspected to be copied from",
			},
			"target": map[string]interface{}{
				"type":        "string",
				"description": "Text being checked",
			},
		},
	},
}

// InputCompareTexts is the input for the compare_texts tool.
type InputCompareTexts struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// OutputCompareTexts is the output for the compare_texts tool.
type OutputCompareTexts struct {
	Similarity float64 `json:"similarity"`
	Preview    string  `json:"preview"`
}

// CompareTexts scores two texts against each other.
func (s *Server) CompareTexts(ctx context.Context, _ *mcp.CallToolRequest, input InputCompareTexts) (*mcp.CallToolResult, OutputCompareTexts, error) {
	if input.Source == "" || input.Target == "" {
		return nil, OutputCompareTexts{}, fmt.Errorf("source and target are required")
	}
	score, preview := s.svc.Compare(input.Source, input.Target)
	return nil, OutputCompareTexts{Similarity: score, Preview: preview}, nil
}

// MetadataListDocuments describes the list_documents tool.
var MetadataListDocuments = &mcp.Tool{
	Name:        "list_documents",
	Description: "List stored documents, newest first, with their latest check result when available.",
	InputSchema: map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
	},
}

// InputListDocuments is the input for the list_documents tool.
type InputListDocuments struct{}

// DocumentSummary describes one stored document.
type DocumentSummary struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	CreatedAt    time.Time `json:"created_at"`
	CloudLink    string    `json:"cloud_link,omitempty"`
	AddedToCloud bool      `json:"added_to_cloud"`
	Similarity   *float64  `json:"similarity,omitempty"`
}

// OutputListDocuments is the output for the list_documents tool.
type OutputListDocuments struct {
	Documents []DocumentSummary `json:"documents"`
}

// ListDocuments lists stored documents.
func (s *Server) ListDocuments(ctx context.Context, _ *mcp.CallToolRequest, _ InputListDocuments) (*mcp.CallToolResult, OutputListDocuments, error) {
	docs, err := s.svc.ListDocuments(ctx)
	if err != nil {
		return nil, OutputListDocuments{}, err
	}
	out := OutputListDocuments{Documents: make([]DocumentSummary, 0, len(docs))}
	for _, d := range docs {
		sum := DocumentSummary{
			ID:           d.ID,
			Name:         d.Name,
			CreatedAt:    d.CreatedAt,
			CloudLink:    d.CloudLink(),
			AddedToCloud: d.AddedToCloud(),
		}
		if check, err := s.svc.LatestCheck(ctx, d.ID); err == nil && check.Status == core.CheckCompleted {
			sum.Similarity = check.Similarity
		}
		out.Documents = append(out.Documents, sum)
	}
	return nil, out, nil
}
