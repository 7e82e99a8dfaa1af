package mcpserver

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/verbatim/pkg/adapters/fs"
	"github.com/aretw0/verbatim/pkg/core"
)

func newTestServer(t *testing.T) (*Server, *core.Service) {
	t.Helper()
	repo := fs.NewRepository(fs.Config{Path: filepath.Join(t.TempDir(), "vault")})
	require.NoError(t, repo.Initialize(context.Background()))
	svc := core.NewService(repo)
	return New(svc, "test"), svc
}

func TestCheckDocument(t *testing.T) {
	ctx := context.Background()
	req := &mcp.CallToolRequest{}
	s, svc := newTestServer(t)

	a, err := svc.Ingest(ctx, "A", "the cat sat on the mat", nil)
	require.NoError(t, err)
	_, err = svc.Ingest(ctx, "B", "the cat sat on the mat", nil)
	require.NoError(t, err)

	tests := []struct {
		name        string
		input       InputCheckDocument
		errContains string
		validate    func(t *testing.T, out OutputCheckDocument)
	}{
		{
			name:        "missing input returns error",
			input:       InputCheckDocument{},
			errContains: "document_id or text is required",
		},
		{
			name:        "both inputs return error",
			input:       InputCheckDocument{DocumentID: a.ID, Text: "x"},
			errContains: "mutually exclusive",
		},
		{
			name:        "unknown document returns error",
			input:       InputCheckDocument{DocumentID: "missing"},
			errContains: "not found",
		},
		{
			name:  "stored document is checked and persisted",
			input: InputCheckDocument{DocumentID: a.ID},
			validate: func(t *testing.T, out OutputCheckDocument) {
				assert.NotEmpty(t, out.CheckID)
				require.Len(t, out.Matches, 1)
				assert.GreaterOrEqual(t, out.Similarity, 99.9)

				check, err := svc.GetCheck(ctx, out.CheckID)
				require.NoError(t, err)
				assert.Equal(t, core.CheckCompleted, check.Status)
			},
		},
		{
			name:  "ad-hoc text is compared with every document",
			input: InputCheckDocument{Text: "the cat sat on the mat"},
			validate: func(t *testing.T, out OutputCheckDocument) {
				assert.Empty(t, out.CheckID)
				assert.Len(t, out.Matches, 2)
				assert.GreaterOrEqual(t, out.Similarity, 99.9)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, out, err := s.CheckDocument(ctx, req, tt.input)
			if tt.errContains != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errContains)
				return
			}
			require.NoError(t, err)
			tt.validate(t, out)
		})
	}
}

func TestCompareTexts(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := context.Background()

	_, _, err := s.CompareTexts(ctx, &mcp.CallToolRequest{}, InputCompareTexts{Source: "x"})
	assert.ErrorContains(t, err, "source and target are required")

	_, out, err := s.CompareTexts(ctx, &mcp.CallToolRequest{}, InputCompareTexts{Source: "the cat sat", Target: "the cat sat"})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, out.Similarity, 99.9)
	assert.Equal(t, "Match: «the cat sat»", out.Preview)
}

func TestListDocuments(t *testing.T) {
	s, svc := newTestServer(t)
	ctx := context.Background()

	_, out, err := s.ListDocuments(ctx, &mcp.CallToolRequest{}, InputListDocuments{})
	require.NoError(t, err)
	assert.Empty(t, out.Documents)

	a, err := svc.Ingest(ctx, "A", "first text", nil)
	require.NoError(t, err)
	_, err = svc.Ingest(ctx, "B", "second text", nil)
	require.NoError(t, err)
	_, err = svc.RunCheck(ctx, a.ID)
	require.NoError(t, err)
	_, err = svc.MarkCloud(ctx, a.ID, "https://drive.google.com/drive/folders/x")
	require.NoError(t, err)

	_, out, err = s.ListDocuments(ctx, &mcp.CallToolRequest{}, InputListDocuments{})
	require.NoError(t, err)
	require.Len(t, out.Documents, 2)

	var first DocumentSummary
	for _, d := range out.Documents {
		if d.ID == a.ID {
			first = d
		}
	}
	assert.True(t, first.AddedToCloud)
	assert.Equal(t, "https://drive.google.com/drive/folders/x", first.CloudLink)
	assert.NotNil(t, first.Similarity)
}

func TestServer_ToolsOverTransport(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestServer(t)

	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	serverSession, err := s.MCP().Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	defer serverSession.Close()

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	defer session.Close()

	tools, err := session.ListTools(ctx, nil)
	require.NoError(t, err)
	var names []string
	for _, tool := range tools.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{"check_document", "compare_texts", "list_documents"}, names)

	res, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      "compare_texts",
		Arguments: map[string]any{"source": "abc", "target": "abc"},
	})
	require.NoError(t, err)
	assert.False(t, res.IsError)
}
