package matchindex_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/verbatim/pkg/core"
	"github.com/aretw0/verbatim/pkg/matchindex"
)

func peersOf(t *testing.T, idx *matchindex.Index, id string) []string {
	t.Helper()
	got, err := idx.Peers(context.Background(), id)
	require.NoError(t, err)
	return got
}

func TestIndex_SymmetricUnique(t *testing.T) {
	idx := matchindex.Open(t.TempDir())
	ctx := context.Background()

	require.NoError(t, idx.Update(ctx, "report-a", []string{"report-b", "report-c", "report-b", "report-a", ""}))

	assert.Equal(t, []string{"report-b", "report-c"}, peersOf(t, idx, "report-a"))
	assert.Equal(t, []string{"report-a"}, peersOf(t, idx, "report-b"))
	assert.Equal(t, []string{"report-a"}, peersOf(t, idx, "report-c"))
	assert.Equal(t, 3, idx.Len())
}

func TestIndex_UpdateReplacesPeers(t *testing.T) {
	idx := matchindex.Open(t.TempDir())
	ctx := context.Background()

	require.NoError(t, idx.Update(ctx, "a", []string{"b"}))
	require.NoError(t, idx.Update(ctx, "b", []string{"c"}))

	assert.Empty(t, peersOf(t, idx, "a"))
	assert.Equal(t, []string{"c"}, peersOf(t, idx, "b"))
	assert.Equal(t, []string{"b"}, peersOf(t, idx, "c"))

	require.NoError(t, idx.Update(ctx, "b", nil))
	assert.Empty(t, peersOf(t, idx, "b"))
	assert.Empty(t, peersOf(t, idx, "c"))
}

func TestIndex_Remove(t *testing.T) {
	idx := matchindex.Open(t.TempDir())
	ctx := context.Background()

	require.NoError(t, idx.Update(ctx, "report-a", []string{"report-b"}))
	require.NoError(t, idx.Update(ctx, "report-b", []string{"report-c"}))

	require.NoError(t, idx.Remove(ctx, "report-b"))

	assert.Empty(t, peersOf(t, idx, "report-a"))
	assert.Empty(t, peersOf(t, idx, "report-b"))
	assert.Empty(t, peersOf(t, idx, "report-c"))

	require.NoError(t, idx.Remove(ctx, "unknown"))
}

func TestIndex_Reset(t *testing.T) {
	idx := matchindex.Open(t.TempDir())
	ctx := context.Background()

	require.NoError(t, idx.Update(ctx, "report-a", []string{"report-b"}))
	require.NoError(t, idx.Reset(ctx))

	assert.Empty(t, peersOf(t, idx, "report-a"))
	assert.Empty(t, peersOf(t, idx, "report-b"))

	data, err := os.ReadFile(idx.Path())
	require.NoError(t, err)
	assert.JSONEq(t, "{}", string(data))
}

func TestIndex_CorruptedFileIsEmpty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, matchindex.FileName)
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	idx := matchindex.New(path)
	assert.Empty(t, peersOf(t, idx, "x"))

	require.NoError(t, idx.Update(context.Background(), "x", []string{"y"}))
	assert.Equal(t, []string{"y"}, peersOf(t, idx, "x"))
}

func TestIndex_IgnoresMalformedEntries(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, matchindex.FileName)
	raw := `{"a": ["b", 3, "a", "b"], "b": "oops", "c": []}`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	idx := matchindex.New(path)
	assert.Equal(t, []string{"b"}, peersOf(t, idx, "a"))
	assert.Empty(t, peersOf(t, idx, "b"))
	assert.Equal(t, 1, idx.Len())
}

func TestIndex_EmptyID(t *testing.T) {
	idx := matchindex.Open(t.TempDir())
	assert.ErrorIs(t, idx.Update(context.Background(), "", []string{"x"}), core.ErrEmptyID)
}
