package sqlite

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/verbatim/pkg/core"
)

func openTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := Open(context.Background(), Config{Path: filepath.Join(t.TempDir(), "verbatim.db")})
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestOpen(t *testing.T) {
	repo := openTestRepo(t)

	var name string
	err := repo.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='reports'").Scan(&name)
	require.NoError(t, err)
	assert.Equal(t, "reports", name)

	var mode string
	require.NoError(t, repo.db.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", strings.ToLower(mode))
}

func TestOpen_Memory(t *testing.T) {
	repo, err := Open(context.Background(), Config{Path: MemoryPath})
	require.NoError(t, err)
	defer repo.Close()

	ctx := context.Background()
	require.NoError(t, repo.Save(ctx, core.Document{ID: "m1", Name: "M", Content: "in memory", CreatedAt: time.Now()}))
	doc, err := repo.Get(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, "in memory", doc.Content)
}

func TestNotInitialized(t *testing.T) {
	repo := NewRepository(Config{Path: MemoryPath})
	_, err := repo.Get(context.Background(), "x")
	assert.Error(t, err)
}

func TestDocuments(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()
	base := time.Date(2024, 2, 1, 8, 0, 0, 0, time.UTC)

	long := strings.Repeat("повторяющийся текст отчёта ", 200)
	first := core.Document{ID: "a", Name: "First", Content: long, CreatedAt: base,
		Metadata: core.Metadata{core.MetaCloudLink: "https://cloud.mail.ru/public/x", core.MetaAddedToCloud: true}}
	second := core.Document{ID: "b", Name: "Second", Content: "short", CreatedAt: base.Add(500 * time.Millisecond)}

	require.NoError(t, repo.Save(ctx, first))
	require.NoError(t, repo.Save(ctx, second))

	got, err := repo.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, long, got.Content)
	assert.True(t, base.Equal(got.CreatedAt))
	assert.Equal(t, "https://cloud.mail.ru/public/x", got.CloudLink())
	assert.True(t, got.AddedToCloud())

	var stored []byte
	require.NoError(t, repo.db.QueryRow("SELECT content FROM reports WHERE id = 'a'").Scan(&stored))
	assert.Less(t, len(stored), len(long), "content should be stored compressed")

	docs, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "b", docs[0].ID)
	assert.Equal(t, "short", docs[0].Content)

	summaries, err := repo.Summaries(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Empty(t, summaries[1].Content)
	assert.Equal(t, "First", summaries[1].Name)

	second.Name = "Renamed"
	require.NoError(t, repo.Save(ctx, second))
	got, err = repo.Get(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)

	require.NoError(t, repo.Delete(ctx, "a"))
	_, err = repo.Get(ctx, "a")
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, "a"), core.ErrNotFound)
}

func TestLegacyUncompressedContent(t *testing.T) {
	repo := openTestRepo(t)
	_, err := repo.db.Exec(`INSERT INTO reports (id, name, created_at, metadata, content) VALUES ('old', 'Old', ?, '{}', ?)`,
		time.Now().UTC().Format(timeLayout), []byte("plain text"))
	require.NoError(t, err)

	doc, err := repo.Get(context.Background(), "old")
	require.NoError(t, err)
	assert.Equal(t, "plain text", doc.Content)
}

func TestChecks(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()
	base := time.Date(2024, 2, 1, 8, 0, 0, 0, time.UTC)

	queued := core.Check{ID: "c1", DocumentID: "a", Status: core.CheckQueued, CreatedAt: base}
	require.NoError(t, repo.SaveCheck(ctx, queued))

	got, err := repo.GetCheck(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, core.CheckQueued, got.Status)
	assert.Nil(t, got.Similarity)
	assert.Nil(t, got.CompletedAt)
	assert.Empty(t, got.Matches)

	score := 73.25
	done := base.Add(time.Second)
	queued.Status = core.CheckCompleted
	queued.Similarity = &score
	queued.CompletedAt = &done
	queued.Matches = []core.Match{{DocumentID: "b", DocumentName: "B", Similarity: 73.25, DiffPreview: "Match: «x»"}}
	require.NoError(t, repo.SaveCheck(ctx, queued))

	got, err = repo.GetCheck(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, core.CheckCompleted, got.Status)
	require.NotNil(t, got.Similarity)
	assert.Equal(t, 73.25, *got.Similarity)
	require.NotNil(t, got.CompletedAt)
	assert.True(t, done.Equal(*got.CompletedAt))
	assert.Equal(t, queued.Matches, got.Matches)

	require.NoError(t, repo.SaveCheck(ctx, core.Check{ID: "c2", DocumentID: "a", Status: core.CheckFailed, Error: "boom", CreatedAt: base.Add(time.Minute)}))
	require.NoError(t, repo.SaveCheck(ctx, core.Check{ID: "c3", DocumentID: "z", Status: core.CheckQueued, CreatedAt: base}))

	list, err := repo.ListChecks(ctx, "a")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "c2", list[0].ID)
	assert.Equal(t, "boom", list[0].Error)

	require.NoError(t, repo.DeleteChecks(ctx, "a"))
	list, err = repo.ListChecks(ctx, "a")
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = repo.GetCheck(ctx, "c1")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestReadOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ro.db")
	rw, err := Open(context.Background(), Config{Path: path})
	require.NoError(t, err)
	require.NoError(t, rw.Close())

	ro, err := Open(context.Background(), Config{Path: path, ReadOnly: true})
	require.NoError(t, err)
	defer ro.Close()

	ctx := context.Background()
	assert.ErrorIs(t, ro.Save(ctx, core.Document{ID: "x"}), core.ErrReadOnly)
	assert.ErrorIs(t, ro.Delete(ctx, "x"), core.ErrReadOnly)
	assert.ErrorIs(t, ro.SaveCheck(ctx, core.Check{ID: "c"}), core.ErrReadOnly)
	assert.ErrorIs(t, ro.DeleteChecks(ctx, "x"), core.ErrReadOnly)
}

func TestServiceIntegration(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()
	svc := core.NewService(repo)

	a, err := svc.Ingest(ctx, "A", "the cat sat on the mat", nil)
	require.NoError(t, err)
	_, err = svc.Ingest(ctx, "B", "the cat sat on the mat today", nil)
	require.NoError(t, err)

	check, err := svc.RunCheck(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, core.CheckCompleted, check.Status)
	require.Len(t, check.Matches, 1)

	latest, err := svc.LatestCheck(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, check.ID, latest.ID)
}

func TestState(t *testing.T) {
	repo := openTestRepo(t)
	require.NoError(t, repo.Save(context.Background(), core.Document{ID: "a", Name: "A", Content: "x", CreatedAt: time.Now()}))

	st := repo.State().(RepositoryState)
	assert.True(t, st.Open)
	assert.Equal(t, 1, st.Reports)
	assert.Equal(t, "sqlite-repository", repo.ComponentType())
}
