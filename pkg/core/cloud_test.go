package core_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/verbatim/pkg/core"
)

const folder = "https://disk.yandex.ru/d/reports"

// fakeCloud serves a fixed listing; downloads return the resource URL as content.
type fakeCloud struct {
	resources []core.CloudResource
	listErr   error
	failing   map[string]error
	listed    []string
}

func (c *fakeCloud) List(ctx context.Context, link string) ([]core.CloudResource, error) {
	c.listed = append(c.listed, link)
	return c.resources, c.listErr
}

func (c *fakeCloud) Download(ctx context.Context, res core.CloudResource) ([]byte, error) {
	if err := c.failing[res.Name]; err != nil {
		return nil, err
	}
	return []byte(res.URL), nil
}

// echoExtractor treats the uploaded bytes as the document text.
type echoExtractor struct{}

func (echoExtractor) Extract(data []byte) (string, int, error) {
	return string(data), 1, nil
}

func seedCloudReports(t *testing.T, svc *core.Service) {
	t.Helper()
	ctx := context.Background()
	_, err := svc.Ingest(ctx, "done.pdf", "done text", core.Metadata{core.MetaCloudLink: folder, core.MetaAddedToCloud: true})
	require.NoError(t, err)
	_, err = svc.Ingest(ctx, "waiting.pdf", "waiting text", core.Metadata{core.MetaCloudLink: folder})
	require.NoError(t, err)
	_, err = svc.Ingest(ctx, "new.pdf", "other folder", core.Metadata{core.MetaCloudLink: "https://disk.yandex.ru/d/other"})
	require.NoError(t, err)
}

func TestService_InspectCloud(t *testing.T) {
	cloud := &fakeCloud{resources: []core.CloudResource{
		{Name: "done.pdf", URL: "u1"},
		{Name: "waiting.pdf", URL: "u2"},
		{Name: "new.pdf", URL: "u3"},
		{Name: "new.pdf", URL: "u4"},
	}}
	svc, _, _ := newTestService(t, core.WithCloudScanner(cloud))
	seedCloudReports(t, svc)

	items, err := svc.InspectCloud(context.Background(), "  https://DISK.yandex.ru/d/reports ")
	require.NoError(t, err)
	assert.Equal(t, []core.CloudPreviewItem{
		{Name: "done.pdf", Status: core.CloudExisting},
		{Name: "waiting.pdf", Status: core.CloudPending},
		{Name: "new.pdf", Status: core.CloudNew},
	}, items)
	assert.Equal(t, []string{folder}, cloud.listed)
}

func TestService_InspectCloud_Errors(t *testing.T) {
	ctx := context.Background()

	svc, _, _ := newTestService(t)
	_, err := svc.InspectCloud(ctx, folder)
	assert.ErrorIs(t, err, core.ErrUnsupported)

	svc, _, _ = newTestService(t, core.WithCloudScanner(&fakeCloud{}))
	_, err = svc.InspectCloud(ctx, "https://example.com/folder")
	assert.ErrorIs(t, err, core.ErrInvalidCloudLink)
	assert.True(t, core.IsCloudScanError(err))

	listErr := errors.New("connection reset")
	svc, _, _ = newTestService(t, core.WithCloudScanner(&fakeCloud{listErr: listErr}))
	_, err = svc.InspectCloud(ctx, folder)
	assert.ErrorIs(t, err, listErr)
	assert.False(t, core.IsCloudScanError(err))
}

func TestService_SyncCloud(t *testing.T) {
	cloud := &fakeCloud{
		resources: []core.CloudResource{
			{Name: "done.pdf", URL: "u1"},
			{Name: "waiting.pdf", URL: "u2"},
			{Name: "fresh.pdf", URL: "fresh report text"},
			{Name: "fresh.pdf", URL: "duplicate listing"},
			{Name: "blank.pdf", URL: "   "},
			{Name: "broken.pdf", URL: "x"},
		},
		failing: map[string]error{"broken.pdf": errors.New("broken.pdf is not a PDF")},
	}
	svc, repo, _ := newTestService(t, core.WithCloudScanner(cloud), core.WithExtractor(echoExtractor{}))
	seedCloudReports(t, svc)
	ctx := context.Background()

	result, err := svc.SyncCloud(ctx, folder)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Imported)
	assert.Equal(t, 1, result.Activated)
	assert.Equal(t, 3, result.Skipped)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "blank.pdf")
	assert.Equal(t, "broken.pdf is not a PDF", result.Errors[1])

	docs, err := repo.List(ctx)
	require.NoError(t, err)
	byName := map[string]core.Document{}
	for _, d := range docs {
		if d.CloudLink() == folder {
			byName[d.Name] = d
		}
	}
	require.Contains(t, byName, "fresh.pdf")
	assert.Equal(t, "fresh report text", byName["fresh.pdf"].Content)
	assert.True(t, byName["fresh.pdf"].AddedToCloud())
	assert.True(t, byName["waiting.pdf"].AddedToCloud())

	items, err := svc.InspectCloud(ctx, folder)
	require.NoError(t, err)
	for _, item := range items {
		if item.Name == "done.pdf" || item.Name == "waiting.pdf" || item.Name == "fresh.pdf" {
			assert.Equal(t, core.CloudExisting, item.Status, item.Name)
		}
	}

	again, err := svc.SyncCloud(ctx, folder)
	require.NoError(t, err)
	assert.Equal(t, 0, again.Imported)
	assert.Equal(t, 0, again.Activated)
}

func TestService_SyncCloud_NothingUsable(t *testing.T) {
	cloud := &fakeCloud{
		resources: []core.CloudResource{{Name: "bad.pdf", URL: "x"}},
		failing:   map[string]error{"bad.pdf": errors.New("download failed")},
	}
	svc, _, _ := newTestService(t, core.WithCloudScanner(cloud), core.WithExtractor(echoExtractor{}))

	result, err := svc.SyncCloud(context.Background(), folder)
	assert.ErrorIs(t, err, core.ErrCloudScan)
	assert.Equal(t, []string{"download failed"}, result.Errors)
}
