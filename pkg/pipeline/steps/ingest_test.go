package steps

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haven-hvn/haven/pkg/events"
	"github.com/haven-hvn/haven/pkg/pipeline"
)

type fakeProber struct {
	info pipeline.MediaInfo
	err  error
}

func (p fakeProber) Probe(ctx context.Context, path string) (pipeline.MediaInfo, error) {
	return p.info, p.err
}

type fakeCatalog struct {
	duplicate  bool
	dupErr     error
	recordErr  error
	recorded   []pipeline.MediaInfo
}

func (c *fakeCatalog) IsDuplicate(ctx context.Context, contentHash string) (bool, error) {
	return c.duplicate, c.dupErr
}

func (c *fakeCatalog) RecordMedia(ctx context.Context, info pipeline.MediaInfo) error {
	c.recorded = append(c.recorded, info)
	return c.recordErr
}

func writeTempMedia(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "video.mp4")
	require.NoError(t, os.WriteFile(path, []byte("not really a video"), 0o644))
	return path
}

func TestIngestMissingFileIsFatal(t *testing.T) {
	step := NewIngestStep(events.NewBus(), nil, nil)

	c := pipeline.NewContext("/nonexistent/video.mp4", nil)
	result := step.Process(context.Background(), c)

	require.True(t, result.Failed())
	assert.Equal(t, "FILE_NOT_FOUND", result.Error.Code)
	assert.Equal(t, pipeline.CategoryFatal, result.Error.Category)
}

func TestIngestDirectoryIsFatal(t *testing.T) {
	step := NewIngestStep(events.NewBus(), nil, nil)

	c := pipeline.NewContext(t.TempDir(), nil)
	result := step.Process(context.Background(), c)

	require.True(t, result.Failed())
	assert.Equal(t, "NOT_A_FILE", result.Error.Code)
	assert.Equal(t, pipeline.CategoryFatal, result.Error.Category)
}

func TestIngestCollectsMetadataAndEmitsEvent(t *testing.T) {
	bus := events.NewBus()
	var ingested []events.Event
	bus.Subscribe(events.EventVideoIngested, func(e events.Event) {
		ingested = append(ingested, e)
	})

	prober := fakeProber{info: pipeline.MediaInfo{
		Title:       "A Video",
		ContentHash: "phash123",
	}}
	catalog := &fakeCatalog{}
	step := NewIngestStep(bus, prober, catalog)

	path := writeTempMedia(t)
	c := pipeline.NewContext(path, map[string]any{"source_uri": "https://example.com/v/1"})
	result := step.Process(context.Background(), c)

	require.True(t, result.Success())
	require.NotNil(t, c.Media)
	assert.Equal(t, "A Video", c.Media.Title)
	assert.Equal(t, "phash123", c.Media.ContentHash)
	assert.Equal(t, int64(len("not really a video")), c.Media.FileSize)
	assert.Equal(t, "https://example.com/v/1", c.Media.SourceURI)

	require.Len(t, ingested, 1)
	assert.Equal(t, c.ID, ingested[0].CorrelationID)
	assert.Equal(t, "phash123", ingested[0].Payload["content_hash"])
	assert.Equal(t, false, ingested[0].Payload["is_duplicate"])

	require.Len(t, catalog.recorded, 1)
}

func TestIngestDuplicateIsPermanent(t *testing.T) {
	prober := fakeProber{info: pipeline.MediaInfo{ContentHash: "phash123"}}
	catalog := &fakeCatalog{duplicate: true}
	step := NewIngestStep(events.NewBus(), prober, catalog)

	c := pipeline.NewContext(writeTempMedia(t), nil)
	result := step.Process(context.Background(), c)

	require.True(t, result.Failed())
	assert.Equal(t, "DUPLICATE_VIDEO", result.Error.Code)
	assert.Equal(t, pipeline.CategoryPermanent, result.Error.Category)
}

func TestIngestCatalogWriteFailureDoesNotFailStep(t *testing.T) {
	prober := fakeProber{info: pipeline.MediaInfo{ContentHash: "phash123"}}
	catalog := &fakeCatalog{recordErr: errors.New("db locked")}
	step := NewIngestStep(events.NewBus(), prober, catalog)

	c := pipeline.NewContext(writeTempMedia(t), nil)
	result := step.Process(context.Background(), c)

	assert.True(t, result.Success())
}
