package steps

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haven-hvn/haven/pkg/events"
	"github.com/haven-hvn/haven/pkg/pipeline"
)

type fakeUploader struct {
	result   pipeline.UploadResult
	err      error
	lastPath string
	stages   []string
}

func (u *fakeUploader) Upload(ctx context.Context, path string, progress ProgressFunc) (pipeline.UploadResult, error) {
	u.lastPath = path
	if u.err != nil {
		return pipeline.UploadResult{}, u.err
	}
	progress("car", 50)
	progress("piece", 100)
	u.stages = append(u.stages, "done")
	return u.result, nil
}

func TestUploadEnabledByDefault(t *testing.T) {
	step := NewUploadStep(events.NewBus(), &fakeUploader{})

	c := pipeline.NewContext("/tmp/v.mp4", nil)
	assert.False(t, step.ShouldSkip(c))

	disabled := pipeline.NewContext("/tmp/v.mp4", map[string]any{"upload_enabled": false})
	assert.True(t, step.ShouldSkip(disabled))
}

func TestUploadStoresResultAndEmitsProgress(t *testing.T) {
	bus := events.NewBus()
	var progress []events.Event
	bus.Subscribe(events.EventUploadProgress, func(e events.Event) {
		progress = append(progress, e)
	})

	uploader := &fakeUploader{result: pipeline.UploadResult{
		RootCID:         "bafyRoot",
		PieceCID:        "bafyPiece",
		TransactionHash: "0xdef",
	}}
	step := NewUploadStep(bus, uploader)

	c := pipeline.NewContext("/tmp/v.mp4", nil)
	result := step.Process(context.Background(), c)

	require.True(t, result.Success())
	require.NotNil(t, c.Upload)
	assert.Equal(t, "bafyRoot", c.Upload.RootCID)
	assert.Equal(t, "bafyRoot", result.ContentID())

	// Progress callbacks surface as UPLOAD_PROGRESS events
	require.Len(t, progress, 2)
	assert.Equal(t, "car", progress[0].Payload["stage"])
	assert.Equal(t, 50.0, progress[0].Payload["percent"])
	assert.Equal(t, 100.0, progress[1].Payload["percent"])
}

func TestUploadUsesEncryptedArtifactWhenPresent(t *testing.T) {
	uploader := &fakeUploader{}
	step := NewUploadStep(events.NewBus(), uploader)

	c := pipeline.NewContext("/tmp/v.mp4", nil)
	c.EncryptedPath = "/tmp/v.mp4.enc"
	step.Process(context.Background(), c)

	assert.Equal(t, "/tmp/v.mp4.enc", uploader.lastPath)
}

func TestUploadTransientFailureIsRetryable(t *testing.T) {
	bus := events.NewBus()
	var failed []events.Event
	bus.Subscribe(events.EventUploadFailed, func(e events.Event) {
		failed = append(failed, e)
	})

	step := NewUploadStep(bus, &fakeUploader{err: errors.New("503 unavailable")})

	result := step.Process(context.Background(), pipeline.NewContext("/tmp/v.mp4", nil))

	require.True(t, result.Failed())
	assert.Equal(t, "UPLOAD_ERROR", result.Error.Code)
	assert.Equal(t, pipeline.CategoryTransient, result.Error.Category)
	assert.True(t, result.Error.Retryable)
	assert.Len(t, failed, 1)
}

func TestUploadPermanentFailureIsNotRetryable(t *testing.T) {
	step := NewUploadStep(events.NewBus(), &fakeUploader{err: errors.New("403 forbidden")})

	result := step.Process(context.Background(), pipeline.NewContext("/tmp/v.mp4", nil))

	require.True(t, result.Failed())
	assert.Equal(t, pipeline.CategoryPermanent, result.Error.Category)
	assert.False(t, result.Error.Retryable)
}
