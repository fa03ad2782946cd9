package pipeline

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStepErrorConstructors(t *testing.T) {
	tests := []struct {
		name      string
		err       *StepError
		category  ErrorCategory
		retryable bool
	}{
		{"transient", Transient("NET_TIMEOUT", "request timed out"), CategoryTransient, true},
		{"permanent", Permanent("BAD_INPUT", "invalid file"), CategoryPermanent, false},
		{"fatal", Fatal("CONFIG_MISSING", "no credentials"), CategoryFatal, false},
		{"from panic", FromPanic("STEP_ERROR", "boom"), CategoryUnknown, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.category, tt.err.Category)
			assert.Equal(t, tt.retryable, tt.err.Retryable)
			assert.NotEmpty(t, tt.err.Code)
			assert.NotEmpty(t, tt.err.Message)
		})
	}
}

func TestErrorfRetryableFollowsCategory(t *testing.T) {
	base := errors.New("503 unavailable")

	transient := Errorf(CategoryTransient, "UPLOAD_ERROR", base)
	assert.True(t, transient.Retryable)

	permanent := Errorf(CategoryPermanent, "UPLOAD_ERROR", base)
	assert.False(t, permanent.Retryable)
}

func TestStepResultContentID(t *testing.T) {
	assert.Equal(t, "bafyA", OK("upload", map[string]any{"cid": "bafyA"}).ContentID())
	assert.Equal(t, "bafyB", OK("upload", map[string]any{"root_cid": "bafyB"}).ContentID())
	assert.Empty(t, OK("ingest", nil).ContentID())
}

func TestResultFromStepsSuccess(t *testing.T) {
	started := time.Now().UTC().Add(-time.Second)
	result := resultFromSteps([]StepResult{
		OK("ingest", nil),
		Skip("analyze", "analyze_enabled is disabled"),
		OK("upload", map[string]any{"cid": "bafyQ"}),
	}, "/tmp/v.mp4", started)

	assert.True(t, result.Success)
	assert.Equal(t, "bafyQ", result.FinalContentID)
	assert.Equal(t, "/tmp/v.mp4", result.SourcePath)
	assert.Empty(t, result.Error)
	assert.GreaterOrEqual(t, result.TotalDuration, time.Second)
}

func TestResultFromStepsFailure(t *testing.T) {
	result := resultFromSteps([]StepResult{
		OK("ingest", nil),
		Fail("upload", Transient("UPLOAD_ERROR", "503 unavailable")),
	}, "/tmp/v.mp4", time.Now().UTC())

	assert.False(t, result.Success)
	assert.Equal(t, "503 unavailable", result.Error)
	assert.Len(t, result.FailedSteps(), 1)

	sr, ok := result.StepResult("upload")
	require.True(t, ok)
	assert.True(t, sr.Failed())
}

func TestFinalContentIDUsesMostRecent(t *testing.T) {
	result := resultFromSteps([]StepResult{
		OK("upload", map[string]any{"cid": "bafyOld"}),
		OK("sync", map[string]any{"cid": "bafyNew"}),
	}, "", time.Now().UTC())

	assert.Equal(t, "bafyNew", result.FinalContentID)
}
