package app

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haven-hvn/haven/pkg/events"
	"github.com/haven-hvn/haven/pkg/pipeline"
	"github.com/haven-hvn/haven/pkg/pipeline/steps"
	"github.com/haven-hvn/haven/pkg/plugin"
	"github.com/haven-hvn/haven/pkg/types"
)

// demoPlugin archives sources by writing real files into outDir
type demoPlugin struct {
	outDir  string
	entries []string
}

func (p *demoPlugin) Info() plugin.Info {
	return plugin.Info{
		Name:         "DemoPlugin",
		Version:      "1.0.0",
		MediaTypes:   []string{"video"},
		Capabilities: plugin.Capabilities(plugin.CapabilityDiscover, plugin.CapabilityArchive),
	}
}

func (p *demoPlugin) Initialize(ctx context.Context) error { return nil }
func (p *demoPlugin) Shutdown(ctx context.Context) error   { return nil }
func (p *demoPlugin) Configure(map[string]string)          {}
func (p *demoPlugin) HealthCheck(ctx context.Context) bool { return true }

func (p *demoPlugin) Discover(ctx context.Context) ([]types.MediaSource, error) {
	out := make([]types.MediaSource, 0, len(p.entries))
	for _, id := range p.entries {
		out = append(out, types.MediaSource{
			SourceID:  id,
			MediaType: "video",
			URI:       "https://example.com/v/" + id,
			Priority:  types.PriorityMedium,
		})
	}
	return out, nil
}

func (p *demoPlugin) Archive(ctx context.Context, source types.MediaSource) (types.ArchiveResult, error) {
	path := filepath.Join(p.outDir, source.SourceID+".mp4")
	if err := os.WriteFile(path, []byte("payload"), 0o644); err != nil {
		return types.ArchiveResult{Success: false, Error: err.Error()}, nil
	}
	return types.ArchiveResult{Success: true, OutputPath: path, FileSize: 7}, nil
}

type stubUploader struct{}

func (stubUploader) Upload(ctx context.Context, path string, progress steps.ProgressFunc) (pipeline.UploadResult, error) {
	progress("car", 100)
	return pipeline.UploadResult{RootCID: "bafyQ", PieceCID: "bafyP"}, nil
}

func newTestApp(t *testing.T, p *demoPlugin) *Application {
	t.Helper()

	registry := plugin.NewRegistry()
	registry.Register("DemoPlugin", func(map[string]string) plugin.Plugin { return p })

	application, err := New(Config{
		DataDir:               t.TempDir(),
		MaxConcurrent:         2,
		MaxConcurrentArchives: 2,
		EventHistorySize:      1000,
	}, registry, StepDeps{Uploader: stubUploader{}})
	require.NoError(t, err)
	t.Cleanup(application.Stop)
	return application
}

func TestHappyPathArchiveNew(t *testing.T) {
	p := &demoPlugin{outDir: t.TempDir(), entries: []string{"vid_1"}}
	application := newTestApp(t, p)

	var mu sync.Mutex
	var pipelineEvents []events.Event
	done := make(chan struct{})
	application.Bus.SubscribeAll(func(e events.Event) {
		mu.Lock()
		defer mu.Unlock()
		switch e.Type {
		case events.EventPipelineStarted, events.EventStepStarted, events.EventStepComplete,
			events.EventStepSkipped, events.EventStepFailed,
			events.EventPipelineComplete, events.EventPipelineFailed:
			pipelineEvents = append(pipelineEvents, e)
		}
		if e.Type == events.EventPipelineComplete || e.Type == events.EventPipelineFailed {
			close(done)
		}
	})

	job := types.NewJob("demo hourly", "DemoPlugin", "0 * * * *")
	require.NoError(t, application.Scheduler.Add(context.Background(), job))

	execution, err := application.Scheduler.RunNow(context.Background(), job.ID)
	require.NoError(t, err)
	assert.True(t, execution.Success)
	assert.Equal(t, 1, execution.SourcesFound)
	assert.Equal(t, 1, execution.SourcesArchived)
	assert.True(t, application.Tracker.Contains("DemoPlugin", "vid_1"))

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("pipeline did not complete")
	}

	mu.Lock()
	defer mu.Unlock()

	// Default pipeline: ingest and upload run, analyze/encrypt/sync skipped
	var sequence []string
	for _, e := range pipelineEvents {
		switch e.Type {
		case events.EventStepStarted:
			sequence = append(sequence, "started:"+e.Payload["step_name"].(string))
		case events.EventStepComplete:
			sequence = append(sequence, "complete:"+e.Payload["step_name"].(string))
		case events.EventStepSkipped:
			sequence = append(sequence, "skipped:"+e.Payload["step_name"].(string))
		case events.EventPipelineComplete:
			sequence = append(sequence, "pipeline_complete")
		}
	}

	assert.Equal(t, []string{
		"started:ingest",
		"complete:ingest",
		"skipped:analyze",
		"skipped:encrypt",
		"started:upload",
		"complete:upload",
		"skipped:sync",
		"pipeline_complete",
	}, sequence)

	// Every pipeline event carries the same correlation ID
	correlation := pipelineEvents[0].CorrelationID
	for _, e := range pipelineEvents {
		assert.Equal(t, correlation, e.CorrelationID)
	}
}

func TestSecondRunArchivesNothing(t *testing.T) {
	p := &demoPlugin{outDir: t.TempDir(), entries: []string{"vid_1"}}
	application := newTestApp(t, p)

	pipelineRuns := 0
	var mu sync.Mutex
	first := make(chan struct{})
	application.Bus.Subscribe(events.EventPipelineComplete, func(events.Event) {
		mu.Lock()
		defer mu.Unlock()
		pipelineRuns++
		if pipelineRuns == 1 {
			close(first)
		}
	})

	job := types.NewJob("demo hourly", "DemoPlugin", "0 * * * *")
	require.NoError(t, application.Scheduler.Add(context.Background(), job))

	_, err := application.Scheduler.RunNow(context.Background(), job.ID)
	require.NoError(t, err)

	select {
	case <-first:
	case <-time.After(10 * time.Second):
		t.Fatal("first pipeline did not complete")
	}

	second, err := application.Scheduler.RunNow(context.Background(), job.ID)
	require.NoError(t, err)
	assert.True(t, second.Success)
	assert.Equal(t, 1, second.SourcesFound)
	assert.Equal(t, 0, second.SourcesArchived)

	// Give a straggler pipeline a moment to show up; none should
	time.Sleep(100 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, pipelineRuns)
}

func TestKnownSourcesSurviveRestart(t *testing.T) {
	dataDir := t.TempDir()
	outDir := t.TempDir()

	build := func() *Application {
		registry := plugin.NewRegistry()
		registry.Register("DemoPlugin", func(map[string]string) plugin.Plugin {
			return &demoPlugin{outDir: outDir, entries: []string{"vid_A"}}
		})
		application, err := New(Config{
			DataDir:               dataDir,
			MaxConcurrent:         2,
			MaxConcurrentArchives: 2,
		}, registry, StepDeps{Uploader: stubUploader{}})
		require.NoError(t, err)
		return application
	}

	application := build()
	job := types.NewJob("demo", "DemoPlugin", "0 * * * *")
	require.NoError(t, application.Scheduler.Add(context.Background(), job))
	execution, err := application.Scheduler.RunNow(context.Background(), job.ID)
	require.NoError(t, err)
	require.Equal(t, 1, execution.SourcesArchived)
	application.Stop()

	// Same data directory after a process restart
	reopened := build()
	defer reopened.Stop()
	require.NoError(t, reopened.Scheduler.Load())

	again, err := reopened.Scheduler.RunNow(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, again.SourcesFound)
	assert.Equal(t, 0, again.SourcesArchived)
}
