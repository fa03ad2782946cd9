package steps

import (
	"context"

	"github.com/haven-hvn/haven/pkg/events"
	"github.com/haven-hvn/haven/pkg/pipeline"
)

// UploadStep pushes the artifact to content-addressed storage. Enabled by
// default; disabled per run via the upload_enabled option. If the encrypt
// step produced an encrypted artifact, that is what gets uploaded.
type UploadStep struct {
	pipeline.ConditionalStep

	bus      *events.Bus
	uploader Uploader
}

// NewUploadStep creates the upload step
func NewUploadStep(bus *events.Bus, uploader Uploader) *UploadStep {
	return &UploadStep{
		ConditionalStep: pipeline.ConditionalStep{
			EnabledOption:  "upload_enabled",
			DefaultEnabled: true,
		},
		bus:      bus,
		uploader: uploader,
	}
}

func (s *UploadStep) Name() string { return "upload" }

func (s *UploadStep) Process(ctx context.Context, c *pipeline.Context) pipeline.StepResult {
	path := c.SourcePath
	if c.EncryptedPath != "" {
		path = c.EncryptedPath
	}

	s.bus.Publish(events.New(events.EventUploadRequested, s.Name(), c.ID, map[string]any{
		"path": path,
	}))

	if s.uploader == nil {
		return pipeline.Fail(s.Name(), pipeline.Fatal("UPLOAD_CONFIG_MISSING", "upload enabled but no uploader configured"))
	}

	progress := func(stage string, percent float64) {
		s.bus.Publish(events.New(events.EventUploadProgress, s.Name(), c.ID, map[string]any{
			"stage":   stage,
			"percent": percent,
		}))
	}

	result, err := s.uploader.Upload(ctx, path, progress)
	if err != nil {
		s.bus.Publish(events.New(events.EventUploadFailed, s.Name(), c.ID, map[string]any{
			"path":  path,
			"error": err.Error(),
		}))
		return pipeline.Fail(s.Name(), pipeline.Errorf(categorize(err), "UPLOAD_ERROR", err))
	}

	c.Upload = &result
	c.Touch()

	s.bus.Publish(events.New(events.EventUploadComplete, s.Name(), c.ID, map[string]any{
		"path":             path,
		"cid":              result.RootCID,
		"piece_cid":        result.PieceCID,
		"transaction_hash": result.TransactionHash,
	}))

	return pipeline.OK(s.Name(), map[string]any{
		"cid":              result.RootCID,
		"piece_cid":        result.PieceCID,
		"transaction_hash": result.TransactionHash,
	})
}
