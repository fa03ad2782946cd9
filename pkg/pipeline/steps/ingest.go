package steps

import (
	"context"
	"mime"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/haven-hvn/haven/pkg/events"
	"github.com/haven-hvn/haven/pkg/log"
	"github.com/haven-hvn/haven/pkg/pipeline"
)

// IngestStep validates the archived file, extracts media metadata and a
// perceptual hash, and checks the catalog for duplicates. It always runs;
// everything downstream depends on its output.
type IngestStep struct {
	pipeline.BaseStep

	bus     *events.Bus
	prober  Prober
	catalog Catalog
	logger  zerolog.Logger
}

// NewIngestStep creates the ingest step. prober and catalog may be nil, in
// which case only basic file metadata is collected.
func NewIngestStep(bus *events.Bus, prober Prober, catalog Catalog) *IngestStep {
	return &IngestStep{
		bus:     bus,
		prober:  prober,
		catalog: catalog,
		logger:  log.WithComponent("ingest"),
	}
}

func (s *IngestStep) Name() string { return "ingest" }

func (s *IngestStep) Process(ctx context.Context, c *pipeline.Context) pipeline.StepResult {
	fi, err := os.Stat(c.SourcePath)
	if os.IsNotExist(err) {
		return pipeline.Fail(s.Name(), pipeline.Fatal("FILE_NOT_FOUND", "source file does not exist: "+c.SourcePath))
	}
	if err != nil {
		return pipeline.Fail(s.Name(), pipeline.Errorf(pipeline.CategoryUnknown, "INGEST_ERROR", err))
	}
	if !fi.Mode().IsRegular() {
		return pipeline.Fail(s.Name(), pipeline.Fatal("NOT_A_FILE", "source path is not a regular file: "+c.SourcePath))
	}

	info := pipeline.MediaInfo{
		Path:     c.SourcePath,
		Title:    c.Title(),
		FileSize: fi.Size(),
		MimeType: mime.TypeByExtension(filepath.Ext(c.SourcePath)),
	}
	if uri := c.OptionString("source_uri"); uri != "" {
		info.SourceURI = uri
	}

	if s.prober != nil {
		probed, err := s.prober.Probe(ctx, c.SourcePath)
		if err != nil {
			return pipeline.Fail(s.Name(), pipeline.Errorf(categorize(err), "INGEST_ERROR", err))
		}
		if probed.Title != "" {
			info.Title = probed.Title
		}
		if probed.MimeType != "" {
			info.MimeType = probed.MimeType
		}
		info.Duration = probed.Duration
		info.ContentHash = probed.ContentHash
	}

	if s.catalog != nil && info.ContentHash != "" {
		dup, err := s.catalog.IsDuplicate(ctx, info.ContentHash)
		if err != nil {
			// Catalog reads are advisory; treat failure as not-a-duplicate
			s.logger.Warn().Err(err).Str("path", c.SourcePath).Msg("Duplicate check failed")
		} else if dup {
			info.Duplicate = true
			c.Media = &info
			return pipeline.Fail(s.Name(), pipeline.Permanent("DUPLICATE_VIDEO", "content hash already in catalog"))
		}
	}

	c.Media = &info
	c.Touch()

	if s.catalog != nil {
		if err := s.catalog.RecordMedia(ctx, info); err != nil {
			// The file is already on disk; a catalog write failure must not
			// fail the step
			s.logger.Error().Err(err).Str("path", c.SourcePath).Msg("Failed to record media in catalog")
		}
	}

	s.bus.Publish(events.New(events.EventVideoIngested, s.Name(), c.ID, map[string]any{
		"path":         info.Path,
		"content_hash": info.ContentHash,
		"file_size":    info.FileSize,
		"duration":     info.Duration.Seconds(),
		"is_duplicate": info.Duplicate,
	}))

	return pipeline.OK(s.Name(), map[string]any{
		"content_hash": info.ContentHash,
		"file_size":    info.FileSize,
		"mime_type":    info.MimeType,
	})
}
