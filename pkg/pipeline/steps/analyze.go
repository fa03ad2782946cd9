package steps

import (
	"context"

	"github.com/haven-hvn/haven/pkg/events"
	"github.com/haven-hvn/haven/pkg/pipeline"
)

// AnalyzeStep runs vision-model content analysis. Disabled by default;
// enabled per run via the analyze_enabled option.
type AnalyzeStep struct {
	pipeline.ConditionalStep

	bus      *events.Bus
	analyzer Analyzer
}

// NewAnalyzeStep creates the analyze step
func NewAnalyzeStep(bus *events.Bus, analyzer Analyzer, defaultEnabled bool) *AnalyzeStep {
	return &AnalyzeStep{
		ConditionalStep: pipeline.ConditionalStep{
			EnabledOption:  "analyze_enabled",
			DefaultEnabled: defaultEnabled,
		},
		bus:      bus,
		analyzer: analyzer,
	}
}

func (s *AnalyzeStep) Name() string { return "analyze" }

func (s *AnalyzeStep) Process(ctx context.Context, c *pipeline.Context) pipeline.StepResult {
	s.bus.Publish(events.New(events.EventAnalysisRequested, s.Name(), c.ID, map[string]any{
		"path": c.SourcePath,
	}))

	if s.analyzer == nil {
		// Analysis was requested for this run but no analyzer is configured
		return pipeline.Fail(s.Name(), pipeline.Fatal("ANALYSIS_CONFIG_MISSING", "analysis enabled but no analyzer configured"))
	}

	result, err := s.analyzer.Analyze(ctx, c.SourcePath)
	if err != nil {
		s.bus.Publish(events.New(events.EventAnalysisFailed, s.Name(), c.ID, map[string]any{
			"path":  c.SourcePath,
			"error": err.Error(),
		}))
		return pipeline.Fail(s.Name(), pipeline.Errorf(categorize(err), "ANALYSIS_ERROR", err))
	}

	c.Analysis = &result
	c.Touch()

	s.bus.Publish(events.New(events.EventAnalysisComplete, s.Name(), c.ID, map[string]any{
		"path":       c.SourcePath,
		"tag_count":  len(result.Tags),
		"confidence": result.Confidence,
	}))

	return pipeline.OK(s.Name(), map[string]any{
		"tag_count":     len(result.Tags),
		"segment_count": len(result.Segments),
		"confidence":    result.Confidence,
	})
}
