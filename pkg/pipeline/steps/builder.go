package steps

import (
	"github.com/haven-hvn/haven/pkg/events"
	"github.com/haven-hvn/haven/pkg/pipeline"
)

// Builder composes a pipeline manager with the default step ordering
// ingest → analyze → encrypt → upload → sync. Each optional step takes a
// default-enabled toggle; individual runs can still override via context
// options.
type Builder struct {
	bus           *events.Bus
	maxConcurrent int

	prober    Prober
	catalog   Catalog
	analyzer  Analyzer
	encryptor Encryptor
	uploader  Uploader
	syncer    Syncer

	// step constructors deferred until Build so collaborators can be set
	// in any order
	makers []func() pipeline.Step
}

// NewBuilder creates a builder publishing on the given bus
func NewBuilder(bus *events.Bus) *Builder {
	return &Builder{
		bus:           bus,
		maxConcurrent: pipeline.DefaultMaxConcurrent,
	}
}

// WithMaxConcurrent sets the pipeline concurrency gate capacity
func (b *Builder) WithMaxConcurrent(n int) *Builder {
	b.maxConcurrent = n
	return b
}

func (b *Builder) WithProber(p Prober) *Builder       { b.prober = p; return b }
func (b *Builder) WithCatalog(c Catalog) *Builder     { b.catalog = c; return b }
func (b *Builder) WithAnalyzer(a Analyzer) *Builder   { b.analyzer = a; return b }
func (b *Builder) WithEncryptor(e Encryptor) *Builder { b.encryptor = e; return b }
func (b *Builder) WithUploader(u Uploader) *Builder   { b.uploader = u; return b }
func (b *Builder) WithSyncer(s Syncer) *Builder       { b.syncer = s; return b }

// WithIngest adds the ingest step
func (b *Builder) WithIngest() *Builder {
	b.makers = append(b.makers, func() pipeline.Step {
		return NewIngestStep(b.bus, b.prober, b.catalog)
	})
	return b
}

// WithAnalysis adds the analyze step with the given default-enabled state
func (b *Builder) WithAnalysis(enabled bool) *Builder {
	b.makers = append(b.makers, func() pipeline.Step {
		return NewAnalyzeStep(b.bus, b.analyzer, enabled)
	})
	return b
}

// WithEncryption adds the encrypt step with the given default-enabled state
func (b *Builder) WithEncryption(enabled bool) *Builder {
	b.makers = append(b.makers, func() pipeline.Step {
		return NewEncryptStep(b.bus, b.encryptor, enabled)
	})
	return b
}

// WithUpload adds the upload step (enabled by default)
func (b *Builder) WithUpload() *Builder {
	b.makers = append(b.makers, func() pipeline.Step {
		return NewUploadStep(b.bus, b.uploader)
	})
	return b
}

// WithSync adds the sync step with the given default-enabled state
func (b *Builder) WithSync(enabled bool) *Builder {
	b.makers = append(b.makers, func() pipeline.Step {
		return NewSyncStep(b.bus, b.syncer, enabled)
	})
	return b
}

// WithStep adds a custom step
func (b *Builder) WithStep(step pipeline.Step) *Builder {
	b.makers = append(b.makers, func() pipeline.Step { return step })
	return b
}

// WithDefaultSteps adds the full default ordering: ingest and upload
// always-on, analysis, encryption and sync off unless a run opts in
func (b *Builder) WithDefaultSteps() *Builder {
	return b.
		WithIngest().
		WithAnalysis(false).
		WithEncryption(false).
		WithUpload().
		WithSync(false)
}

// Build constructs the pipeline manager with the configured steps
func (b *Builder) Build() *pipeline.Manager {
	manager := pipeline.NewManager(b.maxConcurrent, b.bus)
	for _, mk := range b.makers {
		manager.RegisterStep(mk())
	}
	return manager
}
