package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/haven-hvn/haven/pkg/events"
	"github.com/haven-hvn/haven/pkg/log"
	"github.com/haven-hvn/haven/pkg/metrics"
	"github.com/haven-hvn/haven/pkg/pipeline"
	"github.com/haven-hvn/haven/pkg/plugin"
	"github.com/haven-hvn/haven/pkg/sources"
	"github.com/haven-hvn/haven/pkg/store"
	"github.com/haven-hvn/haven/pkg/types"
)

// DefaultMaxConcurrentArchives bounds plugin.Archive calls per executing job
const DefaultMaxConcurrentArchives = 3

// Executor runs one job: resolve plugin, discover, filter against the known
// set, archive new items with bounded concurrency, and hand archived files
// to the pipeline without awaiting completion.
type Executor struct {
	plugins     *plugin.Manager
	tracker     *sources.Tracker
	pipeline    *pipeline.Manager
	store       store.Store
	bus         *events.Bus
	logger      zerolog.Logger
	maxArchives int64
}

// NewExecutor creates a job executor. pipeline and store may be nil: without
// a pipeline archived files are left on disk, and without a store execution
// records are only kept by the caller.
func NewExecutor(
	plugins *plugin.Manager,
	tracker *sources.Tracker,
	pipelineMgr *pipeline.Manager,
	st store.Store,
	bus *events.Bus,
	maxConcurrentArchives int,
) *Executor {
	if maxConcurrentArchives <= 0 {
		maxConcurrentArchives = DefaultMaxConcurrentArchives
	}
	return &Executor{
		plugins:     plugins,
		tracker:     tracker,
		pipeline:    pipelineMgr,
		store:       st,
		bus:         bus,
		logger:      log.WithComponent("executor"),
		maxArchives: int64(maxConcurrentArchives),
	}
}

// Execute runs the job to completion and returns its execution record.
// Archive failures are logged and skipped; the run as a whole still counts
// as successful, so SourcesFound may exceed SourcesArchived. Execute never
// returns an error: failures are reported inside the record.
func (e *Executor) Execute(ctx context.Context, job *types.Job) *types.JobExecution {
	timer := metrics.NewTimer()
	execution := &types.JobExecution{
		JobID:      job.ID,
		PluginName: job.PluginName,
		StartedAt:  time.Now().UTC(),
	}
	defer func() {
		now := time.Now().UTC()
		execution.CompletedAt = &now
		timer.ObserveDuration(metrics.JobExecutionDuration)

		outcome := "success"
		if !execution.Success {
			outcome = "failure"
		}
		metrics.JobExecutionsTotal.WithLabelValues(outcome).Inc()

		e.recordExecution(execution)
	}()

	// A misbehaving plugin must not take the daemon down
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error().
				Str("plugin", job.PluginName).
				Interface("panic", r).
				Msg("Job execution panicked")
			execution.Success = false
			execution.Error = fmt.Sprintf("panic: %v", r)
		}
	}()

	p, err := e.plugins.Get(ctx, job.PluginName)
	if err != nil {
		execution.Error = fmt.Sprintf("plugin not found: %s: %v", job.PluginName, err)
		return execution
	}

	if !p.HealthCheck(ctx) {
		execution.Error = fmt.Sprintf("plugin unhealthy: %s", job.PluginName)
		return execution
	}

	discovered, err := p.Discover(ctx)
	if err != nil {
		execution.Error = fmt.Sprintf("discovery failed: %v", err)
		return execution
	}
	execution.SourcesFound = len(discovered)
	metrics.SourcesDiscovered.WithLabelValues(job.PluginName).Add(float64(len(discovered)))

	e.bus.Publish(events.New(events.EventSourcesDiscovered, "executor", job.ID, map[string]any{
		"plugin":  job.PluginName,
		"job_id":  job.ID.String(),
		"found":   len(discovered),
	}))

	e.logger.Info().
		Str("plugin", job.PluginName).
		Str("job_id", job.ID.String()).
		Int("found", len(discovered)).
		Msg("Discovery complete")

	if len(discovered) == 0 {
		execution.Success = true
		return execution
	}

	toArchive := e.filterSources(discovered, job)
	if len(toArchive) > 0 {
		execution.SourcesArchived = e.archiveSources(ctx, p, job, toArchive)
	}

	execution.Success = true
	return execution
}

// filterSources applies the job's on-success policy
func (e *Executor) filterSources(discovered []types.MediaSource, job *types.Job) []types.MediaSource {
	switch job.OnSuccess {
	case types.OnSuccessLogOnly:
		return nil
	case types.OnSuccessArchiveAll:
		// Deliberate re-archive-everything mode: the known set is neither
		// consulted nor updated
		return discovered
	default: // archive_new
		ids := make([]string, len(discovered))
		for i, s := range discovered {
			ids[i] = s.SourceID
		}
		fresh := make(map[string]struct{})
		for _, id := range e.tracker.FilterNew(job.PluginName, ids) {
			fresh[id] = struct{}{}
		}

		var out []types.MediaSource
		for _, s := range discovered {
			if _, ok := fresh[s.SourceID]; ok {
				out = append(out, s)
			}
		}
		return out
	}
}

// archiveSources archives each source under the archive concurrency gate
// and returns how many succeeded
func (e *Executor) archiveSources(ctx context.Context, p plugin.Plugin, job *types.Job, toArchive []types.MediaSource) int {
	sem := semaphore.NewWeighted(e.maxArchives)

	var (
		mu       sync.Mutex
		archived int
		wg       sync.WaitGroup
	)

	for _, source := range toArchive {
		wg.Add(1)
		go func(source types.MediaSource) {
			defer wg.Done()

			if err := sem.Acquire(ctx, 1); err != nil {
				return
			}
			defer sem.Release(1)

			if e.archiveOne(ctx, p, job, source) {
				mu.Lock()
				archived++
				mu.Unlock()
			}
		}(source)
	}
	wg.Wait()

	return archived
}

// archiveOne archives a single source, marks it known, and enqueues the
// result into the pipeline
func (e *Executor) archiveOne(ctx context.Context, p plugin.Plugin, job *types.Job, source types.MediaSource) (archived bool) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error().
				Str("plugin", job.PluginName).
				Str("source_id", source.SourceID).
				Interface("panic", r).
				Msg("Archive panicked")
			archived = false
		}
	}()

	timer := metrics.NewTimer()

	e.bus.Publish(events.New(events.EventArchiveStarted, "executor", job.ID, map[string]any{
		"plugin":    job.PluginName,
		"source_id": source.SourceID,
		"uri":       source.URI,
	}))

	result, err := p.Archive(ctx, source)
	timer.ObserveDurationVec(metrics.ArchiveDuration, job.PluginName)

	if err != nil || !result.Success {
		metrics.ArchiveFailures.WithLabelValues(job.PluginName).Inc()
		errMsg := result.Error
		if err != nil {
			errMsg = err.Error()
		}
		e.logger.Warn().
			Str("plugin", job.PluginName).
			Str("source_id", source.SourceID).
			Str("error", errMsg).
			Msg("Failed to archive source")
		return false
	}

	metrics.SourcesArchived.WithLabelValues(job.PluginName).Inc()
	e.bus.Publish(events.New(events.EventArchiveComplete, "executor", job.ID, map[string]any{
		"plugin":    job.PluginName,
		"source_id": source.SourceID,
		"path":      result.OutputPath,
		"file_size": result.FileSize,
	}))

	// Only archive_new consults the known set, so only archive_new feeds it
	if job.OnSuccess == types.OnSuccessArchiveNew {
		if err := e.tracker.Add(job.PluginName, source.SourceID); err != nil {
			e.logger.Error().Err(err).
				Str("plugin", job.PluginName).
				Str("source_id", source.SourceID).
				Msg("Failed to mark source as known")
		}
	}

	e.enqueueToPipeline(ctx, result.OutputPath, job, source)
	return true
}

// enqueueToPipeline hands the archived file to the pipeline without waiting
// for it to finish
func (e *Executor) enqueueToPipeline(ctx context.Context, outputPath string, job *types.Job, source types.MediaSource) {
	if e.pipeline == nil {
		e.logger.Warn().Str("path", outputPath).Msg("No pipeline configured, leaving archive on disk")
		return
	}

	options := map[string]any{
		"job_id":      job.ID.String(),
		"plugin_name": job.PluginName,
		"source_id":   source.SourceID,
		"source_uri":  source.URI,
	}
	for k, v := range source.Metadata {
		options[k] = v
	}
	for k, v := range job.Metadata {
		options[k] = v
	}

	e.pipeline.Enqueue(ctx, pipeline.NewContext(outputPath, options))
}

// recordExecution persists the record best-effort; a store failure never
// fails the run
func (e *Executor) recordExecution(execution *types.JobExecution) {
	if e.store == nil {
		return
	}
	if err := e.store.RecordExecution(execution); err != nil {
		e.logger.Error().Err(err).
			Str("job_id", execution.JobID.String()).
			Msg("Failed to persist execution record")
	}
}

// BatchExecutor runs multiple jobs concurrently under a shared gate
type BatchExecutor struct {
	executor      *Executor
	maxConcurrent int64
}

// NewBatchExecutor creates a batch executor over the given executor
func NewBatchExecutor(executor *Executor, maxConcurrent int) *BatchExecutor {
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	return &BatchExecutor{
		executor:      executor,
		maxConcurrent: int64(maxConcurrent),
	}
}

// ExecuteBatch runs the jobs concurrently and returns records in input order
func (b *BatchExecutor) ExecuteBatch(ctx context.Context, jobs []*types.Job) []*types.JobExecution {
	sem := semaphore.NewWeighted(b.maxConcurrent)
	results := make([]*types.JobExecution, len(jobs))

	var wg sync.WaitGroup
	for i, job := range jobs {
		wg.Add(1)
		go func(i int, job *types.Job) {
			defer wg.Done()

			if err := sem.Acquire(ctx, 1); err != nil {
				now := time.Now().UTC()
				results[i] = &types.JobExecution{
					JobID:       job.ID,
					PluginName:  job.PluginName,
					StartedAt:   now,
					CompletedAt: &now,
					Error:       err.Error(),
				}
				return
			}
			defer sem.Release(1)

			results[i] = b.executor.Execute(ctx, job)
		}(i, job)
	}
	wg.Wait()

	return results
}
