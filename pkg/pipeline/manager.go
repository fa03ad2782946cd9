package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/haven-hvn/haven/pkg/events"
	"github.com/haven-hvn/haven/pkg/log"
	"github.com/haven-hvn/haven/pkg/metrics"
)

// DefaultMaxConcurrent bounds concurrent pipeline executions
const DefaultMaxConcurrent = 4

// Manager orchestrates the ordered step sequence for each work item and
// bounds concurrent executions with a weighted semaphore.
type Manager struct {
	steps  []Step
	bus    *events.Bus
	sem    *semaphore.Weighted
	logger zerolog.Logger

	mu     sync.Mutex
	active map[uuid.UUID]*Context
}

// NewManager creates a pipeline manager
func NewManager(maxConcurrent int, bus *events.Bus) *Manager {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}
	return &Manager{
		bus:    bus,
		sem:    semaphore.NewWeighted(int64(maxConcurrent)),
		logger: log.WithComponent("pipeline"),
		active: make(map[uuid.UUID]*Context),
	}
}

// RegisterStep appends a step; steps run in registration order
func (m *Manager) RegisterStep(step Step) *Manager {
	m.steps = append(m.steps, step)
	return m
}

// RegisterSteps appends multiple steps in order
func (m *Manager) RegisterSteps(steps ...Step) *Manager {
	for _, s := range steps {
		m.RegisterStep(s)
	}
	return m
}

// StepNames returns the registered step names in execution order
func (m *Manager) StepNames() []string {
	names := make([]string, len(m.steps))
	for i, s := range m.steps {
		names[i] = s.Name()
	}
	return names
}

// ActiveCount returns the number of pipelines currently in flight
func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}

// Cancel requests cooperative cancellation of an in-flight pipeline.
// In-progress steps observe the flag at their next suspension point.
func (m *Manager) Cancel(correlationID uuid.UUID) bool {
	m.mu.Lock()
	c, ok := m.active[correlationID]
	m.mu.Unlock()

	if !ok {
		return false
	}

	c.Cancel()
	m.emit(events.EventPipelineCancelled, c, map[string]any{
		"path": c.SourcePath,
	})
	return true
}

// Process runs every registered step in order for one context. Step errors
// never escape: they are normalized into StepResults, and a fatal error
// category stops the pipeline immediately.
func (m *Manager) Process(ctx context.Context, c *Context) *Result {
	startedAt := time.Now().UTC()
	var stepResults []StepResult

	m.mu.Lock()
	m.active[c.ID] = c
	m.mu.Unlock()
	metrics.PipelinesActive.Inc()

	defer func() {
		m.mu.Lock()
		delete(m.active, c.ID)
		m.mu.Unlock()
		metrics.PipelinesActive.Dec()
	}()

	m.emit(events.EventPipelineStarted, c, map[string]any{
		"path":  c.SourcePath,
		"steps": m.StepNames(),
	})

	cancelled := false
	for _, step := range m.steps {
		if c.Cancelled() || ctx.Err() != nil {
			cancelled = true
			break
		}

		result := m.runStep(ctx, step, c)
		stepResults = append(stepResults, result)

		if result.Failed() && result.Error != nil && result.Error.Category == CategoryFatal {
			m.logger.Warn().
				Str("correlation_id", c.ID.String()).
				Str("step", step.Name()).
				Str("code", result.Error.Code).
				Msg("Fatal step error, stopping pipeline")
			break
		}
	}

	result := resultFromSteps(stepResults, c.SourcePath, startedAt)
	metrics.PipelineDuration.Observe(result.TotalDuration.Seconds())

	if cancelled {
		result.Success = false
		if result.Error == "" {
			result.Error = "pipeline cancelled"
		}
		metrics.PipelinesTotal.WithLabelValues("cancelled").Inc()
		return result
	}

	if result.Success {
		metrics.PipelinesTotal.WithLabelValues("success").Inc()
		m.emit(events.EventPipelineComplete, c, map[string]any{
			"path":        c.SourcePath,
			"cid":         result.FinalContentID,
			"duration_ms": result.TotalDuration.Milliseconds(),
		})
	} else {
		metrics.PipelinesTotal.WithLabelValues("failed").Inc()
		failedNames := make([]string, 0)
		for _, sr := range result.FailedSteps() {
			failedNames = append(failedNames, sr.StepName)
		}
		m.emit(events.EventPipelineFailed, c, map[string]any{
			"path":         c.SourcePath,
			"error":        result.Error,
			"failed_steps": failedNames,
		})
	}

	return result
}

// runStep drives one step through skip check, retry loop and lifecycle hooks
func (m *Manager) runStep(ctx context.Context, step Step, c *Context) StepResult {
	if step.ShouldSkip(c) {
		reason := step.SkipReason(c)
		step.OnSkip(c, reason)
		m.emit(events.EventStepSkipped, c, map[string]any{
			"step_name": step.Name(),
			"reason":    reason,
		})
		metrics.StepResultsTotal.WithLabelValues(step.Name(), string(StatusSkipped)).Inc()
		return Skip(step.Name(), reason)
	}

	startedAt := time.Now().UTC()
	m.emit(events.EventStepStarted, c, map[string]any{
		"step_name": step.Name(),
	})
	step.OnStart(c)

	maxRetries := step.MaxRetries()
	if maxRetries < 1 {
		maxRetries = 1
	}

	var result StepResult
	attempts := 0
	for attempts < maxRetries {
		attempts++
		result = m.safeProcess(ctx, step, c)

		if result.Success() {
			result = result.withTiming(startedAt)
			result.Attempts = attempts
			step.OnComplete(c, result)
			m.emit(events.EventStepComplete, c, map[string]any{
				"step_name":   step.Name(),
				"duration_ms": result.Duration.Milliseconds(),
				"data":        result.Data,
			})
			metrics.StepResultsTotal.WithLabelValues(step.Name(), string(StatusSuccess)).Inc()
			metrics.StepDuration.WithLabelValues(step.Name()).Observe(result.Duration.Seconds())
			return result
		}

		if result.Failed() && result.Error != nil && result.Error.Retryable && attempts < maxRetries {
			metrics.StepRetriesTotal.WithLabelValues(step.Name()).Inc()
			if !m.waitForRetry(ctx, step.RetryDelay(), attempts, c) {
				break
			}
			continue
		}

		break
	}

	if result.Error == nil {
		result.Error = Permanent(
			fmt.Sprintf("%s_FAILED", strings.ToUpper(step.Name())),
			"step failed without specific error",
		)
		result.Status = StatusFailed
	}
	result = result.withTiming(startedAt)
	result.Attempts = attempts
	result.StepName = step.Name()

	c.AddError(step.Name(), result.Error.Code, result.Error.Message, result.Error.Details)
	step.OnError(c, result.Error)
	m.emit(events.EventStepFailed, c, map[string]any{
		"step_name":     step.Name(),
		"error_code":    result.Error.Code,
		"error_message": result.Error.Message,
		"category":      string(result.Error.Category),
		"attempts":      attempts,
	})
	metrics.StepResultsTotal.WithLabelValues(step.Name(), string(StatusFailed)).Inc()
	metrics.StepDuration.WithLabelValues(step.Name()).Observe(result.Duration.Seconds())

	return result
}

// safeProcess calls step.Process, converting an escaped panic into a failed
// result so one bad step can never take the process down
func (m *Manager) safeProcess(ctx context.Context, step Step, c *Context) (result StepResult) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error().
				Str("step", step.Name()).
				Str("correlation_id", c.ID.String()).
				Interface("panic", r).
				Msg("Step panicked")
			result = Fail(step.Name(), FromPanic(fmt.Sprintf("%s_ERROR", strings.ToUpper(step.Name())), r))
		}
	}()
	return step.Process(ctx, c)
}

// waitForRetry sleeps with exponential backoff: delay * 2^(attempt-1).
// Returns false if the wait was interrupted by cancellation.
func (m *Manager) waitForRetry(ctx context.Context, base time.Duration, attempt int, c *Context) bool {
	delay := base * time.Duration(1<<(attempt-1))

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return !c.Cancelled()
	case <-ctx.Done():
		return false
	}
}

// ProcessBatch runs the contexts concurrently, bounded by the manager's
// concurrency gate, and returns results in input order. A failure to acquire
// the gate (context cancelled) yields a failed result; nothing escapes.
func (m *Manager) ProcessBatch(ctx context.Context, contexts []*Context) []*Result {
	results := make([]*Result, len(contexts))

	var wg sync.WaitGroup
	for i, c := range contexts {
		wg.Add(1)
		go func(i int, c *Context) {
			defer wg.Done()

			if err := m.sem.Acquire(ctx, 1); err != nil {
				results[i] = &Result{
					Success:    false,
					SourcePath: c.SourcePath,
					Error:      err.Error(),
				}
				return
			}
			defer m.sem.Release(1)

			results[i] = m.Process(ctx, c)
		}(i, c)
	}
	wg.Wait()

	return results
}

// Enqueue processes the context in the background under the concurrency
// gate. The executor uses it to hand off archived files without awaiting
// pipeline completion.
func (m *Manager) Enqueue(ctx context.Context, c *Context) {
	go func() {
		if err := m.sem.Acquire(ctx, 1); err != nil {
			m.logger.Error().Err(err).Str("path", c.SourcePath).Msg("Pipeline enqueue aborted")
			return
		}
		defer m.sem.Release(1)

		result := m.Process(ctx, c)
		if result.Success {
			m.logger.Info().
				Str("path", c.SourcePath).
				Str("cid", result.FinalContentID).
				Msg("Pipeline completed")
		} else {
			m.logger.Error().
				Str("path", c.SourcePath).
				Str("error", result.Error).
				Msg("Pipeline failed")
		}
	}()
}

func (m *Manager) emit(eventType events.EventType, c *Context, payload map[string]any) {
	metrics.EventsPublished.WithLabelValues(string(eventType)).Inc()
	m.bus.Publish(events.New(eventType, "pipeline", c.ID, payload))
}
