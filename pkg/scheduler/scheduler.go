package scheduler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/haven-hvn/haven/pkg/log"
	"github.com/haven-hvn/haven/pkg/metrics"
	"github.com/haven-hvn/haven/pkg/store"
	"github.com/haven-hvn/haven/pkg/types"
)

const (
	// DefaultMisfireGrace is how late a fire may be and still run
	DefaultMisfireGrace = 5 * time.Minute

	maxHistory = 1000
)

// cronParser accepts both 5-field (minute-first) and 6-field (seconds-first)
// expressions. Weekday 0 is Sunday; all evaluation happens in UTC.
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow,
)

// ParseSchedule validates a cron expression and returns its schedule
func ParseSchedule(expr string) (cron.Schedule, error) {
	fields := len(strings.Fields(expr))
	if fields != 5 && fields != 6 {
		return nil, fmt.Errorf("invalid cron schedule %q: expected 5 or 6 fields", expr)
	}
	schedule, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron schedule %q: %w", expr, err)
	}
	return schedule, nil
}

// Status describes the scheduler's current state
type Status struct {
	Running    bool
	TotalJobs  int
	ActiveJobs int
	EntryCount int
	NextRuns   map[string]time.Time
}

// Scheduler manages recurring jobs on cron schedules. Jobs live in the
// store; a versioned JSON state file holds a second copy of the definitions
// for recovery when the store is unavailable or corrupt.
type Scheduler struct {
	store    store.Store
	executor *Executor
	logger   zerolog.Logger
	dataDir  string

	misfireGrace time.Duration

	mu       sync.Mutex
	jobs     map[uuid.UUID]*types.Job
	entries  map[uuid.UUID]cron.EntryID
	inFlight map[uuid.UUID]bool
	engine   *cron.Cron
	running  bool
	history  []*types.JobExecution
}

// NewScheduler creates a scheduler persisting to st and backing up job
// definitions under dataDir
func NewScheduler(st store.Store, executor *Executor, dataDir string) *Scheduler {
	return &Scheduler{
		store:        st,
		executor:     executor,
		logger:       log.WithComponent("scheduler"),
		dataDir:      dataDir,
		misfireGrace: DefaultMisfireGrace,
		jobs:         make(map[uuid.UUID]*types.Job),
		entries:      make(map[uuid.UUID]cron.EntryID),
		inFlight:     make(map[uuid.UUID]bool),
	}
}

// Start loads persisted jobs, initializes the cron engine, and registers a
// trigger for every enabled job
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		s.logger.Warn().Msg("Scheduler already running")
		return nil
	}

	s.logger.Info().Msg("Starting job scheduler")

	if err := s.loadJobs(); err != nil {
		return err
	}

	s.engine = cron.New(
		cron.WithLocation(time.UTC),
		cron.WithParser(cronParser),
		cron.WithChain(cron.Recover(s.cronLogger())),
	)
	s.engine.Start()

	for _, job := range s.jobs {
		if job.Enabled {
			s.scheduleLocked(ctx, job)
		}
	}

	s.running = true
	s.updateJobGauges()
	s.logger.Info().Int("jobs", s.activeCountLocked()).Msg("Scheduler started")
	return nil
}

// Load fills the in-memory job map without starting the cron engine. Used
// by the admin CLI, which mutates jobs against a stopped scheduler.
func (s *Scheduler) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadJobs()
}

// Stop saves state, shuts down the cron engine waiting for in-flight fires,
// and marks the scheduler stopped
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.logger.Info().Msg("Stopping job scheduler")

	s.saveStateLocked()
	engine := s.engine
	s.engine = nil
	s.entries = make(map[uuid.UUID]cron.EntryID)
	s.running = false
	s.mu.Unlock()

	// Wait for in-flight job handlers to finish
	<-engine.Stop().Done()
	s.logger.Info().Msg("Scheduler stopped")
}

// Add registers a new job, persists it, and schedules it if the scheduler
// is running. Invalid cron expressions are rejected here.
func (s *Scheduler) Add(ctx context.Context, job *types.Job) error {
	if !job.OnSuccess.Valid() {
		return fmt.Errorf("invalid on_success policy: %s", job.OnSuccess)
	}
	schedule, err := ParseSchedule(job.Schedule)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if job.Enabled {
		next := schedule.Next(time.Now().UTC())
		job.NextRun = &next
	} else {
		job.NextRun = nil
	}

	s.jobs[job.ID] = job
	if s.running && job.Enabled {
		s.scheduleLocked(ctx, job)
	}

	if err := s.store.CreateJob(job); err != nil {
		return fmt.Errorf("failed to persist job: %w", err)
	}

	s.updateJobGauges()
	s.logger.Info().
		Str("job_id", job.ID.String()).
		Str("name", job.Name).
		Str("schedule", job.Schedule).
		Msg("Added job")
	return nil
}

// Remove deletes a job. Its execution history is left intact.
func (s *Scheduler) Remove(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[id]; !ok {
		return fmt.Errorf("job not found: %s", id)
	}

	s.unscheduleLocked(id)
	delete(s.jobs, id)

	if err := s.store.DeleteJob(id); err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}

	s.updateJobGauges()
	s.logger.Info().Str("job_id", id.String()).Msg("Removed job")
	return nil
}

// Pause disables a job. A second pause is a no-op.
func (s *Scheduler) Pause(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("job not found: %s", id)
	}
	if !job.Enabled {
		return nil
	}

	job.Enabled = false
	job.NextRun = nil
	s.unscheduleLocked(id)

	if err := s.store.UpdateJob(job); err != nil {
		return fmt.Errorf("failed to persist job: %w", err)
	}

	s.updateJobGauges()
	s.logger.Info().Str("job_id", id.String()).Msg("Paused job")
	return nil
}

// Resume re-enables a paused job and projects its next run. A second resume
// is a no-op.
func (s *Scheduler) Resume(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("job not found: %s", id)
	}
	if job.Enabled {
		return nil
	}

	job.Enabled = true
	next := s.nextRun(job.Schedule)
	job.NextRun = &next

	if err := s.store.UpdateJob(job); err != nil {
		return fmt.Errorf("failed to persist job: %w", err)
	}

	if s.running {
		s.scheduleLocked(ctx, job)
	}

	s.updateJobGauges()
	s.logger.Info().Str("job_id", id.String()).Msg("Resumed job")
	return nil
}

// RunNow executes a job immediately, bypassing its cron trigger. Disabled
// jobs are not run.
func (s *Scheduler) RunNow(ctx context.Context, id uuid.UUID) (*types.JobExecution, error) {
	s.mu.Lock()
	job, ok := s.jobs[id]
	s.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("job not found: %s", id)
	}
	if !job.Enabled {
		now := time.Now().UTC()
		return &types.JobExecution{
			JobID:       id,
			PluginName:  job.PluginName,
			StartedAt:   now,
			CompletedAt: &now,
			Error:       "job disabled",
		}, nil
	}

	return s.runJob(ctx, job), nil
}

// Job returns a job by ID
func (s *Scheduler) Job(id uuid.UUID) (*types.Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	return job, ok
}

// Jobs returns all registered jobs
func (s *Scheduler) Jobs() []*types.Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*types.Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, job)
	}
	return out
}

// History returns recent executions from the in-memory ring, optionally
// filtered by job ID, newest last
func (s *Scheduler) History(jobID *uuid.UUID, limit int) []*types.JobExecution {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*types.JobExecution
	for _, execution := range s.history {
		if jobID != nil && execution.JobID != *jobID {
			continue
		}
		out = append(out, execution)
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

// CleanupHistory deletes persisted executions older than the given age
func (s *Scheduler) CleanupHistory(olderThan time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	deleted, err := s.store.DeleteExecutionsBefore(cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up history: %w", err)
	}
	s.logger.Info().Int("deleted", deleted).Msg("Cleaned up old execution records")
	return deleted, nil
}

// Status reports the scheduler's current state
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := Status{
		Running:    s.running,
		TotalJobs:  len(s.jobs),
		ActiveJobs: s.activeCountLocked(),
		EntryCount: len(s.entries),
		NextRuns:   make(map[string]time.Time),
	}

	for id, entryID := range s.entries {
		var next time.Time
		if s.engine != nil {
			next = s.engine.Entry(entryID).Next
		}
		// A freshly added entry may not be visible in the engine yet
		if next.IsZero() {
			if job, ok := s.jobs[id]; ok && job.NextRun != nil {
				next = *job.NextRun
			}
		}
		if !next.IsZero() {
			status.NextRuns[id.String()] = next
		}
	}
	return status
}

// SaveState writes the JSON backup of current job definitions
func (s *Scheduler) SaveState() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveStateLocked()
}

// scheduleLocked registers a cron entry for the job. Caller holds s.mu.
func (s *Scheduler) scheduleLocked(ctx context.Context, job *types.Job) {
	if s.engine == nil {
		return
	}

	id := job.ID
	entryID, err := s.engine.AddFunc(job.Schedule, func() {
		s.fire(ctx, id)
	})
	if err != nil {
		s.logger.Error().Err(err).
			Str("job_id", id.String()).
			Str("schedule", job.Schedule).
			Msg("Failed to schedule job")
		return
	}
	s.entries[id] = entryID

	entry := s.engine.Entry(entryID)
	if !entry.Next.IsZero() {
		next := entry.Next
		job.NextRun = &next
	}
}

// unscheduleLocked removes the job's cron entry if present. Caller holds s.mu.
func (s *Scheduler) unscheduleLocked(id uuid.UUID) {
	if entryID, ok := s.entries[id]; ok {
		if s.engine != nil {
			s.engine.Remove(entryID)
		}
		delete(s.entries, id)
	}
}

// fire is the cron trigger handler for one job
func (s *Scheduler) fire(ctx context.Context, id uuid.UUID) {
	s.mu.Lock()
	job, ok := s.jobs[id]
	if !ok || !job.Enabled {
		s.mu.Unlock()
		s.logger.Warn().Str("job_id", id.String()).Msg("Job missing or disabled, skipping fire")
		return
	}

	// One instance per job: a tick that lands while the previous run is
	// still going is coalesced away
	if s.inFlight[id] {
		s.mu.Unlock()
		s.logger.Warn().Str("job_id", id.String()).Msg("Previous run still in flight, coalescing")
		return
	}

	// A fire delayed past the misfire grace is dropped, not run late
	if job.NextRun != nil {
		if late := time.Now().UTC().Sub(*job.NextRun); late > s.misfireGrace {
			s.mu.Unlock()
			s.logger.Warn().
				Str("job_id", id.String()).
				Dur("late", late).
				Msg("Job missed scheduled run beyond grace, dropping")
			s.advanceNextRun(id)
			return
		}
	}

	s.inFlight[id] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.inFlight, id)
		s.mu.Unlock()
	}()

	s.logger.Info().Str("job_id", id.String()).Str("name", job.Name).Msg("Executing scheduled job")
	s.runJob(ctx, job)
	s.advanceNextRun(id)
}

// runJob executes the job, updates stats and records history
func (s *Scheduler) runJob(ctx context.Context, job *types.Job) *types.JobExecution {
	execution := s.executor.Execute(ctx, job)

	s.mu.Lock()
	job.LastRun = &execution.StartedAt
	job.RunCount++
	if !execution.Success {
		job.ErrorCount++
	}

	s.history = append(s.history, execution)
	if len(s.history) > maxHistory {
		s.history = s.history[len(s.history)-maxHistory:]
	}
	s.mu.Unlock()

	if err := s.store.UpdateJobStats(job.ID, types.JobStatsUpdate{
		LastRun:        &execution.StartedAt,
		IncrementRun:   true,
		IncrementError: !execution.Success,
	}); err != nil {
		s.logger.Error().Err(err).Str("job_id", job.ID.String()).Msg("Failed to update job stats")
	}

	if execution.Success {
		s.logger.Info().
			Str("job_id", job.ID.String()).
			Int("found", execution.SourcesFound).
			Int("archived", execution.SourcesArchived).
			Msg("Job completed")
	} else {
		s.logger.Error().
			Str("job_id", job.ID.String()).
			Str("error", execution.Error).
			Msg("Job failed")
	}

	return execution
}

// advanceNextRun refreshes the job's next-run projection from the engine
// and persists it
func (s *Scheduler) advanceNextRun(id uuid.UUID) {
	s.mu.Lock()
	job, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		return
	}

	var next time.Time
	if entryID, ok := s.entries[id]; ok && s.engine != nil {
		next = s.engine.Entry(entryID).Next
	}
	if next.IsZero() {
		next = s.nextRun(job.Schedule)
	}
	job.NextRun = &next
	s.mu.Unlock()

	if err := s.store.UpdateJobStats(id, types.JobStatsUpdate{NextRun: &next}); err != nil {
		s.logger.Error().Err(err).Str("job_id", id.String()).Msg("Failed to persist next run")
	}
}

// nextRun projects the next fire time, falling back to one hour from now
// when the expression does not parse
func (s *Scheduler) nextRun(expr string) time.Time {
	now := time.Now().UTC()
	schedule, err := ParseSchedule(expr)
	if err != nil {
		s.logger.Error().Err(err).Str("schedule", expr).Msg("Failed to project next run")
		return now.Add(time.Hour)
	}
	return schedule.Next(now)
}

func (s *Scheduler) activeCountLocked() int {
	count := 0
	for _, job := range s.jobs {
		if job.Enabled {
			count++
		}
	}
	return count
}

func (s *Scheduler) updateJobGauges() {
	active := float64(s.activeCountLocked())
	metrics.JobsTotal.WithLabelValues("true").Set(active)
	metrics.JobsTotal.WithLabelValues("false").Set(float64(len(s.jobs)) - active)
}

// cronLogger adapts zerolog to the cron.Logger interface
type cronLogger struct {
	logger zerolog.Logger
}

func (s *Scheduler) cronLogger() cron.Logger {
	return cronLogger{logger: s.logger}
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
