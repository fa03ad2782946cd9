package types

import (
	"time"

	"github.com/google/uuid"
)

// OnSuccess defines what the executor does with discovered sources
type OnSuccess string

const (
	// OnSuccessArchiveAll archives every discovered source, known or not
	OnSuccessArchiveAll OnSuccess = "archive_all"

	// OnSuccessArchiveNew archives only sources not yet in the known set
	OnSuccessArchiveNew OnSuccess = "archive_new"

	// OnSuccessLogOnly records discovery results without archiving
	OnSuccessLogOnly OnSuccess = "log_only"
)

// Valid reports whether the policy is one of the known values
func (o OnSuccess) Valid() bool {
	switch o {
	case OnSuccessArchiveAll, OnSuccessArchiveNew, OnSuccessLogOnly:
		return true
	}
	return false
}

// Priority is the archive priority of a discovered source
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Job is a durable recurring job definition
type Job struct {
	ID         uuid.UUID
	Name       string
	PluginName string
	Schedule   string // cron expression, 5 or 6 fields
	OnSuccess  OnSuccess
	Enabled    bool
	Metadata   map[string]string
	LastRun    *time.Time
	NextRun    *time.Time
	RunCount   int
	ErrorCount int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NewJob creates a job with defaults applied
func NewJob(name, pluginName, schedule string) *Job {
	now := time.Now().UTC()
	return &Job{
		ID:         uuid.New(),
		Name:       name,
		PluginName: pluginName,
		Schedule:   schedule,
		OnSuccess:  OnSuccessArchiveNew,
		Enabled:    true,
		Metadata:   map[string]string{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// JobExecution is an append-only record of one job run.
// PluginName is denormalized so history survives job deletion.
type JobExecution struct {
	ID              uint64
	JobID           uuid.UUID
	PluginName      string
	StartedAt       time.Time
	CompletedAt     *time.Time
	Success         bool
	SourcesFound    int
	SourcesArchived int
	Error           string
	Metadata        map[string]string
}

// JobStatsUpdate describes an incremental stats update for a job
type JobStatsUpdate struct {
	LastRun        *time.Time
	NextRun        *time.Time
	IncrementRun   bool
	IncrementError bool
}

// MediaSource is a single item a plugin discovered
type MediaSource struct {
	SourceID  string
	MediaType string
	URI       string
	Title     string
	Priority  Priority
	Metadata  map[string]string
}

// ArchiveResult is the outcome of archiving one media source
type ArchiveResult struct {
	Success    bool
	OutputPath string
	FileSize   int64
	Duration   time.Duration // playback duration for timed media
	Error      string
	Metadata   map[string]string
}
