package store

import (
	"time"

	"github.com/google/uuid"

	"github.com/haven-hvn/haven/pkg/types"
)

// Store defines the interface for durable job and execution-history storage.
// All writes are durable before return. Implemented by BoltStore.
type Store interface {
	// Jobs
	CreateJob(job *types.Job) error
	GetJob(id uuid.UUID) (*types.Job, error)
	ListJobs() ([]*types.Job, error)
	ListEnabledJobs() ([]*types.Job, error)
	UpdateJob(job *types.Job) error
	DeleteJob(id uuid.UUID) error
	UpdateJobStats(id uuid.UUID, update types.JobStatsUpdate) error

	// Execution history. Records are append-only and survive job deletion.
	RecordExecution(execution *types.JobExecution) error
	ListExecutions(jobID *uuid.UUID, limit, offset int) ([]*types.JobExecution, error)
	RecentExecutions(limit int) ([]*types.JobExecution, error)
	SuccessCount(jobID *uuid.UUID) (int, error)
	FailureCount(jobID *uuid.UUID) (int, error)
	DeleteExecutionsBefore(cutoff time.Time) (int, error)

	// Utility
	Close() error
}
