package store

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haven-hvn/haven/pkg/types"
)

func newTestStore(t *testing.T) *BoltStore {
	t.Helper()
	s, err := NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateAndGetJob(t *testing.T) {
	s := newTestStore(t)

	job := types.NewJob("Hourly Demo", "DemoPlugin", "0 * * * *")
	require.NoError(t, s.CreateJob(job))

	loaded, err := s.GetJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, loaded.ID)
	assert.Equal(t, "Hourly Demo", loaded.Name)
	assert.Equal(t, "DemoPlugin", loaded.PluginName)
	assert.Equal(t, types.OnSuccessArchiveNew, loaded.OnSuccess)
	assert.True(t, loaded.Enabled)
}

func TestGetJobNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetJob(uuid.New())
	assert.Error(t, err)
}

func TestListEnabledJobs(t *testing.T) {
	s := newTestStore(t)

	enabled := types.NewJob("on", "DemoPlugin", "0 * * * *")
	disabled := types.NewJob("off", "DemoPlugin", "0 * * * *")
	disabled.Enabled = false
	require.NoError(t, s.CreateJob(enabled))
	require.NoError(t, s.CreateJob(disabled))

	all, err := s.ListJobs()
	require.NoError(t, err)
	assert.Len(t, all, 2)

	active, err := s.ListEnabledJobs()
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, enabled.ID, active[0].ID)
}

func TestUpdateJobStats(t *testing.T) {
	s := newTestStore(t)

	job := types.NewJob("stats", "DemoPlugin", "0 * * * *")
	require.NoError(t, s.CreateJob(job))

	lastRun := time.Now().UTC()
	nextRun := lastRun.Add(time.Hour)
	require.NoError(t, s.UpdateJobStats(job.ID, types.JobStatsUpdate{
		LastRun:        &lastRun,
		NextRun:        &nextRun,
		IncrementRun:   true,
		IncrementError: true,
	}))
	require.NoError(t, s.UpdateJobStats(job.ID, types.JobStatsUpdate{
		IncrementRun: true,
	}))

	loaded, err := s.GetJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.RunCount)
	assert.Equal(t, 1, loaded.ErrorCount)
	require.NotNil(t, loaded.LastRun)
	assert.WithinDuration(t, lastRun, *loaded.LastRun, time.Second)
	require.NotNil(t, loaded.NextRun)
	assert.WithinDuration(t, nextRun, *loaded.NextRun, time.Second)
}

func TestDeleteJobKeepsHistory(t *testing.T) {
	s := newTestStore(t)

	job := types.NewJob("doomed", "DemoPlugin", "0 * * * *")
	require.NoError(t, s.CreateJob(job))
	require.NoError(t, s.RecordExecution(&types.JobExecution{
		JobID:      job.ID,
		PluginName: job.PluginName,
		StartedAt:  time.Now().UTC(),
		Success:    true,
	}))

	require.NoError(t, s.DeleteJob(job.ID))
	_, err := s.GetJob(job.ID)
	assert.Error(t, err)

	// Orphan history stays queryable via the denormalized plugin name
	executions, err := s.ListExecutions(&job.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, executions, 1)
	assert.Equal(t, "DemoPlugin", executions[0].PluginName)
}

func TestListExecutionsNewestFirst(t *testing.T) {
	s := newTestStore(t)

	jobID := uuid.New()
	base := time.Now().UTC()
	for i := 0; i < 5; i++ {
		require.NoError(t, s.RecordExecution(&types.JobExecution{
			JobID:        jobID,
			PluginName:   "DemoPlugin",
			StartedAt:    base.Add(time.Duration(i) * time.Minute),
			Success:      true,
			SourcesFound: i,
		}))
	}

	executions, err := s.ListExecutions(&jobID, 3, 0)
	require.NoError(t, err)
	require.Len(t, executions, 3)
	assert.Equal(t, 4, executions[0].SourcesFound)
	assert.Equal(t, 2, executions[2].SourcesFound)

	// Offset skips the newest records
	offset, err := s.ListExecutions(&jobID, 2, 2)
	require.NoError(t, err)
	require.Len(t, offset, 2)
	assert.Equal(t, 2, offset[0].SourcesFound)
}

func TestSuccessAndFailureCounts(t *testing.T) {
	s := newTestStore(t)

	jobID := uuid.New()
	otherID := uuid.New()
	for _, success := range []bool{true, true, false} {
		require.NoError(t, s.RecordExecution(&types.JobExecution{
			JobID:      jobID,
			PluginName: "DemoPlugin",
			StartedAt:  time.Now().UTC(),
			Success:    success,
		}))
	}
	require.NoError(t, s.RecordExecution(&types.JobExecution{
		JobID:      otherID,
		PluginName: "OtherPlugin",
		StartedAt:  time.Now().UTC(),
		Success:    true,
	}))

	successes, err := s.SuccessCount(&jobID)
	require.NoError(t, err)
	assert.Equal(t, 2, successes)

	failures, err := s.FailureCount(&jobID)
	require.NoError(t, err)
	assert.Equal(t, 1, failures)

	allSuccesses, err := s.SuccessCount(nil)
	require.NoError(t, err)
	assert.Equal(t, 3, allSuccesses)
}

func TestDeleteExecutionsBefore(t *testing.T) {
	s := newTestStore(t)

	jobID := uuid.New()
	now := time.Now().UTC()
	for _, age := range []time.Duration{48 * time.Hour, 36 * time.Hour, time.Hour} {
		require.NoError(t, s.RecordExecution(&types.JobExecution{
			JobID:      jobID,
			PluginName: "DemoPlugin",
			StartedAt:  now.Add(-age),
			Success:    true,
		}))
	}

	deleted, err := s.DeleteExecutionsBefore(now.Add(-24 * time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	remaining, err := s.ListExecutions(&jobID, 10, 0)
	require.NoError(t, err)
	assert.Len(t, remaining, 1)
}

func TestJobRoundTripAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	s, err := NewBoltStore(dir)
	require.NoError(t, err)

	job := types.NewJob("durable", "DemoPlugin", "*/30 * * * *")
	job.Metadata = map[string]string{"channel": "news"}
	require.NoError(t, s.CreateJob(job))
	require.NoError(t, s.Close())

	reopened, err := NewBoltStore(dir)
	require.NoError(t, err)
	defer reopened.Close()

	loaded, err := reopened.GetJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.Name, loaded.Name)
	assert.Equal(t, job.Schedule, loaded.Schedule)
	assert.Equal(t, "news", loaded.Metadata["channel"])
}
