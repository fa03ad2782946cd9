package store

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/haven-hvn/haven/pkg/types"
)

var (
	// Bucket names
	bucketJobs       = []byte("jobs")
	bucketExecutions = []byte("job_executions")
)

// BoltStore implements Store interface using BoltDB
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore creates a new BoltDB-backed store
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "haven.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Create buckets
	err = db.Update(func(tx *bolt.Tx) error {
		buckets := [][]byte{
			bucketJobs,
			bucketExecutions,
		}

		for _, bucket := range buckets {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})

	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Job operations

func (s *BoltStore) CreateJob(job *types.Job) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketJobs)
		data, err := json.Marshal(job)
		if err != nil {
			return err
		}
		return b.Put([]byte(job.ID.String()), data)
	})
}

func (s *BoltStore) GetJob(id uuid.UUID) (*types.Job, error) {
	var job types.Job
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketJobs)
		data := b.Get([]byte(id.String()))
		if data == nil {
			return fmt.Errorf("job not found: %s", id)
		}
		return json.Unmarshal(data, &job)
	})
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (s *BoltStore) ListJobs() ([]*types.Job, error) {
	var jobs []*types.Job
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketJobs)
		return b.ForEach(func(k, v []byte) error {
			var job types.Job
			if err := json.Unmarshal(v, &job); err != nil {
				return err
			}
			jobs = append(jobs, &job)
			return nil
		})
	})
	return jobs, err
}

func (s *BoltStore) ListEnabledJobs() ([]*types.Job, error) {
	jobs, err := s.ListJobs()
	if err != nil {
		return nil, err
	}

	var enabled []*types.Job
	for _, job := range jobs {
		if job.Enabled {
			enabled = append(enabled, job)
		}
	}
	return enabled, nil
}

func (s *BoltStore) UpdateJob(job *types.Job) error {
	job.UpdatedAt = time.Now().UTC()
	return s.CreateJob(job) // Same as create (upsert)
}

func (s *BoltStore) DeleteJob(id uuid.UUID) error {
	// Execution history is intentionally left in place
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketJobs)
		return b.Delete([]byte(id.String()))
	})
}

func (s *BoltStore) UpdateJobStats(id uuid.UUID, update types.JobStatsUpdate) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketJobs)
		data := b.Get([]byte(id.String()))
		if data == nil {
			return fmt.Errorf("job not found: %s", id)
		}

		var job types.Job
		if err := json.Unmarshal(data, &job); err != nil {
			return err
		}

		if update.LastRun != nil {
			job.LastRun = update.LastRun
		}
		if update.NextRun != nil {
			job.NextRun = update.NextRun
		}
		if update.IncrementRun {
			job.RunCount++
		}
		if update.IncrementError {
			job.ErrorCount++
		}
		job.UpdatedAt = time.Now().UTC()

		updated, err := json.Marshal(&job)
		if err != nil {
			return err
		}
		return b.Put([]byte(id.String()), updated)
	})
}

// Execution history operations

func (s *BoltStore) RecordExecution(execution *types.JobExecution) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketExecutions)

		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		execution.ID = seq

		data, err := json.Marshal(execution)
		if err != nil {
			return err
		}
		return b.Put(executionKey(seq), data)
	})
}

func (s *BoltStore) ListExecutions(jobID *uuid.UUID, limit, offset int) ([]*types.JobExecution, error) {
	var executions []*types.JobExecution
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketExecutions).Cursor()

		skipped := 0
		// Newest first: sequence keys are big-endian, so walk backwards
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var execution types.JobExecution
			if err := json.Unmarshal(v, &execution); err != nil {
				return err
			}
			if jobID != nil && execution.JobID != *jobID {
				continue
			}
			if skipped < offset {
				skipped++
				continue
			}
			executions = append(executions, &execution)
			if limit > 0 && len(executions) >= limit {
				return nil
			}
		}
		return nil
	})
	return executions, err
}

func (s *BoltStore) RecentExecutions(limit int) ([]*types.JobExecution, error) {
	return s.ListExecutions(nil, limit, 0)
}

func (s *BoltStore) SuccessCount(jobID *uuid.UUID) (int, error) {
	return s.countExecutions(jobID, true)
}

func (s *BoltStore) FailureCount(jobID *uuid.UUID) (int, error) {
	return s.countExecutions(jobID, false)
}

func (s *BoltStore) countExecutions(jobID *uuid.UUID, success bool) (int, error) {
	count := 0
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketExecutions).ForEach(func(k, v []byte) error {
			var execution types.JobExecution
			if err := json.Unmarshal(v, &execution); err != nil {
				return err
			}
			if jobID != nil && execution.JobID != *jobID {
				return nil
			}
			if execution.Success == success {
				count++
			}
			return nil
		})
	})
	return count, err
}

func (s *BoltStore) DeleteExecutionsBefore(cutoff time.Time) (int, error) {
	deleted := 0
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketExecutions)
		c := b.Cursor()

		var stale [][]byte
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var execution types.JobExecution
			if err := json.Unmarshal(v, &execution); err != nil {
				return err
			}
			if execution.StartedAt.Before(cutoff) {
				key := make([]byte, len(k))
				copy(key, k)
				stale = append(stale, key)
			}
		}

		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return err
			}
			deleted++
		}
		return nil
	})
	return deleted, err
}

func executionKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}
