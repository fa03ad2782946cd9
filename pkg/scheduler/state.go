package scheduler

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/haven-hvn/haven/pkg/types"
)

// stateVersion is the state-file format version. Newer files must stay
// readable by older schedulers, so fields are only ever added.
const stateVersion = "1.0.0"

const stateFileName = "scheduler_state.json"

// stateFile is the JSON backup of job definitions
type stateFile struct {
	Version string     `json:"version"`
	SavedAt time.Time  `json:"saved_at"`
	Jobs    []stateJob `json:"jobs"`
}

type stateJob struct {
	JobID      string            `json:"job_id"`
	Name       string            `json:"name"`
	PluginName string            `json:"plugin_name"`
	Schedule   string            `json:"schedule"`
	OnSuccess  string            `json:"on_success"`
	Enabled    bool              `json:"enabled"`
	Metadata   map[string]string `json:"metadata"`
	RunCount   int               `json:"run_count"`
	ErrorCount int               `json:"error_count"`
}

// loadJobs fills the in-memory job map from the store, then merges in any
// state-file entries the store does not have. The merge is the recovery
// path for a lost or corrupt database. Caller holds s.mu.
func (s *Scheduler) loadJobs() error {
	jobs, err := s.store.ListJobs()
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to load jobs from store, falling back to state file")
	} else {
		for _, job := range jobs {
			s.jobs[job.ID] = job
		}
		s.logger.Info().Int("jobs", len(jobs)).Msg("Loaded jobs from store")
	}

	s.mergeStateFile()
	return nil
}

// mergeStateFile loads the JSON backup and adds jobs missing from the
// in-memory map. Caller holds s.mu.
func (s *Scheduler) mergeStateFile() {
	path := filepath.Join(s.dataDir, stateFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn().Err(err).Msg("Failed to read scheduler state file")
		}
		return
	}

	var state stateFile
	if err := json.Unmarshal(data, &state); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to parse scheduler state file")
		return
	}

	merged := 0
	for _, sj := range state.Jobs {
		id, err := uuid.Parse(sj.JobID)
		if err != nil {
			s.logger.Warn().Str("job_id", sj.JobID).Msg("Skipping state-file job with bad ID")
			continue
		}
		if _, ok := s.jobs[id]; ok {
			continue
		}

		job := &types.Job{
			ID:         id,
			Name:       sj.Name,
			PluginName: sj.PluginName,
			Schedule:   sj.Schedule,
			OnSuccess:  types.OnSuccess(sj.OnSuccess),
			Enabled:    sj.Enabled,
			Metadata:   sj.Metadata,
			RunCount:   sj.RunCount,
			ErrorCount: sj.ErrorCount,
			CreatedAt:  time.Now().UTC(),
			UpdatedAt:  time.Now().UTC(),
		}
		if !job.OnSuccess.Valid() {
			job.OnSuccess = types.OnSuccessArchiveNew
		}
		if job.Metadata == nil {
			job.Metadata = map[string]string{}
		}
		s.jobs[id] = job
		merged++

		// Re-seed the store so the next start does not depend on the file
		if err := s.store.CreateJob(job); err != nil {
			s.logger.Warn().Err(err).Str("job_id", sj.JobID).Msg("Failed to re-persist state-file job")
		}
	}

	if merged > 0 {
		s.logger.Info().Int("jobs", merged).Msg("Recovered jobs from state file")
	}
}

// saveStateLocked writes the JSON backup of current job definitions,
// best-effort. Caller holds s.mu.
func (s *Scheduler) saveStateLocked() {
	state := stateFile{
		Version: stateVersion,
		SavedAt: time.Now().UTC(),
		Jobs:    make([]stateJob, 0, len(s.jobs)),
	}
	for _, job := range s.jobs {
		state.Jobs = append(state.Jobs, stateJob{
			JobID:      job.ID.String(),
			Name:       job.Name,
			PluginName: job.PluginName,
			Schedule:   job.Schedule,
			OnSuccess:  string(job.OnSuccess),
			Enabled:    job.Enabled,
			Metadata:   job.Metadata,
			RunCount:   job.RunCount,
			ErrorCount: job.ErrorCount,
		})
	}

	if err := s.writeStateFile(state); err != nil {
		s.logger.Error().Err(err).Msg("Failed to save scheduler state")
	}
}

func (s *Scheduler) writeStateFile(state stateFile) error {
	if err := os.MkdirAll(s.dataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	path := filepath.Join(s.dataDir, stateFileName)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}
