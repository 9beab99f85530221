package cron

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// Store persists jobs as a single JSON array. The whole file is read and
// rewritten on every mutation; writes go through a temp file + rename.
// File modes are restrictive since payloads can carry personal context.
type Store struct {
	path string
	mu   sync.Mutex
}

// NewStore creates a store backed by {dataDir}/cron-jobs.json.
func NewStore(dataDir string) *Store {
	return &Store{path: filepath.Join(dataDir, "cron-jobs.json")}
}

// Path returns the backing file path.
func (s *Store) Path() string { return s.path }

// Load reads all jobs. A missing, corrupt, or non-array file yields an
// empty list rather than an error, so a damaged file never wedges the
// scheduler.
func (s *Store) Load() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

func (s *Store) loadLocked() []Job {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("cron.store_read_failed", "path", s.path, "error", err)
		}
		return []Job{}
	}
	var jobs []Job
	if err := json.Unmarshal(data, &jobs); err != nil {
		slog.Warn("cron.store_corrupt", "path", s.path, "error", err)
		return []Job{}
	}
	if jobs == nil {
		jobs = []Job{}
	}
	return jobs
}

// Save atomically replaces the job list.
func (s *Store) Save(jobs []Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(jobs)
}

func (s *Store) saveLocked(jobs []Job) error {
	if jobs == nil {
		jobs = []Job{}
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("create cron dir: %w", err)
	}
	data, err := json.MarshalIndent(jobs, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cron jobs: %w", err)
	}

	tmpPath := s.path + ".tmp"
	cleanup := true
	defer func() {
		if cleanup {
			os.Remove(tmpPath)
		}
	}()

	if err := os.WriteFile(tmpPath, append(data, '\n'), 0600); err != nil {
		return fmt.Errorf("write cron jobs: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("replace cron jobs: %w", err)
	}
	cleanup = false
	return nil
}

// Mutate applies fn to the current job list and persists the result
// under one lock, so concurrent CRUD and timer fires serialize.
func (s *Store) Mutate(fn func(jobs []Job) ([]Job, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	jobs, err := fn(s.loadLocked())
	if err != nil {
		return err
	}
	return s.saveLocked(jobs)
}
