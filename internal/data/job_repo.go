package data

import (
	"database/sql"
	"errors"
	"log/slog"
)

var (
	// ErrJobNotFound is returned when a job is not found.
	ErrJobNotFound = errors.New("job not found")
	// ErrJobNotCancellable is returned when attempting to cancel a job that has already reached a terminal state.
	ErrJobNotCancellable = errors.New("job cannot be cancelled (must be in queued or processing status)")
	// ErrJobNotRetryable is returned when attempting to retry a job that is not failed or cancelled.
	ErrJobNotRetryable = errors.New("job cannot be retried (must be in failed or cancelled status)")
	// ErrJobNotDeletable is returned when attempting to delete a job that is still queued or processing.
	ErrJobNotDeletable = errors.New("job cannot be deleted (must be in completed, failed, or cancelled status)")
)

// RepoConfig holds configuration options for the job repository.
type RepoConfig struct {
	Logger       *slog.Logger
	TimeProvider TimeProvider
}

// JobRepo provides database operations for processing job management.
type JobRepo struct {
	DB           *sql.DB
	cfg          RepoConfig
	timeProvider TimeProvider
	logger       *slog.Logger
}

// NewJobRepo creates a new JobRepo instance with the given database connection and configuration.
func NewJobRepo(db *sql.DB, cfg RepoConfig) *JobRepo {
	tp := cfg.TimeProvider
	if tp == nil {
		tp = &RealTimeProvider{}
	}

	return &JobRepo{
		DB:           db,
		cfg:          cfg,
		timeProvider: tp,
		logger:       cfg.Logger,
	}
}

// jobAddedChannel is the Postgres NOTIFY channel used to wake queue workers.
const jobAddedChannel = "ocr_job_added"

const jobColumns = `
  id,
  owner_id,
  filename,
  original_filename,
  status,
  progress,
  current_page,
  total_pages,
  file_size,
  file_type,
  file_hash,
  storage_path,
  thumbnail_path,
  error,
  retry_count,
  max_retries,
  lease_expires_at,
  created_at,
  updated_at,
  processing_started_at,
  processing_completed_at
`
