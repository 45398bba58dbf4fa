// Package model defines the core data types and structures used throughout the ocrd processing queue.
package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// JobStatus represents the lifecycle state of a document processing job.
//
//nolint:recvcheck // UnmarshalText needs pointer receiver, Valid needs value receiver
type JobStatus string

const (
	// JobStatusQueued indicates a job is waiting for admission.
	JobStatusQueued JobStatus = "queued"
	// JobStatusProcessing indicates a job has been claimed by a worker.
	JobStatusProcessing JobStatus = "processing"
	// JobStatusCompleted indicates every page was recognized and persisted.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates the job terminated with an error.
	JobStatusFailed JobStatus = "failed"
	// JobStatusCancelled indicates the job was cancelled by its owner.
	JobStatusCancelled JobStatus = "cancelled"
)

// UnmarshalText implements encoding.TextUnmarshaler for JobStatus to allow env and filter parsing.
func (s *JobStatus) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	js := JobStatus(v)
	if js.Valid() {
		*s = js
		return nil
	}
	return fmt.Errorf("invalid JobStatus: %q", v)
}

// ErrNoJobsAvailable is returned when no queued jobs are available for claiming.
var ErrNoJobsAvailable = errors.New("no jobs available")

// Valid returns true if the JobStatus is valid.
func (s JobStatus) Valid() bool {
	return s == JobStatusQueued || s == JobStatusProcessing || s == JobStatusCompleted ||
		s == JobStatusFailed || s == JobStatusCancelled
}

// Terminal returns true once the job can no longer change state on its own.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// Retryable returns true if a user-initiated retry is legal from this state.
func (s JobStatus) Retryable() bool {
	return s == JobStatusFailed || s == JobStatusCancelled
}

// Cancellable returns true if the job can still be cancelled from this state.
func (s JobStatus) Cancellable() bool {
	return s == JobStatusQueued || s == JobStatusProcessing
}

// Job represents one document's end-to-end processing unit.
//
// Error is non-nil only when Status is failed. TotalPages is set once
// preprocessing completes and never decreases. A job belongs to exactly one
// owner; repository reads and writes are scoped by OwnerID.
type Job struct {
	ID                    string     `json:"id"                                db:"id"`
	OwnerID               string     `json:"owner_id"                          db:"owner_id"`
	Filename              string     `json:"filename"                          db:"filename"`
	OriginalFilename      string     `json:"original_filename"                 db:"original_filename"`
	Status                JobStatus  `json:"status"                            db:"status"`
	Progress              int        `json:"progress"                          db:"progress"`
	CurrentPage           int        `json:"current_page"                      db:"current_page"`
	TotalPages            int        `json:"total_pages"                       db:"total_pages"`
	FileSize              int64      `json:"file_size"                         db:"file_size"`
	FileType              string     `json:"file_type"                         db:"file_type"`
	FileHash              string     `json:"file_hash,omitempty"               db:"file_hash"`
	StoragePath           string     `json:"storage_path"                      db:"storage_path"`
	ThumbnailPath         *string    `json:"thumbnail_path,omitempty"          db:"thumbnail_path"`
	Error                 *string    `json:"error,omitempty"                   db:"error"`
	RetryCount            int        `json:"retry_count"                       db:"retry_count"`
	MaxRetries            int        `json:"max_retries"                       db:"max_retries"`
	LeaseExpiresAt        *time.Time `json:"lease_expires_at,omitempty"        db:"lease_expires_at"`
	CreatedAt             time.Time  `json:"created_at"                        db:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"                        db:"updated_at"`
	ProcessingStartedAt   *time.Time `json:"processing_started_at,omitempty"   db:"processing_started_at"`
	ProcessingCompletedAt *time.Time `json:"processing_completed_at,omitempty" db:"processing_completed_at"`
}

// CreateJobRequest represents a request to create a new processing job.
// ID is assigned by the caller before the blob upload so the storage path can
// embed it. The file itself has already been written to the blob store at
// StoragePath.
type CreateJobRequest struct {
	ID               string `json:"id"`
	OwnerID          string `json:"owner_id"`
	Filename         string `json:"filename"`
	OriginalFilename string `json:"original_filename"`
	FileType         string `json:"file_type"`
	FileSize         int64  `json:"file_size"`
	FileHash         string `json:"file_hash,omitempty"`
	StoragePath      string `json:"storage_path"`
	MaxRetries       int    `json:"max_retries"`
}

// Normalize normalizes the CreateJobRequest fields.
func (r *CreateJobRequest) Normalize() {
	r.ID = strings.TrimSpace(r.ID)
	r.OwnerID = strings.TrimSpace(r.OwnerID)
	r.Filename = strings.TrimSpace(r.Filename)
	r.OriginalFilename = strings.TrimSpace(r.OriginalFilename)
	r.FileType = NormalizeMIME(r.FileType)
	r.FileHash = strings.TrimSpace(strings.ToLower(r.FileHash))
	r.StoragePath = strings.TrimSpace(r.StoragePath)
}

// Validate validates the CreateJobRequest fields.
func (r *CreateJobRequest) Validate() error {
	if r.ID == "" {
		return errors.New("id is required")
	}
	if r.OwnerID == "" {
		return errors.New("owner_id is required")
	}
	if r.Filename == "" {
		return errors.New("filename is required")
	}
	if r.OriginalFilename == "" {
		return errors.New("original_filename is required")
	}
	if !SupportedFileType(r.FileType) {
		return fmt.Errorf("unsupported file type: %q", r.FileType)
	}
	if r.FileSize <= 0 {
		return errors.New("file_size must be > 0")
	}
	if r.StoragePath == "" {
		return errors.New("storage_path is required")
	}
	if r.FileHash != "" {
		if err := ValidateFileHash(r.FileHash); err != nil {
			return err
		}
	}
	if r.MaxRetries < 0 {
		return errors.New("max retries must be >= 0")
	}
	return nil
}

// JobStats represents counts of jobs in each lifecycle state.
type JobStats struct {
	Queued     int `json:"queued"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
	Cancelled  int `json:"cancelled"`
}

// JobStatusResponse represents the status information for a specific job.
type JobStatusResponse struct {
	Status      JobStatus  `json:"status"`
	Progress    int        `json:"progress"`
	CurrentPage int        `json:"current_page"`
	TotalPages  int        `json:"total_pages"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       *string    `json:"error,omitempty"`
}

func isLowerHexRune(char rune) bool {
	return ('0' <= char && char <= '9') || ('a' <= char && char <= 'f')
}

// ValidateFileHash validates a SHA256 content hash (64 lowercase hex characters).
func ValidateFileHash(hash string) error {
	if len(hash) != 64 {
		return errors.New("file_hash must be a 64-character SHA256 hash")
	}
	for _, char := range hash {
		if !isLowerHexRune(char) {
			return errors.New("file_hash must contain only hexadecimal characters")
		}
	}
	return nil
}
