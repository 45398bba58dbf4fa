package core

import (
	"context"
	"io"
	"time"

	"github.com/NayerAli/v2-ocr-sub002/internal/domain/model"
)

// This file contains repository interface definitions (ports in hexagonal architecture).
// These interfaces define the contracts between the service layer and data layer.
// Service implementations should depend on these interfaces, not concrete implementations.

// JobRepository defines the interface for processing job data operations.
//
// Owner-scoped methods take an OwnerID and never touch another owner's rows.
// Claim, Heartbeat, Complete and Fail are queue-internal and operate on the
// job a worker holds regardless of owner.
type JobRepository interface {
	Create(ctx context.Context, req *model.CreateJobRequest) (*model.Job, error)
	GetByID(ctx context.Context, id string) (*model.Job, error)
	GetForOwner(ctx context.Context, ownerID, id string) (*model.Job, error)
	// ClaimNext atomically moves the oldest queued job to processing
	// (conditional on it still being queued) and stamps processing_started_at
	// plus a lease. Returns model.ErrNoJobsAvailable when the queue is empty.
	ClaimNext(ctx context.Context, leaseSeconds int) (*model.Job, error)
	WaitForNotification(ctx context.Context) error
	// Notify wakes blocked workers without enqueueing a job.
	Notify(ctx context.Context) error
	Heartbeat(ctx context.Context, jobID string, leaseSeconds int) (bool, error)
	UpdateProgress(ctx context.Context, params UpdateProgressParams) error
	SetThumbnailPath(ctx context.Context, jobID, path string) error
	// Complete finalizes a processing job: status=completed, progress=100,
	// total_pages, processing_completed_at. Conditional on status=processing.
	Complete(ctx context.Context, params CompleteJobParams) (bool, error)
	// Fail moves a processing job to failed with the given error message.
	// Conditional on status=processing.
	Fail(ctx context.Context, id, errMsg string) (bool, error)
	// CancelForOwner moves a queued or processing job to cancelled.
	Cancel(ctx context.Context, ownerID, id string) (*model.Job, error)
	// Requeue implements the user-initiated retry: failed or cancelled back
	// to queued, error cleared, progress bookkeeping reset.
	Requeue(ctx context.Context, ownerID, id string) (*model.Job, error)
	// Status returns just the current status, for cheap cancellation checks.
	Status(ctx context.Context, id string) (model.JobStatus, error)
	List(ctx context.Context, opts *model.JobListOptions) (*model.JobPage, error)
	Stats(ctx context.Context) (*model.JobStats, error)
	// Delete removes a terminal job (cascading its page results).
	Delete(ctx context.Context, ownerID, id string) error
}

// UpdateProgressParams groups parameters for JobRepository.UpdateProgress to keep param count ≤3.
type UpdateProgressParams struct {
	JobID       string
	Progress    int
	CurrentPage int
	TotalPages  int
}

// CompleteJobParams groups parameters for JobRepository.Complete.
type CompleteJobParams struct {
	JobID      string
	TotalPages int
}

// PageResultRepository defines the interface for persisted page result data.
type PageResultRepository interface {
	// InsertBatch writes all page results for one job attempt as a single
	// multi-row insert. Implementations retry once with a reduced column set
	// if the full insert fails for schema compatibility reasons.
	InsertBatch(ctx context.Context, results []model.PageResult) error

	// ExistsForJob reports whether any page results exist for the job.
	// Used as the pre-insert idempotency guard.
	ExistsForJob(ctx context.Context, jobID string) (bool, error)

	ListByJob(ctx context.Context, ownerID, jobID string) ([]model.PageResult, error)
	CountByJob(ctx context.Context, jobID string) (int, error)
}

// DeleteOldJobsParams groups parameters for DeleteOldJobs to keep param count ≤3.
type DeleteOldJobsParams struct {
	Status    model.JobStatus
	MaxAge    time.Duration
	BatchSize int
}

// DeletedJobRef identifies a purged job so callers can clean up its blob artifacts.
type DeletedJobRef struct {
	ID      string
	OwnerID string
}

// ReaperRepository defines the interface for job cleanup operations.
type ReaperRepository interface {
	// RequeueExpiredLeases returns processing jobs whose lease has expired to
	// the queue (or fails them once max_retries is exhausted). Processes up
	// to batchSize jobs per call. Returns the number of jobs touched.
	RequeueExpiredLeases(ctx context.Context, batchSize int) (int64, error)

	// FailStaleQueuedJobs marks queued jobs older than maxAge as failed.
	// Processes up to batchSize jobs per call to prevent long locks.
	FailStaleQueuedJobs(ctx context.Context, maxAge time.Duration, batchSize int) (int64, error)

	// DeleteOldJobs deletes terminal jobs with the given status older than
	// maxAge, cascading their page results. Returns references to the
	// deleted jobs so the caller can remove blob artifacts.
	DeleteOldJobs(ctx context.Context, params DeleteOldJobsParams) ([]DeletedJobRef, error)
}

// PutBlobParams groups parameters for BlobStore.Put to keep param count ≤3.
type PutBlobParams struct {
	Path        string
	Reader      io.Reader
	Size        int64
	ContentType string
}

// BlobStore defines the interface for document artifact storage
// (original uploads, rasterized page images, thumbnails).
type BlobStore interface {
	Put(ctx context.Context, params PutBlobParams) error
	Get(ctx context.Context, path string) (io.ReadCloser, error)
	Delete(ctx context.Context, path string) error
	// DeletePrefix removes every object under the prefix (a job's artifacts).
	DeletePrefix(ctx context.Context, prefix string) error
	// PresignGet returns a time-limited download URL for the object.
	PresignGet(ctx context.Context, path string, expiry time.Duration) (string, error)
}
