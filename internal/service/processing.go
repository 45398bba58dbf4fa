package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/NayerAli/v2-ocr-sub002/internal/core"
	"github.com/NayerAli/v2-ocr-sub002/internal/data"
	"github.com/NayerAli/v2-ocr-sub002/internal/domain/model"
	apperrors "github.com/NayerAli/v2-ocr-sub002/internal/errors"
	"github.com/NayerAli/v2-ocr-sub002/internal/storage"
)

// ProcessingServiceOptions groups dependencies for ProcessingService.
type ProcessingServiceOptions struct {
	Repo        core.JobRepository        // Required: job repository
	Results     core.PageResultRepository // Required: page result repository
	Blobs       core.BlobStore            // Required: document artifact storage
	Queue       *QueueService             // Required: pause state and admission
	Dedupe      *core.DedupeCache         // Optional: duplicate-submission guard
	MaxFileSize int64                     // Optional: upload size cap in bytes, 0 accepts any size
	PresignTTL  time.Duration             // Optional: lifetime of presigned page image links
	Logger      *slog.Logger              // Optional: structured logger
}

// ProcessingService provides the caller-facing operations on the OCR queue:
// enqueue, status, listing, results, cancel, retry, delete, and the global
// pause switch. Every operation that touches a specific job is owner-scoped.
type ProcessingService struct {
	repo        core.JobRepository
	results     core.PageResultRepository
	blobs       core.BlobStore
	queue       *QueueService
	dedupe      *core.DedupeCache
	maxFileSize int64
	presignTTL  time.Duration
	logger      *slog.Logger
}

// NewProcessingService constructs a new ProcessingService.
func NewProcessingService(opts ProcessingServiceOptions) (*ProcessingService, error) {
	if opts.Repo == nil {
		return nil, errors.New("JobRepository is required")
	}
	if opts.Results == nil {
		return nil, errors.New("PageResultRepository is required")
	}
	if opts.Blobs == nil {
		return nil, errors.New("BlobStore is required")
	}
	if opts.Queue == nil {
		return nil, errors.New("QueueService is required")
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "processing_service")
	}

	return &ProcessingService{
		repo:        opts.Repo,
		results:     opts.Results,
		blobs:       opts.Blobs,
		queue:       opts.Queue,
		dedupe:      opts.Dedupe,
		maxFileSize: opts.MaxFileSize,
		presignTTL:  opts.PresignTTL,
		logger:      logger,
	}, nil
}

// MustNewProcessingService constructs a new ProcessingService and panics on error.
func MustNewProcessingService(opts ProcessingServiceOptions) *ProcessingService {
	svc, err := NewProcessingService(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor fails fast when dependencies are invalid during startup
		panic(err)
	}
	return svc
}

// EnqueueRequest is a caller's document submission.
type EnqueueRequest struct {
	OwnerID          string
	OriginalFilename string
	FileType         string
	Data             []byte
}

// Enqueue stores the uploaded document and creates a queued job for it.
//
// When the duplicate-submission guard recognizes the same owner+content pair
// within its TTL window, Enqueue returns the already-enqueued job instead of
// creating a second one.
func (s *ProcessingService) Enqueue(ctx context.Context, req EnqueueRequest) (*model.Job, error) {
	if req.OwnerID == "" {
		return nil, apperrors.ValidationField("owner_id", "is required")
	}
	if req.OriginalFilename == "" {
		return nil, apperrors.ValidationField("original_filename", "is required")
	}
	if len(req.Data) == 0 {
		return nil, apperrors.Validation("document payload is empty")
	}
	if s.maxFileSize > 0 && int64(len(req.Data)) > s.maxFileSize {
		return nil, apperrors.Validationf("document exceeds the %d byte size limit", s.maxFileSize)
	}

	fileType := model.NormalizeMIME(req.FileType)
	if !model.SupportedFileType(fileType) {
		return nil, apperrors.Validationf("unsupported file type: %q", req.FileType)
	}

	jobID := uuid.NewString()
	filename := jobID + "." + model.FileExtension(fileType)
	sum := sha256.Sum256(req.Data)
	fileHash := hex.EncodeToString(sum[:])

	if existing, ok := s.reserveSubmission(ctx, req.OwnerID, fileHash, jobID); !ok {
		return existing, nil
	}

	storagePath := storage.OriginalPath(req.OwnerID, jobID, filename)
	putErr := s.blobs.Put(ctx, core.PutBlobParams{
		Path:        storagePath,
		Reader:      bytes.NewReader(req.Data),
		Size:        int64(len(req.Data)),
		ContentType: fileType,
	})
	if putErr != nil {
		s.releaseSubmission(ctx, req.OwnerID, fileHash)
		return nil, apperrors.Storage("store uploaded document", putErr)
	}

	job, err := s.repo.Create(ctx, &model.CreateJobRequest{
		ID:               jobID,
		OwnerID:          req.OwnerID,
		Filename:         filename,
		OriginalFilename: req.OriginalFilename,
		FileType:         fileType,
		FileSize:         int64(len(req.Data)),
		FileHash:         fileHash,
		StoragePath:      storagePath,
	})
	if err != nil {
		s.releaseSubmission(ctx, req.OwnerID, fileHash)
		if delErr := s.blobs.Delete(ctx, storagePath); delErr != nil && s.logger != nil {
			s.logger.WarnContext(ctx, "failed to remove orphaned upload", "path", storagePath, "error", delErr)
		}
		return nil, fmt.Errorf("create job: %w", err)
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "job enqueued",
			"job_id", job.ID,
			"owner_id", job.OwnerID,
			"file_type", job.FileType,
			"file_size", job.FileSize,
		)
	}
	return job, nil
}

// reserveSubmission consults the duplicate-submission guard. It returns
// ok=false plus the earlier job when this submission is a duplicate. Guard
// outages never block enqueue.
func (s *ProcessingService) reserveSubmission(ctx context.Context, ownerID, fileHash, jobID string) (*model.Job, bool) {
	if s.dedupe == nil {
		return nil, true
	}

	existingID, reserved, err := s.dedupe.Reserve(ctx, ownerID, fileHash, jobID)
	if err != nil {
		if s.logger != nil {
			s.logger.WarnContext(ctx, "duplicate-submission guard unavailable", "error", err)
		}
		return nil, true
	}
	if reserved {
		return nil, true
	}

	existing, err := s.repo.GetForOwner(ctx, ownerID, existingID)
	if err != nil {
		// The reserved job is gone (deleted or reaped); let this submission
		// proceed as a fresh one.
		if s.logger != nil {
			s.logger.DebugContext(ctx, "stale dedupe reservation, accepting submission",
				"existing_job_id", existingID,
				"error", err,
			)
		}
		return nil, true
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "duplicate submission detected",
			"job_id", existing.ID,
			"owner_id", ownerID,
		)
	}
	return existing, false
}

func (s *ProcessingService) releaseSubmission(ctx context.Context, ownerID, fileHash string) {
	if s.dedupe == nil {
		return
	}
	if err := s.dedupe.Release(ctx, ownerID, fileHash); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "failed to release dedupe reservation", "error", err)
	}
}

// GetJob returns an owner's job record.
func (s *ProcessingService) GetJob(ctx context.Context, ownerID, id string) (*model.Job, error) {
	job, err := s.repo.GetForOwner(ctx, ownerID, id)
	if err != nil {
		return nil, mapJobError(err, id)
	}
	return job, nil
}

// GetStatus returns the progress snapshot of an owner's job.
func (s *ProcessingService) GetStatus(ctx context.Context, ownerID, id string) (*model.JobStatusResponse, error) {
	job, err := s.repo.GetForOwner(ctx, ownerID, id)
	if err != nil {
		return nil, mapJobError(err, id)
	}

	return &model.JobStatusResponse{
		Status:      job.Status,
		Progress:    job.Progress,
		CurrentPage: job.CurrentPage,
		TotalPages:  job.TotalPages,
		CompletedAt: job.ProcessingCompletedAt,
		Error:       job.Error,
	}, nil
}

// ListJobs returns one page of an owner's jobs, newest first by default.
func (s *ProcessingService) ListJobs(ctx context.Context, opts *model.JobListOptions) (*model.JobPage, error) {
	if opts == nil || opts.OwnerID == "" {
		return nil, apperrors.ValidationField("owner_id", "is required")
	}
	if opts.Status != nil && !opts.Status.Valid() {
		return nil, apperrors.Validationf("invalid status filter: %q", *opts.Status)
	}

	page, err := s.repo.List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return page, nil
}

// PageResultView is a page result plus a time-limited link to its page image.
type PageResultView struct {
	model.PageResult
	ImageURL string `json:"image_url,omitempty"`
}

// GetResults returns the recognized pages of an owner's job in page order.
// Links to page images are best effort; a presign failure leaves the URL
// empty rather than failing the read.
func (s *ProcessingService) GetResults(ctx context.Context, ownerID, jobID string) ([]PageResultView, error) {
	if _, err := s.repo.GetForOwner(ctx, ownerID, jobID); err != nil {
		return nil, mapJobError(err, jobID)
	}

	results, err := s.results.ListByJob(ctx, ownerID, jobID)
	if err != nil {
		return nil, fmt.Errorf("list page results: %w", err)
	}

	views := make([]PageResultView, 0, len(results))
	for _, result := range results {
		view := PageResultView{PageResult: result}
		if s.presignTTL > 0 && result.StoragePath != "" {
			url, presignErr := s.blobs.PresignGet(ctx, result.StoragePath, s.presignTTL)
			if presignErr != nil {
				if s.logger != nil {
					s.logger.WarnContext(ctx, "failed to presign page image",
						"job_id", jobID,
						"page", result.PageNumber,
						"error", presignErr,
					)
				}
			} else {
				view.ImageURL = url
			}
		}
		views = append(views, view)
	}
	return views, nil
}

// Cancel stops an owner's queued or processing job. A processing job keeps
// running until its worker reaches the next page boundary, then discards all
// recognition output.
func (s *ProcessingService) Cancel(ctx context.Context, ownerID, id string) (*model.Job, error) {
	job, err := s.repo.Cancel(ctx, ownerID, id)
	if err != nil {
		return nil, mapJobError(err, id)
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "job cancelled", "job_id", id, "owner_id", ownerID)
	}
	return job, nil
}

// Retry returns an owner's failed or cancelled job to the queue. The same
// record is reused: error cleared, progress reset, createdAt preserved.
func (s *ProcessingService) Retry(ctx context.Context, ownerID, id string) (*model.Job, error) {
	job, err := s.repo.Requeue(ctx, ownerID, id)
	if err != nil {
		return nil, mapJobError(err, id)
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "job requeued for retry", "job_id", id, "owner_id", ownerID)
	}
	return job, nil
}

// Delete removes an owner's terminal job, its page results, and its stored
// artifacts. Blob cleanup is best effort once the record is gone.
func (s *ProcessingService) Delete(ctx context.Context, ownerID, id string) error {
	if err := s.repo.Delete(ctx, ownerID, id); err != nil {
		return mapJobError(err, id)
	}

	if err := s.blobs.DeletePrefix(ctx, storage.JobPrefix(ownerID, id)); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "failed to remove job artifacts", "job_id", id, "error", err)
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "job deleted", "job_id", id, "owner_id", ownerID)
	}
	return nil
}

// QueueStats is the queue counters plus the global pause flag.
type QueueStats struct {
	model.JobStats
	Paused bool `json:"paused"`
}

// Stats returns job counts per lifecycle state and the pause flag.
func (s *ProcessingService) Stats(ctx context.Context) (*QueueStats, error) {
	stats, err := s.repo.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("queue stats: %w", err)
	}
	return &QueueStats{JobStats: *stats, Paused: s.queue.Paused()}, nil
}

// Pause stops queued jobs from being claimed. In-flight jobs finish normally.
func (s *ProcessingService) Pause(ctx context.Context) {
	s.queue.Pause(ctx)
}

// Resume re-enables claiming and wakes idle workers.
func (s *ProcessingService) Resume(ctx context.Context) {
	s.queue.Resume(ctx)
}

// mapJobError translates repository sentinels into the caller-facing error
// taxonomy, keeping unknown errors wrapped for the log.
func mapJobError(err error, jobID string) error {
	switch {
	case errors.Is(err, data.ErrJobNotFound):
		return apperrors.NotFoundf("job %s not found", jobID)
	case errors.Is(err, data.ErrJobNotCancellable),
		errors.Is(err, data.ErrJobNotRetryable),
		errors.Is(err, data.ErrJobNotDeletable):
		return apperrors.Wrap(err, apperrors.ErrCodeInvalidState, err.Error())
	default:
		return fmt.Errorf("job %s: %w", jobID, err)
	}
}
