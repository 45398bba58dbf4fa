package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/NayerAli/v2-ocr-sub002/internal/core"
	domainjob "github.com/NayerAli/v2-ocr-sub002/internal/domain/job"
	"github.com/NayerAli/v2-ocr-sub002/internal/domain/model"
	apperrors "github.com/NayerAli/v2-ocr-sub002/internal/errors"
	"github.com/NayerAli/v2-ocr-sub002/internal/observability/notify"
	"github.com/NayerAli/v2-ocr-sub002/internal/service/failurenotifier"
)

// QueueServiceOptions groups dependencies for QueueService.
type QueueServiceOptions struct {
	Repo            core.JobRepository        // Required: job repository
	DefaultLease    time.Duration             // Required: default lease duration for claimed jobs
	Logger          *slog.Logger              // Optional: structured logger
	FailureNotifier *failurenotifier.Service  // Optional: failure notification fan-out
	LeasePolicy     *domainjob.LeasePolicy    // Optional: override default lease policy
	Notifier        domainjob.Notifier        // Optional: custom job availability notifier
	NotifierOptions domainjob.NotifierOptions // Optional: configure default notifier behaviour
}

// QueueService provides the worker-facing queue operations.
//
// This service manages:
// - Claiming queued jobs under the conditional-update admission rule
// - Lease management (claim stamps a lease, heartbeats extend it)
// - The process-wide pause flag gating admission
// - Pub/sub notification wiring so idle workers block instead of polling
// - Terminal transitions (complete, fail) and failure notification fan-out.
type QueueService struct {
	repo            core.JobRepository
	leasePolicy     *domainjob.LeasePolicy
	notifier        domainjob.Notifier
	logger          *slog.Logger
	failureNotifier *failurenotifier.Service
	paused          atomic.Bool
}

// NewQueueService constructs a new QueueService.
func NewQueueService(opts QueueServiceOptions) (*QueueService, error) {
	if opts.Repo == nil {
		return nil, errors.New("JobRepository is required")
	}

	var leasePolicy *domainjob.LeasePolicy
	switch {
	case opts.LeasePolicy != nil:
		leasePolicy = opts.LeasePolicy
	case opts.DefaultLease > 0:
		var err error
		leasePolicy, err = domainjob.NewLeasePolicy(opts.DefaultLease)
		if err != nil {
			return nil, fmt.Errorf("create lease policy: %w", err)
		}
	default:
		return nil, errors.New("DefaultLease must be positive")
	}

	notifier := opts.Notifier
	if notifier == nil {
		options := opts.NotifierOptions
		if options.Waiter == nil {
			options.Waiter = opts.Repo
		}
		var err error
		notifier, err = domainjob.NewNotifier(options)
		if err != nil {
			return nil, fmt.Errorf("create job notifier: %w", err)
		}
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "queue_service")
		logger.Debug("QueueService initialized",
			"default_lease", leasePolicy.Default(),
		)
	}

	return &QueueService{
		repo:            opts.Repo,
		leasePolicy:     leasePolicy,
		notifier:        notifier,
		logger:          logger,
		failureNotifier: opts.FailureNotifier,
	}, nil
}

// MustNewQueueService is NewQueueService for startup paths where invalid
// options are fatal.
func MustNewQueueService(opts QueueServiceOptions) *QueueService {
	svc, err := NewQueueService(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor fails fast when dependencies are invalid during startup
		panic(fmt.Sprintf("failed to create QueueService: %v", err))
	}
	return svc
}

// Claim admits the oldest queued job: a single conditional update moves it to
// processing only if it is still queued, stamping processing_started_at and a
// lease. Returns model.ErrNoJobsAvailable on an empty queue and a QueuePaused
// error while the queue is paused.
func (s *QueueService) Claim(ctx context.Context, lease time.Duration) (*model.Job, error) {
	if s.paused.Load() {
		return nil, apperrors.QueuePaused("queue is paused")
	}

	decision := s.leasePolicy.Resolve(lease)
	if decision.Clamped() && s.logger != nil {
		s.logger.DebugContext(ctx, "clamped sub-second lease duration to 1 second",
			"requested_duration", decision.Requested)
	}

	job, err := s.repo.ClaimNext(ctx, decision.Seconds)
	if err != nil {
		if errors.Is(err, model.ErrNoJobsAvailable) {
			return nil, err
		}
		return nil, fmt.Errorf("claim next job: %w", err)
	}

	if s.logger != nil && job != nil {
		s.logger.DebugContext(
			ctx,
			"job claimed",
			"id",
			job.ID,
			"owner_id",
			job.OwnerID,
			"lease_seconds",
			decision.Seconds,
		)
	}

	return job, nil
}

// Subscribe registers a worker for queue wakeups. The returned function
// cancels the subscription; the channel fires when new work may be claimable.
func (s *QueueService) Subscribe() (func(), <-chan struct{}) {
	if s.notifier == nil {
		ch := make(chan struct{})
		close(ch)
		return func() {}, ch
	}
	return s.notifier.Subscribe()
}

// WaitForNotification blocks on the underlying queue channel until a job
// arrives or ctx ends.
func (s *QueueService) WaitForNotification(ctx context.Context) error {
	return s.repo.WaitForNotification(ctx)
}

// Heartbeat extends the lease on a claimed job. Returns false when the job
// is no longer processing, which workers treat as a stop signal.
func (s *QueueService) Heartbeat(ctx context.Context, id string, extend time.Duration) (bool, error) {
	decision := s.leasePolicy.Resolve(extend)
	if decision.Clamped() && s.logger != nil {
		s.logger.DebugContext(ctx, "clamped sub-second heartbeat duration to 1 second",
			"requested_duration", decision.Requested,
			"job_id", id)
	}

	updated, err := s.repo.Heartbeat(ctx, id, decision.Seconds)
	if err != nil {
		return false, fmt.Errorf("heartbeat job %s: %w", id, err)
	}

	if s.logger != nil && updated {
		s.logger.DebugContext(ctx, "job heartbeat updated", "id", id, "extend_seconds", decision.Seconds)
	}

	return updated, nil
}

// UpdateProgress records advisory per-page progress on a processing job.
func (s *QueueService) UpdateProgress(ctx context.Context, params core.UpdateProgressParams) error {
	if err := s.repo.UpdateProgress(ctx, params); err != nil {
		return fmt.Errorf("update progress for job %s: %w", params.JobID, err)
	}
	return nil
}

// SetThumbnailPath records the blob path of a job's generated thumbnail.
func (s *QueueService) SetThumbnailPath(ctx context.Context, id, path string) error {
	if err := s.repo.SetThumbnailPath(ctx, id, path); err != nil {
		return fmt.Errorf("set thumbnail for job %s: %w", id, err)
	}
	return nil
}

// Status returns the job's current status. Workers use it for cheap
// cancellation checks between pages.
func (s *QueueService) Status(ctx context.Context, id string) (model.JobStatus, error) {
	status, err := s.repo.Status(ctx, id)
	if err != nil {
		return "", fmt.Errorf("status of job %s: %w", id, err)
	}
	return status, nil
}

// Complete marks a processing job as completed successfully.
func (s *QueueService) Complete(ctx context.Context, params core.CompleteJobParams) (bool, error) {
	completed, err := s.repo.Complete(ctx, params)
	if err != nil {
		return false, fmt.Errorf("complete job %s: %w", params.JobID, err)
	}

	if s.logger != nil && completed {
		s.logger.DebugContext(ctx, "job completed", "id", params.JobID, "total_pages", params.TotalPages)
	}

	return completed, nil
}

// Fail is FailWithDetails without notification metadata.
func (s *QueueService) Fail(ctx context.Context, id, errMsg string) (bool, error) {
	return s.FailWithDetails(ctx, id, errMsg, JobFailureDetails{})
}

// JobFailureDetails carries optional context forwarded to failure sinks.
type JobFailureDetails struct {
	Provider   string
	ErrorClass string
	Metadata   map[string]string
	Severity   string
	OccurredAt time.Time
}

// FailWithDetails marks a job failed and, when a notifier is configured,
// fans the failure out with the supplied metadata.
func (s *QueueService) FailWithDetails(
	ctx context.Context,
	id, errMsg string,
	details JobFailureDetails,
) (bool, error) {
	if errMsg == "" {
		return false, errors.New("error message required")
	}

	var job *model.Job
	if s.failureNotifier != nil {
		var err error
		job, err = s.repo.GetByID(ctx, id)
		if err != nil && s.logger != nil {
			s.logger.WarnContext(ctx, "failed to load job for failure notification", "job_id", id, "error", err)
		}
	}

	failed, err := s.repo.Fail(ctx, id, errMsg)
	if err != nil {
		return false, fmt.Errorf("fail job %s: %w", id, err)
	}

	if s.logger != nil && failed {
		s.logger.DebugContext(ctx, "job failed", "id", id, "error", errMsg)
	}

	if failed && s.failureNotifier != nil {
		s.failureNotifier.NotifyJobFailure(ctx, buildFailurePayload(id, job, errMsg, details))
	}

	return failed, nil
}

// Pause stops admission of queued jobs. Jobs already claimed run to
// completion; Claim rejects with a QueuePaused error until Resume.
func (s *QueueService) Pause(ctx context.Context) {
	if s.paused.CompareAndSwap(false, true) && s.logger != nil {
		s.logger.InfoContext(ctx, "queue paused")
	}
}

// Resume re-enables admission and wakes blocked workers.
func (s *QueueService) Resume(ctx context.Context) {
	if !s.paused.CompareAndSwap(true, false) {
		return
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "queue resumed")
	}

	// Without the wakeup, workers idle until the next enqueue or wait-window
	// expiry even though claimable jobs sit in the queue.
	if err := s.repo.Notify(ctx); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "failed to notify workers after resume", "error", err)
	}
}

// Paused reports whether admission is currently paused.
func (s *QueueService) Paused() bool {
	return s.paused.Load()
}

// StopAllListeners stops all notification listener goroutines.
// Call during graceful shutdown.
func (s *QueueService) StopAllListeners() {
	if s.notifier != nil {
		s.notifier.StopAll()
	}
}

func buildFailurePayload(id string, job *model.Job, errMsg string, details JobFailureDetails) notify.JobFailurePayload {
	payload := notify.JobFailurePayload{
		JobID:      id,
		Provider:   details.Provider,
		Error:      errMsg,
		ErrorClass: details.ErrorClass,
		Severity:   details.Severity,
		OccurredAt: details.OccurredAt,
		Metadata:   trimMetadata(details.Metadata),
	}
	if payload.Severity == "" {
		payload.Severity = notify.SeverityCritical
	}
	if payload.OccurredAt.IsZero() {
		payload.OccurredAt = time.Now()
	}
	if job != nil {
		payload.OwnerID = job.OwnerID
		payload.Filename = job.OriginalFilename
	}
	if payload.ErrorClass != "" {
		if payload.Metadata == nil {
			payload.Metadata = make(map[string]string, 1)
		}
		payload.Metadata["error_class"] = payload.ErrorClass
	}
	if len(payload.Metadata) == 0 {
		payload.Metadata = nil
	}
	return payload
}

// trimMetadata copies src dropping blank keys and values.
func trimMetadata(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	dst := make(map[string]string, len(src))
	for k, v := range src {
		if strings.TrimSpace(k) == "" || strings.TrimSpace(v) == "" {
			continue
		}
		dst[k] = v
	}
	return dst
}
