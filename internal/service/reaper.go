package service

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/NayerAli/v2-ocr-sub002/config"
	"github.com/NayerAli/v2-ocr-sub002/internal/core"
	"github.com/NayerAli/v2-ocr-sub002/internal/domain/model"
	obserrors "github.com/NayerAli/v2-ocr-sub002/internal/observability/errors"
	"github.com/NayerAli/v2-ocr-sub002/internal/observability/metrics"
	"github.com/NayerAli/v2-ocr-sub002/internal/observability/statsd"
	"github.com/NayerAli/v2-ocr-sub002/internal/storage"
)

// ReaperServiceOptions groups dependencies for ReaperService.
type ReaperServiceOptions struct {
	Repo    core.ReaperRepository // Required: reaper repository
	Config  config.ReaperConfig   // Required: reaper configuration
	Blobs   core.BlobStore        // Optional: blob store for purged-job artifact cleanup
	Logger  *slog.Logger          // Optional: structured logger
	Metrics statsd.Sink           // Optional: metrics sink (StatsD-compatible)
}

// ReaperService owns the periodic maintenance of the job tables: processing
// jobs whose lease expired go back to the queue (or fail once their retry
// budget is spent), queued jobs nobody ever picked up are failed, and
// terminal jobs past their retention age are purged together with their blob
// artifacts.
type ReaperService struct {
	repo    core.ReaperRepository
	config  config.ReaperConfig
	blobs   core.BlobStore
	logger  *slog.Logger
	metrics statsd.Sink
}

// NewReaperService constructs a new ReaperService.
func NewReaperService(opts ReaperServiceOptions) (*ReaperService, error) {
	if opts.Repo == nil {
		return nil, errors.New("ReaperRepository is required")
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "reaper_service")
		logger.Debug("ReaperService initialized",
			"interval", opts.Config.Interval,
			"queued_max_age", opts.Config.QueuedMaxAge,
			"completed_max_age", opts.Config.CompletedMaxAge,
			"failed_max_age", opts.Config.FailedMaxAge,
			"cancelled_max_age", opts.Config.CancelledMaxAge,
		)
	}

	return &ReaperService{
		repo:    opts.Repo,
		config:  opts.Config,
		blobs:   opts.Blobs,
		logger:  logger,
		metrics: opts.Metrics,
	}, nil
}

// MustNewReaperService constructs a new ReaperService and panics on error.
// Use this when you're certain the options are valid (e.g., in main.go).
func MustNewReaperService(opts ReaperServiceOptions) *ReaperService {
	svc, err := NewReaperService(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor fails fast when dependencies are invalid during startup
		panic(err)
	}
	return svc
}

// Run drives cleanup at the configured interval until the context ends.
// A graceful shutdown (context.Canceled) returns nil.
func (s *ReaperService) Run(ctx context.Context) error {
	if s.logger != nil {
		s.logger.InfoContext(ctx, "starting reaper service", "interval", s.config.Interval)
	}

	// stagger instances started together before the first pass
	s.waitWithJitter(ctx)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	if err := s.runCleanup(ctx); err != nil {
		s.logCleanupError(err, "initial cleanup")
	}

	for {
		select {
		case <-ctx.Done():
			if s.logger != nil {
				s.logger.InfoContext(ctx, "reaper service stopping", "reason", ctx.Err())
			}
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()

		case <-ticker.C:
			// cleanup errors are logged and the loop keeps going
			if err := s.runCleanup(ctx); err != nil {
				s.logCleanupError(err, "cleanup")
			}
		}
	}
}

// waitWithJitter sleeps up to 10% of the interval. If crypto/rand fails the
// jitter is skipped rather than failing startup.
func (s *ReaperService) waitWithJitter(ctx context.Context) {
	maxJitter := int64(s.config.Interval / 10)
	if maxJitter <= 0 {
		return
	}

	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		if s.logger != nil {
			s.logger.WarnContext(ctx, "failed to generate jitter, skipping", "error", err)
		}
		return
	}

	// modulo on uint64 before converting keeps the value in int64 range
	jitter := time.Duration(int64(binary.BigEndian.Uint64(buf[:]) % uint64(maxJitter))) // #nosec G115 - bounded by maxJitter which is int64

	select {
	case <-time.After(jitter):
	case <-ctx.Done():
	}
}

// cleanupOp names one maintenance pass for error labels and metric tags.
type cleanupOp struct {
	metricName string
	label      string
	run        func(context.Context) (int64, error)
}

func (s *ReaperService) cleanupOps() []cleanupOp {
	deleteByStatus := func(status model.JobStatus, maxAge time.Duration) func(context.Context) (int64, error) {
		return func(ctx context.Context) (int64, error) {
			return s.deleteOldJobsByStatus(ctx, status, maxAge)
		}
	}
	return []cleanupOp{
		{"requeue_leases", "requeue expired leases", s.requeueExpiredLeases},
		{"fail_queued", "fail stale queued jobs", s.failStaleQueuedJobs},
		{"delete_completed", "delete old completed jobs", deleteByStatus(model.JobStatusCompleted, s.config.CompletedMaxAge)},
		{"delete_failed", "delete old failed jobs", deleteByStatus(model.JobStatusFailed, s.config.FailedMaxAge)},
		{"delete_cancelled", "delete old cancelled jobs", deleteByStatus(model.JobStatusCancelled, s.config.CancelledMaxAge)},
	}
}

// runCleanup executes every maintenance pass, emits metrics, and joins the
// failures. When every failure is a context cancellation the joined error
// collapses to context.Canceled so callers can treat it as shutdown.
func (s *ReaperService) runCleanup(ctx context.Context) error {
	start := time.Now()

	var (
		errs        []error
		allCanceled = true
		totalCount  int64
		firstErr    error
	)

	for _, op := range s.cleanupOps() {
		count, err := op.run(ctx)
		totalCount += count

		metricErr := suppressContextCancellation(err)
		if firstErr == nil {
			firstErr = metricErr
		}
		s.emitCleanupOperationMetric(op.metricName, count, metricErr)

		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", op.label, err))
			allCanceled = allCanceled && isContextCancellation(err)
		}
	}

	s.emitCleanupMetrics(totalCount, firstErr, time.Since(start))

	if len(errs) > 0 {
		joined := errors.Join(errs...)
		if allCanceled && isContextCancellation(joined) {
			return context.Canceled
		}
		return fmt.Errorf("cleanup failed: %w", joined)
	}
	return nil
}

// requeueExpiredLeases drains expired-lease jobs in batches until a batch
// comes back empty.
func (s *ReaperService) requeueExpiredLeases(ctx context.Context) (int64, error) {
	total, err := s.drainBatches(ctx, func(ctx context.Context) (int64, error) {
		return s.repo.RequeueExpiredLeases(ctx, s.config.BatchSize)
	})
	if err == nil && total > 0 && s.logger != nil {
		s.logger.InfoContext(ctx, "requeued jobs with expired leases", "count", total)
	}
	return total, err
}

// failStaleQueuedJobs fails queued jobs older than QueuedMaxAge, in batches.
func (s *ReaperService) failStaleQueuedJobs(ctx context.Context) (int64, error) {
	total, err := s.drainBatches(ctx, func(ctx context.Context) (int64, error) {
		return s.repo.FailStaleQueuedJobs(ctx, s.config.QueuedMaxAge, s.config.BatchSize)
	})
	if err == nil && total > 0 && s.logger != nil {
		s.logger.InfoContext(ctx, "failed stale queued jobs",
			"count", total,
			"max_age", s.config.QueuedMaxAge,
		)
	}
	return total, err
}

// deleteOldJobsByStatus purges terminal jobs past maxAge along with their
// blob artifacts. Page results cascade with the job rows.
func (s *ReaperService) deleteOldJobsByStatus(
	ctx context.Context,
	status model.JobStatus,
	maxAge time.Duration,
) (int64, error) {
	total, err := s.drainBatches(ctx, func(ctx context.Context) (int64, error) {
		refs, err := s.repo.DeleteOldJobs(ctx, core.DeleteOldJobsParams{
			Status:    status,
			MaxAge:    maxAge,
			BatchSize: s.config.BatchSize,
		})
		if err != nil {
			return 0, err
		}
		s.removeJobArtifacts(ctx, refs)
		return int64(len(refs)), nil
	})
	if err == nil && total > 0 && s.logger != nil {
		s.logger.InfoContext(ctx, "deleted old jobs",
			"status", status,
			"count", total,
			"max_age", maxAge,
		)
	}
	return total, err
}

// drainBatches repeats fn until it affects zero rows, checking the context
// between batches so shutdown does not wait out a large backlog.
func (s *ReaperService) drainBatches(ctx context.Context, fn func(context.Context) (int64, error)) (int64, error) {
	var total int64
	for {
		count, err := fn(ctx)
		if err != nil {
			return total, err
		}
		total += count
		if count == 0 {
			return total, nil
		}
		if ctx.Err() != nil {
			return total, ctx.Err()
		}
	}
}

// removeJobArtifacts deletes purged jobs' blobs. The job rows are already
// gone, so failures only leave orphaned objects behind and are logged rather
// than propagated.
func (s *ReaperService) removeJobArtifacts(ctx context.Context, refs []core.DeletedJobRef) {
	if s.blobs == nil {
		return
	}

	for _, ref := range refs {
		prefix := storage.JobPrefix(ref.OwnerID, ref.ID)
		if err := s.blobs.DeletePrefix(ctx, prefix); err != nil && s.logger != nil {
			s.logger.WarnContext(ctx, "failed to remove purged job artifacts",
				"job_id", ref.ID,
				"prefix", prefix,
				"error", err,
			)
		}
	}
}

func (s *ReaperService) emitCleanupMetrics(totalCount int64, firstErr error, elapsed time.Duration) {
	if s.metrics == nil {
		return
	}

	tags := map[string]string{
		"result": cleanupResult(totalCount, firstErr),
	}
	if firstErr != nil {
		if class := obserrors.Classify(firstErr); class != "" {
			tags["error_class"] = class
		}
	}

	s.metrics.Count("reaper.cleanup", 1, tags)
	if elapsed > 0 {
		s.metrics.Timing("reaper.cleanup_duration", elapsed, metrics.CloneTags(tags))
	}
	if firstErr == nil {
		s.metrics.Gauge("reaper.last_success_epoch", float64(time.Now().Unix()), nil)
	}
}

func (s *ReaperService) emitCleanupOperationMetric(operation string, count int64, err error) {
	if s.metrics == nil {
		return
	}

	tags := map[string]string{
		"operation": operation,
		"result":    cleanupResult(count, err),
	}
	if err != nil {
		if class := obserrors.Classify(err); class != "" {
			tags["error_class"] = class
		}
	}

	s.metrics.Count("reaper.cleanup_operation", 1, tags)
	if err == nil && count > 0 {
		s.metrics.Count("reaper.jobs_processed", count, metrics.CloneTags(tags))
	}
}

func cleanupResult(count int64, err error) string {
	switch {
	case err != nil:
		return metrics.ResultError
	case count == 0:
		return metrics.ResultNoop
	default:
		return metrics.ResultSuccess
	}
}

func (s *ReaperService) logCleanupError(err error, label string) {
	if err == nil || s.logger == nil {
		return
	}
	if isContextCancellation(err) {
		s.logger.Debug(label+" cancelled by context", "error", err)
		return
	}
	s.logger.Error(label+" failed", "error", err)
}

func isContextCancellation(err error) bool {
	return err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded))
}

func suppressContextCancellation(err error) error {
	if isContextCancellation(err) {
		return nil
	}
	return err
}
