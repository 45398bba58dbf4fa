// Package ocrrunner provides the worker pool that executes queued OCR jobs.
package ocrrunner

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/NayerAli/v2-ocr-sub002/config"
	"github.com/NayerAli/v2-ocr-sub002/internal/core"
	"github.com/NayerAli/v2-ocr-sub002/internal/data"
	"github.com/NayerAli/v2-ocr-sub002/internal/domain/model"
	apperrors "github.com/NayerAli/v2-ocr-sub002/internal/errors"
	obserrors "github.com/NayerAli/v2-ocr-sub002/internal/observability/errors"
	"github.com/NayerAli/v2-ocr-sub002/internal/observability/metrics"
	"github.com/NayerAli/v2-ocr-sub002/internal/observability/statsd"
	"github.com/NayerAli/v2-ocr-sub002/internal/preprocess"
	"github.com/NayerAli/v2-ocr-sub002/internal/provider"
	"github.com/NayerAli/v2-ocr-sub002/internal/service"
	"github.com/NayerAli/v2-ocr-sub002/internal/service/failurenotifier"
)

// RunnerOptions configures the OCR worker pool.
type RunnerOptions struct {
	DB     *sql.DB
	Logger *slog.Logger

	// Queue carries worker count, lease, chunking and retry settings.
	Queue config.QueueConfig
	// Preprocess carries rasterization settings, used when no Preparer is injected.
	Preprocess config.PreprocessConfig

	Blobs       core.BlobStore            // Required: page image storage
	Providers   *provider.Registry        // Required: recognition adapters
	Credentials provider.CredentialSource // Required: per-run provider configuration

	// Optional dependency injections (useful for tests/decoupling)
	JobsRepo        core.JobRepository
	ResultsRepo     core.PageResultRepository
	Preparer        service.DocumentPreparer
	QueueService    *service.QueueService
	Metrics         statsd.Sink
	FailureNotifier *failurenotifier.Service
}

// Runner pulls queued jobs and executes them to completion.
//
// Each of the pool's workers claims one job at a time and holds a lease on it
// for the duration of the run, renewed by a heartbeat goroutine. Idle workers
// block on queue notifications instead of polling.
type Runner struct {
	queue    *service.QueueService
	executor *service.Executor
	logger   *slog.Logger
	lease    time.Duration
	workers  int
	metrics  statsd.Sink
}

func resolveLogger(l *slog.Logger) *slog.Logger {
	if l != nil {
		return l
	}
	return slog.Default()
}

// NewRunner wires repositories and services and constructs the worker pool.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.DB == nil && opts.JobsRepo == nil {
		return nil, errors.New("either DB or JobsRepo must be provided")
	}
	if opts.Blobs == nil {
		return nil, errors.New("blob store is required")
	}
	if opts.Providers == nil {
		return nil, errors.New("provider registry is required")
	}
	if opts.Credentials == nil {
		return nil, errors.New("credential source is required")
	}

	logger := resolveLogger(opts.Logger)

	cfg := opts.Queue
	cfg.Sanitize()

	queueSvc := opts.QueueService
	if queueSvc == nil {
		jobsRepo := opts.JobsRepo
		if jobsRepo == nil {
			jobsRepo = data.NewJobRepo(opts.DB, data.RepoConfig{})
		}
		queueSvc = service.MustNewQueueService(service.QueueServiceOptions{
			Repo:            jobsRepo,
			DefaultLease:    cfg.JobLease,
			Logger:          logger,
			FailureNotifier: opts.FailureNotifier,
		})
	}

	resultsRepo := opts.ResultsRepo
	if resultsRepo == nil {
		resultsRepo = data.NewPageResultRepo(opts.DB, logger)
	}

	preparer := opts.Preparer
	if preparer == nil {
		preparer = preprocess.New(preprocessConfig(opts.Preprocess), opts.Blobs, logger)
	}

	executor, err := service.NewExecutor(service.ExecutorOptions{
		Queue:       queueSvc,
		Results:     resultsRepo,
		Blobs:       opts.Blobs,
		Preparer:    preparer,
		Providers:   opts.Providers,
		Credentials: opts.Credentials,
		Config:      cfg,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("wire executor: %w", err)
	}

	return &Runner{
		queue:    queueSvc,
		executor: executor,
		logger:   logger,
		lease:    cfg.JobLease,
		workers:  cfg.MaxConcurrentJobs,
		metrics:  opts.Metrics,
	}, nil
}

func preprocessConfig(cfg config.PreprocessConfig) preprocess.Config {
	return preprocess.Config{
		PdftoppmPath:   cfg.PdftoppmPath,
		Scale:          cfg.Scale,
		JPEGQuality:    cfg.JPEGQuality,
		ThumbnailWidth: cfg.ThumbnailWidth,
		MaxPages:       cfg.MaxPages,
		Timeout:        cfg.Timeout,
	}
}

// Queue exposes the shared queue service so callers can wire admin operations
// (pause, resume) against the same pause state the workers observe.
func (r *Runner) Queue() *service.QueueService {
	return r.queue
}

// Run starts worker goroutines and processes jobs until the context is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting ocr runner", "workers", r.workers, "lease", r.lease)

	// Derive a cancellable context that we can signal on first fatal error
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	unsub, ch := r.queue.Subscribe()
	defer unsub()

	var wg sync.WaitGroup
	errCh := make(chan error, 1)

	for range r.workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := r.workerLoop(ctx, ch); err != nil {
				// first error wins, cancels all workers
				select {
				case errCh <- err:
					cancel()
				default:
				}
			}
		}()
	}

	wg.Wait()

	select {
	case err := <-errCh:
		return err
	default:
		return ctx.Err()
	}
}

func (r *Runner) workerLoop(ctx context.Context, notify <-chan struct{}) error {
	for ctx.Err() == nil {
		job, err := r.queue.Claim(ctx, r.lease)
		switch {
		case err == nil:
			if job != nil {
				r.processJob(ctx, job)
			}
		case errors.Is(err, model.ErrNoJobsAvailable), apperrors.IsQueuePaused(err):
			if !r.waitForNotify(ctx, notify) {
				return nil
			}
		default:
			return fmt.Errorf("claim next: %w", err)
		}
	}
	return ctx.Err()
}

func (r *Runner) waitForNotify(ctx context.Context, notify <-chan struct{}) bool {
	select {
	case <-ctx.Done():
		return false
	case <-notify:
		return true
	}
}

func (r *Runner) processJob(ctx context.Context, job *model.Job) {
	start := time.Now()

	hbCtx, stopHeartbeat := context.WithCancel(ctx)
	defer stopHeartbeat()
	go r.heartbeatLoop(hbCtx, job.ID)

	outcome, err := r.executor.Execute(ctx, job)
	if err != nil {
		r.logger.ErrorContext(ctx, "job execution error", "job_id", job.ID, "error", err)
		if _, ferr := r.queue.FailWithDetails(ctx, job.ID, "processing failed", service.JobFailureDetails{
			ErrorClass: obserrors.Classify(err),
			Metadata: map[string]string{
				"component": "ocr_runner",
			},
		}); ferr != nil {
			r.logger.ErrorContext(ctx, "fail job error", "job_id", job.ID, "error", ferr, "original_error", err)
		}
		r.emitLifecycle(job, "failed", metrics.ResultError, time.Since(start), err)
		return
	}

	transition, result := lifecycleForOutcome(outcome)
	r.emitLifecycle(job, transition, result, time.Since(start), nil)
}

// heartbeatLoop extends the job's lease while the executor works. A lost
// lease is not fatal here; the executor notices the status change at its
// next page boundary.
func (r *Runner) heartbeatLoop(ctx context.Context, jobID string) {
	interval := r.lease / 3
	if interval < time.Second {
		interval = time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			renewed, err := r.queue.Heartbeat(ctx, jobID, r.lease)
			if err != nil {
				if !errors.Is(err, context.Canceled) {
					r.logger.WarnContext(ctx, "heartbeat error", "job_id", jobID, "error", err)
				}
				continue
			}
			if !renewed {
				r.logger.WarnContext(ctx, "lease not renewed, job no longer processing", "job_id", jobID)
				return
			}
		}
	}
}

func lifecycleForOutcome(outcome service.ExecutionOutcome) (transition, result string) {
	switch outcome {
	case service.OutcomeCompleted:
		return "completed", metrics.ResultSuccess
	case service.OutcomeFailed:
		return "failed", metrics.ResultError
	case service.OutcomeCancelled:
		return "cancelled", metrics.ResultSuccess
	default:
		return "abandoned", metrics.ResultNoop
	}
}

func (r *Runner) emitLifecycle(job *model.Job, transition, result string, elapsed time.Duration, err error) {
	metrics.EmitJobLifecycle(r.metrics, metrics.JobMetric{
		FileType:   job.FileType,
		Transition: transition,
		Result:     result,
		Duration:   elapsed,
		Err:        err,
	})
}
