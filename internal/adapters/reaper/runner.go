// Package reaper wires the cleanup service to its data and storage
// dependencies and runs it as a long-lived loop.
package reaper

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/NayerAli/v2-ocr-sub002/config"
	"github.com/NayerAli/v2-ocr-sub002/internal/core"
	"github.com/NayerAli/v2-ocr-sub002/internal/data"
	"github.com/NayerAli/v2-ocr-sub002/internal/observability/statsd"
	"github.com/NayerAli/v2-ocr-sub002/internal/service"
)

// Runner owns a configured ReaperService and drives its cleanup loop.
type Runner struct {
	reaper  *service.ReaperService
	logger  *slog.Logger
	metrics statsd.Sink
}

// RunnerOptions holds the dependencies for creating a Runner. Either DB or
// Repo must be set; Repo wins when both are.
type RunnerOptions struct {
	DB     *sql.DB
	Config config.ReaperConfig
	Logger *slog.Logger

	// Blobs enables artifact cleanup for purged jobs. When nil the reaper
	// only maintains the relational store.
	Blobs core.BlobStore

	Repo    core.ReaperRepository
	Metrics statsd.Sink
}

// NewRunner builds a Runner from the given options.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.DB == nil && opts.Repo == nil {
		return nil, errors.New("database connection is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	repo := opts.Repo
	if repo == nil {
		repo = &reaperRepoAdapter{r: data.NewJobRepo(opts.DB, data.RepoConfig{})}
	}

	reaper, err := service.NewReaperService(service.ReaperServiceOptions{
		Repo:    repo,
		Config:  opts.Config,
		Blobs:   opts.Blobs,
		Logger:  opts.Logger,
		Metrics: opts.Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("wire reaper service: %w", err)
	}

	return &Runner{
		reaper:  reaper,
		logger:  opts.Logger,
		metrics: opts.Metrics,
	}, nil
}

// Run blocks until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting reaper runner")
	return r.reaper.Run(ctx)
}

// reaperRepoAdapter narrows JobRepo to the cleanup operations the service needs.
type reaperRepoAdapter struct {
	r *data.JobRepo
}

func (a *reaperRepoAdapter) RequeueExpiredLeases(ctx context.Context, batchSize int) (int64, error) {
	return a.r.RequeueExpiredLeases(ctx, batchSize)
}

func (a *reaperRepoAdapter) FailStaleQueuedJobs(ctx context.Context, maxAge time.Duration, batchSize int) (int64, error) {
	return a.r.FailStaleQueuedJobs(ctx, maxAge, batchSize)
}

func (a *reaperRepoAdapter) DeleteOldJobs(ctx context.Context, params core.DeleteOldJobsParams) ([]core.DeletedJobRef, error) {
	return a.r.DeleteOldJobs(ctx, params)
}
