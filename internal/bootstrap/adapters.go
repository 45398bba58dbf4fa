package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/NayerAli/v2-ocr-sub002/config"
	"github.com/NayerAli/v2-ocr-sub002/internal/adapters/ocrrunner"
	"github.com/NayerAli/v2-ocr-sub002/internal/adapters/reaper"
	"github.com/NayerAli/v2-ocr-sub002/internal/core"
	"github.com/NayerAli/v2-ocr-sub002/internal/observability/statsd"
	"github.com/NayerAli/v2-ocr-sub002/internal/provider"
	"github.com/NayerAli/v2-ocr-sub002/internal/service"
	"github.com/NayerAli/v2-ocr-sub002/internal/service/failurenotifier"
)

// QueueRunnerConfig contains configuration for the queue runner.
type QueueRunnerConfig struct {
	DB         *sql.DB
	Logger     *slog.Logger
	Queue      config.QueueConfig
	Preprocess config.PreprocessConfig

	Blobs       core.BlobStore
	Providers   *provider.Registry
	Credentials provider.CredentialSource

	// QueueService shares pause state and admission with the caller-facing
	// operations. When nil the runner builds its own.
	QueueService *service.QueueService

	Metrics         statsd.Sink
	FailureNotifier *failurenotifier.Service
}

// RunQueueRunner starts the OCR queue runner service.
func RunQueueRunner(ctx context.Context, cfg QueueRunnerConfig) error {
	runner, err := ocrrunner.NewRunner(ocrrunner.RunnerOptions{
		DB:              cfg.DB,
		Logger:          cfg.Logger,
		Queue:           cfg.Queue,
		Preprocess:      cfg.Preprocess,
		Blobs:           cfg.Blobs,
		Providers:       cfg.Providers,
		Credentials:     cfg.Credentials,
		QueueService:    cfg.QueueService,
		Metrics:         cfg.Metrics,
		FailureNotifier: cfg.FailureNotifier,
	})
	if err != nil {
		return fmt.Errorf("create queue runner: %w", err)
	}

	if runErr := runner.Run(ctx); runErr != nil {
		return fmt.Errorf("run queue runner: %w", runErr)
	}
	return nil
}

// ReaperConfig contains configuration for reaper.
type ReaperConfig struct {
	DB      *sql.DB
	Logger  *slog.Logger
	Config  config.ReaperConfig
	Blobs   core.BlobStore
	Metrics statsd.Sink
}

// RunReaper starts the reaper service.
func RunReaper(ctx context.Context, cfg ReaperConfig) error {
	runner, err := reaper.NewRunner(reaper.RunnerOptions{
		DB:      cfg.DB,
		Config:  cfg.Config,
		Logger:  cfg.Logger,
		Blobs:   cfg.Blobs,
		Metrics: cfg.Metrics,
	})
	if err != nil {
		return fmt.Errorf("create reaper runner: %w", err)
	}

	return runner.Run(ctx)
}
