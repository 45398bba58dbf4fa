package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/NayerAli/v2-ocr-sub002/config"
	"github.com/NayerAli/v2-ocr-sub002/internal/core"
	"github.com/NayerAli/v2-ocr-sub002/internal/data"
	"github.com/NayerAli/v2-ocr-sub002/internal/observability/notify/pagerduty"
	"github.com/NayerAli/v2-ocr-sub002/internal/observability/notify/slack"
	"github.com/NayerAli/v2-ocr-sub002/internal/observability/statsd"
	"github.com/NayerAli/v2-ocr-sub002/internal/provider"
	"github.com/NayerAli/v2-ocr-sub002/internal/provider/azure"
	"github.com/NayerAli/v2-ocr-sub002/internal/provider/google"
	"github.com/NayerAli/v2-ocr-sub002/internal/provider/mistral"
	"github.com/NayerAli/v2-ocr-sub002/internal/provider/tesseract"
	"github.com/NayerAli/v2-ocr-sub002/internal/service"
	"github.com/NayerAli/v2-ocr-sub002/internal/service/failurenotifier"
	"github.com/redis/go-redis/v9"
)

// stopGrace caps how long shutdown waits for a runner to drain.
const stopGrace = 15 * time.Second

// ServiceContainer is the assembled application: domain services plus the
// shared observability adapters they report through.
type ServiceContainer struct {
	Queue         *service.QueueService
	Processing    *service.ProcessingService
	Providers     *provider.Registry
	Credentials   provider.CredentialSource
	Observability ObservabilityContainer
}

// ObservabilityContainer carries the metrics sink and failure notifier that
// every runner shares.
type ObservabilityContainer struct {
	MetricsSink     *statsd.Client
	MetricsConfig   config.ObservabilityMetricsConfig
	FailureNotifier *failurenotifier.Service
	NotifierConfig  config.ObservabilityNotificationsConfig
}

// ServiceDeps is the external world handed to NewServices: connections the
// caller owns and the container only borrows.
type ServiceDeps struct {
	Config      *config.AppConfig
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Blobs       core.BlobStore
	Logger      *slog.Logger
}

// serviceRepos holds the data adapters behind the service ports. Pure
// plumbing, no domain rules.
type serviceRepos struct {
	DB         *sql.DB
	Redis      redis.UniversalClient
	JobRepo    *data.JobRepo
	ResultRepo *data.PageResultRepo
	CacheRepo  *data.RedisCacheRepo
}

func buildObservability(logger *slog.Logger, cfg config.ObservabilityConfig) ObservabilityContainer {
	if logger == nil {
		logger = slog.Default()
	}

	var metricsSink *statsd.Client
	if cfg.Metrics.IsEnabled() {
		client, err := statsd.NewClient(statsd.Config{
			Enabled: true,
			Address: cfg.Metrics.StatsdAddress,
			Prefix:  "ocrd",
			Logger:  logger,
		})
		if err != nil {
			// Metrics are best-effort: run without them rather than abort.
			logger.Error("statsd client unavailable", "error", err)
		} else {
			metricsSink = client
		}
	}

	return ObservabilityContainer{
		MetricsSink:     metricsSink,
		MetricsConfig:   cfg.Metrics,
		FailureNotifier: buildFailureNotifier(logger, cfg.Notifications),
		NotifierConfig:  cfg.Notifications,
	}
}

func buildRepos(db *sql.DB, redisClient redis.UniversalClient, logger *slog.Logger) *serviceRepos {
	repos := &serviceRepos{
		DB:         db,
		Redis:      redisClient,
		JobRepo:    data.NewJobRepo(db, data.RepoConfig{}),
		ResultRepo: data.NewPageResultRepo(db, logger),
	}
	if redisClient != nil {
		repos.CacheRepo = data.NewRedisCacheRepo(redisClient)
	}
	return repos
}

func newDedupeCache(repos *serviceRepos, cfg config.CacheConfig) *core.DedupeCache {
	if repos.CacheRepo == nil || !cfg.DedupeEnabled {
		return nil
	}
	cacheCfg := core.DefaultDedupeCacheConfig()
	if cfg.DedupeTTL > 0 {
		cacheCfg.TTL = cfg.DedupeTTL
	}
	return core.NewDedupeCache(repos.CacheRepo, cacheCfg)
}

// newProviderRegistry registers every recognition adapter the runtime can
// serve. Which one handles a given run is decided per call by the resolved
// provider configuration.
func newProviderRegistry(logger *slog.Logger) *provider.Registry {
	registry := provider.NewRegistry()
	registry.MustRegister(azure.NewClient(azure.Options{Logger: logger}))
	registry.MustRegister(google.NewClient(google.Options{Logger: logger}))
	registry.MustRegister(mistral.NewClient(mistral.Options{Logger: logger}))
	registry.MustRegister(tesseract.NewEngine(tesseract.Options{Logger: logger}))
	return registry
}

func newCredentialSource(cfg config.ProviderConfig) *provider.StaticSource {
	return provider.NewStaticSource(provider.Config{
		Provider: cfg.Name,
		APIKey:   cfg.APIKey,
		Region:   cfg.Region,
		Language: cfg.Language,
	})
}

// NewServices assembles the full service container from external
// dependencies. A nil logger falls back to slog.Default.
func NewServices(deps *ServiceDeps) ServiceContainer {
	if deps == nil {
		return ServiceContainer{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	appCfg := deps.Config
	if appCfg == nil {
		appCfg = &config.AppConfig{}
	}

	observability := buildObservability(logger, appCfg.Observability)
	repos := buildRepos(deps.DB, deps.RedisClient, logger)

	queueService := service.MustNewQueueService(service.QueueServiceOptions{
		Repo:            repos.JobRepo,
		DefaultLease:    appCfg.Queue.JobLease,
		Logger:          logger,
		FailureNotifier: observability.FailureNotifier,
	})
	processingService := service.MustNewProcessingService(service.ProcessingServiceOptions{
		Repo:        repos.JobRepo,
		Results:     repos.ResultRepo,
		Blobs:       deps.Blobs,
		Queue:       queueService,
		Dedupe:      newDedupeCache(repos, appCfg.Cache),
		MaxFileSize: appCfg.Queue.MaxFileSize,
		PresignTTL:  appCfg.Storage.PresignTTL,
		Logger:      logger,
	})

	return ServiceContainer{
		Queue:         queueService,
		Processing:    processingService,
		Providers:     newProviderRegistry(logger),
		Credentials:   newCredentialSource(appCfg.Provider),
		Observability: observability,
	}
}

func buildFailureNotifier(logger *slog.Logger, cfg config.ObservabilityNotificationsConfig) *failurenotifier.Service {
	if logger == nil {
		logger = slog.Default()
	}
	notifierLogger := logger.With("component", "failure_notifier")

	if !cfg.Enabled {
		return failurenotifier.NewService(failurenotifier.Options{Logger: notifierLogger})
	}

	var sinks []failurenotifier.SinkRegistration

	if cfg.Slack.Enabled {
		client, err := slack.NewClient(slack.Config{
			WebhookURL:   cfg.Slack.WebhookURL,
			Channel:      cfg.Slack.Channel,
			Username:     cfg.Slack.Username,
			Timeout:      cfg.Timeout,
			RetryLimit:   cfg.RetryLimit,
			JobURLPrefix: cfg.Slack.JobURLPrefix,
		})
		if err != nil {
			logger.Error("slack notifier disabled", "error", err)
		} else {
			sinks = append(sinks, failurenotifier.SinkRegistration{Name: "slack", Sink: client})
		}
	}

	if cfg.PagerDuty.Enabled {
		client, err := pagerduty.NewClient(pagerduty.Config{
			RoutingKey: cfg.PagerDuty.RoutingKey,
			Source:     cfg.PagerDuty.Source,
			Component:  cfg.PagerDuty.Component,
			Timeout:    cfg.Timeout,
			RetryLimit: cfg.RetryLimit,
		})
		if err != nil {
			logger.Error("pagerduty notifier disabled", "error", err)
		} else {
			sinks = append(sinks, failurenotifier.SinkRegistration{Name: "pagerduty", Sink: client})
		}
	}

	return failurenotifier.NewService(failurenotifier.Options{
		Logger: notifierLogger,
		Sinks:  sinks,
	})
}

// ServiceOrchestrationConfig bundles everything RunServicesWithShutdown needs
// to start the enabled runners.
type ServiceOrchestrationConfig struct {
	Config      *config.AppConfig
	Services    ServiceContainer
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Blobs       core.BlobStore
	Logger      *slog.Logger
}

// runner is one long-lived background loop. run blocks until ctx is
// cancelled or the loop dies.
type runner struct {
	mode config.ServiceMode
	name string
	run  func(context.Context) error
}

// runnerHandle lets shutdown wait for a spawned runner to drain.
type runnerHandle struct {
	name string
	done <-chan struct{}
}

// spawn launches a runner and reports a terminal error on errCh. If nobody
// is reading (shutdown already in flight) the error is logged and dropped.
func spawn(ctx context.Context, r runner, errCh chan<- error, logger *slog.Logger) runnerHandle {
	done := make(chan struct{})
	go func() {
		defer close(done)
		err := r.run(ctx)
		if err == nil {
			return
		}
		wrapped := fmt.Errorf("%s failed: %w", r.name, err)
		select {
		case errCh <- wrapped:
		case <-ctx.Done():
		default:
			logger.WarnContext(ctx, "dropping runner error", "service", r.name, "error", wrapped)
		}
	}()

	logger.InfoContext(ctx, "background service started", "service", r.name, "mode", r.mode)
	return runnerHandle{name: r.name, done: done}
}

func queueRunner(cfg *ServiceOrchestrationConfig, logger *slog.Logger) runner {
	return runner{
		mode: config.ServiceModeQueue,
		name: "queue runner",
		run: func(ctx context.Context) error {
			return RunQueueRunner(ctx, QueueRunnerConfig{
				DB:              cfg.DB,
				Logger:          logger,
				Queue:           cfg.Config.Queue,
				Preprocess:      cfg.Config.Preprocess,
				Blobs:           cfg.Blobs,
				Providers:       cfg.Services.Providers,
				Credentials:     cfg.Services.Credentials,
				QueueService:    cfg.Services.Queue,
				Metrics:         cfg.Services.Observability.MetricsSink,
				FailureNotifier: cfg.Services.Observability.FailureNotifier,
			})
		},
	}
}

func reaperRunner(cfg *ServiceOrchestrationConfig, logger *slog.Logger) runner {
	return runner{
		mode: config.ServiceModeReaper,
		name: "reaper",
		run: func(ctx context.Context) error {
			return RunReaper(ctx, ReaperConfig{
				DB:      cfg.DB,
				Logger:  logger,
				Config:  cfg.Config.Reaper,
				Blobs:   cfg.Blobs,
				Metrics: cfg.Services.Observability.MetricsSink,
			})
		},
	}
}

// RunServicesWithShutdown starts every enabled runner and blocks until a
// termination signal arrives or one of them fails. On a runner failure the
// remaining runners are stopped and the failure is returned.
func RunServicesWithShutdown(cfg *ServiceOrchestrationConfig) error {
	if cfg == nil {
		return errors.New("service orchestration config is required")
	}
	if cfg.Config == nil {
		return errors.New("service orchestration config missing AppConfig")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	enabled, err := cfg.Config.GetEnabledServices()
	if err != nil {
		return fmt.Errorf("determine enabled services: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, errorChannelBufferSize(enabled))

	var handles []runnerHandle
	for _, r := range []runner{queueRunner(cfg, logger), reaperRunner(cfg, logger)} {
		if enabled[r.mode] {
			handles = append(handles, spawn(ctx, r, errCh, logger))
		}
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	var runErr error
	select {
	case <-quit:
		logger.Info("shutting down services...")
	case runErr = <-errCh:
		logger.Error("service error", "error", runErr)
	}
	cancel()

	// Unblock idle workers parked on queue notifications, then drain.
	if cfg.Services.Queue != nil {
		cfg.Services.Queue.StopAllListeners()
	}
	for _, h := range handles {
		awaitRunner(h, logger)
	}
	return runErr
}

func awaitRunner(h runnerHandle, logger *slog.Logger) {
	if h.done == nil {
		return
	}
	select {
	case <-h.done:
		logger.Info(h.name + " stopped")
	case <-time.After(stopGrace):
		logger.Warn("timeout waiting for " + h.name + " to stop")
	}
}

// errorChannelCapacity counts the enabled runner modes.
func errorChannelCapacity(enabled map[config.ServiceMode]bool) int {
	count := 0
	for _, mode := range []config.ServiceMode{config.ServiceModeQueue, config.ServiceModeReaper} {
		if enabled[mode] {
			count++
		}
	}
	return count
}

// errorChannelBufferSize adds headroom so a runner failing during shutdown
// never blocks on send.
func errorChannelBufferSize(enabled map[config.ServiceMode]bool) int {
	return errorChannelCapacity(enabled) + 1
}
