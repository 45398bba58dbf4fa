package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ServiceMode represents the available service modes.
type ServiceMode string

const (
	// ServiceModeQueue runs the OCR queue workers.
	ServiceModeQueue ServiceMode = "queue"
	// ServiceModeReaper runs the job reaper for lease recovery and cleanup.
	ServiceModeReaper ServiceMode = "reaper"
)

// ValidServiceModes returns all valid service mode names.
func ValidServiceModes() []ServiceMode {
	return []ServiceMode{
		ServiceModeQueue,
		ServiceModeReaper,
	}
}

// ParseServices parses a comma-delimited string of service names and returns the enabled services.
// It validates that all service names are valid and returns an error if any are invalid.
func ParseServices(servicesStr string) (map[ServiceMode]bool, error) {
	services := make(map[ServiceMode]bool)

	if servicesStr == "" {
		return services, errors.New("at least one service must be specified")
	}

	parts := strings.Split(servicesStr, ",")
	for _, part := range parts {
		serviceName := strings.TrimSpace(part)
		if serviceName == "" {
			continue
		}

		mode := ServiceMode(serviceName)
		switch mode {
		case ServiceModeQueue, ServiceModeReaper:
			services[mode] = true
		default:
			return nil, fmt.Errorf(
				"invalid service name: %q (valid options: queue, reaper)",
				serviceName,
			)
		}
	}

	if len(services) == 0 {
		return nil, errors.New("at least one valid service must be specified")
	}

	return services, nil
}

// QueueConfig contains queue worker configuration.
type QueueConfig struct {
	// MaxConcurrentJobs is the number of worker goroutines, each processing
	// one job at a time.
	MaxConcurrentJobs int `env:"QUEUE_MAX_CONCURRENT_JOBS" envDefault:"3"`

	// JobLease is the duration a worker holds a claimed job before the
	// reaper may return it to the queue.
	JobLease time.Duration `env:"QUEUE_JOB_LEASE" envDefault:"2m"`

	// PagesPerChunk is the number of pages recognized sequentially by one
	// chunk of a multi-page document.
	PagesPerChunk int `env:"QUEUE_PAGES_PER_CHUNK" envDefault:"10"`

	// ConcurrentChunks is the maximum number of chunks recognized in
	// parallel within one job.
	ConcurrentChunks int `env:"QUEUE_CONCURRENT_CHUNKS" envDefault:"3"`

	// RetryAttempts is the number of extra recognition attempts per page
	// after a transient provider failure.
	RetryAttempts int `env:"QUEUE_RETRY_ATTEMPTS" envDefault:"2"`

	// RetryDelay is the fixed pause between recognition attempts.
	RetryDelay time.Duration `env:"QUEUE_RETRY_DELAY" envDefault:"1s"`

	// MaxFileSize is the largest accepted upload in bytes.
	MaxFileSize int64 `env:"QUEUE_MAX_FILE_SIZE" envDefault:"52428800"` // 50 MiB
}

// Sanitize applies guardrails to queue configuration values.
func (q *QueueConfig) Sanitize() {
	if q.MaxConcurrentJobs < 1 {
		q.MaxConcurrentJobs = 1
	}
	if q.JobLease < 5*time.Second {
		q.JobLease = 5 * time.Second
	}
	if q.PagesPerChunk < 1 {
		q.PagesPerChunk = 1
	}
	if q.ConcurrentChunks < 1 {
		q.ConcurrentChunks = 1
	}
	if q.RetryAttempts < 0 {
		q.RetryAttempts = 0
	}
	if q.RetryDelay < 0 {
		q.RetryDelay = 0
	}
	if q.MaxFileSize < 1 {
		q.MaxFileSize = 50 * 1024 * 1024
	}
}

// PreprocessConfig contains document preparation configuration.
type PreprocessConfig struct {
	// PdftoppmPath is the pdftoppm binary name or absolute path.
	PdftoppmPath string `env:"PREPROCESS_PDFTOPPM_PATH" envDefault:"pdftoppm"`

	// Scale is the PDF raster scale relative to PDF user space.
	Scale float64 `env:"PREPROCESS_SCALE" envDefault:"1.5"`

	// JPEGQuality applies to rendered page images and thumbnails (1-100).
	JPEGQuality int `env:"PREPROCESS_JPEG_QUALITY" envDefault:"80"`

	// ThumbnailWidth is the pixel width of the first-page thumbnail.
	ThumbnailWidth int `env:"PREPROCESS_THUMBNAIL_WIDTH" envDefault:"320"`

	// MaxPages caps document size. 0 means no limit.
	MaxPages int `env:"PREPROCESS_MAX_PAGES" envDefault:"500"`

	// Timeout bounds one document's preparation.
	Timeout time.Duration `env:"PREPROCESS_TIMEOUT" envDefault:"2m"`
}

// Sanitize applies guardrails to preprocessing configuration values.
func (p *PreprocessConfig) Sanitize() {
	if p.Scale <= 0 {
		p.Scale = 1.5
	}
	if p.JPEGQuality < 1 || p.JPEGQuality > 100 {
		p.JPEGQuality = 80
	}
	if p.ThumbnailWidth < 1 {
		p.ThumbnailWidth = 320
	}
	if p.MaxPages < 0 {
		p.MaxPages = 0
	}
	if p.Timeout <= 0 {
		p.Timeout = 2 * time.Minute
	}
}

// ReaperConfig contains job reaper service configuration.
type ReaperConfig struct {
	// Interval is the reaper tick interval.
	Interval time.Duration `env:"REAPER_INTERVAL" envDefault:"5m"`

	// QueuedMaxAge is the maximum age for queued jobs before they are marked as failed.
	// Jobs stuck in queued status longer than this will be failed.
	QueuedMaxAge time.Duration `env:"REAPER_QUEUED_MAX_AGE" envDefault:"24h"`

	// CompletedMaxAge is the maximum age for completed jobs before deletion.
	CompletedMaxAge time.Duration `env:"REAPER_COMPLETED_MAX_AGE" envDefault:"168h"` // 7 days

	// FailedMaxAge is the maximum age for failed jobs before deletion.
	FailedMaxAge time.Duration `env:"REAPER_FAILED_MAX_AGE" envDefault:"168h"` // 7 days

	// CancelledMaxAge is the maximum age for cancelled jobs before deletion.
	CancelledMaxAge time.Duration `env:"REAPER_CANCELLED_MAX_AGE" envDefault:"72h"` // 3 days

	// BatchSize is the maximum number of rows to process per operation.
	// Batching prevents long locks and I/O spikes on large tables.
	BatchSize int `env:"REAPER_BATCH_SIZE" envDefault:"1000"`
}

// Sanitize applies guardrails to reaper configuration values.
func (r *ReaperConfig) Sanitize() {
	// Enforce minimum intervals to prevent excessive database load
	if r.Interval < 1*time.Minute {
		r.Interval = 1 * time.Minute
	}
	if r.QueuedMaxAge < 5*time.Minute {
		r.QueuedMaxAge = 5 * time.Minute
	}
	if r.CompletedMaxAge < 1*time.Hour {
		r.CompletedMaxAge = 1 * time.Hour
	}
	if r.FailedMaxAge < 1*time.Hour {
		r.FailedMaxAge = 1 * time.Hour
	}
	if r.CancelledMaxAge < 1*time.Hour {
		r.CancelledMaxAge = 1 * time.Hour
	}

	// Enforce batch size bounds to prevent excessive locks or inefficiency
	if r.BatchSize < 1 {
		r.BatchSize = 1
	}
	if r.BatchSize > 10000 {
		r.BatchSize = 10000
	}
}
