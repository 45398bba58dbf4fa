// Package workflowtest provides an end-to-end harness for the OCR pipeline:
// real repositories against the test database, an in-memory blob store, a
// scriptable recognition provider, and the production worker pool driving
// jobs from enqueue to their terminal state.
package workflowtest

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/NayerAli/v2-ocr-sub002/config"
	"github.com/NayerAli/v2-ocr-sub002/internal/adapters/ocrrunner"
	"github.com/NayerAli/v2-ocr-sub002/internal/core"
	"github.com/NayerAli/v2-ocr-sub002/internal/data"
	domainjob "github.com/NayerAli/v2-ocr-sub002/internal/domain/job"
	"github.com/NayerAli/v2-ocr-sub002/internal/domain/model"
	"github.com/NayerAli/v2-ocr-sub002/internal/preprocess"
	"github.com/NayerAli/v2-ocr-sub002/internal/provider"
	"github.com/NayerAli/v2-ocr-sub002/internal/provider/providertest"
	"github.com/NayerAli/v2-ocr-sub002/internal/service"
	"github.com/NayerAli/v2-ocr-sub002/internal/storage"
	"github.com/NayerAli/v2-ocr-sub002/internal/storage/storagetest"
	"github.com/NayerAli/v2-ocr-sub002/internal/testutil"
)

// notifierWaitWindow bounds how long an idle worker blocks before re-checking
// the queue. Short enough that a notification lost to LISTEN registration
// timing never stalls a test.
const notifierWaitWindow = 500 * time.Millisecond

// WorkflowTestOptions configures the workflow test harness.
//
//nolint:revive // WorkflowTestOptions is intentionally verbose for clarity in test code.
type WorkflowTestOptions struct {
	// Workers is the size of the worker pool.
	Workers int
	// JobLease sets the lease duration stamped on claimed jobs.
	JobLease time.Duration
	// PagesPerChunk and ConcurrentChunks control per-job page parallelism.
	PagesPerChunk    int
	ConcurrentChunks int
	// RetryAttempts is the number of extra recognition attempts after a
	// transient failure; RetryDelay is the fixed pause between attempts.
	RetryAttempts int
	RetryDelay    time.Duration
	// PreparedPages, when positive, replaces the real preprocessor with a
	// preparer that uploads that many synthetic page images. Use it to run
	// multi-page workflows without rasterizing a PDF.
	PreparedPages int
	// PresignTTL is the lifetime of page image links in results.
	PresignTTL time.Duration
}

// DefaultWorkflowOptions returns options tuned for fast end-to-end tests:
// production chunking defaults, but a short retry delay.
func DefaultWorkflowOptions() WorkflowTestOptions {
	return WorkflowTestOptions{
		Workers:          2,
		JobLease:         30 * time.Second,
		PagesPerChunk:    10,
		ConcurrentChunks: 3,
		RetryAttempts:    2,
		RetryDelay:       25 * time.Millisecond,
		PresignTTL:       time.Hour,
	}
}

// WorkflowTestHarness wires the full pipeline for one test.
//
//nolint:revive // WorkflowTestHarness is intentionally verbose for clarity in test code.
type WorkflowTestHarness struct {
	t  testutil.TestingTB
	db *sql.DB

	// JobRepo and Results are the real repositories bound to the test schema.
	JobRepo core.JobRepository
	Results core.PageResultRepository
	// Blobs holds every artifact the pipeline writes.
	Blobs *storagetest.MemoryStore
	// Provider is the scriptable recognition backend registered as "fake".
	Provider *providertest.Fake
	// Queue carries the pause flag and worker-facing operations.
	Queue *service.QueueService
	// Processing exposes the caller-facing operations.
	Processing *service.ProcessingService

	runner      *ocrrunner.Runner
	stopWorkers context.CancelFunc
	workersDone chan error
}

// NewWorkflowTestHarness creates a workflow test harness with all components wired up.
func NewWorkflowTestHarness(t testutil.TestingTB, db *sql.DB, opts WorkflowTestOptions) *WorkflowTestHarness {
	t.Helper()

	if opts.Workers <= 0 {
		opts.Workers = 2
	}
	if opts.JobLease <= 0 {
		opts.JobLease = 30 * time.Second
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	blobs := storagetest.NewMemoryStore()
	fake := providertest.New("fake")
	registry := provider.NewRegistry()
	registry.MustRegister(fake)
	credentials := provider.NewStaticSource(provider.Config{
		Provider: "fake",
		APIKey:   "workflow-test-key",
		Language: "en",
	})

	jobRepo := data.NewJobRepo(db, data.RepoConfig{})
	results := data.NewPageResultRepo(db, logger)

	queue, err := service.NewQueueService(service.QueueServiceOptions{
		Repo:         jobRepo,
		DefaultLease: opts.JobLease,
		Logger:       logger,
		NotifierOptions: domainjob.NotifierOptions{
			WaitWindow: notifierWaitWindow,
			Backoff:    50 * time.Millisecond,
		},
	})
	if err != nil {
		t.Fatalf("wire queue service: %v", err)
	}

	processing, err := service.NewProcessingService(service.ProcessingServiceOptions{
		Repo:       jobRepo,
		Results:    results,
		Blobs:      blobs,
		Queue:      queue,
		PresignTTL: opts.PresignTTL,
		Logger:     logger,
	})
	if err != nil {
		t.Fatalf("wire processing service: %v", err)
	}

	var preparer service.DocumentPreparer
	if opts.PreparedPages > 0 {
		preparer = &FixedPagePreparer{Pages: opts.PreparedPages, Blobs: blobs}
	}

	runner, err := ocrrunner.NewRunner(ocrrunner.RunnerOptions{
		Logger: logger,
		Queue: config.QueueConfig{
			MaxConcurrentJobs: opts.Workers,
			JobLease:          opts.JobLease,
			PagesPerChunk:     opts.PagesPerChunk,
			ConcurrentChunks:  opts.ConcurrentChunks,
			RetryAttempts:     opts.RetryAttempts,
			RetryDelay:        opts.RetryDelay,
		},
		Blobs:        blobs,
		Providers:    registry,
		Credentials:  credentials,
		JobsRepo:     jobRepo,
		ResultsRepo:  results,
		Preparer:     preparer,
		QueueService: queue,
	})
	if err != nil {
		t.Fatalf("wire ocr runner: %v", err)
	}

	return &WorkflowTestHarness{
		t:          t,
		db:         db,
		JobRepo:    jobRepo,
		Results:    results,
		Blobs:      blobs,
		Provider:   fake,
		Queue:      queue,
		Processing: processing,
		runner:     runner,
	}
}

// StartWorkers launches the worker pool. Close stops it.
func (h *WorkflowTestHarness) StartWorkers() {
	h.t.Helper()

	if h.stopWorkers != nil {
		h.t.Fatalf("workers already started")
	}

	ctx, cancel := context.WithCancel(context.Background())
	h.stopWorkers = cancel
	h.workersDone = make(chan error, 1)
	go func() {
		h.workersDone <- h.runner.Run(ctx)
	}()
}

// Close stops the workers and notification listeners.
func (h *WorkflowTestHarness) Close() {
	h.t.Helper()

	if h.stopWorkers != nil {
		h.stopWorkers()
		select {
		case err := <-h.workersDone:
			if err != nil && !errors.Is(err, context.Canceled) {
				h.t.Errorf("worker pool exited with error: %v", err)
			}
		case <-time.After(5 * time.Second):
			h.t.Errorf("worker pool did not stop within 5s")
		}
		h.stopWorkers = nil
	}

	h.Queue.StopAllListeners()
}

// Enqueue submits a document and fails the test on error.
func (h *WorkflowTestHarness) Enqueue(req service.EnqueueRequest) *model.Job {
	h.t.Helper()

	job, err := h.Processing.Enqueue(context.Background(), req)
	if err != nil {
		h.t.Fatalf("enqueue document: %v", err)
	}
	return job
}

// WaitForStatus polls until the job reaches the wanted status and returns the
// job in that state. Fails the test on timeout.
func (h *WorkflowTestHarness) WaitForStatus(
	ownerID, jobID string,
	want model.JobStatus,
	timeout time.Duration,
) *model.Job {
	h.t.Helper()

	deadline := time.Now().Add(timeout)
	var last model.JobStatus
	for time.Now().Before(deadline) {
		job, err := h.Processing.GetJob(context.Background(), ownerID, jobID)
		if err != nil {
			h.t.Fatalf("get job %s: %v", jobID, err)
			return nil
		}
		if job.Status == want {
			return job
		}
		last = job.Status
		time.Sleep(25 * time.Millisecond)
	}

	testutil.LogJobStates(h.t, h.db, fmt.Sprintf("timeout waiting for job %s to reach %s", jobID, want))
	h.t.Fatalf("job %s did not reach %s within %v (last observed status %q)", jobID, want, timeout, last)
	return nil
}

// PageResults returns the job's recognized pages in page order.
func (h *WorkflowTestHarness) PageResults(ownerID, jobID string) []service.PageResultView {
	h.t.Helper()

	results, err := h.Processing.GetResults(context.Background(), ownerID, jobID)
	if err != nil {
		h.t.Fatalf("get results for job %s: %v", jobID, err)
	}
	return results
}

// FixedPagePreparer is a DocumentPreparer that sidesteps rasterization: it
// uploads a fixed number of synthetic page images and reports them as the
// prepared document. Page content embeds the zero-padded page number so
// scripted providers can target individual pages.
type FixedPagePreparer struct {
	Pages int
	Blobs core.BlobStore
}

// Prepare implements service.DocumentPreparer.
func (p *FixedPagePreparer) Prepare(ctx context.Context, job *model.Job) (*preprocess.Document, error) {
	if p.Pages <= 0 {
		return nil, preprocess.ErrEmptyDocument
	}

	doc := &preprocess.Document{
		TotalPages: p.Pages,
		PagePaths:  make([]string, 0, p.Pages),
	}
	for page := 1; page <= p.Pages; page++ {
		key := storage.PagePath(job.OwnerID, job.ID, page)
		content := []byte(fmt.Sprintf("synthetic page %04d of job %s", page, job.ID))
		err := p.Blobs.Put(ctx, core.PutBlobParams{
			Path:        key,
			Reader:      bytes.NewReader(content),
			Size:        int64(len(content)),
			ContentType: "image/jpeg",
		})
		if err != nil {
			return nil, fmt.Errorf("upload synthetic page %d: %w", page, err)
		}
		doc.PagePaths = append(doc.PagePaths, key)
	}
	return doc, nil
}

var _ service.DocumentPreparer = (*FixedPagePreparer)(nil)

// WithWorkflowHarness sets up a harness against the test database, runs fn,
// and tears everything down. Skips when no test database is available.
func WithWorkflowHarness(t testutil.TestingTB, opts WorkflowTestOptions, fn func(*WorkflowTestHarness)) {
	t.Helper()

	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		harness := NewWorkflowTestHarness(t, db, opts)
		defer harness.Close()
		fn(harness)
	})
}
