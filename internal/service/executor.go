package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/NayerAli/v2-ocr-sub002/config"
	"github.com/NayerAli/v2-ocr-sub002/internal/core"
	"github.com/NayerAli/v2-ocr-sub002/internal/domain/model"
	apperrors "github.com/NayerAli/v2-ocr-sub002/internal/errors"
	obserrors "github.com/NayerAli/v2-ocr-sub002/internal/observability/errors"
	"github.com/NayerAli/v2-ocr-sub002/internal/preprocess"
	"github.com/NayerAli/v2-ocr-sub002/internal/provider"
	"github.com/NayerAli/v2-ocr-sub002/internal/storage"
)

// ExecutionOutcome describes how one job run ended.
type ExecutionOutcome string

const (
	// OutcomeCompleted means every page was recognized and persisted.
	OutcomeCompleted ExecutionOutcome = "completed"
	// OutcomeFailed means the run hit a terminal error and the job was failed.
	OutcomeFailed ExecutionOutcome = "failed"
	// OutcomeCancelled means the owner cancelled the job mid-run; nothing was persisted.
	OutcomeCancelled ExecutionOutcome = "cancelled"
	// OutcomeAbandoned means the job left the processing state under us
	// (shutdown, or the lease expired and the reaper reclaimed it).
	OutcomeAbandoned ExecutionOutcome = "abandoned"
)

// DocumentPreparer produces the page images recognition runs on.
type DocumentPreparer interface {
	Prepare(ctx context.Context, job *model.Job) (*preprocess.Document, error)
}

// ExecutorOptions groups dependencies for Executor.
type ExecutorOptions struct {
	Queue       *QueueService             // Required: claim bookkeeping and terminal transitions
	Results     core.PageResultRepository // Required: page result persistence
	Blobs       core.BlobStore            // Required: page image reads
	Preparer    DocumentPreparer          // Required: document preprocessor
	Providers   *provider.Registry        // Required: recognition adapters
	Credentials provider.CredentialSource // Required: per-run provider configuration
	Config      config.QueueConfig        // Optional: chunking and retry knobs, zero values use defaults
	Logger      *slog.Logger              // Optional: structured logger
}

// Executor runs one claimed job end to end: preprocess, recognize every page
// under the chunked concurrency and retry rules, persist the results
// all-or-nothing, and finalize the job record.
//
// Execute reports handled terminal transitions through its outcome; it
// returns an error only when an infrastructure step fails, in which case the
// caller applies the generic failure path and the lease/reaper pair
// guarantees the job is never stuck in processing.
type Executor struct {
	queue       *QueueService
	results     core.PageResultRepository
	blobs       core.BlobStore
	preparer    DocumentPreparer
	providers   *provider.Registry
	credentials provider.CredentialSource
	cfg         config.QueueConfig
	logger      *slog.Logger
}

// NewExecutor constructs a new Executor.
func NewExecutor(opts ExecutorOptions) (*Executor, error) {
	if opts.Queue == nil {
		return nil, errors.New("QueueService is required")
	}
	if opts.Results == nil {
		return nil, errors.New("PageResultRepository is required")
	}
	if opts.Blobs == nil {
		return nil, errors.New("BlobStore is required")
	}
	if opts.Preparer == nil {
		return nil, errors.New("DocumentPreparer is required")
	}
	if opts.Providers == nil {
		return nil, errors.New("provider Registry is required")
	}
	if opts.Credentials == nil {
		return nil, errors.New("CredentialSource is required")
	}

	cfg := opts.Config
	cfg.Sanitize()

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "executor")
	}

	return &Executor{
		queue:       opts.Queue,
		results:     opts.Results,
		blobs:       opts.Blobs,
		preparer:    opts.Preparer,
		providers:   opts.Providers,
		credentials: opts.Credentials,
		cfg:         cfg,
		logger:      logger,
	}, nil
}

// Execute processes a job the caller has already claimed.
func (e *Executor) Execute(ctx context.Context, job *model.Job) (ExecutionOutcome, error) {
	doc, err := e.preparer.Prepare(ctx, job)
	if err != nil {
		if interruptedByContext(ctx, err) {
			return OutcomeAbandoned, nil
		}
		return e.failJob(ctx, job, err.Error(), JobFailureDetails{ErrorClass: failureClass(err)})
	}

	if doc.ThumbnailPath != "" {
		if err := e.queue.SetThumbnailPath(ctx, job.ID, doc.ThumbnailPath); err != nil && e.logger != nil {
			e.logger.WarnContext(ctx, "failed to record thumbnail path", "job_id", job.ID, "error", err)
		}
	}

	// Progress rows are advisory; total_pages is the durable outcome of
	// preprocessing and must land before recognition starts.
	e.reportProgress(ctx, job.ID, 0, doc.TotalPages)

	cfg, err := e.credentials.ResolveConfig(ctx)
	if err != nil {
		return e.failJob(ctx, job, err.Error(), JobFailureDetails{ErrorClass: failureClass(err)})
	}

	prov, err := e.providers.Resolve(cfg.Provider)
	if err != nil {
		return e.failJob(ctx, job, err.Error(), JobFailureDetails{
			Provider:   cfg.Provider,
			ErrorClass: failureClass(err),
		})
	}

	results, err := e.recognizeDocument(ctx, job, doc, prov, cfg)
	if err != nil {
		var interrupted *interruptedError
		switch {
		case errors.As(err, &interrupted):
			return e.interruptedOutcome(ctx, job, interrupted.Status), nil
		case interruptedByContext(ctx, err):
			return OutcomeAbandoned, nil
		default:
			return e.failJob(ctx, job, err.Error(), JobFailureDetails{
				Provider:   cfg.Provider,
				ErrorClass: failureClass(err),
			})
		}
	}

	if err := model.ValidatePageSequence(results, doc.TotalPages); err != nil {
		return "", fmt.Errorf("page results for job %s: %w", job.ID, err)
	}

	// Last cooperative check before any write: a cancel that landed during
	// recognition must still end with zero persisted results.
	status, err := e.queue.Status(ctx, job.ID)
	if err != nil {
		return "", err
	}
	if status != model.JobStatusProcessing {
		return e.interruptedOutcome(ctx, job, status), nil
	}

	inserted, err := persistResults(ctx, e.results, results)
	if err != nil {
		return "", err
	}
	if !inserted && e.logger != nil {
		e.logger.InfoContext(ctx, "page results already present, skipping insert", "job_id", job.ID)
	}

	completed, err := e.queue.Complete(ctx, core.CompleteJobParams{JobID: job.ID, TotalPages: doc.TotalPages})
	if err != nil {
		return "", err
	}
	if !completed {
		// The conditional update lost to a concurrent transition; the stored
		// status stays authoritative.
		currentStatus, statusErr := e.queue.Status(ctx, job.ID)
		if statusErr != nil {
			return "", statusErr
		}
		return e.interruptedOutcome(ctx, job, currentStatus), nil
	}

	if e.logger != nil {
		e.logger.InfoContext(ctx, "job completed",
			"job_id", job.ID,
			"owner_id", job.OwnerID,
			"total_pages", doc.TotalPages,
			"provider", cfg.Provider,
		)
	}

	return OutcomeCompleted, nil
}

// recognizeDocument runs recognition for every page. Pages are grouped into
// chunks of PagesPerChunk; at most ConcurrentChunks chunks run at once and
// pages within a chunk stay strictly sequential. The returned slice holds one
// result per page in page order.
func (e *Executor) recognizeDocument(
	ctx context.Context,
	job *model.Job,
	doc *preprocess.Document,
	prov provider.Provider,
	cfg provider.Config,
) ([]model.PageResult, error) {
	results := make([]model.PageResult, doc.TotalPages)
	var completed atomic.Int64

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(e.cfg.ConcurrentChunks)

	for _, pages := range chunkPages(doc.TotalPages, e.cfg.PagesPerChunk) {
		eg.Go(func() error {
			return e.runChunk(egCtx, chunkRun{
				job:       job,
				doc:       doc,
				prov:      prov,
				cfg:       cfg,
				pages:     pages,
				results:   results,
				completed: &completed,
			})
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// chunkRun carries one chunk's slice of the shared recognition state.
// Chunks write disjoint regions of results, so no lock is needed.
type chunkRun struct {
	job       *model.Job
	doc       *preprocess.Document
	prov      provider.Provider
	cfg       provider.Config
	pages     []int
	results   []model.PageResult
	completed *atomic.Int64
}

func (e *Executor) runChunk(ctx context.Context, run chunkRun) error {
	for _, page := range run.pages {
		if err := e.ensureProcessing(ctx, run.job.ID); err != nil {
			return err
		}

		image, err := e.fetchPage(ctx, run.doc.PagePaths[page-1])
		if err != nil {
			return fmt.Errorf("fetch page %d image: %w", page, err)
		}

		text, err := e.recognizePage(ctx, run.prov, image, run.cfg)
		if err != nil {
			return fmt.Errorf("page %d: %w", page, err)
		}

		run.results[page-1] = buildPageResult(run.job, run.doc, page, text, run.cfg.Provider)

		done := int(run.completed.Add(1))
		e.reportProgress(ctx, run.job.ID, done, run.doc.TotalPages)
	}
	return nil
}

// recognizePage applies the per-page retry policy: the first attempt plus up
// to RetryAttempts extras, taken only after a transient failure, separated by
// the fixed RetryDelay. The returned PageText always comes from the final
// attempt, so its ProcessingTimeMs never includes earlier tries.
func (e *Executor) recognizePage(
	ctx context.Context,
	prov provider.Provider,
	image []byte,
	cfg provider.Config,
) (*provider.PageText, error) {
	attempts := e.cfg.RetryAttempts + 1
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		text, err := prov.Recognize(ctx, image, cfg)
		if err == nil {
			return text, nil
		}
		lastErr = err

		if !provider.IsTransient(err) {
			return nil, err
		}
		if attempt == attempts {
			break
		}

		if e.logger != nil {
			e.logger.DebugContext(ctx, "transient recognition failure, retrying",
				"provider", cfg.Provider,
				"attempt", attempt,
				"max_attempts", attempts,
				"error", err,
			)
		}
		if err := sleepCtx(ctx, e.cfg.RetryDelay); err != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

func (e *Executor) fetchPage(ctx context.Context, path string) ([]byte, error) {
	rc, err := e.blobs.Get(ctx, path)
	if err != nil {
		return nil, err
	}

	data, readErr := io.ReadAll(rc)
	closeErr := rc.Close()
	if readErr != nil {
		return nil, fmt.Errorf("read %s: %w", path, readErr)
	}
	if closeErr != nil {
		return nil, fmt.Errorf("close %s: %w", path, closeErr)
	}
	return data, nil
}

// ensureProcessing is the cooperative cancellation point between pages.
func (e *Executor) ensureProcessing(ctx context.Context, jobID string) error {
	status, err := e.queue.Status(ctx, jobID)
	if err != nil {
		return err
	}
	if status != model.JobStatusProcessing {
		return &interruptedError{Status: status}
	}
	return nil
}

func (e *Executor) reportProgress(ctx context.Context, jobID string, completedPages, totalPages int) {
	err := e.queue.UpdateProgress(ctx, core.UpdateProgressParams{
		JobID:       jobID,
		Progress:    progressPercent(completedPages, totalPages),
		CurrentPage: completedPages,
		TotalPages:  totalPages,
	})
	if err != nil && e.logger != nil {
		e.logger.WarnContext(ctx, "failed to update job progress", "job_id", jobID, "error", err)
	}
}

func (e *Executor) failJob(
	ctx context.Context,
	job *model.Job,
	errMsg string,
	details JobFailureDetails,
) (ExecutionOutcome, error) {
	failed, err := e.queue.FailWithDetails(ctx, job.ID, errMsg, details)
	if err != nil {
		return "", fmt.Errorf("mark job %s failed: %w", job.ID, err)
	}
	if !failed {
		status, statusErr := e.queue.Status(ctx, job.ID)
		if statusErr != nil {
			return "", statusErr
		}
		return e.interruptedOutcome(ctx, job, status), nil
	}

	if e.logger != nil {
		e.logger.InfoContext(ctx, "job failed",
			"job_id", job.ID,
			"owner_id", job.OwnerID,
			"error", errMsg,
			"error_class", details.ErrorClass,
		)
	}
	return OutcomeFailed, nil
}

func (e *Executor) interruptedOutcome(ctx context.Context, job *model.Job, status model.JobStatus) ExecutionOutcome {
	if status == model.JobStatusCancelled {
		if e.logger != nil {
			e.logger.InfoContext(ctx, "job cancelled mid-run, discarding recognition output",
				"job_id", job.ID,
				"owner_id", job.OwnerID,
			)
		}
		return OutcomeCancelled
	}

	if e.logger != nil {
		e.logger.WarnContext(ctx, "job left processing under a running worker",
			"job_id", job.ID,
			"status", status,
		)
	}
	return OutcomeAbandoned
}

// interruptedError reports that the job left the processing state while a
// worker was still running it.
type interruptedError struct {
	Status model.JobStatus
}

func (e *interruptedError) Error() string {
	return fmt.Sprintf("job is no longer processing (status=%s)", e.Status)
}

// interruptedByContext distinguishes shutdown from real failures: when the
// run context itself is done, the job keeps its processing state and the
// lease/reaper pair returns it to the queue.
func interruptedByContext(ctx context.Context, err error) bool {
	if ctx.Err() == nil {
		return false
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// chunkPages splits pages 1..totalPages into runs of perChunk consecutive
// pages, preserving page order within and across chunks.
func chunkPages(totalPages, perChunk int) [][]int {
	if totalPages <= 0 {
		return nil
	}
	if perChunk <= 0 {
		perChunk = totalPages
	}

	chunks := make([][]int, 0, (totalPages+perChunk-1)/perChunk)
	for start := 1; start <= totalPages; start += perChunk {
		end := min(start+perChunk-1, totalPages)
		pages := make([]int, 0, end-start+1)
		for page := start; page <= end; page++ {
			pages = append(pages, page)
		}
		chunks = append(chunks, pages)
	}
	return chunks
}

// persistResults writes one run's page results all-or-nothing: the pre-insert
// existence check turns duplicate executions into a no-op, and the single
// batched insert stores every page or none. Returns whether this run inserted.
func persistResults(ctx context.Context, repo core.PageResultRepository, results []model.PageResult) (bool, error) {
	if len(results) == 0 {
		return false, errors.New("no page results to persist")
	}

	jobID := results[0].JobID
	exists, err := repo.ExistsForJob(ctx, jobID)
	if err != nil {
		return false, fmt.Errorf("check existing results for job %s: %w", jobID, err)
	}
	if exists {
		return false, nil
	}

	if err := repo.InsertBatch(ctx, results); err != nil {
		return false, fmt.Errorf("insert page results for job %s: %w", jobID, err)
	}
	return true, nil
}

func buildPageResult(
	job *model.Job,
	doc *preprocess.Document,
	page int,
	text *provider.PageText,
	providerName string,
) model.PageResult {
	return model.PageResult{
		JobID:            job.ID,
		OwnerID:          job.OwnerID,
		PageNumber:       page,
		TotalPages:       doc.TotalPages,
		Text:             text.Text,
		Confidence:       text.Confidence,
		Language:         text.Language,
		ProcessingTimeMs: text.ProcessingTimeMs,
		StoragePath:      doc.PagePaths[page-1],
		Provider:         providerName,
	}
}

func progressPercent(completedPages, totalPages int) int {
	if totalPages <= 0 {
		return 0
	}
	percent := completedPages * 100 / totalPages
	if percent > 100 {
		return 100
	}
	if percent < 0 {
		return 0
	}
	return percent
}

// failureClass maps an execution failure onto the low-cardinality class tags
// used by failure notifications and metrics.
func failureClass(err error) string {
	if kind := provider.KindOf(err); kind != "" {
		return "provider_" + string(kind)
	}

	switch {
	case errors.Is(err, preprocess.ErrEmptyDocument),
		errors.Is(err, preprocess.ErrPageRenderFailed),
		errors.Is(err, preprocess.ErrUnsupportedFormat),
		errors.Is(err, preprocess.ErrTooManyPages):
		return "preprocessing"
	case errors.Is(err, storage.ErrBlobNotFound), apperrors.IsStorage(err):
		return "storage"
	default:
		return obserrors.Classify(err)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
