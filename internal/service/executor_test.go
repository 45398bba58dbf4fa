package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/NayerAli/v2-ocr-sub002/config"
	"github.com/NayerAli/v2-ocr-sub002/internal/core"
	"github.com/NayerAli/v2-ocr-sub002/internal/domain/model"
	"github.com/NayerAli/v2-ocr-sub002/internal/mocks"
	"github.com/NayerAli/v2-ocr-sub002/internal/preprocess"
	"github.com/NayerAli/v2-ocr-sub002/internal/provider"
	"github.com/NayerAli/v2-ocr-sub002/internal/provider/providertest"
	"github.com/NayerAli/v2-ocr-sub002/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type fakePreparer struct {
	doc *preprocess.Document
	err error
}

var _ DocumentPreparer = (*fakePreparer)(nil)

func (f *fakePreparer) Prepare(_ context.Context, _ *model.Job) (*preprocess.Document, error) {
	return f.doc, f.err
}

// attemptTracker counts recognition attempts per page image. Page images in
// these tests carry their blob path as content, so attempts can be keyed by
// page without touching the provider contract.
type attemptTracker struct {
	mu       sync.Mutex
	attempts map[string]int
}

func (a *attemptTracker) next(image string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.attempts == nil {
		a.attempts = make(map[string]int)
	}
	a.attempts[image]++
	return a.attempts[image]
}

func (a *attemptTracker) count(image string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.attempts[image]
}

type executorHarness struct {
	repo     *mocks.MockJobRepository
	results  *mocks.MockPageResultRepository
	blobs    *mocks.MockBlobStore
	preparer *fakePreparer
	provider *providertest.Fake
	attempts *attemptTracker
	executor *Executor
}

func newExecutorHarness(t *testing.T, ctrl *gomock.Controller, cfg config.QueueConfig) *executorHarness {
	t.Helper()

	h := &executorHarness{
		repo:     mocks.NewMockJobRepository(ctrl),
		results:  mocks.NewMockPageResultRepository(ctrl),
		blobs:    mocks.NewMockBlobStore(ctrl),
		preparer: &fakePreparer{},
		provider: providertest.New("fake"),
		attempts: &attemptTracker{},
	}
	h.provider.SetRecognizeFunc(func(_ context.Context, image []byte, _ provider.Config) (*provider.PageText, error) {
		h.attempts.next(string(image))
		return &provider.PageText{Text: "text of " + string(image), Confidence: 0.9, ProcessingTimeMs: 5}, nil
	})

	queue := MustNewQueueService(QueueServiceOptions{
		Repo:         h.repo,
		DefaultLease: 30 * time.Second,
		Notifier:     &stubQueueNotifier{},
	})

	registry := provider.NewRegistry()
	registry.MustRegister(h.provider)

	executor, err := NewExecutor(ExecutorOptions{
		Queue:       queue,
		Results:     h.results,
		Blobs:       h.blobs,
		Preparer:    h.preparer,
		Providers:   registry,
		Credentials: provider.NewStaticSource(provider.Config{Provider: "fake", APIKey: "key"}),
		Config:      cfg,
	})
	require.NoError(t, err)
	h.executor = executor
	return h
}

// serveImages answers blob reads with the requested path as the image bytes.
func (h *executorHarness) serveImages() {
	h.blobs.EXPECT().
		Get(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, path string) (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(path)), nil
		}).
		AnyTimes()
}

func (h *executorHarness) allowProgress() {
	h.repo.EXPECT().UpdateProgress(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
}

func testJob() *model.Job {
	return &model.Job{
		ID:       "job-1",
		OwnerID:  "user-1",
		FileType: model.MIMEPDF,
		Status:   model.JobStatusProcessing,
	}
}

func testDocument(job *model.Job, pages int) *preprocess.Document {
	paths := make([]string, 0, pages)
	for page := 1; page <= pages; page++ {
		paths = append(paths, storage.PagePath(job.OwnerID, job.ID, page))
	}
	return &preprocess.Document{TotalPages: pages, PagePaths: paths}
}

func sequentialConfig() config.QueueConfig {
	return config.QueueConfig{
		PagesPerChunk:    10,
		ConcurrentChunks: 1,
		RetryAttempts:    2,
		RetryDelay:       0,
	}
}

func TestExecutor_SingleImageJob(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := newExecutorHarness(t, ctrl, sequentialConfig())
	job := testJob()
	job.FileType = model.MIMEJPEG
	doc := &preprocess.Document{TotalPages: 1, PagePaths: []string{"user-1/job-1/original.jpg"}}
	h.preparer.doc = doc
	h.serveImages()
	h.allowProgress()

	h.repo.EXPECT().Status(gomock.Any(), job.ID).Return(model.JobStatusProcessing, nil).Times(2)
	h.results.EXPECT().ExistsForJob(gomock.Any(), job.ID).Return(false, nil)
	h.results.EXPECT().
		InsertBatch(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, results []model.PageResult) error {
			require.Len(t, results, 1)
			assert.Equal(t, 1, results[0].PageNumber)
			assert.Equal(t, 1, results[0].TotalPages)
			assert.Equal(t, job.ID, results[0].JobID)
			assert.Equal(t, job.OwnerID, results[0].OwnerID)
			assert.Equal(t, "fake", results[0].Provider)
			assert.Equal(t, doc.PagePaths[0], results[0].StoragePath)
			assert.Equal(t, "text of "+doc.PagePaths[0], results[0].Text)
			return nil
		})
	h.repo.EXPECT().
		Complete(gomock.Any(), core.CompleteJobParams{JobID: job.ID, TotalPages: 1}).
		Return(true, nil)

	outcome, err := h.executor.Execute(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, outcome)
	assert.Equal(t, 1, h.attempts.count(doc.PagePaths[0]))
}

func TestExecutor_TransientRetriesThenCompletes(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := newExecutorHarness(t, ctrl, sequentialConfig())
	job := testJob()
	doc := testDocument(job, 3)
	h.preparer.doc = doc
	h.serveImages()
	h.allowProgress()

	// Page 2 fails twice with a transient error, then succeeds. The final
	// attempt's processing time must be the one that lands in the result.
	page2 := doc.PagePaths[1]
	h.provider.SetRecognizeFunc(func(_ context.Context, image []byte, _ provider.Config) (*provider.PageText, error) {
		attempt := h.attempts.next(string(image))
		if string(image) == page2 && attempt <= 2 {
			return nil, provider.NewError(provider.KindTransient, "fake", "rate limited")
		}
		return &provider.PageText{Text: "ok", Confidence: 0.8, ProcessingTimeMs: int64(attempt * 100)}, nil
	})

	// One check per page plus the final pre-persist check.
	h.repo.EXPECT().Status(gomock.Any(), job.ID).Return(model.JobStatusProcessing, nil).Times(4)
	h.results.EXPECT().ExistsForJob(gomock.Any(), job.ID).Return(false, nil)
	h.results.EXPECT().
		InsertBatch(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, results []model.PageResult) error {
			require.Len(t, results, 3)
			for i, result := range results {
				assert.Equal(t, i+1, result.PageNumber)
			}
			// Third attempt on page 2; first attempt on the others.
			assert.Equal(t, int64(100), results[0].ProcessingTimeMs)
			assert.Equal(t, int64(300), results[1].ProcessingTimeMs)
			assert.Equal(t, int64(100), results[2].ProcessingTimeMs)
			return nil
		})
	h.repo.EXPECT().
		Complete(gomock.Any(), core.CompleteJobParams{JobID: job.ID, TotalPages: 3}).
		Return(true, nil)

	outcome, err := h.executor.Execute(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, outcome)

	assert.Equal(t, 1, h.attempts.count(doc.PagePaths[0]))
	assert.Equal(t, 3, h.attempts.count(page2))
	assert.Equal(t, 1, h.attempts.count(doc.PagePaths[2]))
}

func TestExecutor_TransientExhaustionFailsJob(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := newExecutorHarness(t, ctrl, sequentialConfig())
	job := testJob()
	doc := testDocument(job, 2)
	h.preparer.doc = doc
	h.serveImages()
	h.allowProgress()

	h.provider.SetRecognizeFunc(func(_ context.Context, image []byte, _ provider.Config) (*provider.PageText, error) {
		h.attempts.next(string(image))
		if string(image) == doc.PagePaths[0] {
			return nil, provider.NewError(provider.KindTransient, "fake", "rate limited")
		}
		return &provider.PageText{Text: "ok"}, nil
	})

	h.repo.EXPECT().Status(gomock.Any(), job.ID).Return(model.JobStatusProcessing, nil)
	h.repo.EXPECT().
		Fail(gomock.Any(), job.ID, gomock.Any()).
		DoAndReturn(func(_ context.Context, _, errMsg string) (bool, error) {
			assert.Contains(t, errMsg, "rate limited")
			return true, nil
		})

	outcome, err := h.executor.Execute(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, outcome)

	// One initial attempt plus the two configured retries, nothing more.
	assert.Equal(t, 3, h.attempts.count(doc.PagePaths[0]))
	assert.Equal(t, 0, h.attempts.count(doc.PagePaths[1]))
	// The failed job persisted no page results: no expectations were set on
	// the result repository, so any call would have failed the test.
}

func TestExecutor_NonTransientFailsWithoutRetry(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := newExecutorHarness(t, ctrl, sequentialConfig())
	job := testJob()
	doc := testDocument(job, 3)
	h.preparer.doc = doc
	h.serveImages()
	h.allowProgress()

	h.provider.SetRecognizeFunc(func(_ context.Context, image []byte, _ provider.Config) (*provider.PageText, error) {
		h.attempts.next(string(image))
		return nil, provider.NewError(provider.KindAuthFailed, "fake", "bad key")
	})

	h.repo.EXPECT().Status(gomock.Any(), job.ID).Return(model.JobStatusProcessing, nil)
	h.repo.EXPECT().Fail(gomock.Any(), job.ID, gomock.Any()).Return(true, nil)

	outcome, err := h.executor.Execute(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, outcome)
	assert.Equal(t, 1, h.attempts.count(doc.PagePaths[0]))
}

func TestExecutor_EmptyDocumentFailsJob(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := newExecutorHarness(t, ctrl, sequentialConfig())
	job := testJob()
	h.preparer.err = preprocess.ErrEmptyDocument

	h.repo.EXPECT().
		Fail(gomock.Any(), job.ID, "document contains no pages").
		Return(true, nil)

	outcome, err := h.executor.Execute(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, outcome)
}

func TestExecutor_CancelBetweenPages(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := newExecutorHarness(t, ctrl, sequentialConfig())
	job := testJob()
	doc := testDocument(job, 3)
	h.preparer.doc = doc
	h.serveImages()
	h.allowProgress()

	// The owner cancels after page 1; the page-2 status check sees it.
	gomock.InOrder(
		h.repo.EXPECT().Status(gomock.Any(), job.ID).Return(model.JobStatusProcessing, nil),
		h.repo.EXPECT().Status(gomock.Any(), job.ID).Return(model.JobStatusCancelled, nil),
	)

	outcome, err := h.executor.Execute(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCancelled, outcome)

	assert.Equal(t, 1, h.attempts.count(doc.PagePaths[0]))
	assert.Equal(t, 0, h.attempts.count(doc.PagePaths[1]))
}

func TestExecutor_CancelBeforePersistDiscardsResults(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := newExecutorHarness(t, ctrl, sequentialConfig())
	job := testJob()
	doc := testDocument(job, 2)
	h.preparer.doc = doc
	h.serveImages()
	h.allowProgress()

	// Recognition finishes cleanly, but the cancel lands before the write.
	gomock.InOrder(
		h.repo.EXPECT().Status(gomock.Any(), job.ID).Return(model.JobStatusProcessing, nil),
		h.repo.EXPECT().Status(gomock.Any(), job.ID).Return(model.JobStatusProcessing, nil),
		h.repo.EXPECT().Status(gomock.Any(), job.ID).Return(model.JobStatusCancelled, nil),
	)

	outcome, err := h.executor.Execute(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCancelled, outcome)
}

func TestExecutor_DuplicateExecutionSkipsInsert(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := newExecutorHarness(t, ctrl, sequentialConfig())
	job := testJob()
	doc := testDocument(job, 1)
	h.preparer.doc = doc
	h.serveImages()
	h.allowProgress()

	h.repo.EXPECT().Status(gomock.Any(), job.ID).Return(model.JobStatusProcessing, nil).Times(2)
	// Results from an earlier run already exist; this run must not insert.
	h.results.EXPECT().ExistsForJob(gomock.Any(), job.ID).Return(true, nil)
	h.repo.EXPECT().
		Complete(gomock.Any(), core.CompleteJobParams{JobID: job.ID, TotalPages: 1}).
		Return(true, nil)

	outcome, err := h.executor.Execute(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, outcome)
}

func TestExecutor_CompleteLostToConcurrentTransition(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := newExecutorHarness(t, ctrl, sequentialConfig())
	job := testJob()
	doc := testDocument(job, 1)
	h.preparer.doc = doc
	h.serveImages()
	h.allowProgress()

	gomock.InOrder(
		h.repo.EXPECT().Status(gomock.Any(), job.ID).Return(model.JobStatusProcessing, nil),
		h.repo.EXPECT().Status(gomock.Any(), job.ID).Return(model.JobStatusProcessing, nil),
		h.repo.EXPECT().Status(gomock.Any(), job.ID).Return(model.JobStatusCancelled, nil),
	)
	h.results.EXPECT().ExistsForJob(gomock.Any(), job.ID).Return(false, nil)
	h.results.EXPECT().InsertBatch(gomock.Any(), gomock.Any()).Return(nil)
	h.repo.EXPECT().
		Complete(gomock.Any(), core.CompleteJobParams{JobID: job.ID, TotalPages: 1}).
		Return(false, nil)

	outcome, err := h.executor.Execute(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCancelled, outcome)
}

func TestExecutor_ContextCancellationAbandons(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := newExecutorHarness(t, ctrl, sequentialConfig())
	job := testJob()

	ctx, cancel := context.WithCancel(context.Background())
	h.preparer.err = context.Canceled
	cancel()

	outcome, err := h.executor.Execute(ctx, job)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAbandoned, outcome)
}

func TestExecutor_RetryDelayIsHonored(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	cfg := sequentialConfig()
	cfg.RetryDelay = 20 * time.Millisecond
	h := newExecutorHarness(t, ctrl, cfg)
	job := testJob()
	doc := testDocument(job, 1)
	h.preparer.doc = doc
	h.serveImages()
	h.allowProgress()

	h.provider.SetRecognizeFunc(func(_ context.Context, image []byte, _ provider.Config) (*provider.PageText, error) {
		if h.attempts.next(string(image)) <= 2 {
			return nil, provider.NewError(provider.KindTransient, "fake", "busy")
		}
		return &provider.PageText{Text: "ok"}, nil
	})

	h.repo.EXPECT().Status(gomock.Any(), job.ID).Return(model.JobStatusProcessing, nil).Times(2)
	h.results.EXPECT().ExistsForJob(gomock.Any(), job.ID).Return(false, nil)
	h.results.EXPECT().InsertBatch(gomock.Any(), gomock.Any()).Return(nil)
	h.repo.EXPECT().Complete(gomock.Any(), gomock.Any()).Return(true, nil)

	start := time.Now()
	outcome, err := h.executor.Execute(context.Background(), job)
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, outcome)
	// Two retries separated by the fixed delay.
	assert.GreaterOrEqual(t, elapsed, 40*time.Millisecond)
}

func TestNewExecutor_RequiredDependencies(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := mocks.NewMockJobRepository(ctrl)
	queue := MustNewQueueService(QueueServiceOptions{
		Repo:         repo,
		DefaultLease: 30 * time.Second,
		Notifier:     &stubQueueNotifier{},
	})
	results := mocks.NewMockPageResultRepository(ctrl)
	blobs := mocks.NewMockBlobStore(ctrl)
	registry := provider.NewRegistry()
	creds := provider.NewStaticSource(provider.Config{Provider: "fake"})

	valid := ExecutorOptions{
		Queue:       queue,
		Results:     results,
		Blobs:       blobs,
		Preparer:    &fakePreparer{},
		Providers:   registry,
		Credentials: creds,
	}

	tests := []struct {
		name    string
		mutate  func(*ExecutorOptions)
		wantErr string
	}{
		{"missing queue", func(o *ExecutorOptions) { o.Queue = nil }, "QueueService is required"},
		{"missing results", func(o *ExecutorOptions) { o.Results = nil }, "PageResultRepository is required"},
		{"missing blobs", func(o *ExecutorOptions) { o.Blobs = nil }, "BlobStore is required"},
		{"missing preparer", func(o *ExecutorOptions) { o.Preparer = nil }, "DocumentPreparer is required"},
		{"missing providers", func(o *ExecutorOptions) { o.Providers = nil }, "provider Registry is required"},
		{"missing credentials", func(o *ExecutorOptions) { o.Credentials = nil }, "CredentialSource is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := valid
			tt.mutate(&opts)
			_, err := NewExecutor(opts)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	t.Run("valid options", func(t *testing.T) {
		executor, err := NewExecutor(valid)
		require.NoError(t, err)
		assert.NotNil(t, executor)
	})
}

func TestChunkPages(t *testing.T) {
	tests := []struct {
		name       string
		totalPages int
		perChunk   int
		want       [][]int
	}{
		{"zero pages", 0, 10, nil},
		{"single page", 1, 10, [][]int{{1}}},
		{"exact multiple", 4, 2, [][]int{{1, 2}, {3, 4}}},
		{"remainder chunk", 5, 2, [][]int{{1, 2}, {3, 4}, {5}}},
		{"chunk larger than document", 3, 10, [][]int{{1, 2, 3}}},
		{"non-positive chunk size takes everything", 3, 0, [][]int{{1, 2, 3}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, chunkPages(tt.totalPages, tt.perChunk))
		})
	}
}

func TestProgressPercent(t *testing.T) {
	tests := []struct {
		name      string
		completed int
		total     int
		want      int
	}{
		{"zero total", 0, 0, 0},
		{"no pages done", 0, 4, 0},
		{"halfway", 2, 4, 50},
		{"complete", 4, 4, 100},
		{"overcount clamps", 5, 4, 100},
		{"thirds round down", 1, 3, 33},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, progressPercent(tt.completed, tt.total))
		})
	}
}

func TestFailureClass(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"transient provider", provider.NewError(provider.KindTransient, "fake", "busy"), "provider_transient"},
		{"auth failure", provider.NewError(provider.KindAuthFailed, "fake", "bad key"), "provider_auth_failed"},
		{"quota", provider.NewError(provider.KindQuotaExceeded, "fake", "limit"), "provider_quota_exceeded"},
		{"invalid config", provider.NewError(provider.KindInvalidConfig, "", "no provider"), "provider_invalid_config"},
		{"unsupported input", provider.NewError(provider.KindUnsupported, "fake", "tiff"), "provider_unsupported"},
		{"empty document", preprocess.ErrEmptyDocument, "preprocessing"},
		{"render failure", preprocess.ErrPageRenderFailed, "preprocessing"},
		{"blob missing", storage.ErrBlobNotFound, "storage"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, failureClass(tt.err))
		})
	}
}

func TestPersistResults(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	results := []model.PageResult{
		{JobID: "job-1", OwnerID: "user-1", PageNumber: 1, TotalPages: 2, Provider: "fake"},
		{JobID: "job-1", OwnerID: "user-1", PageNumber: 2, TotalPages: 2, Provider: "fake"},
	}

	t.Run("inserts when no results exist", func(t *testing.T) {
		repo := mocks.NewMockPageResultRepository(ctrl)
		repo.EXPECT().ExistsForJob(gomock.Any(), "job-1").Return(false, nil)
		repo.EXPECT().InsertBatch(gomock.Any(), results).Return(nil)

		inserted, err := persistResults(context.Background(), repo, results)
		require.NoError(t, err)
		assert.True(t, inserted)
	})

	t.Run("skips when results already exist", func(t *testing.T) {
		repo := mocks.NewMockPageResultRepository(ctrl)
		repo.EXPECT().ExistsForJob(gomock.Any(), "job-1").Return(true, nil)

		inserted, err := persistResults(context.Background(), repo, results)
		require.NoError(t, err)
		assert.False(t, inserted)
	})

	t.Run("empty result set is an error", func(t *testing.T) {
		repo := mocks.NewMockPageResultRepository(ctrl)

		_, err := persistResults(context.Background(), repo, nil)
		require.Error(t, err)
	})

	t.Run("existence check error surfaces", func(t *testing.T) {
		repo := mocks.NewMockPageResultRepository(ctrl)
		repo.EXPECT().ExistsForJob(gomock.Any(), "job-1").Return(false, errors.New("db down"))

		_, err := persistResults(context.Background(), repo, results)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "check existing results")
	})

	t.Run("insert error surfaces", func(t *testing.T) {
		repo := mocks.NewMockPageResultRepository(ctrl)
		repo.EXPECT().ExistsForJob(gomock.Any(), "job-1").Return(false, nil)
		repo.EXPECT().InsertBatch(gomock.Any(), results).Return(errors.New("db down"))

		_, err := persistResults(context.Background(), repo, results)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "insert page results")
	})
}

func TestExecutor_ConcurrentChunksKeepPageOrder(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	cfg := config.QueueConfig{
		PagesPerChunk:    2,
		ConcurrentChunks: 3,
		RetryAttempts:    0,
		RetryDelay:       0,
	}
	h := newExecutorHarness(t, ctrl, cfg)
	job := testJob()
	doc := testDocument(job, 6)
	h.preparer.doc = doc
	h.serveImages()
	h.allowProgress()

	h.repo.EXPECT().Status(gomock.Any(), job.ID).Return(model.JobStatusProcessing, nil).AnyTimes()
	h.results.EXPECT().ExistsForJob(gomock.Any(), job.ID).Return(false, nil)
	h.results.EXPECT().
		InsertBatch(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, results []model.PageResult) error {
			// Chunks may race, but the persisted batch is always page-ordered.
			require.Len(t, results, 6)
			for i, result := range results {
				assert.Equal(t, i+1, result.PageNumber)
				assert.Equal(t, doc.PagePaths[i], result.StoragePath)
			}
			return nil
		})
	h.repo.EXPECT().
		Complete(gomock.Any(), core.CompleteJobParams{JobID: job.ID, TotalPages: 6}).
		Return(true, nil)

	outcome, err := h.executor.Execute(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, outcome)
}
