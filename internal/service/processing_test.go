package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/NayerAli/v2-ocr-sub002/internal/core"
	"github.com/NayerAli/v2-ocr-sub002/internal/data"
	"github.com/NayerAli/v2-ocr-sub002/internal/domain/model"
	apperrors "github.com/NayerAli/v2-ocr-sub002/internal/errors"
	"github.com/NayerAli/v2-ocr-sub002/internal/mocks"
	"github.com/NayerAli/v2-ocr-sub002/internal/storage"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type processingHarness struct {
	repo    *mocks.MockJobRepository
	results *mocks.MockPageResultRepository
	blobs   *mocks.MockBlobStore
	queue   *QueueService
	svc     *ProcessingService
}

func newProcessingHarness(t *testing.T, ctrl *gomock.Controller, mutate ...func(*ProcessingServiceOptions)) *processingHarness {
	t.Helper()

	h := &processingHarness{
		repo:    mocks.NewMockJobRepository(ctrl),
		results: mocks.NewMockPageResultRepository(ctrl),
		blobs:   mocks.NewMockBlobStore(ctrl),
	}
	h.queue = MustNewQueueService(QueueServiceOptions{
		Repo:         h.repo,
		DefaultLease: 30 * time.Second,
		Notifier:     &stubQueueNotifier{},
	})

	opts := ProcessingServiceOptions{
		Repo:    h.repo,
		Results: h.results,
		Blobs:   h.blobs,
		Queue:   h.queue,
	}
	for _, m := range mutate {
		m(&opts)
	}
	h.svc = MustNewProcessingService(opts)
	return h
}

func TestNewProcessingService_RequiredDependencies(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := mocks.NewMockJobRepository(ctrl)
	results := mocks.NewMockPageResultRepository(ctrl)
	blobs := mocks.NewMockBlobStore(ctrl)
	queue := MustNewQueueService(QueueServiceOptions{
		Repo:         repo,
		DefaultLease: 30 * time.Second,
		Notifier:     &stubQueueNotifier{},
	})

	valid := ProcessingServiceOptions{Repo: repo, Results: results, Blobs: blobs, Queue: queue}

	tests := []struct {
		name    string
		mutate  func(*ProcessingServiceOptions)
		wantErr string
	}{
		{"missing repo", func(o *ProcessingServiceOptions) { o.Repo = nil }, "JobRepository is required"},
		{"missing results", func(o *ProcessingServiceOptions) { o.Results = nil }, "PageResultRepository is required"},
		{"missing blobs", func(o *ProcessingServiceOptions) { o.Blobs = nil }, "BlobStore is required"},
		{"missing queue", func(o *ProcessingServiceOptions) { o.Queue = nil }, "QueueService is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := valid
			tt.mutate(&opts)
			_, err := NewProcessingService(opts)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	t.Run("valid options", func(t *testing.T) {
		svc, err := NewProcessingService(valid)
		require.NoError(t, err)
		assert.NotNil(t, svc)
	})
}

func TestProcessingService_Enqueue(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := newProcessingHarness(t, ctrl)
	payload := []byte("%PDF-1.4 sample document")
	sum := sha256.Sum256(payload)

	var storedPath string
	h.blobs.EXPECT().
		Put(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, params core.PutBlobParams) error {
			storedPath = params.Path
			assert.Equal(t, int64(len(payload)), params.Size)
			assert.Equal(t, model.MIMEPDF, params.ContentType)
			uploaded, err := io.ReadAll(params.Reader)
			require.NoError(t, err)
			assert.Equal(t, payload, uploaded)
			return nil
		})
	h.repo.EXPECT().
		Create(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req *model.CreateJobRequest) (*model.Job, error) {
			require.NoError(t, uuid.Validate(req.ID))
			assert.Equal(t, "user-1", req.OwnerID)
			assert.Equal(t, req.ID+".pdf", req.Filename)
			assert.Equal(t, "invoice.pdf", req.OriginalFilename)
			assert.Equal(t, model.MIMEPDF, req.FileType)
			assert.Equal(t, int64(len(payload)), req.FileSize)
			assert.Equal(t, hex.EncodeToString(sum[:]), req.FileHash)
			assert.Equal(t, storage.OriginalPath("user-1", req.ID, req.Filename), req.StoragePath)
			assert.Equal(t, storedPath, req.StoragePath)
			return &model.Job{ID: req.ID, OwnerID: req.OwnerID, Status: model.JobStatusQueued}, nil
		})

	job, err := h.svc.Enqueue(context.Background(), EnqueueRequest{
		OwnerID:          "user-1",
		OriginalFilename: "invoice.pdf",
		FileType:         "application/pdf; charset=binary",
		Data:             payload,
	})
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusQueued, job.Status)
}

func TestProcessingService_Enqueue_Validation(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := newProcessingHarness(t, ctrl, func(o *ProcessingServiceOptions) {
		o.MaxFileSize = 16
	})

	valid := EnqueueRequest{
		OwnerID:          "user-1",
		OriginalFilename: "scan.jpg",
		FileType:         "image/jpeg",
		Data:             []byte("img"),
	}

	tests := []struct {
		name    string
		mutate  func(*EnqueueRequest)
		wantMsg string
	}{
		{"missing owner", func(r *EnqueueRequest) { r.OwnerID = "" }, "is required"},
		{"missing filename", func(r *EnqueueRequest) { r.OriginalFilename = "" }, "is required"},
		{"empty payload", func(r *EnqueueRequest) { r.Data = nil }, "document payload is empty"},
		{"oversized payload", func(r *EnqueueRequest) { r.Data = bytes.Repeat([]byte("a"), 17) }, "byte size limit"},
		{"unsupported type", func(r *EnqueueRequest) { r.FileType = "text/plain" }, "unsupported file type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			tt.mutate(&req)

			_, err := h.svc.Enqueue(context.Background(), req)
			require.Error(t, err)
			assert.True(t, apperrors.IsValidation(err), "expected validation error, got %v", err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestProcessingService_Enqueue_DuplicateSubmission(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	cache := core.NewMockCacheRepository(ctrl)
	h := newProcessingHarness(t, ctrl, func(o *ProcessingServiceOptions) {
		o.Dedupe = core.NewDedupeCache(cache, core.DedupeCacheConfig{TTL: time.Minute})
	})

	payload := []byte("%PDF-1.4 duplicate")
	sum := sha256.Sum256(payload)
	key := "ocr:dedupe:user-1:" + hex.EncodeToString(sum[:])
	existing := &model.Job{ID: "job-old", OwnerID: "user-1", Status: model.JobStatusQueued}

	cache.EXPECT().SetIfNotExists(gomock.Any(), key, gomock.Any(), time.Minute).Return(false, nil)
	cache.EXPECT().Get(gomock.Any(), key).Return([]byte("job-old"), nil)
	h.repo.EXPECT().GetForOwner(gomock.Any(), "user-1", "job-old").Return(existing, nil)

	job, err := h.svc.Enqueue(context.Background(), EnqueueRequest{
		OwnerID:          "user-1",
		OriginalFilename: "invoice.pdf",
		FileType:         "application/pdf",
		Data:             payload,
	})
	require.NoError(t, err)
	// The duplicate never reaches storage: no Put and no Create expectations.
	assert.Same(t, existing, job)
}

func TestProcessingService_Enqueue_StaleReservationProceeds(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	cache := core.NewMockCacheRepository(ctrl)
	h := newProcessingHarness(t, ctrl, func(o *ProcessingServiceOptions) {
		o.Dedupe = core.NewDedupeCache(cache, core.DedupeCacheConfig{TTL: time.Minute})
	})

	payload := []byte("%PDF-1.4 resubmitted")
	sum := sha256.Sum256(payload)
	key := "ocr:dedupe:user-1:" + hex.EncodeToString(sum[:])

	// The reservation points at a job that has since been deleted.
	cache.EXPECT().SetIfNotExists(gomock.Any(), key, gomock.Any(), time.Minute).Return(false, nil)
	cache.EXPECT().Get(gomock.Any(), key).Return([]byte("job-gone"), nil)
	h.repo.EXPECT().GetForOwner(gomock.Any(), "user-1", "job-gone").Return(nil, data.ErrJobNotFound)
	h.blobs.EXPECT().Put(gomock.Any(), gomock.Any()).Return(nil)
	h.repo.EXPECT().
		Create(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req *model.CreateJobRequest) (*model.Job, error) {
			return &model.Job{ID: req.ID, Status: model.JobStatusQueued}, nil
		})

	job, err := h.svc.Enqueue(context.Background(), EnqueueRequest{
		OwnerID:          "user-1",
		OriginalFilename: "invoice.pdf",
		FileType:         "application/pdf",
		Data:             payload,
	})
	require.NoError(t, err)
	assert.NotEqual(t, "job-gone", job.ID)
}

func TestProcessingService_Enqueue_GuardOutageDoesNotBlock(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	cache := core.NewMockCacheRepository(ctrl)
	h := newProcessingHarness(t, ctrl, func(o *ProcessingServiceOptions) {
		o.Dedupe = core.NewDedupeCache(cache, core.DedupeCacheConfig{TTL: time.Minute})
	})

	cache.EXPECT().
		SetIfNotExists(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(false, errors.New("connection refused"))
	h.blobs.EXPECT().Put(gomock.Any(), gomock.Any()).Return(nil)
	h.repo.EXPECT().
		Create(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req *model.CreateJobRequest) (*model.Job, error) {
			return &model.Job{ID: req.ID, Status: model.JobStatusQueued}, nil
		})

	_, err := h.svc.Enqueue(context.Background(), EnqueueRequest{
		OwnerID:          "user-1",
		OriginalFilename: "invoice.pdf",
		FileType:         "application/pdf",
		Data:             []byte("%PDF-1.4 content"),
	})
	require.NoError(t, err)
}

func TestProcessingService_Enqueue_StoreFailureReleasesReservation(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	cache := core.NewMockCacheRepository(ctrl)
	h := newProcessingHarness(t, ctrl, func(o *ProcessingServiceOptions) {
		o.Dedupe = core.NewDedupeCache(cache, core.DedupeCacheConfig{TTL: time.Minute})
	})

	payload := []byte("%PDF-1.4 unstorable")
	sum := sha256.Sum256(payload)
	key := "ocr:dedupe:user-1:" + hex.EncodeToString(sum[:])

	cache.EXPECT().SetIfNotExists(gomock.Any(), key, gomock.Any(), time.Minute).Return(true, nil)
	h.blobs.EXPECT().Put(gomock.Any(), gomock.Any()).Return(errors.New("bucket unavailable"))
	cache.EXPECT().Delete(gomock.Any(), key).Return(true, nil)

	_, err := h.svc.Enqueue(context.Background(), EnqueueRequest{
		OwnerID:          "user-1",
		OriginalFilename: "invoice.pdf",
		FileType:         "application/pdf",
		Data:             payload,
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsStorage(err), "expected storage error, got %v", err)
}

func TestProcessingService_Enqueue_CreateFailureRemovesUpload(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := newProcessingHarness(t, ctrl)

	var storedPath string
	h.blobs.EXPECT().
		Put(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, params core.PutBlobParams) error {
			storedPath = params.Path
			return nil
		})
	h.repo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil, errors.New("connection reset"))
	h.blobs.EXPECT().
		Delete(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, path string) error {
			assert.Equal(t, storedPath, path)
			return nil
		})

	_, err := h.svc.Enqueue(context.Background(), EnqueueRequest{
		OwnerID:          "user-1",
		OriginalFilename: "invoice.pdf",
		FileType:         "application/pdf",
		Data:             []byte("%PDF-1.4 content"),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create job")
}

func TestProcessingService_GetStatus(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := newProcessingHarness(t, ctrl)

	t.Run("snapshot mirrors the job record", func(t *testing.T) {
		completedAt := time.Now()
		errMsg := "provider quota exhausted"
		h.repo.EXPECT().GetForOwner(gomock.Any(), "user-1", "job-1").Return(&model.Job{
			ID:                    "job-1",
			Status:                model.JobStatusFailed,
			Progress:              40,
			CurrentPage:           2,
			TotalPages:            5,
			ProcessingCompletedAt: &completedAt,
			Error:                 &errMsg,
		}, nil)

		status, err := h.svc.GetStatus(context.Background(), "user-1", "job-1")
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusFailed, status.Status)
		assert.Equal(t, 40, status.Progress)
		assert.Equal(t, 2, status.CurrentPage)
		assert.Equal(t, 5, status.TotalPages)
		assert.Equal(t, &completedAt, status.CompletedAt)
		require.NotNil(t, status.Error)
		assert.Equal(t, errMsg, *status.Error)
	})

	t.Run("unknown job", func(t *testing.T) {
		h.repo.EXPECT().GetForOwner(gomock.Any(), "user-1", "missing").Return(nil, data.ErrJobNotFound)

		_, err := h.svc.GetStatus(context.Background(), "user-1", "missing")
		require.Error(t, err)
		assert.True(t, apperrors.IsNotFound(err))
		assert.Contains(t, err.Error(), "job missing not found")
	})
}

func TestProcessingService_ListJobs(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := newProcessingHarness(t, ctrl)

	t.Run("nil options", func(t *testing.T) {
		_, err := h.svc.ListJobs(context.Background(), nil)
		require.Error(t, err)
		assert.True(t, apperrors.IsValidation(err))
	})

	t.Run("missing owner", func(t *testing.T) {
		_, err := h.svc.ListJobs(context.Background(), &model.JobListOptions{})
		require.Error(t, err)
		assert.True(t, apperrors.IsValidation(err))
	})

	t.Run("invalid status filter", func(t *testing.T) {
		bad := model.JobStatus("archived")
		_, err := h.svc.ListJobs(context.Background(), &model.JobListOptions{OwnerID: "user-1", Status: &bad})
		require.Error(t, err)
		assert.True(t, apperrors.IsValidation(err))
		assert.Contains(t, err.Error(), "invalid status filter")
	})

	t.Run("passes options through", func(t *testing.T) {
		queued := model.JobStatusQueued
		opts := &model.JobListOptions{OwnerID: "user-1", Status: &queued, Limit: 10}
		want := &model.JobPage{Jobs: []model.Job{{ID: "job-1"}, {ID: "job-2"}}, Total: 2}
		h.repo.EXPECT().List(gomock.Any(), opts).Return(want, nil)

		page, err := h.svc.ListJobs(context.Background(), opts)
		require.NoError(t, err)
		assert.Equal(t, want, page)
	})
}

func TestProcessingService_GetResults(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := newProcessingHarness(t, ctrl, func(o *ProcessingServiceOptions) {
		o.PresignTTL = 15 * time.Minute
	})

	pageOne := storage.PagePath("user-1", "job-1", 1)
	pageTwo := storage.PagePath("user-1", "job-1", 2)

	h.repo.EXPECT().GetForOwner(gomock.Any(), "user-1", "job-1").Return(&model.Job{ID: "job-1"}, nil)
	h.results.EXPECT().ListByJob(gomock.Any(), "user-1", "job-1").Return([]model.PageResult{
		{JobID: "job-1", PageNumber: 1, Text: "first", StoragePath: pageOne},
		{JobID: "job-1", PageNumber: 2, Text: "second", StoragePath: pageTwo},
	}, nil)
	h.blobs.EXPECT().PresignGet(gomock.Any(), pageOne, 15*time.Minute).Return("https://blobs/page-1", nil)
	h.blobs.EXPECT().PresignGet(gomock.Any(), pageTwo, 15*time.Minute).Return("", errors.New("presign failed"))

	views, err := h.svc.GetResults(context.Background(), "user-1", "job-1")
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, "first", views[0].Text)
	assert.Equal(t, "https://blobs/page-1", views[0].ImageURL)
	// Presigning is best effort; a failed link never fails the read.
	assert.Equal(t, "second", views[1].Text)
	assert.Empty(t, views[1].ImageURL)
}

func TestProcessingService_GetResults_NoPresignWithoutTTL(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := newProcessingHarness(t, ctrl)

	h.repo.EXPECT().GetForOwner(gomock.Any(), "user-1", "job-1").Return(&model.Job{ID: "job-1"}, nil)
	h.results.EXPECT().ListByJob(gomock.Any(), "user-1", "job-1").Return([]model.PageResult{
		{JobID: "job-1", PageNumber: 1, StoragePath: storage.PagePath("user-1", "job-1", 1)},
	}, nil)

	views, err := h.svc.GetResults(context.Background(), "user-1", "job-1")
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Empty(t, views[0].ImageURL)
}

func TestProcessingService_GetResults_OwnerScoped(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := newProcessingHarness(t, ctrl)

	h.repo.EXPECT().GetForOwner(gomock.Any(), "user-2", "job-1").Return(nil, data.ErrJobNotFound)

	_, err := h.svc.GetResults(context.Background(), "user-2", "job-1")
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestProcessingService_Cancel(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := newProcessingHarness(t, ctrl)

	t.Run("cancels an active job", func(t *testing.T) {
		h.repo.EXPECT().
			Cancel(gomock.Any(), "user-1", "job-1").
			Return(&model.Job{ID: "job-1", Status: model.JobStatusCancelled}, nil)

		job, err := h.svc.Cancel(context.Background(), "user-1", "job-1")
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusCancelled, job.Status)
	})

	t.Run("terminal job cannot be cancelled", func(t *testing.T) {
		h.repo.EXPECT().Cancel(gomock.Any(), "user-1", "job-2").Return(nil, data.ErrJobNotCancellable)

		_, err := h.svc.Cancel(context.Background(), "user-1", "job-2")
		require.Error(t, err)
		assert.True(t, apperrors.IsInvalidState(err))
		assert.ErrorIs(t, err, data.ErrJobNotCancellable)
	})
}

func TestProcessingService_Retry(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := newProcessingHarness(t, ctrl)

	t.Run("requeues a failed job", func(t *testing.T) {
		h.repo.EXPECT().
			Requeue(gomock.Any(), "user-1", "job-1").
			Return(&model.Job{ID: "job-1", Status: model.JobStatusQueued}, nil)

		job, err := h.svc.Retry(context.Background(), "user-1", "job-1")
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusQueued, job.Status)
	})

	t.Run("only failed or cancelled jobs are retryable", func(t *testing.T) {
		h.repo.EXPECT().Requeue(gomock.Any(), "user-1", "job-2").Return(nil, data.ErrJobNotRetryable)

		_, err := h.svc.Retry(context.Background(), "user-1", "job-2")
		require.Error(t, err)
		assert.True(t, apperrors.IsInvalidState(err))
		assert.ErrorIs(t, err, data.ErrJobNotRetryable)
	})
}

func TestProcessingService_Delete(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := newProcessingHarness(t, ctrl)

	t.Run("removes the record and its artifacts", func(t *testing.T) {
		h.repo.EXPECT().Delete(gomock.Any(), "user-1", "job-1").Return(nil)
		h.blobs.EXPECT().DeletePrefix(gomock.Any(), "user-1/job-1/").Return(nil)

		require.NoError(t, h.svc.Delete(context.Background(), "user-1", "job-1"))
	})

	t.Run("artifact cleanup is best effort", func(t *testing.T) {
		h.repo.EXPECT().Delete(gomock.Any(), "user-1", "job-2").Return(nil)
		h.blobs.EXPECT().DeletePrefix(gomock.Any(), "user-1/job-2/").Return(errors.New("bucket unavailable"))

		require.NoError(t, h.svc.Delete(context.Background(), "user-1", "job-2"))
	})

	t.Run("active job cannot be deleted", func(t *testing.T) {
		h.repo.EXPECT().Delete(gomock.Any(), "user-1", "job-3").Return(data.ErrJobNotDeletable)

		err := h.svc.Delete(context.Background(), "user-1", "job-3")
		require.Error(t, err)
		assert.True(t, apperrors.IsInvalidState(err))
	})
}

func TestProcessingService_Stats(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := newProcessingHarness(t, ctrl)
	h.repo.EXPECT().
		Stats(gomock.Any()).
		Return(&model.JobStats{Queued: 4, Processing: 2, Completed: 10, Failed: 1, Cancelled: 3}, nil).
		Times(2)

	stats, err := h.svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Queued)
	assert.Equal(t, 2, stats.Processing)
	assert.Equal(t, 10, stats.Completed)
	assert.False(t, stats.Paused)

	h.svc.Pause(context.Background())

	stats, err = h.svc.Stats(context.Background())
	require.NoError(t, err)
	assert.True(t, stats.Paused)
}

func TestMapJobError(t *testing.T) {
	t.Run("not found", func(t *testing.T) {
		err := mapJobError(data.ErrJobNotFound, "job-1")
		assert.True(t, apperrors.IsNotFound(err))
		assert.Contains(t, err.Error(), "job job-1 not found")
	})

	t.Run("state conflicts", func(t *testing.T) {
		for _, sentinel := range []error{data.ErrJobNotCancellable, data.ErrJobNotRetryable, data.ErrJobNotDeletable} {
			err := mapJobError(sentinel, "job-1")
			assert.True(t, apperrors.IsInvalidState(err), "expected invalid state for %v", sentinel)
			assert.ErrorIs(t, err, sentinel)
		}
	})

	t.Run("unknown errors stay wrapped", func(t *testing.T) {
		cause := errors.New("connection reset")
		err := mapJobError(cause, "job-1")
		assert.False(t, apperrors.IsNotFound(err))
		assert.ErrorIs(t, err, cause)
		assert.Contains(t, err.Error(), "job job-1")
	})
}
