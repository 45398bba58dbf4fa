package data

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/NayerAli/v2-ocr-sub002/internal/core"
	"github.com/NayerAli/v2-ocr-sub002/internal/domain/model"
	"github.com/NayerAli/v2-ocr-sub002/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setJobCompletedAt backdates a terminal job so age-based cleanup picks it up.
func setJobCompletedAt(t *testing.T, db *sql.DB, jobID string, completedAt time.Time) {
	t.Helper()
	_, err := db.ExecContext(context.Background(), `
		UPDATE ocr_jobs
		SET processing_completed_at = $1, updated_at = $1
		WHERE id = $2
	`, completedAt, jobID)
	require.NoError(t, err)
}

func TestJobRepo_RequeueExpiredLeases(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	t.Run("requeues expired leases", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			timeProvider := NewFixedTimeProvider(testutil.TestTime())
			repo := NewJobRepo(db, RepoConfig{TimeProvider: timeProvider})
			ctx := context.Background()

			first, err := repo.Create(ctx, newCreateJobRequest("user-1"))
			require.NoError(t, err)
			second, err := repo.Create(ctx, newCreateJobRequest("user-1"))
			require.NoError(t, err)

			_, err = repo.ClaimNext(ctx, 30)
			require.NoError(t, err)
			_, err = repo.ClaimNext(ctx, 30)
			require.NoError(t, err)

			timeProvider.AddTime(60 * time.Second)

			count, err := repo.RequeueExpiredLeases(ctx, 1000)
			require.NoError(t, err)
			assert.Equal(t, int64(2), count)

			for _, id := range []string{first.ID, second.ID} {
				job, getErr := repo.GetByID(ctx, id)
				require.NoError(t, getErr)
				assert.Equal(t, model.JobStatusQueued, job.Status)
				assert.Equal(t, 1, job.RetryCount)
				assert.Nil(t, job.LeaseExpiresAt)
				assert.Nil(t, job.Error)
			}
		})
	})

	t.Run("fails jobs that exhausted retries", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			timeProvider := NewFixedTimeProvider(testutil.TestTime())
			repo := NewJobRepo(db, RepoConfig{TimeProvider: timeProvider})
			ctx := context.Background()

			req := newCreateJobRequest("user-1")
			req.MaxRetries = 1
			job, err := repo.Create(ctx, req)
			require.NoError(t, err)

			_, err = repo.ClaimNext(ctx, 30)
			require.NoError(t, err)

			timeProvider.AddTime(60 * time.Second)

			count, err := repo.RequeueExpiredLeases(ctx, 1000)
			require.NoError(t, err)
			assert.Equal(t, int64(1), count)

			after, err := repo.GetByID(ctx, job.ID)
			require.NoError(t, err)
			assert.Equal(t, model.JobStatusFailed, after.Status)
			require.NotNil(t, after.Error)
			assert.Contains(t, *after.Error, "processing timed out")
		})
	})

	t.Run("respects batch size", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			timeProvider := NewFixedTimeProvider(testutil.TestTime())
			repo := NewJobRepo(db, RepoConfig{TimeProvider: timeProvider})
			ctx := context.Background()

			for range 3 {
				_, err := repo.Create(ctx, newCreateJobRequest("user-1"))
				require.NoError(t, err)
			}
			for range 3 {
				_, err := repo.ClaimNext(ctx, 30)
				require.NoError(t, err)
			}

			timeProvider.AddTime(60 * time.Second)

			count, err := repo.RequeueExpiredLeases(ctx, 2)
			require.NoError(t, err)
			assert.Equal(t, int64(2), count)

			count, err = repo.RequeueExpiredLeases(ctx, 2)
			require.NoError(t, err)
			assert.Equal(t, int64(1), count)
		})
	})

	t.Run("does not touch active leases", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			timeProvider := NewFixedTimeProvider(testutil.TestTime())
			repo := NewJobRepo(db, RepoConfig{TimeProvider: timeProvider})
			ctx := context.Background()

			_, err := repo.Create(ctx, newCreateJobRequest("user-1"))
			require.NoError(t, err)
			_, err = repo.ClaimNext(ctx, 30)
			require.NoError(t, err)

			count, err := repo.RequeueExpiredLeases(ctx, 1000)
			require.NoError(t, err)
			assert.Equal(t, int64(0), count)
		})
	})

	t.Run("rejects non-positive batch size", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewJobRepo(db, RepoConfig{})

			_, err := repo.RequeueExpiredLeases(context.Background(), 0)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "batch size must be greater than zero")
		})
	})
}

func TestJobRepo_FailStaleQueuedJobs(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	t.Run("fails stale queued jobs", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewJobRepo(db, RepoConfig{})
			ctx := context.Background()

			oldJob, err := repo.Create(ctx, newCreateJobRequest("user-1"))
			require.NoError(t, err)
			setJobCreatedAt(t, db, oldJob.ID, time.Now().Add(-2*time.Hour))

			recentJob, err := repo.Create(ctx, newCreateJobRequest("user-1"))
			require.NoError(t, err)

			count, err := repo.FailStaleQueuedJobs(ctx, 1*time.Hour, 1000)
			require.NoError(t, err)
			assert.Equal(t, int64(1), count)

			oldAfter, err := repo.GetByID(ctx, oldJob.ID)
			require.NoError(t, err)
			assert.Equal(t, model.JobStatusFailed, oldAfter.Status)
			require.NotNil(t, oldAfter.Error)
			assert.Contains(t, *oldAfter.Error, "timed out in queued status")

			recentAfter, err := repo.GetByID(ctx, recentJob.ID)
			require.NoError(t, err)
			assert.Equal(t, model.JobStatusQueued, recentAfter.Status)
		})
	})

	t.Run("ignores processing jobs", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewJobRepo(db, RepoConfig{})
			ctx := context.Background()

			job, err := repo.Create(ctx, newCreateJobRequest("user-1"))
			require.NoError(t, err)
			_, err = repo.ClaimNext(ctx, 30)
			require.NoError(t, err)
			setJobCreatedAt(t, db, job.ID, time.Now().Add(-2*time.Hour))

			count, err := repo.FailStaleQueuedJobs(ctx, 1*time.Hour, 1000)
			require.NoError(t, err)
			assert.Equal(t, int64(0), count)

			after, err := repo.GetByID(ctx, job.ID)
			require.NoError(t, err)
			assert.Equal(t, model.JobStatusProcessing, after.Status)
		})
	})

	t.Run("no stale jobs", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewJobRepo(db, RepoConfig{})
			ctx := context.Background()

			_, err := repo.Create(ctx, newCreateJobRequest("user-1"))
			require.NoError(t, err)

			count, err := repo.FailStaleQueuedJobs(ctx, 24*time.Hour, 1000)
			require.NoError(t, err)
			assert.Equal(t, int64(0), count)
		})
	})
}

func TestJobRepo_DeleteOldJobs(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	completeJob := func(t *testing.T, repo *JobRepo, jobID string) {
		t.Helper()
		ctx := context.Background()
		_, err := repo.ClaimNext(ctx, 30)
		require.NoError(t, err)
		ok, err := repo.Complete(ctx, core.CompleteJobParams{JobID: jobID, TotalPages: 1})
		require.NoError(t, err)
		require.True(t, ok)
	}

	t.Run("deletes old completed jobs and returns refs", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewJobRepo(db, RepoConfig{})
			ctx := context.Background()

			job, err := repo.Create(ctx, newCreateJobRequest("user-1"))
			require.NoError(t, err)
			completeJob(t, repo, job.ID)
			setJobCompletedAt(t, db, job.ID, time.Now().Add(-8*24*time.Hour))

			refs, err := repo.DeleteOldJobs(ctx, core.DeleteOldJobsParams{
				Status:    model.JobStatusCompleted,
				MaxAge:    7 * 24 * time.Hour,
				BatchSize: 1000,
			})
			require.NoError(t, err)
			require.Len(t, refs, 1)
			assert.Equal(t, job.ID, refs[0].ID)
			assert.Equal(t, "user-1", refs[0].OwnerID)

			_, err = repo.GetByID(ctx, job.ID)
			assert.ErrorIs(t, err, ErrJobNotFound)
		})
	})

	t.Run("does not delete recent jobs", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewJobRepo(db, RepoConfig{})
			ctx := context.Background()

			job, err := repo.Create(ctx, newCreateJobRequest("user-1"))
			require.NoError(t, err)
			completeJob(t, repo, job.ID)

			refs, err := repo.DeleteOldJobs(ctx, core.DeleteOldJobsParams{
				Status:    model.JobStatusCompleted,
				MaxAge:    7 * 24 * time.Hour,
				BatchSize: 1000,
			})
			require.NoError(t, err)
			assert.Empty(t, refs)

			_, err = repo.GetByID(ctx, job.ID)
			require.NoError(t, err)
		})
	})

	t.Run("does not delete jobs with different status", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewJobRepo(db, RepoConfig{})
			ctx := context.Background()

			job, err := repo.Create(ctx, newCreateJobRequest("user-1"))
			require.NoError(t, err)
			completeJob(t, repo, job.ID)
			setJobCompletedAt(t, db, job.ID, time.Now().Add(-8*24*time.Hour))

			refs, err := repo.DeleteOldJobs(ctx, core.DeleteOldJobsParams{
				Status:    model.JobStatusFailed,
				MaxAge:    7 * 24 * time.Hour,
				BatchSize: 1000,
			})
			require.NoError(t, err)
			assert.Empty(t, refs)

			_, err = repo.GetByID(ctx, job.ID)
			require.NoError(t, err)
		})
	})

	t.Run("rejects invalid status", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewJobRepo(db, RepoConfig{})

			_, err := repo.DeleteOldJobs(context.Background(), core.DeleteOldJobsParams{
				Status:    model.JobStatus("archived"),
				MaxAge:    7 * 24 * time.Hour,
				BatchSize: 1000,
			})
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid job status")
		})
	})

	t.Run("rejects non-terminal status", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewJobRepo(db, RepoConfig{})

			_, err := repo.DeleteOldJobs(context.Background(), core.DeleteOldJobsParams{
				Status:    model.JobStatusProcessing,
				MaxAge:    7 * 24 * time.Hour,
				BatchSize: 1000,
			})
			require.Error(t, err)
			assert.Contains(t, err.Error(), "is not terminal")
		})
	})
}
