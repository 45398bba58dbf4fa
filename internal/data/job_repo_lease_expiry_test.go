package data_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/NayerAli/v2-ocr-sub002/internal/data"
	"github.com/NayerAli/v2-ocr-sub002/internal/data/testhelpers"
	"github.com/NayerAli/v2-ocr-sub002/internal/domain/model"
	"github.com/NayerAli/v2-ocr-sub002/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Lease expiry tests drive the repo clock directly instead of sleeping, so the
// requeue-on-claim and retry-exhaustion paths are exercised deterministically.

func newFixedClockRepo(db *sql.DB) (*data.JobRepo, *data.FixedTimeProvider) {
	tp := data.NewFixedTimeProvider(testutil.TestTime())
	repo := testhelpers.NewJobRepoWithTimeProvider(db, data.RepoConfig{}, tp)
	return repo, tp
}

func TestJobRepo_LeaseExpiry_RequeueOnClaim(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo, tp := newFixedClockRepo(db)
		ctx := context.Background()

		created, err := repo.Create(ctx, testutil.RetryableJobRequest("user-1", 2))
		require.NoError(t, err)

		claimed, err := repo.ClaimNext(ctx, 60)
		require.NoError(t, err)
		require.Equal(t, created.ID, claimed.ID)

		// Lease still live: nothing to claim.
		tp.AddTime(30 * time.Second)
		_, err = repo.ClaimNext(ctx, 60)
		require.ErrorIs(t, err, model.ErrNoJobsAvailable)

		// Past expiry the claim path requeues the job and hands it out again.
		tp.AddTime(2 * time.Minute)
		reclaimed, err := repo.ClaimNext(ctx, 60)
		require.NoError(t, err)
		assert.Equal(t, created.ID, reclaimed.ID)
		assert.Equal(t, model.JobStatusProcessing, reclaimed.Status)
		assert.Equal(t, 1, reclaimed.RetryCount)
		require.NotNil(t, reclaimed.ProcessingStartedAt)
	})
}

func TestJobRepo_LeaseExpiry_ExhaustsRetries(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo, tp := newFixedClockRepo(db)
		ctx := context.Background()

		created, err := repo.Create(ctx, testutil.RetryableJobRequest("user-1", 1))
		require.NoError(t, err)

		_, err = repo.ClaimNext(ctx, 10)
		require.NoError(t, err)

		// With max_retries=1 the first expiry is terminal.
		tp.AddTime(time.Minute)
		_, err = repo.ClaimNext(ctx, 10)
		require.ErrorIs(t, err, model.ErrNoJobsAvailable)

		job, err := repo.GetByID(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusFailed, job.Status)
		require.NotNil(t, job.Error)
		assert.Equal(t, "processing timed out", *job.Error)
		assert.Nil(t, job.LeaseExpiresAt)
		assert.Equal(t, 1, job.RetryCount)
	})
}

func TestJobRepo_Heartbeat_ExtendsLeaseFromCurrentTime(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo, tp := newFixedClockRepo(db)
		ctx := context.Background()

		created, err := repo.Create(ctx, testutil.PDFJobRequest("user-1"))
		require.NoError(t, err)

		_, err = repo.ClaimNext(ctx, 5)
		require.NoError(t, err)

		tp.AddTime(3 * time.Second)
		renewed, err := repo.Heartbeat(ctx, created.ID, 10)
		require.NoError(t, err)
		require.True(t, renewed)

		job, err := repo.GetByID(ctx, created.ID)
		require.NoError(t, err)
		require.NotNil(t, job.LeaseExpiresAt)
		assert.True(t, job.LeaseExpiresAt.Equal(tp.Now().Add(10*time.Second).UTC()),
			"lease %v, want %v", job.LeaseExpiresAt, tp.Now().Add(10*time.Second).UTC())

		// A later heartbeat extends from the new current time, not the old lease.
		tp.AddTime(4 * time.Second)
		renewed, err = repo.Heartbeat(ctx, created.ID, 20)
		require.NoError(t, err)
		require.True(t, renewed)

		job, err = repo.GetByID(ctx, created.ID)
		require.NoError(t, err)
		require.NotNil(t, job.LeaseExpiresAt)
		assert.True(t, job.LeaseExpiresAt.Equal(tp.Now().Add(20*time.Second).UTC()))
	})
}
