package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/NayerAli/v2-ocr-sub002/internal/core"
	"github.com/NayerAli/v2-ocr-sub002/internal/data/pgxutil"
)

// Advisory lock namespace for reaper operations.
// Using two-arg pg_try_advisory_xact_lock(major, minor) for proper namespacing.
// Major key 1000 is reserved for ocrd reaper operations.
const (
	advisoryLockReaperMajor        = 1000
	advisoryLockReaperFailQueued   = 1 // minor key for FailStaleQueuedJobs
	advisoryLockReaperDelete       = 2 // minor key for DeleteOldJobs
	advisoryLockReaperRequeueLease = 3 // minor key for RequeueExpiredLeases
)

// RequeueExpiredLeases returns processing jobs whose lease has expired to the
// queue, failing those that have exhausted max_retries. Processes up to
// batchSize jobs per call to prevent long locks and I/O spikes.
// Returns the number of jobs touched.
func (r *JobRepo) RequeueExpiredLeases(ctx context.Context, batchSize int) (int64, error) {
	if batchSize <= 0 {
		return 0, errors.New("batch size must be greater than zero")
	}

	var rowsAffected int64
	err := pgxutil.WithSQLTx(ctx, r.DB, pgxutil.SQLTxConfig{
		Fn: func(tx *sql.Tx) error {
			var locked bool
			if err := tx.QueryRowContext(ctx, "SELECT pg_try_advisory_xact_lock($1, $2)", advisoryLockReaperMajor, advisoryLockReaperRequeueLease).Scan(&locked); err != nil {
				return fmt.Errorf("acquire advisory lock: %w", err)
			}
			if !locked {
				rowsAffected = 0
				return nil
			}

			currentTime := r.timeProvider.Now()

			res, err := tx.ExecContext(ctx, `
				UPDATE ocr_jobs
				SET retry_count = retry_count + 1,
					status = CASE WHEN retry_count + 1 >= max_retries THEN 'failed' ELSE 'queued' END,
					error = CASE WHEN retry_count + 1 >= max_retries THEN 'processing timed out' ELSE NULL END,
					lease_expires_at = NULL,
					updated_at = $1
				WHERE id IN (
					SELECT id FROM ocr_jobs
					WHERE status = 'processing'
					  AND lease_expires_at IS NOT NULL
					  AND lease_expires_at < $1
					ORDER BY lease_expires_at
					LIMIT $2
				)
			`, currentTime.UTC(), batchSize)
			if err != nil {
				return fmt.Errorf("requeue expired leases: %w", err)
			}

			ra, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("rows affected: %w", err)
			}
			rowsAffected = ra
			return nil
		},
	})
	if err != nil {
		return 0, err
	}
	return rowsAffected, nil
}

// FailStaleQueuedJobs marks queued jobs older than maxAge as failed.
// Processes up to batchSize jobs per call to prevent long locks and I/O spikes.
// Uses advisory locks to prevent concurrent reaper instances from conflicting.
// Returns the number of jobs marked as failed.
func (r *JobRepo) FailStaleQueuedJobs(ctx context.Context, maxAge time.Duration, batchSize int) (int64, error) {
	var rowsAffected int64
	err := pgxutil.WithSQLTx(ctx, r.DB, pgxutil.SQLTxConfig{
		Fn: func(tx *sql.Tx) error {
			var locked bool
			if err := tx.QueryRowContext(ctx, "SELECT pg_try_advisory_xact_lock($1, $2)", advisoryLockReaperMajor, advisoryLockReaperFailQueued).Scan(&locked); err != nil {
				return fmt.Errorf("acquire advisory lock: %w", err)
			}
			if !locked {
				rowsAffected = 0
				return nil
			}

			currentTime := r.timeProvider.Now()
			cutoffTime := currentTime.Add(-maxAge)

			res, err := tx.ExecContext(ctx, `
				UPDATE ocr_jobs
				SET status = 'failed',
					error = 'job timed out in queued status',
					updated_at = $1
				WHERE id IN (
					SELECT id FROM ocr_jobs
					WHERE status = 'queued'
					  AND created_at < $2
					ORDER BY created_at
					LIMIT $3
				)
			`, currentTime.UTC(), cutoffTime.UTC(), batchSize)
			if err != nil {
				return fmt.Errorf("fail stale queued jobs: %w", err)
			}

			ra, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("rows affected: %w", err)
			}
			rowsAffected = ra
			return nil
		},
	})
	if err != nil {
		return 0, err
	}
	return rowsAffected, nil
}

// DeleteOldJobs deletes terminal jobs with the given status older than maxAge.
// Page results cascade with the jobs. Processes up to batchSize jobs per call
// to prevent long locks and I/O spikes. Returns references to the deleted jobs
// so the caller can remove blob artifacts.
func (r *JobRepo) DeleteOldJobs(ctx context.Context, params core.DeleteOldJobsParams) ([]core.DeletedJobRef, error) {
	if !params.Status.Valid() {
		return nil, fmt.Errorf("invalid job status: %s", params.Status)
	}
	if !params.Status.Terminal() {
		return nil, fmt.Errorf("job status %s is not terminal", params.Status)
	}

	var deleted []core.DeletedJobRef
	err := pgxutil.WithSQLTx(ctx, r.DB, pgxutil.SQLTxConfig{
		Fn: func(tx *sql.Tx) error {
			var locked bool
			if err := tx.QueryRowContext(ctx, "SELECT pg_try_advisory_xact_lock($1, $2)", advisoryLockReaperMajor, advisoryLockReaperDelete).Scan(&locked); err != nil {
				return fmt.Errorf("acquire advisory lock: %w", err)
			}
			if !locked {
				deleted = nil
				return nil
			}

			currentTime := r.timeProvider.Now()
			cutoffTime := currentTime.Add(-params.MaxAge)

			rows, err := tx.QueryContext(ctx, `
				DELETE FROM ocr_jobs
				WHERE id IN (
					SELECT id FROM ocr_jobs
					WHERE status = $1
					  AND (processing_completed_at < $2 OR (processing_completed_at IS NULL AND updated_at < $2))
					ORDER BY COALESCE(processing_completed_at, updated_at)
					LIMIT $3
				)
				RETURNING id, owner_id
			`, params.Status, cutoffTime.UTC(), params.BatchSize)
			if err != nil {
				return fmt.Errorf("delete old jobs: %w", err)
			}
			defer rows.Close()

			for rows.Next() {
				var ref core.DeletedJobRef
				if scanErr := rows.Scan(&ref.ID, &ref.OwnerID); scanErr != nil {
					return fmt.Errorf("scan deleted job: %w", scanErr)
				}
				deleted = append(deleted, ref)
			}
			return rows.Err()
		},
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}
