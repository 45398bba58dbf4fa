package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"time"

	"github.com/NayerAli/v2-ocr-sub002/internal/core"
	"github.com/NayerAli/v2-ocr-sub002/internal/data/pgxutil"
	"github.com/NayerAli/v2-ocr-sub002/internal/domain/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
)

const defaultMaxRetries = 3

func resolveMaxRetries(req *model.CreateJobRequest) int {
	if req.MaxRetries > 0 {
		return req.MaxRetries
	}
	return defaultMaxRetries
}

// SQL used by ClaimNext to atomically claim the oldest queued job.
const claimNextUpdateSQL = `
  WITH cte AS (
    SELECT id FROM ocr_jobs
    WHERE status = 'queued'
    ORDER BY created_at ASC
    LIMIT 1
    FOR UPDATE SKIP LOCKED
  )
  UPDATE ocr_jobs j
  SET
    status = 'processing',
    processing_started_at = COALESCE(j.processing_started_at, $1),
    lease_expires_at = $2,
    updated_at = $1
  FROM cte
  WHERE j.id = cte.id AND j.status = 'queued'
  RETURNING j.id, j.owner_id, j.filename, j.original_filename, j.status, j.progress, j.current_page, j.total_pages, j.file_size, j.file_type, j.file_hash, j.storage_path, j.thumbnail_path, j.error, j.retry_count, j.max_retries, j.lease_expires_at, j.created_at, j.updated_at, j.processing_started_at, j.processing_completed_at`

// Create creates a new queued job in the database with the given parameters.
func (r *JobRepo) Create(
	ctx context.Context,
	req *model.CreateJobRequest,
) (*model.Job, error) {
	if req == nil {
		return nil, errors.New("create job request is required")
	}

	req.Normalize()
	if validateErr := req.Validate(); validateErr != nil {
		return nil, validateErr
	}

	var job *model.Job
	if txErr := pgxutil.WithPgxTx(ctx, r.DB, pgxutil.TxConfig{
		Fn: func(tx pgx.Tx) error {
			var insertErr error
			job, insertErr = r.insertJobInTx(ctx, tx, req)
			return insertErr
		},
	}); txErr != nil {
		return nil, txErr
	}

	return job, nil
}

// insertJobInTx creates the row and emits the new-job notification in the
// same transaction, so listeners never see a notify for an uncommitted job.
func (r *JobRepo) insertJobInTx(ctx context.Context, tx pgx.Tx, req *model.CreateJobRequest) (*model.Job, error) {
	if req == nil {
		return nil, errors.New("create job request is required")
	}

	query, args := r.buildInsertQuery(req)

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}
	job, collectErr := collectJobFromRows(rows)
	rows.Close()
	if collectErr != nil {
		return nil, fmt.Errorf("collect job: %w", collectErr)
	}

	if _, execErr := tx.Exec(ctx, `SELECT pg_notify($1::text, $2::text)`, jobAddedChannel, job.ID); execErr != nil {
		return nil, fmt.Errorf("send job notification: %w", execErr)
	}

	return job, nil
}

// buildInsertQuery builds an INSERT statement for a job based on the request.
func (r *JobRepo) buildInsertQuery(req *model.CreateJobRequest) (string, []any) {
	if req == nil {
		return "", nil
	}

	query := `
      INSERT INTO ocr_jobs(id, owner_id, filename, original_filename, status, file_size, file_type, file_hash, storage_path, max_retries)
      VALUES ($1,$2,$3,$4,'queued',$5,$6,$7,$8,$9)
      RETURNING ` + jobColumns

	args := []any{
		req.ID,
		req.OwnerID,
		req.Filename,
		req.OriginalFilename,
		req.FileSize,
		req.FileType,
		req.FileHash,
		req.StoragePath,
		resolveMaxRetries(req),
	}
	return query, args
}

// collectJobFromRows reads exactly one job from the result set.
func collectJobFromRows(rows pgx.Rows) (*model.Job, error) {
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, pgx.ErrNoRows
	}

	job, err := scanJobFromRow(rows)
	if err != nil {
		return nil, err
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, rowsErr
	}

	return job, nil
}

type jobRowScanner interface {
	Scan(dest ...any) error
}

type jobNullables struct {
	thumbnailPath, errMsg                                      sql.NullString
	leaseExpiresAt, processingStartedAt, processingCompletedAt sql.NullTime
}

func (d *jobNullables) scan(scanner jobRowScanner, job *model.Job) error {
	return scanner.Scan(
		&job.ID,
		&job.OwnerID,
		&job.Filename,
		&job.OriginalFilename,
		&job.Status,
		&job.Progress,
		&job.CurrentPage,
		&job.TotalPages,
		&job.FileSize,
		&job.FileType,
		&job.FileHash,
		&job.StoragePath,
		&d.thumbnailPath,
		&d.errMsg,
		&job.RetryCount,
		&job.MaxRetries,
		&d.leaseExpiresAt,
		&job.CreatedAt,
		&job.UpdatedAt,
		&d.processingStartedAt,
		&d.processingCompletedAt,
	)
}

func (d *jobNullables) fill(job *model.Job) {
	job.ThumbnailPath = fromNullString(d.thumbnailPath)
	job.Error = fromNullString(d.errMsg)
	job.LeaseExpiresAt = fromNullTime(d.leaseExpiresAt)
	job.ProcessingStartedAt = fromNullTime(d.processingStartedAt)
	job.ProcessingCompletedAt = fromNullTime(d.processingCompletedAt)
}

func scanJobFromRow(scanner jobRowScanner) (*model.Job, error) {
	job := &model.Job{}
	var data jobNullables
	if err := data.scan(scanner, job); err != nil {
		return nil, err
	}

	data.fill(job)
	return job, nil
}

func fromNullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func fromNullTime(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}

// Advisory lock namespace for requeueExpired so concurrent workers do not race the scan.
const advisoryLockRequeueMajor = int64(1001)

func advisoryLockRequeueMinor() int64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(jobAddedChannel))
	hashValue := h.Sum32()
	maxInt32 := uint32(math.MaxInt32)
	if hashValue > maxInt32 {
		hashValue &= maxInt32
	}
	return int64(hashValue)
}

// requeueExpired returns jobs with expired leases to the queue, failing those
// that have exhausted max_retries. Returns the number of jobs touched.
func (r *JobRepo) requeueExpired(ctx context.Context) (int64, error) {
	var rowsAffected int64
	err := pgxutil.WithSQLTx(ctx, r.DB, pgxutil.SQLTxConfig{
		Fn: func(tx *sql.Tx) error {
			var locked bool
			if err := tx.QueryRowContext(ctx, "SELECT pg_try_advisory_xact_lock($1::integer, $2::integer)", advisoryLockRequeueMajor, advisoryLockRequeueMinor()).Scan(&locked); err != nil {
				return fmt.Errorf("acquire advisory lock: %w", err)
			}
			if !locked {
				rowsAffected = 0
				return nil
			}

			currentTime := r.timeProvider.Now()
			res, err := tx.ExecContext(ctx, `
          UPDATE ocr_jobs
          SET
            retry_count = retry_count + 1,
            status = CASE WHEN retry_count + 1 >= max_retries THEN 'failed' ELSE 'queued' END,
            error = CASE WHEN retry_count + 1 >= max_retries THEN 'processing timed out' ELSE NULL END,
            lease_expires_at = NULL,
            updated_at = $1
          WHERE status = 'processing'
            AND lease_expires_at IS NOT NULL
            AND lease_expires_at < $1
        `, currentTime.UTC())
			if err != nil {
				return fmt.Errorf("requeue expired: %w", err)
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

// ClaimNext claims the oldest queued job for processing.
func (r *JobRepo) ClaimNext(
	ctx context.Context,
	leaseSeconds int,
) (*model.Job, error) {
	if _, err := r.requeueExpired(ctx); err != nil {
		return nil, fmt.Errorf("requeue expired jobs: %w", err)
	}

	var job *model.Job
	err := pgxutil.WithPgxTx(ctx, r.DB, pgxutil.TxConfig{
		Opts: &sql.TxOptions{
			Isolation: sql.LevelReadCommitted,
			ReadOnly:  false,
		},
		Fn: func(tx pgx.Tx) error {
			currentTime := r.timeProvider.Now()
			leaseExpiresAt := currentTime.Add(time.Duration(leaseSeconds) * time.Second)

			rows, qerr := tx.Query(
				ctx,
				claimNextUpdateSQL,
				currentTime.UTC(),
				leaseExpiresAt.UTC(),
			)
			if qerr != nil {
				return fmt.Errorf("claim job: %w", qerr)
			}
			defer rows.Close()

			j, cerr := collectJobFromRows(rows)
			if errors.Is(cerr, pgx.ErrNoRows) {
				return model.ErrNoJobsAvailable
			}
			if cerr != nil {
				return fmt.Errorf("claim job: %w", cerr)
			}
			job = j
			return nil
		},
	})
	if err != nil {
		if errors.Is(err, model.ErrNoJobsAvailable) {
			return nil, model.ErrNoJobsAvailable
		}
		return nil, err
	}
	return job, nil
}

// Heartbeat refreshes the lease on a processing job.
func (r *JobRepo) Heartbeat(ctx context.Context, jobID string, leaseSeconds int) (bool, error) {
	if leaseSeconds <= 0 {
		return false, errors.New("leaseSeconds must be positive")
	}

	currentTime := r.timeProvider.Now().UTC()
	leaseExpiration := currentTime.Add(time.Duration(leaseSeconds) * time.Second)

	query := `
		UPDATE ocr_jobs
		SET lease_expires_at = $2,
		    updated_at = $3
		WHERE id = $1 AND status = 'processing'
	`

	res, err := r.DB.ExecContext(ctx, query, jobID, leaseExpiration, currentTime)
	if err != nil {
		return false, fmt.Errorf("heartbeat job: %w", err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("heartbeat rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return false, nil
	}

	return true, nil
}

// UpdateProgress records per-page progress on a processing job.
// total_pages only ever grows; a lower value leaves the stored count intact.
func (r *JobRepo) UpdateProgress(ctx context.Context, params core.UpdateProgressParams) error {
	currentTime := r.timeProvider.Now().UTC()

	query := `
		UPDATE ocr_jobs
		SET progress = $2,
		    current_page = $3,
		    total_pages = GREATEST(total_pages, $4),
		    updated_at = $5
		WHERE id = $1 AND status = 'processing'
	`

	if _, err := r.DB.ExecContext(ctx, query, params.JobID, params.Progress, params.CurrentPage, params.TotalPages, currentTime); err != nil {
		return fmt.Errorf("update job progress: %w", err)
	}
	return nil
}

// SetThumbnailPath records the blob path of a generated thumbnail.
func (r *JobRepo) SetThumbnailPath(ctx context.Context, jobID, path string) error {
	currentTime := r.timeProvider.Now().UTC()

	if _, err := r.DB.ExecContext(ctx, `
		UPDATE ocr_jobs
		SET thumbnail_path = $2,
		    updated_at = $3
		WHERE id = $1
	`, jobID, path, currentTime); err != nil {
		return fmt.Errorf("set thumbnail path: %w", err)
	}
	return nil
}

// Complete marks a processing job as completed successfully.
func (r *JobRepo) Complete(ctx context.Context, params core.CompleteJobParams) (bool, error) {
	currentTime := r.timeProvider.Now().UTC()

	query := `
		UPDATE ocr_jobs
		SET status = 'completed',
		    progress = 100,
		    total_pages = GREATEST(total_pages, $2),
		    current_page = GREATEST(total_pages, $2),
		    processing_completed_at = $3,
		    updated_at = $3,
		    lease_expires_at = NULL,
		    error = NULL
		WHERE id = $1 AND status = 'processing'
	`

	res, err := r.DB.ExecContext(ctx, query, params.JobID, params.TotalPages, currentTime)
	if err != nil {
		return false, fmt.Errorf("complete job: %w", err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("complete rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

// Fail marks a processing job as failed with the given error message.
// Failed is terminal; the job only runs again through an explicit retry.
func (r *JobRepo) Fail(ctx context.Context, id, errMsg string) (bool, error) {
	currentTime := r.timeProvider.Now().UTC()

	query := `
		UPDATE ocr_jobs
		SET status = 'failed',
		    error = $2,
		    updated_at = $3,
		    lease_expires_at = NULL
		WHERE id = $1 AND status = 'processing'
	`

	res, err := r.DB.ExecContext(ctx, query, id, errMsg, currentTime)
	if err != nil {
		return false, fmt.Errorf("fail job: %w", err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("fail rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

// Cancel moves a queued or processing job owned by ownerID to cancelled.
// Workers observe the transition at their next status check and abandon the
// job without persisting results.
func (r *JobRepo) Cancel(ctx context.Context, ownerID, id string) (*model.Job, error) {
	currentTime := r.timeProvider.Now().UTC()

	row := r.DB.QueryRowContext(ctx, `
		UPDATE ocr_jobs
		SET status = 'cancelled',
		    updated_at = $3,
		    lease_expires_at = NULL
		WHERE id = $1 AND owner_id = $2 AND status IN ('queued', 'processing')
		RETURNING `+jobColumns, id, ownerID, currentTime)

	job, err := scanJobFromRow(row)
	if err == nil {
		return job, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("cancel job: %w", err)
	}

	existing, getErr := r.GetForOwner(ctx, ownerID, id)
	if getErr != nil {
		if errors.Is(getErr, ErrJobNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("re-check job after cancel attempt: %w", getErr)
	}
	if !existing.Status.Cancellable() {
		return nil, ErrJobNotCancellable
	}

	return nil, errors.New("unexpected state: job is cancellable but cancel failed")
}

// Requeue implements the user-initiated retry: a failed or cancelled job owned
// by ownerID goes back to queued with its error and progress cleared. The
// total page count survives so list views keep showing it.
func (r *JobRepo) Requeue(ctx context.Context, ownerID, id string) (*model.Job, error) {
	currentTime := r.timeProvider.Now().UTC()

	var job *model.Job
	err := pgxutil.WithPgxTx(ctx, r.DB, pgxutil.TxConfig{
		Fn: func(tx pgx.Tx) error {
			rows, qerr := tx.Query(ctx, `
				UPDATE ocr_jobs
				SET status = 'queued',
				    error = NULL,
				    progress = 0,
				    current_page = 0,
				    retry_count = 0,
				    lease_expires_at = NULL,
				    processing_started_at = NULL,
				    processing_completed_at = NULL,
				    updated_at = $3
				WHERE id = $1 AND owner_id = $2 AND status IN ('failed', 'cancelled')
				RETURNING `+jobColumns, id, ownerID, currentTime)
			if qerr != nil {
				return fmt.Errorf("requeue job: %w", qerr)
			}
			j, cerr := collectJobFromRows(rows)
			rows.Close()
			if cerr != nil {
				return cerr
			}

			if _, execErr := tx.Exec(ctx, `SELECT pg_notify($1::text, $2::text)`, jobAddedChannel, j.ID); execErr != nil {
				return fmt.Errorf("send job notification: %w", execErr)
			}
			job = j
			return nil
		},
	})
	if err == nil {
		return job, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	existing, getErr := r.GetForOwner(ctx, ownerID, id)
	if getErr != nil {
		if errors.Is(getErr, ErrJobNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("re-check job after requeue attempt: %w", getErr)
	}
	if !existing.Status.Retryable() {
		return nil, ErrJobNotRetryable
	}

	return nil, errors.New("unexpected state: job is retryable but requeue failed")
}

// Status returns the current status of a job. Workers poll this between page
// chunks to observe cancellation.
func (r *JobRepo) Status(ctx context.Context, id string) (model.JobStatus, error) {
	var status string
	err := r.DB.QueryRowContext(ctx, `SELECT status FROM ocr_jobs WHERE id = $1`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrJobNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get job status: %w", err)
	}
	return model.JobStatus(status), nil
}

// Stats returns counts of jobs in each lifecycle state.
func (r *JobRepo) Stats(ctx context.Context) (*model.JobStats, error) {
	var s model.JobStats
	err := r.DB.QueryRowContext(ctx, `
  SELECT
    count(*) FILTER (WHERE status = 'queued')     AS queued,
    count(*) FILTER (WHERE status = 'processing') AS processing,
    count(*) FILTER (WHERE status = 'completed')  AS completed,
    count(*) FILTER (WHERE status = 'failed')     AS failed,
    count(*) FILTER (WHERE status = 'cancelled')  AS cancelled
  FROM ocr_jobs
  `).Scan(
		&s.Queued,
		&s.Processing,
		&s.Completed,
		&s.Failed,
		&s.Cancelled,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get job stats: %w", err)
	}
	return &s, nil
}

// Notify wakes queue workers without enqueueing anything. Resume and the
// admin requeue command use it so claimable jobs are noticed immediately.
func (r *JobRepo) Notify(ctx context.Context) error {
	if _, err := r.DB.ExecContext(ctx, `SELECT pg_notify($1::text, '')`, jobAddedChannel); err != nil {
		return fmt.Errorf("notify %s: %w", jobAddedChannel, err)
	}
	return nil
}

// WaitForNotification blocks until the job-added channel fires or ctx ends.
func (r *JobRepo) WaitForNotification(ctx context.Context) error {
	conn, err := r.DB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("get conn from pool: %w", err)
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			_ = cerr
		}
	}()

	quoted := pgx.Identifier{jobAddedChannel}.Sanitize()

	if _, execErr := conn.ExecContext(ctx, "LISTEN "+quoted); execErr != nil {
		return fmt.Errorf("listen %s: %w", jobAddedChannel, execErr)
	}
	defer func() {
		if _, execErr := conn.ExecContext(context.Background(), "UNLISTEN "+quoted); execErr != nil {
			_ = execErr
		}
	}()

	return conn.Raw(func(dc any) error {
		sc, ok := dc.(*stdlib.Conn)
		if !ok {
			return errors.New("unexpected driver connection type; expected *stdlib.Conn")
		}
		_, notifyErr := sc.Conn().WaitForNotification(ctx)
		return notifyErr
	})
}

// GetByID retrieves a job by its ID without owner scoping. Queue internals
// only; caller-facing reads go through GetForOwner.
func (r *JobRepo) GetByID(ctx context.Context, id string) (*model.Job, error) {
	var job *model.Job
	err := pgxutil.WithPgxConn(ctx, r.DB, func(pgxConn *pgx.Conn) error {
		rows, err := pgxConn.Query(ctx, `
			SELECT `+jobColumns+`
			FROM ocr_jobs
			WHERE id = $1
		`, id)
		if err != nil {
			return err
		}
		defer rows.Close()
		job, err = collectJobFromRows(rows)
		return err
	})

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

// GetForOwner retrieves a job by ID scoped to its owner.
func (r *JobRepo) GetForOwner(ctx context.Context, ownerID, id string) (*model.Job, error) {
	var job *model.Job
	err := pgxutil.WithPgxConn(ctx, r.DB, func(pgxConn *pgx.Conn) error {
		rows, err := pgxConn.Query(ctx, `
			SELECT `+jobColumns+`
			FROM ocr_jobs
			WHERE id = $1 AND owner_id = $2
		`, id, ownerID)
		if err != nil {
			return err
		}
		defer rows.Close()
		job, err = collectJobFromRows(rows)
		return err
	})

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

// Delete deletes a terminal job owned by ownerID. Page results go with it
// through the foreign key cascade.
func (r *JobRepo) Delete(ctx context.Context, ownerID, id string) error {
	res, err := r.DB.ExecContext(ctx, `
		DELETE FROM ocr_jobs
		WHERE id = $1
		  AND owner_id = $2
		  AND status IN ('completed', 'failed', 'cancelled')
	`, id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected > 0 {
		return nil
	}

	job, err := r.GetForOwner(ctx, ownerID, id)
	if err != nil {
		if errors.Is(err, ErrJobNotFound) {
			return ErrJobNotFound
		}
		return fmt.Errorf("failed to re-check job after delete attempt: %w", err)
	}

	if !job.Status.Terminal() {
		return ErrJobNotDeletable
	}

	return errors.New("unexpected state: job is in deletable state but delete failed")
}
