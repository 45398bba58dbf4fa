package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/NayerAli/v2-ocr-sub002/internal/data/pgxutil"
	"github.com/NayerAli/v2-ocr-sub002/internal/domain/model"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PageResultRepo provides persistence for per-page recognition results.
type PageResultRepo struct {
	DB     *sql.DB
	logger *slog.Logger
}

// NewPageResultRepo constructs a PageResultRepo. The logger may be nil.
func NewPageResultRepo(db *sql.DB, logger *slog.Logger) *PageResultRepo {
	return &PageResultRepo{DB: db, logger: logger}
}

var pageResultInsertColumns = []string{
	"job_id",
	"owner_id",
	"page_number",
	"total_pages",
	"text",
	"confidence",
	"language",
	"processing_time_ms",
	"storage_path",
	"provider",
}

// pageResultReducedColumns is the fallback column set used when the full
// insert hits a schema that predates the optional result columns.
var pageResultReducedColumns = []string{
	"job_id",
	"owner_id",
	"page_number",
	"total_pages",
	"text",
	"confidence",
	"provider",
}

func pageResultInsertArgs(res *model.PageResult, reduced bool) []any {
	if reduced {
		return []any{res.JobID, res.OwnerID, res.PageNumber, res.TotalPages, res.Text, res.Confidence, res.Provider}
	}
	return []any{res.JobID, res.OwnerID, res.PageNumber, res.TotalPages, res.Text, res.Confidence, res.Language, res.ProcessingTimeMs, res.StoragePath, res.Provider}
}

// buildPageResultInsertQuery builds a single multi-row INSERT for all results.
func buildPageResultInsertQuery(results []model.PageResult, reduced bool) (string, []any) {
	cols := pageResultInsertColumns
	if reduced {
		cols = pageResultReducedColumns
	}

	var sb strings.Builder
	sb.WriteString("INSERT INTO ocr_page_results (")
	sb.WriteString(strings.Join(cols, ", "))
	sb.WriteString(") VALUES ")

	args := make([]any, 0, len(results)*len(cols))
	for i := range results {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(")
		for j := range cols {
			if j > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "$%d", i*len(cols)+j+1)
		}
		sb.WriteString(")")
		args = append(args, pageResultInsertArgs(&results[i], reduced)...)
	}
	return sb.String(), args
}

func isUndefinedColumn(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UndefinedColumn
}

// InsertBatch writes all page results for one job attempt as a single
// multi-row insert. If the full column set is rejected by an older schema,
// the insert is retried once with the reduced column set.
func (r *PageResultRepo) InsertBatch(ctx context.Context, results []model.PageResult) error {
	if r == nil || r.DB == nil {
		return ErrPageResultsNotConfigured
	}
	if len(results) == 0 {
		return ErrNoPageResults
	}
	for i := range results {
		if err := results[i].Validate(); err != nil {
			return fmt.Errorf("page result %d: %w", i+1, err)
		}
	}

	query, args := buildPageResultInsertQuery(results, false)
	_, err := r.DB.ExecContext(ctx, query, args...)
	if err == nil {
		return nil
	}
	if !isUndefinedColumn(err) {
		return fmt.Errorf("insert page results: %w", err)
	}

	if r.logger != nil {
		r.logger.WarnContext(ctx, "full page result insert rejected, retrying with reduced columns",
			"job_id", results[0].JobID,
			"error", err,
		)
	}

	query, args = buildPageResultInsertQuery(results, true)
	if _, retryErr := r.DB.ExecContext(ctx, query, args...); retryErr != nil {
		return fmt.Errorf("insert page results (reduced columns): %w", retryErr)
	}
	return nil
}

// ExistsForJob reports whether any page results exist for the job.
func (r *PageResultRepo) ExistsForJob(ctx context.Context, jobID string) (bool, error) {
	if r == nil || r.DB == nil {
		return false, ErrPageResultsNotConfigured
	}
	if jobID == "" {
		return false, ErrJobIDRequired
	}

	var exists bool
	if err := r.DB.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM ocr_page_results WHERE job_id = $1)
	`, jobID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check page results exist: %w", err)
	}
	return exists, nil
}

// ListByJob retrieves all page results for a job owned by ownerID, in page order.
func (r *PageResultRepo) ListByJob(ctx context.Context, ownerID, jobID string) ([]model.PageResult, error) {
	if r == nil || r.DB == nil {
		return nil, ErrPageResultsNotConfigured
	}
	if jobID == "" {
		return nil, ErrJobIDRequired
	}
	if strings.TrimSpace(ownerID) == "" {
		return nil, ErrOwnerIDRequired
	}

	const query = `
		SELECT id, job_id, owner_id, page_number, total_pages, text, confidence, language, processing_time_ms, storage_path, provider, created_at
		FROM ocr_page_results
		WHERE job_id = $1 AND owner_id = $2
		ORDER BY page_number ASC`

	var results []model.PageResult
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query, jobID, ownerID)
		if err != nil {
			return err
		}
		defer rows.Close()

		collected, err := pgx.CollectRows(rows, pgx.RowToStructByName[model.PageResult])
		if err != nil {
			return err
		}
		results = collected
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list page results: %w", err)
	}
	return results, nil
}

// CountByJob returns the number of persisted page results for a job.
func (r *PageResultRepo) CountByJob(ctx context.Context, jobID string) (int, error) {
	if r == nil || r.DB == nil {
		return 0, ErrPageResultsNotConfigured
	}
	if jobID == "" {
		return 0, ErrJobIDRequired
	}

	var n int
	if err := r.DB.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM ocr_page_results WHERE job_id = $1
	`, jobID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count page results: %w", err)
	}
	return n, nil
}
