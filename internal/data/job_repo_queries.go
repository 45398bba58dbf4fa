package data

import (
	"context"
	"errors"
	"fmt"

	"github.com/NayerAli/v2-ocr-sub002/internal/data/pgxutil"
	"github.com/NayerAli/v2-ocr-sub002/internal/domain/model"
	"github.com/jackc/pgx/v5"
)

// jobFilterQueryBuilder accumulates WHERE clauses with positional args.
type jobFilterQueryBuilder struct {
	query  string
	args   []any
	argIdx int
}

func (b *jobFilterQueryBuilder) addFilter(condition string, value any) {
	if value != nil {
		b.query += fmt.Sprintf(" AND %s = $%d", condition, b.argIdx)
		b.args = append(b.args, value)
		b.argIdx++
	}
}

// buildJobListQuery constructs the SQL query and args for an owner's job list.
func buildJobListQuery(opts *model.JobListOptions) (string, []any) {
	builder := &jobFilterQueryBuilder{
		query: `
		SELECT ` + jobColumns + `
		FROM ocr_jobs
		WHERE owner_id = $1`,
		args:   []any{opts.OwnerID},
		argIdx: 2,
	}

	addJobListFilters(builder, opts)
	addJobListSorting(builder, opts)
	return builder.query, builder.args
}

// buildJobCountQuery constructs the matching COUNT query for the same filters.
func buildJobCountQuery(opts *model.JobListOptions) (string, []any) {
	builder := &jobFilterQueryBuilder{
		query: `
		SELECT COUNT(*)
		FROM ocr_jobs
		WHERE owner_id = $1`,
		args:   []any{opts.OwnerID},
		argIdx: 2,
	}

	addJobListFilters(builder, opts)
	return builder.query, builder.args
}

// addJobListFilters adds filter conditions to the query builder.
func addJobListFilters(builder *jobFilterQueryBuilder, opts *model.JobListOptions) {
	if opts == nil {
		return
	}

	if opts.Status != nil && *opts.Status != "" {
		builder.addFilter("status", string(*opts.Status))
	}
}

// addJobListSorting adds sorting to the query builder. Jobs sort by creation
// time with id as a tiebreaker so pagination stays stable.
func addJobListSorting(builder *jobFilterQueryBuilder, opts *model.JobListOptions) {
	if opts != nil && opts.SortOrder == "asc" {
		builder.query += " ORDER BY created_at ASC, id ASC"
		return
	}
	builder.query += " ORDER BY created_at DESC, id DESC"
}

// List returns one page of an owner's jobs plus the total count for the same filters.
func (r *JobRepo) List(ctx context.Context, opts *model.JobListOptions) (*model.JobPage, error) {
	if opts == nil {
		return nil, errors.New("list options are required")
	}
	if opts.OwnerID == "" {
		return nil, errors.New("owner id is required")
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 50 // Default limit
	}
	if limit > 1000 {
		limit = 1000 // Max limit
	}
	offset := max(opts.Offset, 0)

	query, args := buildJobListQuery(opts)
	argIdx := len(args) + 1
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, limit, offset)

	countQuery, countArgs := buildJobCountQuery(opts)

	page := &model.JobPage{Jobs: []model.Job{}}
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("query jobs: %w", err)
		}

		// CollectRows drains and closes rows, freeing the conn for the count query.
		vals, err := pgx.CollectRows(rows, pgx.RowToStructByName[model.Job])
		if err != nil {
			return fmt.Errorf("collect jobs: %w", err)
		}
		page.Jobs = vals

		if scanErr := conn.QueryRow(ctx, countQuery, countArgs...).Scan(&page.Total); scanErr != nil {
			return fmt.Errorf("count jobs: %w", scanErr)
		}
		return nil
	}); err != nil {
		return nil, err
	}

	return page, nil
}
