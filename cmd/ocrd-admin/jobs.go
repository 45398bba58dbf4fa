package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/NayerAli/v2-ocr-sub002/internal/data"
	"github.com/NayerAli/v2-ocr-sub002/internal/domain/model"
	"github.com/NayerAli/v2-ocr-sub002/internal/util"
)

type jobsOptions struct {
	OwnerID string
	Status  string
	Limit   int
	Offset  int
	JSON    bool
	Timeout time.Duration
}

func runJobs(cmdCtx *commandContext, args []string) error {
	opts, err := parseJobsFlags(args)
	if err != nil {
		return err
	}

	listOpts := &model.JobListOptions{
		OwnerID: opts.OwnerID,
		Limit:   opts.Limit,
		Offset:  opts.Offset,
	}
	if opts.Status != "" {
		status := model.JobStatus(opts.Status)
		listOpts.Status = &status
	}

	return withDatabase(cmdCtx, opts.Timeout, func(ctx context.Context, db *sql.DB) error {
		repo := data.NewJobRepo(db, data.RepoConfig{})
		page, listErr := repo.List(ctx, listOpts)
		if listErr != nil {
			return fmt.Errorf("list jobs: %w", listErr)
		}

		if opts.JSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if encErr := enc.Encode(page); encErr != nil {
				return fmt.Errorf("encode job page: %w", encErr)
			}
			return nil
		}

		return printJobPage(os.Stdout, page)
	})
}

func printJobPage(w io.Writer, page *model.JobPage) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if err := writeln(tw, "ID\tSTATUS\tFILE\tPAGES\tPROGRESS\tDURATION\tCREATED"); err != nil {
		return fmt.Errorf("write jobs header: %w", err)
	}

	for i := range page.Jobs {
		job := &page.Jobs[i]
		if err := writef(tw, "%s\t%s\t%s\t%s\t%d%%\t%s\t%s\n",
			job.ID,
			job.Status,
			job.OriginalFilename,
			formatJobPages(job),
			job.Progress,
			util.FormatProcessingDuration(jobProcessingDuration(job)),
			job.CreatedAt.Format(time.RFC3339),
		); err != nil {
			return fmt.Errorf("write jobs row: %w", err)
		}
	}

	if err := tw.Flush(); err != nil {
		return fmt.Errorf("flush jobs table: %w", err)
	}
	return writef(w, "Showing %d of %d job(s).\n", len(page.Jobs), page.Total)
}

func formatJobPages(job *model.Job) string {
	if job.TotalPages == 0 {
		return "-"
	}
	return fmt.Sprintf("%d/%d", job.CurrentPage, job.TotalPages)
}

// jobProcessingDuration returns the time a job spent in processing. Jobs still
// running are measured against the wall clock so the column keeps moving.
func jobProcessingDuration(job *model.Job) time.Duration {
	if job.ProcessingStartedAt == nil {
		return 0
	}
	if job.ProcessingCompletedAt != nil {
		return job.ProcessingCompletedAt.Sub(*job.ProcessingStartedAt)
	}
	if job.Status == model.JobStatusProcessing {
		return time.Since(*job.ProcessingStartedAt)
	}
	return 0
}

func parseJobsFlags(args []string) (jobsOptions, error) {
	fs := flag.NewFlagSet("jobs", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := jobsOptions{
		Limit:   20,
		Timeout: defaultCommandTimeout,
	}
	fs.StringVar(&opts.OwnerID, "owner", "", "Owner whose jobs to list (required)")
	fs.StringVar(&opts.Status, "status", "", "Filter by status (queued, processing, completed, failed, cancelled)")
	fs.IntVar(&opts.Limit, "limit", 20, "Maximum number of jobs to show")
	fs.IntVar(&opts.Offset, "offset", 0, "Number of jobs to skip")
	fs.BoolVar(&opts.JSON, "json", false, "Print the job page as JSON")
	fs.DurationVar(&opts.Timeout, "timeout", defaultCommandTimeout, "Maximum duration to wait for the query")

	if err := fs.Parse(args); err != nil {
		return jobsOptions{}, err
	}

	opts.OwnerID = strings.TrimSpace(opts.OwnerID)
	opts.Status = strings.ToLower(strings.TrimSpace(opts.Status))
	if err := validateJobsOptions(opts); err != nil {
		return jobsOptions{}, err
	}

	return opts, nil
}

func validateJobsOptions(opts jobsOptions) error {
	if opts.OwnerID == "" {
		return errors.New("--owner is required; jobs are always listed per owner")
	}
	if opts.Status != "" && !model.JobStatus(opts.Status).Valid() {
		return fmt.Errorf("invalid status %q (valid options: queued, processing, completed, failed, cancelled)", opts.Status)
	}
	if opts.Limit <= 0 {
		return errors.New("--limit must be greater than zero")
	}
	if opts.Offset < 0 {
		return errors.New("--offset must be zero or greater")
	}
	if opts.Timeout <= 0 {
		return errors.New("--timeout must be greater than zero")
	}
	return nil
}
