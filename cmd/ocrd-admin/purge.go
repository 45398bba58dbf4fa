package main

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/NayerAli/v2-ocr-sub002/internal/bootstrap"
	"github.com/NayerAli/v2-ocr-sub002/internal/core"
	"github.com/NayerAli/v2-ocr-sub002/internal/data"
	"github.com/NayerAli/v2-ocr-sub002/internal/domain/model"
	"github.com/NayerAli/v2-ocr-sub002/internal/storage"
)

type purgeOptions struct {
	Status      string
	All         bool
	OlderThan   time.Duration
	BatchSize   int
	SkipBlobs   bool
	Yes         bool
	AllowRemote bool
	Timeout     time.Duration
}

func runPurge(cmdCtx *commandContext, args []string) error {
	opts, err := parsePurgeFlags(args)
	if err != nil {
		return err
	}

	statuses, err := purgeStatuses(opts)
	if err != nil {
		return err
	}

	remote, err := guardRemoteHost(cmdCtx, opts.AllowRemote, "permanently delete job records and their artifacts")
	if err != nil {
		return err
	}

	confirmOpts := purgeConfirmOptions{opts: opts, statuses: statuses}
	if remote {
		confirmOpts.remoteHost = cmdCtx.Config.Postgres.Host
	}
	if confirmErr := confirmAction(confirmOpts, "purge old jobs"); confirmErr != nil {
		return confirmErr
	}

	return withDatabase(cmdCtx, opts.Timeout, func(ctx context.Context, db *sql.DB) error {
		blobs, blobErr := connectPurgeBlobStore(ctx, cmdCtx, opts)
		if blobErr != nil {
			return blobErr
		}

		repo := data.NewJobRepo(db, data.RepoConfig{})
		totals := purgeTotals{}
		for _, status := range statuses {
			if purgeErr := purgeStatus(ctx, purgeStatusRequest{
				CmdCtx:  cmdCtx,
				Repo:    repo,
				Blobs:   blobs,
				Status:  status,
				Options: opts,
			}, &totals); purgeErr != nil {
				return purgeErr
			}
		}

		return printPurgeSummary(totals, opts.SkipBlobs)
	})
}

// connectPurgeBlobStore connects the object store unless blob cleanup is
// disabled. Purging rows without the store leaves orphaned objects behind.
func connectPurgeBlobStore(ctx context.Context, cmdCtx *commandContext, opts purgeOptions) (core.BlobStore, error) {
	if opts.SkipBlobs {
		cmdCtx.Logger.Warn("skipping blob cleanup; purged jobs leave orphaned objects in storage")
		return nil, nil
	}

	blobs, err := bootstrap.ConnectStorage(ctx, cmdCtx.Config.Storage, cmdCtx.Logger)
	if err != nil {
		return nil, fmt.Errorf("connect storage (use --skip-blobs to purge rows only): %w", err)
	}
	return blobs, nil
}

type purgeStatusRequest struct {
	CmdCtx  *commandContext
	Repo    *data.JobRepo
	Blobs   core.BlobStore
	Status  model.JobStatus
	Options purgeOptions
}

type purgeTotals struct {
	jobs    int
	orphans int
}

func purgeStatus(ctx context.Context, req purgeStatusRequest, totals *purgeTotals) error {
	for {
		refs, err := req.Repo.DeleteOldJobs(ctx, core.DeleteOldJobsParams{
			Status:    req.Status,
			MaxAge:    req.Options.OlderThan,
			BatchSize: req.Options.BatchSize,
		})
		if err != nil {
			return fmt.Errorf("delete old %s jobs: %w", req.Status, err)
		}
		if len(refs) == 0 {
			return nil
		}

		totals.jobs += len(refs)
		totals.orphans += removePurgedArtifacts(ctx, req, refs)

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// removePurgedArtifacts deletes the blob prefix of each purged job and
// returns how many prefixes could not be removed. The job rows are already
// gone, so failures only leave orphaned objects.
func removePurgedArtifacts(ctx context.Context, req purgeStatusRequest, refs []core.DeletedJobRef) int {
	if req.Blobs == nil {
		return 0
	}

	orphans := 0
	for _, ref := range refs {
		prefix := storage.JobPrefix(ref.OwnerID, ref.ID)
		if err := req.Blobs.DeletePrefix(ctx, prefix); err != nil {
			orphans++
			req.CmdCtx.Logger.Warn("delete job artifacts failed",
				"job_id", ref.ID,
				"prefix", prefix,
				"error", err,
			)
		}
	}
	return orphans
}

func printPurgeSummary(totals purgeTotals, skippedBlobs bool) error {
	if err := writef(os.Stdout, "Purged %d job(s).\n", totals.jobs); err != nil {
		return fmt.Errorf("write purge summary: %w", err)
	}
	if skippedBlobs && totals.jobs > 0 {
		return writeln(os.Stdout, "Blob cleanup was skipped; artifacts for purged jobs remain in storage.")
	}
	if totals.orphans > 0 {
		return writef(os.Stdout, "Failed to remove artifacts for %d job(s); see log for details.\n", totals.orphans)
	}
	return nil
}

// purgeStatuses resolves which terminal statuses the purge targets.
func purgeStatuses(opts purgeOptions) ([]model.JobStatus, error) {
	if opts.All {
		return []model.JobStatus{
			model.JobStatusCompleted,
			model.JobStatusFailed,
			model.JobStatusCancelled,
		}, nil
	}

	status := model.JobStatus(opts.Status)
	if !status.Valid() {
		return nil, fmt.Errorf("invalid status %q (valid options: completed, failed, cancelled)", opts.Status)
	}
	if !status.Terminal() {
		return nil, fmt.Errorf("status %q is not terminal; only completed, failed, and cancelled jobs can be purged", opts.Status)
	}
	return []model.JobStatus{status}, nil
}

func parsePurgeFlags(args []string) (purgeOptions, error) {
	fs := flag.NewFlagSet("purge", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := purgeOptions{
		BatchSize: 1000,
		Timeout:   defaultCommandTimeout,
	}
	fs.StringVar(&opts.Status, "status", "", "Terminal status to purge (required unless --all)")
	fs.BoolVar(&opts.All, "all", false, "Purge completed, failed, and cancelled jobs")
	fs.DurationVar(&opts.OlderThan, "older-than", 0, "Minimum age of jobs to purge (required, e.g. 168h)")
	fs.IntVar(&opts.BatchSize, "batch-size", 1000, "Jobs to delete per batch")
	fs.BoolVar(&opts.SkipBlobs, "skip-blobs", false, "Delete database rows only, leaving blob artifacts in place")
	fs.BoolVar(&opts.Yes, "yes", false, "Skip confirmation prompt")
	fs.BoolVar(&opts.AllowRemote, "allow-remote", false, "Allow running against a non-local database host")
	fs.DurationVar(&opts.Timeout, "timeout", defaultCommandTimeout, "Maximum duration to wait for completion")

	if err := fs.Parse(args); err != nil {
		return purgeOptions{}, err
	}

	opts.Status = strings.ToLower(strings.TrimSpace(opts.Status))
	if err := validatePurgeOptions(opts); err != nil {
		return purgeOptions{}, err
	}

	return opts, nil
}

func validatePurgeOptions(opts purgeOptions) error {
	if opts.All && opts.Status != "" {
		return errors.New("--all and --status are mutually exclusive")
	}
	if !opts.All && opts.Status == "" {
		return errors.New("--status is required (or use --all)")
	}
	if opts.OlderThan <= 0 {
		return errors.New("--older-than is required and must be greater than zero")
	}
	if opts.BatchSize <= 0 {
		return errors.New("--batch-size must be greater than zero")
	}
	if opts.Timeout <= 0 {
		return errors.New("--timeout must be greater than zero")
	}
	return nil
}

type confirmOptions interface {
	IsDryRun() bool
	IsYes() bool
	GetTarget() string
	GetWarning() string
}

type purgeConfirmOptions struct {
	opts       purgeOptions
	statuses   []model.JobStatus
	remoteHost string
}

func (p purgeConfirmOptions) IsDryRun() bool { return false }
func (p purgeConfirmOptions) IsYes() bool {
	if p.remoteHost != "" {
		return false
	}
	return p.opts.Yes
}

func (p purgeConfirmOptions) GetWarning() string {
	warning := "WARNING: this will permanently delete the matched jobs, their page results, and their stored artifacts."
	if p.remoteHost != "" {
		warning += fmt.Sprintf(" Host %q appears to be remote; double-check before proceeding.", p.remoteHost)
	}
	return warning
}

func (p purgeConfirmOptions) GetTarget() string {
	names := make([]string, 0, len(p.statuses))
	for _, status := range p.statuses {
		names = append(names, string(status))
	}
	return fmt.Sprintf("%s jobs older than %s", strings.Join(names, ", "), p.opts.OlderThan)
}

func guardRemoteHost(cmdCtx *commandContext, allow bool, action string) (bool, error) {
	remote := isLikelyRemoteHost(cmdCtx.Config.Postgres.Host)
	if !remote {
		return false, nil
	}
	if !allow {
		return true, fmt.Errorf(
			"refusing to run against potentially remote database host %q; re-run with --allow-remote if this is intentional",
			cmdCtx.Config.Postgres.Host,
		)
	}
	if err := requireRemoteHostConfirmation(action, cmdCtx.Config.Postgres.Host); err != nil {
		return true, err
	}
	return true, nil
}

func isLikelyRemoteHost(host string) bool {
	h := strings.ToLower(strings.TrimSpace(host))
	if h == "" {
		return false
	}
	if h == "localhost" || h == "127.0.0.1" || h == "::1" {
		return false
	}
	if strings.HasSuffix(h, ".local") {
		return false
	}
	if ip := net.ParseIP(host); ip != nil {
		return !ip.IsLoopback()
	}
	return true
}

func requireRemoteHostConfirmation(action, host string) error {
	if err := writef(
		os.Stderr,
		"\nWARNING: database host %q does not look like a local address.\n"+
			"This operation will %s.\n",
		host,
		action,
	); err != nil {
		return fmt.Errorf("print remote host warning: %w", err)
	}
	if err := writef(os.Stderr, "Type %q to continue or press enter to abort: ", host); err != nil {
		return fmt.Errorf("print remote host prompt: %w", err)
	}
	reader := bufio.NewReader(os.Stdin)
	resp, err := reader.ReadString('\n')
	if err != nil {
		if writeErr := writef(os.Stderr, "\nFailed to read confirmation input: %v\n", err); writeErr != nil {
			return fmt.Errorf("aborted by user: report write failed: %w", writeErr)
		}
		return errors.New("aborted by user")
	}
	if strings.TrimSpace(resp) != host {
		if writeErr := writeln(os.Stderr, "\nRemote safeguard check failed; aborting."); writeErr != nil {
			return fmt.Errorf("print remote safeguard failure: %w", writeErr)
		}
		return errors.New("aborted by user")
	}
	return nil
}

func confirmAction(opts confirmOptions, actionType string) error {
	if opts.IsDryRun() || opts.IsYes() {
		return nil
	}

	if err := printConfirmationIntro(opts, actionType); err != nil {
		return err
	}

	if err := write(os.Stdout, "Continue? [y/N]: "); err != nil {
		return fmt.Errorf("print confirmation prompt: %w", err)
	}
	reader := bufio.NewReader(os.Stdin)
	resp, err := reader.ReadString('\n')
	if err != nil {
		if writeErr := writef(os.Stdout, "\nFailed to read confirmation input: %v\n", err); writeErr != nil {
			return fmt.Errorf("aborted by user: report write failed: %w", writeErr)
		}
		return errors.New("aborted by user")
	}
	resp = strings.ToLower(strings.TrimSpace(resp))
	if resp == "y" || resp == "yes" {
		return nil
	}
	return errors.New("aborted by user")
}

func printConfirmationIntro(opts confirmOptions, actionType string) error {
	target := opts.GetTarget()
	if target == "" {
		if err := writeln(os.Stdout, opts.GetWarning()); err != nil {
			return fmt.Errorf("print confirmation warning: %w", err)
		}
		return nil
	}
	if err := writef(os.Stdout, "About to %s: %s\n", actionType, target); err != nil {
		return fmt.Errorf("print confirmation target: %w", err)
	}
	if err := writeln(os.Stdout, opts.GetWarning()); err != nil {
		return fmt.Errorf("print confirmation warning: %w", err)
	}
	return nil
}
