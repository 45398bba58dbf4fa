package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/NayerAli/v2-ocr-sub002/config"
	"github.com/NayerAli/v2-ocr-sub002/internal/bootstrap"
	"github.com/NayerAli/v2-ocr-sub002/internal/data"
	"github.com/NayerAli/v2-ocr-sub002/internal/domain/model"
)

type commandFn func(ctx *commandContext, args []string) error

type command struct {
	name        string
	description string
	run         commandFn
}

type commandContext struct {
	Ctx    context.Context
	Logger *slog.Logger
	Config config.AppConfig
}

const defaultCommandTimeout = 5 * time.Minute

func main() {
	logger := bootstrap.InitLogger()

	if len(os.Args) < 2 {
		if err := printUsage(); err != nil {
			logger.Error("print usage failed", "error", err)
		}
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when no command is provided
	}

	cmdName := os.Args[1]
	cmd, ok := commands()[cmdName]
	if !ok {
		if err := writef(os.Stderr, "unknown command %q\n\n", cmdName); err != nil {
			logger.Error("print unknown command message failed", "error", err)
		}
		if err := printUsage(); err != nil {
			logger.Error("print usage failed", "error", err)
		}
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when command is unknown
	}

	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		logger.ErrorContext(context.Background(), "load config", "error", err)
		os.Exit(1) //nolint:forbidigo // CLI must signal configuration load failure to shell scripts
	}

	cmdCtx := &commandContext{
		Ctx:    context.Background(),
		Logger: logger,
		Config: cfg,
	}
	if runErr := cmd.run(cmdCtx, os.Args[2:]); runErr != nil {
		logger.ErrorContext(cmdCtx.Ctx, "command failed", "command", cmdName, "error", runErr)
		os.Exit(1) //nolint:forbidigo // CLI must propagate command execution failure to callers
	}
}

func commands() map[string]command {
	return map[string]command{
		"stats": {
			name:        "stats",
			description: "Show job counts by status",
			run:         runStats,
		},
		"jobs": {
			name:        "jobs",
			description: "List an owner's jobs with progress and timing",
			run:         runJobs,
		},
		"requeue": {
			name:        "requeue",
			description: "Requeue processing jobs whose lease has expired",
			run:         runRequeue,
		},
		"purge": {
			name:        "purge",
			description: "Delete old terminal jobs, their page results, and blob artifacts",
			run:         runPurge,
		},
		"clear-dedupe": {
			name:        "clear-dedupe",
			description: "Clear duplicate-submission reservations from Redis",
			run:         runClearDedupe,
		},
		"migrate": {
			name:        "migrate",
			description: "Run database migrations",
			run:         runMigrations,
		},
	}
}

func printUsage() error {
	if err := writef(os.Stdout, "Usage: ocrd-admin <command> [flags]\n\n"); err != nil {
		return err
	}
	if err := writef(os.Stdout, "Available commands:\n"); err != nil {
		return err
	}
	for _, c := range commands() {
		if err := writef(os.Stdout, "  %-16s %s\n", c.name, c.description); err != nil {
			return err
		}
	}
	return nil
}

type statsOptions struct {
	JSON    bool
	Timeout time.Duration
}

type requeueOptions struct {
	BatchSize int
	Timeout   time.Duration
}

type migrateOptions struct {
	Timeout time.Duration
}

func runStats(cmdCtx *commandContext, args []string) error {
	opts, err := parseStatsFlags(args)
	if err != nil {
		return err
	}

	return withDatabase(cmdCtx, opts.Timeout, func(ctx context.Context, db *sql.DB) error {
		repo := data.NewJobRepo(db, data.RepoConfig{})
		stats, statsErr := repo.Stats(ctx)
		if statsErr != nil {
			return fmt.Errorf("query job stats: %w", statsErr)
		}

		if opts.JSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if encErr := enc.Encode(stats); encErr != nil {
				return fmt.Errorf("encode job stats: %w", encErr)
			}
			return nil
		}

		return printStats(os.Stdout, stats)
	})
}

func printStats(w io.Writer, stats *model.JobStats) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if err := writeln(tw, "STATUS\tCOUNT"); err != nil {
		return fmt.Errorf("write stats header: %w", err)
	}

	rows := []struct {
		status model.JobStatus
		count  int
	}{
		{model.JobStatusQueued, stats.Queued},
		{model.JobStatusProcessing, stats.Processing},
		{model.JobStatusCompleted, stats.Completed},
		{model.JobStatusFailed, stats.Failed},
		{model.JobStatusCancelled, stats.Cancelled},
	}

	total := 0
	for _, row := range rows {
		total += row.count
		if err := writef(tw, "%s\t%d\n", row.status, row.count); err != nil {
			return fmt.Errorf("write stats row: %w", err)
		}
	}
	if err := writef(tw, "TOTAL\t%d\n", total); err != nil {
		return fmt.Errorf("write stats total: %w", err)
	}

	if err := tw.Flush(); err != nil {
		return fmt.Errorf("flush stats table: %w", err)
	}
	return nil
}

func runRequeue(cmdCtx *commandContext, args []string) error {
	opts, err := parseRequeueFlags(args)
	if err != nil {
		return err
	}

	return withDatabase(cmdCtx, opts.Timeout, func(ctx context.Context, db *sql.DB) error {
		repo := data.NewJobRepo(db, data.RepoConfig{})

		var total int64
		for {
			count, requeueErr := repo.RequeueExpiredLeases(ctx, opts.BatchSize)
			if requeueErr != nil {
				return fmt.Errorf("requeue expired leases: %w", requeueErr)
			}
			total += count
			if count == 0 {
				break
			}
		}

		if total > 0 {
			// Wake idle workers so the requeued jobs are picked up immediately
			if notifyErr := repo.Notify(ctx); notifyErr != nil {
				cmdCtx.Logger.Warn("notify workers after requeue failed", "error", notifyErr)
			}
		}

		return writef(os.Stdout, "Requeued %d job(s) with expired leases.\n", total)
	})
}

func runMigrations(cmdCtx *commandContext, args []string) error {
	opts, err := parseMigrateFlags(args)
	if err != nil {
		return err
	}

	return withDatabase(cmdCtx, opts.Timeout, func(ctx context.Context, db *sql.DB) error {
		cmdCtx.Logger.Info("running database migrations")

		if migrateErr := bootstrap.RunMigrations(ctx, db, cmdCtx.Logger); migrateErr != nil {
			return fmt.Errorf("run migrations: %w", migrateErr)
		}

		cmdCtx.Logger.Info("migrations completed successfully")
		return nil
	})
}

func parseStatsFlags(args []string) (statsOptions, error) {
	fs := flag.NewFlagSet("stats", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := statsOptions{Timeout: defaultCommandTimeout}
	fs.BoolVar(&opts.JSON, "json", false, "Print job counts as JSON")
	fs.DurationVar(&opts.Timeout, "timeout", defaultCommandTimeout, "Maximum duration to wait for the query")

	if err := fs.Parse(args); err != nil {
		return statsOptions{}, err
	}

	if opts.Timeout <= 0 {
		return statsOptions{}, errors.New("--timeout must be greater than zero")
	}

	return opts, nil
}

func parseRequeueFlags(args []string) (requeueOptions, error) {
	fs := flag.NewFlagSet("requeue", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := requeueOptions{
		BatchSize: 1000,
		Timeout:   defaultCommandTimeout,
	}
	fs.IntVar(&opts.BatchSize, "batch-size", 1000, "Jobs to requeue per batch")
	fs.DurationVar(&opts.Timeout, "timeout", defaultCommandTimeout, "Maximum duration to wait for completion")

	if err := fs.Parse(args); err != nil {
		return requeueOptions{}, err
	}

	if opts.BatchSize <= 0 {
		return requeueOptions{}, errors.New("--batch-size must be greater than zero")
	}
	if opts.Timeout <= 0 {
		return requeueOptions{}, errors.New("--timeout must be greater than zero")
	}

	return opts, nil
}

func parseMigrateFlags(args []string) (migrateOptions, error) {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := migrateOptions{
		Timeout: defaultCommandTimeout,
	}

	fs.DurationVar(
		&opts.Timeout,
		"timeout",
		defaultCommandTimeout,
		"Maximum duration to wait for migrations to complete",
	)

	if err := fs.Parse(args); err != nil {
		return migrateOptions{}, err
	}

	if opts.Timeout <= 0 {
		return migrateOptions{}, errors.New("--timeout must be greater than zero")
	}

	return opts, nil
}

func withDatabase(
	cmdCtx *commandContext,
	timeout time.Duration,
	f func(context.Context, *sql.DB) error,
) error {
	ctx, stop := signal.NotifyContext(cmdCtx.Ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	db, err := bootstrap.ConnectDB(bootstrap.DatabaseConfig{
		DBConfig: cmdCtx.Config.Postgres,
		Logger:   cmdCtx.Logger,
	})
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			cmdCtx.Logger.Warn("db close failed", "error", cerr)
		}
	}()

	return f(ctx, db)
}

func writef(w io.Writer, format string, args ...any) error {
	_, err := fmt.Fprintf(w, format, args...)
	return err
}

func write(w io.Writer, args ...any) error {
	_, err := fmt.Fprint(w, args...)
	return err
}

func writeln(w io.Writer, args ...any) error {
	if len(args) == 0 {
		_, err := fmt.Fprintln(w)
		return err
	}
	_, err := fmt.Fprintln(w, args...)
	return err
}
