package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/redis/go-redis/v9"
)

// dedupeKeyPrefix mirrors the key layout of the duplicate-submission guard.
const dedupeKeyPrefix = "ocr:dedupe:"

type clearDedupeOptions struct {
	Owner  string
	All    bool
	DryRun bool
	Yes    bool
}

func runClearDedupe(cmdCtx *commandContext, args []string) error {
	opts, err := parseClearDedupeFlags(args)
	if err != nil {
		return err
	}

	if confirmErr := confirmAction(dedupeConfirmOptions{opts}, "clear dedupe reservations"); confirmErr != nil {
		return confirmErr
	}

	ctx, stop := signal.NotifyContext(cmdCtx.Ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient, err := maybeConnectRedis(cmdCtx.Logger, &cmdCtx.Config.Redis)
	if err != nil {
		if errors.Is(err, errRedisNotConfigured) {
			return errors.New("clear-dedupe requires a redis configuration")
		}
		return err
	}
	defer func() {
		if cerr := redisClient.Close(); cerr != nil {
			cmdCtx.Logger.Warn("redis close failed", "error", cerr)
		}
	}()

	stats, err := deleteDedupeKeys(&dedupeDeleteRequest{
		Ctx:     ctx,
		Logger:  cmdCtx.Logger,
		Redis:   redisClient,
		Options: opts,
	})
	if err != nil {
		return err
	}

	if opts.DryRun {
		return printDedupeDryRun(stats)
	}
	return printDedupeSummary(stats)
}

type dedupeDeleteRequest struct {
	Ctx      context.Context
	Logger   *slog.Logger
	Redis    redis.UniversalClient
	Options  clearDedupeOptions
	BatchCap int
}

type dedupeDeleteStats struct {
	total    int
	deleted  int64
	failures int
}

func buildDedupePatterns(opts clearDedupeOptions) []string {
	if !opts.All && opts.Owner == "" {
		return nil
	}

	ownerPart := "*"
	if opts.Owner != "" {
		ownerPart = opts.Owner
	}
	return []string{dedupeKeyPrefix + ownerPart + ":*"}
}

func deleteDedupeKeys(req *dedupeDeleteRequest) (dedupeDeleteStats, error) {
	patterns := buildDedupePatterns(req.Options)
	if len(patterns) == 0 {
		return dedupeDeleteStats{}, nil
	}

	batchCap := req.BatchCap
	if batchCap <= 0 {
		batchCap = 1000
	}

	stats := dedupeDeleteStats{}
	for _, pattern := range patterns {
		if err := req.deleteDedupeKeysForPattern(pattern, &stats, batchCap); err != nil {
			return stats, err
		}
	}
	return stats, nil
}

func (req *dedupeDeleteRequest) deleteDedupeKeysForPattern(
	pattern string,
	stats *dedupeDeleteStats,
	batchCap int,
) error {
	if req.Logger != nil {
		req.Logger.Info("scanning redis", "pattern", pattern, "dry_run", req.Options.DryRun)
	}

	iter := req.Redis.Scan(req.Ctx, 0, pattern, 100).Iterator()
	batch := make([]string, 0, batchCap)

	for iter.Next(req.Ctx) {
		stats.total++
		batch = append(batch, iter.Val())

		if len(batch) == batchCap {
			flushDedupeBatch(req, batch, stats)
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan: %w", err)
	}

	flushDedupeBatch(req, batch, stats)
	return nil
}

func flushDedupeBatch(req *dedupeDeleteRequest, batch []string, stats *dedupeDeleteStats) {
	if len(batch) == 0 {
		return
	}
	if req.Options.DryRun {
		stats.deleted += int64(len(batch))
		if req.Logger != nil {
			req.Logger.Info("dry-run skipping dedupe delete", "count", len(batch))
		}
		return
	}
	n, delErr := req.Redis.Del(req.Ctx, batch...).Result()
	if delErr != nil {
		stats.failures++
		if req.Logger != nil {
			req.Logger.Error("failed to delete dedupe keys", "count", len(batch), "error", delErr)
		}
		if err := writef(os.Stdout, "Failed to delete %d keys: %v\n", len(batch), delErr); err != nil &&
			req.Logger != nil {
			req.Logger.Error("stdout write for dedupe delete failure failed", "error", err)
		}
		return
	}
	stats.deleted += n
}

func printDedupeDryRun(stats dedupeDeleteStats) error {
	return writef(os.Stdout, "Dry run: %d dedupe reservation(s) would be cleared.\n", stats.total)
}

func printDedupeSummary(stats dedupeDeleteStats) error {
	if err := writef(os.Stdout, "Cleared %d dedupe reservation(s).\n", stats.deleted); err != nil {
		return fmt.Errorf("write dedupe summary: %w", err)
	}
	if stats.failures > 0 {
		return writef(os.Stdout, "%d delete batch(es) failed; see log for details.\n", stats.failures)
	}
	return nil
}

type dedupeConfirmOptions struct {
	opts clearDedupeOptions
}

func (d dedupeConfirmOptions) IsDryRun() bool { return d.opts.DryRun }
func (d dedupeConfirmOptions) IsYes() bool    { return d.opts.Yes }
func (d dedupeConfirmOptions) GetWarning() string {
	if d.opts.All {
		return "WARNING: this will clear dedupe reservations for every owner; in-flight duplicate uploads will create new jobs."
	}
	return "WARNING: cleared reservations let identical uploads create new jobs."
}

func (d dedupeConfirmOptions) GetTarget() string {
	if d.opts.All {
		return "all owners"
	}
	return fmt.Sprintf("owner %q", d.opts.Owner)
}

func parseClearDedupeFlags(args []string) (clearDedupeOptions, error) {
	fs := flag.NewFlagSet("clear-dedupe", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts clearDedupeOptions
	fs.StringVar(&opts.Owner, "owner", "", "Owner ID to clear (required unless --all)")
	fs.BoolVar(&opts.All, "all", false, "Clear dedupe reservations for all owners")
	fs.BoolVar(&opts.DryRun, "dry-run", false, "Print actions without executing")
	fs.BoolVar(&opts.Yes, "yes", false, "Skip confirmation prompt")

	if err := fs.Parse(args); err != nil {
		return clearDedupeOptions{}, err
	}

	opts.Owner = strings.TrimSpace(opts.Owner)
	if err := validateClearDedupeOptions(opts); err != nil {
		return clearDedupeOptions{}, err
	}

	return opts, nil
}

func validateClearDedupeOptions(opts clearDedupeOptions) error {
	if opts.All && opts.Owner != "" {
		return errors.New("--all and --owner are mutually exclusive")
	}
	if !opts.All && opts.Owner == "" {
		return errors.New("--owner is required (or use --all)")
	}
	if strings.ContainsAny(opts.Owner, "*?[]") {
		return errors.New("--owner must not contain pattern characters")
	}
	return nil
}
