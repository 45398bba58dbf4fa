// This file is a documentation template and should not be compiled.
// It uses placeholder types (ArchiveService, ArchiveRepository, etc.) that
// don't exist. Use it as a reference when adding new services.
//
//go:build ignore

package service

// TEMPLATE.go - Service Layer Pattern Template
//
// Every service in this package follows the same shape. The placeholder below
// is an imaginary ArchiveService that moves recognized text of completed jobs
// into cold storage; substitute your own domain while keeping the structure.
//
// KEY PRINCIPLES:
// 1. Dependencies arrive through an Options struct, ports first, then config
//    values, then optional extras (logger, metrics, notifier)
// 2. Constructors return (*XService, error); a MustNewXService companion
//    panics for startup paths where failing fast is correct
// 3. Services depend on port interfaces from internal/core, never on
//    internal/data or internal/adapters
// 4. Optional dependencies are nil-checked at every use site
// 5. Every method takes context.Context first
// 6. Caller-visible failures are AppErrors (internal/errors); infrastructure
//    failures are wrapped with fmt.Errorf("operation: %w", err)
// 7. Orchestration across repositories, blob storage, and providers is the
//    service layer's job; row mapping and SQL belong to internal/data

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/NayerAli/v2-ocr-sub002/internal/core"
	"github.com/NayerAli/v2-ocr-sub002/internal/domain/model"
	apperrors "github.com/NayerAli/v2-ocr-sub002/internal/errors"
)

// ═══════════════════════════════════════════════════════════════════════════
// PATTERN 1: Options Struct
// ═══════════════════════════════════════════════════════════════════════════

// ArchiveServiceOptions groups dependencies for ArchiveService.
//
// Order fields by weight: required ports, then plain config values, then
// optional dependencies. Document which are required. When config values
// multiply past two or three, fold them into a nested Config struct the way
// ExecutorOptions nests RetryPolicy.
type ArchiveServiceOptions struct {
	Repo   core.ArchiveRepository // Required: archive row storage
	Blobs  core.BlobStore         // Required: cold storage target
	Logger *slog.Logger           // Optional: structured logger
	Index  archiveIndex           // Optional: search index
}

// ═══════════════════════════════════════════════════════════════════════════
// PATTERN 2: Narrow Local Interfaces for Optional Dependencies
// ═══════════════════════════════════════════════════════════════════════════

// archiveIndex is the minimal surface this service needs from an index.
// Declaring it here, not in core, keeps the dependency optional and the
// contract as small as the service's real use of it.
type archiveIndex interface {
	Put(ctx context.Context, jobID, text string) error
	Remove(ctx context.Context, jobID string) error
}

// ═══════════════════════════════════════════════════════════════════════════
// PATTERN 3: Service Struct
// ═══════════════════════════════════════════════════════════════════════════

// ArchiveService moves recognized text of completed jobs into cold storage.
//
// Services own business rules and cross-dependency orchestration. They do
// not touch SQL, row scanning, or wire formats; those live behind the ports.
type ArchiveService struct {
	repo   core.ArchiveRepository
	blobs  core.BlobStore
	index  archiveIndex // nil when no index is configured
	logger *slog.Logger
}

// ═══════════════════════════════════════════════════════════════════════════
// PATTERN 4: Constructor Returning Error, Plus a Must Variant
// ═══════════════════════════════════════════════════════════════════════════

// NewArchiveService constructs a new ArchiveService.
//
// Required dependencies are checked up front and reported as errors so
// callers assembling services programmatically can surface wiring mistakes.
// The logger is scoped with a component attribute to keep log lines
// attributable.
func NewArchiveService(opts ArchiveServiceOptions) (*ArchiveService, error) {
	if opts.Repo == nil {
		return nil, errors.New("ArchiveRepository is required")
	}
	if opts.Blobs == nil {
		return nil, errors.New("BlobStore is required")
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "archive_service")
	}

	return &ArchiveService{
		repo:   opts.Repo,
		blobs:  opts.Blobs,
		index:  opts.Index,
		logger: logger,
	}, nil
}

// MustNewArchiveService constructs a new ArchiveService and panics on error.
// Use this only on startup paths (bootstrap, main) where a wiring mistake
// should kill the process.
func MustNewArchiveService(opts ArchiveServiceOptions) *ArchiveService {
	svc, err := NewArchiveService(opts)
	if err != nil {
		panic(fmt.Sprintf("failed to create ArchiveService: %v", err))
	}
	return svc
}

// ═══════════════════════════════════════════════════════════════════════════
// PATTERN 5: Operations and Error Discipline
// ═══════════════════════════════════════════════════════════════════════════

// Archive copies a completed job's recognized text into cold storage.
//
// Error discipline:
//   - Input problems the caller can fix are AppErrors (apperrors.Validation,
//     apperrors.InvalidState, ...); they carry a stable code for callers to
//     branch on
//   - Repository AppErrors (not_found, conflict) pass through wrapped so the
//     code survives the chain; predicates like apperrors.IsNotFound see
//     through fmt.Errorf wrapping
//   - Infrastructure failures get fmt.Errorf("operation: %w", err) context
//     and nothing else
func (s *ArchiveService) Archive(ctx context.Context, ownerID, jobID string) (*model.ArchiveEntry, error) {
	if ownerID == "" {
		return nil, apperrors.ValidationField("owner_id", "is required")
	}

	job, err := s.repo.GetCompletedJob(ctx, ownerID, jobID)
	if err != nil {
		return nil, fmt.Errorf("load job for archive: %w", err)
	}
	if job.Status != model.JobStatusCompleted {
		return nil, apperrors.InvalidStatef("cannot archive job in status %s", job.Status)
	}

	entry, err := s.repo.CreateEntry(ctx, ownerID, jobID)
	if err != nil {
		return nil, fmt.Errorf("create archive entry: %w", err)
	}

	s.indexEntry(ctx, jobID, entry.Text)

	if s.logger != nil {
		s.logger.InfoContext(ctx, "job archived", "job_id", jobID, "owner_id", ownerID)
	}

	return entry, nil
}

// Get fetches an archive entry, owner scoped like every read in this repo.
func (s *ArchiveService) Get(ctx context.Context, ownerID, jobID string) (*model.ArchiveEntry, error) {
	entry, err := s.repo.GetEntry(ctx, ownerID, jobID)
	if err != nil {
		return nil, fmt.Errorf("get archive entry: %w", err)
	}
	return entry, nil
}

// List returns one owner's entries with pagination guardrails applied in
// the service so every caller gets the same limits.
func (s *ArchiveService) List(ctx context.Context, ownerID string, limit, offset int) ([]*model.ArchiveEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 1000 {
		limit = 1000
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListEntries(ctx, ownerID, limit, offset)
}

// ═══════════════════════════════════════════════════════════════════════════
// PATTERN 6: Orchestration Across Dependencies
// ═══════════════════════════════════════════════════════════════════════════

// Purge removes an entry and its cold-storage blobs.
//
// Ordering rule used across this repo: delete rows first, storage second.
// A dangling blob is garbage the reaper can sweep; a dangling row pointing
// at deleted storage is a broken read. Storage failures after the row
// delete are logged, not returned.
func (s *ArchiveService) Purge(ctx context.Context, ownerID, jobID string) error {
	deleted, err := s.repo.DeleteEntry(ctx, ownerID, jobID)
	if err != nil {
		return fmt.Errorf("delete archive entry: %w", err)
	}
	if !deleted {
		return apperrors.NotFoundf("archive entry for job %s not found", jobID)
	}

	if err := s.blobs.DeletePrefix(ctx, ownerID+"/"+jobID+"/archive/"); err != nil {
		if s.logger != nil {
			s.logger.WarnContext(ctx, "archive blob cleanup failed",
				"job_id", jobID, "error", err)
		}
	}

	if s.index != nil {
		// Best effort. The index is rebuildable from rows.
		_ = s.index.Remove(ctx, jobID)
	}

	return nil
}

// ═══════════════════════════════════════════════════════════════════════════
// PATTERN 7: Private Helpers
// ═══════════════════════════════════════════════════════════════════════════

// Keep helpers unexported and single purpose. Anything two services need
// belongs in a domain package, not copied between services.

func (s *ArchiveService) indexEntry(ctx context.Context, jobID, text string) {
	if s.index == nil {
		return
	}
	if err := s.index.Put(ctx, jobID, text); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "archive index update failed", "job_id", jobID, "error", err)
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// PATTERN 8: Optional Repository Capabilities
// ═══════════════════════════════════════════════════════════════════════════

// When only some repository implementations support an operation, assert
// for a capability interface instead of widening the core port.

type archiveTextSearcher interface {
	SearchText(ctx context.Context, ownerID, query string, limit int) ([]*model.ArchiveEntry, error)
}

// Search finds entries whose text matches the query, falling back to a
// plain listing when the repository cannot search.
func (s *ArchiveService) Search(ctx context.Context, ownerID, query string, limit int) ([]*model.ArchiveEntry, error) {
	if searcher, ok := any(s.repo).(archiveTextSearcher); ok {
		return searcher.SearchText(ctx, ownerID, query, limit)
	}

	if s.logger != nil {
		s.logger.Debug("repository does not support text search, listing instead")
	}
	return s.List(ctx, ownerID, limit, 0)
}

// ═══════════════════════════════════════════════════════════════════════════
// CHECKLIST FOR A NEW SERVICE
// ═══════════════════════════════════════════════════════════════════════════
//
// 1. Define the port interface in internal/core and its rows in
//    internal/data (repository suffix _repo.go)
// 2. Add request/response types to internal/domain/model; validation lives
//    on the model, invocation lives here
// 3. Write the Options struct, constructor, and Must variant as above
// 4. Regenerate mocks (internal/mocks, go.uber.org/mock) for any new port
// 5. Wire the service in internal/bootstrap/services.go; only bootstrap
//    constructs concrete repositories
// 6. Unit tests beside the service with gomock; integration tests with
//    testutil.WithAutoDB; end-to-end paths through the workflowtest harness
//
// Common mistakes:
// - Returning raw repository errors without wrap context
// - Stamping a new AppError over one that already carries the right code
// - Reaching past the port into internal/data for a convenience query
// - Widening a core interface for one implementation's extra feature
