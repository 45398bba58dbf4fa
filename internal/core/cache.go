// Package core provides the business logic and service layer for the ocrd processing queue.
package core

import (
	"context"
	"time"
)

// CacheRepository is the port the duplicate-submission guard needs from a
// shared cache: an atomic claim, a lookup, and a release. The core defines
// the interface and the data layer provides the Redis implementation.
type CacheRepository interface {
	// SetIfNotExists atomically sets a key only if it doesn't already exist.
	// Returns true if the key was set, false if it already existed.
	SetIfNotExists(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)

	// Get retrieves a value from the cache by key.
	// Returns nil if the key doesn't exist or has expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes a key from the cache.
	// Returns true if the key was deleted, false if it didn't exist.
	Delete(ctx context.Context, key string) (bool, error)
}

// DedupeCache guards against the same document being submitted twice in quick
// succession (double-clicked uploads, client retries). It reserves the
// owner+content-hash pair for the first job and answers lookups for
// duplicates within the TTL window. Best effort: cache outages disable
// deduplication, they never block enqueue.
type DedupeCache struct {
	cache CacheRepository
	ttl   time.Duration
}

// DedupeCacheConfig holds configuration for duplicate-submission detection.
type DedupeCacheConfig struct {
	TTL time.Duration `json:"ttl"`
}

// DefaultDedupeCacheConfig returns a DedupeCacheConfig with sensible defaults.
func DefaultDedupeCacheConfig() DedupeCacheConfig {
	return DedupeCacheConfig{
		TTL: 10 * time.Minute,
	}
}

// NewDedupeCache creates a new DedupeCache. A nil CacheRepository yields a
// DedupeCache that reserves nothing and finds nothing.
func NewDedupeCache(cache CacheRepository, cfg DedupeCacheConfig) *DedupeCache {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultDedupeCacheConfig().TTL
	}
	return &DedupeCache{
		cache: cache,
		ttl:   ttl,
	}
}

// Reserve attempts to claim the owner+hash pair for jobID. It returns
// reserved=true when this submission is the first, or reserved=false plus the
// already-enqueued job's ID when it is a duplicate.
func (d *DedupeCache) Reserve(ctx context.Context, ownerID, fileHash, jobID string) (existingJobID string, reserved bool, err error) {
	if d.cache == nil || fileHash == "" {
		return "", true, nil
	}

	key := d.dedupeKey(ownerID, fileHash)
	ok, err := d.cache.SetIfNotExists(ctx, key, []byte(jobID), d.ttl)
	if err != nil {
		return "", false, err
	}
	if ok {
		return "", true, nil
	}

	existing, err := d.cache.Get(ctx, key)
	if err != nil {
		return "", false, err
	}
	if len(existing) == 0 {
		// Reservation raced with expiry; treat as first submission.
		return "", true, nil
	}
	return string(existing), false, nil
}

// Release drops a reservation after a failed enqueue so the next submission
// of the same document is not mistaken for a duplicate.
func (d *DedupeCache) Release(ctx context.Context, ownerID, fileHash string) error {
	if d.cache == nil || fileHash == "" {
		return nil
	}
	_, err := d.cache.Delete(ctx, d.dedupeKey(ownerID, fileHash))
	return err
}

// dedupeKey generates the cache key for an owner's document hash.
func (d *DedupeCache) dedupeKey(ownerID, fileHash string) string {
	return "ocr:dedupe:" + ownerID + ":" + fileHash
}
