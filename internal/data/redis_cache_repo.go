package data

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// minReservationTTL is the floor applied to reservation TTLs. A zero TTL
// would make the key permanent, which is never what a dedupe window wants.
const minReservationTTL = time.Second

// RedisCacheRepo implements core.CacheRepository over a Redis client.
// The processing service uses it to reserve owner+content-hash pairs so a
// document submitted twice in quick succession produces one job.
type RedisCacheRepo struct {
	client redis.UniversalClient
}

// NewRedisCacheRepo creates a new RedisCacheRepo with the given Redis client.
func NewRedisCacheRepo(client redis.UniversalClient) *RedisCacheRepo {
	return &RedisCacheRepo{client: client}
}

// SetIfNotExists atomically claims a key for the given value. It reports
// false without error when the key is already held.
func (r *RedisCacheRepo) SetIfNotExists(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	if err := requireKey(key); err != nil {
		return false, err
	}

	if ttl < minReservationTTL {
		ttl = minReservationTTL
	}

	// SETNX followed by EXPIRE would leave a permanent key if the process
	// dies between the two commands; SET with NX and TTL is one command.
	status, err := r.client.SetArgs(ctx, key, value, redis.SetArgs{Mode: "NX", TTL: ttl}).Result()
	if err != nil {
		// Redis answers an unmet NX condition with a nil reply, which
		// go-redis surfaces as redis.Nil.
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("redis set nx: %w", err)
	}

	return status == "OK", nil
}

// Get retrieves the value held under key, or nil when the key is absent.
func (r *RedisCacheRepo) Get(ctx context.Context, key string) ([]byte, error) {
	if err := requireKey(key); err != nil {
		return nil, err
	}

	value, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}

	return value, nil
}

// Delete releases key. It reports whether the key existed.
func (r *RedisCacheRepo) Delete(ctx context.Context, key string) (bool, error) {
	if err := requireKey(key); err != nil {
		return false, err
	}

	removed, err := r.client.Del(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("redis del: %w", err)
	}

	return removed > 0, nil
}

func requireKey(key string) error {
	if key == "" {
		return errors.New("key cannot be empty")
	}
	return nil
}
