package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/NayerAli/v2-ocr-sub002/config"
	"github.com/NayerAli/v2-ocr-sub002/internal/bootstrap"
)

var errRedisNotConfigured = errors.New("redis not configured")

// maybeConnectRedis connects when the environment carries enough Redis
// configuration, and reports errRedisNotConfigured otherwise so commands that
// merely prefer Redis can degrade instead of failing.
//
//nolint:ireturn // returning redis.UniversalClient keeps sentinel/cluster support flexible.
func maybeConnectRedis(logger *slog.Logger, cfg *config.RedisConfig) (redis.UniversalClient, error) {
	if !hasRedisConfig(cfg) {
		return nil, errRedisNotConfigured
	}
	client, err := bootstrap.ConnectRedis(bootstrap.DatabaseConfig{RedisConfig: *cfg, Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return client, nil
}

// hasRedisConfig checks whether the chosen topology has an address to dial.
func hasRedisConfig(cfg *config.RedisConfig) bool {
	switch {
	case cfg == nil:
		return false
	case cfg.UseCluster:
		return len(cfg.ClusterNodes) > 0 || cfg.URI != ""
	case cfg.UseSentinel:
		return len(cfg.SentinelNodes) > 0
	default:
		return cfg.URI != ""
	}
}
