package config

import "time"

// DBConfig contains PostgreSQL database configuration.
type DBConfig struct {
	Host     string `env:"HOST"                    envDefault:"localhost"`
	Port     int    `env:"PORT"                    envDefault:"5432"`
	User     string `env:"USER"                    envDefault:"ocrd"`
	Password string `env:"PASSWORD"                envDefault:"ocrd"`
	Name     string `env:"NAME"                    envDefault:"ocrd"`
	SSLMode  string `env:"SSL_MODE"                envDefault:"disable"` // Use 'disable' for local dev, 'require' for production
	// RunMigrationsOnStart controls whether the application automatically applies migrations during startup.
	RunMigrationsOnStart bool `env:"RUN_MIGRATIONS_ON_START" envDefault:"true"`
}

// RedisConfig contains Redis configuration.
type RedisConfig struct {
	URI                string   `env:"URI"                  envDefault:"localhost:6379"`
	Password           string   `env:"PASSWORD"             envDefault:""`
	SentinelNodes      []string `env:"SENTINEL_NODES"       envDefault:"localhost:26379"`
	SentinelMasterName string   `env:"SENTINEL_MASTER_NAME" envDefault:"mymaster"`
	SentinelPassword   string   `env:"SENTINEL_PASSWORD"    envDefault:""`
	UseSentinel        bool     `env:"USE_SENTINEL"         envDefault:"false"`
	ClusterNodes       []string `env:"CLUSTER_NODES"        envDefault:""`
	UseCluster         bool     `env:"USE_CLUSTER"          envDefault:"false"`
}

// CacheConfig contains the duplicate-submission guard configuration
// (Redis-based). The guard reuses the main Redis connection.
type CacheConfig struct {
	// DedupeEnabled toggles the duplicate-submission guard. When disabled,
	// identical uploads create independent jobs.
	DedupeEnabled bool `env:"CACHE_DEDUPE_ENABLED" envDefault:"true"`

	// DedupeTTL is how long a content hash blocks duplicate submissions by
	// the same owner.
	DedupeTTL time.Duration `env:"CACHE_DEDUPE_TTL" envDefault:"10m"`
}

// Sanitize applies guardrails to cache configuration values.
func (c *CacheConfig) Sanitize() {
	if c.DedupeTTL <= 0 {
		c.DedupeTTL = 10 * time.Minute
	}
}
