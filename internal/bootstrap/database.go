package bootstrap

import (
	"context"
	"crypto/tls"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/NayerAli/v2-ocr-sub002/config"
	"github.com/NayerAli/v2-ocr-sub002/internal/data"
	"github.com/redis/go-redis/v9"
)

// Pool sizing for the shared *sql.DB. Sized for one ocrd instance; the
// worker pool and the admin CLI never come close to 25 concurrent stmts.
const (
	dbMaxOpenConns   = 25
	dbMaxIdleConns   = 5
	dbConnMaxLife    = 5 * time.Minute
	connProbeTimeout = 5 * time.Second
)

// DatabaseConfig contains configuration for database connections.
type DatabaseConfig struct {
	DBConfig    config.DBConfig
	RedisConfig config.RedisConfig
	Logger      *slog.Logger
}

// ConnectDB opens the PostgreSQL pool and verifies it with a bounded ping.
func ConnectDB(cfg DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("pgx", postgresDSN(cfg.DBConfig))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(dbMaxOpenConns)
	db.SetMaxIdleConns(dbMaxIdleConns)
	db.SetConnMaxLifetime(dbConnMaxLife)

	ctx, cancel := context.WithTimeout(context.Background(), connProbeTimeout)
	defer cancel()

	if pingErr := db.PingContext(ctx); pingErr != nil {
		if closeErr := db.Close(); closeErr != nil {
			pingErr = errors.Join(pingErr, fmt.Errorf("close database connection: %w", closeErr))
		}
		return nil, fmt.Errorf("ping database: %w", pingErr)
	}

	if cfg.Logger != nil {
		cfg.Logger.Info("database connected",
			"host", cfg.DBConfig.Host,
			"port", cfg.DBConfig.Port,
			"database", cfg.DBConfig.Name,
		)
	}

	return db, nil
}

// postgresDSN renders the connection string. Credentials pass through
// url.UserPassword so special characters stay intact.
func postgresDSN(cfg config.DBConfig) string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Path:     "/" + cfg.Name,
		RawQuery: url.Values{"sslmode": []string{cfg.SSLMode}}.Encode(),
	}
	return u.String()
}

// ConnectRedis connects using whichever topology the configuration selects
// and verifies the client with a bounded ping.
//
//nolint:ireturn // returning redis.UniversalClient lets us pick single, sentinel, or cluster clients at runtime.
func ConnectRedis(cfg DatabaseConfig) (redis.UniversalClient, error) {
	client, desc, err := newRedisClient(cfg.RedisConfig)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), connProbeTimeout)
	defer cancel()

	if pingErr := client.Ping(ctx).Err(); pingErr != nil {
		if closeErr := client.Close(); closeErr != nil {
			pingErr = errors.Join(pingErr, fmt.Errorf("close redis client: %w", closeErr))
		}
		return nil, fmt.Errorf("ping redis: %w", pingErr)
	}

	if cfg.Logger != nil {
		cfg.Logger.Info("redis connected", "addr", redactRedisAddr(desc))
	}

	return client, nil
}

// newRedisClient builds the client plus a loggable description of where it
// points. Cluster wins over sentinel when both flags are set.
//
//nolint:ireturn // returning redis.UniversalClient keeps client selection flexible.
func newRedisClient(cfg config.RedisConfig) (redis.UniversalClient, string, error) {
	switch {
	case cfg.UseCluster:
		seed, err := resolveClusterSeed(cfg)
		if err != nil {
			return nil, "", err
		}
		client := redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:     seed.addrs,
			Username:  seed.username,
			Password:  seed.password,
			TLSConfig: seed.tls,
		})
		return client, "cluster:" + strings.Join(seed.addrs, ","), nil

	case cfg.UseSentinel:
		sentinels := trimNonEmpty(cfg.SentinelNodes)
		if len(sentinels) == 0 {
			return nil, "", errors.New("redis sentinel mode needs at least one sentinel node")
		}
		client := redis.NewFailoverClient(&redis.FailoverOptions{
			MasterName:       cfg.SentinelMasterName,
			SentinelAddrs:    sentinels,
			Password:         cfg.Password,
			SentinelPassword: cfg.SentinelPassword,
			DB:               0,
		})
		return client, "sentinel:" + cfg.SentinelMasterName, nil

	default:
		uri := strings.TrimSpace(cfg.URI)
		if uri == "" {
			return nil, "", errors.New("redis configuration needs a URI")
		}
		if isRedisURL(uri) {
			opt, err := redis.ParseURL(uri)
			if err != nil {
				return nil, "", fmt.Errorf("parse redis url: %w", err)
			}
			return redis.NewClient(opt), opt.Addr, nil
		}
		return redis.NewClient(&redis.Options{Addr: uri, Password: cfg.Password, DB: 0}), uri, nil
	}
}

// clusterSeed is the resolved set of cluster bootstrap parameters.
type clusterSeed struct {
	addrs    []string
	username string
	password string
	tls      *tls.Config
}

// resolveClusterSeed prefers the explicit node list; with none configured it
// falls back to the single URI, which may be a bare host:port or a
// redis:// URL carrying credentials and TLS.
func resolveClusterSeed(cfg config.RedisConfig) (clusterSeed, error) {
	seed := clusterSeed{
		addrs:    trimNonEmpty(cfg.ClusterNodes),
		password: cfg.Password,
	}
	if len(seed.addrs) > 0 {
		return seed, nil
	}

	uri := strings.TrimSpace(cfg.URI)
	switch {
	case uri == "":
		// Nothing to fall back to.
	case !isRedisURL(uri):
		seed.addrs = []string{uri}
	default:
		opt, err := redis.ParseURL(uri)
		if err != nil {
			return clusterSeed{}, fmt.Errorf("parse redis cluster url: %w", err)
		}
		seed.addrs = []string{opt.Addr}
		seed.username = opt.Username
		seed.tls = opt.TLSConfig
		if opt.Password != "" {
			seed.password = opt.Password
		}
	}

	if len(seed.addrs) == 0 {
		return clusterSeed{}, errors.New("redis cluster mode needs at least one node address")
	}
	return seed, nil
}

// redactRedisAddr strips credentials from a connection description before it
// reaches the logs.
func redactRedisAddr(desc string) string {
	if u, err := url.Parse(desc); err == nil && u.User != nil {
		u.User = url.User("*")
		return u.Redacted()
	}
	if i := strings.LastIndex(desc, "@"); i >= 0 {
		return desc[i+1:]
	}
	return desc
}

func trimNonEmpty(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func isRedisURL(value string) bool {
	return strings.HasPrefix(value, "redis://") || strings.HasPrefix(value, "rediss://")
}

// RunMigrations applies pending schema migrations.
func RunMigrations(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	if err := data.RunMigrations(ctx, db); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	if logger != nil {
		logger.InfoContext(ctx, "database migrations completed")
	}

	return nil
}
