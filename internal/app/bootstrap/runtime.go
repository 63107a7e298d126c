package bootstrap

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/asperus/agenda/internal/changefeed"
	appconfig "github.com/asperus/agenda/internal/config"
	"github.com/asperus/agenda/internal/observability/metrics"
	"github.com/asperus/agenda/internal/reservations"
	"github.com/asperus/agenda/internal/stores"
	"github.com/asperus/agenda/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// BuildPostgresPool opens the reservation database. It returns nil, nil when
// the in-memory store is selected or no DATABASE_URL is set.
func BuildPostgresPool(ctx context.Context, cfg *appconfig.Config) (*pgxpool.Pool, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if cfg.UseMemoryStore || strings.TrimSpace(cfg.DatabaseURL) == "" {
		return nil, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("bootstrap: ping postgres: %w", err)
	}
	return pool, nil
}

// BuildStoreRepository picks the store directory backend: Postgres when a pool
// is given, in-memory otherwise, fronted by a Redis cache when Redis is up.
func BuildStoreRepository(pool *pgxpool.Pool, redisClient *redis.Client, cfg *appconfig.Config, logger *logging.Logger, seed ...stores.Store) stores.Repository {
	if logger == nil {
		logger = logging.Default()
	}
	var repo stores.Repository
	if pool != nil {
		repo = stores.NewPostgresRepository(pool)
	} else {
		repo = stores.NewInMemoryRepository(seed...)
	}
	if redisClient != nil && cfg != nil && cfg.StoreCacheTTL > 0 {
		logger.Info("store directory cache enabled", "ttl", cfg.StoreCacheTTL)
		return stores.NewCachedRepository(repo, redisClient, cfg.StoreCacheTTL, logger)
	}
	return repo
}

// BuildLedger returns the reservation ledger and whether it writes change
// events to the outbox itself.
func BuildLedger(pool *pgxpool.Pool) (reservations.Ledger, bool) {
	if pool != nil {
		return reservations.NewPostgresLedger(pool), true
	}
	return reservations.NewInMemoryLedger(), false
}

// BuildBroker fans change events across processes through Redis when it is
// available and falls back to an in-process hub.
func BuildBroker(redisClient *redis.Client, cfg *appconfig.Config, m *metrics.BookingMetrics, logger *logging.Logger) changefeed.Broker {
	if logger == nil {
		logger = logging.Default()
	}
	if redisClient == nil {
		logger.Info("change feed using in-process hub")
		return changefeed.NewHub(logger).WithMetrics(m)
	}
	channel := ""
	if cfg != nil {
		channel = cfg.ChangeFeedChannel
	}
	logger.Info("change feed using redis pub/sub", "channel", channel)
	return changefeed.NewRedisBroker(redisClient, channel, logger).WithMetrics(m)
}
