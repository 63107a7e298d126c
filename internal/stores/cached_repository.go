package stores

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/asperus/agenda/pkg/logging"
)

const listCacheKey = "stores:list"

// CachedRepository caches the directory listing in Redis in front of another
// repository. Redis failures are logged and the call falls through.
type CachedRepository struct {
	next   Repository
	redis  *redis.Client
	ttl    time.Duration
	logger *logging.Logger
	tracer trace.Tracer
}

// NewCachedRepository wraps next with a Redis list cache.
func NewCachedRepository(next Repository, client *redis.Client, ttl time.Duration, logger *logging.Logger) *CachedRepository {
	if next == nil {
		panic("stores: next repository required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedRepository{
		next:   next,
		redis:  client,
		ttl:    ttl,
		logger: logger,
		tracer: otel.Tracer("agenda.internal.stores.cache"),
	}
}

// WithTracer overrides the tracer, mainly for tests.
func (r *CachedRepository) WithTracer(tracer trace.Tracer) *CachedRepository {
	if tracer != nil {
		r.tracer = tracer
	}
	return r
}

func (r *CachedRepository) List(ctx context.Context) ([]Store, error) {
	ctx, span := r.tracer.Start(ctx, "stores.list_cached")
	defer span.End()

	if r.redis != nil {
		data, err := r.redis.Get(ctx, listCacheKey).Bytes()
		switch {
		case err == nil:
			var cached []Store
			if jsonErr := json.Unmarshal(data, &cached); jsonErr == nil {
				span.SetAttributes(attribute.Bool("agenda.cache_hit", true))
				return cached, nil
			}
			r.logger.Warn("stores: discarding unreadable cache entry")
		case !errors.Is(err, redis.Nil):
			r.logger.Warn("stores: cache read failed", "error", err)
		}
	}

	span.SetAttributes(attribute.Bool("agenda.cache_hit", false))
	list, err := r.next.List(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if r.redis != nil {
		if data, err := json.Marshal(list); err == nil {
			if err := r.redis.Set(ctx, listCacheKey, data, r.ttl).Err(); err != nil {
				r.logger.Warn("stores: cache write failed", "error", err)
			}
		}
	}
	return list, nil
}

func (r *CachedRepository) Get(ctx context.Context, id string) (*Store, error) {
	return r.next.Get(ctx, id)
}

func (r *CachedRepository) Upsert(ctx context.Context, store *Store) error {
	if err := r.next.Upsert(ctx, store); err != nil {
		return err
	}
	r.Invalidate(ctx)
	return nil
}

// Invalidate drops the cached listing.
func (r *CachedRepository) Invalidate(ctx context.Context) {
	if r.redis == nil {
		return
	}
	if err := r.redis.Del(ctx, listCacheKey).Err(); err != nil {
		r.logger.Warn("stores: cache invalidate failed", "error", err)
	}
}
