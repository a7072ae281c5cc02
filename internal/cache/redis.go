// Package cache provides the Redis-backed invalidation adapter used by the
// catalog service. Invalidation is best effort: a failed delete is logged and
// the stale entry expires on its own TTL.
package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// keyPrefix namespaces catalog entries in a shared Redis instance.
const keyPrefix = "catalog:"

// invalidateTimeout bounds each delete so a slow Redis never stalls a write
// path that has already committed.
const invalidateTimeout = 500 * time.Millisecond

// Invalidator deletes cached catalog entries by scope key.
type Invalidator struct {
	lg  *zap.Logger
	rdb *redis.Client
}

// NewInvalidator creates an Invalidator over the given Redis client.
func NewInvalidator(lg *zap.Logger, rdb *redis.Client) *Invalidator {
	return &Invalidator{lg: lg, rdb: rdb}
}

// Invalidate removes the cache entry for the scope. Errors are logged, never
// surfaced: a completed catalog write must not fail on cache trouble.
func (i *Invalidator) Invalidate(ctx context.Context, scope string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), invalidateTimeout)
	defer cancel()

	if err := i.rdb.Del(ctx, keyPrefix+scope).Err(); err != nil {
		i.lg.Warn("Cache invalidation failed",
			zap.String("scope", scope),
			zap.Error(err),
		)
	}
}

// Ping verifies connectivity to the Redis instance.
func (i *Invalidator) Ping(ctx context.Context) error {
	return i.rdb.Ping(ctx).Err()
}
