package data

import (
	"context"
	"fmt"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/redis/go-redis/v9"
)

// RateLimitRepo implements biz.RateLimitRepo on redis. Counters use a
// fixed-window scheme keyed by (tier, identifier, window index); INCR makes
// the count atomic and totally ordered across process instances.
type RateLimitRepo struct {
	rdb    *redis.Client
	logger *log.Helper
}

// NewRateLimitRepo creates a rate limit repository.
func NewRateLimitRepo(d *Data, logger log.Logger) *RateLimitRepo {
	return &RateLimitRepo{
		rdb:    d.redisClient,
		logger: log.NewHelper(logger),
	}
}

// IncrementWindow atomically increments the window counter and returns the
// post-increment value. Expiration is set on the first increment only; the
// caller passes an expiry longer than the window so the counter survives
// boundary overlap.
func (r *RateLimitRepo) IncrementWindow(ctx context.Context, tier, identifier string, windowIdx int64, expiry time.Duration) (int64, error) {
	if r.rdb == nil {
		return 0, fmt.Errorf("redis client is nil")
	}

	key := rateLimitKey(tier, identifier, windowIdx)

	count, err := r.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment %s: %w", key, err)
	}

	if count == 1 {
		if err := r.rdb.Expire(ctx, key, expiry).Err(); err != nil {
			// The counter is still incremented; the key will linger until
			// the next window's first increment sets a TTL.
			r.logger.Warnf("failed to set expiry on %s: %v", key, err)
		}
	}

	return count, nil
}

// rateLimitKey generates the counter key.
// Format: rate:{tier}:{identifier}:{windowIdx}
func rateLimitKey(tier, identifier string, windowIdx int64) string {
	return fmt.Sprintf("rate:%s:%s:%d", tier, identifier, windowIdx)
}
