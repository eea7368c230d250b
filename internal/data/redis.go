package data

import (
	"context"
	"time"

	"GymPulse/internal/conf"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/redis/go-redis/v9"
)

// NewRedisClient creates a Redis client with connection pool configuration.
// Connection failure does not prevent application startup: the rate limiter
// degrades to fail-open and the delivery worker keeps retrying dequeues.
func NewRedisClient(c *conf.Data, logger log.Logger) (*redis.Client, func(), error) {
	helper := log.NewHelper(logger)

	if c == nil || c.Redis == nil || c.Redis.Addr == "" {
		helper.Warn("redis configuration is missing, skipping redis initialization")
		return nil, func() {}, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:            c.Redis.Addr,
		PoolSize:        100,
		MinIdleConns:    10,
		DialTimeout:     3 * time.Second,
		ReadTimeout:     c.Redis.ReadTimeout.AsDuration(),
		WriteTimeout:    c.Redis.WriteTimeout.AsDuration(),
		ConnMaxIdleTime: 5 * time.Minute,
	})

	cleanup := func() {
		helper.Info("closing redis client")
		if err := rdb.Close(); err != nil {
			helper.Errorf("failed to close redis client: %v", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		// Degraded mode: keep the client so callers can recover once the
		// store comes back.
		helper.Warnf("failed to connect to redis at %s: %v (continuing without redis)", c.Redis.Addr, err)
		return rdb, cleanup, nil
	}

	helper.Infof("connected to redis at %s", c.Redis.Addr)
	return rdb, cleanup, nil
}
