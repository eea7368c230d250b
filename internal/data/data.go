// Package data provides the data access layer: redis-backed counters and
// the delivery queue, and MySQL-backed webhook subscription/delivery
// repositories.
package data

import (
	"GymPulse/internal/conf"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/wire"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// ProviderSet is data providers.
var ProviderSet = wire.NewSet(
	NewData,
	NewRedisClient,
	NewMySQLClient,
	NewCacheClient,
	NewRateLimitRepo,
	NewSubscriptionRepo,
	NewDeliveryRepo,
	NewDeliveryQueue,
	NewLogAlerter,
)

// Data bundles the data layer clients for lifecycle management.
type Data struct {
	redisClient *redis.Client
	db          *gorm.DB
}

// NewData creates a Data instance. Redis being unavailable does not prevent
// startup: the rate limiter fails open and the queue retries, so the
// process can keep serving while the store recovers.
func NewData(_ *conf.Data, logger log.Logger, rdb *redis.Client, db *gorm.DB) (*Data, func(), error) {
	helper := log.NewHelper(logger)

	if rdb == nil {
		helper.Warn("redis client is nil, rate limiting will fail open and webhook delivery is paused")
	}

	d := &Data{
		redisClient: rdb,
		db:          db,
	}

	cleanup := func() {
		helper.Info("closing the data resources")
		// Client shutdown is handled by the cleanup functions returned by
		// NewRedisClient / NewMySQLClient.
	}

	return d, cleanup, nil
}
