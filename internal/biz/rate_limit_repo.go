package biz

import (
	"context"
	"time"
)

// RateLimitRepo defines the interface to the shared counter store used by
// the rate limiter. Following the DDD layering, the interface is defined in
// the biz layer and implemented in the data layer (data.RateLimitRepo).
//
// The store must provide atomic increment with an expiring key so counts
// are totally ordered across process instances and the limiter never
// undercounts.
type RateLimitRepo interface {
	// IncrementWindow atomically increments the counter for
	// (tier, identifier, windowIdx) and returns the post-increment value.
	// The key expires after expiry, which always exceeds the window length
	// to tolerate boundary overlap.
	IncrementWindow(ctx context.Context, tier, identifier string, windowIdx int64, expiry time.Duration) (int64, error)
}
