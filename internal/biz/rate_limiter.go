package biz

import (
	"context"
	"time"

	"GymPulse/internal/conf"

	"github.com/go-kratos/kratos/v2/log"
)

// windowGrace is how much longer than its window a counter key lives, so a
// counter is still present while requests straddle a window boundary.
const windowGrace = time.Minute

// TierConfig is one independent quota dimension (e.g. per-hour, per-day).
type TierConfig struct {
	Name   string
	Window time.Duration
	Limit  int64
}

// TierStatus is the per-tier outcome of a rate-limit check, exposed to
// callers as response metadata.
type TierStatus struct {
	Name      string
	Limit     int64
	Remaining int64
	ResetAt   time.Time
	Exceeded  bool
}

// Decision is the tagged result of a rate-limit check. Callers branch on
// Allowed instead of catching a typed error; the denial metadata travels in
// the same value.
type Decision struct {
	Allowed    bool
	Tiers      []TierStatus
	RetryAfter time.Duration
}

// RateLimiter gates inbound requests per identifier against multiple
// independent tiers backed by the shared counter store.
//
// Increments are never rolled back on denial: a denied attempt still counts
// against the window (leaky-counter semantics), so sustained abuse keeps
// failing rather than oscillating.
//
// On counter-store failure the limiter fails open and allows the request.
// This is a deliberate availability/security trade-off: a redis outage must
// not block legitimate member check-ins.
type RateLimiter struct {
	repo   RateLimitRepo
	tiers  []TierConfig
	logger *log.Helper

	now func() time.Time
}

// NewRateLimiter creates a rate limiter from configuration.
func NewRateLimiter(c *conf.RateLimit, repo RateLimitRepo, logger log.Logger) *RateLimiter {
	tiers := make([]TierConfig, 0, len(c.Tiers))
	for _, t := range c.Tiers {
		tiers = append(tiers, TierConfig{
			Name:   t.Name,
			Window: t.Window.AsDuration(),
			Limit:  t.Limit,
		})
	}

	return &RateLimiter{
		repo:   repo,
		tiers:  tiers,
		logger: log.NewHelper(logger),
		now:    time.Now,
	}
}

// Tiers returns the configured tier set.
func (l *RateLimiter) Tiers() []TierConfig {
	return l.tiers
}

// Check evaluates every tier for identifier and returns the combined
// decision. Tiers are independent; the exceeded tier with the longest wait
// until its window boundary determines RetryAfter.
func (l *RateLimiter) Check(ctx context.Context, identifier string) *Decision {
	now := l.now()
	decision := &Decision{
		Allowed: true,
		Tiers:   make([]TierStatus, 0, len(l.tiers)),
	}

	for _, tier := range l.tiers {
		windowIdx := now.Unix() / int64(tier.Window.Seconds())
		resetAt := time.Unix((windowIdx+1)*int64(tier.Window.Seconds()), 0)

		status := TierStatus{
			Name:    tier.Name,
			Limit:   tier.Limit,
			ResetAt: resetAt,
		}

		count, err := l.repo.IncrementWindow(ctx, tier.Name, identifier, windowIdx, tier.Window+windowGrace)
		if err != nil {
			// Fail open: the counter store being down must not block
			// legitimate traffic.
			l.logger.Warnw("rate limit check failed, allowing request",
				"tier", tier.Name,
				"identifier", identifier,
				"error", err)
			status.Remaining = tier.Limit
			decision.Tiers = append(decision.Tiers, status)
			continue
		}

		status.Remaining = tier.Limit - count
		if status.Remaining < 0 {
			status.Remaining = 0
		}

		if count > tier.Limit {
			status.Exceeded = true
			decision.Allowed = false

			retryAfter := resetAt.Sub(now)
			if retryAfter > decision.RetryAfter {
				decision.RetryAfter = retryAfter
			}

			l.logger.Warnw("rate limit exceeded",
				"tier", tier.Name,
				"identifier", identifier,
				"count", count,
				"limit", tier.Limit,
				"retry_after", retryAfter)
		}

		decision.Tiers = append(decision.Tiers, status)
	}

	return decision
}
