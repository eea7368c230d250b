package biz

import (
	"context"
	"math/rand/v2"
	"time"

	"GymPulse/internal/conf"
	pkgerrors "GymPulse/pkg/errors"

	"github.com/go-kratos/kratos/v2/log"
)

// RetryPolicy is the immutable retry budget for one error kind.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// RetryExecutor wraps a single fallible operation with classified, bounded,
// jittered exponential backoff. Each error kind carries its own policy so
// budgets can differ per classification (a flaky network hop and a
// deadlocking database do not deserve the same schedule). Callers are
// responsible for supplying idempotent operations where retried effects must
// not double-apply (a payment call needs an idempotency key before it may be
// retried).
type RetryExecutor struct {
	defaults RetryPolicy
	policies map[pkgerrors.Kind]RetryPolicy
	logger   *log.Helper
}

// NewRetryExecutor creates a retry executor from configuration. Per-kind
// overrides inherit unset fields from the default policy; overrides naming
// an unknown kind are dropped (bootstrap validation rejects them anyway).
func NewRetryExecutor(c *conf.Resilience, logger log.Logger) *RetryExecutor {
	defaults := RetryPolicy{
		MaxAttempts: int(c.Retry.MaxAttempts),
		BaseDelay:   c.Retry.BaseDelay.AsDuration(),
		MaxDelay:    c.Retry.MaxDelay.AsDuration(),
	}

	policies := make(map[pkgerrors.Kind]RetryPolicy, len(c.Retry.Kinds))
	for name, ov := range c.Retry.Kinds {
		if ov == nil {
			continue
		}
		kind, ok := pkgerrors.ParseKind(name)
		if !ok {
			continue
		}

		p := defaults
		if ov.MaxAttempts > 0 {
			p.MaxAttempts = int(ov.MaxAttempts)
		}
		if d := ov.BaseDelay.AsDuration(); d > 0 {
			p.BaseDelay = d
		}
		if d := ov.MaxDelay.AsDuration(); d > 0 {
			p.MaxDelay = d
		}
		policies[kind] = p
	}

	return &RetryExecutor{
		defaults: defaults,
		policies: policies,
		logger:   log.NewHelper(logger),
	}
}

// policyFor returns the policy for kind, falling back to the defaults.
func (e *RetryExecutor) policyFor(kind pkgerrors.Kind) RetryPolicy {
	if p, ok := e.policies[kind]; ok {
		return p
	}
	return e.defaults
}

// Execute runs op under the retry policy for kind.
//
// Attempt 0 runs immediately. Before attempt k the executor waits
// min(base*2^(k-1), max) with a symmetric ±20% jitter. Non-retryable kinds
// (validation, auth, business rules) run exactly once. The last error is
// propagated unchanged so the root cause stays visible to the caller.
func (e *RetryExecutor) Execute(ctx context.Context, kind pkgerrors.Kind, op func(ctx context.Context) error) error {
	policy := e.policyFor(kind)
	attempts := policy.MaxAttempts
	if !kind.Retryable() {
		attempts = 1
	}
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := e.backoff(policy, attempt)
			e.logger.Debugw("retry backoff",
				"kind", kind.String(),
				"attempt", attempt,
				"delay", delay)

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		err := op(ctx)
		if err == nil {
			if attempt > 0 {
				e.logger.Infow("operation succeeded after retry",
					"kind", kind.String(),
					"attempt", attempt)
			}
			return nil
		}

		lastErr = err
		e.logger.Warnw("operation attempt failed",
			"kind", kind.String(),
			"attempt", attempt,
			"retryable", kind.Retryable(),
			"error", err)
	}

	return lastErr
}

// ExecuteWithBreaker combines circuit isolation with retry, breaker check
// outermost: an open breaker avoids issuing even the first retried attempt.
func (e *RetryExecutor) ExecuteWithBreaker(ctx context.Context, breakers *BreakerRegistry, service string, kind pkgerrors.Kind, op func(ctx context.Context) error) error {
	return breakers.Execute(ctx, service, func(ctx context.Context) error {
		return e.Execute(ctx, kind, op)
	})
}

// backoff returns the jittered delay before the given attempt (attempt >= 1).
func (e *RetryExecutor) backoff(policy RetryPolicy, attempt int) time.Duration {
	delay := policy.BaseDelay << (attempt - 1)
	if delay > policy.MaxDelay || delay <= 0 {
		delay = policy.MaxDelay
	}

	// Symmetric jitter of ±20% to avoid synchronized retry storms.
	jittered := float64(delay) * (0.8 + 0.4*rand.Float64())
	return time.Duration(jittered)
}
