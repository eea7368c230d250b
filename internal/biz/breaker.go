package biz

import (
	"context"
	"sort"
	"sync"
	"time"

	"GymPulse/internal/conf"
	pkgerrors "GymPulse/pkg/errors"

	"github.com/go-kratos/kratos/v2/log"
)

// BreakerState is the circuit breaker state machine state.
type BreakerState int32

const (
	// StateClosed lets calls through and counts consecutive failures.
	StateClosed BreakerState = iota
	// StateOpen fails calls fast without invoking the operation.
	StateOpen
	// StateHalfOpen lets probe calls through after the reset timeout.
	StateHalfOpen
)

// String implements fmt.Stringer.
func (s BreakerState) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// BreakerConfig defines circuit breaker behavior, shared by every breaker
// in the registry.
type BreakerConfig struct {
	FailureThreshold  int
	ResetTimeout      time.Duration
	HalfOpenSuccesses int
}

// breaker is the per-service state machine. All fields are guarded by the
// registry mutex.
type breaker struct {
	name        string
	state       BreakerState
	failures    int
	successes   int
	lastFailure time.Time
	openedAt    time.Time
}

// BreakerStatus is an introspection snapshot of one breaker.
type BreakerStatus struct {
	Service     string    `json:"service"`
	State       string    `json:"state"`
	Failures    int       `json:"failures"`
	Successes   int       `json:"successes"`
	LastFailure time.Time `json:"last_failure,omitzero"`
	OpenedAt    time.Time `json:"opened_at,omitzero"`
}

// BreakerRegistry holds one circuit breaker per logical external service,
// created lazily on first reference and kept for the process lifetime. The
// registry is owned by the composition root and passed by handle to every
// caller instead of living in a package-level global.
type BreakerRegistry struct {
	mu       sync.Mutex
	cfg      BreakerConfig
	breakers map[string]*breaker
	logger   *log.Helper

	now func() time.Time
}

// NewBreakerRegistry creates a breaker registry from configuration.
func NewBreakerRegistry(c *conf.Resilience, logger log.Logger) *BreakerRegistry {
	return &BreakerRegistry{
		cfg: BreakerConfig{
			FailureThreshold:  int(c.Breaker.FailureThreshold),
			ResetTimeout:      c.Breaker.ResetTimeout.AsDuration(),
			HalfOpenSuccesses: int(c.Breaker.HalfOpenSuccesses),
		},
		breakers: make(map[string]*breaker),
		logger:   log.NewHelper(logger),
		now:      time.Now,
	}
}

// Execute runs op gated by the breaker for service.
//
// While OPEN and before the reset timeout elapses, every call fails fast
// with *pkgerrors.BreakerOpenError without invoking op. After the timeout
// the breaker moves to HALF_OPEN and lets a probe through; the configured
// number of consecutive probe successes closes it again, while any failure
// re-opens it immediately and resets the failure clock.
func (r *BreakerRegistry) Execute(ctx context.Context, service string, op func(ctx context.Context) error) error {
	if retryAt, allowed := r.allow(service); !allowed {
		return &pkgerrors.BreakerOpenError{Service: service, RetryAt: retryAt}
	}

	err := op(ctx)
	r.record(service, err == nil)
	return err
}

// Status returns a snapshot of every breaker, sorted by service name.
func (r *BreakerRegistry) Status() []BreakerStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	statuses := make([]BreakerStatus, 0, len(r.breakers))
	for _, b := range r.breakers {
		statuses = append(statuses, BreakerStatus{
			Service:     b.name,
			State:       b.state.String(),
			Failures:    b.failures,
			Successes:   b.successes,
			LastFailure: b.lastFailure,
			OpenedAt:    b.openedAt,
		})
	}

	sort.Slice(statuses, func(i, j int) bool {
		return statuses[i].Service < statuses[j].Service
	})
	return statuses
}

// get returns the breaker for name, creating it in CLOSED on first use.
// Caller must hold r.mu.
func (r *BreakerRegistry) get(name string) *breaker {
	b, ok := r.breakers[name]
	if !ok {
		b = &breaker{name: name, state: StateClosed}
		r.breakers[name] = b
	}
	return b
}

// allow decides whether a call may proceed. It performs the OPEN->HALF_OPEN
// transition when the reset timeout has elapsed since the last failure.
func (r *BreakerRegistry) allow(service string) (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b := r.get(service)
	if b.state != StateOpen {
		return time.Time{}, true
	}

	now := r.now()
	retryAt := b.lastFailure.Add(r.cfg.ResetTimeout)
	if now.Before(retryAt) {
		return retryAt, false
	}

	b.state = StateHalfOpen
	b.successes = 0
	r.logger.Infow("circuit breaker half-open, probing",
		"service", service,
		"open_since", b.openedAt)
	return time.Time{}, true
}

// record applies the outcome of a permitted call to the state machine.
func (r *BreakerRegistry) record(service string, success bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b := r.get(service)
	now := r.now()

	if success {
		switch b.state {
		case StateHalfOpen:
			b.successes++
			if b.successes >= r.cfg.HalfOpenSuccesses {
				b.state = StateClosed
				b.failures = 0
				b.successes = 0
				r.logger.Infow("circuit breaker closed",
					"service", service,
					"open_duration", now.Sub(b.openedAt))
			}
		default:
			b.failures = 0
		}
		return
	}

	b.lastFailure = now

	switch b.state {
	case StateHalfOpen:
		// Single-strike re-open: one failed probe is enough.
		b.state = StateOpen
		b.openedAt = now
		b.successes = 0
		r.logger.Warnw("circuit breaker re-opened by failed probe",
			"service", service)
	case StateClosed:
		b.failures++
		if b.failures >= r.cfg.FailureThreshold {
			b.state = StateOpen
			b.openedAt = now
			r.logger.Errorw("circuit breaker opened",
				"service", service,
				"failures", b.failures,
				"reset_timeout", r.cfg.ResetTimeout)
		}
	case StateOpen:
		// A call admitted just before another caller's failure opened the
		// breaker; nothing further to do.
		b.failures++
	}
}
