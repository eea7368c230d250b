package biz

import (
	"context"
	"sync"
	"time"

	"GymPulse/internal/conf"
	pkgerrors "GymPulse/pkg/errors"

	"github.com/go-kratos/kratos/v2/log"
)

// Severity is the escalation level assigned to a reported error. It decides
// which channel/urgency the external alerting collaborator uses; the
// aggregator itself never sends alerts.
type Severity int

const (
	// SeverityLow covers pure business-rule violations.
	SeverityLow Severity = iota
	// SeverityMedium covers transient network and validation errors.
	SeverityMedium
	// SeverityHigh covers storage and external-dependency failures.
	SeverityHigh
	// SeverityCritical covers system failures and error storms.
	SeverityCritical
)

// String implements fmt.Stringer.
func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "LOW"
	case SeverityMedium:
		return "MEDIUM"
	case SeverityHigh:
		return "HIGH"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// Alerter is the write-only alerting collaborator, invoked only for
// CRITICAL escalations.
type Alerter interface {
	Alert(ctx context.Context, severity string, kind pkgerrors.Kind, message string, count int)
}

// errorRecord tracks occurrences of one (kind, message) pair.
type errorRecord struct {
	count     int
	firstSeen time.Time
	lastSeen  time.Time
}

// ErrorAggregator deduplicates repeated failures within a rolling window so
// the same error is not re-reported on every occurrence. Records live in a
// registry owned by the composition root; the periodic sweep that bounds
// memory is driven by the application cron, not a free-floating timer.
type ErrorAggregator struct {
	mu      sync.Mutex
	records map[string]*errorRecord

	window        time.Duration
	criticalCount int
	alerter       Alerter
	logger        *log.Helper

	now func() time.Time
}

// NewErrorAggregator creates an error aggregator from configuration.
func NewErrorAggregator(c *conf.Resilience, alerter Alerter, logger log.Logger) *ErrorAggregator {
	return &ErrorAggregator{
		records:       make(map[string]*errorRecord),
		window:        c.Aggregation.Window.AsDuration(),
		criticalCount: int(c.Aggregation.CriticalCount),
		alerter:       alerter,
		logger:        log.NewHelper(logger),
		now:           time.Now,
	}
}

// ShouldReport decides whether an observed error should be surfaced.
//
// The first occurrence of a (kind, message) pair always reports. Subsequent
// occurrences within the aggregation window are suppressed but counted.
// Once the window has elapsed since first-seen, the next occurrence reports
// again, carrying the suppressed count as aggregated, and the window
// restarts.
func (a *ErrorAggregator) ShouldReport(kind pkgerrors.Kind, message string) (report bool, aggregated int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	key := kind.String() + ":" + message

	rec, ok := a.records[key]
	if !ok {
		a.records[key] = &errorRecord{count: 1, firstSeen: now, lastSeen: now}
		return true, 0
	}

	rec.lastSeen = now
	if now.Sub(rec.firstSeen) > a.window {
		aggregated = rec.count
		rec.count = 1
		rec.firstSeen = now
		return true, aggregated
	}

	rec.count++
	return false, 0
}

// EscalationLevel maps an error kind and its aggregated count to a severity.
// System failures and error storms (aggregated count above the configured
// threshold within one window) are CRITICAL.
func (a *ErrorAggregator) EscalationLevel(kind pkgerrors.Kind, aggregated int) Severity {
	if kind == pkgerrors.KindSystem || aggregated > a.criticalCount {
		return SeverityCritical
	}

	switch kind {
	case pkgerrors.KindStorage, pkgerrors.KindDependency:
		return SeverityHigh
	case pkgerrors.KindNetwork, pkgerrors.KindValidation, pkgerrors.KindAuth:
		return SeverityMedium
	case pkgerrors.KindBusiness:
		return SeverityLow
	default:
		return SeverityHigh
	}
}

// Observe classifies err, applies window deduplication, logs the report at
// a level matching its severity and forwards CRITICAL escalations to the
// alerting collaborator. The aggregator never raises.
func (a *ErrorAggregator) Observe(ctx context.Context, err error) {
	if err == nil {
		return
	}

	kind := pkgerrors.KindOf(err)
	message := err.Error()

	report, aggregated := a.ShouldReport(kind, message)
	if !report {
		return
	}

	severity := a.EscalationLevel(kind, aggregated)
	switch severity {
	case SeverityCritical, SeverityHigh:
		a.logger.Errorw("error reported",
			"kind", kind.String(),
			"severity", severity.String(),
			"aggregated", aggregated,
			"error", message)
	case SeverityMedium:
		a.logger.Warnw("error reported",
			"kind", kind.String(),
			"severity", severity.String(),
			"aggregated", aggregated,
			"error", message)
	default:
		a.logger.Infow("error reported",
			"kind", kind.String(),
			"severity", severity.String(),
			"aggregated", aggregated,
			"error", message)
	}

	if severity == SeverityCritical && a.alerter != nil {
		a.alerter.Alert(ctx, severity.String(), kind, message, aggregated)
	}
}

// Sweep evicts records untouched for more than twice the aggregation
// window, bounding memory. It returns the number of evicted records and is
// invoked periodically by the application cron.
func (a *ErrorAggregator) Sweep() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	cutoff := a.now().Add(-2 * a.window)
	evicted := 0
	for key, rec := range a.records {
		if rec.lastSeen.Before(cutoff) {
			delete(a.records, key)
			evicted++
		}
	}

	if evicted > 0 {
		a.logger.Debugw("error records swept", "evicted", evicted)
	}
	return evicted
}
