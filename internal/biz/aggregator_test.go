package biz

import (
	"context"
	"testing"
	"time"

	pkgerrors "GymPulse/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingAlerter captures alert invocations.
type recordingAlerter struct {
	calls []alertCall
}

type alertCall struct {
	severity string
	kind     pkgerrors.Kind
	message  string
	count    int
}

func (a *recordingAlerter) Alert(_ context.Context, severity string, kind pkgerrors.Kind, message string, count int) {
	a.calls = append(a.calls, alertCall{severity: severity, kind: kind, message: message, count: count})
}

func newTestAggregator(t *testing.T) (*ErrorAggregator, *fakeClock, *recordingAlerter) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	alerter := &recordingAlerter{}
	a := NewErrorAggregator(testResilienceConf(), alerter, testLogger())
	a.now = clock.now
	return a, clock, alerter
}

func TestShouldReport_WindowDeduplication(t *testing.T) {
	a, clock, _ := newTestAggregator(t)

	// First occurrence always reports.
	report, aggregated := a.ShouldReport(pkgerrors.KindNetwork, "dial tcp: timeout")
	assert.True(t, report)
	assert.Equal(t, 0, aggregated)

	// Second occurrence inside the window is suppressed.
	report, _ = a.ShouldReport(pkgerrors.KindNetwork, "dial tcp: timeout")
	assert.False(t, report)

	// After the window elapses the next occurrence reports again and
	// carries the suppressed count.
	clock.advance(61 * time.Second)
	report, aggregated = a.ShouldReport(pkgerrors.KindNetwork, "dial tcp: timeout")
	assert.True(t, report)
	assert.GreaterOrEqual(t, aggregated, 2)
}

func TestShouldReport_DistinctMessagesAreIndependent(t *testing.T) {
	a, _, _ := newTestAggregator(t)

	report, _ := a.ShouldReport(pkgerrors.KindStorage, "deadlock found")
	assert.True(t, report)

	report, _ = a.ShouldReport(pkgerrors.KindStorage, "connection lost")
	assert.True(t, report)

	report, _ = a.ShouldReport(pkgerrors.KindNetwork, "deadlock found")
	assert.True(t, report)
}

func TestEscalationLevel(t *testing.T) {
	a, _, _ := newTestAggregator(t)

	assert.Equal(t, SeverityCritical, a.EscalationLevel(pkgerrors.KindSystem, 0))
	assert.Equal(t, SeverityCritical, a.EscalationLevel(pkgerrors.KindNetwork, 11))
	assert.Equal(t, SeverityHigh, a.EscalationLevel(pkgerrors.KindStorage, 0))
	assert.Equal(t, SeverityHigh, a.EscalationLevel(pkgerrors.KindDependency, 0))
	assert.Equal(t, SeverityMedium, a.EscalationLevel(pkgerrors.KindNetwork, 0))
	assert.Equal(t, SeverityMedium, a.EscalationLevel(pkgerrors.KindValidation, 0))
	assert.Equal(t, SeverityMedium, a.EscalationLevel(pkgerrors.KindAuth, 0))
	assert.Equal(t, SeverityLow, a.EscalationLevel(pkgerrors.KindBusiness, 0))
}

func TestObserve_AlertsOnlyCritical(t *testing.T) {
	a, _, alerter := newTestAggregator(t)

	a.Observe(context.Background(), pkgerrors.New(pkgerrors.KindStorage, "db down"))
	assert.Empty(t, alerter.calls)

	a.Observe(context.Background(), pkgerrors.New(pkgerrors.KindSystem, "panic recovered"))
	require.Len(t, alerter.calls, 1)
	assert.Equal(t, "CRITICAL", alerter.calls[0].severity)
	assert.Equal(t, pkgerrors.KindSystem, alerter.calls[0].kind)
}

func TestObserve_ErrorStormEscalatesToCritical(t *testing.T) {
	a, clock, alerter := newTestAggregator(t)

	// First report, then a storm of suppressed duplicates.
	a.Observe(context.Background(), pkgerrors.New(pkgerrors.KindNetwork, "dial tcp: refused"))
	for i := 0; i < 15; i++ {
		a.Observe(context.Background(), pkgerrors.New(pkgerrors.KindNetwork, "dial tcp: refused"))
	}
	assert.Empty(t, alerter.calls)

	// The re-report after the window carries aggregated > criticalCount.
	clock.advance(61 * time.Second)
	a.Observe(context.Background(), pkgerrors.New(pkgerrors.KindNetwork, "dial tcp: refused"))

	require.Len(t, alerter.calls, 1)
	assert.Equal(t, "CRITICAL", alerter.calls[0].severity)
	assert.Greater(t, alerter.calls[0].count, 10)
}

func TestObserve_NilError(t *testing.T) {
	a, _, alerter := newTestAggregator(t)

	a.Observe(context.Background(), nil)
	assert.Empty(t, alerter.calls)
}

func TestSweep_EvictsStaleRecords(t *testing.T) {
	a, clock, _ := newTestAggregator(t)

	a.ShouldReport(pkgerrors.KindNetwork, "stale error")
	clock.advance(100 * time.Second)
	a.ShouldReport(pkgerrors.KindNetwork, "fresh error")

	// Window is 60s; "stale error" is untouched for >120s after advancing.
	clock.advance(30 * time.Second)
	evicted := a.Sweep()
	assert.Equal(t, 1, evicted)

	// The fresh record survives and still deduplicates.
	report, _ := a.ShouldReport(pkgerrors.KindNetwork, "fresh error")
	assert.False(t, report)

	// The evicted record reports as new again.
	report, aggregated := a.ShouldReport(pkgerrors.KindNetwork, "stale error")
	assert.True(t, report)
	assert.Equal(t, 0, aggregated)
}
