package data

import (
	"context"

	pkgerrors "GymPulse/pkg/errors"

	"github.com/go-kratos/kratos/v2/log"
)

// LogAlerter satisfies biz.Alerter by writing critical escalations to the
// structured log. A paging integration can replace it behind the same
// interface.
type LogAlerter struct {
	logger *log.Helper
}

// NewLogAlerter creates a log-backed alerter.
func NewLogAlerter(logger log.Logger) *LogAlerter {
	return &LogAlerter{logger: log.NewHelper(logger)}
}

// Alert emits one alert line per escalation.
func (a *LogAlerter) Alert(ctx context.Context, severity string, kind pkgerrors.Kind, message string, count int) {
	a.logger.WithContext(ctx).Errorw(
		"msg", "error escalation",
		"severity", severity,
		"kind", kind.String(),
		"error", message,
		"count", count,
	)
}
