package service

import (
	"context"

	"GymPulse/internal/biz"

	"github.com/go-kratos/kratos/v2/log"
)

// BreakerStatusReply lists every known circuit breaker and its state.
type BreakerStatusReply struct {
	Breakers []biz.BreakerStatus `json:"breakers"`
}

// StatusService exposes operational state for admin inspection.
type StatusService struct {
	breakers *biz.BreakerRegistry
	logger   *log.Helper
}

// NewStatusService creates a new StatusService instance.
func NewStatusService(breakers *biz.BreakerRegistry, logger log.Logger) *StatusService {
	return &StatusService{
		breakers: breakers,
		logger:   log.NewHelper(logger),
	}
}

// CircuitBreakers returns a snapshot of the breaker registry.
func (s *StatusService) CircuitBreakers(ctx context.Context) (*BreakerStatusReply, error) {
	statuses := s.breakers.Status()
	if statuses == nil {
		statuses = []biz.BreakerStatus{}
	}
	return &BreakerStatusReply{Breakers: statuses}, nil
}
