package service

import (
	"context"
	"encoding/json"

	"GymPulse/internal/biz"

	"github.com/go-kratos/kratos/v2/log"
)

// TriggerEventRequest is the body of POST /v1/events.
type TriggerEventRequest struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// TriggerEventReply reports how many deliveries were fanned out.
type TriggerEventReply struct {
	Event    string `json:"event"`
	Enqueued int    `json:"enqueued"`
}

// EventService accepts domain events and hands them to the webhook
// pipeline.
type EventService struct {
	uc     *biz.WebhookUsecase
	logger *log.Helper
}

// NewEventService creates a new EventService instance.
func NewEventService(uc *biz.WebhookUsecase, logger log.Logger) *EventService {
	return &EventService{
		uc:     uc,
		logger: log.NewHelper(logger),
	}
}

// TriggerEvent fans an event out to its subscribers.
func (s *EventService) TriggerEvent(ctx context.Context, req *TriggerEventRequest) (*TriggerEventReply, error) {
	s.logger.Infow("msg", "TriggerEvent called", "event", req.Event)

	data := req.Data
	if len(data) == 0 {
		data = json.RawMessage("{}")
	}

	enqueued, err := s.uc.TriggerEvent(ctx, req.Event, data)
	if err != nil {
		s.logger.Errorw("msg", "failed to trigger event", "event", req.Event, "error", err)
		return nil, err
	}

	return &TriggerEventReply{
		Event:    req.Event,
		Enqueued: enqueued,
	}, nil
}
