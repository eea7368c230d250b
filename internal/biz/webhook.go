package biz

import (
	"context"
	"encoding/json"
	"time"

	"GymPulse/internal/model"
	pkgerrors "GymPulse/pkg/errors"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
)

// SubscriptionRepo reads webhook subscriptions. Subscription CRUD belongs
// to an external collaborator; this core consumes the registry read-only.
type SubscriptionRepo interface {
	// ListActiveByEvent returns every active subscription whose event set
	// contains event.
	ListActiveByEvent(ctx context.Context, event string) ([]*model.Subscription, error)

	// Get returns one subscription by id.
	Get(ctx context.Context, id string) (*model.Subscription, error)
}

// DeliveryRepo persists webhook delivery records. Implementations must
// guarantee that terminal records (success, or failed after exhausting
// attempts) are never re-mutated by a later attempt.
type DeliveryRepo interface {
	Create(ctx context.Context, d *model.Delivery) error
	Get(ctx context.Context, id string) (*model.Delivery, error)

	// RecordAttempt stores the outcome of a non-final failed attempt.
	RecordAttempt(ctx context.Context, id string, res model.AttemptResult) error

	// MarkSucceeded records the acknowledged attempt and moves the delivery
	// to its terminal success state.
	MarkSucceeded(ctx context.Context, id string, res model.AttemptResult) error

	// MarkFailed moves the delivery to its terminal failed state after the
	// attempt ceiling is exhausted.
	MarkFailed(ctx context.Context, id string, res model.AttemptResult) error

	// ListStalePending returns pending deliveries not updated since before,
	// used to requeue work lost between queue pop and completion.
	ListStalePending(ctx context.Context, before time.Time, limit int) ([]*model.Delivery, error)
}

// DeliveryQueue is the durable delayed-job mechanism consumed by the
// dispatch pipeline. It must provide at-least-once delivery of jobs; jobs
// are idempotent by delivery id.
type DeliveryQueue interface {
	// Enqueue schedules one delivery job to become due after delay.
	Enqueue(ctx context.Context, job *model.DeliveryJob, delay time.Duration) error

	// DequeueDue atomically pops up to limit jobs whose due time has passed.
	DequeueDue(ctx context.Context, limit int) ([]*model.DeliveryJob, error)

	// Contains reports whether a job for the given delivery id is queued.
	Contains(ctx context.Context, deliveryID string) (bool, error)
}

// WebhookUsecase fans domain events out to matching subscriptions and
// enqueues one delivery job per subscription.
type WebhookUsecase struct {
	subs       SubscriptionRepo
	deliveries DeliveryRepo
	queue      DeliveryQueue
	retry      *RetryExecutor
	logger     *log.Helper
}

// NewWebhookUsecase creates the webhook dispatcher.
func NewWebhookUsecase(subs SubscriptionRepo, deliveries DeliveryRepo, queue DeliveryQueue, retry *RetryExecutor, logger log.Logger) *WebhookUsecase {
	return &WebhookUsecase{
		subs:       subs,
		deliveries: deliveries,
		queue:      queue,
		retry:      retry,
		logger:     log.NewHelper(logger),
	}
}

// TriggerEvent creates one pending delivery and one queue job per active
// subscription to event. Fan-out is independent per subscription: a failure
// against one subscription is logged and must not block delivery to the
// others. Returns the number of deliveries enqueued.
func (uc *WebhookUsecase) TriggerEvent(ctx context.Context, event string, payload json.RawMessage) (int, error) {
	if !model.KnownEventTypes[event] {
		return 0, pkgerrors.New(pkgerrors.KindValidation, "unknown event type "+event)
	}

	subs, err := uc.subs.ListActiveByEvent(ctx, event)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.KindStorage, "failed to list subscriptions", err)
	}

	enqueued := 0
	for _, sub := range subs {
		delivery := &model.Delivery{
			ID:             uuid.NewString(),
			SubscriptionID: sub.ID,
			Event:          event,
			Payload:        payload,
			Status:         model.DeliveryStatusPending,
			MaxAttempts:    sub.MaxAttempts,
		}

		if err := uc.deliveries.Create(ctx, delivery); err != nil {
			uc.logger.Errorw("failed to create delivery record",
				"event", event,
				"subscription_id", sub.ID,
				"error", err)
			continue
		}

		job := &model.DeliveryJob{
			DeliveryID:     delivery.ID,
			SubscriptionID: sub.ID,
			Event:          event,
			Payload:        payload,
			TargetURL:      sub.TargetURL,
			Secret:         sub.Secret,
			Timeout:        sub.Timeout,
			MaxAttempts:    sub.MaxAttempts,
		}

		// The queue lives in the shared store; a transient enqueue failure
		// is worth a bounded retry before giving up on this subscription.
		err = uc.retry.Execute(ctx, pkgerrors.KindDependency, func(ctx context.Context) error {
			return uc.queue.Enqueue(ctx, job, 0)
		})
		if err != nil {
			uc.logger.Errorw("failed to enqueue delivery job",
				"event", event,
				"delivery_id", delivery.ID,
				"error", err)
			continue
		}

		enqueued++
	}

	uc.logger.Infow("event dispatched",
		"event", event,
		"subscriptions", len(subs),
		"enqueued", enqueued)
	return enqueued, nil
}
