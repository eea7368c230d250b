package model

import (
	"encoding/json"
	"errors"
	"time"
)

// DeliveryStatus is the lifecycle state of a webhook delivery.
type DeliveryStatus string

const (
	// DeliveryStatusPending means attempts are still possible.
	DeliveryStatusPending DeliveryStatus = "pending"
	// DeliveryStatusSuccess means a subscriber acknowledged with a 2xx.
	DeliveryStatusSuccess DeliveryStatus = "success"
	// DeliveryStatusFailed means the attempt ceiling was exhausted.
	DeliveryStatusFailed DeliveryStatus = "failed"
)

// ErrDeliveryTerminal is returned when an attempt tries to mutate a delivery
// that already reached success or failed. Terminal records are never
// re-mutated; a re-delivered queue job for one is simply dropped.
var ErrDeliveryTerminal = errors.New("webhook delivery already terminal")

// Subscription is a registered webhook target. The registry that manages
// these is an external collaborator; this core only reads them.
type Subscription struct {
	ID          string
	ClientID    string
	TargetURL   string
	Secret      string
	Events      []string
	MaxAttempts int
	Timeout     time.Duration
	Active      bool
}

// SubscribesTo reports whether the subscription's event set contains event.
func (s *Subscription) SubscribesTo(event string) bool {
	for _, e := range s.Events {
		if e == event {
			return true
		}
	}
	return false
}

// Delivery is one tracked attempt-sequence of sending a single event to a
// single subscription. The payload snapshot is captured at trigger time and
// never changes afterwards.
type Delivery struct {
	ID             string
	SubscriptionID string
	Event          string
	Payload        json.RawMessage
	Status         DeliveryStatus
	Attempts       int
	MaxAttempts    int
	LastStatusCode int
	LastError      string
	LastSignature  string
	LatencyMs      int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
	DeliveredAt    *time.Time
}

// AttemptResult captures the outcome of one delivery attempt.
type AttemptResult struct {
	Attempt    int
	StatusCode int
	Error      string
	Signature  string
	Latency    time.Duration
}

// DeliveryJob is the queued unit of work for one delivery attempt. It
// carries everything the worker needs so an attempt requires no subscription
// lookup. Attempt counts attempts already made; the queue re-enqueues with
// backoff until MaxAttempts.
type DeliveryJob struct {
	DeliveryID     string          `json:"delivery_id"`
	SubscriptionID string          `json:"subscription_id"`
	Event          string          `json:"event"`
	Payload        json.RawMessage `json:"payload"`
	TargetURL      string          `json:"target_url"`
	Secret         string          `json:"secret"`
	Timeout        time.Duration   `json:"timeout"`
	Attempt        int             `json:"attempt"`
	MaxAttempts    int             `json:"max_attempts"`
}
