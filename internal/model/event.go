// Package model holds the domain types shared between the biz and data
// layers.
package model

import "encoding/json"

// Domain event types fanned out to webhook subscribers.
const (
	EventMemberCheckedIn  = "member.checked_in"
	EventPaymentOverdue   = "payment.overdue"
	EventPaymentCollected = "payment.collected"
	EventSurveyCompleted  = "survey.completed"
	EventClassReplacement = "class.replacement_offered"
	EventMemberInactive   = "member.inactive"
)

// KnownEventTypes is the closed set of dispatchable event types.
var KnownEventTypes = map[string]bool{
	EventMemberCheckedIn:  true,
	EventPaymentOverdue:   true,
	EventPaymentCollected: true,
	EventSurveyCompleted:  true,
	EventClassReplacement: true,
	EventMemberInactive:   true,
}

// WebhookEnvelope is the wire format POSTed to subscribers. Timestamp is
// recomputed on every delivery attempt, so the envelope (and therefore its
// signature) differs between attempts even though Data never changes.
type WebhookEnvelope struct {
	Event     string          `json:"event"`
	Timestamp string          `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}
