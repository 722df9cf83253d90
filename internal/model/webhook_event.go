package model

import "time"

// WebhookEvent is an append-only log row for every inbound processor event,
// including rejected ones. Observability only; never read on the hot path.
type WebhookEvent struct {
	ID            int64     `json:"id"`
	StripeEventID *string   `json:"stripe_event_id"`
	Type          string    `json:"type"`
	Payload       string    `json:"payload"`
	ReceivedAt    time.Time `json:"received_at"`
}

// EventTypeInvalidSignature marks log rows for requests that failed
// signature verification and were rejected.
const EventTypeInvalidSignature = "invalid_signature"
