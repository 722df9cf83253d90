package store

import (
	"database/sql"
	"fmt"

	"github.com/tradylo/billing/internal/model"
)

type WebhookEventStore struct {
	db *sql.DB
}

func NewWebhookEventStore(db *sql.DB) *WebhookEventStore {
	return &WebhookEventStore{db: db}
}

// Insert appends an event log row. Redelivered events (same Stripe event id)
// are ignored rather than duplicated. Callers treat failures as best-effort.
func (s *WebhookEventStore) Insert(stripeEventID *string, eventType, payload string) error {
	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO webhook_events (stripe_event_id, type, payload) VALUES (?, ?, ?)`,
		stripeEventID, eventType, payload,
	)
	if err != nil {
		return fmt.Errorf("insert webhook event: %w", err)
	}
	return nil
}

// ListByType returns the newest log rows of the given type. Debug surface.
func (s *WebhookEventStore) ListByType(eventType string, limit int) ([]*model.WebhookEvent, error) {
	rows, err := s.db.Query(
		`SELECT id, stripe_event_id, type, payload, received_at FROM webhook_events WHERE type = ? ORDER BY id DESC LIMIT ?`,
		eventType, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list webhook events: %w", err)
	}
	defer rows.Close()

	var events []*model.WebhookEvent
	for rows.Next() {
		var e model.WebhookEvent
		var eventID sql.NullString
		if err := rows.Scan(&e.ID, &eventID, &e.Type, &e.Payload, &e.ReceivedAt); err != nil {
			return nil, fmt.Errorf("scan webhook event: %w", err)
		}
		if eventID.Valid {
			e.StripeEventID = &eventID.String
		}
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate webhook events: %w", err)
	}
	return events, nil
}
