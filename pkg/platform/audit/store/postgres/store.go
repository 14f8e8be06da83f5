// Package postgres writes audit events to an outbox table. A relay ships
// outbox rows to Kafka; Kafka is the source of truth for audit events.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	audit "crowdgate/pkg/platform/audit"
)

type Store struct {
	db *sql.DB
}

// New creates a PostgreSQL audit store that writes to the outbox.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// outboxPayload is the JSON structure eventually published to Kafka. Field
// names match audit.Event for deserialization by consumers.
type outboxPayload struct {
	ID        string `json:"ID"`
	Category  string `json:"Category"`
	Action    string `json:"Action"`
	Timestamp string `json:"Timestamp"`
	Sender    string `json:"Sender,omitempty"`
	Buyer     string `json:"Buyer,omitempty"`
	Value     string `json:"Value,omitempty"`
	Tokens    string `json:"Tokens,omitempty"`
	ActorID   string `json:"ActorID,omitempty"`
	RequestID string `json:"RequestID,omitempty"`
}

// Append writes an audit event to the outbox table.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	payload := outboxPayload{
		ID:        event.ID.String(),
		Category:  string(event.Category()),
		Action:    string(event.Action),
		Timestamp: event.Timestamp.Format(time.RFC3339Nano),
		Sender:    event.Sender,
		Buyer:     event.Buyer,
		Value:     event.Value,
		Tokens:    event.Tokens,
		ActorID:   event.ActorID,
		RequestID: event.RequestID,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	const q = `
		INSERT INTO audit_outbox (id, category, action, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)`
	if _, err := s.db.ExecContext(ctx, q,
		event.ID, string(event.Category()), string(event.Action), body, event.Timestamp,
	); err != nil {
		return fmt.Errorf("insert audit outbox row: %w", err)
	}
	return nil
}
