package repository

import (
	"context"
	"encoding/json"

	"github.com/pagebound/payment-service/internal/domain/entity"
)

// EventAuditRepository keeps a durable row for every received webhook
// delivery, alongside the short-lived dedup key in the keyed store, so
// failed events can be replayed manually.
type EventAuditRepository interface {
	// SaveEvent records a delivery; a duplicate event id is a no-op
	SaveEvent(ctx context.Context, gateway entity.Gateway, eventID, eventType string, data json.RawMessage) error

	// MarkProcessed marks the delivery as fully handled
	MarkProcessed(ctx context.Context, eventID string) error

	// MarkIgnored marks the delivery as carrying no domain meaning
	MarkIgnored(ctx context.Context, eventID, reason string) error

	// MarkFailed records a processing failure for later replay
	MarkFailed(ctx context.Context, eventID string, cause error) error
}
