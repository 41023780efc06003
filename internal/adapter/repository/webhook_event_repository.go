package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pagebound/payment-service/internal/domain/entity"
	"github.com/pagebound/payment-service/internal/domain/model"
	"github.com/pagebound/payment-service/internal/domain/repository"
)

type webhookEventRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewWebhookEventRepository creates a new webhook event audit repository
func NewWebhookEventRepository(db *gorm.DB, logger *zap.Logger) repository.EventAuditRepository {
	return &webhookEventRepository{
		db:     db,
		logger: logger,
	}
}

// SaveEvent records a delivery; replayed deliveries hit the unique event
// id and become a no-op
func (r *webhookEventRepository) SaveEvent(ctx context.Context, gateway entity.Gateway, eventID, eventType string, data json.RawMessage) error {
	var payload model.JSONB
	if len(data) > 0 {
		if err := json.Unmarshal(data, &payload); err != nil {
			// Non-object payloads are stored wrapped rather than rejected
			payload = model.JSONB{"raw": string(data)}
		}
	}

	event := &model.WebhookEvent{
		Gateway:   string(gateway),
		EventID:   eventID,
		EventType: eventType,
		Status:    model.WebhookStatusPending,
		Data:      payload,
	}

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(event).Error

	if err != nil {
		r.logger.Error("Failed to save webhook event",
			zap.String("event_id", eventID),
			zap.Error(err))
		return fmt.Errorf("failed to save webhook event: %w", err)
	}

	return nil
}

// MarkProcessed marks the delivery as fully handled
func (r *webhookEventRepository) MarkProcessed(ctx context.Context, eventID string) error {
	return r.setStatus(ctx, eventID, model.WebhookStatusCompleted, nil)
}

// MarkIgnored marks the delivery as carrying no domain meaning
func (r *webhookEventRepository) MarkIgnored(ctx context.Context, eventID, reason string) error {
	return r.setStatus(ctx, eventID, model.WebhookStatusIgnored, &reason)
}

// MarkFailed records a processing failure for later replay
func (r *webhookEventRepository) MarkFailed(ctx context.Context, eventID string, cause error) error {
	msg := cause.Error()
	return r.setStatus(ctx, eventID, model.WebhookStatusFailed, &msg)
}

func (r *webhookEventRepository) setStatus(ctx context.Context, eventID string, status model.WebhookStatus, detail *string) error {
	now := time.Now()
	updates := map[string]interface{}{
		"status":       status,
		"processed_at": &now,
	}
	if detail != nil {
		updates["last_error"] = detail
	}

	err := r.db.WithContext(ctx).
		Model(&model.WebhookEvent{}).
		Where("event_id = ?", eventID).
		Updates(updates).Error

	if err != nil {
		r.logger.Error("Failed to update webhook event status",
			zap.String("event_id", eventID),
			zap.String("status", string(status)),
			zap.Error(err))
		return fmt.Errorf("failed to update webhook event status: %w", err)
	}

	return nil
}
