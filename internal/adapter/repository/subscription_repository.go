package repository

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pagebound/payment-service/internal/domain/entity"
	"github.com/pagebound/payment-service/internal/domain/model"
	"github.com/pagebound/payment-service/internal/domain/repository"
)

type subscriptionRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewSubscriptionRepository creates a new subscription repository
func NewSubscriptionRepository(db *gorm.DB, logger *zap.Logger) repository.SubscriptionRepository {
	return &subscriptionRepository{
		db:     db,
		logger: logger,
	}
}

// GetByOwner retrieves the owner's active subscription
func (r *subscriptionRepository) GetByOwner(ctx context.Context, ownerID string) (*entity.SubscriptionRecord, error) {
	var sub model.Subscription

	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		First(&sub).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logger.Error("Failed to get subscription by owner",
			zap.String("owner_id", ownerID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}

	return r.modelToEntity(&sub), nil
}

// GetByExternalID retrieves a subscription by gateway subscription id
func (r *subscriptionRepository) GetByExternalID(ctx context.Context, externalID string) (*entity.SubscriptionRecord, error) {
	var sub model.Subscription

	err := r.db.WithContext(ctx).
		Where("external_id = ?", externalID).
		First(&sub).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logger.Error("Failed to get subscription by external ID",
			zap.String("external_id", externalID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}

	return r.modelToEntity(&sub), nil
}

// Replace upserts the record keyed by owner id. The ON CONFLICT update is
// a single statement, so readers see the old row or the new one, never a
// half-applied mix.
func (r *subscriptionRepository) Replace(ctx context.Context, record *entity.SubscriptionRecord) error {
	m := r.entityToModel(record)

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "owner_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"provider", "external_id", "gifted_by", "price_id", "product_id",
				"period_start", "period_end", "cancel_at_period_end", "updated_at",
			}),
		}).
		Create(m).Error

	if err != nil {
		r.logger.Error("Failed to replace subscription",
			zap.String("owner_id", record.OwnerID),
			zap.String("external_id", record.ExternalID),
			zap.Error(err))
		return fmt.Errorf("failed to replace subscription: %w", err)
	}

	return nil
}

// SetCancelAtPeriodEnd flips the two-phase cancellation flag
func (r *subscriptionRepository) SetCancelAtPeriodEnd(ctx context.Context, externalID string, cancel bool) error {
	result := r.db.WithContext(ctx).
		Model(&model.Subscription{}).
		Where("external_id = ?", externalID).
		Update("cancel_at_period_end", cancel)

	if result.Error != nil {
		r.logger.Error("Failed to set cancel flag",
			zap.String("external_id", externalID),
			zap.Error(result.Error))
		return fmt.Errorf("failed to set cancel flag: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("subscription not found: %s", externalID)
	}

	return nil
}

// DeleteByExternalID removes the record once the final period has ended.
// Deleting an already absent row is a no-op so replayed events stay safe.
func (r *subscriptionRepository) DeleteByExternalID(ctx context.Context, externalID string) error {
	err := r.db.WithContext(ctx).
		Where("external_id = ?", externalID).
		Delete(&model.Subscription{}).Error

	if err != nil {
		r.logger.Error("Failed to delete subscription",
			zap.String("external_id", externalID),
			zap.Error(err))
		return fmt.Errorf("failed to delete subscription: %w", err)
	}

	return nil
}

// modelToEntity converts database model to domain entity
func (r *subscriptionRepository) modelToEntity(m *model.Subscription) *entity.SubscriptionRecord {
	if m == nil {
		return nil
	}

	e := &entity.SubscriptionRecord{
		Provider:          entity.Gateway(m.Provider),
		ExternalID:        m.ExternalID,
		OwnerID:           m.OwnerID,
		PriceID:           m.PriceID,
		ProductID:         m.ProductID,
		PeriodStart:       m.PeriodStart,
		PeriodEnd:         m.PeriodEnd,
		CancelAtPeriodEnd: m.CancelAtPeriodEnd,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
	if m.GiftedBy != nil {
		e.GiftedBy = *m.GiftedBy
	}

	return e
}

// entityToModel converts domain entity to database model
func (r *subscriptionRepository) entityToModel(e *entity.SubscriptionRecord) *model.Subscription {
	if e == nil {
		return nil
	}

	m := &model.Subscription{
		OwnerID:           e.OwnerID,
		Provider:          string(e.Provider),
		ExternalID:        e.ExternalID,
		PriceID:           e.PriceID,
		ProductID:         e.ProductID,
		PeriodStart:       e.PeriodStart,
		PeriodEnd:         e.PeriodEnd,
		CancelAtPeriodEnd: e.CancelAtPeriodEnd,
		UpdatedAt:         e.UpdatedAt,
	}
	if e.GiftedBy != "" {
		m.GiftedBy = &e.GiftedBy
	}

	return m
}
