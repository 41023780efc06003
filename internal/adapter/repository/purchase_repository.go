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

type purchaseRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewPurchaseRepository creates a new purchase repository
func NewPurchaseRepository(db *gorm.DB, logger *zap.Logger) repository.PurchaseRepository {
	return &purchaseRepository{
		db:     db,
		logger: logger,
	}
}

// InsertIfAbsent writes the ledger row unless one with the same id exists.
// ON CONFLICT DO NOTHING makes concurrent duplicate deliveries converge on
// one row; the re-read after a conflict returns what the winner stored.
func (r *purchaseRepository) InsertIfAbsent(ctx context.Context, record *entity.PurchaseRecord) (*entity.PurchaseRecord, bool, error) {
	m := r.entityToModel(record)

	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(m)

	if result.Error != nil {
		r.logger.Error("Failed to insert purchase",
			zap.String("purchase_id", record.ID),
			zap.Error(result.Error))
		return nil, false, fmt.Errorf("failed to insert purchase: %w", result.Error)
	}

	if result.RowsAffected > 0 {
		return r.modelToEntity(m), true, nil
	}

	existing, err := r.GetByID(ctx, record.ID)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		return nil, false, fmt.Errorf("purchase %s vanished after conflicting insert", record.ID)
	}
	return existing, false, nil
}

// GetByID retrieves a purchase by gateway order/invoice id
func (r *purchaseRepository) GetByID(ctx context.Context, id string) (*entity.PurchaseRecord, error) {
	var purchase model.Purchase

	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&purchase).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logger.Error("Failed to get purchase",
			zap.String("purchase_id", id),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get purchase: %w", err)
	}

	return r.modelToEntity(&purchase), nil
}

// ListByOwner returns purchases bought by or gifted to the owner, newest first
func (r *purchaseRepository) ListByOwner(ctx context.Context, ownerID string, params entity.PaginationParams) ([]*entity.PurchaseRecord, int64, error) {
	params.Validate()

	query := r.db.WithContext(ctx).
		Model(&model.Purchase{}).
		Where("bought_by = ? OR gift_for = ?", ownerID, ownerID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		r.logger.Error("Failed to count purchases",
			zap.String("owner_id", ownerID),
			zap.Error(err))
		return nil, 0, fmt.Errorf("failed to count purchases: %w", err)
	}

	var purchases []model.Purchase
	err := query.
		Order("purchase_time DESC").
		Offset(params.CalculateOffset()).
		Limit(params.Limit).
		Find(&purchases).Error

	if err != nil {
		r.logger.Error("Failed to list purchases",
			zap.String("owner_id", ownerID),
			zap.Error(err))
		return nil, 0, fmt.Errorf("failed to list purchases: %w", err)
	}

	records := make([]*entity.PurchaseRecord, len(purchases))
	for i := range purchases {
		records[i] = r.modelToEntity(&purchases[i])
	}

	return records, total, nil
}

// SetRefundStatus attaches a refund/dispute status to an existing row
func (r *purchaseRepository) SetRefundStatus(ctx context.Context, id string, status entity.RefundStatus) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&model.Purchase{}).
		Where("id = ?", id).
		Update("refund_status", string(status))

	if result.Error != nil {
		r.logger.Error("Failed to set refund status",
			zap.String("purchase_id", id),
			zap.String("status", string(status)),
			zap.Error(result.Error))
		return 0, fmt.Errorf("failed to set refund status: %w", result.Error)
	}

	return result.RowsAffected, nil
}

// modelToEntity converts database model to domain entity
func (r *purchaseRepository) modelToEntity(m *model.Purchase) *entity.PurchaseRecord {
	if m == nil {
		return nil
	}

	e := &entity.PurchaseRecord{
		ID:           m.ID,
		Gateway:      entity.Gateway(m.Gateway),
		BoughtBy:     m.BoughtBy,
		IsGift:       m.IsGift,
		Items:        []entity.PurchaseItem(m.Items),
		Total:        m.Total,
		PurchaseTime: m.PurchaseTime,
	}
	if m.GiftFor != nil {
		e.GiftFor = *m.GiftFor
	}
	if m.RefundStatus != nil {
		e.RefundStatus = entity.RefundStatus(*m.RefundStatus)
	}

	return e
}

// entityToModel converts domain entity to database model
func (r *purchaseRepository) entityToModel(e *entity.PurchaseRecord) *model.Purchase {
	if e == nil {
		return nil
	}

	m := &model.Purchase{
		ID:           e.ID,
		Gateway:      string(e.Gateway),
		BoughtBy:     e.BoughtBy,
		IsGift:       e.IsGift,
		Items:        model.PurchaseItems(e.Items),
		Total:        e.Total,
		PurchaseTime: e.PurchaseTime,
	}
	if e.GiftFor != "" {
		m.GiftFor = &e.GiftFor
	}
	if e.RefundStatus != "" {
		status := string(e.RefundStatus)
		m.RefundStatus = &status
	}

	return m
}
