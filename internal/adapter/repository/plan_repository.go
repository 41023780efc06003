package repository

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pagebound/payment-service/internal/domain/entity"
	"github.com/pagebound/payment-service/internal/domain/model"
	"github.com/pagebound/payment-service/internal/domain/repository"
)

type planRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewPlanRepository creates a new plan repository
func NewPlanRepository(db *gorm.DB, logger *zap.Logger) repository.PlanRepository {
	return &planRepository{
		db:     db,
		logger: logger,
	}
}

// Upsert writes or refreshes a plan keyed by (gateway, product, price)
func (r *planRepository) Upsert(ctx context.Context, plan *entity.Plan) error {
	m := r.entityToModel(plan)

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "gateway"}, {Name: "product_id"}, {Name: "price_id"},
			},
			DoUpdates: clause.AssignmentColumns([]string{"name", "unit_amount", "interval", "updated_at"}),
		}).
		Create(m).Error

	if err != nil {
		r.logger.Error("Failed to upsert plan",
			zap.String("gateway", string(plan.Gateway)),
			zap.String("product_id", plan.ProductID),
			zap.String("price_id", plan.PriceID),
			zap.Error(err))
		return fmt.Errorf("failed to upsert plan: %w", err)
	}

	return nil
}

// ListByGateway returns all cached plans for a gateway
func (r *planRepository) ListByGateway(ctx context.Context, gateway entity.Gateway) ([]*entity.Plan, error) {
	var plans []model.Plan

	err := r.db.WithContext(ctx).
		Where("gateway = ?", string(gateway)).
		Order("product_id, unit_amount").
		Find(&plans).Error

	if err != nil {
		r.logger.Error("Failed to list plans",
			zap.String("gateway", string(gateway)),
			zap.Error(err))
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}

	entities := make([]*entity.Plan, len(plans))
	for i := range plans {
		entities[i] = r.modelToEntity(&plans[i])
	}

	return entities, nil
}

// modelToEntity converts database model to domain entity
func (r *planRepository) modelToEntity(m *model.Plan) *entity.Plan {
	if m == nil {
		return nil
	}
	return &entity.Plan{
		ProductID:  m.ProductID,
		PriceID:    m.PriceID,
		Name:       m.Name,
		UnitAmount: m.UnitAmount,
		Interval:   m.Interval,
		Gateway:    entity.Gateway(m.Gateway),
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}

// entityToModel converts domain entity to database model
func (r *planRepository) entityToModel(e *entity.Plan) *model.Plan {
	if e == nil {
		return nil
	}
	return &model.Plan{
		Gateway:    string(e.Gateway),
		ProductID:  e.ProductID,
		PriceID:    e.PriceID,
		Name:       e.Name,
		UnitAmount: e.UnitAmount,
		Interval:   e.Interval,
	}
}
