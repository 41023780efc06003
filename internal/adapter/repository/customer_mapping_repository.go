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

type customerMappingRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewCustomerMappingRepository creates a new customer mapping repository
func NewCustomerMappingRepository(db *gorm.DB, logger *zap.Logger) repository.CustomerMappingRepository {
	return &customerMappingRepository{
		db:     db,
		logger: logger,
	}
}

// GetByOwner retrieves the mapping for an owner on a gateway
func (r *customerMappingRepository) GetByOwner(ctx context.Context, gateway entity.Gateway, ownerID string) (*entity.CustomerMapping, error) {
	var mapping model.CustomerMapping

	err := r.db.WithContext(ctx).
		Where("gateway = ? AND owner_id = ?", string(gateway), ownerID).
		First(&mapping).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logger.Error("Failed to get customer mapping by owner",
			zap.String("gateway", string(gateway)),
			zap.String("owner_id", ownerID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get customer mapping: %w", err)
	}

	return r.modelToEntity(&mapping), nil
}

// GetByGatewayCustomerID resolves a gateway customer id back to an owner
func (r *customerMappingRepository) GetByGatewayCustomerID(ctx context.Context, gateway entity.Gateway, customerID string) (*entity.CustomerMapping, error) {
	var mapping model.CustomerMapping

	err := r.db.WithContext(ctx).
		Where("gateway = ? AND gateway_customer_id = ?", string(gateway), customerID).
		First(&mapping).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logger.Error("Failed to get customer mapping by customer ID",
			zap.String("gateway", string(gateway)),
			zap.String("customer_id", customerID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get customer mapping: %w", err)
	}

	return r.modelToEntity(&mapping), nil
}

// InsertIfAbsent writes the mapping unless one exists for the (gateway,
// owner) pair. A conflicting insert loses to the earlier writer and the
// stored row is re-read, so concurrent checkouts converge on one gateway
// customer per owner.
func (r *customerMappingRepository) InsertIfAbsent(ctx context.Context, mapping *entity.CustomerMapping) (*entity.CustomerMapping, error) {
	m := r.entityToModel(mapping)

	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(m)

	if result.Error != nil {
		r.logger.Error("Failed to insert customer mapping",
			zap.String("gateway", string(mapping.Gateway)),
			zap.String("owner_id", mapping.OwnerID),
			zap.Error(result.Error))
		return nil, fmt.Errorf("failed to insert customer mapping: %w", result.Error)
	}

	if result.RowsAffected > 0 {
		return r.modelToEntity(m), nil
	}

	existing, err := r.GetByOwner(ctx, mapping.Gateway, mapping.OwnerID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, fmt.Errorf("customer mapping vanished after conflicting insert")
	}
	return existing, nil
}

// modelToEntity converts database model to domain entity
func (r *customerMappingRepository) modelToEntity(m *model.CustomerMapping) *entity.CustomerMapping {
	if m == nil {
		return nil
	}
	return &entity.CustomerMapping{
		ID:                m.ID,
		Gateway:           entity.Gateway(m.Gateway),
		GatewayCustomerID: m.GatewayCustomerID,
		OwnerID:           m.OwnerID,
		Email:             m.Email,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}

// entityToModel converts domain entity to database model
func (r *customerMappingRepository) entityToModel(e *entity.CustomerMapping) *model.CustomerMapping {
	if e == nil {
		return nil
	}
	return &model.CustomerMapping{
		ID:                e.ID,
		Gateway:           string(e.Gateway),
		GatewayCustomerID: e.GatewayCustomerID,
		OwnerID:           e.OwnerID,
		Email:             e.Email,
	}
}
