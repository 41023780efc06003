package repository

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/pagebound/payment-service/internal/domain/entity"
	"github.com/pagebound/payment-service/internal/domain/model"
	"github.com/pagebound/payment-service/internal/domain/repository"
)

type couponRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewCouponRepository creates a new coupon repository
func NewCouponRepository(db *gorm.DB, logger *zap.Logger) repository.CouponRepository {
	return &couponRepository{
		db:     db,
		logger: logger,
	}
}

// GetByCode retrieves a coupon by its code
func (r *couponRepository) GetByCode(ctx context.Context, code string) (*entity.Coupon, error) {
	var coupon model.Coupon

	err := r.db.WithContext(ctx).
		Where("code = ?", code).
		First(&coupon).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logger.Error("Failed to get coupon",
			zap.String("code", code),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get coupon: %w", err)
	}

	return r.modelToEntity(&coupon), nil
}

// IncrementRedeemed bumps the redemption counter. The arithmetic update
// stays correct under concurrent checkouts.
func (r *couponRepository) IncrementRedeemed(ctx context.Context, code string) error {
	result := r.db.WithContext(ctx).
		Model(&model.Coupon{}).
		Where("code = ?", code).
		Update("redeemed", gorm.Expr("redeemed + 1"))

	if result.Error != nil {
		r.logger.Error("Failed to increment coupon redemptions",
			zap.String("code", code),
			zap.Error(result.Error))
		return fmt.Errorf("failed to increment redemptions: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("coupon not found: %s", code)
	}

	return nil
}

// modelToEntity converts database model to domain entity
func (r *couponRepository) modelToEntity(m *model.Coupon) *entity.Coupon {
	if m == nil {
		return nil
	}

	e := &entity.Coupon{
		Code:           m.Code,
		PercentOff:     m.PercentOff,
		ProductIDs:     []string(m.ProductIDs),
		MinSubtotal:    m.MinSubtotal,
		MaxRedemptions: m.MaxRedemptions,
		Redeemed:       m.Redeemed,
		ExpiresAt:      m.ExpiresAt,
	}
	if m.GatewayCouponID != nil {
		e.GatewayCouponID = *m.GatewayCouponID
	}

	return e
}
