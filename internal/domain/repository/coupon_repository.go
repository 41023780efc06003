package repository

import (
	"context"

	"github.com/pagebound/payment-service/internal/domain/entity"
)

// CouponRepository looks up and redeems discount codes
type CouponRepository interface {
	// GetByCode retrieves a coupon by its code. Returns (nil, nil) when absent.
	GetByCode(ctx context.Context, code string) (*entity.Coupon, error)

	// IncrementRedeemed bumps the redemption counter after a successful checkout
	IncrementRedeemed(ctx context.Context, code string) error
}
