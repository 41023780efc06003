package errors

import "errors"

var (
	// ErrCouponNotFound indicates that the coupon code does not exist
	ErrCouponNotFound = errors.New("coupon not found")

	// ErrCouponExpired indicates that the coupon is past its expiry or has
	// no redemptions left
	ErrCouponExpired = errors.New("coupon expired or redemption limit reached")

	// ErrCouponBelowMinimum indicates that the cart subtotal is below the
	// coupon's stated minimum
	ErrCouponBelowMinimum = errors.New("cart subtotal below coupon minimum")

	// ErrDiscountPinned indicates that a discount result is already pinned
	// to the session and must be removed before recomputation
	ErrDiscountPinned = errors.New("discount already applied to session")
)
