package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/pagebound/payment-service/internal/domain/entity"
	domainerrors "github.com/pagebound/payment-service/internal/domain/errors"
	"github.com/pagebound/payment-service/internal/domain/repository"
)

const (
	// ThresholdMinSubtotal is the subtotal (minor units) at which the
	// automatic threshold discount kicks in
	ThresholdMinSubtotal int64 = 2000

	// ThresholdPercent is the automatic discount applied above the threshold.
	// Stacks with coupon discounts.
	ThresholdPercent = 10

	// AnnualPriceFactor prices an annual line as 12 months at a 10%
	// multi-month discount
	AnnualPriceFactor = 10.8

	// discountPinTTL bounds how long a computed result stays pinned to a
	// checkout session
	discountPinTTL = time.Hour
)

// DiscountService computes cart discounts and pins the result to the
// checkout session so display-time and charge-time figures cannot diverge.
type DiscountService struct {
	couponRepo repository.CouponRepository
	store      repository.KeyedStore
	logger     *zap.Logger
}

// NewDiscountService creates a new discount service
func NewDiscountService(couponRepo repository.CouponRepository, store repository.KeyedStore, logger *zap.Logger) *DiscountService {
	return &DiscountService{
		couponRepo: couponRepo,
		store:      store,
		logger:     logger,
	}
}

// LineAmount prices a single cart line in minor units. Annual lines are
// twelve months at the fixed multi-month discount; everything else is
// unit price times quantity. Rounding happens here, at the point of
// computation, so repeated runs are stable.
func LineAmount(line *entity.CartLine) int64 {
	if line.Recurrence != nil && line.Recurrence.Interval == entity.IntervalYear {
		return decimal.NewFromInt(line.UnitAmount).
			Mul(decimal.NewFromFloat(AnnualPriceFactor)).
			Round(0).IntPart()
	}
	return line.UnitAmount * int64(line.Quantity)
}

// Subtotal sums the line amounts of a cart
func Subtotal(cart *entity.Cart) int64 {
	var subtotal int64
	for i := range cart.Lines {
		subtotal += LineAmount(&cart.Lines[i])
	}
	return subtotal
}

func percentOf(amount int64, percent int) int64 {
	return decimal.NewFromInt(amount).
		Mul(decimal.NewFromInt(int64(percent))).
		Div(decimal.NewFromInt(100)).
		Round(0).IntPart()
}

// Compute runs the discount calculation for a cart and optional coupon.
// Pure over its inputs: same cart, coupon and clock give the same result.
func (s *DiscountService) Compute(ctx context.Context, cart *entity.Cart, code string) (*entity.DiscountResult, error) {
	subtotal := Subtotal(cart)

	result := &entity.DiscountResult{
		PerItem:    make(map[string]entity.ItemSavings),
		Subtotal:   subtotal,
		ComputedAt: time.Now(),
	}

	if subtotal >= ThresholdMinSubtotal {
		result.ThresholdApplied = true
		result.ThresholdSavings = percentOf(subtotal, ThresholdPercent)
	}

	if code != "" {
		coupon, err := s.couponRepo.GetByCode(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("failed to look up coupon: %w", err)
		}
		if coupon == nil {
			return nil, domainerrors.ErrCouponNotFound
		}
		if coupon.Expired(time.Now()) {
			return nil, domainerrors.ErrCouponExpired
		}
		if subtotal < coupon.MinSubtotal {
			return nil, domainerrors.ErrCouponBelowMinimum
		}

		result.Code = coupon.Code
		for i := range cart.Lines {
			line := &cart.Lines[i]
			if !coupon.AppliesTo(line.ProductID) {
				// Restricted product absent from the restriction list is
				// skipped, not an error
				continue
			}
			original := LineAmount(line)
			savings := percentOf(original, coupon.PercentOff)
			result.PerItem[line.ProductID] = entity.ItemSavings{
				OriginalAmount:   original,
				DiscountedAmount: original - savings,
				Savings:          savings,
			}
		}
	}

	result.TotalSavings = result.ItemSavingsTotal() + result.ThresholdSavings

	return result, nil
}

// ApplyToSession computes the discount and pins it under the session key.
// A result already pinned cannot be recomputed; callers must remove it
// first. This is what keeps checkout-time and display-time figures equal.
func (s *DiscountService) ApplyToSession(ctx context.Context, sessionKey string, cart *entity.Cart, code string) (*entity.DiscountResult, error) {
	result, err := s.Compute(ctx, cart, code)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to encode discount result: %w", err)
	}

	created, err := s.store.SetIfAbsent(ctx, discountKey(sessionKey), string(payload), discountPinTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to pin discount result: %w", err)
	}
	if !created {
		return nil, domainerrors.ErrDiscountPinned
	}

	s.logger.Info("Discount pinned to session",
		zap.String("session_key", sessionKey),
		zap.String("coupon", code),
		zap.Int64("total_savings", result.TotalSavings))

	return result, nil
}

// GetPinned retrieves the discount result pinned to a session. Returns
// (nil, nil) when no result is pinned.
func (s *DiscountService) GetPinned(ctx context.Context, sessionKey string) (*entity.DiscountResult, error) {
	raw, err := s.store.Get(ctx, discountKey(sessionKey))
	if err != nil {
		if err == repository.ErrKeyNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read pinned discount: %w", err)
	}

	var result entity.DiscountResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return nil, fmt.Errorf("failed to decode pinned discount: %w", err)
	}
	return &result, nil
}

// RemoveFromSession unpins the discount so a new coupon can be applied
func (s *DiscountService) RemoveFromSession(ctx context.Context, sessionKey string) error {
	if err := s.store.Delete(ctx, discountKey(sessionKey)); err != nil {
		return fmt.Errorf("failed to unpin discount: %w", err)
	}
	return nil
}

func discountKey(sessionKey string) string {
	return "discount:" + sessionKey
}
