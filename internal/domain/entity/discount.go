package entity

import "time"

// ItemSavings is the per-product outcome of a discount computation.
// All values are minor currency units.
type ItemSavings struct {
	OriginalAmount   int64 `json:"original_amount"`
	DiscountedAmount int64 `json:"discounted_amount"`
	Savings          int64 `json:"savings"`
}

// DiscountResult is the full outcome of running the discount calculator
// over a cart. Invariant: sum of per-item savings plus the threshold
// savings equals TotalSavings.
type DiscountResult struct {
	Code             string                 `json:"code,omitempty"`
	PerItem          map[string]ItemSavings `json:"per_item"`
	ThresholdApplied bool                   `json:"threshold_applied"`
	ThresholdSavings int64                  `json:"threshold_savings"`
	TotalSavings     int64                  `json:"total_savings"`
	Subtotal         int64                  `json:"subtotal"`
	ComputedAt       time.Time              `json:"computed_at"`
}

// ItemSavingsTotal sums the per-item savings entries
func (d *DiscountResult) ItemSavingsTotal() int64 {
	var total int64
	for _, s := range d.PerItem {
		total += s.Savings
	}
	return total
}

// Coupon is a redeemable discount code. ProductIDs, when non-empty,
// restricts the coupon to matching cart lines.
type Coupon struct {
	Code           string    `json:"code"`
	PercentOff     int       `json:"percent_off"`
	ProductIDs     []string  `json:"product_ids,omitempty"`
	MinSubtotal    int64     `json:"min_subtotal"`
	MaxRedemptions int       `json:"max_redemptions"`
	Redeemed       int       `json:"redeemed"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	GatewayCouponID string   `json:"gateway_coupon_id,omitempty"`
}

// Expired reports whether the coupon can no longer be redeemed
func (c *Coupon) Expired(now time.Time) bool {
	if c.ExpiresAt != nil && now.After(*c.ExpiresAt) {
		return true
	}
	return c.MaxRedemptions > 0 && c.Redeemed >= c.MaxRedemptions
}

// Restricted reports whether the coupon only applies to specific products
func (c *Coupon) Restricted() bool {
	return len(c.ProductIDs) > 0
}

// AppliesTo reports whether the coupon covers the given product
func (c *Coupon) AppliesTo(productID string) bool {
	if !c.Restricted() {
		return true
	}
	for _, id := range c.ProductIDs {
		if id == productID {
			return true
		}
	}
	return false
}
