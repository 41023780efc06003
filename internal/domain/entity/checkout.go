package entity

import "time"

// Gateway identifies which external payment processor an artifact or
// event belongs to.
type Gateway string

const (
	GatewayStripe Gateway = "stripe"
	GatewayPayPal Gateway = "paypal"
)

// CheckoutSession is the pending payment artifact created on exactly one
// gateway for one checkout attempt. Immutable after creation; gateway-side
// status changes arrive through webhooks.
type CheckoutSession struct {
	Gateway          Gateway         `json:"gateway"`
	ExternalID       string          `json:"external_id"`
	ClientSecret     string          `json:"client_secret,omitempty"`
	ApprovalURL      string          `json:"approval_url,omitempty"`
	CartSnapshot     Cart            `json:"cart_snapshot"`
	DiscountSnapshot *DiscountResult `json:"discount_snapshot,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}
