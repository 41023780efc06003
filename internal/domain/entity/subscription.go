package entity

import "time"

// SubscriptionRecord is the one active subscription of an owner. Gifted
// subscriptions attribute the record to the recipient; GiftedBy is kept
// for audit only and carries no permissions.
type SubscriptionRecord struct {
	Provider          Gateway   `json:"provider"`
	ExternalID        string    `json:"external_id"`
	OwnerID           string    `json:"owner_id"`
	GiftedBy          string    `json:"gifted_by,omitempty"`
	PriceID           string    `json:"price_id"`
	ProductID         string    `json:"product_id"`
	PeriodStart       time.Time `json:"period_start"`
	PeriodEnd         time.Time `json:"period_end"`
	CancelAtPeriodEnd bool      `json:"cancel_at_period_end"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}
