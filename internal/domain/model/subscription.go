package model

import "time"

// Subscription is the one active subscription row per owner. The unique
// index on owner_id is what makes Replace an atomic upsert.
type Subscription struct {
	ID                int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	OwnerID           string    `gorm:"not null;size:64;uniqueIndex" json:"owner_id"`
	Provider          string    `gorm:"not null;size:16" json:"provider"`
	ExternalID        string    `gorm:"not null;size:128;uniqueIndex" json:"external_id"`
	GiftedBy          *string   `gorm:"size:64" json:"gifted_by,omitempty"`
	PriceID           string    `gorm:"size:128" json:"price_id"`
	ProductID         string    `gorm:"size:128" json:"product_id"`
	PeriodStart       time.Time `gorm:"not null" json:"period_start"`
	PeriodEnd         time.Time `gorm:"not null" json:"period_end"`
	CancelAtPeriodEnd bool      `gorm:"not null;default:false" json:"cancel_at_period_end"`
	CreatedAt         time.Time `gorm:"default:now()" json:"created_at"`
	UpdatedAt         time.Time `gorm:"default:now()" json:"updated_at"`
}

// TableName specifies the table name for GORM
func (Subscription) TableName() string {
	return "subscriptions"
}
