package model

import "time"

// CustomerMapping links an owner to their gateway-side customer record.
// One row per (gateway, owner); the unique index backs the idempotent
// create-if-absent path in the checkout builder.
type CustomerMapping struct {
	ID                int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Gateway           string    `gorm:"not null;size:16;uniqueIndex:ux_gateway_owner,priority:1" json:"gateway"`
	OwnerID           string    `gorm:"not null;size:64;uniqueIndex:ux_gateway_owner,priority:2" json:"owner_id"`
	GatewayCustomerID string    `gorm:"not null;size:128;index" json:"gateway_customer_id"`
	Email             string    `gorm:"size:255" json:"email"`
	CreatedAt         time.Time `gorm:"default:now()" json:"created_at"`
	UpdatedAt         time.Time `gorm:"default:now()" json:"updated_at"`
}

// TableName specifies the table name for GORM
func (CustomerMapping) TableName() string {
	return "customer_mappings"
}
