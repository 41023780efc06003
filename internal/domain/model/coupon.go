package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// StringList stores a list of product ids as JSONB
type StringList []string

// Value implements driver.Valuer interface
func (s StringList) Value() (driver.Value, error) {
	if s == nil {
		return json.Marshal([]string{})
	}
	return json.Marshal([]string(s))
}

// Scan implements sql.Scanner interface
func (s *StringList) Scan(src interface{}) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, s)
	case string:
		return json.Unmarshal([]byte(v), s)
	default:
		return fmt.Errorf("unsupported type for string list: %T", src)
	}
}

// Coupon is a redeemable discount code row
type Coupon struct {
	Code            string     `gorm:"primaryKey;size:64" json:"code"`
	PercentOff      int        `gorm:"not null" json:"percent_off"`
	ProductIDs      StringList `gorm:"type:jsonb" json:"product_ids"`
	MinSubtotal     int64      `gorm:"not null;default:0" json:"min_subtotal"`
	MaxRedemptions  int        `gorm:"not null;default:0" json:"max_redemptions"`
	Redeemed        int        `gorm:"not null;default:0" json:"redeemed"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`
	GatewayCouponID *string    `gorm:"size:128" json:"gateway_coupon_id,omitempty"`
	CreatedAt       time.Time  `gorm:"default:now()" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"default:now()" json:"updated_at"`
}

// TableName specifies the table name for GORM
func (Coupon) TableName() string {
	return "coupons"
}
