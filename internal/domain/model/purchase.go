package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pagebound/payment-service/internal/domain/entity"
)

// PurchaseItems stores the item snapshot of a purchase as JSONB
type PurchaseItems []entity.PurchaseItem

// Value implements driver.Valuer interface
func (p PurchaseItems) Value() (driver.Value, error) {
	if p == nil {
		return json.Marshal([]entity.PurchaseItem{})
	}
	return json.Marshal([]entity.PurchaseItem(p))
}

// Scan implements sql.Scanner interface
func (p *PurchaseItems) Scan(src interface{}) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, p)
	case string:
		return json.Unmarshal([]byte(v), p)
	default:
		return fmt.Errorf("unsupported type for purchase items: %T", src)
	}
}

// Purchase is one ledger row, keyed by the gateway's order/invoice id
type Purchase struct {
	ID           string        `gorm:"primaryKey;size:128" json:"id"`
	Gateway      string        `gorm:"not null;size:16;index" json:"gateway"`
	BoughtBy     string        `gorm:"not null;size:64;index" json:"bought_by"`
	GiftFor      *string       `gorm:"size:64" json:"gift_for,omitempty"`
	IsGift       bool          `gorm:"not null;default:false" json:"is_gift"`
	Items        PurchaseItems `gorm:"type:jsonb;not null" json:"items"`
	Total        int64         `gorm:"not null" json:"total"`
	PurchaseTime time.Time     `gorm:"not null" json:"purchase_time"`
	RefundStatus *string       `gorm:"size:32" json:"refund_status,omitempty"`
	CreatedAt    time.Time     `gorm:"default:now()" json:"created_at"`
}

// TableName specifies the table name for GORM
func (Purchase) TableName() string {
	return "purchases"
}
