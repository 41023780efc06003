package model

import "time"

// Plan is a locally cached gateway product/price pair
type Plan struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Gateway    string    `gorm:"not null;size:16;uniqueIndex:ux_gateway_product_price,priority:1" json:"gateway"`
	ProductID  string    `gorm:"not null;size:128;uniqueIndex:ux_gateway_product_price,priority:2" json:"product_id"`
	PriceID    string    `gorm:"not null;size:128;uniqueIndex:ux_gateway_product_price,priority:3" json:"price_id"`
	Name       string    `gorm:"size:255" json:"name"`
	UnitAmount int64     `gorm:"not null" json:"unit_amount"`
	Interval   string    `gorm:"size:16" json:"interval"`
	CreatedAt  time.Time `gorm:"default:now()" json:"created_at"`
	UpdatedAt  time.Time `gorm:"default:now()" json:"updated_at"`
}

// TableName specifies the table name for GORM
func (Plan) TableName() string {
	return "plans"
}
