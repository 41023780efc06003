package entity

import "time"

// Plan is a locally cached gateway product+price pair, upserted when a
// ProductCreated aggregate completes.
type Plan struct {
	ProductID  string    `json:"product_id"`
	PriceID    string    `json:"price_id"`
	Name       string    `json:"name"`
	UnitAmount int64     `json:"unit_amount"`
	Interval   string    `json:"interval,omitempty"`
	Gateway    Gateway   `json:"gateway"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
