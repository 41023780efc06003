package entity

import "time"

// CustomerMapping stores the relationship between gateway customer IDs and
// owner IDs. One mapping per (gateway, owner); the create-if-absent path in
// the checkout builder keeps retries from minting duplicate gateway
// customers.
type CustomerMapping struct {
	ID                 int64     `json:"id"`
	Gateway            Gateway   `json:"gateway"`
	GatewayCustomerID  string    `json:"gateway_customer_id"`
	OwnerID            string    `json:"owner_id"`
	Email              string    `json:"email"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}
