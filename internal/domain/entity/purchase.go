package entity

import "time"

// RefundStatus marks the refund/dispute state attached to a purchase
type RefundStatus string

const (
	RefundStatusRefunded       RefundStatus = "refunded"
	RefundStatusDisputeOpened  RefundStatus = "dispute_opened"
	RefundStatusDisputeClosed  RefundStatus = "dispute_closed"
)

// PurchaseRecord is one ledger entry, keyed by the gateway's own order or
// invoice id. Created exactly once per id; never mutated except to attach
// a refund status.
type PurchaseRecord struct {
	ID           string         `json:"id"`
	Gateway      Gateway        `json:"gateway"`
	BoughtBy     string         `json:"bought_by"`
	GiftFor      string         `json:"gift_for,omitempty"`
	IsGift       bool           `json:"is_gift"`
	Items        []PurchaseItem `json:"items"`
	Total        int64          `json:"total"`
	PurchaseTime time.Time      `json:"purchase_time"`
	RefundStatus RefundStatus   `json:"refund_status,omitempty"`
}
