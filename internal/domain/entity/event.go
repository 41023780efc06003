package entity

import "time"

// EventKind is the internal, gateway-agnostic classification of a
// payment-related occurrence.
type EventKind string

const (
	EventPurchaseCompleted    EventKind = "purchase_completed"
	EventSubscriptionCreated  EventKind = "subscription_created"
	EventSubscriptionUpdated  EventKind = "subscription_updated"
	EventSubscriptionCancelled EventKind = "subscription_cancelled"
	EventProductCreated       EventKind = "product_created"
	EventRefundIssued         EventKind = "refund_issued"
	EventDisputeOpened        EventKind = "dispute_opened"
	EventDisputeClosed        EventKind = "dispute_closed"
)

// PurchaseItem is one line of a completed purchase as reported by a gateway
type PurchaseItem struct {
	ProductID string   `json:"product_id"`
	Name      string   `json:"name"`
	UnitPrice int64    `json:"unit_price"`
	Quantity  int      `json:"quantity"`
	Discounts []string `json:"discounts,omitempty"`
}

// PurchasePayload carries the data of a PurchaseCompleted event
type PurchasePayload struct {
	OrderID  string         `json:"order_id"`
	BoughtBy string         `json:"bought_by"`
	GiftFor  string         `json:"gift_for,omitempty"`
	Items    []PurchaseItem `json:"items"`
	Total    int64          `json:"total"`
}

// SubscriptionPayload carries the data of subscription lifecycle events
type SubscriptionPayload struct {
	ExternalID   string    `json:"external_id"`
	CustomerID   string    `json:"customer_id"`
	OwnerID      string    `json:"owner_id,omitempty"`
	GiftedBy     string    `json:"gifted_by,omitempty"`
	PriceID      string    `json:"price_id,omitempty"`
	ProductID    string    `json:"product_id,omitempty"`
	PeriodStart  time.Time `json:"period_start"`
	PeriodEnd    time.Time `json:"period_end"`
	CancelAtEnd  bool      `json:"cancel_at_end"`
	PeriodEnded  bool      `json:"period_ended"`
}

// ProductPayload carries the data of a ProductCreated event. PriceCount is
// the number of price sub-events expected before the aggregate is complete.
type ProductPayload struct {
	ProductID  string   `json:"product_id"`
	Name       string   `json:"name"`
	PriceCount int      `json:"price_count"`
	PriceIDs   []string `json:"price_ids,omitempty"`
}

// RefundPayload carries the data of refund and dispute events
type RefundPayload struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
	Reason  string `json:"reason,omitempty"`
	Amount  int64  `json:"amount,omitempty"`
}

// NormalizedEvent is the single internal schema both gateways reduce to.
// GatewayEventID is the deduplication key for retried deliveries.
type NormalizedEvent struct {
	Kind           EventKind            `json:"kind"`
	Gateway        Gateway              `json:"gateway"`
	GatewayEventID string               `json:"gateway_event_id"`
	OccurredAt     time.Time            `json:"occurred_at"`
	Purchase       *PurchasePayload     `json:"purchase,omitempty"`
	Subscription   *SubscriptionPayload `json:"subscription,omitempty"`
	Product        *ProductPayload      `json:"product,omitempty"`
	Refund         *RefundPayload       `json:"refund,omitempty"`
}
