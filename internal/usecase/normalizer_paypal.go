package usecase

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/pagebound/payment-service/internal/domain/entity"
	"github.com/pagebound/payment-service/internal/domain/provider"
)

// Minimal views of the PayPal resource shapes this service consumes.
// Amount values arrive as decimal strings ("12.00") and are converted to
// minor units on parse.
type paypalAmount struct {
	Value        string `json:"value"`
	CurrencyCode string `json:"currency_code"`
}

type paypalItem struct {
	SKU        string       `json:"sku"`
	Name       string       `json:"name"`
	UnitAmount paypalAmount `json:"unit_amount"`
	Quantity   string       `json:"quantity"`
}

type paypalPurchaseUnit struct {
	CustomID string       `json:"custom_id"`
	Items    []paypalItem `json:"items"`
	Amount   paypalAmount `json:"amount"`
}

type paypalOrder struct {
	ID            string               `json:"id"`
	Status        string               `json:"status"`
	PurchaseUnits []paypalPurchaseUnit `json:"purchase_units"`
}

type paypalSubscription struct {
	ID          string `json:"id"`
	PlanID      string `json:"plan_id"`
	CustomID    string `json:"custom_id"`
	Subscriber  struct {
		PayerID string `json:"payer_id"`
	} `json:"subscriber"`
	BillingInfo struct {
		NextBillingTime   time.Time `json:"next_billing_time"`
		LastPayment       struct {
			Time time.Time `json:"time"`
		} `json:"last_payment"`
	} `json:"billing_info"`
}

type paypalCapture struct {
	ID     string       `json:"id"`
	Status string       `json:"status"`
	Amount paypalAmount `json:"amount"`
	SupplementaryData struct {
		RelatedIDs struct {
			OrderID string `json:"order_id"`
		} `json:"related_ids"`
	} `json:"supplementary_data"`
}

type paypalDispute struct {
	DisputeID string `json:"dispute_id"`
	Reason    string `json:"reason"`
	Status    string `json:"status"`
	DisputedTransactions []struct {
		SellerTransactionID string `json:"seller_transaction_id"`
	} `json:"disputed_transactions"`
	DisputeAmount paypalAmount `json:"dispute_amount"`
}

// normalizePayPal maps a verified PayPal event to the internal schema
func (n *Normalizer) normalizePayPal(raw *provider.RawEvent) (*Normalized, error) {
	base := entity.NormalizedEvent{
		Gateway:        entity.GatewayPayPal,
		GatewayEventID: raw.ID,
		OccurredAt:     raw.OccurredAt,
	}

	switch raw.Type {
	case "CHECKOUT.ORDER.COMPLETED":
		var order paypalOrder
		if err := json.Unmarshal(raw.Data, &order); err != nil {
			return nil, fmt.Errorf("failed to parse order: %w", err)
		}
		base.Kind = entity.EventPurchaseCompleted
		base.Purchase = purchaseFromPayPalOrder(&order)
		return &Normalized{Event: &base}, nil

	case "BILLING.SUBSCRIPTION.ACTIVATED", "BILLING.SUBSCRIPTION.UPDATED",
		"BILLING.SUBSCRIPTION.CANCELLED", "BILLING.SUBSCRIPTION.EXPIRED":
		var sub paypalSubscription
		if err := json.Unmarshal(raw.Data, &sub); err != nil {
			return nil, fmt.Errorf("failed to parse subscription: %w", err)
		}
		switch raw.Type {
		case "BILLING.SUBSCRIPTION.ACTIVATED":
			base.Kind = entity.EventSubscriptionCreated
		case "BILLING.SUBSCRIPTION.EXPIRED":
			// The final period has actually ended; this is the event that
			// deletes the record
			base.Kind = entity.EventSubscriptionCancelled
		default:
			// CANCELLED only requests cancel-at-period-end; UPDATED and
			// CANCELLED both leave the record in place
			base.Kind = entity.EventSubscriptionUpdated
		}
		base.Subscription = subscriptionFromPayPal(&sub, raw.Type)
		return &Normalized{Event: &base}, nil

	case "PAYMENT.CAPTURE.REFUNDED":
		var capture paypalCapture
		if err := json.Unmarshal(raw.Data, &capture); err != nil {
			return nil, fmt.Errorf("failed to parse capture: %w", err)
		}
		orderID := capture.SupplementaryData.RelatedIDs.OrderID
		if orderID == "" {
			orderID = capture.ID
		}
		base.Kind = entity.EventRefundIssued
		base.Refund = &entity.RefundPayload{
			OrderID: orderID,
			Status:  string(entity.RefundStatusRefunded),
			Amount:  minorUnits(capture.Amount.Value),
		}
		return &Normalized{Event: &base}, nil

	case "CUSTOMER.DISPUTE.CREATED", "CUSTOMER.DISPUTE.RESOLVED":
		var dispute paypalDispute
		if err := json.Unmarshal(raw.Data, &dispute); err != nil {
			return nil, fmt.Errorf("failed to parse dispute: %w", err)
		}
		orderID := dispute.DisputeID
		if len(dispute.DisputedTransactions) > 0 && dispute.DisputedTransactions[0].SellerTransactionID != "" {
			orderID = dispute.DisputedTransactions[0].SellerTransactionID
		}
		if raw.Type == "CUSTOMER.DISPUTE.CREATED" {
			base.Kind = entity.EventDisputeOpened
			base.Refund = &entity.RefundPayload{
				OrderID: orderID,
				Status:  string(entity.RefundStatusDisputeOpened),
				Reason:  dispute.Reason,
				Amount:  minorUnits(dispute.DisputeAmount.Value),
			}
		} else {
			base.Kind = entity.EventDisputeClosed
			base.Refund = &entity.RefundPayload{
				OrderID: orderID,
				Status:  string(entity.RefundStatusDisputeClosed),
				Reason:  dispute.Status,
				Amount:  minorUnits(dispute.DisputeAmount.Value),
			}
		}
		return &Normalized{Event: &base}, nil

	default:
		n.logger.Debug("Unhandled PayPal event type",
			zap.String("type", raw.Type),
			zap.String("event_id", raw.ID))
		return ignored("unhandled paypal event type: " + raw.Type), nil
	}
}

func purchaseFromPayPalOrder(order *paypalOrder) *entity.PurchasePayload {
	payload := &entity.PurchasePayload{OrderID: order.ID}

	for _, unit := range order.PurchaseUnits {
		if payload.BoughtBy == "" {
			payload.BoughtBy = unit.CustomID
		}
		payload.Total += minorUnits(unit.Amount.Value)
		for _, item := range unit.Items {
			qty := 1
			if parsed, err := decimal.NewFromString(item.Quantity); err == nil {
				qty = int(parsed.IntPart())
			}
			payload.Items = append(payload.Items, entity.PurchaseItem{
				ProductID: item.SKU,
				Name:      item.Name,
				UnitPrice: minorUnits(item.UnitAmount.Value),
				Quantity:  qty,
			})
		}
	}

	return payload
}

func subscriptionFromPayPal(sub *paypalSubscription, eventType string) *entity.SubscriptionPayload {
	payload := &entity.SubscriptionPayload{
		ExternalID:  sub.ID,
		CustomerID:  sub.Subscriber.PayerID,
		OwnerID:     sub.CustomID,
		PriceID:     sub.PlanID,
		PeriodStart: sub.BillingInfo.LastPayment.Time,
		PeriodEnd:   sub.BillingInfo.NextBillingTime,
		CancelAtEnd: eventType == "BILLING.SUBSCRIPTION.CANCELLED",
		PeriodEnded: eventType == "BILLING.SUBSCRIPTION.EXPIRED",
	}
	return payload
}

// minorUnits converts a gateway decimal string ("12.00") to minor units.
// Malformed values collapse to zero rather than failing the event.
func minorUnits(value string) int64 {
	if value == "" {
		return 0
	}
	parsed, err := decimal.NewFromString(value)
	if err != nil {
		return 0
	}
	return parsed.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}
