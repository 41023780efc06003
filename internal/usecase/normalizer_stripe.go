package usecase

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/stripe/stripe-go/v76"
	"go.uber.org/zap"

	"github.com/pagebound/payment-service/internal/domain/entity"
	"github.com/pagebound/payment-service/internal/domain/provider"
)

// normalizeStripe maps a verified Stripe event to the internal schema
func (n *Normalizer) normalizeStripe(raw *provider.RawEvent) (*Normalized, error) {
	base := entity.NormalizedEvent{
		Gateway:        entity.GatewayStripe,
		GatewayEventID: raw.ID,
		OccurredAt:     raw.OccurredAt,
	}

	switch raw.Type {
	case "invoice.payment_succeeded":
		var invoice stripe.Invoice
		if err := json.Unmarshal(raw.Data, &invoice); err != nil {
			return nil, fmt.Errorf("failed to parse invoice: %w", err)
		}
		base.Kind = entity.EventPurchaseCompleted
		base.Purchase = purchaseFromInvoice(&invoice)
		return &Normalized{Event: &base}, nil

	case "customer.subscription.created", "customer.subscription.updated", "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(raw.Data, &sub); err != nil {
			return nil, fmt.Errorf("failed to parse subscription: %w", err)
		}
		switch raw.Type {
		case "customer.subscription.created":
			base.Kind = entity.EventSubscriptionCreated
		case "customer.subscription.updated":
			base.Kind = entity.EventSubscriptionUpdated
		default:
			base.Kind = entity.EventSubscriptionCancelled
		}
		base.Subscription = subscriptionFromStripe(&sub, raw.Type == "customer.subscription.deleted")
		return &Normalized{Event: &base}, nil

	case "product.created":
		var product stripe.Product
		if err := json.Unmarshal(raw.Data, &product); err != nil {
			return nil, fmt.Errorf("failed to parse product: %w", err)
		}
		expected := 1
		if raw, ok := product.Metadata["price_count"]; ok {
			if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
				expected = parsed
			}
		}
		base.Kind = entity.EventProductCreated
		base.Product = &entity.ProductPayload{
			ProductID:  product.ID,
			Name:       product.Name,
			PriceCount: expected,
		}
		return &Normalized{
			Event: &base,
			Correlation: &CorrelationPart{
				AggregateID: product.ID,
				Primary:     true,
				Expected:    expected,
			},
		}, nil

	case "price.created":
		var price stripe.Price
		if err := json.Unmarshal(raw.Data, &price); err != nil {
			return nil, fmt.Errorf("failed to parse price: %w", err)
		}
		if price.Product == nil || price.Product.ID == "" {
			return ignored("price.created without a parent product"), nil
		}
		base.Kind = entity.EventProductCreated
		base.Product = &entity.ProductPayload{
			ProductID: price.Product.ID,
			PriceIDs:  []string{price.ID},
		}
		return &Normalized{
			Event: &base,
			Correlation: &CorrelationPart{
				AggregateID: price.Product.ID,
				Primary:     false,
			},
		}, nil

	case "charge.refunded":
		var charge stripe.Charge
		if err := json.Unmarshal(raw.Data, &charge); err != nil {
			return nil, fmt.Errorf("failed to parse charge: %w", err)
		}
		base.Kind = entity.EventRefundIssued
		base.Refund = &entity.RefundPayload{
			OrderID: chargeOrderID(&charge),
			Status:  string(entity.RefundStatusRefunded),
			Amount:  charge.AmountRefunded,
		}
		return &Normalized{Event: &base}, nil

	case "charge.dispute.created", "charge.dispute.closed":
		var dispute stripe.Dispute
		if err := json.Unmarshal(raw.Data, &dispute); err != nil {
			return nil, fmt.Errorf("failed to parse dispute: %w", err)
		}
		orderID := dispute.ID
		if dispute.Charge != nil {
			orderID = chargeOrderID(dispute.Charge)
		}
		if raw.Type == "charge.dispute.created" {
			base.Kind = entity.EventDisputeOpened
			base.Refund = &entity.RefundPayload{
				OrderID: orderID,
				Status:  string(entity.RefundStatusDisputeOpened),
				Reason:  string(dispute.Reason),
				Amount:  dispute.Amount,
			}
		} else {
			base.Kind = entity.EventDisputeClosed
			base.Refund = &entity.RefundPayload{
				OrderID: orderID,
				Status:  string(entity.RefundStatusDisputeClosed),
				Reason:  string(dispute.Status),
				Amount:  dispute.Amount,
			}
		}
		return &Normalized{Event: &base}, nil

	default:
		n.logger.Debug("Unhandled Stripe event type",
			zap.String("type", raw.Type),
			zap.String("event_id", raw.ID))
		return ignored("unhandled stripe event type: " + raw.Type), nil
	}
}

func purchaseFromInvoice(invoice *stripe.Invoice) *entity.PurchasePayload {
	payload := &entity.PurchasePayload{
		OrderID: invoice.ID,
		Total:   invoice.AmountPaid,
	}
	if invoice.Metadata != nil {
		payload.BoughtBy = invoice.Metadata["owner_id"]
		payload.GiftFor = invoice.Metadata["gift_for"]
	}
	if payload.BoughtBy == "" && invoice.Customer != nil {
		payload.BoughtBy = invoice.Customer.ID
	}

	if invoice.Lines != nil {
		for _, line := range invoice.Lines.Data {
			item := entity.PurchaseItem{
				Name:      line.Description,
				UnitPrice: line.Amount,
				Quantity:  1,
			}
			if line.Quantity > 0 {
				item.Quantity = int(line.Quantity)
				if line.Quantity > 1 {
					item.UnitPrice = line.Amount / line.Quantity
				}
			}
			if line.Price != nil && line.Price.Product != nil {
				item.ProductID = line.Price.Product.ID
			}
			for _, d := range line.Discounts {
				if d != nil {
					item.Discounts = append(item.Discounts, d.ID)
				}
			}
			payload.Items = append(payload.Items, item)
		}
	}

	return payload
}

func subscriptionFromStripe(sub *stripe.Subscription, periodEnded bool) *entity.SubscriptionPayload {
	payload := &entity.SubscriptionPayload{
		ExternalID:  sub.ID,
		PeriodStart: time.Unix(sub.CurrentPeriodStart, 0),
		PeriodEnd:   time.Unix(sub.CurrentPeriodEnd, 0),
		CancelAtEnd: sub.CancelAtPeriodEnd,
		PeriodEnded: periodEnded,
	}
	if sub.Customer != nil {
		payload.CustomerID = sub.Customer.ID
	}
	if sub.Metadata != nil {
		payload.OwnerID = sub.Metadata["owner_id"]
		payload.GiftedBy = sub.Metadata["gifted_by"]
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 {
		item := sub.Items.Data[0]
		if item.Price != nil {
			payload.PriceID = item.Price.ID
			if item.Price.Product != nil {
				payload.ProductID = item.Price.Product.ID
			}
		}
	}
	return payload
}

// chargeOrderID resolves the ledger id a charge belongs to. Invoice-backed
// charges use the invoice id, matching the id recordPurchase keyed on.
func chargeOrderID(charge *stripe.Charge) string {
	if charge.Invoice != nil && charge.Invoice.ID != "" {
		return charge.Invoice.ID
	}
	return charge.ID
}
