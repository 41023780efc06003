package paypal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/pagebound/payment-service/internal/domain/entity"
	"github.com/pagebound/payment-service/internal/domain/provider"
)

type amountJSON struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type linkJSON struct {
	Href string `json:"href"`
	Rel  string `json:"rel"`
}

// customID is the metadata PayPal carries through to webhook events
type customID struct {
	OwnerID string `json:"owner_id"`
	GiftFor string `json:"gift_for,omitempty"`
}

// CreateOrderSession creates a one-time order with per-item lines, the
// discounted amounts and the tax total. One API call builds the whole
// order, so there is no partial draft to clean up on failure.
func (g *Gateway) CreateOrderSession(ctx context.Context, req *provider.SessionRequest) (*provider.SessionResponse, error) {
	custom, err := json.Marshal(customID{OwnerID: req.OwnerID, GiftFor: req.GiftFor})
	if err != nil {
		return nil, &provider.ProviderError{
			Code:    "MARSHAL_ERROR",
			Message: "Failed to encode order metadata",
			Details: err.Error(),
		}
	}

	var itemTotal int64
	items := make([]map[string]interface{}, 0, len(req.Lines))
	for _, line := range req.Lines {
		itemTotal += line.Amount
		// PayPal multiplies unit_amount by quantity, so the discounted
		// line total is expressed as quantity 1
		items = append(items, map[string]interface{}{
			"name":        line.Name,
			"sku":         line.ProductID,
			"quantity":    "1",
			"unit_amount": amountJSON{CurrencyCode: "USD", Value: minorToValue(line.Amount)},
		})
	}

	payload := map[string]interface{}{
		"intent": "CAPTURE",
		"purchase_units": []map[string]interface{}{
			{
				"custom_id": string(custom),
				"items":     items,
				"amount": map[string]interface{}{
					"currency_code": "USD",
					"value":         minorToValue(itemTotal + req.TaxAmount),
					"breakdown": map[string]interface{}{
						"item_total": amountJSON{CurrencyCode: "USD", Value: minorToValue(itemTotal)},
						"tax_total":  amountJSON{CurrencyCode: "USD", Value: minorToValue(req.TaxAmount)},
					},
				},
			},
		},
		"application_context": map[string]interface{}{
			"return_url": g.returnURL,
			"cancel_url": g.cancelURL,
		},
	}

	body, err := g.call(ctx, http.MethodPost, "/v2/checkout/orders", payload)
	if err != nil {
		return nil, err
	}

	var order struct {
		ID    string     `json:"id"`
		Links []linkJSON `json:"links"`
	}
	if err := json.Unmarshal(body, &order); err != nil {
		return nil, &provider.ProviderError{
			Code:    "PARSE_ERROR",
			Message: "Failed to parse order response",
			Details: err.Error(),
		}
	}

	g.logger.Info("PayPal order created",
		zap.String("order_id", order.ID),
		zap.Int64("total", itemTotal+req.TaxAmount))

	return &provider.SessionResponse{
		ExternalID:  order.ID,
		ApprovalURL: approvalLink(order.Links),
	}, nil
}

// CreateSubscriptionSession subscribes the customer to the billing plan of
// the cart's single recurring line
func (g *Gateway) CreateSubscriptionSession(ctx context.Context, req *provider.SessionRequest) (*provider.SessionResponse, error) {
	line := req.Lines[0]

	custom, err := json.Marshal(customID{OwnerID: req.OwnerID, GiftFor: req.GiftFor})
	if err != nil {
		return nil, &provider.ProviderError{
			Code:    "MARSHAL_ERROR",
			Message: "Failed to encode subscription metadata",
			Details: err.Error(),
		}
	}

	payload := map[string]interface{}{
		"plan_id":   line.PriceID,
		"custom_id": string(custom),
		"subscriber": map[string]interface{}{
			"email_address": req.Email,
		},
		"application_context": map[string]interface{}{
			"return_url": g.returnURL,
			"cancel_url": g.cancelURL,
		},
	}

	body, err := g.call(ctx, http.MethodPost, "/v1/billing/subscriptions", payload)
	if err != nil {
		return nil, err
	}

	var sub struct {
		ID    string     `json:"id"`
		Links []linkJSON `json:"links"`
	}
	if err := json.Unmarshal(body, &sub); err != nil {
		return nil, &provider.ProviderError{
			Code:    "PARSE_ERROR",
			Message: "Failed to parse subscription response",
			Details: err.Error(),
		}
	}

	g.logger.Info("PayPal subscription created",
		zap.String("subscription_id", sub.ID),
		zap.String("plan_id", line.PriceID))

	return &provider.SessionResponse{
		ExternalID:  sub.ID,
		ApprovalURL: approvalLink(sub.Links),
	}, nil
}

// ListPrices returns the product's billing plans as local plan entries
func (g *Gateway) ListPrices(ctx context.Context, productID string) ([]entity.Plan, error) {
	path := "/v1/billing/plans?product_id=" + url.QueryEscape(productID) + "&page_size=20"
	body, err := g.call(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Plans []struct {
			ID            string `json:"id"`
			Name          string `json:"name"`
			BillingCycles []struct {
				Frequency struct {
					IntervalUnit string `json:"interval_unit"`
				} `json:"frequency"`
				PricingScheme struct {
					FixedPrice amountJSON `json:"fixed_price"`
				} `json:"pricing_scheme"`
			} `json:"billing_cycles"`
		} `json:"plans"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &provider.ProviderError{
			Code:    "PARSE_ERROR",
			Message: "Failed to parse plan list",
			Details: err.Error(),
		}
	}

	plans := make([]entity.Plan, 0, len(resp.Plans))
	for _, p := range resp.Plans {
		plan := entity.Plan{
			ProductID: productID,
			PriceID:   p.ID,
			Name:      p.Name,
		}
		if len(p.BillingCycles) > 0 {
			cycle := p.BillingCycles[0]
			plan.UnitAmount = valueToMinor(cycle.PricingScheme.FixedPrice.Value)
			plan.Interval = normalizeInterval(cycle.Frequency.IntervalUnit)
		}
		plans = append(plans, plan)
	}

	return plans, nil
}

// CancelAtPeriodEnd cancels the billing agreement. PayPal stops future
// charges but the entitlement runs to the end of the paid period, which
// the EXPIRED webhook later confirms.
func (g *Gateway) CancelAtPeriodEnd(ctx context.Context, subscriptionID string) error {
	payload := map[string]string{"reason": "Requested by customer"}

	_, err := g.call(ctx, http.MethodPost,
		"/v1/billing/subscriptions/"+subscriptionID+"/cancel", payload)
	if err != nil {
		return err
	}

	g.logger.Info("PayPal subscription cancelled",
		zap.String("subscription_id", subscriptionID))

	return nil
}

func approvalLink(links []linkJSON) string {
	for _, l := range links {
		if l.Rel == "approve" {
			return l.Href
		}
	}
	return ""
}

// minorToValue renders minor units as PayPal's decimal string
func minorToValue(minor int64) string {
	return decimal.NewFromInt(minor).Div(decimal.NewFromInt(100)).StringFixed(2)
}

// valueToMinor parses PayPal's decimal string into minor units
func valueToMinor(value string) int64 {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return 0
	}
	return d.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

func normalizeInterval(unit string) string {
	switch unit {
	case "MONTH":
		return "month"
	case "YEAR":
		return "year"
	case "WEEK":
		return "week"
	case "DAY":
		return "day"
	default:
		return ""
	}
}
