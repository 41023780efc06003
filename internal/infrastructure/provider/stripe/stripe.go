package stripe

import (
	"context"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v76"
	portalsession "github.com/stripe/stripe-go/v76/billingportal/session"
	checkoutsession "github.com/stripe/stripe-go/v76/checkout/session"
	"github.com/stripe/stripe-go/v76/customer"
	"github.com/stripe/stripe-go/v76/invoice"
	"github.com/stripe/stripe-go/v76/invoiceitem"
	"github.com/stripe/stripe-go/v76/price"
	"github.com/stripe/stripe-go/v76/subscription"
	"github.com/stripe/stripe-go/v76/webhook"
	"go.uber.org/zap"

	"github.com/pagebound/payment-service/internal/config"
	"github.com/pagebound/payment-service/internal/domain/entity"
	"github.com/pagebound/payment-service/internal/domain/provider"
)

// Gateway implements provider.PaymentGateway on Stripe. Subscriptions go
// through Checkout in subscription mode; one-time carts are built as a
// draft invoice that is finalized only once every line is attached.
type Gateway struct {
	webhookSecret string
	clientURL     string
	logger        *zap.Logger
}

// NewGateway creates the Stripe gateway and installs the API key
func NewGateway(cfg *config.StripeConfig, clientURL string, logger *zap.Logger) *Gateway {
	stripe.Key = cfg.SecretKey

	return &Gateway{
		webhookSecret: cfg.WebhookSecret,
		clientURL:     clientURL,
		logger:        logger,
	}
}

// Name returns the gateway identifier
func (g *Gateway) Name() entity.Gateway {
	return entity.GatewayStripe
}

// EnsureCustomer creates a Stripe customer tagged with the owner id
func (g *Gateway) EnsureCustomer(ctx context.Context, ownerID, email string) (string, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
	}
	params.Context = ctx
	params.AddMetadata("owner_id", ownerID)

	cust, err := customer.New(params)
	if err != nil {
		return "", wrapStripeErr("customer_create_failed", err)
	}

	g.logger.Info("Stripe customer created",
		zap.String("customer_id", cust.ID),
		zap.String("owner_id", ownerID))

	return cust.ID, nil
}

// CreateSubscriptionSession starts a Checkout session in subscription mode
func (g *Gateway) CreateSubscriptionSession(ctx context.Context, req *provider.SessionRequest) (*provider.SessionResponse, error) {
	line := req.Lines[0]

	params := &stripe.CheckoutSessionParams{
		Customer:           stripe.String(req.CustomerID),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(line.PriceID),
				Quantity: stripe.Int64(int64(line.Quantity)),
			},
		},
		Mode:       stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		SuccessURL: stripe.String(g.clientURL + "/success.html"),
		CancelURL:  stripe.String(g.clientURL + "/cancel.html"),
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: subscriptionMetadata(req),
		},
	}
	params.Context = ctx
	params.AddMetadata("owner_id", req.OwnerID)
	if req.GiftFor != "" {
		params.AddMetadata("gift_for", req.GiftFor)
	}
	if req.CouponID != "" {
		params.Discounts = []*stripe.CheckoutSessionDiscountParams{
			{Coupon: stripe.String(req.CouponID)},
		}
	}

	s, err := checkoutsession.New(params)
	if err != nil {
		return nil, wrapStripeErr("checkout_session_failed", err)
	}

	g.logger.Info("Stripe subscription session created",
		zap.String("session_id", s.ID),
		zap.String("customer_id", req.CustomerID))

	return &provider.SessionResponse{
		ExternalID:  s.ID,
		ApprovalURL: s.URL,
	}, nil
}

// CreateOrderSession builds a draft invoice line by line and finalizes it.
// Any mid-build failure voids the draft so no dangling invoice can be paid
// against stale amounts.
func (g *Gateway) CreateOrderSession(ctx context.Context, req *provider.SessionRequest) (*provider.SessionResponse, error) {
	invParams := &stripe.InvoiceParams{
		Customer:    stripe.String(req.CustomerID),
		AutoAdvance: stripe.Bool(false),
	}
	invParams.Context = ctx
	invParams.AddMetadata("owner_id", req.OwnerID)
	if req.GiftFor != "" {
		invParams.AddMetadata("gift_for", req.GiftFor)
	}
	if req.CouponID != "" {
		invParams.Discounts = []*stripe.InvoiceDiscountParams{
			{Coupon: stripe.String(req.CouponID)},
		}
	}

	draft, err := invoice.New(invParams)
	if err != nil {
		return nil, wrapStripeErr("invoice_create_failed", err)
	}

	for _, line := range req.Lines {
		itemParams := &stripe.InvoiceItemParams{
			Customer:    stripe.String(req.CustomerID),
			Invoice:     stripe.String(draft.ID),
			Amount:      stripe.Int64(line.Amount),
			Currency:    stripe.String(string(stripe.CurrencyUSD)),
			Description: stripe.String(line.Name),
		}
		itemParams.Context = ctx
		itemParams.AddMetadata("product_id", line.ProductID)

		if _, err := invoiceitem.New(itemParams); err != nil {
			g.abandonDraft(ctx, draft.ID)
			return nil, wrapStripeErr("invoice_item_failed", err)
		}
	}

	if req.TaxAmount > 0 {
		taxParams := &stripe.InvoiceItemParams{
			Customer:    stripe.String(req.CustomerID),
			Invoice:     stripe.String(draft.ID),
			Amount:      stripe.Int64(req.TaxAmount),
			Currency:    stripe.String(string(stripe.CurrencyUSD)),
			Description: stripe.String("Sales tax"),
		}
		taxParams.Context = ctx

		if _, err := invoiceitem.New(taxParams); err != nil {
			g.abandonDraft(ctx, draft.ID)
			return nil, wrapStripeErr("invoice_tax_failed", err)
		}
	}

	finalizeParams := &stripe.InvoiceFinalizeInvoiceParams{}
	finalizeParams.Context = ctx
	final, err := invoice.FinalizeInvoice(draft.ID, finalizeParams)
	if err != nil {
		g.abandonDraft(ctx, draft.ID)
		return nil, wrapStripeErr("invoice_finalize_failed", err)
	}

	g.logger.Info("Stripe invoice finalized",
		zap.String("invoice_id", final.ID),
		zap.Int64("amount_due", final.AmountDue))

	resp := &provider.SessionResponse{
		ExternalID:  final.ID,
		ApprovalURL: final.HostedInvoiceURL,
	}
	if final.PaymentIntent != nil {
		resp.ClientSecret = final.PaymentIntent.ClientSecret
	}

	return resp, nil
}

// abandonDraft deletes a half-built draft invoice. Best effort: a draft
// that cannot be deleted stays void and unpayable.
func (g *Gateway) abandonDraft(ctx context.Context, invoiceID string) {
	params := &stripe.InvoiceParams{}
	params.Context = ctx
	if _, err := invoice.Del(invoiceID, params); err != nil {
		g.logger.Warn("Failed to delete abandoned draft invoice",
			zap.String("invoice_id", invoiceID),
			zap.Error(err))
	}
}

// ListPrices returns the active prices of a product as local plans
func (g *Gateway) ListPrices(ctx context.Context, productID string) ([]entity.Plan, error) {
	params := &stripe.PriceListParams{
		Product: stripe.String(productID),
		Active:  stripe.Bool(true),
	}
	params.Context = ctx

	var plans []entity.Plan
	iter := price.List(params)
	for iter.Next() {
		p := iter.Price()
		plan := entity.Plan{
			ProductID:  productID,
			PriceID:    p.ID,
			Name:       p.Nickname,
			UnitAmount: p.UnitAmount,
		}
		if p.Recurring != nil {
			plan.Interval = string(p.Recurring.Interval)
		}
		plans = append(plans, plan)
	}
	if err := iter.Err(); err != nil {
		return nil, wrapStripeErr("price_list_failed", err)
	}

	return plans, nil
}

// CancelAtPeriodEnd flags the subscription to stop renewing
func (g *Gateway) CancelAtPeriodEnd(ctx context.Context, subscriptionID string) error {
	params := &stripe.SubscriptionParams{
		CancelAtPeriodEnd: stripe.Bool(true),
	}
	params.Context = ctx

	if _, err := subscription.Update(subscriptionID, params); err != nil {
		return wrapStripeErr("subscription_cancel_failed", err)
	}

	g.logger.Info("Stripe subscription flagged for cancellation",
		zap.String("subscription_id", subscriptionID))

	return nil
}

// CreatePortalSession opens the Stripe billing portal for a customer
func (g *Gateway) CreatePortalSession(ctx context.Context, customerID string) (string, error) {
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(g.clientURL),
	}
	params.Context = ctx

	ps, err := portalsession.New(params)
	if err != nil {
		return "", wrapStripeErr("portal_session_failed", err)
	}

	return ps.URL, nil
}

// VerifyWebhook checks the Stripe-Signature header against the endpoint
// secret and returns the verified event
func (g *Gateway) VerifyWebhook(_ context.Context, body []byte, header http.Header) (*provider.RawEvent, error) {
	event, err := webhook.ConstructEvent(body, header.Get("Stripe-Signature"), g.webhookSecret)
	if err != nil {
		return nil, &provider.ProviderError{
			Code:    "signature_verification_failed",
			Message: "webhook signature verification failed",
			Details: err.Error(),
		}
	}

	return &provider.RawEvent{
		ID:         event.ID,
		Type:       string(event.Type),
		OccurredAt: time.Unix(event.Created, 0),
		Data:       event.Data.Raw,
	}, nil
}

func subscriptionMetadata(req *provider.SessionRequest) map[string]string {
	meta := map[string]string{"owner_id": req.OwnerID}
	if req.GiftFor != "" {
		meta["gift_for"] = req.GiftFor
	}
	return meta
}

func wrapStripeErr(code string, err error) error {
	if stripeErr, ok := err.(*stripe.Error); ok {
		return &provider.ProviderError{
			Code:    code,
			Message: string(stripeErr.Code),
			Details: stripeErr.Msg,
		}
	}
	return &provider.ProviderError{
		Code:    code,
		Message: err.Error(),
	}
}
