package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/pagebound/payment-service/internal/domain/entity"
)

// PaymentGateway defines the surface both external processors expose to
// the checkout builder and the webhook path. Implementations live under
// infrastructure/provider.
type PaymentGateway interface {
	// Name returns the gateway identifier
	Name() entity.Gateway

	// EnsureCustomer returns the gateway-side customer id for the owner,
	// creating one when absent. Idempotent keyed by owner id.
	EnsureCustomer(ctx context.Context, ownerID, email string) (string, error)

	// CreateSubscriptionSession creates a recurring billing artifact for
	// the single subscription line of the cart
	CreateSubscriptionSession(ctx context.Context, req *SessionRequest) (*SessionResponse, error)

	// CreateOrderSession builds the one-time-purchase artifact: one line
	// per cart item at its discounted price, a synthetic sales-tax line,
	// the coupon attached gateway-side, then finalized. Must never leave a
	// partially built draft behind on failure.
	CreateOrderSession(ctx context.Context, req *SessionRequest) (*SessionResponse, error)

	// ListPrices retrieves the gateway's prices/plans for a product, used
	// to refresh the local plan catalog when a product aggregate completes
	ListPrices(ctx context.Context, productID string) ([]entity.Plan, error)

	// CancelAtPeriodEnd asks the gateway to stop renewing a subscription
	// while leaving the current period intact
	CancelAtPeriodEnd(ctx context.Context, subscriptionID string) error

	// VerifyWebhook authenticates a raw inbound delivery and returns the
	// verified, fully dereferenced gateway event. Unverified payloads must
	// never be returned.
	VerifyWebhook(ctx context.Context, body []byte, header http.Header) (*RawEvent, error)
}

// LinePrice is one cart line with its post-discount amount in minor units
type LinePrice struct {
	ProductID  string
	PriceID    string
	Name       string
	Amount     int64
	Quantity   int
	Recurrence *entity.Recurrence
}

// SessionRequest is the provider-agnostic input for building a checkout artifact
type SessionRequest struct {
	CustomerID string
	OwnerID    string
	Email      string
	GiftFor    string
	Lines      []LinePrice
	TaxAmount  int64
	CouponID   string
	CouponCode string
}

// SessionResponse is the client-usable handle of the created artifact
type SessionResponse struct {
	ExternalID   string
	ClientSecret string
	ApprovalURL  string
}

// RawEvent is a verified, gateway-specific webhook event before
// normalization. Data holds the full resource payload, with any thin
// notification reference already dereferenced.
type RawEvent struct {
	ID         string
	Type       string
	OccurredAt time.Time
	Data       json.RawMessage
}

// ProviderError carries a gateway fault with enough detail to log and replay
type ProviderError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func (e *ProviderError) Error() string {
	if e.Details != "" {
		return e.Message + ": " + e.Details
	}
	return e.Message
}
