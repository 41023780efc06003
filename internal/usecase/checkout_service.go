package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/pagebound/payment-service/internal/domain/entity"
	domainerrors "github.com/pagebound/payment-service/internal/domain/errors"
	"github.com/pagebound/payment-service/internal/domain/provider"
	"github.com/pagebound/payment-service/internal/domain/repository"
)

// SalesTaxPercent is the synthetic sales-tax rate applied to one-time
// carts on the discounted subtotal
const SalesTaxPercent = 6.75

// CheckoutService turns a validated cart plus its pinned discount into
// exactly one pending payment artifact on one gateway
type CheckoutService struct {
	gateways    map[entity.Gateway]provider.PaymentGateway
	discounts   *DiscountService
	couponRepo  repository.CouponRepository
	mappingRepo repository.CustomerMappingRepository
	validate    *validator.Validate
	logger      *zap.Logger
}

// NewCheckoutService creates a new checkout service
func NewCheckoutService(
	gateways map[entity.Gateway]provider.PaymentGateway,
	discounts *DiscountService,
	couponRepo repository.CouponRepository,
	mappingRepo repository.CustomerMappingRepository,
	logger *zap.Logger,
) *CheckoutService {
	return &CheckoutService{
		gateways:    gateways,
		discounts:   discounts,
		couponRepo:  couponRepo,
		mappingRepo: mappingRepo,
		validate:    validator.New(),
		logger:      logger,
	}
}

// ValidateCart checks the cart's shape and the subscription invariants:
// at most one subscription line, and never mixed with one-time lines
func (s *CheckoutService) ValidateCart(cart *entity.Cart) error {
	if err := s.validate.Struct(cart); err != nil {
		return fmt.Errorf("%w: %s", domainerrors.ErrValidationFailed, err.Error())
	}

	subscriptionLines := 0
	oneTimeLines := 0
	for i := range cart.Lines {
		if cart.Lines[i].IsSubscription() {
			subscriptionLines++
		} else {
			oneTimeLines++
		}
	}
	if subscriptionLines > 1 {
		return fmt.Errorf("%w: more than one subscription line", domainerrors.ErrValidationFailed)
	}
	if subscriptionLines > 0 && oneTimeLines > 0 {
		return fmt.Errorf("%w: subscription and one-time lines cannot be mixed", domainerrors.ErrValidationFailed)
	}

	return nil
}

// CreateSession builds the gateway-side payment artifact for the cart.
// The discount pinned to sessionKey is used as-is; when nothing is
// pinned, the deterministic no-coupon computation applies.
func (s *CheckoutService) CreateSession(ctx context.Context, gateway entity.Gateway, sessionKey string, cart *entity.Cart) (*entity.CheckoutSession, error) {
	if err := s.ValidateCart(cart); err != nil {
		return nil, err
	}

	gw, ok := s.gateways[gateway]
	if !ok {
		return nil, fmt.Errorf("no gateway registered for %s", gateway)
	}

	discount, err := s.discounts.GetPinned(ctx, sessionKey)
	if err != nil {
		return nil, err
	}
	if discount == nil {
		discount, err = s.discounts.Compute(ctx, cart, "")
		if err != nil {
			return nil, err
		}
	}

	customerID, err := s.ensureCustomer(ctx, gw, cart)
	if err != nil {
		return nil, err
	}

	req := &provider.SessionRequest{
		CustomerID: customerID,
		OwnerID:    cart.OwnerID,
		Email:      cart.Email,
		GiftFor:    cart.GiftFor,
	}

	for i := range cart.Lines {
		line := &cart.Lines[i]
		amount := LineAmount(line)
		if savings, ok := discount.PerItem[line.ProductID]; ok {
			amount = savings.DiscountedAmount
		}
		req.Lines = append(req.Lines, provider.LinePrice{
			ProductID:  line.ProductID,
			PriceID:    line.PriceID,
			Name:       line.Name,
			Amount:     amount,
			Quantity:   line.Quantity,
			Recurrence: line.Recurrence,
		})
	}

	if discount.Code != "" {
		coupon, err := s.couponRepo.GetByCode(ctx, discount.Code)
		if err != nil {
			return nil, fmt.Errorf("failed to reload coupon: %w", err)
		}
		if coupon != nil {
			req.CouponCode = coupon.Code
			req.CouponID = coupon.GatewayCouponID
		}
	}

	var resp *provider.SessionResponse
	if sub := cart.SubscriptionLine(); sub != nil {
		// No separate tax line is possible on the recurring path; tax is
		// embedded or waived per gateway capability
		resp, err = gw.CreateSubscriptionSession(ctx, req)
	} else {
		req.TaxAmount = salesTax(discount.Subtotal, discount.ThresholdSavings)
		resp, err = gw.CreateOrderSession(ctx, req)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domainerrors.ErrCheckoutFailed, err.Error())
	}

	if discount.Code != "" {
		if err := s.couponRepo.IncrementRedeemed(ctx, discount.Code); err != nil {
			s.logger.Warn("Failed to count coupon redemption",
				zap.String("coupon", discount.Code),
				zap.Error(err))
		}
	}

	session := &entity.CheckoutSession{
		Gateway:          gateway,
		ExternalID:       resp.ExternalID,
		ClientSecret:     resp.ClientSecret,
		ApprovalURL:      resp.ApprovalURL,
		CartSnapshot:     *cart,
		DiscountSnapshot: discount,
		CreatedAt:        time.Now(),
	}

	s.logger.Info("Checkout session created",
		zap.String("gateway", string(gateway)),
		zap.String("external_id", session.ExternalID),
		zap.String("owner_id", cart.OwnerID),
		zap.Int64("total_savings", discount.TotalSavings))

	return session, nil
}

// ensureCustomer guarantees exactly one gateway customer per owner. The
// mapping row's insert-if-absent absorbs concurrent retries; when another
// request won the race, its customer id is used and ours is abandoned.
func (s *CheckoutService) ensureCustomer(ctx context.Context, gw provider.PaymentGateway, cart *entity.Cart) (string, error) {
	mapping, err := s.mappingRepo.GetByOwner(ctx, gw.Name(), cart.OwnerID)
	if err != nil {
		return "", fmt.Errorf("failed to look up customer mapping: %w", err)
	}
	if mapping != nil {
		return mapping.GatewayCustomerID, nil
	}

	customerID, err := gw.EnsureCustomer(ctx, cart.OwnerID, cart.Email)
	if err != nil {
		return "", fmt.Errorf("%w: %s", domainerrors.ErrGatewayUnavailable, err.Error())
	}

	stored, err := s.mappingRepo.InsertIfAbsent(ctx, &entity.CustomerMapping{
		Gateway:           gw.Name(),
		OwnerID:           cart.OwnerID,
		GatewayCustomerID: customerID,
		Email:             cart.Email,
	})
	if err != nil {
		return "", fmt.Errorf("failed to store customer mapping: %w", err)
	}

	return stored.GatewayCustomerID, nil
}

// salesTax computes the synthetic tax line on the discounted subtotal
func salesTax(subtotal, thresholdSavings int64) int64 {
	return decimal.NewFromInt(subtotal - thresholdSavings).
		Mul(decimal.NewFromFloat(SalesTaxPercent)).
		Div(decimal.NewFromInt(100)).
		Round(0).IntPart()
}
