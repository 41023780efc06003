package usecase_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/pagebound/payment-service/internal/domain/entity"
	domainerrors "github.com/pagebound/payment-service/internal/domain/errors"
	"github.com/pagebound/payment-service/internal/domain/provider"
	"github.com/pagebound/payment-service/internal/usecase"
)

type checkoutHarness struct {
	service     *usecase.CheckoutService
	discounts   *usecase.DiscountService
	gateway     *MockPaymentGateway
	couponRepo  *MockCouponRepository
	mappingRepo *MockCustomerMappingRepository
	store       *memStore
}

func newCheckoutHarness(gateway entity.Gateway) *checkoutHarness {
	logger := zap.NewNop()
	store := newMemStore()
	couponRepo := new(MockCouponRepository)
	mappingRepo := new(MockCustomerMappingRepository)
	gw := newMockGateway(gateway)
	discounts := usecase.NewDiscountService(couponRepo, store, logger)

	gateways := map[entity.Gateway]provider.PaymentGateway{gateway: gw}
	service := usecase.NewCheckoutService(gateways, discounts, couponRepo, mappingRepo, logger)

	return &checkoutHarness{
		service:     service,
		discounts:   discounts,
		gateway:     gw,
		couponRepo:  couponRepo,
		mappingRepo: mappingRepo,
		store:       store,
	}
}

func (h *checkoutHarness) knownCustomer(ownerID, customerID string) {
	h.mappingRepo.On("GetByOwner", mock.Anything, h.gateway.Name(), ownerID).Return(&entity.CustomerMapping{
		Gateway:           h.gateway.Name(),
		OwnerID:           ownerID,
		GatewayCustomerID: customerID,
	}, nil)
}

func TestCheckoutService_ValidateCart(t *testing.T) {
	h := newCheckoutHarness(entity.GatewayStripe)

	monthly := &entity.Recurrence{Interval: entity.IntervalMonth, Count: 1}

	t.Run("valid one-time cart", func(t *testing.T) {
		err := h.service.ValidateCart(singleLineCart("prod_a", 1000, 1))
		assert.NoError(t, err)
	})

	t.Run("empty cart is rejected", func(t *testing.T) {
		err := h.service.ValidateCart(&entity.Cart{OwnerID: "user_1", Email: "user@example.com"})
		assert.ErrorIs(t, err, domainerrors.ErrValidationFailed)
	})

	t.Run("missing email is rejected", func(t *testing.T) {
		cart := singleLineCart("prod_a", 1000, 1)
		cart.Email = ""
		err := h.service.ValidateCart(cart)
		assert.ErrorIs(t, err, domainerrors.ErrValidationFailed)
	})

	t.Run("two subscription lines are rejected", func(t *testing.T) {
		cart := &entity.Cart{
			OwnerID: "user_1",
			Email:   "user@example.com",
			Lines: []entity.CartLine{
				{ProductID: "prod_a", PriceID: "price_a", UnitAmount: 1000, Quantity: 1, Recurrence: monthly},
				{ProductID: "prod_b", PriceID: "price_b", UnitAmount: 2000, Quantity: 1, Recurrence: monthly},
			},
		}
		err := h.service.ValidateCart(cart)
		assert.ErrorIs(t, err, domainerrors.ErrValidationFailed)
	})

	t.Run("subscription mixed with one-time lines is rejected", func(t *testing.T) {
		cart := &entity.Cart{
			OwnerID: "user_1",
			Email:   "user@example.com",
			Lines: []entity.CartLine{
				{ProductID: "prod_a", PriceID: "price_a", UnitAmount: 1000, Quantity: 1, Recurrence: monthly},
				{ProductID: "prod_b", PriceID: "price_b", UnitAmount: 2000, Quantity: 1},
			},
		}
		err := h.service.ValidateCart(cart)
		assert.ErrorIs(t, err, domainerrors.ErrValidationFailed)
	})
}

func TestCheckoutService_CreateSession(t *testing.T) {
	ctx := context.Background()

	t.Run("one-time cart gets a tax line on the discounted subtotal", func(t *testing.T) {
		h := newCheckoutHarness(entity.GatewayStripe)
		h.knownCustomer("user_1", "cus_1")

		// 2200 subtotal, 220 threshold savings, 6.75% tax on 1980
		h.gateway.On("CreateOrderSession", ctx, mock.MatchedBy(func(req *provider.SessionRequest) bool {
			return req.CustomerID == "cus_1" &&
				req.TaxAmount == 134 &&
				len(req.Lines) == 1 &&
				req.Lines[0].Amount == 2200
		})).Return(&provider.SessionResponse{
			ExternalID:   "in_1",
			ClientSecret: "pi_secret",
		}, nil)

		session, err := h.service.CreateSession(ctx, entity.GatewayStripe, "sess_1", singleLineCart("prod_a", 1100, 2))

		assert.NoError(t, err)
		assert.Equal(t, entity.GatewayStripe, session.Gateway)
		assert.Equal(t, "in_1", session.ExternalID)
		assert.Equal(t, "pi_secret", session.ClientSecret)
		assert.NotNil(t, session.DiscountSnapshot)
		assert.Equal(t, int64(220), session.DiscountSnapshot.TotalSavings)
		h.gateway.AssertExpectations(t)
	})

	t.Run("pinned discount prices the lines and redeems the coupon", func(t *testing.T) {
		h := newCheckoutHarness(entity.GatewayStripe)
		h.knownCustomer("user_1", "cus_1")

		coupon := &entity.Coupon{
			Code:            "SAVE10",
			PercentOff:      10,
			GatewayCouponID: "co_gw_1",
		}
		h.couponRepo.On("GetByCode", mock.Anything, "SAVE10").Return(coupon, nil)
		h.couponRepo.On("IncrementRedeemed", mock.Anything, "SAVE10").Return(nil)

		cart := singleLineCart("prod_a", 1000, 1)
		_, err := h.discounts.ApplyToSession(ctx, "sess_1", cart, "SAVE10")
		assert.NoError(t, err)

		h.gateway.On("CreateOrderSession", ctx, mock.MatchedBy(func(req *provider.SessionRequest) bool {
			return req.Lines[0].Amount == 900 &&
				req.CouponID == "co_gw_1" &&
				req.CouponCode == "SAVE10"
		})).Return(&provider.SessionResponse{ExternalID: "in_1"}, nil)

		session, err := h.service.CreateSession(ctx, entity.GatewayStripe, "sess_1", cart)

		assert.NoError(t, err)
		assert.Equal(t, "SAVE10", session.DiscountSnapshot.Code)
		h.couponRepo.AssertExpectations(t)
	})

	t.Run("subscription cart uses the recurring path without a tax line", func(t *testing.T) {
		h := newCheckoutHarness(entity.GatewayStripe)
		h.knownCustomer("user_1", "cus_1")

		cart := &entity.Cart{
			OwnerID: "user_1",
			Email:   "user@example.com",
			Lines: []entity.CartLine{
				{
					ProductID:  "prod_sub",
					PriceID:    "price_monthly",
					UnitAmount: 1000,
					Quantity:   1,
					Recurrence: &entity.Recurrence{Interval: entity.IntervalMonth, Count: 1},
				},
			},
		}

		h.gateway.On("CreateSubscriptionSession", ctx, mock.MatchedBy(func(req *provider.SessionRequest) bool {
			return req.TaxAmount == 0 && req.Lines[0].PriceID == "price_monthly"
		})).Return(&provider.SessionResponse{ExternalID: "cs_1"}, nil)

		session, err := h.service.CreateSession(ctx, entity.GatewayStripe, "sess_1", cart)

		assert.NoError(t, err)
		assert.Equal(t, "cs_1", session.ExternalID)
		h.gateway.AssertNotCalled(t, "CreateOrderSession", mock.Anything, mock.Anything)
	})

	t.Run("first checkout creates the gateway customer once", func(t *testing.T) {
		h := newCheckoutHarness(entity.GatewayPayPal)

		h.mappingRepo.On("GetByOwner", mock.Anything, entity.GatewayPayPal, "user_1").Return(nil, nil)
		h.gateway.On("EnsureCustomer", mock.Anything, "user_1", "user@example.com").Return("pp-user_1", nil)
		// A concurrent request won the race; its customer id is adopted
		h.mappingRepo.On("InsertIfAbsent", mock.Anything, mock.Anything).Return(&entity.CustomerMapping{
			Gateway:           entity.GatewayPayPal,
			OwnerID:           "user_1",
			GatewayCustomerID: "pp-user_1-existing",
		}, nil)

		h.gateway.On("CreateOrderSession", ctx, mock.MatchedBy(func(req *provider.SessionRequest) bool {
			return req.CustomerID == "pp-user_1-existing"
		})).Return(&provider.SessionResponse{
			ExternalID:  "ORDER1",
			ApprovalURL: "https://paypal.example/approve",
		}, nil)

		session, err := h.service.CreateSession(ctx, entity.GatewayPayPal, "sess_1", singleLineCart("prod_a", 1000, 1))

		assert.NoError(t, err)
		assert.Equal(t, "https://paypal.example/approve", session.ApprovalURL)
		h.mappingRepo.AssertExpectations(t)
	})

	t.Run("gateway rejection surfaces as a checkout failure", func(t *testing.T) {
		h := newCheckoutHarness(entity.GatewayStripe)
		h.knownCustomer("user_1", "cus_1")

		h.gateway.On("CreateOrderSession", ctx, mock.Anything).Return(nil, &provider.ProviderError{
			Code:    "card_declined",
			Message: "card declined",
		})

		_, err := h.service.CreateSession(ctx, entity.GatewayStripe, "sess_1", singleLineCart("prod_a", 1000, 1))

		assert.ErrorIs(t, err, domainerrors.ErrCheckoutFailed)
	})

	t.Run("unregistered gateway", func(t *testing.T) {
		h := newCheckoutHarness(entity.GatewayStripe)

		_, err := h.service.CreateSession(ctx, entity.GatewayPayPal, "sess_1", singleLineCart("prod_a", 1000, 1))

		assert.Error(t, err)
	})
}
