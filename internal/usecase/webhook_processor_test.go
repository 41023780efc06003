package usecase_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/pagebound/payment-service/internal/domain/entity"
	domainerrors "github.com/pagebound/payment-service/internal/domain/errors"
	"github.com/pagebound/payment-service/internal/domain/provider"
	"github.com/pagebound/payment-service/internal/usecase"
)

type processorHarness struct {
	processor    *usecase.WebhookProcessor
	gateway      *MockPaymentGateway
	purchaseRepo *MockPurchaseRepository
	subRepo      *MockSubscriptionRepository
	planRepo     *MockPlanRepository
	auditRepo    *MockEventAuditRepository
	notifier     *MockNotifier
	store        *memStore
}

func newProcessorHarness(gateway entity.Gateway) *processorHarness {
	logger := zap.NewNop()
	store := newMemStore()
	gw := newMockGateway(gateway)
	purchaseRepo := new(MockPurchaseRepository)
	subRepo := new(MockSubscriptionRepository)
	planRepo := new(MockPlanRepository)
	auditRepo := new(MockEventAuditRepository)
	notifier := new(MockNotifier)

	gateways := map[entity.Gateway]provider.PaymentGateway{gateway: gw}
	ledger := usecase.NewPurchaseLedger(purchaseRepo, store, logger)
	subscription := usecase.NewSubscriptionService(subRepo, new(MockCustomerMappingRepository), gateways, logger)
	tracker := usecase.NewCorrelationTracker(store, logger)
	normalizer := usecase.NewNormalizer(logger)

	processor := usecase.NewWebhookProcessor(gateways, normalizer, tracker, ledger, subscription,
		planRepo, auditRepo, store, notifier, logger)

	return &processorHarness{
		processor:    processor,
		gateway:      gw,
		purchaseRepo: purchaseRepo,
		subRepo:      subRepo,
		planRepo:     planRepo,
		auditRepo:    auditRepo,
		notifier:     notifier,
		store:        store,
	}
}

func (h *processorHarness) delivers(event *provider.RawEvent) {
	h.gateway.On("VerifyWebhook", mock.Anything, mock.Anything, mock.Anything).Return(event, nil)
}

func TestWebhookProcessor_Process(t *testing.T) {
	ctx := context.Background()
	header := http.Header{}

	t.Run("forged delivery is rejected as unauthenticated", func(t *testing.T) {
		h := newProcessorHarness(entity.GatewayStripe)

		h.gateway.On("VerifyWebhook", mock.Anything, mock.Anything, mock.Anything).
			Return(nil, errors.New("signature mismatch"))

		err := h.processor.Process(ctx, entity.GatewayStripe, []byte(`{}`), header)

		assert.ErrorIs(t, err, domainerrors.ErrAuthenticationFailed)
		h.auditRepo.AssertNotCalled(t, "SaveEvent", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("verification outage on the gateway side is retryable", func(t *testing.T) {
		h := newProcessorHarness(entity.GatewayPayPal)

		h.gateway.On("VerifyWebhook", mock.Anything, mock.Anything, mock.Anything).
			Return(nil, &provider.ProviderError{
				Code:    "CERT_FETCH_FAILED",
				Message: "failed to fetch signing certificate",
			})

		err := h.processor.Process(ctx, entity.GatewayPayPal, []byte(`{}`), header)

		assert.ErrorIs(t, err, domainerrors.ErrGatewayUnavailable)
		assert.NotErrorIs(t, err, domainerrors.ErrAuthenticationFailed)
		h.auditRepo.AssertNotCalled(t, "SaveEvent", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("signature mismatch from the provider stays unauthenticated", func(t *testing.T) {
		h := newProcessorHarness(entity.GatewayPayPal)

		h.gateway.On("VerifyWebhook", mock.Anything, mock.Anything, mock.Anything).
			Return(nil, &provider.ProviderError{
				Code:    "SIGNATURE_MISMATCH",
				Message: "webhook signature does not verify",
			})

		err := h.processor.Process(ctx, entity.GatewayPayPal, []byte(`{}`), header)

		assert.ErrorIs(t, err, domainerrors.ErrAuthenticationFailed)
	})

	t.Run("completed purchase lands in the ledger and notifies", func(t *testing.T) {
		h := newProcessorHarness(entity.GatewayStripe)

		data := `{"id": "in_1", "amount_paid": 2500, "metadata": {"owner_id": "user_1"}}`
		h.delivers(rawEvent("evt_1", "invoice.payment_succeeded", data))

		stored := &entity.PurchaseRecord{ID: "in_1", BoughtBy: "user_1", Total: 2500}
		h.purchaseRepo.On("InsertIfAbsent", mock.Anything, mock.Anything).Return(stored, true, nil)
		h.auditRepo.On("SaveEvent", mock.Anything, entity.GatewayStripe, "evt_1", "invoice.payment_succeeded", mock.Anything).Return(nil)
		h.auditRepo.On("MarkProcessed", mock.Anything, "evt_1").Return(nil)
		h.notifier.On("PurchaseCompleted", mock.Anything, stored).Return()

		err := h.processor.Process(ctx, entity.GatewayStripe, []byte(data), header)

		assert.NoError(t, err)
		h.purchaseRepo.AssertExpectations(t)
		h.auditRepo.AssertExpectations(t)
		h.notifier.AssertExpectations(t)
	})

	t.Run("retried delivery is acknowledged without reprocessing", func(t *testing.T) {
		h := newProcessorHarness(entity.GatewayStripe)

		data := `{"id": "in_1", "amount_paid": 2500, "metadata": {"owner_id": "user_1"}}`
		h.delivers(rawEvent("evt_1", "invoice.payment_succeeded", data))

		h.purchaseRepo.On("InsertIfAbsent", mock.Anything, mock.Anything).
			Return(&entity.PurchaseRecord{ID: "in_1"}, true, nil).Once()
		h.auditRepo.On("SaveEvent", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()
		h.auditRepo.On("MarkProcessed", mock.Anything, "evt_1").Return(nil).Once()
		h.notifier.On("PurchaseCompleted", mock.Anything, mock.Anything).Return().Once()

		assert.NoError(t, h.processor.Process(ctx, entity.GatewayStripe, []byte(data), header))
		assert.NoError(t, h.processor.Process(ctx, entity.GatewayStripe, []byte(data), header))

		h.purchaseRepo.AssertExpectations(t)
		h.auditRepo.AssertExpectations(t)
	})

	t.Run("duplicate purchase does not notify twice", func(t *testing.T) {
		h := newProcessorHarness(entity.GatewayStripe)

		data := `{"id": "in_1", "amount_paid": 2500}`
		h.delivers(rawEvent("evt_1", "invoice.payment_succeeded", data))

		// Dedup screening missed, but the ledger still reports the
		// record as pre-existing
		h.purchaseRepo.On("InsertIfAbsent", mock.Anything, mock.Anything).
			Return(&entity.PurchaseRecord{ID: "in_1"}, false, nil)
		h.auditRepo.On("SaveEvent", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
		h.auditRepo.On("MarkProcessed", mock.Anything, "evt_1").Return(nil)

		err := h.processor.Process(ctx, entity.GatewayStripe, []byte(data), header)

		assert.NoError(t, err)
		h.notifier.AssertNotCalled(t, "PurchaseCompleted", mock.Anything, mock.Anything)
	})

	t.Run("event without domain meaning is audited as ignored", func(t *testing.T) {
		h := newProcessorHarness(entity.GatewayStripe)

		h.delivers(rawEvent("evt_1", "payout.paid", `{}`))
		h.auditRepo.On("SaveEvent", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
		h.auditRepo.On("MarkIgnored", mock.Anything, "evt_1", mock.Anything).Return(nil)

		err := h.processor.Process(ctx, entity.GatewayStripe, []byte(`{}`), header)

		assert.NoError(t, err)
		h.auditRepo.AssertExpectations(t)
	})

	t.Run("waiting aggregate acknowledges without dispatching", func(t *testing.T) {
		h := newProcessorHarness(entity.GatewayStripe)

		data := `{"id": "price_1", "product": "prod_1"}`
		h.delivers(rawEvent("evt_1", "price.created", data))
		h.auditRepo.On("SaveEvent", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
		h.auditRepo.On("MarkProcessed", mock.Anything, "evt_1").Return(nil)

		err := h.processor.Process(ctx, entity.GatewayStripe, []byte(data), header)

		assert.NoError(t, err)
		h.planRepo.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
		h.auditRepo.AssertExpectations(t)
	})

	t.Run("completed product aggregate refreshes the plan catalog", func(t *testing.T) {
		h := newProcessorHarness(entity.GatewayStripe)

		productData := `{"id": "prod_1", "name": "Premium", "metadata": {"price_count": "1"}}`
		priceData := `{"id": "price_1", "product": "prod_1"}`

		h.gateway.On("VerifyWebhook", mock.Anything, []byte(productData), mock.Anything).
			Return(rawEvent("evt_prod", "product.created", productData), nil)
		h.gateway.On("VerifyWebhook", mock.Anything, []byte(priceData), mock.Anything).
			Return(rawEvent("evt_price", "price.created", priceData), nil)

		h.auditRepo.On("SaveEvent", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
		h.auditRepo.On("MarkProcessed", mock.Anything, mock.Anything).Return(nil)

		h.gateway.On("ListPrices", mock.Anything, "prod_1").Return([]entity.Plan{
			{ProductID: "prod_1", PriceID: "price_1", UnitAmount: 1000, Interval: "month"},
		}, nil)
		h.planRepo.On("Upsert", mock.Anything, mock.MatchedBy(func(p *entity.Plan) bool {
			return p.ProductID == "prod_1" && p.Gateway == entity.GatewayStripe && p.Name == "Premium"
		})).Return(nil)

		assert.NoError(t, h.processor.Process(ctx, entity.GatewayStripe, []byte(productData), header))
		assert.NoError(t, h.processor.Process(ctx, entity.GatewayStripe, []byte(priceData), header))

		h.planRepo.AssertExpectations(t)
	})

	t.Run("refund for an unknown purchase is still acknowledged", func(t *testing.T) {
		h := newProcessorHarness(entity.GatewayStripe)

		data := `{"id": "ch_1", "amount_refunded": 500, "invoice": "in_missing"}`
		h.delivers(rawEvent("evt_1", "charge.refunded", data))

		h.purchaseRepo.On("SetRefundStatus", mock.Anything, "in_missing", entity.RefundStatusRefunded).Return(int64(0), nil)
		h.auditRepo.On("SaveEvent", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
		h.auditRepo.On("MarkProcessed", mock.Anything, "evt_1").Return(nil)

		err := h.processor.Process(ctx, entity.GatewayStripe, []byte(data), header)

		assert.NoError(t, err)
		h.auditRepo.AssertExpectations(t)
	})

	t.Run("opened dispute notifies after the ledger update", func(t *testing.T) {
		h := newProcessorHarness(entity.GatewayStripe)

		data := `{"id": "dp_1", "amount": 2500, "reason": "fraudulent", "charge": {"id": "ch_1", "invoice": "in_1"}}`
		h.delivers(rawEvent("evt_1", "charge.dispute.created", data))

		h.purchaseRepo.On("SetRefundStatus", mock.Anything, "in_1", entity.RefundStatusDisputeOpened).Return(int64(1), nil)
		h.purchaseRepo.On("GetByID", mock.Anything, "in_1").Return(&entity.PurchaseRecord{ID: "in_1", BoughtBy: "user_1"}, nil)
		h.auditRepo.On("SaveEvent", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
		h.auditRepo.On("MarkProcessed", mock.Anything, "evt_1").Return(nil)
		h.notifier.On("DisputeOpened", mock.Anything, "in_1", "fraudulent").Return()

		err := h.processor.Process(ctx, entity.GatewayStripe, []byte(data), header)

		assert.NoError(t, err)
		h.notifier.AssertExpectations(t)
	})

	t.Run("dispatch failure is recorded for replay and acknowledged", func(t *testing.T) {
		h := newProcessorHarness(entity.GatewayStripe)

		data := `{"id": "in_1", "amount_paid": 2500}`
		h.delivers(rawEvent("evt_1", "invoice.payment_succeeded", data))

		h.purchaseRepo.On("InsertIfAbsent", mock.Anything, mock.Anything).
			Return(nil, false, errors.New("connection reset"))
		h.auditRepo.On("SaveEvent", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
		h.auditRepo.On("MarkFailed", mock.Anything, "evt_1", mock.Anything).Return(nil)

		err := h.processor.Process(ctx, entity.GatewayStripe, []byte(data), header)

		assert.NoError(t, err)
		h.auditRepo.AssertExpectations(t)
		h.auditRepo.AssertNotCalled(t, "MarkProcessed", mock.Anything, mock.Anything)
	})

	t.Run("subscription event reaches the lifecycle service", func(t *testing.T) {
		h := newProcessorHarness(entity.GatewayPayPal)

		data := `{"id": "I-1", "plan_id": "P-1", "custom_id": "user_1",
			"billing_info": {"next_billing_time": "2026-04-01T00:00:00Z", "last_payment": {"time": "2026-03-01T00:00:00Z"}}}`
		h.delivers(rawEvent("WH-1", "BILLING.SUBSCRIPTION.ACTIVATED", data))

		h.subRepo.On("GetByExternalID", mock.Anything, "I-1").Return(nil, nil)
		h.subRepo.On("Replace", mock.Anything, mock.MatchedBy(func(r *entity.SubscriptionRecord) bool {
			return r.OwnerID == "user_1" && r.Provider == entity.GatewayPayPal
		})).Return(nil)
		h.auditRepo.On("SaveEvent", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
		h.auditRepo.On("MarkProcessed", mock.Anything, "WH-1").Return(nil)

		err := h.processor.Process(ctx, entity.GatewayPayPal, []byte(data), header)

		assert.NoError(t, err)
		h.subRepo.AssertExpectations(t)
	})
}

func TestWebhookProcessor_StartExpirySweeper(t *testing.T) {
	h := newProcessorHarness(entity.GatewayStripe)

	// Open an aggregate that can never complete, with an already-passed
	// deadline so the first tick claims it
	tracker := usecase.NewCorrelationTrackerWithTTL(h.store, zap.NewNop(), -time.Second)
	_, err := tracker.RecordPrimary(context.Background(), "prod_1", 5, productEvent("prod_1", 5))
	assert.NoError(t, err)

	alerted := make(chan usecase.ExpiredAggregate, 1)
	h.notifier.On("CorrelationExpired", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		alerted <- args.Get(1).(usecase.ExpiredAggregate)
	}).Return()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.processor.StartExpirySweeper(ctx, 10*time.Millisecond)

	select {
	case expired := <-alerted:
		assert.Equal(t, "prod_1", expired.AggregateID)
		assert.Equal(t, int64(5), expired.Expected)
	case <-time.After(2 * time.Second):
		t.Fatal("expired correlation was never surfaced")
	}
}
