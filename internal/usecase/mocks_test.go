package usecase_test

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/stretchr/testify/mock"

	"github.com/pagebound/payment-service/internal/domain/entity"
	"github.com/pagebound/payment-service/internal/domain/provider"
	"github.com/pagebound/payment-service/internal/usecase"
)

// MockCouponRepository is a mock implementation of CouponRepository
type MockCouponRepository struct {
	mock.Mock
}

func (m *MockCouponRepository) GetByCode(ctx context.Context, code string) (*entity.Coupon, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Coupon), args.Error(1)
}

func (m *MockCouponRepository) IncrementRedeemed(ctx context.Context, code string) error {
	args := m.Called(ctx, code)
	return args.Error(0)
}

// MockPurchaseRepository is a mock implementation of PurchaseRepository
type MockPurchaseRepository struct {
	mock.Mock
}

func (m *MockPurchaseRepository) InsertIfAbsent(ctx context.Context, record *entity.PurchaseRecord) (*entity.PurchaseRecord, bool, error) {
	args := m.Called(ctx, record)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*entity.PurchaseRecord), args.Bool(1), args.Error(2)
}

func (m *MockPurchaseRepository) GetByID(ctx context.Context, id string) (*entity.PurchaseRecord, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.PurchaseRecord), args.Error(1)
}

func (m *MockPurchaseRepository) ListByOwner(ctx context.Context, ownerID string, params entity.PaginationParams) ([]*entity.PurchaseRecord, int64, error) {
	args := m.Called(ctx, ownerID, params)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*entity.PurchaseRecord), args.Get(1).(int64), args.Error(2)
}

func (m *MockPurchaseRepository) SetRefundStatus(ctx context.Context, id string, status entity.RefundStatus) (int64, error) {
	args := m.Called(ctx, id, status)
	return args.Get(0).(int64), args.Error(1)
}

// MockSubscriptionRepository is a mock implementation of SubscriptionRepository
type MockSubscriptionRepository struct {
	mock.Mock
}

func (m *MockSubscriptionRepository) GetByOwner(ctx context.Context, ownerID string) (*entity.SubscriptionRecord, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.SubscriptionRecord), args.Error(1)
}

func (m *MockSubscriptionRepository) GetByExternalID(ctx context.Context, externalID string) (*entity.SubscriptionRecord, error) {
	args := m.Called(ctx, externalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.SubscriptionRecord), args.Error(1)
}

func (m *MockSubscriptionRepository) Replace(ctx context.Context, record *entity.SubscriptionRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockSubscriptionRepository) SetCancelAtPeriodEnd(ctx context.Context, externalID string, cancel bool) error {
	args := m.Called(ctx, externalID, cancel)
	return args.Error(0)
}

func (m *MockSubscriptionRepository) DeleteByExternalID(ctx context.Context, externalID string) error {
	args := m.Called(ctx, externalID)
	return args.Error(0)
}

// MockCustomerMappingRepository is a mock implementation of CustomerMappingRepository
type MockCustomerMappingRepository struct {
	mock.Mock
}

func (m *MockCustomerMappingRepository) GetByOwner(ctx context.Context, gateway entity.Gateway, ownerID string) (*entity.CustomerMapping, error) {
	args := m.Called(ctx, gateway, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.CustomerMapping), args.Error(1)
}

func (m *MockCustomerMappingRepository) GetByGatewayCustomerID(ctx context.Context, gateway entity.Gateway, customerID string) (*entity.CustomerMapping, error) {
	args := m.Called(ctx, gateway, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.CustomerMapping), args.Error(1)
}

func (m *MockCustomerMappingRepository) InsertIfAbsent(ctx context.Context, mapping *entity.CustomerMapping) (*entity.CustomerMapping, error) {
	args := m.Called(ctx, mapping)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.CustomerMapping), args.Error(1)
}

// MockPlanRepository is a mock implementation of PlanRepository
type MockPlanRepository struct {
	mock.Mock
}

func (m *MockPlanRepository) Upsert(ctx context.Context, plan *entity.Plan) error {
	args := m.Called(ctx, plan)
	return args.Error(0)
}

func (m *MockPlanRepository) ListByGateway(ctx context.Context, gateway entity.Gateway) ([]*entity.Plan, error) {
	args := m.Called(ctx, gateway)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entity.Plan), args.Error(1)
}

// MockEventAuditRepository is a mock implementation of EventAuditRepository
type MockEventAuditRepository struct {
	mock.Mock
}

func (m *MockEventAuditRepository) SaveEvent(ctx context.Context, gateway entity.Gateway, eventID, eventType string, data json.RawMessage) error {
	args := m.Called(ctx, gateway, eventID, eventType, data)
	return args.Error(0)
}

func (m *MockEventAuditRepository) MarkProcessed(ctx context.Context, eventID string) error {
	args := m.Called(ctx, eventID)
	return args.Error(0)
}

func (m *MockEventAuditRepository) MarkIgnored(ctx context.Context, eventID, reason string) error {
	args := m.Called(ctx, eventID, reason)
	return args.Error(0)
}

func (m *MockEventAuditRepository) MarkFailed(ctx context.Context, eventID string, cause error) error {
	args := m.Called(ctx, eventID, cause)
	return args.Error(0)
}

// MockPaymentGateway is a mock implementation of provider.PaymentGateway
type MockPaymentGateway struct {
	mock.Mock
	gateway entity.Gateway
}

func newMockGateway(gateway entity.Gateway) *MockPaymentGateway {
	return &MockPaymentGateway{gateway: gateway}
}

func (m *MockPaymentGateway) Name() entity.Gateway {
	return m.gateway
}

func (m *MockPaymentGateway) EnsureCustomer(ctx context.Context, ownerID, email string) (string, error) {
	args := m.Called(ctx, ownerID, email)
	return args.String(0), args.Error(1)
}

func (m *MockPaymentGateway) CreateSubscriptionSession(ctx context.Context, req *provider.SessionRequest) (*provider.SessionResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provider.SessionResponse), args.Error(1)
}

func (m *MockPaymentGateway) CreateOrderSession(ctx context.Context, req *provider.SessionRequest) (*provider.SessionResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provider.SessionResponse), args.Error(1)
}

func (m *MockPaymentGateway) ListPrices(ctx context.Context, productID string) ([]entity.Plan, error) {
	args := m.Called(ctx, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Plan), args.Error(1)
}

func (m *MockPaymentGateway) CancelAtPeriodEnd(ctx context.Context, subscriptionID string) error {
	args := m.Called(ctx, subscriptionID)
	return args.Error(0)
}

func (m *MockPaymentGateway) VerifyWebhook(ctx context.Context, body []byte, header http.Header) (*provider.RawEvent, error) {
	args := m.Called(ctx, body, header)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provider.RawEvent), args.Error(1)
}

// MockNotifier is a mock implementation of the Notifier sink
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) PurchaseCompleted(ctx context.Context, record *entity.PurchaseRecord) {
	m.Called(ctx, record)
}

func (m *MockNotifier) CorrelationExpired(ctx context.Context, expired usecase.ExpiredAggregate) {
	m.Called(ctx, expired)
}

func (m *MockNotifier) DisputeOpened(ctx context.Context, orderID, reason string) {
	m.Called(ctx, orderID, reason)
}
