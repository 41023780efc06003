package database

import (
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/pagebound/payment-service/internal/adapter/repository"
	domainRepo "github.com/pagebound/payment-service/internal/domain/repository"
)

// Repositories holds all repository instances
type Repositories struct {
	Purchase        domainRepo.PurchaseRepository
	Subscription    domainRepo.SubscriptionRepository
	Coupon          domainRepo.CouponRepository
	CustomerMapping domainRepo.CustomerMappingRepository
	Plan            domainRepo.PlanRepository
	WebhookEvent    domainRepo.EventAuditRepository
}

// NewRepositories creates new repository instances with database connection
func NewRepositories(db *gorm.DB, logger *zap.Logger) *Repositories {
	return &Repositories{
		Purchase:        repository.NewPurchaseRepository(db, logger),
		Subscription:    repository.NewSubscriptionRepository(db, logger),
		Coupon:          repository.NewCouponRepository(db, logger),
		CustomerMapping: repository.NewCustomerMappingRepository(db, logger),
		Plan:            repository.NewPlanRepository(db, logger),
		WebhookEvent:    repository.NewWebhookEventRepository(db, logger),
	}
}
