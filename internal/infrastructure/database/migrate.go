package database

import (
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/pagebound/payment-service/internal/domain/model"
)

// Migrate runs database migrations
func Migrate(db *gorm.DB, logger *zap.Logger) error {
	logger.Info("Running database migrations...")

	err := db.AutoMigrate(
		&model.Purchase{},
		&model.Subscription{},
		&model.Coupon{},
		&model.CustomerMapping{},
		&model.Plan{},
		&model.WebhookEvent{},
	)
	if err != nil {
		logger.Error("Failed to run migrations", zap.Error(err))
		return err
	}

	if err := createCustomIndexes(db); err != nil {
		logger.Error("Failed to create custom indexes", zap.Error(err))
		return err
	}

	logger.Info("Database migrations completed successfully")
	return nil
}

// createCustomIndexes creates indexes GORM does not handle through tags
func createCustomIndexes(db *gorm.DB) error {
	// Failed and pending deliveries are what the replay tooling scans for
	if err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_webhook_events_unprocessed ON webhook_events (created_at) WHERE status IN ('pending', 'failed')`).Error; err != nil {
		return err
	}

	// Purchase history reads hit both the buyer and recipient columns
	if err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_purchases_gift_for ON purchases (gift_for) WHERE gift_for IS NOT NULL`).Error; err != nil {
		return err
	}

	return nil
}
