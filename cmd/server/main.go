package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/pagebound/payment-service/internal/config"
	"github.com/pagebound/payment-service/internal/domain/entity"
	"github.com/pagebound/payment-service/internal/domain/provider"
	"github.com/pagebound/payment-service/internal/infrastructure/database"
	httpServer "github.com/pagebound/payment-service/internal/infrastructure/http"
	"github.com/pagebound/payment-service/internal/infrastructure/keyedstore"
	"github.com/pagebound/payment-service/internal/infrastructure/notify"
	"github.com/pagebound/payment-service/internal/infrastructure/provider/paypal"
	"github.com/pagebound/payment-service/internal/infrastructure/provider/stripe"
	"github.com/pagebound/payment-service/internal/pkg/logger"
	"github.com/pagebound/payment-service/internal/usecase"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	zapLogger, err := logger.NewZapLogger(logger.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		Output:      cfg.Log.Output,
		FilePath:    cfg.Log.FilePath,
		Development: cfg.Log.Development,
	})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()

	// Initialize database connection
	db, err := database.NewConnection(&cfg.Database, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := database.Close(db, zapLogger); err != nil {
			zapLogger.Error("Failed to close database connection", zap.Error(err))
		}
	}()

	// Run database migrations
	if err := database.Migrate(db, zapLogger); err != nil {
		zapLogger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	// Initialize repositories
	repos := database.NewRepositories(db, zapLogger)

	// Initialize keyed store
	store, err := keyedstore.NewRedisStore(&cfg.Redis, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to connect to redis", zap.Error(err))
	}

	// Initialize payment gateways
	stripeGateway := stripe.NewGateway(&cfg.Service.Stripe, cfg.Service.ClientURL, zapLogger)
	paypalGateway := paypal.NewGateway(&cfg.Service.PayPal, zapLogger)
	gateways := map[entity.Gateway]provider.PaymentGateway{
		entity.GatewayStripe: stripeGateway,
		entity.GatewayPayPal: paypalGateway,
	}

	// Initialize use cases
	discounts := usecase.NewDiscountService(repos.Coupon, store, zapLogger)
	checkout := usecase.NewCheckoutService(gateways, discounts, repos.Coupon, repos.CustomerMapping, zapLogger)
	ledger := usecase.NewPurchaseLedger(repos.Purchase, store, zapLogger)
	subscriptions := usecase.NewSubscriptionService(repos.Subscription, repos.CustomerMapping, gateways, zapLogger)
	tracker := usecase.NewCorrelationTracker(store, zapLogger)
	normalizer := usecase.NewNormalizer(zapLogger)
	notifier := notify.NewWebhookNotifier(&cfg.Service.Notify, zapLogger)
	processor := usecase.NewWebhookProcessor(gateways, normalizer, tracker, ledger, subscriptions,
		repos.Plan, repos.WebhookEvent, store, notifier, zapLogger)

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start the correlation expiry sweeper
	sweepInterval := cfg.Service.SweepInterval
	if sweepInterval <= 0 {
		sweepInterval = time.Minute
	}
	go processor.StartExpirySweeper(ctx, sweepInterval)

	// Initialize HTTP server
	httpSrv := httpServer.NewServer(cfg, zapLogger, repos, &httpServer.Services{
		Discounts:     discounts,
		Checkout:      checkout,
		Ledger:        ledger,
		Subscriptions: subscriptions,
		Processor:     processor,
		Portal:        stripeGateway,
	})

	go func() {
		if err := httpSrv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	zapLogger.Info("Shutting down server...")
	cancel()

	shutdownTimeout := cfg.Server.HTTP.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("Failed to shutdown HTTP server", zap.Error(err))
	}

	zapLogger.Info("Server shut down successfully")
}
