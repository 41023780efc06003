package http

import (
	"context"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	handlers "github.com/pagebound/payment-service/internal/adapter/handler/http"
	"github.com/pagebound/payment-service/internal/config"
	"github.com/pagebound/payment-service/internal/infrastructure/database"
	"github.com/pagebound/payment-service/internal/middleware/auth"
	"github.com/pagebound/payment-service/internal/pkg/logger"
	"github.com/pagebound/payment-service/internal/usecase"
)

// Services bundles the use cases the HTTP surface exposes
type Services struct {
	Discounts     *usecase.DiscountService
	Checkout      *usecase.CheckoutService
	Ledger        *usecase.PurchaseLedger
	Subscriptions *usecase.SubscriptionService
	Processor     *usecase.WebhookProcessor
	Portal        handlers.PortalProvider
}

type Server struct {
	config   *config.Config
	logger   *zap.Logger
	echo     *echo.Echo
	repos    *database.Repositories
	services *Services
}

func NewServer(cfg *config.Config, log *zap.Logger, repos *database.Repositories, services *Services) *Server {
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(logger.NewEchoRequestLogger(log))
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{cfg.Service.ClientURL},
		AllowMethods: []string{echo.GET, echo.POST, echo.PUT, echo.DELETE},
	}))

	return &Server{
		config:   cfg,
		logger:   log,
		echo:     e,
		repos:    repos,
		services: services,
	}
}

func (s *Server) Start() error {
	// Setup routes
	s.setupRoutes()

	addr := fmt.Sprintf("%s:%d", s.config.Server.HTTP.Host, s.config.Server.HTTP.Port)
	s.logger.Info("Starting HTTP server", zap.String("address", addr))

	return s.echo.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) setupRoutes() {
	// Health check
	s.echo.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "healthy",
			"service": s.config.Service.Name,
		})
	})

	// Initialize handlers
	discountHandler := handlers.NewDiscountHandler(s.services.Discounts, s.logger)
	checkoutHandler := handlers.NewCheckoutHandler(s.services.Checkout, s.repos.CustomerMapping, s.services.Portal, s.logger)
	purchaseHandler := handlers.NewPurchaseHandler(s.services.Ledger, s.logger)
	subscriptionHandler := handlers.NewSubscriptionHandler(s.services.Subscriptions, s.logger)
	webhookHandler := handlers.NewWebhookHandler(s.services.Processor, s.logger)
	plansHandler := handlers.NewPlansHandler(s.repos.Plan, s.logger)

	// JWT middleware configuration
	jwtConfig := auth.JWTConfig{
		Secret: s.config.JWT.Secret,
		Logger: s.logger,
		SkipPaths: []string{
			"/health",
			"/webhook",
			"/api/v1/plans",
		},
	}

	// API v1 routes
	v1 := s.echo.Group("/api/v1")

	// Public routes (no authentication required)
	v1.GET("/plans", plansHandler.GetPlans)

	// Protected routes (require JWT authentication)
	protected := v1.Group("", auth.JWTMiddleware(jwtConfig))

	// Discounts
	protected.POST("/discounts/compute", discountHandler.ComputeDiscount)
	protected.POST("/sessions/:sessionKey/discount", discountHandler.ApplySessionDiscount)
	protected.GET("/sessions/:sessionKey/discount", discountHandler.GetSessionDiscount)
	protected.DELETE("/sessions/:sessionKey/discount", discountHandler.RemoveSessionDiscount)

	// Checkout
	protected.POST("/checkout/sessions", checkoutHandler.CreateSession)

	// Purchases
	protected.GET("/purchases", purchaseHandler.GetHistory)

	// Subscriptions
	subscriptions := protected.Group("/subscriptions")
	subscriptions.GET("/current", subscriptionHandler.GetCurrent)
	subscriptions.DELETE("/:id", subscriptionHandler.Cancel)
	subscriptions.POST("/portal", checkoutHandler.CreatePortalSession)

	// Webhook routes (outside API versioning, verified by signature)
	s.echo.POST("/webhook/stripe", webhookHandler.HandleStripe)
	s.echo.POST("/webhook/paypal", webhookHandler.HandlePayPal)
}
