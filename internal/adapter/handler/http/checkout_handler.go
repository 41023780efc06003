package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/pagebound/payment-service/internal/domain/entity"
	domainerrors "github.com/pagebound/payment-service/internal/domain/errors"
	"github.com/pagebound/payment-service/internal/domain/repository"
	"github.com/pagebound/payment-service/internal/middleware/auth"
	"github.com/pagebound/payment-service/internal/usecase"
)

// PortalProvider opens a gateway-hosted billing management page
type PortalProvider interface {
	CreatePortalSession(ctx context.Context, customerID string) (string, error)
}

type CheckoutHandler struct {
	checkout    *usecase.CheckoutService
	mappingRepo repository.CustomerMappingRepository
	portal      PortalProvider
	logger      *zap.Logger
}

func NewCheckoutHandler(checkout *usecase.CheckoutService, mappingRepo repository.CustomerMappingRepository, portal PortalProvider, logger *zap.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		checkout:    checkout,
		mappingRepo: mappingRepo,
		portal:      portal,
		logger:      logger,
	}
}

type CreateSessionRequest struct {
	Gateway    string      `json:"gateway" validate:"required,oneof=stripe paypal"`
	SessionKey string      `json:"session_key"`
	Cart       entity.Cart `json:"cart"`
}

// CreateSession builds the checkout artifact on the requested gateway
func (h *CheckoutHandler) CreateSession(c echo.Context) error {
	user, err := auth.RequireAuth(c)
	if err != nil {
		return err
	}

	var req CreateSessionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": "Invalid request body",
		})
	}
	req.Cart.OwnerID = user.UserID
	if req.Cart.Email == "" {
		req.Cart.Email = user.Email
	}
	// Clients that never applied a discount have no session key yet
	if req.SessionKey == "" {
		req.SessionKey = uuid.NewString()
	}

	gateway := entity.Gateway(req.Gateway)
	if gateway != entity.GatewayStripe && gateway != entity.GatewayPayPal {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": "Unknown gateway",
			"code":  "UNKNOWN_GATEWAY",
		})
	}

	session, err := h.checkout.CreateSession(c.Request().Context(), gateway, req.SessionKey, &req.Cart)
	if err != nil {
		switch {
		case errors.Is(err, domainerrors.ErrValidationFailed):
			return c.JSON(http.StatusBadRequest, echo.Map{
				"error": err.Error(),
				"code":  "VALIDATION_FAILED",
			})
		case errors.Is(err, domainerrors.ErrGatewayUnavailable):
			return c.JSON(http.StatusBadGateway, echo.Map{
				"error": "Payment gateway is unavailable, retry later",
				"code":  "GATEWAY_UNAVAILABLE",
			})
		case errors.Is(err, domainerrors.ErrCheckoutFailed):
			h.logger.Error("Checkout session build failed",
				zap.String("gateway", req.Gateway),
				zap.Error(err))
			return c.JSON(http.StatusBadGateway, echo.Map{
				"error": "Failed to build checkout session",
				"code":  "CHECKOUT_FAILED",
			})
		default:
			h.logger.Error("Checkout failed", zap.Error(err))
			return c.JSON(http.StatusInternalServerError, echo.Map{
				"error": "Checkout failed",
			})
		}
	}

	return c.JSON(http.StatusCreated, session)
}

// CreatePortalSession opens the billing portal for the caller's gateway
// customer record
func (h *CheckoutHandler) CreatePortalSession(c echo.Context) error {
	user, err := auth.RequireAuth(c)
	if err != nil {
		return err
	}

	mapping, err := h.mappingRepo.GetByOwner(c.Request().Context(), entity.GatewayStripe, user.UserID)
	if err != nil {
		h.logger.Error("Failed to look up customer mapping", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error": "Failed to open billing portal",
		})
	}
	if mapping == nil {
		return c.JSON(http.StatusNotFound, echo.Map{
			"error": "No billing profile for this account",
			"code":  "NO_CUSTOMER_MAPPING",
		})
	}

	url, err := h.portal.CreatePortalSession(c.Request().Context(), mapping.GatewayCustomerID)
	if err != nil {
		h.logger.Error("Failed to create portal session",
			zap.String("customer_id", mapping.GatewayCustomerID),
			zap.Error(err))
		return c.JSON(http.StatusBadGateway, echo.Map{
			"error": "Failed to open billing portal",
		})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"url": url,
	})
}
