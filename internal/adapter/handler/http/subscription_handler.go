package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	domainerrors "github.com/pagebound/payment-service/internal/domain/errors"
	"github.com/pagebound/payment-service/internal/middleware/auth"
	"github.com/pagebound/payment-service/internal/usecase"
)

type SubscriptionHandler struct {
	subscriptions *usecase.SubscriptionService
	logger        *zap.Logger
}

func NewSubscriptionHandler(subscriptions *usecase.SubscriptionService, logger *zap.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{
		subscriptions: subscriptions,
		logger:        logger,
	}
}

// GetCurrent returns the caller's active subscription
func (h *SubscriptionHandler) GetCurrent(c echo.Context) error {
	user, err := auth.RequireAuth(c)
	if err != nil {
		return err
	}

	record, err := h.subscriptions.GetCurrent(c.Request().Context(), user.UserID)
	if err != nil {
		h.logger.Error("Failed to load subscription",
			zap.String("owner_id", user.UserID),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error": "Failed to load subscription",
		})
	}
	if record == nil {
		return c.JSON(http.StatusNotFound, echo.Map{
			"error": "No active subscription",
			"code":  "NO_SUBSCRIPTION",
		})
	}

	return c.JSON(http.StatusOK, record)
}

// Cancel starts the two-phase cancellation for the caller's subscription
func (h *SubscriptionHandler) Cancel(c echo.Context) error {
	user, err := auth.RequireAuth(c)
	if err != nil {
		return err
	}

	externalID := c.Param("id")
	if externalID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": "Subscription id required",
		})
	}

	err = h.subscriptions.RequestCancellation(c.Request().Context(), user.UserID, externalID)
	if err != nil {
		switch {
		case errors.Is(err, domainerrors.ErrNoActiveSubscription):
			return c.JSON(http.StatusNotFound, echo.Map{
				"error": "No active subscription",
				"code":  "NO_SUBSCRIPTION",
			})
		case errors.Is(err, domainerrors.ErrNotSubscriptionOwner):
			return c.JSON(http.StatusForbidden, echo.Map{
				"error": "Subscription belongs to another account",
				"code":  "NOT_SUBSCRIPTION_OWNER",
			})
		default:
			h.logger.Error("Cancellation request failed",
				zap.String("owner_id", user.UserID),
				zap.String("external_id", externalID),
				zap.Error(err))
			return c.JSON(http.StatusBadGateway, echo.Map{
				"error": "Failed to request cancellation",
			})
		}
	}

	return c.JSON(http.StatusOK, echo.Map{
		"status": "cancellation_requested",
	})
}
