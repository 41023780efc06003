package http

import (
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/pagebound/payment-service/internal/domain/entity"
	domainerrors "github.com/pagebound/payment-service/internal/domain/errors"
	"github.com/pagebound/payment-service/internal/usecase"
)

// maxWebhookBody caps inbound delivery size
const maxWebhookBody = 1 << 20

// WebhookHandler receives gateway deliveries. Only authentication
// failures produce a non-2xx response; every verified delivery is
// acknowledged so gateways never build up retry storms against us.
type WebhookHandler struct {
	processor *usecase.WebhookProcessor
	logger    *zap.Logger
}

func NewWebhookHandler(processor *usecase.WebhookProcessor, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		processor: processor,
		logger:    logger,
	}
}

// HandleStripe receives Stripe deliveries
func (h *WebhookHandler) HandleStripe(c echo.Context) error {
	return h.handle(c, entity.GatewayStripe)
}

// HandlePayPal receives PayPal deliveries
func (h *WebhookHandler) HandlePayPal(c echo.Context) error {
	return h.handle(c, entity.GatewayPayPal)
}

func (h *WebhookHandler) handle(c echo.Context, gateway entity.Gateway) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		h.logger.Error("Failed to read webhook body",
			zap.String("gateway", string(gateway)),
			zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": "Failed to read request body",
		})
	}

	err = h.processor.Process(c.Request().Context(), gateway, body, c.Request().Header)
	if err != nil {
		if errors.Is(err, domainerrors.ErrAuthenticationFailed) {
			return c.JSON(http.StatusUnauthorized, echo.Map{
				"error": "Webhook verification failed",
			})
		}
		if errors.Is(err, domainerrors.ErrGatewayUnavailable) {
			return c.JSON(http.StatusBadGateway, echo.Map{
				"error": "Webhook verification unavailable, retry",
			})
		}
		h.logger.Error("Webhook processing error",
			zap.String("gateway", string(gateway)),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error": "Webhook processing failed",
		})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"received": true,
	})
}
