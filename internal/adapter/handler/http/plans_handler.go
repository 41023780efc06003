package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/pagebound/payment-service/internal/domain/entity"
	"github.com/pagebound/payment-service/internal/domain/repository"
)

type PlansHandler struct {
	planRepo repository.PlanRepository
	logger   *zap.Logger
}

func NewPlansHandler(planRepo repository.PlanRepository, logger *zap.Logger) *PlansHandler {
	return &PlansHandler{
		planRepo: planRepo,
		logger:   logger,
	}
}

// GetPlans returns the cached plan catalog, optionally per gateway
func (h *PlansHandler) GetPlans(c echo.Context) error {
	gateway := entity.Gateway(c.QueryParam("gateway"))
	if gateway == "" {
		gateway = entity.GatewayStripe
	}
	if gateway != entity.GatewayStripe && gateway != entity.GatewayPayPal {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": "Unknown gateway",
			"code":  "UNKNOWN_GATEWAY",
		})
	}

	plans, err := h.planRepo.ListByGateway(c.Request().Context(), gateway)
	if err != nil {
		h.logger.Error("Failed to list plans",
			zap.String("gateway", string(gateway)),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error": "Failed to list plans",
		})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"plans": plans,
	})
}
