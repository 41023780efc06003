package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/pagebound/payment-service/internal/domain/entity"
	"github.com/pagebound/payment-service/internal/middleware/auth"
	"github.com/pagebound/payment-service/internal/usecase"
)

type PurchaseHandler struct {
	ledger *usecase.PurchaseLedger
	logger *zap.Logger
}

func NewPurchaseHandler(ledger *usecase.PurchaseLedger, logger *zap.Logger) *PurchaseHandler {
	return &PurchaseHandler{
		ledger: ledger,
		logger: logger,
	}
}

// GetHistory returns the caller's purchase history, newest first
func (h *PurchaseHandler) GetHistory(c echo.Context) error {
	user, err := auth.RequireAuth(c)
	if err != nil {
		return err
	}

	var params entity.PaginationParams
	if err := c.Bind(&params); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": "Invalid pagination parameters",
		})
	}

	records, meta, err := h.ledger.GetHistory(c.Request().Context(), user.UserID, params)
	if err != nil {
		h.logger.Error("Failed to load purchase history",
			zap.String("owner_id", user.UserID),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error": "Failed to load purchase history",
		})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"purchases":  records,
		"pagination": meta,
	})
}
