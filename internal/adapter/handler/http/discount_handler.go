package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/pagebound/payment-service/internal/domain/entity"
	domainerrors "github.com/pagebound/payment-service/internal/domain/errors"
	"github.com/pagebound/payment-service/internal/middleware/auth"
	"github.com/pagebound/payment-service/internal/usecase"
)

type DiscountHandler struct {
	discounts *usecase.DiscountService
	logger    *zap.Logger
}

func NewDiscountHandler(discounts *usecase.DiscountService, logger *zap.Logger) *DiscountHandler {
	return &DiscountHandler{
		discounts: discounts,
		logger:    logger,
	}
}

type ComputeDiscountRequest struct {
	Cart       entity.Cart `json:"cart"`
	CouponCode string      `json:"coupon_code"`
}

// ComputeDiscount previews the discount for a cart without pinning it
func (h *DiscountHandler) ComputeDiscount(c echo.Context) error {
	user, err := auth.RequireAuth(c)
	if err != nil {
		return err
	}

	var req ComputeDiscountRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": "Invalid request body",
		})
	}
	req.Cart.OwnerID = user.UserID

	result, err := h.discounts.Compute(c.Request().Context(), &req.Cart, req.CouponCode)
	if err != nil {
		return h.discountError(c, err)
	}

	return c.JSON(http.StatusOK, result)
}

// ApplySessionDiscount computes and pins the discount to the checkout session
func (h *DiscountHandler) ApplySessionDiscount(c echo.Context) error {
	user, err := auth.RequireAuth(c)
	if err != nil {
		return err
	}

	sessionKey := c.Param("sessionKey")
	if sessionKey == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": "Session key required",
		})
	}

	var req ComputeDiscountRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": "Invalid request body",
		})
	}
	req.Cart.OwnerID = user.UserID

	result, err := h.discounts.ApplyToSession(c.Request().Context(), sessionKey, &req.Cart, req.CouponCode)
	if err != nil {
		return h.discountError(c, err)
	}

	return c.JSON(http.StatusCreated, result)
}

// GetSessionDiscount returns the discount pinned to a session
func (h *DiscountHandler) GetSessionDiscount(c echo.Context) error {
	if _, err := auth.RequireAuth(c); err != nil {
		return err
	}

	result, err := h.discounts.GetPinned(c.Request().Context(), c.Param("sessionKey"))
	if err != nil {
		h.logger.Error("Failed to read pinned discount", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error": "Failed to read discount",
		})
	}
	if result == nil {
		return c.JSON(http.StatusNotFound, echo.Map{
			"error": "No discount pinned to this session",
		})
	}

	return c.JSON(http.StatusOK, result)
}

// RemoveSessionDiscount unpins the session's discount so another coupon
// can be applied
func (h *DiscountHandler) RemoveSessionDiscount(c echo.Context) error {
	if _, err := auth.RequireAuth(c); err != nil {
		return err
	}

	if err := h.discounts.RemoveFromSession(c.Request().Context(), c.Param("sessionKey")); err != nil {
		h.logger.Error("Failed to unpin discount", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error": "Failed to remove discount",
		})
	}

	return c.NoContent(http.StatusNoContent)
}

func (h *DiscountHandler) discountError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, domainerrors.ErrCouponNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{
			"error": "Coupon not found",
			"code":  "COUPON_NOT_FOUND",
		})
	case errors.Is(err, domainerrors.ErrCouponExpired):
		return c.JSON(http.StatusGone, echo.Map{
			"error": "Coupon is expired or exhausted",
			"code":  "COUPON_EXPIRED",
		})
	case errors.Is(err, domainerrors.ErrCouponBelowMinimum):
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{
			"error": "Cart subtotal is below the coupon minimum",
			"code":  "COUPON_BELOW_MINIMUM",
		})
	case errors.Is(err, domainerrors.ErrDiscountPinned):
		return c.JSON(http.StatusConflict, echo.Map{
			"error": "A discount is already pinned to this session",
			"code":  "DISCOUNT_PINNED",
		})
	case errors.Is(err, domainerrors.ErrValidationFailed):
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": err.Error(),
			"code":  "VALIDATION_FAILED",
		})
	default:
		h.logger.Error("Discount computation failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error": "Failed to compute discount",
		})
	}
}
