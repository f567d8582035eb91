package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/richstorm00/saas-starter/internal/middleware/auth"
	"github.com/richstorm00/saas-starter/internal/usecase"
	"go.uber.org/zap"
)

type CheckoutHandler struct {
	logger   *zap.Logger
	checkout *usecase.CheckoutService
}

func NewCheckoutHandler(logger *zap.Logger, checkout *usecase.CheckoutService) *CheckoutHandler {
	return &CheckoutHandler{
		logger:   logger,
		checkout: checkout,
	}
}

type CreateCheckoutRequest struct {
	PriceID string `json:"priceId" validate:"required"`
}

// CreateCheckoutSession starts a subscription checkout for the caller.
func (h *CheckoutHandler) CreateCheckoutSession(c echo.Context) error {
	user, err := auth.RequireAuth(c)
	if err != nil {
		return err
	}

	var req CreateCheckoutRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Price ID is required"})
	}

	session, err := h.checkout.Create(c.Request().Context(), user.UserID, req.PriceID)
	if err != nil {
		return errorJSONWithDetails(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{"sessionId": session.ID, "url": session.URL})
}
