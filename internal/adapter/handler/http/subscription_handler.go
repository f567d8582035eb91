package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/richstorm00/saas-starter/internal/middleware/auth"
	"github.com/richstorm00/saas-starter/internal/usecase"
	"go.uber.org/zap"
)

type SubscriptionHandler struct {
	logger       *zap.Logger
	projector    *usecase.PlanProjector
	cancellation *usecase.CancellationService
}

func NewSubscriptionHandler(
	logger *zap.Logger,
	projector *usecase.PlanProjector,
	cancellation *usecase.CancellationService,
) *SubscriptionHandler {
	return &SubscriptionHandler{
		logger:       logger,
		projector:    projector,
		cancellation: cancellation,
	}
}

// GetCurrentPlan returns the caller's plan view.
func (h *SubscriptionHandler) GetCurrentPlan(c echo.Context) error {
	user, err := auth.RequireAuth(c)
	if err != nil {
		return err
	}

	view, err := h.projector.CurrentPlan(c.Request().Context(), user.UserID)
	if err != nil {
		return errorJSON(c, err)
	}

	return c.JSON(http.StatusOK, view)
}

// CancelSubscription cancels the caller's subscription and clears its metadata.
func (h *SubscriptionHandler) CancelSubscription(c echo.Context) error {
	user, err := auth.RequireAuth(c)
	if err != nil {
		return err
	}

	h.logger.Info("Cancelling subscription", zap.String("user_id", user.UserID))

	result, err := h.cancellation.Cancel(c.Request().Context(), user.UserID)
	if err != nil {
		return errorJSONWithDetails(c, err)
	}

	return c.JSON(http.StatusOK, result)
}
