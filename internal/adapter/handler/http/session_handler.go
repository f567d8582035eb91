package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/richstorm00/saas-starter/internal/middleware/auth"
	"github.com/richstorm00/saas-starter/internal/usecase"
	"go.uber.org/zap"
)

type SessionHandler struct {
	logger *zap.Logger
	sync   *usecase.SyncService
}

func NewSessionHandler(logger *zap.Logger, sync *usecase.SyncService) *SessionHandler {
	return &SessionHandler{
		logger: logger,
		sync:   sync,
	}
}

// VerifySession confirms a completed checkout and syncs it into the caller's
// metadata.
func (h *SessionHandler) VerifySession(c echo.Context) error {
	user, err := auth.RequireAuth(c)
	if err != nil {
		return err
	}

	sessionID := c.QueryParam("session_id")
	if sessionID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Session ID is required"})
	}

	result, err := h.sync.VerifySession(c.Request().Context(), user.UserID, sessionID)
	if err != nil {
		return errorJSONWithDetails(c, err)
	}

	return c.JSON(http.StatusOK, result)
}

// UpdateMetadata copies a subscription into the caller's metadata.
func (h *SessionHandler) UpdateMetadata(c echo.Context) error {
	user, err := auth.RequireAuth(c)
	if err != nil {
		return err
	}

	var req usecase.SyncRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Subscription ID is required"})
	}

	h.logger.Info("Syncing subscription metadata",
		zap.String("user_id", user.UserID),
		zap.String("subscription_id", req.SubscriptionID))

	result, err := h.sync.SyncSubscription(c.Request().Context(), user.UserID, req)
	if err != nil {
		return errorJSONWithDetails(c, err)
	}

	return c.JSON(http.StatusOK, result)
}
