package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	domainErrors "github.com/richstorm00/saas-starter/internal/domain/errors"
	"github.com/richstorm00/saas-starter/internal/middleware/auth"
	"github.com/richstorm00/saas-starter/internal/usecase"
	"go.uber.org/zap"
)

type PortalHandler struct {
	logger *zap.Logger
	portal *usecase.PortalService
}

func NewPortalHandler(logger *zap.Logger, portal *usecase.PortalService) *PortalHandler {
	return &PortalHandler{
		logger: logger,
		portal: portal,
	}
}

type CreatePortalRequest struct {
	ReturnURL string `json:"returnUrl,omitempty" validate:"omitempty,url"`
}

// CreatePortalSession opens a billing portal session for the caller.
func (h *PortalHandler) CreatePortalSession(c echo.Context) error {
	user, err := auth.RequireAuth(c)
	if err != nil {
		return err
	}

	var req CreatePortalRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request body"})
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	session, err := h.portal.Open(c.Request().Context(), user.UserID, req.ReturnURL)
	if err != nil {
		var cfgErr *domainErrors.ConfigurationError
		switch {
		case errors.Is(err, domainErrors.ErrNoCustomerFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "No customer found"})
		case errors.As(err, &cfgErr):
			return c.JSON(http.StatusBadRequest, echo.Map{
				"error":   "Billing portal is not configured",
				"type":    "configuration_error",
				"message": cfgErr.Message,
			})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to create portal"})
		}
	}

	return c.JSON(http.StatusOK, echo.Map{"url": session.URL})
}
