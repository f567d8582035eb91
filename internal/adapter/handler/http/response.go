package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	domainErrors "github.com/richstorm00/saas-starter/internal/domain/errors"
	apperrors "github.com/richstorm00/saas-starter/pkg/errors"
)

// errorJSON renders err as {"error": message} with its mapped status.
func errorJSON(c echo.Context, err error) error {
	httpErr := apperrors.ToHTTPError(err)
	return c.JSON(httpErr.Code, echo.Map{"error": httpErr.Message})
}

// errorJSONWithDetails is errorJSON plus the upstream cause for server errors.
func errorJSONWithDetails(c echo.Context, err error) error {
	httpErr := apperrors.ToHTTPError(err)
	body := echo.Map{"error": httpErr.Message}
	if httpErr.Code >= http.StatusInternalServerError {
		body["details"] = detailsOf(err)
	}
	return c.JSON(httpErr.Code, body)
}

func detailsOf(err error) string {
	var procErr *domainErrors.ProcessorError
	if errors.As(err, &procErr) && procErr.Details != "" {
		return procErr.Details
	}
	return err.Error()
}
