package http

import (
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	domainErrors "github.com/richstorm00/saas-starter/internal/domain/errors"
	"github.com/richstorm00/saas-starter/internal/usecase"
	"go.uber.org/zap"
)

// SignatureHeader carries the processor's webhook signature.
const SignatureHeader = "Stripe-Signature"

// MaxWebhookBody bounds the payload read from a delivery. Larger bodies are
// rejected, never truncated.
const MaxWebhookBody = 1 << 20

type WebhookHandler struct {
	logger   *zap.Logger
	ingestor *usecase.EventIngestor
}

func NewWebhookHandler(logger *zap.Logger, ingestor *usecase.EventIngestor) *WebhookHandler {
	return &WebhookHandler{
		logger:   logger,
		ingestor: ingestor,
	}
}

// HandleWebhook reads the raw body and hands it to the ingestor unparsed;
// signature verification needs the exact bytes.
func (h *WebhookHandler) HandleWebhook(c echo.Context) error {
	body, err := io.ReadAll(http.MaxBytesReader(c.Response(), c.Request().Body, MaxWebhookBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.logger.Warn("Webhook body too large", zap.Int64("limit", tooLarge.Limit))
			return c.JSON(http.StatusRequestEntityTooLarge, echo.Map{"error": "Request body too large"})
		}
		h.logger.Error("Error reading request body", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Error reading request body"})
	}

	result, err := h.ingestor.Ingest(c.Request().Context(), body, c.Request().Header.Get(SignatureHeader))
	if err != nil {
		if errors.Is(err, domainErrors.ErrInvalidSignature) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid signature"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Webhook processing failed"})
	}

	h.logger.Debug("Webhook acknowledged",
		zap.String("event_id", result.EventID),
		zap.String("outcome", result.Outcome))

	return c.JSON(http.StatusOK, echo.Map{"received": true})
}
