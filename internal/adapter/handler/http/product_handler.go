package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/richstorm00/saas-starter/internal/usecase"
	"go.uber.org/zap"
)

type ProductHandler struct {
	logger  *zap.Logger
	catalog *usecase.CatalogService
}

func NewProductHandler(logger *zap.Logger, catalog *usecase.CatalogService) *ProductHandler {
	return &ProductHandler{
		logger:  logger,
		catalog: catalog,
	}
}

// GetProducts lists active products cheapest first.
func (h *ProductHandler) GetProducts(c echo.Context) error {
	products, err := h.catalog.ListProducts(c.Request().Context())
	if err != nil {
		h.logger.Error("Failed to fetch products", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to fetch products"})
	}

	return c.JSON(http.StatusOK, echo.Map{"products": products})
}
