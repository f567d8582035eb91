package usecase

import (
	"context"

	"github.com/richstorm00/saas-starter/internal/domain/entity"
	"github.com/richstorm00/saas-starter/internal/domain/provider"
	"go.uber.org/zap"
)

// PlanNamer derives a display plan name from a subscription price.
type PlanNamer struct {
	processor provider.PaymentProcessor
	logger    *zap.Logger
}

// NewPlanNamer creates a new plan namer
func NewPlanNamer(processor provider.PaymentProcessor, logger *zap.Logger) *PlanNamer {
	return &PlanNamer{processor: processor, logger: logger}
}

// PlanName prefers the product name, then the price nickname, then the product id.
func (n *PlanNamer) PlanName(ctx context.Context, price *provider.Price) string {
	if price == nil {
		return entity.DefaultPlanName
	}
	if price.ProductName != "" {
		return price.ProductName
	}

	if price.ProductID != "" {
		product, err := n.processor.GetProduct(ctx, price.ProductID)
		if err == nil && product.Name != "" {
			return product.Name
		}
		if err != nil {
			n.logger.Warn("Failed to fetch product for plan name",
				zap.String("product_id", price.ProductID),
				zap.Error(err))
		}
	}

	switch {
	case price.Nickname != "":
		return price.Nickname
	case price.ProductID != "":
		return price.ProductID
	default:
		return entity.DefaultPlanName
	}
}
