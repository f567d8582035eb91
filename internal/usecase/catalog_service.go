package usecase

import (
	"context"
	"sort"
	"strings"

	"github.com/richstorm00/saas-starter/internal/domain/entity"
	"github.com/richstorm00/saas-starter/internal/domain/provider"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Currencies whose minor unit is the major unit.
var zeroDecimalCurrencies = map[string]bool{
	"bif": true, "clp": true, "djf": true, "gnf": true, "jpy": true, "kmf": true,
	"krw": true, "mga": true, "pyg": true, "rwf": true, "ugx": true, "vnd": true,
	"vuv": true, "xaf": true, "xof": true, "xpf": true,
}

// MinorToMajor converts an amount in minor units to a decimal in major units.
func MinorToMajor(amount int64, currency string) decimal.Decimal {
	if zeroDecimalCurrencies[strings.ToLower(currency)] {
		return decimal.NewFromInt(amount)
	}
	return decimal.New(amount, -2)
}

// CatalogService lists purchasable products.
type CatalogService struct {
	processor provider.PaymentProcessor
	logger    *zap.Logger
}

// NewCatalogService creates a new catalog service
func NewCatalogService(processor provider.PaymentProcessor, logger *zap.Logger) *CatalogService {
	return &CatalogService{processor: processor, logger: logger}
}

// ListProducts returns active products sorted by their first recurring price,
// free plans first.
func (s *CatalogService) ListProducts(ctx context.Context) ([]entity.CatalogProduct, error) {
	products, err := s.processor.ListCatalog(ctx)
	if err != nil {
		s.logger.Error("Failed to fetch products", zap.Error(err))
		return nil, err
	}

	for i := range products {
		for j := range products[i].Prices {
			price := &products[i].Prices[j]
			price.Amount = MinorToMajor(price.UnitAmount, price.Currency)
		}
	}

	sort.SliceStable(products, func(a, b int) bool {
		return products[a].SortAmount() < products[b].SortAmount()
	})
	return products, nil
}
