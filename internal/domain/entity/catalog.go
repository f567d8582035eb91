package entity

import "github.com/shopspring/decimal"

// CatalogPrice is an active price of a catalogue product.
type CatalogPrice struct {
	ID            string          `json:"id"`
	Nickname      string          `json:"nickname,omitempty"`
	UnitAmount    int64           `json:"unit_amount"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Interval      string          `json:"interval,omitempty"`
	IntervalCount int64           `json:"interval_count,omitempty"`
	Type          string          `json:"type"`
	Recurring     bool            `json:"recurring"`
}

// CatalogProduct is an active product with its active prices.
type CatalogProduct struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	Prices      []CatalogPrice    `json:"prices"`
}

// SortAmount is the first recurring unit amount. Products without a recurring
// price sort as free.
func (p CatalogProduct) SortAmount() int64 {
	for _, price := range p.Prices {
		if price.Recurring {
			return price.UnitAmount
		}
	}
	return 0
}
