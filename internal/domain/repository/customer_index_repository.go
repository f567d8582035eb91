package repository

import (
	"context"

	"github.com/richstorm00/saas-starter/internal/domain/entity"
)

// CustomerIndexRepository is the customerId -> userId secondary index.
type CustomerIndexRepository interface {
	// Upsert inserts or repoints the entry for customerID.
	Upsert(ctx context.Context, customerID, userID string, source entity.IndexSource) error

	// GetByCustomerID returns nil, nil when the customer is not indexed.
	GetByCustomerID(ctx context.Context, customerID string) (*entity.CustomerIndexEntry, error)

	// GetByUserID returns nil, nil when the user has no indexed customer.
	GetByUserID(ctx context.Context, userID string) (*entity.CustomerIndexEntry, error)
}
