package usecase

import (
	"context"
	"fmt"

	"github.com/richstorm00/saas-starter/internal/domain/entity"
	domainErrors "github.com/richstorm00/saas-starter/internal/domain/errors"
	"github.com/richstorm00/saas-starter/internal/domain/repository"
	"go.uber.org/zap"
)

// Scan defaults.
const (
	DefaultScanPageSize  = 100
	DefaultScanPageLimit = 10
)

// UserLocator finds the user owning a processor customer.
type UserLocator struct {
	store      repository.MetadataStore
	index      repository.CustomerIndexRepository
	reconciler *Reconciler
	metrics    Metrics
	logger     *zap.Logger

	pageSize  int
	pageLimit int
}

// NewUserLocator creates a locator scanning at most pageSize*pageLimit users
// on an index miss. Non-positive values select the defaults.
func NewUserLocator(
	store repository.MetadataStore,
	index repository.CustomerIndexRepository,
	reconciler *Reconciler,
	metrics Metrics,
	logger *zap.Logger,
	pageSize, pageLimit int,
) *UserLocator {
	if pageSize <= 0 {
		pageSize = DefaultScanPageSize
	}
	if pageLimit <= 0 {
		pageLimit = DefaultScanPageLimit
	}
	if metrics == nil {
		metrics = NopMetrics{}
	}
	return &UserLocator{
		store:      store,
		index:      index,
		reconciler: reconciler,
		metrics:    metrics,
		logger:     logger,
		pageSize:   pageSize,
		pageLimit:  pageLimit,
	}
}

// FindByCustomerID returns the user's current document, or ErrUserNotFound.
// A scan hit repairs the index.
func (l *UserLocator) FindByCustomerID(ctx context.Context, customerID string) (*entity.MetadataDocument, error) {
	if customerID == "" {
		return nil, domainErrors.ErrUserNotFound
	}

	entry, err := l.index.GetByCustomerID(ctx, customerID)
	if err != nil {
		l.logger.Warn("Customer index lookup failed, falling back to scan",
			zap.String("customer_id", customerID),
			zap.Error(err))
	} else if entry != nil {
		doc, err := l.store.Get(ctx, entry.UserID)
		if err == nil {
			l.metrics.UserLookup("index")
			return doc, nil
		}
		if !isNotFound(err) {
			return nil, fmt.Errorf("failed to load indexed user %s: %w", entry.UserID, err)
		}
		l.logger.Warn("Indexed user no longer exists",
			zap.String("customer_id", customerID),
			zap.String("user_id", entry.UserID))
	}

	doc, err := l.scan(ctx, customerID)
	if err != nil {
		return nil, err
	}

	l.metrics.UserLookup("scan")
	if err := l.index.Upsert(ctx, customerID, doc.UserID, entity.IndexSourceScan); err != nil {
		l.logger.Warn("Failed to repair customer index",
			zap.String("customer_id", customerID),
			zap.String("user_id", doc.UserID),
			zap.Error(err))
	}
	return doc, nil
}

func (l *UserLocator) scan(ctx context.Context, customerID string) (*entity.MetadataDocument, error) {
	for page := 0; page < l.pageLimit; page++ {
		docs, err := l.store.List(ctx, page*l.pageSize, l.pageSize)
		if err != nil {
			return nil, fmt.Errorf("failed to list users: %w", err)
		}
		for _, doc := range docs {
			if l.customerOf(doc) == customerID {
				return doc, nil
			}
		}
		if len(docs) < l.pageSize {
			break
		}
	}

	l.metrics.UserLookup("miss")
	return nil, domainErrors.ErrUserNotFound
}

func (l *UserLocator) customerOf(doc *entity.MetadataDocument) string {
	state, err := l.reconciler.Reconcile(doc)
	if err == nil && state.CustomerID != "" {
		return state.CustomerID
	}
	return l.reconciler.ResolveCustomerID(doc)
}
