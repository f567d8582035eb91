package usecase

import (
	"context"
	"fmt"

	"github.com/richstorm00/saas-starter/internal/domain/entity"
	"github.com/richstorm00/saas-starter/internal/domain/repository"
	"go.uber.org/zap"
)

// BackfillReport summarises an index backfill run.
type BackfillReport struct {
	Scanned int `json:"scanned"`
	Indexed int `json:"indexed"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// IndexBackfill rebuilds the customer index from the metadata store.
type IndexBackfill struct {
	store      repository.MetadataStore
	index      repository.CustomerIndexRepository
	reconciler *Reconciler
	logger     *zap.Logger
}

// NewIndexBackfill creates a new index backfill
func NewIndexBackfill(
	store repository.MetadataStore,
	index repository.CustomerIndexRepository,
	reconciler *Reconciler,
	logger *zap.Logger,
) *IndexBackfill {
	return &IndexBackfill{store: store, index: index, reconciler: reconciler, logger: logger}
}

// Run pages through every user and indexes each resolvable customer id.
// Individual upsert failures are counted, not fatal.
func (b *IndexBackfill) Run(ctx context.Context, pageSize int) (*BackfillReport, error) {
	if pageSize <= 0 {
		pageSize = DefaultScanPageSize
	}

	report := &BackfillReport{}
	for offset := 0; ; offset += pageSize {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		docs, err := b.store.List(ctx, offset, pageSize)
		if err != nil {
			return report, fmt.Errorf("failed to list users at offset %d: %w", offset, err)
		}

		for _, doc := range docs {
			report.Scanned++
			customerID := b.customerOf(doc)
			if customerID == "" {
				report.Skipped++
				continue
			}
			if err := b.index.Upsert(ctx, customerID, doc.UserID, entity.IndexSourceBackfill); err != nil {
				report.Failed++
				b.logger.Warn("Failed to index customer",
					zap.String("user_id", doc.UserID),
					zap.String("customer_id", customerID),
					zap.Error(err))
				continue
			}
			report.Indexed++
		}

		if len(docs) < pageSize {
			break
		}
	}

	b.logger.Info("Customer index backfill finished",
		zap.Int("scanned", report.Scanned),
		zap.Int("indexed", report.Indexed),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed))
	return report, nil
}

func (b *IndexBackfill) customerOf(doc *entity.MetadataDocument) string {
	if state, err := b.reconciler.Reconcile(doc); err == nil && state.CustomerID != "" {
		return state.CustomerID
	}
	return b.reconciler.ResolveCustomerID(doc)
}
