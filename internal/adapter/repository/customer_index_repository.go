package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/richstorm00/saas-starter/internal/domain/entity"
	"github.com/richstorm00/saas-starter/internal/domain/model"
	"github.com/richstorm00/saas-starter/internal/domain/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type customerIndexRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewCustomerIndexRepository creates a new customer index repository
func NewCustomerIndexRepository(db *gorm.DB, logger *zap.Logger) repository.CustomerIndexRepository {
	return &customerIndexRepository{
		db:     db,
		logger: logger,
	}
}

// modelToEntity converts a model.CustomerIndex to entity.CustomerIndexEntry
func (r *customerIndexRepository) modelToEntity(m *model.CustomerIndex) *entity.CustomerIndexEntry {
	if m == nil {
		return nil
	}
	return &entity.CustomerIndexEntry{
		ID:                 m.ID.String(),
		ProviderCustomerID: m.ProviderCustomerID,
		UserID:             m.UserID,
		Source:             entity.IndexSource(m.Source),
		CreatedAt:          m.CreatedAt,
		UpdatedAt:          m.UpdatedAt,
	}
}

// Upsert inserts the entry or repoints an existing customer to userID
func (r *customerIndexRepository) Upsert(ctx context.Context, customerID, userID string, source entity.IndexSource) error {
	now := time.Now()
	row := &model.CustomerIndex{
		ID:                 uuid.New(),
		ProviderCustomerID: customerID,
		UserID:             userID,
		Source:             string(source),
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "provider_customer_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"user_id", "source", "updated_at"}),
		}).
		Create(row).Error

	if err != nil {
		r.logger.Error("Failed to upsert customer index",
			zap.String("customer_id", customerID),
			zap.String("user_id", userID),
			zap.Error(err))
		return fmt.Errorf("failed to upsert customer index: %w", err)
	}

	return nil
}

func (r *customerIndexRepository) GetByCustomerID(ctx context.Context, customerID string) (*entity.CustomerIndexEntry, error) {
	var row model.CustomerIndex
	err := r.db.WithContext(ctx).Where("provider_customer_id = ?", customerID).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get customer index: %w", err)
	}
	return r.modelToEntity(&row), nil
}

func (r *customerIndexRepository) GetByUserID(ctx context.Context, userID string) (*entity.CustomerIndexEntry, error) {
	var row model.CustomerIndex
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get customer index: %w", err)
	}
	return r.modelToEntity(&row), nil
}
