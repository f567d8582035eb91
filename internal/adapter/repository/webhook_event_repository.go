package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/richstorm00/saas-starter/internal/domain/model"
	"github.com/richstorm00/saas-starter/internal/domain/repository"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type webhookEventRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewWebhookEventRepository creates a new webhook event repository
func NewWebhookEventRepository(db *gorm.DB, logger *zap.Logger) repository.WebhookEventRepository {
	return &webhookEventRepository{
		db:     db,
		logger: logger,
	}
}

// Record saves a new webhook event
func (r *webhookEventRepository) Record(ctx context.Context, eventID, eventType string, payload []byte, createdAt time.Time) error {
	if len(payload) == 0 {
		payload = []byte("{}")
	}

	event := &model.WebhookEvent{
		ID:        uuid.New(),
		EventID:   eventID,
		EventType: eventType,
		Status:    model.WebhookStatusPending,
		Payload:   datatypes.JSON(payload),
	}
	if !createdAt.IsZero() {
		event.ProviderCreatedAt = &createdAt
	}

	// Use ON CONFLICT to handle duplicate events
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(event).Error

	if err != nil {
		r.logger.Error("Failed to save webhook event",
			zap.String("event_id", eventID),
			zap.String("event_type", eventType),
			zap.Error(err))
		return fmt.Errorf("failed to save webhook event: %w", err)
	}

	return nil
}

// Get retrieves a webhook event by its processor id
func (r *webhookEventRepository) Get(ctx context.Context, eventID string) (*model.WebhookEvent, error) {
	var event model.WebhookEvent

	err := r.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		First(&event).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logger.Error("Failed to get webhook event",
			zap.String("event_id", eventID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get webhook event: %w", err)
	}

	return &event, nil
}

// MarkProcessing increments the attempt counter
func (r *webhookEventRepository) MarkProcessing(ctx context.Context, eventID string) error {
	return r.update(ctx, eventID, map[string]interface{}{
		"status":     model.WebhookStatusProcessing,
		"attempts":   gorm.Expr("attempts + 1"),
		"updated_at": time.Now(),
	})
}

// MarkCompleted marks a webhook event as processed
func (r *webhookEventRepository) MarkCompleted(ctx context.Context, eventID, userID, customerID string) error {
	now := time.Now()
	updates := map[string]interface{}{
		"status":       model.WebhookStatusCompleted,
		"processed_at": &now,
		"last_error":   nil,
		"updated_at":   now,
	}
	if userID != "" {
		updates["user_id"] = userID
	}
	if customerID != "" {
		updates["customer_id"] = customerID
	}
	return r.update(ctx, eventID, updates)
}

// MarkIgnored marks a webhook event as acknowledged without changes
func (r *webhookEventRepository) MarkIgnored(ctx context.Context, eventID, reason string) error {
	now := time.Now()
	return r.update(ctx, eventID, map[string]interface{}{
		"status":       model.WebhookStatusIgnored,
		"processed_at": &now,
		"last_error":   &reason,
		"updated_at":   now,
	})
}

// MarkFailed marks a webhook event as failed
func (r *webhookEventRepository) MarkFailed(ctx context.Context, eventID string, cause error) error {
	errorMsg := cause.Error()
	return r.update(ctx, eventID, map[string]interface{}{
		"status":     model.WebhookStatusFailed,
		"last_error": &errorMsg,
		"updated_at": time.Now(),
	})
}

func (r *webhookEventRepository) update(ctx context.Context, eventID string, updates map[string]interface{}) error {
	result := r.db.WithContext(ctx).
		Model(&model.WebhookEvent{}).
		Where("event_id = ?", eventID).
		Updates(updates)

	if result.Error != nil {
		r.logger.Error("Failed to update webhook event",
			zap.String("event_id", eventID),
			zap.Any("status", updates["status"]),
			zap.Error(result.Error))
		return fmt.Errorf("failed to update webhook event: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		return fmt.Errorf("webhook event not found: %s", eventID)
	}

	return nil
}
