package repository

import (
	"context"
	"time"

	"github.com/richstorm00/saas-starter/internal/domain/model"
)

// WebhookEventRepository is the log of received webhook events.
type WebhookEventRepository interface {
	// Record stores a newly received event. Duplicates are ignored.
	Record(ctx context.Context, eventID, eventType string, payload []byte, createdAt time.Time) error

	// Get returns nil, nil when the event was never recorded.
	Get(ctx context.Context, eventID string) (*model.WebhookEvent, error)

	// MarkProcessing counts a processing attempt.
	MarkProcessing(ctx context.Context, eventID string) error

	// MarkCompleted records a successful outcome with the affected user and customer.
	MarkCompleted(ctx context.Context, eventID, userID, customerID string) error

	// MarkIgnored records an event that was acknowledged without changes.
	MarkIgnored(ctx context.Context, eventID, reason string) error

	// MarkFailed records a failed attempt.
	MarkFailed(ctx context.Context, eventID string, cause error) error
}
