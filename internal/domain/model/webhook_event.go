package model

import (
	"database/sql/driver"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// WebhookStatus represents the processing status of a webhook
type WebhookStatus string

const (
	WebhookStatusPending    WebhookStatus = "pending"
	WebhookStatusProcessing WebhookStatus = "processing"
	WebhookStatusCompleted  WebhookStatus = "completed"
	WebhookStatusFailed     WebhookStatus = "failed"
	WebhookStatusIgnored    WebhookStatus = "ignored"
)

// IsFinal reports whether the event needs no further processing.
func (w WebhookStatus) IsFinal() bool {
	return w == WebhookStatusCompleted || w == WebhookStatusIgnored
}

// Scan implements sql.Scanner interface
func (w *WebhookStatus) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		*w = WebhookStatus(v)
	case []byte:
		*w = WebhookStatus(v)
	default:
		*w = WebhookStatusPending
	}
	return nil
}

// Value implements driver.Valuer interface
func (w WebhookStatus) Value() (driver.Value, error) {
	return string(w), nil
}

// WebhookEvent is one received payment processor webhook.
type WebhookEvent struct {
	ID                uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	EventID           string         `gorm:"column:event_id;uniqueIndex;not null;size:255" json:"event_id"`
	EventType         string         `gorm:"not null;size:100;index" json:"event_type"`
	Status            WebhookStatus  `gorm:"size:20;not null;default:'pending';index" json:"status"`
	Payload           datatypes.JSON `gorm:"type:jsonb;not null" json:"payload"`
	Attempts          int            `gorm:"default:0" json:"attempts"`
	LastError         *string        `json:"last_error,omitempty"`
	UserID            *string        `gorm:"size:100" json:"user_id,omitempty"`
	CustomerID        *string        `gorm:"size:100;index" json:"customer_id,omitempty"`
	ProcessedAt       *time.Time     `json:"processed_at,omitempty"`
	ProviderCreatedAt *time.Time     `json:"provider_created_at,omitempty"`
	CreatedAt         time.Time      `gorm:"default:now()" json:"created_at"`
	UpdatedAt         time.Time      `gorm:"default:now()" json:"updated_at"`
}

// TableName specifies the table name for GORM
func (WebhookEvent) TableName() string {
	return "webhook_events"
}
