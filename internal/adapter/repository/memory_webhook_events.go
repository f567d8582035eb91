package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/richstorm00/saas-starter/internal/domain/model"
	"gorm.io/datatypes"
)

// MemoryWebhookEvents is an in-process webhook event log used when no
// database is configured.
type MemoryWebhookEvents struct {
	mu     sync.Mutex
	events map[string]*model.WebhookEvent
}

// NewMemoryWebhookEvents creates an empty event log
func NewMemoryWebhookEvents() *MemoryWebhookEvents {
	return &MemoryWebhookEvents{events: make(map[string]*model.WebhookEvent)}
}

func (m *MemoryWebhookEvents) Record(_ context.Context, eventID, eventType string, payload []byte, createdAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.events[eventID]; ok {
		return nil
	}
	now := time.Now()
	event := &model.WebhookEvent{
		ID:        uuid.New(),
		EventID:   eventID,
		EventType: eventType,
		Status:    model.WebhookStatusPending,
		Payload:   datatypes.JSON(append([]byte(nil), payload...)),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if !createdAt.IsZero() {
		event.ProviderCreatedAt = &createdAt
	}
	m.events[eventID] = event
	return nil
}

func (m *MemoryWebhookEvents) Get(_ context.Context, eventID string) (*model.WebhookEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	event, ok := m.events[eventID]
	if !ok {
		return nil, nil
	}
	out := *event
	return &out, nil
}

func (m *MemoryWebhookEvents) MarkProcessing(_ context.Context, eventID string) error {
	return m.update(eventID, func(e *model.WebhookEvent) {
		e.Status = model.WebhookStatusProcessing
		e.Attempts++
	})
}

func (m *MemoryWebhookEvents) MarkCompleted(_ context.Context, eventID, userID, customerID string) error {
	return m.update(eventID, func(e *model.WebhookEvent) {
		now := time.Now()
		e.Status = model.WebhookStatusCompleted
		e.ProcessedAt = &now
		e.LastError = nil
		if userID != "" {
			e.UserID = &userID
		}
		if customerID != "" {
			e.CustomerID = &customerID
		}
	})
}

func (m *MemoryWebhookEvents) MarkIgnored(_ context.Context, eventID, reason string) error {
	return m.update(eventID, func(e *model.WebhookEvent) {
		now := time.Now()
		e.Status = model.WebhookStatusIgnored
		e.ProcessedAt = &now
		e.LastError = &reason
	})
}

func (m *MemoryWebhookEvents) MarkFailed(_ context.Context, eventID string, cause error) error {
	return m.update(eventID, func(e *model.WebhookEvent) {
		msg := cause.Error()
		e.Status = model.WebhookStatusFailed
		e.LastError = &msg
	})
}

func (m *MemoryWebhookEvents) update(eventID string, fn func(*model.WebhookEvent)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	event, ok := m.events[eventID]
	if !ok {
		return fmt.Errorf("webhook event not found: %s", eventID)
	}
	fn(event)
	event.UpdatedAt = time.Now()
	return nil
}
