package usecase

import (
	"context"
	"time"
)

// SubscriptionChangedChannel is the pub/sub channel for reconciled writes.
const SubscriptionChangedChannel = "billing.subscription.changed"

// SubscriptionChanged announces that a user's stored subscription changed.
type SubscriptionChanged struct {
	UserID     string    `json:"userId"`
	CustomerID string    `json:"customerId,omitempty"`
	Status     string    `json:"status"`
	Plan       string    `json:"plan,omitempty"`
	Source     string    `json:"source"`
	EventID    string    `json:"eventId,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// ChangeNotifier publishes SubscriptionChanged messages. Failures are the
// caller's to log; they never undo the write that triggered them.
type ChangeNotifier interface {
	SubscriptionChanged(ctx context.Context, msg SubscriptionChanged) error
}

// NopNotifier discards every message.
type NopNotifier struct{}

func (NopNotifier) SubscriptionChanged(context.Context, SubscriptionChanged) error { return nil }
