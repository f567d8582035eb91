package usecase

import "time"

// Metrics receives billing outcomes. Implementations must be safe for
// concurrent use.
type Metrics interface {
	WebhookProcessed(eventType, outcome string, duration time.Duration)
	Reconciled(state string)
	CancellationCompleted(outcome string)
	PortalOpened(outcome string)
	UserLookup(method string)
}

// Webhook outcomes.
const (
	OutcomeCompleted = "completed"
	OutcomeDuplicate = "duplicate"
	OutcomeIgnored   = "ignored"
	OutcomeDropped   = "dropped"
	OutcomeFailed    = "failed"
	OutcomeRejected  = "rejected"
)

// NopMetrics discards every observation.
type NopMetrics struct{}

func (NopMetrics) WebhookProcessed(string, string, time.Duration) {}
func (NopMetrics) Reconciled(string)                              {}
func (NopMetrics) CancellationCompleted(string)                   {}
func (NopMetrics) PortalOpened(string)                            {}
func (NopMetrics) UserLookup(string)                              {}
