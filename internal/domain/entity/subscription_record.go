package entity

import (
	"time"
)

// SubscriptionStatus mirrors the payment processor's subscription status.
// Statuses not listed here are stored verbatim.
type SubscriptionStatus string

const (
	StatusActive     SubscriptionStatus = "active"
	StatusTrialing   SubscriptionStatus = "trialing"
	StatusPastDue    SubscriptionStatus = "past_due"
	StatusCanceled   SubscriptionStatus = "canceled"
	StatusIncomplete SubscriptionStatus = "incomplete"
	StatusInactive   SubscriptionStatus = "inactive"
)

// IsEntitled reports whether the status grants access to paid features.
func (s SubscriptionStatus) IsEntitled() bool {
	return s == StatusActive || s == StatusTrialing
}

// PaymentStatus is the outcome of the latest invoice.
type PaymentStatus string

const (
	PaymentSucceeded PaymentStatus = "succeeded"
	PaymentFailed    PaymentStatus = "failed"
)

// RecordSchemaVersion is written with every canonical record.
const RecordSchemaVersion = 2

// DefaultPlanName is used when no plan key is present.
const DefaultPlanName = "Unknown"

// Canonical record keys.
const (
	FieldPlan               = "plan"
	FieldStatus             = "status"
	FieldCurrentPeriodStart = "currentPeriodStart"
	FieldCurrentPeriodEnd   = "currentPeriodEnd"
	FieldCancelAtPeriodEnd  = "cancelAtPeriodEnd"
	FieldPriceID            = "priceId"
	FieldSubscriptionID     = "subscriptionId"
	FieldCustomerID         = "customerId"
	FieldLastPaymentStatus  = "lastPaymentStatus"
	FieldLastPaymentDate    = "lastPaymentDate"
	FieldCanceledAt         = "canceledAt"
	FieldCreatedAt          = "createdAt"
	FieldUpdatedAt          = "updatedAt"
	FieldVerifiedAt         = "verifiedAt"
	FieldSchemaVersion      = "schemaVersion"
	FieldActive             = "active"
)

// SubscriptionRecord is the canonical view of a user's subscription.
// Period bounds are Unix seconds.
type SubscriptionRecord struct {
	Plan               string             `json:"plan"`
	Status             SubscriptionStatus `json:"status"`
	CurrentPeriodStart int64              `json:"currentPeriodStart,omitempty"`
	CurrentPeriodEnd   int64              `json:"currentPeriodEnd"`
	CancelAtPeriodEnd  bool               `json:"cancelAtPeriodEnd"`
	PriceID            string             `json:"priceId,omitempty"`
	SubscriptionID     string             `json:"subscriptionId,omitempty"`
	CustomerID         string             `json:"customerId,omitempty"`
	LastPaymentStatus  PaymentStatus      `json:"lastPaymentStatus,omitempty"`
	LastPaymentDate    *time.Time         `json:"lastPaymentDate,omitempty"`
	CanceledAt         *time.Time         `json:"canceledAt,omitempty"`
	CreatedAt          *time.Time         `json:"createdAt,omitempty"`
	UpdatedAt          *time.Time         `json:"updatedAt,omitempty"`
	VerifiedAt         *time.Time         `json:"verifiedAt,omitempty"`
}

// IsValid reports whether the subscription currently grants access.
func (r *SubscriptionRecord) IsValid(now time.Time) bool {
	if r == nil {
		return false
	}
	return r.Status.IsEntitled() && r.CurrentPeriodEnd > now.Unix()
}

// PeriodEnd returns CurrentPeriodEnd as a time.
func (r *SubscriptionRecord) PeriodEnd() time.Time {
	return time.Unix(r.CurrentPeriodEnd, 0).UTC()
}

// ToMap renders the record in its stored shape. Empty optional fields are omitted.
func (r *SubscriptionRecord) ToMap() map[string]interface{} {
	m := map[string]interface{}{
		FieldPlan:              r.Plan,
		FieldStatus:            string(r.Status),
		FieldCurrentPeriodEnd:  r.CurrentPeriodEnd,
		FieldCancelAtPeriodEnd: r.CancelAtPeriodEnd,
		FieldSchemaVersion:     RecordSchemaVersion,
	}
	if r.CurrentPeriodStart != 0 {
		m[FieldCurrentPeriodStart] = r.CurrentPeriodStart
	}
	putString(m, FieldPriceID, r.PriceID)
	putString(m, FieldSubscriptionID, r.SubscriptionID)
	putString(m, FieldCustomerID, r.CustomerID)
	putString(m, FieldLastPaymentStatus, string(r.LastPaymentStatus))
	putTime(m, FieldLastPaymentDate, r.LastPaymentDate)
	putTime(m, FieldCanceledAt, r.CanceledAt)
	putTime(m, FieldCreatedAt, r.CreatedAt)
	putTime(m, FieldUpdatedAt, r.UpdatedAt)
	putTime(m, FieldVerifiedAt, r.VerifiedAt)
	return m
}

// PublicProjection is the subset of the record exposed to the client.
func (r *SubscriptionRecord) PublicProjection() map[string]interface{} {
	return map[string]interface{}{
		FieldPlan:   r.Plan,
		FieldStatus: string(r.Status),
		FieldActive: r.Status.IsEntitled(),
	}
}

func putString(m map[string]interface{}, key, value string) {
	if value != "" {
		m[key] = value
	}
}

func putTime(m map[string]interface{}, key string, value *time.Time) {
	if value != nil {
		m[key] = value.UTC().Format(time.RFC3339)
	}
}

// StateKind tags a SubscriptionState.
type StateKind int

const (
	// StateUnknown means neither a subscription nor a customer is known.
	StateUnknown StateKind = iota
	// StateCustomerOnly means a customer exists but no subscription is stored.
	StateCustomerOnly
	// StateSubscribed means a canonical record was derived.
	StateSubscribed
)

func (k StateKind) String() string {
	switch k {
	case StateCustomerOnly:
		return "customer_only"
	case StateSubscribed:
		return "subscribed"
	default:
		return "unknown"
	}
}

// SubscriptionState is the reconciled view of a metadata document.
// Record is set only for StateSubscribed.
type SubscriptionState struct {
	Kind       StateKind
	Record     *SubscriptionRecord
	CustomerID string
}

// HasSubscription reports whether a canonical record exists.
func (s SubscriptionState) HasSubscription() bool {
	return s.Kind == StateSubscribed && s.Record != nil
}
