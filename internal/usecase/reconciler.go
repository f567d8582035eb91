package usecase

import (
	"github.com/richstorm00/saas-starter/internal/domain/entity"
)

// candidateOrder is the precedence of subscription locations; the first
// non-null object wins.
var candidateOrder = []struct {
	key     string
	private bool
}{
	{entity.KeySubscription, true},
	{entity.KeySubscription, false},
	{entity.KeyStripeSubscription, true},
	{entity.KeyStripeSubscription, false},
	{entity.KeyBillingSubscription, true},
	{entity.KeyBillingSubscription, false},
}

// Reconciler derives the canonical subscription state from a metadata document.
type Reconciler struct{}

// NewReconciler creates a new Reconciler
func NewReconciler() *Reconciler {
	return &Reconciler{}
}

// Reconcile returns the reconciled state of doc. An unreadable candidate is
// reported as ErrInvalidSubscriptionData together with the state's customer id.
func (r *Reconciler) Reconcile(doc *entity.MetadataDocument) (entity.SubscriptionState, error) {
	if doc == nil {
		return entity.SubscriptionState{Kind: entity.StateUnknown}, nil
	}

	customerID := r.ResolveCustomerID(doc)

	raw, ok := r.Candidate(doc)
	if !ok {
		if customerID != "" {
			return entity.SubscriptionState{Kind: entity.StateCustomerOnly, CustomerID: customerID}, nil
		}
		return entity.SubscriptionState{Kind: entity.StateUnknown}, nil
	}

	record, err := entity.MigrateRecord(raw)
	if err != nil {
		return entity.SubscriptionState{Kind: entity.StateUnknown, CustomerID: customerID}, err
	}
	if record.CustomerID == "" {
		record.CustomerID = customerID
	}

	return entity.SubscriptionState{
		Kind:       entity.StateSubscribed,
		Record:     record,
		CustomerID: record.CustomerID,
	}, nil
}

// Candidate returns the raw subscription object that wins precedence.
func (r *Reconciler) Candidate(doc *entity.MetadataDocument) (map[string]interface{}, bool) {
	if doc == nil {
		return nil, false
	}
	for _, c := range candidateOrder {
		partition := doc.Public
		if c.private {
			partition = doc.Private
		}
		if obj, ok := partition.Object(c.key); ok {
			return obj, true
		}
	}
	return nil, false
}

// HasCandidate reports whether any subscription location is non-null.
func (r *Reconciler) HasCandidate(doc *entity.MetadataDocument) bool {
	_, ok := r.Candidate(doc)
	return ok
}

// ResolveCustomerID walks the customer id fallback chain. It never fails;
// an empty string means no customer is known.
func (r *Reconciler) ResolveCustomerID(doc *entity.MetadataDocument) string {
	if doc == nil {
		return ""
	}
	if sub, ok := doc.Private.Object(entity.KeySubscription); ok {
		if id := entity.LookupString(sub, entity.FieldCustomerID); id != "" {
			return id
		}
	}
	if sub, ok := doc.Public.Object(entity.KeySubscription); ok {
		if id := entity.LookupString(sub, entity.FieldCustomerID); id != "" {
			return id
		}
	}
	if id := doc.Private.String(entity.KeyStripeCustomerID); id != "" {
		return id
	}
	return doc.Public.String(entity.KeyStripeCustomerID)
}

// SubscriptionIDOf returns the subscription id of the winning candidate even
// when the rest of the candidate cannot be migrated.
func (r *Reconciler) SubscriptionIDOf(doc *entity.MetadataDocument) string {
	raw, ok := r.Candidate(doc)
	if !ok {
		return ""
	}
	return entity.LookupString(raw, entity.SubscriptionIDKeys...)
}
