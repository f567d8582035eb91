package entity

// Partition is one half of a user's metadata document. Values are whatever
// the identity provider stores: maps, strings, float64 numbers, bools or nil.
type Partition map[string]interface{}

// Metadata keys written or read by the billing service.
const (
	KeySubscription        = "subscription"
	KeyStripeSubscription  = "stripeSubscription"
	KeyBillingSubscription = "billingSubscription"
	KeyStripeCustomerID    = "stripeCustomerId"
)

// SubscriptionKeys lists every key that may hold a subscription, canonical first.
var SubscriptionKeys = []string{KeySubscription, KeyStripeSubscription, KeyBillingSubscription}

// MetadataDocument is the per-user metadata held by the identity provider.
type MetadataDocument struct {
	UserID  string    `json:"user_id"`
	Email   string    `json:"email,omitempty"`
	Private Partition `json:"private_metadata"`
	Public  Partition `json:"public_metadata"`
}

// Object returns the value under key when it is a JSON object.
func (p Partition) Object(key string) (map[string]interface{}, bool) {
	if p == nil {
		return nil, false
	}
	obj, ok := p[key].(map[string]interface{})
	return obj, ok && obj != nil
}

// String returns the value under key when it is a non-empty string.
func (p Partition) String(key string) string {
	if p == nil {
		return ""
	}
	s, _ := p[key].(string)
	return s
}

// Clone returns a shallow copy of the partition.
func (p Partition) Clone() Partition {
	out := make(Partition, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// MetadataPatch is a key-level merge into both partitions. A nil value removes
// the key; keys not named are left untouched.
type MetadataPatch struct {
	Private Partition `json:"private_metadata,omitempty"`
	Public  Partition `json:"public_metadata,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (m MetadataPatch) IsEmpty() bool {
	return len(m.Private) == 0 && len(m.Public) == 0
}

// Apply returns a copy of doc with the patch merged in.
func (m MetadataPatch) Apply(doc *MetadataDocument) *MetadataDocument {
	out := &MetadataDocument{
		UserID:  doc.UserID,
		Email:   doc.Email,
		Private: mergePartition(doc.Private, m.Private),
		Public:  mergePartition(doc.Public, m.Public),
	}
	return out
}

func mergePartition(base, patch Partition) Partition {
	out := base.Clone()
	for k, v := range patch {
		if v == nil {
			delete(out, k)
			continue
		}
		out[k] = v
	}
	return out
}
