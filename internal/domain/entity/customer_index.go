package entity

import "time"

// IndexSource records how a customer index entry was learned.
type IndexSource string

const (
	IndexSourceCheckout IndexSource = "checkout"
	IndexSourceSync     IndexSource = "sync"
	IndexSourceScan     IndexSource = "scan"
	IndexSourceBackfill IndexSource = "backfill"
)

// CustomerIndexEntry maps a processor customer id to the owning user.
type CustomerIndexEntry struct {
	ID                 string      `json:"id"`
	ProviderCustomerID string      `json:"provider_customer_id"`
	UserID             string      `json:"user_id"`
	Source             IndexSource `json:"source"`
	CreatedAt          time.Time   `json:"created_at"`
	UpdatedAt          time.Time   `json:"updated_at"`
}
