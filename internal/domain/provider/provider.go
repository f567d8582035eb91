package provider

import (
	"context"
	"errors"
	"time"

	"github.com/richstorm00/saas-starter/internal/domain/entity"
)

// PaymentProcessor is the subset of the payment processor API the billing
// service depends on. Implementations translate SDK types into the types below.
type PaymentProcessor interface {
	// VerifyEvent checks the webhook signature and decodes the event.
	VerifyEvent(payload []byte, signature string) (*Event, error)

	// GetSubscription retrieves a subscription with its price and product expanded.
	GetSubscription(ctx context.Context, subscriptionID string) (*Subscription, error)

	// CancelSubscription cancels a subscription immediately.
	CancelSubscription(ctx context.Context, subscriptionID string) error

	// GetProduct retrieves a product by id.
	GetProduct(ctx context.Context, productID string) (*Product, error)

	// GetCheckoutSession retrieves a checkout session with subscription and customer expanded.
	GetCheckoutSession(ctx context.Context, sessionID string) (*CheckoutSession, error)

	// CreateCheckoutSession starts a hosted subscription checkout.
	CreateCheckoutSession(ctx context.Context, req *CheckoutSessionRequest) (*CheckoutSession, error)

	// CreatePortalSession opens a customer billing portal session.
	CreatePortalSession(ctx context.Context, req *PortalSessionRequest) (*PortalSession, error)

	// ListCatalog returns active products with their active prices.
	ListCatalog(ctx context.Context) ([]entity.CatalogProduct, error)

	// GetProviderName returns the provider name
	GetProviderName() string
}

// EventType is a webhook event type.
type EventType string

const (
	EventCheckoutSessionCompleted EventType = "checkout.session.completed"
	EventSubscriptionUpdated      EventType = "customer.subscription.updated"
	EventSubscriptionDeleted      EventType = "customer.subscription.deleted"
	EventInvoicePaymentSucceeded  EventType = "invoice.payment_succeeded"
	EventInvoicePaymentFailed     EventType = "invoice.payment_failed"
)

// Event is a verified webhook event. Exactly one of the object fields is set
// for handled types; all are nil for other types.
type Event struct {
	ID      string    `json:"id"`
	Type    EventType `json:"type"`
	Created time.Time `json:"created"`
	Payload []byte    `json:"-"`

	CheckoutSession *CheckoutSession `json:"checkout_session,omitempty"`
	Subscription    *Subscription    `json:"subscription,omitempty"`
	Invoice         *Invoice         `json:"invoice,omitempty"`
}

// CustomerID returns the customer referenced by the event object.
func (e *Event) CustomerID() string {
	switch {
	case e.CheckoutSession != nil:
		return e.CheckoutSession.CustomerID
	case e.Subscription != nil:
		return e.Subscription.CustomerID
	case e.Invoice != nil:
		return e.Invoice.CustomerID
	}
	return ""
}

// Price is a subscription price. ProductName is empty unless the product was expanded.
type Price struct {
	ID            string `json:"id"`
	Nickname      string `json:"nickname,omitempty"`
	ProductID     string `json:"product_id"`
	ProductName   string `json:"product_name,omitempty"`
	UnitAmount    int64  `json:"unit_amount"`
	Currency      string `json:"currency"`
	Interval      string `json:"interval,omitempty"`
	IntervalCount int64  `json:"interval_count,omitempty"`
}

// Subscription is a processor subscription. Price is the first item's price.
type Subscription struct {
	ID                 string `json:"id"`
	CustomerID         string `json:"customer_id"`
	Status             string `json:"status"`
	CurrentPeriodStart int64  `json:"current_period_start"`
	CurrentPeriodEnd   int64  `json:"current_period_end"`
	CancelAtPeriodEnd  bool   `json:"cancel_at_period_end"`
	CanceledAt         int64  `json:"canceled_at,omitempty"`
	Price              *Price `json:"price,omitempty"`
}

// Product is a catalogue product.
type Product struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Invoice is the part of an invoice the billing service reads.
type Invoice struct {
	ID             string `json:"id"`
	CustomerID     string `json:"customer_id"`
	SubscriptionID string `json:"subscription_id,omitempty"`
	AmountPaid     int64  `json:"amount_paid"`
	Currency       string `json:"currency"`
}

// CheckoutSession is a completed or pending checkout session.
type CheckoutSession struct {
	ID             string            `json:"id"`
	CustomerID     string            `json:"customer_id"`
	CustomerEmail  string            `json:"customer_email,omitempty"`
	SubscriptionID string            `json:"subscription_id,omitempty"`
	PaymentStatus  string            `json:"payment_status,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	Subscription   *Subscription     `json:"subscription,omitempty"`
	URL            string            `json:"url,omitempty"`
}

// CheckoutSessionRequest starts a subscription checkout for one price.
// CustomerID wins over CustomerEmail when both are set.
type CheckoutSessionRequest struct {
	PriceID           string
	CustomerID        string
	CustomerEmail     string
	ClientReferenceID string
	SuccessURL        string
	CancelURL         string
	Metadata          map[string]string
}

// PortalSessionRequest opens a billing portal for a customer.
type PortalSessionRequest struct {
	CustomerID      string
	ReturnURL       string
	ConfigurationID string
}

// PortalSession is an opened billing portal session.
type PortalSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// ProviderType represents the type of payment provider
type ProviderType string

const (
	ProviderTypeStripe ProviderType = "stripe"
)

// Sentinels matched with errors.Is through ProviderError.
var (
	ErrSignatureVerification = errors.New("webhook signature verification failed")
	ErrResourceMissing       = errors.New("resource missing")
	ErrPortalNotConfigured   = errors.New("billing portal not configured")
	ErrEventDecode           = errors.New("webhook event object could not be decoded")
)

// ProviderError is a processor failure with the processor's own code.
type ProviderError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
	Err     error  `json:"-"`
}

func (e *ProviderError) Error() string {
	if e.Details != "" {
		return e.Message + ": " + e.Details
	}
	return e.Message
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
