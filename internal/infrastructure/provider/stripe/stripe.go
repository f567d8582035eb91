package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/richstorm00/saas-starter/internal/domain/entity"
	"github.com/richstorm00/saas-starter/internal/domain/provider"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
	"github.com/stripe/stripe-go/v79/webhook"
	"go.uber.org/zap"
)

// Config configures the Stripe provider.
type Config struct {
	SecretKey     string
	WebhookSecret string
	// APIURL overrides the API endpoint, for tests.
	APIURL string
}

// StripeProvider implements provider.PaymentProcessor on the Stripe API
type StripeProvider struct {
	api           *client.API
	webhookSecret string
	logger        *zap.Logger
}

// NewStripeProvider creates a new Stripe provider
func NewStripeProvider(cfg Config, logger *zap.Logger) *StripeProvider {
	backendConfig := &stripe.BackendConfig{
		LeveledLogger: logger.Named("stripe").Sugar(),
	}
	if cfg.APIURL != "" {
		backendConfig.URL = stripe.String(cfg.APIURL)
		backendConfig.MaxNetworkRetries = stripe.Int64(0)
	}
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, backendConfig)

	return &StripeProvider{
		api: client.New(cfg.SecretKey, &stripe.Backends{
			API:     backend,
			Connect: stripe.GetBackendWithConfig(stripe.ConnectBackend, backendConfig),
			Uploads: stripe.GetBackendWithConfig(stripe.UploadsBackend, backendConfig),
		}),
		webhookSecret: cfg.WebhookSecret,
		logger:        logger,
	}
}

// GetProviderName returns the provider name
func (s *StripeProvider) GetProviderName() string {
	return string(provider.ProviderTypeStripe)
}

// VerifyEvent checks the Stripe-Signature header and decodes the event object
func (s *StripeProvider) VerifyEvent(payload []byte, signature string) (*provider.Event, error) {
	event, err := webhook.ConstructEventWithOptions(
		payload,
		signature,
		s.webhookSecret,
		webhook.ConstructEventOptions{
			IgnoreAPIVersionMismatch: true,
		},
	)
	if err != nil {
		return nil, &provider.ProviderError{
			Code:    "signature_verification_failed",
			Message: "Webhook signature verification failed",
			Details: err.Error(),
			Err:     provider.ErrSignatureVerification,
		}
	}

	out := &provider.Event{
		ID:      event.ID,
		Type:    provider.EventType(event.Type),
		Created: time.Unix(event.Created, 0).UTC(),
		Payload: payload,
	}
	if event.Data == nil {
		return out, nil
	}

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return nil, decodeError(event.ID, "checkout session", err)
		}
		out.CheckoutSession = toCheckoutSession(&session)

	case stripe.EventTypeCustomerSubscriptionUpdated, stripe.EventTypeCustomerSubscriptionDeleted:
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return nil, decodeError(event.ID, "subscription", err)
		}
		out.Subscription = toSubscription(&sub)

	case stripe.EventTypeInvoicePaymentSucceeded, stripe.EventTypeInvoicePaymentFailed:
		var invoice stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
			return nil, decodeError(event.ID, "invoice", err)
		}
		out.Invoice = toInvoice(&invoice)
	}

	return out, nil
}

// GetSubscription retrieves a subscription with its first price expanded
func (s *StripeProvider) GetSubscription(ctx context.Context, subscriptionID string) (*provider.Subscription, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	params.AddExpand("items.data.price.product")

	sub, err := s.api.Subscriptions.Get(subscriptionID, params)
	if err != nil {
		return nil, mapError("get_subscription", err)
	}
	return toSubscription(sub), nil
}

// CancelSubscription cancels a subscription immediately
func (s *StripeProvider) CancelSubscription(ctx context.Context, subscriptionID string) error {
	params := &stripe.SubscriptionCancelParams{}
	params.Context = ctx

	if _, err := s.api.Subscriptions.Cancel(subscriptionID, params); err != nil {
		return mapError("cancel_subscription", err)
	}

	s.logger.Info("Stripe subscription cancelled", zap.String("subscription_id", subscriptionID))
	return nil
}

// GetProduct retrieves a product by id
func (s *StripeProvider) GetProduct(ctx context.Context, productID string) (*provider.Product, error) {
	params := &stripe.ProductParams{}
	params.Context = ctx

	prod, err := s.api.Products.Get(productID, params)
	if err != nil {
		return nil, mapError("get_product", err)
	}
	return &provider.Product{ID: prod.ID, Name: prod.Name}, nil
}

// GetCheckoutSession retrieves a checkout session with its subscription and customer
func (s *StripeProvider) GetCheckoutSession(ctx context.Context, sessionID string) (*provider.CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	params.AddExpand("subscription.items.data.price")
	params.AddExpand("customer")

	session, err := s.api.CheckoutSessions.Get(sessionID, params)
	if err != nil {
		return nil, mapError("get_checkout_session", err)
	}
	return toCheckoutSession(session), nil
}

// CreateCheckoutSession creates a subscription-mode checkout session for one
// price. Metadata is copied onto the subscription so later events carry it.
func (s *StripeProvider) CreateCheckoutSession(ctx context.Context, req *provider.CheckoutSessionRequest) (*provider.CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(req.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: req.Metadata,
		},
	}
	params.Context = ctx
	for key, value := range req.Metadata {
		params.AddMetadata(key, value)
	}
	switch {
	case req.CustomerID != "":
		params.Customer = stripe.String(req.CustomerID)
	case req.CustomerEmail != "":
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	if req.ClientReferenceID != "" {
		params.ClientReferenceID = stripe.String(req.ClientReferenceID)
	}

	session, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, mapError("create_checkout_session", err)
	}
	return toCheckoutSession(session), nil
}

// CreatePortalSession opens a billing portal session
func (s *StripeProvider) CreatePortalSession(ctx context.Context, req *provider.PortalSessionRequest) (*provider.PortalSession, error) {
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(req.CustomerID),
		ReturnURL: stripe.String(req.ReturnURL),
	}
	params.Context = ctx
	if req.ConfigurationID != "" {
		params.Configuration = stripe.String(req.ConfigurationID)
	}

	session, err := s.api.BillingPortalSessions.New(params)
	if err != nil {
		return nil, mapError("create_portal_session", err)
	}
	return &provider.PortalSession{ID: session.ID, URL: session.URL}, nil
}

// ListCatalog returns active products with their active prices
func (s *StripeProvider) ListCatalog(ctx context.Context) ([]entity.CatalogProduct, error) {
	productParams := &stripe.ProductListParams{Active: stripe.Bool(true)}
	productParams.Context = ctx
	productParams.Limit = stripe.Int64(100)

	var products []entity.CatalogProduct
	iter := s.api.Products.List(productParams)
	for iter.Next() {
		prod := iter.Product()
		products = append(products, entity.CatalogProduct{
			ID:          prod.ID,
			Name:        prod.Name,
			Description: prod.Description,
			Metadata:    prod.Metadata,
			Prices:      []entity.CatalogPrice{},
		})
	}
	if err := iter.Err(); err != nil {
		return nil, mapError("list_products", err)
	}

	for i := range products {
		priceParams := &stripe.PriceListParams{
			Product: stripe.String(products[i].ID),
			Active:  stripe.Bool(true),
		}
		priceParams.Context = ctx
		priceParams.Limit = stripe.Int64(100)

		prices := s.api.Prices.List(priceParams)
		for prices.Next() {
			products[i].Prices = append(products[i].Prices, toCatalogPrice(prices.Price()))
		}
		if err := prices.Err(); err != nil {
			return nil, mapError("list_prices", err)
		}
	}

	return products, nil
}

func toSubscription(sub *stripe.Subscription) *provider.Subscription {
	if sub == nil {
		return nil
	}
	out := &provider.Subscription{
		ID:                 sub.ID,
		Status:             string(sub.Status),
		CurrentPeriodStart: sub.CurrentPeriodStart,
		CurrentPeriodEnd:   sub.CurrentPeriodEnd,
		CancelAtPeriodEnd:  sub.CancelAtPeriodEnd,
		CanceledAt:         sub.CanceledAt,
	}
	if sub.Customer != nil {
		out.CustomerID = sub.Customer.ID
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 {
		out.Price = toPrice(sub.Items.Data[0].Price)
	}
	return out
}

func toPrice(price *stripe.Price) *provider.Price {
	if price == nil {
		return nil
	}
	out := &provider.Price{
		ID:         price.ID,
		Nickname:   price.Nickname,
		UnitAmount: price.UnitAmount,
		Currency:   string(price.Currency),
	}
	if price.Product != nil {
		out.ProductID = price.Product.ID
		out.ProductName = price.Product.Name
	}
	if price.Recurring != nil {
		out.Interval = string(price.Recurring.Interval)
		out.IntervalCount = price.Recurring.IntervalCount
	}
	return out
}

func toCatalogPrice(price *stripe.Price) entity.CatalogPrice {
	out := entity.CatalogPrice{
		ID:         price.ID,
		Nickname:   price.Nickname,
		UnitAmount: price.UnitAmount,
		Currency:   string(price.Currency),
		Type:       string(price.Type),
	}
	if price.Recurring != nil {
		out.Recurring = true
		out.Interval = string(price.Recurring.Interval)
		out.IntervalCount = price.Recurring.IntervalCount
	}
	return out
}

func toCheckoutSession(session *stripe.CheckoutSession) *provider.CheckoutSession {
	out := &provider.CheckoutSession{
		ID:            session.ID,
		CustomerEmail: session.CustomerEmail,
		PaymentStatus: string(session.PaymentStatus),
		Metadata:      session.Metadata,
		URL:           session.URL,
	}
	if session.Customer != nil {
		out.CustomerID = session.Customer.ID
		if out.CustomerEmail == "" {
			out.CustomerEmail = session.Customer.Email
		}
	}
	if out.CustomerEmail == "" && session.CustomerDetails != nil {
		out.CustomerEmail = session.CustomerDetails.Email
	}
	if session.Subscription != nil {
		out.SubscriptionID = session.Subscription.ID
		// Unexpanded references carry only the id.
		if session.Subscription.Status != "" {
			out.Subscription = toSubscription(session.Subscription)
		}
	}
	return out
}

func toInvoice(invoice *stripe.Invoice) *provider.Invoice {
	out := &provider.Invoice{
		ID:         invoice.ID,
		AmountPaid: invoice.AmountPaid,
		Currency:   string(invoice.Currency),
	}
	if invoice.Customer != nil {
		out.CustomerID = invoice.Customer.ID
	}
	if invoice.Subscription != nil {
		out.SubscriptionID = invoice.Subscription.ID
	}
	return out
}

// decodeError reports an event whose signature verified but whose object did
// not decode.
func decodeError(eventID, object string, err error) error {
	return &provider.ProviderError{
		Code:    "event_decode_failed",
		Message: fmt.Sprintf("Failed to decode %s of event %s", object, eventID),
		Details: err.Error(),
		Err:     fmt.Errorf("%w: %v", provider.ErrEventDecode, err),
	}
}

// mapError translates Stripe errors into provider errors matched by the use cases.
func mapError(operation string, err error) error {
	var stripeErr *stripe.Error
	if !errors.As(err, &stripeErr) {
		return &provider.ProviderError{
			Code:    "request_failed",
			Message: fmt.Sprintf("Stripe %s failed", operation),
			Details: err.Error(),
			Err:     err,
		}
	}

	out := &provider.ProviderError{
		Code:    string(stripeErr.Code),
		Message: stripeErr.Msg,
		Details: fmt.Sprintf("%s: %s (status %d)", operation, stripeErr.Type, stripeErr.HTTPStatusCode),
		Err:     err,
	}
	switch {
	case stripeErr.Code == stripe.ErrorCodeResourceMissing:
		out.Err = fmt.Errorf("%w: %v", provider.ErrResourceMissing, err)
	case strings.Contains(stripeErr.Msg, "No configuration provided"):
		out.Err = fmt.Errorf("%w: %v", provider.ErrPortalNotConfigured, err)
	}
	return out
}
