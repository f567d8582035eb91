// Package providertest provides a testify mock of provider.PaymentProcessor.
package providertest

import (
	"context"

	"github.com/richstorm00/saas-starter/internal/domain/entity"
	"github.com/richstorm00/saas-starter/internal/domain/provider"
	"github.com/stretchr/testify/mock"
)

// MockPaymentProcessor is a mock implementation of PaymentProcessor
type MockPaymentProcessor struct {
	mock.Mock
}

var _ provider.PaymentProcessor = (*MockPaymentProcessor)(nil)

func (m *MockPaymentProcessor) VerifyEvent(payload []byte, signature string) (*provider.Event, error) {
	args := m.Called(payload, signature)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provider.Event), args.Error(1)
}

func (m *MockPaymentProcessor) GetSubscription(ctx context.Context, subscriptionID string) (*provider.Subscription, error) {
	args := m.Called(ctx, subscriptionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provider.Subscription), args.Error(1)
}

func (m *MockPaymentProcessor) CancelSubscription(ctx context.Context, subscriptionID string) error {
	args := m.Called(ctx, subscriptionID)
	return args.Error(0)
}

func (m *MockPaymentProcessor) GetProduct(ctx context.Context, productID string) (*provider.Product, error) {
	args := m.Called(ctx, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provider.Product), args.Error(1)
}

func (m *MockPaymentProcessor) GetCheckoutSession(ctx context.Context, sessionID string) (*provider.CheckoutSession, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provider.CheckoutSession), args.Error(1)
}

func (m *MockPaymentProcessor) CreateCheckoutSession(ctx context.Context, req *provider.CheckoutSessionRequest) (*provider.CheckoutSession, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provider.CheckoutSession), args.Error(1)
}

func (m *MockPaymentProcessor) CreatePortalSession(ctx context.Context, req *provider.PortalSessionRequest) (*provider.PortalSession, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provider.PortalSession), args.Error(1)
}

func (m *MockPaymentProcessor) ListCatalog(ctx context.Context) ([]entity.CatalogProduct, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.CatalogProduct), args.Error(1)
}

func (m *MockPaymentProcessor) GetProviderName() string {
	return string(provider.ProviderTypeStripe)
}
