package usecase_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	adapterRepo "github.com/richstorm00/saas-starter/internal/adapter/repository"
	"github.com/richstorm00/saas-starter/internal/domain/entity"
	"github.com/richstorm00/saas-starter/internal/domain/provider"
	"github.com/richstorm00/saas-starter/internal/domain/provider/providertest"
	"github.com/richstorm00/saas-starter/internal/usecase"
)

type fixture struct {
	store      *adapterRepo.MemoryMetadataStore
	index      *adapterRepo.MemoryCustomerIndex
	events     *adapterRepo.MemoryWebhookEvents
	processor  *providertest.MockPaymentProcessor
	notifier   *recordingNotifier
	reconciler *usecase.Reconciler
	logger     *zap.Logger
}

func newFixture() *fixture {
	return &fixture{
		store:      adapterRepo.NewMemoryMetadataStore(),
		index:      adapterRepo.NewMemoryCustomerIndex(),
		events:     adapterRepo.NewMemoryWebhookEvents(),
		processor:  new(providertest.MockPaymentProcessor),
		notifier:   &recordingNotifier{},
		reconciler: usecase.NewReconciler(),
		logger:     zap.NewNop(),
	}
}

func (f *fixture) locator() *usecase.UserLocator {
	return usecase.NewUserLocator(f.store, f.index, f.reconciler, nil, f.logger, 2, 5)
}

func (f *fixture) ingestor() *usecase.EventIngestor {
	return usecase.NewEventIngestor(f.processor, f.store, f.index, f.events, f.locator(), f.reconciler, f.notifier, nil, f.logger)
}

func (f *fixture) projector() *usecase.PlanProjector {
	return usecase.NewPlanProjector(f.store, f.reconciler, nil, f.logger)
}

func (f *fixture) cancellation() *usecase.CancellationService {
	return usecase.NewCancellationService(f.store, f.processor, f.reconciler, f.notifier, nil, f.logger)
}

func (f *fixture) portal() *usecase.PortalService {
	return usecase.NewPortalService(f.store, f.index, f.processor, f.reconciler, nil, f.logger, "https://app.example.com/", "")
}

func (f *fixture) checkout() *usecase.CheckoutService {
	return usecase.NewCheckoutService(f.store, f.processor, f.reconciler, f.logger, "https://app.example.com/")
}

func (f *fixture) sync() *usecase.SyncService {
	return usecase.NewSyncService(f.store, f.index, f.locator(), f.processor, f.notifier, f.logger)
}

func (f *fixture) putUser(t *testing.T, userID string, private, public entity.Partition) {
	t.Helper()
	require.NoError(t, f.store.Put(&entity.MetadataDocument{
		UserID:  userID,
		Email:   userID + "@example.com",
		Private: private,
		Public:  public,
	}))
}

func (f *fixture) doc(t *testing.T, userID string) *entity.MetadataDocument {
	t.Helper()
	doc, err := f.store.Get(context.Background(), userID)
	require.NoError(t, err)
	return doc
}

// deliver verifies event through the mock processor and ingests it.
func (f *fixture) deliver(t *testing.T, event *provider.Event) (*usecase.IngestResult, error) {
	t.Helper()
	payload := []byte(`{"id":"` + event.ID + `"}`)
	f.processor.On("VerifyEvent", payload, "t=1,v1=sig").Return(event, nil).Once()
	return f.ingestor().Ingest(context.Background(), payload, "t=1,v1=sig")
}

type recordingNotifier struct {
	messages []usecase.SubscriptionChanged
}

func (n *recordingNotifier) SubscriptionChanged(_ context.Context, msg usecase.SubscriptionChanged) error {
	n.messages = append(n.messages, msg)
	return nil
}

var (
	testNow       = time.Now().UTC().Truncate(time.Second)
	testPeriodEnd = testNow.Add(30 * 24 * time.Hour).Unix()
	testPeriodBeg = testNow.Add(-24 * time.Hour).Unix()
)

func activeSubscription(id, customerID string) *provider.Subscription {
	return &provider.Subscription{
		ID:                 id,
		CustomerID:         customerID,
		Status:             "active",
		CurrentPeriodStart: testPeriodBeg,
		CurrentPeriodEnd:   testPeriodEnd,
		Price: &provider.Price{
			ID:          "price_pro",
			ProductID:   "prod_pro",
			ProductName: "Pro",
			UnitAmount:  2000,
			Currency:    "usd",
			Interval:    "month",
		},
	}
}

func storedSubscription(subscriptionID, customerID string) map[string]interface{} {
	return map[string]interface{}{
		"plan":             "Pro",
		"status":           "active",
		"currentPeriodEnd": testPeriodEnd,
		"subscriptionId":   subscriptionID,
		"customerId":       customerID,
		"priceId":          "price_pro",
	}
}
