package usecase_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	adapterRepo "github.com/richstorm00/saas-starter/internal/adapter/repository"
	"github.com/richstorm00/saas-starter/internal/domain/entity"
	domainErrors "github.com/richstorm00/saas-starter/internal/domain/errors"
	"github.com/richstorm00/saas-starter/internal/domain/provider"
	"github.com/richstorm00/saas-starter/internal/usecase"
)

func TestSyncService_VerifySession(t *testing.T) {
	ctx := context.Background()

	session := func(owner string) *provider.CheckoutSession {
		return &provider.CheckoutSession{
			ID:             "cs_1",
			CustomerID:     "cus_1",
			CustomerEmail:  "user_1@example.com",
			SubscriptionID: "sub_1",
			Metadata:       map[string]string{"userId": owner, "priceId": "price_pro"},
			Subscription:   activeSubscription("sub_1", "cus_1"),
		}
	}

	t.Run("writes the subscription and returns it", func(t *testing.T) {
		f := newFixture()
		f.putUser(t, "user_1", nil, nil)
		f.processor.On("GetCheckoutSession", mock.Anything, "cs_1").Return(session("user_1"), nil)

		result, err := f.sync().VerifySession(ctx, "user_1", "cs_1")
		require.NoError(t, err)
		assert.True(t, result.Success)
		assert.Equal(t, "sub_1", result.Subscription.ID)
		assert.Equal(t, "active", result.Subscription.Status)
		assert.Equal(t, "price_pro", result.Subscription.Price.ID)
		assert.Equal(t, "Pro", result.Subscription.Price.Nickname)
		assert.Equal(t, int64(2000), result.Subscription.Price.UnitAmount)
		assert.Equal(t, "cus_1", result.Customer.ID)
		assert.Equal(t, "user_1@example.com", result.Customer.Email)

		stored, ok := f.doc(t, "user_1").Private.Object(entity.KeySubscription)
		require.True(t, ok)
		assert.Equal(t, "sub_1", stored["subscriptionId"])
		assert.NotEmpty(t, stored["verifiedAt"])

		entry, err := f.index.GetByCustomerID(ctx, "cus_1")
		require.NoError(t, err)
		require.NotNil(t, entry)
		assert.Equal(t, entity.IndexSourceSync, entry.Source)
	})

	t.Run("session owned by another user", func(t *testing.T) {
		f := newFixture()
		f.putUser(t, "user_1", nil, nil)
		f.processor.On("GetCheckoutSession", mock.Anything, "cs_1").Return(session("user_2"), nil)

		_, err := f.sync().VerifySession(ctx, "user_1", "cs_1")
		assert.ErrorIs(t, err, domainErrors.ErrSessionUserMismatch)
		assert.Equal(t, 0, f.index.Len())
	})

	t.Run("unknown session", func(t *testing.T) {
		f := newFixture()
		f.processor.On("GetCheckoutSession", mock.Anything, "cs_missing").Return(nil, &provider.ProviderError{
			Code: "resource_missing", Message: "No such checkout session", Err: provider.ErrResourceMissing,
		})

		_, err := f.sync().VerifySession(ctx, "user_1", "cs_missing")
		assert.ErrorIs(t, err, domainErrors.ErrSessionNotFound)
	})

	t.Run("unexpanded subscription is fetched", func(t *testing.T) {
		f := newFixture()
		f.putUser(t, "user_1", nil, nil)
		s := session("user_1")
		s.Subscription = nil
		f.processor.On("GetCheckoutSession", mock.Anything, "cs_1").Return(s, nil)
		f.processor.On("GetSubscription", mock.Anything, "sub_1").Return(activeSubscription("sub_1", "cus_1"), nil)

		result, err := f.sync().VerifySession(ctx, "user_1", "cs_1")
		require.NoError(t, err)
		assert.Equal(t, "sub_1", result.Subscription.ID)
		f.processor.AssertExpectations(t)
	})

	t.Run("metadata write failure does not fail the response", func(t *testing.T) {
		f := newFixture()
		f.processor.On("GetCheckoutSession", mock.Anything, "cs_1").Return(session("user_gone"), nil)

		result, err := f.sync().VerifySession(ctx, "user_gone", "cs_1")
		require.NoError(t, err)
		assert.True(t, result.Success)
	})
}

func TestSyncService_SyncSubscription(t *testing.T) {
	ctx := context.Background()

	t.Run("stores the full record", func(t *testing.T) {
		f := newFixture()
		f.putUser(t, "user_1", nil, nil)
		f.processor.On("GetSubscription", mock.Anything, "sub_1").Return(activeSubscription("sub_1", "cus_1"), nil)

		result, err := f.sync().SyncSubscription(ctx, "user_1", usecase.SyncRequest{SubscriptionID: "sub_1"})
		require.NoError(t, err)
		assert.True(t, result.Success)
		assert.Equal(t, "pro", result.Subscription["plan"])
		assert.Equal(t, "month", result.Subscription["interval"])
		assert.Equal(t, 20.0, result.Subscription["amount"])
		assert.Equal(t, "usd", result.Subscription["currency"])
		assert.Equal(t, "prod_pro", result.Subscription["productId"])

		doc := f.doc(t, "user_1")
		assert.Equal(t, "cus_1", doc.Private.String(entity.KeyStripeCustomerID))
		view, err := f.projector().CurrentPlan(ctx, "user_1")
		require.NoError(t, err)
		assert.Equal(t, "pro", *view.Plan)
		assert.Equal(t, "sub_1", *view.SubscriptionID)
	})

	t.Run("customer owned by another user", func(t *testing.T) {
		f := newFixture()
		f.putUser(t, "user_1", nil, nil)
		f.putUser(t, "user_2", entity.Partition{entity.KeySubscription: storedSubscription("sub_1", "cus_1")}, nil)
		require.NoError(t, f.index.Upsert(ctx, "cus_1", "user_2", entity.IndexSourceCheckout))
		f.processor.On("GetSubscription", mock.Anything, "sub_1").Return(activeSubscription("sub_1", "cus_1"), nil)

		_, err := f.sync().SyncSubscription(ctx, "user_1", usecase.SyncRequest{SubscriptionID: "sub_1"})
		assert.ErrorIs(t, err, domainErrors.ErrSubscriptionUserMismatch)
		assert.Empty(t, f.doc(t, "user_1").Private)
	})

	t.Run("unindexed customer owned by another user", func(t *testing.T) {
		f := newFixture()
		f.putUser(t, "user_attacker", nil, nil)
		f.putUser(t, "user_victim", entity.Partition{
			entity.KeySubscription:     storedSubscription("sub_v", "cus_v"),
			entity.KeyStripeCustomerID: "cus_v",
		}, nil)
		victimBefore := f.doc(t, "user_victim")
		f.processor.On("GetSubscription", mock.Anything, "sub_v").Return(activeSubscription("sub_v", "cus_v"), nil)

		_, err := f.sync().SyncSubscription(ctx, "user_attacker", usecase.SyncRequest{SubscriptionID: "sub_v"})
		assert.ErrorIs(t, err, domainErrors.ErrSubscriptionUserMismatch)
		assert.Empty(t, f.doc(t, "user_attacker").Private)
		assert.Equal(t, victimBefore, f.doc(t, "user_victim"))

		entry, err := f.index.GetByCustomerID(ctx, "cus_v")
		require.NoError(t, err)
		require.NotNil(t, entry)
		assert.Equal(t, "user_victim", entry.UserID)
	})

	t.Run("own unindexed customer", func(t *testing.T) {
		f := newFixture()
		f.putUser(t, "user_1", entity.Partition{entity.KeyStripeCustomerID: "cus_1"}, nil)
		f.processor.On("GetSubscription", mock.Anything, "sub_1").Return(activeSubscription("sub_1", "cus_1"), nil)

		result, err := f.sync().SyncSubscription(ctx, "user_1", usecase.SyncRequest{SubscriptionID: "sub_1"})
		require.NoError(t, err)
		assert.True(t, result.Success)
	})

	t.Run("owner lookup failure refuses the sync", func(t *testing.T) {
		f := newFixture()
		f.putUser(t, "user_1", nil, nil)
		f.processor.On("GetSubscription", mock.Anything, "sub_1").Return(activeSubscription("sub_1", "cus_1"), nil)
		failing := &listFailingStore{MemoryMetadataStore: f.store}
		locator := usecase.NewUserLocator(failing, f.index, f.reconciler, nil, f.logger, 2, 5)
		svc := usecase.NewSyncService(f.store, f.index, locator, f.processor, f.notifier, f.logger)

		_, err := svc.SyncSubscription(ctx, "user_1", usecase.SyncRequest{SubscriptionID: "sub_1"})
		require.Error(t, err)
		var procErr *domainErrors.ProcessorError
		assert.True(t, errors.As(err, &procErr))
		assert.Empty(t, f.doc(t, "user_1").Private)
		assert.Equal(t, 0, f.index.Len())
	})

	t.Run("customer id that does not match the subscription", func(t *testing.T) {
		f := newFixture()
		f.putUser(t, "user_1", nil, nil)
		f.processor.On("GetSubscription", mock.Anything, "sub_1").Return(activeSubscription("sub_1", "cus_1"), nil)

		_, err := f.sync().SyncSubscription(ctx, "user_1", usecase.SyncRequest{SubscriptionID: "sub_1", CustomerID: "cus_other"})
		assert.ErrorIs(t, err, domainErrors.ErrSubscriptionUserMismatch)
	})

	t.Run("unknown subscription", func(t *testing.T) {
		f := newFixture()
		f.processor.On("GetSubscription", mock.Anything, "sub_missing").Return(nil, &provider.ProviderError{
			Code: "resource_missing", Err: provider.ErrResourceMissing,
		})

		_, err := f.sync().SyncSubscription(ctx, "user_1", usecase.SyncRequest{SubscriptionID: "sub_missing"})
		assert.ErrorIs(t, err, domainErrors.ErrSubscriptionNotFound)
	})

	t.Run("metadata write failure", func(t *testing.T) {
		f := newFixture()
		f.processor.On("GetSubscription", mock.Anything, "sub_1").Return(activeSubscription("sub_1", "cus_1"), nil)

		_, err := f.sync().SyncSubscription(ctx, "user_gone", usecase.SyncRequest{SubscriptionID: "sub_1"})
		require.Error(t, err)
		var procErr *domainErrors.ProcessorError
		assert.True(t, errors.As(err, &procErr))
	})
}

type listFailingStore struct {
	*adapterRepo.MemoryMetadataStore
}

func (s *listFailingStore) List(context.Context, int, int) ([]*entity.MetadataDocument, error) {
	return nil, errors.New("identity provider unavailable")
}
