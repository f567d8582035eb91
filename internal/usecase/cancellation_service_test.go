package usecase_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/richstorm00/saas-starter/internal/domain/entity"
	domainErrors "github.com/richstorm00/saas-starter/internal/domain/errors"
	"github.com/richstorm00/saas-starter/internal/domain/provider"
	apperrors "github.com/richstorm00/saas-starter/pkg/errors"
)

func TestCancellationService_Cancel(t *testing.T) {
	ctx := context.Background()

	t.Run("cancel twice keeps the customer id", func(t *testing.T) {
		f := newFixture()
		f.putUser(t, "user_1", entity.Partition{
			entity.KeySubscription: storedSubscription("sub_1", "cus_1"),
		}, entity.Partition{
			entity.KeySubscription: map[string]interface{}{"plan": "Pro", "status": "active", "active": true},
		})
		f.processor.On("CancelSubscription", mock.Anything, "sub_1").Return(nil).Once()

		first, err := f.cancellation().Cancel(ctx, "user_1")
		require.NoError(t, err)
		assert.True(t, first.Success)
		assert.Nil(t, first.Subscription)
		assert.False(t, first.HasSubscription)
		assert.True(t, first.MetadataCleared)
		assert.Equal(t, "cus_1", first.CustomerID)

		second, err := f.cancellation().Cancel(ctx, "user_1")
		require.NoError(t, err)
		assert.True(t, second.Success)
		assert.True(t, second.MetadataCleared)
		assert.Equal(t, "cus_1", second.CustomerID)

		doc := f.doc(t, "user_1")
		for _, key := range entity.SubscriptionKeys {
			assert.NotContains(t, doc.Private, key)
			assert.NotContains(t, doc.Public, key)
		}
		assert.Equal(t, "cus_1", doc.Private.String(entity.KeyStripeCustomerID))
		assert.Equal(t, "cus_1", f.reconciler.ResolveCustomerID(doc))

		f.processor.AssertNumberOfCalls(t, "CancelSubscription", 1)
		require.Len(t, f.notifier.messages, 1)
		assert.Equal(t, string(entity.StatusCanceled), f.notifier.messages[0].Status)
	})

	t.Run("subscription already gone at the processor", func(t *testing.T) {
		f := newFixture()
		f.putUser(t, "user_1", entity.Partition{
			entity.KeyStripeSubscription: storedSubscription("sub_1", "cus_1"),
		}, nil)
		f.processor.On("CancelSubscription", mock.Anything, "sub_1").Return(&provider.ProviderError{
			Code:    "resource_missing",
			Message: "No such subscription",
			Err:     provider.ErrResourceMissing,
		})

		result, err := f.cancellation().Cancel(ctx, "user_1")
		require.NoError(t, err)
		assert.True(t, result.MetadataCleared)
		assert.Equal(t, "cus_1", f.doc(t, "user_1").Private.String(entity.KeyStripeCustomerID))
	})

	t.Run("processor failure leaves metadata untouched", func(t *testing.T) {
		f := newFixture()
		f.putUser(t, "user_1", entity.Partition{
			entity.KeySubscription: storedSubscription("sub_1", "cus_1"),
		}, nil)
		before := f.doc(t, "user_1")
		f.processor.On("CancelSubscription", mock.Anything, "sub_1").Return(errors.New("card_declined"))

		result, err := f.cancellation().Cancel(ctx, "user_1")
		require.Error(t, err)
		assert.Nil(t, result)

		var procErr *domainErrors.ProcessorError
		require.True(t, errors.As(err, &procErr))
		assert.Equal(t, "card_declined", procErr.Details)
		assert.Equal(t, 500, apperrors.StatusOf(err))
		assert.Equal(t, before, f.doc(t, "user_1"))
	})

	t.Run("no subscription", func(t *testing.T) {
		f := newFixture()
		f.putUser(t, "user_1", nil, nil)

		_, err := f.cancellation().Cancel(ctx, "user_1")
		assert.ErrorIs(t, err, domainErrors.ErrNoSubscriptionFound)
		f.processor.AssertNotCalled(t, "CancelSubscription", mock.Anything, mock.Anything)
	})

	t.Run("invalid stored data is still cancellable", func(t *testing.T) {
		f := newFixture()
		f.putUser(t, "user_1", entity.Partition{
			entity.KeySubscription: map[string]interface{}{"subscriptionId": "sub_1", "customerId": "cus_1"},
		}, nil)
		f.processor.On("CancelSubscription", mock.Anything, "sub_1").Return(nil)

		result, err := f.cancellation().Cancel(ctx, "user_1")
		require.NoError(t, err)
		assert.True(t, result.MetadataCleared)
		assert.Equal(t, "cus_1", result.CustomerID)
	})

	t.Run("unknown user", func(t *testing.T) {
		f := newFixture()

		_, err := f.cancellation().Cancel(ctx, "user_missing")
		assert.ErrorIs(t, err, domainErrors.ErrUserNotFound)
	})
}

func TestCancellation_ReadAndPortalAfterCancel(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.putUser(t, "user_1", entity.Partition{
		entity.KeySubscription: storedSubscription("sub_1", "cus_1"),
	}, nil)
	f.processor.On("CancelSubscription", mock.Anything, "sub_1").Return(nil)
	f.processor.On("CreatePortalSession", mock.Anything, mock.MatchedBy(func(req *provider.PortalSessionRequest) bool {
		return req.CustomerID == "cus_1"
	})).Return(&provider.PortalSession{ID: "bps_1", URL: "https://billing.example.com/session"}, nil)

	_, err := f.cancellation().Cancel(ctx, "user_1")
	require.NoError(t, err)

	view, err := f.projector().CurrentPlan(ctx, "user_1")
	require.NoError(t, err)
	assert.False(t, view.HasSubscription)
	assert.Nil(t, view.Plan)
	assert.Equal(t, "inactive", view.Status)
	assert.Equal(t, "cus_1", view.CustomerID)

	session, err := f.portal().Open(ctx, "user_1", "")
	require.NoError(t, err)
	assert.Equal(t, "https://billing.example.com/session", session.URL)
}
