package usecase_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richstorm00/saas-starter/internal/domain/entity"
	domainErrors "github.com/richstorm00/saas-starter/internal/domain/errors"
	"github.com/richstorm00/saas-starter/internal/usecase"
)

func TestReconciler_Precedence(t *testing.T) {
	r := usecase.NewReconciler()

	private := map[string]interface{}{
		"plan":             "Pro",
		"status":           "active",
		"currentPeriodEnd": float64(1900000000),
		"subscriptionId":   "sub_private",
		"customerId":       "cus_private",
	}
	public := map[string]interface{}{
		"plan":             "Basic",
		"status":           "past_due",
		"currentPeriodEnd": float64(1800000000),
		"subscriptionId":   "sub_public",
		"customerId":       "cus_public",
	}

	t.Run("private subscription wins over every other location", func(t *testing.T) {
		doc := &entity.MetadataDocument{
			UserID: "user_1",
			Private: entity.Partition{
				entity.KeySubscription:        private,
				entity.KeyStripeSubscription:  public,
				entity.KeyBillingSubscription: public,
			},
			Public: entity.Partition{entity.KeySubscription: public},
		}

		state, err := r.Reconcile(doc)
		require.NoError(t, err)
		require.True(t, state.HasSubscription())
		assert.Equal(t, "Pro", state.Record.Plan)
		assert.Equal(t, entity.StatusActive, state.Record.Status)
		assert.Equal(t, int64(1900000000), state.Record.CurrentPeriodEnd)
		assert.Equal(t, "sub_private", state.Record.SubscriptionID)
		assert.Equal(t, "cus_private", state.CustomerID)
	})

	tests := []struct {
		name     string
		doc      *entity.MetadataDocument
		expected string
	}{
		{
			name: "public subscription before private legacy key",
			doc: &entity.MetadataDocument{
				Private: entity.Partition{entity.KeyStripeSubscription: private},
				Public:  entity.Partition{entity.KeySubscription: public},
			},
			expected: "sub_public",
		},
		{
			name: "private stripeSubscription before public stripeSubscription",
			doc: &entity.MetadataDocument{
				Private: entity.Partition{entity.KeyStripeSubscription: private},
				Public:  entity.Partition{entity.KeyStripeSubscription: public},
			},
			expected: "sub_private",
		},
		{
			name: "public stripeSubscription before billingSubscription",
			doc: &entity.MetadataDocument{
				Private: entity.Partition{entity.KeyBillingSubscription: private},
				Public:  entity.Partition{entity.KeyStripeSubscription: public},
			},
			expected: "sub_public",
		},
		{
			name: "null private subscription falls through",
			doc: &entity.MetadataDocument{
				Private: entity.Partition{entity.KeySubscription: nil},
				Public:  entity.Partition{entity.KeyBillingSubscription: public},
			},
			expected: "sub_public",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state, err := r.Reconcile(tt.doc)
			require.NoError(t, err)
			require.True(t, state.HasSubscription())
			assert.Equal(t, tt.expected, state.Record.SubscriptionID)
		})
	}
}

func TestReconciler_MissingPeriodEnd(t *testing.T) {
	r := usecase.NewReconciler()

	for _, shape := range []map[string]interface{}{
		{"plan": "Pro", "status": "active"},
		{"plan": "Pro", "currentPeriodEnd": nil},
		{"plan": "Pro", "endDate": "not a date"},
	} {
		doc := &entity.MetadataDocument{
			Private: entity.Partition{
				entity.KeySubscription:     shape,
				entity.KeyStripeCustomerID: "cus_1",
			},
		}

		state, err := r.Reconcile(doc)
		require.Error(t, err)
		assert.ErrorIs(t, err, domainErrors.ErrInvalidSubscriptionData)
		assert.False(t, state.HasSubscription())
		assert.Equal(t, "cus_1", state.CustomerID)
	}
}

func TestReconciler_LegacyShapes(t *testing.T) {
	r := usecase.NewReconciler()

	doc := &entity.MetadataDocument{
		Public: entity.Partition{
			entity.KeyBillingSubscription: map[string]interface{}{
				"plan_name":            "Team",
				"current_period_end":   "1900000000",
				"cancel_at_period_end": "true",
				"price_id":             "price_team",
				"subscription_id":      "sub_legacy",
				"customer_id":          "cus_legacy",
			},
		},
	}

	state, err := r.Reconcile(doc)
	require.NoError(t, err)
	require.True(t, state.HasSubscription())
	assert.Equal(t, "Team", state.Record.Plan)
	assert.Equal(t, entity.StatusActive, state.Record.Status)
	assert.Equal(t, int64(1900000000), state.Record.CurrentPeriodEnd)
	assert.True(t, state.Record.CancelAtPeriodEnd)
	assert.Equal(t, "price_team", state.Record.PriceID)
	assert.Equal(t, "sub_legacy", state.Record.SubscriptionID)
	assert.Equal(t, "cus_legacy", state.CustomerID)
}

func TestReconciler_States(t *testing.T) {
	r := usecase.NewReconciler()

	state, err := r.Reconcile(&entity.MetadataDocument{})
	require.NoError(t, err)
	assert.Equal(t, entity.StateUnknown, state.Kind)

	state, err = r.Reconcile(&entity.MetadataDocument{
		Public: entity.Partition{entity.KeyStripeCustomerID: "cus_public"},
	})
	require.NoError(t, err)
	assert.Equal(t, entity.StateCustomerOnly, state.Kind)
	assert.Equal(t, "cus_public", state.CustomerID)

	state, err = r.Reconcile(nil)
	require.NoError(t, err)
	assert.Equal(t, entity.StateUnknown, state.Kind)
}

func TestReconciler_ResolveCustomerID(t *testing.T) {
	r := usecase.NewReconciler()

	tests := []struct {
		name     string
		doc      *entity.MetadataDocument
		expected string
	}{
		{
			name: "private subscription customer",
			doc: &entity.MetadataDocument{
				Private: entity.Partition{
					entity.KeySubscription:     map[string]interface{}{"customerId": "cus_a"},
					entity.KeyStripeCustomerID: "cus_b",
				},
			},
			expected: "cus_a",
		},
		{
			name: "public subscription customer",
			doc: &entity.MetadataDocument{
				Private: entity.Partition{entity.KeyStripeCustomerID: "cus_b"},
				Public:  entity.Partition{entity.KeySubscription: map[string]interface{}{"customerId": "cus_c"}},
			},
			expected: "cus_c",
		},
		{
			name: "private stripeCustomerId",
			doc: &entity.MetadataDocument{
				Private: entity.Partition{entity.KeyStripeCustomerID: "cus_b"},
				Public:  entity.Partition{entity.KeyStripeCustomerID: "cus_d"},
			},
			expected: "cus_b",
		},
		{
			name:     "public stripeCustomerId",
			doc:      &entity.MetadataDocument{Public: entity.Partition{entity.KeyStripeCustomerID: "cus_d"}},
			expected: "cus_d",
		},
		{
			name:     "nothing known",
			doc:      &entity.MetadataDocument{},
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, r.ResolveCustomerID(tt.doc))
		})
	}
}
