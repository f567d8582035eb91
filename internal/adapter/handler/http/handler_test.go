package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	handlers "github.com/richstorm00/saas-starter/internal/adapter/handler/http"
	adapterRepo "github.com/richstorm00/saas-starter/internal/adapter/repository"
	"github.com/richstorm00/saas-starter/internal/domain/entity"
	"github.com/richstorm00/saas-starter/internal/domain/provider"
	"github.com/richstorm00/saas-starter/internal/domain/provider/providertest"
	"github.com/richstorm00/saas-starter/internal/middleware/auth"
	"github.com/richstorm00/saas-starter/internal/usecase"
)

type testEnv struct {
	echo      *echo.Echo
	store     *adapterRepo.MemoryMetadataStore
	index     *adapterRepo.MemoryCustomerIndex
	processor *providertest.MockPaymentProcessor

	webhook      *handlers.WebhookHandler
	subscription *handlers.SubscriptionHandler
	portal       *handlers.PortalHandler
	session      *handlers.SessionHandler
	product      *handlers.ProductHandler
	checkout     *handlers.CheckoutHandler
}

func newTestEnv() *testEnv {
	logger := zap.NewNop()
	store := adapterRepo.NewMemoryMetadataStore()
	index := adapterRepo.NewMemoryCustomerIndex()
	events := adapterRepo.NewMemoryWebhookEvents()
	processor := new(providertest.MockPaymentProcessor)
	reconciler := usecase.NewReconciler()
	locator := usecase.NewUserLocator(store, index, reconciler, nil, logger, 10, 1)

	e := echo.New()
	e.Validator = handlers.NewRequestValidator()

	return &testEnv{
		echo:      e,
		store:     store,
		index:     index,
		processor: processor,
		webhook: handlers.NewWebhookHandler(logger,
			usecase.NewEventIngestor(processor, store, index, events, locator, reconciler, nil, nil, logger)),
		subscription: handlers.NewSubscriptionHandler(logger,
			usecase.NewPlanProjector(store, reconciler, nil, logger),
			usecase.NewCancellationService(store, processor, reconciler, nil, nil, logger)),
		portal: handlers.NewPortalHandler(logger,
			usecase.NewPortalService(store, index, processor, reconciler, nil, logger, "https://app.example.com", "")),
		session: handlers.NewSessionHandler(logger,
			usecase.NewSyncService(store, index, locator, processor, nil, logger)),
		product: handlers.NewProductHandler(logger, usecase.NewCatalogService(processor, logger)),
		checkout: handlers.NewCheckoutHandler(logger,
			usecase.NewCheckoutService(store, processor, reconciler, logger, "https://app.example.com")),
	}
}

// request builds a context for the handler, authenticated as userID when set.
func (env *testEnv) request(method, target, body, userID string) (echo.Context, *httptest.ResponseRecorder) {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if userID != "" {
		req = req.WithContext(auth.WithUser(req.Context(), &auth.AuthUser{UserID: userID}))
	}
	rec := httptest.NewRecorder()
	return env.echo.NewContext(req, rec), rec
}

func (env *testEnv) putUser(t *testing.T, userID string, private entity.Partition) {
	t.Helper()
	require.NoError(t, env.store.Put(&entity.MetadataDocument{UserID: userID, Private: private}))
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func storedSubscription() map[string]interface{} {
	return map[string]interface{}{
		"plan":             "Pro",
		"status":           "active",
		"currentPeriodEnd": time.Now().Add(24 * time.Hour).Unix(),
		"subscriptionId":   "sub_1",
		"customerId":       "cus_1",
	}
}

func assertUnauthorized(t *testing.T, err error) {
	t.Helper()
	var httpErr *echo.HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusUnauthorized, httpErr.Code)
}

func TestWebhookHandler_HandleWebhook(t *testing.T) {
	t.Run("invalid signature", func(t *testing.T) {
		env := newTestEnv()
		env.processor.On("VerifyEvent", mock.Anything, "bad").Return(nil, &provider.ProviderError{
			Message: "Webhook signature verification failed", Err: provider.ErrSignatureVerification,
		})

		c, rec := env.request(http.MethodPost, "/api/stripe/webhook", `{"id":"evt_1"}`, "")
		c.Request().Header.Set(handlers.SignatureHeader, "bad")

		require.NoError(t, env.webhook.HandleWebhook(c))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Invalid signature", decode(t, rec)["error"])
	})

	t.Run("acknowledged", func(t *testing.T) {
		env := newTestEnv()
		env.processor.On("VerifyEvent", []byte(`{"id":"evt_2"}`), "good").Return(&provider.Event{
			ID: "evt_2", Type: "customer.created", Created: time.Now(),
		}, nil)

		c, rec := env.request(http.MethodPost, "/api/stripe/webhook", `{"id":"evt_2"}`, "")
		c.Request().Header.Set(handlers.SignatureHeader, "good")

		require.NoError(t, env.webhook.HandleWebhook(c))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, true, decode(t, rec)["received"])
	})

	t.Run("processing failure", func(t *testing.T) {
		env := newTestEnv()
		env.putUser(t, "user_1", nil)
		env.processor.On("VerifyEvent", mock.Anything, "good").Return(&provider.Event{
			ID:      "evt_3",
			Type:    provider.EventCheckoutSessionCompleted,
			Created: time.Now(),
			CheckoutSession: &provider.CheckoutSession{
				ID: "cs_1", CustomerID: "cus_1", SubscriptionID: "sub_1",
				Metadata: map[string]string{"userId": "user_1", "priceId": "price_1"},
			},
		}, nil)
		env.processor.On("GetSubscription", mock.Anything, "sub_1").Return(nil, errors.New("api down"))

		c, rec := env.request(http.MethodPost, "/api/stripe/webhook", `{"id":"evt_3"}`, "")
		c.Request().Header.Set(handlers.SignatureHeader, "good")

		require.NoError(t, env.webhook.HandleWebhook(c))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "Webhook processing failed", decode(t, rec)["error"])
	})

	t.Run("undecodable event is retried, not rejected", func(t *testing.T) {
		env := newTestEnv()
		env.processor.On("VerifyEvent", mock.Anything, "good").Return(nil, &provider.ProviderError{
			Code: "event_decode_failed", Message: "Failed to decode subscription", Err: provider.ErrEventDecode,
		})

		c, rec := env.request(http.MethodPost, "/api/stripe/webhook", `{"id":"evt_4"}`, "")
		c.Request().Header.Set(handlers.SignatureHeader, "good")

		require.NoError(t, env.webhook.HandleWebhook(c))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "Webhook processing failed", decode(t, rec)["error"])
	})

	t.Run("oversized body", func(t *testing.T) {
		env := newTestEnv()
		body := `{"id":"evt_5","pad":"` + strings.Repeat("x", handlers.MaxWebhookBody) + `"}`

		c, rec := env.request(http.MethodPost, "/api/stripe/webhook", body, "")
		c.Request().Header.Set(handlers.SignatureHeader, "good")

		require.NoError(t, env.webhook.HandleWebhook(c))
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
		assert.Equal(t, "Request body too large", decode(t, rec)["error"])
		env.processor.AssertNotCalled(t, "VerifyEvent", mock.Anything, mock.Anything)
	})
}

func TestCheckoutHandler_CreateCheckoutSession(t *testing.T) {
	t.Run("unauthenticated", func(t *testing.T) {
		env := newTestEnv()

		c, _ := env.request(http.MethodPost, "/api/stripe/create-checkout-session", `{"priceId":"price_1"}`, "")
		assertUnauthorized(t, env.checkout.CreateCheckoutSession(c))
	})

	t.Run("missing price", func(t *testing.T) {
		env := newTestEnv()
		env.putUser(t, "user_1", nil)

		c, rec := env.request(http.MethodPost, "/api/stripe/create-checkout-session", `{}`, "user_1")
		require.NoError(t, env.checkout.CreateCheckoutSession(c))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Price ID is required", decode(t, rec)["error"])
		assert.Empty(t, env.processor.Calls)
	})

	t.Run("success", func(t *testing.T) {
		env := newTestEnv()
		env.putUser(t, "user_1", entity.Partition{entity.KeyStripeCustomerID: "cus_1"})
		env.processor.On("CreateCheckoutSession", mock.Anything, mock.MatchedBy(func(req *provider.CheckoutSessionRequest) bool {
			return req.PriceID == "price_1" && req.CustomerID == "cus_1" &&
				req.Metadata["userId"] == "user_1" && req.Metadata["priceId"] == "price_1" &&
				req.SuccessURL == "https://app.example.com/thank-you?session_id={CHECKOUT_SESSION_ID}"
		})).Return(&provider.CheckoutSession{ID: "cs_1", URL: "https://checkout.example.com/cs_1"}, nil)

		c, rec := env.request(http.MethodPost, "/api/stripe/create-checkout-session", `{"priceId":"price_1"}`, "user_1")
		require.NoError(t, env.checkout.CreateCheckoutSession(c))
		assert.Equal(t, http.StatusOK, rec.Code)
		body := decode(t, rec)
		assert.Equal(t, "cs_1", body["sessionId"])
		assert.Equal(t, "https://checkout.example.com/cs_1", body["url"])
	})

	t.Run("processor failure", func(t *testing.T) {
		env := newTestEnv()
		env.putUser(t, "user_1", nil)
		env.processor.On("CreateCheckoutSession", mock.Anything, mock.Anything).Return(nil, errors.New("api down"))

		c, rec := env.request(http.MethodPost, "/api/stripe/create-checkout-session", `{"priceId":"price_1"}`, "user_1")
		require.NoError(t, env.checkout.CreateCheckoutSession(c))
		assert.GreaterOrEqual(t, rec.Code, http.StatusInternalServerError)
		assert.Equal(t, "api down", decode(t, rec)["details"])
	})
}

func TestSubscriptionHandler_GetCurrentPlan(t *testing.T) {
	env := newTestEnv()
	env.putUser(t, "user_1", entity.Partition{entity.KeySubscription: storedSubscription()})
	env.putUser(t, "user_bad", entity.Partition{entity.KeySubscription: map[string]interface{}{"plan": "Pro"}})

	c, _ := env.request(http.MethodGet, "/api/user/current-plan", "", "")
	assertUnauthorized(t, env.subscription.GetCurrentPlan(c))

	c, rec := env.request(http.MethodGet, "/api/user/current-plan", "", "user_1")
	require.NoError(t, env.subscription.GetCurrentPlan(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "Pro", body["plan"])
	assert.Equal(t, true, body["hasSubscription"])
	assert.Equal(t, true, body["isValid"])

	c, rec = env.request(http.MethodGet, "/api/user/current-plan", "", "user_bad")
	require.NoError(t, env.subscription.GetCurrentPlan(c))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "Invalid subscription data", decode(t, rec)["error"])
}

func TestSubscriptionHandler_CancelSubscription(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		env := newTestEnv()
		env.putUser(t, "user_1", entity.Partition{entity.KeySubscription: storedSubscription()})
		env.processor.On("CancelSubscription", mock.Anything, "sub_1").Return(nil)

		c, rec := env.request(http.MethodPost, "/api/stripe/cancel-subscription", "", "user_1")
		require.NoError(t, env.subscription.CancelSubscription(c))
		assert.Equal(t, http.StatusOK, rec.Code)

		body := decode(t, rec)
		assert.Equal(t, true, body["success"])
		assert.Nil(t, body["subscription"])
		assert.Contains(t, body, "subscription")
		assert.Equal(t, false, body["hasSubscription"])
		assert.Equal(t, true, body["metadataCleared"])
	})

	t.Run("no subscription", func(t *testing.T) {
		env := newTestEnv()
		env.putUser(t, "user_1", nil)

		c, rec := env.request(http.MethodPost, "/api/stripe/cancel-subscription", "", "user_1")
		require.NoError(t, env.subscription.CancelSubscription(c))
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "No subscription found", decode(t, rec)["error"])
	})

	t.Run("processor failure carries details", func(t *testing.T) {
		env := newTestEnv()
		env.putUser(t, "user_1", entity.Partition{entity.KeySubscription: storedSubscription()})
		env.processor.On("CancelSubscription", mock.Anything, "sub_1").Return(errors.New("rate limited"))

		c, rec := env.request(http.MethodPost, "/api/stripe/cancel-subscription", "", "user_1")
		require.NoError(t, env.subscription.CancelSubscription(c))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		body := decode(t, rec)
		assert.Equal(t, "Failed to cancel subscription", body["error"])
		assert.Equal(t, "rate limited", body["details"])
	})

	t.Run("unauthenticated", func(t *testing.T) {
		env := newTestEnv()
		c, _ := env.request(http.MethodPost, "/api/stripe/cancel-subscription", "", "")
		assertUnauthorized(t, env.subscription.CancelSubscription(c))
	})
}

func TestPortalHandler_CreatePortalSession(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		env := newTestEnv()
		env.putUser(t, "user_1", entity.Partition{entity.KeyStripeCustomerID: "cus_1"})
		env.processor.On("CreatePortalSession", mock.Anything, mock.Anything).
			Return(&provider.PortalSession{URL: "https://billing.example.com/p"}, nil)

		c, rec := env.request(http.MethodPost, "/api/stripe/customer-portal", "", "user_1")
		require.NoError(t, env.portal.CreatePortalSession(c))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "https://billing.example.com/p", decode(t, rec)["url"])
	})

	t.Run("no customer", func(t *testing.T) {
		env := newTestEnv()
		env.putUser(t, "user_1", nil)

		c, rec := env.request(http.MethodPost, "/api/stripe/customer-portal", "", "user_1")
		require.NoError(t, env.portal.CreatePortalSession(c))
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "No customer found", decode(t, rec)["error"])
		env.processor.AssertNotCalled(t, "CreatePortalSession", mock.Anything, mock.Anything)
	})

	t.Run("configuration error", func(t *testing.T) {
		env := newTestEnv()
		env.putUser(t, "user_1", entity.Partition{entity.KeyStripeCustomerID: "cus_1"})
		env.processor.On("CreatePortalSession", mock.Anything, mock.Anything).Return(nil, &provider.ProviderError{
			Message: "No configuration provided", Err: provider.ErrPortalNotConfigured,
		})

		c, rec := env.request(http.MethodPost, "/api/stripe/customer-portal", "", "user_1")
		require.NoError(t, env.portal.CreatePortalSession(c))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		body := decode(t, rec)
		assert.Equal(t, "configuration_error", body["type"])
		assert.Equal(t, "No configuration provided", body["message"])
	})

	t.Run("other failure", func(t *testing.T) {
		env := newTestEnv()
		env.putUser(t, "user_1", entity.Partition{entity.KeyStripeCustomerID: "cus_1"})
		env.processor.On("CreatePortalSession", mock.Anything, mock.Anything).Return(nil, errors.New("boom"))

		c, rec := env.request(http.MethodPost, "/api/stripe/customer-portal", `{"returnUrl":"https://app.example.com/x"}`, "user_1")
		require.NoError(t, env.portal.CreatePortalSession(c))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "Failed to create portal", decode(t, rec)["error"])
	})
}

func TestSessionHandler(t *testing.T) {
	t.Run("verify requires a session id", func(t *testing.T) {
		env := newTestEnv()
		c, rec := env.request(http.MethodGet, "/api/stripe/verify-session", "", "user_1")
		require.NoError(t, env.session.VerifySession(c))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Session ID is required", decode(t, rec)["error"])
	})

	t.Run("verify rejects another user's session", func(t *testing.T) {
		env := newTestEnv()
		env.processor.On("GetCheckoutSession", mock.Anything, "cs_1").Return(&provider.CheckoutSession{
			ID: "cs_1", Metadata: map[string]string{"userId": "user_2"},
		}, nil)

		c, rec := env.request(http.MethodGet, "/api/stripe/verify-session?session_id=cs_1", "", "user_1")
		require.NoError(t, env.session.VerifySession(c))
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("update metadata requires a subscription id", func(t *testing.T) {
		env := newTestEnv()
		c, rec := env.request(http.MethodPost, "/api/stripe/update-clerk-metadata", `{"customerId":"cus_1"}`, "user_1")
		require.NoError(t, env.session.UpdateMetadata(c))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Subscription ID is required", decode(t, rec)["error"])
	})

	t.Run("update metadata", func(t *testing.T) {
		env := newTestEnv()
		env.putUser(t, "user_1", nil)
		env.processor.On("GetSubscription", mock.Anything, "sub_1").Return(&provider.Subscription{
			ID: "sub_1", CustomerID: "cus_1", Status: "active", CurrentPeriodEnd: time.Now().Add(time.Hour).Unix(),
			Price: &provider.Price{ID: "price_1", ProductName: "Starter", UnitAmount: 900, Currency: "usd"},
		}, nil)

		c, rec := env.request(http.MethodPost, "/api/stripe/update-clerk-metadata", `{"subscriptionId":"sub_1"}`, "user_1")
		require.NoError(t, env.session.UpdateMetadata(c))
		assert.Equal(t, http.StatusOK, rec.Code)

		body := decode(t, rec)
		assert.Equal(t, true, body["success"])
		sub, ok := body["subscription"].(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "starter", sub["plan"])
		assert.Equal(t, 9.0, sub["amount"])

		doc, err := env.store.Get(context.Background(), "user_1")
		require.NoError(t, err)
		assert.Equal(t, "cus_1", doc.Private.String(entity.KeyStripeCustomerID))
	})
}

func TestProductHandler_GetProducts(t *testing.T) {
	env := newTestEnv()
	env.processor.On("ListCatalog", mock.Anything).Return([]entity.CatalogProduct{
		{ID: "prod_1", Name: "Pro", Prices: []entity.CatalogPrice{
			{ID: "price_1", UnitAmount: 1500, Currency: "usd", Recurring: true, Type: "recurring"},
		}},
	}, nil).Once()
	env.processor.On("ListCatalog", mock.Anything).Return(nil, errors.New("down")).Once()

	c, rec := env.request(http.MethodGet, "/api/stripe/products", "", "")
	require.NoError(t, env.product.GetProducts(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	products, ok := decode(t, rec)["products"].([]interface{})
	require.True(t, ok)
	require.Len(t, products, 1)
	price := products[0].(map[string]interface{})["prices"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "15", price["amount"])

	c, rec = env.request(http.MethodGet, "/api/stripe/products", "", "")
	require.NoError(t, env.product.GetProducts(c))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Failed to fetch products", decode(t, rec)["error"])
}

func TestHealthHandler(t *testing.T) {
	env := newTestEnv()
	c, rec := env.request(http.MethodGet, "/health", "", "")
	require.NoError(t, handlers.NewHealthHandler("billing").Health(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decode(t, rec)["status"])
}
