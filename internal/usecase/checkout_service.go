package usecase

import (
	"context"
	"strings"

	domainErrors "github.com/richstorm00/saas-starter/internal/domain/errors"
	"github.com/richstorm00/saas-starter/internal/domain/provider"
	"github.com/richstorm00/saas-starter/internal/domain/repository"
	apperrors "github.com/richstorm00/saas-starter/pkg/errors"
	"go.uber.org/zap"
)

// Checkout redirect paths, relative to the app URL. The processor replaces
// {CHECKOUT_SESSION_ID} with the session id.
const (
	CheckoutSuccessPath = "/thank-you?session_id={CHECKOUT_SESSION_ID}"
	CheckoutCancelPath  = "/pricing"
)

// CheckoutService starts subscription checkouts. The session carries the
// user and price in its metadata so checkout.session.completed can be
// attributed.
type CheckoutService struct {
	store      repository.MetadataStore
	processor  provider.PaymentProcessor
	reconciler *Reconciler
	logger     *zap.Logger
	appURL     string
}

// NewCheckoutService creates a new checkout service
func NewCheckoutService(
	store repository.MetadataStore,
	processor provider.PaymentProcessor,
	reconciler *Reconciler,
	logger *zap.Logger,
	appURL string,
) *CheckoutService {
	return &CheckoutService{
		store:      store,
		processor:  processor,
		reconciler: reconciler,
		logger:     logger,
		appURL:     strings.TrimRight(appURL, "/"),
	}
}

// Create opens a checkout session for priceID. A known customer is reused,
// otherwise the user's email prefills a new one.
func (s *CheckoutService) Create(ctx context.Context, userID, priceID string) (*provider.CheckoutSession, error) {
	doc, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	req := &provider.CheckoutSessionRequest{
		PriceID:           priceID,
		ClientReferenceID: userID,
		SuccessURL:        s.appURL + CheckoutSuccessPath,
		CancelURL:         s.appURL + CheckoutCancelPath,
		Metadata: map[string]string{
			"userId":  userID,
			"priceId": priceID,
		},
	}
	if customerID := s.reconciler.ResolveCustomerID(doc); customerID != "" {
		req.CustomerID = customerID
	} else {
		req.CustomerEmail = doc.Email
	}

	session, err := s.processor.CreateCheckoutSession(ctx, req)
	if err != nil {
		apperrors.LogError(s.logger, err, "Failed to create checkout session",
			zap.String("user_id", userID),
			zap.String("price_id", priceID))
		return nil, domainErrors.NewProcessorError("Failed to create checkout session", "create_checkout_session", err)
	}

	s.logger.Info("Checkout session created",
		zap.String("user_id", userID),
		zap.String("price_id", priceID),
		zap.String("session_id", session.ID))
	return session, nil
}
