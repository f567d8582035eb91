package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	domainErrors "github.com/richstorm00/saas-starter/internal/domain/errors"
	"github.com/richstorm00/saas-starter/internal/domain/provider"
	"github.com/richstorm00/saas-starter/internal/domain/repository"
	apperrors "github.com/richstorm00/saas-starter/pkg/errors"
	"go.uber.org/zap"
)

// PortalReturnPath is appended to the app URL when no return URL is given.
const PortalReturnPath = "/dashboard/subscription"

// PortalService opens customer billing portal sessions.
type PortalService struct {
	store           repository.MetadataStore
	index           repository.CustomerIndexRepository
	processor       provider.PaymentProcessor
	reconciler      *Reconciler
	metrics         Metrics
	logger          *zap.Logger
	appURL          string
	configurationID string
}

// NewPortalService creates a new portal service. configurationID may be empty.
func NewPortalService(
	store repository.MetadataStore,
	index repository.CustomerIndexRepository,
	processor provider.PaymentProcessor,
	reconciler *Reconciler,
	metrics Metrics,
	logger *zap.Logger,
	appURL, configurationID string,
) *PortalService {
	if metrics == nil {
		metrics = NopMetrics{}
	}
	return &PortalService{
		store:           store,
		index:           index,
		processor:       processor,
		reconciler:      reconciler,
		metrics:         metrics,
		logger:          logger,
		appURL:          strings.TrimRight(appURL, "/"),
		configurationID: configurationID,
	}
}

// Open creates a portal session for the user's customer. No processor call is
// made when the user has no customer.
func (s *PortalService) Open(ctx context.Context, userID, returnURL string) (*provider.PortalSession, error) {
	customerID, err := s.resolveCustomer(ctx, userID)
	if err != nil {
		return nil, err
	}
	if customerID == "" {
		s.metrics.PortalOpened("no_customer")
		return nil, domainErrors.ErrNoCustomerFound
	}

	if returnURL == "" {
		returnURL = s.appURL + PortalReturnPath
	}

	session, err := s.processor.CreatePortalSession(ctx, &provider.PortalSessionRequest{
		CustomerID:      customerID,
		ReturnURL:       returnURL,
		ConfigurationID: s.configurationID,
	})
	if err != nil {
		log := s.logger.With(zap.String("user_id", userID), zap.String("customer_id", customerID))
		if errors.Is(err, provider.ErrPortalNotConfigured) {
			s.metrics.PortalOpened("not_configured")
			message := err.Error()
			var provErr *provider.ProviderError
			if errors.As(err, &provErr) && provErr.Message != "" {
				message = provErr.Message
			}
			cfgErr := domainErrors.NewConfigurationError(message, err)
			apperrors.LogError(log, cfgErr, "Billing portal is not configured")
			return nil, cfgErr
		}

		s.metrics.PortalOpened(OutcomeFailed)
		apperrors.LogError(log, err, "Failed to create portal session")
		return nil, fmt.Errorf("%w: %v", domainErrors.ErrPortalCreationFailed, err)
	}

	s.metrics.PortalOpened("opened")
	return session, nil
}

// resolveCustomer walks the metadata fallback chain, then the customer index.
func (s *PortalService) resolveCustomer(ctx context.Context, userID string) (string, error) {
	doc, err := s.store.Get(ctx, userID)
	if err != nil {
		return "", err
	}

	if id := s.reconciler.ResolveCustomerID(doc); id != "" {
		return id, nil
	}
	if state, err := s.reconciler.Reconcile(doc); err == nil && state.CustomerID != "" {
		return state.CustomerID, nil
	}

	if s.index == nil {
		return "", nil
	}
	entry, err := s.index.GetByUserID(ctx, userID)
	if err != nil {
		s.logger.Warn("Customer index lookup failed", zap.String("user_id", userID), zap.Error(err))
		return "", nil
	}
	if entry == nil {
		return "", nil
	}
	return entry.ProviderCustomerID, nil
}
