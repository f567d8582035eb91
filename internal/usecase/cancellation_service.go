package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/richstorm00/saas-starter/internal/domain/entity"
	domainErrors "github.com/richstorm00/saas-starter/internal/domain/errors"
	"github.com/richstorm00/saas-starter/internal/domain/provider"
	"github.com/richstorm00/saas-starter/internal/domain/repository"
	apperrors "github.com/richstorm00/saas-starter/pkg/errors"
	"go.uber.org/zap"
)

const (
	msgCancelled        = "Subscription cancelled successfully and metadata removed"
	msgAlreadyCancelled = "Subscription already cancelled"
)

// CancellationResult is returned to the client after a cancellation.
// Subscription is always null.
type CancellationResult struct {
	Success         bool        `json:"success"`
	Message         string      `json:"message"`
	Subscription    interface{} `json:"subscription"`
	HasSubscription bool        `json:"hasSubscription"`
	MetadataCleared bool        `json:"metadataCleared"`
	CustomerID      string      `json:"customerId,omitempty"`
}

// CancellationService cancels subscriptions and clears them from metadata
// while keeping the customer id.
type CancellationService struct {
	store      repository.MetadataStore
	processor  provider.PaymentProcessor
	reconciler *Reconciler
	notifier   ChangeNotifier
	metrics    Metrics
	logger     *zap.Logger
}

// NewCancellationService creates a new cancellation service
func NewCancellationService(
	store repository.MetadataStore,
	processor provider.PaymentProcessor,
	reconciler *Reconciler,
	notifier ChangeNotifier,
	metrics Metrics,
	logger *zap.Logger,
) *CancellationService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if metrics == nil {
		metrics = NopMetrics{}
	}
	return &CancellationService{
		store:      store,
		processor:  processor,
		reconciler: reconciler,
		notifier:   notifier,
		metrics:    metrics,
		logger:     logger,
	}
}

// Cancel cancels the user's subscription. Calling it again after success
// re-applies the metadata clear and succeeds.
func (s *CancellationService) Cancel(ctx context.Context, userID string) (*CancellationResult, error) {
	log := s.logger.With(zap.String("user_id", userID))

	doc, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	subscriptionID, customerID, alreadyCancelled, err := s.resolveTarget(doc)
	if err != nil {
		s.metrics.CancellationCompleted("not_found")
		return nil, err
	}

	if !alreadyCancelled {
		if err := s.processor.CancelSubscription(ctx, subscriptionID); err != nil {
			if !errors.Is(err, provider.ErrResourceMissing) {
				s.metrics.CancellationCompleted(OutcomeFailed)
				procErr := domainErrors.NewProcessorError("Failed to cancel subscription", "cancel_subscription", err)
				apperrors.LogError(log, procErr, "Subscription cancellation failed",
					zap.String("subscription_id", subscriptionID),
					zap.String("customer_id", customerID))
				return nil, procErr
			}
			log.Info("Subscription already gone at the processor, clearing metadata",
				zap.String("subscription_id", subscriptionID))
		}
	}

	patch := clearSubscriptionPatch(customerID)
	if _, err := s.store.Merge(ctx, userID, patch); err != nil {
		s.metrics.CancellationCompleted(OutcomeFailed)
		apperrors.LogError(log, err, "Failed to clear subscription metadata", zap.String("customer_id", customerID))
		return nil, fmt.Errorf("%w: %v", domainErrors.ErrMetadataUpdateFailed, err)
	}

	cleared := false
	if after, err := s.store.Get(ctx, userID); err != nil {
		log.Warn("Failed to read back metadata after cancellation", zap.Error(err))
	} else {
		cleared = !s.reconciler.HasCandidate(after)
	}

	message := msgCancelled
	outcome := "cancelled"
	if alreadyCancelled {
		message = msgAlreadyCancelled
		outcome = "already_cancelled"
	}
	s.metrics.CancellationCompleted(outcome)

	if !alreadyCancelled {
		if err := s.notifier.SubscriptionChanged(ctx, SubscriptionChanged{
			UserID:     userID,
			CustomerID: customerID,
			Status:     string(entity.StatusCanceled),
			Source:     "cancel_subscription",
		}); err != nil {
			log.Warn("Failed to publish subscription change", zap.Error(err))
		}
	}

	log.Info("Subscription cancelled",
		zap.String("subscription_id", subscriptionID),
		zap.String("customer_id", customerID),
		zap.Bool("already_cancelled", alreadyCancelled),
		zap.Bool("metadata_cleared", cleared))

	return &CancellationResult{
		Success:         true,
		Message:         message,
		Subscription:    nil,
		HasSubscription: false,
		MetadataCleared: cleared,
		CustomerID:      customerID,
	}, nil
}

// resolveTarget picks the subscription to cancel. A stored subscription that
// fails migration can still be cancelled when its id is readable.
func (s *CancellationService) resolveTarget(doc *entity.MetadataDocument) (subscriptionID, customerID string, alreadyCancelled bool, err error) {
	customerID = s.reconciler.ResolveCustomerID(doc)

	state, err := s.reconciler.Reconcile(doc)
	if err != nil {
		subscriptionID = s.reconciler.SubscriptionIDOf(doc)
		if subscriptionID == "" {
			return "", "", false, domainErrors.ErrNoSubscriptionFound
		}
		s.logger.Warn("Cancelling a subscription with invalid stored data",
			zap.String("user_id", doc.UserID),
			zap.String("subscription_id", subscriptionID),
			zap.Error(err))
		return subscriptionID, customerID, false, nil
	}

	switch state.Kind {
	case entity.StateCustomerOnly:
		return "", state.CustomerID, true, nil
	case entity.StateSubscribed:
		if state.Record.SubscriptionID == "" {
			return "", "", false, domainErrors.ErrNoSubscriptionFound
		}
		if state.CustomerID != "" {
			customerID = state.CustomerID
		}
		return state.Record.SubscriptionID, customerID, false, nil
	default:
		return "", "", false, domainErrors.ErrNoSubscriptionFound
	}
}

// clearSubscriptionPatch nulls every subscription location in both partitions
// and pins the customer id where the fallback chain can find it.
func clearSubscriptionPatch(customerID string) entity.MetadataPatch {
	private := entity.Partition{}
	public := entity.Partition{}
	for _, key := range entity.SubscriptionKeys {
		private[key] = nil
		public[key] = nil
	}
	if customerID != "" {
		private[entity.KeyStripeCustomerID] = customerID
		public[entity.KeyStripeCustomerID] = customerID
	}
	return entity.MetadataPatch{Private: private, Public: public}
}
