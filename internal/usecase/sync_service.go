package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/richstorm00/saas-starter/internal/domain/entity"
	domainErrors "github.com/richstorm00/saas-starter/internal/domain/errors"
	"github.com/richstorm00/saas-starter/internal/domain/provider"
	"github.com/richstorm00/saas-starter/internal/domain/repository"
	apperrors "github.com/richstorm00/saas-starter/pkg/errors"
	"go.uber.org/zap"
)

// VerifiedPrice is the price part of a verified checkout.
type VerifiedPrice struct {
	ID         string `json:"id"`
	Nickname   string `json:"nickname"`
	UnitAmount int64  `json:"unit_amount"`
	Currency   string `json:"currency"`
}

// VerifiedSubscription is the subscription part of a verified checkout.
type VerifiedSubscription struct {
	ID                 string         `json:"id"`
	Status             string         `json:"status"`
	CurrentPeriodStart int64          `json:"current_period_start"`
	CurrentPeriodEnd   int64          `json:"current_period_end"`
	Price              *VerifiedPrice `json:"price,omitempty"`
}

// VerifiedCustomer is the customer part of a verified checkout.
type VerifiedCustomer struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
}

// VerifiedSession is returned after a checkout verification sync.
type VerifiedSession struct {
	Success      bool                  `json:"success"`
	Subscription *VerifiedSubscription `json:"subscription"`
	Customer     *VerifiedCustomer     `json:"customer"`
}

// SyncRequest asks for a subscription to be copied into the caller's metadata.
type SyncRequest struct {
	SubscriptionID string `json:"subscriptionId" validate:"required"`
	CustomerID     string `json:"customerId,omitempty"`
}

// SyncResult is returned after a manual metadata sync.
type SyncResult struct {
	Success      bool                   `json:"success"`
	Subscription map[string]interface{} `json:"subscription"`
}

// SyncService writes processor state into metadata on the client's request,
// ahead of or instead of the webhook.
type SyncService struct {
	store     repository.MetadataStore
	index     repository.CustomerIndexRepository
	locator   *UserLocator
	processor provider.PaymentProcessor
	namer     *PlanNamer
	notifier  ChangeNotifier
	logger    *zap.Logger
	now       func() time.Time
}

// NewSyncService creates a new sync service
func NewSyncService(
	store repository.MetadataStore,
	index repository.CustomerIndexRepository,
	locator *UserLocator,
	processor provider.PaymentProcessor,
	notifier ChangeNotifier,
	logger *zap.Logger,
) *SyncService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &SyncService{
		store:     store,
		index:     index,
		locator:   locator,
		processor: processor,
		namer:     NewPlanNamer(processor, logger),
		notifier:  notifier,
		logger:    logger,
		now:       time.Now,
	}
}

// VerifySession checks a completed checkout owned by userID and writes its
// subscription to metadata. Metadata write failures are logged only; the
// webhook repairs them.
func (s *SyncService) VerifySession(ctx context.Context, userID, sessionID string) (*VerifiedSession, error) {
	session, err := s.processor.GetCheckoutSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, provider.ErrResourceMissing) {
			return nil, domainErrors.ErrSessionNotFound
		}
		return nil, domainErrors.NewProcessorError("Failed to verify session", "get_checkout_session", err)
	}

	if owner := session.Metadata["userId"]; owner == "" || owner != userID {
		s.logger.Warn("Checkout session owner mismatch",
			zap.String("user_id", userID),
			zap.String("session_id", sessionID),
			zap.String("session_user_id", owner))
		return nil, domainErrors.ErrSessionUserMismatch
	}

	sub := session.Subscription
	if sub == nil && session.SubscriptionID != "" {
		if sub, err = s.processor.GetSubscription(ctx, session.SubscriptionID); err != nil {
			return nil, domainErrors.NewProcessorError("Failed to verify session", "get_subscription", err)
		}
	}
	if sub == nil {
		return nil, domainErrors.ErrNoSubscriptionFound
	}
	if sub.Price == nil {
		return nil, apperrors.NewAppError(apperrors.ErrNotFound, "Price information not found", nil)
	}

	customerID := session.CustomerID
	if customerID == "" {
		customerID = sub.CustomerID
	}

	plan := s.namer.PlanName(ctx, sub.Price)
	verified := s.now().UTC()
	record := &entity.SubscriptionRecord{
		Plan:               plan,
		Status:             entity.SubscriptionStatus(sub.Status),
		CurrentPeriodStart: sub.CurrentPeriodStart,
		CurrentPeriodEnd:   sub.CurrentPeriodEnd,
		CancelAtPeriodEnd:  sub.CancelAtPeriodEnd,
		PriceID:            sub.Price.ID,
		SubscriptionID:     sub.ID,
		CustomerID:         customerID,
		VerifiedAt:         &verified,
	}

	s.writeRecord(ctx, userID, record, nil, "verify_session")

	nickname := sub.Price.Nickname
	if nickname == "" {
		nickname = plan
	}
	return &VerifiedSession{
		Success: true,
		Subscription: &VerifiedSubscription{
			ID:                 sub.ID,
			Status:             sub.Status,
			CurrentPeriodStart: sub.CurrentPeriodStart,
			CurrentPeriodEnd:   sub.CurrentPeriodEnd,
			Price: &VerifiedPrice{
				ID:         sub.Price.ID,
				Nickname:   nickname,
				UnitAmount: sub.Price.UnitAmount,
				Currency:   sub.Price.Currency,
			},
		},
		Customer: &VerifiedCustomer{
			ID:    customerID,
			Email: session.CustomerEmail,
		},
	}, nil
}

// SyncSubscription copies a subscription into the caller's metadata. A
// subscription whose customer belongs to another user is refused, and so is
// any sync whose customer owner cannot be determined.
func (s *SyncService) SyncSubscription(ctx context.Context, userID string, req SyncRequest) (*SyncResult, error) {
	sub, err := s.processor.GetSubscription(ctx, req.SubscriptionID)
	if err != nil {
		if errors.Is(err, provider.ErrResourceMissing) {
			return nil, domainErrors.ErrSubscriptionNotFound
		}
		return nil, domainErrors.NewProcessorError("Failed to update subscription metadata", "get_subscription", err)
	}

	customerID := req.CustomerID
	if customerID == "" {
		customerID = sub.CustomerID
	}
	if customerID != sub.CustomerID && sub.CustomerID != "" {
		return nil, domainErrors.ErrSubscriptionUserMismatch
	}

	if err := s.checkOwner(ctx, userID, customerID); err != nil {
		return nil, err
	}

	plan := entity.DefaultPlanName
	if sub.Price != nil {
		plan = strings.ToLower(s.namer.PlanName(ctx, sub.Price))
	}
	updated := s.now().UTC()
	record := &entity.SubscriptionRecord{
		Plan:               plan,
		Status:             entity.SubscriptionStatus(sub.Status),
		CurrentPeriodStart: sub.CurrentPeriodStart,
		CurrentPeriodEnd:   sub.CurrentPeriodEnd,
		CancelAtPeriodEnd:  sub.CancelAtPeriodEnd,
		SubscriptionID:     sub.ID,
		CustomerID:         customerID,
		UpdatedAt:          &updated,
	}

	extra := map[string]interface{}{}
	if sub.Price != nil {
		record.PriceID = sub.Price.ID
		interval := sub.Price.Interval
		if interval == "" {
			interval = "month"
		}
		extra["productId"] = sub.Price.ProductID
		extra["interval"] = interval
		extra["amount"] = MinorToMajor(sub.Price.UnitAmount, sub.Price.Currency).InexactFloat64()
		extra["currency"] = sub.Price.Currency
	}

	stored, err := s.writeRecord(ctx, userID, record, extra, "update_metadata")
	if err != nil {
		return nil, domainErrors.NewProcessorError("Failed to update subscription metadata", "update_metadata", err)
	}

	return &SyncResult{Success: true, Subscription: stored}, nil
}

// checkOwner resolves the customer's current owner through the index and,
// on a miss, a metadata scan. Only an unowned customer or one owned by
// userID passes.
func (s *SyncService) checkOwner(ctx context.Context, userID, customerID string) error {
	if customerID == "" {
		return nil
	}

	owner, err := s.locator.FindByCustomerID(ctx, customerID)
	switch {
	case errors.Is(err, domainErrors.ErrUserNotFound):
		return nil
	case err != nil:
		apperrors.LogError(s.logger, err, "Customer owner lookup failed",
			zap.String("user_id", userID),
			zap.String("customer_id", customerID))
		return domainErrors.NewProcessorError("Failed to update subscription metadata", "find_customer_owner", err)
	case owner.UserID != userID:
		s.logger.Warn("Refusing to sync a subscription owned by another user",
			zap.String("user_id", userID),
			zap.String("owner_user_id", owner.UserID),
			zap.String("customer_id", customerID))
		return domainErrors.ErrSubscriptionUserMismatch
	}
	return nil
}

// writeRecord stores the record with optional extra keys, indexes the
// customer and announces the change.
func (s *SyncService) writeRecord(
	ctx context.Context,
	userID string,
	record *entity.SubscriptionRecord,
	extra map[string]interface{},
	source string,
) (map[string]interface{}, error) {
	log := s.logger.With(zap.String("user_id", userID), zap.String("customer_id", record.CustomerID))

	stored := record.ToMap()
	for k, v := range extra {
		stored[k] = v
	}

	if record.CustomerID != "" {
		if err := s.index.Upsert(ctx, record.CustomerID, userID, entity.IndexSourceSync); err != nil {
			log.Warn("Failed to update customer index", zap.Error(err))
		}
	}

	private := entity.Partition{entity.KeySubscription: stored}
	if record.CustomerID != "" {
		private[entity.KeyStripeCustomerID] = record.CustomerID
	}
	patch := entity.MetadataPatch{
		Private: private,
		Public:  entity.Partition{entity.KeySubscription: record.PublicProjection()},
	}
	if _, err := s.store.Merge(ctx, userID, patch); err != nil {
		apperrors.LogError(log, err, "Failed to write subscription metadata", zap.String("source", source))
		return stored, err
	}

	if err := s.notifier.SubscriptionChanged(ctx, SubscriptionChanged{
		UserID:     userID,
		CustomerID: record.CustomerID,
		Status:     string(record.Status),
		Plan:       record.Plan,
		Source:     source,
		OccurredAt: s.now().UTC(),
	}); err != nil {
		log.Warn("Failed to publish subscription change", zap.Error(err))
	}

	log.Info("Subscription metadata synchronised",
		zap.String("source", source),
		zap.String("subscription_id", record.SubscriptionID),
		zap.String("status", string(record.Status)))
	return stored, nil
}
