package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/richstorm00/saas-starter/internal/domain/entity"
	domainErrors "github.com/richstorm00/saas-starter/internal/domain/errors"
	"github.com/richstorm00/saas-starter/internal/domain/provider"
	"github.com/richstorm00/saas-starter/internal/domain/repository"
	apperrors "github.com/richstorm00/saas-starter/pkg/errors"
	"go.uber.org/zap"
)

// Reasons an event is acknowledged without a write.
var (
	errUnhandledEventType = errors.New("unhandled event type")
	errNoSubscription     = errors.New("user has no subscription record")
	errStaleEvent         = errors.New("event is older than the stored subscription")
	errSubscriptionEnded  = errors.New("stored subscription is already canceled")
)

// IngestResult describes what happened to one webhook delivery.
type IngestResult struct {
	EventID    string
	EventType  string
	Outcome    string
	UserID     string
	CustomerID string
}

// EventIngestor verifies webhook deliveries and reconciles them into the
// metadata store.
type EventIngestor struct {
	processor  provider.PaymentProcessor
	store      repository.MetadataStore
	index      repository.CustomerIndexRepository
	events     repository.WebhookEventRepository
	locator    *UserLocator
	reconciler *Reconciler
	catalog    *PlanNamer
	notifier   ChangeNotifier
	metrics    Metrics
	logger     *zap.Logger
}

// NewEventIngestor creates a new event ingestor
func NewEventIngestor(
	processor provider.PaymentProcessor,
	store repository.MetadataStore,
	index repository.CustomerIndexRepository,
	events repository.WebhookEventRepository,
	locator *UserLocator,
	reconciler *Reconciler,
	notifier ChangeNotifier,
	metrics Metrics,
	logger *zap.Logger,
) *EventIngestor {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if metrics == nil {
		metrics = NopMetrics{}
	}
	return &EventIngestor{
		processor:  processor,
		store:      store,
		index:      index,
		events:     events,
		locator:    locator,
		reconciler: reconciler,
		catalog:    NewPlanNamer(processor, logger),
		notifier:   notifier,
		metrics:    metrics,
		logger:     logger,
	}
}

// Ingest verifies and applies one webhook delivery. It returns
// ErrInvalidSignature before any side effect when verification fails.
// Events that cannot be attributed to a user are dropped with a nil error.
func (i *EventIngestor) Ingest(ctx context.Context, payload []byte, signature string) (*IngestResult, error) {
	start := time.Now()

	event, err := i.processor.VerifyEvent(payload, signature)
	if err != nil {
		if !errors.Is(err, provider.ErrSignatureVerification) {
			i.metrics.WebhookProcessed("unknown", OutcomeFailed, time.Since(start))
			apperrors.LogError(i.logger, err, "Webhook event could not be decoded")
			return nil, fmt.Errorf("failed to decode webhook event: %w", err)
		}
		i.metrics.WebhookProcessed("unknown", OutcomeRejected, time.Since(start))
		apperrors.LogWarn(i.logger, err, "Webhook signature verification failed")
		return nil, fmt.Errorf("%w: %v", domainErrors.ErrInvalidSignature, err)
	}

	result := &IngestResult{EventID: event.ID, EventType: string(event.Type), CustomerID: event.CustomerID()}
	log := i.logger.With(
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)),
	)

	if i.alreadyProcessed(ctx, event, log) {
		result.Outcome = OutcomeDuplicate
		i.metrics.WebhookProcessed(result.EventType, result.Outcome, time.Since(start))
		log.Info("Webhook event already processed")
		return result, nil
	}

	userID, err := i.dispatch(ctx, event)
	result.UserID = userID

	switch {
	case err == nil:
		result.Outcome = OutcomeCompleted
		i.markCompleted(ctx, event, userID, log)
		log.Info("Webhook event processed",
			zap.String("user_id", userID),
			zap.String("customer_id", result.CustomerID))

	case errors.Is(err, errUnhandledEventType):
		result.Outcome = OutcomeIgnored
		i.markIgnored(ctx, event, err, log)
		log.Info("Unhandled webhook event type")

	case errors.Is(err, errNoSubscription), errors.Is(err, errStaleEvent), errors.Is(err, errSubscriptionEnded):
		result.Outcome = OutcomeIgnored
		i.markIgnored(ctx, event, err, log)
		log.Info("Webhook event skipped",
			zap.String("user_id", userID),
			zap.String("customer_id", result.CustomerID),
			zap.String("reason", err.Error()))

	case errors.Is(err, domainErrors.ErrMissingRequiredMetadata), errors.Is(err, domainErrors.ErrUserNotFound):
		result.Outcome = OutcomeDropped
		i.markIgnored(ctx, event, err, log)
		apperrors.LogWarn(log, err, "Webhook event dropped",
			zap.String("user_id", userID),
			zap.String("customer_id", result.CustomerID))

	default:
		result.Outcome = OutcomeFailed
		if markErr := i.events.MarkFailed(ctx, event.ID, err); markErr != nil {
			log.Warn("Failed to record webhook failure", zap.Error(markErr))
		}
		apperrors.LogError(log, err, "Webhook processing failed",
			zap.String("user_id", userID),
			zap.String("customer_id", result.CustomerID))
		i.metrics.WebhookProcessed(result.EventType, result.Outcome, time.Since(start))
		return result, fmt.Errorf("failed to process %s event %s: %w", event.Type, event.ID, err)
	}

	i.metrics.WebhookProcessed(result.EventType, result.Outcome, time.Since(start))
	return result, nil
}

func (i *EventIngestor) dispatch(ctx context.Context, event *provider.Event) (string, error) {
	switch event.Type {
	case provider.EventCheckoutSessionCompleted:
		return i.handleCheckoutCompleted(ctx, event)
	case provider.EventSubscriptionUpdated:
		return i.handleSubscriptionUpdated(ctx, event)
	case provider.EventSubscriptionDeleted:
		return i.handleSubscriptionDeleted(ctx, event)
	case provider.EventInvoicePaymentSucceeded:
		return i.handleInvoice(ctx, event, entity.PaymentSucceeded)
	case provider.EventInvoicePaymentFailed:
		return i.handleInvoice(ctx, event, entity.PaymentFailed)
	default:
		return "", errUnhandledEventType
	}
}

func (i *EventIngestor) handleCheckoutCompleted(ctx context.Context, event *provider.Event) (string, error) {
	session := event.CheckoutSession
	if session == nil {
		return "", fmt.Errorf("checkout event %s carries no session", event.ID)
	}

	userID := session.Metadata["userId"]
	priceID := session.Metadata["priceId"]
	if userID == "" || priceID == "" {
		return userID, domainErrors.ErrMissingRequiredMetadata
	}
	if session.SubscriptionID == "" {
		return userID, fmt.Errorf("%w: session %s has no subscription", domainErrors.ErrMissingRequiredMetadata, session.ID)
	}

	sub, err := i.processor.GetSubscription(ctx, session.SubscriptionID)
	if err != nil {
		return userID, domainErrors.NewProcessorError("Failed to retrieve subscription", "get_subscription", err)
	}

	customerID := session.CustomerID
	if customerID == "" {
		customerID = sub.CustomerID
	}

	doc, err := i.store.Get(ctx, userID)
	if err != nil {
		return userID, err
	}

	created := event.Created.UTC()
	record := &entity.SubscriptionRecord{
		Plan:               i.catalog.PlanName(ctx, sub.Price),
		Status:             entity.SubscriptionStatus(sub.Status),
		CurrentPeriodStart: sub.CurrentPeriodStart,
		CurrentPeriodEnd:   sub.CurrentPeriodEnd,
		CancelAtPeriodEnd:  sub.CancelAtPeriodEnd,
		PriceID:            priceID,
		SubscriptionID:     sub.ID,
		CustomerID:         customerID,
		CreatedAt:          &created,
		UpdatedAt:          &created,
	}

	// Invoice events may arrive before checkout completion; keep what they recorded.
	if state, err := i.reconciler.Reconcile(doc); err == nil && state.HasSubscription() &&
		state.Record.SubscriptionID == sub.ID {
		record.LastPaymentStatus = state.Record.LastPaymentStatus
		record.LastPaymentDate = state.Record.LastPaymentDate
		if state.Record.CreatedAt != nil {
			record.CreatedAt = state.Record.CreatedAt
		}
	}

	i.upsertIndex(ctx, customerID, userID, entity.IndexSourceCheckout)

	patch := entity.MetadataPatch{
		Private: entity.Partition{
			entity.KeySubscription:     record.ToMap(),
			entity.KeyStripeCustomerID: customerID,
		},
		Public: entity.Partition{
			entity.KeySubscription: record.PublicProjection(),
		},
	}
	if _, err := i.store.Merge(ctx, userID, patch); err != nil {
		return userID, err
	}

	i.notify(ctx, event, userID, record)
	return userID, nil
}

func (i *EventIngestor) handleSubscriptionUpdated(ctx context.Context, event *provider.Event) (string, error) {
	sub := event.Subscription
	if sub == nil {
		return "", fmt.Errorf("subscription event %s carries no subscription", event.ID)
	}

	doc, base, err := i.loadForCustomer(ctx, sub.CustomerID, sub.ID)
	if err != nil {
		return userIDOf(doc), err
	}

	if existing, err := entity.MigrateRecord(base); err == nil {
		// A deletion is final for its subscription.
		if existing.Status == entity.StatusCanceled && existing.CanceledAt != nil {
			return doc.UserID, errSubscriptionEnded
		}
		if existing.UpdatedAt != nil && existing.UpdatedAt.After(event.Created) {
			return doc.UserID, errStaleEvent
		}
	}

	updated := event.Created.UTC().Format(time.RFC3339)
	base[entity.FieldStatus] = sub.Status
	base[entity.FieldCurrentPeriodStart] = sub.CurrentPeriodStart
	base[entity.FieldCurrentPeriodEnd] = sub.CurrentPeriodEnd
	base[entity.FieldCancelAtPeriodEnd] = sub.CancelAtPeriodEnd
	base[entity.FieldPlan] = i.catalog.PlanName(ctx, sub.Price)
	if sub.Price != nil && sub.Price.ID != "" {
		base[entity.FieldPriceID] = sub.Price.ID
	}
	base[entity.FieldUpdatedAt] = updated

	return i.writeRecord(ctx, event, doc, base, sub.CustomerID, sub.ID)
}

func (i *EventIngestor) handleSubscriptionDeleted(ctx context.Context, event *provider.Event) (string, error) {
	sub := event.Subscription
	if sub == nil {
		return "", fmt.Errorf("subscription event %s carries no subscription", event.ID)
	}

	doc, base, err := i.loadForCustomer(ctx, sub.CustomerID, sub.ID)
	if err != nil {
		return userIDOf(doc), err
	}

	deleted := event.Created.UTC().Format(time.RFC3339)
	base[entity.FieldStatus] = string(entity.StatusCanceled)
	if _, ok := base[entity.FieldCanceledAt]; !ok || base[entity.FieldCanceledAt] == nil {
		base[entity.FieldCanceledAt] = deleted
	}
	base[entity.FieldUpdatedAt] = deleted

	return i.writeRecord(ctx, event, doc, base, sub.CustomerID, sub.ID)
}

func (i *EventIngestor) handleInvoice(ctx context.Context, event *provider.Event, status entity.PaymentStatus) (string, error) {
	invoice := event.Invoice
	if invoice == nil {
		return "", fmt.Errorf("invoice event %s carries no invoice", event.ID)
	}

	doc, base, err := i.loadForCustomer(ctx, invoice.CustomerID, invoice.SubscriptionID)
	if err != nil {
		return userIDOf(doc), err
	}

	base[entity.FieldLastPaymentStatus] = string(status)
	base[entity.FieldLastPaymentDate] = event.Created.UTC().Format(time.RFC3339)

	return i.writeRecord(ctx, event, doc, base, invoice.CustomerID, invoice.SubscriptionID)
}

// loadForCustomer finds the customer's user and returns a copy of the stored
// subscription to merge into. It refuses to resurrect a cleared subscription
// and skips events for a subscription other than the stored one.
func (i *EventIngestor) loadForCustomer(ctx context.Context, customerID, subscriptionID string) (*entity.MetadataDocument, map[string]interface{}, error) {
	doc, err := i.locator.FindByCustomerID(ctx, customerID)
	if err != nil {
		return nil, nil, err
	}

	base, ok := i.baseRecord(doc)
	if !ok {
		return doc, nil, errNoSubscription
	}

	stored := entity.LookupString(base, entity.SubscriptionIDKeys...)
	if stored != "" && subscriptionID != "" && stored != subscriptionID {
		return doc, nil, errStaleEvent
	}

	return doc, base, nil
}

// baseRecord returns a mutable copy of the stored subscription. The private
// record is used as-is; legacy shapes are migrated first when possible.
func (i *EventIngestor) baseRecord(doc *entity.MetadataDocument) (map[string]interface{}, bool) {
	if obj, ok := doc.Private.Object(entity.KeySubscription); ok {
		return cloneMap(obj), true
	}
	raw, ok := i.reconciler.Candidate(doc)
	if !ok {
		return nil, false
	}
	if record, err := entity.MigrateRecord(raw); err == nil {
		return record.ToMap(), true
	}
	return cloneMap(raw), true
}

func (i *EventIngestor) writeRecord(
	ctx context.Context,
	event *provider.Event,
	doc *entity.MetadataDocument,
	base map[string]interface{},
	customerID, subscriptionID string,
) (string, error) {
	if customerID != "" && entity.LookupString(base, entity.CustomerIDKeys...) == "" {
		base[entity.FieldCustomerID] = customerID
	}
	if subscriptionID != "" && entity.LookupString(base, entity.SubscriptionIDKeys...) == "" {
		base[entity.FieldSubscriptionID] = subscriptionID
	}
	base[entity.FieldSchemaVersion] = entity.RecordSchemaVersion

	patch := entity.MetadataPatch{
		Private: entity.Partition{entity.KeySubscription: base},
	}

	record, err := entity.MigrateRecord(base)
	if err == nil {
		patch.Public = entity.Partition{entity.KeySubscription: record.PublicProjection()}
	} else {
		i.logger.Warn("Stored subscription is not reconcilable, public projection left unchanged",
			zap.String("user_id", doc.UserID),
			zap.String("event_id", event.ID),
			zap.Error(err))
	}

	if _, err := i.store.Merge(ctx, doc.UserID, patch); err != nil {
		return doc.UserID, err
	}

	if record != nil {
		i.notify(ctx, event, doc.UserID, record)
	}
	return doc.UserID, nil
}

func (i *EventIngestor) upsertIndex(ctx context.Context, customerID, userID string, source entity.IndexSource) {
	if customerID == "" {
		return
	}
	if err := i.index.Upsert(ctx, customerID, userID, source); err != nil {
		i.logger.Warn("Failed to update customer index",
			zap.String("customer_id", customerID),
			zap.String("user_id", userID),
			zap.Error(err))
	}
}

func (i *EventIngestor) notify(ctx context.Context, event *provider.Event, userID string, record *entity.SubscriptionRecord) {
	msg := SubscriptionChanged{
		UserID:     userID,
		CustomerID: record.CustomerID,
		Status:     string(record.Status),
		Plan:       record.Plan,
		Source:     string(event.Type),
		EventID:    event.ID,
		OccurredAt: event.Created.UTC(),
	}
	if err := i.notifier.SubscriptionChanged(ctx, msg); err != nil {
		i.logger.Warn("Failed to publish subscription change",
			zap.String("user_id", userID),
			zap.String("event_id", event.ID),
			zap.Error(err))
	}
}

func (i *EventIngestor) alreadyProcessed(ctx context.Context, event *provider.Event, log *zap.Logger) bool {
	existing, err := i.events.Get(ctx, event.ID)
	if err != nil {
		log.Warn("Failed to read webhook event log", zap.Error(err))
	}
	if existing != nil && existing.Status.IsFinal() {
		return true
	}

	if existing == nil {
		if err := i.events.Record(ctx, event.ID, string(event.Type), event.Payload, event.Created); err != nil {
			log.Warn("Failed to record webhook event", zap.Error(err))
		}
	}
	if err := i.events.MarkProcessing(ctx, event.ID); err != nil {
		log.Warn("Failed to mark webhook event processing", zap.Error(err))
	}
	return false
}

func (i *EventIngestor) markCompleted(ctx context.Context, event *provider.Event, userID string, log *zap.Logger) {
	if err := i.events.MarkCompleted(ctx, event.ID, userID, event.CustomerID()); err != nil {
		log.Warn("Failed to mark webhook event completed", zap.Error(err))
	}
}

func (i *EventIngestor) markIgnored(ctx context.Context, event *provider.Event, reason error, log *zap.Logger) {
	if err := i.events.MarkIgnored(ctx, event.ID, reason.Error()); err != nil {
		log.Warn("Failed to mark webhook event ignored", zap.Error(err))
	}
}

func userIDOf(doc *entity.MetadataDocument) string {
	if doc == nil {
		return ""
	}
	return doc.UserID
}

func cloneMap(in map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
