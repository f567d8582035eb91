package usecase

import (
	"context"
	"time"

	"github.com/richstorm00/saas-starter/internal/domain/entity"
	"github.com/richstorm00/saas-starter/internal/domain/repository"
	apperrors "github.com/richstorm00/saas-starter/pkg/errors"
	"go.uber.org/zap"
)

// PlanView is the current-plan read model. Optional fields are omitted when
// the user has no subscription.
type PlanView struct {
	Plan               *string `json:"plan"`
	Status             string  `json:"status"`
	CurrentPeriodEnd   *int64  `json:"current_period_end,omitempty"`
	CurrentPeriodStart *int64  `json:"current_period_start,omitempty"`
	CancelAtPeriodEnd  *bool   `json:"cancel_at_period_end,omitempty"`
	PriceID            *string `json:"price_id,omitempty"`
	SubscriptionID     *string `json:"subscriptionId,omitempty"`
	CustomerID         string  `json:"customerId,omitempty"`
	HasSubscription    bool    `json:"hasSubscription"`
	IsValid            *bool   `json:"isValid,omitempty"`
	LastPaymentStatus  *string `json:"lastPaymentStatus,omitempty"`
}

// PlanProjector answers current-plan reads from the metadata store.
type PlanProjector struct {
	store      repository.MetadataStore
	reconciler *Reconciler
	metrics    Metrics
	logger     *zap.Logger
	now        func() time.Time
}

// NewPlanProjector creates a new plan projector
func NewPlanProjector(
	store repository.MetadataStore,
	reconciler *Reconciler,
	metrics Metrics,
	logger *zap.Logger,
) *PlanProjector {
	if metrics == nil {
		metrics = NopMetrics{}
	}
	return &PlanProjector{
		store:      store,
		reconciler: reconciler,
		metrics:    metrics,
		logger:     logger,
		now:        time.Now,
	}
}

// CurrentPlan returns the user's plan view. Unreadable stored data is
// ErrInvalidSubscriptionData rather than a silent fallback.
func (p *PlanProjector) CurrentPlan(ctx context.Context, userID string) (*PlanView, error) {
	doc, err := p.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	state, err := p.reconciler.Reconcile(doc)
	if err != nil {
		p.metrics.Reconciled("invalid")
		apperrors.LogWarn(p.logger, err, "Stored subscription is invalid", zap.String("user_id", userID))
		return nil, err
	}
	p.metrics.Reconciled(state.Kind.String())

	return ProjectState(state, p.now()), nil
}

// ProjectState renders a reconciled state as a PlanView.
func ProjectState(state entity.SubscriptionState, now time.Time) *PlanView {
	if !state.HasSubscription() {
		return &PlanView{
			Plan:       nil,
			Status:     string(entity.StatusInactive),
			CustomerID: state.CustomerID,
		}
	}

	rec := state.Record
	valid := rec.IsValid(now)
	cancel := rec.CancelAtPeriodEnd
	end := rec.CurrentPeriodEnd
	view := &PlanView{
		Plan:              &rec.Plan,
		Status:            string(rec.Status),
		CurrentPeriodEnd:  &end,
		CancelAtPeriodEnd: &cancel,
		PriceID:           &rec.PriceID,
		SubscriptionID:    &rec.SubscriptionID,
		CustomerID:        rec.CustomerID,
		HasSubscription:   true,
		IsValid:           &valid,
	}
	if rec.CurrentPeriodStart != 0 {
		start := rec.CurrentPeriodStart
		view.CurrentPeriodStart = &start
	}
	if rec.LastPaymentStatus != "" {
		status := string(rec.LastPaymentStatus)
		view.LastPaymentStatus = &status
	}
	return view
}
