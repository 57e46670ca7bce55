package admission

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/revofy/revofy-backend/internal/quota"
	"github.com/revofy/revofy-backend/pkg/enums"
	"github.com/revofy/revofy-backend/pkg/logger"
	"github.com/revofy/revofy-backend/pkg/metrics"
)

type statusReader interface {
	StatusFor(ctx context.Context, accountID uuid.UUID) (enums.SubscriptionStatus, error)
}

type ledger interface {
	TryAdmit(ctx context.Context, accountID uuid.UUID, limits quota.Limits) (quota.Result, error)
	Record(ctx context.Context, accountID uuid.UUID) (quota.Usage, error)
}

// Decision is the admission verdict for one metered request.
type Decision struct {
	Admitted    bool
	Reason      enums.RejectReason
	Status      enums.SubscriptionStatus
	DailyUsed   int64
	MonthlyUsed int64
}

type Params struct {
	Subscriptions   statusReader
	Ledger          ledger
	Limits          quota.Limits
	FreeTierEnabled bool
	Metrics         *metrics.BillingMetrics
	Logger          *logger.Logger
}

// Gate decides whether a metered request may proceed. Quota is charged before
// the caller does any downstream work and is never refunded.
type Gate struct {
	subs     statusReader
	ledger   ledger
	limits   quota.Limits
	freeTier bool
	metrics  *metrics.BillingMetrics
	logg     *logger.Logger
}

func NewGate(params Params) (*Gate, error) {
	if params.Subscriptions == nil {
		return nil, errors.New("subscription reader required")
	}
	if params.Ledger == nil {
		return nil, errors.New("quota ledger required")
	}
	if err := params.Limits.Validate(); err != nil {
		return nil, err
	}
	return &Gate{
		subs:     params.Subscriptions,
		ledger:   params.Ledger,
		limits:   params.Limits,
		freeTier: params.FreeTierEnabled,
		metrics:  params.Metrics,
		logg:     params.Logger,
	}, nil
}

// Admit reads the account's entitlement and charges the ledger accordingly.
// Entitled accounts are always admitted; their usage is recorded for reporting.
func (g *Gate) Admit(ctx context.Context, accountID uuid.UUID) (Decision, error) {
	if accountID == uuid.Nil {
		return Decision{}, errors.New("account id is required")
	}

	status, err := g.subs.StatusFor(ctx, accountID)
	if err != nil {
		return Decision{}, fmt.Errorf("read subscription status: %w", err)
	}

	var decision Decision
	switch {
	case status.IsEntitled():
		usage, err := g.ledger.Record(ctx, accountID)
		if err != nil {
			return Decision{}, err
		}
		decision = Decision{Admitted: true, DailyUsed: usage.DailyUsed, MonthlyUsed: usage.MonthlyUsed}
	case g.freeTier:
		res, err := g.ledger.TryAdmit(ctx, accountID, g.limits)
		if err != nil {
			return Decision{}, err
		}
		decision = Decision{Admitted: res.Admitted, Reason: res.Reason, DailyUsed: res.DailyUsed, MonthlyUsed: res.MonthlyUsed}
	default:
		decision = Decision{Reason: enums.RejectReasonSubscriptionInactive}
	}
	decision.Status = status

	g.metrics.IncAdmission(decision.Admitted, decision.Reason.String())
	if !decision.Admitted && g.logg != nil {
		logCtx := g.logg.WithFields(ctx, map[string]any{
			"account_id":          accountID.String(),
			"reason":              decision.Reason.String(),
			"subscription_status": status.String(),
		})
		g.logg.Info(logCtx, "admission.rejected")
	}
	return decision, nil
}

// Limits returns the configured free-tier budget.
func (g *Gate) Limits() quota.Limits {
	return g.limits
}
