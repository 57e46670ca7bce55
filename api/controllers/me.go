package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/revofy/revofy-backend/api/middleware"
	"github.com/revofy/revofy-backend/api/responses"
	"github.com/revofy/revofy-backend/internal/quota"
	"github.com/revofy/revofy-backend/pkg/db/models"
	"github.com/revofy/revofy-backend/pkg/enums"
	pkgerrors "github.com/revofy/revofy-backend/pkg/errors"
	"github.com/revofy/revofy-backend/pkg/logger"
)

type usageReader interface {
	Usage(ctx context.Context, accountID uuid.UUID) (quota.Usage, error)
}

type subscriptionReader interface {
	FindByAccount(ctx context.Context, accountID uuid.UUID) (*models.Subscription, error)
}

type subscriptionSummary struct {
	Status   enums.SubscriptionStatus `json:"status"`
	RenewsAt *time.Time               `json:"renews_at"`
	EndsAt   *time.Time               `json:"ends_at"`
}

type usageSummary struct {
	DailyUsed        int64 `json:"daily_used"`
	DailyRemaining   int64 `json:"daily_remaining"`
	MonthlyUsed      int64 `json:"monthly_used"`
	MonthlyRemaining int64 `json:"monthly_remaining"`
}

type meResponse struct {
	AccountID    uuid.UUID           `json:"account_id"`
	Email        string              `json:"email"`
	Subscription subscriptionSummary `json:"subscription"`
	Usage        usageSummary        `json:"usage"`
}

// Me returns the caller's subscription summary and effective usage.
func Me(subs subscriptionReader, ledger usageReader, limits quota.Limits, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		accountID := middleware.AccountIDFromContext(ctx)
		if accountID == uuid.Nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing account"))
			return
		}

		sub, err := subs.FindByAccount(ctx, accountID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load subscription"))
			return
		}
		usage, err := ledger.Usage(ctx, accountID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load usage"))
			return
		}

		summary := subscriptionSummary{Status: enums.SubscriptionStatusNone}
		if sub != nil {
			summary = subscriptionSummary{Status: sub.Status, RenewsAt: sub.RenewsAt, EndsAt: sub.EndsAt}
		}

		responses.WriteSuccess(w, meResponse{
			AccountID:    accountID,
			Email:        middleware.EmailFromContext(ctx),
			Subscription: summary,
			Usage: usageSummary{
				DailyUsed:        usage.DailyUsed,
				DailyRemaining:   remaining(limits.Daily, usage.DailyUsed),
				MonthlyUsed:      usage.MonthlyUsed,
				MonthlyRemaining: remaining(limits.Monthly, usage.MonthlyUsed),
			},
		})
	}
}

func remaining(limit, used int64) int64 {
	if used >= limit {
		return 0
	}
	return limit - used
}
