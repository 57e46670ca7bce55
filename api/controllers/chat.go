package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/revofy/revofy-backend/api/middleware"
	"github.com/revofy/revofy-backend/api/responses"
	"github.com/revofy/revofy-backend/api/validators"
	"github.com/revofy/revofy-backend/internal/admission"
	"github.com/revofy/revofy-backend/internal/completions"
	"github.com/revofy/revofy-backend/pkg/enums"
	pkgerrors "github.com/revofy/revofy-backend/pkg/errors"
	"github.com/revofy/revofy-backend/pkg/logger"
	"github.com/revofy/revofy-backend/pkg/metrics"
)

type admitter interface {
	Admit(ctx context.Context, accountID uuid.UUID) (admission.Decision, error)
}

type completer interface {
	Complete(ctx context.Context, messages []completions.Message) (completions.Completion, error)
}

type chatRequest struct {
	Messages []completions.Message `json:"messages" validate:"required,min=1,max=100,dive"`
}

type chatResponse struct {
	Message completions.Message `json:"message"`
	Usage   completions.Usage   `json:"usage"`
	Model   string              `json:"model"`
}

// Chat admits the request against the caller's entitlement and quota before
// forwarding it to the completion provider. Admitted quota is not refunded
// when the provider fails.
func Chat(gate admitter, client completer, m *metrics.BillingMetrics, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		accountID := middleware.AccountIDFromContext(ctx)
		if accountID == uuid.Nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing account"))
			return
		}

		var body chatRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		decision, err := gate.Admit(ctx, accountID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "admission"))
			return
		}
		if !decision.Admitted {
			responses.WriteError(ctx, logg, w, rejection(decision))
			return
		}

		start := time.Now()
		completion, err := client.Complete(ctx, body.Messages)
		if err != nil {
			m.ObserveCompletion("error", time.Since(start))
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "completion failed"))
			return
		}
		m.ObserveCompletion("ok", time.Since(start))

		responses.WriteSuccess(w, chatResponse{
			Message: completion.Message,
			Usage:   completion.Usage,
			Model:   completion.Model,
		})
	}
}

func rejection(decision admission.Decision) *pkgerrors.Error {
	if decision.Reason == enums.RejectReasonSubscriptionInactive {
		return pkgerrors.New(pkgerrors.CodePayment, decision.Reason.String()).
			WithDetails(map[string]any{"status": decision.Status.String()})
	}
	return pkgerrors.New(pkgerrors.CodeQuota, decision.Reason.String()).
		WithDetails(map[string]any{
			"daily_used":   decision.DailyUsed,
			"monthly_used": decision.MonthlyUsed,
		})
}
