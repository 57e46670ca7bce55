package webhooks

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/revofy/revofy-backend/api/responses"
	"github.com/revofy/revofy-backend/internal/webhooks/lemonsqueezy"
	pkgerrors "github.com/revofy/revofy-backend/pkg/errors"
	"github.com/revofy/revofy-backend/pkg/logger"
	"github.com/revofy/revofy-backend/pkg/metrics"
)

const maxWebhookBodyBytes = 1 << 20

type LemonSqueezyService interface {
	HandleEvent(ctx context.Context, event *lemonsqueezy.Event) (lemonsqueezy.Outcome, error)
}

type ReplayGuard interface {
	Seen(ctx context.Context, key string) (bool, error)
	Mark(ctx context.Context, key string) error
}

type webhookResponse struct {
	Status lemonsqueezy.Outcome `json:"status"`
}

// LemonSqueezyWebhook authenticates a delivery against the raw body before any
// parsing, then hands the event to the reconciliation service. Only storage
// failures produce a non-2xx response so the provider retries them. A delivery
// is marked as seen only after it has been handled.
func LemonSqueezyWebhook(svc LemonSqueezyService, secret string, guard ReplayGuard, m *metrics.BillingMetrics, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if strings.TrimSpace(secret) == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeMisconfigured, "webhook secret not configured"))
			return
		}
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}

		payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "payload too large"))
				return
			}
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
			return
		}

		if !lemonsqueezy.VerifySignature(payload, r.Header.Get(lemonsqueezy.SignatureHeader), secret) {
			if logg != nil {
				ctx = logg.WithFields(ctx, map[string]any{
					"security":      "webhook_signature_rejected",
					"payload_bytes": len(payload),
				})
			}
			m.IncWebhook("unverified", "invalid_signature")
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeSignature, "invalid signature"))
			return
		}

		event, err := lemonsqueezy.ParseEvent(payload)
		if err != nil {
			// Signed by the provider, so a retry carries the same bytes.
			if logg != nil {
				logg.Error(logg.WithField(ctx, "payload_bytes", len(payload)), "lemonsqueezy.invalid_payload", err)
			}
			m.IncWebhook("unparsed", string(lemonsqueezy.OutcomeInvalid))
			responses.WriteSuccess(w, webhookResponse{Status: lemonsqueezy.OutcomeInvalid})
			return
		}
		eventName := event.Name().String()

		key := lemonsqueezy.PayloadKey(payload)
		if guard != nil {
			seen, err := guard.Seen(ctx, key)
			if err != nil {
				// Guard failures fall through; the merge tolerates redelivery.
				if logg != nil {
					logg.Warn(logg.WithField(ctx, "replay_error", err.Error()), "lemonsqueezy.replay_guard_unavailable")
				}
			} else if seen {
				if logg != nil {
					logg.Debug(logg.WithField(ctx, "event", eventName), "lemonsqueezy.duplicate_delivery")
				}
				m.IncWebhook(eventName, string(lemonsqueezy.OutcomeDuplicate))
				responses.WriteSuccess(w, webhookResponse{Status: lemonsqueezy.OutcomeDuplicate})
				return
			}
		}

		outcome, err := svc.HandleEvent(ctx, event)
		if err != nil {
			m.IncWebhook(eventName, "error")
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if guard != nil {
			if err := guard.Mark(context.WithoutCancel(ctx), key); err != nil && logg != nil {
				logg.Warn(logg.WithField(ctx, "replay_error", err.Error()), "lemonsqueezy.replay_mark_failed")
			}
		}

		m.IncWebhook(eventName, string(outcome))
		if logg != nil {
			logg.Info(logg.WithFields(ctx, map[string]any{"event": eventName, "outcome": string(outcome)}), "lemonsqueezy.event_handled")
		}
		responses.WriteSuccess(w, webhookResponse{Status: outcome})
	}
}
