package controllers

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/revofy/revofy-backend/api/middleware"
	"github.com/revofy/revofy-backend/api/responses"
	pkgerrors "github.com/revofy/revofy-backend/pkg/errors"
	"github.com/revofy/revofy-backend/pkg/logger"
)

const (
	checkoutUserIDParam = "checkout[custom][user_id]"
	checkoutEmailParam  = "checkout[email]"
)

type checkoutResponse struct {
	URL string `json:"url"`
}

// Checkout returns the hosted checkout link carrying the caller's account id as
// the correlation token echoed back in webhook custom data.
func Checkout(checkoutURL string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		accountID := middleware.AccountIDFromContext(ctx)
		if accountID == uuid.Nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing account"))
			return
		}

		link, err := buildCheckoutURL(checkoutURL, accountID, middleware.EmailFromContext(ctx))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, checkoutResponse{URL: link})
	}
}

func buildCheckoutURL(base string, accountID uuid.UUID, email string) (string, error) {
	base = strings.TrimSpace(base)
	if base == "" {
		return "", pkgerrors.New(pkgerrors.CodeMisconfigured, "missing_checkout_url")
	}
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", pkgerrors.New(pkgerrors.CodeMisconfigured, "missing_checkout_url")
	}

	q := u.Query()
	q.Set(checkoutUserIDParam, accountID.String())
	if email != "" {
		q.Set(checkoutEmailParam, email)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
