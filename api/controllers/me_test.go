package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/revofy/revofy-backend/api/middleware"
	"github.com/revofy/revofy-backend/internal/quota"
	"github.com/revofy/revofy-backend/pkg/db/models"
	"github.com/revofy/revofy-backend/pkg/enums"
)

type stubUsage struct{ usage quota.Usage }

func (s stubUsage) Usage(context.Context, uuid.UUID) (quota.Usage, error) { return s.usage, nil }

type stubSubscriptions struct{ sub *models.Subscription }

func (s stubSubscriptions) FindByAccount(context.Context, uuid.UUID) (*models.Subscription, error) {
	return s.sub, nil
}

func serveMe(t *testing.T, subs subscriptionReader, usage usageReader) meResponse {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	req = req.WithContext(middleware.WithAccount(req.Context(), uuid.New(), "me@example.com"))
	rec := httptest.NewRecorder()

	Me(subs, usage, quota.Limits{Daily: 10, Monthly: 50}, nil).ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var envelope struct {
		Data meResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope.Data
}

func TestMeReportsRemainingBudget(t *testing.T) {
	renews := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	resp := serveMe(t,
		stubSubscriptions{sub: &models.Subscription{Status: enums.SubscriptionStatusActive, RenewsAt: &renews}},
		stubUsage{usage: quota.Usage{DailyUsed: 4, MonthlyUsed: 60}},
	)

	assert.Equal(t, "me@example.com", resp.Email)
	assert.Equal(t, enums.SubscriptionStatusActive, resp.Subscription.Status)
	require.NotNil(t, resp.Subscription.RenewsAt)
	assert.True(t, resp.Subscription.RenewsAt.Equal(renews))
	assert.Equal(t, int64(4), resp.Usage.DailyUsed)
	assert.Equal(t, int64(6), resp.Usage.DailyRemaining)
	assert.Equal(t, int64(60), resp.Usage.MonthlyUsed)
	assert.Equal(t, int64(0), resp.Usage.MonthlyRemaining)
}

func TestMeDefaultsMissingSubscriptionToNone(t *testing.T) {
	resp := serveMe(t, stubSubscriptions{}, stubUsage{})

	assert.Equal(t, enums.SubscriptionStatusNone, resp.Subscription.Status)
	assert.Equal(t, int64(10), resp.Usage.DailyRemaining)
	assert.Equal(t, int64(50), resp.Usage.MonthlyRemaining)
}
