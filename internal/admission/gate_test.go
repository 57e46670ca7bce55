package admission

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/revofy/revofy-backend/internal/accounts"
	"github.com/revofy/revofy-backend/internal/quota"
	"github.com/revofy/revofy-backend/internal/subscriptions"
	"github.com/revofy/revofy-backend/pkg/db/dbtest"
	"github.com/revofy/revofy-backend/pkg/db/models"
	"github.com/revofy/revofy-backend/pkg/enums"
)

var gateNow = time.Date(2026, 7, 14, 15, 0, 0, 0, time.UTC)

func setup(t *testing.T, freeTier bool, limits quota.Limits) (*Gate, *gorm.DB, uuid.UUID) {
	t.Helper()
	conn := dbtest.Open(t)
	clock := func() time.Time { return gateNow }
	accountID := dbtest.SeedAccount(t, conn, "gate@example.com")
	require.NoError(t, accounts.NewInitializer(clock).Initialize(context.Background(), conn, accountID))

	gate, err := NewGate(Params{
		Subscriptions:   subscriptions.NewRepository(conn),
		Ledger:          quota.NewLedger(conn, quota.WithClock(clock)),
		Limits:          limits,
		FreeTierEnabled: freeTier,
	})
	require.NoError(t, err)
	return gate, conn, accountID
}

func setStatus(t *testing.T, conn *gorm.DB, accountID uuid.UUID, status enums.SubscriptionStatus) {
	t.Helper()
	require.NoError(t, conn.Model(&models.Subscription{}).Where("account_id = ?", accountID).Update("status", status).Error)
}

func setCounts(t *testing.T, conn *gorm.DB, accountID uuid.UUID, daily, monthly int64) {
	t.Helper()
	require.NoError(t, conn.Model(&models.UsageLedger{}).
		Where("account_id = ?", accountID).
		Updates(map[string]any{"daily_count": daily, "monthly_count": monthly}).Error)
}

func TestAdmitFreeTierAtDailyLimit(t *testing.T) {
	gate, conn, accountID := setup(t, true, quota.Limits{Daily: 100, Monthly: 1000})
	setCounts(t, conn, accountID, 100, 100)

	decision, err := gate.Admit(context.Background(), accountID)
	require.NoError(t, err)
	assert.False(t, decision.Admitted)
	assert.Equal(t, enums.RejectReasonDailyLimitReached, decision.Reason)
	assert.Equal(t, enums.SubscriptionStatusNone, decision.Status)

	var ledger models.UsageLedger
	require.NoError(t, conn.Where("account_id = ?", accountID).Take(&ledger).Error)
	assert.Equal(t, int64(100), ledger.DailyCount)
}

func TestAdmitFreeTierSequentialBurstStopsAtDailyLimit(t *testing.T) {
	gate, conn, accountID := setup(t, true, quota.Limits{Daily: 100, Monthly: 1000})
	ctx := context.Background()

	admitted := 0
	rejected := map[enums.RejectReason]int{}
	for i := 0; i < 1000; i++ {
		decision, err := gate.Admit(ctx, accountID)
		require.NoError(t, err)
		if decision.Admitted {
			admitted++
			continue
		}
		rejected[decision.Reason]++
	}

	assert.Equal(t, 100, admitted)
	assert.Equal(t, map[enums.RejectReason]int{enums.RejectReasonDailyLimitReached: 900}, rejected)

	var ledger models.UsageLedger
	require.NoError(t, conn.Where("account_id = ?", accountID).Take(&ledger).Error)
	assert.Equal(t, int64(100), ledger.DailyCount)
	assert.Equal(t, int64(100), ledger.MonthlyCount)
}

func TestAdmitFreeTierWithinBudget(t *testing.T) {
	gate, conn, accountID := setup(t, true, quota.Limits{Daily: 100, Monthly: 1000})
	setCounts(t, conn, accountID, 99, 500)

	decision, err := gate.Admit(context.Background(), accountID)
	require.NoError(t, err)
	assert.True(t, decision.Admitted)
	assert.Equal(t, int64(100), decision.DailyUsed)
	assert.Equal(t, int64(501), decision.MonthlyUsed)
}

func TestAdmitEntitledAccountBypassesLimits(t *testing.T) {
	for _, status := range []enums.SubscriptionStatus{enums.SubscriptionStatusActive, enums.SubscriptionStatusOnTrial} {
		t.Run(status.String(), func(t *testing.T) {
			gate, conn, accountID := setup(t, true, quota.Limits{Daily: 5, Monthly: 5})
			setStatus(t, conn, accountID, status)
			setCounts(t, conn, accountID, 5, 5)

			decision, err := gate.Admit(context.Background(), accountID)
			require.NoError(t, err)
			assert.True(t, decision.Admitted)
			assert.Equal(t, int64(6), decision.DailyUsed)
		})
	}
}

func TestAdmitInactiveWithoutFreeTier(t *testing.T) {
	gate, conn, accountID := setup(t, false, quota.Limits{Daily: 100, Monthly: 1000})
	setStatus(t, conn, accountID, enums.SubscriptionStatusPastDue)

	decision, err := gate.Admit(context.Background(), accountID)
	require.NoError(t, err)
	assert.False(t, decision.Admitted)
	assert.Equal(t, enums.RejectReasonSubscriptionInactive, decision.Reason)

	var ledger models.UsageLedger
	require.NoError(t, conn.Where("account_id = ?", accountID).Take(&ledger).Error)
	assert.Zero(t, ledger.DailyCount, "ledger untouched when rejected for entitlement")
}

func TestAdmitCancelledSubscriptionFallsBackToFreeTier(t *testing.T) {
	gate, conn, accountID := setup(t, true, quota.Limits{Daily: 1, Monthly: 1})
	setStatus(t, conn, accountID, enums.SubscriptionStatusExpired)

	first, err := gate.Admit(context.Background(), accountID)
	require.NoError(t, err)
	assert.True(t, first.Admitted)

	second, err := gate.Admit(context.Background(), accountID)
	require.NoError(t, err)
	assert.False(t, second.Admitted)
	assert.Equal(t, enums.RejectReasonDailyLimitReached, second.Reason)
}

type failingReader struct{}

func (failingReader) StatusFor(context.Context, uuid.UUID) (enums.SubscriptionStatus, error) {
	return "", errors.New("db down")
}

func TestAdmitPropagatesStorageErrors(t *testing.T) {
	conn := dbtest.Open(t)
	gate, err := NewGate(Params{
		Subscriptions:   failingReader{},
		Ledger:          quota.NewLedger(conn),
		Limits:          quota.Limits{Daily: 1, Monthly: 1},
		FreeTierEnabled: true,
	})
	require.NoError(t, err)

	_, err = gate.Admit(context.Background(), uuid.New())
	assert.ErrorContains(t, err, "db down")
}

func TestNewGateValidates(t *testing.T) {
	conn := dbtest.Open(t)
	_, err := NewGate(Params{Ledger: quota.NewLedger(conn), Limits: quota.Limits{Daily: 1, Monthly: 1}})
	assert.Error(t, err)

	_, err = NewGate(Params{Subscriptions: failingReader{}, Ledger: quota.NewLedger(conn)})
	assert.Error(t, err)
}
