package quota

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/revofy/revofy-backend/pkg/db/dbtest"
	"github.com/revofy/revofy-backend/pkg/db/models"
	"github.com/revofy/revofy-backend/pkg/enums"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func newLedger(t *testing.T, start time.Time) (*Ledger, *gorm.DB, *fakeClock, uuid.UUID) {
	t.Helper()
	conn := dbtest.Open(t)
	clock := &fakeClock{now: start}
	accountID := dbtest.SeedAccount(t, conn, "ledger@example.com")
	require.NoError(t, Ensure(context.Background(), conn, accountID, start))
	return NewLedger(conn, WithClock(clock.Now)), conn, clock, accountID
}

func loadRow(t *testing.T, conn *gorm.DB, accountID uuid.UUID) models.UsageLedger {
	t.Helper()
	var row models.UsageLedger
	require.NoError(t, conn.Where("account_id = ?", accountID).Take(&row).Error)
	return row
}

func TestTryAdmitIncrementsBothCounters(t *testing.T) {
	ledger, conn, _, accountID := newLedger(t, time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC))

	res, err := ledger.TryAdmit(context.Background(), accountID, Limits{Daily: 5, Monthly: 50})
	require.NoError(t, err)
	assert.True(t, res.Admitted)
	assert.Equal(t, int64(1), res.DailyUsed)
	assert.Equal(t, int64(1), res.MonthlyUsed)

	row := loadRow(t, conn, accountID)
	assert.Equal(t, int64(1), row.DailyCount)
	assert.Equal(t, int64(1), row.MonthlyCount)
}

func TestTryAdmitRejectsAtDailyLimit(t *testing.T) {
	ledger, conn, _, accountID := newLedger(t, time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC))
	ctx := context.Background()
	limits := Limits{Daily: 2, Monthly: 50}

	for i := 0; i < 2; i++ {
		res, err := ledger.TryAdmit(ctx, accountID, limits)
		require.NoError(t, err)
		require.True(t, res.Admitted)
	}

	res, err := ledger.TryAdmit(ctx, accountID, limits)
	require.NoError(t, err)
	assert.False(t, res.Admitted)
	assert.Equal(t, enums.RejectReasonDailyLimitReached, res.Reason)
	assert.Equal(t, int64(2), res.DailyUsed)

	row := loadRow(t, conn, accountID)
	assert.Equal(t, int64(2), row.DailyCount, "rejection must not mutate counters")
	assert.Equal(t, int64(2), row.MonthlyCount)
}

func TestTryAdmitRejectsAtMonthlyLimitAcrossDays(t *testing.T) {
	start := time.Date(2026, 3, 10, 23, 0, 0, 0, time.UTC)
	ledger, _, clock, accountID := newLedger(t, start)
	ctx := context.Background()
	limits := Limits{Daily: 2, Monthly: 3}

	for i := 0; i < 2; i++ {
		res, err := ledger.TryAdmit(ctx, accountID, limits)
		require.NoError(t, err)
		require.True(t, res.Admitted)
	}

	clock.Set(start.Add(2 * time.Hour))
	res, err := ledger.TryAdmit(ctx, accountID, limits)
	require.NoError(t, err)
	require.True(t, res.Admitted)
	assert.Equal(t, int64(1), res.DailyUsed)
	assert.Equal(t, int64(3), res.MonthlyUsed)

	res, err = ledger.TryAdmit(ctx, accountID, limits)
	require.NoError(t, err)
	assert.False(t, res.Admitted)
	assert.Equal(t, enums.RejectReasonMonthlyLimitReached, res.Reason)
}

func TestTryAdmitReportsDailyFirstWhenBothExhausted(t *testing.T) {
	ledger, _, _, accountID := newLedger(t, time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))
	ctx := context.Background()
	limits := Limits{Daily: 1, Monthly: 1}

	res, err := ledger.TryAdmit(ctx, accountID, limits)
	require.NoError(t, err)
	require.True(t, res.Admitted)

	res, err = ledger.TryAdmit(ctx, accountID, limits)
	require.NoError(t, err)
	assert.False(t, res.Admitted)
	assert.Equal(t, enums.RejectReasonDailyLimitReached, res.Reason)
}

func TestDailyRolloverHappensOncePerBoundary(t *testing.T) {
	start := time.Date(2026, 3, 10, 23, 59, 0, 0, time.UTC)
	ledger, conn, clock, accountID := newLedger(t, start)
	ctx := context.Background()
	limits := Limits{Daily: 100, Monthly: 1000}

	for i := 0; i < 3; i++ {
		_, err := ledger.TryAdmit(ctx, accountID, limits)
		require.NoError(t, err)
	}

	clock.Set(time.Date(2026, 3, 11, 0, 0, 1, 0, time.UTC))
	for i := 0; i < 4; i++ {
		res, err := ledger.TryAdmit(ctx, accountID, limits)
		require.NoError(t, err)
		require.True(t, res.Admitted)
		assert.Equal(t, int64(i+1), res.DailyUsed, "daily counter resets exactly once")
	}

	row := loadRow(t, conn, accountID)
	assert.Equal(t, int64(4), row.DailyCount)
	assert.Equal(t, int64(7), row.MonthlyCount)
	assert.True(t, row.DailyWindowStart.Equal(time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC)))
}

func TestMonthlyRolloverAtMonthBoundary(t *testing.T) {
	start := time.Date(2026, 3, 31, 22, 0, 0, 0, time.UTC)
	ledger, conn, clock, accountID := newLedger(t, start)
	ctx := context.Background()
	limits := Limits{Daily: 10, Monthly: 2}

	for i := 0; i < 2; i++ {
		_, err := ledger.TryAdmit(ctx, accountID, limits)
		require.NoError(t, err)
	}
	res, err := ledger.TryAdmit(ctx, accountID, limits)
	require.NoError(t, err)
	require.False(t, res.Admitted)

	clock.Set(time.Date(2026, 4, 1, 0, 30, 0, 0, time.UTC))
	res, err = ledger.TryAdmit(ctx, accountID, limits)
	require.NoError(t, err)
	assert.True(t, res.Admitted)
	assert.Equal(t, int64(1), res.MonthlyUsed)

	row := loadRow(t, conn, accountID)
	assert.True(t, row.MonthlyWindowStart.Equal(time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)))
}

func TestBoundaryUsesUTCRegardlessOfCallerZone(t *testing.T) {
	zone := time.FixedZone("UTC-5", -5*3600)
	// 20:00 local on March 10 is already March 11 in UTC.
	start := time.Date(2026, 3, 10, 20, 0, 0, 0, zone)
	ledger, conn, _, accountID := newLedger(t, start)

	_, err := ledger.TryAdmit(context.Background(), accountID, Limits{Daily: 5, Monthly: 5})
	require.NoError(t, err)

	row := loadRow(t, conn, accountID)
	assert.True(t, row.DailyWindowStart.Equal(time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC)))
}

func TestConcurrentAdmitsNeverExceedLimit(t *testing.T) {
	ledger, conn, _, accountID := newLedger(t, time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))
	const (
		workers = 25
		limit   = 10
	)

	var admitted atomic.Int64
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := ledger.TryAdmit(context.Background(), accountID, Limits{Daily: limit, Monthly: 1000})
			if err != nil {
				errs <- err
				return
			}
			if res.Admitted {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	assert.Equal(t, int64(limit), admitted.Load())
	row := loadRow(t, conn, accountID)
	assert.Equal(t, int64(limit), row.DailyCount)
}

func TestTryAdmitCreatesMissingRow(t *testing.T) {
	conn := dbtest.Open(t)
	accountID := dbtest.SeedAccount(t, conn, "late@example.com")
	ledger := NewLedger(conn, WithClock(func() time.Time { return time.Date(2026, 5, 2, 8, 0, 0, 0, time.UTC) }))

	res, err := ledger.TryAdmit(context.Background(), accountID, Limits{Daily: 3, Monthly: 3})
	require.NoError(t, err)
	assert.True(t, res.Admitted)
	assert.Equal(t, int64(1), res.DailyUsed)
}

func TestTryAdmitValidatesInput(t *testing.T) {
	ledger, _, _, accountID := newLedger(t, time.Now())

	_, err := ledger.TryAdmit(context.Background(), uuid.Nil, Limits{Daily: 1, Monthly: 1})
	assert.Error(t, err)

	_, err = ledger.TryAdmit(context.Background(), accountID, Limits{Daily: 0, Monthly: 1})
	assert.Error(t, err)
}

func TestRecordIgnoresLimitsAndUsageReadsEffectiveCounts(t *testing.T) {
	start := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	ledger, _, clock, accountID := newLedger(t, start)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := ledger.Record(ctx, accountID)
		require.NoError(t, err)
	}

	usage, err := ledger.Usage(ctx, accountID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), usage.DailyUsed)
	assert.Equal(t, int64(5), usage.MonthlyUsed)

	clock.Set(start.Add(24 * time.Hour))
	usage, err = ledger.Usage(ctx, accountID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), usage.DailyUsed, "expired daily window reads as zero before rollover")
	assert.Equal(t, int64(5), usage.MonthlyUsed)
}

func TestUsageForUnknownAccountIsZero(t *testing.T) {
	conn := dbtest.Open(t)
	usage, err := NewLedger(conn).Usage(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Zero(t, usage.DailyUsed)
	assert.Zero(t, usage.MonthlyUsed)
}

func TestResetMonthlyIsIdempotent(t *testing.T) {
	ledger, conn, _, accountID := newLedger(t, time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))
	ctx := context.Background()
	_, err := ledger.Record(ctx, accountID)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		require.NoError(t, ResetMonthly(ctx, conn, accountID, time.Now()))
	}
	row := loadRow(t, conn, accountID)
	assert.Equal(t, int64(0), row.MonthlyCount)
	assert.Equal(t, int64(1), row.DailyCount)
}

func TestWindowStarts(t *testing.T) {
	at := time.Date(2026, 12, 31, 23, 59, 59, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC), DayStart(at))
	assert.Equal(t, time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC), MonthStart(at))
}
