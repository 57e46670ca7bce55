package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/revofy/revofy-backend/pkg/db/models"
	"github.com/revofy/revofy-backend/pkg/enums"
)

const maxAdmitAttempts = 3

// Limits is the budget applied to one admission attempt.
type Limits struct {
	Daily   int64
	Monthly int64
}

// Validate rejects budgets that cannot admit anything.
func (l Limits) Validate() error {
	if l.Daily <= 0 || l.Monthly <= 0 {
		return fmt.Errorf("quota limits must be positive (daily=%d monthly=%d)", l.Daily, l.Monthly)
	}
	return nil
}

// Result is the outcome of TryAdmit. Counts are the post-increment values when
// admitted and the effective values that caused the rejection otherwise.
type Result struct {
	Admitted    bool
	Reason      enums.RejectReason
	DailyUsed   int64
	MonthlyUsed int64
}

// Usage is a read-only snapshot of effective counts.
type Usage struct {
	DailyUsed          int64
	MonthlyUsed        int64
	DailyWindowStart   time.Time
	MonthlyWindowStart time.Time
}

// Option customises a Ledger.
type Option func(*Ledger)

// WithClock overrides the time source used to place requests into windows.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	}
}

// Ledger enforces usage budgets against the usage_ledgers table. Every counter
// mutation is a single conditional UPDATE so concurrent callers cannot overshoot.
type Ledger struct {
	db  *gorm.DB
	now func() time.Time
}

// NewLedger binds the ledger to a GORM connection.
func NewLedger(db *gorm.DB, opts ...Option) *Ledger {
	l := &Ledger{db: db, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

type counters struct {
	DailyCount   int64 `gorm:"column:daily_count"`
	MonthlyCount int64 `gorm:"column:monthly_count"`
}

const rolloverAssignments = `
	daily_count = (CASE WHEN daily_window_start < @day THEN 0 ELSE daily_count END) + 1,
	daily_window_start = CASE WHEN daily_window_start < @day THEN @day ELSE daily_window_start END,
	monthly_count = (CASE WHEN monthly_window_start < @month THEN 0 ELSE monthly_count END) + 1,
	monthly_window_start = CASE WHEN monthly_window_start < @month THEN @month ELSE monthly_window_start END,
	updated_at = @now`

const admitSQL = `UPDATE usage_ledgers SET` + rolloverAssignments + `
WHERE account_id = @account
	AND (CASE WHEN daily_window_start < @day THEN 0 ELSE daily_count END) < @daily_limit
	AND (CASE WHEN monthly_window_start < @month THEN 0 ELSE monthly_count END) < @monthly_limit
RETURNING daily_count, monthly_count`

const recordSQL = `UPDATE usage_ledgers SET` + rolloverAssignments + `
WHERE account_id = @account
RETURNING daily_count, monthly_count`

// TryAdmit atomically rolls expired windows forward and consumes one unit of
// both budgets, or reports which budget is exhausted. The daily budget is
// reported first when both are exhausted.
func (l *Ledger) TryAdmit(ctx context.Context, accountID uuid.UUID, limits Limits) (Result, error) {
	if accountID == uuid.Nil {
		return Result{}, errors.New("account id is required")
	}
	if err := limits.Validate(); err != nil {
		return Result{}, err
	}

	for attempt := 0; attempt < maxAdmitAttempts; attempt++ {
		now := l.now().UTC()
		params := windowParams(accountID, now)
		params["daily_limit"] = limits.Daily
		params["monthly_limit"] = limits.Monthly

		admitted, ok, err := l.increment(ctx, admitSQL, params)
		if err != nil {
			return Result{}, err
		}
		if ok {
			return Result{Admitted: true, DailyUsed: admitted.DailyCount, MonthlyUsed: admitted.MonthlyCount}, nil
		}

		usage, found, err := l.read(ctx, accountID, now)
		if err != nil {
			return Result{}, err
		}
		if !found {
			if err := l.ensure(ctx, accountID, now); err != nil {
				return Result{}, err
			}
			continue
		}
		if usage.DailyUsed >= limits.Daily {
			return Result{Reason: enums.RejectReasonDailyLimitReached, DailyUsed: usage.DailyUsed, MonthlyUsed: usage.MonthlyUsed}, nil
		}
		if usage.MonthlyUsed >= limits.Monthly {
			return Result{Reason: enums.RejectReasonMonthlyLimitReached, DailyUsed: usage.DailyUsed, MonthlyUsed: usage.MonthlyUsed}, nil
		}
		// A concurrent writer moved the window between the update and the read.
	}
	return Result{}, fmt.Errorf("quota ledger for account %s did not settle after %d attempts", accountID, maxAdmitAttempts)
}

// Record consumes one unit without enforcing limits. It keeps the counters of
// accounts exempt from enforcement accurate.
func (l *Ledger) Record(ctx context.Context, accountID uuid.UUID) (Usage, error) {
	if accountID == uuid.Nil {
		return Usage{}, errors.New("account id is required")
	}
	for attempt := 0; attempt < 2; attempt++ {
		now := l.now().UTC()
		recorded, ok, err := l.increment(ctx, recordSQL, windowParams(accountID, now))
		if err != nil {
			return Usage{}, err
		}
		if ok {
			return Usage{
				DailyUsed:          recorded.DailyCount,
				MonthlyUsed:        recorded.MonthlyCount,
				DailyWindowStart:   DayStart(now),
				MonthlyWindowStart: MonthStart(now),
			}, nil
		}
		if err := l.ensure(ctx, accountID, now); err != nil {
			return Usage{}, err
		}
	}
	return Usage{}, fmt.Errorf("usage ledger row for account %s is missing", accountID)
}

// Usage returns the effective counts for the current windows. Missing rows read as zero.
func (l *Ledger) Usage(ctx context.Context, accountID uuid.UUID) (Usage, error) {
	now := l.now().UTC()
	usage, found, err := l.read(ctx, accountID, now)
	if err != nil {
		return Usage{}, err
	}
	if !found {
		return Usage{DailyWindowStart: DayStart(now), MonthlyWindowStart: MonthStart(now)}, nil
	}
	return usage, nil
}

// ResetMonthly zeroes the monthly counter. Repeating it is harmless.
func ResetMonthly(ctx context.Context, tx *gorm.DB, accountID uuid.UUID, at time.Time) error {
	return tx.WithContext(ctx).
		Model(&models.UsageLedger{}).
		Where("account_id = ?", accountID).
		Updates(map[string]any{
			"monthly_count": 0,
			"updated_at":    at.UTC(),
		}).Error
}

// Ensure creates the zero-valued ledger row for an account if it does not exist.
func Ensure(ctx context.Context, tx *gorm.DB, accountID uuid.UUID, at time.Time) error {
	at = at.UTC()
	row := models.UsageLedger{
		AccountID:          accountID,
		DailyWindowStart:   DayStart(at),
		MonthlyWindowStart: MonthStart(at),
		UpdatedAt:          at,
	}
	return tx.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "account_id"}}, DoNothing: true}).
		Create(&row).Error
}

func (l *Ledger) ensure(ctx context.Context, accountID uuid.UUID, now time.Time) error {
	if err := Ensure(ctx, l.db, accountID, now); err != nil {
		return fmt.Errorf("create usage ledger row: %w", err)
	}
	return nil
}

func (l *Ledger) increment(ctx context.Context, query string, params map[string]any) (counters, bool, error) {
	var rows []counters
	if err := l.db.WithContext(ctx).Raw(query, params).Scan(&rows).Error; err != nil {
		return counters{}, false, fmt.Errorf("update usage ledger: %w", err)
	}
	if len(rows) == 0 {
		return counters{}, false, nil
	}
	return rows[0], true, nil
}

func (l *Ledger) read(ctx context.Context, accountID uuid.UUID, now time.Time) (Usage, bool, error) {
	var row models.UsageLedger
	err := l.db.WithContext(ctx).Where("account_id = ?", accountID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Usage{}, false, nil
	}
	if err != nil {
		return Usage{}, false, fmt.Errorf("read usage ledger: %w", err)
	}
	day, month := DayStart(now), MonthStart(now)
	return Usage{
		DailyUsed:          effective(row.DailyCount, row.DailyWindowStart, day),
		MonthlyUsed:        effective(row.MonthlyCount, row.MonthlyWindowStart, month),
		DailyWindowStart:   day,
		MonthlyWindowStart: month,
	}, true, nil
}

func windowParams(accountID uuid.UUID, now time.Time) map[string]any {
	return map[string]any{
		"account": accountID,
		"day":     DayStart(now),
		"month":   MonthStart(now),
		"now":     now,
	}
}
