package models

import (
	"time"

	"github.com/google/uuid"
)

// UsageLedger holds the per-account metered request counters. Window starts are UTC midnights.
type UsageLedger struct {
	AccountID          uuid.UUID `gorm:"column:account_id;type:uuid;primaryKey"`
	DailyCount         int64     `gorm:"column:daily_count;not null;default:0"`
	DailyWindowStart   time.Time `gorm:"column:daily_window_start;not null"`
	MonthlyCount       int64     `gorm:"column:monthly_count;not null;default:0"`
	MonthlyWindowStart time.Time `gorm:"column:monthly_window_start;not null"`
	UpdatedAt          time.Time `gorm:"column:updated_at;autoUpdateTime:false"`
}
