package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/revofy/revofy-backend/pkg/enums"
)

// Subscription mirrors the billing provider's view of an account's plan. One row per account.
type Subscription struct {
	ID                     uuid.UUID                `gorm:"type:uuid;primaryKey"`
	AccountID              uuid.UUID                `gorm:"column:account_id;type:uuid;not null;uniqueIndex"`
	Status                 enums.SubscriptionStatus `gorm:"column:status;type:text;not null;default:'none'"`
	ExternalSubscriptionID *string                  `gorm:"column:external_subscription_id;uniqueIndex"`
	VariantID              *string                  `gorm:"column:variant_id"`
	CurrentPeriodEnd       *time.Time               `gorm:"column:current_period_end"`
	RenewsAt               *time.Time               `gorm:"column:renews_at"`
	EndsAt                 *time.Time               `gorm:"column:ends_at"`
	TrialEndsAt            *time.Time               `gorm:"column:trial_ends_at"`
	LastEventName          *string                  `gorm:"column:last_event_name"`
	CreatedAt              time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt              time.Time                `gorm:"column:updated_at;autoUpdateTime:false"`
}
