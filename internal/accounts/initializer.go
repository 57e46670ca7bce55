package accounts

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/revofy/revofy-backend/internal/quota"
	"github.com/revofy/revofy-backend/pkg/db/models"
	"github.com/revofy/revofy-backend/pkg/enums"
)

// Initializer provisions the per-account rows the billing core relies on.
type Initializer struct {
	now func() time.Time
}

// NewInitializer returns an Initializer stamping rows with now (time.Now when nil).
func NewInitializer(now func() time.Time) *Initializer {
	if now == nil {
		now = time.Now
	}
	return &Initializer{now: now}
}

// Initialize creates the zero-valued usage ledger and a subscription row with
// status none. Rows that already exist are left untouched.
func (i *Initializer) Initialize(ctx context.Context, tx *gorm.DB, accountID uuid.UUID) error {
	if accountID == uuid.Nil {
		return fmt.Errorf("account id is required")
	}
	at := i.now().UTC()

	if err := quota.Ensure(ctx, tx, accountID, at); err != nil {
		return fmt.Errorf("initialize usage ledger: %w", err)
	}

	sub := models.Subscription{
		ID:        uuid.New(),
		AccountID: accountID,
		Status:    enums.SubscriptionStatusNone,
		CreatedAt: at,
		UpdatedAt: at,
	}
	if err := tx.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "account_id"}}, DoNothing: true}).
		Create(&sub).Error; err != nil {
		return fmt.Errorf("initialize subscription: %w", err)
	}
	return nil
}
