package subscriptions

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/revofy/revofy-backend/internal/quota"
	"github.com/revofy/revofy-backend/pkg/db/models"
	"github.com/revofy/revofy-backend/pkg/enums"
	pkgerrors "github.com/revofy/revofy-backend/pkg/errors"
)

// Change is the subscription state carried by one provider event.
type Change struct {
	Event       enums.BillingEvent
	Status      enums.SubscriptionStatus
	ExternalID  string
	VariantID   string
	RenewsAt    *time.Time
	EndsAt      *time.Time
	TrialEndsAt *time.Time
}

// CurrentPeriodEnd is the end date when the plan stops, else the next renewal.
func (c Change) CurrentPeriodEnd() *time.Time {
	if c.EndsAt != nil {
		return c.EndsAt
	}
	return c.RenewsAt
}

// Service owns every mutation of subscription rows.
type Service struct {
	now func() time.Time
}

// NewService returns a Service stamping updates with now (time.Now when nil).
func NewService(now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{now: now}
}

// Apply merges change into the subscription store using last-write-wins and
// returns the account that owns the affected row. A row already carrying the
// provider id wins over accountID. A paid renewal also zeroes the owner's
// monthly usage in the same transaction.
func (s *Service) Apply(ctx context.Context, tx *gorm.DB, accountID uuid.UUID, change Change) (uuid.UUID, error) {
	if accountID == uuid.Nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "account id is required")
	}
	if !change.Status.IsValid() {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid subscription status %q", change.Status))
	}

	now := s.now().UTC()
	externalID := strings.TrimSpace(change.ExternalID)
	values := map[string]any{
		"status":             change.Status,
		"variant_id":         optionalString(change.VariantID),
		"current_period_end": change.CurrentPeriodEnd(),
		"renews_at":          change.RenewsAt,
		"ends_at":            change.EndsAt,
		"trial_ends_at":      change.TrialEndsAt,
		"last_event_name":    optionalString(change.Event.String()),
		"updated_at":         now,
	}

	owner := uuid.Nil
	if externalID != "" {
		res := tx.WithContext(ctx).
			Model(&models.Subscription{}).
			Where("external_subscription_id = ?", externalID).
			Updates(values)
		if res.Error != nil {
			return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "update subscription by external id")
		}
		if res.RowsAffected > 0 {
			existing, err := NewRepository(tx).FindByExternalID(ctx, externalID)
			if err != nil {
				return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load subscription by external id")
			}
			if existing != nil {
				owner = existing.AccountID
			}
		}
	}

	if owner == uuid.Nil {
		if err := s.upsertByAccount(ctx, tx, accountID, externalID, change, now); err != nil {
			return uuid.Nil, err
		}
		owner = accountID
	}

	if ResetsMonthlyUsage(change.Event) {
		if err := quota.ResetMonthly(ctx, tx, owner, now); err != nil {
			return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reset monthly usage")
		}
	}
	return owner, nil
}

func (s *Service) upsertByAccount(ctx context.Context, tx *gorm.DB, accountID uuid.UUID, externalID string, change Change, now time.Time) error {
	row := models.Subscription{
		ID:               uuid.New(),
		AccountID:        accountID,
		Status:           change.Status,
		VariantID:        optionalString(change.VariantID),
		CurrentPeriodEnd: change.CurrentPeriodEnd(),
		RenewsAt:         change.RenewsAt,
		EndsAt:           change.EndsAt,
		TrialEndsAt:      change.TrialEndsAt,
		LastEventName:    optionalString(change.Event.String()),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	columns := []string{
		"status",
		"variant_id",
		"current_period_end",
		"renews_at",
		"ends_at",
		"trial_ends_at",
		"last_event_name",
		"updated_at",
	}
	if externalID != "" {
		row.ExternalSubscriptionID = &externalID
		columns = append(columns, "external_subscription_id")
	}

	err := tx.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "account_id"}},
			DoUpdates: clause.AssignmentColumns(columns),
		}).
		Create(&row).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "upsert subscription by account")
	}
	return nil
}

func optionalString(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}
