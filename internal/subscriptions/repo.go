package subscriptions

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/revofy/revofy-backend/pkg/db/models"
	"github.com/revofy/revofy-backend/pkg/enums"
)

// Repository reads subscription rows.
type Repository struct {
	db *gorm.DB
}

// NewRepository returns a subscription repository bound to the provided database.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// FindByAccount returns nil when the account has no subscription row.
func (r *Repository) FindByAccount(ctx context.Context, accountID uuid.UUID) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.WithContext(ctx).Where("account_id = ?", accountID).Take(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// FindByExternalID returns nil when no row carries the provider id.
func (r *Repository) FindByExternalID(ctx context.Context, externalID string) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.WithContext(ctx).Where("external_subscription_id = ?", externalID).Take(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// StatusFor returns the account's status, reading a missing row as none.
func (r *Repository) StatusFor(ctx context.Context, accountID uuid.UUID) (enums.SubscriptionStatus, error) {
	sub, err := r.FindByAccount(ctx, accountID)
	if err != nil {
		return "", err
	}
	if sub == nil {
		return enums.SubscriptionStatusNone, nil
	}
	return sub.Status, nil
}
