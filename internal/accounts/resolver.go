package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrNoAccountContext means an event carried neither a usable token nor an email.
var ErrNoAccountContext = errors.New("no account context")

// Resolver maps webhook correlation data onto a local account.
type Resolver struct {
	repo        *Repository
	initializer *Initializer
}

// NewResolver wires the resolver to its repository and account initializer.
func NewResolver(repo *Repository, initializer *Initializer) *Resolver {
	return &Resolver{repo: repo, initializer: initializer}
}

// Resolve prefers the correlation token when it names an existing account.
// Otherwise the first non-blank email is upserted and initialized.
func (r *Resolver) Resolve(ctx context.Context, tx *gorm.DB, token string, emails ...string) (uuid.UUID, error) {
	repo := r.repo.WithTx(tx)

	if id, err := uuid.Parse(strings.TrimSpace(token)); err == nil && id != uuid.Nil {
		account, err := repo.FindByID(ctx, id)
		if err != nil {
			return uuid.Nil, fmt.Errorf("lookup account by token: %w", err)
		}
		if account != nil {
			return account.ID, nil
		}
	}

	email := FirstEmail(emails...)
	if email == "" {
		return uuid.Nil, ErrNoAccountContext
	}

	account, err := repo.UpsertByEmail(ctx, email)
	if err != nil {
		return uuid.Nil, fmt.Errorf("upsert account by email: %w", err)
	}
	if err := r.initializer.Initialize(ctx, tx, account.ID); err != nil {
		return uuid.Nil, err
	}
	return account.ID, nil
}

// NormalizeEmail trims and lower-cases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// FirstEmail returns the first candidate that is non-blank after normalization.
func FirstEmail(candidates ...string) string {
	for _, candidate := range candidates {
		if email := NormalizeEmail(candidate); email != "" {
			return email
		}
	}
	return ""
}
