package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/revofy/revofy-backend/internal/accounts"
	pkgAuth "github.com/revofy/revofy-backend/pkg/auth"
	"github.com/revofy/revofy-backend/pkg/config"
	"github.com/revofy/revofy-backend/pkg/db"
	"github.com/revofy/revofy-backend/pkg/db/models"
	pkgerrors "github.com/revofy/revofy-backend/pkg/errors"
	"github.com/revofy/revofy-backend/pkg/security"
)

const invalidCredentialsMessage = "invalid credentials"

// Service defines the behavior needed by the auth controller.
type Service interface {
	Signup(ctx context.Context, req SignupRequest) (*TokenResponse, error)
	Login(ctx context.Context, req LoginRequest) (*TokenResponse, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ServiceParams bundles the dependencies required to build an auth service.
type ServiceParams struct {
	TransactionRunner txRunner
	Accounts          *accounts.Repository
	Initializer       *accounts.Initializer
	JWTConfig         config.JWTConfig
	PasswordConfig    config.PasswordConfig
	Now               func() time.Time
}

type service struct {
	tx          txRunner
	accounts    *accounts.Repository
	initializer *accounts.Initializer
	jwtCfg      config.JWTConfig
	passwordCfg config.PasswordConfig
	now         func() time.Time
}

// NewService constructs the signup/login service.
func NewService(params ServiceParams) (Service, error) {
	if params.TransactionRunner == nil {
		return nil, fmt.Errorf("transaction runner is required")
	}
	if params.Accounts == nil {
		return nil, fmt.Errorf("accounts repository is required")
	}
	if params.Initializer == nil {
		return nil, fmt.Errorf("account initializer is required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		tx:          params.TransactionRunner,
		accounts:    params.Accounts,
		initializer: params.Initializer,
		jwtCfg:      params.JWTConfig,
		passwordCfg: params.PasswordConfig,
		now:         now,
	}, nil
}

// Signup creates an account, or claims one provisioned by a billing webhook
// that has no password yet, and initializes its billing rows.
func (s *service) Signup(ctx context.Context, req SignupRequest) (*TokenResponse, error) {
	email := accounts.NormalizeEmail(req.Email)
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}

	passwordHash, err := security.HashPassword(req.Password, s.passwordCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "hash password")
	}

	var account *models.Account
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.accounts.WithTx(tx)

		existing, err := repo.FindByEmail(ctx, email)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check account email")
		}
		switch {
		case existing == nil:
			account = &models.Account{ID: uuid.New(), Email: email, PasswordHash: passwordHash}
			if err := repo.Create(ctx, account); err != nil {
				if db.IsUniqueViolation(err, "") {
					return pkgerrors.New(pkgerrors.CodeConflict, "email already exists")
				}
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create account")
			}
		default:
			claimed, err := repo.ClaimPassword(ctx, existing.ID, passwordHash)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "claim account")
			}
			if !claimed {
				return pkgerrors.New(pkgerrors.CodeConflict, "email already exists")
			}
			account = existing
		}

		if err := s.initializer.Initialize(ctx, tx, account.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "initialize account")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.issue(account)
}

func (s *service) Login(ctx context.Context, req LoginRequest) (*TokenResponse, error) {
	email := accounts.NormalizeEmail(req.Email)
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}
	account, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup account")
	}
	if account == nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}

	valid, err := security.VerifyPassword(req.Password, account.PasswordHash)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !valid {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}

	if security.NeedsRehash(account.PasswordHash, s.passwordCfg) {
		if rehashed, err := security.HashPassword(req.Password, s.passwordCfg); err == nil {
			_ = s.accounts.UpdatePasswordHash(ctx, account.ID, rehashed)
		}
	}

	return s.issue(account)
}

func (s *service) issue(account *models.Account) (*TokenResponse, error) {
	token, err := pkgAuth.MintAccessToken(s.jwtCfg, s.now().UTC(), pkgAuth.AccessTokenPayload{
		AccountID: account.ID,
		Email:     account.Email,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt")
	}
	return &TokenResponse{Token: token, AccountID: account.ID, Email: account.Email}, nil
}
