package lemonsqueezy

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/revofy/revofy-backend/internal/accounts"
	"github.com/revofy/revofy-backend/internal/subscriptions"
	pkgerrors "github.com/revofy/revofy-backend/pkg/errors"
	"github.com/revofy/revofy-backend/pkg/logger"
)

// Outcome labels how a verified delivery was handled.
type Outcome string

const (
	OutcomeProcessed Outcome = "processed"
	OutcomeIgnored   Outcome = "ignored"
	OutcomeUnknown   Outcome = "unknown_event"
	OutcomeNoAccount Outcome = "no_account_context"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeInvalid   Outcome = "invalid_payload"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type ServiceParams struct {
	TransactionRunner txRunner
	Resolver          *accounts.Resolver
	Subscriptions     *subscriptions.Service
	Logger            *logger.Logger
}

// Service reconciles verified webhook events into subscription state.
type Service struct {
	tx       txRunner
	resolver *accounts.Resolver
	subs     *subscriptions.Service
	logg     *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.Resolver == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "account resolver required")
	}
	if params.Subscriptions == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "subscription service required")
	}
	return &Service{
		tx:       params.TransactionRunner,
		resolver: params.Resolver,
		subs:     params.Subscriptions,
		logg:     params.Logger,
	}, nil
}

// HandleEvent resolves the account and merges the derived subscription state in
// one transaction. Resolution failures and stateless events are not errors.
func (s *Service) HandleEvent(ctx context.Context, event *Event) (Outcome, error) {
	if event == nil {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "lemonsqueezy event required")
	}

	name := event.Name()
	if s.logg != nil {
		ctx = s.logg.WithEvent(ctx, name.String())
	}
	if !name.IsValid() {
		if s.logg != nil {
			s.logg.Error(ctx, "lemonsqueezy.unknown_event", errors.New("event name outside provider vocabulary"))
		}
		return OutcomeUnknown, nil
	}

	status, ok := subscriptions.DeriveStatus(name, event.Data.Attributes.Status)
	if !ok {
		return OutcomeIgnored, nil
	}
	change := event.Change(status)

	outcome := OutcomeProcessed
	var owner uuid.UUID
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		accountID, err := s.resolver.Resolve(ctx, tx, event.CorrelationToken(), event.Emails()...)
		if errors.Is(err, accounts.ErrNoAccountContext) {
			outcome = OutcomeNoAccount
			return nil
		}
		if err != nil {
			return err
		}
		owner, err = s.subs.Apply(ctx, tx, accountID, change)
		return err
	})
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "apply lemonsqueezy event")
	}

	if s.logg != nil {
		switch outcome {
		case OutcomeNoAccount:
			s.logg.Warn(ctx, "lemonsqueezy.no_account_context")
		default:
			logCtx := s.logg.WithAccountID(ctx, owner.String())
			logCtx = s.logg.WithField(logCtx, "subscription_status", status.String())
			s.logg.Info(logCtx, "lemonsqueezy.event_applied")
		}
	}
	return outcome, nil
}
