package lemonsqueezy

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/revofy/revofy-backend/pkg/redis"
)

// ReplayScope namespaces replay marks in Redis.
const ReplayScope = "lemonsqueezy"

// ReplayGuard short-circuits byte-identical redeliveries within ttl.
type ReplayGuard struct {
	store redis.IdempotencyStore
	ttl   time.Duration
	scope string
}

// NewReplayGuard binds a guard to a Redis-backed store.
func NewReplayGuard(store redis.IdempotencyStore, ttl time.Duration, scope string) (*ReplayGuard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	if scope == "" {
		return nil, errors.New("scope is required")
	}
	return &ReplayGuard{
		store: store,
		ttl:   ttl,
		scope: scope,
	}, nil
}

// PayloadKey fingerprints a raw webhook body.
func PayloadKey(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// Seen reports whether the key was marked by an earlier successful delivery.
func (g *ReplayGuard) Seen(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, errors.New("replay key is required")
	}
	seen, err := g.store.Exists(ctx, g.store.IdempotencyKey(g.scope, key))
	if err != nil {
		return false, fmt.Errorf("check replay key: %w", err)
	}
	return seen, nil
}

// Mark records a delivery once it has been handled. Call it only after the
// event has been committed.
func (g *ReplayGuard) Mark(ctx context.Context, key string) error {
	if key == "" {
		return errors.New("replay key is required")
	}
	if _, err := g.store.SetNX(ctx, g.store.IdempotencyKey(g.scope, key), "1", g.ttl); err != nil {
		return fmt.Errorf("set replay key: %w", err)
	}
	return nil
}
