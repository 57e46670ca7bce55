package lemonsqueezy

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryIdempotencyStore struct {
	mu   sync.Mutex
	keys map[string]time.Duration
	err  error
}

func newMemoryIdempotencyStore() *memoryIdempotencyStore {
	return &memoryIdempotencyStore{keys: map[string]time.Duration{}}
}

func (m *memoryIdempotencyStore) SetNX(_ context.Context, key string, _ any, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	if _, ok := m.keys[key]; ok {
		return false, nil
	}
	m.keys[key] = ttl
	return true, nil
}

func (m *memoryIdempotencyStore) IdempotencyKey(scope, id string) string {
	return scope + ":" + id
}

func (m *memoryIdempotencyStore) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	_, ok := m.keys[key]
	return ok, nil
}

func TestReplayGuardOnlySeenAfterMark(t *testing.T) {
	store := newMemoryIdempotencyStore()
	guard, err := NewReplayGuard(store, time.Hour, ReplayScope)
	require.NoError(t, err)
	ctx := context.Background()
	key := PayloadKey([]byte(`{"a":1}`))

	seen, err := guard.Seen(ctx, key)
	require.NoError(t, err)
	assert.False(t, seen)

	seen, err = guard.Seen(ctx, key)
	require.NoError(t, err)
	assert.False(t, seen, "checking must not mark")

	require.NoError(t, guard.Mark(ctx, key))
	require.NoError(t, guard.Mark(ctx, key))
	seen, err = guard.Seen(ctx, key)
	require.NoError(t, err)
	assert.True(t, seen)
	assert.Equal(t, time.Hour, store.keys[ReplayScope+":"+key])
}

func TestReplayGuardPropagatesStoreErrors(t *testing.T) {
	store := newMemoryIdempotencyStore()
	store.err = errors.New("redis down")
	guard, err := NewReplayGuard(store, time.Hour, ReplayScope)
	require.NoError(t, err)

	_, err = guard.Seen(context.Background(), "k")
	assert.ErrorContains(t, err, "redis down")
	assert.ErrorContains(t, guard.Mark(context.Background(), "k"), "redis down")
}

func TestReplayGuardRequiresKey(t *testing.T) {
	guard, err := NewReplayGuard(newMemoryIdempotencyStore(), time.Hour, ReplayScope)
	require.NoError(t, err)

	_, err = guard.Seen(context.Background(), "")
	assert.Error(t, err)
	assert.Error(t, guard.Mark(context.Background(), ""))
}

func TestNewReplayGuardValidates(t *testing.T) {
	_, err := NewReplayGuard(nil, time.Hour, ReplayScope)
	assert.Error(t, err)
	_, err = NewReplayGuard(newMemoryIdempotencyStore(), -time.Second, ReplayScope)
	assert.Error(t, err)
	_, err = NewReplayGuard(newMemoryIdempotencyStore(), time.Hour, "")
	assert.Error(t, err)
}

func TestPayloadKeyDistinguishesBodies(t *testing.T) {
	assert.Equal(t, PayloadKey([]byte("x")), PayloadKey([]byte("x")))
	assert.NotEqual(t, PayloadKey([]byte("x")), PayloadKey([]byte("y")))
	assert.Len(t, PayloadKey(nil), 64)
}
