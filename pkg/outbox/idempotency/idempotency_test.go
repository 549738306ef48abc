package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryStore is a SETNX-faithful in-memory store.
type memoryStore struct {
	keys   map[string]time.Duration
	setErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{keys: map[string]time.Duration{}}
}

func (s *memoryStore) Get(_ context.Context, key string) (string, error) {
	if _, ok := s.keys[key]; ok {
		return "1", nil
	}
	return "", nil
}

func (s *memoryStore) SetNX(_ context.Context, key string, _ any, ttl time.Duration) (bool, error) {
	if s.setErr != nil {
		return false, s.setErr
	}
	if _, ok := s.keys[key]; ok {
		return false, nil
	}
	s.keys[key] = ttl
	return true, nil
}

func (s *memoryStore) IdempotencyKey(scope, id string) string {
	return "sf:idempotency:" + scope + ":" + id
}

func (s *memoryStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(s.keys, k)
	}
	return nil
}

func TestNewManagerValidates(t *testing.T) {
	_, err := NewManager(nil, time.Hour)
	require.Error(t, err)
	_, err = NewManager(newMemoryStore(), -time.Second)
	require.Error(t, err)
}

func TestCheckAndMarkProcessedClaimsOnce(t *testing.T) {
	store := newMemoryStore()
	manager, err := NewManager(store, 24*time.Hour)
	require.NoError(t, err)
	ctx := context.Background()
	eventID := uuid.New()

	already, err := manager.CheckAndMarkProcessed(ctx, "backorder-fulfilled-mail", eventID)
	require.NoError(t, err)
	assert.False(t, already)

	key := "sf:idempotency:evt:processed:backorder-fulfilled-mail:" + eventID.String()
	assert.Equal(t, 24*time.Hour, store.keys[key])

	already, err = manager.CheckAndMarkProcessed(ctx, "backorder-fulfilled-mail", eventID)
	require.NoError(t, err)
	assert.True(t, already)

	already, err = manager.CheckAndMarkProcessed(ctx, "another-consumer", eventID)
	require.NoError(t, err)
	assert.False(t, already, "claims are scoped per consumer")
}

func TestDeleteReleasesClaim(t *testing.T) {
	manager, err := NewManager(newMemoryStore(), time.Hour)
	require.NoError(t, err)
	ctx := context.Background()
	eventID := uuid.New()

	_, err = manager.CheckAndMarkProcessed(ctx, "mail", eventID)
	require.NoError(t, err)
	require.NoError(t, manager.Delete(ctx, "mail", eventID))

	already, err := manager.CheckAndMarkProcessed(ctx, "mail", eventID)
	require.NoError(t, err)
	assert.False(t, already)
}

func TestCheckAndMarkProcessedErrors(t *testing.T) {
	store := newMemoryStore()
	manager, err := NewManager(store, time.Hour)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = manager.CheckAndMarkProcessed(ctx, " ", uuid.New())
	assert.Error(t, err)
	_, err = manager.CheckAndMarkProcessed(ctx, "mail", uuid.Nil)
	assert.Error(t, err)

	store.setErr = errors.New("redis down")
	_, err = manager.CheckAndMarkProcessed(ctx, "mail", uuid.New())
	assert.Error(t, err)
}
