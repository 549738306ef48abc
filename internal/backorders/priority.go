package backorders

import (
	"context"
	"errors"
	"sync"
	"time"
)

// PrioritySequencer hands out strictly increasing backorder priorities. Lower
// values are served first.
type PrioritySequencer interface {
	Next(ctx context.Context) (int64, error)
}

type counterStore interface {
	Incr(ctx context.Context, key string) (int64, error)
	CounterKey(name string) string
}

// RedisSequencer uses INCR on a shared counter so every API replica draws
// from the same sequence.
type RedisSequencer struct {
	store counterStore
	key   string
}

func NewRedisSequencer(store counterStore) (*RedisSequencer, error) {
	if store == nil {
		return nil, errors.New("redis store required for priority sequence")
	}
	return &RedisSequencer{store: store, key: store.CounterKey("backorder_priority")}, nil
}

func (s *RedisSequencer) Next(ctx context.Context) (int64, error) {
	return s.store.Incr(ctx, s.key)
}

// ClockSequencer derives priorities from wall-clock microseconds, bumped to
// stay strictly increasing within the process.
type ClockSequencer struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

func NewClockSequencer() *ClockSequencer {
	return &ClockSequencer{now: time.Now}
}

func (s *ClockSequencer) Next(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.now().UnixMicro()
	if v <= s.last {
		v = s.last + 1
	}
	s.last = v
	return v, nil
}
