// Package session tracks access tokens that were revoked before they
// expired. Tokens are stateless otherwise.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

type denyStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
}

type denyKeyer interface {
	RevokedTokenKey(jti string) string
}

type redisStore interface {
	denyStore
	denyKeyer
}

// RevocationChecker is the read side used by the auth middleware.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// Manager keeps a Redis denylist keyed by token id. Entries expire with the
// token they block.
type Manager struct {
	store denyStore
	keyer denyKeyer
	now   func() time.Time
}

func NewManager(client redisStore) (*Manager, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	return &Manager{store: client, keyer: client, now: time.Now}, nil
}

// Revoke blocks jti until expiresAt. Already expired tokens need no entry.
func (m *Manager) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	if strings.TrimSpace(jti) == "" {
		return fmt.Errorf("token id is required")
	}
	ttl := expiresAt.Sub(m.now())
	if ttl <= 0 {
		return nil
	}
	return m.store.Set(ctx, m.keyer.RevokedTokenKey(jti), expiresAt.UTC().Format(time.RFC3339), ttl)
}

func (m *Manager) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if strings.TrimSpace(jti) == "" {
		return false, nil
	}
	if _, err := m.store.Get(ctx, m.keyer.RevokedTokenKey(jti)); err != nil {
		if errors.Is(err, goredis.Nil) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
