package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	redisclient "github.com/angelmondragon/storeconsole/pkg/redis"
	redislib "github.com/redis/go-redis/v9"
)

type sessionStore interface {
	Get(ctx context.Context, key string) (string, error)
}

type sessionKeyer interface {
	AccessSessionKey(accessID string) string
}

// AccessSessionChecker exposes the read-only surface needed by middleware.
type AccessSessionChecker interface {
	HasSession(ctx context.Context, accessID string) (bool, error)
}

// Manager looks up access sessions written by the console's auth service.
// Revoking a session on logout makes its access token unusable here before it expires.
type Manager struct {
	store sessionStore
	keyer sessionKeyer
}

// NewManager constructs a session manager backed by Redis.
func NewManager(client *redisclient.Client) (*Manager, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	return &Manager{store: client, keyer: client}, nil
}

// HasSession reports whether the access ID still has an active session.
func (m *Manager) HasSession(ctx context.Context, accessID string) (bool, error) {
	if strings.TrimSpace(accessID) == "" {
		return false, fmt.Errorf("access id is required")
	}
	if _, err := m.store.Get(ctx, m.keyer.AccessSessionKey(accessID)); err != nil {
		if errors.Is(err, redislib.Nil) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
