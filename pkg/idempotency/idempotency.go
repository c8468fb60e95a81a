package idempotency

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storeconsole/pkg/redis"
)

// Guard claims event ids for one consumer using Redis SETNX with a TTL.
// Keys follow the `sc:idempotency:evt:<consumer>:<event_id>` pattern.
type Guard struct {
	store    redis.IdempotencyStore
	consumer string
	ttl      time.Duration
}

// NewGuard builds a guard whose claims expire after ttl. A zero ttl never expires.
func NewGuard(store redis.IdempotencyStore, consumer string, ttl time.Duration) (*Guard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	consumer = strings.TrimSpace(consumer)
	if consumer == "" {
		return nil, errors.New("consumer name is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	return &Guard{store: store, consumer: consumer, ttl: ttl}, nil
}

// Claim returns true when the caller is the first to see eventID.
func (g *Guard) Claim(ctx context.Context, eventID string) (bool, error) {
	key, err := g.key(eventID)
	if err != nil {
		return false, err
	}
	won, err := g.store.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), g.ttl)
	if err != nil {
		return false, fmt.Errorf("claim %s: %w", key, err)
	}
	return won, nil
}

// Release drops a claim so a failed delivery can be processed again.
func (g *Guard) Release(ctx context.Context, eventID string) error {
	key, err := g.key(eventID)
	if err != nil {
		return err
	}
	return g.store.Del(ctx, key)
}

func (g *Guard) key(eventID string) (string, error) {
	id, err := uuid.Parse(strings.TrimSpace(eventID))
	if err != nil || id == uuid.Nil {
		return "", fmt.Errorf("invalid event id %q", eventID)
	}
	return g.store.IdempotencyKey("evt:"+g.consumer, id.String()), nil
}
