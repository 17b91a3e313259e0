package momowebhook

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/craftcv/craftcv-backend/pkg/redis"
)

// IdempotencyGuard deduplicates gateway notifications. The key carries the
// result code, so a retry of the same outcome is suppressed while a later
// notification with a different code still gets through to the conflict path.
type IdempotencyGuard struct {
	store redis.IdempotencyStore
	ttl   time.Duration
	scope string
}

func NewIdempotencyGuard(store redis.IdempotencyStore, ttl time.Duration, scope string) (*IdempotencyGuard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	if scope == "" {
		return nil, errors.New("scope is required")
	}
	return &IdempotencyGuard{
		store: store,
		ttl:   ttl,
		scope: scope,
	}, nil
}

// CheckAndMark reports whether the notification was already seen and marks it
// as seen otherwise.
func (g *IdempotencyGuard) CheckAndMark(ctx context.Context, requestID string, resultCode int) (bool, error) {
	if requestID == "" {
		return false, errors.New("request id is required")
	}
	key := g.store.IdempotencyKey(g.scope, fmt.Sprintf("%s:%d", requestID, resultCode))
	set, err := g.store.SetNX(ctx, key, "1", g.ttl)
	if err != nil {
		return false, fmt.Errorf("set idempotency key: %w", err)
	}
	return !set, nil
}

// Release removes the mark so the gateway's next retry is processed again.
// Used when handling failed after the mark was taken.
func (g *IdempotencyGuard) Release(ctx context.Context, requestID string, resultCode int) error {
	if requestID == "" {
		return errors.New("request id is required")
	}
	key := g.store.IdempotencyKey(g.scope, fmt.Sprintf("%s:%d", requestID, resultCode))
	return g.store.Del(ctx, key)
}
