package momowebhook

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckAndMarkKeysOnResultCode(t *testing.T) {
	store := newFakeIdempotencyStore()
	guard, err := NewIdempotencyGuard(store, time.Hour, "momo-ipn")
	require.NoError(t, err)
	ctx := context.Background()

	seen, err := guard.CheckAndMark(ctx, "req-1", 0)
	require.NoError(t, err)
	assert.False(t, seen)

	seen, err = guard.CheckAndMark(ctx, "req-1", 0)
	require.NoError(t, err)
	assert.True(t, seen, "same request and code is a duplicate")

	// A different code for the same request is a new report, not a retry.
	seen, err = guard.CheckAndMark(ctx, "req-1", 1006)
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestReleaseReopensTheMark(t *testing.T) {
	store := newFakeIdempotencyStore()
	guard, err := NewIdempotencyGuard(store, time.Hour, "momo-ipn")
	require.NoError(t, err)
	ctx := context.Background()

	_, err = guard.CheckAndMark(ctx, "req-1", 0)
	require.NoError(t, err)
	require.NoError(t, guard.Release(ctx, "req-1", 0))

	seen, err := guard.CheckAndMark(ctx, "req-1", 0)
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestCheckAndMarkRequiresRequestID(t *testing.T) {
	guard, err := NewIdempotencyGuard(newFakeIdempotencyStore(), time.Hour, "momo-ipn")
	require.NoError(t, err)

	_, err = guard.CheckAndMark(context.Background(), "", 0)
	assert.Error(t, err)
}
