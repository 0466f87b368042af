package guard_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bkyoung/pr-council/internal/store"
	"github.com/bkyoung/pr-council/internal/usecase/guard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingStore struct{}

func (failingStore) Seen(ctx context.Context, deliveryID string) (bool, error) {
	return false, errors.New("connection refused")
}

func (failingStore) MarkProcessed(ctx context.Context, deliveryID string, ttl time.Duration) (bool, error) {
	return false, errors.New("connection refused")
}

func (failingStore) Close() error { return nil }

type recordingLogger struct {
	warnings []string
}

func (l *recordingLogger) LogWarning(ctx context.Context, message string, fields map[string]interface{}) {
	l.warnings = append(l.warnings, message)
}

func (l *recordingLogger) LogInfo(ctx context.Context, message string, fields map[string]interface{}) {}

func TestGuard_RejectsDuplicateDelivery(t *testing.T) {
	ctx := context.Background()
	g := guard.New(store.NewMemoryStore(), nil, time.Hour, nil)

	outcome := g.Check(ctx, "delivery-1", "tenant-a")
	require.True(t, outcome.Allowed)
	require.True(t, g.Commit(ctx, "delivery-1", "tenant-a"))

	outcome = g.Check(ctx, "delivery-1", "tenant-a")
	assert.False(t, outcome.Allowed)
	assert.Equal(t, guard.ReasonDuplicateDelivery, outcome.Reason)
}

func TestGuard_RejectsRateLimitedTenant(t *testing.T) {
	ctx := context.Background()
	limiter := guard.NewRateLimiter(1, time.Hour)
	g := guard.New(store.NewMemoryStore(), limiter, time.Hour, nil)

	require.True(t, g.Check(ctx, "delivery-1", "tenant-a").Allowed)
	g.Commit(ctx, "delivery-1", "tenant-a")

	outcome := g.Check(ctx, "delivery-2", "tenant-a")
	assert.False(t, outcome.Allowed)
	assert.Equal(t, guard.ReasonRateLimited, outcome.Reason)
	assert.Greater(t, outcome.RetryAfter, time.Duration(0))
}

func TestGuard_FailsOpenOnStoreError(t *testing.T) {
	ctx := context.Background()
	logger := &recordingLogger{}
	g := guard.New(failingStore{}, nil, time.Hour, logger)

	outcome := g.Check(ctx, "delivery-1", "tenant-a")
	assert.True(t, outcome.Allowed)

	assert.True(t, g.Commit(ctx, "delivery-1", "tenant-a"))
	assert.Len(t, logger.warnings, 2)
}

func TestGuard_EmptyDeliveryIDSkipsIdempotency(t *testing.T) {
	ctx := context.Background()
	g := guard.New(store.NewMemoryStore(), nil, time.Hour, nil)

	require.True(t, g.Commit(ctx, "", "tenant-a"))
	assert.True(t, g.Check(ctx, "", "tenant-a").Allowed)
}

func TestGuard_NilStoreAndLimiterAllowEverything(t *testing.T) {
	ctx := context.Background()
	g := guard.New(nil, nil, time.Hour, nil)

	for i := 0; i < 10; i++ {
		assert.True(t, g.Check(ctx, "delivery-1", "tenant-a").Allowed)
		assert.True(t, g.Commit(ctx, "delivery-1", "tenant-a"))
	}
}

func TestGuard_CommitReportsLostRace(t *testing.T) {
	ctx := context.Background()
	shared := store.NewMemoryStore()
	g := guard.New(shared, nil, time.Hour, nil)

	require.True(t, g.Commit(ctx, "delivery-1", "tenant-a"))
	assert.False(t, g.Commit(ctx, "delivery-1", "tenant-a"))
}
