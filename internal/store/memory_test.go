package store_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bkyoung/pr-council/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_MarkThenSeen(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()

	seen, err := s.Seen(ctx, "delivery-1")
	require.NoError(t, err)
	assert.False(t, seen)

	won, err := s.MarkProcessed(ctx, "delivery-1", time.Hour)
	require.NoError(t, err)
	assert.True(t, won)

	seen, err = s.Seen(ctx, "delivery-1")
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestMemoryStore_FirstWriterWins(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()

	first, err := s.MarkProcessed(ctx, "delivery-1", time.Hour)
	require.NoError(t, err)
	second, err := s.MarkProcessed(ctx, "delivery-1", time.Hour)
	require.NoError(t, err)

	assert.True(t, first)
	assert.False(t, second)
}

func TestMemoryStore_ConcurrentMarksExactlyOneWins(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()

	const goroutines = 32
	var wg sync.WaitGroup
	wins := make(chan bool, goroutines)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			won, err := s.MarkProcessed(ctx, "delivery-1", time.Hour)
			if err == nil && won {
				wins <- true
			}
		}()
	}
	wg.Wait()
	close(wins)

	assert.Len(t, wins, 1)
}

func TestMemoryStore_ExpiredRecordNotSeen(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()

	current := time.Unix(1000, 0)
	s.SetNowFunc(func() time.Time { return current })

	won, err := s.MarkProcessed(ctx, "delivery-1", time.Minute)
	require.NoError(t, err)
	require.True(t, won)

	current = current.Add(2 * time.Minute)

	seen, err := s.Seen(ctx, "delivery-1")
	require.NoError(t, err)
	assert.False(t, seen)

	// The expired slot can be claimed again.
	won, err = s.MarkProcessed(ctx, "delivery-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, won)
}
