package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Parallel()
	l := New(10, 5)
	assert.InDelta(t, 10.0, l.maxTokens, 0)
	assert.InDelta(t, 5.0, l.refillRate, 0)
	assert.InDelta(t, 10.0, l.tokens, 0)
}

func TestNewPerMinute(t *testing.T) {
	t.Parallel()
	l := NewPerMinute(60) // 60 per minute = 1 per second
	assert.InDelta(t, 1.0, l.refillRate, 0)
	assert.InDelta(t, 2.0, l.maxTokens, 0) // 2 seconds burst
	assert.InDelta(t, 1.0, l.tokens, 0)
}

func TestAllow(t *testing.T) {
	t.Parallel()

	t.Run("allows when tokens available", func(t *testing.T) {
		t.Parallel()
		l := NewWithClock(5, 1, clockwork.NewFakeClock())
		for i := range 5 {
			assert.True(t, l.Allow(), "attempt %d", i+1)
		}
		assert.False(t, l.Allow())
	})

	t.Run("refills over time", func(t *testing.T) {
		t.Parallel()
		clock := clockwork.NewFakeClock()
		l := NewWithClock(1, 2, clock) // 1 token per 500ms
		require.True(t, l.Allow())
		require.False(t, l.Allow())

		clock.Advance(400 * time.Millisecond)
		assert.False(t, l.Allow())

		clock.Advance(100 * time.Millisecond)
		assert.True(t, l.Allow())
	})
}

func TestCheckConsume(t *testing.T) {
	t.Parallel()
	l := NewWithClock(1, 1, clockwork.NewFakeClock())

	assert.True(t, l.Check())
	assert.True(t, l.Check(), "Check does not consume")
	l.Consume()
	assert.False(t, l.Check())
}

func TestWait(t *testing.T) {
	t.Parallel()

	t.Run("returns immediately when tokens available", func(t *testing.T) {
		t.Parallel()
		l := NewWithClock(5, 1, clockwork.NewFakeClock())
		assert.NoError(t, l.Wait(t.Context()))
	})

	t.Run("waits for token", func(t *testing.T) {
		t.Parallel()
		clock := clockwork.NewFakeClock()
		l := NewWithClock(1, 1, clock)
		require.True(t, l.Allow())

		var done atomic.Bool
		errCh := make(chan error, 1)
		go func() {
			errCh <- l.Wait(context.Background())
			done.Store(true)
		}()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		require.NoError(t, clock.BlockUntilContext(ctx, 1))
		assert.False(t, done.Load())

		clock.Advance(time.Second)
		select {
		case err := <-errCh:
			assert.NoError(t, err)
		case <-ctx.Done():
			t.Fatal("Wait() did not return after refill")
		}
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		t.Parallel()
		l := NewWithClock(0, 0.1, clockwork.NewFakeClock())

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()

		assert.ErrorIs(t, l.Wait(ctx), context.DeadlineExceeded)
	})
}

func TestAvailableAndReset(t *testing.T) {
	t.Parallel()
	l := NewWithClock(10, 1, clockwork.NewFakeClock())
	l.Allow()
	l.Allow()

	assert.InDelta(t, 8.0, l.Available(), 0.001)
	assert.False(t, l.IsFull())

	l.Reset()
	assert.InDelta(t, 10.0, l.Available(), 0.001)
	assert.True(t, l.IsFull())
}

func TestConcurrentAccess(t *testing.T) {
	t.Parallel()
	l := NewWithClock(100, 0, clockwork.NewFakeClock())

	var (
		wg      sync.WaitGroup
		allowed atomic.Int64
	)
	for range 50 {
		wg.Go(func() {
			for range 4 {
				if l.Allow() {
					allowed.Add(1)
				}
			}
		})
	}
	wg.Wait()

	assert.Equal(t, int64(100), allowed.Load())
}
