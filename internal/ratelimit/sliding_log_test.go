package ratelimit

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlidingLog_Disabled(t *testing.T) {
	t.Parallel()
	s := NewSlidingLog(0, time.Minute, nil)
	assert.Nil(t, s)
	assert.True(t, s.Allow())
	assert.True(t, s.Check())
	assert.Equal(t, -1, s.Remaining())
	assert.True(t, s.IsEmpty())
	assert.True(t, s.NextSlot().IsZero())
}

func TestSlidingLog_StrictWindow(t *testing.T) {
	t.Parallel()
	clock := clockwork.NewFakeClock()
	s := NewSlidingLog(3, time.Minute, clock)

	start := clock.Now()
	require.True(t, s.Allow())
	clock.Advance(20 * time.Second)
	require.True(t, s.Allow())
	require.True(t, s.Allow())
	assert.False(t, s.Allow(), "fourth event inside the window")
	assert.Equal(t, 0, s.Remaining())
	assert.Equal(t, start.Add(time.Minute), s.NextSlot())

	// Just before the first event leaves the window.
	clock.Advance(40*time.Second - time.Millisecond)
	assert.False(t, s.Allow())

	clock.Advance(time.Millisecond)
	assert.True(t, s.Allow(), "first event left the window")
	assert.False(t, s.Allow())
}

func TestSlidingLog_CheckConsume(t *testing.T) {
	t.Parallel()
	clock := clockwork.NewFakeClock()
	s := NewSlidingLog(1, time.Second, clock)

	assert.True(t, s.IsEmpty())
	assert.True(t, s.Check())
	s.Consume()
	assert.False(t, s.Check())
	assert.False(t, s.IsEmpty())
	assert.Equal(t, clock.Now().Add(time.Second), s.NextSlot())

	clock.Advance(time.Second)
	assert.True(t, s.IsEmpty())
	assert.Equal(t, clock.Now(), s.NextSlot())
}
