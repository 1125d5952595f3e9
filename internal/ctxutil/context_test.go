package ctxutil

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestUserIDContext(t *testing.T) {
	t.Parallel()

	t.Run("empty context", func(t *testing.T) {
		t.Parallel()
		assert.Empty(t, GetUserID(context.Background()))
	})

	t.Run("with user ID", func(t *testing.T) {
		t.Parallel()
		ctx := WithUserID(context.Background(), "80351110224678912")
		assert.Equal(t, "80351110224678912", GetUserID(ctx))
		assert.Equal(t, "80351110224678912", MustGetUserID(ctx))
	})
}

func TestMustGetUserID_Panic(t *testing.T) {
	t.Parallel()
	assert.Panics(t, func() {
		MustGetUserID(context.Background())
	})
}

func TestGuildAndInteractionID(t *testing.T) {
	t.Parallel()
	ctx := WithGuildID(context.Background(), "g1")
	ctx = WithInteractionID(ctx, "i1")

	assert.Equal(t, "g1", GetGuildID(ctx))
	assert.Equal(t, "i1", GetInteractionID(ctx))
	assert.Empty(t, GetGuildID(context.Background()))
}

func TestRequestIDContext(t *testing.T) {
	t.Parallel()
	_, ok := GetRequestID(context.Background())
	assert.False(t, ok)

	ctx := WithRequestID(context.Background(), "req-1")
	id, ok := GetRequestID(ctx)
	assert.True(t, ok)
	assert.Equal(t, "req-1", id)
}

func TestPreserveTracing(t *testing.T) {
	t.Parallel()
	parent, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	parent = WithUserID(parent, "u")
	parent = WithGuildID(parent, "g")
	parent = WithInteractionID(parent, "i")
	parent = WithRequestID(parent, "r")
	cancel()

	detached := PreserveTracing(parent)

	assert.NoError(t, detached.Err())
	_, hasDeadline := detached.Deadline()
	assert.False(t, hasDeadline)
	assert.Equal(t, "u", GetUserID(detached))
	assert.Equal(t, "g", GetGuildID(detached))
	assert.Equal(t, "i", GetInteractionID(detached))
	id, _ := GetRequestID(detached)
	assert.Equal(t, "r", id)
}
