package ratelimit

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestThrottled(t *testing.T) {
	t.Parallel()
	cause := errors.New("429 Too Many Requests")

	err := fmt.Errorf("anilist: %w", Throttled(3*time.Second, cause))

	d, ok := IsThrottled(err)
	assert.True(t, ok)
	assert.Equal(t, 3*time.Second, d)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "retry after 3s")

	_, ok = IsThrottled(cause)
	assert.False(t, ok)

	d, ok = IsThrottled(Throttled(0, nil))
	assert.True(t, ok)
	assert.Zero(t, d)
}

func TestParseRetryAfter(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	tests := []struct {
		name    string
		headers map[string]string
		want    time.Duration
	}{
		{"none", nil, 0},
		{"milliseconds", map[string]string{"retry-after-ms": "1500"}, 1500 * time.Millisecond},
		{"seconds", map[string]string{"Retry-After": "30"}, 30 * time.Second},
		{"http date", map[string]string{"Retry-After": now.Add(time.Minute).Format(http.TimeFormat)}, time.Minute},
		{"http date in the past", map[string]string{"Retry-After": now.Add(-time.Minute).Format(http.TimeFormat)}, 0},
		{"reset timestamp", map[string]string{"X-RateLimit-Reset": fmt.Sprint(now.Add(45 * time.Second).Unix())}, 45 * time.Second},
		{"ms wins", map[string]string{"retry-after-ms": "200", "Retry-After": "30"}, 200 * time.Millisecond},
		{"garbage", map[string]string{"Retry-After": "soon"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := http.Header{}
			for k, v := range tt.headers {
				h.Set(k, v)
			}
			assert.Equal(t, tt.want, ParseRetryAfter(h, now))
		})
	}
}
