package ratelimit

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// ThrottledError marks a request the upstream refused because of its rate
// limit. The Scheduler retries such requests; every other error is final.
type ThrottledError struct {
	// RetryAfter is the server-indicated wait. Zero means unknown.
	RetryAfter time.Duration
	Err        error
}

func (e *ThrottledError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("throttled (retry after %v): %v", e.RetryAfter, e.Err)
	}
	return fmt.Sprintf("throttled: %v", e.Err)
}

func (e *ThrottledError) Unwrap() error {
	return e.Err
}

// Throttled wraps err as a throttling signal for the Scheduler.
func Throttled(retryAfter time.Duration, err error) error {
	if err == nil {
		err = errors.New("rate limited by upstream")
	}
	return &ThrottledError{RetryAfter: retryAfter, Err: err}
}

// IsThrottled reports whether err carries a throttling signal and returns
// the indicated retry delay.
func IsThrottled(err error) (time.Duration, bool) {
	var te *ThrottledError
	if errors.As(err, &te) {
		return te.RetryAfter, true
	}
	return 0, false
}

// ParseRetryAfter extracts the wait an HTTP 429 response asks for.
// Supports retry-after-ms, Retry-After (seconds or HTTP-date) and
// X-RateLimit-Reset (unix seconds). Returns 0 if no header is usable.
func ParseRetryAfter(headers http.Header, now time.Time) time.Duration {
	// Priority 1: retry-after-ms (milliseconds, non-standard but precise)
	if msStr := headers.Get("retry-after-ms"); msStr != "" {
		if ms, err := strconv.Atoi(msStr); err == nil && ms > 0 {
			return time.Duration(ms) * time.Millisecond
		}
	}

	// Priority 2: retry-after (seconds, standard)
	if secStr := headers.Get("Retry-After"); secStr != "" {
		if sec, err := strconv.Atoi(secStr); err == nil && sec > 0 {
			return time.Duration(sec) * time.Second
		}
		if t, err := http.ParseTime(secStr); err == nil {
			if d := t.Sub(now); d > 0 {
				return d
			}
		}
	}

	// Priority 3: reset timestamp
	if resetStr := headers.Get("X-RateLimit-Reset"); resetStr != "" {
		if unix, err := strconv.ParseInt(resetStr, 10, 64); err == nil {
			if d := time.Unix(unix, 0).Sub(now); d > 0 {
				return d
			}
		}
	}

	return 0
}
