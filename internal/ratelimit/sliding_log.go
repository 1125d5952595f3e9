package ratelimit

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// SlidingLog is an exact sliding window limiter. It remembers the timestamp
// of every admitted event still inside the window, so no window of length
// window ever contains more than limit events.
//
// Memory is O(limit). Use it where the bound must be strict, such as an
// upstream API that answers bursts over its quota with 429s.
type SlidingLog struct {
	mu     sync.Mutex
	clock  clockwork.Clock
	limit  int
	window time.Duration
	events []time.Time // ascending; events[0] is the oldest
}

// NewSlidingLog creates a sliding log admitting limit events per window.
// Returns nil if limit <= 0 (disabled); all methods accept a nil receiver.
func NewSlidingLog(limit int, window time.Duration, clock clockwork.Clock) *SlidingLog {
	if limit <= 0 {
		return nil
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &SlidingLog{
		clock:  clock,
		limit:  limit,
		window: window,
		events: make([]time.Time, 0, limit),
	}
}

// prune drops events that left the window. Must be called with mu held.
func (s *SlidingLog) prune(now time.Time) {
	cutoff := now.Add(-s.window)
	i := 0
	for i < len(s.events) && !s.events[i].After(cutoff) {
		i++
	}
	if i > 0 {
		s.events = append(s.events[:0], s.events[i:]...)
	}
}

// Allow records an event and returns true if the window has room.
func (s *SlidingLog) Allow() bool {
	if s == nil {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	s.prune(now)
	if len(s.events) >= s.limit {
		return false
	}
	s.events = append(s.events, now)
	return true
}

// Check reports whether an event would be admitted now, without recording it.
func (s *SlidingLog) Check() bool {
	if s == nil {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.prune(s.clock.Now())
	return len(s.events) < s.limit
}

// Consume records an event (assumes Check() already passed).
func (s *SlidingLog) Consume() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	s.prune(now)
	if len(s.events) < s.limit {
		s.events = append(s.events, now)
	}
}

// NextSlot returns when the window next has room. It returns now when
// there is room already.
func (s *SlidingLog) NextSlot() time.Time {
	if s == nil {
		return time.Time{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	s.prune(now)
	if len(s.events) < s.limit {
		return now
	}
	return s.events[len(s.events)-s.limit].Add(s.window)
}

// Remaining returns how many events the window can still admit.
func (s *SlidingLog) Remaining() int {
	if s == nil {
		return -1 // Unlimited
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.prune(s.clock.Now())
	return s.limit - len(s.events)
}

// IsEmpty reports whether no event is inside the window.
func (s *SlidingLog) IsEmpty() bool {
	if s == nil {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.prune(s.clock.Now())
	return len(s.events) == 0
}
