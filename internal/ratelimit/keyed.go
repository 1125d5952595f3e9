package ratelimit

import (
	"sync"
	"time"

	"github.com/garyellow/guildbot-go/internal/metrics"
	"github.com/jonboulle/clockwork"
)

// KeyedConfig configures a KeyedLimiter instance.
type KeyedConfig struct {
	// Name identifies this limiter for metrics (e.g., "user")
	Name string

	// Token bucket settings
	Burst      float64 // Maximum tokens (burst capacity)
	RefillRate float64 // Tokens refilled per second

	// Optional strict window limit (0 = disabled), e.g. 200 per hour.
	WindowLimit int
	Window      time.Duration

	// Cleanup settings
	CleanupPeriod time.Duration // How often to clean up inactive limiters

	// Optional metrics reporter
	Metrics *metrics.Metrics

	// Clock defaults to the real clock.
	Clock clockwork.Clock
}

// KeyedLimiter tracks rate limits per key (e.g., user ID).
// It creates a separate rate limiter for each key and automatically
// cleans up inactive limiters.
type KeyedLimiter struct {
	mu       sync.RWMutex
	entries  map[string]*keyedEntry
	config   KeyedConfig
	onDrop   func()          // Optional callback when request is dropped
	onUpdate func(count int) // Optional callback when active count changes
	stopCh   chan struct{}
	stopOnce sync.Once
}

// keyedEntry holds per-key state: token bucket + optional sliding log.
// The mutex makes the two-layer check-then-consume atomic.
type keyedEntry struct {
	mu      sync.Mutex
	limiter *Limiter
	window  *SlidingLog
}

// NewKeyedLimiter creates a new per-key rate limiter.
//
// Example:
//
//	limiter := NewKeyedLimiter(KeyedConfig{
//	    Name:          "user",
//	    Burst:         10,
//	    RefillRate:    0.5, // 1 token per 2 seconds
//	    CleanupPeriod: 5 * time.Minute,
//	})
//	defer limiter.Stop()
//
//	if limiter.Allow(userID) {
//	    // Process interaction
//	}
func NewKeyedLimiter(cfg KeyedConfig) *KeyedLimiter {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	kl := &KeyedLimiter{
		entries: make(map[string]*keyedEntry),
		config:  cfg,
		stopCh:  make(chan struct{}),
	}

	if cfg.Metrics != nil {
		kl.onDrop = func() {
			cfg.Metrics.RecordRateLimiterDrop(cfg.Name)
		}
		kl.onUpdate = func(count int) {
			cfg.Metrics.SetRateLimiterActiveKeys(cfg.Name, count)
		}
	}

	if cfg.CleanupPeriod > 0 {
		go kl.cleanupLoop()
	}

	return kl
}

// Allow checks if a request for the given key is allowed.
// Returns true if allowed (tokens consumed), false if rate limit exceeded.
// Empty keys are never limited.
func (kl *KeyedLimiter) Allow(key string) bool {
	if key == "" {
		return true
	}

	entry := kl.getOrCreateEntry(key)

	entry.mu.Lock()
	defer entry.mu.Unlock()

	// Check both layers before consuming from either.
	if !entry.window.Check() || !entry.limiter.Check() {
		if kl.onDrop != nil {
			kl.onDrop()
		}
		return false
	}

	entry.window.Consume()
	entry.limiter.Consume()
	return true
}

// getOrCreateEntry returns the entry for a key, creating it if needed.
func (kl *KeyedLimiter) getOrCreateEntry(key string) *keyedEntry {
	kl.mu.RLock()
	entry, exists := kl.entries[key]
	kl.mu.RUnlock()

	if exists {
		return entry
	}

	kl.mu.Lock()
	defer kl.mu.Unlock()

	// Double-check after acquiring write lock
	entry, exists = kl.entries[key]
	if exists {
		return entry
	}

	entry = &keyedEntry{
		limiter: NewWithClock(kl.config.Burst, kl.config.RefillRate, kl.config.Clock),
		window:  NewSlidingLog(kl.config.WindowLimit, kl.config.Window, kl.config.Clock),
	}
	kl.entries[key] = entry
	return entry
}

// GetAvailable returns the number of available tokens for a key.
// Returns Burst if the key has no limiter yet.
func (kl *KeyedLimiter) GetAvailable(key string) float64 {
	kl.mu.RLock()
	entry, exists := kl.entries[key]
	kl.mu.RUnlock()

	if !exists {
		return kl.config.Burst
	}
	return entry.limiter.Available()
}

// UsageStats is a snapshot of one key's quota.
type UsageStats struct {
	BurstAvailable  float64
	BurstMax        float64
	BurstRefillRate float64 // tokens per second

	// WindowRemaining is -1 when no window limit is configured.
	WindowRemaining int
	WindowLimit     int
	Window          time.Duration
}

// GetUsageStats returns the quota state for a key without consuming anything.
// Unknown keys report a full quota.
func (kl *KeyedLimiter) GetUsageStats(key string) UsageStats {
	stats := UsageStats{
		BurstAvailable:  kl.config.Burst,
		BurstMax:        kl.config.Burst,
		BurstRefillRate: kl.config.RefillRate,
		WindowRemaining: -1,
		WindowLimit:     kl.config.WindowLimit,
		Window:          kl.config.Window,
	}
	if kl.config.WindowLimit > 0 {
		stats.WindowRemaining = kl.config.WindowLimit
	}

	kl.mu.RLock()
	entry, exists := kl.entries[key]
	kl.mu.RUnlock()
	if !exists {
		return stats
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	stats.BurstAvailable = entry.limiter.Available()
	if entry.window != nil {
		stats.WindowRemaining = entry.window.Remaining()
	}
	return stats
}

// GetActiveCount returns the number of active limiters.
func (kl *KeyedLimiter) GetActiveCount() int {
	kl.mu.RLock()
	defer kl.mu.RUnlock()
	return len(kl.entries)
}

// Cleanup removes limiters whose bucket is full and whose window is empty.
// Returns the number of keys still tracked.
func (kl *KeyedLimiter) Cleanup() int {
	kl.mu.Lock()
	for key, entry := range kl.entries {
		if entry.limiter.IsFull() && entry.window.IsEmpty() {
			delete(kl.entries, key)
		}
	}
	activeCount := len(kl.entries)
	kl.mu.Unlock()

	if kl.onUpdate != nil {
		kl.onUpdate(activeCount)
	}
	return activeCount
}

// cleanupLoop periodically removes inactive limiters.
func (kl *KeyedLimiter) cleanupLoop() {
	ticker := kl.config.Clock.NewTicker(kl.config.CleanupPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-kl.stopCh:
			return
		case <-ticker.Chan():
			kl.Cleanup()
		}
	}
}

// Stop gracefully stops the cleanup goroutine.
// Safe to call multiple times.
func (kl *KeyedLimiter) Stop() {
	kl.stopOnce.Do(func() { close(kl.stopCh) })
}
