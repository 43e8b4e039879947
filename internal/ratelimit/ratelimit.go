package ratelimit

import (
	"sync"
	"time"
)

// RateLimiter enforces per-key request limits over sliding minute and hour windows
type RateLimiter struct {
	requestsPerMinute int
	requestsPerHour   int
	enabled           bool
	now               func() time.Time

	windows map[string]*window
	mu      sync.Mutex
}

type window struct {
	minute []time.Time
	hour   []time.Time
}

// NewRateLimiter creates a new rate limiter with the given limits.
// A limit of zero disables that window.
func NewRateLimiter(requestsPerMinute, requestsPerHour int, enabled bool) *RateLimiter {
	return &RateLimiter{
		requestsPerMinute: requestsPerMinute,
		requestsPerHour:   requestsPerHour,
		enabled:           enabled,
		now:               time.Now,
		windows:           make(map[string]*window),
	}
}

// Allow checks and records a request for key.
// Returns true if allowed, false if a limit is exceeded
func (rl *RateLimiter) Allow(key string) bool {
	if !rl.enabled {
		return true
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	w := rl.windows[key]
	if w == nil {
		w = &window{}
		rl.windows[key] = w
	}
	w.cleanup(now)

	if rl.requestsPerMinute > 0 && len(w.minute) >= rl.requestsPerMinute {
		return false
	}
	if rl.requestsPerHour > 0 && len(w.hour) >= rl.requestsPerHour {
		return false
	}

	w.minute = append(w.minute, now)
	w.hour = append(w.hour, now)
	return true
}

// RetryAfter is how long key has to wait until the oldest request in a full window expires
func (rl *RateLimiter) RetryAfter(key string) time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	w := rl.windows[key]
	if w == nil {
		return 0
	}
	now := rl.now()
	w.cleanup(now)

	var wait time.Duration
	if rl.requestsPerMinute > 0 && len(w.minute) >= rl.requestsPerMinute {
		wait = w.minute[0].Add(time.Minute).Sub(now)
	}
	if rl.requestsPerHour > 0 && len(w.hour) >= rl.requestsPerHour {
		if d := w.hour[0].Add(time.Hour).Sub(now); d > wait {
			wait = d
		}
	}
	return wait
}

// cleanup removes expired entries from the time windows
func (w *window) cleanup(now time.Time) {
	w.minute = filterTimes(w.minute, now.Add(-time.Minute))
	w.hour = filterTimes(w.hour, now.Add(-time.Hour))
}

// filterTimes keeps only times after the cutoff
func filterTimes(times []time.Time, cutoff time.Time) []time.Time {
	result := make([]time.Time, 0, len(times))
	for _, t := range times {
		if t.After(cutoff) {
			result = append(result, t)
		}
	}
	return result
}

// Stats contains rate limiter statistics
type Stats struct {
	Enabled          bool `json:"enabled"`
	LimitPerMinute   int  `json:"limit_per_minute"`
	LimitPerHour     int  `json:"limit_per_hour"`
	TrackedKeys      int  `json:"tracked_keys"`
	RequestsLastHour int  `json:"requests_last_hour"`
}

// KeyStats contains the usage of a single key
type KeyStats struct {
	RequestsLastMinute  int `json:"requests_last_minute"`
	RequestsLastHour    int `json:"requests_last_hour"`
	RemainingThisMinute int `json:"remaining_this_minute"`
	RemainingThisHour   int `json:"remaining_this_hour"`
}

// GetStats returns current rate limiter statistics. Idle keys are pruned.
func (rl *RateLimiter) GetStats() Stats {
	if !rl.enabled {
		return Stats{Enabled: false}
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	stats := Stats{
		Enabled:        true,
		LimitPerMinute: rl.requestsPerMinute,
		LimitPerHour:   rl.requestsPerHour,
	}
	for key, w := range rl.windows {
		w.cleanup(now)
		if len(w.hour) == 0 {
			delete(rl.windows, key)
			continue
		}
		stats.TrackedKeys++
		stats.RequestsLastHour += len(w.hour)
	}
	return stats
}

// GetKeyStats returns the usage of key
func (rl *RateLimiter) GetKeyStats(key string) KeyStats {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	w := rl.windows[key]
	if w == nil {
		w = &window{}
	}
	w.cleanup(rl.now())

	return KeyStats{
		RequestsLastMinute:  len(w.minute),
		RequestsLastHour:    len(w.hour),
		RemainingThisMinute: max(0, rl.requestsPerMinute-len(w.minute)),
		RemainingThisHour:   max(0, rl.requestsPerHour-len(w.hour)),
	}
}

// Reset clears all tracked requests
func (rl *RateLimiter) Reset() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.windows = make(map[string]*window)
}
