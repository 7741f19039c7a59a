package middleware

import (
	"sync"
	"time"
)

// FixedWindowLimiter is an in-process fixed-window request counter keyed by
// caller identity. Counters are not persisted; a restart resets all windows,
// which is acceptable for the non-critical endpoints it guards.
type FixedWindowLimiter struct {
	mu      sync.Mutex
	windows map[string]*window
	limit   int
	size    time.Duration
}

type window struct {
	count   int
	expires time.Time
}

// NewFixedWindowLimiter creates a limiter allowing limit requests per window.
func NewFixedWindowLimiter(limit int, size time.Duration) *FixedWindowLimiter {
	l := &FixedWindowLimiter{
		windows: make(map[string]*window),
		limit:   limit,
		size:    size,
	}

	go l.cleanupWindows()

	return l
}

// Allow reports whether the key may make another request. When denied,
// retryAfter is the time until the key's window expires, derived from the
// stored expiry rather than recomputed.
func (l *FixedWindowLimiter) Allow(key string) (allowed bool, retryAfter time.Duration) {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok || now.After(w.expires) {
		l.windows[key] = &window{count: 1, expires: now.Add(l.size)}
		return true, 0
	}

	if w.count >= l.limit {
		return false, w.expires.Sub(now)
	}

	w.count++
	return true, 0
}

// cleanupWindows drops expired windows so idle keys do not accumulate.
func (l *FixedWindowLimiter) cleanupWindows() {
	for {
		time.Sleep(3 * time.Minute)

		now := time.Now()
		l.mu.Lock()
		for key, w := range l.windows {
			if now.After(w.expires) {
				delete(l.windows, key)
			}
		}
		l.mu.Unlock()
	}
}
