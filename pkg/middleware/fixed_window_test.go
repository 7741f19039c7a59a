package middleware

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixedWindowLimiter_AllowsUpToCap(t *testing.T) {
	l := NewFixedWindowLimiter(10, time.Minute)

	for i := 0; i < 10; i++ {
		allowed, _ := l.Allow("user-1")
		require.True(t, allowed, "request %d should be allowed", i+1)
	}

	allowed, retryAfter := l.Allow("user-1")
	assert.False(t, allowed)
	assert.Greater(t, retryAfter, time.Duration(0))
	assert.LessOrEqual(t, retryAfter, time.Minute)
}

func TestFixedWindowLimiter_KeysAreIndependent(t *testing.T) {
	l := NewFixedWindowLimiter(2, time.Minute)

	l.Allow("user-1")
	l.Allow("user-1")
	allowed, _ := l.Allow("user-1")
	require.False(t, allowed)

	allowed, _ = l.Allow("user-2")
	assert.True(t, allowed)
}

func TestFixedWindowLimiter_WindowResets(t *testing.T) {
	l := NewFixedWindowLimiter(1, 20*time.Millisecond)

	allowed, _ := l.Allow("user-1")
	require.True(t, allowed)
	allowed, _ = l.Allow("user-1")
	require.False(t, allowed)

	time.Sleep(30 * time.Millisecond)

	allowed, _ = l.Allow("user-1")
	assert.True(t, allowed)
}

func TestFixedWindowLimiter_RetryAfterShrinksOverTime(t *testing.T) {
	l := NewFixedWindowLimiter(1, time.Minute)

	l.Allow("user-1")
	_, first := l.Allow("user-1")

	time.Sleep(10 * time.Millisecond)
	_, second := l.Allow("user-1")

	assert.Less(t, second, first)
}

func TestFixedWindowLimiter_Concurrent(t *testing.T) {
	l := NewFixedWindowLimiter(50, time.Minute)

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowedCount := 0

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if ok, _ := l.Allow(fmt.Sprintf("user-%d", n%2)); ok {
				mu.Lock()
				allowedCount++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	// Two keys, 50 requests each, cap 50: everything squeaks through exactly.
	assert.Equal(t, 100, allowedCount)
}
