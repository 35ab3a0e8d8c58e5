package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/mikey/email-classifier/internal/core"
	"go.uber.org/zap"
)

// MemoryLimiter is a process-local sliding-window limiter
type MemoryLimiter struct {
	entries     map[string][]time.Time
	mu          sync.Mutex
	limit       int
	window      time.Duration
	now         func() time.Time
	logger      *zap.Logger
	cleanupFreq time.Duration
	stopCh      chan struct{}
	stopOnce    sync.Once
}

// NewMemoryLimiter creates a new in-memory limiter.
// A positive cleanupFreq starts a background sweep of idle identities.
func NewMemoryLimiter(limit int, window time.Duration, cleanupFreq time.Duration, logger *zap.Logger) *MemoryLimiter {
	l := &MemoryLimiter{
		entries:     make(map[string][]time.Time),
		limit:       limit,
		window:      window,
		now:         time.Now,
		logger:      logger,
		cleanupFreq: cleanupFreq,
		stopCh:      make(chan struct{}),
	}

	if limit > 0 && cleanupFreq > 0 {
		go l.startCleanupTask()
	}

	return l
}

// Admit records a request for identity or rejects it with a *core.RateLimitError
func (l *MemoryLimiter) Admit(_ context.Context, identity string) error {
	if l.limit <= 0 {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	timestamps := prune(l.entries[identity], now.Add(-l.window))

	if len(timestamps) >= l.limit {
		l.entries[identity] = timestamps
		return &core.RateLimitError{RetryAfter: retryAfter(l.window, now.Sub(timestamps[0]))}
	}

	l.entries[identity] = append(timestamps, now)
	return nil
}

// Cleanup forgets identities with no request inside the current window
func (l *MemoryLimiter) Cleanup() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	windowStart := l.now().Add(-l.window)
	removed := 0
	for identity, timestamps := range l.entries {
		if len(timestamps) == 0 || !timestamps[len(timestamps)-1].After(windowStart) {
			delete(l.entries, identity)
			removed++
		}
	}

	l.logger.Debug("Cleaned up idle rate limit entries", zap.Int("removed_count", removed))
	return removed
}

// Size returns the number of tracked identities
func (l *MemoryLimiter) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (l *MemoryLimiter) startCleanupTask() {
	ticker := time.NewTicker(l.cleanupFreq)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.Cleanup()
		case <-l.stopCh:
			return
		}
	}
}

// Stop stops the background cleanup task
func (l *MemoryLimiter) Stop() {
	l.stopOnce.Do(func() { close(l.stopCh) })
}

// prune drops timestamps at or before windowStart; timestamps are ordered
func prune(timestamps []time.Time, windowStart time.Time) []time.Time {
	keep := 0
	for keep < len(timestamps) && !timestamps[keep].After(windowStart) {
		keep++
	}
	return timestamps[keep:]
}

// retryAfter returns the whole seconds until the oldest request leaves the window
func retryAfter(window, elapsed time.Duration) int {
	seconds := int(math.Ceil((window - elapsed).Seconds()))
	return max(seconds, 1)
}
