package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter implements an in-memory sliding window rate limiter.
// Enrollment files are large and fetches are expensive, so the limit
// applies per client IP before a request reaches the service layer.
type MemoryLimiter struct {
	config  Config
	entries sync.Map // map[string]*entry

	done chan struct{}
	wg   sync.WaitGroup
}

// entry holds the request timestamps for a single identifier.
type entry struct {
	mu         sync.Mutex
	timestamps []time.Time
}

// NewMemoryLimiter creates a new in-memory rate limiter.
func NewMemoryLimiter(cfg Config) *MemoryLimiter {
	m := &MemoryLimiter{
		config: cfg,
		done:   make(chan struct{}),
	}

	m.wg.Add(1)
	go m.cleanupLoop()

	return m
}

// Allow checks if a request from the given identifier is allowed.
func (m *MemoryLimiter) Allow(ctx context.Context, identifier string) (*Result, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	now := time.Now()
	windowStart := now.Add(-m.config.Window)

	entryVal, _ := m.entries.LoadOrStore(identifier, &entry{
		timestamps: make([]time.Time, 0, m.config.Requests),
	})
	e := entryVal.(*entry)

	e.mu.Lock()
	defer e.mu.Unlock()

	// Drop timestamps that have slid out of the window.
	valid := e.timestamps[:0]
	for _, ts := range e.timestamps {
		if ts.After(windowStart) {
			valid = append(valid, ts)
		}
	}
	e.timestamps = valid

	count := len(e.timestamps)
	remaining := m.config.Requests - count

	var resetAfter time.Duration
	if len(e.timestamps) > 0 {
		oldestExpiry := e.timestamps[0].Add(m.config.Window)
		resetAfter = oldestExpiry.Sub(now)
		if resetAfter < 0 {
			resetAfter = 0
		}
	}

	if count >= m.config.Requests {
		return &Result{
			Allowed:    false,
			Remaining:  0,
			ResetAfter: resetAfter,
			RetryAfter: resetAfter,
			Limit:      m.config.Requests,
		}, nil
	}

	e.timestamps = append(e.timestamps, now)

	return &Result{
		Allowed:    true,
		Remaining:  remaining - 1,
		ResetAfter: resetAfter,
		RetryAfter: 0,
		Limit:      m.config.Requests,
	}, nil
}

// Reset clears the rate limit state for an identifier.
func (m *MemoryLimiter) Reset(ctx context.Context, identifier string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	m.entries.Delete(identifier)
	return nil
}

// Close releases resources held by the limiter.
func (m *MemoryLimiter) Close() error {
	close(m.done)
	m.wg.Wait()
	return nil
}

// cleanupLoop periodically removes expired entries.
func (m *MemoryLimiter) cleanupLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.config.Window)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.cleanup()
		}
	}
}

// cleanup removes identifiers whose every timestamp has expired.
func (m *MemoryLimiter) cleanup() {
	windowStart := time.Now().Add(-m.config.Window)

	m.entries.Range(func(key, value any) bool {
		e := value.(*entry)

		e.mu.Lock()
		live := false
		for _, ts := range e.timestamps {
			if ts.After(windowStart) {
				live = true
				break
			}
		}
		e.mu.Unlock()

		if !live {
			m.entries.Delete(key)
		}
		return true
	})
}
