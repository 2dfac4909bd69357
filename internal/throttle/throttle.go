// Package throttle spaces out accepted requests so that two calls sharing a
// key start at least a fixed interval apart.
package throttle

import (
	"context"
	"sync"
	"time"

	"tattooz/internal/retry"
)

// GlobalKey is the key used when the throttle is not partitioned per client.
const GlobalKey = "global"

// Throttle delays the caller until its reserved start time.
type Throttle interface {
	// Wait blocks until the caller may start and returns how long it waited.
	Wait(ctx context.Context, key string) (time.Duration, error)
}

// Memory is an in-process Throttle. Each Wait reserves
// max(now, last+interval) under a lock before sleeping, so concurrent callers
// queue up instead of racing past the check.
type Memory struct {
	interval time.Duration
	now      func() time.Time
	sleep    retry.SleepFunc

	mu   sync.Mutex
	last map[string]time.Time
}

// MemoryOption customizes a Memory throttle.
type MemoryOption func(*Memory)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) { m.now = now }
}

// WithSleep replaces the real timer.
func WithSleep(sleep retry.SleepFunc) MemoryOption {
	return func(m *Memory) { m.sleep = sleep }
}

// NewMemory returns a throttle that spaces calls per key by interval.
func NewMemory(interval time.Duration, opts ...MemoryOption) *Memory {
	m := &Memory{
		interval: interval,
		now:      time.Now,
		sleep:    retry.Sleep,
		last:     make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Wait reserves the next start for key and sleeps until it. A cancelled wait
// gives its reservation back when nobody queued after it.
func (m *Memory) Wait(ctx context.Context, key string) (time.Duration, error) {
	if m.interval <= 0 {
		return 0, ctx.Err()
	}
	m.mu.Lock()
	now := m.now()
	start := now
	last, hadLast := m.last[key]
	if hadLast {
		if next := last.Add(m.interval); next.After(now) {
			start = next
		}
	}
	m.last[key] = start
	m.prune(now)
	m.mu.Unlock()

	wait := start.Sub(now)
	if wait <= 0 {
		return 0, nil
	}
	if err := m.sleep(ctx, wait); err != nil {
		m.release(key, start, last, hadLast)
		return 0, err
	}
	return wait, nil
}

// release hands back an abandoned reservation unless a later caller has
// already queued behind it.
func (m *Memory) release(key string, start, prev time.Time, hadPrev bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.last[key]; !ok || !cur.Equal(start) {
		return
	}
	if hadPrev {
		m.last[key] = prev
	} else {
		delete(m.last, key)
	}
}

// prune drops keys whose reservation is long past so per-client keys do not
// accumulate. Callers hold m.mu.
func (m *Memory) prune(now time.Time) {
	if len(m.last) < 1024 {
		return
	}
	for key, last := range m.last {
		if now.Sub(last) > m.interval {
			delete(m.last, key)
		}
	}
}

var _ Throttle = (*Memory)(nil)
