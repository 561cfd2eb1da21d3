package ratelimit

import (
	"context"
	"sync"
	"time"
)

// record tracks one caller's current window.
type record struct {
	windowStart time.Time
	count       int
}

// FixedWindowLimiter is the in-memory fixed-window counter. Records
// are created on a caller's first request and reclaimed by a periodic
// sweep once their window has long expired.
type FixedWindowLimiter struct {
	window time.Duration
	limit  int

	mu      sync.Mutex
	records map[string]*record

	// now is injectable for tests.
	now func() time.Time

	sweepStop chan struct{}
	sweepOnce sync.Once
}

// NewFixedWindow creates an in-memory limiter with the given window
// and per-window ceiling.
func NewFixedWindow(window time.Duration, limit int) *FixedWindowLimiter {
	return &FixedWindowLimiter{
		window:    window,
		limit:     limit,
		records:   make(map[string]*record),
		now:       time.Now,
		sweepStop: make(chan struct{}),
	}
}

// Admit implements Limiter. The call that opens a fresh window counts
// as the first request of that window.
func (l *FixedWindowLimiter) Admit(_ context.Context, callerID string) (bool, error) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.records[callerID]
	if !ok || now.Sub(rec.windowStart) >= l.window {
		l.records[callerID] = &record{windowStart: now, count: 1}
		return true, nil
	}

	if rec.count >= l.limit {
		return false, nil
	}

	rec.count++
	return true, nil
}

// Count returns the current window count for a caller, for inspection.
func (l *FixedWindowLimiter) Count(callerID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.records[callerID]
	if !ok || l.now().Sub(rec.windowStart) >= l.window {
		return 0
	}
	return rec.count
}

// StartSweep launches a background reaper that drops records whose
// window expired more than one interval ago, bounding memory for
// one-shot callers. Stop with StopSweep.
func (l *FixedWindowLimiter) StartSweep(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-l.sweepStop:
				return
			case <-ticker.C:
				l.sweep()
			}
		}
	}()
}

// StopSweep stops the background reaper. Safe to call multiple times.
func (l *FixedWindowLimiter) StopSweep() {
	l.sweepOnce.Do(func() { close(l.sweepStop) })
}

func (l *FixedWindowLimiter) sweep() {
	cutoff := l.now().Add(-2 * l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	for key, rec := range l.records {
		if rec.windowStart.Before(cutoff) {
			delete(l.records, key)
		}
	}
}

// SetClock overrides the time source. Test helper.
func (l *FixedWindowLimiter) SetClock(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
}
