package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter implements a sliding-window in-memory rate limiter.
//
// Per key it keeps the timestamps of requests inside the trailing window.
// Each check prunes expired entries, compares the pruned length against the
// limit, and appends the current timestamp only on admission, so rejected
// requests do not extend the window. State is transient and rebuilt from
// empty on process restart.
type MemoryLimiter struct {
	mu      sync.Mutex
	windows map[string][]time.Time
}

// NewMemoryLimiter constructs a MemoryLimiter.
func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{
		windows: make(map[string][]time.Time),
	}
}

// Allow checks whether the request should be allowed in the current window.
func (l *MemoryLimiter) Allow(_ context.Context, key string, limit int, now time.Time) (Result, error) {
	if limit <= 0 || key == "" {
		return Result{Allowed: true}, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := now.Add(-Window)
	entries := l.windows[key]

	kept := entries[:0]
	for _, ts := range entries {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}

	if len(kept) >= limit {
		l.windows[key] = kept
		return Result{Allowed: false, Remaining: 0, Reset: kept[0].Add(Window)}, nil
	}

	kept = append(kept, now)
	l.windows[key] = kept
	return Result{Allowed: true, Remaining: limit - len(kept), Reset: kept[0].Add(Window)}, nil
}

// Prune drops keys whose windows are fully expired. Called periodically so
// idle identities do not pin memory forever.
func (l *MemoryLimiter) Prune(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := now.Add(-Window)
	pruned := 0
	for key, entries := range l.windows {
		if len(entries) == 0 || !entries[len(entries)-1].After(cutoff) {
			delete(l.windows, key)
			pruned++
		}
	}
	return pruned
}
