// Copyright (c) 2026 Aegis. All rights reserved.
// Author: m.krogh.dev@gmail.com

/*
Package ratelimit implements a fixed-window request counter keyed by
identifier and operation class.

Unlike the transport-level token bucket guarding raw request volume, this
limiter throttles *operations*: five login attempts per minute per email,
three reset requests per minute per address. A window record is created on
the first request after expiry and counts increment until the window resets;
requests beyond the allowance are rejected without incrementing further, so
a flood of rejected attempts cannot stretch the lockout.

Concurrency:

The window table is a single mutex-guarded map. Concurrent checks for the
same identifier are expected and routine; the critical section is a map
lookup plus an integer compare, so contention is negligible at auth-endpoint
volumes. A periodic sweep removes expired windows to bound memory.
*/
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Policy describes one operation class's allowance.
type Policy struct {
	// Window is the fixed counting interval.
	Window time.Duration
	// MaxRequests is the number of requests allowed per window.
	MaxRequests int
}

// Default policies per operation class.
var (
	// AuthPolicy throttles credential checks: login, register, refresh.
	AuthPolicy = Policy{Window: time.Minute, MaxRequests: 5}

	// ResetPolicy throttles password-recovery entry points.
	ResetPolicy = Policy{Window: time.Minute, MaxRequests: 3}

	// GeneralPolicy is the catch-all for remaining endpoints.
	GeneralPolicy = Policy{Window: time.Minute, MaxRequests: 100}
)

// window is one identifier's live counting state.
type window struct {
	count   int
	resetAt time.Time
}

// Limiter is a concurrency-safe fixed-window counter table.
type Limiter struct {
	mu      sync.Mutex
	windows map[string]*window

	// now is injectable for deterministic tests.
	now func() time.Time
}

// New constructs an empty limiter.
func New() *Limiter {
	return &Limiter{
		windows: make(map[string]*window),
		now:     time.Now,
	}
}

/*
Check records one request for identifier under the given class and policy.

Parameters:
  - identifier: The throttled subject (normalized email or client IP).
  - class: The operation class, part of the counting key.
  - policy: Window length and allowance.

Returns:
  - bool: true when the request is within the allowance, false when rejected.
*/
func (l *Limiter) Check(identifier, class string, policy Policy) bool {
	key := identifier + ":" + class
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	current, exists := l.windows[key]

	// First request, or the reset instant has been reached: open a fresh
	// window with this request already counted. The boundary is inclusive,
	// so a request at exactly resetAt starts the new window.
	if !exists || !now.Before(current.resetAt) {
		l.windows[key] = &window{count: 1, resetAt: now.Add(policy.Window)}
		return true
	}

	// Saturate: rejected requests do not increment, so the window resets
	// on schedule no matter how hard the client hammers.
	if current.count >= policy.MaxRequests {
		return false
	}

	current.count++
	return true
}

// Sweep removes windows whose reset instant has passed.
func (l *Limiter) Sweep() {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	for key, current := range l.windows {
		if !now.Before(current.resetAt) {
			delete(l.windows, key)
		}
	}
}

// StartSweeper launches a background goroutine that sweeps expired windows
// at the given interval until the context is cancelled.
func (l *Limiter) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				l.Sweep()
			case <-ctx.Done():
				return
			}
		}
	}()
}
