// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mentorlik Contributors

package auth

import (
	"sync"
	"time"
)

// Login throttling configuration.
const (
	// LockoutDuration is how long a role+email pair is refused after too many failures.
	LockoutDuration = 15 * time.Minute

	// LockoutThreshold is the number of consecutive failures that triggers a lockout.
	LockoutThreshold = 7

	// FailureWindow forgets failures older than this.
	FailureWindow = time.Hour
)

// RateLimitResult describes the throttle state of one role+email pair.
type RateLimitResult struct {
	Failures int

	// IsLockedOut indicates login is refused until LockoutRemaining passes.
	IsLockedOut      bool
	LockoutRemaining time.Duration
}

// CheckFailures evaluates the throttle state for a failure count at now.
// lockedUntil is the current lockout timestamp (nil if not locked).
func CheckFailures(failures int, lockedUntil *time.Time, now time.Time) RateLimitResult {
	result := RateLimitResult{Failures: failures}

	if IsLockedOut(lockedUntil, now) {
		result.IsLockedOut = true
		result.LockoutRemaining = lockedUntil.Sub(now)
		return result
	}
	if failures >= LockoutThreshold {
		result.IsLockedOut = true
		result.LockoutRemaining = LockoutDuration
	}
	return result
}

// IsLockedOut returns true if the lockout time is after now.
func IsLockedOut(lockedUntil *time.Time, now time.Time) bool {
	return lockedUntil != nil && lockedUntil.After(now)
}

// ComputeLockoutTime returns the lockout timestamp for the given failure count.
// Returns nil if failures < LockoutThreshold.
func ComputeLockoutTime(failures int, now time.Time) *time.Time {
	if failures < LockoutThreshold {
		return nil
	}
	lockout := now.Add(LockoutDuration)
	return &lockout
}

type throttleEntry struct {
	failures    int
	lastFailure time.Time
	lockedUntil *time.Time
}

// LoginThrottle counts failed logins per role and email in process memory.
// Unknown emails are counted the same as known ones, so a lockout says
// nothing about which accounts exist. Safe for concurrent use.
type LoginThrottle struct {
	mu      sync.Mutex
	entries map[string]*throttleEntry
	now     func() time.Time
}

// NewLoginThrottle creates an empty throttle. now defaults to time.Now.
func NewLoginThrottle(now func() time.Time) *LoginThrottle {
	if now == nil {
		now = time.Now
	}
	return &LoginThrottle{entries: make(map[string]*throttleEntry), now: now}
}

func throttleKey(role Role, email string) string {
	return role.String() + "\x00" + NormalizeEmail(email)
}

// Check reports the current state without recording anything.
func (t *LoginThrottle) Check(role Role, email string) RateLimitResult {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	key := throttleKey(role, email)
	e, ok := t.entries[key]
	if !ok {
		return RateLimitResult{}
	}
	if t.stale(e, now) {
		delete(t.entries, key)
		return RateLimitResult{}
	}
	return CheckFailures(e.failures, e.lockedUntil, now)
}

// RecordFailure counts a failed attempt and returns the resulting state.
func (t *LoginThrottle) RecordFailure(role Role, email string) RateLimitResult {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	key := throttleKey(role, email)
	e, ok := t.entries[key]
	if !ok || t.stale(e, now) {
		e = &throttleEntry{}
		t.entries[key] = e
	}
	e.failures++
	e.lastFailure = now
	if e.lockedUntil == nil {
		e.lockedUntil = ComputeLockoutTime(e.failures, now)
	}
	return CheckFailures(e.failures, e.lockedUntil, now)
}

// Reset clears the pair after a successful login.
func (t *LoginThrottle) Reset(role Role, email string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, throttleKey(role, email))
}

// Prune drops entries whose lockout and failure window have both passed.
func (t *LoginThrottle) Prune() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	n := 0
	for key, e := range t.entries {
		if t.stale(e, now) {
			delete(t.entries, key)
			n++
		}
	}
	return n
}

// stale reports whether e no longer affects logins: any lockout has
// passed, or failures stopped before FailureWindow without one.
func (t *LoginThrottle) stale(e *throttleEntry, now time.Time) bool {
	if e.lockedUntil != nil {
		return !e.lockedUntil.After(now)
	}
	return now.Sub(e.lastFailure) > FailureWindow
}
