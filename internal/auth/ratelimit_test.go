// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mentorlik Contributors

package auth_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mentorlik/mentorlik/internal/auth"
	"github.com/mentorlik/mentorlik/internal/auth/authtest"
	"github.com/mentorlik/mentorlik/internal/auth/memory"
	"github.com/mentorlik/mentorlik/pkg/errutil"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestCheckFailures(t *testing.T) {
	now := time.Now()
	future := now.Add(10 * time.Minute)
	past := now.Add(-time.Minute)

	tests := []struct {
		name          string
		failures      int
		lockedUntil   *time.Time
		wantLocked    bool
		wantRemaining time.Duration
	}{
		{"no failures", 0, nil, false, 0},
		{"below threshold", auth.LockoutThreshold - 1, nil, false, 0},
		{"at threshold", auth.LockoutThreshold, nil, true, auth.LockoutDuration},
		{"active lockout", 1, &future, true, 10 * time.Minute},
		{"expired lockout", 2, &past, false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := auth.CheckFailures(tt.failures, tt.lockedUntil, now)
			assert.Equal(t, tt.wantLocked, got.IsLockedOut)
			assert.Equal(t, tt.wantRemaining, got.LockoutRemaining)
			assert.Equal(t, tt.failures, got.Failures)
		})
	}
}

func TestComputeLockoutTime(t *testing.T) {
	now := time.Now()
	assert.Nil(t, auth.ComputeLockoutTime(auth.LockoutThreshold-1, now))

	got := auth.ComputeLockoutTime(auth.LockoutThreshold, now)
	require.NotNil(t, got)
	assert.Equal(t, now.Add(auth.LockoutDuration), *got)
}

func TestIsLockedOut(t *testing.T) {
	now := time.Now()
	future := now.Add(time.Second)
	assert.False(t, auth.IsLockedOut(nil, now))
	assert.False(t, auth.IsLockedOut(&now, now), "lockout ends exactly at lockedUntil")
	assert.True(t, auth.IsLockedOut(&future, now))
}

func TestLoginThrottle_LocksAfterThreshold(t *testing.T) {
	clock := newFakeClock()
	th := auth.NewLoginThrottle(clock.Now)

	for i := 1; i < auth.LockoutThreshold; i++ {
		assert.False(t, th.RecordFailure(auth.RoleStudent, "a@x.com").IsLockedOut, "failure %d", i)
	}
	assert.True(t, th.RecordFailure(auth.RoleStudent, "A@X.com ").IsLockedOut, "email is normalized")
	assert.True(t, th.Check(auth.RoleStudent, "a@x.com").IsLockedOut)
	assert.False(t, th.Check(auth.RoleMentor, "a@x.com").IsLockedOut, "other roles are unaffected")

	clock.Advance(auth.LockoutDuration - time.Second)
	got := th.Check(auth.RoleStudent, "a@x.com")
	assert.True(t, got.IsLockedOut)
	assert.Equal(t, time.Second, got.LockoutRemaining)

	clock.Advance(time.Second)
	assert.False(t, th.Check(auth.RoleStudent, "a@x.com").IsLockedOut)
	assert.Equal(t, 0, th.Check(auth.RoleStudent, "a@x.com").Failures, "expired lockout starts over")
}

func TestLoginThrottle_ResetAndWindow(t *testing.T) {
	clock := newFakeClock()
	th := auth.NewLoginThrottle(clock.Now)

	th.RecordFailure(auth.RoleAdmin, "root@x.com")
	th.RecordFailure(auth.RoleAdmin, "root@x.com")
	th.Reset(auth.RoleAdmin, "root@x.com")
	assert.Equal(t, 0, th.Check(auth.RoleAdmin, "root@x.com").Failures)

	th.RecordFailure(auth.RoleAdmin, "root@x.com")
	clock.Advance(auth.FailureWindow + time.Second)
	assert.Equal(t, 1, th.RecordFailure(auth.RoleAdmin, "root@x.com").Failures, "old failures are forgotten")
}

func TestLoginThrottle_Prune(t *testing.T) {
	clock := newFakeClock()
	th := auth.NewLoginThrottle(clock.Now)

	th.RecordFailure(auth.RoleStudent, "old@x.com")
	clock.Advance(auth.FailureWindow + time.Second)
	th.RecordFailure(auth.RoleStudent, "new@x.com")

	assert.Equal(t, 1, th.Prune())
	assert.Equal(t, 1, th.Check(auth.RoleStudent, "new@x.com").Failures)
}

func TestAccountHandler_LoginThrottle(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	throttle := auth.NewLoginThrottle(clock.Now)
	store := memory.NewAccountStore(auth.RoleAdmin)

	h, err := auth.NewAdminHandler(store, authtest.NewHasher(), authtest.NewSigner(t), auth.WithLoginThrottle(throttle))
	require.NoError(t, err)
	_, err = h.Register(ctx, adminRegistration("root@x.com"))
	require.NoError(t, err)

	for i := 0; i < auth.LockoutThreshold; i++ {
		_, err = h.Login(ctx, "root@x.com", "wrong-password")
		errutil.AssertErrorCode(t, err, "AUTH_INVALID_CREDENTIALS")
	}

	_, err = h.Login(ctx, "root@x.com", "s3cret-pass")
	errutil.AssertErrorCode(t, err, "AUTH_TOO_MANY_ATTEMPTS")

	clock.Advance(auth.LockoutDuration)
	dto, err := h.Login(ctx, "root@x.com", "s3cret-pass")
	require.NoError(t, err)
	assert.NotEmpty(t, dto.Token)
}

func TestAccountHandler_LoginThrottleCountsUnknownEmails(t *testing.T) {
	ctx := context.Background()
	throttle := auth.NewLoginThrottle(nil)
	h, err := auth.NewStudentHandler(memory.NewAccountStore(auth.RoleStudent), authtest.NewHasher(), authtest.NewSigner(t),
		auth.WithLoginThrottle(throttle))
	require.NoError(t, err)

	for i := 0; i < auth.LockoutThreshold; i++ {
		_, err = h.Login(ctx, "ghost@x.com", "whatever")
		errutil.AssertErrorCode(t, err, "AUTH_INVALID_CREDENTIALS")
	}
	_, err = h.Login(ctx, "ghost@x.com", "whatever")
	errutil.AssertErrorCode(t, err, "AUTH_TOO_MANY_ATTEMPTS")
}

func TestAccountHandler_SuccessfulLoginResetsThrottle(t *testing.T) {
	ctx := context.Background()
	throttle := auth.NewLoginThrottle(nil)
	store := memory.NewAccountStore(auth.RoleAdmin)
	h, err := auth.NewAdminHandler(store, authtest.NewHasher(), authtest.NewSigner(t), auth.WithLoginThrottle(throttle))
	require.NoError(t, err)
	_, err = h.Register(ctx, adminRegistration("root@x.com"))
	require.NoError(t, err)

	for i := 0; i < auth.LockoutThreshold-1; i++ {
		_, _ = h.Login(ctx, "root@x.com", "wrong-password")
	}
	_, err = h.Login(ctx, "root@x.com", "s3cret-pass")
	require.NoError(t, err)
	assert.Equal(t, 0, throttle.Check(auth.RoleAdmin, "root@x.com").Failures)
}
