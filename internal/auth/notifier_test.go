// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mentorlik Contributors

package auth_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mentorlik/mentorlik/internal/auth"
	"github.com/mentorlik/mentorlik/pkg/errutil"
)

func TestNewLogNotifier_RequiresAbsoluteURL(t *testing.T) {
	for _, base := range []string{"", "/verify", "localhost:3000", "://bad"} {
		_, err := auth.NewLogNotifier(base, nil)
		require.Error(t, err, base)
		errutil.AssertErrorCode(t, err, "NOTIFIER_INVALID_CONFIG")
	}
}

func TestLogNotifier_VerificationLink(t *testing.T) {
	n, err := auth.NewLogNotifier("https://mentorlik.example/", nil)
	require.NoError(t, err)
	assert.Equal(t,
		"https://mentorlik.example/verify-email?token=abc123&userType=student",
		n.VerificationLink("abc123", auth.RoleStudent))
}

func TestLogNotifier_Sends(t *testing.T) {
	var buf bytes.Buffer
	n, err := auth.NewLogNotifier("http://localhost:3000", slog.New(slog.NewTextHandler(&buf, nil)))
	require.NoError(t, err)

	require.NoError(t, n.SendVerificationLink(context.Background(), "a@x.com", "tok", auth.RoleMentor))
	require.NoError(t, n.SendVerifiedConfirmation(context.Background(), "a@x.com"))

	out := buf.String()
	assert.Contains(t, out, "http://localhost:3000/verify-email?token=tok&userType=mentor")
	assert.Contains(t, out, "Your email has been verified")
}
