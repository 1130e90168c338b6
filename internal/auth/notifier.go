// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mentorlik Contributors

package auth

import (
	"context"
	"log/slog"
	"net/url"
	"strings"

	"github.com/samber/oops"
)

// Notifier delivers verification mail. Delivery is fire-and-forget for the
// caller: a failure never rolls back stored state.
type Notifier interface {
	SendVerificationLink(ctx context.Context, email, token string, role Role) error
	SendVerifiedConfirmation(ctx context.Context, email string) error
}

// LogNotifier writes the messages it would send to a logger. It stands in
// for a mail transport in development.
type LogNotifier struct {
	baseURL string
	logger  *slog.Logger
}

// NewLogNotifier creates a LogNotifier building links under baseURL.
func NewLogNotifier(baseURL string, logger *slog.Logger) (*LogNotifier, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, oops.Code("NOTIFIER_INVALID_CONFIG").With("base_url", baseURL).Errorf("base URL must be absolute")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{baseURL: strings.TrimRight(baseURL, "/"), logger: logger}, nil
}

// VerificationLink returns the URL a user follows to verify email.
func (n *LogNotifier) VerificationLink(token string, role Role) string {
	q := url.Values{}
	q.Set("token", token)
	q.Set("userType", role.String())
	return n.baseURL + "/verify-email?" + q.Encode()
}

// SendVerificationLink implements Notifier.
func (n *LogNotifier) SendVerificationLink(ctx context.Context, email, token string, role Role) error {
	n.logger.InfoContext(ctx, "verification email",
		"to", email,
		"subject", "Mentorlik - Confirm your email address",
		"link", n.VerificationLink(token, role),
		"expires_in", VerificationTokenTTL.String())
	return nil
}

// SendVerifiedConfirmation implements Notifier.
func (n *LogNotifier) SendVerifiedConfirmation(ctx context.Context, email string) error {
	n.logger.InfoContext(ctx, "verification confirmation email",
		"to", email,
		"subject", "Mentorlik - Your email has been verified")
	return nil
}

var _ Notifier = (*LogNotifier)(nil)
