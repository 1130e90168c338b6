// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mentorlik Contributors

package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Verification token configuration.
const (
	VerificationTokenBytes = 32             // 64 hex chars
	VerificationTokenTTL   = 24 * time.Hour // fixed lifetime
)

// VerificationState is derived from Used and ExpiresAt; only Used is stored.
type VerificationState string

// Verification token states.
const (
	VerificationPending VerificationState = "pending"
	VerificationUsed    VerificationState = "used"
	VerificationExpired VerificationState = "expired"
)

// VerificationToken is a single-use proof of control over an email address.
// Email, AccountID and Role are copied from the account at issue time.
type VerificationToken struct {
	ID        ulid.ULID
	TokenHash string
	Email     string
	AccountID ulid.ULID
	Role      Role
	CreatedAt time.Time
	ExpiresAt time.Time
	Used      bool
	UsedAt    *time.Time
}

// NewVerificationToken builds a pending token for the account. tokenHash is
// the hash returned by GenerateVerificationToken.
func NewVerificationToken(tokenHash, email string, accountID ulid.ULID, role Role, now time.Time) (*VerificationToken, error) {
	if tokenHash == "" {
		return nil, oops.Code("VERIFY_TOKEN_INVALID").Errorf("token hash cannot be empty")
	}
	if accountID.IsZero() {
		return nil, oops.Code("VERIFY_TOKEN_INVALID").Errorf("account ID cannot be zero")
	}
	if role == "" {
		return nil, oops.Code("VERIFY_TOKEN_INVALID").Errorf("role cannot be empty")
	}
	return &VerificationToken{
		ID:        ulid.Make(),
		TokenHash: tokenHash,
		Email:     NormalizeEmail(email),
		AccountID: accountID,
		Role:      role,
		CreatedAt: now,
		ExpiresAt: now.Add(VerificationTokenTTL),
	}, nil
}

// IsExpired reports whether now is past ExpiresAt.
func (t *VerificationToken) IsExpired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// State returns the token state at now. Used takes precedence over expiry.
func (t *VerificationToken) State(now time.Time) VerificationState {
	switch {
	case t.Used:
		return VerificationUsed
	case t.IsExpired(now):
		return VerificationExpired
	default:
		return VerificationPending
	}
}

// GenerateVerificationToken returns a random plaintext token and its hash.
// The plaintext goes into the link; only the hash is stored.
func GenerateVerificationToken() (token, hash string, err error) {
	b := make([]byte, VerificationTokenBytes)
	if _, err = rand.Read(b); err != nil {
		return "", "", oops.Code("VERIFY_TOKEN_GENERATE_FAILED").Wrap(err)
	}
	token = hex.EncodeToString(b)
	return token, HashVerificationToken(token), nil
}

// HashVerificationToken computes the stored form of a plaintext token.
func HashVerificationToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// VerificationTokenRepository persists verification tokens.
type VerificationTokenRepository interface {
	// Create stores a new token.
	Create(ctx context.Context, token *VerificationToken) error

	// GetByTokenHash returns ErrNotFound if no token has the hash.
	GetByTokenHash(ctx context.Context, tokenHash string) (*VerificationToken, error)

	// MarkUsed sets used=true only if the token is still unused. It returns
	// ErrTokenAlreadyUsed when another caller got there first.
	MarkUsed(ctx context.Context, id ulid.ULID, usedAt time.Time) error

	// ListByEmail returns the tokens issued to email with the given used flag,
	// newest first.
	ListByEmail(ctx context.Context, email string, used bool) ([]*VerificationToken, error)

	// DeleteExpired removes tokens that expired before the given time.
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
