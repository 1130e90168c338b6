// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mentorlik Contributors

package auth

import (
	"context"
	"net/mail"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Field limits shared by every role.
const (
	MaxNameLength  = 100
	MaxEmailLength = 100
)

// Account is a stored admin, mentor or student account.
type Account struct {
	ID            ulid.ULID
	Role          Role
	Name          string
	Email         string
	PasswordHash  string
	EmailVerified bool
	Profile       Profile
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// MarkEmailVerified flips the verification flag. It is idempotent.
func (a *Account) MarkEmailVerified(now time.Time) {
	if a.EmailVerified {
		return
	}
	a.EmailVerified = true
	a.UpdatedAt = now
}

// Registration carries the plaintext input of a sign-up request.
// Password length is validated by the request schema before it gets here.
type Registration struct {
	Name     string
	Email    string
	Password string
	Profile  Profile
}

// NewAccount validates reg against role and builds an unsaved account.
// passwordHash must already be hashed.
func NewAccount(role Role, reg Registration, passwordHash string, now time.Time) (*Account, error) {
	email := NormalizeEmail(reg.Email)
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if len(reg.Name) > MaxNameLength {
		return nil, oops.Code("AUTH_INVALID_REGISTRATION").
			With("max", MaxNameLength).
			Errorf("name must be at most %d characters", MaxNameLength)
	}
	if reg.Profile == nil {
		return nil, oops.Code("AUTH_INVALID_REGISTRATION").
			With("role", role.String()).
			Errorf("profile is required")
	}
	if reg.Profile.Role() != role {
		return nil, oops.Code("AUTH_INVALID_REGISTRATION").
			With("role", role.String()).
			With("profile_role", reg.Profile.Role().String()).
			Errorf("profile does not match role")
	}
	if passwordHash == "" {
		return nil, oops.Code("AUTH_INVALID_REGISTRATION").Errorf("password hash cannot be empty")
	}

	return &Account{
		ID:            ulid.Make(),
		Role:          role,
		Name:          reg.Name,
		Email:         email,
		PasswordHash:  passwordHash,
		EmailVerified: !role.RequiresVerification(),
		Profile:       reg.Profile,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// ValidateEmail checks an already normalized address.
func ValidateEmail(email string) error {
	if email == "" {
		return oops.Code("AUTH_INVALID_REGISTRATION").Errorf("email cannot be empty")
	}
	if len(email) > MaxEmailLength {
		return oops.Code("AUTH_INVALID_REGISTRATION").
			With("max", MaxEmailLength).
			Errorf("email must be at most %d characters", MaxEmailLength)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return oops.Code("AUTH_INVALID_REGISTRATION").With("email", email).Errorf("invalid email address")
	}
	return nil
}

// AccountRepository persists the accounts of a single role.
type AccountRepository interface {
	// GetByEmail returns ErrNotFound if no account has the given email.
	GetByEmail(ctx context.Context, email string) (*Account, error)

	// ExistsByEmail reports whether an account with the email exists.
	ExistsByEmail(ctx context.Context, email string) (bool, error)

	// GetByID returns ErrNotFound if no account has the given ID.
	GetByID(ctx context.Context, id ulid.ULID) (*Account, error)

	// Save inserts the account or updates it by ID. A duplicate email fails
	// with code AUTH_EMAIL_EXISTS.
	Save(ctx context.Context, account *Account) error
}
