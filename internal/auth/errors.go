// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mentorlik Contributors

package auth

import (
	"errors"

	"github.com/samber/oops"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrTokenAlreadyUsed is returned by MarkUsed when the token was redeemed concurrently.
var ErrTokenAlreadyUsed = errors.New("verification token already used")

// ErrTokenExpired is wrapped by TokenSigner for well-signed tokens past their expiry.
// It never changes the boundary code, which stays TOKEN_INVALID.
var ErrTokenExpired = errors.New("token expired")

// ErrEmptyPassword is returned when attempting to hash an empty password.
var ErrEmptyPassword = oops.Code("AUTH_EMPTY_PASSWORD").Errorf("password cannot be empty")

// errInvalidCredentials is shared by the not-found and password-mismatch paths
// so the two are identical to the caller.
func errInvalidCredentials() error {
	return oops.Code("AUTH_INVALID_CREDENTIALS").Errorf("invalid credentials")
}
