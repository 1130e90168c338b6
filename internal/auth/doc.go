// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mentorlik Contributors

// Package auth implements account authentication and email verification
// for the admin, mentor and student roles.
//
// # Dispatch
//
// A Router maps a role name to its RoleHandler. Handlers are built with
// NewAdminHandler, NewMentorHandler and NewStudentHandler, each bound to
// the AccountRepository of its own role.
//
// # Tokens
//
// TokenSigner issues and verifies HS256 bearer tokens. VerificationService
// owns the single-use email verification tokens and activates accounts on
// redemption.
//
// Every error returned across the package boundary is an oops error with a
// stable code (AUTH_*, TOKEN_INVALID, VERIFY_*).
package auth
