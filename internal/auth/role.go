// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mentorlik Contributors

package auth

import "strings"

// Role tags an account and selects its store and handler.
type Role string

// Known roles.
const (
	RoleAdmin   Role = "admin"
	RoleMentor  Role = "mentor"
	RoleStudent Role = "student"
)

// String returns the role tag.
func (r Role) String() string { return string(r) }

// RequiresVerification reports whether accounts of this role must verify
// their email before logging in.
func (r Role) RequiresVerification() bool {
	return r == RoleMentor || r == RoleStudent
}

// NormalizeRole trims and lower-cases a role name. It does not check that
// the role is registered anywhere.
func NormalizeRole(s string) Role {
	return Role(strings.ToLower(strings.TrimSpace(s)))
}

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
