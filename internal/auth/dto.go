// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mentorlik Contributors

package auth

import "time"

// AccountDTO is the outward view of an account. It never carries the
// password hash.
type AccountDTO struct {
	ID            string    `json:"id"`
	Role          Role      `json:"role"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	EmailVerified bool      `json:"email_verified"`
	Profile       Profile   `json:"profile"`
	CreatedAt     time.Time `json:"created_at"`

	// Set on login, refresh and on registration of accounts that need no verification.
	Token          string     `json:"token,omitempty"`
	RefreshToken   string     `json:"refresh_token,omitempty"`
	TokenExpiresAt *time.Time `json:"token_expires_at,omitempty"`
}

// NewAccountDTO maps an account to its DTO.
func NewAccountDTO(a *Account) *AccountDTO {
	return &AccountDTO{
		ID:            a.ID.String(),
		Role:          a.Role,
		Name:          a.Name,
		Email:         a.Email,
		EmailVerified: a.EmailVerified,
		Profile:       a.Profile,
		CreatedAt:     a.CreatedAt,
	}
}

// WithTokens attaches an issued token pair.
func (d *AccountDTO) WithTokens(pair *TokenPair) *AccountDTO {
	d.Token = pair.AccessToken
	d.RefreshToken = pair.RefreshToken
	exp := pair.AccessExpiresAt
	d.TokenExpiresAt = &exp
	return d
}
