// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mentorlik Contributors

package auth

import (
	"context"

	"github.com/samber/oops"
)

// Refresher exchanges a refresh token for a new token pair. The role claim
// selects the handler, so the account is reloaded from its own store.
type Refresher struct {
	router *Router
	signer *TokenSigner
}

// NewRefresher creates a Refresher.
func NewRefresher(router *Router, signer *TokenSigner) (*Refresher, error) {
	if router == nil {
		return nil, oops.Errorf("router is required")
	}
	if signer == nil {
		return nil, oops.Errorf("token signer is required")
	}
	return &Refresher{router: router, signer: signer}, nil
}

// Refresh validates refreshToken and reissues tokens for its subject.
// Any failure to trust the token surfaces as TOKEN_INVALID.
func (r *Refresher) Refresh(ctx context.Context, refreshToken string) (*AccountDTO, error) {
	claims, err := r.signer.VerifyRefresh(refreshToken)
	if err != nil {
		return nil, err
	}
	id, err := claims.AccountID()
	if err != nil {
		return nil, err
	}
	handler, err := r.router.Resolve(claims.Role.String())
	if err != nil {
		// Resolve's own code would leak which check failed.
		return nil, oops.Code("TOKEN_INVALID").With("role", claims.Role.String()).Errorf("invalid token")
	}
	return handler.Reissue(ctx, id)
}
