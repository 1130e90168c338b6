// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mentorlik Contributors

package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/mentorlik/mentorlik/internal/auth"
)

// VerificationStore holds verification tokens keyed by ID.
type VerificationStore struct {
	mu     sync.Mutex
	byID   map[ulid.ULID]*auth.VerificationToken
	byHash map[string]ulid.ULID
}

// NewVerificationStore creates an empty store.
func NewVerificationStore() *VerificationStore {
	return &VerificationStore{
		byID:   make(map[ulid.ULID]*auth.VerificationToken),
		byHash: make(map[string]ulid.ULID),
	}
}

// Create implements auth.VerificationTokenRepository.
func (s *VerificationStore) Create(_ context.Context, token *auth.VerificationToken) error {
	if token == nil {
		return oops.Errorf("verification token is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.byHash[token.TokenHash]; dup {
		return oops.Code("VERIFY_TOKEN_DUPLICATE").Errorf("token hash already stored")
	}
	s.byID[token.ID] = copyToken(token)
	s.byHash[token.TokenHash] = token.ID
	return nil
}

// GetByTokenHash implements auth.VerificationTokenRepository.
func (s *VerificationStore) GetByTokenHash(_ context.Context, tokenHash string) (*auth.VerificationToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byHash[tokenHash]
	if !ok {
		return nil, oops.Code("VERIFY_TOKEN_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	return copyToken(s.byID[id]), nil
}

// MarkUsed implements auth.VerificationTokenRepository as a compare-and-set
// on the used flag.
func (s *VerificationStore) MarkUsed(_ context.Context, id ulid.ULID, usedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.byID[id]
	if !ok {
		return oops.With("token_id", id.String()).Wrap(auth.ErrNotFound)
	}
	if t.Used {
		return auth.ErrTokenAlreadyUsed
	}
	t.Used = true
	at := usedAt
	t.UsedAt = &at
	return nil
}

// ListByEmail implements auth.VerificationTokenRepository.
func (s *VerificationStore) ListByEmail(_ context.Context, email string, used bool) ([]*auth.VerificationToken, error) {
	email = auth.NormalizeEmail(email)
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*auth.VerificationToken
	for _, t := range s.byID {
		if t.Email == email && t.Used == used {
			out = append(out, copyToken(t))
		}
	}
	slices.SortFunc(out, func(a, b *auth.VerificationToken) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out, nil
}

// DeleteExpired implements auth.VerificationTokenRepository.
func (s *VerificationStore) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, t := range s.byID {
		if t.ExpiresAt.Before(before) {
			delete(s.byHash, t.TokenHash)
			delete(s.byID, id)
			n++
		}
	}
	return n, nil
}

func copyToken(t *auth.VerificationToken) *auth.VerificationToken {
	c := *t
	if t.UsedAt != nil {
		at := *t.UsedAt
		c.UsedAt = &at
	}
	return &c
}

var _ auth.VerificationTokenRepository = (*VerificationStore)(nil)
