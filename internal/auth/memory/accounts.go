// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mentorlik Contributors

// Package memory provides in-process implementations of the auth
// repositories. State is lost on restart.
package memory

import (
	"context"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/mentorlik/mentorlik/internal/auth"
)

// AccountStore holds the accounts of one role.
type AccountStore struct {
	role    auth.Role
	mu      sync.RWMutex
	byID    map[ulid.ULID]*auth.Account
	byEmail map[string]ulid.ULID
}

// NewAccountStore creates an empty store for role.
func NewAccountStore(role auth.Role) *AccountStore {
	return &AccountStore{
		role:    role,
		byID:    make(map[ulid.ULID]*auth.Account),
		byEmail: make(map[string]ulid.ULID),
	}
}

// GetByEmail implements auth.AccountRepository.
func (s *AccountStore) GetByEmail(_ context.Context, email string) (*auth.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[auth.NormalizeEmail(email)]
	if !ok {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").With("role", s.role.String()).Wrap(auth.ErrNotFound)
	}
	return copyAccount(s.byID[id]), nil
}

// ExistsByEmail implements auth.AccountRepository.
func (s *AccountStore) ExistsByEmail(_ context.Context, email string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byEmail[auth.NormalizeEmail(email)]
	return ok, nil
}

// GetByID implements auth.AccountRepository.
func (s *AccountStore) GetByID(_ context.Context, id ulid.ULID) (*auth.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.byID[id]
	if !ok {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").With("account_id", id.String()).Wrap(auth.ErrNotFound)
	}
	return copyAccount(a), nil
}

// Save implements auth.AccountRepository. The email index is checked under
// the same lock as the write, so concurrent registrations of one email
// leave exactly one account.
func (s *AccountStore) Save(_ context.Context, account *auth.Account) error {
	if account == nil {
		return oops.Errorf("account is nil")
	}
	email := auth.NormalizeEmail(account.Email)

	s.mu.Lock()
	defer s.mu.Unlock()
	if owner, ok := s.byEmail[email]; ok && owner != account.ID {
		return oops.Code("AUTH_EMAIL_EXISTS").
			With("role", s.role.String()).
			Errorf("email is already in use")
	}
	if prev, ok := s.byID[account.ID]; ok && prev.Email != email {
		delete(s.byEmail, prev.Email)
	}
	stored := copyAccount(account)
	stored.Email = email
	s.byID[account.ID] = stored
	s.byEmail[email] = account.ID
	return nil
}

// Len returns the number of stored accounts.
func (s *AccountStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

func copyAccount(a *auth.Account) *auth.Account {
	c := *a
	return &c
}

var _ auth.AccountRepository = (*AccountStore)(nil)
