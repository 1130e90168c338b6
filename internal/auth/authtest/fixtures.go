// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mentorlik Contributors

package authtest

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mentorlik/mentorlik/internal/auth"
	"github.com/mentorlik/mentorlik/internal/auth/memory"
)

// Secret is a signing key long enough for auth.NewTokenSigner.
//
//nolint:gosec // G101: test-only key
const Secret = "test-secret-0123456789abcdef0123456789"

// FastHasherParams keep argon2id cheap in tests.
var FastHasherParams = auth.HasherParams{Time: 1, Memory: 1024, Threads: 1, SaltLen: 16, KeyLen: 32}

// NewHasher returns an argon2id hasher with FastHasherParams.
func NewHasher() *auth.Argon2idHasher {
	return auth.NewArgon2idHasherWithParams(FastHasherParams)
}

// NewSigner returns a signer keyed with Secret.
func NewSigner(t *testing.T) *auth.TokenSigner {
	t.Helper()
	s, err := auth.NewTokenSigner(auth.SignerConfig{Secret: []byte(Secret)})
	require.NoError(t, err)
	return s
}

// Stack is a fully wired auth core over in-memory stores.
type Stack struct {
	Admins   *memory.AccountStore
	Mentors  *memory.AccountStore
	Students *memory.AccountStore
	Tokens   *memory.VerificationStore
	Outbox   *Outbox

	Signer       *auth.TokenSigner
	Router       *auth.Router
	Verification *auth.VerificationService
	Refresher    *auth.Refresher
}

// NewStack wires the three role handlers, the verification service and the
// refresher over fresh in-memory stores.
func NewStack(t *testing.T) *Stack {
	t.Helper()
	s := &Stack{
		Admins:   memory.NewAccountStore(auth.RoleAdmin),
		Mentors:  memory.NewAccountStore(auth.RoleMentor),
		Students: memory.NewAccountStore(auth.RoleStudent),
		Tokens:   memory.NewVerificationStore(),
		Outbox:   &Outbox{},
		Signer:   NewSigner(t),
	}
	hasher := NewHasher()

	admin, err := auth.NewAdminHandler(s.Admins, hasher, s.Signer)
	require.NoError(t, err)
	mentor, err := auth.NewMentorHandler(s.Mentors, hasher, s.Signer)
	require.NoError(t, err)
	student, err := auth.NewStudentHandler(s.Students, hasher, s.Signer)
	require.NoError(t, err)

	s.Router, err = auth.NewRouter(admin, mentor, student)
	require.NoError(t, err)

	s.Verification, err = auth.NewVerificationService(s.Tokens, s.Outbox,
		auth.WithActivation(auth.RoleMentor, s.Mentors),
		auth.WithActivation(auth.RoleStudent, s.Students))
	require.NoError(t, err)

	s.Refresher, err = auth.NewRefresher(s.Router, s.Signer)
	require.NoError(t, err)
	return s
}
