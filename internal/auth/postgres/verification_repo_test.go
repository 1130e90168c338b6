// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mentorlik Contributors

package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mentorlik/mentorlik/internal/auth"
	"github.com/mentorlik/mentorlik/internal/auth/postgres"
	"github.com/mentorlik/mentorlik/pkg/errutil"
)

var tokenColumns = []string{"id", "token_hash", "email", "account_id", "role", "created_at", "expires_at", "used", "used_at"}

func newMockTokenRepo(t *testing.T) (*postgres.VerificationTokenRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err, "failed to create mock")
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		mock.Close()
	})
	return postgres.NewVerificationTokenRepository(mock), mock
}

func anyArgs(n int) []any {
	args := make([]any, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func TestVerificationTokenRepository_Create(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	token, err := auth.NewVerificationToken("hash", "a@x.com", ulid.Make(), auth.RoleStudent, now)
	require.NoError(t, err)

	t.Run("inserts all columns", func(t *testing.T) {
		repo, mock := newMockTokenRepo(t)
		mock.ExpectExec(`INSERT INTO verification_tokens`).
			WithArgs(token.ID.String(), "hash", "a@x.com", token.AccountID.String(), "student",
				now, now.Add(auth.VerificationTokenTTL), false, pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		require.NoError(t, repo.Create(ctx, token))
	})

	t.Run("database error", func(t *testing.T) {
		repo, mock := newMockTokenRepo(t)
		mock.ExpectExec(`INSERT INTO verification_tokens`).
			WithArgs(anyArgs(9)...).
			WillReturnError(errors.New("connection refused"))

		err := repo.Create(ctx, token)
		errutil.AssertErrorCode(t, err, "VERIFY_CREATE_FAILED")
	})
}

func TestVerificationTokenRepository_GetByTokenHash(t *testing.T) {
	ctx := context.Background()
	id, accountID := ulid.Make(), ulid.Make()
	created := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	usedAt := created.Add(time.Hour)

	t.Run("pending token", func(t *testing.T) {
		repo, mock := newMockTokenRepo(t)
		mock.ExpectQuery(`FROM verification_tokens WHERE token_hash = \$1`).
			WithArgs("hash").
			WillReturnRows(pgxmock.NewRows(tokenColumns).
				AddRow(id.String(), "hash", "a@x.com", accountID.String(), "mentor", created, created.Add(24*time.Hour), false, nil))

		token, err := repo.GetByTokenHash(ctx, "hash")
		require.NoError(t, err)
		assert.Equal(t, id, token.ID)
		assert.Equal(t, accountID, token.AccountID)
		assert.Equal(t, auth.RoleMentor, token.Role)
		assert.False(t, token.Used)
		assert.Nil(t, token.UsedAt)
		assert.Equal(t, auth.VerificationPending, token.State(created))
	})

	t.Run("used token", func(t *testing.T) {
		repo, mock := newMockTokenRepo(t)
		mock.ExpectQuery(`FROM verification_tokens`).
			WithArgs("hash").
			WillReturnRows(pgxmock.NewRows(tokenColumns).
				AddRow(id.String(), "hash", "a@x.com", accountID.String(), "student", created, created.Add(24*time.Hour), true, &usedAt))

		token, err := repo.GetByTokenHash(ctx, "hash")
		require.NoError(t, err)
		assert.True(t, token.Used)
		require.NotNil(t, token.UsedAt)
		assert.Equal(t, usedAt, *token.UsedAt)
	})

	t.Run("unknown hash", func(t *testing.T) {
		repo, mock := newMockTokenRepo(t)
		mock.ExpectQuery(`FROM verification_tokens`).
			WithArgs("missing").
			WillReturnRows(pgxmock.NewRows(tokenColumns))

		_, err := repo.GetByTokenHash(ctx, "missing")
		require.ErrorIs(t, err, auth.ErrNotFound)
	})

	t.Run("corrupt account id", func(t *testing.T) {
		repo, mock := newMockTokenRepo(t)
		mock.ExpectQuery(`FROM verification_tokens`).
			WithArgs("hash").
			WillReturnRows(pgxmock.NewRows(tokenColumns).
				AddRow(id.String(), "hash", "a@x.com", "7", "student", created, created, false, nil))

		_, err := repo.GetByTokenHash(ctx, "hash")
		errutil.AssertErrorCode(t, err, "VERIFY_INVALID_ACCOUNT_ID")
	})
}

func TestVerificationTokenRepository_MarkUsed(t *testing.T) {
	ctx := context.Background()
	id := ulid.Make()
	at := time.Date(2026, 4, 1, 11, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		setup   func(mock pgxmock.PgxPoolIface)
		wantErr error
		code    string
	}{
		{
			name: "first redemption updates one row",
			setup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`UPDATE verification_tokens SET used = TRUE, used_at = \$2 WHERE id = \$1 AND used = FALSE`).
					WithArgs(id.String(), at).
					WillReturnResult(pgxmock.NewResult("UPDATE", 1))
			},
		},
		{
			name: "lost race updates nothing",
			setup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`UPDATE verification_tokens`).
					WithArgs(id.String(), at).
					WillReturnResult(pgxmock.NewResult("UPDATE", 0))
			},
			wantErr: auth.ErrTokenAlreadyUsed,
		},
		{
			name: "database error",
			setup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`UPDATE verification_tokens`).
					WithArgs(id.String(), at).
					WillReturnError(errors.New("deadlock detected"))
			},
			code: "VERIFY_MARK_USED_FAILED",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := newMockTokenRepo(t)
			tt.setup(mock)

			err := repo.MarkUsed(ctx, id, at)
			switch {
			case tt.wantErr != nil:
				require.ErrorIs(t, err, tt.wantErr)
			case tt.code != "":
				errutil.AssertErrorCode(t, err, tt.code)
			default:
				require.NoError(t, err)
			}
		})
	}
}

func TestVerificationTokenRepository_ListByEmail(t *testing.T) {
	ctx := context.Background()
	created := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	accountID := ulid.Make()
	newer, older := ulid.Make(), ulid.Make()

	repo, mock := newMockTokenRepo(t)
	mock.ExpectQuery(`WHERE email = \$1 AND used = \$2 ORDER BY created_at DESC`).
		WithArgs("a@x.com", false).
		WillReturnRows(pgxmock.NewRows(tokenColumns).
			AddRow(newer.String(), "h2", "a@x.com", accountID.String(), "student", created.Add(time.Hour), created.Add(25*time.Hour), false, nil).
			AddRow(older.String(), "h1", "a@x.com", accountID.String(), "student", created, created.Add(24*time.Hour), false, nil))

	tokens, err := repo.ListByEmail(ctx, "A@x.com", false)
	require.NoError(t, err)
	require.Len(t, tokens, 2)
	assert.Equal(t, newer, tokens[0].ID)
	assert.Equal(t, older, tokens[1].ID)
}

func TestVerificationTokenRepository_DeleteExpired(t *testing.T) {
	ctx := context.Background()
	before := time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC)

	repo, mock := newMockTokenRepo(t)
	mock.ExpectExec(`DELETE FROM verification_tokens WHERE expires_at < \$1`).
		WithArgs(before).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))

	n, err := repo.DeleteExpired(ctx, before)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}
