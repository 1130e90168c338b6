// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mentorlik Contributors

package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mentorlik/mentorlik/internal/auth"
	"github.com/mentorlik/mentorlik/internal/auth/postgres"
	"github.com/mentorlik/mentorlik/pkg/errutil"
)

var accountColumns = []string{"id", "name", "email", "password_hash", "email_verified", "profile", "created_at", "updated_at"}

func newMockAccountRepo(t *testing.T, role auth.Role) (*postgres.AccountRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err, "failed to create mock")
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		mock.Close()
	})
	repo, err := postgres.NewAccountRepository(mock, role)
	require.NoError(t, err)
	return repo, mock
}

func TestNewAccountRepository_UnknownRole(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo, err := postgres.NewAccountRepository(mock, auth.Role("tutor"))
	require.Error(t, err)
	assert.Nil(t, repo)
	errutil.AssertErrorCode(t, err, "AUTH_UNKNOWN_ROLE")
}

func TestAccountRepository_GetByEmail(t *testing.T) {
	ctx := context.Background()
	id := ulid.Make()
	created := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)

	t.Run("maps row and decodes role profile", func(t *testing.T) {
		repo, mock := newMockAccountRepo(t, auth.RoleStudent)
		mock.ExpectQuery(`SELECT id, name, email, password_hash, email_verified, profile, created_at, updated_at\s+FROM students\s+WHERE email = \$1`).
			WithArgs("a@x.com").
			WillReturnRows(pgxmock.NewRows(accountColumns).
				AddRow(id.String(), "Ada", "a@x.com", "$argon2id$...", true, []byte(`{"field_of_study":"CS"}`), created, created))

		account, err := repo.GetByEmail(ctx, " A@X.com")
		require.NoError(t, err)
		assert.Equal(t, id, account.ID)
		assert.Equal(t, auth.RoleStudent, account.Role)
		assert.Equal(t, "Ada", account.Name)
		assert.True(t, account.EmailVerified)
		assert.Equal(t, auth.StudentProfile{FieldOfStudy: "CS"}, account.Profile)
		assert.Equal(t, created, account.CreatedAt)
	})

	t.Run("no rows is ErrNotFound", func(t *testing.T) {
		repo, mock := newMockAccountRepo(t, auth.RoleMentor)
		mock.ExpectQuery(`FROM mentors`).
			WithArgs("nobody@x.com").
			WillReturnRows(pgxmock.NewRows(accountColumns))

		_, err := repo.GetByEmail(ctx, "nobody@x.com")
		require.ErrorIs(t, err, auth.ErrNotFound)
		errutil.AssertErrorCode(t, err, "ACCOUNT_NOT_FOUND")
	})

	t.Run("database error", func(t *testing.T) {
		repo, mock := newMockAccountRepo(t, auth.RoleAdmin)
		mock.ExpectQuery(`FROM admins`).
			WithArgs("root@x.com").
			WillReturnError(errors.New("connection refused"))

		_, err := repo.GetByEmail(ctx, "root@x.com")
		require.Error(t, err)
		assert.NotErrorIs(t, err, auth.ErrNotFound)
		assert.Contains(t, err.Error(), "connection refused")
	})

	t.Run("corrupt id", func(t *testing.T) {
		repo, mock := newMockAccountRepo(t, auth.RoleAdmin)
		mock.ExpectQuery(`FROM admins`).
			WithArgs("root@x.com").
			WillReturnRows(pgxmock.NewRows(accountColumns).
				AddRow("42", "Root", "root@x.com", "h", true, []byte(`{}`), created, created))

		_, err := repo.GetByEmail(ctx, "root@x.com")
		errutil.AssertErrorCode(t, err, "ACCOUNT_INVALID_ID")
	})
}

func TestAccountRepository_GetByID(t *testing.T) {
	ctx := context.Background()
	id := ulid.Make()
	created := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)

	repo, mock := newMockAccountRepo(t, auth.RoleMentor)
	mock.ExpectQuery(`FROM mentors\s+WHERE id = \$1`).
		WithArgs(id.String()).
		WillReturnRows(pgxmock.NewRows(accountColumns).
			AddRow(id.String(), "Grace", "g@x.com", "h", false,
				[]byte(`{"expertise":"COBOL","bio":"Admiral","experience_years":40,"available":true}`), created, created))

	account, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	mp, ok := account.Profile.(auth.MentorProfile)
	require.True(t, ok)
	assert.Equal(t, 40, mp.ExperienceYears)
	assert.True(t, mp.Available)
	assert.False(t, account.EmailVerified)
}

func TestAccountRepository_ExistsByEmail(t *testing.T) {
	ctx := context.Background()
	repo, mock := newMockAccountRepo(t, auth.RoleStudent)
	mock.ExpectQuery(`SELECT EXISTS \(SELECT 1 FROM students WHERE email = \$1\)`).
		WithArgs("a@x.com").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("b@x.com").
		WillReturnError(errors.New("timeout"))

	exists, err := repo.ExistsByEmail(ctx, "A@x.com")
	require.NoError(t, err)
	assert.True(t, exists)

	_, err = repo.ExistsByEmail(ctx, "b@x.com")
	errutil.AssertErrorCode(t, err, "ACCOUNT_QUERY_FAILED")
}

func TestAccountRepository_Save(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	account, err := auth.NewAccount(auth.RoleStudent, auth.Registration{
		Name: "Ada", Email: "A@x.com", Profile: auth.StudentProfile{FieldOfStudy: "CS"},
	}, "hash", now)
	require.NoError(t, err)

	t.Run("upserts by id", func(t *testing.T) {
		repo, mock := newMockAccountRepo(t, auth.RoleStudent)
		mock.ExpectExec(`INSERT INTO students .* ON CONFLICT \(id\) DO UPDATE SET`).
			WithArgs(account.ID.String(), "Ada", "a@x.com", "hash", false,
				[]byte(`{"field_of_study":"CS","available_for_mentorship":false}`), now, now).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		require.NoError(t, repo.Save(ctx, account))
	})

	t.Run("unique violation is AUTH_EMAIL_EXISTS", func(t *testing.T) {
		repo, mock := newMockAccountRepo(t, auth.RoleStudent)
		mock.ExpectExec(`INSERT INTO students`).
			WithArgs(anyArgs(8)...).
			WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "students_email_key"})

		err := repo.Save(ctx, account)
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "AUTH_EMAIL_EXISTS")
	})

	t.Run("other failures", func(t *testing.T) {
		repo, mock := newMockAccountRepo(t, auth.RoleStudent)
		mock.ExpectExec(`INSERT INTO students`).
			WithArgs(anyArgs(8)...).
			WillReturnError(errors.New("disk full"))

		err := repo.Save(ctx, account)
		errutil.AssertErrorCode(t, err, "ACCOUNT_SAVE_FAILED")
	})
}
