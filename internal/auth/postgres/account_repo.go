// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mentorlik Contributors

package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/mentorlik/mentorlik/internal/auth"
)

// accountTables maps each role to its own table. Roles never share rows.
var accountTables = map[auth.Role]string{
	auth.RoleAdmin:   "admins",
	auth.RoleMentor:  "mentors",
	auth.RoleStudent: "students",
}

// AccountRepository implements auth.AccountRepository for one role table.
type AccountRepository struct {
	pool  Querier
	role  auth.Role
	table string
}

// NewAccountRepository creates the repository for role.
func NewAccountRepository(pool Querier, role auth.Role) (*AccountRepository, error) {
	table, ok := accountTables[role]
	if !ok {
		return nil, oops.Code("AUTH_UNKNOWN_ROLE").
			With("role", role.String()).
			Errorf("no account table for role %q", role)
	}
	return &AccountRepository{pool: pool, role: role, table: table}, nil
}

// GetByEmail retrieves an account by its normalized email.
func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*auth.Account, error) {
	row := r.pool.QueryRow(ctx, r.selectSQL("email = $1"), auth.NormalizeEmail(email))

	account, err := r.scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").
			With("role", r.role.String()).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_QUERY_FAILED").
			With("operation", "get account by email").
			With("role", r.role.String()).
			Wrap(err)
	}
	return account, nil
}

// ExistsByEmail reports whether the role table holds the email.
func (r *AccountRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE email = $1)`, r.table),
		auth.NormalizeEmail(email),
	).Scan(&exists)
	if err != nil {
		return false, oops.Code("ACCOUNT_QUERY_FAILED").
			With("operation", "check email exists").
			With("role", r.role.String()).
			Wrap(err)
	}
	return exists, nil
}

// GetByID retrieves an account by ID.
func (r *AccountRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.Account, error) {
	row := r.pool.QueryRow(ctx, r.selectSQL("id = $1"), id.String())

	account, err := r.scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").
			With("role", r.role.String()).
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_QUERY_FAILED").
			With("operation", "get account by id").
			With("id", id.String()).
			Wrap(err)
	}
	return account, nil
}

// Save inserts the account or updates every mutable column by ID.
func (r *AccountRepository) Save(ctx context.Context, account *auth.Account) error {
	profileJSON, err := json.Marshal(account.Profile)
	if err != nil {
		return oops.Code("ACCOUNT_SAVE_FAILED").
			With("operation", "marshal profile").
			Wrap(err)
	}

	_, err = r.pool.Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s (
			id, name, email, password_hash, email_verified, profile, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			email = EXCLUDED.email,
			password_hash = EXCLUDED.password_hash,
			email_verified = EXCLUDED.email_verified,
			profile = EXCLUDED.profile,
			updated_at = EXCLUDED.updated_at
	`, r.table),
		account.ID.String(),
		account.Name,
		auth.NormalizeEmail(account.Email),
		account.PasswordHash,
		account.EmailVerified,
		profileJSON,
		account.CreatedAt,
		account.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return oops.Code("AUTH_EMAIL_EXISTS").
			With("role", r.role.String()).
			Errorf("email is already in use")
	}
	if err != nil {
		return oops.Code("ACCOUNT_SAVE_FAILED").
			With("operation", "upsert account").
			With("id", account.ID.String()).
			Wrap(err)
	}
	return nil
}

func (r *AccountRepository) selectSQL(where string) string {
	return fmt.Sprintf(`
		SELECT id, name, email, password_hash, email_verified, profile, created_at, updated_at
		FROM %s
		WHERE %s
	`, r.table, where)
}

// scanAccount returns pgx.ErrNoRows unwrapped for callers to map.
func (r *AccountRepository) scanAccount(row pgx.Row) (*auth.Account, error) {
	var (
		idStr       string
		profileJSON []byte
		createdAt   time.Time
		updatedAt   time.Time
	)
	account := &auth.Account{Role: r.role}
	err := row.Scan(
		&idStr,
		&account.Name,
		&account.Email,
		&account.PasswordHash,
		&account.EmailVerified,
		&profileJSON,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // callers wrap with context-specific info
		}
		return nil, oops.Code("ACCOUNT_SCAN_FAILED").
			With("operation", "scan account").
			With("role", r.role.String()).
			Wrap(err)
	}

	account.ID, err = ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("ACCOUNT_INVALID_ID").
			With("operation", "parse account id").
			With("id", idStr).
			Wrap(err)
	}
	account.Profile, err = auth.UnmarshalProfile(r.role, profileJSON)
	if err != nil {
		return nil, err
	}
	account.CreatedAt = createdAt.UTC()
	account.UpdatedAt = updatedAt.UTC()
	return account, nil
}

var _ auth.AccountRepository = (*AccountRepository)(nil)
