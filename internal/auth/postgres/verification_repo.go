// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mentorlik Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/mentorlik/mentorlik/internal/auth"
)

// VerificationTokenRepository implements auth.VerificationTokenRepository using PostgreSQL.
type VerificationTokenRepository struct {
	pool Querier
}

// NewVerificationTokenRepository creates a new VerificationTokenRepository.
func NewVerificationTokenRepository(pool Querier) *VerificationTokenRepository {
	return &VerificationTokenRepository{pool: pool}
}

const selectTokenColumns = `
	SELECT id, token_hash, email, account_id, role, created_at, expires_at, used, used_at
	FROM verification_tokens
`

// Create stores a new verification token.
func (r *VerificationTokenRepository) Create(ctx context.Context, token *auth.VerificationToken) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO verification_tokens (
			id, token_hash, email, account_id, role, created_at, expires_at, used, used_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		token.ID.String(),
		token.TokenHash,
		token.Email,
		token.AccountID.String(),
		token.Role.String(),
		token.CreatedAt,
		token.ExpiresAt,
		token.Used,
		token.UsedAt,
	)
	if err != nil {
		return oops.Code("VERIFY_CREATE_FAILED").
			With("operation", "insert verification_token").
			With("account_id", token.AccountID.String()).
			Wrap(err)
	}
	return nil
}

// GetByTokenHash retrieves a token by the hash of its plaintext.
func (r *VerificationTokenRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*auth.VerificationToken, error) {
	row := r.pool.QueryRow(ctx, selectTokenColumns+`WHERE token_hash = $1`, tokenHash)

	token, err := r.scanToken(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("VERIFY_TOKEN_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return token, nil
}

// MarkUsed flips used only while it is still false, so of two concurrent
// redemptions exactly one updates a row.
func (r *VerificationTokenRepository) MarkUsed(ctx context.Context, id ulid.ULID, usedAt time.Time) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE verification_tokens SET used = TRUE, used_at = $2
		WHERE id = $1 AND used = FALSE
	`, id.String(), usedAt)
	if err != nil {
		return oops.Code("VERIFY_MARK_USED_FAILED").
			With("operation", "update verification_token").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return auth.ErrTokenAlreadyUsed
	}
	return nil
}

// ListByEmail returns the tokens issued to email with the given used flag, newest first.
func (r *VerificationTokenRepository) ListByEmail(ctx context.Context, email string, used bool) ([]*auth.VerificationToken, error) {
	rows, err := r.pool.Query(ctx, selectTokenColumns+`
		WHERE email = $1 AND used = $2
		ORDER BY created_at DESC
	`, auth.NormalizeEmail(email), used)
	if err != nil {
		return nil, oops.Code("VERIFY_LIST_FAILED").
			With("operation", "list verification_tokens").
			Wrap(err)
	}
	defer rows.Close()

	var tokens []*auth.VerificationToken
	for rows.Next() {
		token, err := r.scanToken(rows)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, token)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("VERIFY_LIST_FAILED").
			With("operation", "iterate verification_tokens").
			Wrap(err)
	}
	return tokens, nil
}

// DeleteExpired removes tokens that expired before the given time and returns the count.
func (r *VerificationTokenRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.pool.Exec(ctx, `
		DELETE FROM verification_tokens WHERE expires_at < $1
	`, before)
	if err != nil {
		return 0, oops.Code("VERIFY_DELETE_EXPIRED_FAILED").
			With("operation", "delete expired verification_tokens").
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

// scanToken returns pgx.ErrNoRows unwrapped for callers to map.
func (r *VerificationTokenRepository) scanToken(row pgx.Row) (*auth.VerificationToken, error) {
	var (
		idStr        string
		accountIDStr string
		role         string
		usedAt       *time.Time
	)
	token := &auth.VerificationToken{}
	err := row.Scan(
		&idStr,
		&token.TokenHash,
		&token.Email,
		&accountIDStr,
		&role,
		&token.CreatedAt,
		&token.ExpiresAt,
		&token.Used,
		&usedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // callers wrap with context-specific info
		}
		return nil, oops.Code("VERIFY_SCAN_FAILED").
			With("operation", "scan verification_token").
			Wrap(err)
	}

	token.ID, err = ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("VERIFY_INVALID_ID").
			With("operation", "parse token id").
			With("id", idStr).
			Wrap(err)
	}
	token.AccountID, err = ulid.Parse(accountIDStr)
	if err != nil {
		return nil, oops.Code("VERIFY_INVALID_ACCOUNT_ID").
			With("operation", "parse account id").
			With("account_id", accountIDStr).
			Wrap(err)
	}
	token.Role = auth.Role(role)
	token.CreatedAt = token.CreatedAt.UTC()
	token.ExpiresAt = token.ExpiresAt.UTC()
	if usedAt != nil {
		t := usedAt.UTC()
		token.UsedAt = &t
	}
	return token, nil
}

// Compile-time interface check.
var _ auth.VerificationTokenRepository = (*VerificationTokenRepository)(nil)
