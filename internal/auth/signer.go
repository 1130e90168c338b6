// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mentorlik Contributors

package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// MinSecretLength is the minimum HMAC key size in bytes.
const MinSecretLength = 32

// Default bearer token lifetimes.
const (
	DefaultAccessTTL  = 15 * time.Minute
	DefaultRefreshTTL = 7 * 24 * time.Hour
)

// DefaultIssuer is the iss claim when none is configured.
const DefaultIssuer = "mentorlik"

// TokenKind separates access tokens from refresh tokens.
type TokenKind string

// Token kinds.
const (
	TokenKindAccess  TokenKind = "access"
	TokenKindRefresh TokenKind = "refresh"
)

// Claims are the signed contents of a bearer token.
type Claims struct {
	Role Role      `json:"role"`
	Kind TokenKind `json:"typ"`
	jwt.RegisteredClaims
}

// AccountID parses the subject as an account ULID.
func (c *Claims) AccountID() (ulid.ULID, error) {
	id, err := ulid.Parse(c.Subject)
	if err != nil {
		return ulid.ULID{}, oops.Code("TOKEN_INVALID").With("subject", c.Subject).Wrap(err)
	}
	return id, nil
}

// ExpiresAtTime returns the exp claim, or the zero time when absent.
func (c *Claims) ExpiresAtTime() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// TokenPair is an access token with its refresh token.
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// SignerConfig configures a TokenSigner.
type SignerConfig struct {
	Secret     []byte
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	// Now overrides time.Now for issue and expiry checks.
	Now func() time.Time
}

// TokenSigner issues and verifies HS256 bearer tokens. It holds no mutable
// state and is safe for concurrent use.
type TokenSigner struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewTokenSigner validates cfg and creates a TokenSigner.
func NewTokenSigner(cfg SignerConfig) (*TokenSigner, error) {
	if len(cfg.Secret) < MinSecretLength {
		return nil, oops.Code("SIGNER_INVALID_CONFIG").
			With("min", MinSecretLength).
			Errorf("signing secret must be at least %d bytes", MinSecretLength)
	}
	s := &TokenSigner{
		secret:     append([]byte(nil), cfg.Secret...),
		issuer:     cfg.Issuer,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		now:        time.Now,
	}
	if cfg.Now != nil {
		s.now = cfg.Now
	}
	if s.issuer == "" {
		s.issuer = DefaultIssuer
	}
	if s.accessTTL <= 0 {
		s.accessTTL = DefaultAccessTTL
	}
	if s.refreshTTL <= 0 {
		s.refreshTTL = DefaultRefreshTTL
	}
	return s, nil
}

// AccessTTL returns the configured access token lifetime.
func (s *TokenSigner) AccessTTL() time.Duration { return s.accessTTL }

// Issue signs an access token for subject valid for ttl. A ttl of zero or
// less produces a token that is already expired.
func (s *TokenSigner) Issue(subject string, role Role, ttl time.Duration) (string, time.Time, error) {
	return s.sign(subject, role, TokenKindAccess, ttl)
}

// IssueRefresh signs a refresh token with the configured refresh lifetime.
func (s *TokenSigner) IssueRefresh(subject string, role Role) (string, time.Time, error) {
	return s.sign(subject, role, TokenKindRefresh, s.refreshTTL)
}

// IssuePair signs an access token and a refresh token for subject.
func (s *TokenSigner) IssuePair(subject string, role Role) (*TokenPair, error) {
	access, accessExp, err := s.Issue(subject, role, s.accessTTL)
	if err != nil {
		return nil, err
	}
	refresh, refreshExp, err := s.IssueRefresh(subject, role)
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// Verify checks an access token and returns its claims.
// Every failure has code TOKEN_INVALID; expired tokens also wrap ErrTokenExpired.
func (s *TokenSigner) Verify(token string) (*Claims, error) {
	return s.verify(token, TokenKindAccess)
}

// VerifyRefresh is Verify for refresh tokens.
func (s *TokenSigner) VerifyRefresh(token string) (*Claims, error) {
	return s.verify(token, TokenKindRefresh)
}

func (s *TokenSigner) sign(subject string, role Role, kind TokenKind, ttl time.Duration) (string, time.Time, error) {
	if subject == "" {
		return "", time.Time{}, oops.Code("TOKEN_ISSUE_FAILED").Errorf("subject cannot be empty")
	}
	if role == "" {
		return "", time.Time{}, oops.Code("TOKEN_ISSUE_FAILED").Errorf("role cannot be empty")
	}

	now := s.now()
	exp := now.Add(ttl)
	claims := &Claims{
		Role: role,
		Kind: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        ulid.Make().String(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, oops.Code("TOKEN_ISSUE_FAILED").
			With("operation", "sign token").
			With("kind", string(kind)).
			Wrap(err)
	}
	return signed, claims.ExpiresAt.Time, nil
}

func (s *TokenSigner) verify(token string, kind TokenKind) (*Claims, error) {
	if token == "" {
		return nil, oops.Code("TOKEN_INVALID").Errorf("invalid token")
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(s.issuer),
		jwt.WithTimeFunc(s.now),
		jwt.WithStrictDecoding(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, oops.Code("TOKEN_INVALID").With("reason", "expired").Wrap(ErrTokenExpired)
		}
		return nil, oops.Code("TOKEN_INVALID").With("reason", "malformed").Wrap(err)
	}

	if claims.Kind != kind {
		return nil, oops.Code("TOKEN_INVALID").
			With("reason", "wrong_kind").
			With("kind", string(claims.Kind)).
			Errorf("invalid token")
	}
	if claims.Subject == "" || claims.Role == "" {
		return nil, oops.Code("TOKEN_INVALID").With("reason", "missing_claims").Errorf("invalid token")
	}
	return claims, nil
}
