// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mentorlik Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mentorlik/mentorlik/pkg/errutil"
)

var tracer = otel.Tracer("github.com/mentorlik/mentorlik/internal/auth")

// dummyPasswordHash is verified when no account matches the email so that
// both failure paths cost one argon2id computation.
// It is not a credential and matches no password.
//
//nolint:gosec // G101: intentionally fake hash
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// RoleHandler authenticates and registers accounts of one role.
type RoleHandler interface {
	Role() Role

	// Login returns the account with a fresh token pair. Unknown email and
	// wrong password fail identically with AUTH_INVALID_CREDENTIALS.
	Login(ctx context.Context, email, password string) (*AccountDTO, error)

	// Register creates an account in this role's store.
	Register(ctx context.Context, reg Registration) (*AccountDTO, error)

	// Reissue loads an account by ID and issues a new token pair.
	Reissue(ctx context.Context, id ulid.ULID) (*AccountDTO, error)
}

// AccountHandler is the RoleHandler shared by all roles. Roles differ only
// in their store and in whether login requires a verified email.
type AccountHandler struct {
	role            Role
	accounts        AccountRepository
	hasher          PasswordHasher
	signer          *TokenSigner
	requireVerified bool
	throttle        *LoginThrottle
	logger          *slog.Logger
	now             func() time.Time
}

// HandlerOption configures an AccountHandler.
type HandlerOption func(*AccountHandler)

// WithHandlerLogger sets the logger. Defaults to slog.Default().
func WithHandlerLogger(logger *slog.Logger) HandlerOption {
	return func(h *AccountHandler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithLoginThrottle refuses logins for a role+email pair after repeated
// failures. The throttle may be shared between handlers.
func WithLoginThrottle(t *LoginThrottle) HandlerOption {
	return func(h *AccountHandler) {
		h.throttle = t
	}
}

// WithHandlerClock overrides time.Now.
func WithHandlerClock(now func() time.Time) HandlerOption {
	return func(h *AccountHandler) {
		if now != nil {
			h.now = now
		}
	}
}

// NewAdminHandler creates the handler for administrators. Admins are created
// verified and log in without a verification gate.
func NewAdminHandler(accounts AccountRepository, hasher PasswordHasher, signer *TokenSigner, opts ...HandlerOption) (*AccountHandler, error) {
	return NewAccountHandler(RoleAdmin, accounts, hasher, signer, opts...)
}

// NewMentorHandler creates the handler for mentors.
func NewMentorHandler(accounts AccountRepository, hasher PasswordHasher, signer *TokenSigner, opts ...HandlerOption) (*AccountHandler, error) {
	return NewAccountHandler(RoleMentor, accounts, hasher, signer, opts...)
}

// NewStudentHandler creates the handler for students.
func NewStudentHandler(accounts AccountRepository, hasher PasswordHasher, signer *TokenSigner, opts ...HandlerOption) (*AccountHandler, error) {
	return NewAccountHandler(RoleStudent, accounts, hasher, signer, opts...)
}

// NewAccountHandler creates a handler for role. The verification gate is
// enabled for roles whose RequiresVerification is true.
func NewAccountHandler(role Role, accounts AccountRepository, hasher PasswordHasher, signer *TokenSigner, opts ...HandlerOption) (*AccountHandler, error) {
	if role == "" {
		return nil, oops.Errorf("role is required")
	}
	if accounts == nil {
		return nil, oops.With("role", role.String()).Errorf("account repository is required")
	}
	if hasher == nil {
		return nil, oops.Errorf("password hasher is required")
	}
	if signer == nil {
		return nil, oops.Errorf("token signer is required")
	}

	h := &AccountHandler{
		role:            role,
		accounts:        accounts,
		hasher:          hasher,
		signer:          signer,
		requireVerified: role.RequiresVerification(),
		logger:          slog.Default(),
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.With("role", role.String())
	return h, nil
}

// Role implements RoleHandler.
func (h *AccountHandler) Role() Role { return h.role }

// Login implements RoleHandler.
func (h *AccountHandler) Login(ctx context.Context, email, password string) (_ *AccountDTO, err error) {
	ctx, span := h.startSpan(ctx, "auth.Login")
	defer func() { endSpan(span, err) }()

	email = NormalizeEmail(email)
	if err := h.checkThrottle(ctx, email); err != nil {
		return nil, err
	}
	account, lookupErr := h.accounts.GetByEmail(ctx, email)

	targetHash := dummyPasswordHash
	exists := false
	switch {
	case lookupErr == nil:
		targetHash = account.PasswordHash
		exists = true
	case !errors.Is(lookupErr, ErrNotFound):
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "get account by email").
			Wrap(lookupErr)
	}

	valid, verifyErr := h.hasher.Verify(password, targetHash)
	if verifyErr != nil && exists {
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "verify password").
			With("account_id", account.ID.String()).
			Wrap(verifyErr)
	}

	if !exists {
		h.logger.InfoContext(ctx, "login failed", "reason", "account_not_found")
		h.recordFailure(ctx, email)
		return nil, errInvalidCredentials()
	}
	if !valid {
		h.logger.InfoContext(ctx, "login failed", "reason", "password_mismatch", "account_id", account.ID.String())
		h.recordFailure(ctx, email)
		return nil, errInvalidCredentials()
	}
	if h.throttle != nil {
		h.throttle.Reset(h.role, email)
	}

	// Only reached with the correct password, so the verification state
	// is never revealed to someone who does not know it.
	if h.requireVerified && !account.EmailVerified {
		h.logger.InfoContext(ctx, "login failed", "reason", "email_not_verified", "account_id", account.ID.String())
		return nil, oops.Code("AUTH_EMAIL_NOT_VERIFIED").
			With("account_id", account.ID.String()).
			Errorf("email address has not been verified")
	}

	h.upgradeHash(ctx, account, password)

	dto, err := h.withTokens(account)
	if err != nil {
		return nil, err
	}
	h.logger.InfoContext(ctx, "login succeeded", "account_id", account.ID.String())
	return dto, nil
}

// Register implements RoleHandler. Mentor and student accounts are stored
// unverified; sending the verification link is left to the caller.
func (h *AccountHandler) Register(ctx context.Context, reg Registration) (_ *AccountDTO, err error) {
	ctx, span := h.startSpan(ctx, "auth.Register")
	defer func() { endSpan(span, err) }()

	email := NormalizeEmail(reg.Email)
	exists, err := h.accounts.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "check email exists").
			Wrap(err)
	}
	if exists {
		return nil, oops.Code("AUTH_EMAIL_EXISTS").
			With("role", h.role.String()).
			Errorf("email is already in use")
	}

	hash, err := h.hasher.Hash(reg.Password)
	if err != nil {
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	account, err := NewAccount(h.role, reg, hash, h.now().UTC())
	if err != nil {
		return nil, err
	}

	if err := h.accounts.Save(ctx, account); err != nil {
		if errutil.HasCode(err, "AUTH_EMAIL_EXISTS") {
			return nil, err
		}
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "save account").
			Wrap(err)
	}

	h.logger.InfoContext(ctx, "account registered",
		"account_id", account.ID.String(),
		"email_verified", account.EmailVerified)

	if !account.EmailVerified {
		return NewAccountDTO(account), nil
	}
	return h.withTokens(account)
}

// Reissue implements RoleHandler. The verification gate applies exactly as
// it does for Login.
func (h *AccountHandler) Reissue(ctx context.Context, id ulid.ULID) (_ *AccountDTO, err error) {
	ctx, span := h.startSpan(ctx, "auth.Reissue")
	defer func() { endSpan(span, err) }()

	account, err := h.accounts.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code("TOKEN_INVALID").With("account_id", id.String()).Errorf("invalid token")
		}
		return nil, oops.Code("AUTH_REISSUE_FAILED").
			With("operation", "get account by id").
			Wrap(err)
	}
	if h.requireVerified && !account.EmailVerified {
		return nil, oops.Code("AUTH_EMAIL_NOT_VERIFIED").
			With("account_id", id.String()).
			Errorf("email address has not been verified")
	}
	return h.withTokens(account)
}

func (h *AccountHandler) checkThrottle(ctx context.Context, email string) error {
	if h.throttle == nil {
		return nil
	}
	result := h.throttle.Check(h.role, email)
	if !result.IsLockedOut {
		return nil
	}
	h.logger.InfoContext(ctx, "login refused", "reason", "locked_out", "retry_after", result.LockoutRemaining)
	return oops.Code("AUTH_TOO_MANY_ATTEMPTS").
		With("retry_after", result.LockoutRemaining).
		Errorf("too many failed login attempts")
}

func (h *AccountHandler) recordFailure(ctx context.Context, email string) {
	if h.throttle == nil {
		return
	}
	if result := h.throttle.RecordFailure(h.role, email); result.Failures == LockoutThreshold {
		h.logger.WarnContext(ctx, "login locked out", "failures", result.Failures, "duration", LockoutDuration)
	}
}

func (h *AccountHandler) withTokens(account *Account) (*AccountDTO, error) {
	pair, err := h.signer.IssuePair(account.ID.String(), h.role)
	if err != nil {
		return nil, oops.Code("AUTH_TOKEN_ISSUE_FAILED").
			With("account_id", account.ID.String()).
			Wrap(err)
	}
	return NewAccountDTO(account).WithTokens(pair), nil
}

// upgradeHash rehashes with current parameters. Failures are logged and
// never fail the login.
func (h *AccountHandler) upgradeHash(ctx context.Context, account *Account, password string) {
	if !h.hasher.NeedsUpgrade(account.PasswordHash) {
		return
	}
	hash, err := h.hasher.Hash(password)
	if err == nil {
		account.PasswordHash = hash
		account.UpdatedAt = h.now().UTC()
		err = h.accounts.Save(ctx, account)
	}
	if err != nil {
		h.logger.WarnContext(ctx, "best-effort password hash upgrade failed",
			"operation", "upgrade_password_hash",
			"account_id", account.ID.String(),
			"error", err)
	}
}

func (h *AccountHandler) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attribute.String("auth.role", h.role.String())))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, errutil.Code(err))
	}
	span.End()
}

// Compile-time interface check.
var _ RoleHandler = (*AccountHandler)(nil)
