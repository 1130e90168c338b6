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
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// NotificationFailureRecorder is told about best-effort notification failures.
type NotificationFailureRecorder func(kind string)

// VerificationService issues verification tokens and redeems them to
// activate accounts.
type VerificationService struct {
	tokens      VerificationTokenRepository
	notifier    Notifier
	activators  map[Role]AccountRepository
	logger      *slog.Logger
	now         func() time.Time
	onNotifyErr NotificationFailureRecorder
}

// VerificationOption configures a VerificationService.
type VerificationOption func(*VerificationService)

// WithActivation wires account activation for role. Redeeming a token of a
// role without activation fails with VERIFY_UNSUPPORTED_ROLE.
func WithActivation(role Role, accounts AccountRepository) VerificationOption {
	return func(s *VerificationService) {
		if accounts != nil {
			s.activators[NormalizeRole(role.String())] = accounts
		}
	}
}

// WithVerificationLogger sets the logger. Defaults to slog.Default().
func WithVerificationLogger(logger *slog.Logger) VerificationOption {
	return func(s *VerificationService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithVerificationClock overrides time.Now.
func WithVerificationClock(now func() time.Time) VerificationOption {
	return func(s *VerificationService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithNotificationFailureRecorder registers a callback for failed sends,
// typically a metrics counter.
func WithNotificationFailureRecorder(fn NotificationFailureRecorder) VerificationOption {
	return func(s *VerificationService) {
		s.onNotifyErr = fn
	}
}

// NewVerificationService creates a VerificationService.
func NewVerificationService(tokens VerificationTokenRepository, notifier Notifier, opts ...VerificationOption) (*VerificationService, error) {
	if tokens == nil {
		return nil, oops.Errorf("verification token repository is required")
	}
	if notifier == nil {
		return nil, oops.Errorf("notifier is required")
	}
	s := &VerificationService{
		tokens:     tokens,
		notifier:   notifier,
		activators: make(map[Role]AccountRepository),
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// CreateAndSend stores a new token for the account and sends the link.
// Earlier tokens for the same account stay valid. A failed send is logged
// and does not fail the call. Returns the plaintext token.
func (s *VerificationService) CreateAndSend(ctx context.Context, email string, accountID ulid.ULID, role Role) (_ string, err error) {
	ctx, span := tracer.Start(ctx, "verification.CreateAndSend",
		trace.WithAttributes(attribute.String("auth.role", role.String())))
	defer func() { endSpan(span, err) }()

	token, hash, err := GenerateVerificationToken()
	if err != nil {
		return "", oops.Code("VERIFY_CREATE_FAILED").
			With("operation", "generate token").
			Wrap(err)
	}

	record, err := NewVerificationToken(hash, email, accountID, NormalizeRole(role.String()), s.now().UTC())
	if err != nil {
		return "", err
	}

	if err := s.tokens.Create(ctx, record); err != nil {
		return "", oops.Code("VERIFY_CREATE_FAILED").
			With("operation", "create token").
			With("account_id", accountID.String()).
			Wrap(err)
	}

	s.logger.InfoContext(ctx, "verification token created",
		"account_id", accountID.String(),
		"role", record.Role.String(),
		"expires_at", record.ExpiresAt)

	if sendErr := s.notifier.SendVerificationLink(ctx, record.Email, token, record.Role); sendErr != nil {
		s.notifyFailed(ctx, "send_verification_link", record.Email, sendErr)
	}
	return token, nil
}

// Redeem verifies the account behind token and returns its email.
//
// Checks run in a fixed order: unknown token, already used, expired. Used
// is checked first so a reused link reports the same result before and
// after expiry. The account is activated before the token is marked used,
// so a failure between the two leaves the token redeemable again.
func (s *VerificationService) Redeem(ctx context.Context, token string) (_ string, err error) {
	ctx, span := tracer.Start(ctx, "verification.Redeem")
	defer func() { endSpan(span, err) }()

	if token == "" {
		return "", oops.Code("VERIFY_TOKEN_NOT_FOUND").Errorf("verification token not found")
	}

	record, err := s.tokens.GetByTokenHash(ctx, HashVerificationToken(token))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", oops.Code("VERIFY_TOKEN_NOT_FOUND").Errorf("verification token not found")
		}
		return "", oops.Code("VERIFY_REDEEM_FAILED").
			With("operation", "get token by hash").
			Wrap(err)
	}

	now := s.now().UTC()
	switch record.State(now) {
	case VerificationUsed:
		return "", oops.Code("VERIFY_TOKEN_USED").
			With("token_id", record.ID.String()).
			Errorf("verification token has already been used")
	case VerificationExpired:
		return "", oops.Code("VERIFY_TOKEN_EXPIRED").
			With("token_id", record.ID.String()).
			With("expired_at", record.ExpiresAt).
			Errorf("verification token has expired")
	}

	accounts, ok := s.activators[record.Role]
	if !ok {
		s.logger.WarnContext(ctx, "verification for unsupported role", "role", record.Role.String())
		return "", oops.Code("VERIFY_UNSUPPORTED_ROLE").
			With("role", record.Role.String()).
			Errorf("verification for role %q is not supported", record.Role)
	}

	if err := s.activate(ctx, accounts, record.AccountID, now); err != nil {
		return "", err
	}

	if err := s.tokens.MarkUsed(ctx, record.ID, now); err != nil {
		if errors.Is(err, ErrTokenAlreadyUsed) {
			return "", oops.Code("VERIFY_TOKEN_USED").
				With("token_id", record.ID.String()).
				Errorf("verification token has already been used")
		}
		return "", oops.Code("VERIFY_REDEEM_FAILED").
			With("operation", "mark token used").
			With("token_id", record.ID.String()).
			Wrap(err)
	}

	s.logger.InfoContext(ctx, "email verified",
		"account_id", record.AccountID.String(),
		"role", record.Role.String())

	if sendErr := s.notifier.SendVerifiedConfirmation(ctx, record.Email); sendErr != nil {
		s.notifyFailed(ctx, "send_verified_confirmation", record.Email, sendErr)
	}
	return record.Email, nil
}

// Resend issues a fresh token for an unverified account of role. Unknown
// and already verified emails return nil without sending anything.
// Earlier tokens stay valid; the pending-token lookup only feeds the
// "outstanding" log attribute and never limits or blocks a resend.
func (s *VerificationService) Resend(ctx context.Context, role Role, email string) error {
	role = NormalizeRole(role.String())
	accounts, ok := s.activators[role]
	if !ok {
		return oops.Code("VERIFY_UNSUPPORTED_ROLE").
			With("role", role.String()).
			Errorf("verification for role %q is not supported", role)
	}

	email = NormalizeEmail(email)
	account, err := accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.logger.InfoContext(ctx, "resend skipped", "reason", "account_not_found", "role", role.String())
			return nil
		}
		return oops.Code("VERIFY_RESEND_FAILED").
			With("operation", "get account by email").
			Wrap(err)
	}
	if account.EmailVerified {
		s.logger.InfoContext(ctx, "resend skipped", "reason", "already_verified", "account_id", account.ID.String())
		return nil
	}

	pending, err := s.tokens.ListByEmail(ctx, email, false)
	if err != nil {
		return oops.Code("VERIFY_RESEND_FAILED").
			With("operation", "list pending tokens").
			Wrap(err)
	}
	s.logger.InfoContext(ctx, "resending verification link",
		"account_id", account.ID.String(),
		"outstanding", len(pending))

	_, err = s.CreateAndSend(ctx, account.Email, account.ID, role)
	return err
}

// PruneExpired deletes tokens that are already past expiry.
func (s *VerificationService) PruneExpired(ctx context.Context) (int64, error) {
	n, err := s.tokens.DeleteExpired(ctx, s.now().UTC())
	if err != nil {
		return 0, oops.Code("VERIFY_PRUNE_FAILED").Wrap(err)
	}
	s.logger.InfoContext(ctx, "expired verification tokens pruned", "count", n)
	return n, nil
}

// activate sets EmailVerified on the account. Saving an already verified
// account is skipped, which keeps a retried redemption harmless.
func (s *VerificationService) activate(ctx context.Context, accounts AccountRepository, id ulid.ULID, now time.Time) error {
	account, err := accounts.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return oops.Code("VERIFY_ACCOUNT_NOT_FOUND").
				With("account_id", id.String()).
				Errorf("account for verification token not found")
		}
		return oops.Code("VERIFY_REDEEM_FAILED").
			With("operation", "get account by id").
			Wrap(err)
	}
	if account.EmailVerified {
		return nil
	}
	account.MarkEmailVerified(now)
	if err := accounts.Save(ctx, account); err != nil {
		return oops.Code("VERIFY_REDEEM_FAILED").
			With("operation", "activate account").
			With("account_id", id.String()).
			Wrap(err)
	}
	return nil
}

func (s *VerificationService) notifyFailed(ctx context.Context, operation, email string, err error) {
	s.logger.WarnContext(ctx, "best-effort notification failed",
		"operation", operation,
		"email", email,
		"error", err)
	if s.onNotifyErr != nil {
		s.onNotifyErr(operation)
	}
}
