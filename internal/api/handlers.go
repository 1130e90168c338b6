// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mentorlik Contributors

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/mentorlik/mentorlik/internal/auth"
)

// VerifyResult is the data of a successful verification.
type VerifyResult struct {
	Email string `json:"email"`
}

// MeResult describes the caller of GET /api/auth/me.
type MeResult struct {
	AccountID string    `json:"account_id"`
	Role      auth.Role `json:"role"`
	ExpiresAt time.Time `json:"expires_at"`
}

// resolve maps the {role} path parameter to its handler.
func (s *Server) resolve(r *http.Request) (auth.RoleHandler, error) {
	return s.router.Resolve(chi.URLParam(r, "role"))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	h, err := s.resolve(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	req, err := loginBody.decode(r, s.cfg.MaxBodyBytes)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	dto, err := h.Login(r.Context(), req.Email, req.Password)
	s.metrics.RecordAuthAttempt(h.Role().String(), "login", err == nil)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.ok(w, r, http.StatusOK, dto, "login successful")
}

// handleRegister creates the account and, for roles that need it, sends
// the verification link. A failed send does not fail the registration;
// the client can ask for a resend.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	h, err := s.resolve(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	decode, ok := registerDecoders[h.Role()]
	if !ok {
		s.fail(w, r, oops.Code("AUTH_UNKNOWN_ROLE").With("role", h.Role().String()).Errorf("registration is not available for role"))
		return
	}
	reg, err := decode(r, s.cfg.MaxBodyBytes)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	dto, err := h.Register(r.Context(), reg)
	s.metrics.RecordAuthAttempt(h.Role().String(), "register", err == nil)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	message := "registration successful"
	if !dto.EmailVerified {
		message = "registration successful, check your email to verify the account"
		s.sendVerification(r, dto)
	}
	s.ok(w, r, http.StatusCreated, dto, message)
}

func (s *Server) sendVerification(r *http.Request, dto *auth.AccountDTO) {
	id, err := ulid.Parse(dto.ID)
	if err == nil {
		_, err = s.verification.CreateAndSend(r.Context(), dto.Email, id, dto.Role)
	}
	if err != nil {
		s.logger.WarnContext(r.Context(), "best-effort verification issue failed",
			"operation", "create_verification_token",
			"account_id", dto.ID,
			"error", err)
	}
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		s.fail(w, r, oops.Code("REQUEST_INVALID").Errorf("token query parameter is required"))
		return
	}
	email, err := s.verification.Redeem(r.Context(), token)
	s.metrics.RecordAuthAttempt("any", "verify", err == nil)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.ok(w, r, http.StatusOK, VerifyResult{Email: email}, "email verified")
}

// handleResend answers 202 whether or not a link was sent, so the
// endpoint does not reveal which emails have accounts.
func (s *Server) handleResend(w http.ResponseWriter, r *http.Request) {
	h, err := s.resolve(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	req, err := resendBody.decode(r, s.cfg.MaxBodyBytes)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.verification.Resend(r.Context(), h.Role(), req.Email); err != nil {
		s.fail(w, r, err)
		return
	}
	s.ok(w, r, http.StatusAccepted, nil, "if the account exists and is unverified, a new link has been sent")
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	req, err := refreshBody.decode(r, s.cfg.MaxBodyBytes)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	dto, err := s.refresher.Refresh(r.Context(), req.RefreshToken)
	role := "unknown"
	if dto != nil {
		role = dto.Role.String()
	}
	s.metrics.RecordAuthAttempt(role, "refresh", err == nil)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.ok(w, r, http.StatusOK, dto, "token refreshed")
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		s.fail(w, r, oops.Code("TOKEN_INVALID").Errorf("missing claims"))
		return
	}
	s.ok(w, r, http.StatusOK, MeResult{
		AccountID: claims.Subject,
		Role:      claims.Role,
		ExpiresAt: claims.ExpiresAtTime(),
	}, "")
}
