// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mentorlik Contributors

package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/mentorlik/mentorlik/internal/schema"
	"github.com/mentorlik/mentorlik/pkg/errutil"
)

// Response statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Response is the envelope of every API response.
type Response struct {
	Status  string             `json:"status"`
	Data    any                `json:"data,omitempty"`
	Message string             `json:"message,omitempty"`
	Code    string             `json:"code,omitempty"`
	Path    string             `json:"path,omitempty"`
	Errors  []schema.Violation `json:"errors,omitempty"`
}

type errorMapping struct {
	status int
	// message replaces the error text; empty keeps the error text, which
	// only input validation errors do.
	message string
}

var errorMappings = map[string]errorMapping{
	"REQUEST_INVALID":            {http.StatusBadRequest, ""},
	"AUTH_INVALID_REGISTRATION":  {http.StatusBadRequest, ""},
	"AUTH_EMPTY_PASSWORD":        {http.StatusBadRequest, "password cannot be empty"},
	"AUTH_PROFILE_DECODE_FAILED": {http.StatusBadRequest, "profile does not match role"},
	"AUTH_UNKNOWN_ROLE":          {http.StatusNotFound, "unknown role"},
	"AUTH_INVALID_CREDENTIALS":   {http.StatusUnauthorized, "invalid email or password"},
	"TOKEN_INVALID":              {http.StatusUnauthorized, "invalid or expired token"},
	"AUTH_EMAIL_NOT_VERIFIED":    {http.StatusForbidden, "email address has not been verified"},
	"AUTH_EMAIL_EXISTS":          {http.StatusConflict, "email is already in use"},
	"AUTH_TOO_MANY_ATTEMPTS":     {http.StatusTooManyRequests, "too many failed login attempts, try again later"},
	"VERIFY_TOKEN_NOT_FOUND":     {http.StatusNotFound, "verification token not found"},
	"VERIFY_ACCOUNT_NOT_FOUND":   {http.StatusNotFound, "account for verification token not found"},
	"VERIFY_TOKEN_USED":          {http.StatusConflict, "verification token has already been used"},
	"VERIFY_TOKEN_EXPIRED":       {http.StatusGone, "verification token has expired"},
	"VERIFY_UNSUPPORTED_ROLE":    {http.StatusUnprocessableEntity, "email verification is not supported for this role"},
}

const internalMessage = "internal server error"

// StatusFor maps an error code to its HTTP status. Unknown codes are 500.
func StatusFor(code string) int {
	if m, ok := errorMappings[code]; ok {
		return m.status
	}
	return http.StatusInternalServerError
}

func writeJSON(ctx context.Context, w http.ResponseWriter, logger *slog.Logger, status int, body Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.WarnContext(ctx, "write response failed", "error", err)
	}
}

func (s *Server) ok(w http.ResponseWriter, r *http.Request, status int, data any, message string) {
	writeJSON(r.Context(), w, s.logger, status, Response{Status: StatusSuccess, Data: data, Message: message})
}

// fail writes err as an error envelope. Internal errors are logged with
// their context and answered with a generic message.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := errutil.Code(err)
	body := Response{Status: StatusError, Code: code, Path: r.URL.Path}

	m, known := errorMappings[code]
	switch {
	case !known:
		errutil.LogErrorContext(r.Context(), s.logger, "request failed", err)
		body.Code = errutil.CodeInternal
		body.Message = internalMessage
		m.status = http.StatusInternalServerError
	case m.message == "":
		body.Message = err.Error()
		body.Errors = schema.ViolationsOf(err)
	default:
		body.Message = m.message
	}

	if m.status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer realm="mentorlik"`)
	}
	writeJSON(r.Context(), w, s.logger, m.status, body)
}
