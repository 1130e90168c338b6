// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mentorlik Contributors

package api

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/samber/oops"

	"github.com/mentorlik/mentorlik/internal/auth"
	"github.com/mentorlik/mentorlik/internal/schema"
)

// Password bounds for new accounts. Login accepts any non-empty password
// so that older accounts are not locked out by a policy change.
const (
	MinPasswordLength = 8
	MaxPasswordLength = 128
)

// LoginRequest is the body of POST /api/auth/login/{role}.
type LoginRequest struct {
	Email    string `json:"email" jsonschema:"required,format=email,maxLength=100"`
	Password string `json:"password" jsonschema:"required,minLength=1,maxLength=128"`
}

// ResendRequest is the body of POST /api/auth/resend-verification/{role}.
type ResendRequest struct {
	Email string `json:"email" jsonschema:"required,format=email,maxLength=100"`
}

// RefreshRequest is the body of POST /api/auth/refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" jsonschema:"required,minLength=1"`
}

type registerBase struct {
	Name     string `json:"name,omitempty" jsonschema:"maxLength=100"`
	Email    string `json:"email" jsonschema:"required,format=email,maxLength=100"`
	Password string `json:"password" jsonschema:"required,minLength=8,maxLength=128"`
}

// AdminRegisterRequest is the body of POST /api/auth/register/admin.
type AdminRegisterRequest struct {
	registerBase
	Profile auth.AdminProfile `json:"profile" jsonschema:"required"`
}

// MentorRegisterRequest is the body of POST /api/auth/register/mentor.
type MentorRegisterRequest struct {
	registerBase
	Profile auth.MentorProfile `json:"profile" jsonschema:"required"`
}

// StudentRegisterRequest is the body of POST /api/auth/register/student.
type StudentRegisterRequest struct {
	registerBase
	Profile auth.StudentProfile `json:"profile" jsonschema:"required"`
}

// bodyDecoder validates a raw body and decodes it.
type bodyDecoder[T any] struct {
	validator *schema.Validator
}

func newBodyDecoder[T any](name string) bodyDecoder[T] {
	var zero T
	return bodyDecoder[T]{validator: schema.MustNew(&zero, name)}
}

func (d bodyDecoder[T]) decode(r *http.Request, limit int64) (T, error) {
	var out T
	data, err := io.ReadAll(http.MaxBytesReader(nil, r.Body, limit))
	if err != nil {
		return out, oops.Code("REQUEST_INVALID").With("limit", limit).Errorf("request body is too large or unreadable")
	}
	if err := d.validator.ValidateJSON(data); err != nil {
		return out, err
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, oops.Code("REQUEST_INVALID").Errorf("request body does not decode: %v", err)
	}
	return out, nil
}

var (
	loginBody   = newBodyDecoder[LoginRequest]("login")
	resendBody  = newBodyDecoder[ResendRequest]("resend")
	refreshBody = newBodyDecoder[RefreshRequest]("refresh")
)

var (
	adminRegisterBody   = newBodyDecoder[AdminRegisterRequest]("register_admin")
	mentorRegisterBody  = newBodyDecoder[MentorRegisterRequest]("register_mentor")
	studentRegisterBody = newBodyDecoder[StudentRegisterRequest]("register_student")
)

// registerDecoders turn a role's registration body into auth.Registration.
var registerDecoders = map[auth.Role]func(*http.Request, int64) (auth.Registration, error){
	auth.RoleAdmin:   registrationOf(adminRegisterBody, func(r AdminRegisterRequest) (registerBase, auth.Profile) { return r.registerBase, r.Profile }),
	auth.RoleMentor:  registrationOf(mentorRegisterBody, func(r MentorRegisterRequest) (registerBase, auth.Profile) { return r.registerBase, r.Profile }),
	auth.RoleStudent: registrationOf(studentRegisterBody, func(r StudentRegisterRequest) (registerBase, auth.Profile) { return r.registerBase, r.Profile }),
}

// RequestSchemas returns the JSON Schema of every request body keyed by
// schema name.
func RequestSchemas() map[string][]byte {
	return map[string][]byte{
		"login":            loginBody.validator.Raw(),
		"resend":           resendBody.validator.Raw(),
		"refresh":          refreshBody.validator.Raw(),
		"register_admin":   adminRegisterBody.validator.Raw(),
		"register_mentor":  mentorRegisterBody.validator.Raw(),
		"register_student": studentRegisterBody.validator.Raw(),
	}
}

func registrationOf[T any](d bodyDecoder[T], split func(T) (registerBase, auth.Profile)) func(*http.Request, int64) (auth.Registration, error) {
	return func(r *http.Request, limit int64) (auth.Registration, error) {
		req, err := d.decode(r, limit)
		if err != nil {
			return auth.Registration{}, err
		}
		base, profile := split(req)
		return auth.Registration{
			Name:     base.Name,
			Email:    base.Email,
			Password: base.Password,
			Profile:  profile,
		}, nil
	}
}
