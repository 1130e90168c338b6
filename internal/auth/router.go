// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mentorlik Contributors

package auth

import (
	"slices"

	"github.com/samber/oops"
)

// Router resolves a role name to its RoleHandler. The handler set is fixed
// at construction, so Router is safe for concurrent use without locking.
type Router struct {
	handlers map[Role]RoleHandler
}

// NewRouter registers handlers by their Role. Nil handlers and duplicate
// roles are rejected.
func NewRouter(handlers ...RoleHandler) (*Router, error) {
	r := &Router{handlers: make(map[Role]RoleHandler, len(handlers))}
	for i, h := range handlers {
		if h == nil {
			return nil, oops.With("index", i).Errorf("role handler is nil")
		}
		role := NormalizeRole(h.Role().String())
		if role == "" {
			return nil, oops.With("index", i).Errorf("role handler has empty role")
		}
		if _, dup := r.handlers[role]; dup {
			return nil, oops.With("role", role.String()).Errorf("role %q registered twice", role)
		}
		r.handlers[role] = h
	}
	return r, nil
}

// Resolve returns the handler for role, matched case-insensitively.
// Blank or unregistered roles fail with AUTH_UNKNOWN_ROLE.
func (r *Router) Resolve(role string) (RoleHandler, error) {
	key := NormalizeRole(role)
	if key == "" {
		return nil, oops.Code("AUTH_UNKNOWN_ROLE").Errorf("role is required")
	}
	h, ok := r.handlers[key]
	if !ok {
		return nil, oops.Code("AUTH_UNKNOWN_ROLE").
			With("role", role).
			With("registered", r.Roles()).
			Errorf("unknown role %q", role)
	}
	return h, nil
}

// Roles returns the registered roles in sorted order.
func (r *Router) Roles() []Role {
	roles := make([]Role, 0, len(r.handlers))
	for role := range r.handlers {
		roles = append(roles, role)
	}
	slices.Sort(roles)
	return roles
}
