// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mentorlik Contributors

// Package authtest provides test doubles and fixtures for the auth package.
package authtest

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/mock"

	"github.com/mentorlik/mentorlik/internal/auth"
)

// MockNotifier is a testify mock for auth.Notifier.
type MockNotifier struct {
	mock.Mock
}

// NewMockNotifier creates a MockNotifier whose expectations are asserted
// when the test ends.
func NewMockNotifier(t *testing.T) *MockNotifier {
	m := &MockNotifier{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// SendVerificationLink implements auth.Notifier.
func (m *MockNotifier) SendVerificationLink(ctx context.Context, email, token string, role auth.Role) error {
	args := m.Called(ctx, email, token, role)
	return args.Error(0)
}

// SendVerifiedConfirmation implements auth.Notifier.
func (m *MockNotifier) SendVerifiedConfirmation(ctx context.Context, email string) error {
	args := m.Called(ctx, email)
	return args.Error(0)
}

// Message is one notification captured by Outbox.
type Message struct {
	Kind  string // "link" or "confirmation"
	Email string
	Token string
	Role  auth.Role
}

// Outbox records every notification it is asked to send. Set Err to make
// every send fail after recording.
type Outbox struct {
	mu       sync.Mutex
	messages []Message
	Err      error
}

// SendVerificationLink implements auth.Notifier.
func (o *Outbox) SendVerificationLink(_ context.Context, email, token string, role auth.Role) error {
	o.record(Message{Kind: "link", Email: email, Token: token, Role: role})
	return o.Err
}

// SendVerifiedConfirmation implements auth.Notifier.
func (o *Outbox) SendVerifiedConfirmation(_ context.Context, email string) error {
	o.record(Message{Kind: "confirmation", Email: email})
	return o.Err
}

// Messages returns a copy of everything recorded so far.
func (o *Outbox) Messages() []Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Message(nil), o.messages...)
}

// LastToken returns the token of the most recent link sent to email.
func (o *Outbox) LastToken(email string) (string, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i := len(o.messages) - 1; i >= 0; i-- {
		if m := o.messages[i]; m.Kind == "link" && m.Email == email {
			return m.Token, true
		}
	}
	return "", false
}

func (o *Outbox) record(m Message) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.messages = append(o.messages, m)
}

var (
	_ auth.Notifier = (*MockNotifier)(nil)
	_ auth.Notifier = (*Outbox)(nil)
)
