// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mentorlik Contributors

package grpc

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/mentorlik/mentorlik/internal/auth"
	"github.com/mentorlik/mentorlik/internal/auth/authtest"
)

func newTestServer(t *testing.T) (*Server, *auth.TokenSigner) {
	t.Helper()
	signer := authtest.NewSigner(t)
	s, err := NewServer(ServerConfig{Verifier: signer})
	require.NoError(t, err)
	return s, signer
}

func dialBufconn(t *testing.T, lis *bufconn.Listener) *Client {
	t.Helper()
	c, err := NewClient(ClientConfig{
		Address: "passthrough:///bufnet",
		DialOptions: []grpc.DialOption{
			grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
				return lis.DialContext(ctx)
			}),
		},
	})
	require.NoError(t, err)
	return c
}

func TestServer_HealthLifecycle(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	s, _ := newTestServer(t)
	lis := bufconn.Listen(1 << 20)

	errCh, err := s.Start(lis)
	require.NoError(t, err)
	_, err = s.Start(lis)
	require.Error(t, err, "second start must fail")

	client := dialBufconn(t, lis)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	st, err := client.Check(ctx)
	require.NoError(t, err, "health needs no token")
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, st)

	s.SetServing(false)
	st, err = client.Check(ctx)
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, st)

	require.NoError(t, client.Close())
	s.Stop(ctx)
	s.Stop(ctx)

	select {
	case err, ok := <-errCh:
		if ok {
			assert.NoError(t, err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("error channel not closed")
	}
}

func TestServer_AuthInterceptor(t *testing.T) {
	s, signer := newTestServer(t)
	pair, err := signer.IssuePair("01ARZ3NDEKTSV4RRFFQ69G5FAV", auth.RoleMentor)
	require.NoError(t, err)

	info := &grpc.UnaryServerInfo{FullMethod: "/mentorlik.v1.Sessions/List"}
	var seen *auth.Claims
	handler := func(ctx context.Context, _ any) (any, error) {
		seen, _ = ClaimsFromContext(ctx)
		return "ok", nil
	}
	withAuth := func(value string) context.Context {
		return metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", value))
	}

	tests := []struct {
		name     string
		ctx      context.Context
		method   string
		wantCode codes.Code
	}{
		{"valid access token", withAuth("Bearer " + pair.AccessToken), info.FullMethod, codes.OK},
		{"no metadata", context.Background(), info.FullMethod, codes.Unauthenticated},
		{"wrong scheme", withAuth("Basic abc"), info.FullMethod, codes.Unauthenticated},
		{"refresh token", withAuth("Bearer " + pair.RefreshToken), info.FullMethod, codes.Unauthenticated},
		{"garbage", withAuth("Bearer x.y.z"), info.FullMethod, codes.Unauthenticated},
		{"health is exempt", context.Background(), "/grpc.health.v1.Health/Check", codes.OK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = nil
			resp, err := s.authUnary(tt.ctx, nil, &grpc.UnaryServerInfo{FullMethod: tt.method}, handler)
			assert.Equal(t, tt.wantCode, status.Code(err))
			if tt.wantCode == codes.OK {
				assert.Equal(t, "ok", resp)
			}
		})
	}

	_, err = s.authUnary(withAuth("Bearer "+pair.AccessToken), nil, info, handler)
	require.NoError(t, err)
	require.NotNil(t, seen)
	assert.Equal(t, auth.RoleMentor, seen.Role)
}

func TestStatusFromError(t *testing.T) {
	assert.NoError(t, StatusFromError(nil))

	tests := []struct {
		err  error
		want codes.Code
	}{
		{oops.Code("TOKEN_INVALID").Errorf("invalid token"), codes.Unauthenticated},
		{oops.Code("AUTH_EMAIL_NOT_VERIFIED").Errorf("x"), codes.PermissionDenied},
		{oops.Code("VERIFY_TOKEN_EXPIRED").Errorf("x"), codes.FailedPrecondition},
		{oops.Code("ACCOUNT_QUERY_FAILED").Errorf("db down"), codes.Internal},
		{assert.AnError, codes.Internal},
	}
	for _, tt := range tests {
		st := StatusFromError(tt.err)
		assert.Equal(t, tt.want, status.Code(st))
		assert.NotContains(t, st.Error(), "db down")
	}
}

func TestNewServer_RequiresVerifier(t *testing.T) {
	_, err := NewServer(ServerConfig{})
	require.Error(t, err)
}

func TestNewClient_RequiresAddress(t *testing.T) {
	_, err := NewClient(ClientConfig{})
	require.Error(t, err)
}
