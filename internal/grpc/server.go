// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mentorlik Contributors

// Package grpc hosts the gRPC listener: the standard health service and
// bearer-token authentication for every other method.
package grpc

import (
	"context"
	"crypto/tls"
	"log/slog"
	"net"
	"strings"
	"sync/atomic"
	"time"

	"github.com/samber/oops"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/mentorlik/mentorlik/internal/auth"
	"github.com/mentorlik/mentorlik/pkg/errutil"
)

// healthPrefix is exempt from authentication so probes need no token.
const healthPrefix = "/grpc.health.v1.Health/"

// TokenVerifier validates access tokens. *auth.TokenSigner satisfies it.
type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

type claimsKey struct{}

// ClaimsFromContext returns the claims of the authenticated caller.
func ClaimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(*auth.Claims)
	return c, ok
}

// ServerConfig configures NewServer.
type ServerConfig struct {
	Verifier TokenVerifier
	// TLSConfig enables TLS. Nil serves plaintext.
	TLSConfig *tls.Config
	Logger    *slog.Logger
}

// Server owns a grpc.Server and its health service.
type Server struct {
	grpc     *grpc.Server
	health   *health.Server
	verifier TokenVerifier
	logger   *slog.Logger
	running  atomic.Bool
	listener net.Listener
}

// NewServer creates a server with the health service registered and
// reporting NOT_SERVING until SetServing is called.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Verifier == nil {
		return nil, oops.Errorf("token verifier is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		health:   health.NewServer(),
		verifier: cfg.Verifier,
		logger:   logger.With("component", "grpc"),
	}

	opts := []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(s.logUnary, s.authUnary),
		grpc.ChainStreamInterceptor(s.authStream),
	}
	if cfg.TLSConfig != nil {
		opts = append(opts, grpc.Creds(credentials.NewTLS(cfg.TLSConfig)))
	}
	s.grpc = grpc.NewServer(opts...)
	healthpb.RegisterHealthServer(s.grpc, s.health)
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	return s, nil
}

// GRPC exposes the underlying server for service registration.
func (s *Server) GRPC() *grpc.Server { return s.grpc }

// SetServing flips the overall health status.
func (s *Server) SetServing(serving bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		st = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", st)
}

// Start serves on lis in the background. The channel receives at most one
// serve error and is closed when serving stops.
func (s *Server) Start(lis net.Listener) (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Errorf("grpc server already running")
	}
	s.listener = lis
	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if err := s.grpc.Serve(lis); err != nil {
			s.logger.Error("grpc server error", "error", err)
			errCh <- err
		}
	}()
	s.SetServing(true)
	s.logger.Info("grpc server started", "addr", lis.Addr().String())
	return errCh, nil
}

// Stop drains in-flight calls until ctx expires, then forces the close.
func (s *Server) Stop(ctx context.Context) {
	if !s.running.CompareAndSwap(true, false) {
		return
	}
	s.health.Shutdown()

	done := make(chan struct{})
	go func() {
		s.grpc.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.grpc.Stop()
		<-done
	}
	s.logger.Info("grpc server stopped")
}

func (s *Server) authenticate(ctx context.Context, method string) (context.Context, error) {
	if strings.HasPrefix(method, healthPrefix) {
		return ctx, nil
	}
	md, _ := metadata.FromIncomingContext(ctx)
	values := md.Get("authorization")
	if len(values) == 0 {
		return nil, status.Error(codes.Unauthenticated, "missing bearer token")
	}
	scheme, token, ok := strings.Cut(values[0], " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return nil, status.Error(codes.Unauthenticated, "missing bearer token")
	}
	claims, err := s.verifier.Verify(strings.TrimSpace(token))
	if err != nil {
		return nil, StatusFromError(err)
	}
	return context.WithValue(ctx, claimsKey{}, claims), nil
}

func (s *Server) authUnary(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	ctx, err := s.authenticate(ctx, info.FullMethod)
	if err != nil {
		return nil, err
	}
	return handler(ctx, req)
}

type authedStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (w *authedStream) Context() context.Context { return w.ctx }

func (s *Server) authStream(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
	ctx, err := s.authenticate(ss.Context(), info.FullMethod)
	if err != nil {
		return err
	}
	return handler(srv, &authedStream{ServerStream: ss, ctx: ctx})
}

func (s *Server) logUnary(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	s.logger.DebugContext(ctx, "grpc call",
		"method", info.FullMethod,
		"code", status.Code(err).String(),
		"duration", time.Since(start))
	return resp, err
}

var grpcCodes = map[string]codes.Code{
	"TOKEN_INVALID":            codes.Unauthenticated,
	"AUTH_INVALID_CREDENTIALS": codes.Unauthenticated,
	"AUTH_EMAIL_NOT_VERIFIED":  codes.PermissionDenied,
	"AUTH_UNKNOWN_ROLE":        codes.NotFound,
	"AUTH_EMAIL_EXISTS":        codes.AlreadyExists,
	"REQUEST_INVALID":          codes.InvalidArgument,
	"VERIFY_TOKEN_NOT_FOUND":   codes.NotFound,
	"VERIFY_TOKEN_USED":        codes.AlreadyExists,
	"VERIFY_TOKEN_EXPIRED":     codes.FailedPrecondition,
	"VERIFY_UNSUPPORTED_ROLE":  codes.Unimplemented,
}

// StatusFromError converts an oops-coded error into a gRPC status. Codes
// without a mapping become Internal with a generic message.
func StatusFromError(err error) error {
	if err == nil {
		return nil
	}
	code := errutil.Code(err)
	if c, ok := grpcCodes[code]; ok {
		return status.Error(c, strings.ToLower(strings.ReplaceAll(code, "_", " ")))
	}
	return status.Error(codes.Internal, "internal error")
}
