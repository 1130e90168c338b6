// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mentorlik Contributors

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mentorlik/mentorlik/internal/api"
	"github.com/mentorlik/mentorlik/internal/auth"
	mgrpc "github.com/mentorlik/mentorlik/internal/grpc"
	"github.com/mentorlik/mentorlik/internal/logging"
)

// Default values for serve command flags.
const (
	defaultHTTPAddr    = ":8080"
	defaultGRPCAddr    = "127.0.0.1:9000"
	defaultMetricsAddr = "127.0.0.1:9100"
	defaultBaseURL     = "http://localhost:4200"
	defaultLogFormat   = "json"
	defaultLogLevel    = "info"
)

const shutdownTimeout = 5 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the auth server (HTTP API, gRPC, metrics)",
		Long: `Start the process that serves login, registration, email verification
and token refresh over HTTP, the gRPC health service, and the metrics and
health probes.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadServeConfig(cmd.Flags())
			if err != nil {
				return err
			}
			return runServeWithDeps(cmd.Context(), cfg, cmd, nil)
		},
	}

	f := cmd.Flags()
	f.String("http-addr", defaultHTTPAddr, "HTTP API listen address")
	f.String("grpc-addr", defaultGRPCAddr, "gRPC listen address")
	f.String("metrics-addr", defaultMetricsAddr, "metrics/health HTTP address (empty = disabled)")
	f.String("store", storePostgres, "account store backend (memory or postgres)")
	f.String("database-url", "", "PostgreSQL URL (default: $"+envDatabaseURL+")")
	f.Bool("auto-migrate", false, "apply pending migrations before serving")
	f.Duration("access-ttl", auth.DefaultAccessTTL, "access token lifetime")
	f.Duration("refresh-ttl", auth.DefaultRefreshTTL, "refresh token lifetime")
	f.String("base-url", defaultBaseURL, "frontend URL used to build verification links")
	f.StringSlice("allowed-origins", api.DefaultConfig().AllowedOrigins, "CORS allowed origins")
	f.String("log-format", defaultLogFormat, "log format (json or text)")
	f.String("log-level", defaultLogLevel, "log level (debug, info, warn, error)")

	return cmd
}

// runServeWithDeps starts the server with injectable dependencies.
// If deps is nil, default implementations are used.
func runServeWithDeps(ctx context.Context, cfg *serveConfig, cmd *cobra.Command, deps *ServeDeps) error {
	deps = deps.withDefaults()

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := deps.LoggerFactory(logging.Options{
		Service: "mentorlik",
		Version: version,
		Format:  cfg.LogFormat,
		Level:   cfg.LogLevel,
	})
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}

	logger.Info("starting mentorlik",
		"http_addr", cfg.HTTPAddr,
		"grpc_addr", cfg.GRPCAddr,
		"store", cfg.Store,
	)

	if cfg.AutoMigrate {
		if err := deps.Migrator(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("failed to apply migrations: %w", err)
		}
		logger.Info("migrations applied")
	}

	stores, err := deps.StoreOpener(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to open %s store: %w", cfg.Store, err)
	}
	defer stores.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Start observability server first so readiness reflects startup.
	var obsServer ObservabilityServer
	coreOpts := coreOptions{
		Secret:     []byte(cfg.JWTSecret),
		AccessTTL:  cfg.AccessTTL,
		RefreshTTL: cfg.RefreshTTL,
		BaseURL:    cfg.BaseURL,
		Hasher:     deps.Hasher,
		Logger:     logger,
	}
	apiDeps := api.Deps{Logger: logger}
	if cfg.MetricsAddr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.MetricsAddr, stores.Ready, logger)
		obsErrChan, startErr := obsServer.Start()
		if startErr != nil {
			return fmt.Errorf("failed to start observability server: %w", startErr)
		}
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability")
		logger.Info("observability server started", "addr", obsServer.Addr())

		metrics := obsServer.Metrics()
		coreOpts.OnNotifyFailure = metrics.RecordNotificationFailure
		apiDeps.Metrics = metrics
	}
	stopObs := func(shutdownCtx context.Context) {
		if obsServer == nil {
			return
		}
		if stopErr := obsServer.Stop(shutdownCtx); stopErr != nil {
			logger.Warn("error stopping observability server", "error", stopErr)
		}
	}

	core, err := newAuthCore(stores, coreOpts)
	if err != nil {
		stopObs(context.Background())
		return fmt.Errorf("failed to build auth core: %w", err)
	}
	apiDeps.Router = core.Router
	apiDeps.Verification = core.Verification
	apiDeps.Refresher = core.Refresher
	apiDeps.Signer = core.Signer
	go pruneThrottle(ctx, core.Throttle, auth.FailureWindow, logger)

	apiServer, err := api.New(api.Config{AllowedOrigins: cfg.AllowedOrigins}, apiDeps)
	if err != nil {
		stopObs(context.Background())
		return fmt.Errorf("failed to create API server: %w", err)
	}

	httpListener, err := deps.ListenerFactory("tcp", cfg.HTTPAddr)
	if err != nil {
		stopObs(context.Background())
		return fmt.Errorf("failed to listen on %s: %w", cfg.HTTPAddr, err)
	}
	httpServer := apiServer.NewHTTPServer(cfg.HTTPAddr)
	httpErrChan := serveHTTP(httpServer, httpListener, logger)
	go monitorServerErrors(ctx, cancel, httpErrChan, "http")
	logger.Info("HTTP API listening", "addr", httpListener.Addr().String())

	grpcServer, err := mgrpc.NewServer(mgrpc.ServerConfig{Verifier: core.Signer, Logger: logger})
	if err != nil {
		shutdownServers(logger, httpServer, nil, stopObs)
		return fmt.Errorf("failed to create gRPC server: %w", err)
	}
	grpcListener, err := deps.ListenerFactory("tcp", cfg.GRPCAddr)
	if err != nil {
		shutdownServers(logger, httpServer, nil, stopObs)
		return fmt.Errorf("failed to listen on %s: %w", cfg.GRPCAddr, err)
	}
	grpcErrChan, err := grpcServer.Start(grpcListener)
	if err != nil {
		_ = grpcListener.Close() //nolint:errcheck // start error takes precedence
		shutdownServers(logger, httpServer, nil, stopObs)
		return fmt.Errorf("failed to start gRPC server: %w", err)
	}
	go monitorServerErrors(ctx, cancel, grpcErrChan, "grpc")

	// Handle signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	cmd.Println("Mentorlik started")
	logger.Info("mentorlik ready",
		"http_addr", httpListener.Addr().String(),
		"grpc_addr", grpcListener.Addr().String(),
		"roles", core.Router.Roles(),
	)

	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig)
	case <-ctx.Done():
		logger.Info("context cancelled, shutting down")
	}

	logger.Info("shutting down...")
	shutdownServers(logger, httpServer, grpcServer, stopObs)
	logger.Info("shutdown complete")
	return nil
}

// serveHTTP serves srv on lis in the background. The channel gets at most
// one serve error and is closed when serving stops.
func serveHTTP(srv *http.Server, lis net.Listener, logger *slog.Logger) <-chan error {
	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", "error", err)
			errCh <- err
		}
	}()
	return errCh
}

// shutdownServers stops the servers in reverse start order within
// shutdownTimeout. Nil servers are skipped.
func shutdownServers(logger *slog.Logger, httpServer *http.Server, grpcServer *mgrpc.Server, stopObs func(context.Context)) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if grpcServer != nil {
		grpcServer.Stop(shutdownCtx)
	}
	if httpServer != nil {
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("error stopping HTTP server", "error", err)
		}
	}
	stopObs(shutdownCtx)
}

// pruneThrottle drops stale login throttle entries every interval until
// ctx is done.
func pruneThrottle(ctx context.Context, throttle *auth.LoginThrottle, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if n := throttle.Prune(); n > 0 {
				logger.Debug("login throttle pruned", "entries", n)
			}
		case <-ctx.Done():
			return
		}
	}
}

// monitorServerErrors cancels ctx when a server reports an error. A closed
// channel means the server stopped cleanly.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}
