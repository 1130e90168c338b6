// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mentorlik Contributors

package main

import (
	"context"
	"log/slog"
	"net"

	"github.com/mentorlik/mentorlik/internal/auth"
	"github.com/mentorlik/mentorlik/internal/logging"
	"github.com/mentorlik/mentorlik/internal/observability"
)

// ServeDeps contains injectable dependencies for the serve command.
// All fields with nil values will use their default implementations.
type ServeDeps struct {
	// LoggerFactory builds and installs the process logger.
	// Default: logging.SetDefault
	LoggerFactory func(opts logging.Options) (*slog.Logger, error)

	// StoreOpener opens the configured stores.
	// Default: newMemoryStores or openPostgresStores by cfg.Store
	StoreOpener func(ctx context.Context, cfg *serveConfig, logger *slog.Logger) (*Stores, error)

	// Migrator applies pending migrations when --auto-migrate is set.
	// Default: migrateUp
	Migrator func(databaseURL string) error

	// ObservabilityServerFactory creates an observability server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, isReady observability.ReadinessChecker, logger *slog.Logger) ObservabilityServer

	// Hasher hashes account passwords.
	// Default: auth.NewArgon2idHasher
	Hasher auth.PasswordHasher

	// ListenerFactory creates the HTTP and gRPC listeners.
	// Default: net.Listen
	ListenerFactory func(network, address string) (net.Listener, error)
}

// ObservabilityServer interface wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	Metrics() *observability.Metrics
}

func (d *ServeDeps) withDefaults() *ServeDeps {
	out := ServeDeps{}
	if d != nil {
		out = *d
	}
	if out.LoggerFactory == nil {
		out.LoggerFactory = logging.SetDefault
	}
	if out.StoreOpener == nil {
		out.StoreOpener = func(ctx context.Context, cfg *serveConfig, logger *slog.Logger) (*Stores, error) {
			if cfg.Store == storeMemory {
				return newMemoryStores(), nil
			}
			return openPostgresStores(ctx, cfg.DatabaseURL, logger)
		}
	}
	if out.Migrator == nil {
		out.Migrator = migrateUp
	}
	if out.ObservabilityServerFactory == nil {
		out.ObservabilityServerFactory = func(addr string, isReady observability.ReadinessChecker, logger *slog.Logger) ObservabilityServer {
			return observability.NewServer(addr, isReady, logger)
		}
	}
	if out.Hasher == nil {
		out.Hasher = auth.NewArgon2idHasher()
	}
	if out.ListenerFactory == nil {
		out.ListenerFactory = net.Listen
	}
	return &out
}
