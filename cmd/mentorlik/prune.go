// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mentorlik Contributors

package main

import (
	"context"
	"log/slog"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/mentorlik/mentorlik/internal/auth"
)

// pruneDeps are the injectable parts of the prune-tokens command.
type pruneDeps struct {
	OpenStores func(ctx context.Context, databaseURL string, logger *slog.Logger) (*Stores, error)
}

// NewPruneTokensCmd creates the prune-tokens subcommand.
func NewPruneTokensCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prune-tokens",
		Short: "Delete expired verification tokens",
		Long: `Deletes verification tokens whose expiry has passed. Used tokens that
have not expired yet are kept so a reused link still reports "already used".`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadDBConfig(cmd.Flags())
			if err != nil {
				return err
			}
			return runPruneTokens(cmd, cfg, pruneDeps{})
		},
	}

	addDBFlags(cmd.Flags())

	return cmd
}

func runPruneTokens(cmd *cobra.Command, cfg *dbConfig, deps pruneDeps) error {
	if deps.OpenStores == nil {
		deps.OpenStores = openPostgresStores
	}
	if cfg.DatabaseURL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("DATABASE_URL environment variable or --database-url is required")
	}
	if err := cfg.Validate(); err != nil {
		return oops.Code("CONFIG_INVALID").Wrap(err)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Timeout)
	defer cancel()

	stores, err := deps.OpenStores(ctx, cfg.DatabaseURL, slog.Default())
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
	}
	defer stores.Close()

	// Pruning sends nothing; the notifier only satisfies the constructor.
	notifier, err := auth.NewLogNotifier(defaultBaseURL, slog.Default())
	if err != nil {
		return err
	}
	svc, err := auth.NewVerificationService(stores.Tokens, notifier)
	if err != nil {
		return err
	}

	n, err := svc.PruneExpired(ctx)
	if err != nil {
		return err
	}
	cmd.Printf("Deleted %d expired verification token(s)\n", n)
	return nil
}
