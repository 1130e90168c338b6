// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mentorlik Contributors

package main

import (
	"fmt"
	"strconv"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/mentorlik/mentorlik/internal/store"
)

// schemaMigrator wraps the methods used from store.Migrator.
type schemaMigrator interface {
	Up() error
	Down() error
	Steps(n int) error
	Version() (uint, bool, error)
	Force(version int) error
	Status() (*store.MigrationStatus, error)
	Close() error
}

type migratorFactory func(databaseURL string) (schemaMigrator, error)

func newStoreMigrator(databaseURL string) (schemaMigrator, error) {
	return store.NewMigrator(databaseURL)
}

// NewMigrateCmd creates the migrate command group.
func NewMigrateCmd() *cobra.Command {
	return newMigrateCmd(newStoreMigrator)
}

func newMigrateCmd(factory migratorFactory) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
		Long: `Apply, revert and inspect the embedded schema migrations for the
account and verification token tables.`,
	}
	cmd.PersistentFlags().String("database-url", "", "PostgreSQL URL (default: $"+envDatabaseURL+")")

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: withMigrator(factory, func(cmd *cobra.Command, m schemaMigrator, _ []string) error {
			cmd.Println("Running migrations...")
			if err := m.Up(); err != nil {
				return err
			}
			cmd.Println("Migrations completed successfully")
			return nil
		}),
	})

	down := &cobra.Command{
		Use:   "down",
		Short: "Revert all migrations (drops all data)",
		Args:  cobra.NoArgs,
		RunE: withMigrator(factory, func(cmd *cobra.Command, m schemaMigrator, _ []string) error {
			yes, _ := cmd.Flags().GetBool("yes") //nolint:errcheck // flag is registered below
			if !yes {
				return oops.Code("CONFIRMATION_REQUIRED").Errorf("migrate down drops every account; pass --yes to confirm")
			}
			if err := m.Down(); err != nil {
				return err
			}
			cmd.Println("All migrations reverted")
			return nil
		}),
	}
	down.Flags().Bool("yes", false, "confirm reverting every migration")
	cmd.AddCommand(down)

	cmd.AddCommand(&cobra.Command{
		Use:   "steps N",
		Short: "Apply N migrations (negative N reverts)",
		Args:  cobra.ExactArgs(1),
		RunE: withMigrator(factory, func(cmd *cobra.Command, m schemaMigrator, args []string) error {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return oops.Code("INVALID_ARGUMENT").With("steps", args[0]).Wrap(err)
			}
			if err := m.Steps(n); err != nil {
				return err
			}
			cmd.Printf("Migrated %d step(s)\n", n)
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the applied schema version",
		Args:  cobra.NoArgs,
		RunE: withMigrator(factory, func(cmd *cobra.Command, m schemaMigrator, _ []string) error {
			v, dirty, err := m.Version()
			if err != nil {
				return err
			}
			if dirty {
				cmd.Printf("%d (dirty)\n", v)
				return nil
			}
			cmd.Println(v)
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "force VERSION",
		Short: "Mark VERSION as applied and clear the dirty flag",
		Args:  cobra.ExactArgs(1),
		RunE: withMigrator(factory, func(cmd *cobra.Command, m schemaMigrator, args []string) error {
			v, err := strconv.Atoi(args[0])
			if err != nil {
				return oops.Code("INVALID_ARGUMENT").With("version", args[0]).Wrap(err)
			}
			if err := m.Force(v); err != nil {
				return err
			}
			cmd.Printf("Forced version %d\n", v)
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show applied and pending migrations",
		Args:  cobra.NoArgs,
		RunE: withMigrator(factory, func(cmd *cobra.Command, m schemaMigrator, _ []string) error {
			st, err := m.Status()
			if err != nil {
				return err
			}
			cmd.Print(formatMigrationStatus(st))
			return nil
		}),
	})

	return cmd
}

// withMigrator resolves the database URL, opens a migrator and closes it
// after fn.
func withMigrator(factory migratorFactory, fn func(*cobra.Command, schemaMigrator, []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		cfg := &struct {
			DatabaseURL string `koanf:"database-url"`
		}{}
		if loadErr := loadConfig(cmd.Flags(), cfg); loadErr != nil {
			return loadErr
		}
		envFallback(&cfg.DatabaseURL, envDatabaseURL)
		if cfg.DatabaseURL == "" {
			return oops.Code("CONFIG_INVALID").Errorf("DATABASE_URL environment variable or --database-url is required")
		}

		m, err := factory(cfg.DatabaseURL)
		if err != nil {
			return oops.Code("MIGRATION_INIT_FAILED").With("operation", "open migrator").Wrap(err)
		}
		defer func() {
			if closeErr := m.Close(); closeErr != nil && err == nil {
				err = closeErr
			}
		}()
		return fn(cmd, m, args)
	}
}

func formatMigrationStatus(st *store.MigrationStatus) string {
	out := fmt.Sprintf("current: %d", st.Current)
	if st.Dirty {
		out += " (dirty)"
	}
	out += "\n"
	for _, v := range st.Applied {
		out += fmt.Sprintf("  [x] %s\n", migrationLabel(v))
	}
	for _, v := range st.Pending {
		out += fmt.Sprintf("  [ ] %s\n", migrationLabel(v))
	}
	return out
}

func migrationLabel(v uint) string {
	name, err := store.MigrationName(v)
	if err != nil || name == "" {
		return fmt.Sprintf("%06d", v)
	}
	return name
}
