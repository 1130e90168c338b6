// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mentorlik Contributors

package main

import (
	"github.com/spf13/cobra"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the Mentorlik CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mentorlik",
		Short: "Mentorlik - accounts and email verification for the mentorship marketplace",
		Long: `Mentorlik serves login, registration and email verification for the
admin, mentor and student roles of the mentorship marketplace.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (YAML)")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewSeedCmd())
	cmd.AddCommand(NewPruneTokensCmd())
	cmd.AddCommand(NewStatusCmd())

	return cmd
}
