// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mentorlik Contributors

package main

import (
	"context"
	"crypto/rand"
	"errors"
	"log/slog"
	"os"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mentorlik/mentorlik/internal/auth"
	"github.com/mentorlik/mentorlik/internal/schema"
	"github.com/mentorlik/mentorlik/pkg/errutil"
)

// seedFile is the document read by seed --file.
type seedFile struct {
	Admins []seedAdmin `json:"admins" yaml:"admins" jsonschema:"required,minItems=1"`
}

type seedAdmin struct {
	Name        string `json:"name,omitempty" yaml:"name" jsonschema:"maxLength=100"`
	Email       string `json:"email" yaml:"email" jsonschema:"required,format=email,maxLength=100"`
	Password    string `json:"password" yaml:"password" jsonschema:"required,minLength=8,maxLength=128"`
	Title       string `json:"title" yaml:"title" jsonschema:"required,minLength=1,maxLength=100"`
	AccessLevel int    `json:"access_level,omitempty" yaml:"access_level" jsonschema:"minimum=0,maximum=10"`
	Description string `json:"description,omitempty" yaml:"description" jsonschema:"maxLength=500"`
}

func (a seedAdmin) registration() auth.Registration {
	return auth.Registration{
		Name:     a.Name,
		Email:    a.Email,
		Password: a.Password,
		Profile: auth.AdminProfile{
			AccessLevel: a.AccessLevel,
			Title:       a.Title,
			Description: a.Description,
		},
	}
}

var seedFileSchema = schema.MustNew(&seedFile{}, "seed-admins")

// seedConfig holds configuration for the seed command.
type seedConfig struct {
	dbConfig `koanf:",squash"`
	File     string `koanf:"file"`
}

// Validate checks that the configuration is valid.
func (cfg *seedConfig) Validate() error {
	if cfg.File == "" {
		return errors.New("file is required")
	}
	return cfg.dbConfig.Validate()
}

// seedDeps are the injectable parts of the seed command.
type seedDeps struct {
	Migrate    func(databaseURL string) error
	OpenStores func(ctx context.Context, databaseURL string, logger *slog.Logger) (*Stores, error)
	Hasher     auth.PasswordHasher
}

// seedResult counts what a seed run did.
type seedResult struct {
	Created int
	Skipped int
}

// NewSeedCmd creates the seed subcommand.
func NewSeedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create administrator accounts from a YAML file",
		Long: `Creates the administrator accounts listed in a YAML file. Admins cannot
self-register, so this is how the first ones are provisioned.
This command is idempotent - accounts whose email already exists are skipped.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := &seedConfig{}
			if err := loadConfig(cmd.Flags(), cfg); err != nil {
				return err
			}
			envFallback(&cfg.DatabaseURL, envDatabaseURL)
			return runSeed(cmd, cfg, seedDeps{})
		},
	}

	addDBFlags(cmd.Flags())
	cmd.Flags().String("file", "", "YAML file listing the admin accounts")

	return cmd
}

func runSeed(cmd *cobra.Command, cfg *seedConfig, deps seedDeps) error {
	if deps.Migrate == nil {
		deps.Migrate = migrateUp
	}
	if deps.OpenStores == nil {
		deps.OpenStores = openPostgresStores
	}
	if deps.Hasher == nil {
		deps.Hasher = auth.NewArgon2idHasher()
	}

	if cfg.DatabaseURL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("DATABASE_URL environment variable or --database-url is required")
	}
	if err := cfg.Validate(); err != nil {
		return oops.Code("CONFIG_INVALID").Wrap(err)
	}

	admins, err := readSeedFile(cfg.File)
	if err != nil {
		return err
	}

	// Use cmd.Context() to respect SIGINT/SIGTERM signals
	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Timeout)
	defer cancel()

	cmd.Println("Running migrations...")
	if err := deps.Migrate(cfg.DatabaseURL); err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "run migrations").Wrap(err)
	}

	cmd.Println("Connecting to database...")
	stores, err := deps.OpenStores(ctx, cfg.DatabaseURL, slog.Default())
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
	}
	defer stores.Close()

	res, err := seedAdmins(ctx, stores.Admins, deps.Hasher, admins, slog.Default())
	if err != nil {
		return err
	}

	cmd.Printf("Seeding complete: %d created, %d skipped\n", res.Created, res.Skipped)
	return nil
}

// readSeedFile parses and schema-validates path.
func readSeedFile(path string) ([]seedAdmin, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: operator-supplied path
	if err != nil {
		return nil, oops.Code("SEED_FILE_INVALID").With("path", path).Wrap(err)
	}
	if err := seedFileSchema.ValidateYAML(data); err != nil {
		// Re-coded rather than wrapped: the inner REQUEST_INVALID would win.
		return nil, oops.Code("SEED_FILE_INVALID").
			With("path", path).
			With("violations", schema.ViolationsOf(err)).
			Errorf("%s: %s", path, err.Error())
	}
	var doc seedFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, oops.Code("SEED_FILE_INVALID").With("path", path).Wrap(err)
	}
	return doc.Admins, nil
}

// seedAdmins registers each admin through the admin handler so seeded
// accounts get the same validation and hashing as any other. Existing
// emails are skipped.
func seedAdmins(ctx context.Context, accounts auth.AccountRepository, hasher auth.PasswordHasher, admins []seedAdmin, logger *slog.Logger) (seedResult, error) {
	var res seedResult

	// Tokens issued during Register are discarded, so a throwaway key will do.
	secret := make([]byte, auth.MinSecretLength)
	if _, err := rand.Read(secret); err != nil {
		return res, oops.Code("SEED_FAILED").With("operation", "generate signing key").Wrap(err)
	}
	signer, err := auth.NewTokenSigner(auth.SignerConfig{Secret: secret})
	if err != nil {
		return res, oops.Code("SEED_FAILED").Wrap(err)
	}
	handler, err := auth.NewAdminHandler(accounts, hasher, signer, auth.WithHandlerLogger(logger))
	if err != nil {
		return res, oops.Code("SEED_FAILED").Wrap(err)
	}

	for _, a := range admins {
		email := auth.NormalizeEmail(a.Email)
		exists, err := accounts.ExistsByEmail(ctx, email)
		if err != nil {
			return res, oops.Code("SEED_FAILED").With("operation", "check existing admin").With("email", email).Wrap(err)
		}
		if exists {
			logger.Info("admin already exists, skipping", "email", email)
			res.Skipped++
			continue
		}

		dto, err := handler.Register(ctx, a.registration())
		if err != nil {
			if errutil.HasCode(err, "AUTH_EMAIL_EXISTS") {
				logger.Info("admin already exists, skipping", "email", email)
				res.Skipped++
				continue
			}
			return res, oops.Code("SEED_FAILED").With("operation", "register admin").With("email", email).Wrap(err)
		}
		logger.Info("created admin", "id", dto.ID, "email", dto.Email)
		res.Created++
	}
	return res, nil
}
