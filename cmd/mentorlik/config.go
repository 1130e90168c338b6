// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mentorlik Contributors

package main

import (
	"fmt"
	"os"
	"slices"
	"time"

	koanfyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/mentorlik/mentorlik/internal/auth"
	"github.com/mentorlik/mentorlik/internal/logging"
	"github.com/mentorlik/mentorlik/internal/xdg"
)

// Environment variables consulted when neither the config file nor a flag
// sets the value.
const (
	envDatabaseURL = "DATABASE_URL"
	envJWTSecret   = "MENTORLIK_JWT_SECRET" //nolint:gosec // G101: variable name, not a secret
)

// Store backends for serve.
const (
	storeMemory   = "memory"
	storePostgres = "postgres"
)

// loadConfig fills out from the --config YAML file, or the XDG default
// config file when --config is unset, overlaid by flags.
// Flags left at their defaults only fill keys the file does not set.
func loadConfig(flags *pflag.FlagSet, out any) error {
	k := koanf.New(".")
	path := configFile
	if path == "" {
		path = xdg.DefaultConfigFile()
	}
	if path != "" {
		if err := k.Load(file.Provider(path), koanfyaml.Parser()); err != nil {
			return oops.Code("CONFIG_INVALID").
				With("path", path).
				With("operation", "load config file").
				Wrap(err)
		}
	}
	if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
		return oops.Code("CONFIG_INVALID").With("operation", "load flags").Wrap(err)
	}
	if err := k.Unmarshal("", out); err != nil {
		return oops.Code("CONFIG_INVALID").With("operation", "decode config").Wrap(err)
	}
	return nil
}

func envFallback(v *string, key string) {
	if *v == "" {
		*v = os.Getenv(key)
	}
}

// dbConfig is shared by the commands that only talk to the database.
type dbConfig struct {
	DatabaseURL string        `koanf:"database-url"`
	Timeout     time.Duration `koanf:"timeout"`
}

// Validate checks that the configuration is valid.
func (cfg *dbConfig) Validate() error {
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("database-url is required (flag, config file or %s)", envDatabaseURL)
	}
	if cfg.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", cfg.Timeout)
	}
	return nil
}

// Default timeout for one-shot database commands.
const defaultCommandTimeout = 30 * time.Second

func addDBFlags(flags *pflag.FlagSet) {
	flags.String("database-url", "", "PostgreSQL URL (default: $"+envDatabaseURL+")")
	flags.Duration("timeout", defaultCommandTimeout, "timeout for database operations (e.g., 30s, 1m)")
}

func loadDBConfig(flags *pflag.FlagSet) (*dbConfig, error) {
	cfg := &dbConfig{}
	if err := loadConfig(flags, cfg); err != nil {
		return nil, err
	}
	envFallback(&cfg.DatabaseURL, envDatabaseURL)
	return cfg, nil
}

// serveConfig holds configuration for the serve command.
type serveConfig struct {
	HTTPAddr       string        `koanf:"http-addr"`
	GRPCAddr       string        `koanf:"grpc-addr"`
	MetricsAddr    string        `koanf:"metrics-addr"`
	Store          string        `koanf:"store"`
	DatabaseURL    string        `koanf:"database-url"`
	AutoMigrate    bool          `koanf:"auto-migrate"`
	JWTSecret      string        `koanf:"jwt-secret"`
	AccessTTL      time.Duration `koanf:"access-ttl"`
	RefreshTTL     time.Duration `koanf:"refresh-ttl"`
	BaseURL        string        `koanf:"base-url"`
	AllowedOrigins []string      `koanf:"allowed-origins"`
	LogFormat      string        `koanf:"log-format"`
	LogLevel       string        `koanf:"log-level"`
}

// Validate checks that the configuration is valid.
func (cfg *serveConfig) Validate() error {
	if cfg.HTTPAddr == "" {
		return fmt.Errorf("http-addr is required")
	}
	if cfg.GRPCAddr == "" {
		return fmt.Errorf("grpc-addr is required")
	}
	if !slices.Contains([]string{storeMemory, storePostgres}, cfg.Store) {
		return fmt.Errorf("store must be %q or %q, got %q", storeMemory, storePostgres, cfg.Store)
	}
	if cfg.Store == storePostgres && cfg.DatabaseURL == "" {
		return fmt.Errorf("database-url is required for the postgres store (flag, config file or %s)", envDatabaseURL)
	}
	if cfg.AutoMigrate && cfg.Store != storePostgres {
		return fmt.Errorf("auto-migrate requires the postgres store")
	}
	if len(cfg.JWTSecret) < auth.MinSecretLength {
		return fmt.Errorf("jwt-secret must be at least %d bytes (config file or %s)", auth.MinSecretLength, envJWTSecret)
	}
	if cfg.AccessTTL < 0 || cfg.RefreshTTL < 0 {
		return fmt.Errorf("access-ttl and refresh-ttl cannot be negative")
	}
	if cfg.BaseURL == "" {
		return fmt.Errorf("base-url is required")
	}
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return fmt.Errorf("log-format must be 'json' or 'text', got %q", cfg.LogFormat)
	}
	if _, err := logging.ParseLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("log-level must be debug, info, warn or error, got %q", cfg.LogLevel)
	}
	return nil
}

func loadServeConfig(flags *pflag.FlagSet) (*serveConfig, error) {
	cfg := &serveConfig{}
	if err := loadConfig(flags, cfg); err != nil {
		return nil, err
	}
	envFallback(&cfg.DatabaseURL, envDatabaseURL)
	envFallback(&cfg.JWTSecret, envJWTSecret)
	return cfg, nil
}
