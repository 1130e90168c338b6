// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mentorlik Contributors

package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/samber/oops"

	"github.com/mentorlik/mentorlik/internal/auth"
	"github.com/mentorlik/mentorlik/internal/auth/memory"
	"github.com/mentorlik/mentorlik/internal/auth/postgres"
	"github.com/mentorlik/mentorlik/internal/observability"
	"github.com/mentorlik/mentorlik/internal/store"
)

const readinessTimeout = 2 * time.Second

// Stores are the per-role account stores and the token store the auth core
// runs on.
type Stores struct {
	Admins   auth.AccountRepository
	Mentors  auth.AccountRepository
	Students auth.AccountRepository
	Tokens   auth.VerificationTokenRepository

	// Ready backs the readiness probe.
	Ready observability.ReadinessChecker
	close func()
}

// Close releases the underlying connections.
func (s *Stores) Close() {
	if s.close != nil {
		s.close()
	}
}

// newMemoryStores returns empty in-process stores. Nothing survives a
// restart.
func newMemoryStores() *Stores {
	return &Stores{
		Admins:   memory.NewAccountStore(auth.RoleAdmin),
		Mentors:  memory.NewAccountStore(auth.RoleMentor),
		Students: memory.NewAccountStore(auth.RoleStudent),
		Tokens:   memory.NewVerificationStore(),
		Ready:    func(context.Context) error { return nil },
	}
}

// openPostgresStores connects with retry and builds the repositories on one
// pool.
func openPostgresStores(ctx context.Context, databaseURL string, logger *slog.Logger) (*Stores, error) {
	cfg := store.DefaultConnectConfig()
	cfg.Logger = logger
	pool, err := store.Connect(ctx, databaseURL, cfg)
	if err != nil {
		return nil, err
	}

	s := &Stores{
		Tokens: postgres.NewVerificationTokenRepository(pool),
		Ready:  store.ReadinessCheck(pool, readinessTimeout),
		close:  pool.Close,
	}
	repos := []struct {
		role auth.Role
		dst  *auth.AccountRepository
	}{
		{auth.RoleAdmin, &s.Admins},
		{auth.RoleMentor, &s.Mentors},
		{auth.RoleStudent, &s.Students},
	}
	for _, r := range repos {
		repo, repoErr := postgres.NewAccountRepository(pool, r.role)
		if repoErr != nil {
			pool.Close()
			return nil, oops.Code("STORE_INIT_FAILED").With("role", r.role.String()).Wrap(repoErr)
		}
		*r.dst = repo
	}
	return s, nil
}

// migrateUp applies pending migrations.
func migrateUp(databaseURL string) error {
	m, err := store.NewMigrator(databaseURL)
	if err != nil {
		return err
	}
	defer func() { _ = m.Close() }() //nolint:errcheck // close error after Up is not actionable
	return m.Up()
}

// authCore is the wired auth component graph.
type authCore struct {
	Router       *auth.Router
	Admin        *auth.AccountHandler
	Verification *auth.VerificationService
	Refresher    *auth.Refresher
	Signer       *auth.TokenSigner
	Throttle     *auth.LoginThrottle
}

// coreOptions tune newAuthCore.
type coreOptions struct {
	Secret     []byte
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	BaseURL    string
	Hasher     auth.PasswordHasher
	Logger     *slog.Logger

	// OnNotifyFailure counts best-effort notification failures. Optional.
	OnNotifyFailure auth.NotificationFailureRecorder
}

// newAuthCore wires the three role handlers, the router, verification for
// mentors and students, and refresh over s.
func newAuthCore(s *Stores, opts coreOptions) (*authCore, error) {
	if opts.Hasher == nil {
		opts.Hasher = auth.NewArgon2idHasher()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	signer, err := auth.NewTokenSigner(auth.SignerConfig{
		Secret:     opts.Secret,
		AccessTTL:  opts.AccessTTL,
		RefreshTTL: opts.RefreshTTL,
	})
	if err != nil {
		return nil, err
	}

	throttle := auth.NewLoginThrottle(nil)
	handlerOpts := []auth.HandlerOption{auth.WithHandlerLogger(opts.Logger), auth.WithLoginThrottle(throttle)}
	admin, err := auth.NewAdminHandler(s.Admins, opts.Hasher, signer, handlerOpts...)
	if err != nil {
		return nil, err
	}
	mentor, err := auth.NewMentorHandler(s.Mentors, opts.Hasher, signer, handlerOpts...)
	if err != nil {
		return nil, err
	}
	student, err := auth.NewStudentHandler(s.Students, opts.Hasher, signer, handlerOpts...)
	if err != nil {
		return nil, err
	}
	router, err := auth.NewRouter(admin, mentor, student)
	if err != nil {
		return nil, err
	}

	notifier, err := auth.NewLogNotifier(opts.BaseURL, opts.Logger)
	if err != nil {
		return nil, err
	}
	verification, err := auth.NewVerificationService(s.Tokens, notifier,
		auth.WithActivation(auth.RoleMentor, s.Mentors),
		auth.WithActivation(auth.RoleStudent, s.Students),
		auth.WithVerificationLogger(opts.Logger),
		auth.WithNotificationFailureRecorder(opts.OnNotifyFailure))
	if err != nil {
		return nil, err
	}

	refresher, err := auth.NewRefresher(router, signer)
	if err != nil {
		return nil, err
	}

	return &authCore{
		Router:       router,
		Admin:        admin,
		Verification: verification,
		Refresher:    refresher,
		Signer:       signer,
		Throttle:     throttle,
	}, nil
}
