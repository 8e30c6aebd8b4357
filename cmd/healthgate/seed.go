// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HealthGate Contributors

package main

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/smarthealth/healthgate/internal/auth"
	"github.com/smarthealth/healthgate/internal/auth/postgres"
	"github.com/smarthealth/healthgate/internal/store"
)

// AdminPasswordEnv holds the bootstrap administrator password. It is read
// from the environment so it never appears in shell history.
const AdminPasswordEnv = "HEALTHGATE_ADMIN_PASSWORD"

// NewSeedCmd creates the seed command.
func NewSeedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create the bootstrap administrator",
		Long: `Create a validated administrator account. The password is read from
the ` + AdminPasswordEnv + ` environment variable. Running the command again
for an existing email changes nothing.`,
		Args: cobra.NoArgs,
		RunE: runSeed,
	}

	fs := cmd.Flags()
	addDatabaseFlags(fs)
	fs.String("email", "", "administrator email (required)")
	fs.String("name", "Administrator", "administrator display name")
	fs.Duration("timeout", 30*time.Second, "overall timeout")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

func runSeed(cmd *cobra.Command, _ []string) error {
	email, _ := cmd.Flags().GetString("email")
	name, _ := cmd.Flags().GetString("name")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	password := os.Getenv(AdminPasswordEnv)
	if password == "" {
		return oops.Code("CONFIG_INVALID").Errorf("%s must be set", AdminPasswordEnv)
	}

	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Database.URL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("database.url is required")
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	pool, err := store.Connect(ctx, cfg.Database.URL, store.ConnectOptions{Timeout: cfg.Database.ConnectTimeout})
	if err != nil {
		return oops.With("operation", "connect to database").Wrap(err)
	}
	defer pool.Close()

	created, err := seedAdmin(ctx, adminSeed{
		Identities: postgres.NewIdentityRepository(pool),
		Roles:      postgres.NewRoleRepository(pool),
		Transactor: postgres.NewTransactor(pool),
		Hasher:     auth.NewArgon2idHasher(),
	}, name, email, password)
	if err != nil {
		return err
	}
	if !created {
		cmd.Printf("Administrator %s already exists\n", email)
		return nil
	}
	logger.Info("bootstrap administrator created", "email", email)
	cmd.Printf("Administrator %s created\n", email)
	return nil
}

// adminSeed holds the collaborators of seedAdmin.
type adminSeed struct {
	Identities auth.IdentityRepository
	Roles      auth.RoleRepository
	Transactor auth.Transactor
	Hasher     auth.PasswordHasher
}

// seedAdmin creates a validated identity holding the admin role. It
// reports false without error when the email is already registered.
func seedAdmin(ctx context.Context, s adminSeed, name, email, password string) (bool, error) {
	if err := auth.ValidatePassword(password); err != nil {
		return false, err
	}
	hash, err := s.Hasher.Hash(password)
	if err != nil {
		return false, oops.With("operation", "hash password").Wrap(err)
	}
	identity, err := auth.NewIdentity(name, email, hash, nil)
	if err != nil {
		return false, err
	}
	identity.Validated = true

	err = s.Transactor.InTransaction(ctx, func(ctx context.Context) error {
		if err := s.Identities.Create(ctx, identity); err != nil {
			return err
		}
		return s.Roles.UpsertAssignment(ctx, identity.ID, auth.RoleIDAdmin)
	})
	if errors.Is(err, auth.ErrEmailTaken) {
		return false, nil
	}
	if err != nil {
		return false, oops.Code("SEED_FAILED").With("email", email).Wrap(err)
	}
	return true, nil
}
