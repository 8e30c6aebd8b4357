// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HealthGate Contributors

package main

import (
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/smarthealth/healthgate/internal/config"
	"github.com/smarthealth/healthgate/internal/logging"
)

const serviceName = "healthgate"

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the HealthGate CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "healthgate",
		Short: "HealthGate - authentication and session service",
		Long: `HealthGate registers accounts, issues IP-bound session tokens and
revokes them on login, logout and password change.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (YAML)")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewSeedCmd())

	return cmd
}

// addDatabaseFlags registers the flags every database command accepts.
// Defaults are zero values; only flags the user sets override the config.
func addDatabaseFlags(fs *pflag.FlagSet) {
	fs.String("database-url", "", "PostgreSQL URL (overrides database.url)")
	fs.String("env", "", "environment: development or production")
	fs.String("log-format", "", "log format: json or text")
	fs.String("log-level", "", "log level: debug, info, warn or error")
}

// loadConfig loads the configuration for cmd and installs the default
// logger described by it.
func loadConfig(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return nil, nil, err
	}
	logger := logging.SetDefault(serviceName, version, cfg.Log.Format, cfg.Log.Level)
	return cfg, logger, nil
}
