package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/muster/internal/config"
	"github.com/example/muster/internal/wire"
)

// bindConfigFlags adds the file location flags shared by every command that
// opens the store.
func bindConfigFlags(cmd *cobra.Command) {
	cmd.Flags().String("db", "", "Database path (env MUSTER_DB_PATH, default ~/.muster/muster.db)")
	cmd.Flags().String("roles", "", "Roles file (env MUSTER_ROLES_PATH)")
	cmd.Flags().String("directory", "", "Member directory file (env MUSTER_DIRECTORY_PATH)")
}

// loadConfig reads the environment, then applies any flags set on cmd.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	overrides := map[string]*string{
		"db":            &cfg.DBPath,
		"roles":         &cfg.RolesPath,
		"directory":     &cfg.DirectoryPath,
		"event-channel": &cfg.EventChannelID,
		"staff-role":    &cfg.StaffRoleID,
	}
	for name, target := range overrides {
		if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
			*target = f.Value.String()
		}
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*slog.Logger, error) {
	logger, err := config.NewLogger(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("failed to configure logging: %w", err)
	}
	return logger, nil
}

// buildApp wires the services for a one-shot command.
func buildApp(cmd *cobra.Command, validate bool) (*wire.App, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if validate {
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}
	return wire.Build(cfg, logger, wire.Options{Out: cmd.OutOrStdout()})
}
