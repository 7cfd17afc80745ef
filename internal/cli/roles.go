package cli

import (
	"github.com/spf13/cobra"

	cliadapter "github.com/example/muster/internal/adapters/cli"
	"github.com/example/muster/internal/config"
)

// RolesCmd returns the roles command
func RolesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "roles",
		Short: "Show the configured signup categories in display order",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			pol, err := config.LoadRoles(cfg.RolesPath)
			if err != nil {
				return err
			}
			cliadapter.Roles(cmd.OutOrStdout(), pol)
			return nil
		},
	}

	cmd.Flags().String("roles", "", "Roles file (env MUSTER_ROLES_PATH)")
	return cmd
}
