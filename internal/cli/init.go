package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/example/muster/internal/db"
)

const sampleRolesFile = `# Signup categories, in display order. Members with any listed role may
# claim a category; an empty list means anyone may.
categories:
  - key: operator
    label: Operator
    symbol: "🎯"
    roles: []
  - key: support
    label: Support
    symbol: "🛠"
    roles: []
declined:
  label: Declined
  symbol: "❌"
`

const sampleDirectoryFile = `# Member ids as delivered by the platform, with display names and role ids.
members: []
`

// InitCmd returns the init command
func InitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the muster database",
		Long: `Create the muster database with the required schema, and write sample
roles and member directory files if they do not exist yet.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			dbPath := cfg.DBPath
			if dbPath == "" {
				if dbPath, err = db.DefaultPath(); err != nil {
					return err
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Initializing muster database at %s\n", dbPath)

			database, err := db.Open(dbPath)
			if err != nil {
				return fmt.Errorf("failed to initialize database: %w", err)
			}
			defer database.Close()

			version, err := db.CurrentVersion(database)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Database initialized (schema version %d)\n", version)

			for path, content := range map[string]string{
				cfg.RolesPath:     sampleRolesFile,
				cfg.DirectoryPath: sampleDirectoryFile,
			} {
				created, err := writeIfMissing(path, content)
				if err != nil {
					return err
				}
				if created {
					fmt.Fprintf(cmd.OutOrStdout(), "✓ Sample file created at %s\n", path)
				}
			}

			fmt.Fprintln(cmd.OutOrStdout())
			fmt.Fprintln(cmd.OutOrStdout(), "Next steps:")
			fmt.Fprintln(cmd.OutOrStdout(), "  muster roles")
			fmt.Fprintln(cmd.OutOrStdout(), "  MUSTER_STAFF_ROLE_ID=<role> muster serve")
			return nil
		},
	}

	bindConfigFlags(cmd)
	return cmd
}

// writeIfMissing creates path with content unless it already exists.
func writeIfMissing(path, content string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return false, fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return false, fmt.Errorf("failed to write %s: %w", path, err)
	}
	return true, nil
}
