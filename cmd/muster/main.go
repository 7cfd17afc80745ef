package main

import (
	"fmt"
	"os"
	_ "time/tzdata"

	"github.com/spf13/cobra"

	"github.com/example/muster/internal/cli"
	"github.com/example/muster/internal/version"
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "muster",
		Short:   "Muster - reaction-based signups for community operations",
		Version: version.String(),
		Long: `Muster keeps a published roster of who is attending each scheduled
operation. Members sign up by reacting with a category symbol; the roster is
re-rendered on every change, reminders go out before start, and past
operations are retired.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(cli.ServeCmd())
	rootCmd.AddCommand(cli.InitCmd())
	rootCmd.AddCommand(cli.OperationCmd())
	rootCmd.AddCommand(cli.RolesCmd())
	rootCmd.AddCommand(cli.SweepCmd())
	rootCmd.AddCommand(cli.VersionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
