package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

// SweepCmd returns the sweep command
func SweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run one reminder sweep and one expiry sweep, then exit",
		Long: `Run the lifecycle scheduler's two sweeps once. Platform instructions
(reminder notices, post removals) are written to stdout as JSON lines; the
summary goes to stderr.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(cmd, true)
			if err != nil {
				return err
			}
			defer a.Close(cmd.Context())

			reminded, remindErr := a.Scheduler.SweepReminders(cmd.Context())
			expired, expireErr := a.Scheduler.SweepExpired(cmd.Context())

			fmt.Fprintf(cmd.ErrOrStderr(), "✓ Reminded %d operation(s), expired %d operation(s)\n", reminded, expired)
			return errors.Join(remindErr, expireErr)
		},
	}

	bindConfigFlags(cmd)
	return cmd
}
