package cli

import (
	"github.com/spf13/cobra"

	cliadapter "github.com/example/muster/internal/adapters/cli"
)

// OperationCmd returns the operation command
func OperationCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "operation",
		Short: "Inspect scheduled operations",
	}

	cmd.AddCommand(operationListCmd())
	cmd.AddCommand(operationShowCmd())

	return cmd
}

func operationListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List operations",
		RunE: func(cmd *cobra.Command, args []string) error {
			all, _ := cmd.Flags().GetBool("all")

			a, err := buildApp(cmd, false)
			if err != nil {
				return err
			}
			defer a.Close(cmd.Context())

			adapter := cliadapter.NewOperationAdapter(a.Operations, cmd.OutOrStdout(), a.Config.Location())
			return adapter.List(cmd.Context(), all)
		},
	}

	cmd.Flags().Bool("all", false, "Include expired operations")
	bindConfigFlags(cmd)

	return cmd
}

func operationShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show [operation-id]",
		Short: "Show an operation and its current roster",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(cmd, false)
			if err != nil {
				return err
			}
			defer a.Close(cmd.Context())

			adapter := cliadapter.NewOperationAdapter(a.Operations, cmd.OutOrStdout(), a.Config.Location())
			_, err = adapter.Show(cmd.Context(), args[0])
			return err
		},
	}

	bindConfigFlags(cmd)
	return cmd
}
