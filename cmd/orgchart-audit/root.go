package main

import "github.com/spf13/cobra"

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "orgchart-audit",
		Short:        "Offline checks and exports for the org chart",
		SilenceUsage: true,
	}
	cmd.AddCommand(newCheckCmd())
	cmd.AddCommand(newExportCmd())
	cmd.AddCommand(newSeedOwnerCmd())
	return cmd
}
