package cli

import (
	"github.com/spf13/cobra"
)

// createRootCommand creates the root command with global flags
func createRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "chainpad",
		Short: "Local test-network orchestration for Pact and Chainweb development",
		Long: `chainpad manages local test networks for Kadena smart-contract development.
It starts an in-process Pact execution server or a container-based devnet,
supervises service health, and drives on-demand mining so submitted
transactions confirm without waiting for wall-clock block times.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	return rootCmd
}
