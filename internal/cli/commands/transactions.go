package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"chainpad/internal/client"
)

// SubmitCommand creates the transaction submission command. It records
// confirmation demand with the daemon so the mining loop produces blocks for
// the chain.
func SubmitCommand(c *client.Client) *cobra.Command {
	var (
		chainID       uint32
		confirmations int
	)

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Record confirmation demand for a chain",
		Long: `Record that a transaction on the given chain wants the given number of
confirmations. Demand is batched and drives on-demand mining.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if confirmations < 0 {
				return fmt.Errorf("confirmations must not be negative")
			}
			if err := c.PushTransaction(cmd.Context(), chainID, confirmations); err != nil {
				return err
			}
			fmt.Printf("Recorded demand for chain %d (%d confirmations)\n", chainID, confirmations)
			return nil
		},
	}
	cmd.Flags().Uint32Var(&chainID, "chain", 0, "chain ID")
	cmd.Flags().IntVar(&confirmations, "confirmations", 1, "requested confirmations")

	return cmd
}
