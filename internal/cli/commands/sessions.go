package commands

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"chainpad/internal/client"
)

// SessionsCommand creates the session history command
func SessionsCommand(c *client.Client) *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List recorded network sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sessions, err := c.Sessions(cmd.Context())
			if err != nil {
				return err
			}
			if len(sessions) == 0 {
				fmt.Println("No sessions recorded")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNETWORK\tPROFILE\tSTATUS\tSTARTED")
			for _, s := range sessions {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					s.ID, s.Network, s.Profile, s.Status, s.CreatedAt.Format(time.RFC3339))
			}
			return w.Flush()
		},
	}
}
