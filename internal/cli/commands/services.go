package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"chainpad/internal/client"
	"chainpad/internal/constants"
	"chainpad/internal/orchestrator"
)

// ServiceCommands creates the service inspection commands
func ServiceCommands(c *client.Client) []*cobra.Command {
	servicesCmd := &cobra.Command{
		Use:     "services",
		Short:   "List services of the running network",
		Aliases: []string{"svcs"},
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			services, err := c.Services(cmd.Context())
			if err != nil {
				return err
			}
			if len(services) == 0 {
				fmt.Println("No services running")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SERVICE\tSTATUS\tINSTANCE\tIMAGE")
			for _, svc := range services {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", svc.Name, svc.Status, svc.InstanceID, svc.Image)
			}
			return w.Flush()
		},
	}

	var (
		lines  int
		follow bool
	)
	logsCmd := &cobra.Command{
		Use:   "logs [service...]",
		Short: "Show service logs",
		Long:  "Show captured output of one service, or follow live output of many.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if follow {
				return c.StreamLogs(cmd.Context(), args, func(entry orchestrator.LogEntry) {
					fmt.Printf("%s | %s\n", entry.Service, entry.Line)
				})
			}

			if len(args) != 1 {
				return fmt.Errorf("exactly one service name is required unless --follow is set")
			}
			logLines, err := c.ServiceLogs(cmd.Context(), args[0], lines)
			if err != nil {
				return err
			}
			for _, line := range logLines {
				fmt.Println(line)
			}
			return nil
		},
	}
	logsCmd.Flags().IntVarP(&lines, "lines", "n", constants.DefaultLogTailLines, "number of lines to show")
	logsCmd.Flags().BoolVarP(&follow, "follow", "f", false, "stream live output")

	return []*cobra.Command{servicesCmd, logsCmd}
}
