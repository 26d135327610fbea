package commands

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"chainpad/internal/client"
	"chainpad/internal/network"
)

// NetworkCommands creates the network lifecycle commands
func NetworkCommands(c *client.Client) []*cobra.Command {
	var profile string

	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the local network",
		Long:  "Start the configured network profile and wait until its primary service is healthy.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := c.StartNetwork(cmd.Context(), profile)
			if err != nil {
				return err
			}
			fmt.Printf("Network %q is ready\n", status.Profile)
			printPorts(status)
			return nil
		},
	}
	startCmd.Flags().StringVarP(&profile, "profile", "p", "", "network profile to start (default from config)")

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the local network",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.StopNetwork(cmd.Context()); err != nil {
				return err
			}
			fmt.Println("Network stopped")
			return nil
		},
	}

	restartCmd := &cobra.Command{
		Use:   "restart",
		Short: "Restart the local network",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := c.RestartNetwork(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("Network %q restarted\n", status.Profile)
			printPorts(status)
			return nil
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show network status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := c.NetworkStatus(cmd.Context())
			if err != nil {
				return err
			}
			if !status.Running {
				fmt.Println("Network is not running")
				return nil
			}

			fmt.Printf("Profile: %s (primary: %s)\n\n", status.Profile, status.Primary)
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SERVICE\tSTATUS\tUPTIME\tRESTARTS")
			for _, svc := range status.Services {
				uptime := "-"
				if !svc.StartedAt.IsZero() {
					uptime = time.Since(svc.StartedAt).Round(time.Second).String()
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", svc.Name, svc.Status, uptime, svc.Restarts)
			}
			w.Flush()
			printPorts(status)
			return nil
		},
	}

	return []*cobra.Command{startCmd, stopCmd, restartCmd, statusCmd}
}

func printPorts(status *network.Status) {
	if len(status.Ports) == 0 {
		return
	}
	keys := make([]string, 0, len(status.Ports))
	for key := range status.Ports {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	fmt.Println("\nPorts:")
	for _, key := range keys {
		fmt.Printf("  %s -> 127.0.0.1:%d\n", key, status.Ports[key])
	}
}
