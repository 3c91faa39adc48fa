package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/dashlink/internal/printer"
)

var retractLink string

var retractCmd = &cobra.Command{
	Use:   "retract",
	Short: "Withdraw the submitted dashboard for a link",
	Long: `Withdraw the dashboard previously submitted on a link.

The last-sent record is re-published with the removed flag set, telling the
renderer to drop all state for the link, and local bookkeeping is cleared.
Retracting a link that never submitted is a no-op.

Examples:
  # Retract the default link's dashboard
  dashlink retract

  # Retract a specific link
  dashlink retract --link staging-grafana`,
	RunE: runRetract,
}

func init() {
	retractCmd.Flags().StringVarP(&retractLink, "link", "l", "", "Link id (config default if omitted)")
	rootCmd.AddCommand(retractCmd)
}

func runRetract(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, client, err := connect(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	sub, err := newSubmitter(cfg, client)
	if err != nil {
		return err
	}

	if err := sub.Retract(ctx, retractLink); err != nil {
		return fmt.Errorf("failed to retract dashboard: %w", err)
	}

	if !cfg.IsLeader() {
		printer.Warning("not the leader - nothing was retracted\n")
		return nil
	}

	printer.Success("dashboard retracted\n")
	return nil
}
