package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/dashlink/internal/printer"
)

var (
	invalidateLink   string
	invalidateReason string
)

var invalidateCmd = &cobra.Command{
	Use:   "invalidate",
	Short: "Mark the submitted dashboard invalid",
	Long: `Mark the dashboard previously submitted on a link as invalid.

The last-sent record is re-published with the invalidated flag and reason
set. The renderer purges any active rendering for the link and echoes the
reason back through feedback. Use this when the submitting application
knows its dashboard no longer applies, without withdrawing the link.

Examples:
  dashlink invalidate --reason "metrics endpoint removed"
  dashlink invalidate --link staging-grafana --reason "app scaling down"`,
	RunE: runInvalidate,
}

func init() {
	invalidateCmd.Flags().StringVarP(&invalidateLink, "link", "l", "", "Link id (config default if omitted)")
	invalidateCmd.Flags().StringVarP(&invalidateReason, "reason", "r", "", "Why the dashboard is invalid (required)")
	invalidateCmd.MarkFlagRequired("reason")
	rootCmd.AddCommand(invalidateCmd)
}

func runInvalidate(cmd *cobra.Command, args []string) error {
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

	if err := sub.Invalidate(ctx, invalidateReason, invalidateLink); err != nil {
		return fmt.Errorf("failed to invalidate dashboard: %w", err)
	}

	if !cfg.IsLeader() {
		printer.Warning("not the leader - nothing was invalidated\n")
		return nil
	}

	printer.Success("dashboard marked invalid\n")
	return nil
}
