package commands

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/dashlink/internal/dashview"
)

var dashboardsOutputFormat string

var dashboardsCmd = &cobra.Command{
	Use:   "dashboards [LINK_ID]",
	Short: "Inspect the renderer's dashboard state",
	Long: `Inspect the renderer's per-link dashboard state in list or get mode.

List Mode (no LINK_ID):
  Displays an overview of every tracked link as a table or line-delimited
  JSON: its status, target, and failure reason or rendered size.

Get Mode (with LINK_ID):
  Displays one link's full state including the decoded rendered dashboard
  when the link is active.

Examples:
  # List all dashboards in table format
  dashlink dashboards

  # List as JSONL for scripting
  dashlink dashboards --output=jsonl | jq 'select(.status=="invalid")'

  # Show one link's rendered dashboard
  dashlink dashboards grafana`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDashboards,
}

func init() {
	dashboardsCmd.Flags().StringVarP(&dashboardsOutputFormat, "output", "o", "default", "Output format: default or jsonl (list mode only)")
	rootCmd.AddCommand(dashboardsCmd)
}

func runDashboards(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, client, err := connect(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	// Get mode
	if len(args) == 1 {
		state, err := dashview.Get(ctx, client, args[0])
		if err != nil {
			return err
		}
		return dashview.FormatDashboard(os.Stdout, state)
	}

	// List mode
	format, err := dashview.ParseOutputFormat(dashboardsOutputFormat)
	if err != nil {
		return err
	}

	states, err := dashview.List(ctx, client)
	if err != nil {
		return err
	}

	if format == dashview.OutputFormatJSONL {
		return dashview.FormatJSONL(os.Stdout, states)
	}

	dashview.FormatTable(os.Stdout, states, cfg.Instance)
	return nil
}
