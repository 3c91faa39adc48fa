package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/dashlink/internal/printer"
	"github.com/example/dashlink/internal/watch"
	"github.com/example/dashlink/pkg/linkboard"
)

var (
	submitLink    string
	submitWait    bool
	submitTimeout time.Duration
)

var submitCmd = &cobra.Command{
	Use:   "submit [TEMPLATE_FILE]",
	Short: "Submit a dashboard template to the renderer",
	Long: `Submit a dashboard template to the renderer over the link's outbound slot.

The template is compressed and encoded for transport, tagged with this
application's identity, and written as the link's current record. The
renderer validates it against the configured datasources and reports back
through the feedback slot.

Reads the template from TEMPLATE_FILE, or from stdin when the argument is
omitted or '-'.

Examples:
  # Submit a template file on the default link
  dashlink submit dashboard.json.tmpl

  # Submit from stdin and wait for the renderer's verdict
  cat dashboard.json.tmpl | dashlink submit --wait

  # Submit on a specific link
  dashlink submit dashboard.json.tmpl --link staging-grafana`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSubmit,
}

func init() {
	submitCmd.Flags().StringVarP(&submitLink, "link", "l", "", "Link id (config default if omitted)")
	submitCmd.Flags().BoolVarP(&submitWait, "wait", "w", false, "Wait for the renderer's verdict")
	submitCmd.Flags().DurationVar(&submitTimeout, "timeout", 30*time.Second, "How long to wait with --wait")
	rootCmd.AddCommand(submitCmd)
}

func runSubmit(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	template, err := readTemplate(args)
	if err != nil {
		return err
	}

	cfg, client, err := connect(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	sub, err := newSubmitter(cfg, client)
	if err != nil {
		return err
	}

	linkID := submitLink
	if linkID == "" {
		linkID = cfg.Link
	}

	if err := sub.Submit(ctx, template, linkID); err != nil {
		return fmt.Errorf("failed to submit dashboard: %w", err)
	}

	if !cfg.IsLeader() {
		printer.Warning("not the leader - nothing was submitted\n")
		return nil
	}

	printer.Success("dashboard submitted on link '%s'\n", linkID)

	if !submitWait {
		return nil
	}

	// A first-time success settles the link to active without writing any
	// feedback, so the wait must watch the reconcile state, not the
	// feedback slot.
	printer.Step("waiting for renderer verdict...\n")
	state, err := watch.PollForSettled(ctx, client, linkID, submitTimeout)
	if err != nil {
		return err
	}

	if state.Status == linkboard.StatusActive {
		printer.Status(true, "")
		return nil
	}

	printer.Status(false, state.Reason)
	return fmt.Errorf("dashboard rejected")
}

func readTemplate(args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read template from stdin: %w", err)
		}
		return string(data), nil
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", fmt.Errorf("failed to read template file: %w", err)
	}
	return string(data), nil
}
