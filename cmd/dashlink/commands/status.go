package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/dashlink/internal/printer"
	"github.com/example/dashlink/internal/watch"
	"github.com/example/dashlink/pkg/linkboard"
)

var (
	statusLink    string
	statusWait    bool
	statusTimeout time.Duration
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show a link's submission and latest verdict",
	Long: `Show what was last submitted on a link and the renderer's latest verdict
for it.

Examples:
  # Status of the default link
  dashlink status

  # Status of a specific link
  dashlink status --link staging-grafana

  # Block until the renderer produces a verdict
  dashlink status --wait`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVarP(&statusLink, "link", "l", "", "Link id (config default if omitted)")
	statusCmd.Flags().BoolVarP(&statusWait, "wait", "w", false, "Wait for a verdict instead of reporting the current one")
	statusCmd.Flags().DurationVar(&statusTimeout, "timeout", 30*time.Second, "How long to wait with --wait")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, client, err := connect(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	linkID := statusLink
	if linkID == "" {
		linkID = cfg.Link
	}

	printer.Printf("Link: %s\n\n", linkID)

	record, err := client.GetSubmitted(ctx, linkID)
	switch {
	case linkboard.IsNotFound(err):
		printer.Info("No dashboard submitted on this link\n")
	case err != nil:
		return fmt.Errorf("failed to read submitted record: %w", err)
	default:
		printer.Printf("Submitted: target=%s", record.TargetIdentifier)
		if record.Invalidated {
			printer.Printf(" (invalidated: %s)", record.InvalidatedReason)
		}
		printer.Printf("\n")
	}

	if statusWait {
		fb, err := watch.PollForFeedback(ctx, client, linkID, statusTimeout)
		if err != nil {
			return err
		}
		printer.Status(fb.Valid, fb.Errors)
		return nil
	}

	fb, err := client.GetFeedback(ctx, linkID)
	switch {
	case linkboard.IsNotFound(err):
		printer.Info("No verdict from the renderer yet\n")
	case err != nil:
		return fmt.Errorf("failed to read feedback: %w", err)
	case fb.Empty():
		printer.Info("No news from the renderer\n")
	default:
		printer.Status(fb.Valid, fb.Errors)
	}

	return nil
}
