package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/example/dashlink/internal/printer"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch dashboard validity changes live",
	Long: `Watch the renderer's feedback for this application's links and print
every validity change as it arrives. Runs until interrupted.

Examples:
  dashlink watch`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, client, err := connect(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	sub, err := newSubmitter(cfg, client)
	if err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		<-sigCh
		cancel()
	}()

	printer.Step("watching feedback for instance '%s' (Ctrl-C to stop)...\n", cfg.Instance)
	return sub.Run(ctx)
}
