package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/dashlink/internal/printer"
	"github.com/example/dashlink/pkg/linkboard"
)

var (
	identityEnvironment     string
	identityEnvironmentUUID string
	identityApplication     string
)

var identityCmd = &cobra.Command{
	Use:   "identity",
	Short: "Manage the monitoring peer identity",
	Long: `Manage the monitoring peer identity submitters derive their target
identifier from.

Normally the monitoring side publishes this itself; these commands exist
for operating environments where the identity is fed in by hand and for
bootstrapping test setups.`,
}

var identitySetCmd = &cobra.Command{
	Use:   "set",
	Short: "Publish the monitoring peer identity",
	Long: `Publish the monitoring peer identity to the linkboard.

Example:
  dashlink identity set --environment staging --environment-uuid abc123 --application prometheus`,
	RunE: runIdentitySet,
}

var identityShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the published monitoring peer identity",
	RunE:  runIdentityShow,
}

func init() {
	identitySetCmd.Flags().StringVar(&identityEnvironment, "environment", "", "Peer environment name (required)")
	identitySetCmd.Flags().StringVar(&identityEnvironmentUUID, "environment-uuid", "", "Peer environment UUID (required)")
	identitySetCmd.Flags().StringVar(&identityApplication, "application", "", "Peer application name (required)")
	identitySetCmd.MarkFlagRequired("environment")
	identitySetCmd.MarkFlagRequired("environment-uuid")
	identitySetCmd.MarkFlagRequired("application")
	identityCmd.AddCommand(identitySetCmd)
	identityCmd.AddCommand(identityShowCmd)
	rootCmd.AddCommand(identityCmd)
}

func runIdentitySet(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	_, client, err := connect(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	id := linkboard.Identity{
		Environment:     identityEnvironment,
		EnvironmentUUID: identityEnvironmentUUID,
		Application:     identityApplication,
	}

	if err := client.SetIdentity(ctx, id); err != nil {
		return fmt.Errorf("failed to publish identity: %w", err)
	}

	printer.Success("monitoring identity published (target: %s)\n", id.TargetIdentifier())
	return nil
}

func runIdentityShow(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	_, client, err := connect(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	id, err := client.GetIdentity(ctx)
	if linkboard.IsNotFound(err) {
		printer.Info("No monitoring identity published yet\n")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read identity: %w", err)
	}

	printer.Printf("Environment:      %s\n", id.Environment)
	printer.Printf("Environment UUID: %s\n", id.EnvironmentUUID)
	printer.Printf("Application:      %s\n", id.Application)
	printer.Printf("Target:           %s\n", id.TargetIdentifier())
	return nil
}
