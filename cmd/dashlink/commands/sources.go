package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/example/dashlink/internal/printer"
	"github.com/example/dashlink/pkg/linkboard"
)

var sourcesFile string

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "Manage the renderer's datasource feed",
	Long: `Manage the datasource set the renderer matches dashboards against.

The set is always replaced wholesale; there is no incremental add or
remove. Publishing a new set triggers a full re-validation sweep: invalid
dashboards whose datasource appeared are rescued, active dashboards whose
datasource vanished are invalidated.`,
}

var sourcesSetCmd = &cobra.Command{
	Use:   "set [SOURCE_NAME...]",
	Short: "Replace the datasource set",
	Long: `Replace the renderer's datasource set with the given names, or with the
names listed in a YAML file.

Examples:
  # Replace with two datasources
  dashlink sources set "staging_abc123_webapp [grafana]" "prod_def456_api [grafana]"

  # Replace from a YAML list
  dashlink sources set --file sources.yml

  # Clear all datasources (invalidates every active dashboard)
  dashlink sources set`,
	RunE: runSourcesSet,
}

var sourcesShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the current datasource set",
	RunE:  runSourcesShow,
}

func init() {
	sourcesSetCmd.Flags().StringVarP(&sourcesFile, "file", "f", "", "YAML file containing a list of datasource names")
	sourcesCmd.AddCommand(sourcesSetCmd)
	sourcesCmd.AddCommand(sourcesShowCmd)
	rootCmd.AddCommand(sourcesCmd)
}

func runSourcesSet(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	names := args
	if sourcesFile != "" {
		if len(args) > 0 {
			return fmt.Errorf("cannot combine --file with source name arguments")
		}

		fileNames, err := readSourcesFile(sourcesFile)
		if err != nil {
			return err
		}
		names = fileNames
	}

	sources := make([]linkboard.Resource, 0, len(names))
	for _, name := range names {
		sources = append(sources, linkboard.Resource{SourceName: name})
	}

	_, client, err := connect(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.SaveSources(ctx, sources); err != nil {
		return fmt.Errorf("failed to publish datasources: %w", err)
	}

	if len(sources) == 0 {
		printer.Warning("published empty datasource set - all dashboards will go invalid\n")
	} else {
		printer.Success("published %d datasource(s)\n", len(sources))
	}
	return nil
}

func runSourcesShow(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, client, err := connect(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	sources, err := client.GetSources(ctx)
	if err != nil {
		return fmt.Errorf("failed to read datasources: %w", err)
	}

	if len(sources) == 0 {
		printer.Info("No datasources configured for instance '%s'\n", cfg.Instance)
		return nil
	}

	for _, source := range sources {
		printer.Println(source.SourceName)
	}
	return nil
}

func readSourcesFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read sources file: %w", err)
	}

	var names []string
	if err := yaml.Unmarshal(data, &names); err != nil {
		return nil, fmt.Errorf("failed to parse sources file: %w", err)
	}

	return names, nil
}
