package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	version string
	commit  string
	date    string
)

var configPath string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "dashlink",
	Short: "Dashlink - Grafana dashboard relay over a shared linkboard",
	Long: `Dashlink relays Grafana dashboard templates from independently deployed
applications to a central rendering service over a loosely-coupled,
Redis-backed channel.

The submitter side packages a template with addressing metadata and writes
it to its link slot; the renderer matches it against the configured
datasources, renders it, and reports validity back through the feedback
slot. Either side can restart at any time - state is recovered from the
linkboard alone.`,
	Version: version,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "dashlink.yml", "Path to dashlink configuration file")
}
