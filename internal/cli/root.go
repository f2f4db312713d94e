package cli

import (
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "timegraph",
	Short: "Time-versioned knowledge graph over a SPARQL store",
	Long: "Timegraph stores every snapshot of an entity as a base graph followed by\n" +
		"added/removed delta graphs in a SPARQL triple store, and drops graphs that\n" +
		"fall out of the retention window.",
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a YAML config file (TIMEGRAPH_* env vars override it)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(pushCmd)
	rootCmd.AddCommand(timelineCmd)
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(historyCmd)
}
