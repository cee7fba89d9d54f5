package cli

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "csvmerge3",
	Short: "Three-way merge for CSV files",
	Long: `csvmerge3 merges two edited copies of a CSV file (A and B) against their
common ancestor (LCA), the same way a three-way text merge handles two
branches of a text file, but resolved row by row on a primary key instead
of line by line.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("history-db", "", "Path to the run history database (overrides CSVMERGE3_HISTORY_DB)")
	rootCmd.PersistentFlags().Bool("json", false, "Output machine-readable JSON instead of human-readable text")
}
