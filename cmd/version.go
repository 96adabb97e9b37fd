package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Set by main.
var (
	Version = "dev"
	License = ""
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	// Skip settings and logging setup.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "llamabridge %s", Version)
		if License != "" {
			fmt.Fprintf(cmd.OutOrStdout(), " (%s)", License)
		}
		fmt.Fprintln(cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
