package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kbukum/chanflow/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		if verbose {
			fmt.Fprintln(cmd.OutOrStdout(), version.Full())
			return
		}
		fmt.Fprintln(cmd.OutOrStdout(), serviceName, version.Short())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
