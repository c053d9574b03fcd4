package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// BuildVersion, BuildCommit, and BuildDate are set via -ldflags at build
// time; they default to "dev"/"none"/"unknown" for local builds.
var (
	BuildVersion = "dev"
	BuildCommit  = "none"
	BuildDate    = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "gatewayd %s\n", BuildVersion)
		fmt.Fprintf(out, "commit: %s\n", BuildCommit)
		fmt.Fprintf(out, "built: %s\n", BuildDate)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
