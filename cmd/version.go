// =============================================================================
// SPED Anonymizer - Version Command
// =============================================================================
//
// This file defines the 'version' command.
//
// COMMAND USAGE:
//   sped-anonymizer version
//
// OUTPUT:
//   SPED Anonymizer
//   Version:    1.0.0
//   Build Date: 2024-01-01
//   Go Version: go1.24.0
//   Rule Table: 24 record types
//
// =============================================================================

package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/sped-anonymizer/internal/rules"
)

// Build information, injected with ldflags:
//
//	go build -ldflags "-X 'github.com/ginjaninja78/sped-anonymizer/cmd.Version=1.0.0' \
//	  -X 'github.com/ginjaninja78/sped-anonymizer/cmd.BuildDate=2024-01-01'"
var (
	Version   = "1.0.0"
	BuildDate = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version and build information",
	Long:  `Print the anonymizer version, build date, Go runtime and the size of the built-in rule table.`,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "SPED Anonymizer")
		fmt.Fprintf(out, "Version:    %s\n", Version)
		fmt.Fprintf(out, "Build Date: %s\n", BuildDate)
		fmt.Fprintf(out, "Go Version: %s\n", runtime.Version())
		fmt.Fprintf(out, "Rule Table: %d record types\n", len(rules.Default()))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
