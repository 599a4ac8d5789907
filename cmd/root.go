// =============================================================================
// SPED Anonymizer - Root Command
// =============================================================================
//
// This file defines the root command for the Cobra CLI. All other commands
// are attached to it.
//
// COBRA CLI STRUCTURE:
//   rootCmd (sped-anonymizer)
//   ├── processCmd (sped-anonymizer process)
//   ├── verifyCmd  (sped-anonymizer verify)
//   ├── rulesCmd   (sped-anonymizer rules check|export)
//   ├── historyCmd (sped-anonymizer history)
//   └── versionCmd (sped-anonymizer version)
//
// The root command owns the global flags (--config, --verbose), the
// logger, and the interrupt handling: Ctrl-C cancels the command context,
// and in-flight files stop at the next checkpoint.
//
// =============================================================================

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/ginjaninja78/sped-anonymizer/internal/config"
)

// =============================================================================
// GLOBAL VARIABLES
// =============================================================================

// cfgFile holds the path to the main configuration file.
var cfgFile string

// verbose forces debug logging regardless of log_level.
var verbose bool

// =============================================================================
// ROOT COMMAND DEFINITION
// =============================================================================

var rootCmd = &cobra.Command{
	Use:   "sped-anonymizer",
	Short: "SPED Anonymizer - Replace identities and amounts in SPED EFD files",
	Long: `SPED Anonymizer rewrites SPED EFD Contribuições files so they can be shared
for testing and support without exposing the declaring company, its partners,
or its figures.

Every output file stays structurally valid:
  - CNPJ, CPF and 44-digit document keys carry correct check digits
  - Totals and taxes are recomputed from the anonymized amounts
  - Related records (D101/D105, PIS/COFINS pairs) stay consistent
  - The declaring entity is replaced by one placeholder CNPJ everywhere

Example Usage:
  sped-anonymizer process                    # Anonymize every file in the input directory
  sped-anonymizer process --seed 42          # Reproducible output
  sped-anonymizer verify output/*.txt        # Check anonymized files
  sped-anonymizer rules export --out r.xlsx  # Review the rule table in a spreadsheet`,

	SilenceUsage: true,

	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

// =============================================================================
// EXECUTE FUNCTION
// =============================================================================

// Execute runs the root command. This is called by main.main().
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// =============================================================================
// INITIALIZATION
// =============================================================================

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"config.yaml",
		"Path to the main configuration file",
	)

	rootCmd.PersistentFlags().BoolVarP(
		&verbose,
		"verbose",
		"v",
		false,
		"Enable debug logging",
	)
}

// =============================================================================
// SHARED HELPERS
// =============================================================================

// loadConfig loads the configuration named by --config.
func loadConfig() (*config.MainConfig, error) {
	cfg, err := config.LoadMainConfig(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// newLogger builds the stderr logger for a command. --verbose wins over the
// configured level.
func newLogger(level string) *log.Logger {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "sped-anonymizer",
	})

	lvl, err := log.ParseLevel(level)
	if err != nil {
		lvl = log.InfoLevel
	}
	if verbose {
		lvl = log.DebugLevel
	}
	logger.SetLevel(lvl)
	return logger
}
