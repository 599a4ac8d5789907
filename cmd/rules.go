// =============================================================================
// SPED Anonymizer - Rules Command
// =============================================================================
//
// This file defines the 'rules' command group for inspecting the built-in
// rule table.
//
// COMMAND USAGE:
//   sped-anonymizer rules check [--xlsx FILE]
//   sped-anonymizer rules export --out FILE
//
// The XLSX export lists one row per field operation and is meant for review.
// 'check --xlsx' reads a reviewed workbook back and reports how it differs
// from the built-in table.
//
// =============================================================================

package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/sped-anonymizer/internal/ruleexport"
	"github.com/ginjaninja78/sped-anonymizer/internal/rules"
)

var (
	rulesXLSX string
	rulesOut  string
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Inspect the record rule table",
}

var rulesCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the rule table, or compare it with a reviewed workbook",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRulesCheck(cmd)
	},
}

var rulesExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the rule table to an XLSX workbook",
	RunE: func(cmd *cobra.Command, args []string) error {
		if rulesOut == "" {
			return errors.New("--out is required")
		}
		if err := ruleexport.Export(rules.Default(), rulesOut); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Rule table written to %s\n", rulesOut)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(rulesCmd)
	rulesCmd.AddCommand(rulesCheckCmd, rulesExportCmd)

	rulesCheckCmd.Flags().StringVar(&rulesXLSX, "xlsx", "",
		"Workbook to compare with the built-in table")
	rulesExportCmd.Flags().StringVar(&rulesOut, "out", "",
		"Destination .xlsx file")
}

func runRulesCheck(cmd *cobra.Command) error {
	out := cmd.OutOrStdout()
	table := rules.Default()

	if err := table.Validate(); err != nil {
		return fmt.Errorf("built-in rule table is inconsistent: %w", err)
	}
	fmt.Fprintf(out, "Built-in table: %d record types, consistent\n", len(table))

	if rulesXLSX == "" {
		return nil
	}

	reviewed, err := ruleexport.Import(rulesXLSX)
	if err != nil {
		return err
	}
	if err := reviewed.Validate(); err != nil {
		fmt.Fprintf(out, "Workbook table is inconsistent:\n%v\n", err)
	}

	diffs := ruleexport.Diff(table, reviewed)
	if len(diffs) == 0 {
		fmt.Fprintln(out, "Workbook matches the built-in table")
		return nil
	}
	for _, d := range diffs {
		fmt.Fprintln(out, d.String())
	}
	return fmt.Errorf("workbook differs from the built-in table in %d place(s)", len(diffs))
}
