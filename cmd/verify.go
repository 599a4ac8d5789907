// =============================================================================
// SPED Anonymizer - Verify Command
// =============================================================================
//
// This file defines the 'verify' command, which checks anonymized files for
// broken check digits, totals, rates and cross-record echoes.
//
// COMMAND USAGE:
//   sped-anonymizer verify FILE... [--encoding NAME] [--max-findings N] [--strict]
//
// EXIT STATUS:
//   Non-zero when any file has error findings (or warnings, with --strict).
//
// =============================================================================

package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/sped-anonymizer/internal/rules"
	"github.com/ginjaninja78/sped-anonymizer/internal/validation"
)

var (
	verifyEncoding    string
	verifyMaxFindings int
	verifyStrict      bool
)

var verifyCmd = &cobra.Command{
	Use:   "verify FILE...",
	Short: "Check anonymized files for structural consistency",
	Long: `The verify command re-reads anonymized files and checks every invariant the
anonymizer maintains: document keys, CNPJ and CPF check digits, recomputed
totals and taxes, known PIS/COFINS rate pairs, and fields that must echo an
earlier record.

The encoding defaults to output_encoding from the configuration.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runVerify(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(verifyCmd)

	verifyCmd.Flags().StringVar(&verifyEncoding, "encoding", "",
		"Encoding of the files (\"auto\" or an IANA name; default is output_encoding)")
	verifyCmd.Flags().IntVar(&verifyMaxFindings, "max-findings", 100,
		"Stop reporting a file after this many findings (0 means no limit)")
	verifyCmd.Flags().BoolVar(&verifyStrict, "strict", false,
		"Treat warnings as errors")
}

func runVerify(cmd *cobra.Command, paths []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.LogLevel)

	encoding := verifyEncoding
	if encoding == "" {
		encoding = cfg.OutputEncoding
	}

	verifier := validation.NewVerifierWithOptions(rules.Default(), validation.Options{
		MaxFindings:           verifyMaxFindings,
		TreatWarningsAsErrors: verifyStrict,
	})

	out := cmd.OutOrStdout()
	failed := 0
	for _, path := range paths {
		result, err := verifier.VerifyFile(path, encoding)
		if err != nil {
			logger.Error("cannot verify file", "file", path, "error", err)
			failed++
			continue
		}

		for _, f := range result.Findings {
			fmt.Fprintf(out, "%s: %s\n", filepath.Base(path), f.Error())
		}

		if result.IsValid {
			logger.Info("file verified", "file", filepath.Base(path),
				"lines", result.LinesChecked, "fields", result.FieldsChecked, "warnings", result.WarningCount)
		} else {
			failed++
			logger.Error("file failed verification", "file", filepath.Base(path),
				"errors", result.ErrorCount, "warnings", result.WarningCount)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d file(s) failed verification", failed, len(paths))
	}
	return nil
}
