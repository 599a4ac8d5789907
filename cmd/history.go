// =============================================================================
// SPED Anonymizer - History Command
// =============================================================================
//
// This file defines the 'history' command, which lists the files recorded
// in the run ledger, newest first.
//
// COMMAND USAGE:
//   sped-anonymizer history [--limit N]
//
// =============================================================================

package cmd

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/sped-anonymizer/internal/ledger"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List processed files from the ledger",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runHistory(cmd)
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Number of entries to show (0 means all)")
}

func runHistory(cmd *cobra.Command) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.LedgerFile() == "" {
		return errors.New("ledger is disabled (ledger_path is empty)")
	}

	book, err := ledger.Open(cmd.Context(), cfg.LedgerFile())
	if err != nil {
		return fmt.Errorf("failed to open ledger: %w", err)
	}
	defer book.Close()

	entries, err := book.Recent(cmd.Context(), historyLimit)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PROCESSED\tSTATUS\tFILE\tLINES\tSHA-256\tDETAIL")
	for _, e := range entries {
		detail := e.OutputFile
		if e.Error != "" {
			detail = e.Error
		}
		checksum := e.Checksum
		if len(checksum) > 12 {
			checksum = checksum[:12]
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
			e.ProcessedAt.Local().Format(time.DateTime), e.Status, e.FileName, e.Lines, checksum, detail)
	}
	return w.Flush()
}
