// =============================================================================
// SPED Anonymizer - Process Command
// =============================================================================
//
// This file defines the 'process' command, which anonymizes SPED files. It
// orchestrates the whole run.
//
// COMMAND USAGE:
//   sped-anonymizer process [flags]
//
// FLAGS:
//   --dry-run  : Read and transform every file but write nothing
//   --single   : Process only a single file (specify with --file)
//   --file     : Path to a specific file to process (used with --single)
//   --seed     : Override the configured seed
//
// PROCESSING PIPELINE:
//   1. Load configuration and open the ledger
//   2. Discover input files in the input directory
//   3. Anonymize files concurrently (see internal/anonymizer)
//   4. Write the summary report, the error log and the metrics file
//
// =============================================================================

package cmd

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/ginjaninja78/sped-anonymizer/internal/anonymizer"
	"github.com/ginjaninja78/sped-anonymizer/internal/ledger"
	"github.com/ginjaninja78/sped-anonymizer/internal/metrics"
	"github.com/ginjaninja78/sped-anonymizer/pkg/utils"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

// dryRun transforms without writing output files.
var dryRun bool

// singleFile indicates whether to process only a single file.
var singleFile bool

// filePath is the path to a specific file to process (used with --single).
var filePath string

// seed overrides the configured seed when set.
var seed uint64

// =============================================================================
// PROCESS COMMAND DEFINITION
// =============================================================================

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Anonymize SPED files",
	Long: `The process command scans the input directory for SPED files and writes an
anonymized copy of each to the output directory.

Files are processed concurrently (max_concurrency at a time). Each file gets
its own correlation state, so nothing leaks from one file into another.

On success:
  - The anonymized file is placed in the output directory
  - The original is moved to the input archive
  - The run is recorded in the ledger

On error:
  - The error is written to an error log in the logs directory
  - The original remains in the input directory
  - Processing continues for other files`,

	RunE: func(cmd *cobra.Command, args []string) error {
		if singleFile && filePath == "" {
			return errors.New("--single requires --file")
		}
		return runProcess(cmd)
	},
}

func init() {
	rootCmd.AddCommand(processCmd)

	processCmd.Flags().BoolVar(&dryRun, "dry-run", false,
		"Transform files without writing output, archiving or moving anything")
	processCmd.Flags().BoolVar(&singleFile, "single", false,
		"Process only a single file (use with --file)")
	processCmd.Flags().StringVar(&filePath, "file", "",
		"Path to a specific file to process (used with --single)")
	processCmd.Flags().Uint64Var(&seed, "seed", 0,
		"Seed for reproducible output (overrides the config file; 0 means random)")
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

func runProcess(cmd *cobra.Command) error {
	ctx := cmd.Context()
	startTime := time.Now()

	// =========================================================================
	// STEP 1: LOAD CONFIGURATION
	// =========================================================================

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("seed") {
		cfg.Seed = seed
	}

	logger := newLogger(cfg.LogLevel)
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	var book *ledger.Ledger
	if path := cfg.LedgerFile(); path != "" {
		book, err = ledger.Open(ctx, path)
		if err != nil {
			return fmt.Errorf("failed to open ledger: %w", err)
		}
		defer book.Close()
		logger.Debug("ledger opened", "path", book.Path())
	} else {
		logger.Debug("ledger disabled")
	}

	recorder := metrics.New()
	anon := anonymizer.New(cfg, anonymizer.Options{
		Logger:  logger,
		Ledger:  book,
		Metrics: recorder,
		DryRun:  dryRun,
	})

	logger.Info("starting run", "run", anon.RunID(), "dry_run", dryRun, "seeded", cfg.Seed != 0)

	// =========================================================================
	// STEP 2: DISCOVER INPUT FILES
	// =========================================================================

	var inputFiles []string
	if singleFile {
		inputFiles = []string{filePath}
	} else {
		inputFiles, err = anon.Discover()
		if errors.Is(err, anonymizer.ErrNoInput) {
			logger.Info("no input files found", "dir", cfg.InputDir, "pattern", cfg.FilePattern)
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to discover input files: %w", err)
		}
	}

	logger.Info("found files to process", "count", len(inputFiles))

	// =========================================================================
	// STEP 3: PROCESS FILES CONCURRENTLY
	// =========================================================================

	results := anon.RunAll(ctx, inputFiles)

	// =========================================================================
	// STEP 4: REPORTS
	// =========================================================================

	summary, errorEntries := summarize(anon.RunID(), startTime, results)

	if path, err := utils.WriteSummaryLog(summary, cfg.LogsDir); err != nil {
		logger.Warn("failed to write summary", "error", err)
	} else {
		logger.Debug("summary written", "path", path)
	}

	if path, err := utils.WriteErrorLog(errorEntries, cfg.LogsDir); err != nil {
		logger.Warn("failed to write error log", "error", err)
	} else if path != "" {
		logger.Warn("errors have been logged", "path", path)
	}

	if cfg.MetricsFile != "" {
		if err := recorder.WriteFile(cfg.MetricsFile); err != nil {
			logger.Warn("failed to write metrics", "error", err)
		}
	}

	logSummary(logger, summary)

	if summary.FailedFiles > 0 {
		return fmt.Errorf("%d of %d file(s) failed", summary.FailedFiles, summary.TotalFiles)
	}
	return nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// summarize folds per-file results into the run summary and the error log
// entries for the failed files.
func summarize(runID string, start time.Time, results []anonymizer.Result) (utils.ProcessingSummary, []utils.ErrorLogEntry) {
	summary := utils.ProcessingSummary{
		RunID:      runID,
		StartTime:  start,
		EndTime:    time.Now(),
		TotalFiles: len(results),
	}
	var entries []utils.ErrorLogEntry

	for _, r := range results {
		summary.TotalLines += r.Stats.Lines
		summary.TotalRecords += r.Stats.Rewritten
		summary.DocumentKeys += r.Stats.DocumentKeys

		if r.Success {
			summary.SuccessfulFiles++
			summary.ProcessedFiles = append(summary.ProcessedFiles, utils.ProcessedFileInfo{
				InputFile:   r.FilePath,
				OutputFile:  r.OutputFile,
				ArchivePath: r.ArchivePath,
				Checksum:    r.Checksum,
				Lines:       r.Stats.Lines,
				Records:     r.Stats.Rewritten,
				ProcessTime: r.Stats.ProcessingTime,
			})
			continue
		}

		summary.FailedFiles++
		summary.FailedFilesList = append(summary.FailedFilesList, utils.FailedFileInfo{
			InputFile:    r.FilePath,
			ErrorMessage: r.Error.Error(),
		})
		entries = append(entries, utils.ErrorLogEntry{
			Timestamp: time.Now(),
			FileName:  filepath.Base(r.FilePath),
			Stage:     "anonymize",
			Message:   r.Error.Error(),
		})
	}

	return summary, entries
}

func logSummary(logger *log.Logger, s utils.ProcessingSummary) {
	logger.Info("processing complete",
		"files", s.TotalFiles,
		"successful", s.SuccessfulFiles,
		"failed", s.FailedFiles,
		"lines", s.TotalLines,
		"records", s.TotalRecords,
		"document_keys", s.DocumentKeys,
		"elapsed", s.EndTime.Sub(s.StartTime).Round(time.Millisecond))
}
