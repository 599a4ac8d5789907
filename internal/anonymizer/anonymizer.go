// =============================================================================
// SPED Anonymizer - File Pipeline
// =============================================================================
//
// This module runs the anonymization pipeline for one SPED file, from
// reading the input to archiving it.
//
// PIPELINE:
//   1. Open the input and hash it (SHA-256) while it is read
//   2. Build a fresh engine: fresh correlation state, random stream derived
//      from the configured seed and the file name
//   3. Stream every line through the engine and the output encoder
//   4. Move the finished output into place (written to a .partial file first)
//   5. Archive input and output
//   6. Feed metrics and the run ledger
//
// CONCURRENCY:
//   Files are independent and RunAll processes them concurrently, bounded by
//   max_concurrency. Lines within a file are always processed in order.
//
// =============================================================================

package anonymizer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/ginjaninja78/sped-anonymizer/internal/config"
	"github.com/ginjaninja78/sped-anonymizer/internal/correlation"
	"github.com/ginjaninja78/sped-anonymizer/internal/engine"
	"github.com/ginjaninja78/sped-anonymizer/internal/ledger"
	"github.com/ginjaninja78/sped-anonymizer/internal/metrics"
	"github.com/ginjaninja78/sped-anonymizer/internal/random"
	"github.com/ginjaninja78/sped-anonymizer/internal/rules"
	"github.com/ginjaninja78/sped-anonymizer/internal/spedfile"
	"github.com/ginjaninja78/sped-anonymizer/pkg/utils"
)

// cancelCheckInterval is how many lines pass between context checks.
const cancelCheckInterval = 4096

// =============================================================================
// RESULT STRUCTURE
// =============================================================================

// Result represents the outcome of processing a single file.
type Result struct {
	// FilePath is the input file.
	FilePath string

	// OutputFile is the anonymized file; empty on failure or in a dry run.
	OutputFile string

	// ArchivePath is where the input was moved, if archival ran.
	ArchivePath string

	// Checksum is the SHA-256 of the input bytes, hex encoded.
	Checksum string

	Success bool

	// Error is nil when Success is true.
	Error error

	Stats ProcessingStats
}

// ProcessingStats contains statistics about the processing.
type ProcessingStats struct {
	// Lines is the number of input lines.
	Lines int

	// Rewritten counts records a rule was applied to.
	Rewritten int

	// Malformed counts lines with fewer than three fields.
	Malformed int

	// Unknown counts records with no rule (only document keys replaced).
	Unknown int

	// DocumentKeys counts replaced 44-digit keys.
	DocumentKeys int

	// ByType counts rewritten records per record code.
	ByType map[string]int

	ProcessingTime time.Duration
}

// =============================================================================
// ANONYMIZER STRUCTURE
// =============================================================================

// Options carries the collaborators of an Anonymizer. Every field is
// optional.
type Options struct {
	// Table defaults to rules.Default().
	Table rules.Table

	// Logger defaults to a logger that discards output.
	Logger *log.Logger

	// Ledger, when set, receives one entry per file.
	Ledger *ledger.Ledger

	// Metrics, when set, accumulates run counters.
	Metrics *metrics.Recorder

	// RunID defaults to a random UUID.
	RunID string

	// DryRun reads and transforms but writes, archives nothing.
	DryRun bool
}

// Anonymizer processes SPED files with one configuration. It is safe for
// concurrent use by multiple goroutines, each on its own file.
type Anonymizer struct {
	cfg     *config.MainConfig
	table   rules.Table
	files   *utils.FileManager
	ledger  *ledger.Ledger
	metrics *metrics.Recorder
	logger  *log.Logger
	runID   string
	dryRun  bool
}

// New creates an Anonymizer.
func New(cfg *config.MainConfig, opts Options) *Anonymizer {
	if opts.Table == nil {
		opts.Table = rules.Default()
	}
	if opts.Logger == nil {
		opts.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}

	files := utils.NewFileManager(cfg.InputDir, cfg.OutputDir, cfg.InputArchiveDir, cfg.OutputArchiveDir)
	files.ArchiveOnSuccess = cfg.ShouldArchive() && !opts.DryRun

	return &Anonymizer{
		cfg:     cfg,
		table:   opts.Table,
		files:   files,
		ledger:  opts.Ledger,
		metrics: opts.Metrics,
		logger:  opts.Logger.WithPrefix("anonymizer"),
		runID:   opts.RunID,
		dryRun:  opts.DryRun,
	}
}

// RunID identifies this run in logs and the ledger.
func (a *Anonymizer) RunID() string { return a.runID }

// =============================================================================
// MAIN PROCESSING FUNCTIONS
// =============================================================================

// RunAll processes paths concurrently, at most max_concurrency at a time,
// and returns the results in input order.
func (a *Anonymizer) RunAll(ctx context.Context, paths []string) []Result {
	results := make([]Result, len(paths))

	limit := a.cfg.MaxConcurrency
	if limit < 1 {
		limit = 1
	}
	sem := make(chan struct{}, limit)

	var wg sync.WaitGroup
	for i, path := range paths {
		wg.Add(1)
		go func(i int, path string) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				results[i] = Result{FilePath: path, Error: ctx.Err()}
				a.finish(ctx, &results[i])
				return
			}
			defer func() { <-sem }()

			results[i] = a.Run(ctx, path)
		}(i, path)
	}
	wg.Wait()

	return results
}

// Run executes the pipeline for one file. Failures are reported in the
// Result; the input file is left in place when anything fails.
func (a *Anonymizer) Run(ctx context.Context, path string) Result {
	start := time.Now()
	result := Result{FilePath: path}
	logger := a.logger.With("file", filepath.Base(path))

	logger.Debug("processing file")

	if err := a.anonymize(ctx, path, &result); err != nil {
		result.Error = err
		result.Stats.ProcessingTime = time.Since(start)
		logger.Error("file failed", "error", err)
		a.finish(ctx, &result)
		return result
	}

	if !a.dryRun {
		a.archive(logger, &result)
	}

	result.Success = true
	result.Stats.ProcessingTime = time.Since(start)

	logger.Info("file anonymized",
		"output", filepath.Base(result.OutputFile),
		"lines", result.Stats.Lines,
		"records", result.Stats.Rewritten,
		"document_keys", result.Stats.DocumentKeys,
		"elapsed", result.Stats.ProcessingTime.Round(time.Millisecond))
	if result.Stats.Malformed > 0 {
		logger.Warn("lines with fewer than three fields were copied unchanged", "count", result.Stats.Malformed)
	}

	a.warnIfSeen(ctx, logger, result.Checksum)
	a.finish(ctx, &result)
	return result
}

// anonymize streams path through a fresh engine into the output file.
func (a *Anonymizer) anonymize(ctx context.Context, path string, result *Result) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	in, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open input: %w", err)
	}
	defer in.Close()

	hasher := sha256.New()
	reader, err := spedfile.NewReader(io.TeeReader(in, hasher), a.cfg.InputEncoding)
	if err != nil {
		return err
	}

	out, finalPath, err := a.createOutput(path)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			a.discardOutput(out)
		}
	}()

	writer, err := spedfile.NewWriter(out, a.cfg.OutputEncoding)
	if err != nil {
		return err
	}

	eng := engine.New(a.table,
		random.ForStream(a.cfg.Seed, filepath.Base(path)),
		correlation.New(a.cfg.PlaceholderEntityID))

	for reader.Next() {
		if reader.LineNumber()%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if err := writer.WriteFields(eng.Apply(reader.Fields())); err != nil {
			return fmt.Errorf("failed to write line %d: %w", reader.LineNumber(), err)
		}
	}
	if err := reader.Err(); err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}
	if err := writer.Close(); err != nil {
		return err
	}

	stats := eng.Stats()
	if writer.Lines() != stats.Records {
		return fmt.Errorf("failed to write every record: wrote %d lines for %d read", writer.Lines(), stats.Records)
	}
	a.logger.Debug("pass finished", "file", filepath.Base(path), "slots", eng.State().Slots())

	result.Stats = ProcessingStats{
		Lines:        stats.Records,
		Rewritten:    stats.Rewritten,
		Malformed:    stats.Malformed,
		Unknown:      stats.Unknown,
		DocumentKeys: stats.DocumentKeys,
		ByType:       stats.ByType,
	}
	result.Checksum = hex.EncodeToString(hasher.Sum(nil))

	if a.dryRun {
		return nil
	}

	file := out.(*os.File)
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close output: %w", err)
	}
	if err := os.Rename(file.Name(), finalPath); err != nil {
		_ = os.Remove(file.Name())
		return fmt.Errorf("failed to move output into place: %w", err)
	}
	result.OutputFile = finalPath
	return nil
}

// createOutput opens the destination. Real runs write to a .partial file in
// the output directory so a failed run never leaves a truncated output
// under the final name.
func (a *Anonymizer) createOutput(inputPath string) (io.Writer, string, error) {
	if a.dryRun {
		return io.Discard, "", nil
	}

	name := utils.GenerateOutputFileName(a.cfg.OutputNameFormat, inputPath)
	finalPath := filepath.Join(a.cfg.OutputDir, name)

	if err := os.MkdirAll(a.cfg.OutputDir, 0755); err != nil {
		return nil, "", fmt.Errorf("failed to create output directory: %w", err)
	}
	file, err := os.Create(finalPath + ".partial")
	if err != nil {
		return nil, "", fmt.Errorf("failed to create output: %w", err)
	}
	return file, finalPath, nil
}

func (a *Anonymizer) discardOutput(out io.Writer) {
	if file, ok := out.(*os.File); ok {
		_ = file.Close()
		_ = os.Remove(file.Name())
	}
}

// archive moves the input and copies the output. Archival failures are
// logged and do not fail the file.
func (a *Anonymizer) archive(logger *log.Logger, result *Result) {
	archived, err := a.files.ArchiveInputFile(result.FilePath)
	if err != nil {
		logger.Warn("failed to archive input", "error", err)
	} else if archived != result.FilePath {
		result.ArchivePath = archived
	}

	if _, err := a.files.ArchiveOutputFile(result.OutputFile); err != nil {
		logger.Warn("failed to archive output", "error", err)
	}
}

// warnIfSeen logs when the ledger already holds a successful run on the
// same input bytes.
func (a *Anonymizer) warnIfSeen(ctx context.Context, logger *log.Logger, checksum string) {
	if a.ledger == nil || checksum == "" {
		return
	}
	seen, err := a.ledger.FindByChecksum(ctx, checksum)
	if err != nil {
		logger.Warn("ledger lookup failed", "error", err)
		return
	}
	for _, e := range seen {
		if e.RunID != a.runID {
			logger.Warn("input was already anonymized", "run", e.RunID, "output", e.OutputFile,
				"at", e.ProcessedAt.Format(time.RFC3339))
			return
		}
	}
}

// finish feeds metrics and the ledger with one file's outcome.
func (a *Anonymizer) finish(ctx context.Context, result *Result) {
	status := a.status(result)

	if a.metrics != nil {
		a.metrics.FileDone(string(status))
		a.metrics.AddLines(result.Stats.Lines)
		a.metrics.AddRecords(result.Stats.ByType)
		a.metrics.AddDocumentKeys(result.Stats.DocumentKeys)
	}

	if a.ledger == nil {
		return
	}
	entry := ledger.Entry{
		RunID:      a.runID,
		FileName:   filepath.Base(result.FilePath),
		OutputFile: result.OutputFile,
		Status:     status,
		Checksum:   result.Checksum,
		Lines:      result.Stats.Lines,
	}
	if result.Error != nil {
		entry.Error = result.Error.Error()
	}
	// The ledger write must not be lost to the cancellation that failed
	// the file.
	if _, err := a.ledger.Record(context.WithoutCancel(ctx), entry); err != nil {
		a.logger.Warn("failed to record file in ledger", "file", entry.FileName, "error", err)
	}
}

func (a *Anonymizer) status(result *Result) ledger.Status {
	switch {
	case result.Error != nil:
		return ledger.StatusFailed
	case a.dryRun:
		return ledger.StatusDryRun
	default:
		return ledger.StatusSuccess
	}
}

// ErrNoInput is returned by Discover when no file matches.
var ErrNoInput = errors.New("no input files found")

// Discover lists the input files matching the configured pattern.
func (a *Anonymizer) Discover() ([]string, error) {
	files, err := a.files.DiscoverInputFiles(a.cfg.FilePattern)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, ErrNoInput
	}
	return files, nil
}
