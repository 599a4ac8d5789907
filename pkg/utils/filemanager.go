// =============================================================================
// SPED Anonymizer - File Manager Utility
// =============================================================================
//
// This module provides the file handling around an anonymization run:
//   - Input discovery by glob
//   - Archival (move the original, copy the anonymized output)
//   - Output file naming
//   - Error log and processing summary files
//
// ARCHIVAL STRATEGY:
//   - Input files are moved to input_archive after successful processing,
//     so the input directory only ever holds files still to be anonymized
//   - Output files are copied to output_archive and stay in output
//   - Failed files remain in their original location
//   - An archive never overwrites: a name collision gets a timestamp suffix
//
// =============================================================================

package utils

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// FILE MANAGER
// =============================================================================

// FileManager handles file operations for a run.
type FileManager struct {
	InputDir         string
	OutputDir        string
	InputArchiveDir  string
	OutputArchiveDir string

	// ArchiveOnSuccess enables archival; when false the Archive methods
	// return the path unchanged.
	ArchiveOnSuccess bool

	// now is replaceable in tests.
	now func() time.Time
}

// NewFileManager creates a new FileManager with the specified directories.
func NewFileManager(inputDir, outputDir, inputArchiveDir, outputArchiveDir string) *FileManager {
	return &FileManager{
		InputDir:         inputDir,
		OutputDir:        outputDir,
		InputArchiveDir:  inputArchiveDir,
		OutputArchiveDir: outputArchiveDir,
		ArchiveOnSuccess: true,
		now:              time.Now,
	}
}

// =============================================================================
// FILE DISCOVERY
// =============================================================================

// DiscoverInputFiles lists the regular files in the input directory that
// match pattern, sorted by name.
//
// PARAMETERS:
//   - pattern: A glob pattern (e.g., "*.txt"). Empty means "*.txt".
//
// RETURNS:
//   - A slice of file paths.
//   - An error if the pattern is malformed.
func (fm *FileManager) DiscoverInputFiles(pattern string) ([]string, error) {
	if pattern == "" {
		pattern = "*.txt"
	}

	files, err := filepath.Glob(filepath.Join(fm.InputDir, pattern))
	if err != nil {
		return nil, fmt.Errorf("failed to scan input directory: %w", err)
	}

	var result []string
	for _, file := range files {
		info, err := os.Stat(file)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		result = append(result, file)
	}
	sort.Strings(result)

	return result, nil
}

// =============================================================================
// FILE ARCHIVAL
// =============================================================================

// ArchiveInputFile moves an input file to the input archive directory.
//
// RETURNS:
//   - The path to the archived file.
//   - An error if archival fails; the original is then left in place.
func (fm *FileManager) ArchiveInputFile(filePath string) (string, error) {
	if !fm.ArchiveOnSuccess {
		return filePath, nil
	}

	archivePath, err := fm.archivePath(fm.InputArchiveDir, filePath)
	if err != nil {
		return "", err
	}

	if err := os.Rename(filePath, archivePath); err != nil {
		// Cross-device rename: copy then delete.
		if err := copyFile(filePath, archivePath); err != nil {
			return "", fmt.Errorf("failed to copy file to archive: %w", err)
		}
		if err := os.Remove(filePath); err != nil {
			return "", fmt.Errorf("failed to remove original file: %w", err)
		}
	}

	return archivePath, nil
}

// ArchiveOutputFile copies an output file to the output archive directory.
//
// NOTE: Output files are copied, not moved, so they remain in the output directory.
func (fm *FileManager) ArchiveOutputFile(filePath string) (string, error) {
	if !fm.ArchiveOnSuccess {
		return filePath, nil
	}

	archivePath, err := fm.archivePath(fm.OutputArchiveDir, filePath)
	if err != nil {
		return "", err
	}

	if err := copyFile(filePath, archivePath); err != nil {
		return "", fmt.Errorf("failed to copy file to archive: %w", err)
	}

	return archivePath, nil
}

// archivePath returns a free path for filePath inside archiveDir, creating
// the directory. An existing file of the same name gets a timestamp suffix.
func (fm *FileManager) archivePath(archiveDir, filePath string) (string, error) {
	if err := os.MkdirAll(archiveDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create archive directory: %w", err)
	}

	name := filepath.Base(filePath)
	target := filepath.Join(archiveDir, name)
	if !FileExists(target) {
		return target, nil
	}

	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	stamp := fm.clock().Format("20060102_150405")
	for i := 0; ; i++ {
		candidate := fmt.Sprintf("%s_%s%s", stem, stamp, ext)
		if i > 0 {
			candidate = fmt.Sprintf("%s_%s_%d%s", stem, stamp, i, ext)
		}
		target = filepath.Join(archiveDir, candidate)
		if !FileExists(target) {
			return target, nil
		}
	}
}

func (fm *FileManager) clock() time.Time {
	if fm.now == nil {
		return time.Now()
	}
	return fm.now()
}

// =============================================================================
// OUTPUT FILE NAMING
// =============================================================================

// GenerateOutputFileName builds an output file name from format.
//
// PARAMETERS:
//   - format: The name template.
//     Placeholders:
//       {uuid}      - A random UUID
//       {timestamp} - Current timestamp (YYYYMMDD_HHMMSS)
//       {date}      - Current date (YYYYMMDD)
//       {original}  - Input file name without extension
//   - inputPath: The input file the output is derived from.
//
// RETURNS:
//   - The file name. A format without an extension gets the input's
//     extension, or ".txt" when the input has none.
//
// EXAMPLE:
//   format: "{original}_anon_{uuid}.txt"
//   input:  "/in/EFD_CONTRIB_2024_01.txt"
//   output: "EFD_CONTRIB_2024_01_anon_a1b2c3d4-e5f6-7890-abcd-ef1234567890.txt"
func GenerateOutputFileName(format, inputPath string) string {
	now := time.Now()
	base := filepath.Base(inputPath)
	ext := filepath.Ext(base)

	result := strings.NewReplacer(
		"{uuid}", uuid.New().String(),
		"{timestamp}", now.Format("20060102_150405"),
		"{date}", now.Format("20060102"),
		"{original}", strings.TrimSuffix(base, ext),
	).Replace(format)

	if filepath.Ext(result) == "" {
		if ext == "" {
			ext = ".txt"
		}
		result += ext
	}

	return result
}

// =============================================================================
// ERROR LOG GENERATION
// =============================================================================

// ErrorLogEntry represents a single error log entry.
type ErrorLogEntry struct {
	Timestamp  time.Time
	FileName   string
	Stage      string // "read", "write", "archive", "verify", ...
	Message    string
	LineNumber int
	RecordCode string
}

// WriteErrorLog writes error entries to a timestamped file in dir. Nothing
// is written for an empty list.
//
// RETURNS:
//   - The path to the error log file, or "" when entries is empty.
//   - An error if writing fails.
func WriteErrorLog(entries []ErrorLogEntry, dir string) (string, error) {
	if len(entries) == 0 {
		return "", nil
	}

	logPath := filepath.Join(dir, fmt.Sprintf("error_log_%s.txt", time.Now().Format("20060102_150405")))

	return logPath, writeReport(logPath, func(w *bufio.Writer) {
		fmt.Fprintf(w, "SPED Anonymizer - Error Log\n"+
			"Generated: %s\n"+
			"Total Errors: %d\n"+
			"%s\n\n",
			time.Now().Format("2006-01-02 15:04:05"), len(entries), rule)

		for i, entry := range entries {
			fmt.Fprintf(w, "Error #%d\n", i+1)
			fmt.Fprintf(w, "  Timestamp:  %s\n", entry.Timestamp.Format("2006-01-02 15:04:05"))
			fmt.Fprintf(w, "  File:       %s\n", entry.FileName)
			fmt.Fprintf(w, "  Stage:      %s\n", entry.Stage)
			fmt.Fprintf(w, "  Message:    %s\n", entry.Message)
			if entry.LineNumber > 0 {
				fmt.Fprintf(w, "  Line:       %d\n", entry.LineNumber)
			}
			if entry.RecordCode != "" {
				fmt.Fprintf(w, "  Record:     %s\n", entry.RecordCode)
			}
			w.WriteString("\n")
		}

		fmt.Fprintf(w, "%s\nEnd of Error Log\n", rule)
	})
}

// =============================================================================
// PROCESSING SUMMARY
// =============================================================================

// ProcessingSummary contains summary information about a processing run.
type ProcessingSummary struct {
	RunID           string
	StartTime       time.Time
	EndTime         time.Time
	TotalFiles      int
	SuccessfulFiles int
	FailedFiles     int
	TotalLines      int
	TotalRecords    int
	DocumentKeys    int
	ProcessedFiles  []ProcessedFileInfo
	FailedFilesList []FailedFileInfo
}

// ProcessedFileInfo contains information about a successfully processed file.
type ProcessedFileInfo struct {
	InputFile   string
	OutputFile  string
	ArchivePath string
	Checksum    string
	Lines       int
	Records     int
	ProcessTime time.Duration
}

// FailedFileInfo contains information about a failed file.
type FailedFileInfo struct {
	InputFile    string
	ErrorMessage string
}

// WriteSummaryLog writes a processing summary to a timestamped file in dir.
//
// RETURNS:
//   - The path to the summary file.
//   - An error if writing fails.
func WriteSummaryLog(summary ProcessingSummary, dir string) (string, error) {
	summaryPath := filepath.Join(dir, fmt.Sprintf("processing_summary_%s.txt", time.Now().Format("20060102_150405")))

	return summaryPath, writeReport(summaryPath, func(w *bufio.Writer) {
		fmt.Fprintf(w, "SPED Anonymizer - Processing Summary\n"+
			"%s\n\n"+
			"Run Information:\n"+
			"  Run ID:         %s\n"+
			"  Start Time:     %s\n"+
			"  End Time:       %s\n"+
			"  Duration:       %s\n\n"+
			"Statistics:\n"+
			"  Total Files:        %d\n"+
			"  Successful:         %d\n"+
			"  Failed:             %d\n"+
			"  Total Lines:        %d\n"+
			"  Records Rewritten:  %d\n"+
			"  Document Keys:      %d\n\n",
			rule,
			summary.RunID,
			summary.StartTime.Format("2006-01-02 15:04:05"),
			summary.EndTime.Format("2006-01-02 15:04:05"),
			summary.EndTime.Sub(summary.StartTime).String(),
			summary.TotalFiles,
			summary.SuccessfulFiles,
			summary.FailedFiles,
			summary.TotalLines,
			summary.TotalRecords,
			summary.DocumentKeys)

		if len(summary.ProcessedFiles) > 0 {
			fmt.Fprintf(w, "Successful Files:\n%s\n", thinRule)
			for _, pf := range summary.ProcessedFiles {
				fmt.Fprintf(w, "  Input:        %s\n", pf.InputFile)
				fmt.Fprintf(w, "  Output:       %s\n", pf.OutputFile)
				if pf.ArchivePath != "" {
					fmt.Fprintf(w, "  Archived To:  %s\n", pf.ArchivePath)
				}
				fmt.Fprintf(w, "  SHA-256:      %s\n", pf.Checksum)
				fmt.Fprintf(w, "  Lines:        %d\n", pf.Lines)
				fmt.Fprintf(w, "  Records:      %d\n", pf.Records)
				fmt.Fprintf(w, "  Process Time: %s\n\n", pf.ProcessTime.String())
			}
		}

		if len(summary.FailedFilesList) > 0 {
			fmt.Fprintf(w, "Failed Files:\n%s\n", thinRule)
			for _, ff := range summary.FailedFilesList {
				fmt.Fprintf(w, "  File:  %s\n", ff.InputFile)
				fmt.Fprintf(w, "  Error: %s\n\n", ff.ErrorMessage)
			}
		}

		fmt.Fprintf(w, "%s\nEnd of Summary\n", rule)
	})
}

const (
	rule     = "================================================================================"
	thinRule = "--------------------------------------------------------------------------------"
)

// writeReport creates path, lets body fill it and flushes.
func writeReport(path string, body func(w *bufio.Writer)) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Base(path), err)
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	body(w)
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to flush %s: %w", filepath.Base(path), err)
	}
	return nil
}

// =============================================================================
// UTILITY FUNCTIONS
// =============================================================================

// copyFile copies a file from src to dst.
func copyFile(src, dst string) error {
	sourceFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer sourceFile.Close()

	destFile, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer destFile.Close()

	if _, err := io.Copy(destFile, sourceFile); err != nil {
		return err
	}

	return destFile.Sync()
}

// FileExists checks if a file exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !errors.Is(err, fs.ErrNotExist)
}
