// =============================================================================
// SPED Anonymizer - Configuration Module
// =============================================================================
//
// This module loads the application configuration from a YAML file
// (config.yaml by default). Every option has a default, so the file is
// optional: a missing file yields the default configuration.
//
// EXAMPLE:
//
//	input_dir: ./input
//	output_dir: ./output
//	file_pattern: "*.txt"
//	input_encoding: auto
//	output_encoding: WINDOWS-1252
//	placeholder_entity_id: "12345678901230"
//	seed: 0
//	output_name_format: "{original}_anon_{uuid}.txt"
//	max_concurrency: 4
//
// =============================================================================

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ginjaninja78/sped-anonymizer/internal/checkdigit"
	"github.com/ginjaninja78/sped-anonymizer/internal/spedfile"
)

// DefaultPlaceholder is the fictitious CNPJ used when none is configured.
const DefaultPlaceholder = "12345678901230"

// DefaultLedgerPath is used when ledger_path is absent from the file.
const DefaultLedgerPath = "./logs/ledger.db"

// =============================================================================
// MAIN CONFIGURATION STRUCTURE
// =============================================================================

// MainConfig holds the global application configuration.
type MainConfig struct {
	// =========================================================================
	// DIRECTORY SETTINGS
	// =========================================================================

	// InputDir is scanned for SPED files to anonymize.
	// Default: "./input"
	InputDir string `yaml:"input_dir"`

	// OutputDir receives the anonymized files.
	// Default: "./output"
	OutputDir string `yaml:"output_dir"`

	// InputArchiveDir receives the original files after a successful run.
	// Default: "./input_archive"
	InputArchiveDir string `yaml:"input_archive_dir"`

	// OutputArchiveDir receives a copy of every anonymized file.
	// Default: "./output_archive"
	OutputArchiveDir string `yaml:"output_archive_dir"`

	// LogsDir holds the error logs and processing summaries.
	// Default: "./logs"
	LogsDir string `yaml:"logs_dir"`

	// =========================================================================
	// FILE SETTINGS
	// =========================================================================

	// FilePattern is the glob that selects input files inside InputDir.
	// Default: "*.txt"
	FilePattern string `yaml:"file_pattern"`

	// InputEncoding is "auto" (UTF-8, falling back to Windows-1252 per
	// line) or an IANA encoding name.
	// Default: "auto"
	InputEncoding string `yaml:"input_encoding"`

	// OutputEncoding is the IANA encoding of the anonymized files.
	// Default: "WINDOWS-1252"
	OutputEncoding string `yaml:"output_encoding"`

	// OutputNameFormat names the output file.
	// Placeholders:
	//   {original}  - input file name without extension
	//   {uuid}      - a random UUID
	//   {timestamp} - current timestamp (YYYYMMDD_HHMMSS)
	//   {date}      - current date (YYYYMMDD)
	// Default: "{original}_anon_{uuid}.txt"
	OutputNameFormat string `yaml:"output_name_format"`

	// =========================================================================
	// ANONYMIZATION SETTINGS
	// =========================================================================

	// PlaceholderEntityID is the fictitious CNPJ that replaces the declaring
	// entity. Its check digits are repaired on load.
	// Default: "12345678901230"
	PlaceholderEntityID string `yaml:"placeholder_entity_id"`

	// Seed makes runs reproducible: the same seed and the same input file
	// name always produce the same output. 0 draws a fresh seed.
	Seed uint64 `yaml:"seed"`

	// =========================================================================
	// PROCESSING SETTINGS
	// =========================================================================

	// MaxConcurrency is the number of files processed at once. Records within
	// a file are always processed in order.
	// Default: 4
	MaxConcurrency int `yaml:"max_concurrency"`

	// ArchiveOnSuccess moves the input and copies the output to the archive
	// directories after a file succeeds.
	// Default: true
	ArchiveOnSuccess *bool `yaml:"archive_on_success"`

	// =========================================================================
	// LOGGING AND BOOKKEEPING
	// =========================================================================

	// LogLevel is one of "debug", "info", "warn", "error".
	// Default: "info"
	LogLevel string `yaml:"log_level"`

	// LedgerPath is the SQLite database recording every processed file.
	// An explicit empty value (ledger_path: "") disables the ledger; use
	// LedgerFile to read it.
	// Default: "./logs/ledger.db"
	LedgerPath *string `yaml:"ledger_path"`

	// MetricsFile receives the run counters in Prometheus text format.
	// Empty disables the metrics file.
	MetricsFile string `yaml:"metrics_file"`
}

// ShouldArchive reports whether successful files are archived.
func (c *MainConfig) ShouldArchive() bool {
	return c.ArchiveOnSuccess == nil || *c.ArchiveOnSuccess
}

// LedgerFile returns the ledger database path, or "" when the ledger is
// disabled.
func (c *MainConfig) LedgerFile() string {
	if c.LedgerPath == nil {
		return DefaultLedgerPath
	}
	return *c.LedgerPath
}

// =============================================================================
// CONFIGURATION LOADING FUNCTIONS
// =============================================================================

// LoadMainConfig loads the main configuration from a YAML file.
//
// PARAMETERS:
//   - configPath: The path to the configuration file. A missing file is not
//     an error; defaults apply.
//
// RETURNS:
//   - A pointer to the MainConfig struct.
//   - An error if the file cannot be read, parsed or validated.
func LoadMainConfig(configPath string) (*MainConfig, error) {
	var config MainConfig

	data, err := os.ReadFile(configPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyMainConfigDefaults(&config)

	if err := validateMainConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Default returns the configuration used when no file is present.
func Default() *MainConfig {
	var config MainConfig
	applyMainConfigDefaults(&config)
	config.PlaceholderEntityID = checkdigit.RepairEntity(config.PlaceholderEntityID)
	return &config
}

// applyMainConfigDefaults sets default values for any unset configuration options.
func applyMainConfigDefaults(config *MainConfig) {
	if config.InputDir == "" {
		config.InputDir = "./input"
	}
	if config.OutputDir == "" {
		config.OutputDir = "./output"
	}
	if config.InputArchiveDir == "" {
		config.InputArchiveDir = "./input_archive"
	}
	if config.OutputArchiveDir == "" {
		config.OutputArchiveDir = "./output_archive"
	}
	if config.LogsDir == "" {
		config.LogsDir = "./logs"
	}
	if config.FilePattern == "" {
		config.FilePattern = "*.txt"
	}
	if config.InputEncoding == "" {
		config.InputEncoding = spedfile.AutoEncoding
	}
	if config.OutputEncoding == "" {
		config.OutputEncoding = "WINDOWS-1252"
	}
	if config.OutputNameFormat == "" {
		config.OutputNameFormat = "{original}_anon_{uuid}.txt"
	}
	if config.PlaceholderEntityID == "" {
		config.PlaceholderEntityID = DefaultPlaceholder
	}
	if config.MaxConcurrency == 0 {
		config.MaxConcurrency = 4
	}
	if config.LogLevel == "" {
		config.LogLevel = "info"
	}
	if config.LedgerPath == nil {
		path := DefaultLedgerPath
		config.LedgerPath = &path
	}
}

// validateMainConfig checks option values and repairs the placeholder.
// Problems are reported together.
func validateMainConfig(config *MainConfig) error {
	var errs []error

	placeholder := checkdigit.Digits(config.PlaceholderEntityID)
	if len(placeholder) != checkdigit.EntityLength {
		errs = append(errs, fmt.Errorf("placeholder_entity_id %q must have %d digits",
			config.PlaceholderEntityID, checkdigit.EntityLength))
	} else {
		config.PlaceholderEntityID = checkdigit.RepairEntity(placeholder)
	}

	if config.MaxConcurrency < 1 {
		errs = append(errs, fmt.Errorf("max_concurrency must be at least 1, got %d", config.MaxConcurrency))
	}

	if _, err := spedfile.Lookup(config.InputEncoding); err != nil {
		errs = append(errs, fmt.Errorf("input_encoding: %w", err))
	}
	if strings.EqualFold(config.OutputEncoding, spedfile.AutoEncoding) {
		errs = append(errs, fmt.Errorf("output_encoding must name an encoding, not %q", config.OutputEncoding))
	} else if _, err := spedfile.Lookup(config.OutputEncoding); err != nil {
		errs = append(errs, fmt.Errorf("output_encoding: %w", err))
	}

	switch strings.ToLower(config.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log_level %q is not one of debug, info, warn, error", config.LogLevel))
	}

	if !strings.Contains(config.OutputNameFormat, "{uuid}") &&
		!strings.Contains(config.OutputNameFormat, "{timestamp}") &&
		!strings.Contains(config.OutputNameFormat, "{original}") {
		errs = append(errs, fmt.Errorf("output_name_format %q has no placeholder and would overwrite outputs",
			config.OutputNameFormat))
	}

	return errors.Join(errs...)
}

// EnsureDirectories creates the working directories if they do not exist.
func (c *MainConfig) EnsureDirectories() error {
	dirs := []string{
		c.InputDir,
		c.OutputDir,
		c.InputArchiveDir,
		c.OutputArchiveDir,
		c.LogsDir,
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}
