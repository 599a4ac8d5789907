package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadMainConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadMainConfig: %v", err)
	}

	if cfg.InputDir != "./input" || cfg.FilePattern != "*.txt" {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.PlaceholderEntityID != DefaultPlaceholder {
		t.Errorf("PlaceholderEntityID = %q, want %q", cfg.PlaceholderEntityID, DefaultPlaceholder)
	}
	if cfg.InputEncoding != "auto" || cfg.OutputEncoding != "WINDOWS-1252" {
		t.Errorf("encodings = %q / %q", cfg.InputEncoding, cfg.OutputEncoding)
	}
	if !cfg.ShouldArchive() {
		t.Error("archiving should default to on")
	}
	if cfg.MaxConcurrency != 4 {
		t.Errorf("MaxConcurrency = %d, want 4", cfg.MaxConcurrency)
	}
	if cfg.LedgerFile() != DefaultLedgerPath {
		t.Errorf("LedgerFile() = %q, want %q", cfg.LedgerFile(), DefaultLedgerPath)
	}
}

func TestLedgerPath(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"absent key uses default", "seed: 1\n", DefaultLedgerPath},
		{"explicit empty disables", "ledger_path: \"\"\n", ""},
		{"custom path", "ledger_path: /var/lib/sped/ledger.db\n", "/var/lib/sped/ledger.db"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadMainConfig(writeConfig(t, tt.content))
			if err != nil {
				t.Fatalf("LoadMainConfig: %v", err)
			}
			if got := cfg.LedgerFile(); got != tt.want {
				t.Errorf("LedgerFile() = %q, want %q", got, tt.want)
			}
		})
	}

	if got := Default().LedgerFile(); got != DefaultLedgerPath {
		t.Errorf("Default().LedgerFile() = %q", got)
	}
}

func TestLoadOverridesAndRepairsPlaceholder(t *testing.T) {
	path := writeConfig(t, `
input_dir: /data/in
placeholder_entity_id: "12.345.678/0001-00"
seed: 42
archive_on_success: false
max_concurrency: 1
output_encoding: UTF-8
log_level: debug
`)
	cfg, err := LoadMainConfig(path)
	if err != nil {
		t.Fatalf("LoadMainConfig: %v", err)
	}

	if cfg.InputDir != "/data/in" || cfg.Seed != 42 || cfg.MaxConcurrency != 1 {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	if cfg.PlaceholderEntityID != "12345678000195" {
		t.Errorf("PlaceholderEntityID = %q, want repaired 12345678000195", cfg.PlaceholderEntityID)
	}
	if cfg.ShouldArchive() {
		t.Error("archive_on_success: false was ignored")
	}
	if cfg.OutputDir != "./output" {
		t.Errorf("OutputDir = %q, want default", cfg.OutputDir)
	}
}

func TestLoadReportsAllProblems(t *testing.T) {
	path := writeConfig(t, `
placeholder_entity_id: "123"
max_concurrency: -1
input_encoding: KLINGON
output_encoding: auto
log_level: loud
output_name_format: fixed.txt
`)
	_, err := LoadMainConfig(path)
	if err == nil {
		t.Fatal("expected a validation error")
	}

	for _, want := range []string{
		"placeholder_entity_id",
		"max_concurrency",
		"input_encoding",
		"output_encoding",
		"log_level",
		"output_name_format",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := writeConfig(t, "input_dir: [unterminated")
	if _, err := LoadMainConfig(path); err == nil {
		t.Error("expected a parse error")
	}
}

func TestEnsureDirectories(t *testing.T) {
	root := t.TempDir()
	cfg := Default()
	cfg.InputDir = filepath.Join(root, "in")
	cfg.OutputDir = filepath.Join(root, "out")
	cfg.InputArchiveDir = filepath.Join(root, "archive", "in")
	cfg.OutputArchiveDir = filepath.Join(root, "archive", "out")
	cfg.LogsDir = filepath.Join(root, "logs")

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	for _, dir := range []string{cfg.InputDir, cfg.OutputDir, cfg.InputArchiveDir, cfg.OutputArchiveDir, cfg.LogsDir} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Errorf("%s was not created", dir)
		}
	}
}
