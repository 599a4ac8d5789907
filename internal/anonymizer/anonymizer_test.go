package anonymizer

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/ginjaninja78/sped-anonymizer/internal/config"
	"github.com/ginjaninja78/sped-anonymizer/internal/ledger"
	"github.com/ginjaninja78/sped-anonymizer/internal/metrics"
	"github.com/ginjaninja78/sped-anonymizer/internal/rules"
	"github.com/ginjaninja78/sped-anonymizer/internal/validation"
)

const sample = "|0000|006|0|||01012024|31012024|EMPRESA REAL SA|11222333000181|SP|3550308||00|9|\r\n" +
	"|0111|100|200|300|400|1000|\r\n" +
	"|0150|P1|FORNECEDOR|1058|99888777000100||123|3550308||RUA X|1|SALA|CENTRO|\r\n" +
	"|C100|0|1|P1|55|00|1|123|35240111222333000181550010000000011000000010|01012024|01012024|100|\r\n" +
	"|D101|0|1000|50|03|1000|1,65|16|conta|\r\n" +
	"|D105|0|1000|50|03|1000|7,6|76|conta|\r\n" +
	"|9999|6|\r\n"

func testConfig(t *testing.T) *config.MainConfig {
	t.Helper()
	root := t.TempDir()
	cfg := config.Default()
	cfg.InputDir = filepath.Join(root, "input")
	cfg.OutputDir = filepath.Join(root, "output")
	cfg.InputArchiveDir = filepath.Join(root, "input_archive")
	cfg.OutputArchiveDir = filepath.Join(root, "output_archive")
	cfg.LogsDir = filepath.Join(root, "logs")
	cfg.Seed = 42
	cfg.MaxConcurrency = 2
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatal(err)
	}
	return cfg
}

func writeInput(t *testing.T, cfg *config.MainConfig, name, body string) string {
	t.Helper()
	path := filepath.Join(cfg.InputDir, name)
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func openLedger(t *testing.T, cfg *config.MainConfig) *ledger.Ledger {
	t.Helper()
	l, err := ledger.Open(context.Background(), filepath.Join(cfg.LogsDir, "ledger.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestRunAnonymizesAndArchives(t *testing.T) {
	cfg := testConfig(t)
	input := writeInput(t, cfg, "EFD_2024_01.txt", sample)
	rec := metrics.New()
	a := New(cfg, Options{Metrics: rec, Ledger: openLedger(t, cfg)})

	res := a.Run(context.Background(), input)
	if !res.Success {
		t.Fatalf("Run failed: %v", res.Error)
	}

	if !strings.HasPrefix(filepath.Base(res.OutputFile), "EFD_2024_01_anon_") {
		t.Errorf("OutputFile = %s", res.OutputFile)
	}
	if _, err := os.Stat(res.OutputFile + ".partial"); !errors.Is(err, os.ErrNotExist) {
		t.Error("partial output left behind")
	}
	if _, err := os.Stat(input); !errors.Is(err, os.ErrNotExist) {
		t.Error("input not moved to archive")
	}
	if res.ArchivePath == "" || filepath.Dir(res.ArchivePath) != cfg.InputArchiveDir {
		t.Errorf("ArchivePath = %q", res.ArchivePath)
	}
	if len(res.Checksum) != 64 {
		t.Errorf("Checksum = %q", res.Checksum)
	}

	if res.Stats.Lines != 7 || res.Stats.DocumentKeys != 1 || res.Stats.ByType["0150"] != 1 {
		t.Errorf("Stats = %+v", res.Stats)
	}

	out, err := os.ReadFile(res.OutputFile)
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Contains(out, []byte("11222333000181")) || bytes.Contains(out, []byte("EMPRESA REAL SA")) {
		t.Error("original identity survived anonymization")
	}
	if !bytes.Contains(out, []byte(cfg.PlaceholderEntityID)) {
		t.Error("placeholder entity missing from output")
	}

	verdict, err := validation.NewVerifier(rules.Default()).VerifyFile(res.OutputFile, cfg.OutputEncoding)
	if err != nil {
		t.Fatal(err)
	}
	if !verdict.IsValid {
		t.Errorf("output does not verify: %v", verdict.Findings)
	}

	expected := `
# HELP sped_anon_files_total Files processed, by outcome.
# TYPE sped_anon_files_total counter
sped_anon_files_total{status="success"} 1
# HELP sped_anon_document_keys_total 44-digit document keys replaced.
# TYPE sped_anon_document_keys_total counter
sped_anon_document_keys_total 1
`
	if err := testutil.GatherAndCompare(rec.Registry(), strings.NewReader(expected),
		"sped_anon_files_total", "sped_anon_document_keys_total"); err != nil {
		t.Error(err)
	}
}

func TestRunIsReproducibleForSeedAndName(t *testing.T) {
	outputs := make([][]byte, 2)
	for i := range outputs {
		cfg := testConfig(t)
		input := writeInput(t, cfg, "same_name.txt", sample)
		res := New(cfg, Options{}).Run(context.Background(), input)
		if !res.Success {
			t.Fatalf("Run failed: %v", res.Error)
		}
		data, err := os.ReadFile(res.OutputFile)
		if err != nil {
			t.Fatal(err)
		}
		outputs[i] = data
	}
	if !bytes.Equal(outputs[0], outputs[1]) {
		t.Error("same seed and file name produced different output")
	}
}

func TestDryRunWritesNothing(t *testing.T) {
	cfg := testConfig(t)
	input := writeInput(t, cfg, "dry.txt", sample)
	l := openLedger(t, cfg)
	a := New(cfg, Options{DryRun: true, Ledger: l})

	res := a.Run(context.Background(), input)
	if !res.Success || res.OutputFile != "" {
		t.Fatalf("Result = %+v", res)
	}
	if _, err := os.Stat(input); err != nil {
		t.Error("dry run moved the input")
	}
	entries, _ := os.ReadDir(cfg.OutputDir)
	if len(entries) != 0 {
		t.Errorf("dry run wrote %d output files", len(entries))
	}

	recent, err := l.Recent(context.Background(), 1)
	if err != nil || len(recent) != 1 || recent[0].Status != ledger.StatusDryRun {
		t.Errorf("ledger = %+v, %v", recent, err)
	}
}

func TestRunMissingFileFails(t *testing.T) {
	cfg := testConfig(t)
	rec := metrics.New()
	l := openLedger(t, cfg)
	a := New(cfg, Options{Metrics: rec, Ledger: l})

	res := a.Run(context.Background(), filepath.Join(cfg.InputDir, "missing.txt"))
	if res.Success || res.Error == nil {
		t.Fatalf("Result = %+v", res)
	}

	recent, _ := l.Recent(context.Background(), 0)
	if len(recent) != 1 || recent[0].Status != ledger.StatusFailed || recent[0].Error == "" {
		t.Errorf("ledger = %+v", recent)
	}
}

func TestRunCancelled(t *testing.T) {
	cfg := testConfig(t)
	input := writeInput(t, cfg, "cancel.txt", sample)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := New(cfg, Options{}).Run(ctx, input)
	if !errors.Is(res.Error, context.Canceled) {
		t.Fatalf("Error = %v, want context.Canceled", res.Error)
	}
	if _, err := os.Stat(input); err != nil {
		t.Error("cancelled run moved the input")
	}
	entries, _ := os.ReadDir(cfg.OutputDir)
	if len(entries) != 0 {
		t.Errorf("cancelled run left %d files in output", len(entries))
	}
}

func TestRunAllKeepsOrder(t *testing.T) {
	cfg := testConfig(t)
	names := []string{"a.txt", "b.txt", "c.txt", "d.txt"}
	paths := make([]string, len(names))
	for i, name := range names {
		paths[i] = writeInput(t, cfg, name, sample)
	}
	paths = append(paths, filepath.Join(cfg.InputDir, "nope.txt"))

	results := New(cfg, Options{}).RunAll(context.Background(), paths)
	if len(results) != len(paths) {
		t.Fatalf("len(results) = %d", len(results))
	}
	for i, res := range results {
		if res.FilePath != paths[i] {
			t.Errorf("results[%d].FilePath = %s, want %s", i, res.FilePath, paths[i])
		}
		if want := i < len(names); res.Success != want {
			t.Errorf("results[%d].Success = %v, want %v (%v)", i, res.Success, want, res.Error)
		}
	}
}

func TestDuplicateInputIsReported(t *testing.T) {
	cfg := testConfig(t)
	l := openLedger(t, cfg)

	first := writeInput(t, cfg, "first.txt", sample)
	if res := New(cfg, Options{Ledger: l}).Run(context.Background(), first); !res.Success {
		t.Fatal(res.Error)
	}

	var buf bytes.Buffer
	logger := log.NewWithOptions(&buf, log.Options{})
	second := writeInput(t, cfg, "second.txt", sample)
	if res := New(cfg, Options{Ledger: l, Logger: logger}).Run(context.Background(), second); !res.Success {
		t.Fatal(res.Error)
	}
	if !strings.Contains(buf.String(), "already anonymized") {
		t.Errorf("log = %q", buf.String())
	}
}

func TestDiscover(t *testing.T) {
	cfg := testConfig(t)
	a := New(cfg, Options{})
	if _, err := a.Discover(); !errors.Is(err, ErrNoInput) {
		t.Errorf("Discover on empty dir = %v", err)
	}

	writeInput(t, cfg, "b.txt", sample)
	writeInput(t, cfg, "a.txt", sample)
	writeInput(t, cfg, "skip.csv", sample)
	files, err := a.Discover()
	if err != nil || len(files) != 2 || filepath.Base(files[0]) != "a.txt" {
		t.Errorf("Discover = %v, %v", files, err)
	}
}
