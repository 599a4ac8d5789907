package utils

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"
)

func newTestManager(t *testing.T) *FileManager {
	t.Helper()
	root := t.TempDir()
	fm := NewFileManager(
		filepath.Join(root, "in"),
		filepath.Join(root, "out"),
		filepath.Join(root, "archive_in"),
		filepath.Join(root, "archive_out"),
	)
	for _, dir := range []string{fm.InputDir, fm.OutputDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatal(err)
		}
	}
	fm.now = func() time.Time { return time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC) }
	return fm
}

func touch(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestDiscoverInputFiles(t *testing.T) {
	fm := newTestManager(t)
	touch(t, filepath.Join(fm.InputDir, "b.txt"), "")
	touch(t, filepath.Join(fm.InputDir, "a.txt"), "")
	touch(t, filepath.Join(fm.InputDir, "notes.md"), "")
	if err := os.Mkdir(filepath.Join(fm.InputDir, "dir.txt"), 0755); err != nil {
		t.Fatal(err)
	}

	files, err := fm.DiscoverInputFiles("")
	if err != nil {
		t.Fatalf("DiscoverInputFiles: %v", err)
	}
	if len(files) != 2 || filepath.Base(files[0]) != "a.txt" || filepath.Base(files[1]) != "b.txt" {
		t.Errorf("files = %q, want a.txt and b.txt", files)
	}
}

func TestArchiveInputFileMovesAndAvoidsCollisions(t *testing.T) {
	fm := newTestManager(t)

	first := filepath.Join(fm.InputDir, "efd.txt")
	touch(t, first, "one")
	archived, err := fm.ArchiveInputFile(first)
	if err != nil {
		t.Fatalf("ArchiveInputFile: %v", err)
	}
	if archived != filepath.Join(fm.InputArchiveDir, "efd.txt") {
		t.Errorf("archived to %q", archived)
	}
	if FileExists(first) {
		t.Error("input file still present after archival")
	}

	touch(t, first, "two")
	second, err := fm.ArchiveInputFile(first)
	if err != nil {
		t.Fatalf("second ArchiveInputFile: %v", err)
	}
	if second != filepath.Join(fm.InputArchiveDir, "efd_20240506_070809.txt") {
		t.Errorf("collision archived to %q", second)
	}
	if data, _ := os.ReadFile(archived); string(data) != "one" {
		t.Errorf("first archive overwritten: %q", data)
	}
}

func TestArchiveOutputFileCopies(t *testing.T) {
	fm := newTestManager(t)
	out := filepath.Join(fm.OutputDir, "efd_anon.txt")
	touch(t, out, "anon")

	archived, err := fm.ArchiveOutputFile(out)
	if err != nil {
		t.Fatalf("ArchiveOutputFile: %v", err)
	}
	if !FileExists(out) {
		t.Error("output removed by archival")
	}
	if data, _ := os.ReadFile(archived); string(data) != "anon" {
		t.Errorf("archive content = %q", data)
	}
}

func TestArchiveDisabled(t *testing.T) {
	fm := newTestManager(t)
	fm.ArchiveOnSuccess = false
	in := filepath.Join(fm.InputDir, "x.txt")
	touch(t, in, "")

	got, err := fm.ArchiveInputFile(in)
	if err != nil || got != in || !FileExists(in) {
		t.Errorf("ArchiveInputFile with archival off = %q, %v", got, err)
	}
}

func TestGenerateOutputFileName(t *testing.T) {
	uuidRe := `[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}`
	tests := []struct {
		format, input string
		pattern       string
	}{
		{"{original}_anon_{uuid}.txt", "/in/EFD_2024.txt", `^EFD_2024_anon_` + uuidRe + `\.txt$`},
		{"{original}_{date}", "/in/efd.TXT", `^efd_\d{8}\.TXT$`},
		{"anon_{timestamp}", "/in/noext", `^anon_\d{8}_\d{6}\.txt$`},
	}

	for _, tt := range tests {
		got := GenerateOutputFileName(tt.format, tt.input)
		if !regexp.MustCompile(tt.pattern).MatchString(got) {
			t.Errorf("GenerateOutputFileName(%q, %q) = %q, want match %s", tt.format, tt.input, got, tt.pattern)
		}
	}

	a := GenerateOutputFileName("{uuid}", "x.txt")
	b := GenerateOutputFileName("{uuid}", "x.txt")
	if a == b {
		t.Error("two {uuid} names collided")
	}
}

func TestWriteErrorLog(t *testing.T) {
	dir := t.TempDir()

	if path, err := WriteErrorLog(nil, dir); path != "" || err != nil {
		t.Errorf("empty log = %q, %v", path, err)
	}

	path, err := WriteErrorLog([]ErrorLogEntry{{
		Timestamp:  time.Now(),
		FileName:   "efd.txt",
		Stage:      "read",
		Message:    "line 3: bad encoding",
		LineNumber: 3,
		RecordCode: "0150",
	}}, dir)
	if err != nil {
		t.Fatalf("WriteErrorLog: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"Total Errors: 1", "efd.txt", "Line:       3", "Record:     0150"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("error log lacks %q", want)
		}
	}
}

func TestWriteSummaryLog(t *testing.T) {
	start := time.Now()
	summary := ProcessingSummary{
		RunID:           "run-1",
		StartTime:       start,
		EndTime:         start.Add(2 * time.Second),
		TotalFiles:      2,
		SuccessfulFiles: 1,
		FailedFiles:     1,
		ProcessedFiles:  []ProcessedFileInfo{{InputFile: "a.txt", OutputFile: "a_anon.txt", Checksum: "abc"}},
		FailedFilesList: []FailedFileInfo{{InputFile: "b.txt", ErrorMessage: "boom"}},
	}

	path, err := WriteSummaryLog(summary, filepath.Join(t.TempDir(), "logs"))
	if err != nil {
		t.Fatalf("WriteSummaryLog: %v", err)
	}
	data, _ := os.ReadFile(path)
	for _, want := range []string{"run-1", "Successful:         1", "a_anon.txt", "Error: boom", "Duration:       2s"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("summary lacks %q", want)
		}
	}
}
