package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// runCommand executes the root command with args and returns what it
// printed. Flag variables outlive a single Execute, so they are reset first.
func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	verifyEncoding, verifyMaxFindings, verifyStrict = "", 100, false
	rulesXLSX, rulesOut = "", ""

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"--config", filepath.Join(t.TempDir(), "none.yaml")}, args...))
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	err := rootCmd.Execute()
	return out.String(), err
}

func writeSPED(t *testing.T, name string, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\r\n")+"\r\n"), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestVerifyCommand(t *testing.T) {
	consistent := writeSPED(t, "ok.txt",
		"|0111|100|200|300|400|1000|",
		"|0111|1|2|3|4|10|",
	)
	tampered := writeSPED(t, "tampered.txt",
		"|0111|1|2|3|4|10|",
		"|0111|100|200|300|400|1|",
	)
	warnOnly := writeSPED(t, "warn.txt", "|0111|a|2|3|4|9|")

	tests := []struct {
		name    string
		args    []string
		wantErr string
		wantOut string
	}{
		{"consistent file", []string{consistent}, "", ""},
		{"tampered total", []string{tampered}, "1 of 1 file(s) failed verification", "tampered.txt:"},
		{"one bad file among two", []string{consistent, tampered}, "1 of 2 file(s) failed verification", "tampered.txt:"},
		{"warning passes by default", []string{warnOnly}, "", "warn.txt:"},
		{"warning fails with strict", []string{"--strict", warnOnly}, "1 of 1 file(s) failed verification", "warn.txt:"},
		{"missing file", []string{filepath.Join(t.TempDir(), "absent.txt")}, "1 of 1 file(s) failed verification", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"verify", "--encoding", "UTF-8"}, tt.args...)
			out, err := runCommand(t, args...)

			switch {
			case tt.wantErr == "" && err != nil:
				t.Fatalf("unexpected error: %v\n%s", err, out)
			case tt.wantErr != "" && (err == nil || err.Error() != tt.wantErr):
				t.Fatalf("error = %v, want %q", err, tt.wantErr)
			}
			if tt.wantOut != "" && !strings.Contains(out, tt.wantOut) {
				t.Errorf("output lacks %q:\n%s", tt.wantOut, out)
			}
			if tt.wantOut == "" && strings.Contains(out, "ok.txt:") {
				t.Errorf("consistent file reported findings:\n%s", out)
			}
		})
	}
}

func TestVerifyCommandNeedsAFile(t *testing.T) {
	if _, err := runCommand(t, "verify"); err == nil {
		t.Error("verify without files succeeded")
	}
}
