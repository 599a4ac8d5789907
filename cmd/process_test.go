package cmd

import (
	"errors"
	"testing"
	"time"

	"github.com/ginjaninja78/sped-anonymizer/internal/anonymizer"
)

func TestSummarize(t *testing.T) {
	start := time.Now().Add(-time.Second)
	results := []anonymizer.Result{
		{
			FilePath:   "/in/a.txt",
			OutputFile: "/out/a_anon.txt",
			Success:    true,
			Checksum:   "abc",
			Stats:      anonymizer.ProcessingStats{Lines: 10, Rewritten: 7, DocumentKeys: 2},
		},
		{
			FilePath: "/in/b.txt",
			Error:    errors.New("failed to open input"),
		},
	}

	summary, entries := summarize("run-1", start, results)

	if summary.TotalFiles != 2 || summary.SuccessfulFiles != 1 || summary.FailedFiles != 1 {
		t.Errorf("counts = %+v", summary)
	}
	if summary.TotalLines != 10 || summary.TotalRecords != 7 || summary.DocumentKeys != 2 {
		t.Errorf("totals = %+v", summary)
	}
	if len(summary.ProcessedFiles) != 1 || summary.ProcessedFiles[0].Checksum != "abc" {
		t.Errorf("ProcessedFiles = %+v", summary.ProcessedFiles)
	}
	if len(entries) != 1 || entries[0].FileName != "b.txt" || entries[0].Stage != "anonymize" {
		t.Errorf("entries = %+v", entries)
	}
	if summary.EndTime.Before(start) {
		t.Error("EndTime before StartTime")
	}
}
