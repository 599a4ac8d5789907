package ruleexport

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/sped-anonymizer/internal/rules"
)

func exportDefault(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rules.xlsx")
	if err := Export(rules.Default(), path); err != nil {
		t.Fatalf("Export: %v", err)
	}
	return path
}

func TestExportImportRoundTrip(t *testing.T) {
	path := exportDefault(t)

	got, err := Import(path)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if diffs := Diff(rules.Default(), got); len(diffs) != 0 {
		for _, d := range diffs {
			t.Error(d)
		}
	}
	if err := got.Validate(); err != nil {
		t.Errorf("imported table does not validate: %v", err)
	}
	if got["0111"].Description != rules.Default()["0111"].Description {
		t.Errorf("description lost: %q", got["0111"].Description)
	}
}

func TestExportLayout(t *testing.T) {
	path := exportDefault(t)

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	rows, err := f.GetRows(SheetName)
	if err != nil {
		t.Fatal(err)
	}

	ops := 0
	for _, rule := range rules.Default() {
		ops += len(rule.Ops)
	}
	if len(rows) != ops+1 {
		t.Errorf("rows = %d, want %d operations plus header", len(rows), ops)
	}
	if strings.Join(rows[0], "|") != strings.Join(Header, "|") {
		t.Errorf("header = %q", rows[0])
	}
}

func TestDiffDetectsEditedWorkbook(t *testing.T) {
	path := exportDefault(t)

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatal(err)
	}
	rows, _ := f.GetRows(SheetName)

	// Change the 0111 total operands and drop the only 0450 row.
	var sumRow, openRow int
	for i, row := range rows {
		if len(row) > colKind && row[colCode] == "0111" && row[colKind] == "sum" {
			sumRow = i + 1
		}
		if openRow == 0 && len(row) > colCode && row[colCode] == "0450" {
			openRow = i + 1
		}
	}
	if sumRow == 0 || openRow == 0 {
		t.Fatal("expected rows not found in export")
	}

	cell, _ := excelize.CoordinatesToCellName(colOperands+1, sumRow)
	if err := f.SetCellValue(SheetName, cell, "2,3,4"); err != nil {
		t.Fatal(err)
	}
	if err := f.RemoveRow(SheetName, openRow); err != nil {
		t.Fatal(err)
	}
	if err := f.Save(); err != nil {
		t.Fatal(err)
	}
	f.Close()

	got, err := Import(path)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}

	diffs := Diff(rules.Default(), got)
	var sawOperands, sawMissing bool
	for _, d := range diffs {
		if d.Code == "0111" && d.Attribute == "operands" && d.Got == "2,3,4" {
			sawOperands = true
		}
		if d.Code == "0450" && d.Got == "missing" {
			sawMissing = true
		}
	}
	if !sawOperands || !sawMissing {
		t.Errorf("diffs = %v", diffs)
	}
}

func TestImportRejectsBadRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.xlsx")
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	header := []any{"Code", "Description", "Order", "Field", "Name", "Kind"}
	_ = f.SetSheetRow(sheet, "A1", &header)
	bad := []any{"0000", "x", 1, 8, "NOME", "teleport"}
	_ = f.SetSheetRow(sheet, "A2", &bad)
	if err := f.SaveAs(path); err != nil {
		t.Fatal(err)
	}
	f.Close()

	_, err := Import(path)
	if err == nil || !strings.Contains(err.Error(), "row 2") {
		t.Errorf("Import error = %v, want a row 2 error", err)
	}
}

func TestDifferenceString(t *testing.T) {
	d := Difference{Code: "D105", Op: 2, Attribute: "reads", Want: "credit_nature", Got: ""}
	if got := d.String(); got != `D105 op 2: reads: want "credit_nature", got ""` {
		t.Errorf("String() = %s", got)
	}
}
