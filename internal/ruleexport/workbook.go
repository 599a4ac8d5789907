// =============================================================================
// SPED Anonymizer - Rule Table Workbook
// =============================================================================
//
// This module writes the record field rule table to an XLSX workbook, reads
// such a workbook back, and compares it with the built-in table. Compliance
// reviewers audit which fields are replaced in a spreadsheet; the diff proves
// the audited sheet still matches what the binary does.
//
// WORKBOOK STRUCTURE (sheet "Rules", one row per operation):
//
//   | A    | B           | C     | D     | E    | F    | G     | H      | I   | J   |
//   |------|-------------|-------|-------|------|------|-------|--------|-----|-----|
//   | Code | Description | Order | Field | Name | Kind | Width | Format | Min | Max |
//
//   | K        | L    | M         | N     | O      | P     | Q          |
//   |----------|------|-----------|-------|--------|-------|------------|
//   | Operands | Rate | Component | Reads | Writes | Scope | Skip Blank |
//
//   Operands are comma separated field indexes ("2,3,4,5"). Rate uses the
//   SPED decimal comma ("1,65").
//
// =============================================================================

package ruleexport

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/sped-anonymizer/internal/correlation"
	"github.com/ginjaninja78/sped-anonymizer/internal/rules"
)

// SheetName is the worksheet holding the rules.
const SheetName = "Rules"

// Header is the first row of the sheet.
var Header = []string{
	"Code", "Description", "Order", "Field", "Name", "Kind", "Width", "Format", "Min", "Max",
	"Operands", "Rate", "Component", "Reads", "Writes", "Scope", "Skip Blank",
}

// Column positions (0-based), matching Header.
const (
	colCode = iota
	colDescription
	colOrder
	colField
	colName
	colKind
	colWidth
	colFormat
	colMin
	colMax
	colOperands
	colRate
	colComponent
	colReads
	colWrites
	colScope
	colSkipBlank
)

// =============================================================================
// EXPORT
// =============================================================================

// Export writes table to an XLSX workbook at path.
func Export(table rules.Table, path string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	header := make([]any, len(Header))
	for i, h := range Header {
		header[i] = h
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	last, _ := excelize.CoordinatesToCellName(len(Header), 1)
	if err := f.SetCellStyle(SheetName, "A1", last, bold); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}

	row := 2
	for _, code := range table.Codes() {
		rule := table[code]
		for i, op := range rule.Ops {
			cell, _ := excelize.CoordinatesToCellName(1, row)
			values := opRow(rule, i, op)
			if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
				return fmt.Errorf("failed to write %s op %d: %w", code, i, err)
			}
			row++
		}
	}

	if err := f.SetPanes(SheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("failed to freeze header: %w", err)
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}

func opRow(rule rules.Rule, order int, op rules.Op) []any {
	row := make([]any, len(Header))
	row[colCode] = rule.Code
	row[colDescription] = rule.Description
	row[colOrder] = order + 1
	row[colField] = op.Field
	row[colName] = op.Name
	row[colKind] = op.Kind.String()
	row[colWidth] = blankZero(op.Width)
	row[colFormat] = op.Format
	row[colMin] = blankZero(op.Min)
	row[colMax] = blankZero(op.Max)
	row[colOperands] = joinInts(op.Operands)
	row[colRate] = ""
	if op.Rate != 0 {
		row[colRate] = rules.FormatRate(op.Rate)
	}
	row[colComponent] = ""
	if op.Kind == rules.Rate {
		row[colComponent] = op.Component
	}
	row[colReads] = string(op.Reads)
	row[colWrites] = string(op.Writes)
	row[colScope] = ""
	if op.Reads != "" || op.Writes != "" {
		row[colScope] = op.Scope.String()
	}
	row[colSkipBlank] = ""
	if op.SkipBlank {
		row[colSkipBlank] = "yes"
	}
	return row
}

// =============================================================================
// IMPORT
// =============================================================================

// Import reads a workbook written by Export (possibly edited by hand) back
// into a rule table.
//
// RETURNS:
//   - The table. Operations are ordered by the Order column within a code.
//   - An error naming the first malformed row.
func Import(path string) (rules.Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheet := SheetName
	if idx, _ := f.GetSheetIndex(sheet); idx < 0 {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}

	type ordered struct {
		order int
		op    rules.Op
	}
	ops := make(map[string][]ordered)
	table := rules.Table{}

	for i := 1; i < len(rows); i++ {
		row := rows[i]
		if isRowEmpty(row) {
			continue
		}

		code, order, op, err := parseRow(row)
		if err != nil {
			return nil, fmt.Errorf("error parsing row %d: %w", i+1, err)
		}
		ops[code] = append(ops[code], ordered{order, op})
		if _, ok := table[code]; !ok {
			table[code] = rules.Rule{Code: code, Description: cell(row, colDescription)}
		}
	}

	for code, list := range ops {
		sort.SliceStable(list, func(a, b int) bool { return list[a].order < list[b].order })
		rule := table[code]
		for _, o := range list {
			rule.Ops = append(rule.Ops, o.op)
		}
		table[code] = rule
	}
	return table, nil
}

// parseRow extracts one operation from a sheet row.
func parseRow(row []string) (code string, order int, op rules.Op, err error) {
	code = cell(row, colCode)
	if code == "" {
		return "", 0, op, fmt.Errorf("missing record code")
	}

	kind, err := rules.ParseKind(strings.ToLower(cell(row, colKind)))
	if err != nil {
		return "", 0, op, err
	}
	op.Kind = kind
	op.Name = cell(row, colName)
	op.Format = cell(row, colFormat)

	ints := []struct {
		col  int
		dst  *int
		name string
	}{
		{colOrder, &order, "order"},
		{colField, &op.Field, "field"},
		{colWidth, &op.Width, "width"},
		{colMin, &op.Min, "min"},
		{colMax, &op.Max, "max"},
		{colComponent, &op.Component, "component"},
	}
	for _, n := range ints {
		if *n.dst, err = atoiBlank(cell(row, n.col)); err != nil {
			return "", 0, op, fmt.Errorf("%s: %w", n.name, err)
		}
	}

	if op.Operands, err = splitInts(cell(row, colOperands)); err != nil {
		return "", 0, op, fmt.Errorf("operands: %w", err)
	}
	if rate := cell(row, colRate); rate != "" {
		if op.Rate, err = rules.ParseRate(rate); err != nil {
			return "", 0, op, err
		}
	}

	op.Reads = correlation.Slot(cell(row, colReads))
	op.Writes = correlation.Slot(cell(row, colWrites))
	if strings.EqualFold(cell(row, colScope), "pass") {
		op.Scope = rules.ScopePass
	}
	switch strings.ToLower(cell(row, colSkipBlank)) {
	case "yes", "y", "true", "1", "x":
		op.SkipBlank = true
	}

	return code, order, op, nil
}

// =============================================================================
// DIFF
// =============================================================================

// Difference is one mismatch between two tables.
type Difference struct {
	Code      string
	Op        int // 1-based; 0 for rule-level differences
	Attribute string
	Want      string
	Got       string
}

func (d Difference) String() string {
	if d.Op == 0 {
		return fmt.Sprintf("%s: %s: want %q, got %q", d.Code, d.Attribute, d.Want, d.Got)
	}
	return fmt.Sprintf("%s op %d: %s: want %q, got %q", d.Code, d.Op, d.Attribute, d.Want, d.Got)
}

// Diff compares got against want, ignoring descriptions.
func Diff(want, got rules.Table) []Difference {
	var diffs []Difference

	codes := map[string]bool{}
	for code := range want {
		codes[code] = true
	}
	for code := range got {
		codes[code] = true
	}
	sorted := make([]string, 0, len(codes))
	for code := range codes {
		sorted = append(sorted, code)
	}
	sort.Strings(sorted)

	for _, code := range sorted {
		w, inWant := want[code]
		g, inGot := got[code]
		switch {
		case !inGot:
			diffs = append(diffs, Difference{Code: code, Attribute: "rule", Want: "present", Got: "missing"})
			continue
		case !inWant:
			diffs = append(diffs, Difference{Code: code, Attribute: "rule", Want: "missing", Got: "present"})
			continue
		}

		if len(w.Ops) != len(g.Ops) {
			diffs = append(diffs, Difference{Code: code, Attribute: "operations",
				Want: strconv.Itoa(len(w.Ops)), Got: strconv.Itoa(len(g.Ops))})
		}
		for i := 0; i < len(w.Ops) && i < len(g.Ops); i++ {
			wa, ga := attributes(w.Ops[i]), attributes(g.Ops[i])
			for _, name := range attributeNames {
				if wa[name] != ga[name] {
					diffs = append(diffs, Difference{Code: code, Op: i + 1, Attribute: name, Want: wa[name], Got: ga[name]})
				}
			}
		}
	}
	return diffs
}

var attributeNames = []string{
	"field", "name", "kind", "width", "format", "min", "max", "operands",
	"rate", "component", "reads", "writes", "scope", "skip_blank",
}

func attributes(op rules.Op) map[string]string {
	scope := ""
	if op.Reads != "" || op.Writes != "" {
		scope = op.Scope.String()
	}
	return map[string]string{
		"field":      strconv.Itoa(op.Field),
		"name":       op.Name,
		"kind":       op.Kind.String(),
		"width":      strconv.Itoa(op.Width),
		"format":     op.Format,
		"min":        strconv.Itoa(op.Min),
		"max":        strconv.Itoa(op.Max),
		"operands":   joinInts(op.Operands),
		"rate":       strconv.Itoa(op.Rate),
		"component":  strconv.Itoa(op.Component),
		"reads":      string(op.Reads),
		"writes":     string(op.Writes),
		"scope":      scope,
		"skip_blank": strconv.FormatBool(op.SkipBlank),
	}
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func cell(row []string, index int) string {
	if index < len(row) {
		return strings.TrimSpace(row[index])
	}
	return ""
}

// isRowEmpty checks if a row contains only empty cells.
func isRowEmpty(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func blankZero(n int) any {
	if n == 0 {
		return ""
	}
	return n
}

func atoiBlank(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}

func splitInts(s string) ([]int, error) {
	if s == "" {
		return nil, nil
	}
	var out []int
	for _, part := range strings.Split(s, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}
