// =============================================================================
// SPED Anonymizer - Output Verifier
// =============================================================================
//
// This module checks that an anonymized SPED file is structurally sound, so
// it can still be imported by tools that validate check digits and totals.
// The checks are driven by the same rule table the engine applies:
//   - Document keys: every 44-digit field is a valid key
//   - Identifiers: CNPJ and CPF fields carry valid check digits
//   - Totals: Sum and Tax fields equal what their operands produce
//   - Rates: every rate field belongs to a known PIS/COFINS pair
//   - Echoes: a field that reads a slot equals what the writer stored
//     (D105 against the preceding D101, COFINS against PIS in one record)
//
// VALIDATION STRATEGY:
//   Records are checked one at a time, in order, with pass-scoped slot
//   values carried between records exactly as the engine carries them.
//
// ERROR HANDLING:
//   - Findings are collected, not returned immediately
//   - Each finding carries line, record code, field and value
//   - Severity "error" marks a broken invariant; "warning" marks a field the
//     verifier could not interpret (e.g. a non-numeric operand)
//
// =============================================================================

package validation

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/ginjaninja78/sped-anonymizer/internal/checkdigit"
	"github.com/ginjaninja78/sped-anonymizer/internal/correlation"
	"github.com/ginjaninja78/sped-anonymizer/internal/rules"
	"github.com/ginjaninja78/sped-anonymizer/internal/spedfile"
)

// Severity levels.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// Check names, used as Finding.Rule.
const (
	CheckDocumentKey = "document_key"
	CheckEntity      = "entity_id"
	CheckPersonal    = "personal_id"
	CheckSum         = "sum"
	CheckTax         = "tax"
	CheckRate        = "rate"
	CheckEcho        = "echo"
)

// =============================================================================
// VALIDATION FINDING TYPES
// =============================================================================

// Finding is a single verification problem.
type Finding struct {
	Severity string

	// File is the verified file name, if known.
	File string

	// Line is the 1-based line number.
	Line int

	// Record is the record code (fields[1]).
	Record string

	// Field is the field index; FieldName its layout name when known.
	Field     int
	FieldName string

	Value   string
	Rule    string
	Message string
}

// Error implements the error interface.
func (f *Finding) Error() string {
	name := f.FieldName
	if name == "" {
		name = strconv.Itoa(f.Field)
	}
	return fmt.Sprintf("[%s] line %d, %s field %s: %s (value: '%s')",
		strings.ToUpper(f.Severity), f.Line, f.Record, name, f.Message, f.Value)
}

// =============================================================================
// VALIDATION RESULT
// =============================================================================

// Result contains the results of verification.
type Result struct {
	// IsValid is true if there are no error-severity findings.
	IsValid bool

	Findings []*Finding

	ErrorCount   int
	WarningCount int

	// LinesChecked and FieldsChecked count the verified input.
	LinesChecked  int
	FieldsChecked int
}

func (r *Result) add(f *Finding) {
	r.Findings = append(r.Findings, f)
	if f.Severity == SeverityError {
		r.ErrorCount++
	} else {
		r.WarningCount++
	}
}

// =============================================================================
// VERIFIER
// =============================================================================

// Options tune the verifier.
type Options struct {
	// MaxFindings stops collecting after this many findings. 0 means no limit.
	MaxFindings int

	// TreatWarningsAsErrors makes warnings count against IsValid.
	TreatWarningsAsErrors bool
}

// Verifier checks anonymized records against a rule table.
//
// A Verifier carries pass state between records and is therefore bound to
// one file at a time; call Reset before reusing it.
type Verifier struct {
	table   rules.Table
	options Options
	file    string
	slots   map[correlation.Slot]string
	result  Result
}

// NewVerifier creates a Verifier for table with default options.
func NewVerifier(table rules.Table) *Verifier {
	return NewVerifierWithOptions(table, Options{})
}

// NewVerifierWithOptions creates a Verifier with custom options.
func NewVerifierWithOptions(table rules.Table, options Options) *Verifier {
	v := &Verifier{table: table, options: options}
	v.Reset("")
	return v
}

// Reset clears pass state and findings and names the next file.
func (v *Verifier) Reset(file string) {
	v.file = file
	v.slots = make(map[correlation.Slot]string)
	v.result = Result{}
}

// Result returns the findings so far.
func (v *Verifier) Result() Result {
	r := v.result
	r.IsValid = r.ErrorCount == 0 && (!v.options.TreatWarningsAsErrors || r.WarningCount == 0)
	return r
}

func (v *Verifier) full() bool {
	return v.options.MaxFindings > 0 && len(v.result.Findings) >= v.options.MaxFindings
}

// =============================================================================
// MAIN VERIFICATION FUNCTIONS
// =============================================================================

// VerifyFile opens path and verifies every line.
//
// PARAMETERS:
//   - path: the anonymized file.
//   - encoding: "auto" or an IANA encoding name.
//
// RETURNS:
//   - The verification result.
//   - An error only when the file cannot be read.
func (v *Verifier) VerifyFile(path, encoding string) (Result, error) {
	file, err := os.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	return v.VerifyReader(file, path, encoding)
}

// VerifyReader verifies every line read from r. name labels findings.
func (v *Verifier) VerifyReader(r io.Reader, name, encoding string) (Result, error) {
	reader, err := spedfile.NewReader(r, encoding)
	if err != nil {
		return Result{}, err
	}

	v.Reset(name)
	for reader.Next() && !v.full() {
		v.CheckRecord(reader.LineNumber(), reader.Fields())
	}
	if err := reader.Err(); err != nil {
		return v.Result(), fmt.Errorf("failed to read %s: %w", name, err)
	}
	return v.Result(), nil
}

// CheckRecord verifies one record. Records must be passed in file order.
func (v *Verifier) CheckRecord(line int, fields []string) {
	v.result.LinesChecked++
	if len(fields) < 3 {
		return
	}
	code := fields[1]

	for i, field := range fields {
		if !checkdigit.IsDocumentKeyShape(field) {
			continue
		}
		v.result.FieldsChecked++
		if !checkdigit.ValidDocumentKey(field) {
			v.report(SeverityError, line, code, i, "", field, CheckDocumentKey,
				"document key check digits do not hold")
		}
	}

	rule, ok := v.table.Lookup(code)
	if !ok {
		return
	}

	scratch := make(map[correlation.Slot]string)
	for _, op := range rule.Ops {
		if op.Field >= len(fields) {
			continue
		}
		value := fields[op.Field]
		if op.SkipBlank && strings.TrimSpace(value) == "" {
			continue
		}
		v.result.FieldsChecked++
		v.checkOp(line, code, op, fields, scratch)
	}
}

// =============================================================================
// FIELD-LEVEL VERIFICATION
// =============================================================================

func (v *Verifier) checkOp(line int, code string, op rules.Op, fields []string, scratch map[correlation.Slot]string) {
	value := fields[op.Field]
	report := func(severity, check, format string, args ...any) {
		v.report(severity, line, code, op.Field, op.Name, value, check, fmt.Sprintf(format, args...))
	}

	switch op.Kind {
	case rules.Entity, rules.Placeholder:
		if !checkdigit.ValidEntity(value) {
			report(SeverityError, CheckEntity, "not a valid CNPJ")
		}

	case rules.Personal:
		if !checkdigit.ValidPersonal(value) {
			report(SeverityError, CheckPersonal, "not a valid CPF")
		}

	case rules.Sum:
		want, ok := sumOf(fields, op.Operands)
		if !ok {
			report(SeverityWarning, CheckSum, "operands are not all integers")
		} else if strings.TrimSpace(value) != strconv.FormatInt(want, 10) {
			report(SeverityError, CheckSum, "total should be %d", want)
		}

	case rules.Tax:
		want, ok := taxOf(fields, op)
		if !ok {
			report(SeverityWarning, CheckTax, "base or rate is not numeric")
		} else if strings.TrimSpace(value) != strconv.FormatInt(want, 10) {
			report(SeverityError, CheckTax, "tax should be %d", want)
		}

	case rules.Rate:
		r, err := rules.ParseRate(value)
		if err != nil || rules.PairOf(op.Component, r) < 0 {
			report(SeverityError, CheckRate, "rate is not part of a known PIS/COFINS pair")
			return
		}
	}

	if op.Reads == "" && op.Writes == "" {
		return
	}

	raw := slotValue(op, value)
	if op.Writes != "" {
		if op.Scope == rules.ScopePass {
			v.slots[op.Writes] = raw
		} else {
			scratch[op.Writes] = raw
		}
		return
	}

	var (
		want string
		seen bool
	)
	if op.Scope == rules.ScopePass {
		want, seen = v.slots[op.Reads]
	} else {
		want, seen = scratch[op.Reads]
	}
	if seen && raw != want {
		report(SeverityError, CheckEcho, "does not echo slot %q", op.Reads)
	}
}

func (v *Verifier) report(severity string, line int, code string, field int, name, value, check, message string) {
	if v.full() {
		return
	}
	v.result.add(&Finding{
		Severity:  severity,
		File:      v.file,
		Line:      line,
		Record:    code,
		Field:     field,
		FieldName: name,
		Value:     value,
		Rule:      check,
		Message:   message,
	})
}

// slotValue maps field text to the value the engine stores in a slot: the
// pair index for rates, the trimmed text otherwise.
func slotValue(op rules.Op, value string) string {
	if op.Kind == rules.Rate {
		if r, err := rules.ParseRate(value); err == nil {
			return strconv.Itoa(rules.PairOf(op.Component, r))
		}
	}
	return strings.TrimSpace(value)
}

func sumOf(fields []string, operands []int) (int64, bool) {
	var total int64
	for _, i := range operands {
		n, ok := intField(fields, i)
		if !ok {
			return 0, false
		}
		total += n
	}
	return total, true
}

func taxOf(fields []string, op rules.Op) (int64, bool) {
	base, ok := intField(fields, op.Operands[0])
	if !ok {
		return 0, false
	}
	rate := op.Rate
	if len(op.Operands) > 1 {
		if op.Operands[1] >= len(fields) {
			return 0, false
		}
		r, err := rules.ParseRate(fields[op.Operands[1]])
		if err != nil {
			return 0, false
		}
		rate = r
	}
	return rules.TaxAmount(base, rate), true
}

func intField(fields []string, i int) (int64, bool) {
	if i >= len(fields) {
		return 0, false
	}
	n, err := strconv.ParseInt(strings.TrimSpace(fields[i]), 10, 64)
	return n, err == nil
}
