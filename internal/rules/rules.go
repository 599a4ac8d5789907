// =============================================================================
// SPED Anonymizer - Record Field Rules
// =============================================================================
//
// This module describes, as data, which fields of each SPED record type are
// replaced and how. The engine looks a record's code up in a Table and runs
// the rule's operations in their declared order.
//
// OPERATION KINDS:
//   - Pattern     : human-readable text embedding a random number
//   - Number      : random integer with a fixed digit width
//   - Range       : random integer in [Min, Max], zero padded to Width
//   - Entity      : CNPJ substitution through the identity policy
//   - Placeholder : emit the pass placeholder CNPJ, remember the original
//   - Personal    : random CPF with repaired check digits
//   - Sum         : arithmetic sum of fields written by earlier operations
//   - Tax         : base x rate / 100, truncated
//   - Rate        : one element of a tax-rate pair
//
// CORRELATION:
//   An operation may write its value into a slot and may read a slot instead
//   of drawing. Record-scoped slots live for one record (so PIS and COFINS
//   share a base), pass-scoped slots live for the whole file (so D105 echoes
//   D101). Reads and writes are declared on each operation so Validate can
//   check the ordering statically.
//
// ORDERING:
//   The declared order is part of the contract. Sum and Tax read fields that
//   earlier operations wrote; reordering breaks the totals.
//
// =============================================================================

package rules

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/ginjaninja78/sped-anonymizer/internal/correlation"
)

// =============================================================================
// OPERATION TYPES
// =============================================================================

// Kind is the generator behind an operation.
type Kind int

const (
	Pattern Kind = iota + 1
	Number
	Range
	Entity
	Placeholder
	Personal
	Sum
	Tax
	Rate
)

var kindNames = map[Kind]string{
	Pattern:     "pattern",
	Number:      "number",
	Range:       "range",
	Entity:      "entity",
	Placeholder: "placeholder",
	Personal:    "personal",
	Sum:         "sum",
	Tax:         "tax",
	Rate:        "rate",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown operation kind: %q", s)
}

// Scope is the lifetime of a slot an operation reads or writes.
type Scope int

const (
	// ScopeRecord slots are cleared before every record.
	ScopeRecord Scope = iota
	// ScopePass slots live in the correlation state for the whole file.
	ScopePass
)

func (s Scope) String() string {
	if s == ScopePass {
		return "pass"
	}
	return "record"
}

// Op is one field replacement.
type Op struct {
	// Field is the index of the target field; fields[1] is the record code.
	Field int

	// Name is the SPED layout name of the field (e.g. "VL_ITEM").
	Name string

	Kind Kind

	// Width is the digit width of the random number (Pattern, Number, Range).
	Width int

	// Format is the Pattern text; "%s" receives the random digits.
	Format string

	// Min and Max bound a Range draw.
	Min, Max int

	// Operands are the fields a Sum adds, or [base] / [base, rate] for Tax.
	Operands []int

	// Rate is the fixed Tax rate in ten-thousandths of a percent
	// (16500 = 1.65%). Ignored when the Tax has a rate operand.
	Rate int

	// Component selects the element of a rate pair (0 = PIS, 1 = COFINS).
	Component int

	// Reads, when set, echoes the slot instead of drawing a new value.
	Reads correlation.Slot

	// Writes, when set, stores the produced value under the slot.
	Writes correlation.Slot

	// Scope applies to both Reads and Writes.
	Scope Scope

	// SkipBlank leaves an empty original field empty.
	SkipBlank bool
}

// Rule is the ordered operation list for one record type.
type Rule struct {
	Code        string
	Description string
	Ops         []Op
}

// Table maps a record code to its rule.
type Table map[string]Rule

// =============================================================================
// TABLE METHODS
// =============================================================================

// Lookup returns the rule for code.
func (t Table) Lookup(code string) (Rule, bool) {
	r, ok := t[code]
	return r, ok
}

// Codes returns the record codes in sorted order.
func (t Table) Codes() []string {
	codes := make([]string, 0, len(t))
	for code := range t {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// PassWriters returns every pass-scoped writer, keyed by slot, in code order.
func (t Table) PassWriters() map[correlation.Slot][]Op {
	writers := make(map[correlation.Slot][]Op)
	for _, code := range t.Codes() {
		for _, op := range t[code].Ops {
			if op.Writes != "" && op.Scope == ScopePass {
				writers[op.Writes] = append(writers[op.Writes], op)
			}
		}
	}
	return writers
}

// FieldsOfKind returns, per record code, the field indexes handled by an
// operation of kind k.
func (t Table) FieldsOfKind(k Kind) map[string][]int {
	out := make(map[string][]int)
	for code, rule := range t {
		for _, op := range rule.Ops {
			if op.Kind == k {
				out[code] = append(out[code], op.Field)
			}
		}
	}
	return out
}

// Validate checks that the table is internally consistent:
//   - each operation is well formed for its kind
//   - no two operations of a rule target the same field
//   - Sum and Tax operands are fields written by an earlier operation
//   - record-scoped reads follow a write of the same slot in the same rule
//   - pass-scoped reads have at least one writer of the same kind in the table
//
// All problems are returned together.
func (t Table) Validate() error {
	var errs []error
	passWriters := t.PassWriters()

	for _, code := range t.Codes() {
		rule := t[code]
		if rule.Code != code {
			errs = append(errs, fmt.Errorf("%s: rule is registered under code %q", rule.Code, code))
		}

		written := make(map[int]bool)
		recordSlots := make(map[correlation.Slot]Kind)

		for i, op := range rule.Ops {
			where := fmt.Sprintf("%s op %d (field %d %s)", code, i, op.Field, op.Name)

			if err := op.check(); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", where, err))
			}
			if written[op.Field] {
				errs = append(errs, fmt.Errorf("%s: field already replaced by an earlier operation", where))
			}

			for _, operand := range op.Operands {
				if !written[operand] {
					errs = append(errs, fmt.Errorf("%s: operand field %d is not written by an earlier operation", where, operand))
				}
			}

			if op.Reads != "" {
				switch op.Scope {
				case ScopeRecord:
					kind, ok := recordSlots[op.Reads]
					if !ok {
						errs = append(errs, fmt.Errorf("%s: reads record slot %q before any write", where, op.Reads))
					} else if kind != op.Kind {
						errs = append(errs, fmt.Errorf("%s: reads record slot %q written by a %s operation", where, op.Reads, kind))
					}
				case ScopePass:
					if !hasWriterOfKind(passWriters[op.Reads], op.Kind) {
						errs = append(errs, fmt.Errorf("%s: reads pass slot %q that no %s operation writes", where, op.Reads, op.Kind))
					}
				}
			}

			if op.Writes != "" && op.Scope == ScopeRecord {
				recordSlots[op.Writes] = op.Kind
			}
			written[op.Field] = true
		}
	}

	return errors.Join(errs...)
}

func hasWriterOfKind(ops []Op, k Kind) bool {
	for _, op := range ops {
		if op.Kind == k {
			return true
		}
	}
	return false
}

// check validates the parameters of a single operation.
func (op Op) check() error {
	if op.Field < 2 {
		return fmt.Errorf("field index must be at least 2")
	}
	if op.Reads != "" && op.Writes != "" {
		return fmt.Errorf("an operation cannot both read and write a slot")
	}

	switch op.Kind {
	case Pattern:
		if strings.Count(op.Format, "%s") != 1 {
			return fmt.Errorf("pattern %q must contain exactly one %%s", op.Format)
		}
		if op.Width <= 0 {
			return fmt.Errorf("pattern width must be positive")
		}
	case Number:
		if op.Width <= 0 || op.Width > 18 {
			return fmt.Errorf("number width %d out of range 1..18", op.Width)
		}
	case Range:
		if op.Min > op.Max {
			return fmt.Errorf("range min %d exceeds max %d", op.Min, op.Max)
		}
	case Sum:
		if len(op.Operands) == 0 {
			return fmt.Errorf("sum needs at least one operand")
		}
	case Tax:
		switch len(op.Operands) {
		case 1:
			if op.Rate <= 0 {
				return fmt.Errorf("tax with a single operand needs a fixed rate")
			}
		case 2:
		default:
			return fmt.Errorf("tax needs [base] or [base, rate] operands")
		}
	case Rate:
		if op.Component != 0 && op.Component != 1 {
			return fmt.Errorf("rate component must be 0 or 1")
		}
	case Entity, Placeholder, Personal:
	default:
		return fmt.Errorf("unknown operation kind %d", int(op.Kind))
	}

	if (op.Kind == Sum || op.Kind == Tax) && (op.Reads != "" || op.Writes != "") {
		return fmt.Errorf("%s operations cannot use slots", op.Kind)
	}
	return nil
}

// =============================================================================
// OPERATION BUILDERS
// =============================================================================
// These keep the table in table.go readable as data.

func pattern(field int, name, format string, width int) Op {
	return Op{Field: field, Name: name, Kind: Pattern, Format: format, Width: width}
}

func number(field int, name string, width int) Op {
	return Op{Field: field, Name: name, Kind: Number, Width: width}
}

func between(field int, name string, lo, hi, width int) Op {
	return Op{Field: field, Name: name, Kind: Range, Min: lo, Max: hi, Width: width}
}

func entity(field int, name string) Op {
	return Op{Field: field, Name: name, Kind: Entity}
}

func placeholder(field int, name string) Op {
	return Op{Field: field, Name: name, Kind: Placeholder}
}

func personal(field int, name string) Op {
	return Op{Field: field, Name: name, Kind: Personal}
}

func sum(field int, name string, operands ...int) Op {
	return Op{Field: field, Name: name, Kind: Sum, Operands: operands}
}

func taxFixed(field int, name string, base, rate int) Op {
	return Op{Field: field, Name: name, Kind: Tax, Operands: []int{base}, Rate: rate}
}

func tax(field int, name string, base, rate int) Op {
	return Op{Field: field, Name: name, Kind: Tax, Operands: []int{base, rate}}
}

func rate(field int, name string, component int) Op {
	return Op{Field: field, Name: name, Kind: Rate, Component: component}
}

func (op Op) writes(slot correlation.Slot, scope Scope) Op {
	op.Writes, op.Scope = slot, scope
	return op
}

func (op Op) reads(slot correlation.Slot, scope Scope) Op {
	op.Reads, op.Scope = slot, scope
	return op
}

func (op Op) skipBlank() Op {
	op.SkipBlank = true
	return op
}
