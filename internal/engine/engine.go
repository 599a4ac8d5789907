// =============================================================================
// SPED Anonymizer - Transform Engine
// =============================================================================
//
// This module rewrites one record at a time. For each record it:
//   1. Passes records with fewer than 3 fields through unchanged
//   2. Replaces every 44-digit field with a fresh, repaired document key
//   3. Looks the record code up in the rule table
//   4. Runs the rule's operations in declared order against the record and
//      the pass-wide correlation state
//
// CONCURRENCY:
//   An Engine is bound to a single file pass and is not safe for concurrent
//   use. Records must be applied in input order: D105 echoes what the most
//   recent D101 wrote, and CNPJ substitution depends on the 0000 record
//   having been seen first.
//
// FAILURE POLICY:
//   The engine never returns an error. Anything it cannot rewrite (missing
//   field, non-numeric operand, wrong identifier shape) is left as it was.
//
// =============================================================================

package engine

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/ginjaninja78/sped-anonymizer/internal/checkdigit"
	"github.com/ginjaninja78/sped-anonymizer/internal/correlation"
	"github.com/ginjaninja78/sped-anonymizer/internal/identity"
	"github.com/ginjaninja78/sped-anonymizer/internal/random"
	"github.com/ginjaninja78/sped-anonymizer/internal/rules"
)

// Delimiter separates the fields of a SPED record.
const Delimiter = "|"

// MinFields is the smallest field count of a data record.
const MinFields = 3

// maxKeyRedraws bounds the retries when a fresh key equals the original.
const maxKeyRedraws = 16

// =============================================================================
// ENGINE
// =============================================================================

// Engine applies a rule table to the records of one file pass.
type Engine struct {
	table rules.Table
	src   random.Source
	state *correlation.State
	stats Stats
}

// Stats counts what the engine did during the pass.
type Stats struct {
	// Records is the number of records seen, malformed ones included.
	Records int

	// Malformed is the number of records with fewer than MinFields fields.
	Malformed int

	// Unknown is the number of records whose code has no rule.
	Unknown int

	// Rewritten is the number of records in which a rule wrote at least one
	// field. A known record too short for any of its operations is not
	// counted.
	Rewritten int

	// DocumentKeys is the number of 44-digit fields replaced.
	DocumentKeys int

	// ByType counts rewritten records per record code.
	ByType map[string]int
}

// New creates an Engine for one pass.
//
// Pass-scoped slots not yet present in state are pre-drawn by their writers
// so a reader that precedes every writer still echoes a well-formed value.
func New(table rules.Table, src random.Source, state *correlation.State) *Engine {
	e := &Engine{
		table: table,
		src:   src,
		state: state,
		stats: Stats{ByType: make(map[string]int)},
	}
	e.seed()
	return e
}

// State returns the correlation state the engine mutates.
func (e *Engine) State() *correlation.State { return e.state }

// Stats returns a copy of the pass counters.
func (e *Engine) Stats() Stats {
	s := e.stats
	s.ByType = make(map[string]int, len(e.stats.ByType))
	for k, v := range e.stats.ByType {
		s.ByType[k] = v
	}
	return s
}

// Reset starts a new pass on the same engine: state and counters are
// cleared and pass slots drawn again.
func (e *Engine) Reset() {
	e.state.Reset()
	e.stats = Stats{ByType: make(map[string]int)}
	e.seed()
}

// seed draws an initial value for every pass slot, in slot name order so a
// seeded source stays deterministic.
func (e *Engine) seed() {
	writers := e.table.PassWriters()
	slots := make([]correlation.Slot, 0, len(writers))
	for slot := range writers {
		slots = append(slots, slot)
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i] < slots[j] })

	for _, slot := range slots {
		if e.state.Has(slot) {
			continue
		}
		for _, op := range writers[slot] {
			if op.Kind == rules.Entity || op.Kind == rules.Placeholder {
				continue
			}
			e.state.Set(slot, e.draw(op, nil))
			break
		}
	}
}

// =============================================================================
// RECORD TRANSFORMATION
// =============================================================================

// ApplyLine splits a raw line on '|', applies the record rules and rejoins.
func (e *Engine) ApplyLine(line string) string {
	return strings.Join(e.Apply(strings.Split(line, Delimiter)), Delimiter)
}

// Apply rewrites one record and returns the new field slice. The input slice
// is not modified.
//
// PARAMETERS:
//   - fields: the record split on '|'; fields[1] is the record code.
//
// RETURNS:
//   - the rewritten fields, or the input itself for malformed records.
func (e *Engine) Apply(fields []string) []string {
	e.stats.Records++
	if len(fields) < MinFields {
		e.stats.Malformed++
		return fields
	}

	out := make([]string, len(fields))
	copy(out, fields)

	// Document keys first, independent of the record type.
	for i, field := range out {
		if checkdigit.IsDocumentKeyShape(field) {
			out[i] = e.documentKey(field)
			e.stats.DocumentKeys++
		}
	}

	rule, ok := e.table.Lookup(fields[1])
	if !ok {
		e.stats.Unknown++
		return out
	}

	scratch := make(map[correlation.Slot]string)
	wrote := false
	for _, op := range rule.Ops {
		if op.Field >= len(out) {
			continue
		}
		if op.SkipBlank && strings.TrimSpace(fields[op.Field]) == "" {
			continue
		}
		if value, ok := e.run(op, fields, out, scratch); ok {
			out[op.Field] = value
			wrote = true
		}
	}

	if wrote {
		e.stats.Rewritten++
		e.stats.ByType[rule.Code]++
	}
	return out
}

// run executes one operation. in is the original record, out the record
// rewritten so far.
func (e *Engine) run(op rules.Op, in, out []string, scratch map[correlation.Slot]string) (string, bool) {
	switch op.Kind {
	case rules.Sum:
		return sumFields(op, out)
	case rules.Tax:
		return taxField(op, out)
	}

	raw, ok := e.read(op, scratch)
	if !ok {
		raw = e.draw(op, in)
	}
	if op.Writes != "" {
		e.write(op, raw, scratch)
	}
	return render(op, raw), true
}

func (e *Engine) read(op rules.Op, scratch map[correlation.Slot]string) (string, bool) {
	if op.Reads == "" {
		return "", false
	}
	if op.Scope == rules.ScopePass {
		return e.state.Get(op.Reads)
	}
	v, ok := scratch[op.Reads]
	return v, ok
}

func (e *Engine) write(op rules.Op, raw string, scratch map[correlation.Slot]string) {
	if op.Scope == rules.ScopePass {
		e.state.Set(op.Writes, raw)
		return
	}
	scratch[op.Writes] = raw
}

// =============================================================================
// GENERATORS
// =============================================================================

// draw produces the raw value of an operation. For Rate the raw value is the
// index of the drawn pair; render turns it into the rate text.
func (e *Engine) draw(op rules.Op, in []string) string {
	switch op.Kind {
	case rules.Pattern:
		return fmt.Sprintf(op.Format, random.Digits(e.src, op.Width))

	case rules.Number:
		return random.Digits(e.src, op.Width)

	case rules.Range:
		return fmt.Sprintf("%0*d", op.Width, random.Between(e.src, op.Min, op.Max))

	case rules.Personal:
		return checkdigit.RepairPersonal(random.Digits(e.src, checkdigit.PersonalLength))

	case rules.Rate:
		return strconv.Itoa(random.Choice(e.src, len(rules.RatePairs)))

	case rules.Placeholder:
		if op.Field < len(in) {
			e.state.SetOriginalEntity(in[op.Field])
		}
		return e.state.Placeholder()

	case rules.Entity:
		current := ""
		if op.Field < len(in) {
			current = in[op.Field]
		}
		return identity.Decide(e.src, e.state.Placeholder(), e.state.OriginalEntity(), current)
	}
	return ""
}

// render turns a raw slot value into field text.
func render(op rules.Op, raw string) string {
	if op.Kind != rules.Rate {
		return raw
	}
	idx, err := strconv.Atoi(raw)
	if err != nil || idx < 0 || idx >= len(rules.RatePairs) {
		idx = 0
	}
	return rules.FormatRate(rules.RatePairs[idx][op.Component])
}

// documentKey returns a fresh repaired key that differs from the original.
func (e *Engine) documentKey(original string) string {
	original = strings.TrimSpace(original)
	var key string
	for i := 0; i < maxKeyRedraws; i++ {
		key = checkdigit.RepairDocumentKey(random.Digits(e.src, checkdigit.DocumentKeyLength))
		if key != original {
			return key
		}
	}
	return key
}

// =============================================================================
// AGGREGATES
// =============================================================================

func sumFields(op rules.Op, out []string) (string, bool) {
	var total int64
	for _, field := range op.Operands {
		n, ok := parseInt(out, field)
		if !ok {
			return "", false
		}
		total += n
	}
	return strconv.FormatInt(total, 10), true
}

func taxField(op rules.Op, out []string) (string, bool) {
	base, ok := parseInt(out, op.Operands[0])
	if !ok {
		return "", false
	}

	rate := op.Rate
	if len(op.Operands) > 1 {
		if op.Operands[1] >= len(out) {
			return "", false
		}
		r, err := rules.ParseRate(out[op.Operands[1]])
		if err != nil {
			return "", false
		}
		rate = r
	}
	return strconv.FormatInt(rules.TaxAmount(base, rate), 10), true
}

func parseInt(out []string, field int) (int64, bool) {
	if field >= len(out) {
		return 0, false
	}
	n, err := strconv.ParseInt(strings.TrimSpace(out[field]), 10, 64)
	return n, err == nil
}
