// =============================================================================
// SPED Anonymizer - Correlation State
// =============================================================================
//
// This module holds the values that must stay consistent across records of
// one file pass.
//
// CONCURRENCY:
//   A State is created per pass and threaded explicitly through the engine.
//   It is not safe for concurrent use: records of one pass are processed
//   strictly in input order, because a slot must be written before a later
//   record type echoes it.
//
// =============================================================================

package correlation

import "sort"

// Slot names a pass-scoped value echoed from one record type to another.
type Slot string

// Pass-scoped slots shared by D101 (writer) and D105 (reader).
const (
	ItemValue        Slot = "item_value"
	CreditNature     Slot = "credit_nature"
	ContributionBase Slot = "contribution_base"
	RatePair         Slot = "rate_pair"
)

// State is the mutable per-pass correlation state.
type State struct {
	placeholder string
	original    string
	slots       map[Slot]string
}

// New returns an empty State anchored on the pass-wide placeholder CNPJ.
func New(placeholder string) *State {
	return &State{
		placeholder: placeholder,
		slots:       make(map[Slot]string),
	}
}

// Placeholder is the fictitious CNPJ standing in for the declaring entity.
func (s *State) Placeholder() string { return s.placeholder }

// OriginalEntity is the real CNPJ the placeholder replaced, or "" until the
// opening record has been seen.
func (s *State) OriginalEntity() string { return s.original }

// SetOriginalEntity records the real CNPJ replaced by the placeholder.
func (s *State) SetOriginalEntity(v string) { s.original = v }

// Get returns the value stored under slot.
func (s *State) Get(slot Slot) (string, bool) {
	v, ok := s.slots[slot]
	return v, ok
}

// Set stores v under slot, replacing any previous value.
func (s *State) Set(slot Slot, v string) { s.slots[slot] = v }

// Has reports whether slot holds a value.
func (s *State) Has(slot Slot) bool {
	_, ok := s.slots[slot]
	return ok
}

// Reset clears the original entity and every slot; the placeholder stays.
func (s *State) Reset() {
	s.original = ""
	clear(s.slots)
}

// Slots lists the slots currently set, sorted by name.
func (s *State) Slots() []Slot {
	out := make([]Slot, 0, len(s.slots))
	for k := range s.slots {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
