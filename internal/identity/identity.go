// =============================================================================
// SPED Anonymizer - Entity Identifier Substitution Policy
// =============================================================================
//
// A file is anonymized around one fictitious CNPJ (the placeholder) that
// stands in for the declaring company. Other records may name the same
// company (another branch) or a different one (a participant). This module
// decides which:
//   - same legal entity  -> reuse the placeholder
//   - different entity   -> synthesize a fresh, check-digit valid CNPJ
//
// "Same legal entity" means the first 8 digits (the CNPJ root) match.
//
// =============================================================================

package identity

import (
	"github.com/ginjaninja78/sped-anonymizer/internal/checkdigit"
	"github.com/ginjaninja78/sped-anonymizer/internal/random"
)

// RootLength is the number of leading CNPJ digits that identify the legal
// entity independently of the branch suffix.
const RootLength = 8

// maxRedraws bounds the retries when a fresh value collides with an input.
const maxRedraws = 16

// SameEntityRoot reports whether a and b are both 14-digit CNPJs (after
// stripping punctuation) that belong to the same legal entity.
func SameEntityRoot(a, b string) bool {
	a, b = checkdigit.Digits(a), checkdigit.Digits(b)
	if len(a) != checkdigit.EntityLength || len(b) != checkdigit.EntityLength {
		return false
	}
	return a[:RootLength] == b[:RootLength]
}

// Decide returns the identifier that replaces current.
//
// PARAMETERS:
//   - src: randomness for a fresh identifier.
//   - placeholder: the pass-wide fictitious CNPJ.
//   - original: the real CNPJ the placeholder replaced.
//   - current: the real CNPJ found in the record being rewritten.
//
// RETURNS:
//   - placeholder when either input is not a 14-digit CNPJ (fail-open) or
//     when both share the same root.
//   - otherwise a fresh repaired CNPJ distinct from placeholder and inputs.
func Decide(src random.Source, placeholder, original, current string) string {
	o, c := checkdigit.Digits(original), checkdigit.Digits(current)
	if len(o) != checkdigit.EntityLength || len(c) != checkdigit.EntityLength {
		return placeholder
	}
	if SameEntityRoot(o, c) {
		return placeholder
	}
	return Fresh(src, placeholder, o, c)
}

// Fresh draws a repaired 14-digit CNPJ that differs from every value in avoid.
func Fresh(src random.Source, avoid ...string) string {
	var candidate string
	for i := 0; i < maxRedraws; i++ {
		candidate = checkdigit.RepairEntity(random.Digits(src, checkdigit.EntityLength))
		if !contains(avoid, candidate) {
			return candidate
		}
	}
	return candidate
}

func contains(values []string, v string) bool {
	for _, s := range values {
		if checkdigit.Digits(s) == v {
			return true
		}
	}
	return false
}
