// =============================================================================
// SPED Anonymizer - Check Digit Engine
// =============================================================================
//
// This module computes and repairs the modulo-11 check digits used by the
// identifiers that appear in SPED EFD files:
//   - CPF  : 11-digit personal identifier, two trailing check digits
//   - CNPJ : 14-digit entity identifier, two trailing check digits
//   - Key  : 44-digit document key (NF-e, CT-e), one trailing check digit,
//            embedding the issuer CNPJ at offset 6
//
// INPUT POLICY:
//   Every function strips non-digit characters first. When the remaining
//   digit count does not match the expected length the stripped value is
//   returned unchanged. This is a documented no-op, not an error.
//
// CHECK DIGIT RULE:
//   digit = 11 - (weighted sum mod 11), and any result >= 10 becomes 0.
//
// =============================================================================

package checkdigit

import "strings"

// =============================================================================
// LENGTHS AND WEIGHTS
// =============================================================================

const (
	// PersonalLength is the digit count of a CPF.
	PersonalLength = 11

	// EntityLength is the digit count of a CNPJ.
	EntityLength = 14

	// DocumentKeyLength is the digit count of an electronic document key.
	DocumentKeyLength = 44

	// EntityOffset is where the issuer CNPJ starts inside a document key.
	EntityOffset = 6
)

var (
	personalWeights = []int{11, 10, 9, 8, 7, 6, 5, 4, 3, 2}
	entityWeights   = []int{6, 5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
	documentWeights = buildDocumentWeights()
)

// buildDocumentWeights returns [4,3,2] + [9,8,7,6,5,4,3,2]x5 + [0].
// The final zero keeps the check digit position out of its own sum.
func buildDocumentWeights() []int {
	weights := make([]int, 0, DocumentKeyLength)
	weights = append(weights, 4, 3, 2)
	for i := 0; i < 5; i++ {
		weights = append(weights, 9, 8, 7, 6, 5, 4, 3, 2)
	}
	return append(weights, 0)
}

// =============================================================================
// REPAIR FUNCTIONS
// =============================================================================

// RepairPersonal rewrites the two check digits of a CPF.
//
// EXAMPLE:
//
//	RepairPersonal("333.333.333-00") == "33333333333"
func RepairPersonal(value string) string {
	return repairTwoDigits(value, PersonalLength, personalWeights)
}

// RepairEntity rewrites the two check digits of a CNPJ.
//
// EXAMPLE:
//
//	RepairEntity("11144477700016") == "11144477700061"
func RepairEntity(value string) string {
	return repairTwoDigits(value, EntityLength, entityWeights)
}

// RepairDocumentKey repairs a 44-digit document key.
//
// The embedded CNPJ (positions 6 to 19) is repaired first and spliced back,
// then the final digit is recomputed over the whole key. The two repairs are
// sequential: the key digit depends on the corrected CNPJ.
func RepairDocumentKey(value string) string {
	digits := Digits(value)
	if len(digits) != DocumentKeyLength {
		return digits
	}

	entity := RepairEntity(digits[EntityOffset : EntityOffset+EntityLength])
	spliced := digits[:EntityOffset] + entity + digits[EntityOffset+EntityLength:]

	key := toInts(spliced)
	key[DocumentKeyLength-1] = weightedDigit(key, documentWeights)

	return fromInts(key)
}

// repairTwoDigits implements the two-pass scheme shared by CPF and CNPJ.
//
// For an identifier of length n with weight table w (len(w) == n-1):
//   - digit n-2 uses positions 0..n-3 with weights w[1:]
//   - digit n-1 uses positions 0..n-2 (including the digit just written)
//     with weights w[0:]
func repairTwoDigits(value string, length int, weights []int) string {
	digits := Digits(value)
	if len(digits) != length {
		return digits
	}

	n := toInts(digits)
	n[length-2] = weightedDigit(n[:length-2], weights[1:])
	n[length-1] = weightedDigit(n[:length-1], weights)

	return fromInts(n)
}

// weightedDigit computes the modulo-11 check digit of digits under weights.
// Only the first len(digits) weights are used.
func weightedDigit(digits []int, weights []int) int {
	sum := 0
	for i, d := range digits {
		sum += d * weights[i]
	}

	digit := 11 - sum%11
	if digit >= 10 {
		digit = 0
	}
	return digit
}

// =============================================================================
// VALIDATION PREDICATES
// =============================================================================

// ValidPersonal reports whether value is an 11-digit CPF whose check digits
// already hold.
func ValidPersonal(value string) bool {
	digits := Digits(value)
	return len(digits) == PersonalLength && RepairPersonal(digits) == digits
}

// ValidEntity reports whether value is a 14-digit CNPJ whose check digits
// already hold.
func ValidEntity(value string) bool {
	digits := Digits(value)
	return len(digits) == EntityLength && RepairEntity(digits) == digits
}

// ValidDocumentKey reports whether value is a 44-digit key whose embedded
// CNPJ and final digit already hold.
func ValidDocumentKey(value string) bool {
	digits := Digits(value)
	return len(digits) == DocumentKeyLength && RepairDocumentKey(digits) == digits
}

// IsDocumentKeyShape reports whether a raw field is exactly 44 digits,
// ignoring surrounding whitespace.
func IsDocumentKeyShape(field string) bool {
	field = strings.TrimSpace(field)
	if len(field) != DocumentKeyLength {
		return false
	}
	for i := 0; i < len(field); i++ {
		if field[i] < '0' || field[i] > '9' {
			return false
		}
	}
	return true
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// Digits removes every non-digit character from value.
func Digits(value string) string {
	var b strings.Builder
	b.Grow(len(value))
	for i := 0; i < len(value); i++ {
		if value[i] >= '0' && value[i] <= '9' {
			b.WriteByte(value[i])
		}
	}
	return b.String()
}

func toInts(digits string) []int {
	n := make([]int, len(digits))
	for i := 0; i < len(digits); i++ {
		n[i] = int(digits[i] - '0')
	}
	return n
}

func fromInts(n []int) string {
	b := make([]byte, len(n))
	for i, d := range n {
		b[i] = byte('0' + d)
	}
	return string(b)
}
