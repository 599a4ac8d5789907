package rules

import (
	"fmt"
	"strconv"
	"strings"
)

// RateScale is the number of rate units in one percentage point.
const RateScale = 10000

// RatePairs are the PIS/COFINS rate tuples a Rate operation draws from,
// in ten-thousandths of a percent.
var RatePairs = [][2]int{
	{8250, 38000},  // 0,8250% / 3,8000%
	{16500, 76000}, // 1,65% / 7,60%
	{21000, 96500}, // 2,10% / 9,65%
}

// FormatRate renders a rate with a decimal comma and no trailing zeros,
// e.g. 8250 -> "0,825" and 76000 -> "7,6".
func FormatRate(r int) string {
	whole, frac := r/RateScale, r%RateScale
	if frac == 0 {
		return strconv.Itoa(whole)
	}
	digits := strings.TrimRight(fmt.Sprintf("%04d", frac), "0")
	return strconv.Itoa(whole) + "," + digits
}

// ParseRate is the inverse of FormatRate. Both "," and "." are accepted as
// the decimal separator.
func ParseRate(s string) (int, error) {
	s = strings.TrimSpace(strings.Replace(s, ",", ".", 1))
	whole, frac, _ := strings.Cut(s, ".")
	if len(frac) > 4 {
		return 0, fmt.Errorf("rate %q has more than four decimal places", s)
	}

	w, err := strconv.Atoi(whole)
	if err != nil {
		return 0, fmt.Errorf("invalid rate %q: %w", s, err)
	}
	f := 0
	if frac != "" {
		f, err = strconv.Atoi(frac + strings.Repeat("0", 4-len(frac)))
		if err != nil {
			return 0, fmt.Errorf("invalid rate %q: %w", s, err)
		}
	}
	return w*RateScale + f, nil
}

// TaxAmount returns base x rate% truncated to an integer.
func TaxAmount(base int64, rate int) int64 {
	return base * int64(rate) / (100 * RateScale)
}

// PairOf returns the index of the pair whose component matches r, or -1.
func PairOf(component, r int) int {
	for i, p := range RatePairs {
		if p[component] == r {
			return i
		}
	}
	return -1
}
