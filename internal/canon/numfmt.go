package canon

import (
	"math"
	"strconv"
	"strings"
)

// formatFloat renders f the way ECMA-262's Number::toString does, which
// RFC 8785 §3.2.2.3 mandates for canonical JSON: the shortest decimal
// digit string that round-trips to f, placed in plain or exponential
// form depending on the magnitude of its decimal exponent. Go's %e/%g
// verbs produce a different digit count and a different exponent
// threshold, so the translation below is done by hand from the
// shortest-digits form strconv already knows how to produce.
//
// Provara additionally requires every Float64-kind value rendered in
// plain decimal form to carry at least one digit of fraction, so an
// integral float like 7.0 prints as "7.0" and is distinguishable from
// the Int64 literal "7". That forced-fraction step happens in the caller
// (encodeValue, via forceFraction), not here: formatFloat alone
// reproduces bare ES6 toString.
func formatFloat(f float64) string {
	if f == 0 {
		if math.Signbit(f) {
			return "-0"
		}
		return "0"
	}

	neg := f < 0
	abs := math.Abs(f)

	digits, exp10 := shortestDigits(abs)
	k := len(digits)
	n := exp10 + 1

	var s string
	switch {
	case k <= n && n <= 21:
		s = digits + strings.Repeat("0", n-k)
	case 0 < n && n <= 21:
		s = digits[:n] + "." + digits[n:]
	case -6 < n && n <= 0:
		s = "0." + strings.Repeat("0", -n) + digits
	case k == 1:
		s = digits + "e" + expSign(n-1)
	default:
		s = digits[:1] + "." + digits[1:] + "e" + expSign(n-1)
	}

	if neg {
		return "-" + s
	}
	return s
}

// shortestDigits returns the shortest decimal digit string (no leading
// or trailing zeros, no sign, no point) that round-trips to abs, and the
// base-10 exponent of its leading digit, i.e. abs = 0.digits * 10^(exp+1)
// in the convention used by the n/k variables of ECMA-262 Number::toString.
func shortestDigits(abs float64) (digits string, exp10 int) {
	buf := strconv.AppendFloat(nil, abs, 'e', -1, 64)
	s := string(buf)

	eIdx := strings.IndexByte(s, 'e')
	mantissa := s[:eIdx]
	exp, err := strconv.Atoi(s[eIdx+1:])
	if err != nil {
		exp = 0
	}

	mantissa = strings.Replace(mantissa, ".", "", 1)
	mantissa = strings.TrimRight(mantissa, "0")
	if mantissa == "" {
		mantissa = "0"
	}
	return mantissa, exp
}

// expSign renders an exponent the way RFC 8785 requires: no "+" before a
// non-negative exponent, a bare "-" before a negative one. This is what
// the spec's "e+NN must normalize to eNN" rule reduces to once the
// exponent is produced by strconv.Itoa, which never emits a leading "+".
func expSign(e int) string {
	return strconv.Itoa(e)
}
