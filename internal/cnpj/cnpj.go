// Package cnpj normalizes, formats and validates CNPJ identifiers
// (Cadastro Nacional da Pessoa Jurídica).
//
// The canonical form is exactly 14 ASCII digits. Normalization is decoupled
// from validation so a form can be masked while the user types and only be
// checked when the flow moves forward.
package cnpj

import "strings"

// Length is the number of digits in a canonical CNPJ.
const Length = 14

var (
	firstWeights  = []int{5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
	secondWeights = []int{6, 5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
)

// Normalize strips every non-digit character. It never fails.
func Normalize(input string) string {
	if input == "" {
		return ""
	}
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, input)
}

// Validate reports whether input is a well-formed CNPJ. The input is
// normalized first; anything that is not 14 digits, or is a run of a single
// repeated digit, is rejected before the check digits are computed.
func Validate(input string) bool {
	digits := Normalize(input)
	if len(digits) != Length {
		return false
	}
	if strings.Count(digits, digits[:1]) == Length {
		return false
	}

	if checkDigit(digits[:12], firstWeights) != digits[12] {
		return false
	}
	return checkDigit(digits[:13], secondWeights) == digits[13]
}

// checkDigit computes the modulus-11 check digit of digits using weights,
// which must have the same length.
func checkDigit(digits string, weights []int) byte {
	sum := 0
	for i, w := range weights {
		sum += int(digits[i]-'0') * w
	}
	rem := sum % 11
	if rem < 2 {
		return '0'
	}
	return byte('0' + 11 - rem)
}

// Format applies the XX.XXX.XXX/XXXX-XX mask progressively, so partial input
// typed so far is grouped as far as it goes. Digits past the 14th are dropped.
func Format(input string) string {
	d := Normalize(input)
	if len(d) > Length {
		d = d[:Length]
	}

	switch {
	case len(d) <= 2:
		return d
	case len(d) <= 5:
		return d[:2] + "." + d[2:]
	case len(d) <= 8:
		return d[:2] + "." + d[2:5] + "." + d[5:]
	case len(d) <= 12:
		return d[:2] + "." + d[2:5] + "." + d[5:8] + "/" + d[8:]
	default:
		return d[:2] + "." + d[2:5] + "." + d[5:8] + "/" + d[8:12] + "-" + d[12:]
	}
}
