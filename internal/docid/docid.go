// Package docid implements the Brazilian document identifier checks:
// CNPJ, CPF and the 44-digit NF-e access key. Every predicate is total.
package docid

import "strings"

const (
	CPFLength       = 11
	CNPJLength      = 14
	AccessKeyLength = 44
)

// OnlyDigits drops every character outside ASCII 0-9
func OnlyDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if c := s[i]; c >= '0' && c <= '9' {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// mod11Digit maps a weighted sum to its check digit: remainder 0 or 1 gives 0.
func mod11Digit(sum int) byte {
	r := sum % 11
	if r < 2 {
		return '0'
	}
	return byte('0' + 11 - r)
}

func weightedSum(digits string, weights []int) int {
	sum := 0
	for i, w := range weights {
		sum += int(digits[i]-'0') * w
	}
	return sum
}
