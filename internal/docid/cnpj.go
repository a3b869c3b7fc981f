package docid

import "fmt"

var (
	cnpjWeights1 = []int{5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
	cnpjWeights2 = []int{6, 5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
)

// ValidCNPJ reports whether s, after dropping non-digits, is a 14-digit CNPJ
// whose two trailing check digits match.
func ValidCNPJ(s string) bool {
	d := OnlyDigits(s)
	if len(d) != CNPJLength {
		return false
	}
	check, err := CNPJCheckDigits(d[:12])
	if err != nil {
		return false
	}
	return d[12:] == check
}

// CNPJCheckDigits computes the two check digits for a 12-digit CNPJ base
func CNPJCheckDigits(base string) (string, error) {
	base = OnlyDigits(base)
	if len(base) != 12 {
		return "", fmt.Errorf("docid: CNPJ base must have 12 digits, got %d", len(base))
	}
	first := mod11Digit(weightedSum(base, cnpjWeights1))
	second := mod11Digit(weightedSum(base+string(first), cnpjWeights2))
	return string([]byte{first, second}), nil
}

// FormatCNPJ renders 14 digits as 00.000.000/0000-00; anything else is returned unchanged.
func FormatCNPJ(s string) string {
	d := OnlyDigits(s)
	if len(d) != CNPJLength {
		return s
	}
	return d[0:2] + "." + d[2:5] + "." + d[5:8] + "/" + d[8:12] + "-" + d[12:14]
}
