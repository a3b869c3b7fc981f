package docid

import "fmt"

var (
	cpfWeights1 = []int{10, 9, 8, 7, 6, 5, 4, 3, 2}
	cpfWeights2 = []int{11, 10, 9, 8, 7, 6, 5, 4, 3, 2}
)

// ValidCPF reports whether s is an 11-digit CPF with matching check digits.
// Sequences of a single repeated digit are rejected even though they pass the arithmetic.
func ValidCPF(s string) bool {
	d := OnlyDigits(s)
	if len(d) != CPFLength {
		return false
	}
	if repeated(d) {
		return false
	}
	check, err := CPFCheckDigits(d[:9])
	if err != nil {
		return false
	}
	return d[9:] == check
}

// CPFCheckDigits computes the two check digits for a 9-digit CPF base
func CPFCheckDigits(base string) (string, error) {
	base = OnlyDigits(base)
	if len(base) != 9 {
		return "", fmt.Errorf("docid: CPF base must have 9 digits, got %d", len(base))
	}
	first := mod11Digit(weightedSum(base, cpfWeights1))
	second := mod11Digit(weightedSum(base+string(first), cpfWeights2))
	return string([]byte{first, second}), nil
}

// FormatCPF renders 11 digits as 000.000.000-00
func FormatCPF(s string) string {
	d := OnlyDigits(s)
	if len(d) != CPFLength {
		return s
	}
	return d[0:3] + "." + d[3:6] + "." + d[6:9] + "-" + d[9:11]
}

func repeated(d string) bool {
	for i := 1; i < len(d); i++ {
		if d[i] != d[0] {
			return false
		}
	}
	return true
}
