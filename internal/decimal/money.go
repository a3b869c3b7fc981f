// Package decimal holds the BRL amount helpers used when reading and
// reconciling NF-e values. Amounts are shopspring decimals, never floats.
package decimal

import (
	"strings"

	"github.com/shopspring/decimal"
)

var Zero = decimal.Zero

// Reconciliation tolerances in BRL
var (
	// TotalsTolerance applies to merchandise and grand-total reconciliation
	TotalsTolerance = decimal.RequireFromString("0.10")
	// LineTolerance applies to quantity x unit price per line item
	LineTolerance = decimal.RequireFromString("0.01")
)

// ParseOrZero reads an NF-e monetary text node. Empty or malformed input
// yields zero and ok=false. A single comma is taken as the decimal
// separator when there is no dot.
func ParseOrZero(s string) (d decimal.Decimal, ok bool) {
	s = strings.TrimSpace(s)
	if !strings.Contains(s, ".") && strings.Count(s, ",") == 1 {
		s = strings.Replace(s, ",", ".", 1)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Zero, false
	}
	return d, true
}

// Exceeds reports whether a and b differ by more than tolerance
func Exceeds(a, b, tolerance decimal.Decimal) bool {
	return a.Sub(b).Abs().GreaterThan(tolerance)
}

// Fixed2 renders d rounded half-up to two places, as amounts appear in findings
func Fixed2(d decimal.Decimal) string { return d.StringFixed(2) }

func IsPositive(d decimal.Decimal) bool { return d.Sign() > 0 }
