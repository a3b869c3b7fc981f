package decimal_test

import (
	"testing"

	dec "github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/rezonia/nfe-validator/internal/decimal"
)

func TestParseOrZero(t *testing.T) {
	cases := map[string]struct {
		in   string
		want string
		ok   bool
	}{
		"vProd":           {"1500.50", "1500.50", true},
		"qCom four dp":    {"10.0000", "10", true},
		"vUnCom ten dp":   {"0.1234567890", "0.123456789", true},
		"padded node":     {"  2.00\n", "2", true},
		"comma separator": {"12,34", "12.34", true},
		"empty node":      {"", "0", false},
		"currency symbol": {"R$ 10", "0", false},
		"two commas":      {"1,000,00", "0", false},
		"both separators": {"1,000.00", "0", false},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			d, ok := decimal.ParseOrZero(tc.in)
			assert.Equal(t, tc.ok, ok)
			assert.True(t, d.Equal(dec.RequireFromString(tc.want)), "got %s", d)
		})
	}
}

func TestExceeds(t *testing.T) {
	cases := []struct {
		name      string
		a, b      string
		tolerance dec.Decimal
		want      bool
	}{
		{"totals equal", "100.00", "100.00", decimal.TotalsTolerance, false},
		{"totals on the edge", "100.10", "100.00", decimal.TotalsTolerance, false},
		{"totals over", "100.11", "100.00", decimal.TotalsTolerance, true},
		{"totals under", "99.89", "100.00", decimal.TotalsTolerance, true},
		{"line on the edge", "20.01", "20.00", decimal.LineTolerance, false},
		{"line over", "20.02", "20.00", decimal.LineTolerance, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := decimal.Exceeds(dec.RequireFromString(tc.a), dec.RequireFromString(tc.b), tc.tolerance)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestFixed2AndSign(t *testing.T) {
	assert.Equal(t, "20.00", decimal.Fixed2(dec.NewFromInt(20)))
	assert.Equal(t, "0.10", decimal.Fixed2(dec.RequireFromString("0.1")))
	assert.Equal(t, "1.24", decimal.Fixed2(dec.RequireFromString("1.235")))

	assert.True(t, decimal.IsPositive(dec.RequireFromString("0.01")))
	assert.False(t, decimal.IsPositive(decimal.Zero))
	assert.False(t, decimal.IsPositive(dec.NewFromInt(-5)))
}
