package web

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// CurrencySymbol prefixes every rendered price.
const CurrencySymbol = "₹"

// Currency formats amount with two decimals and thousands separators.
// Example: Currency(decimal.RequireFromString("1234.5")) => "₹1,234.50"
func Currency(amount decimal.Decimal) string {
	fixed := amount.StringFixed(2)
	neg := strings.HasPrefix(fixed, "-")
	if neg {
		fixed = fixed[1:]
	}
	whole, frac, _ := strings.Cut(fixed, ".")
	out := CurrencySymbol + groupDigits(whole) + "." + frac
	if neg && !amount.Round(2).IsZero() {
		return "-" + out
	}
	return out
}

// ThousandSep renders n with comma separators.
func ThousandSep(n int) string {
	s := strconv.Itoa(n)
	if strings.HasPrefix(s, "-") {
		return "-" + groupDigits(s[1:])
	}
	return groupDigits(s)
}

func groupDigits(s string) string {
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	for i, c := range s {
		if i != 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	return b.String()
}

// Rating renders a 0-10 score with one decimal.
func Rating(r float64) string {
	return strconv.FormatFloat(r, 'f', 1, 64)
}
