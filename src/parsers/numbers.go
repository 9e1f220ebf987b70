package parsers

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	currencyRe = regexp.MustCompile(`[₵$£€,]`)
	// Last numeric blob on the token; document columns sometimes glue a
	// label to the value and the value always trails.
	numericRe = regexp.MustCompile(`-?\d+(?:\.\d+)?`)
)

// CleanAmount normalizes a monetary token to a decimal with the given number
// of places, rounded half-up. Currency symbols and thousands separators are
// stripped and a parenthesized value is negative. Returns a zero decimal and
// false when no numeric content is present.
func CleanAmount(raw string, places int32) (decimal.Decimal, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Zero, false
	}
	s = currencyRe.ReplaceAllString(s, "")
	neg := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg = true
		s = s[1 : len(s)-1]
	}
	matches := numericRe.FindAllString(s, -1)
	if len(matches) == 0 {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(matches[len(matches)-1])
	if err != nil {
		return decimal.Zero, false
	}
	if neg {
		d = d.Neg()
	}
	// Round is half away from zero, matching the ledger-wide rounding rule.
	return d.Round(places), true
}

// Money2 is CleanAmount at 2 decimal places, discarding the ok flag.
func Money2(raw string) decimal.Decimal {
	d, _ := CleanAmount(raw, 2)
	return d
}

// Rate4 is CleanAmount at 4 decimal places, for commission rates.
func Rate4(raw string) decimal.Decimal {
	d, _ := CleanAmount(raw, 4)
	return d
}
