// Package periods enforces the canonical YYYY-MM reporting period format
// across the entire application. Every other component constructs periods
// through Canonicalize; nothing slices period strings by hand.
package periods

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidPeriod is returned when a label cannot be normalized to YYYY-MM.
// Callers must propagate it rather than guess a period.
var ErrInvalidPeriod = errors.New("invalid period label")

var (
	reStrict    = regexp.MustCompile(`^(\d{4})-(0[1-9]|1[0-2])$`)
	reCompact   = regexp.MustCompile(`^(\d{4})(0[1-9]|1[0-2])$`)
	reComPrefix = regexp.MustCompile(`(?i)^COM[_-]?`)
)

var monthNames = map[string]time.Month{
	"jan": time.January, "january": time.January,
	"feb": time.February, "february": time.February,
	"mar": time.March, "march": time.March,
	"apr": time.April, "april": time.April,
	"may": time.May,
	"jun": time.June, "june": time.June,
	"jul": time.July, "july": time.July,
	"aug": time.August, "august": time.August,
	"sep": time.September, "sept": time.September, "september": time.September,
	"oct": time.October, "october": time.October,
	"nov": time.November, "november": time.November,
	"dec": time.December, "december": time.December,
}

// Period is a single reporting month. The zero value is not a valid period;
// construct values through Canonicalize or Make.
type Period struct {
	Year  int
	Month time.Month
}

// Make builds a Period directly from numeric components.
func Make(year int, month time.Month) Period {
	return Period{Year: year, Month: month}
}

// IsZero reports whether p is the zero (unset) period.
func (p Period) IsZero() bool {
	return p.Year == 0 && p.Month == 0
}

// String returns the canonical YYYY-MM representation.
func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

// MarshalJSON encodes the period as its canonical "YYYY-MM" string.
func (p Period) MarshalJSON() ([]byte, error) {
	if p.IsZero() {
		return []byte(`""`), nil
	}
	return []byte(`"` + p.String() + `"`), nil
}

// UnmarshalJSON accepts any label Canonicalize understands; an empty string
// decodes to the zero period.
func (p *Period) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*p = Period{}
		return nil
	}
	parsed, err := Canonicalize(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Compare orders periods by (year, month); it returns -1, 0 or +1.
func (p Period) Compare(other Period) int {
	if p.Year != other.Year {
		if p.Year < other.Year {
			return -1
		}
		return 1
	}
	if p.Month != other.Month {
		if p.Month < other.Month {
			return -1
		}
		return 1
	}
	return 0
}

// Before reports whether p is strictly earlier than other.
func (p Period) Before(other Period) bool { return p.Compare(other) < 0 }

// Prev returns the immediately preceding calendar month.
func (p Period) Prev() Period {
	if p.Month == time.January {
		return Period{Year: p.Year - 1, Month: time.December}
	}
	return Period{Year: p.Year, Month: p.Month - 1}
}

// Start returns the first day of the period at midnight UTC.
func (p Period) Start() time.Time {
	return time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC)
}

// End returns the last day of the period at midnight UTC.
func (p Period) End() time.Time {
	return p.Start().AddDate(0, 1, -1)
}

// Canonicalize converts any common period label to a Period.
//
// Supported inputs (examples):
//
//	"2025-06"       -> 2025-06
//	"202506"        -> 2025-06
//	"2025/06"       -> 2025-06
//	"Jun 2025"      -> 2025-06
//	"June 2025"     -> 2025-06
//	"COM_JUN_2025"  -> 2025-06
//	"COM-2025-06"   -> 2025-06
//
// Returns ErrInvalidPeriod when nothing matches.
func Canonicalize(raw string) (Period, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Period{}, fmt.Errorf("%w: empty label", ErrInvalidPeriod)
	}

	// Strip COM_ / COM- prefix before matching anything else.
	s = strings.TrimSpace(reComPrefix.ReplaceAllString(s, ""))

	if m := reStrict.FindStringSubmatch(s); m != nil {
		return fromParts(m[1], m[2])
	}
	if m := reCompact.FindStringSubmatch(s); m != nil {
		return fromParts(m[1], m[2])
	}

	// YYYY/MM or YYYY/M
	if strings.Contains(s, "/") {
		parts := strings.Split(s, "/")
		if len(parts) == 2 {
			if p, ok := numericYearMonth(parts[0], parts[1]); ok {
				return p, nil
			}
		}
	}

	// Month-word formats: "Jun 2025", "June 2025"
	for _, layout := range []string{"Jan 2006", "January 2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return Period{Year: t.Year(), Month: t.Month()}, nil
		}
	}

	// Separator-delimited month word + year, e.g. "JUN_2025" or "June-2025"
	// (covers COM_JUN_2025 once the prefix is stripped).
	tokens := regexp.MustCompile(`[_\s-]+`).Split(s, -1)
	if len(tokens) >= 2 {
		yearTok := tokens[len(tokens)-1]
		monthTok := strings.ToLower(tokens[len(tokens)-2])
		if len(yearTok) == 4 && isDigits(yearTok) {
			if month, ok := monthNames[monthTok]; ok {
				year, _ := strconv.Atoi(yearTok)
				return Period{Year: year, Month: month}, nil
			}
		}
	}

	// YYYY-M (single digit month)
	if dash := strings.Split(s, "-"); len(dash) == 2 {
		if p, ok := numericYearMonth(dash[0], dash[1]); ok {
			return p, nil
		}
	}

	return Period{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, raw)
}

// CanonicalKey is a convenience wrapper returning the YYYY-MM string form.
func CanonicalKey(raw string) (string, error) {
	p, err := Canonicalize(raw)
	if err != nil {
		return "", err
	}
	return p.String(), nil
}

// IsCanonical reports whether s is already a strict YYYY-MM label.
func IsCanonical(s string) bool {
	return reStrict.MatchString(s)
}

// SortKey returns a sortable key for a raw period label: the canonical form
// when the label parses, otherwise the raw label itself.
func SortKey(raw string) string {
	if p, err := Canonicalize(raw); err == nil {
		return p.String()
	}
	return raw
}

func fromParts(yearStr, monthStr string) (Period, error) {
	year, _ := strconv.Atoi(yearStr)
	month, _ := strconv.Atoi(monthStr)
	return Period{Year: year, Month: time.Month(month)}, nil
}

func numericYearMonth(yearStr, monthStr string) (Period, bool) {
	if len(yearStr) != 4 || !isDigits(yearStr) || !isDigits(monthStr) {
		return Period{}, false
	}
	month, err := strconv.Atoi(monthStr)
	if err != nil || month < 1 || month > 12 {
		return Period{}, false
	}
	year, _ := strconv.Atoi(yearStr)
	return Period{Year: year, Month: time.Month(month)}, true
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
