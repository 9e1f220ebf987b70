package parsers

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Date layouts tried in order. The day-first forms come before the US forms
// on purpose; source documents are day-first and the first match wins.
var dateLayouts = []string{
	"2006-1-2",
	"2006/1/2",
	"2/1/2006",
	"2-Jan-06",
	"2-Jan-2006",
	"2-January-2006",
	"2 Jan 2006",
	"2 January 2006",
	"2-1-2006",
	"2/1/06",
	"1/2/2006",
	"1-2-2006",
}

// dateRe matches the date shapes that appear inline in statement rows:
// 12-Jun-25, 12/06/2025, and the truncated 12-Jun (year supplied later).
var dateRe = regexp.MustCompile(`(\b\d{1,2}[-/][A-Za-z]{3,9}[-/]\d{2,4}\b|\b\d{1,2}/\d{1,2}/\d{2,4}\b|\b\d{1,2}[-/][A-Za-z]{3,9}\b)`)

var monthYearRe = regexp.MustCompile(`([A-Za-z]{3,9})\.?\s+(\d{4})`)

var monthNums = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

// ParseDate converts a date token to a time.Time, trying the known layouts in
// order and falling back to a bare month-year (anchored to the first of the
// month). Returns the zero time when nothing matches; an unparseable date
// never fails a whole record.
func ParseDate(raw string) time.Time {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	if m := monthYearRe.FindStringSubmatch(s); m != nil {
		mon := strings.ToLower(m[1])
		if len(mon) > 3 {
			mon = mon[:3]
		}
		if mm, ok := monthNums[mon]; ok {
			year, _ := strconv.Atoi(m[2])
			return time.Date(year, mm, 1, 0, 0, 0, 0, time.UTC)
		}
	}
	return time.Time{}
}

// FindDateToken scans free text for the first inline date token. It returns
// the raw token and its end offset in s, or ("", -1) when absent; callers use
// the offset to split "date + trailing name" tails.
func FindDateToken(s string) (string, int) {
	loc := dateRe.FindStringIndex(s)
	if loc == nil {
		return "", -1
	}
	return s[loc[0]:loc[1]], loc[1]
}

// ISODate formats t as YYYY-MM-DD, or "" for the zero time. Storage keeps
// dates as text, so blanks round-trip as blanks.
func ISODate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}
