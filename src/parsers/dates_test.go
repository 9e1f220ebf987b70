package parsers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseDateLayouts(t *testing.T) {
	cases := []struct {
		in   string
		want time.Time
	}{
		{"2025-06-01", time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)},
		{"2025/06/01", time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)},
		{"01/06/2025", time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)},
		{"12-Jun-25", time.Date(2025, time.June, 12, 0, 0, 0, 0, time.UTC)},
		{"12-Jun-2025", time.Date(2025, time.June, 12, 0, 0, 0, 0, time.UTC)},
		{"12 June 2025", time.Date(2025, time.June, 12, 0, 0, 0, 0, time.UTC)},
		// Day-first wins on ambiguous slash dates.
		{"03/04/2025", time.Date(2025, time.April, 3, 0, 0, 0, 0, time.UTC)},
		// Month-first fallback when the day-first read is impossible.
		{"06/25/2025", time.Date(2025, time.June, 25, 0, 0, 0, 0, time.UTC)},
		// Bare month-year anchors to the first of the month.
		{"Jul 2025", time.Date(2025, time.July, 1, 0, 0, 0, 0, time.UTC)},
		{"September 2024", time.Date(2024, time.September, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.want, ParseDate(tc.in))
		})
	}
}

func TestParseDateUnparseable(t *testing.T) {
	for _, in := range []string{"", "not a date", "32/13/2025"} {
		assert.True(t, ParseDate(in).IsZero(), "input %q", in)
	}
}

func TestFindDateToken(t *testing.T) {
	tok, end := FindDateToken("some text 12-Jun-25 KOFI MENSAH")
	assert.Equal(t, "12-Jun-25", tok)
	assert.Equal(t, "KOFI MENSAH", trimmed("some text 12-Jun-25 KOFI MENSAH", end))

	tok, end = FindDateToken("no dates here")
	assert.Empty(t, tok)
	assert.Equal(t, -1, end)
}

func trimmed(s string, end int) string {
	if end < 0 || end > len(s) {
		return ""
	}
	out := s[end:]
	for len(out) > 0 && out[0] == ' ' {
		out = out[1:]
	}
	return out
}

func TestISODate(t *testing.T) {
	assert.Equal(t, "", ISODate(time.Time{}))
	assert.Equal(t, "2025-06-01", ISODate(time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)))
}
