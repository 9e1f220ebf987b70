// Package parsers turns raw text dumps of commission documents into typed
// records. Parsing is pure: lines in, records out, no I/O and no database.
package parsers

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/username/icrs/backend/src/models"
)

// Result is the output of one extraction run. Only the slice matching the
// parser's document kind is populated. Skipped counts candidate lines that
// were rejected (malformed, too few fields, proposal placeholders).
type Result struct {
	Kind       models.DocKind
	Statements []models.StatementRecord
	Schedules  []models.ScheduleRecord
	Terminated []models.TerminatedRecord
	Meta       DocumentMeta
	Skipped    int
}

// Rows returns the number of records extracted, regardless of kind.
func (r *Result) Rows() int {
	return len(r.Statements) + len(r.Schedules) + len(r.Terminated)
}

// Parser extracts typed records from the text lines of one document.
type Parser interface {
	Parse(lines []string) (*Result, error)
}

// GetParser returns the parser for a document kind.
func GetParser(kind models.DocKind) (Parser, error) {
	switch kind {
	case models.DocStatement:
		return NewStatementParser(), nil
	case models.DocSchedule:
		return NewScheduleParser(), nil
	case models.DocTerminated:
		return NewTerminatedParser(), nil
	default:
		return nil, fmt.Errorf("no parser registered for document kind %q", kind)
	}
}

// ReadLines splits a raw document dump into trimmed lines. Lines that arrive
// fully quoted (CSV round-trips of text dumps) are unquoted first.
func ReadLines(r io.Reader) ([]string, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		ln := strings.TrimRight(sc.Text(), " \t\r")
		if strings.HasPrefix(ln, `"`) && strings.HasSuffix(ln, `"`) && len(ln) >= 2 {
			ln = ln[1 : len(ln)-1]
		}
		lines = append(lines, ln)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading document lines: %w", err)
	}
	return lines, nil
}
