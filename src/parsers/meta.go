package parsers

import (
	"regexp"
	"strings"

	"github.com/username/icrs/backend/src/periods"
)

// DocumentMeta is the header-level context shared by every record in a
// document: who the agent is and which reporting month the document covers.
type DocumentMeta struct {
	AgentCode string
	LicenseNo string
	BatchCode string
	Period    periods.Period
}

var agentCodePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)AGENCY\s+ACCOUNT\s+NO[:\s]*([0-9A-Z\-]+)`),
	regexp.MustCompile(`(?i)AGENT\s+ACCOUNT\s+NO[:\s]*([0-9A-Z\-]+)`),
	regexp.MustCompile(`(?i)AGENT\s+ACCONT\s+NO[:\s]*([0-9A-Z\-]+)`), // typo appears in real documents
	regexp.MustCompile(`(?i)AGENCY\s+ACCT[:\s]*([0-9A-Z\-]+)`),
	regexp.MustCompile(`(?i)AGENT\s+CODE[:\s]*([0-9A-Z\-]+)`),
}

var addressKeywords = []string{
	"PO BOX", "P . O . BOX", "P.O. BOX", "P . O .BOX", "BOX", "CANTONMENTS", "P O BOX",
	"TEL:", "TEL", "PHONE", "FAX", "FAX:", "P.O.", "CT", "P.O BOX", "TOLL-FREE", "TOLL FREE",
}

var (
	licenseLabelRe = regexp.MustCompile(`(?i)(?:AGENT\s+LICENSE\s+NO[:\s]*|AGENCY\s+LICENSE\s+NO[:\s]*|AGENT\s+LICENSE[:\s]*)(T?\d+)`)
	licenseBareRe  = regexp.MustCompile(`(?i)\bT[-]?\d{3,}\b`)
	batchCodeRe    = regexp.MustCompile(`(?i)(COM_[A-Z]{3}_\d{4})`)
	bareCodeRe     = regexp.MustCompile(`\b(\d{3,6})\b`)
	yearLikeRe     = regexp.MustCompile(`^20\d{2}$`)
	codeShapeRe    = regexp.MustCompile(`^\d{3,6}$`)
	nonAlnumRe     = regexp.MustCompile(`[^0-9A-Za-z\-]`)
	letterRe       = regexp.MustCompile(`[A-Z]`)
	digitRe        = regexp.MustCompile(`\d`)
)

// ExtractMeta runs the shared header discovery over the document lines.
func ExtractMeta(lines []string) DocumentMeta {
	meta := DocumentMeta{
		AgentCode: FindAgentCode(lines),
		LicenseNo: FindLicense(lines),
		BatchCode: FindBatchCode(lines),
	}
	if meta.BatchCode != "" {
		if p, err := periods.Canonicalize(meta.BatchCode); err == nil {
			meta.Period = p
		}
	}
	return meta
}

// looksLikeAddress reports whether a header line is address or company
// boilerplate rather than agent identity data.
func looksLikeAddress(ln string) bool {
	if ln == "" {
		return false
	}
	s := strings.ToUpper(ln)
	for _, kw := range addressKeywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	if len(letterRe.FindAllString(s, -1)) < 3 && len(digitRe.FindAllString(s, -1)) >= 3 {
		return true
	}
	if strings.Contains(s, "COMPANY") || (strings.Contains(s, "LIFE") && strings.Contains(s, "SIC")) {
		return true
	}
	return false
}

// FindAgentCode locates the agent account code using three strategies in
// order: labeled patterns anywhere in the document, the fixed-position token
// on line 7 when that line is not an address, then the first bare 3-6 digit
// number in the first 12 lines that is not a calendar year.
func FindAgentCode(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	text := strings.Join(lines, "\n")
	for _, p := range agentCodePatterns {
		if m := p.FindStringSubmatch(text); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	if len(lines) >= 7 {
		target := lines[6]
		if !looksLikeAddress(target) {
			tokens := strings.Fields(strings.TrimSpace(target))
			if len(tokens) >= 4 {
				candidate := nonAlnumRe.ReplaceAllString(tokens[3], "")
				if codeShapeRe.MatchString(candidate) && !yearLikeRe.MatchString(candidate) {
					return candidate
				}
			}
		}
	}
	limit := len(lines)
	if limit > 12 {
		limit = 12
	}
	for _, ln := range lines[:limit] {
		if looksLikeAddress(ln) {
			continue
		}
		if m := bareCodeRe.FindString(ln); m != "" && !yearLikeRe.MatchString(m) {
			return m
		}
	}
	return ""
}

// FindLicense locates the agent license number, preferring a labeled field
// and falling back to any bare T-prefixed number.
func FindLicense(lines []string) string {
	s := strings.Join(lines, "\n")
	if m := licenseLabelRe.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := licenseBareRe.FindString(s); m != "" {
		return strings.NewReplacer(" ", "", "-", "").Replace(m)
	}
	return ""
}

// FindBatchCode locates the COM_MMM_YYYY commission batch label.
func FindBatchCode(lines []string) string {
	s := strings.Join(lines, "\n")
	if m := batchCodeRe.FindString(s); m != "" {
		return strings.TrimSpace(m)
	}
	return ""
}
