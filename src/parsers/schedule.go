package parsers

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/username/icrs/backend/src/models"
)

var companyKeywords = []string{
	"COMPANY", "LTD", "LIMITED", "SIC", "LIFE", "BANK", "P.O.", "PO BOX", "CANTONMENTS", "WWW", "@",
}

var (
	scheduleTitleRe  = regexp.MustCompile(`(?i)COMMISSION\s+SCHEDULE|COMMISSION\s+STATEMENT|COMIISION`)
	personNameRe     = regexp.MustCompile(`^[A-Z][A-Za-z]+(?:\s+[A-Z][A-Za-z]+){0,6}$`)
	totalPremiumRe   = regexp.MustCompile(`(?i)TOTAL\s+PREMIUM\s+([0-9,]+\.?\d{0,2})`)
	grossLabelRe     = regexp.MustCompile(`(?i)GROSS\s+COMMISSION\s+EARNED|INCOME\b`)
	govTaxLabelRe    = regexp.MustCompile(`(?i)GOV\.\s*TAX`)
	siclaseLabelRe   = regexp.MustCompile(`(?i)\bSICLASE\b`)
	welfarekoLabelRe = regexp.MustCompile(`(?i)\bWELFAREKO\b`)
	premDedLabelRe   = regexp.MustCompile(`(?i)\bPREMIUM\s+DEDUCTION\b`)
	pensionsLabelRe  = regexp.MustCompile(`(?i)\bPENSIONS\b`)
	totalDedLabelRe  = regexp.MustCompile(`(?i)TOTAL\s+DEDUCTIONS`)
	netLabelRe       = regexp.MustCompile(`(?i)NET\s+COMMISSION`)
	strictAmountRe   = regexp.MustCompile(`([0-9,]+\.\d{2})`)
	looseAmountRe    = regexp.MustCompile(`([0-9,]+\.?\d{0,2})`)
	parenAmountRe    = regexp.MustCompile(`\(([0-9,]+\.\d{2})\)`)
	slashDateRe      = regexp.MustCompile(`(\d{2}/\d{2}/\d{4})`)
)

// ScheduleParser extracts the single agency-level payout summary from a
// commission schedule dump. Figures are label-anchored: each known label's
// line is searched for its amount, so line order does not matter.
type ScheduleParser struct{}

func NewScheduleParser() *ScheduleParser { return &ScheduleParser{} }

func (p *ScheduleParser) Parse(lines []string) (*Result, error) {
	meta := ExtractMeta(lines)
	res := &Result{Kind: models.DocSchedule, Meta: meta}

	rec := models.ScheduleRecord{
		AgentCode: meta.AgentCode,
		AgentName: findScheduleAgentName(lines),
		LicenseNo: meta.LicenseNo,
		BatchCode: meta.BatchCode,
		Period:    meta.Period,
	}

	grab := func(label, amount *regexp.Regexp, ln string, dst *decimal.Decimal) {
		if !label.MatchString(ln) {
			return
		}
		if m := amount.FindStringSubmatch(ln); m != nil {
			*dst = Money2(m[1])
		}
	}

	for _, ln := range lines {
		if m := totalPremiumRe.FindStringSubmatch(ln); m != nil {
			rec.TotalPremiums = Money2(m[1])
		}
		grab(grossLabelRe, strictAmountRe, ln, &rec.Income)
		grab(govTaxLabelRe, strictAmountRe, ln, &rec.GovTax)
		grab(siclaseLabelRe, looseAmountRe, ln, &rec.Siclase)
		grab(welfarekoLabelRe, looseAmountRe, ln, &rec.Welfareko)
		grab(premDedLabelRe, looseAmountRe, ln, &rec.PremiumDeduction)
		grab(pensionsLabelRe, strictAmountRe, ln, &rec.Pensions)
		// Total deductions prints parenthesized, e.g. "(2,548.27)".
		grab(totalDedLabelRe, parenAmountRe, ln, &rec.TotalDeductions)
		grab(netLabelRe, strictAmountRe, ln, &rec.NetCommission)

		if rec.DocumentDate.IsZero() {
			if m := slashDateRe.FindStringSubmatch(ln); m != nil {
				rec.DocumentDate = ParseDate(m[1])
			}
		}
	}

	res.Schedules = append(res.Schedules, rec)
	return res, nil
}

// findScheduleAgentName picks the agent's display name out of the document
// header: the first non-company, non-address, multi-word line after the
// schedule title, falling back to any title-cased name line near the top.
func findScheduleAgentName(lines []string) string {
	headerIdx := 0
	limit := len(lines)
	if limit > 12 {
		limit = 12
	}
	for idx, ln := range lines[:limit] {
		if scheduleTitleRe.MatchString(ln) {
			headerIdx = idx
			break
		}
	}
	end := headerIdx + 6
	if end > len(lines) {
		end = len(lines)
	}
	for k := headerIdx + 1; k < end; k++ {
		candidate := strings.TrimSpace(lines[k])
		if candidate == "" {
			continue
		}
		upper := strings.ToUpper(candidate)
		if containsAny(upper, companyKeywords) || looksLikeAddress(candidate) {
			continue
		}
		if len(strings.Fields(candidate)) < 2 {
			continue
		}
		return candidate
	}
	for _, ln := range lines[:limit] {
		s := strings.TrimSpace(ln)
		if s == "" || looksLikeAddress(s) {
			continue
		}
		if personNameRe.MatchString(s) {
			return s
		}
	}
	return ""
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
