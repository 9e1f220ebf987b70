package parsers

import (
	"regexp"
	"strings"

	"github.com/username/icrs/backend/src/models"
)

var (
	terminatedPolicyRe  = regexp.MustCompile(`^[A-Z]{2,6}\d{2,}`)
	receiptAnchorRe     = regexp.MustCompile(`^[A-Z]{2}\d+`)
	terminatedSkipWords = map[string]bool{
		"DAVID": true, "COMIISION": true, "CURRENCY": true, "POLICY": true, "TERMINATED": true,
	}
)

// TerminatedParser extracts policy termination events. Rows are free-form
// lines anchored by a policy number and a receipt-number token; the
// termination date is the first day of the document's reporting month, since
// the source only records the month of termination.
type TerminatedParser struct{}

func NewTerminatedParser() *TerminatedParser { return &TerminatedParser{} }

func (p *TerminatedParser) Parse(lines []string) (*Result, error) {
	meta := ExtractMeta(lines)
	res := &Result{Kind: models.DocTerminated, Meta: meta}

	for _, ln := range lines {
		parts := strings.Fields(ln)
		if len(parts) == 0 {
			continue
		}
		first := parts[0]
		if terminatedSkipWords[strings.ToUpper(first)] {
			continue
		}
		if !terminatedPolicyRe.MatchString(first) {
			continue
		}
		rec, ok := parseTerminatedRow(ln, parts, meta)
		if ok {
			res.Terminated = append(res.Terminated, rec)
		} else {
			res.Skipped++
		}
	}
	return res, nil
}

func parseTerminatedRow(rowline string, parts []string, meta DocumentMeta) (models.TerminatedRecord, bool) {
	// The receipt number (RNxxxx) anchors the positional fields to its right.
	rnIdx := -1
	for idx, v := range parts {
		if strings.HasPrefix(v, "RN") || receiptAnchorRe.MatchString(v) {
			rnIdx = idx
			break
		}
	}
	if rnIdx < 1 {
		if len(parts) < 8 {
			return models.TerminatedRecord{}, false
		}
		rnIdx = 2
	}
	nameTokens := parts[1:rnIdx]
	var holder, surname, otherName string
	if len(nameTokens) > 0 {
		holder = nameTokens[0]
	}
	if len(nameTokens) > 1 {
		surname = nameTokens[1]
	}
	if len(nameTokens) > 2 {
		otherName = strings.Join(nameTokens[2:], " ")
	}

	field := func(n int) string {
		if n < len(parts) {
			return parts[n]
		}
		return ""
	}
	receiptNo := field(rnIdx)
	payDateRaw := field(rnIdx + 1)
	premiumRaw := field(rnIdx + 2)
	comRateRaw := field(rnIdx + 3)
	comAmtRaw := field(rnIdx + 4)

	ptIdx := rnIdx + 5
	policyType := ""
	if t := field(ptIdx); policyTypes[t] {
		policyType = t
	}
	var inceptionRaw, status, agentName string
	if policyType != "" {
		inceptionRaw = field(ptIdx + 1)
		status = field(ptIdx + 2)
		if ptIdx+3 < len(parts) {
			agentName = strings.Join(parts[ptIdx+3:], " ")
		}
	}

	rec := models.TerminatedRecord{
		AgentCode:  meta.AgentCode,
		PolicyNo:   parts[0],
		Holder:     holder,
		Surname:    surname,
		OtherName:  otherName,
		ReceiptNo:  receiptNo,
		PayDate:    ParseDate(payDateRaw),
		Premium:    Money2(premiumRaw),
		ComRate:    Rate4(comRateRaw),
		ComAmt:     Money2(comAmtRaw),
		PolicyType: policyType,
		Inception:  ParseDate(inceptionRaw),
		Status:     status,
		AgentName:  agentName,
		Period:     meta.Period,
		LicenseNo:  meta.LicenseNo,
		RawLine:    rowline,
	}
	if !meta.Period.IsZero() {
		rec.TerminationDate = meta.Period.Start()
	}
	return rec, true
}
