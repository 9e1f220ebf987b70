package parsers

import (
	"regexp"
	"strings"

	"github.com/username/icrs/backend/src/models"
)

// policyTypes is the closed set of product codes that anchors name parsing
// inside a statement row.
var policyTypes = map[string]bool{
	"GGG": true, "EDU": true, "EPP": true, "FAM": true,
	"FJPP": true, "FLE": true, "FNN": true,
}

var (
	statementHeaderRe = regexp.MustCompile(`(?i)POLICY NO\.|PROPOSAL NO\.`)
	proposalHeaderRe  = regexp.MustCompile(`(?i)PROPOSAL NO\.`)
	columnHeaderRe    = regexp.MustCompile(`(?i)NO\. HOLDER POLICY TYPE`)
	payDateShapeRe    = regexp.MustCompile(`^\d{2}/\d{2}/\d{4}$`)
	bareYearRe        = regexp.MustCompile(`^\d{4}$`)
	nameTokenRe       = regexp.MustCompile(`^[A-Za-z]+(?:[-'][A-Za-z]+)*$`)
	splitYearRe       = regexp.MustCompile(`^-? ?(\d{2})\s+(.*)`)
	allDigitsRe       = regexp.MustCompile(`^\d+$`)
)

// StatementParser extracts premium/commission line items from a commission
// statement dump. Rows live in table sections that open with a POLICY NO. or
// PROPOSAL NO. header (data starts two lines below it) and close at the
// first summary or structural line.
type StatementParser struct{}

func NewStatementParser() *StatementParser { return &StatementParser{} }

func (p *StatementParser) Parse(lines []string) (*Result, error) {
	meta := ExtractMeta(lines)
	res := &Result{Kind: models.DocStatement, Meta: meta}

	i := 0
	for i < len(lines) {
		if !statementHeaderRe.MatchString(lines[i]) {
			i++
			continue
		}
		isProposal := proposalHeaderRe.MatchString(lines[i])
		// Data rows start two lines below the section header.
		j := i + 2
		for j < len(lines) {
			rowline := strings.TrimSpace(lines[j])
			if isSectionEnd(rowline) {
				break
			}
			rec, ok := parseStatementRow(rowline, isProposal, meta)
			if ok {
				res.Statements = append(res.Statements, rec)
			} else {
				res.Skipped++
			}
			j++
		}
		i = j
	}
	return res, nil
}

func isSectionEnd(rowline string) bool {
	if rowline == "" {
		return true
	}
	upper := strings.ToUpper(rowline)
	switch {
	case strings.HasPrefix(upper, "POLICY COUNT"),
		strings.HasPrefix(upper, "PREMIUM"),
		strings.HasPrefix(upper, "TOTAL"),
		strings.HasPrefix(upper, "PROPOSAL COUNT"),
		strings.HasPrefix(upper, "PROPOSALS"),
		strings.HasPrefix(rowline, "*** END OF FILE ***"):
		return true
	}
	if bareYearRe.MatchString(rowline) {
		return true
	}
	return columnHeaderRe.MatchString(rowline)
}

func isValidPolicyNo(policyNo string) bool {
	policyNo = strings.TrimSpace(policyNo)
	if policyNo == "" {
		return false
	}
	// A leading date means the columns slid; a *** prefix is a redaction.
	if payDateShapeRe.MatchString(policyNo) {
		return false
	}
	return !strings.HasPrefix(policyNo, "***")
}

// parseNamesAndPolicy walks tokens after the policy number until it hits the
// policy type code, collecting up to three name tokens on the way. Returns
// the index of the first positional field after the type code. When no type
// code is found the row has no name section and fields start at token 1.
func parseNamesAndPolicy(parts []string) (holder, surname, otherName, policyType string, idx int) {
	policyIdx := -1
	for i, p := range parts {
		if policyTypes[p] {
			policyIdx = i
			break
		}
	}
	if policyIdx < 2 {
		return "", "", "", "", 1
	}
	var nameTokens []string
	for _, t := range parts[1:policyIdx] {
		switch {
		case nameTokenRe.MatchString(t):
			nameTokens = append(nameTokens, t)
		case t == "-" || t == "–" || t == "/" || t == ".":
			continue
		default:
			goto done
		}
	}
done:
	for len(nameTokens) < 3 {
		nameTokens = append(nameTokens, "")
	}
	return nameTokens[0], nameTokens[1], nameTokens[2], parts[policyIdx], policyIdx + 1
}

// mergeSplitInception repairs rows where the inception year broke off into
// the agent-name tail ("12-Jun" + "- 25 NAME" becomes "12-Jun-25" + "NAME").
func mergeSplitInception(inception, agentName string) (string, string) {
	agentName = strings.TrimSpace(agentName)
	inception = strings.TrimSpace(inception)
	m := splitYearRe.FindStringSubmatch(agentName)
	if m == nil {
		return inception, agentName
	}
	yy, name := m[1], m[2]
	if inception != "" && !strings.HasSuffix(inception, "-"+yy) {
		inception = inception + "-" + yy
	}
	return inception, name
}

func parseStatementRow(rowline string, isProposal bool, meta DocumentMeta) (models.StatementRecord, bool) {
	parts := strings.Fields(rowline)
	if len(parts) < 7 {
		return models.StatementRecord{}, false
	}
	policyNo := parts[0]
	if !isValidPolicyNo(policyNo) {
		return models.StatementRecord{}, false
	}
	holder, surname, otherName, policyType, idx := parseNamesAndPolicy(parts)
	rowData := parts[idx:]
	// Proposal sections omit the term column; align by injecting a zero.
	if isProposal && len(rowData) > 0 && !allDigitsRe.MatchString(rowData[0]) {
		rowData = append([]string{"0"}, rowData...)
	}
	field := func(n int) string {
		if n < len(rowData) {
			return rowData[n]
		}
		return ""
	}
	term, payDate, receiptNo := field(0), field(1), field(2)
	premiumRaw, comRateRaw, comAmtRaw := field(3), field(4), field(5)

	var inceptionRaw, agentName string
	if len(rowData) > 6 {
		rest := strings.Join(rowData[6:], " ")
		if tok, end := FindDateToken(rest); end >= 0 {
			inceptionRaw = tok
			agentName = strings.TrimSpace(rest[end:])
		} else {
			agentName = strings.TrimSpace(rest)
		}
	} else {
		// Columns collapsed into the amount token; search past it.
		if pos := strings.Index(rowline, comAmtRaw); pos != -1 {
			after := rowline[pos+len(comAmtRaw):]
			if tok, end := FindDateToken(after); end >= 0 {
				inceptionRaw = tok
				agentName = strings.TrimSpace(after[end:])
			}
		}
		if inceptionRaw == "" {
			if tok, _ := FindDateToken(rowline); tok != "" {
				inceptionRaw = tok
			}
		}
	}
	inceptionRaw, agentName = mergeSplitInception(inceptionRaw, agentName)

	return models.StatementRecord{
		AgentCode:  meta.AgentCode,
		PolicyNo:   policyNo,
		Holder:     holder,
		Surname:    surname,
		OtherName:  otherName,
		PolicyType: policyType,
		Term:       term,
		PayDate:    ParseDate(payDate),
		ReceiptNo:  receiptNo,
		Premium:    Money2(premiumRaw),
		ComRate:    Rate4(comRateRaw),
		ComAmt:     Money2(comAmtRaw),
		Inception:  ParseDate(inceptionRaw),
		AgentName:  agentName,
		Period:     meta.Period,
		LicenseNo:  meta.LicenseNo,
		RawLine:    rowline,
	}, true
}
