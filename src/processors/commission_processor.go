package processors

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/username/icrs/backend/src/models"
	"github.com/username/icrs/backend/src/periods"
)

// rateEpsilon bounds the reverse-match between a statement's literal
// commission rate and a rule's percent column.
var rateEpsilon = decimal.RequireFromString("0.000001")

// CommissionProcessor computes expected commission amounts for statement
// rows against a dated rule set.
type CommissionProcessor interface {
	ComputeExpected(rows []models.StatementRecord, rules []models.CommissionRule, firstSeen map[string]time.Time, uploadID int64) []models.ExpectedCommission
}

type commissionProcessorImpl struct{}

// NewCommissionProcessor creates a new instance of CommissionProcessor.
func NewCommissionProcessor() CommissionProcessor {
	return &commissionProcessorImpl{}
}

// ComputeExpected derives the expected commission for every statement row and
// aggregates the amounts per (agent, period). The percent for a row comes
// from a three-tier fallback:
//
//  1. tenure from the row's inception date,
//  2. reverse match of the row's literal commission rate against the rule
//     set's percent column,
//  3. tenure from the policy's first-seen date in the active snapshot.
//
// When no tier yields a percent the row contributes zero; rows without a
// derivable period are excluded entirely since the aggregation key is
// period-shaped. firstSeen maps policy numbers to snapshot first-seen dates.
func (p *commissionProcessorImpl) ComputeExpected(rows []models.StatementRecord, rules []models.CommissionRule, firstSeen map[string]time.Time, uploadID int64) []models.ExpectedCommission {
	type aggKey struct {
		agent  string
		period periods.Period
	}
	agg := make(map[aggKey]decimal.Decimal)

	for _, r := range rows {
		agent := strings.TrimSpace(r.AgentCode)
		policyNo := strings.TrimSpace(r.PolicyNo)
		if agent == "" || policyNo == "" {
			continue
		}
		if r.Period.IsZero() {
			continue
		}
		periodEnd := r.Period.End()

		pct, ok := percentByTenure(rules, r.PolicyType, tenureMonths(r.Inception, periodEnd), periodEnd)
		if !ok {
			pct, ok = percentByRate(rules, r.PolicyType, r.ComRate, periodEnd)
		}
		if !ok {
			if fs, seen := firstSeen[policyNo]; seen {
				pct, ok = percentByTenure(rules, r.PolicyType, tenureMonths(fs, periodEnd), periodEnd)
			}
		}
		if !ok {
			pct = decimal.Zero
		}

		expected := r.Premium.Mul(pct).Div(decimal.NewFromInt(100)).Round(2)
		key := aggKey{agent: agent, period: r.Period}
		agg[key] = agg[key].Add(expected)
	}

	out := make([]models.ExpectedCommission, 0, len(agg))
	for key, amt := range agg {
		out = append(out, models.ExpectedCommission{
			AgentCode: key.agent,
			Period:    key.period,
			Amount:    amt,
			CalcBasis: fmt.Sprintf("dynamic; rules=%d; upload_id=%d", len(rules), uploadID),
			UploadID:  uploadID,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AgentCode != out[j].AgentCode {
			return out[i].AgentCode < out[j].AgentCode
		}
		return out[i].Period.Before(out[j].Period)
	})
	return out
}

// tenureMonths returns the policy age in whole months at the period end,
// counting the inception month as month 1. Returns -1 when the start date is
// missing or in the future.
func tenureMonths(start time.Time, periodEnd time.Time) int {
	if start.IsZero() || start.After(periodEnd) {
		return -1
	}
	return (periodEnd.Year()-start.Year())*12 + int(periodEnd.Month()) - int(start.Month()) + 1
}

// percentByTenure finds the first rule for the policy type whose tenure
// bucket covers ageMonths and whose effective window covers the period end.
func percentByTenure(rules []models.CommissionRule, policyType string, ageMonths int, periodEnd time.Time) (decimal.Decimal, bool) {
	if policyType == "" || ageMonths < 0 {
		return decimal.Zero, false
	}
	for _, rule := range rules {
		if !strings.EqualFold(rule.PolicyType, policyType) {
			continue
		}
		if !rule.CoversTenure(ageMonths) {
			continue
		}
		if !rule.InEffect(periodEnd) {
			continue
		}
		return rule.Percent, true
	}
	return decimal.Zero, false
}

// percentByRate reverse-matches the row's literal commission rate against the
// rule set's percent column, scoped to the policy type and effective window.
func percentByRate(rules []models.CommissionRule, policyType string, comRate decimal.Decimal, periodEnd time.Time) (decimal.Decimal, bool) {
	if comRate.IsZero() {
		return decimal.Zero, false
	}
	for _, rule := range rules {
		if !strings.EqualFold(rule.PolicyType, policyType) {
			continue
		}
		if !rule.InEffect(periodEnd) {
			continue
		}
		if rule.Percent.Sub(comRate).Abs().LessThan(rateEpsilon) {
			return rule.Percent, true
		}
	}
	return decimal.Zero, false
}
