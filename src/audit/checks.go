// Package audit runs the discrepancy checks over a month's statement rows.
// The checks are pure functions over in-memory record sets; the Service
// wrapper loads inputs from the database and persists findings.
package audit

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/username/icrs/backend/src/models"
	"github.com/username/icrs/backend/src/parsers"
	"github.com/username/icrs/backend/src/periods"
)

// policyGroup is the per-policy aggregate the checks operate on.
type policyGroup struct {
	policyNo     string
	entries      int
	totalPremium decimal.Decimal
	maxInception time.Time
	minPayDate   time.Time
}

func groupByPolicy(rows []models.StatementRecord) []policyGroup {
	byPolicy := make(map[string]*policyGroup)
	for _, r := range rows {
		if r.PolicyNo == "" {
			continue
		}
		g, ok := byPolicy[r.PolicyNo]
		if !ok {
			g = &policyGroup{policyNo: r.PolicyNo}
			byPolicy[r.PolicyNo] = g
		}
		g.entries++
		g.totalPremium = g.totalPremium.Add(r.Premium)
		if !r.Inception.IsZero() && r.Inception.After(g.maxInception) {
			g.maxInception = r.Inception
		}
		if !r.PayDate.IsZero() && (g.minPayDate.IsZero() || r.PayDate.Before(g.minPayDate)) {
			g.minPayDate = r.PayDate
		}
	}
	groups := make([]policyGroup, 0, len(byPolicy))
	for _, g := range byPolicy {
		groups = append(groups, *g)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].policyNo < groups[j].policyNo })
	return groups
}

// CheckDuplicates flags policies appearing more than once in the month's rows.
func CheckDuplicates(agentCode string, period periods.Period, rows []models.StatementRecord) []models.Discrepancy {
	var out []models.Discrepancy
	for _, g := range groupByPolicy(rows) {
		if g.entries < 2 {
			continue
		}
		out = append(out, models.Discrepancy{
			AgentCode: agentCode,
			PolicyNo:  g.policyNo,
			Period:    period,
			Kind:      models.DiscMultipleEntries,
			Severity:  models.SeverityMedium,
			Notes:     fmt.Sprintf("entries=%d", g.entries),
		})
	}
	return out
}

// CheckInceptionConsistency flags policies whose latest stated inception date
// disagrees with the earliest pay date on record. history spans all of the
// agent's rows, not just the current month.
func CheckInceptionConsistency(agentCode string, period periods.Period, history []models.StatementRecord) []models.Discrepancy {
	var out []models.Discrepancy
	for _, g := range groupByPolicy(history) {
		if g.maxInception.IsZero() || g.minPayDate.IsZero() {
			continue
		}
		if g.maxInception.Equal(g.minPayDate) {
			continue
		}
		out = append(out, models.Discrepancy{
			AgentCode: agentCode,
			PolicyNo:  g.policyNo,
			Period:    period,
			Kind:      models.DiscInceptionFirstSeen,
			Severity:  models.SeverityHigh,
			Notes: fmt.Sprintf("inception=%s,first_seen=%s",
				parsers.ISODate(g.maxInception), parsers.ISODate(g.minPayDate)),
		})
	}
	return out
}

// CheckArrears flags policies with repeated entries and a non-trivial summed
// premium. Repeated rows in one month usually mean back-premiums were
// collected, so the summed premium is carried as the diff amount. This is a
// heuristic signal, not a certainty.
func CheckArrears(agentCode string, period periods.Period, rows []models.StatementRecord) []models.Discrepancy {
	var out []models.Discrepancy
	for _, g := range groupByPolicy(rows) {
		if g.entries < 2 || !g.totalPremium.IsPositive() {
			continue
		}
		out = append(out, models.Discrepancy{
			AgentCode:  agentCode,
			PolicyNo:   g.policyNo,
			Period:     period,
			Kind:       models.DiscArrearsSuspect,
			Severity:   models.SeverityMedium,
			DiffAmount: g.totalPremium,
			Notes:      fmt.Sprintf("entries=%d,sum_premium=%s", g.entries, g.totalPremium.StringFixed(2)),
		})
	}
	return out
}

// CheckShouldBeTerminated flags policies that appear in the month's rows
// despite a termination recorded at or before the period. terminatedBy maps
// policy numbers to the period each termination was recorded in.
func CheckShouldBeTerminated(agentCode string, period periods.Period, rows []models.StatementRecord, terminatedBy map[string]periods.Period) []models.Discrepancy {
	var out []models.Discrepancy
	for _, g := range groupByPolicy(rows) {
		if _, ok := terminatedBy[g.policyNo]; !ok {
			continue
		}
		out = append(out, models.Discrepancy{
			AgentCode: agentCode,
			PolicyNo:  g.policyNo,
			Period:    period,
			Kind:      models.DiscShouldBeTerminated,
			Severity:  models.SeverityHigh,
			Notes:     "Appears after termination recorded earlier/equal to month",
		})
	}
	return out
}

// RunChecks executes the four checks and concatenates their findings.
// rows is the current month's statement rows; history is the agent's full
// statement history; terminatedBy holds terminations at or before period.
func RunChecks(agentCode string, period periods.Period, rows, history []models.StatementRecord, terminatedBy map[string]periods.Period) []models.Discrepancy {
	var out []models.Discrepancy
	out = append(out, CheckDuplicates(agentCode, period, rows)...)
	out = append(out, CheckInceptionConsistency(agentCode, period, history)...)
	out = append(out, CheckArrears(agentCode, period, rows)...)
	out = append(out, CheckShouldBeTerminated(agentCode, period, rows, terminatedBy)...)
	return out
}
