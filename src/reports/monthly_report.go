// Package reports builds the monthly reconciliation summary: the three-way
// commission comparison plus missing policies and audit findings.
package reports

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
	"github.com/username/icrs/backend/src/audit"
	"github.com/username/icrs/backend/src/config"
	"github.com/username/icrs/backend/src/database"
	"github.com/username/icrs/backend/src/logger"
	"github.com/username/icrs/backend/src/models"
	"github.com/username/icrs/backend/src/periods"
	"github.com/username/icrs/backend/src/services"
)

// govTaxRate is the fixed statutory tax applied to every gross column.
var govTaxRate = decimal.RequireFromString("0.10")

// ReportService assembles monthly summaries. Summaries are cached per
// (agent, period); ingestion invalidates the entry when new data lands.
type ReportService struct {
	activePolicies services.ActivePolicyService
	auditor        *audit.Service
	summaryCache   *cache.Cache
}

// NewReportService creates a new instance of ReportService. The cache must be
// the same instance handed to the ingestion service.
func NewReportService(activePolicies services.ActivePolicyService, auditor *audit.Service, summaryCache *cache.Cache) *ReportService {
	return &ReportService{
		activePolicies: activePolicies,
		auditor:        auditor,
		summaryCache:   summaryCache,
	}
}

// MonthlySummary builds the full reconciliation view for an agent and a
// period label (any canonicalizable form).
func (s *ReportService) MonthlySummary(agentCode, periodLabel string) (*models.MonthlySummary, error) {
	period, err := periods.Canonicalize(periodLabel)
	if err != nil {
		return nil, err
	}

	cacheKey := services.SummaryCacheKey(agentCode, period)
	if s.summaryCache != nil {
		if cached, found := s.summaryCache.Get(cacheKey); found {
			return cached.(*models.MonthlySummary), nil
		}
	}

	policiesReported, totalPremium, grossReported, err := statementTotals(agentCode, period.String())
	if err != nil {
		return nil, err
	}
	sched, err := latestSchedule(agentCode, period.String())
	if err != nil {
		return nil, err
	}
	grossExpected, err := expectedTotal(agentCode, period.String())
	if err != nil {
		return nil, err
	}
	terminatedCount, err := terminatedInMonth(agentCode, period.String())
	if err != nil {
		return nil, err
	}

	includeWelfare := config.Cfg == nil || config.Cfg.IncludeWelfareInDeductions
	reported := buildColumn(grossReported, sched, includeWelfare)
	paid := buildColumn(sched.Income, sched, includeWelfare)
	expected := buildColumn(grossExpected, sched, includeWelfare)

	missing, err := s.activePolicies.MissingPolicies(agentCode, period)
	if err != nil {
		return nil, err
	}
	findings, err := s.auditor.ComputeForMonth(agentCode, period)
	if err != nil {
		return nil, err
	}

	varianceAmount := reported.Net.Sub(expected.Net).Round(2)
	variancePercent := decimal.Zero
	if !expected.Net.IsZero() {
		variancePercent = varianceAmount.Div(expected.Net).Mul(decimal.NewFromInt(100)).Round(2)
	}

	summary := &models.MonthlySummary{
		AgentCode:            agentCode,
		Period:               period,
		PoliciesReported:     policiesReported,
		TerminatedInMonth:    terminatedCount,
		TotalPremiumReported: totalPremium,
		Reported:             reported,
		Paid:                 paid,
		Expected:             expected,
		Diffs: models.NetDiffs{
			ReportedMinusPaid:     reported.Net.Sub(paid.Net).Round(2),
			PaidMinusReported:     paid.Net.Sub(reported.Net).Round(2),
			ReportedMinusExpected: reported.Net.Sub(expected.Net).Round(2),
			ExpectedMinusReported: expected.Net.Sub(reported.Net).Round(2),
			PaidMinusExpected:     paid.Net.Sub(expected.Net).Round(2),
			ExpectedMinusPaid:     expected.Net.Sub(paid.Net).Round(2),
		},
		VarianceAmount:  varianceAmount,
		VariancePercent: variancePercent,
		Missing:         missing,
		Discrepancies:   findings,
		Counts:          countFindings(findings),
	}

	if s.summaryCache != nil {
		ttl := cache.DefaultExpiration
		if config.Cfg != nil && config.Cfg.SummaryCacheTTL > 0 {
			ttl = config.Cfg.SummaryCacheTTL
		}
		s.summaryCache.Set(cacheKey, summary, ttl)
	}
	logger.L.Debug("Monthly summary built", "agent", agentCode, "period", period.String(),
		"missing", len(missing), "findings", len(findings))
	return summary, nil
}

// buildColumn applies the shared tax and deduction model to one gross figure:
// tax is 10% of the column's own gross, the itemized deductions come from the
// schedule and are shared across all three columns.
func buildColumn(gross decimal.Decimal, sched scheduleFigures, includeWelfare bool) models.CommissionColumn {
	tax := gross.Mul(govTaxRate).Round(2)
	totalDeductions := tax.Add(sched.Siclase).Add(sched.PremiumDeduction).Add(sched.Pensions)
	if includeWelfare {
		totalDeductions = totalDeductions.Add(sched.Welfareko)
	}
	totalDeductions = totalDeductions.Round(2)
	return models.CommissionColumn{
		Gross:            gross.Round(2),
		GovTax:           tax,
		Siclase:          sched.Siclase,
		PremiumDeduction: sched.PremiumDeduction,
		Pensions:         sched.Pensions,
		Welfareko:        sched.Welfareko,
		TotalDeductions:  totalDeductions,
		Net:              gross.Round(2).Sub(totalDeductions).Round(2),
	}
}

func countFindings(findings []models.Discrepancy) models.DiscrepancyCounts {
	var c models.DiscrepancyCounts
	for _, d := range findings {
		switch d.Kind {
		case models.DiscMultipleEntries:
			c.MultipleEntries++
		case models.DiscInceptionFirstSeen:
			c.InceptionFirstSeen++
		case models.DiscArrearsSuspect:
			c.ArrearsSuspect++
		case models.DiscShouldBeTerminated:
			c.ShouldBeTerminated++
		}
		c.Total++
	}
	return c
}

// scheduleFigures is the deduction breakdown from the latest schedule batch.
type scheduleFigures struct {
	Income           decimal.Decimal
	Siclase          decimal.Decimal
	PremiumDeduction decimal.Decimal
	Pensions         decimal.Decimal
	Welfareko        decimal.Decimal
}

// statementTotals sums the reported premium and commission over the month's
// statement rows. Sums run in decimal space; the stored text values are never
// coerced through floats.
func statementTotals(agentCode, periodKey string) (int, decimal.Decimal, decimal.Decimal, error) {
	rows, err := database.DB.Query(`
		SELECT premium, com_amt FROM statement
		WHERE agent_code = ? AND period_key = ?`,
		agentCode, periodKey,
	)
	if err != nil {
		return 0, decimal.Zero, decimal.Zero, fmt.Errorf("loading statement totals: %w", err)
	}
	defer rows.Close()

	count := 0
	totalPremium, totalCom := decimal.Zero, decimal.Zero
	for rows.Next() {
		var premium, comAmt string
		if err := rows.Scan(&premium, &comAmt); err != nil {
			return 0, decimal.Zero, decimal.Zero, fmt.Errorf("scanning statement totals: %w", err)
		}
		count++
		if d, err := decimal.NewFromString(premium); err == nil {
			totalPremium = totalPremium.Add(d)
		}
		if d, err := decimal.NewFromString(comAmt); err == nil {
			totalCom = totalCom.Add(d)
		}
	}
	return count, totalPremium, totalCom, rows.Err()
}

// latestSchedule returns the most recently ingested schedule figures for the
// month. A missing schedule yields zero figures, not an error.
func latestSchedule(agentCode, periodKey string) (scheduleFigures, error) {
	row := database.DB.QueryRow(`
		SELECT COALESCE(income, ''), COALESCE(siclase, ''), COALESCE(premium_deduction, ''),
		       COALESCE(pensions, ''), COALESCE(welfareko, '')
		FROM schedule
		WHERE agent_code = ? AND period_key = ?
		ORDER BY upload_id DESC
		LIMIT 1`,
		agentCode, periodKey,
	)
	var income, siclase, premDed, pensions, welfareko string
	err := row.Scan(&income, &siclase, &premDed, &pensions, &welfareko)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return scheduleFigures{}, nil
		}
		return scheduleFigures{}, fmt.Errorf("loading schedule figures: %w", err)
	}
	dec := func(s string) decimal.Decimal {
		d, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Zero
		}
		return d
	}
	return scheduleFigures{
		Income:           dec(income),
		Siclase:          dec(siclase),
		PremiumDeduction: dec(premDed),
		Pensions:         dec(pensions),
		Welfareko:        dec(welfareko),
	}, nil
}

// terminatedInMonth counts the distinct policies with a termination recorded
// in this exact reporting month.
func terminatedInMonth(agentCode, periodKey string) (int, error) {
	var n int
	err := database.DB.QueryRow(`
		SELECT COUNT(DISTINCT policy_no) FROM terminated
		WHERE agent_code = ? AND period_key = ?`,
		agentCode, periodKey,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting terminations: %w", err)
	}
	return n, nil
}

// expectedTotal sums stored expected commission aggregates for the month.
func expectedTotal(agentCode, periodKey string) (decimal.Decimal, error) {
	rows, err := database.DB.Query(`
		SELECT expected_amount FROM expected_commissions
		WHERE agent_code = ? AND period = ?`,
		agentCode, periodKey,
	)
	if err != nil {
		return decimal.Zero, fmt.Errorf("loading expected totals: %w", err)
	}
	defer rows.Close()

	total := decimal.Zero
	for rows.Next() {
		var amount string
		if err := rows.Scan(&amount); err != nil {
			return decimal.Zero, fmt.Errorf("scanning expected amount: %w", err)
		}
		if d, err := decimal.NewFromString(amount); err == nil {
			total = total.Add(d)
		}
	}
	return total, rows.Err()
}
