package models

import (
	"github.com/shopspring/decimal"
	"github.com/username/icrs/backend/src/periods"
)

// CommissionColumn is one side of the three-way commission comparison:
// a gross figure with its tax and deduction breakdown and the resulting net.
type CommissionColumn struct {
	Gross            decimal.Decimal `json:"gross"`
	GovTax           decimal.Decimal `json:"gov_tax"`
	Siclase          decimal.Decimal `json:"siclase"`
	PremiumDeduction decimal.Decimal `json:"premium_deduction"`
	Pensions         decimal.Decimal `json:"pensions"`
	Welfareko        decimal.Decimal `json:"welfareko"`
	TotalDeductions  decimal.Decimal `json:"total_deductions"`
	Net              decimal.Decimal `json:"net"`
}

// NetDiffs holds the six directed differences between the three column nets.
type NetDiffs struct {
	ReportedMinusPaid     decimal.Decimal `json:"reported_minus_paid"`
	PaidMinusReported     decimal.Decimal `json:"paid_minus_reported"`
	ReportedMinusExpected decimal.Decimal `json:"reported_minus_expected"`
	ExpectedMinusReported decimal.Decimal `json:"expected_minus_reported"`
	PaidMinusExpected     decimal.Decimal `json:"paid_minus_expected"`
	ExpectedMinusPaid     decimal.Decimal `json:"expected_minus_paid"`
}

// MissingPolicy is one entry in the missing-policy list: a policy that was
// active in the prior period, not terminated, and absent from the current one.
type MissingPolicy struct {
	PolicyNo       string          `json:"policy_no"`
	LastSeenPeriod periods.Period  `json:"last_seen_period"`
	LastPremium    decimal.Decimal `json:"last_premium"`
	LastComRate    decimal.Decimal `json:"last_com_rate"`
}

// DiscrepancyCounts summarizes audit findings for the period by kind.
type DiscrepancyCounts struct {
	MultipleEntries    int `json:"multiple_entries"`
	InceptionFirstSeen int `json:"inception_first_seen"`
	ArrearsSuspect     int `json:"arrears_suspect"`
	ShouldBeTerminated int `json:"should_be_terminated"`
	Total              int `json:"total"`
}

// MonthlySummary is the full reconciliation view for one (agent, period):
// reported (statement rows), paid (schedule) and expected (rule engine)
// commission columns, their pairwise net differences, premium variance,
// missing policies and discrepancy counts.
type MonthlySummary struct {
	AgentCode            string            `json:"agent_code"`
	Period               periods.Period    `json:"period"`
	PoliciesReported     int               `json:"policies_reported"`
	TerminatedInMonth    int               `json:"terminated_in_month"`
	TotalPremiumReported decimal.Decimal   `json:"total_premium_reported"`
	Reported             CommissionColumn  `json:"reported"`
	Paid                 CommissionColumn  `json:"paid"`
	Expected             CommissionColumn  `json:"expected"`
	Diffs                NetDiffs          `json:"diffs"`
	VarianceAmount       decimal.Decimal   `json:"variance_amount"`
	VariancePercent      decimal.Decimal   `json:"variance_percent"`
	Missing              []MissingPolicy   `json:"missing_policies"`
	Discrepancies        []Discrepancy     `json:"discrepancies"`
	Counts               DiscrepancyCounts `json:"discrepancy_counts"`
}
