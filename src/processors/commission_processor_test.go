package processors

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/icrs/backend/src/models"
	"github.com/username/icrs/backend/src/periods"
)

func rule(policyType string, from, to int, percent string) models.CommissionRule {
	return models.CommissionRule{
		PolicyType: policyType,
		MonthFrom:  from,
		MonthTo:    to,
		Percent:    decimal.RequireFromString(percent),
	}
}

func testRules() []models.CommissionRule {
	return []models.CommissionRule{
		rule("GGG", 1, 12, "25"),
		rule("GGG", 13, 24, "10"),
		rule("GGG", 25, 9999, "2.5"),
		rule("EDU", 1, 12, "20"),
	}
}

func statementRow(policyNo, policyType, premium, comRate string, inception time.Time) models.StatementRecord {
	return models.StatementRecord{
		AgentCode:  "12345",
		PolicyNo:   policyNo,
		PolicyType: policyType,
		Premium:    decimal.RequireFromString(premium),
		ComRate:    decimal.RequireFromString(comRate),
		Inception:  inception,
		Period:     periods.Make(2025, time.June),
	}
}

func TestComputeExpectedTenureFromInception(t *testing.T) {
	p := NewCommissionProcessor()

	// May 2024 to June 2025 is month 14 of the policy: the 13-24 bucket.
	row := statementRow("P001", "GGG", "120.00", "0", time.Date(2024, time.May, 15, 0, 0, 0, 0, time.UTC))
	out := p.ComputeExpected([]models.StatementRecord{row}, testRules(), nil, 7)

	require.Len(t, out, 1)
	assert.Equal(t, "12345", out[0].AgentCode)
	assert.Equal(t, periods.Make(2025, time.June), out[0].Period)
	assert.Equal(t, "12.00", out[0].Amount.StringFixed(2))
	assert.Equal(t, "dynamic; rules=4; upload_id=7", out[0].CalcBasis)
	assert.Equal(t, int64(7), out[0].UploadID)
}

func TestComputeExpectedInceptionMonthCountsAsOne(t *testing.T) {
	p := NewCommissionProcessor()

	// Incepted inside the reporting month: tenure 1, first bucket at 25%.
	row := statementRow("P001", "GGG", "100.00", "0", time.Date(2025, time.June, 3, 0, 0, 0, 0, time.UTC))
	out := p.ComputeExpected([]models.StatementRecord{row}, testRules(), nil, 1)

	require.Len(t, out, 1)
	assert.Equal(t, "25.00", out[0].Amount.StringFixed(2))
}

func TestComputeExpectedRateReverseMatch(t *testing.T) {
	p := NewCommissionProcessor()

	// No inception on the row; the literal 10% rate pins the 13-24 rule.
	row := statementRow("P002", "GGG", "80.00", "10.0000", time.Time{})
	out := p.ComputeExpected([]models.StatementRecord{row}, testRules(), nil, 1)

	require.Len(t, out, 1)
	assert.Equal(t, "8.00", out[0].Amount.StringFixed(2))
}

func TestComputeExpectedFirstSeenFallback(t *testing.T) {
	p := NewCommissionProcessor()

	// No inception and no usable rate: the snapshot first-seen date stands in.
	row := statementRow("P003", "GGG", "200.00", "0", time.Time{})
	firstSeen := map[string]time.Time{
		"P003": time.Date(2022, time.June, 1, 0, 0, 0, 0, time.UTC), // month 37
	}
	out := p.ComputeExpected([]models.StatementRecord{row}, testRules(), firstSeen, 1)

	require.Len(t, out, 1)
	assert.Equal(t, "5.00", out[0].Amount.StringFixed(2))
}

func TestComputeExpectedZeroWhenNoTierMatches(t *testing.T) {
	p := NewCommissionProcessor()

	row := statementRow("P004", "FNN", "500.00", "0", time.Time{})
	out := p.ComputeExpected([]models.StatementRecord{row}, testRules(), nil, 1)

	require.Len(t, out, 1)
	assert.True(t, out[0].Amount.IsZero())
}

func TestComputeExpectedInceptionBeatsRateMatch(t *testing.T) {
	p := NewCommissionProcessor()

	// Tenure says bucket one (25%) even though the printed rate matches the
	// 13-24 rule; the inception tier wins.
	row := statementRow("P005", "GGG", "100.00", "10.0000", time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC))
	out := p.ComputeExpected([]models.StatementRecord{row}, testRules(), nil, 1)

	require.Len(t, out, 1)
	assert.Equal(t, "25.00", out[0].Amount.StringFixed(2))
}

func TestComputeExpectedSkipsRowsWithoutKey(t *testing.T) {
	p := NewCommissionProcessor()

	noPeriod := statementRow("P006", "GGG", "100.00", "0", time.Time{})
	noPeriod.Period = periods.Period{}
	noAgent := statementRow("P007", "GGG", "100.00", "0", time.Time{})
	noAgent.AgentCode = "  "
	noPolicy := statementRow("", "GGG", "100.00", "0", time.Time{})

	out := p.ComputeExpected([]models.StatementRecord{noPeriod, noAgent, noPolicy}, testRules(), nil, 1)
	assert.Empty(t, out)
}

func TestComputeExpectedAggregatesAndSorts(t *testing.T) {
	p := NewCommissionProcessor()

	incept := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
	a := statementRow("P010", "GGG", "100.00", "0", incept) // 25.00
	b := statementRow("P011", "EDU", "50.00", "0", incept)  // 10.00
	c := statementRow("P012", "GGG", "40.00", "0", incept)  // 10.00
	c.AgentCode = "00001"

	out := p.ComputeExpected([]models.StatementRecord{a, b, c}, testRules(), nil, 1)
	require.Len(t, out, 2)
	assert.Equal(t, "00001", out[0].AgentCode)
	assert.Equal(t, "10.00", out[0].Amount.StringFixed(2))
	assert.Equal(t, "12345", out[1].AgentCode)
	assert.Equal(t, "35.00", out[1].Amount.StringFixed(2))
}

func TestComputeExpectedRoundsHalfAwayFromZero(t *testing.T) {
	p := NewCommissionProcessor()

	// 0.10 at 25% is 0.025, which rounds up, not to even.
	row := statementRow("P013", "GGG", "0.10", "0", time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC))
	out := p.ComputeExpected([]models.StatementRecord{row}, testRules(), nil, 1)

	require.Len(t, out, 1)
	assert.Equal(t, "0.03", out[0].Amount.StringFixed(2))
}

func TestComputeExpectedHonorsEffectiveWindow(t *testing.T) {
	p := NewCommissionProcessor()

	expired := rule("GGG", 1, 12, "30")
	expired.EffectiveTo = time.Date(2024, time.December, 31, 0, 0, 0, 0, time.UTC)
	current := rule("GGG", 1, 12, "25")
	current.EffectiveFrom = time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)

	row := statementRow("P014", "GGG", "100.00", "0", time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC))
	out := p.ComputeExpected([]models.StatementRecord{row}, []models.CommissionRule{expired, current}, nil, 1)

	require.Len(t, out, 1)
	assert.Equal(t, "25.00", out[0].Amount.StringFixed(2))
}

func TestTenureMonths(t *testing.T) {
	end := time.Date(2025, time.June, 30, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 1, tenureMonths(time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC), end))
	assert.Equal(t, 14, tenureMonths(time.Date(2024, time.May, 20, 0, 0, 0, 0, time.UTC), end))
	assert.Equal(t, -1, tenureMonths(time.Time{}, end))
	assert.Equal(t, -1, tenureMonths(time.Date(2025, time.July, 1, 0, 0, 0, 0, time.UTC), end))
}
