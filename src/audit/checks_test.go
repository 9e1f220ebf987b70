package audit

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/icrs/backend/src/models"
	"github.com/username/icrs/backend/src/periods"
)

var auditPeriod = periods.Make(2025, time.June)

func row(policyNo, premium string, payDate, inception time.Time) models.StatementRecord {
	return models.StatementRecord{
		AgentCode: "12345",
		PolicyNo:  policyNo,
		Premium:   decimal.RequireFromString(premium),
		PayDate:   payDate,
		Inception: inception,
		Period:    auditPeriod,
	}
}

func TestCheckDuplicates(t *testing.T) {
	d := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
	rows := []models.StatementRecord{
		row("P001", "10.00", d, time.Time{}),
		row("P001", "10.00", d.AddDate(0, 0, 14), time.Time{}),
		row("P001", "10.00", d.AddDate(0, 0, 20), time.Time{}),
		row("P002", "10.00", d, time.Time{}),
	}

	out := CheckDuplicates("12345", auditPeriod, rows)
	require.Len(t, out, 1)
	assert.Equal(t, "P001", out[0].PolicyNo)
	assert.Equal(t, models.DiscMultipleEntries, out[0].Kind)
	assert.Equal(t, models.SeverityMedium, out[0].Severity)
	assert.Equal(t, "entries=3", out[0].Notes)
}

func TestCheckInceptionConsistency(t *testing.T) {
	payDate := time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC)
	inception := time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)
	history := []models.StatementRecord{
		// Stated inception postdates the earliest payment on record.
		row("P001", "10.00", payDate, inception),
		row("P001", "10.00", payDate.AddDate(0, 1, 0), inception),
		// Agreeing dates raise nothing.
		row("P002", "10.00", inception, inception),
		// Missing either date raises nothing.
		row("P003", "10.00", payDate, time.Time{}),
		row("P004", "10.00", time.Time{}, inception),
	}

	out := CheckInceptionConsistency("12345", auditPeriod, history)
	require.Len(t, out, 1)
	assert.Equal(t, "P001", out[0].PolicyNo)
	assert.Equal(t, models.DiscInceptionFirstSeen, out[0].Kind)
	assert.Equal(t, models.SeverityHigh, out[0].Severity)
	assert.Equal(t, "inception=2024-06-01,first_seen=2024-03-05", out[0].Notes)
}

func TestCheckArrears(t *testing.T) {
	d := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
	rows := []models.StatementRecord{
		row("P001", "40.00", d, time.Time{}),
		row("P001", "40.00", d, time.Time{}),
		// Single entry, no signal.
		row("P002", "90.00", d, time.Time{}),
		// Repeated but nets to zero, no signal.
		row("P003", "15.00", d, time.Time{}),
		row("P003", "-15.00", d, time.Time{}),
	}

	out := CheckArrears("12345", auditPeriod, rows)
	require.Len(t, out, 1)
	assert.Equal(t, "P001", out[0].PolicyNo)
	assert.Equal(t, models.DiscArrearsSuspect, out[0].Kind)
	assert.Equal(t, "80.00", out[0].DiffAmount.StringFixed(2))
	assert.Equal(t, "entries=2,sum_premium=80.00", out[0].Notes)
}

func TestCheckShouldBeTerminated(t *testing.T) {
	d := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
	rows := []models.StatementRecord{
		row("P001", "10.00", d, time.Time{}),
		row("P002", "10.00", d, time.Time{}),
	}
	terminatedBy := map[string]periods.Period{
		"P001": periods.Make(2025, time.April),
	}

	out := CheckShouldBeTerminated("12345", auditPeriod, rows, terminatedBy)
	require.Len(t, out, 1)
	assert.Equal(t, "P001", out[0].PolicyNo)
	assert.Equal(t, models.DiscShouldBeTerminated, out[0].Kind)
	assert.Equal(t, models.SeverityHigh, out[0].Severity)
	assert.Equal(t, "Appears after termination recorded earlier/equal to month", out[0].Notes)
}

func TestRunChecksConcatenatesFindings(t *testing.T) {
	d := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
	rows := []models.StatementRecord{
		row("P001", "40.00", d, time.Time{}),
		row("P001", "40.00", d, time.Time{}),
	}
	terminatedBy := map[string]periods.Period{"P001": periods.Make(2025, time.May)}

	out := RunChecks("12345", auditPeriod, rows, rows, terminatedBy)

	kinds := make(map[string]int)
	for _, f := range out {
		kinds[f.Kind]++
	}
	// Duplicate, arrears and termination findings all fire for P001.
	assert.Equal(t, 1, kinds[models.DiscMultipleEntries])
	assert.Equal(t, 1, kinds[models.DiscArrearsSuspect])
	assert.Equal(t, 1, kinds[models.DiscShouldBeTerminated])
	assert.Zero(t, kinds[models.DiscInceptionFirstSeen])
}
