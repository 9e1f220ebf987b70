package reports

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/icrs/backend/src/audit"
	"github.com/username/icrs/backend/src/config"
	"github.com/username/icrs/backend/src/database"
	"github.com/username/icrs/backend/src/logger"
	"github.com/username/icrs/backend/src/periods"
	"github.com/username/icrs/backend/src/services"
)

func setupTestDB(t *testing.T) {
	t.Helper()
	if logger.L == nil {
		logger.InitLogger("error")
	}
	if database.DB != nil {
		database.DB.Close()
	}
	database.InitDB(":memory:")
	database.RunMigrations()
}

func newTestReportService(summaryCache *cache.Cache) *ReportService {
	return NewReportService(services.NewActivePolicyService(), audit.NewService(), summaryCache)
}

func seedUpload(t *testing.T, agentCode, docType, periodKey string) int64 {
	t.Helper()
	res, err := database.DB.Exec(`
		INSERT INTO uploads (agent_code, doc_type, period_key, content_digest, is_active)
		VALUES (?, ?, ?, ?, 0)`,
		agentCode, docType, periodKey, uuid.NewString(),
	)
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return id
}

func seedStatementRow(t *testing.T, uploadID int64, agentCode, policyNo, periodKey, premium, comAmt string) {
	t.Helper()
	_, err := database.DB.Exec(`
		INSERT INTO statement (row_sig, upload_id, agent_code, policy_no, policy_type, premium, com_rate, com_amt, pay_date, inception, period_key)
		VALUES (?, ?, ?, ?, 'GGG', ?, '10.0000', ?, ?, '', ?)`,
		uuid.NewString(), uploadID, agentCode, policyNo, premium, comAmt, periodKey+"-01", periodKey,
	)
	require.NoError(t, err)
}

func seedScheduleRow(t *testing.T, uploadID int64, agentCode, periodKey, income, siclase, premDed, pensions, welfareko string) {
	t.Helper()
	_, err := database.DB.Exec(`
		INSERT INTO schedule (upload_id, agent_code, period_key, income, siclase, premium_deduction, pensions, welfareko)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		uploadID, agentCode, periodKey, income, siclase, premDed, pensions, welfareko,
	)
	require.NoError(t, err)
}

func seedTerminatedRow(t *testing.T, uploadID int64, agentCode, policyNo, periodKey string) {
	t.Helper()
	_, err := database.DB.Exec(`
		INSERT INTO terminated (row_sig, upload_id, agent_code, policy_no, period_key)
		VALUES (?, ?, ?, ?, ?)`,
		uuid.NewString(), uploadID, agentCode, policyNo, periodKey,
	)
	require.NoError(t, err)
}

func seedExpected(t *testing.T, agentCode, periodKey, amount string, uploadID int64) {
	t.Helper()
	_, err := database.DB.Exec(`
		INSERT INTO expected_commissions (agent_code, period, expected_amount, upload_id)
		VALUES (?, ?, ?, ?)`,
		agentCode, periodKey, amount, uploadID,
	)
	require.NoError(t, err)
}

func seedJuneData(t *testing.T) {
	may := seedUpload(t, "12345", "STATEMENT", "2025-05")
	seedStatementRow(t, may, "12345", "P001", "2025-05", "100.00", "20.00")
	seedStatementRow(t, may, "12345", "P003", "2025-05", "60.00", "6.00")

	jun := seedUpload(t, "12345", "STATEMENT", "2025-06")
	seedStatementRow(t, jun, "12345", "P001", "2025-06", "100.00", "20.00")
	seedStatementRow(t, jun, "12345", "P002", "2025-06", "50.00", "5.00")

	sched := seedUpload(t, "12345", "SCHEDULE", "2025-06")
	seedScheduleRow(t, sched, "12345", "2025-06", "30.00", "2.00", "3.00", "1.00", "4.00")

	term := seedUpload(t, "12345", "TERMINATED", "2025-06")
	seedTerminatedRow(t, term, "12345", "P009", "2025-06")

	seedExpected(t, "12345", "2025-06", "28.00", jun)
}

func TestMonthlySummary(t *testing.T) {
	setupTestDB(t)
	seedJuneData(t)

	svc := newTestReportService(nil)
	sum, err := svc.MonthlySummary("12345", "Jun 2025")
	require.NoError(t, err)

	assert.Equal(t, "12345", sum.AgentCode)
	assert.Equal(t, periods.Make(2025, time.June), sum.Period)
	assert.Equal(t, 2, sum.PoliciesReported)
	assert.Equal(t, 1, sum.TerminatedInMonth)
	assert.Equal(t, "150.00", sum.TotalPremiumReported.StringFixed(2))

	// Tax is 10% of each column's own gross; the itemized deductions
	// (2 + 3 + 1 + 4 = 10) come from the schedule and are shared.
	assert.Equal(t, "25.00", sum.Reported.Gross.StringFixed(2))
	assert.Equal(t, "2.50", sum.Reported.GovTax.StringFixed(2))
	assert.Equal(t, "12.50", sum.Reported.TotalDeductions.StringFixed(2))
	assert.Equal(t, "12.50", sum.Reported.Net.StringFixed(2))

	assert.Equal(t, "30.00", sum.Paid.Gross.StringFixed(2))
	assert.Equal(t, "3.00", sum.Paid.GovTax.StringFixed(2))
	assert.Equal(t, "17.00", sum.Paid.Net.StringFixed(2))

	assert.Equal(t, "28.00", sum.Expected.Gross.StringFixed(2))
	assert.Equal(t, "2.80", sum.Expected.GovTax.StringFixed(2))
	assert.Equal(t, "15.20", sum.Expected.Net.StringFixed(2))

	assert.Equal(t, "-4.50", sum.Diffs.ReportedMinusPaid.StringFixed(2))
	assert.Equal(t, "4.50", sum.Diffs.PaidMinusReported.StringFixed(2))
	assert.Equal(t, "-2.70", sum.Diffs.ReportedMinusExpected.StringFixed(2))
	assert.Equal(t, "2.70", sum.Diffs.ExpectedMinusReported.StringFixed(2))
	assert.Equal(t, "1.80", sum.Diffs.PaidMinusExpected.StringFixed(2))
	assert.Equal(t, "-1.80", sum.Diffs.ExpectedMinusPaid.StringFixed(2))

	assert.Equal(t, "-2.70", sum.VarianceAmount.StringFixed(2))
	assert.Equal(t, "-17.76", sum.VariancePercent.StringFixed(2))

	// P003 was on the May statement, is not terminated and is absent in June.
	require.Len(t, sum.Missing, 1)
	assert.Equal(t, "P003", sum.Missing[0].PolicyNo)
	assert.Equal(t, periods.Make(2025, time.May), sum.Missing[0].LastSeenPeriod)

	assert.Empty(t, sum.Discrepancies)
	assert.Zero(t, sum.Counts.Total)
}

func TestMonthlySummaryWelfareToggle(t *testing.T) {
	setupTestDB(t)
	seedJuneData(t)

	config.Cfg = &config.AppConfig{IncludeWelfareInDeductions: false}
	defer func() { config.Cfg = nil }()

	svc := newTestReportService(nil)
	sum, err := svc.MonthlySummary("12345", "2025-06")
	require.NoError(t, err)

	// Welfareko (4.00) drops out of every column's deduction total.
	assert.Equal(t, "8.50", sum.Reported.TotalDeductions.StringFixed(2))
	assert.Equal(t, "16.50", sum.Reported.Net.StringFixed(2))
	assert.Equal(t, "4.00", sum.Reported.Welfareko.StringFixed(2))
}

func TestMonthlySummaryEmbedsFreshFindings(t *testing.T) {
	setupTestDB(t)

	jun := seedUpload(t, "12345", "STATEMENT", "2025-06")
	seedStatementRow(t, jun, "12345", "P001", "2025-06", "40.00", "4.00")
	seedStatementRow(t, jun, "12345", "P001", "2025-06", "40.00", "4.00")

	svc := newTestReportService(nil)
	sum, err := svc.MonthlySummary("12345", "2025-06")
	require.NoError(t, err)

	assert.Equal(t, 1, sum.Counts.MultipleEntries)
	assert.Equal(t, 1, sum.Counts.ArrearsSuspect)
	assert.Equal(t, 2, sum.Counts.Total)
	assert.Len(t, sum.Discrepancies, 2)
}

func TestMonthlySummaryCaches(t *testing.T) {
	setupTestDB(t)
	seedJuneData(t)

	summaryCache := cache.New(time.Minute, time.Minute)
	svc := newTestReportService(summaryCache)

	first, err := svc.MonthlySummary("12345", "2025-06")
	require.NoError(t, err)
	second, err := svc.MonthlySummary("12345", "Jun 2025")
	require.NoError(t, err)
	assert.Same(t, first, second)

	// An invalidated entry forces a rebuild.
	summaryCache.Delete(services.SummaryCacheKey("12345", periods.Make(2025, time.June)))
	third, err := svc.MonthlySummary("12345", "2025-06")
	require.NoError(t, err)
	assert.NotSame(t, first, third)
	assert.Equal(t, first.Reported.Net.StringFixed(2), third.Reported.Net.StringFixed(2))
}

func TestMonthlySummaryEmptyMonth(t *testing.T) {
	setupTestDB(t)

	svc := newTestReportService(nil)
	sum, err := svc.MonthlySummary("12345", "2025-06")
	require.NoError(t, err)

	assert.Zero(t, sum.PoliciesReported)
	assert.True(t, sum.Reported.Net.IsZero())
	assert.True(t, sum.Paid.Net.IsZero())
	assert.True(t, sum.Expected.Net.IsZero())
	assert.True(t, sum.VariancePercent.IsZero())
	assert.Empty(t, sum.Missing)
}

func TestMonthlySummaryRejectsBadPeriod(t *testing.T) {
	setupTestDB(t)

	svc := newTestReportService(nil)
	_, err := svc.MonthlySummary("12345", "not-a-month")
	assert.ErrorIs(t, err, periods.ErrInvalidPeriod)
}
