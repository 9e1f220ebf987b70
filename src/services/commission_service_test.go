package services

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/icrs/backend/src/database"
	"github.com/username/icrs/backend/src/models"
	"github.com/username/icrs/backend/src/periods"
	"github.com/username/icrs/backend/src/processors"
)

func TestRuleServiceReplaceAndLoad(t *testing.T) {
	setupTestDB(t)
	rs := NewRuleService()

	rules := []models.CommissionRule{
		{
			PolicyType:    "GGG",
			PolicyName:    "Golden Life",
			MonthFrom:     1,
			MonthTo:       12,
			Percent:       decimal.RequireFromString("25"),
			EffectiveFrom: time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			PolicyType: "EDU",
			MonthFrom:  1,
			MonthTo:    12,
			Percent:    decimal.RequireFromString("20"),
		},
	}
	n, err := rs.ReplaceRules(rules)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	loaded, err := rs.LoadRules()
	require.NoError(t, err)
	require.Len(t, loaded, 2)

	// Ordered by policy type, then tenure bucket.
	assert.Equal(t, "EDU", loaded[0].PolicyType)
	assert.True(t, loaded[0].EffectiveFrom.IsZero())
	assert.Equal(t, "GGG", loaded[1].PolicyType)
	assert.Equal(t, "Golden Life", loaded[1].PolicyName)
	assert.Equal(t, 1, loaded[1].MonthFrom)
	assert.Equal(t, 12, loaded[1].MonthTo)
	assert.Equal(t, "25.0000", loaded[1].Percent.StringFixed(4))
	assert.Equal(t, time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC), loaded[1].EffectiveFrom)

	// Replacement is total, not additive.
	n, err = rs.ReplaceRules(rules[:1])
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	loaded, err = rs.LoadRules()
	require.NoError(t, err)
	assert.Len(t, loaded, 1)
}

func TestCommissionServiceComputeAndStore(t *testing.T) {
	setupTestDB(t)

	rs := NewRuleService()
	_, err := rs.ReplaceRules([]models.CommissionRule{{
		PolicyType: "GGG",
		MonthFrom:  1,
		MonthTo:    9999,
		Percent:    decimal.RequireFromString("25"),
	}})
	require.NoError(t, err)

	up := seedUpload(t, "12345", "STATEMENT", "2025-06")
	seedStatementRow(t, up, "12345", "P001", "2025-06", "120.00", "0.0000", "2025-06-01", "2025-06-01")
	seedStatementRow(t, up, "12345", "P002", "2025-06", "80.00", "0.0000", "2025-06-02", "2025-06-01")

	svc := NewCommissionService(processors.NewCommissionProcessor(), rs, NewActivePolicyService())
	out, err := svc.ComputeAndStore(up)
	require.NoError(t, err)

	require.Len(t, out, 1)
	assert.Equal(t, "12345", out[0].AgentCode)
	assert.Equal(t, periods.Make(2025, time.June), out[0].Period)
	assert.Equal(t, "50.00", out[0].Amount.StringFixed(2))
	assert.Equal(t, fmt.Sprintf("dynamic; rules=1; upload_id=%d", up), out[0].CalcBasis)

	assert.Equal(t, 1, countRows(t, `SELECT COUNT(*) FROM expected_commissions`))

	// Recomputation overwrites rather than duplicating the aggregate.
	_, err = svc.ComputeAndStore(up)
	require.NoError(t, err)
	assert.Equal(t, 1, countRows(t, `SELECT COUNT(*) FROM expected_commissions`))

	var amount string
	require.NoError(t, database.DB.QueryRow(
		`SELECT expected_amount FROM expected_commissions WHERE agent_code = ? AND period = ?`,
		"12345", "2025-06",
	).Scan(&amount))
	assert.Equal(t, "50.00", amount)
}

func TestCommissionServiceNoRowsForUpload(t *testing.T) {
	setupTestDB(t)

	svc := NewCommissionService(processors.NewCommissionProcessor(), NewRuleService(), NewActivePolicyService())
	out, err := svc.ComputeAndStore(999)
	require.NoError(t, err)
	assert.Empty(t, out)
}
