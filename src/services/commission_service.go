package services

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/username/icrs/backend/src/database"
	"github.com/username/icrs/backend/src/logger"
	"github.com/username/icrs/backend/src/models"
	"github.com/username/icrs/backend/src/parsers"
	"github.com/username/icrs/backend/src/periods"
	"github.com/username/icrs/backend/src/processors"
)

type commissionServiceImpl struct {
	processor      processors.CommissionProcessor
	ruleService    RuleService
	activePolicies ActivePolicyService
}

// NewCommissionService creates a new instance of CommissionService.
func NewCommissionService(processor processors.CommissionProcessor, ruleService RuleService, activePolicies ActivePolicyService) CommissionService {
	return &commissionServiceImpl{
		processor:      processor,
		ruleService:    ruleService,
		activePolicies: activePolicies,
	}
}

// ComputeAndStore derives expected commissions for every statement row of an
// upload batch and upserts the per-(agent, period) totals. Recomputing for
// the same batch overwrites the stored amounts.
func (s *commissionServiceImpl) ComputeAndStore(uploadID int64) ([]models.ExpectedCommission, error) {
	rows, err := loadStatementRowsForUpload(uploadID)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	rules, err := s.ruleService.LoadRules()
	if err != nil {
		return nil, err
	}

	policyNos := make([]string, 0, len(rows))
	for _, r := range rows {
		policyNos = append(policyNos, r.PolicyNo)
	}
	firstSeen, err := s.activePolicies.FirstSeenDates(policyNos)
	if err != nil {
		return nil, err
	}

	expected := s.processor.ComputeExpected(rows, rules, firstSeen, uploadID)
	if len(expected) == 0 {
		return nil, nil
	}

	dbTx, err := database.DB.Begin()
	if err != nil {
		return nil, fmt.Errorf("error beginning database transaction: %w", err)
	}
	defer dbTx.Rollback()

	stmt, err := dbTx.Prepare(`
		INSERT INTO expected_commissions (agent_code, period, expected_amount, calc_basis, upload_id)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (agent_code, period, upload_id) DO UPDATE SET
			expected_amount = excluded.expected_amount,
			calc_basis = excluded.calc_basis`)
	if err != nil {
		return nil, fmt.Errorf("error preparing expected commission upsert: %w", err)
	}
	defer stmt.Close()

	for _, e := range expected {
		if _, err := stmt.Exec(e.AgentCode, e.Period.String(), e.Amount.StringFixed(2), e.CalcBasis, e.UploadID); err != nil {
			return nil, fmt.Errorf("upserting expected commission (%s, %s): %w", e.AgentCode, e.Period, err)
		}
	}
	if err := dbTx.Commit(); err != nil {
		return nil, fmt.Errorf("error committing expected commissions: %w", err)
	}

	logger.L.Info("Expected commissions stored", "uploadID", uploadID, "rows", len(rows), "aggregates", len(expected))
	return expected, nil
}

func loadStatementRowsForUpload(uploadID int64) ([]models.StatementRecord, error) {
	rows, err := database.DB.Query(`
		SELECT agent_code, policy_no, policy_type, premium, com_rate, inception, period_key
		FROM statement
		WHERE upload_id = ?`,
		uploadID,
	)
	if err != nil {
		return nil, fmt.Errorf("loading statement rows for upload %d: %w", uploadID, err)
	}
	defer rows.Close()

	var out []models.StatementRecord
	for rows.Next() {
		var r models.StatementRecord
		var premium, comRate, inception, periodKey string
		if err := rows.Scan(&r.AgentCode, &r.PolicyNo, &r.PolicyType, &premium, &comRate, &inception, &periodKey); err != nil {
			return nil, fmt.Errorf("scanning statement row: %w", err)
		}
		r.Premium, _ = decimal.NewFromString(premium)
		r.ComRate, _ = decimal.NewFromString(comRate)
		r.Inception = parsers.ParseDate(inception)
		if p, err := periods.Canonicalize(periodKey); err == nil {
			r.Period = p
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
