package audit

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/username/icrs/backend/src/database"
	"github.com/username/icrs/backend/src/logger"
	"github.com/username/icrs/backend/src/models"
	"github.com/username/icrs/backend/src/parsers"
	"github.com/username/icrs/backend/src/periods"
)

// Service loads check inputs from the database, runs the four checks and
// persists findings. Re-running for the same month updates existing rows in
// place; discrepancies are derived data and can always be recomputed.
type Service struct{}

func NewService() *Service {
	return &Service{}
}

// ComputeForMonth runs the four checks for (agent, period) without writing
// anything, so report building can embed fresh findings.
func (s *Service) ComputeForMonth(agentCode string, period periods.Period) ([]models.Discrepancy, error) {
	rows, err := loadStatementRows(agentCode, period.String(), true)
	if err != nil {
		return nil, err
	}
	history, err := loadStatementRows(agentCode, "", false)
	if err != nil {
		return nil, err
	}
	terminatedBy, err := loadTerminations(agentCode, period.String())
	if err != nil {
		return nil, err
	}
	return RunChecks(agentCode, period, rows, history, terminatedBy), nil
}

// EmitForMonth computes and stores all discrepancies for (agent, period).
// Returns the findings that were written.
func (s *Service) EmitForMonth(agentCode string, period periods.Period) ([]models.Discrepancy, error) {
	findings, err := s.ComputeForMonth(agentCode, period)
	if err != nil {
		return nil, err
	}
	if len(findings) == 0 {
		return nil, nil
	}
	if err := s.upsert(findings); err != nil {
		return nil, err
	}
	logger.L.Info("Discrepancies emitted", "agent", agentCode, "period", period.String(), "count", len(findings))
	return findings, nil
}

// ListForMonth returns the stored discrepancies for (agent, period).
func (s *Service) ListForMonth(agentCode string, period periods.Period) ([]models.Discrepancy, error) {
	rows, err := database.DB.Query(`
		SELECT policy_no, type, severity, COALESCE(diff_amount, ''), COALESCE(notes, '')
		FROM discrepancies
		WHERE agent_code = ? AND period = ?
		ORDER BY type, policy_no`,
		agentCode, period.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("loading discrepancies: %w", err)
	}
	defer rows.Close()

	var out []models.Discrepancy
	for rows.Next() {
		d := models.Discrepancy{AgentCode: agentCode, Period: period}
		var diffAmount string
		if err := rows.Scan(&d.PolicyNo, &d.Kind, &d.Severity, &diffAmount, &d.Notes); err != nil {
			return nil, fmt.Errorf("scanning discrepancy: %w", err)
		}
		if diffAmount != "" {
			d.DiffAmount, _ = decimal.NewFromString(diffAmount)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Service) upsert(findings []models.Discrepancy) error {
	dbTx, err := database.DB.Begin()
	if err != nil {
		return fmt.Errorf("error beginning database transaction: %w", err)
	}
	defer dbTx.Rollback()

	stmt, err := dbTx.Prepare(`
		INSERT INTO discrepancies (agent_code, policy_no, period, type, severity, diff_amount, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (agent_code, policy_no, period, type) DO UPDATE SET
			severity = excluded.severity,
			diff_amount = excluded.diff_amount,
			notes = excluded.notes`)
	if err != nil {
		return fmt.Errorf("error preparing discrepancy upsert: %w", err)
	}
	defer stmt.Close()

	for _, d := range findings {
		diffAmount := ""
		if !d.DiffAmount.IsZero() {
			diffAmount = d.DiffAmount.StringFixed(2)
		}
		if _, err := stmt.Exec(d.AgentCode, d.PolicyNo, d.Period.String(), d.Kind, d.Severity, diffAmount, d.Notes); err != nil {
			return fmt.Errorf("upserting discrepancy (%s, %s): %w", d.PolicyNo, d.Kind, err)
		}
	}
	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("error committing discrepancies: %w", err)
	}
	return nil
}

// loadStatementRows fetches the fields the checks need. With scoped=true the
// query is limited to periodKey; otherwise it spans the agent's full history.
func loadStatementRows(agentCode, periodKey string, scoped bool) ([]models.StatementRecord, error) {
	query := `
		SELECT policy_no, premium, pay_date, inception
		FROM statement
		WHERE agent_code = ?`
	args := []any{agentCode}
	if scoped {
		query += ` AND period_key = ?`
		args = append(args, periodKey)
	}
	rows, err := database.DB.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("loading statement rows: %w", err)
	}
	defer rows.Close()

	var out []models.StatementRecord
	for rows.Next() {
		var r models.StatementRecord
		var premium, payDate, inception string
		if err := rows.Scan(&r.PolicyNo, &premium, &payDate, &inception); err != nil {
			return nil, fmt.Errorf("scanning statement row: %w", err)
		}
		r.AgentCode = agentCode
		r.Premium, _ = decimal.NewFromString(premium)
		r.PayDate = parsers.ParseDate(payDate)
		r.Inception = parsers.ParseDate(inception)
		out = append(out, r)
	}
	return out, rows.Err()
}

// loadTerminations maps policy numbers to the period their termination was
// recorded in, for terminations at or before periodKey.
func loadTerminations(agentCode, periodKey string) (map[string]periods.Period, error) {
	rows, err := database.DB.Query(`
		SELECT policy_no, period_key FROM terminated
		WHERE agent_code = ? AND period_key <= ?`,
		agentCode, periodKey,
	)
	if err != nil {
		return nil, fmt.Errorf("loading terminations: %w", err)
	}
	defer rows.Close()

	out := make(map[string]periods.Period)
	for rows.Next() {
		var policyNo, key string
		if err := rows.Scan(&policyNo, &key); err != nil {
			return nil, fmt.Errorf("scanning termination: %w", err)
		}
		if policyNo == "" {
			continue
		}
		p, err := periods.Canonicalize(key)
		if err != nil {
			continue
		}
		if existing, ok := out[policyNo]; !ok || p.Before(existing) {
			out[policyNo] = p
		}
	}
	return out, rows.Err()
}
