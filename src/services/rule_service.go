package services

import (
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/username/icrs/backend/src/database"
	"github.com/username/icrs/backend/src/models"
	"github.com/username/icrs/backend/src/parsers"
)

type ruleServiceImpl struct{}

// NewRuleService creates a new instance of RuleService.
func NewRuleService() RuleService {
	return &ruleServiceImpl{}
}

// LoadRules returns the commission rule table ordered by policy type and
// tenure bucket, the order the rule engine evaluates them in.
func (s *ruleServiceImpl) LoadRules() ([]models.CommissionRule, error) {
	rows, err := database.DB.Query(`
		SELECT policy_type, policy_name, month_from, month_to, commission_percent,
		       effective_from, effective_to
		FROM commission_rules
		ORDER BY policy_type, month_from`)
	if err != nil {
		return nil, fmt.Errorf("loading commission rules: %w", err)
	}
	defer rows.Close()

	var rules []models.CommissionRule
	for rows.Next() {
		var r models.CommissionRule
		var policyName, percent sql.NullString
		var effFrom, effTo sql.NullString
		if err := rows.Scan(&r.PolicyType, &policyName, &r.MonthFrom, &r.MonthTo, &percent, &effFrom, &effTo); err != nil {
			return nil, fmt.Errorf("scanning commission rule: %w", err)
		}
		r.PolicyName = policyName.String
		if percent.Valid {
			if d, err := decimal.NewFromString(percent.String); err == nil {
				r.Percent = d
			}
		}
		if effFrom.Valid {
			r.EffectiveFrom = parsers.ParseDate(effFrom.String)
		}
		if effTo.Valid {
			r.EffectiveTo = parsers.ParseDate(effTo.String)
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

// ReplaceRules swaps the whole rule table for a new set, atomically.
func (s *ruleServiceImpl) ReplaceRules(rules []models.CommissionRule) (int, error) {
	dbTx, err := database.DB.Begin()
	if err != nil {
		return 0, fmt.Errorf("error beginning database transaction: %w", err)
	}
	defer dbTx.Rollback()

	if _, err := dbTx.Exec(`DELETE FROM commission_rules`); err != nil {
		return 0, fmt.Errorf("clearing commission rules: %w", err)
	}
	stmt, err := dbTx.Prepare(`
		INSERT INTO commission_rules
			(policy_type, policy_name, month_from, month_to, commission_percent, effective_from, effective_to)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("error preparing rule insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range rules {
		_, err := stmt.Exec(
			r.PolicyType, r.PolicyName, r.MonthFrom, r.MonthTo, r.Percent.StringFixed(4),
			parsers.ISODate(r.EffectiveFrom), parsers.ISODate(r.EffectiveTo),
		)
		if err != nil {
			return 0, fmt.Errorf("inserting rule for %s [%d-%d]: %w", r.PolicyType, r.MonthFrom, r.MonthTo, err)
		}
	}
	if err := dbTx.Commit(); err != nil {
		return 0, fmt.Errorf("error committing rule replacement: %w", err)
	}
	return len(rules), nil
}
