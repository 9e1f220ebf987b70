package services

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/username/icrs/backend/src/database"
	"github.com/username/icrs/backend/src/logger"
	"github.com/username/icrs/backend/src/models"
	"github.com/username/icrs/backend/src/parsers"
	"github.com/username/icrs/backend/src/periods"
)

type activePolicyServiceImpl struct{}

// NewActivePolicyService creates a new instance of ActivePolicyService.
func NewActivePolicyService() ActivePolicyService {
	return &activePolicyServiceImpl{}
}

// Refresh folds the agent's statement rows up to and including upTo into the
// active_policies snapshot. Policies with a termination recorded at or before
// upTo are excluded. The fold is monotonic: first-seen never moves later and
// last-seen never moves earlier. Callers serialize refreshes per agent.
func (s *activePolicyServiceImpl) Refresh(agentCode string, upTo periods.Period) (*SnapshotResult, error) {
	if upTo.IsZero() {
		return nil, ErrUnknownPeriod
	}
	upToKey := upTo.String()

	terminated, err := terminatedPolicySet(agentCode, upToKey)
	if err != nil {
		return nil, err
	}

	rows, err := database.DB.Query(`
		SELECT policy_no, period_key, premium, com_rate
		FROM statement
		WHERE agent_code = ? AND period_key <= ?
		ORDER BY period_key`,
		agentCode, upToKey,
	)
	if err != nil {
		return nil, fmt.Errorf("loading statement scope: %w", err)
	}
	defer rows.Close()

	type obs struct {
		firstSeen   periods.Period
		lastSeen    periods.Period
		lastPremium string
		lastComRate string
	}
	agg := make(map[string]*obs)
	scopeRows := 0
	for rows.Next() {
		var policyNo, periodKey, premium, comRate string
		if err := rows.Scan(&policyNo, &periodKey, &premium, &comRate); err != nil {
			return nil, fmt.Errorf("scanning statement row: %w", err)
		}
		scopeRows++
		if policyNo == "" || terminated[policyNo] {
			continue
		}
		p, err := periods.Canonicalize(periodKey)
		if err != nil {
			continue
		}
		o, ok := agg[policyNo]
		if !ok {
			agg[policyNo] = &obs{firstSeen: p, lastSeen: p, lastPremium: premium, lastComRate: comRate}
			continue
		}
		if p.Before(o.firstSeen) {
			o.firstSeen = p
		}
		if !p.Before(o.lastSeen) {
			o.lastSeen = p
			o.lastPremium = premium
			o.lastComRate = comRate
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating statement scope: %w", err)
	}

	dbTx, err := database.DB.Begin()
	if err != nil {
		return nil, fmt.Errorf("error beginning database transaction: %w", err)
	}
	defer dbTx.Rollback()

	stmt, err := dbTx.Prepare(`
		INSERT INTO active_policies
			(policy_no, agent_code, first_seen_date, last_seen_date, last_premium, last_com_rate, last_seen_period)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (policy_no, agent_code) DO UPDATE SET
			first_seen_date = MIN(first_seen_date, excluded.first_seen_date),
			last_seen_date = MAX(last_seen_date, excluded.last_seen_date),
			last_premium = CASE WHEN excluded.last_seen_date >= last_seen_date
				THEN excluded.last_premium ELSE last_premium END,
			last_com_rate = CASE WHEN excluded.last_seen_date >= last_seen_date
				THEN excluded.last_com_rate ELSE last_com_rate END,
			last_seen_period = MAX(last_seen_period, excluded.last_seen_period)`)
	if err != nil {
		return nil, fmt.Errorf("error preparing snapshot upsert: %w", err)
	}
	defer stmt.Close()

	upserted := 0
	for policyNo, o := range agg {
		_, err := stmt.Exec(
			policyNo, agentCode,
			parsers.ISODate(o.firstSeen.Start()), parsers.ISODate(o.lastSeen.Start()),
			o.lastPremium, o.lastComRate, o.lastSeen.String(),
		)
		if err != nil {
			return nil, fmt.Errorf("upserting snapshot for policy %s: %w", policyNo, err)
		}
		upserted++
	}
	if err := dbTx.Commit(); err != nil {
		return nil, fmt.Errorf("error committing snapshot refresh: %w", err)
	}

	logger.L.Info("Active policy snapshot refreshed",
		"agent", agentCode, "upTo", upToKey, "upserted", upserted,
		"scopeRows", scopeRows, "terminatedExcluded", len(terminated))
	return &SnapshotResult{
		PoliciesUpserted:   upserted,
		ScopeRows:          scopeRows,
		TerminatedExcluded: len(terminated),
	}, nil
}

// Snapshot returns the agent's full active-policy ledger, ordered by policy.
func (s *activePolicyServiceImpl) Snapshot(agentCode string) ([]models.ActivePolicy, error) {
	rows, err := database.DB.Query(`
		SELECT policy_no, first_seen_date, last_seen_date, last_premium, last_com_rate, last_seen_period
		FROM active_policies
		WHERE agent_code = ?
		ORDER BY policy_no`,
		agentCode,
	)
	if err != nil {
		return nil, fmt.Errorf("loading active policy snapshot: %w", err)
	}
	defer rows.Close()

	var out []models.ActivePolicy
	for rows.Next() {
		var ap models.ActivePolicy
		var firstSeen, lastSeen, lastPremium, lastComRate, lastPeriod sql.NullString
		if err := rows.Scan(&ap.PolicyNo, &firstSeen, &lastSeen, &lastPremium, &lastComRate, &lastPeriod); err != nil {
			return nil, fmt.Errorf("scanning active policy: %w", err)
		}
		ap.AgentCode = agentCode
		ap.FirstSeen = parsers.ParseDate(firstSeen.String)
		ap.LastSeen = parsers.ParseDate(lastSeen.String)
		ap.LastPremium, _ = decimal.NewFromString(lastPremium.String)
		ap.LastComRate, _ = decimal.NewFromString(lastComRate.String)
		if p, err := periods.Canonicalize(lastPeriod.String); err == nil {
			ap.LastSeenPeriod = p
		}
		out = append(out, ap)
	}
	return out, rows.Err()
}

// FirstSeenDates returns snapshot first-seen dates for the given policies.
// Policies without a snapshot row are absent from the result.
func (s *activePolicyServiceImpl) FirstSeenDates(policyNos []string) (map[string]time.Time, error) {
	out := make(map[string]time.Time)
	if len(policyNos) == 0 {
		return out, nil
	}
	uniq := make([]string, 0, len(policyNos))
	seen := make(map[string]bool, len(policyNos))
	for _, p := range policyNos {
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		uniq = append(uniq, p)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(uniq)), ",")
	args := make([]any, len(uniq))
	for i, p := range uniq {
		args[i] = p
	}
	rows, err := database.DB.Query(
		`SELECT policy_no, first_seen_date FROM active_policies WHERE policy_no IN (`+placeholders+`)`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("loading first-seen dates: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var policyNo string
		var firstSeen sql.NullString
		if err := rows.Scan(&policyNo, &firstSeen); err != nil {
			return nil, fmt.Errorf("scanning first-seen row: %w", err)
		}
		if firstSeen.Valid {
			if t := parsers.ParseDate(firstSeen.String); !t.IsZero() {
				out[policyNo] = t
			}
		}
	}
	return out, rows.Err()
}

// MissingPolicies computes the policies expected in period but absent from
// it: present in the immediately preceding month, not terminated at or before
// period, and not reported in period itself.
func (s *activePolicyServiceImpl) MissingPolicies(agentCode string, period periods.Period) ([]models.MissingPolicy, error) {
	if period.IsZero() {
		return nil, ErrUnknownPeriod
	}
	prior := period.Prev()

	priorPolicies, err := statementPolicySet(agentCode, prior.String())
	if err != nil {
		return nil, err
	}
	if len(priorPolicies) == 0 {
		return nil, nil
	}
	terminated, err := terminatedPolicySet(agentCode, period.String())
	if err != nil {
		return nil, err
	}
	current, err := statementPolicySet(agentCode, period.String())
	if err != nil {
		return nil, err
	}

	var missing []string
	for p := range priorPolicies {
		if !terminated[p] && !current[p] {
			missing = append(missing, p)
		}
	}
	if len(missing) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(missing)), ",")
	args := []any{agentCode, prior.String()}
	for _, p := range missing {
		args = append(args, p)
	}
	rows, err := database.DB.Query(`
		SELECT policy_no, premium, com_rate
		FROM statement
		WHERE agent_code = ? AND period_key = ? AND policy_no IN (`+placeholders+`)
		ORDER BY policy_no`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("loading missing policy details: %w", err)
	}
	defer rows.Close()

	var out []models.MissingPolicy
	reported := make(map[string]bool, len(missing))
	for rows.Next() {
		var policyNo, premium, comRate string
		if err := rows.Scan(&policyNo, &premium, &comRate); err != nil {
			return nil, fmt.Errorf("scanning missing policy row: %w", err)
		}
		if reported[policyNo] {
			continue
		}
		reported[policyNo] = true
		lastPremium, _ := decimal.NewFromString(premium)
		lastComRate, _ := decimal.NewFromString(comRate)
		out = append(out, models.MissingPolicy{
			PolicyNo:       policyNo,
			LastSeenPeriod: prior,
			LastPremium:    lastPremium,
			LastComRate:    lastComRate,
		})
	}
	return out, rows.Err()
}

func terminatedPolicySet(agentCode, upToKey string) (map[string]bool, error) {
	rows, err := database.DB.Query(`
		SELECT DISTINCT policy_no FROM terminated
		WHERE agent_code = ? AND period_key <= ?`,
		agentCode, upToKey,
	)
	if err != nil {
		return nil, fmt.Errorf("loading terminated policies: %w", err)
	}
	defer rows.Close()
	set := make(map[string]bool)
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scanning terminated policy: %w", err)
		}
		if p != "" {
			set[p] = true
		}
	}
	return set, rows.Err()
}

func statementPolicySet(agentCode, periodKey string) (map[string]bool, error) {
	rows, err := database.DB.Query(`
		SELECT DISTINCT policy_no FROM statement
		WHERE agent_code = ? AND period_key = ?`,
		agentCode, periodKey,
	)
	if err != nil {
		return nil, fmt.Errorf("loading statement policies: %w", err)
	}
	defer rows.Close()
	set := make(map[string]bool)
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scanning statement policy: %w", err)
		}
		if p != "" {
			set[p] = true
		}
	}
	return set, rows.Err()
}
