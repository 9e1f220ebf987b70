package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/username/icrs/backend/src/periods"
)

// CommissionRule maps a policy type and a tenure bucket (whole months,
// inclusive bounds) to a commission percent, optionally scoped to an
// effective date window. Rule sets are read-only per computation call.
type CommissionRule struct {
	PolicyType    string          `json:"policy_type"`
	PolicyName    string          `json:"policy_name"`
	MonthFrom     int             `json:"month_from"`
	MonthTo       int             `json:"month_to"`
	Percent       decimal.Decimal `json:"commission_percent"`
	EffectiveFrom time.Time       `json:"effective_from"` // zero = open
	EffectiveTo   time.Time       `json:"effective_to"`   // zero = open
}

// CoversTenure reports whether ageMonths falls inside the rule's bucket.
func (r CommissionRule) CoversTenure(ageMonths int) bool {
	return r.MonthFrom <= ageMonths && ageMonths <= r.MonthTo
}

// InEffect reports whether the rule's effective window covers the given
// moment. Open window edges always match.
func (r CommissionRule) InEffect(at time.Time) bool {
	if !r.EffectiveFrom.IsZero() && at.Before(r.EffectiveFrom) {
		return false
	}
	if !r.EffectiveTo.IsZero() && at.After(r.EffectiveTo) {
		return false
	}
	return true
}

// ExpectedCommission is the rule engine's per-(agent, period) output row.
type ExpectedCommission struct {
	AgentCode string          `json:"agent_code"`
	Period    periods.Period  `json:"period"`
	Amount    decimal.Decimal `json:"expected_amount"`
	CalcBasis string          `json:"calc_basis"`
	UploadID  int64           `json:"upload_id"`
}
