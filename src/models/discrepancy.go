package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/username/icrs/backend/src/periods"
)

// Discrepancy kinds emitted by the audit checks. The type string is part of
// the persistence key, so renaming a kind invalidates stored rows.
const (
	DiscMultipleEntries    = "MULTIPLE_ENTRIES_IN_MONTH"
	DiscInceptionFirstSeen = "INCEPTION_FIRST_SEEN_INCONSISTENCY"
	DiscArrearsSuspect     = "ARREARS_SUSPECT"
	DiscShouldBeTerminated = "SHOULD_BE_TERMINATED"
)

// Severity levels for discrepancies.
const (
	SeverityMedium = "MED"
	SeverityHigh   = "HIGH"
)

// Discrepancy is one audit finding for a (agent, policy, period, kind) key.
// DiffAmount and the payload fields are only set by the kinds that use them.
type Discrepancy struct {
	AgentCode  string          `json:"agent_code"`
	PolicyNo   string          `json:"policy_no"`
	Period     periods.Period  `json:"period"`
	Kind       string          `json:"type"`
	Severity   string          `json:"severity"`
	DiffAmount decimal.Decimal `json:"diff_amount"`
	Notes      string          `json:"notes"`
	CreatedAt  time.Time       `json:"created_at"`
}
