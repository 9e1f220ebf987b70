package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/username/icrs/backend/src/periods"
)

// DocKind identifies the three source document families the pipeline ingests.
type DocKind string

const (
	DocStatement  DocKind = "STATEMENT"
	DocSchedule   DocKind = "SCHEDULE"
	DocTerminated DocKind = "TERMINATED"
)

// Valid reports whether k is one of the known document kinds.
func (k DocKind) Valid() bool {
	switch k {
	case DocStatement, DocSchedule, DocTerminated:
		return true
	}
	return false
}

// StatementRecord is one reported policy line extracted from a commission
// statement. Dates that could not be parsed are left as zero time values and
// monetary fields that could not be parsed are left as zero decimals; a field
// gap never invalidates the record.
type StatementRecord struct {
	AgentCode  string          `json:"agent_code"`
	PolicyNo   string          `json:"policy_no"`
	Holder     string          `json:"holder"`
	Surname    string          `json:"surname"`
	OtherName  string          `json:"other_name"`
	PolicyType string          `json:"policy_type"`
	Term       string          `json:"term"`
	PayDate    time.Time       `json:"pay_date"`
	ReceiptNo  string          `json:"receipt_no"`
	Premium    decimal.Decimal `json:"premium"`  // 2dp
	ComRate    decimal.Decimal `json:"com_rate"` // 4dp
	ComAmt     decimal.Decimal `json:"com_amt"`  // 2dp
	Inception  time.Time       `json:"inception"`
	AgentName  string          `json:"agent_name"`
	Period     periods.Period  `json:"period"`
	LicenseNo  string          `json:"license_no"`
	RawLine    string          `json:"raw_line"`
}

// ScheduleRecord is the agency-level payout summary for one period. The
// reported net is kept as-is; reconciliation recomputes its own net rather
// than trusting gross minus deductions to balance on input.
type ScheduleRecord struct {
	AgentCode        string          `json:"agent_code"`
	AgentName        string          `json:"agent_name"`
	LicenseNo        string          `json:"license_no"`
	BatchCode        string          `json:"commission_batch_code"`
	TotalPremiums    decimal.Decimal `json:"total_premiums"`
	Income           decimal.Decimal `json:"income"` // gross commission earned
	GovTax           decimal.Decimal `json:"gov_tax"`
	Siclase          decimal.Decimal `json:"siclase"`
	Welfareko        decimal.Decimal `json:"welfareko"`
	PremiumDeduction decimal.Decimal `json:"premium_deduction"`
	Pensions         decimal.Decimal `json:"pensions"`
	TotalDeductions  decimal.Decimal `json:"total_deductions"`
	NetCommission    decimal.Decimal `json:"net_commission"`
	DocumentDate     time.Time       `json:"document_date"`
	Period           periods.Period  `json:"period"`
}

// TerminatedRecord is one policy termination event. Once recorded for period
// P the policy is excluded from active consideration for all periods >= P.
type TerminatedRecord struct {
	AgentCode       string          `json:"agent_code"`
	PolicyNo        string          `json:"policy_no"`
	Holder          string          `json:"holder"`
	Surname         string          `json:"surname"`
	OtherName       string          `json:"other_name"`
	ReceiptNo       string          `json:"receipt_no"`
	PayDate         time.Time       `json:"pay_date"`
	Premium         decimal.Decimal `json:"premium"`
	ComRate         decimal.Decimal `json:"com_rate"`
	ComAmt          decimal.Decimal `json:"com_amt"`
	PolicyType      string          `json:"policy_type"`
	Inception       time.Time       `json:"inception"`
	Status          string          `json:"status"`
	Reason          string          `json:"reason"`
	AgentName       string          `json:"agent_name"`
	TerminationDate time.Time       `json:"termination_date"`
	Period          periods.Period  `json:"period"`
	LicenseNo       string          `json:"license_no"`
	RawLine         string          `json:"raw_line"`
}

// UploadBatch is one ingested document. Batches are immutable after creation
// except for the active flag, which the ingestion service flips when a newer
// digest supersedes the batch for the same (agent, period, kind) key.
type UploadBatch struct {
	ID            int64     `json:"id"`
	AgentCode     string    `json:"agent_code"`
	DocKind       DocKind   `json:"doc_kind"`
	PeriodKey     string    `json:"period_key"`
	FileName      string    `json:"file_name"`
	ContentDigest string    `json:"content_digest"`
	UploadedAt    time.Time `json:"uploaded_at"`
	IsActive      bool      `json:"is_active"`
}

// ActivePolicy is the rolling snapshot row for one policy: the first and last
// time it was seen on a statement, with the premium/rate of the latest row.
type ActivePolicy struct {
	PolicyNo       string          `json:"policy_no"`
	AgentCode      string          `json:"agent_code"`
	FirstSeen      time.Time       `json:"first_seen_date"`
	LastSeen       time.Time       `json:"last_seen_date"`
	LastPremium    decimal.Decimal `json:"last_premium"`
	LastComRate    decimal.Decimal `json:"last_com_rate"`
	LastSeenPeriod periods.Period  `json:"last_seen_period"`
}
