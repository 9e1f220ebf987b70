package services

import (
	"errors"
	"time"

	"github.com/username/icrs/backend/src/models"
	"github.com/username/icrs/backend/src/periods"
)

// BatchResult reports the outcome of one document ingestion.
type BatchResult struct {
	BatchID      int64          `json:"batch_id"`
	AgentCode    string         `json:"agent_code"`
	Period       periods.Period `json:"period"`
	Duplicate    bool           `json:"duplicate"`
	RowsInserted int            `json:"rows_inserted"`
	RowsSkipped  int            `json:"rows_skipped"`
}

// IngestInput carries one raw document into the pipeline. AgentHint and
// PeriodHint back-stop header discovery when the document itself does not
// yield an agent code or reporting period.
type IngestInput struct {
	Kind       models.DocKind
	FileName   string
	Raw        []byte
	AgentHint  string
	PeriodHint string
}

// Common service errors.
var (
	ErrParsingFailed  = errors.New("document parsing failed")
	ErrUnknownAgent   = errors.New("agent code could not be determined")
	ErrUnknownPeriod  = errors.New("reporting period could not be determined")
	ErrNoRecords      = errors.New("no records extracted from document")
	ErrUnknownDocKind = errors.New("unknown document kind")
)

// IngestionService runs the extract-dedup-persist pipeline for one document.
// Concurrent calls for the same (agent, period, kind) key must be serialized
// by the caller; the active-batch swap is not internally locked.
type IngestionService interface {
	IngestDocument(input IngestInput) (*BatchResult, error)
	GetBatch(batchID int64) (*models.UploadBatch, error)
}

// SnapshotResult reports one active-policy snapshot refresh.
type SnapshotResult struct {
	PoliciesUpserted   int `json:"policies_upserted"`
	ScopeRows          int `json:"scope_rows"`
	TerminatedExcluded int `json:"terminated_excluded"`
}

// ActivePolicyService maintains the per-policy first-seen/last-seen ledger.
type ActivePolicyService interface {
	Refresh(agentCode string, upTo periods.Period) (*SnapshotResult, error)
	Snapshot(agentCode string) ([]models.ActivePolicy, error)
	FirstSeenDates(policyNos []string) (map[string]time.Time, error)
	MissingPolicies(agentCode string, period periods.Period) ([]models.MissingPolicy, error)
}

// CommissionService computes and persists expected commission totals for an
// upload batch.
type CommissionService interface {
	ComputeAndStore(uploadID int64) ([]models.ExpectedCommission, error)
}

// RuleService loads the commission rule table.
type RuleService interface {
	LoadRules() ([]models.CommissionRule, error)
	ReplaceRules(rules []models.CommissionRule) (int, error)
}
