package services

import (
	"bytes"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/username/icrs/backend/src/database"
	"github.com/username/icrs/backend/src/logger"
	"github.com/username/icrs/backend/src/models"
	"github.com/username/icrs/backend/src/parsers"
	"github.com/username/icrs/backend/src/periods"
)

type ingestionServiceImpl struct {
	reportCache *cache.Cache
}

// NewIngestionService creates a new instance of IngestionService. The report
// cache is shared with the report service so fresh ingests invalidate any
// cached summary for the same (agent, period).
func NewIngestionService(reportCache *cache.Cache) IngestionService {
	return &ingestionServiceImpl{reportCache: reportCache}
}

// SummaryCacheKey builds the shared cache key for a monthly summary.
func SummaryCacheKey(agentCode string, period periods.Period) string {
	return fmt.Sprintf("summary_%s_%s", agentCode, period)
}

func (s *ingestionServiceImpl) IngestDocument(input IngestInput) (*BatchResult, error) {
	runID := uuid.NewString()
	startTime := time.Now()
	logger.L.Info("IngestDocument START", "runID", runID, "kind", input.Kind, "file", input.FileName)

	if !input.Kind.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDocKind, input.Kind)
	}
	parser, err := parsers.GetParser(input.Kind)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnknownDocKind, err)
	}
	lines, err := parsers.ReadLines(bytes.NewReader(input.Raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParsingFailed, err)
	}
	res, err := parser.Parse(lines)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParsingFailed, err)
	}
	if res.Rows() == 0 {
		return nil, ErrNoRecords
	}

	agentCode, err := resolveAgent(res, input.AgentHint)
	if err != nil {
		return nil, err
	}
	period, err := resolvePeriod(res, input.PeriodHint)
	if err != nil {
		return nil, err
	}

	digest := sha256.Sum256(input.Raw)
	contentDigest := hex.EncodeToString(digest[:])

	// Batch-level dedup: an unmodified resubmission changes nothing.
	var existingID int64
	err = database.DB.QueryRow(`
		SELECT id FROM uploads
		WHERE agent_code = ? AND period_key = ? AND doc_type = ? AND content_digest = ?`,
		agentCode, period.String(), string(input.Kind), contentDigest,
	).Scan(&existingID)
	switch {
	case err == nil:
		logger.L.Info("IngestDocument duplicate submission", "runID", runID, "batchID", existingID)
		return &BatchResult{BatchID: existingID, AgentCode: agentCode, Period: period, Duplicate: true}, nil
	case err != sql.ErrNoRows:
		return nil, fmt.Errorf("checking for duplicate batch: %w", err)
	}

	dbTx, err := database.DB.Begin()
	if err != nil {
		return nil, fmt.Errorf("error beginning database transaction: %w", err)
	}
	defer dbTx.Rollback()

	// Supersede prior active batch(es) for this key before activating ours.
	if _, err := dbTx.Exec(`
		UPDATE uploads SET is_active = 0
		WHERE agent_code = ? AND period_key = ? AND doc_type = ? AND is_active = 1`,
		agentCode, period.String(), string(input.Kind),
	); err != nil {
		return nil, fmt.Errorf("deactivating prior batches: %w", err)
	}

	sqlRes, err := dbTx.Exec(`
		INSERT INTO uploads (agent_code, doc_type, period_key, file_name, content_digest, is_active)
		VALUES (?, ?, ?, ?, ?, 1)`,
		agentCode, string(input.Kind), period.String(), input.FileName, contentDigest,
	)
	if err != nil {
		return nil, fmt.Errorf("recording upload batch: %w", err)
	}
	batchID, err := sqlRes.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading new batch id: %w", err)
	}

	var inserted int
	switch input.Kind {
	case models.DocStatement:
		inserted, err = insertStatementRows(dbTx, batchID, agentCode, period, res.Statements)
	case models.DocSchedule:
		inserted, err = insertScheduleRows(dbTx, batchID, agentCode, period, res.Schedules)
	case models.DocTerminated:
		inserted, err = insertTerminatedRows(dbTx, batchID, agentCode, period, res.Terminated)
	}
	if err != nil {
		return nil, err
	}

	if err := dbTx.Commit(); err != nil {
		return nil, fmt.Errorf("error committing ingestion: %w", err)
	}

	if s.reportCache != nil {
		s.reportCache.Delete(SummaryCacheKey(agentCode, period))
	}

	logger.L.Info("IngestDocument COMPLETE",
		"runID", runID, "batchID", batchID, "agent", agentCode, "period", period.String(),
		"rows", inserted, "skippedLines", res.Skipped, "duration", time.Since(startTime).String())
	return &BatchResult{
		BatchID:      batchID,
		AgentCode:    agentCode,
		Period:       period,
		RowsInserted: inserted,
		RowsSkipped:  res.Rows() - inserted,
	}, nil
}

// GetBatch loads one upload batch by id.
func (s *ingestionServiceImpl) GetBatch(batchID int64) (*models.UploadBatch, error) {
	row := database.DB.QueryRow(`
		SELECT id, agent_code, doc_type, period_key, COALESCE(file_name, ''), content_digest, uploaded_at, is_active
		FROM uploads WHERE id = ?`,
		batchID,
	)
	var b models.UploadBatch
	var docType, uploadedAt string
	if err := row.Scan(&b.ID, &b.AgentCode, &docType, &b.PeriodKey, &b.FileName, &b.ContentDigest, &uploadedAt, &b.IsActive); err != nil {
		return nil, fmt.Errorf("loading batch %d: %w", batchID, err)
	}
	b.DocKind = models.DocKind(docType)
	if t, err := time.Parse("2006-01-02 15:04:05", uploadedAt); err == nil {
		b.UploadedAt = t
	}
	return &b, nil
}

// resolveAgent prefers the code discovered in the document header, then the
// caller's hint, then any per-record agent code.
func resolveAgent(res *parsers.Result, hint string) (string, error) {
	if code := strings.TrimSpace(res.Meta.AgentCode); code != "" {
		return code, nil
	}
	if code := strings.TrimSpace(hint); code != "" {
		return code, nil
	}
	return "", ErrUnknownAgent
}

// resolvePeriod prefers the document's COM batch label, then the caller's
// hint, then the first record-level period.
func resolvePeriod(res *parsers.Result, hint string) (periods.Period, error) {
	if !res.Meta.Period.IsZero() {
		return res.Meta.Period, nil
	}
	if strings.TrimSpace(hint) != "" {
		p, err := periods.Canonicalize(hint)
		if err != nil {
			return periods.Period{}, fmt.Errorf("%w: %v", ErrUnknownPeriod, err)
		}
		return p, nil
	}
	for _, r := range res.Statements {
		if !r.Period.IsZero() {
			return r.Period, nil
		}
	}
	for _, r := range res.Terminated {
		if !r.Period.IsZero() {
			return r.Period, nil
		}
	}
	return periods.Period{}, ErrUnknownPeriod
}

// rowSignature derives the idempotency key of a row from its content, so the
// same row arriving in two different source files is stored once.
func rowSignature(fields ...string) string {
	h := sha256.Sum256([]byte(strings.Join(fields, "|")))
	return hex.EncodeToString(h[:])
}

func insertStatementRows(dbTx *sql.Tx, batchID int64, agentCode string, period periods.Period, rows []models.StatementRecord) (int, error) {
	stmt, err := dbTx.Prepare(`
		INSERT INTO statement
			(row_sig, upload_id, agent_code, policy_no, holder, surname, other_name, policy_type,
			 term, pay_date, receipt_no, premium, com_rate, com_amt, inception, agent_name,
			 period_key, license_no)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (row_sig) DO NOTHING`)
	if err != nil {
		return 0, fmt.Errorf("error preparing statement insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, r := range rows {
		sig := rowSignature("statement", agentCode, period.String(), r.PolicyNo,
			parsers.ISODate(r.PayDate), r.ReceiptNo,
			r.Premium.StringFixed(2), r.ComRate.StringFixed(4), r.ComAmt.StringFixed(2))
		res, err := stmt.Exec(
			sig, batchID, agentCode, r.PolicyNo, r.Holder, r.Surname, r.OtherName, r.PolicyType,
			r.Term, parsers.ISODate(r.PayDate), r.ReceiptNo,
			r.Premium.StringFixed(2), r.ComRate.StringFixed(4), r.ComAmt.StringFixed(2),
			parsers.ISODate(r.Inception), r.AgentName, period.String(), r.LicenseNo,
		)
		if err != nil {
			return 0, fmt.Errorf("error inserting statement row (policy %s): %w", r.PolicyNo, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		} else {
			logger.L.Debug("Skipping duplicate statement row", "policy", r.PolicyNo, "rowSig", sig)
		}
	}
	return inserted, nil
}

func insertScheduleRows(dbTx *sql.Tx, batchID int64, agentCode string, period periods.Period, rows []models.ScheduleRecord) (int, error) {
	inserted := 0
	for _, r := range rows {
		_, err := dbTx.Exec(`
			INSERT INTO schedule
				(upload_id, agent_code, agent_name, commission_batch_code, total_premiums, income,
				 gov_tax, siclase, welfareko, premium_deduction, pensions, total_deductions,
				 net_commission, document_date, period_key, license_no)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			batchID, agentCode, r.AgentName, r.BatchCode,
			r.TotalPremiums.StringFixed(2), r.Income.StringFixed(2),
			r.GovTax.StringFixed(2), r.Siclase.StringFixed(2), r.Welfareko.StringFixed(2),
			r.PremiumDeduction.StringFixed(2), r.Pensions.StringFixed(2),
			r.TotalDeductions.StringFixed(2), r.NetCommission.StringFixed(2),
			parsers.ISODate(r.DocumentDate), period.String(), r.LicenseNo,
		)
		if err != nil {
			return 0, fmt.Errorf("error inserting schedule row: %w", err)
		}
		inserted++
	}
	return inserted, nil
}

func insertTerminatedRows(dbTx *sql.Tx, batchID int64, agentCode string, period periods.Period, rows []models.TerminatedRecord) (int, error) {
	stmt, err := dbTx.Prepare(`
		INSERT INTO terminated
			(row_sig, upload_id, agent_code, policy_no, holder, surname, other_name, receipt_no,
			 pay_date, premium, com_rate, com_amt, policy_type, inception, status, reason,
			 agent_name, termination_date, period_key, license_no)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (row_sig) DO NOTHING`)
	if err != nil {
		return 0, fmt.Errorf("error preparing terminated insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, r := range rows {
		sig := rowSignature("terminated", agentCode, period.String(), r.PolicyNo,
			r.ReceiptNo, parsers.ISODate(r.PayDate), r.Premium.StringFixed(2))
		res, err := stmt.Exec(
			sig, batchID, agentCode, r.PolicyNo, r.Holder, r.Surname, r.OtherName, r.ReceiptNo,
			parsers.ISODate(r.PayDate), r.Premium.StringFixed(2), r.ComRate.StringFixed(4),
			r.ComAmt.StringFixed(2), r.PolicyType, parsers.ISODate(r.Inception), r.Status, r.Reason,
			r.AgentName, parsers.ISODate(r.TerminationDate), period.String(), r.LicenseNo,
		)
		if err != nil {
			return 0, fmt.Errorf("error inserting terminated row (policy %s): %w", r.PolicyNo, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		} else {
			logger.L.Debug("Skipping duplicate terminated row", "policy", r.PolicyNo, "rowSig", sig)
		}
	}
	return inserted, nil
}
