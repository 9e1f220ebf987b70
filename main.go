package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/patrickmn/go-cache"
	"github.com/username/icrs/backend/src/audit"
	"github.com/username/icrs/backend/src/config"
	"github.com/username/icrs/backend/src/database"
	"github.com/username/icrs/backend/src/logger"
	"github.com/username/icrs/backend/src/models"
	"github.com/username/icrs/backend/src/processors"
	"github.com/username/icrs/backend/src/reports"
	"github.com/username/icrs/backend/src/services"
)

type app struct {
	ingestion      services.IngestionService
	commissions    services.CommissionService
	activePolicies services.ActivePolicyService
	auditor        *audit.Service
	reporter       *reports.ReportService
}

func main() {
	mode := flag.String("mode", "", "operation: ingest, bulk or summary")
	docType := flag.String("type", "", "document kind for ingest: statement, schedule or terminated")
	input := flag.String("input", "", "input file for ingest")
	dir := flag.String("dir", "", "directory of documents for bulk ingest")
	agent := flag.String("agent", "", "agent code (summary; optional hint for ingest)")
	period := flag.String("period", "", "period label, e.g. 2025-06 or 'Jun 2025' (summary; optional hint for ingest)")
	flag.Parse()

	config.LoadConfig()
	logger.InitLogger(config.Cfg.LogLevel)

	logger.L.Info("Commission reconciliation engine starting...", "mode", *mode)

	database.InitDB(config.Cfg.DatabasePath)
	database.RunMigrations()

	reportCache := cache.New(config.Cfg.SummaryCacheTTL, 2*config.Cfg.SummaryCacheTTL)

	activePolicyService := services.NewActivePolicyService()
	ruleService := services.NewRuleService()
	commissionService := services.NewCommissionService(
		processors.NewCommissionProcessor(), ruleService, activePolicyService)
	auditor := audit.NewService()

	a := &app{
		ingestion:      services.NewIngestionService(reportCache),
		commissions:    commissionService,
		activePolicies: activePolicyService,
		auditor:        auditor,
		reporter:       reports.NewReportService(activePolicyService, auditor, reportCache),
	}

	var err error
	switch *mode {
	case "ingest":
		err = a.runIngest(*docType, *input, *agent, *period)
	case "bulk":
		err = a.runBulk(*dir, *agent, *period)
	case "summary":
		err = a.runSummary(*agent, *period)
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		logger.L.Error("Run failed", "mode", *mode, "error", err)
		os.Exit(1)
	}
}

func docKindFromString(s string) (models.DocKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "statement":
		return models.DocStatement, nil
	case "schedule":
		return models.DocSchedule, nil
	case "terminated":
		return models.DocTerminated, nil
	}
	return "", fmt.Errorf("unknown document type %q (want statement, schedule or terminated)", s)
}

// runIngest pushes one document through the full pipeline: extraction and
// batch dedup, then (for statements) expected commission computation,
// snapshot refresh and the audit checks.
func (a *app) runIngest(docType, path, agentHint, periodHint string) error {
	kind, err := docKindFromString(docType)
	if err != nil {
		return err
	}
	if path == "" {
		return fmt.Errorf("-input is required for ingest")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	result, err := a.ingestion.IngestDocument(services.IngestInput{
		Kind:       kind,
		FileName:   filepath.Base(path),
		Raw:        raw,
		AgentHint:  agentHint,
		PeriodHint: periodHint,
	})
	if err != nil {
		return err
	}
	if result.Duplicate {
		fmt.Printf("duplicate submission; batch %d already ingested\n", result.BatchID)
		return nil
	}

	switch kind {
	case models.DocStatement:
		if _, err := a.commissions.ComputeAndStore(result.BatchID); err != nil {
			return err
		}
		if _, err := a.activePolicies.Refresh(result.AgentCode, result.Period); err != nil {
			return err
		}
		if _, err := a.auditor.EmitForMonth(result.AgentCode, result.Period); err != nil {
			return err
		}
	case models.DocTerminated:
		// New terminations change both the snapshot and the audit picture.
		if _, err := a.activePolicies.Refresh(result.AgentCode, result.Period); err != nil {
			return err
		}
		if _, err := a.auditor.EmitForMonth(result.AgentCode, result.Period); err != nil {
			return err
		}
	}

	fmt.Printf("ingested batch %d: agent=%s period=%s rows=%d skipped=%d\n",
		result.BatchID, result.AgentCode, result.Period, result.RowsInserted, result.RowsSkipped)
	return nil
}

// runBulk ingests every document in a directory, inferring each file's kind
// from its name. Successfully processed files move to the processed
// directory; failures stay put and are reported at the end.
func (a *app) runBulk(dir, agentHint, periodHint string) error {
	if dir == "" {
		dir = config.Cfg.IncomingDir
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading directory %s: %w", dir, err)
	}

	failures := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		kind, ok := inferDocKind(name)
		if !ok {
			logger.L.Warn("Skipping file with undeterminable document kind", "file", name)
			continue
		}
		src := filepath.Join(dir, name)
		if err := a.runIngest(string(kind), src, agentHint, periodHint); err != nil {
			logger.L.Error("Bulk ingest failed for file", "file", name, "error", err)
			failures++
			continue
		}
		if err := moveToProcessed(src, name); err != nil {
			logger.L.Warn("Could not move processed file", "file", name, "error", err)
		}
	}
	if failures > 0 {
		return fmt.Errorf("%d file(s) failed to ingest", failures)
	}
	return nil
}

func inferDocKind(fileName string) (models.DocKind, bool) {
	lower := strings.ToLower(fileName)
	switch {
	case strings.Contains(lower, "statement"):
		return models.DocStatement, true
	case strings.Contains(lower, "schedule"):
		return models.DocSchedule, true
	case strings.Contains(lower, "terminat"):
		return models.DocTerminated, true
	}
	return "", false
}

func moveToProcessed(src, name string) error {
	if err := os.MkdirAll(config.Cfg.ProcessedDir, 0o755); err != nil {
		return err
	}
	return os.Rename(src, filepath.Join(config.Cfg.ProcessedDir, name))
}

// runSummary prints the monthly reconciliation summary as JSON.
func (a *app) runSummary(agentCode, periodLabel string) error {
	if agentCode == "" || periodLabel == "" {
		return fmt.Errorf("-agent and -period are required for summary")
	}
	summary, err := a.reporter.MonthlySummary(agentCode, periodLabel)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(summary)
}
