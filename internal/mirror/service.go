package mirror

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"db-ferry/internal/report"
)

// DirectionTargetToMirror is the only direction in which writes are allowed.
const DirectionTargetToMirror = "target_to_mirror"

// ErrDirection rejects writes when the configured direction is anything else.
var ErrDirection = errors.New("sync direction does not allow writes")

// FullResult composes a schema run and the data run that followed it.
type FullResult struct {
	OK     bool          `json:"ok"`
	Schema *SchemaResult `json:"schema"`
	Data   *DataResult   `json:"data,omitempty"`
}

// Service runs sync operations one at a time and records each invocation.
type Service struct {
	gate      *Gate
	syncer    *Syncer
	log       *LogStore
	direction string
	reportDir string
	logger    *slog.Logger

	running sync.Mutex
}

type ServiceOptions struct {
	Direction string
	// ReportDir, when set, receives a report per non-dry-run invocation.
	ReportDir string
}

func NewService(gate *Gate, syncer *Syncer, log *LogStore, opts ServiceOptions, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{gate: gate, syncer: syncer, log: log, direction: opts.Direction, reportDir: opts.ReportDir, logger: logger}
}

func (s *Service) checkWrite(dryRun bool) error {
	if dryRun || s.direction == DirectionTargetToMirror {
		return nil
	}
	return fmt.Errorf("%w: direction is %q, want %q", ErrDirection, s.direction, DirectionTargetToMirror)
}

func (s *Service) SyncSchema(ctx context.Context, dryRun bool) (*SchemaResult, error) {
	if err := s.checkWrite(dryRun); err != nil {
		return nil, err
	}
	if !s.running.TryLock() {
		return nil, ErrBusy
	}
	defer s.running.Unlock()

	res, err := s.gate.Run(ctx, dryRun)
	entry := &SyncLogEntry{Kind: "schema", DryRun: dryRun}
	if res != nil {
		entry.Tables, entry.Added, entry.Updated = res.Tables, res.Added, res.Updated
	}
	s.record(ctx, entry, err, planned(res))
	return res, err
}

func (s *Service) SyncData(ctx context.Context, dryRun bool) (*DataResult, error) {
	if err := s.checkWrite(dryRun); err != nil {
		return nil, err
	}
	if !s.running.TryLock() {
		return nil, ErrBusy
	}
	defer s.running.Unlock()

	res, err := s.syncer.Run(ctx, dryRun)
	entry := &SyncLogEntry{Kind: "data", DryRun: dryRun, Tables: res.Tables, Added: res.Added, Updated: res.Updated, Deleted: res.Deleted}
	s.record(ctx, entry, err, nil)
	return res, err
}

// SyncFull runs the schema step and, when it succeeds, the data step.
func (s *Service) SyncFull(ctx context.Context, dryRun bool) (*FullResult, error) {
	if err := s.checkWrite(dryRun); err != nil {
		return nil, err
	}
	if !s.running.TryLock() {
		return nil, ErrBusy
	}
	defer s.running.Unlock()

	full := &FullResult{}
	entry := &SyncLogEntry{Kind: "full", DryRun: dryRun}

	schemaRes, err := s.gate.Run(ctx, dryRun)
	full.Schema = schemaRes
	if schemaRes != nil {
		entry.Added, entry.Updated = schemaRes.Added, schemaRes.Updated
	}
	if err != nil {
		s.record(ctx, entry, err, planned(schemaRes))
		return full, err
	}

	dataRes, err := s.syncer.Run(ctx, dryRun)
	full.Data = dataRes
	entry.Tables = dataRes.Tables
	entry.Added += dataRes.Added
	entry.Updated += dataRes.Updated
	entry.Deleted += dataRes.Deleted
	full.OK = err == nil
	s.record(ctx, entry, err, planned(schemaRes))
	return full, err
}

// Status returns the n most recent log entries.
func (s *Service) Status(ctx context.Context, n int) ([]SyncLogEntry, error) {
	if n <= 0 {
		n = 20
	}
	if s.log == nil {
		return []SyncLogEntry{}, nil
	}
	return s.log.Recent(ctx, n)
}

func (s *Service) record(ctx context.Context, entry *SyncLogEntry, runErr error, stmts []string) {
	if runErr != nil {
		entry.Error = runErr.Error()
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if s.log != nil {
		if err := s.log.Append(ctx, entry); err != nil {
			s.logger.Error("could not record sync log entry", "kind", entry.Kind, "error", err)
		}
	}
	if s.reportDir != "" && !entry.DryRun {
		s.writeReport(entry, runErr, stmts)
	}
}

func (s *Service) writeReport(entry *SyncLogEntry, runErr error, stmts []string) {
	stats := report.NewRunStats(entry.Kind, entry.DryRun)
	stats.ID = entry.ID
	stats.StartedAt = entry.CreatedAt
	stats.TablesAttempted = len(entry.Tables)
	stats.RowsSucceeded = entry.Added + entry.Updated
	stats.RowsAttempted = stats.RowsSucceeded
	stats.AddError(entry.Kind, runErr)
	if runErr == nil {
		stats.TablesSucceeded = len(entry.Tables)
	}
	stats.Finish()

	artifacts, err := report.NewArtifacts(s.reportDir, stats.ID)
	if err == nil && len(stmts) > 0 {
		var sc *report.Script
		if sc, err = artifacts.OpenScript(report.SchemaFile, "mirror schema diff for run "+stats.ID); err == nil {
			err = errors.Join(writeStatements(sc, stmts), sc.Close())
		}
	}
	if err == nil {
		_, err = artifacts.WriteReport(stats)
	}
	if err != nil {
		s.logger.Error("could not write sync report", "run", stats.ID, "error", err)
	}
}

func writeStatements(sc *report.Script, stmts []string) error {
	for _, stmt := range stmts {
		if err := sc.Statement(stmt); err != nil {
			return err
		}
	}
	return nil
}

func planned(res *SchemaResult) []string {
	if res == nil {
		return nil
	}
	return res.Statements
}
