package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"db-ferry/internal/dialect"
	"db-ferry/internal/report"
	"db-ferry/internal/schema"
)

// Source is what a one-shot migration reads from.
type Source interface {
	PageSource
	Counter
}

// Orderer is implemented by sources that can be told a stable page order.
type Orderer interface {
	OrderBy(table string, columns ...string)
}

type Options struct {
	Tables     []string
	BatchSize  int
	SampleSize int
	Retry      Backoff
	DryRun     bool
}

// Migrator runs a one-shot migration table by table, in order.
type Migrator struct {
	src    Source
	db     *sql.DB
	d      dialect.Dialect
	opts   Options
	logger *slog.Logger

	// OnTable is called before a table is loaded with its row count.
	OnTable func(table string, rows int)
	// OnProgress is passed to the loader.
	OnProgress func(table string, done, total int)
}

// NewMigrator builds a migrator. db may be nil for a dry run.
func NewMigrator(src Source, db *sql.DB, d dialect.Dialect, opts Options, logger *slog.Logger) *Migrator {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 1000
	}
	if opts.Retry.Attempts == 0 {
		opts.Retry = DefaultBackoff
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Migrator{src: src, db: db, d: d, opts: opts, logger: logger}
}

// Run migrates every configured table, recording into stats. Table and row
// failures only land in stats; the returned error is reserved for failures
// that stop the whole run, such as no target connection. When artifacts is
// non-nil the scripts and report are written there, even after such a
// failure.
func (m *Migrator) Run(ctx context.Context, stats *report.RunStats, artifacts *report.Artifacts) error {
	m.logger.Info("migration started", "run", stats.ID, "tables", len(m.opts.Tables), "dry_run", m.opts.DryRun)

	var schemaScript, dataScript *report.Script
	if artifacts != nil {
		var err error
		if schemaScript, err = artifacts.OpenScript(report.SchemaFile, "schema for run "+stats.ID); err != nil {
			stats.AddError("artifacts", err)
		}
		if dataScript, err = artifacts.OpenScript(report.DataFile, "data for run "+stats.ID); err != nil {
			stats.AddError("artifacts", err)
		}
	}

	runErr := m.run(ctx, stats, schemaScript, dataScript)
	if runErr != nil {
		stats.AddError("run", runErr)
	}

	if artifacts != nil {
		m.logger.Debug("scripts written", "dir", artifacts.Dir,
			"schema_statements", schemaScript.Count(), "data_statements", dataScript.Count())
	}
	for _, s := range []*report.Script{schemaScript, dataScript} {
		if err := s.Close(); err != nil {
			stats.AddError("artifacts", err)
		}
	}
	stats.Finish()

	if artifacts != nil {
		path, err := artifacts.WriteReport(stats)
		if err != nil {
			m.logger.Error("could not write report", "error", err)
		} else {
			m.logger.Info("report written", "path", path)
		}
	}
	m.logger.Info("migration finished", "run", stats.ID, "status", stats.Status(),
		"rows_ok", stats.RowsSucceeded, "rows_failed", stats.RowsFailed, "elapsed", stats.Duration())
	return runErr
}

func (m *Migrator) run(ctx context.Context, stats *report.RunStats, schemaScript, dataScript *report.Script) error {
	var conn *sql.Conn
	if !m.opts.DryRun {
		if m.db == nil {
			return errors.New("no target connection")
		}
		// One connection for the whole run so session settings stick.
		var err error
		if conn, err = m.db.Conn(ctx); err != nil {
			return fmt.Errorf("acquire target connection: %w", err)
		}
		defer conn.Close()

		if err := m.d.BeforeLoad(ctx, conn); err != nil {
			m.logger.Warn("could not relax constraint checks", "dialect", m.d.Name(), "error", err)
		}
		defer func() {
			if err := m.d.AfterLoad(ctx, conn); err != nil {
				m.logger.Warn("could not restore constraint checks", "dialect", m.d.Name(), "error", err)
			}
		}()
	}

	var execer dialect.Execer
	if conn != nil {
		execer = conn
	}
	inferrer := schema.NewInferrer(m.src, m.opts.SampleSize, m.logger)
	materializer := NewMaterializer(execer, m.d, schemaScript, m.logger)
	loader := NewLoader(m.d, m.opts.BatchSize, dataScript, m.logger)
	loader.OnProgress = m.OnProgress

	for _, table := range m.opts.Tables {
		if err := ctx.Err(); err != nil {
			return err
		}
		m.migrateTable(ctx, table, conn, stats, inferrer, materializer, loader)
	}
	return nil
}

func (m *Migrator) migrateTable(ctx context.Context, table string, conn *sql.Conn, stats *report.RunStats,
	inferrer *schema.Inferrer, materializer *Materializer, loader *Loader) {

	stats.TablesAttempted++
	tr := stats.Table(table)
	fail := func(step string, err error) {
		stats.AddError(table+"/"+step, err)
		stats.TablesFailed++
		tr.Status = report.TableFailed
		tr.Note = step + " failed"
		m.logger.Error("table failed", "table", table, "step", step, "error", err)
	}

	spec, err := inferrer.Infer(ctx, table)
	if err != nil {
		fail("infer", err)
		return
	}
	if spec.Empty() {
		stats.AddWarning(table+"/infer", "no rows sampled, table skipped")
		tr.Status = report.TableSkipped
		tr.Note = "no schema derivable"
		return
	}
	if o, ok := m.src.(Orderer); ok && len(spec.Keys()) > 0 {
		o.OrderBy(table, spec.Keys()...)
	}

	if err := materializer.Materialize(ctx, spec); err != nil {
		fail("create", err)
		return
	}

	if m.opts.DryRun {
		if n, err := m.src.FetchCount(ctx, table); err != nil {
			stats.AddWarning(table+"/count", err.Error())
		} else {
			tr.SourceRows = n
		}
		tr.Status = report.TablePlanned
		stats.TablesSucceeded++
		return
	}

	var rows []schema.Row
	retries, err := m.opts.Retry.Do(ctx, "extract "+table, func(int) error {
		var xerr error
		rows, xerr = ExtractAll(ctx, m.src, table, m.opts.BatchSize)
		return xerr
	})
	stats.RetryCount += retries
	if err != nil {
		// Rows from the failed attempt are not loaded.
		fail("extract", err)
		return
	}
	tr.SourceRows = int64(len(rows))
	if m.OnTable != nil {
		m.OnTable(table, len(rows))
	}

	res, err := loader.Load(ctx, conn, spec, rows, stats)
	stats.RowsAttempted += int64(len(rows))
	stats.RowsSucceeded += res.Succeeded
	stats.RowsFailed += res.Failed
	tr.Loaded, tr.Failed = res.Succeeded, res.Failed
	if err != nil {
		fail("load", err)
		return
	}

	rec, err := Reconcile(ctx, m.src, conn, m.d, table)
	switch {
	case err != nil:
		stats.AddWarning(table+"/reconcile", err.Error())
	case !rec.Match():
		stats.AddWarning(table+"/reconcile", fmt.Sprintf("source has %d rows, target has %d", rec.Source, rec.Target))
		fallthrough
	default:
		tr.SourceRows, tr.TargetRows = rec.Source, rec.Target
	}

	switch {
	case res.Failed == 0:
		tr.Status = report.TableLoaded
		stats.TablesSucceeded++
	case res.Succeeded == 0:
		tr.Status = report.TableFailed
		tr.Note = "every row failed"
		stats.TablesFailed++
	default:
		tr.Status = report.TablePartial
		tr.Note = fmt.Sprintf("%d rows failed", res.Failed)
		stats.TablesSucceeded++
	}
}
