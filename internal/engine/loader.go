package engine

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"db-ferry/internal/dberr"
	"db-ferry/internal/dialect"
	"db-ferry/internal/report"
	"db-ferry/internal/schema"
)

// Preparer is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type Preparer interface {
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// LoadResult counts the rows of one table.
type LoadResult struct {
	Succeeded int64
	Failed    int64
}

// Loader inserts rows one statement execution per row. Batches only set how
// often progress is reported; every row commits on its own.
type Loader struct {
	d         dialect.Dialect
	batchSize int
	script    *report.Script
	logger    *slog.Logger

	// OnProgress is called after each batch with the rows attempted so far.
	OnProgress func(table string, done, total int)
}

func NewLoader(d dialect.Dialect, batchSize int, script *report.Script, logger *slog.Logger) *Loader {
	if batchSize <= 0 {
		batchSize = 1000
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{d: d, batchSize: batchSize, script: script, logger: logger}
}

// Load inserts rows into spec's table. A failing row is logged, counted and
// recorded in stats, and the next row is attempted. Only a failure to prepare
// the statement returns an error, with every row counted as failed.
func (l *Loader) Load(ctx context.Context, db Preparer, spec *schema.TableSpec, rows []schema.Row, stats *report.RunStats) (LoadResult, error) {
	var res LoadResult
	cols := spec.ColumnNames()
	query := l.d.InsertQuery(spec.Name, cols)

	stmt, err := db.PrepareContext(ctx, query)
	if err != nil {
		res.Failed = int64(len(rows))
		return res, fmt.Errorf("prepare insert into %s: %w", spec.Name, err)
	}
	defer stmt.Close()

	if err := l.script.Comment(fmt.Sprintf("%s: %d rows", spec.Name, len(rows))); err != nil {
		l.logger.Warn("could not write data script", "table", spec.Name, "error", err)
	}
	for i, row := range rows {
		if err := l.loadRow(ctx, stmt, spec, cols, row); err != nil {
			res.Failed++
			l.logger.Error("row insert failed", "table", spec.Name, "row", i+1, "kind", dberr.Classify(err), "error", err)
			if stats != nil {
				stats.AddError(fmt.Sprintf("%s/row %d", spec.Name, i+1), err)
			}
		} else {
			res.Succeeded++
		}

		if done := i + 1; done%l.batchSize == 0 || done == len(rows) {
			l.logger.Debug("batch loaded", "table", spec.Name, "done", done, "total", len(rows), "failed", res.Failed)
			if l.OnProgress != nil {
				l.OnProgress(spec.Name, done, len(rows))
			}
		}
	}
	return res, nil
}

func (l *Loader) loadRow(ctx context.Context, stmt *sql.Stmt, spec *schema.TableSpec, cols []string, row schema.Row) error {
	values, err := spec.Conform(row)
	if err != nil {
		return err
	}
	args := make([]any, len(values))
	for i, v := range values {
		if args[i], err = DriverValue(v); err != nil {
			return fmt.Errorf("column %s: %w", cols[i], err)
		}
	}
	if _, err := stmt.ExecContext(ctx, args...); err != nil {
		return err
	}
	if err := l.script.Statement(RenderInsert(l.d, spec.Name, cols, args)); err != nil {
		l.logger.Warn("could not write data script", "table", spec.Name, "error", err)
	}
	return nil
}

// DriverValue converts a decoded source value into a database/sql argument.
// Null stays nil and nested objects or arrays become their JSON text.
func DriverValue(v any) (any, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case json.Number:
		if n, err := val.Int64(); err == nil {
			return n, nil
		}
		return val.String(), nil
	case map[string]any, []any:
		b, err := json.Marshal(val)
		if err != nil {
			return nil, err
		}
		return string(b), nil
	default:
		return val, nil
	}
}

// RenderInsert renders a literal INSERT for the data script.
func RenderInsert(d dialect.Dialect, table string, cols []string, values []any) string {
	quoted := make([]string, len(cols))
	lits := make([]string, len(values))
	for i, c := range cols {
		quoted[i] = d.QuoteIdent(c)
	}
	for i, v := range values {
		lits[i] = d.Literal(v)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", d.QuoteIdent(table), strings.Join(quoted, ", "), strings.Join(lits, ", "))
}
