package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"db-ferry/internal/dialect"
	"db-ferry/internal/report"
	"db-ferry/internal/schema"
	"db-ferry/internal/typemap"
)

// ErrNoSchema is returned for a TableSpec without columns.
var ErrNoSchema = errors.New("no schema derivable")

// RenderCreateTable renders the idempotent CREATE TABLE for spec.
func RenderCreateTable(spec *schema.TableSpec, d dialect.Dialect) (string, error) {
	if spec.Empty() {
		return "", fmt.Errorf("%s: %w", spec.Name, ErrNoSchema)
	}
	defs := make([]string, len(spec.Columns))
	for i, col := range spec.Columns {
		defs[i] = typemap.ColumnDefinition(col, d)
	}
	return d.CreateTableQuery(spec.Name, defs, spec.Keys()), nil
}

// Materializer creates target tables. With a nil Execer it only records the
// statements in the schema script.
type Materializer struct {
	db     dialect.Execer
	d      dialect.Dialect
	script *report.Script
	logger *slog.Logger
}

func NewMaterializer(db dialect.Execer, d dialect.Dialect, script *report.Script, logger *slog.Logger) *Materializer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Materializer{db: db, d: d, script: script, logger: logger}
}

// Materialize creates the table if it does not exist yet. An existing table
// is left untouched.
func (m *Materializer) Materialize(ctx context.Context, spec *schema.TableSpec) error {
	stmt, err := RenderCreateTable(spec, m.d)
	if err != nil {
		return err
	}
	if err := m.script.Statement(stmt); err != nil {
		m.logger.Warn("could not write schema script", "table", spec.Name, "error", err)
	}
	if m.db == nil {
		return nil
	}
	if _, err := m.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("create table %s: %w", spec.Name, err)
	}
	m.logger.Info("table ready", "table", spec.Name, "columns", len(spec.Columns))
	return nil
}
