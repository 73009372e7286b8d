package engine

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"db-ferry/internal/dialect"
)

// Counter reports the exact row count of a source table.
type Counter interface {
	FetchCount(ctx context.Context, table string) (int64, error)
}

// RowQuerier is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type RowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Reconciliation is the count comparison of one table.
type Reconciliation struct {
	Table  string
	Source int64
	Target int64
}

func (r Reconciliation) Match() bool {
	return r.Source == r.Target
}

// Reconcile compares source and target row counts. A mismatch is logged as a
// warning and is not an error.
func Reconcile(ctx context.Context, src Counter, db RowQuerier, d dialect.Dialect, table string) (Reconciliation, error) {
	rec := Reconciliation{Table: table}

	n, err := src.FetchCount(ctx, table)
	if err != nil {
		return rec, fmt.Errorf("source count: %w", err)
	}
	rec.Source = n

	if rec.Target, err = TargetCount(ctx, db, d, table); err != nil {
		return rec, err
	}

	if rec.Match() {
		slog.Info("reconciliation passed", "table", table, "rows", rec.Source)
	} else {
		slog.Warn("reconciliation mismatch", "table", table, "source", rec.Source, "target", rec.Target)
	}
	return rec, nil
}

// TargetCount runs COUNT(*) on a SQL store.
func TargetCount(ctx context.Context, db RowQuerier, d dialect.Dialect, table string) (int64, error) {
	var n int64
	if err := db.QueryRowContext(ctx, d.CountQuery(table)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}
