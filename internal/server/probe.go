package server

import (
	"context"
	"database/sql"
	"time"

	"db-ferry/internal/dialect"
)

// StoreStatus is the outcome of one connectivity probe.
type StoreStatus struct {
	Store     string `json:"store"`
	OK        bool   `json:"ok"`
	Version   string `json:"version,omitempty"`
	Tables    int    `json:"tables"`
	LatencyMs int64  `json:"latencyMs"`
	Error     string `json:"error,omitempty"`
}

// Probe checks one store. It never fails; problems are reported in the status.
type Probe func(ctx context.Context) StoreStatus

// SQLProbe pings a SQL store and reads its version and table count.
func SQLProbe(name string, db *sql.DB, d dialect.Dialect, schemaName string) Probe {
	return func(ctx context.Context) (st StoreStatus) {
		st.Store = name
		start := time.Now()
		defer func() { st.LatencyMs = time.Since(start).Milliseconds() }()

		if db == nil {
			st.Error = "not configured"
			return st
		}
		if err := db.PingContext(ctx); err != nil {
			st.Error = err.Error()
			return st
		}
		if err := db.QueryRowContext(ctx, d.VersionQuery()).Scan(&st.Version); err != nil {
			st.Error = err.Error()
			return st
		}
		rows, err := db.QueryContext(ctx, d.TablesQuery(), d.GetSchemaName(schemaName))
		if err != nil {
			st.Error = err.Error()
			return st
		}
		defer rows.Close()
		for rows.Next() {
			st.Tables++
		}
		if err := rows.Err(); err != nil {
			st.Error = err.Error()
			return st
		}
		st.OK = true
		return st
	}
}

// SourceChecker is the part of the REST source a probe needs.
type SourceChecker interface {
	Ping(ctx context.Context) error
	ListTables(ctx context.Context) ([]string, error)
}

// SourceProbe pings the REST source and counts its published tables.
func SourceProbe(src SourceChecker) Probe {
	return func(ctx context.Context) (st StoreStatus) {
		st.Store = "source"
		start := time.Now()
		defer func() { st.LatencyMs = time.Since(start).Milliseconds() }()

		if src == nil {
			st.Error = "not configured"
			return st
		}
		if err := src.Ping(ctx); err != nil {
			st.Error = err.Error()
			return st
		}
		st.OK = true
		if tables, err := src.ListTables(ctx); err == nil {
			st.Tables = len(tables)
		}
		return st
	}
}
