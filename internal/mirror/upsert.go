package mirror

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"db-ferry/internal/engine"
)

// DataResult is what a data sync reports back. Inserts and updates are not
// told apart: every upserted row counts as added.
type DataResult struct {
	OK      bool             `json:"ok"`
	DryRun  bool             `json:"dryRun,omitempty"`
	Tables  []string         `json:"tables"`
	Added   int64            `json:"added"`
	Updated int64            `json:"updated"`
	Deleted int64            `json:"deleted"`
	Counts  map[string]int64 `json:"counts,omitempty"`
}

// Syncer pages through allow-listed target tables and upserts every page
// into the mirror, keyed by the conflict column.
type Syncer struct {
	target, mirror Store
	tables         []string
	conflict       string
	batchSize      int
	mirrorDeletes  bool
	logger         *slog.Logger
}

type SyncerOptions struct {
	Tables         []string
	ConflictColumn string
	BatchSize      int
	MirrorDeletes  bool
}

func NewSyncer(target, mirror Store, opts SyncerOptions, logger *slog.Logger) *Syncer {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 1000
	}
	if opts.ConflictColumn == "" {
		opts.ConflictColumn = "id"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{
		target:        target,
		mirror:        mirror,
		tables:        opts.Tables,
		conflict:      opts.ConflictColumn,
		batchSize:     opts.BatchSize,
		mirrorDeletes: opts.MirrorDeletes,
		logger:        logger,
	}
}

// Run syncs every allow-listed table. A dry run only counts target rows. A
// failing table does not stop the others; the errors are joined.
func (s *Syncer) Run(ctx context.Context, dryRun bool) (*DataResult, error) {
	res := &DataResult{DryRun: dryRun, Tables: append([]string{}, s.tables...)}
	if dryRun {
		res.Counts = make(map[string]int64, len(s.tables))
	}
	if len(s.tables) == 0 {
		s.logger.Warn("data sync has no tables configured")
	}
	if s.mirrorDeletes && !dryRun {
		s.logger.Warn("mirror deletes requested but deletion reconciliation is not implemented; mirror-only rows are kept")
	}

	var errs []error
	for _, table := range s.tables {
		total, err := engine.TargetCount(ctx, s.target.DB, s.target.Dialect, table)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", table, err))
			continue
		}
		if dryRun {
			res.Counts[table] = total
			s.logger.Info("data sync dry run", "table", table, "rows", total)
			continue
		}

		n, err := s.syncTable(ctx, table, total)
		res.Added += n
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", table, err))
		}
	}

	err := errors.Join(errs...)
	res.OK = err == nil
	return res, err
}

func (s *Syncer) syncTable(ctx context.Context, table string, total int64) (int64, error) {
	var upserted int64
	for offset := 0; int64(offset) < total; offset += s.batchSize {
		cols, rows, err := s.readPage(ctx, table, offset)
		if err != nil {
			return upserted, err
		}
		if len(rows) == 0 {
			break
		}
		n, err := s.upsert(ctx, table, cols, rows)
		upserted += n
		if err != nil {
			return upserted, err
		}
		s.logger.Debug("page upserted", "table", table, "offset", offset, "rows", n, "total", total)
		if len(rows) < s.batchSize {
			break
		}
	}
	s.logger.Info("table synced", "table", table, "rows", upserted)
	return upserted, nil
}

func (s *Syncer) readPage(ctx context.Context, table string, offset int) ([]string, [][]any, error) {
	q := s.target.Dialect.PageQuery(table, s.conflict, s.batchSize, offset)
	rows, err := s.target.DB.QueryContext(ctx, q)
	if err != nil {
		return nil, nil, fmt.Errorf("read page at offset %d: %w", offset, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, nil, err
	}
	text := make([]bool, len(types))
	for i, ct := range types {
		text[i] = !isBinaryType(ct.DatabaseTypeName())
	}

	var page [][]any
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, err
		}
		// Drivers hand text back as []byte, which other drivers bind as binary.
		for i, v := range vals {
			if b, ok := v.([]byte); ok && text[i] {
				vals[i] = string(b)
			}
		}
		page = append(page, vals)
	}
	return cols, page, rows.Err()
}

func isBinaryType(name string) bool {
	name = strings.ToUpper(name)
	switch {
	case strings.Contains(name, "BLOB"), strings.Contains(name, "BINARY"), strings.Contains(name, "RAW"):
		return true
	case name == "BYTEA", name == "IMAGE", name == "BIT":
		return true
	}
	return false
}

// upsert writes rows in as few statements as the mirror's bind limit allows.
func (s *Syncer) upsert(ctx context.Context, table string, cols []string, rows [][]any) (int64, error) {
	d := s.mirror.Dialect
	perStmt := max(1, d.MaxParams()/len(cols))

	var done int64
	for start := 0; start < len(rows); start += perStmt {
		chunk := rows[start:min(start+perStmt, len(rows))]
		args := make([]any, 0, len(chunk)*len(cols))
		for _, r := range chunk {
			args = append(args, r...)
		}
		q := d.UpsertQuery(table, cols, []string{s.conflict}, len(chunk))
		if _, err := s.mirror.DB.ExecContext(ctx, q, args...); err != nil {
			return done, fmt.Errorf("upsert %d rows: %w", len(chunk), err)
		}
		done += int64(len(chunk))
	}
	return done, nil
}
