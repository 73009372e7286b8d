package schema

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"db-ferry/internal/dialect"
)

// Querier is satisfied by *sql.DB and *sql.Conn.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Introspect reads the live table structure of a SQL store and returns the
// tables in foreign-key dependency order.
func Introspect(ctx context.Context, db Querier, d dialect.Dialect, schemaName string) ([]*Table, error) {
	target := d.GetSchemaName(schemaName)

	// Normalized keys for case-insensitive matching (Oracle support)
	tableMap := make(map[string]*Table)
	var tables []*Table

	// --- Step 1: Fetch Tables ---
	rows, err := db.QueryContext(ctx, d.TablesQuery(), target)
	if err != nil {
		return nil, fmt.Errorf("failed to query tables: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		t := &Table{Name: name, Dependencies: []string{}}
		tableMap[strings.ToUpper(name)] = t
		tables = append(tables, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tables: %w", err)
	}

	// --- Step 2: Fetch Columns ---
	colRows, err := db.QueryContext(ctx, d.ColumnsQuery(), target)
	if err != nil {
		return nil, fmt.Errorf("failed to query columns: %w", err)
	}
	defer colRows.Close()

	for colRows.Next() {
		var tName, cName, cType, isNull, cKey, cDefault sql.NullString
		if err := colRows.Scan(&tName, &cName, &cType, &isNull, &cKey, &cDefault); err != nil {
			return nil, fmt.Errorf("failed to scan column (table: %s): %w", tName.String, err)
		}
		if !tName.Valid || !cName.Valid {
			continue
		}

		t, ok := tableMap[strings.ToUpper(tName.String)]
		if !ok {
			continue
		}
		t.Columns = append(t.Columns, &Column{
			Name:       cName.String,
			ColumnType: cType.String,
			IsNullable: strings.EqualFold(isNull.String, "YES"),
			IsPK:       strings.Contains(cKey.String, "PRI"),
			Default:    cDefault.String,
		})
	}
	if err := colRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating columns: %w", err)
	}

	// --- Step 3: Fetch Foreign Keys ---
	fkRows, err := db.QueryContext(ctx, d.ForeignKeysQuery(), target)
	if err != nil {
		// Missing catalog permissions only cost us the ordering.
		slog.Warn("foreign key introspection failed, keeping catalog order", "dialect", d.Name(), "error", err)
		return tables, nil
	}
	defer fkRows.Close()

	for fkRows.Next() {
		var tName, cConst, cName, rTable, rCol sql.NullString
		if err := fkRows.Scan(&tName, &cConst, &cName, &rTable, &rCol); err != nil {
			return nil, fmt.Errorf("failed to scan foreign key: %w", err)
		}
		if !tName.Valid || !rTable.Valid || tName.String == rTable.String {
			continue
		}
		t, ok := tableMap[strings.ToUpper(tName.String)]
		if !ok {
			continue
		}
		// Only tables we know about; external references cannot be ordered.
		ref, exists := tableMap[strings.ToUpper(rTable.String)]
		if !exists {
			continue
		}
		t.Dependencies = append(t.Dependencies, ref.Name)
		t.ForeignKeys = append(t.ForeignKeys, &ForeignKey{
			Column:    cName.String,
			RefTable:  ref.Name,
			RefColumn: rCol.String,
		})
	}
	if err := fkRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating foreign keys: %w", err)
	}

	return SortTablesByFKCount(tables), nil
}

// SortTablesByFKCount orders tables so that referenced tables come before the
// tables that reference them. Self references are ignored. A cycle is broken
// at the table with the fewest unresolved references, ties by name.
func SortTablesByFKCount(tables []*Table) []*Table {
	pending := make(map[string]*Table, len(tables))
	for _, t := range tables {
		pending[t.Name] = t
	}
	unresolved := func(t *Table) int {
		n := 0
		for _, dep := range t.Dependencies {
			if dep != t.Name && pending[dep] != nil {
				n++
			}
		}
		return n
	}

	sorted := make([]*Table, 0, len(pending))
	for len(pending) > 0 {
		var ready []*Table
		for _, t := range tables {
			if pending[t.Name] == t && unresolved(t) == 0 {
				ready = append(ready, t)
			}
		}
		if len(ready) == 0 {
			var next *Table
			for _, t := range tables {
				if pending[t.Name] != t {
					continue
				}
				if next == nil || unresolved(t) < unresolved(next) ||
					(unresolved(t) == unresolved(next) && t.Name < next.Name) {
					next = t
				}
			}
			slog.Debug("breaking circular dependency", "table", next.Name, "unresolved", unresolved(next))
			ready = []*Table{next}
		}
		for _, t := range ready {
			delete(pending, t.Name)
			sorted = append(sorted, t)
		}
	}
	return sorted
}
