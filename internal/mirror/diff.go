// Package mirror keeps a mirror database in step with the target: a schema
// diff gate and an upsert data syncer, with their history in a state store.
package mirror

import (
	"fmt"
	"strings"

	"db-ferry/internal/dialect"
	"db-ferry/internal/schema"
	"db-ferry/internal/typemap"
)

// Diff returns the statements that bring the mirror's structure in line with
// the target's. New tables come first in dependency order, then column
// changes, then drops of whatever only the mirror has. Type changes are only
// emitted when both stores speak the same dialect, since cross-dialect type
// names never compare equal.
func Diff(target, mirror []*schema.Table, td, md dialect.Dialect) []string {
	mirrorByName := indexTables(mirror)
	targetByName := indexTables(target)
	sameDialect := td.Name() == md.Name()

	var creates, alters, drops []string
	for _, t := range target {
		m, ok := mirrorByName[strings.ToLower(t.Name)]
		if !ok {
			creates = append(creates, createTable(t, td, md))
			continue
		}
		alters = append(alters, diffColumns(t, m, td, md, sameDialect)...)
	}

	for i := len(mirror) - 1; i >= 0; i-- {
		m := mirror[i]
		if _, ok := targetByName[strings.ToLower(m.Name)]; !ok {
			drops = append(drops, md.DropTableQuery(m.Name))
		}
	}

	stmts := append(creates, alters...)
	return append(stmts, drops...)
}

func diffColumns(t, m *schema.Table, td, md dialect.Dialect, sameDialect bool) []string {
	var stmts []string
	for _, col := range t.Columns {
		mc := findColumn(m, col.Name)
		if mc == nil {
			stmts = append(stmts, md.AddColumnQuery(m.Name, columnDef(col, td, md)))
			continue
		}
		if !sameDialect {
			continue
		}
		typeChanged := md.NormalizeType(col.ColumnType) != md.NormalizeType(mc.ColumnType)
		nullChanged := col.IsNullable != mc.IsNullable
		if !typeChanged && nullChanged && col.IsNullable && !relaxesNotNull(md) {
			// The statement would change nothing and be emitted again on every run.
			continue
		}
		if typeChanged || nullChanged {
			stmts = append(stmts, md.ModifyColumnQuery(m.Name, mc.Name, col.ColumnType, col.IsNullable))
		}
	}
	for _, mc := range m.Columns {
		if findColumn(t, mc.Name) == nil {
			stmts = append(stmts, md.DropColumnQuery(m.Name, mc.Name))
		}
	}
	return stmts
}

// relaxesNotNull reports whether the dialect's modify statement can turn a
// NOT NULL column nullable. Postgres would need DROP NOT NULL, which the gate
// blocks as destructive.
func relaxesNotNull(d dialect.Dialect) bool {
	return d.Name() != "postgres"
}

func createTable(t *schema.Table, td, md dialect.Dialect) string {
	defs := make([]string, len(t.Columns))
	var pk []string
	for i, col := range t.Columns {
		defs[i] = columnDef(col, td, md)
		if col.IsPK {
			pk = append(pk, col.Name)
		}
	}
	return md.CreateTableQuery(t.Name, defs, pk)
}

// columnDef spells a live target column for the mirror. Same-dialect types
// are copied verbatim; otherwise they go through the type mapper.
func columnDef(col *schema.Column, td, md dialect.Dialect) string {
	spec := schema.ColumnSpec{
		Name:       col.Name,
		Type:       schema.TypeOfDeclared(col.ColumnType),
		Declared:   col.ColumnType,
		Nullable:   col.IsNullable,
		PrimaryKey: col.IsPK,
		Default:    col.Default,
	}
	if td.Name() != md.Name() {
		return typemap.ColumnDefinition(spec, md)
	}

	def := fmt.Sprintf("%s %s", md.QuoteIdent(col.Name), col.ColumnType)
	if d := typemap.TranslateDefault(col.Default, col.ColumnType, md); d != "" {
		def += " DEFAULT " + d
	}
	if !col.IsNullable || col.IsPK {
		def += " NOT NULL"
	}
	return def
}

func indexTables(tables []*schema.Table) map[string]*schema.Table {
	m := make(map[string]*schema.Table, len(tables))
	for _, t := range tables {
		m[strings.ToLower(t.Name)] = t
	}
	return m
}

func findColumn(t *schema.Table, name string) *schema.Column {
	for _, c := range t.Columns {
		if strings.EqualFold(c.Name, name) {
			return c
		}
	}
	return nil
}
