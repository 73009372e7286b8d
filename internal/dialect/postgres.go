package dialect

import (
	"context"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

type PostgresDialect struct{}

func (d *PostgresDialect) Name() string { return "postgres" }

func (d *PostgresDialect) TablesQuery() string {
	return `SELECT table_name FROM information_schema.tables WHERE table_schema = $1 AND table_type = 'BASE TABLE' ORDER BY table_name`
}

func (d *PostgresDialect) ColumnsQuery() string {
	// column_type is rebuilt with its length/precision suffix so that parameterized types survive a diff.
	return `SELECT
    c.table_name,
    c.column_name,
    CASE
        WHEN c.character_maximum_length IS NOT NULL THEN c.data_type || '(' || c.character_maximum_length || ')'
        WHEN c.data_type = 'numeric' AND c.numeric_precision IS NOT NULL THEN 'numeric(' || c.numeric_precision || ',' || COALESCE(c.numeric_scale, 0) || ')'
        WHEN c.data_type = 'ARRAY' THEN c.udt_name
        ELSE c.data_type
    END AS column_type,
    c.is_nullable,
    (SELECT 'PRI' FROM information_schema.table_constraints tc
     JOIN information_schema.key_column_usage kcu ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
     WHERE tc.constraint_type = 'PRIMARY KEY'
     AND kcu.table_schema = c.table_schema AND kcu.table_name = c.table_name AND kcu.column_name = c.column_name LIMIT 1) AS column_key,
    c.column_default
FROM information_schema.columns c
WHERE c.table_schema = $1
ORDER BY c.table_name, c.ordinal_position`
}

func (d *PostgresDialect) ForeignKeysQuery() string {
	return `SELECT kcu.table_name, kcu.constraint_name, kcu.column_name, ccu.table_name AS referenced_table_name, ccu.column_name AS referenced_column_name FROM information_schema.key_column_usage kcu JOIN information_schema.constraint_column_usage ccu ON kcu.constraint_name = ccu.constraint_name JOIN information_schema.table_constraints tc ON kcu.constraint_name = tc.constraint_name WHERE kcu.table_schema = $1 AND tc.constraint_type = 'FOREIGN KEY'`
}

func (d *PostgresDialect) VersionQuery() string {
	return "SELECT version()"
}

func (d *PostgresDialect) BeforeLoad(ctx context.Context, conn Execer) error {
	// session_replication_role needs superuser; callers treat a failure here as a warning.
	_, err := conn.ExecContext(ctx, "SET session_replication_role = 'replica'")
	return err
}

func (d *PostgresDialect) AfterLoad(ctx context.Context, conn Execer) error {
	_, err := conn.ExecContext(ctx, "SET session_replication_role = 'origin'")
	return err
}

func (d *PostgresDialect) Types() TypeSet {
	return TypeSet{
		Boolean:   "BOOLEAN",
		SmallInt:  "SMALLINT",
		Int:       "INTEGER",
		BigInt:    "BIGINT",
		Decimal:   "NUMERIC",
		Double:    "DOUBLE PRECISION",
		Real:      "REAL",
		VarChar:   "VARCHAR",
		Char:      "CHAR",
		ShortText: "VARCHAR(255)",
		LongText:  "TEXT",
		Enum:      "VARCHAR(255)",
		Timestamp: "TIMESTAMP",
		Date:      "DATE",
		Time:      "TIME",
		UUID:      "UUID",
		JSON:      "JSONB",
		Bytes:     "BYTEA",
	}
}

func (d *PostgresDialect) NowDefault() string  { return "CURRENT_TIMESTAMP" }
func (d *PostgresDialect) UUIDDefault() string { return "gen_random_uuid()" }

func (d *PostgresDialect) BoolLiteral(b bool) string {
	if b {
		return "TRUE"
	}
	return "FALSE"
}

func (d *PostgresDialect) QuoteIdent(name string) string {
	return pq.QuoteIdentifier(name)
}

func (d *PostgresDialect) CreateTableQuery(table string, columnDefs []string, primaryKey []string) string {
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s %s", d.QuoteIdent(table), createTableBody(columnDefs, primaryKey, d.QuoteIdent))
}

func (d *PostgresDialect) AddColumnQuery(table, columnDef string) string {
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", d.QuoteIdent(table), columnDef)
}

// ModifyColumnQuery changes the type only. Relaxing NOT NULL would need a DROP keyword,
// which the schema gate treats as destructive.
func (d *PostgresDialect) ModifyColumnQuery(table, column, columnType string, nullable bool) string {
	q := fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s TYPE %s", d.QuoteIdent(table), d.QuoteIdent(column), columnType)
	if !nullable {
		q += fmt.Sprintf(", ALTER COLUMN %s SET NOT NULL", d.QuoteIdent(column))
	}
	return q
}

func (d *PostgresDialect) DropColumnQuery(table, column string) string {
	return fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", d.QuoteIdent(table), d.QuoteIdent(column))
}

func (d *PostgresDialect) DropTableQuery(table string) string {
	return fmt.Sprintf("DROP TABLE %s", d.QuoteIdent(table))
}

func (d *PostgresDialect) Placeholder(index int) string {
	return fmt.Sprintf("$%d", index+1)
}

func (d *PostgresDialect) InsertQuery(table string, cols []string) string {
	vals := GeneratePlaceholders(len(cols), 0, d.Placeholder)
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", d.QuoteIdent(table), quoteList(cols, d.QuoteIdent), vals)
}

func (d *PostgresDialect) UpsertQuery(table string, cols []string, conflict []string, rows int) string {
	tuples := make([]string, rows)
	for i := range tuples {
		tuples[i] = "(" + GeneratePlaceholders(len(cols), i*len(cols), d.Placeholder) + ")"
	}

	var updates []string
	for _, c := range cols {
		if contains(conflict, c) {
			continue
		}
		q := d.QuoteIdent(c)
		updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", q, q))
	}
	action := "DO NOTHING"
	if len(updates) > 0 {
		action = "DO UPDATE SET " + strings.Join(updates, ", ")
	}

	return fmt.Sprintf("INSERT INTO %s (%s) VALUES %s ON CONFLICT (%s) %s",
		d.QuoteIdent(table), quoteList(cols, d.QuoteIdent), strings.Join(tuples, ", "), quoteList(conflict, d.QuoteIdent), action)
}

func (d *PostgresDialect) CountQuery(table string) string {
	return fmt.Sprintf("SELECT COUNT(*) FROM %s", d.QuoteIdent(table))
}

func (d *PostgresDialect) PageQuery(table, orderBy string, limit, offset int) string {
	q := fmt.Sprintf("SELECT * FROM %s", d.QuoteIdent(table))
	if orderBy != "" {
		q += " ORDER BY " + d.QuoteIdent(orderBy)
	}
	return fmt.Sprintf("%s LIMIT %d OFFSET %d", q, limit, offset)
}

func (d *PostgresDialect) Literal(v any) string {
	return formatLiteral(v, d.BoolLiteral, false)
}

func (d *PostgresDialect) MaxParams() int { return 65535 }

func (d *PostgresDialect) NormalizeType(sqlType string) string {
	t := DefaultNormalizeType(sqlType)
	switch t {
	case "int4", "integer":
		return "int"
	case "int2":
		return "smallint"
	case "int8":
		return "bigint"
	case "float4":
		return "real"
	case "float8":
		return "double precision"
	case "bpchar":
		return "char"
	case "timestamp without time zone":
		return "timestamp"
	default:
		return strings.ReplaceAll(t, "character varying", "varchar")
	}
}

func (d *PostgresDialect) GetSchemaName(input string) string {
	if input == "" {
		return "public"
	}
	return input
}
