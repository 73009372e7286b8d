package dialect

import (
	"context"
	"fmt"
	"strings"

	_ "github.com/denisenkom/go-mssqldb" // SQL Server Driver
)

type MSSQLDialect struct{}

// go-mssqldb prefers @p1, @p2 named parameters over ?.

func (d *MSSQLDialect) Name() string { return "sqlserver" }

func (d *MSSQLDialect) TablesQuery() string {
	return `SELECT TABLE_NAME FROM INFORMATION_SCHEMA.TABLES WHERE TABLE_SCHEMA = @p1 AND TABLE_TYPE = 'BASE TABLE' ORDER BY TABLE_NAME`
}

func (d *MSSQLDialect) ColumnsQuery() string {
	return `
		SELECT
			c.TABLE_NAME,
			c.COLUMN_NAME,
			CASE
				WHEN c.CHARACTER_MAXIMUM_LENGTH = -1 THEN c.DATA_TYPE + '(max)'
				WHEN c.CHARACTER_MAXIMUM_LENGTH IS NOT NULL THEN c.DATA_TYPE + '(' + CAST(c.CHARACTER_MAXIMUM_LENGTH AS VARCHAR(10)) + ')'
				WHEN c.DATA_TYPE IN ('decimal', 'numeric') THEN c.DATA_TYPE + '(' + CAST(c.NUMERIC_PRECISION AS VARCHAR(10)) + ',' + CAST(c.NUMERIC_SCALE AS VARCHAR(10)) + ')'
				ELSE c.DATA_TYPE
			END AS COLUMN_TYPE,
			c.IS_NULLABLE,
			CASE WHEN pk.COLUMN_NAME IS NOT NULL THEN 'PRI' ELSE '' END AS COLUMN_KEY,
			c.COLUMN_DEFAULT
		FROM INFORMATION_SCHEMA.COLUMNS c
		LEFT JOIN (
			SELECT kcu.TABLE_NAME, kcu.COLUMN_NAME
			FROM INFORMATION_SCHEMA.TABLE_CONSTRAINTS tc
			JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE kcu
				ON tc.CONSTRAINT_NAME = kcu.CONSTRAINT_NAME
			WHERE tc.CONSTRAINT_TYPE = 'PRIMARY KEY' AND tc.TABLE_SCHEMA = @p1
		) pk ON c.TABLE_NAME = pk.TABLE_NAME AND c.COLUMN_NAME = pk.COLUMN_NAME
		WHERE c.TABLE_SCHEMA = @p1
		ORDER BY c.TABLE_NAME, c.ORDINAL_POSITION
	`
}

func (d *MSSQLDialect) ForeignKeysQuery() string {
	return `SELECT KCU1.TABLE_NAME, KCU1.CONSTRAINT_NAME, KCU1.COLUMN_NAME, KCU2.TABLE_NAME AS REF_TABLE, KCU2.COLUMN_NAME AS REF_COLUMN FROM INFORMATION_SCHEMA.REFERENTIAL_CONSTRAINTS RC JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE KCU1 ON RC.CONSTRAINT_NAME = KCU1.CONSTRAINT_NAME JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE KCU2 ON RC.UNIQUE_CONSTRAINT_NAME = KCU2.CONSTRAINT_NAME WHERE KCU1.TABLE_SCHEMA = @p1`
}

func (d *MSSQLDialect) VersionQuery() string {
	return "SELECT @@VERSION"
}

// BeforeLoad is a no-op: constraints are per table in SQL Server and the loader never disables them.
func (d *MSSQLDialect) BeforeLoad(ctx context.Context, conn Execer) error { return nil }

func (d *MSSQLDialect) AfterLoad(ctx context.Context, conn Execer) error { return nil }

func (d *MSSQLDialect) Types() TypeSet {
	return TypeSet{
		Boolean:   "BIT",
		SmallInt:  "SMALLINT",
		Int:       "INT",
		BigInt:    "BIGINT",
		Decimal:   "DECIMAL",
		Double:    "FLOAT",
		Real:      "REAL",
		VarChar:   "NVARCHAR",
		Char:      "NCHAR",
		ShortText: "NVARCHAR(255)",
		LongText:  "NVARCHAR(MAX)",
		Enum:      "NVARCHAR(255)",
		Timestamp: "DATETIME2",
		Date:      "DATE",
		Time:      "TIME",
		UUID:      "UNIQUEIDENTIFIER",
		JSON:      "NVARCHAR(MAX)",
		Bytes:     "VARBINARY(MAX)",
	}
}

func (d *MSSQLDialect) NowDefault() string  { return "SYSDATETIME()" }
func (d *MSSQLDialect) UUIDDefault() string { return "NEWID()" }

func (d *MSSQLDialect) BoolLiteral(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func (d *MSSQLDialect) QuoteIdent(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

// CreateTableQuery guards with OBJECT_ID because SQL Server has no CREATE TABLE IF NOT EXISTS.
func (d *MSSQLDialect) CreateTableQuery(table string, columnDefs []string, primaryKey []string) string {
	return fmt.Sprintf("IF OBJECT_ID(N'%s', N'U') IS NULL CREATE TABLE %s %s",
		strings.ReplaceAll(table, "'", "''"), d.QuoteIdent(table), createTableBody(columnDefs, primaryKey, d.QuoteIdent))
}

func (d *MSSQLDialect) AddColumnQuery(table, columnDef string) string {
	return fmt.Sprintf("ALTER TABLE %s ADD %s", d.QuoteIdent(table), columnDef)
}

func (d *MSSQLDialect) ModifyColumnQuery(table, column, columnType string, nullable bool) string {
	null := "NULL"
	if !nullable {
		null = "NOT NULL"
	}
	return fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s %s %s", d.QuoteIdent(table), d.QuoteIdent(column), columnType, null)
}

func (d *MSSQLDialect) DropColumnQuery(table, column string) string {
	return fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", d.QuoteIdent(table), d.QuoteIdent(column))
}

func (d *MSSQLDialect) DropTableQuery(table string) string {
	return fmt.Sprintf("DROP TABLE %s", d.QuoteIdent(table))
}

func (d *MSSQLDialect) Placeholder(index int) string {
	return fmt.Sprintf("@p%d", index+1)
}

func (d *MSSQLDialect) InsertQuery(table string, cols []string) string {
	vals := GeneratePlaceholders(len(cols), 0, d.Placeholder)
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", d.QuoteIdent(table), quoteList(cols, d.QuoteIdent), vals)
}

func (d *MSSQLDialect) UpsertQuery(table string, cols []string, conflict []string, rows int) string {
	tuples := make([]string, rows)
	for i := range tuples {
		tuples[i] = "(" + GeneratePlaceholders(len(cols), i*len(cols), d.Placeholder) + ")"
	}

	on := make([]string, len(conflict))
	for i, c := range conflict {
		on[i] = fmt.Sprintf("tgt.%s = src.%s", d.QuoteIdent(c), d.QuoteIdent(c))
	}
	var updates, srcCols []string
	for _, c := range cols {
		srcCols = append(srcCols, "src."+d.QuoteIdent(c))
		if contains(conflict, c) {
			continue
		}
		updates = append(updates, fmt.Sprintf("tgt.%s = src.%s", d.QuoteIdent(c), d.QuoteIdent(c)))
	}

	q := fmt.Sprintf("MERGE INTO %s AS tgt USING (VALUES %s) AS src (%s) ON %s",
		d.QuoteIdent(table), strings.Join(tuples, ", "), quoteList(cols, d.QuoteIdent), strings.Join(on, " AND "))
	if len(updates) > 0 {
		q += " WHEN MATCHED THEN UPDATE SET " + strings.Join(updates, ", ")
	}
	return q + fmt.Sprintf(" WHEN NOT MATCHED THEN INSERT (%s) VALUES (%s);", quoteList(cols, d.QuoteIdent), strings.Join(srcCols, ", "))
}

func (d *MSSQLDialect) CountQuery(table string) string {
	return fmt.Sprintf("SELECT COUNT(*) FROM %s", d.QuoteIdent(table))
}

func (d *MSSQLDialect) PageQuery(table, orderBy string, limit, offset int) string {
	order := "(SELECT NULL)"
	if orderBy != "" {
		order = d.QuoteIdent(orderBy)
	}
	return fmt.Sprintf("SELECT * FROM %s ORDER BY %s OFFSET %d ROWS FETCH NEXT %d ROWS ONLY", d.QuoteIdent(table), order, offset, limit)
}

func (d *MSSQLDialect) Literal(v any) string {
	s := formatLiteral(v, d.BoolLiteral, false)
	if strings.HasPrefix(s, "'") {
		return "N" + s
	}
	return s
}

func (d *MSSQLDialect) MaxParams() int { return 2100 }

func (d *MSSQLDialect) NormalizeType(sqlType string) string {
	return DefaultNormalizeType(sqlType)
}

func (d *MSSQLDialect) GetSchemaName(input string) string {
	if input == "" {
		return "dbo"
	}
	return input
}
