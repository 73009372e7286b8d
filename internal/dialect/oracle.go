package dialect

import (
	"context"
	"fmt"
	"strings"
)

type OracleDialect struct{}

func (d *OracleDialect) Name() string { return "oracle" }

func (d *OracleDialect) TablesQuery() string {
	// USER_TABLES lists tables owned by the current user.
	// We include a dummy clause to consume the schema argument passed by standard callers.
	return `SELECT TABLE_NAME FROM USER_TABLES WHERE :1 IS NOT NULL ORDER BY TABLE_NAME`
}

func (d *OracleDialect) ColumnsQuery() string {
	return `
SELECT
    t.TABLE_NAME,
    t.COLUMN_NAME,
    CASE
        WHEN t.DATA_TYPE IN ('VARCHAR2', 'NVARCHAR2', 'CHAR', 'NCHAR') THEN t.DATA_TYPE || '(' || t.CHAR_LENGTH || ')'
        WHEN t.DATA_TYPE = 'NUMBER' AND t.DATA_PRECISION IS NOT NULL THEN 'NUMBER(' || t.DATA_PRECISION || ',' || COALESCE(t.DATA_SCALE, 0) || ')'
        ELSE t.DATA_TYPE
    END,
    CASE WHEN t.NULLABLE = 'Y' THEN 'YES' ELSE 'NO' END,
    CASE WHEN p.CONSTRAINT_NAME IS NOT NULL THEN 'PRI' ELSE '' END,
    NULL
FROM USER_TAB_COLUMNS t
LEFT JOIN (
    SELECT cc.TABLE_NAME, cc.COLUMN_NAME, cc.CONSTRAINT_NAME
    FROM USER_CONS_COLUMNS cc
    JOIN USER_CONSTRAINTS c ON cc.CONSTRAINT_NAME = c.CONSTRAINT_NAME
    WHERE c.CONSTRAINT_TYPE = 'P'
) p ON t.TABLE_NAME = p.TABLE_NAME AND t.COLUMN_NAME = p.COLUMN_NAME
WHERE :1 IS NOT NULL
ORDER BY t.TABLE_NAME, t.COLUMN_ID`
}

func (d *OracleDialect) ForeignKeysQuery() string {
	return `
SELECT a.TABLE_NAME, a.CONSTRAINT_NAME, a.COLUMN_NAME, c_pk.TABLE_NAME, b.COLUMN_NAME
FROM USER_CONS_COLUMNS a
JOIN USER_CONSTRAINTS c ON a.CONSTRAINT_NAME = c.CONSTRAINT_NAME
JOIN USER_CONSTRAINTS c_pk ON c.R_CONSTRAINT_NAME = c_pk.CONSTRAINT_NAME
JOIN USER_CONS_COLUMNS b ON c_pk.CONSTRAINT_NAME = b.CONSTRAINT_NAME AND a.POSITION = b.POSITION
WHERE c.CONSTRAINT_TYPE = 'R' AND :1 IS NOT NULL`
}

func (d *OracleDialect) VersionQuery() string {
	return "SELECT BANNER FROM V$VERSION WHERE ROWNUM = 1"
}

func (d *OracleDialect) BeforeLoad(ctx context.Context, conn Execer) error { return nil }

func (d *OracleDialect) AfterLoad(ctx context.Context, conn Execer) error { return nil }

func (d *OracleDialect) Types() TypeSet {
	return TypeSet{
		Boolean:   "NUMBER(1)",
		SmallInt:  "NUMBER(5)",
		Int:       "NUMBER(10)",
		BigInt:    "NUMBER(19)",
		Decimal:   "NUMBER",
		Double:    "BINARY_DOUBLE",
		Real:      "BINARY_FLOAT",
		VarChar:   "VARCHAR2",
		Char:      "CHAR",
		ShortText: "VARCHAR2(255)",
		LongText:  "CLOB",
		Enum:      "VARCHAR2(255)",
		Timestamp: "TIMESTAMP",
		Date:      "DATE",
		Time:      "VARCHAR2(16)",
		UUID:      "CHAR(36)",
		JSON:      "CLOB",
		Bytes:     "BLOB",
	}
}

func (d *OracleDialect) NowDefault() string { return "SYSTIMESTAMP" }

// UUIDDefault is empty: SYS_GUID() yields RAW(16), which does not fit the CHAR(36) identifier column.
func (d *OracleDialect) UUIDDefault() string { return "" }

func (d *OracleDialect) BoolLiteral(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func (d *OracleDialect) QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// CreateTableQuery relies on IF NOT EXISTS, available from Oracle 23ai.
func (d *OracleDialect) CreateTableQuery(table string, columnDefs []string, primaryKey []string) string {
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s %s", d.QuoteIdent(table), createTableBody(columnDefs, primaryKey, d.QuoteIdent))
}

func (d *OracleDialect) AddColumnQuery(table, columnDef string) string {
	return fmt.Sprintf("ALTER TABLE %s ADD (%s)", d.QuoteIdent(table), columnDef)
}

func (d *OracleDialect) ModifyColumnQuery(table, column, columnType string, nullable bool) string {
	null := "NULL"
	if !nullable {
		null = "NOT NULL"
	}
	return fmt.Sprintf("ALTER TABLE %s MODIFY (%s %s %s)", d.QuoteIdent(table), d.QuoteIdent(column), columnType, null)
}

func (d *OracleDialect) DropColumnQuery(table, column string) string {
	return fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", d.QuoteIdent(table), d.QuoteIdent(column))
}

func (d *OracleDialect) DropTableQuery(table string) string {
	return fmt.Sprintf("DROP TABLE %s", d.QuoteIdent(table))
}

func (d *OracleDialect) Placeholder(index int) string {
	return fmt.Sprintf(":%d", index+1)
}

func (d *OracleDialect) InsertQuery(table string, cols []string) string {
	vals := GeneratePlaceholders(len(cols), 0, d.Placeholder)
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", d.QuoteIdent(table), quoteList(cols, d.QuoteIdent), vals)
}

func (d *OracleDialect) UpsertQuery(table string, cols []string, conflict []string, rows int) string {
	selects := make([]string, rows)
	for i := range selects {
		fields := make([]string, len(cols))
		for j, c := range cols {
			fields[j] = fmt.Sprintf("%s %s", d.Placeholder(i*len(cols)+j), d.QuoteIdent(c))
		}
		selects[i] = "SELECT " + strings.Join(fields, ", ") + " FROM dual"
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

	q := fmt.Sprintf("MERGE INTO %s tgt USING (%s) src ON (%s)",
		d.QuoteIdent(table), strings.Join(selects, " UNION ALL "), strings.Join(on, " AND "))
	if len(updates) > 0 {
		q += " WHEN MATCHED THEN UPDATE SET " + strings.Join(updates, ", ")
	}
	return q + fmt.Sprintf(" WHEN NOT MATCHED THEN INSERT (%s) VALUES (%s)", quoteList(cols, d.QuoteIdent), strings.Join(srcCols, ", "))
}

func (d *OracleDialect) CountQuery(table string) string {
	return fmt.Sprintf("SELECT COUNT(*) FROM %s", d.QuoteIdent(table))
}

func (d *OracleDialect) PageQuery(table, orderBy string, limit, offset int) string {
	q := fmt.Sprintf("SELECT * FROM %s", d.QuoteIdent(table))
	if orderBy != "" {
		q += " ORDER BY " + d.QuoteIdent(orderBy)
	}
	return fmt.Sprintf("%s OFFSET %d ROWS FETCH NEXT %d ROWS ONLY", q, offset, limit)
}

func (d *OracleDialect) Literal(v any) string {
	return formatLiteral(v, d.BoolLiteral, false)
}

func (d *OracleDialect) MaxParams() int { return 65535 }

func (d *OracleDialect) NormalizeType(sqlType string) string {
	return DefaultNormalizeType(sqlType)
}

func (d *OracleDialect) GetSchemaName(input string) string {
	if input == "" {
		return "USER"
	}
	return strings.ToUpper(input)
}
