package dialect

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

type MysqlDialect struct{}

var mysqlDisplayWidth = regexp.MustCompile(`^(tinyint|smallint|mediumint|int|bigint)\((\d+)\)`)

func (d *MysqlDialect) Name() string { return "mysql" }

func (d *MysqlDialect) TablesQuery() string {
	return `SELECT TABLE_NAME FROM information_schema.TABLES WHERE TABLE_SCHEMA = ? AND TABLE_TYPE = 'BASE TABLE' ORDER BY TABLE_NAME`
}

func (d *MysqlDialect) ColumnsQuery() string {
	return `SELECT TABLE_NAME, COLUMN_NAME, COLUMN_TYPE, IS_NULLABLE, COLUMN_KEY, COLUMN_DEFAULT FROM information_schema.COLUMNS WHERE TABLE_SCHEMA = ? ORDER BY TABLE_NAME, ORDINAL_POSITION`
}

func (d *MysqlDialect) ForeignKeysQuery() string {
	return `SELECT TABLE_NAME, CONSTRAINT_NAME, COLUMN_NAME, REFERENCED_TABLE_NAME, REFERENCED_COLUMN_NAME FROM information_schema.KEY_COLUMN_USAGE WHERE TABLE_SCHEMA = ? AND REFERENCED_TABLE_NAME IS NOT NULL`
}

func (d *MysqlDialect) VersionQuery() string {
	return "SELECT VERSION()"
}

func (d *MysqlDialect) BeforeLoad(ctx context.Context, conn Execer) error {
	_, err := conn.ExecContext(ctx, "SET FOREIGN_KEY_CHECKS = 0")
	return err
}

func (d *MysqlDialect) AfterLoad(ctx context.Context, conn Execer) error {
	_, err := conn.ExecContext(ctx, "SET FOREIGN_KEY_CHECKS = 1")
	return err
}

func (d *MysqlDialect) Types() TypeSet {
	return TypeSet{
		Boolean:   "TINYINT(1)",
		SmallInt:  "SMALLINT",
		Int:       "INT",
		BigInt:    "BIGINT",
		Decimal:   "DECIMAL",
		Double:    "DOUBLE",
		Real:      "FLOAT",
		VarChar:   "VARCHAR",
		Char:      "CHAR",
		ShortText: "VARCHAR(255)",
		LongText:  "TEXT",
		Enum:      "VARCHAR(255)",
		Timestamp: "DATETIME",
		Date:      "DATE",
		Time:      "TIME",
		UUID:      "CHAR(36)",
		JSON:      "JSON",
		Bytes:     "LONGBLOB",
	}
}

func (d *MysqlDialect) NowDefault() string  { return "CURRENT_TIMESTAMP" }
func (d *MysqlDialect) UUIDDefault() string { return "(UUID())" }

func (d *MysqlDialect) BoolLiteral(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func (d *MysqlDialect) QuoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func (d *MysqlDialect) CreateTableQuery(table string, columnDefs []string, primaryKey []string) string {
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s %s ENGINE=InnoDB DEFAULT CHARSET=utf8mb4",
		d.QuoteIdent(table), createTableBody(columnDefs, primaryKey, d.QuoteIdent))
}

func (d *MysqlDialect) AddColumnQuery(table, columnDef string) string {
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", d.QuoteIdent(table), columnDef)
}

func (d *MysqlDialect) ModifyColumnQuery(table, column, columnType string, nullable bool) string {
	q := fmt.Sprintf("ALTER TABLE %s MODIFY COLUMN %s %s", d.QuoteIdent(table), d.QuoteIdent(column), columnType)
	if !nullable {
		q += " NOT NULL"
	}
	return q
}

func (d *MysqlDialect) DropColumnQuery(table, column string) string {
	return fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", d.QuoteIdent(table), d.QuoteIdent(column))
}

func (d *MysqlDialect) DropTableQuery(table string) string {
	return fmt.Sprintf("DROP TABLE %s", d.QuoteIdent(table))
}

func (d *MysqlDialect) Placeholder(index int) string {
	return "?"
}

func (d *MysqlDialect) InsertQuery(table string, cols []string) string {
	vals := GeneratePlaceholders(len(cols), 0, d.Placeholder)
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", d.QuoteIdent(table), quoteList(cols, d.QuoteIdent), vals)
}

func (d *MysqlDialect) UpsertQuery(table string, cols []string, conflict []string, rows int) string {
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
		updates = append(updates, fmt.Sprintf("%s = VALUES(%s)", q, q))
	}
	if len(updates) == 0 {
		// Key-only table: re-assign the key so the statement stays a no-op on conflict.
		q := d.QuoteIdent(conflict[0])
		updates = append(updates, fmt.Sprintf("%s = %s", q, q))
	}

	return fmt.Sprintf("INSERT INTO %s (%s) VALUES %s ON DUPLICATE KEY UPDATE %s",
		d.QuoteIdent(table), quoteList(cols, d.QuoteIdent), strings.Join(tuples, ", "), strings.Join(updates, ", "))
}

func (d *MysqlDialect) CountQuery(table string) string {
	return fmt.Sprintf("SELECT COUNT(*) FROM %s", d.QuoteIdent(table))
}

func (d *MysqlDialect) PageQuery(table, orderBy string, limit, offset int) string {
	q := fmt.Sprintf("SELECT * FROM %s", d.QuoteIdent(table))
	if orderBy != "" {
		q += " ORDER BY " + d.QuoteIdent(orderBy)
	}
	return fmt.Sprintf("%s LIMIT %d OFFSET %d", q, limit, offset)
}

func (d *MysqlDialect) Literal(v any) string {
	return formatLiteral(v, d.BoolLiteral, true)
}

func (d *MysqlDialect) MaxParams() int { return 65535 }

// NormalizeType drops integer display widths (int(11) == int) except tinyint(1), which is the boolean spelling.
func (d *MysqlDialect) NormalizeType(sqlType string) string {
	t := DefaultNormalizeType(sqlType)
	if strings.HasPrefix(t, "tinyint(1)") {
		return t
	}
	return mysqlDisplayWidth.ReplaceAllString(t, "$1")
}

func (d *MysqlDialect) GetSchemaName(input string) string {
	return DefaultGetSchemaName(input)
}
