// Package typemap translates source column types and default expressions into
// target DDL fragments.
package typemap

import (
	"fmt"
	"regexp"
	"strings"

	"db-ferry/internal/dialect"
	"db-ferry/internal/schema"
)

var (
	declaredShape = regexp.MustCompile(`^([a-z][a-z0-9_ -]*?)\s*(\(([^)]*)\))?\s*(with(out)? time zone)?$`)
	castSuffix    = regexp.MustCompile(`::[a-zA-Z_][\w ."]*(\[\])?(\([^)]*\))?$`)
	numericLit    = regexp.MustCompile(`^[-+]?\d+(\.\d+)?$`)
	stringLit     = regexp.MustCompile(`^'(?:[^']|'')*'$`)

	nowLike = regexp.MustCompile(`^(now\(\)|current_timestamp(\(\d*\))?|localtimestamp(\(\d*\))?|transaction_timestamp\(\)|statement_timestamp\(\)|clock_timestamp\(\)|sysdate|systimestamp|getdate\(\)|sysdatetime\(\))$`)
	uuidLike = regexp.MustCompile(`^(gen_random_uuid\(\)|uuid_generate_v[14]\(\)|uuid\(\)|newid\(\)|extensions\.uuid_generate_v4\(\))$`)
)

// Map returns the target column type and the default clause expression for a
// column. The default is empty when the source had none or it was not
// recognized.
func Map(col schema.ColumnSpec, d dialect.Dialect) (string, string) {
	ddlType := mapType(col, d.Types())
	return ddlType, TranslateDefault(col.Default, ddlType, d)
}

// ColumnDefinition renders one column of a CREATE TABLE or ADD COLUMN statement.
func ColumnDefinition(col schema.ColumnSpec, d dialect.Dialect) string {
	ddlType, def := Map(col, d)
	var b strings.Builder
	b.WriteString(d.QuoteIdent(col.Name))
	b.WriteString(" ")
	b.WriteString(ddlType)
	if def != "" {
		b.WriteString(" DEFAULT ")
		b.WriteString(def)
	}
	if !col.Nullable || col.PrimaryKey {
		b.WriteString(" NOT NULL")
	}
	return b.String()
}

func mapType(col schema.ColumnSpec, ts dialect.TypeSet) string {
	if col.Declared != "" {
		if t, ok := mapDeclared(col, ts); ok {
			return t
		}
	}
	return mapSemantic(col, ts)
}

func mapDeclared(col schema.ColumnSpec, ts dialect.TypeSet) (string, bool) {
	declared := strings.ToLower(strings.TrimSpace(col.Declared))
	if strings.HasSuffix(declared, "[]") || strings.HasPrefix(declared, "_") || declared == "array" {
		return ts.JSON, true
	}

	m := declaredShape.FindStringSubmatch(declared)
	if m == nil {
		return "", false
	}
	base, args := strings.TrimSpace(m[1]), strings.ReplaceAll(m[3], " ", "")

	switch base {
	case "character varying", "varchar", "nvarchar", "varchar2", "nvarchar2":
		if args == "max" {
			return ts.LongText, true
		}
		if args == "" {
			return ts.ShortText, true
		}
		return withArgs(ts.VarChar, args), true
	case "character", "char", "bpchar", "nchar":
		if args == "" {
			args = "1"
		}
		return withArgs(ts.Char, args), true
	case "numeric", "decimal", "number":
		if args == "" {
			return decimalType(col, ts), true
		}
		return withArgs(ts.Decimal, args), true
	case "timestamp", "timestamptz", "datetime", "datetime2":
		// Zone offsets are not carried into the target.
		return ts.Timestamp, true
	case "date":
		return ts.Date, true
	case "time", "timetz":
		return ts.Time, true
	case "tinyint":
		if args == "1" {
			return ts.Boolean, true
		}
		return ts.SmallInt, true
	case "smallint", "int2":
		return ts.SmallInt, true
	case "integer", "int", "int4", "serial", "serial4", "mediumint":
		return ts.Int, true
	case "bigint", "int8", "bigserial", "serial8":
		return ts.BigInt, true
	case "real", "float4":
		return ts.Real, true
	case "double precision", "double", "float8", "float":
		return ts.Double, true
	case "boolean", "bool", "bit":
		return ts.Boolean, true
	case "uuid", "uniqueidentifier":
		return ts.UUID, true
	case "json", "jsonb":
		return ts.JSON, true
	case "text", "citext", "tinytext", "mediumtext", "longtext", "ntext", "clob", "nclob":
		return ts.LongText, true
	case "bytea", "blob", "longblob", "mediumblob", "varbinary", "binary":
		return ts.Bytes, true
	case "user-defined", "enum":
		return ts.Enum, true
	}
	return "", false
}

func mapSemantic(col schema.ColumnSpec, ts dialect.TypeSet) string {
	switch col.Type {
	case schema.TypeBoolean:
		return ts.Boolean
	case schema.TypeInteger:
		return ts.BigInt
	case schema.TypeDecimal:
		return decimalType(col, ts)
	case schema.TypeShortText:
		return ts.ShortText
	case schema.TypeTimestamp:
		return ts.Timestamp
	case schema.TypeUUID:
		return ts.UUID
	case schema.TypeJSON:
		return ts.JSON
	default:
		return ts.LongText
	}
}

func decimalType(col schema.ColumnSpec, ts dialect.TypeSet) string {
	p, s := col.Precision, col.Scale
	if p <= 0 {
		p, s = 20, 2
	}
	return fmt.Sprintf("%s(%d,%d)", ts.Decimal, p, s)
}

func withArgs(base, args string) string {
	return fmt.Sprintf("%s(%s)", base, strings.ToUpper(args))
}

// TranslateDefault maps a source default expression onto the target dialect.
// Unrecognized expressions yield "" and the column gets no default.
func TranslateDefault(expr, ddlType string, d dialect.Dialect) string {
	e := strings.TrimSpace(expr)
	for castSuffix.MatchString(e) {
		e = strings.TrimSpace(castSuffix.ReplaceAllString(e, ""))
	}
	if strings.HasPrefix(e, "(") && strings.HasSuffix(e, ")") {
		e = strings.TrimSpace(e[1 : len(e)-1])
	}
	if e == "" {
		return ""
	}

	lower := strings.ToLower(e)
	switch {
	case lower == "null":
		return ""
	case nowLike.MatchString(lower):
		return d.NowDefault()
	case uuidLike.MatchString(lower):
		return d.UUIDDefault()
	case lower == "true":
		return d.BoolLiteral(true)
	case lower == "false":
		return d.BoolLiteral(false)
	case numericLit.MatchString(e), stringLit.MatchString(e):
		return literalDefault(e, ddlType, d)
	}
	return ""
}

// MySQL only accepts literal defaults on TEXT/JSON/BLOB as parenthesized expressions.
func literalDefault(lit, ddlType string, d dialect.Dialect) string {
	if d.Name() != "mysql" {
		return lit
	}
	ts := d.Types()
	switch ddlType {
	case ts.LongText, ts.JSON, ts.Bytes:
		return "(" + lit + ")"
	}
	return lit
}
