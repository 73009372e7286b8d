package dialect

import (
	"context"
	"database/sql"
)

// Execer is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// TypeSet spells the target column types a dialect offers for each semantic kind.
type TypeSet struct {
	Boolean   string
	SmallInt  string
	Int       string
	BigInt    string
	Decimal   string // base name, precision/scale appended by the caller
	Double    string
	Real      string
	VarChar   string // base name, length appended by the caller
	Char      string // base name, length appended by the caller
	ShortText string
	LongText  string
	Enum      string
	Timestamp string
	Date      string
	Time      string
	UUID      string
	JSON      string
	Bytes     string
}

// Dialect abstracts database-specific operations.
type Dialect interface {
	Name() string

	// Metadata Queries (live structure introspection). Each takes the schema name as its only bind argument.
	TablesQuery() string
	ColumnsQuery() string     // table, column, column_type, is_nullable, column_key, column_default
	ForeignKeysQuery() string // table, constraint, column, referenced_table, referenced_column
	VersionQuery() string

	// Session hooks around a bulk load, run on the pinned target connection.
	BeforeLoad(ctx context.Context, conn Execer) error
	AfterLoad(ctx context.Context, conn Execer) error

	// Type spelling
	Types() TypeSet
	NowDefault() string
	UUIDDefault() string // empty when the dialect has no usable UUID default
	BoolLiteral(b bool) string

	// DDL
	QuoteIdent(name string) string
	CreateTableQuery(table string, columnDefs []string, primaryKey []string) string
	AddColumnQuery(table, columnDef string) string
	ModifyColumnQuery(table, column, columnType string, nullable bool) string
	DropColumnQuery(table, column string) string
	DropTableQuery(table string) string

	// DML
	Placeholder(index int) string // Returns ?, $1, @p1, :1
	InsertQuery(table string, cols []string) string
	UpsertQuery(table string, cols []string, conflict []string, rows int) string
	CountQuery(table string) string
	PageQuery(table, orderBy string, limit, offset int) string
	Literal(v any) string
	MaxParams() int

	// Helpers
	NormalizeType(sqlType string) string
	GetSchemaName(input string) string
}
