package schema

// Type is the semantic tag the inferrer assigns to a source column.
type Type string

const (
	TypeBoolean   Type = "boolean"
	TypeInteger   Type = "integer"
	TypeDecimal   Type = "decimal"
	TypeShortText Type = "short-text"
	TypeLongText  Type = "long-text"
	TypeTimestamp Type = "timestamp"
	TypeUUID      Type = "uuid"
	TypeJSON      Type = "json-object"
	TypeUnknown   Type = "unknown"
)

// TableSpec describes a source table well enough to create it on the target.
// It is built once per run and never re-inferred.
type TableSpec struct {
	Name       string
	Columns    []ColumnSpec
	PrimaryKey []string
}

// ColumnSpec is one inferred or declared source column.
type ColumnSpec struct {
	Name       string
	Type       Type
	Declared   string // declared source type (e.g. "numeric(10,2)", "text[]"); empty when inferred
	Nullable   bool
	PrimaryKey bool
	Default    string // raw source default expression
	Precision  int    // decimal only
	Scale      int    // decimal only
}

// Empty reports whether no schema could be derived.
func (t *TableSpec) Empty() bool {
	return t == nil || len(t.Columns) == 0
}

// ColumnNames returns the column names in declaration order.
func (t *TableSpec) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Column looks a column up by exact name.
func (t *TableSpec) Column(name string) (*ColumnSpec, bool) {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i], true
		}
	}
	return nil, false
}

// Keys returns the primary key columns, falling back to the per-column flags.
func (t *TableSpec) Keys() []string {
	if len(t.PrimaryKey) > 0 {
		return t.PrimaryKey
	}
	var keys []string
	for _, c := range t.Columns {
		if c.PrimaryKey {
			keys = append(keys, c.Name)
		}
	}
	return keys
}

// Table is the live structure of a table in a SQL store, as read from its catalog.
type Table struct {
	Name         string
	Columns      []*Column
	ForeignKeys  []*ForeignKey
	Dependencies []string
}

// Column is a live column as reported by the catalog.
type Column struct {
	Name       string
	ColumnType string // full type with length/precision, e.g. varchar(255)
	IsNullable bool
	IsPK       bool
	Default    string
}

type ForeignKey struct {
	Column    string
	RefTable  string
	RefColumn string
}

// Column returns the named live column or nil.
func (t *Table) Column(name string) *Column {
	for _, c := range t.Columns {
		if c.Name == name {
			return c
		}
	}
	return nil
}
