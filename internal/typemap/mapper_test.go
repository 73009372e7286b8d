package typemap_test

import (
	"testing"

	"db-ferry/internal/dialect"
	"db-ferry/internal/schema"
	"db-ferry/internal/typemap"
)

func TestMap_MySQL(t *testing.T) {
	d := dialect.GetDialect("mysql")

	tests := []struct {
		name     string
		col      schema.ColumnSpec
		wantType string
		wantDef  string
	}{
		{"uuid id", schema.ColumnSpec{Name: "id", Type: schema.TypeUUID}, "CHAR(36)", ""},
		{"boolean", schema.ColumnSpec{Type: schema.TypeBoolean}, "TINYINT(1)", ""},
		{"integer", schema.ColumnSpec{Type: schema.TypeInteger}, "BIGINT", ""},
		{"decimal shape", schema.ColumnSpec{Type: schema.TypeDecimal, Precision: 20, Scale: 2}, "DECIMAL(20,2)", ""},
		{"unknown falls back to text", schema.ColumnSpec{Type: schema.TypeUnknown}, "TEXT", ""},
		{"json", schema.ColumnSpec{Type: schema.TypeJSON}, "JSON", ""},
		{"text array", schema.ColumnSpec{Type: schema.TypeJSON, Declared: "text[]"}, "JSON", ""},
		{"internal array name", schema.ColumnSpec{Declared: "_int4"}, "JSON", ""},
		{"varchar passthrough", schema.ColumnSpec{Declared: "character varying(50)"}, "VARCHAR(50)", ""},
		{"char passthrough", schema.ColumnSpec{Declared: "char(2)"}, "CHAR(2)", ""},
		{"numeric passthrough", schema.ColumnSpec{Declared: "numeric(10, 2)"}, "DECIMAL(10,2)", ""},
		{"timestamptz loses zone", schema.ColumnSpec{Declared: "timestamp with time zone", Default: "now()"}, "DATETIME", "CURRENT_TIMESTAMP"},
		{"enum", schema.ColumnSpec{Declared: "USER-DEFINED", Default: "'active'::order_status"}, "VARCHAR(255)", "'active'"},
		{"uuid default", schema.ColumnSpec{Declared: "uuid", Default: "gen_random_uuid()"}, "CHAR(36)", "(UUID())"},
		{"bool default", schema.ColumnSpec{Declared: "boolean", Default: "false"}, "TINYINT(1)", "0"},
		{"numeric default", schema.ColumnSpec{Declared: "integer", Default: "0"}, "INT", "0"},
		{"sequence default dropped", schema.ColumnSpec{Declared: "bigint", Default: "nextval('orders_id_seq'::regclass)"}, "BIGINT", ""},
		{"text literal default", schema.ColumnSpec{Declared: "text", Default: "''::text"}, "TEXT", "('')"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotType, gotDef := typemap.Map(tt.col, d)
			if gotType != tt.wantType {
				t.Errorf("type = %q, want %q", gotType, tt.wantType)
			}
			if gotDef != tt.wantDef {
				t.Errorf("default = %q, want %q", gotDef, tt.wantDef)
			}
		})
	}
}

func TestMap_ArraysAlwaysJSON(t *testing.T) {
	for _, name := range []string{"postgres", "mysql", "sqlserver", "oracle"} {
		d := dialect.GetDialect(name)
		got, _ := typemap.Map(schema.ColumnSpec{Type: schema.TypeShortText, Declared: "varchar(20)[]"}, d)
		if got != d.Types().JSON {
			t.Errorf("%s: array mapped to %q, want %q", name, got, d.Types().JSON)
		}
	}
}

func TestTranslateDefault_Postgres(t *testing.T) {
	d := dialect.GetDialect("postgres")

	tests := map[string]string{
		"CURRENT_TIMESTAMP":       "CURRENT_TIMESTAMP",
		"now()":                   "CURRENT_TIMESTAMP",
		"true":                    "TRUE",
		"'pending'::text":         "'pending'",
		"42":                      "42",
		"-1.5":                    "-1.5",
		"NULL::character varying": "",
		"my_func()":               "",
		"":                        "",
	}
	for in, want := range tests {
		if got := typemap.TranslateDefault(in, "TEXT", d); got != want {
			t.Errorf("TranslateDefault(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestColumnDefinition(t *testing.T) {
	d := dialect.GetDialect("mysql")

	got := typemap.ColumnDefinition(schema.ColumnSpec{Name: "id", Type: schema.TypeUUID, PrimaryKey: true}, d)
	if want := "`id` CHAR(36) NOT NULL"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	got = typemap.ColumnDefinition(schema.ColumnSpec{Name: "created_at", Declared: "timestamptz", Default: "now()", Nullable: true}, d)
	if want := "`created_at` DATETIME DEFAULT CURRENT_TIMESTAMP"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
