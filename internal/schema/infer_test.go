package schema_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"db-ferry/internal/schema"
)

type stubSampler struct {
	rows []schema.Row
	err  error
}

func (s *stubSampler) FetchPage(ctx context.Context, table string, offset, limit int) ([]schema.Row, error) {
	if s.err != nil {
		return nil, s.err
	}
	if limit < len(s.rows) {
		return s.rows[:limit], nil
	}
	return s.rows, nil
}

type describingSampler struct {
	stubSampler
	spec *schema.TableSpec
}

func (d *describingSampler) Describe(ctx context.Context, table string) (*schema.TableSpec, error) {
	return d.spec, nil
}

func TestInferValue(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want schema.Type
	}{
		{"null", nil, schema.TypeUnknown},
		{"bool", true, schema.TypeBoolean},
		{"integer", json.Number("42"), schema.TypeInteger},
		{"integer valued float", json.Number("3.0"), schema.TypeInteger},
		{"decimal", json.Number("3.14"), schema.TypeDecimal},
		{"uuid", "1b4e28ba-2fa1-11d2-883f-0016d3cca427", schema.TypeUUID},
		{"timestamp", "2024-05-01T10:20:30+00:00", schema.TypeTimestamp},
		{"timestamp with space", "2024-05-01 10:20:30", schema.TypeTimestamp},
		{"short text", "hello", schema.TypeShortText},
		{"255 chars", strings.Repeat("a", 255), schema.TypeShortText},
		{"256 chars", strings.Repeat("a", 256), schema.TypeLongText},
		{"object", map[string]any{"a": json.Number("1")}, schema.TypeJSON},
		{"array", []any{"a", "b"}, schema.TypeJSON},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := schema.InferValue(tt.in); got != tt.want {
				t.Errorf("InferValue(%v) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestInferFromRows_UUIDIdIsPrimaryKey(t *testing.T) {
	rows := []schema.Row{
		schema.NewRow("id", "9f8c1c2e-6a43-4c0b-9a47-1d4f2f0b7d11", "note", strings.Repeat("x", 300)),
	}

	spec := schema.InferFromRows("notes", rows)

	id, ok := spec.Column("id")
	if !ok {
		t.Fatal("id column missing")
	}
	if id.Type != schema.TypeUUID || !id.PrimaryKey || id.Nullable {
		t.Errorf("id = %+v, want non-null uuid primary key", id)
	}
	if got := spec.Keys(); len(got) != 1 || got[0] != "id" {
		t.Errorf("Keys() = %v, want [id]", got)
	}
	note, _ := spec.Column("note")
	if note.Type != schema.TypeLongText {
		t.Errorf("note type = %s, want long-text", note.Type)
	}
}

func TestInferFromRows_OnlyLowercaseIdIsKey(t *testing.T) {
	rows := []schema.Row{
		schema.NewRow("ID", "9f8c1c2e-6a43-4c0b-9a47-1d4f2f0b7d11"),
	}

	spec := schema.InferFromRows("notes", rows)

	col, ok := spec.Column("ID")
	if !ok {
		t.Fatal("ID column missing")
	}
	if col.PrimaryKey || !col.Nullable || len(spec.Keys()) != 0 {
		t.Errorf("ID = %+v, keys %v; only a column named exactly id is a key", col, spec.Keys())
	}
}

func TestInferFromRows_FirstRowDefinesColumns(t *testing.T) {
	rows := []schema.Row{
		schema.NewRow("id", json.Number("1"), "email", nil),
		schema.NewRow("id", json.Number("2"), "email", "a@example.com", "extra", true),
	}

	spec := schema.InferFromRows("customers", rows)

	if got := strings.Join(spec.ColumnNames(), ","); got != "id,email" {
		t.Errorf("columns = %s, want id,email", got)
	}
	email, _ := spec.Column("email")
	if email.Type != schema.TypeShortText {
		t.Errorf("email type = %s, want short-text from the second row", email.Type)
	}
}

func TestInferFromRows_DecimalShape(t *testing.T) {
	spec := schema.InferFromRows("prices", []schema.Row{schema.NewRow("amount", json.Number("12.345"))})
	amount, _ := spec.Column("amount")
	if amount.Precision != 21 || amount.Scale != 3 {
		t.Errorf("amount shape = (%d,%d), want (21,3)", amount.Precision, amount.Scale)
	}
}

func TestInferrer_EmptyTable(t *testing.T) {
	inf := schema.NewInferrer(&stubSampler{}, 1, nil)

	spec, err := inf.Infer(context.Background(), "empty")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !spec.Empty() {
		t.Errorf("expected empty spec, got %d columns", len(spec.Columns))
	}
}

func TestInferrer_QueryFailureReturnsEmptySpec(t *testing.T) {
	inf := schema.NewInferrer(&stubSampler{err: errors.New("502 bad gateway")}, 1, nil)

	spec, err := inf.Infer(context.Background(), "orders")
	if err == nil {
		t.Fatal("expected the sampling error to be reported")
	}
	if spec == nil || !spec.Empty() || spec.Name != "orders" {
		t.Errorf("spec = %+v, want empty spec named orders", spec)
	}
}

func TestInferrer_PrefersDeclaredCatalogue(t *testing.T) {
	declared := &schema.TableSpec{
		Name:    "tags",
		Columns: []schema.ColumnSpec{{Name: "labels", Type: schema.TypeJSON, Declared: "text[]", Nullable: true}},
	}
	src := &describingSampler{
		stubSampler: stubSampler{rows: []schema.Row{schema.NewRow("labels", "a")}},
		spec:        declared,
	}

	spec, err := schema.NewInferrer(src, 1, nil).Infer(context.Background(), "tags")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if spec != declared {
		t.Errorf("expected the declared spec to win over sampling")
	}
}

func TestTypeOfDeclared(t *testing.T) {
	tests := map[string]schema.Type{
		"text[]":                   schema.TypeJSON,
		"_int4":                    schema.TypeJSON,
		"uuid":                     schema.TypeUUID,
		"numeric(10,2)":            schema.TypeDecimal,
		"timestamp with time zone": schema.TypeTimestamp,
		"character varying(50)":    schema.TypeShortText,
		"bigint":                   schema.TypeInteger,
		"jsonb":                    schema.TypeJSON,
		"text":                     schema.TypeLongText,
		"boolean":                  schema.TypeBoolean,
	}
	for in, want := range tests {
		if got := schema.TypeOfDeclared(in); got != want {
			t.Errorf("TypeOfDeclared(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestConform(t *testing.T) {
	spec := &schema.TableSpec{Name: "customers", Columns: []schema.ColumnSpec{{Name: "id"}, {Name: "email"}}}

	values, err := spec.Conform(schema.NewRow("id", json.Number("1")))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(values) != 2 || values[1] != nil {
		t.Errorf("missing key should conform to nil, got %v", values)
	}

	_, err = spec.Conform(schema.NewRow("id", json.Number("2"), "phone", "555"))
	if !errors.Is(err, schema.ErrUnexpectedColumn) {
		t.Errorf("expected ErrUnexpectedColumn, got %v", err)
	}
}
