package schema

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ShortTextLimit is the longest string still inferred as short-text.
const ShortTextLimit = 255

var isoTimestamp = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}`)

// Sampler is the part of the source the inferrer reads rows through.
type Sampler interface {
	FetchPage(ctx context.Context, table string, offset, limit int) ([]Row, error)
}

// Describer is implemented by sources that publish a declared column catalogue.
type Describer interface {
	Describe(ctx context.Context, table string) (*TableSpec, error)
}

// Inferrer derives a TableSpec per source table.
type Inferrer struct {
	src        Sampler
	sampleSize int
	logger     *slog.Logger
}

func NewInferrer(src Sampler, sampleSize int, logger *slog.Logger) *Inferrer {
	if sampleSize <= 0 {
		sampleSize = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Inferrer{src: src, sampleSize: sampleSize, logger: logger}
}

// Infer returns the declared spec when the source has one, otherwise a spec
// inferred from sampled rows. The returned spec is never nil. A non-nil error
// means the source could not be queried and the TableSpec is empty; callers record
// it and move on.
func (i *Inferrer) Infer(ctx context.Context, table string) (*TableSpec, error) {
	if d, ok := i.src.(Describer); ok {
		spec, err := d.Describe(ctx, table)
		switch {
		case err != nil:
			i.logger.Debug("declared catalogue unavailable, sampling rows", "table", table, "error", err)
		case !spec.Empty():
			return spec, nil
		}
	}

	rows, err := i.src.FetchPage(ctx, table, 0, i.sampleSize)
	if err != nil {
		i.logger.Error("schema sampling failed", "table", table, "error", err)
		return &TableSpec{Name: table}, fmt.Errorf("sample %s: %w", table, err)
	}
	spec := InferFromRows(table, rows)
	if spec.Empty() {
		i.logger.Warn("no rows sampled, no schema derivable", "table", table)
	}
	return spec, nil
}

// InferFromRows builds a spec whose columns are those of the first row, in
// order. Later rows only refine the type of columns that were null in row one.
func InferFromRows(table string, rows []Row) *TableSpec {
	spec := &TableSpec{Name: table}
	if len(rows) == 0 {
		return spec
	}

	for _, name := range rows[0].Keys() {
		col := ColumnSpec{Name: name, Type: TypeUnknown, Nullable: true}
		for _, row := range rows {
			v, ok := row.Get(name)
			if !ok || v == nil {
				continue
			}
			col = inferColumn(name, v)
			break
		}
		if col.PrimaryKey {
			spec.PrimaryKey = append(spec.PrimaryKey, name)
		}
		spec.Columns = append(spec.Columns, col)
	}
	return spec
}

func inferColumn(name string, v any) ColumnSpec {
	col := ColumnSpec{Name: name, Type: InferValue(v), Nullable: true}
	if name == "id" && col.Type == TypeUUID {
		col.PrimaryKey = true
		col.Nullable = false
	}
	if col.Type == TypeDecimal {
		col.Precision, col.Scale = decimalShape(v)
	}
	return col
}

// InferValue applies the inference rules in order; the first match wins.
func InferValue(v any) Type {
	switch val := v.(type) {
	case nil:
		return TypeUnknown
	case bool:
		return TypeBoolean
	case json.Number:
		d, err := decimal.NewFromString(val.String())
		if err != nil {
			return TypeDecimal
		}
		if d.IsInteger() {
			return TypeInteger
		}
		return TypeDecimal
	case int, int32, int64:
		return TypeInteger
	case float32, float64:
		f, _ := strconv.ParseFloat(fmt.Sprintf("%v", val), 64)
		if f == float64(int64(f)) {
			return TypeInteger
		}
		return TypeDecimal
	case string:
		return inferString(val)
	case map[string]any, []any:
		return TypeJSON
	default:
		return TypeUnknown
	}
}

func inferString(s string) Type {
	switch {
	case IsUUID(s):
		return TypeUUID
	case isoTimestamp.MatchString(s):
		return TypeTimestamp
	case utf8.RuneCountInString(s) <= ShortTextLimit:
		return TypeShortText
	default:
		return TypeLongText
	}
}

// IsUUID accepts only the canonical 8-4-4-4-12 hex form.
func IsUUID(s string) bool {
	return len(s) == 36 && uuid.Validate(s) == nil
}

// decimalShape sizes a DECIMAL column from a sampled value, keeping at least
// two fractional digits and room for eighteen integer digits.
func decimalShape(v any) (precision, scale int) {
	d, err := decimal.NewFromString(fmt.Sprintf("%v", v))
	if err != nil {
		return 0, 0
	}
	scale = int(-d.Exponent())
	if scale < 2 {
		scale = 2
	}
	if scale > 10 {
		scale = 10
	}
	return 18 + scale, scale
}

// TypeOfDeclared classifies a declared source type name.
func TypeOfDeclared(declared string) Type {
	full := strings.ToLower(strings.TrimSpace(declared))
	t := full
	if i := strings.Index(t, "("); i >= 0 {
		t = strings.TrimSpace(t[:i])
	}
	switch {
	case t == "":
		return TypeUnknown
	case strings.HasSuffix(full, "[]") || strings.HasPrefix(t, "_") || t == "array":
		return TypeJSON
	case t == "boolean" || t == "bool" || t == "bit" || strings.HasPrefix(full, "tinyint(1)"):
		return TypeBoolean
	case integerTypes[t]:
		return TypeInteger
	case t == "numeric" || t == "decimal" || t == "number" || t == "real" || t == "double" || t == "double precision" || strings.HasPrefix(t, "float") || t == "money":
		return TypeDecimal
	case t == "uuid" || t == "uniqueidentifier":
		return TypeUUID
	case strings.HasPrefix(t, "timestamp") || strings.HasPrefix(t, "datetime") || t == "date" || strings.HasPrefix(t, "time"):
		return TypeTimestamp
	case t == "json" || t == "jsonb":
		return TypeJSON
	case strings.HasSuffix(t, "text") || t == "clob" || t == "bytea" || strings.HasSuffix(t, "blob"):
		return TypeLongText
	default:
		return TypeShortText
	}
}

var integerTypes = map[string]bool{
	"smallint": true, "integer": true, "int": true, "bigint": true, "tinyint": true, "mediumint": true,
	"int2": true, "int4": true, "int8": true, "smallserial": true, "serial": true, "bigserial": true,
}
