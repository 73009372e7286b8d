package dialect

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// GeneratePlaceholders is a helper function to create a slice of placeholder strings.
// It takes the number of placeholders needed, the index of the first one, and a function
// that returns the placeholder for a given index.
// It returns a comma-separated string of the generated placeholders.
func GeneratePlaceholders(count, start int, placeholderFunc func(int) string) string {
	placeholders := make([]string, count)
	for i := 0; i < count; i++ {
		placeholders[i] = placeholderFunc(start + i)
	}
	return strings.Join(placeholders, ", ")
}

// DefaultNormalizeType lowercases and collapses whitespace.
func DefaultNormalizeType(sqlType string) string {
	return strings.Join(strings.Fields(strings.ToLower(sqlType)), " ")
}

// DefaultGetSchemaName is a default implementation for Getting Schema Name (identity).
func DefaultGetSchemaName(input string) string {
	return input
}

func quoteList(cols []string, quote func(string) string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = quote(c)
	}
	return strings.Join(quoted, ", ")
}

func createTableBody(columnDefs []string, pk []string, quote func(string) string) string {
	parts := append([]string{}, columnDefs...)
	if len(pk) > 0 {
		parts = append(parts, fmt.Sprintf("PRIMARY KEY (%s)", quoteList(pk, quote)))
	}
	return "(\n  " + strings.Join(parts, ",\n  ") + "\n)"
}

// formatLiteral renders v as an inline SQL literal for generated scripts.
func formatLiteral(v any, boolLit func(bool) string, escapeBackslash bool) string {
	quote := func(s string) string {
		if escapeBackslash {
			s = strings.ReplaceAll(s, `\`, `\\`)
		}
		return "'" + strings.ReplaceAll(s, "'", "''") + "'"
	}
	switch val := v.(type) {
	case nil:
		return "NULL"
	case bool:
		return boolLit(val)
	case json.Number:
		return val.String()
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return fmt.Sprintf("%v", val)
	case string:
		return quote(val)
	case []byte:
		return quote(string(val))
	case time.Time:
		return quote(val.Format("2006-01-02 15:04:05.999999"))
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return quote(fmt.Sprintf("%v", val))
		}
		return quote(string(b))
	}
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
