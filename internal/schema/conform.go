package schema

import (
	"errors"
	"fmt"
)

// ErrUnexpectedColumn marks a row carrying a key the TableSpec does not know.
var ErrUnexpectedColumn = errors.New("unexpected column")

// Conform orders a row's values by the TableSpec columns. Missing keys become nil;
// a key outside the TableSpec rejects the row.
func (t *TableSpec) Conform(row Row) ([]any, error) {
	for _, k := range row.Keys() {
		if _, ok := t.Column(k); !ok {
			return nil, fmt.Errorf("%w %q in table %s", ErrUnexpectedColumn, k, t.Name)
		}
	}
	values := make([]any, len(t.Columns))
	for i, c := range t.Columns {
		values[i], _ = row.Get(c.Name)
	}
	return values, nil
}
