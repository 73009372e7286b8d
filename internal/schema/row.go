package schema

// Row is an ordered mapping of column name to value. Values are nil, bool,
// json.Number, string, or nested JSON (map[string]any / []any).
type Row struct {
	keys   []string
	values map[string]any
}

// NewRow builds a row from alternating name/value pairs.
func NewRow(pairs ...any) Row {
	var r Row
	for i := 0; i+1 < len(pairs); i += 2 {
		r.Set(pairs[i].(string), pairs[i+1])
	}
	return r
}

// Set assigns a value, appending the key if it is new.
func (r *Row) Set(key string, value any) {
	if r.values == nil {
		r.values = make(map[string]any)
	}
	if _, ok := r.values[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.values[key] = value
}

// Get returns the value for key and whether it was present.
func (r Row) Get(key string) (any, bool) {
	v, ok := r.values[key]
	return v, ok
}

// Keys returns the column names in source order.
func (r Row) Keys() []string {
	return r.keys
}

func (r Row) Len() int {
	return len(r.keys)
}
