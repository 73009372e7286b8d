package source

import (
	"encoding/json"
	"fmt"
	"io"

	"db-ferry/internal/schema"
)

// DecodeRows reads a JSON array of objects, keeping each object's key order.
// Numbers are kept as json.Number so integer and decimal values stay exact.
func DecodeRows(r io.Reader) ([]schema.Row, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	if err := expectDelim(dec, '['); err != nil {
		return nil, err
	}
	var rows []schema.Row
	for dec.More() {
		row, err := decodeObject(dec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", len(rows), err)
		}
		rows = append(rows, row)
	}
	if err := expectDelim(dec, ']'); err != nil {
		return nil, err
	}
	return rows, nil
}

func decodeObject(dec *json.Decoder) (schema.Row, error) {
	var row schema.Row
	if err := expectDelim(dec, '{'); err != nil {
		return row, err
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return row, err
		}
		key, ok := tok.(string)
		if !ok {
			return row, fmt.Errorf("expected object key, got %v", tok)
		}
		var v any
		if err := dec.Decode(&v); err != nil {
			return row, fmt.Errorf("value of %q: %w", key, err)
		}
		row.Set(key, v)
	}
	return row, expectDelim(dec, '}')
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("expected %q, got %v", want, tok)
	}
	return nil
}
