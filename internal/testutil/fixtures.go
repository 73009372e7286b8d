package testutil

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"db-ferry/internal/schema"
)

// CustomerRows generates n customer rows with ids 1..n. The seed keeps the
// output reproducible.
func CustomerRows(n int, seed int64) []schema.Row {
	f := gofakeit.New(seed)
	rows := make([]schema.Row, n)
	for i := range rows {
		rows[i] = schema.NewRow(
			"id", json.Number(fmt.Sprint(i+1)),
			"name", f.Name(),
			"email", f.Email(),
			"active", f.Bool(),
			"balance", json.Number(fmt.Sprintf("%.2f", f.Float64Range(1, 5000))),
			"created_at", f.DateRange(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)).Format(time.RFC3339),
		)
	}
	return rows
}

// OrderRows generates n order rows keyed by UUID, with a nested JSON column.
func OrderRows(n int, seed int64) []schema.Row {
	f := gofakeit.New(seed)
	rows := make([]schema.Row, n)
	for i := range rows {
		rows[i] = schema.NewRow(
			"id", f.UUID(),
			"status", f.RandomString([]string{"new", "paid", "shipped"}),
			"items", []any{map[string]any{"sku": f.Numerify("SKU-####"), "qty": json.Number(fmt.Sprint(f.Number(1, 5)))}},
			"note", f.Sentence(8),
		)
	}
	return rows
}
