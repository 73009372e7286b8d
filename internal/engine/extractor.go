package engine

import (
	"context"
	"iter"

	"db-ferry/internal/schema"
)

// PageSource is the source boundary the extractor pages through.
type PageSource interface {
	FetchPage(ctx context.Context, table string, offset, limit int) ([]schema.Row, error)
}

// Pages lazily yields successive pages of table. The sequence ends after a
// short or empty page, or after yielding a fetch error. Ranging over it again
// starts from offset zero.
func Pages(ctx context.Context, src PageSource, table string, batchSize int) iter.Seq2[[]schema.Row, error] {
	return func(yield func([]schema.Row, error) bool) {
		for offset := 0; ; offset += batchSize {
			page, err := src.FetchPage(ctx, table, offset, batchSize)
			if err != nil {
				yield(nil, err)
				return
			}
			if len(page) == 0 {
				return
			}
			if !yield(page, nil) {
				return
			}
			if len(page) < batchSize {
				return
			}
		}
	}
}

// ExtractAll drains Pages. On a fetch error it returns the rows read so far
// together with the error.
func ExtractAll(ctx context.Context, src PageSource, table string, batchSize int) ([]schema.Row, error) {
	if batchSize <= 0 {
		batchSize = 1000
	}
	var rows []schema.Row
	for page, err := range Pages(ctx, src, table, batchSize) {
		if err != nil {
			return rows, err
		}
		rows = append(rows, page...)
	}
	return rows, nil
}
