// Package testutil provides an in-memory source and generated fixture rows.
package testutil

import (
	"context"
	"fmt"
	"sync"

	"db-ferry/internal/schema"
)

// FakeSource serves rows from memory with the paging semantics of the REST source.
type FakeSource struct {
	mu     sync.Mutex
	tables map[string][]schema.Row
	specs  map[string]*schema.TableSpec
	fail   map[string]int

	// PageCalls counts FetchPage calls per table.
	PageCalls map[string]int
	// Orders records OrderBy hints per table.
	Orders map[string][]string
}

func NewFakeSource() *FakeSource {
	return &FakeSource{
		tables:    make(map[string][]schema.Row),
		specs:     make(map[string]*schema.TableSpec),
		fail:      make(map[string]int),
		PageCalls: make(map[string]int),
		Orders:    make(map[string][]string),
	}
}

func (f *FakeSource) AddTable(name string, rows ...schema.Row) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tables[name] = append(f.tables[name], rows...)
}

// Declare publishes a declared spec, making the source a schema.Describer.
func (f *FakeSource) Declare(spec *schema.TableSpec) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.specs[spec.Name] = spec
}

// FailNext makes the next n page fetches of table fail.
func (f *FakeSource) FailNext(table string, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[table] = n
}

func (f *FakeSource) FetchPage(ctx context.Context, table string, offset, limit int) ([]schema.Row, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.PageCalls[table]++
	if f.fail[table] > 0 {
		f.fail[table]--
		return nil, fmt.Errorf("fetch %s at offset %d: 503 service unavailable", table, offset)
	}
	rows, ok := f.tables[table]
	if !ok {
		return nil, fmt.Errorf("fetch %s: 404 relation does not exist", table)
	}
	if offset >= len(rows) {
		return nil, nil
	}
	end := min(offset+limit, len(rows))
	return append([]schema.Row(nil), rows[offset:end]...), nil
}

func (f *FakeSource) FetchCount(ctx context.Context, table string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rows, ok := f.tables[table]
	if !ok {
		return 0, fmt.Errorf("count %s: 404 relation does not exist", table)
	}
	return int64(len(rows)), nil
}

func (f *FakeSource) Describe(ctx context.Context, table string) (*schema.TableSpec, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if spec, ok := f.specs[table]; ok {
		return spec, nil
	}
	return &schema.TableSpec{Name: table}, nil
}

func (f *FakeSource) OrderBy(table string, columns ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Orders[table] = columns
}
