// Package report accumulates run statistics and writes the per-run artifacts.
package report

import (
	"time"

	"github.com/google/uuid"
)

const (
	StatusSuccess        = "SUCCESS"
	StatusPartialSuccess = "PARTIAL SUCCESS"
)

// TableStatus is the outcome of one table within a run.
type TableStatus string

const (
	TablePending TableStatus = "pending"
	TableLoaded  TableStatus = "loaded"
	TablePartial TableStatus = "partial"
	TableSkipped TableStatus = "skipped"
	TableFailed  TableStatus = "failed"
	TablePlanned TableStatus = "planned"
)

// Record is one (context, message) entry in the error or warning list.
type Record struct {
	Context string
	Message string
}

// TableResult holds the per-table line of the report.
type TableResult struct {
	Name       string
	Status     TableStatus
	SourceRows int64
	Loaded     int64
	Failed     int64
	TargetRows int64
	Note       string
}

// RunStats is owned by the run loop that creates it and is read-only after
// Finish. It is not safe for concurrent use.
type RunStats struct {
	ID        string
	Kind      string
	DryRun    bool
	StartedAt time.Time
	EndedAt   time.Time

	TablesAttempted int
	TablesSucceeded int
	TablesFailed    int

	RowsAttempted int64
	RowsSucceeded int64
	RowsFailed    int64

	RetryCount int

	Errors   []Record
	Warnings []Record
	Tables   []*TableResult
}

func NewRunStats(kind string, dryRun bool) *RunStats {
	return &RunStats{
		ID:        uuid.NewString(),
		Kind:      kind,
		DryRun:    dryRun,
		StartedAt: time.Now(),
	}
}

// AddError records an error under the given context, e.g. "orders/load".
func (s *RunStats) AddError(context string, err error) {
	if err == nil {
		return
	}
	s.Errors = append(s.Errors, Record{Context: context, Message: err.Error()})
}

func (s *RunStats) AddWarning(context, message string) {
	s.Warnings = append(s.Warnings, Record{Context: context, Message: message})
}

// Table returns the result line for name, creating it on first use.
func (s *RunStats) Table(name string) *TableResult {
	for _, t := range s.Tables {
		if t.Name == name {
			return t
		}
	}
	t := &TableResult{Name: name, Status: TablePending}
	s.Tables = append(s.Tables, t)
	return t
}

// Finish stamps the end time. Calling it twice keeps the first stamp.
func (s *RunStats) Finish() {
	if s.EndedAt.IsZero() {
		s.EndedAt = time.Now()
	}
}

func (s *RunStats) Duration() time.Duration {
	end := s.EndedAt
	if end.IsZero() {
		end = time.Now()
	}
	return end.Sub(s.StartedAt)
}

// Status is SUCCESS only when no error was recorded.
func (s *RunStats) Status() string {
	if len(s.Errors) == 0 {
		return StatusSuccess
	}
	return StatusPartialSuccess
}
