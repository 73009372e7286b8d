package report

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	SchemaFile = "schema.sql"
	DataFile   = "data.sql"
	ReportFile = "report.md"
)

// Artifacts is the directory holding one run's generated files. Every file
// is created exclusively; an existing file is never overwritten or appended.
type Artifacts struct {
	Dir string
}

func NewArtifacts(reportDir, runID string) (*Artifacts, error) {
	dir := filepath.Join(reportDir, runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create report dir: %w", err)
	}
	return &Artifacts{Dir: dir}, nil
}

func (a *Artifacts) create(name string) (*os.File, error) {
	path := filepath.Join(a.Dir, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	return f, nil
}

// OpenScript starts a SQL script artifact with a header comment.
func (a *Artifacts) OpenScript(name, title string) (*Script, error) {
	f, err := a.create(name)
	if err != nil {
		return nil, err
	}
	s := &Script{f: f, w: bufio.NewWriter(f), Path: f.Name()}
	fmt.Fprintf(s.w, "-- %s\n-- generated %s\n\n", title, time.Now().UTC().Format(time.RFC3339))
	return s, nil
}

// WriteReport renders the markdown report for a finished run.
func (a *Artifacts) WriteReport(s *RunStats) (string, error) {
	f, err := a.create(ReportFile)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if err := WriteMarkdown(f, s); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return f.Name(), nil
}

// Script collects generated SQL statements. A nil *Script discards them.
type Script struct {
	Path string
	f    *os.File
	w    *bufio.Writer
	n    int
}

// Statement appends one statement terminated by a semicolon.
func (s *Script) Statement(stmt string) error {
	if s == nil {
		return nil
	}
	s.n++
	_, err := fmt.Fprintf(s.w, "%s;\n", stmt)
	return err
}

// Comment appends a "--" line.
func (s *Script) Comment(text string) error {
	if s == nil {
		return nil
	}
	_, err := fmt.Fprintf(s.w, "\n-- %s\n", text)
	return err
}

// Count returns how many statements were written.
func (s *Script) Count() int {
	if s == nil {
		return 0
	}
	return s.n
}

func (s *Script) Close() error {
	if s == nil {
		return nil
	}
	if err := s.w.Flush(); err != nil {
		s.f.Close()
		return err
	}
	return s.f.Close()
}
