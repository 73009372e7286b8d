package report_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"db-ferry/internal/report"
)

func TestStatus(t *testing.T) {
	s := report.NewRunStats("migrate", false)
	if s.Status() != report.StatusSuccess {
		t.Errorf("empty run should be SUCCESS, got %s", s.Status())
	}
	s.AddWarning("orders/reconcile", "source=3 target=2")
	if s.Status() != report.StatusSuccess {
		t.Error("warnings must not change the status")
	}
	s.AddError("orders/load", errors.New("duplicate key"))
	if s.Status() != report.StatusPartialSuccess {
		t.Errorf("got %s, want PARTIAL SUCCESS", s.Status())
	}
}

func TestTableIsReused(t *testing.T) {
	s := report.NewRunStats("migrate", false)
	s.Table("orders").Loaded = 5
	if got := s.Table("orders").Loaded; got != 5 || len(s.Tables) != 1 {
		t.Errorf("Table() should return the existing entry, got loaded=%d tables=%d", got, len(s.Tables))
	}
}

func TestArtifactsAreWriteOnce(t *testing.T) {
	dir := t.TempDir()
	s := report.NewRunStats("migrate", false)

	a, err := report.NewArtifacts(dir, s.ID)
	if err != nil {
		t.Fatalf("NewArtifacts: %v", err)
	}

	script, err := a.OpenScript(report.SchemaFile, "schema")
	if err != nil {
		t.Fatalf("OpenScript: %v", err)
	}
	if err := script.Statement("CREATE TABLE IF NOT EXISTS `t` (`id` BIGINT)"); err != nil {
		t.Fatal(err)
	}
	if err := script.Close(); err != nil {
		t.Fatal(err)
	}

	if _, err := a.OpenScript(report.SchemaFile, "schema"); err == nil {
		t.Error("reopening an existing artifact must fail")
	}

	body, err := os.ReadFile(filepath.Join(dir, s.ID, report.SchemaFile))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(body), "CREATE TABLE IF NOT EXISTS `t` (`id` BIGINT);\n") {
		t.Errorf("statement missing from script:\n%s", body)
	}
}

func TestWriteReport(t *testing.T) {
	s := report.NewRunStats("migrate", false)
	s.TablesAttempted, s.TablesSucceeded = 1, 1
	s.RowsAttempted, s.RowsSucceeded, s.RowsFailed = 100, 99, 1
	tr := s.Table("orders")
	tr.Status, tr.SourceRows, tr.Loaded, tr.Failed, tr.TargetRows = report.TablePartial, 100, 99, 1, 99
	s.AddError("orders/row 57", errors.New("Duplicate entry '57' for key 'PRIMARY'"))
	s.Finish()

	a, err := report.NewArtifacts(t.TempDir(), s.ID)
	if err != nil {
		t.Fatal(err)
	}
	path, err := a.WriteReport(s)
	if err != nil {
		t.Fatalf("WriteReport: %v", err)
	}
	body, _ := os.ReadFile(path)
	md := string(body)

	for _, want := range []string{
		"# Migration Report",
		"**Status:** PARTIAL SUCCESS",
		"| Rows | 100 | 99 | 1 |",
		"| orders | partial | 100 | 99 | 1 | 99 |  |",
		"- **orders/row 57**: Duplicate entry '57' for key 'PRIMARY'",
		"## Warnings\n\nNone.",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("report missing %q\n%s", want, md)
		}
	}
}
