package report

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// WriteMarkdown renders the run summary, the per-table status table and the
// error and warning lists.
func WriteMarkdown(w io.Writer, s *RunStats) error {
	var b strings.Builder

	title := "Migration Report"
	if s.Kind != "migrate" {
		title = "Sync Report (" + s.Kind + ")"
	}
	fmt.Fprintf(&b, "# %s\n\n", title)
	fmt.Fprintf(&b, "- **Run ID:** `%s`\n", s.ID)
	fmt.Fprintf(&b, "- **Status:** %s\n", s.Status())
	if s.DryRun {
		b.WriteString("- **Mode:** dry run (no writes)\n")
	}
	fmt.Fprintf(&b, "- **Started:** %s\n", s.StartedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "- **Finished:** %s\n", s.EndedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "- **Duration:** %s\n\n", s.Duration().Round(time.Millisecond))

	b.WriteString("## Summary\n\n")
	b.WriteString("| Metric | Attempted | Succeeded | Failed |\n")
	b.WriteString("|---|---:|---:|---:|\n")
	fmt.Fprintf(&b, "| Tables | %d | %d | %d |\n", s.TablesAttempted, s.TablesSucceeded, s.TablesFailed)
	fmt.Fprintf(&b, "| Rows | %d | %d | %d |\n\n", s.RowsAttempted, s.RowsSucceeded, s.RowsFailed)
	fmt.Fprintf(&b, "Retries: %d\n\n", s.RetryCount)

	if len(s.Tables) > 0 {
		b.WriteString("## Tables\n\n")
		b.WriteString("| Table | Status | Source rows | Loaded | Failed | Target rows | Note |\n")
		b.WriteString("|---|---|---:|---:|---:|---:|---|\n")
		for _, t := range s.Tables {
			fmt.Fprintf(&b, "| %s | %s | %d | %d | %d | %d | %s |\n",
				t.Name, t.Status, t.SourceRows, t.Loaded, t.Failed, t.TargetRows, escapeCell(t.Note))
		}
		b.WriteString("\n")
	}

	writeRecords(&b, "Errors", s.Errors)
	writeRecords(&b, "Warnings", s.Warnings)

	_, err := io.WriteString(w, b.String())
	return err
}

func writeRecords(b *strings.Builder, heading string, records []Record) {
	fmt.Fprintf(b, "## %s\n\n", heading)
	if len(records) == 0 {
		b.WriteString("None.\n\n")
		return
	}
	for _, r := range records {
		fmt.Fprintf(b, "- **%s**: %s\n", r.Context, oneLine(r.Message))
	}
	b.WriteString("\n")
}

func escapeCell(s string) string {
	return strings.ReplaceAll(oneLine(s), "|", `\|`)
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
