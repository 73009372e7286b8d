package mirror

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"

	"db-ferry/internal/dialect"
	"db-ferry/internal/schema"
)

var (
	// ErrDestructive is returned when a diff drops tables or columns and
	// destructive changes are not allowed.
	ErrDestructive = errors.New("destructive schema change blocked")
	// ErrBusy is returned while another schema run is in progress.
	ErrBusy = errors.New("a schema sync is already running")
)

var (
	destructivePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bDROP\s+TABLE\b`),
		regexp.MustCompile(`(?i)\bDROP\s+COLUMN\b`),
		regexp.MustCompile(`(?i)\bALTER\s+TABLE\b[^;]*\bDROP\b`),
	}
	addedPattern   = regexp.MustCompile(`(?i)\bCREATE\s+TABLE\b|\bADD\s+COLUMN\b`)
	updatedPattern = regexp.MustCompile(`(?i)\bMODIFY\s+COLUMN\b|\bALTER\s+COLUMN\b`)
)

// State is the position of the gate in its run cycle.
type State string

const (
	StateIdle          State = "idle"
	StateDiffing       State = "diffing"
	StateBlocked       State = "blocked"
	StateDryRunPreview State = "dry-run-preview"
	StateApplying      State = "applying"
)

// Store is one side of the diff: a live SQL database and its dialect.
type Store struct {
	DB      *sql.DB
	Dialect dialect.Dialect
	Schema  string
}

// SchemaResult is what a gate run reports back.
type SchemaResult struct {
	OK      bool     `json:"ok"`
	DryRun  bool     `json:"dryRun,omitempty"`
	Blocked bool     `json:"blocked,omitempty"`
	Added   int64    `json:"added"`
	Updated int64    `json:"updated"`
	Tables  []string `json:"tables,omitempty"`
	Preview string   `json:"preview,omitempty"`

	Statements []string `json:"-"`
}

// Gate diffs target against mirror and applies the script to the mirror
// unless it is destructive or a dry run.
type Gate struct {
	target, mirror   Store
	allowDestructive bool
	logger           *slog.Logger

	run   sync.Mutex
	mu    sync.Mutex
	state State
}

func NewGate(target, mirror Store, allowDestructive bool, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{target: target, mirror: mirror, allowDestructive: allowDestructive, logger: logger, state: StateIdle}
}

func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

func (g *Gate) setState(s State) {
	g.mu.Lock()
	g.state = s
	g.mu.Unlock()
	g.logger.Debug("schema gate", "state", s)
}

// IsDestructive reports whether script drops anything.
func IsDestructive(script string) bool {
	for _, re := range destructivePatterns {
		if re.MatchString(script) {
			return true
		}
	}
	return false
}

// CountChanges derives added/updated counts from statement keywords.
func CountChanges(script string) (added, updated int64) {
	return int64(len(addedPattern.FindAllStringIndex(script, -1))), int64(len(updatedPattern.FindAllStringIndex(script, -1)))
}

// Plan introspects both stores and returns the diff statements.
func (g *Gate) Plan(ctx context.Context) ([]string, []string, error) {
	targetTables, err := schema.Introspect(ctx, g.target.DB, g.target.Dialect, g.target.Schema)
	if err != nil {
		return nil, nil, fmt.Errorf("introspect target: %w", err)
	}
	mirrorTables, err := schema.Introspect(ctx, g.mirror.DB, g.mirror.Dialect, g.mirror.Schema)
	if err != nil {
		return nil, nil, fmt.Errorf("introspect mirror: %w", err)
	}
	names := make([]string, len(targetTables))
	for i, t := range targetTables {
		names[i] = t.Name
	}
	return Diff(targetTables, mirrorTables, g.target.Dialect, g.mirror.Dialect), names, nil
}

// Run moves the gate through one cycle. A destructive script returns the
// preview together with ErrDestructive and executes nothing.
func (g *Gate) Run(ctx context.Context, dryRun bool) (*SchemaResult, error) {
	if !g.run.TryLock() {
		return nil, ErrBusy
	}
	defer g.run.Unlock()
	defer g.setState(StateIdle)

	g.setState(StateDiffing)
	stmts, tables, err := g.Plan(ctx)
	if err != nil {
		return nil, err
	}
	script := Script(stmts)
	added, updated := CountChanges(script)
	res := &SchemaResult{DryRun: dryRun, Added: added, Updated: updated, Tables: tables, Preview: script, Statements: stmts}

	if IsDestructive(script) && !g.allowDestructive {
		g.setState(StateBlocked)
		res.Blocked = true
		g.logger.Warn("destructive schema diff blocked", "statements", len(stmts))
		return res, ErrDestructive
	}

	if dryRun {
		g.setState(StateDryRunPreview)
		g.logger.Info("schema dry run", "statements", len(stmts), "added", added, "updated", updated)
		res.OK = true
		return res, nil
	}

	g.setState(StateApplying)
	if err := g.apply(ctx, stmts); err != nil {
		return res, err
	}
	g.logger.Info("schema applied", "statements", len(stmts), "added", added, "updated", updated)
	res.OK = true
	return res, nil
}

// apply runs the statements in one transaction on the mirror. MySQL commits
// DDL implicitly, so there a failure can leave earlier statements applied.
func (g *Gate) apply(ctx context.Context, stmts []string) error {
	if len(stmts) == 0 {
		return nil
	}
	tx, err := g.mirror.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema transaction: %w", err)
	}
	for i, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("statement %d (%s): %w", i+1, firstLine(stmt), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema transaction: %w", err)
	}
	return nil
}

// Script joins statements into one semicolon-terminated text.
func Script(stmts []string) string {
	var b strings.Builder
	for _, s := range stmts {
		b.WriteString(s)
		b.WriteString(";\n")
	}
	return b.String()
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
