package cmd

import (
	"database/sql"
	"fmt"
	"strings"
	"sync"

	"github.com/gosuri/uiprogress"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"db-ferry/internal/config"
	"db-ferry/internal/dialect"
	"db-ferry/internal/engine"
	"db-ferry/internal/report"
)

var (
	migrateTables []string
	migrateDryRun bool
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Copy every source table into the target database",
	RunE: func(cmd *cobra.Command, args []string) error {
		mode := config.ModeMigrate
		if migrateDryRun {
			mode = config.ModePlan
		}
		if err := cfg.Validate(mode); err != nil {
			return err
		}
		ctx := cmd.Context()

		src, err := newSource()
		if err != nil {
			return err
		}

		// Tables: flag > config > every table the source publishes.
		tables := migrateTables
		if len(tables) == 0 {
			tables = cfg.Migrate.Tables
		}
		if len(tables) == 0 {
			if tables, err = src.ListTables(ctx); err != nil {
				return fmt.Errorf("no tables configured and the source catalogue is unavailable: %w", err)
			}
		}
		if len(tables) == 0 {
			return fmt.Errorf("no tables to migrate")
		}

		d := dialect.GetDialect(cfg.Target.Driver)
		var db *sql.DB
		if !migrateDryRun {
			target, err := openStore(ctx, "target", cfg.Target)
			if err != nil {
				return err
			}
			defer target.DB.Close()
			db, d = target.DB, target.Dialect
		}

		stats := report.NewRunStats("migrate", migrateDryRun)
		artifacts, err := report.NewArtifacts(cfg.ReportDir, stats.ID)
		if err != nil {
			return err
		}

		m := engine.NewMigrator(src, db, d, engine.Options{
			Tables:     tables,
			BatchSize:  cfg.Sync.BatchSize,
			SampleSize: cfg.Migrate.SampleSize,
			Retry:      engine.Backoff{Attempts: cfg.Migrate.RetryAttempts, BaseDelay: cfg.Migrate.RetryBaseDelay},
			DryRun:     migrateDryRun,
		}, logger)

		var runErr error
		if migrateDryRun {
			fmt.Println("[SIMULATION] Dry-run: nothing will be written to the target.")
			runErr = m.Run(ctx, stats, artifacts)
		} else {
			bars := newTableBars()
			m.OnTable = bars.add
			m.OnProgress = bars.set
			uiprogress.Start()
			runErr = m.Run(ctx, stats, artifacts)
			uiprogress.Stop()
		}

		printSummary(stats, artifacts.Dir)
		return runErr
	},
}

// tableBars keeps one progress bar per table being loaded.
type tableBars struct {
	mu   sync.Mutex
	bars map[string]*uiprogress.Bar
}

func newTableBars() *tableBars {
	return &tableBars{bars: make(map[string]*uiprogress.Bar)}
}

func (t *tableBars) add(table string, rows int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if rows == 0 {
		return
	}
	bar := uiprogress.AddBar(rows).AppendCompleted().PrependElapsed()
	bar.PrependFunc(func(b *uiprogress.Bar) string {
		return fmt.Sprintf("%-20s", table)
	})
	t.bars[table] = bar
}

func (t *tableBars) set(table string, done, total int) {
	t.mu.Lock()
	bar := t.bars[table]
	t.mu.Unlock()
	if bar != nil {
		bar.Set(done)
	}
}

func printSummary(stats *report.RunStats, dir string) {
	fmt.Printf("\n📊 Summary Report (run %s)\n", stats.ID)
	for i, t := range stats.Tables {
		icon := "✓"
		if t.Status != report.TableLoaded && t.Status != report.TablePlanned {
			icon = "!"
		}
		fmt.Printf("[%s] [%02d/%02d] %-20s : %d/%d rows (target: %d) - %s\n",
			icon, i+1, len(stats.Tables), t.Name, t.Loaded, t.SourceRows, t.TargetRows, t.Status)
		if t.Note != "" {
			fmt.Printf("    └ %s\n", t.Note)
		}
	}
	fmt.Println(strings.Repeat("-", 50))
	fmt.Printf("Status: %s | rows ok %d, failed %d | %d errors, %d warnings | %s\n",
		stats.Status(), stats.RowsSucceeded, stats.RowsFailed, len(stats.Errors), len(stats.Warnings), stats.Duration())
	fmt.Printf("Artifacts: %s\n", dir)
}

func init() {
	RootCmd.AddCommand(migrateCmd)

	migrateCmd.Flags().StringSliceVarP(&migrateTables, "tables", "t", []string{}, "Tables to migrate, in load order (comma-separated)")
	migrateCmd.Flags().BoolVar(&migrateDryRun, "dry-run", false, "Infer and render DDL and counts without touching the target")
	migrateCmd.Flags().Int("batch-size", 0, "Rows per source page and per load batch (overrides config)")

	viper.BindPFlag("sync.batch_size", migrateCmd.Flags().Lookup("batch-size"))
}
