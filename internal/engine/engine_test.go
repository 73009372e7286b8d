package engine_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"

	"db-ferry/internal/dialect"
	"db-ferry/internal/engine"
	"db-ferry/internal/report"
	"db-ferry/internal/schema"
	"db-ferry/internal/testutil"
)

func num(i int) json.Number { return json.Number(fmt.Sprint(i)) }

func TestBackoff_DoublesDelay(t *testing.T) {
	var delays []time.Duration
	b := engine.Backoff{
		Attempts:  3,
		BaseDelay: time.Second,
		Sleep: func(ctx context.Context, d time.Duration) error {
			delays = append(delays, d)
			return nil
		},
	}

	src := testutil.NewFakeSource()
	src.AddTable("customers", testutil.CustomerRows(5, 1)...)
	src.FailNext("customers", 2)

	var rows []schema.Row
	retries, err := b.Do(context.Background(), "extract customers", func(int) error {
		var xerr error
		rows, xerr = engine.ExtractAll(context.Background(), src, "customers", 2)
		return xerr
	})
	if err != nil {
		t.Fatalf("expected success on the third attempt, got %v", err)
	}
	if retries != 2 {
		t.Errorf("retries = %d, want 2", retries)
	}
	var total time.Duration
	for _, d := range delays {
		total += d
	}
	if len(delays) != 2 || delays[0] != time.Second || delays[1] != 2*time.Second || total != 3*time.Second {
		t.Errorf("delays = %v, want [1s 2s]", delays)
	}
	if len(rows) != 5 {
		t.Errorf("extracted %d rows, want 5", len(rows))
	}
}

func TestBackoff_Exhausted(t *testing.T) {
	calls := 0
	b := engine.Backoff{Attempts: 3, BaseDelay: time.Millisecond, Sleep: func(context.Context, time.Duration) error { return nil }}

	retries, err := b.Do(context.Background(), "op", func(int) error {
		calls++
		return errors.New("still down")
	})
	if err == nil || calls != 3 || retries != 2 {
		t.Errorf("calls=%d retries=%d err=%v, want 3 calls, 2 retries and an error", calls, retries, err)
	}
}

func TestExtractAll_Pagination(t *testing.T) {
	tests := []struct {
		name      string
		rows      int
		batch     int
		wantCalls int
	}{
		{"exact multiple needs a trailing empty page", 4, 2, 3},
		{"short last page stops", 5, 2, 3},
		{"empty table", 0, 2, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := testutil.NewFakeSource()
			src.AddTable("t", testutil.CustomerRows(tt.rows, 7)...)

			rows, err := engine.ExtractAll(context.Background(), src, "t", tt.batch)
			if err != nil {
				t.Fatal(err)
			}
			if len(rows) != tt.rows {
				t.Errorf("got %d rows, want %d", len(rows), tt.rows)
			}
			if src.PageCalls["t"] != tt.wantCalls {
				t.Errorf("page calls = %d, want %d", src.PageCalls["t"], tt.wantCalls)
			}
		})
	}
}

type failAfter struct {
	*testutil.FakeSource
	calls int
}

func (f *failAfter) FetchPage(ctx context.Context, table string, offset, limit int) ([]schema.Row, error) {
	f.calls++
	if f.calls == 2 {
		return nil, errors.New("connection reset")
	}
	return f.FakeSource.FetchPage(ctx, table, offset, limit)
}

func TestExtractAll_ReturnsPartialRowsOnError(t *testing.T) {
	src := &failAfter{FakeSource: testutil.NewFakeSource()}
	src.AddTable("t", testutil.CustomerRows(10, 3)...)

	rows, err := engine.ExtractAll(context.Background(), src, "t", 3)
	if err == nil {
		t.Fatal("expected the page error")
	}
	if len(rows) != 3 {
		t.Errorf("got %d accumulated rows, want 3", len(rows))
	}
}

func TestLoader_IsolatesRowFailures(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	d := dialect.GetDialect("mysql")
	spec := &schema.TableSpec{Name: "items", Columns: []schema.ColumnSpec{{Name: "id"}, {Name: "name"}}}
	rows := make([]schema.Row, 100)
	prep := mock.ExpectPrepare(regexp.QuoteMeta(d.InsertQuery("items", []string{"id", "name"})))
	for i := range rows {
		rows[i] = schema.NewRow("id", num(i+1), "name", "item")
		exec := prep.ExpectExec().WithArgs(int64(i+1), "item")
		if i+1 == 57 {
			exec.WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry '57' for key 'PRIMARY'"})
		} else {
			exec.WillReturnResult(sqlmock.NewResult(int64(i+1), 1))
		}
	}

	var progress []int
	loader := engine.NewLoader(d, 25, nil, nil)
	loader.OnProgress = func(table string, done, total int) { progress = append(progress, done) }
	stats := report.NewRunStats("migrate", false)

	res, err := loader.Load(context.Background(), db, spec, rows, stats)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if res.Succeeded != 99 || res.Failed != 1 {
		t.Errorf("result = %+v, want 99 succeeded and 1 failed", res)
	}
	if len(stats.Errors) != 1 || stats.Errors[0].Context != "items/row 57" {
		t.Errorf("errors = %+v", stats.Errors)
	}
	if fmt.Sprint(progress) != "[25 50 75 100]" {
		t.Errorf("progress = %v", progress)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("rows after the failure were not attempted: %v", err)
	}
}

func TestLoader_RejectsUnexpectedColumn(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	d := dialect.GetDialect("mysql")
	spec := &schema.TableSpec{Name: "items", Columns: []schema.ColumnSpec{{Name: "id"}, {Name: "meta"}}}
	prep := mock.ExpectPrepare(regexp.QuoteMeta(d.InsertQuery("items", []string{"id", "meta"})))
	prep.ExpectExec().WithArgs(int64(1), `{"a":1}`).WillReturnResult(sqlmock.NewResult(1, 1))

	rows := []schema.Row{
		schema.NewRow("id", num(1), "meta", map[string]any{"a": num(1)}),
		schema.NewRow("id", num(2), "colour", "red"),
	}
	res, err := engine.NewLoader(d, 10, nil, nil).Load(context.Background(), db, spec, rows, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Succeeded != 1 || res.Failed != 1 {
		t.Errorf("result = %+v, want 1/1", res)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestDriverValue(t *testing.T) {
	tests := []struct {
		in   any
		want any
	}{
		{nil, nil},
		{num(42), int64(42)},
		{json.Number("12.50"), "12.50"},
		{[]any{"a", "b"}, `["a","b"]`},
		{true, true},
		{"null", "null"},
	}
	for _, tt := range tests {
		got, err := engine.DriverValue(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("DriverValue(%#v) = %#v, %v; want %#v", tt.in, got, err, tt.want)
		}
	}
}

func TestMaterializer_Idempotent(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	d := dialect.GetDialect("mysql")
	spec := &schema.TableSpec{
		Name:       "orders",
		Columns:    []schema.ColumnSpec{{Name: "id", Type: schema.TypeUUID, PrimaryKey: true}, {Name: "total", Type: schema.TypeDecimal, Precision: 20, Scale: 2, Nullable: true}},
		PrimaryKey: []string{"id"},
	}
	stmt, err := engine.RenderCreateTable(spec, d)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(stmt, "CREATE TABLE IF NOT EXISTS `orders`") || !strings.Contains(stmt, "PRIMARY KEY (`id`)") {
		t.Fatalf("unexpected DDL:\n%s", stmt)
	}

	mock.ExpectExec(regexp.QuoteMeta(stmt)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(stmt)).WillReturnResult(sqlmock.NewResult(0, 0))

	m := engine.NewMaterializer(db, d, nil, nil)
	for i := 0; i < 2; i++ {
		if err := m.Materialize(context.Background(), spec); err != nil {
			t.Fatalf("run %d: %v", i+1, err)
		}
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestMaterializer_EmptySpec(t *testing.T) {
	m := engine.NewMaterializer(nil, dialect.GetDialect("mysql"), nil, nil)
	err := m.Materialize(context.Background(), &schema.TableSpec{Name: "empty"})
	if !errors.Is(err, engine.ErrNoSchema) {
		t.Errorf("expected ErrNoSchema, got %v", err)
	}
}

func expectSession(mock sqlmock.Sqlmock, body func()) {
	mock.ExpectExec(regexp.QuoteMeta("SET FOREIGN_KEY_CHECKS = 0")).WillReturnResult(sqlmock.NewResult(0, 0))
	body()
	mock.ExpectExec(regexp.QuoteMeta("SET FOREIGN_KEY_CHECKS = 1")).WillReturnResult(sqlmock.NewResult(0, 0))
}

func TestMigrator_CustomersWithNullEmail(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	src := testutil.NewFakeSource()
	src.AddTable("customers",
		schema.NewRow("id", num(1), "email", "ada@example.com"),
		schema.NewRow("id", num(2), "email", nil),
		schema.NewRow("id", num(3), "email", "grace@example.com"),
	)
	d := dialect.GetDialect("mysql")

	expectSession(mock, func() {
		mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS `customers`")).WillReturnResult(sqlmock.NewResult(0, 0))
		prep := mock.ExpectPrepare(regexp.QuoteMeta("INSERT INTO `customers` (`id`, `email`) VALUES (?, ?)"))
		prep.ExpectExec().WithArgs(int64(1), "ada@example.com").WillReturnResult(sqlmock.NewResult(1, 1))
		prep.ExpectExec().WithArgs(int64(2), nil).WillReturnResult(sqlmock.NewResult(2, 1))
		prep.ExpectExec().WithArgs(int64(3), "grace@example.com").WillReturnResult(sqlmock.NewResult(3, 1))
		mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM `customers`")).
			WillReturnRows(sqlmock.NewRows([]string{"COUNT(*)"}).AddRow(3))
	})

	m := engine.NewMigrator(src, db, d, engine.Options{Tables: []string{"customers"}}, nil)
	stats := report.NewRunStats("migrate", false)
	if err := m.Run(context.Background(), stats, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if stats.Status() != report.StatusSuccess {
		t.Errorf("status = %s, errors = %+v", stats.Status(), stats.Errors)
	}
	if len(stats.Warnings) != 0 {
		t.Errorf("expected reconciliation to pass, warnings = %+v", stats.Warnings)
	}
	tr := stats.Table("customers")
	if tr.Status != report.TableLoaded || tr.SourceRows != 3 || tr.TargetRows != 3 {
		t.Errorf("table result = %+v", tr)
	}
	if stats.RowsSucceeded != 3 || stats.TablesSucceeded != 1 {
		t.Errorf("rows ok = %d, tables ok = %d", stats.RowsSucceeded, stats.TablesSucceeded)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestMigrator_ReconcileMismatchIsWarning(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	src := testutil.NewFakeSource()
	src.AddTable("customers",
		schema.NewRow("id", num(1), "email", "ada@example.com"),
		schema.NewRow("id", num(2), "email", "grace@example.com"),
	)

	expectSession(mock, func() {
		mock.ExpectExec("CREATE TABLE IF NOT EXISTS").WillReturnResult(sqlmock.NewResult(0, 0))
		prep := mock.ExpectPrepare("INSERT INTO")
		prep.ExpectExec().WillReturnResult(sqlmock.NewResult(1, 1))
		prep.ExpectExec().WillReturnResult(sqlmock.NewResult(2, 1))
		// Rows left over from an earlier run.
		mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM `customers`")).
			WillReturnRows(sqlmock.NewRows([]string{"COUNT(*)"}).AddRow(5))
	})

	stats := report.NewRunStats("migrate", false)
	artifacts, err := report.NewArtifacts(t.TempDir(), stats.ID)
	if err != nil {
		t.Fatal(err)
	}
	m := engine.NewMigrator(src, db, dialect.GetDialect("mysql"), engine.Options{Tables: []string{"customers"}}, nil)
	if err := m.Run(context.Background(), stats, artifacts); err != nil {
		t.Fatal(err)
	}

	if stats.Status() != report.StatusSuccess {
		t.Errorf("status = %s, a count mismatch must not fail the run", stats.Status())
	}
	if len(stats.Warnings) != 1 || stats.Warnings[0].Context != "customers/reconcile" {
		t.Errorf("warnings = %+v", stats.Warnings)
	}
	tr := stats.Table("customers")
	if tr.Status != report.TableLoaded || tr.SourceRows != 2 || tr.TargetRows != 5 {
		t.Errorf("table result = %+v", tr)
	}

	data, err := os.ReadFile(filepath.Join(artifacts.Dir, report.DataFile))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "-- customers: 2 rows") || strings.Count(string(data), "INSERT INTO `customers`") != 2 {
		t.Errorf("data.sql =\n%s", data)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func declaredCustomers() *schema.TableSpec {
	return &schema.TableSpec{
		Name: "customers",
		Columns: []schema.ColumnSpec{
			{Name: "id", Type: schema.TypeInteger, Declared: "bigint", PrimaryKey: true},
			{Name: "email", Type: schema.TypeLongText, Declared: "text", Nullable: true},
		},
		PrimaryKey: []string{"id"},
	}
}

func TestMigrator_RetriesExtraction(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	src := testutil.NewFakeSource()
	src.Declare(declaredCustomers())
	src.AddTable("customers", schema.NewRow("id", num(1), "email", "a@example.com"))
	src.FailNext("customers", 2)

	expectSession(mock, func() {
		mock.ExpectExec("CREATE TABLE IF NOT EXISTS").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectPrepare("INSERT INTO").ExpectExec().WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*)")).WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(1))
	})

	var slept time.Duration
	opts := engine.Options{
		Tables: []string{"customers"},
		Retry: engine.Backoff{Attempts: 3, BaseDelay: time.Second, Sleep: func(_ context.Context, d time.Duration) error {
			slept += d
			return nil
		}},
	}
	stats := report.NewRunStats("migrate", false)
	if err := engine.NewMigrator(src, db, dialect.GetDialect("mysql"), opts, nil).Run(context.Background(), stats, nil); err != nil {
		t.Fatal(err)
	}
	if stats.RetryCount != 2 || slept != 3*time.Second {
		t.Errorf("retries = %d, slept = %s; want 2 and 3s", stats.RetryCount, slept)
	}
	if got := src.Orders["customers"]; len(got) != 1 || got[0] != "id" {
		t.Errorf("expected paging ordered by id, got %v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestMigrator_ExhaustedRetryFailsOnlyThatTable(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	src := testutil.NewFakeSource()
	src.Declare(declaredCustomers())
	src.AddTable("customers", schema.NewRow("id", num(1), "email", "a@example.com"))
	src.FailNext("customers", 10)

	expectSession(mock, func() {
		mock.ExpectExec("CREATE TABLE IF NOT EXISTS").WillReturnResult(sqlmock.NewResult(0, 0))
	})

	opts := engine.Options{
		Tables: []string{"customers", "ghost"},
		Retry:  engine.Backoff{Attempts: 3, BaseDelay: time.Second, Sleep: func(context.Context, time.Duration) error { return nil }},
	}
	stats := report.NewRunStats("migrate", false)
	if err := engine.NewMigrator(src, db, dialect.GetDialect("mysql"), opts, nil).Run(context.Background(), stats, nil); err != nil {
		t.Fatalf("a table failure must not fail the run: %v", err)
	}
	if stats.TablesAttempted != 2 || stats.TablesFailed != 2 {
		t.Errorf("attempted = %d failed = %d, want 2/2", stats.TablesAttempted, stats.TablesFailed)
	}
	if stats.Status() != report.StatusPartialSuccess {
		t.Errorf("status = %s", stats.Status())
	}
	if stats.Table("customers").Status != report.TableFailed {
		t.Errorf("customers = %+v", stats.Table("customers"))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestMigrator_DryRunWritesArtifactsOnly(t *testing.T) {
	src := testutil.NewFakeSource()
	src.AddTable("orders", testutil.OrderRows(4, 11)...)

	stats := report.NewRunStats("migrate", true)
	artifacts, err := report.NewArtifacts(t.TempDir(), stats.ID)
	if err != nil {
		t.Fatal(err)
	}

	opts := engine.Options{Tables: []string{"orders"}, DryRun: true}
	if err := engine.NewMigrator(src, nil, dialect.GetDialect("mysql"), opts, nil).Run(context.Background(), stats, artifacts); err != nil {
		t.Fatal(err)
	}
	if tr := stats.Table("orders"); tr.Status != report.TablePlanned || tr.SourceRows != 4 {
		t.Errorf("orders = %+v", tr)
	}

	ddl, err := os.ReadFile(filepath.Join(artifacts.Dir, report.SchemaFile))
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"CREATE TABLE IF NOT EXISTS `orders`", "`id` CHAR(36) NOT NULL", "`items` JSON", "PRIMARY KEY (`id`)"} {
		if !strings.Contains(string(ddl), want) {
			t.Errorf("schema.sql missing %q:\n%s", want, ddl)
		}
	}
	if _, err := os.Stat(filepath.Join(artifacts.Dir, report.ReportFile)); err != nil {
		t.Errorf("report not written: %v", err)
	}
}
