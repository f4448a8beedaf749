package executor

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/tordrt/sqlitemigrate/internal/differ"
	"github.com/tordrt/sqlitemigrate/internal/errs"
	"github.com/tordrt/sqlitemigrate/internal/live"
	"github.com/tordrt/sqlitemigrate/internal/parser"
	"github.com/tordrt/sqlitemigrate/internal/planner"
)

func openMemConn(t *testing.T) *sql.Conn {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	conn, err := db.Conn(context.Background())
	if err != nil {
		t.Fatalf("conn: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func planFor(t *testing.T, targetSQL string, conn *sql.Conn) []planner.Step {
	t.Helper()
	target, err := parser.ParseSchema(targetSQL)
	if err != nil {
		t.Fatalf("ParseSchema: %v", err)
	}
	liveSchema, err := live.Read(context.Background(), conn, nil)
	if err != nil {
		t.Fatalf("live.Read: %v", err)
	}
	changes := differ.Diff(target, liveSchema, nil)
	steps, err := planner.Plan(changes, target, liveSchema, false, nil)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	return steps
}

func TestExecuteAppliesEmptyToOneTable(t *testing.T) {
	conn := openMemConn(t)
	steps := planFor(t, `CREATE TABLE a (id INTEGER PRIMARY KEY);`, conn)

	report := Execute(context.Background(), conn, steps, ModeApply, true, false, nil)
	if report.Err != nil {
		t.Fatalf("Execute: %v", report.Err)
	}
	if report.Outcome != OutcomeApplied {
		t.Fatalf("outcome = %v, want Applied", report.Outcome)
	}

	liveSchema, err := live.Read(context.Background(), conn, nil)
	if err != nil {
		t.Fatalf("live.Read: %v", err)
	}
	if _, ok := liveSchema.Get("table", "a"); !ok {
		t.Fatal("expected table a to exist after apply")
	}
}

func TestExecuteDryRunRollsBackRegardless(t *testing.T) {
	conn := openMemConn(t)
	steps := planFor(t, `CREATE TABLE a (id INTEGER PRIMARY KEY);`, conn)

	report := Execute(context.Background(), conn, steps, ModeDryRun, true, false, nil)
	if report.Err != nil {
		t.Fatalf("Execute: %v", report.Err)
	}
	if report.Outcome != OutcomePreviewed {
		t.Fatalf("outcome = %v, want Previewed", report.Outcome)
	}

	liveSchema, err := live.Read(context.Background(), conn, nil)
	if err != nil {
		t.Fatalf("live.Read: %v", err)
	}
	if _, ok := liveSchema.Get("table", "a"); ok {
		t.Fatal("dry-run must not leave table a behind")
	}
}

func TestExecuteScriptOnlySkipsConnection(t *testing.T) {
	conn := openMemConn(t)
	steps := planFor(t, `CREATE TABLE a (id INTEGER PRIMARY KEY);`, conn)

	report := Execute(context.Background(), conn, steps, ModeScriptOnly, true, false, nil)
	if report.Outcome != OutcomeScriptOnly {
		t.Fatalf("outcome = %v, want ScriptOnly", report.Outcome)
	}
	if report.SQL == "" {
		t.Fatal("expected non-empty rendered SQL")
	}

	liveSchema, err := live.Read(context.Background(), conn, nil)
	if err != nil {
		t.Fatalf("live.Read: %v", err)
	}
	if _, ok := liveSchema.Get("table", "a"); ok {
		t.Fatal("script-only must not touch the connection")
	}
}

func TestExecuteDataLossOnNotNullRebuild(t *testing.T) {
	conn := openMemConn(t)
	if _, err := conn.ExecContext(context.Background(), `CREATE TABLE a (id INTEGER PRIMARY KEY)`); err != nil {
		t.Fatalf("setup: %v", err)
	}
	if _, err := conn.ExecContext(context.Background(), `INSERT INTO a (id) VALUES (1)`); err != nil {
		t.Fatalf("setup: %v", err)
	}

	steps := planFor(t, `CREATE TABLE a (id INTEGER PRIMARY KEY, name TEXT NOT NULL);`, conn)

	report := Execute(context.Background(), conn, steps, ModeApply, true, false, nil)
	if report.Err == nil {
		t.Fatal("expected DataLoss error, got nil")
	}
	if errs.KindOf(report.Err) != errs.KindDataLoss {
		t.Fatalf("error kind = %v, want KindDataLoss", errs.KindOf(report.Err))
	}
	if report.Outcome != OutcomeRolledBack {
		t.Fatalf("outcome = %v, want RolledBack", report.Outcome)
	}
}

func TestExecuteIntegrityViolationRollsBack(t *testing.T) {
	conn := openMemConn(t)
	// Build the orphan-row scenario relying on foreign-key enforcement being
	// off on a fresh connection, so the setup statements themselves don't
	// fail, mirroring spec §8 scenario 7.
	setup := []string{
		`CREATE TABLE parent (id INTEGER PRIMARY KEY)`,
		`CREATE TABLE child (id INTEGER PRIMARY KEY, parent_id INTEGER REFERENCES parent(id))`,
		`INSERT INTO child (id, parent_id) VALUES (1, 99)`,
	}
	for _, s := range setup {
		if _, err := conn.ExecContext(context.Background(), s); err != nil {
			t.Fatalf("setup %q: %v", s, err)
		}
	}

	// Target equals live: no structural changes, but the integrity check
	// still runs and finds the pre-existing orphan row.
	steps := planFor(t, `
		CREATE TABLE parent (id INTEGER PRIMARY KEY);
		CREATE TABLE child (id INTEGER PRIMARY KEY, parent_id INTEGER REFERENCES parent(id));
	`, conn)

	report := Execute(context.Background(), conn, steps, ModeApply, true, false, nil)
	if report.Err == nil {
		t.Fatal("expected IntegrityViolation error, got nil")
	}
	if errs.KindOf(report.Err) != errs.KindIntegrityViolation {
		t.Fatalf("error kind = %v, want KindIntegrityViolation", errs.KindOf(report.Err))
	}
	if report.Outcome != OutcomeRolledBack {
		t.Fatalf("outcome = %v, want RolledBack", report.Outcome)
	}
}

func TestExecuteIgnoresIntegrityViolationWhenNotStrict(t *testing.T) {
	conn := openMemConn(t)
	setup := []string{
		`CREATE TABLE parent (id INTEGER PRIMARY KEY)`,
		`CREATE TABLE child (id INTEGER PRIMARY KEY, parent_id INTEGER REFERENCES parent(id))`,
		`INSERT INTO child (id, parent_id) VALUES (1, 99)`,
	}
	for _, s := range setup {
		if _, err := conn.ExecContext(context.Background(), s); err != nil {
			t.Fatalf("setup %q: %v", s, err)
		}
	}

	steps := planFor(t, `
		CREATE TABLE parent (id INTEGER PRIMARY KEY);
		CREATE TABLE child (id INTEGER PRIMARY KEY, parent_id INTEGER REFERENCES parent(id));
	`, conn)

	report := Execute(context.Background(), conn, steps, ModeApply, false, false, nil)
	if report.Err != nil {
		t.Fatalf("Execute: %v", report.Err)
	}
	if report.Outcome != OutcomeApplied {
		t.Fatalf("outcome = %v, want Applied", report.Outcome)
	}
}
