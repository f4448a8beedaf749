// Package sqlitemigrate is a declarative schema-migration engine for
// SQLite. The caller authors the desired schema as ordinary DDL
// statements; Migrate compares that target against the schema
// materialized in a live database and computes — and optionally
// executes inside a single transaction — the minimum sequence of
// statements that brings the live database in line with it.
//
// # Quick Start
//
// The simplest way to use this package is with Migrate:
//
//	report, err := sqlitemigrate.Migrate(
//		context.Background(),
//		conn,
//		"CREATE TABLE users (id INTEGER PRIMARY KEY, email TEXT NOT NULL UNIQUE);",
//		sqlitemigrate.ModeApply,
//		nil,
//	)
//
// # Modes
//
// Three modes are available, selected per call:
//
//	ModeApply      — plans and commits the migration.
//	ModeDryRun     — plans, runs every step, then always rolls back; useful
//	                 for previewing what a migration would do.
//	ModeScriptOnly — reads the live schema to plan, executes nothing on
//	                 the connection, and returns the rendered SQL as a
//	                 string.
//
// # What this package does not do
//
// Migrate does not manage ordered, numbered migration scripts; the source
// of truth is always the desired end-state schema passed as targetSQL. It
// does not discover *.sql files from disk, parse CLI flags, or print a
// colorized diff — those concerns belong to the cmd/slitemigrate CLI or to
// the caller.
package sqlitemigrate

import (
	"context"
	"regexp"

	"go.uber.org/zap"

	"database/sql"

	"github.com/tordrt/sqlitemigrate/internal/differ"
	"github.com/tordrt/sqlitemigrate/internal/errs"
	"github.com/tordrt/sqlitemigrate/internal/executor"
	"github.com/tordrt/sqlitemigrate/internal/live"
	"github.com/tordrt/sqlitemigrate/internal/parser"
	"github.com/tordrt/sqlitemigrate/internal/planner"
	"github.com/tordrt/sqlitemigrate/internal/schema"
)

// Mode selects how Migrate treats the connection it is given.
type Mode = executor.Mode

const (
	// ModeApply performs the migration and commits it.
	ModeApply = executor.ModeApply
	// ModeDryRun runs every planned step and the integrity check inside a
	// transaction that is always rolled back, for previewing.
	ModeDryRun = executor.ModeDryRun
	// ModeScriptOnly reads the live schema to plan but executes nothing on
	// the connection, and returns the concatenated SQL of the planned steps.
	ModeScriptOnly = executor.ModeScriptOnly
)

// Options configures a single Migrate call.
//
// All fields are optional. If not specified:
//   - IgnoreObjects: no objects are excluded from the diff
//   - Extensions: no extensions are preloaded
//   - IgnoreFKViolations: integrity violations fail the migration (spec default)
//   - IgnoreUnknownReferences: dangling foreign keys fail planning (spec default)
//   - Vacuum: no VACUUM is issued after a successful Apply
//   - Logger: a no-op logger is used
type Options struct {
	// IgnoreObjects is a set of regular expressions matched against
	// "kind:lower_name"; any object that matches is excluded from both the
	// live and target models before diffing. Used to ignore ephemeral
	// FTS/spellfix shadow objects the caller does not author.
	IgnoreObjects []string

	// Extensions lists shared-library extension names (e.g. spellfix1) the
	// connection needs loaded before the live schema is read. Migrate does
	// not read this field and loads no extension itself: extensions are
	// loaded only by the driver sqliteconn.Open registers, when the
	// connection comes from sqliteconn.Open called with the same list.
	Extensions []string

	// IgnoreFKViolations controls whether a non-empty PRAGMA
	// foreign_key_check result fails the migration. The spec default is
	// strict (a violation fails the migration), so the field is phrased
	// as an opt-out: its zero value, false, keeps that default.
	IgnoreFKViolations bool

	// IgnoreUnknownReferences controls whether a foreign key whose
	// RefTable does not exist in the target schema fails Migrate/PlanOnly
	// outright (errs.KindUnknownReference) or is only logged as a
	// warning. The spec default is strict; this is the "options.strict_fk"
	// switch spec §7 names for UnknownReference specifically — distinct
	// from IgnoreFKViolations above, which governs the separate
	// foreign_key_check-driven IntegrityViolation check that runs against
	// live row data, not schema shape.
	IgnoreUnknownReferences bool

	// Vacuum issues VACUUM after a successful Apply commit, outside the
	// migration transaction (SQLite forbids VACUUM inside one). Only runs
	// when the migration actually changed something.
	Vacuum bool

	// Logger receives structured progress/diagnostic output. A nil Logger
	// is treated as zap.NewNop().
	Logger *zap.Logger
}

// MigrationReport is the result of one Migrate call.
type MigrationReport struct {
	// Changes is the structured list of differences the Differ found.
	Changes []differ.Change
	// Steps is the ordered list of Steps the Planner produced.
	Steps []planner.Step
	// SQL is the rendered concatenation of Steps, in execution order.
	SQL string
	// Outcome records what actually happened: Applied, RolledBack,
	// Previewed, or ScriptOnly.
	Outcome executor.Outcome
	// Err is non-nil if execution failed. A failure in an earlier phase
	// (parse, live read, diff, plan) returns no report at all.
	Err error
}

// Migrate parses targetSQL, reads the schema live on conn, diffs and plans
// the migration, and (depending on mode) executes it. conn must be a
// single pinned *sql.Conn — not a pooled *sql.DB — so that any extensions
// preloaded via Options.Extensions/sqliteconn are guaranteed present for
// every statement this call issues; see sqliteconn.PinnedConn.
//
// Errors from phases A–F (lex, parse, live read, diff, plan) are returned
// without modifying the database; conn is only read, to build the live
// schema. An error from phase G (execute) means the
// transaction was rolled back before Migrate returned.
func Migrate(ctx context.Context, conn *sql.Conn, targetSQL string, mode Mode, opts *Options) (*MigrationReport, error) {
	if opts == nil {
		opts = &Options{}
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	ignore, err := compileIgnorePatterns(opts.IgnoreObjects)
	if err != nil {
		return nil, err
	}

	target, err := parser.ParseSchema(targetSQL)
	if err != nil {
		return nil, err
	}
	target = live.FilterIgnored(target, ignore)

	liveSchema, err := live.Read(ctx, conn, ignore)
	if err != nil {
		return nil, err
	}

	changes := differ.Diff(target, liveSchema, log)
	steps, err := planner.Plan(changes, target, liveSchema, opts.IgnoreUnknownReferences, log)
	if err != nil {
		return nil, err
	}

	report := &MigrationReport{Changes: changes, Steps: steps}
	execReport := executor.Execute(ctx, conn, steps, mode, !opts.IgnoreFKViolations, opts.Vacuum, log)
	report.SQL = execReport.SQL
	report.Outcome = execReport.Outcome
	report.Err = execReport.Err
	return report, report.Err
}

// PlanOnly runs phases A–F (parse target, read live, diff, plan) without
// touching the connection beyond the read needed to build the live schema,
// returning the Steps a subsequent Migrate call with the same inputs would
// execute. Useful for callers that want to inspect a plan before deciding
// whether to apply it, without the ScriptOnly round-trip through Execute.
func PlanOnly(ctx context.Context, conn *sql.Conn, targetSQL string, opts *Options) ([]planner.Step, []differ.Change, error) {
	if opts == nil {
		opts = &Options{}
	}
	ignore, err := compileIgnorePatterns(opts.IgnoreObjects)
	if err != nil {
		return nil, nil, err
	}

	target, err := parser.ParseSchema(targetSQL)
	if err != nil {
		return nil, nil, err
	}
	target = live.FilterIgnored(target, ignore)

	liveSchema, err := live.Read(ctx, conn, ignore)
	if err != nil {
		return nil, nil, err
	}

	changes := differ.Diff(target, liveSchema, opts.Logger)
	steps, err := planner.Plan(changes, target, liveSchema, opts.IgnoreUnknownReferences, opts.Logger)
	if err != nil {
		return nil, nil, err
	}
	return steps, changes, nil
}

// ReadLive reads the schema materialized on conn, applying the same
// ignore-object filtering a Migrate call with the same Options would.
// Exposed so callers (and the testable-property suite) can assert
// convergence: after a successful Apply, ReadLive(conn) should equal the
// target Schema parsed from the same targetSQL.
func ReadLive(ctx context.Context, conn *sql.Conn, opts *Options) (*schema.Schema, error) {
	if opts == nil {
		opts = &Options{}
	}
	ignore, err := compileIgnorePatterns(opts.IgnoreObjects)
	if err != nil {
		return nil, err
	}
	return live.Read(ctx, conn, ignore)
}

func compileIgnorePatterns(patterns []string) ([]*regexp.Regexp, error) {
	if len(patterns) == 0 {
		return nil, nil
	}
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, errs.Wrap(errs.KindParse, "sqlitemigrate.compileIgnorePatterns", err, map[string]any{"pattern": p})
		}
		out = append(out, re)
	}
	return out, nil
}
