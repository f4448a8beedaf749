// Package executor runs a planner.Step list against an open connection
// inside a single transaction, per spec §4.7: begin, execute steps in
// order, verify foreign-key integrity, commit or roll back.
package executor

import (
	"context"
	"database/sql"
	"strings"

	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/tordrt/sqlitemigrate/internal/errs"
	"github.com/tordrt/sqlitemigrate/internal/planner"
)

// Mode selects how Execute treats the transaction it opens.
type Mode string

const (
	// ModeApply commits on success.
	ModeApply Mode = "apply"
	// ModeDryRun runs every step and the integrity check, then always
	// rolls back, for previewing.
	ModeDryRun Mode = "dry_run"
	// ModeScriptOnly never opens a connection; Execute returns immediately
	// with the rendered SQL and Outcome ScriptOnly.
	ModeScriptOnly Mode = "script_only"
)

// Outcome records what actually happened to the transaction.
type Outcome string

const (
	OutcomeApplied    Outcome = "applied"
	OutcomeRolledBack Outcome = "rolled_back"
	OutcomePreviewed  Outcome = "previewed"
	OutcomeScriptOnly Outcome = "script_only"
)

// Report is the result of one Execute call.
type Report struct {
	Outcome Outcome
	Steps   []planner.Step
	SQL     string
	Err     error
}

// Execute runs steps against conn inside BEGIN IMMEDIATE, issued directly
// on conn rather than through database/sql's own transaction wrapper: SQLite
// distinguishes DEFERRED/IMMEDIATE/EXCLUSIVE lock modes only via the literal
// BEGIN keyword, which database/sql's Tx does not expose. strictFK controls
// whether a non-empty PRAGMA foreign_key_check result fails the migration
// (spec's default) or is only logged as a warning (strictFK == false, which
// sqlitemigrate passes when Options.IgnoreFKViolations is set).
// vacuum, when true and the migration actually ran steps, issues VACUUM
// after COMMIT, outside the transaction (SQLite forbids VACUUM inside one).
func Execute(ctx context.Context, conn *sql.Conn, steps []planner.Step, mode Mode, strictFK, vacuum bool, log *zap.Logger) *Report {
	if log == nil {
		log = zap.NewNop()
	}
	if mode == ModeScriptOnly {
		return &Report{Outcome: OutcomeScriptOnly, Steps: steps, SQL: planner.RenderSQL(steps)}
	}

	report := &Report{Steps: steps, SQL: planner.RenderSQL(steps)}

	fkWasOn, err := readPragmaBool(ctx, conn, "foreign_keys")
	if err != nil {
		report.Outcome = OutcomeRolledBack
		report.Err = err
		return report
	}
	if fkWasOn {
		if _, err := conn.ExecContext(ctx, "PRAGMA foreign_keys = OFF"); err != nil {
			report.Outcome = OutcomeRolledBack
			report.Err = errs.Wrap(errs.KindStepFailed, "executor.Execute", err, map[string]any{"step": "PRAGMA foreign_keys = OFF"})
			return report
		}
		defer conn.ExecContext(context.Background(), "PRAGMA foreign_keys = ON")
	}

	if _, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
		report.Outcome = OutcomeRolledBack
		report.Err = classifyTxError(err)
		return report
	}

	committed := false
	defer func() {
		if !committed {
			_, _ = conn.ExecContext(context.Background(), "ROLLBACK")
		}
	}()

	for _, step := range steps {
		stepLog := log.With(zap.String("step", string(step.Kind)), zap.String("name", step.Name))
		if step.Kind == planner.StepForeignKeyCheck {
			violations, err := foreignKeyCheck(ctx, conn)
			if err != nil {
				stepLog.Warn("foreign_key_check failed to run", zap.Error(err))
				report.Outcome = OutcomeRolledBack
				report.Err = err
				return report
			}
			if len(violations) > 0 {
				if strictFK {
					stepLog.Warn("integrity violation detected", zap.Int("rows", len(violations)))
					report.Outcome = OutcomeRolledBack
					report.Err = errs.New(errs.KindIntegrityViolation, "executor.Execute", map[string]any{"rows": len(violations)})
					return report
				}
				stepLog.Warn("integrity violations ignored (IgnoreFKViolations set)", zap.Int("rows", len(violations)))
			}
			continue
		}
		if err := execStep(ctx, conn, step); err != nil {
			stepLog.Warn("step failed, rolling back", zap.Error(err))
			report.Outcome = OutcomeRolledBack
			report.Err = err
			return report
		}
		stepLog.Info("step applied")
	}

	if mode == ModeDryRun {
		report.Outcome = OutcomePreviewed
		return report
	}

	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		report.Outcome = OutcomeRolledBack
		report.Err = classifyTxError(err)
		return report
	}
	committed = true
	report.Outcome = OutcomeApplied

	if vacuum && len(steps) > 2 { // more than just the framing pragmas
		if _, err := conn.ExecContext(ctx, "VACUUM"); err != nil {
			log.Warn("post-migration VACUUM failed", zap.Error(err))
		}
	}
	return report
}

// execStep runs one non-foreign_key_check, non-rebuild step, or expands a
// RebuildTable step into its constituent statements.
func execStep(ctx context.Context, conn *sql.Conn, step planner.Step) error {
	switch step.Kind {
	case planner.StepRebuildTable:
		return execRebuild(ctx, conn, step)
	default:
		if _, err := conn.ExecContext(ctx, step.SQL); err != nil {
			return classifyStepError(step, err)
		}
		return nil
	}
}

func execRebuild(ctx context.Context, conn *sql.Conn, step planner.Step) error {
	p := step.Plan
	if _, err := conn.ExecContext(ctx, p.CreateShadow); err != nil {
		return classifyStepError(step, err)
	}
	if len(p.CommonColumns) > 0 {
		cols := quoteIdentList(p.CommonColumns)
		insertSQL := "INSERT INTO " + quoteIdent(p.ShadowName) + " (" + cols + ") SELECT " + cols + " FROM " + quoteIdent(p.TableName)
		if _, err := conn.ExecContext(ctx, insertSQL); err != nil {
			if isNotNullViolation(err) {
				return errs.Wrap(errs.KindDataLoss, "executor.execRebuild", err, map[string]any{"table": p.TableName})
			}
			return classifyStepError(step, err)
		}
	}
	if _, err := conn.ExecContext(ctx, "DROP TABLE "+quoteIdent(p.TableName)); err != nil {
		return classifyStepError(step, err)
	}
	if _, err := conn.ExecContext(ctx, "ALTER TABLE "+quoteIdent(p.ShadowName)+" RENAME TO "+quoteIdent(p.TableName)); err != nil {
		return classifyStepError(step, err)
	}
	return nil
}

// foreignKeyCheck runs PRAGMA foreign_key_check and returns the rows it
// reports (each a violation); an empty slice means no violations.
func foreignKeyCheck(ctx context.Context, conn *sql.Conn) ([]string, error) {
	rows, err := conn.QueryContext(ctx, "PRAGMA foreign_key_check")
	if err != nil {
		return nil, errs.Wrap(errs.KindStepFailed, "executor.foreignKeyCheck", err, map[string]any{"step": "PRAGMA foreign_key_check"})
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, errs.Wrap(errs.KindStepFailed, "executor.foreignKeyCheck", err, nil)
	}
	var violations []string
	for rows.Next() {
		scanDest := make([]any, len(cols))
		vals := make([]sql.NullString, len(cols))
		for i := range vals {
			scanDest[i] = &vals[i]
		}
		if err := rows.Scan(scanDest...); err != nil {
			return nil, errs.Wrap(errs.KindStepFailed, "executor.foreignKeyCheck", err, nil)
		}
		parts := make([]string, len(vals))
		for i, v := range vals {
			parts[i] = v.String
		}
		violations = append(violations, strings.Join(parts, ","))
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(errs.KindStepFailed, "executor.foreignKeyCheck", err, nil)
	}
	return violations, nil
}

func readPragmaBool(ctx context.Context, conn *sql.Conn, pragma string) (bool, error) {
	var v int
	if err := conn.QueryRowContext(ctx, "PRAGMA "+pragma).Scan(&v); err != nil {
		return false, errs.Wrap(errs.KindUnknown, "executor.readPragmaBool", err, map[string]any{"pragma": pragma})
	}
	return v != 0, nil
}

func classifyStepError(step planner.Step, err error) error {
	return errs.Wrap(errs.KindStepFailed, "executor.execStep", err, map[string]any{
		"step": string(step.Kind),
		"name": step.Name,
	})
}

func classifyTxError(err error) error {
	if sqliteErr, ok := err.(sqlite3.Error); ok {
		if sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked {
			return errs.Wrap(errs.KindBusy, "executor.Execute", err, nil)
		}
	}
	return errs.Wrap(errs.KindStepFailed, "executor.Execute", err, nil)
}

func isNotNullViolation(err error) bool {
	sqliteErr, ok := err.(sqlite3.Error)
	if !ok {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintNotNull
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func quoteIdentList(names []string) string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = quoteIdent(n)
	}
	return strings.Join(out, ", ")
}
