// Package planner translates a differ.Change list into the ordered Step
// sequence the Executor runs, per spec §4.6: teardown, table rebuilds,
// buildup, with foreign-key topology deciding order within each phase.
package planner

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/tordrt/sqlitemigrate/internal/differ"
	"github.com/tordrt/sqlitemigrate/internal/errs"
	"github.com/tordrt/sqlitemigrate/internal/schema"
)

// StepKind tags the variant of a single Step.
type StepKind string

const (
	StepExec            StepKind = "exec"
	StepDropTrigger     StepKind = "drop_trigger"
	StepDropIndex       StepKind = "drop_index"
	StepDropView        StepKind = "drop_view"
	StepDropTable       StepKind = "drop_table"
	StepCreateObject    StepKind = "create_object"
	StepRebuildTable    StepKind = "rebuild_table"
	StepForeignKeyCheck StepKind = "foreign_key_check"
)

// RebuildPlan is the shadow-table-rebuild recipe for one table replacement.
type RebuildPlan struct {
	TableName     string
	ShadowName    string
	CreateShadow  string
	CommonColumns []string
}

// Step is one unit of planned work. Only the fields relevant to Kind are
// populated; SQL always holds the renderable statement text for the modes
// that need concatenated SQL (Dry-run preview, Script-only).
type Step struct {
	Kind StepKind
	Name string
	SQL  string
	Plan *RebuildPlan
}

const shadowSuffix = "__slite_new"

// Plan converts changes into an ordered Step list against the live and
// target schemas, following spec §4.6's four phases: teardown, table
// rebuilds, buildup, framed by the defer_foreign_keys pragma and a trailing
// foreign_key_check. Whether the Executor treats a non-empty
// foreign_key_check result as fatal is an Options.IgnoreFKViolations
// decision made by the caller, not the Planner.
//
// After the buildup phase, Plan validates that every foreign key in target
// resolves to a table that will actually exist once the migration
// completes (spec §3's referential invariant, checked "after planning").
// A dangling reference is either fatal (errs.KindUnknownReference) or, when
// ignoreUnknownReferences is true, logged as a warning and left in place —
// SQLite itself never enforces this at DDL time, so a caller migrating a
// schema incrementally (parent table added in a later call) may need the
// non-fatal path.
func Plan(changes []differ.Change, target, live *schema.Schema, ignoreUnknownReferences bool, log *zap.Logger) ([]Step, error) {
	if log == nil {
		log = zap.NewNop()
	}

	steps := []Step{{Kind: StepExec, SQL: "PRAGMA defer_foreign_keys = TRUE"}}

	teardown, err := planTeardown(changes, live)
	if err != nil {
		return nil, err
	}
	steps = append(steps, teardown...)

	rebuilds, err := planRebuilds(changes, target)
	if err != nil {
		return nil, err
	}
	steps = append(steps, rebuilds...)

	buildup, err := planBuildup(changes, target)
	if err != nil {
		return nil, err
	}
	steps = append(steps, buildup...)

	if err := validateReferences(target, ignoreUnknownReferences, log); err != nil {
		return nil, err
	}

	steps = append(steps, Step{Kind: StepForeignKeyCheck, SQL: "PRAGMA foreign_key_check"})

	log.Debug("planned migration", zap.Int("changes", len(changes)), zap.Int("steps", len(steps)))
	return steps, nil
}

// validateReferences walks every foreign key declared on a target table and
// fails with errs.KindUnknownReference the first time RefTable names a
// table absent from target — the schema the live database will converge to
// once this plan's steps run. fkgraph.go's fkEdges silently drops the same
// dangling edges when ordering drops/creates, since an edge to a table
// outside the set being ordered doesn't constrain that ordering; this is
// the one place the dangling reference itself is reported.
func validateReferences(target *schema.Schema, ignoreUnknownReferences bool, log *zap.Logger) error {
	for _, obj := range target.Tables() {
		for _, c := range obj.TableConstraints {
			if c.Kind != schema.ConstraintForeignKey || c.RefTable == "" {
				continue
			}
			if _, ok := target.Get(schema.KindTable, c.RefTable); ok {
				continue
			}
			if ignoreUnknownReferences {
				log.Warn("foreign key references unknown table",
					zap.String("table", obj.Name), zap.String("ref_table", c.RefTable))
				continue
			}
			return errs.New(errs.KindUnknownReference, "planner.validateReferences", map[string]any{
				"table":     obj.Name,
				"ref_table": c.RefTable,
			})
		}
	}
	return nil
}

// planTeardown emits Phase 1: triggers, then views, then indexes, then
// tables, tables ordered by reverse FK topology among the live tables being
// dropped or replaced.
func planTeardown(changes []differ.Change, live *schema.Schema) ([]Step, error) {
	var steps []Step
	drop := func(k schema.Kind) []differ.Change {
		var out []differ.Change
		for _, c := range changes {
			if (c.Kind == differ.ChangeDrop || c.Kind == differ.ChangeRecreate) && c.Live != nil && c.Live.Kind == k {
				out = append(out, c)
			}
		}
		sort.Slice(out, func(i, j int) bool { return strings.ToLower(out[i].Live.Name) < strings.ToLower(out[j].Live.Name) })
		return out
	}

	for _, c := range drop(schema.KindTrigger) {
		steps = append(steps, Step{Kind: StepDropTrigger, Name: c.Live.Name, SQL: fmt.Sprintf("DROP TRIGGER %s", quoteIdent(c.Live.Name))})
	}
	for _, c := range drop(schema.KindView) {
		steps = append(steps, Step{Kind: StepDropView, Name: c.Live.Name, SQL: fmt.Sprintf("DROP VIEW %s", quoteIdent(c.Live.Name))})
	}
	for _, c := range drop(schema.KindIndex) {
		steps = append(steps, Step{Kind: StepDropIndex, Name: c.Live.Name, SQL: fmt.Sprintf("DROP INDEX %s", quoteIdent(c.Live.Name))})
	}
	for _, c := range drop(schema.KindVirtualTable) {
		steps = append(steps, Step{Kind: StepDropTable, Name: c.Live.Name, SQL: fmt.Sprintf("DROP TABLE %s", quoteIdent(c.Live.Name))})
	}

	tableDrops := drop(schema.KindTable)
	order, err := topoOrderTables(tableDrops, live, true)
	if err != nil {
		return nil, err
	}
	for _, name := range order {
		// A table being replaced (ChangeRecreate) is handled by the rebuild
		// phase, not dropped here.
		c := findByLowerName(tableDrops, name)
		if c.Kind == differ.ChangeDrop {
			steps = append(steps, Step{Kind: StepDropTable, Name: c.Live.Name, SQL: fmt.Sprintf("DROP TABLE %s", quoteIdent(c.Live.Name))})
		}
	}
	return steps, nil
}

func findByLowerName(changes []differ.Change, lowerName string) differ.Change {
	for _, c := range changes {
		if strings.ToLower(c.Live.Name) == lowerName {
			return c
		}
	}
	return differ.Change{}
}

// planRebuilds emits Phase 2: RebuildTable for every table ReplaceObject,
// ordered so a table is rebuilt after any rebuilt table it references.
func planRebuilds(changes []differ.Change, target *schema.Schema) ([]Step, error) {
	var replaced []differ.Change
	for _, c := range changes {
		if c.Kind == differ.ChangeRecreate && c.Target != nil && c.Target.Kind == schema.KindTable {
			replaced = append(replaced, c)
		}
	}
	if len(replaced) == 0 {
		return nil, nil
	}
	order, err := topoOrderTables(replaced, target, false)
	if err != nil {
		return nil, err
	}
	var steps []Step
	for _, name := range order {
		c := findByLowerName(replaced, name)
		plan := buildRebuildPlan(c.Live, c.Target)
		steps = append(steps, Step{Kind: StepRebuildTable, Name: c.Target.Name, Plan: plan})
	}
	return steps, nil
}

// buildRebuildPlan constructs the shadow-rebuild recipe for old -> updated.
func buildRebuildPlan(old, updated *schema.Object) *RebuildPlan {
	shadow := updated.Name + shadowSuffix
	common := commonColumns(old, updated)
	return &RebuildPlan{
		TableName:     updated.Name,
		ShadowName:    shadow,
		CreateShadow:  substituteTableName(updated.NormalizedSQL, updated.Name, shadow),
		CommonColumns: common,
	}
}

// commonColumns returns, in updated's declared order, the column names
// present (case-insensitively) in both old and updated.
func commonColumns(old, updated *schema.Object) []string {
	oldNames := make(map[string]bool, len(old.Columns))
	for _, c := range old.Columns {
		oldNames[strings.ToLower(c.Name)] = true
	}
	var common []string
	for _, c := range updated.Columns {
		if oldNames[strings.ToLower(c.Name)] {
			common = append(common, c.Name)
		}
	}
	return common
}

// substituteTableName rewrites sql's "CREATE TABLE <name>" header to target
// a different table name, leaving the rest of the statement untouched.
func substituteTableName(sql, oldName, newName string) string {
	idx := strings.Index(strings.ToUpper(sql), "CREATE TABLE ")
	if idx < 0 {
		return sql
	}
	head := sql[:idx+len("CREATE TABLE ")]
	tail := sql[idx+len("CREATE TABLE "):]
	tail = strings.TrimLeft(tail, " ")

	// tail begins with the (possibly quoted) old name; replace just that
	// token so the remainder of the definition (columns, constraints) is
	// untouched.
	var consumed int
	switch {
	case strings.HasPrefix(tail, `"`):
		if end := strings.Index(tail[1:], `"`); end >= 0 {
			consumed = end + 2
		}
	default:
		consumed = len(oldName)
		if consumed > len(tail) {
			consumed = len(tail)
		}
	}
	return head + quoteIdent(newName) + tail[consumed:]
}

// planBuildup emits Phase 3: tables (FK order), virtual tables, indexes,
// views, triggers — every AddObject, plus the re-create half of a
// non-table ReplaceObject, plus the new half of a table ReplaceObject's
// attached indexes/triggers per Phase 4 (already covered here since they
// are AddObject/ReplaceObject entries in the change list themselves).
func planBuildup(changes []differ.Change, target *schema.Schema) ([]Step, error) {
	creates := func(k schema.Kind) []differ.Change {
		var out []differ.Change
		for _, c := range changes {
			if c.Target == nil || c.Target.Kind != k {
				continue
			}
			if k == schema.KindTable && c.Kind == differ.ChangeRecreate {
				continue // handled by the rebuild phase
			}
			out = append(out, c)
		}
		sort.Slice(out, func(i, j int) bool { return strings.ToLower(out[i].Target.Name) < strings.ToLower(out[j].Target.Name) })
		return out
	}

	var steps []Step

	tableCreates := creates(schema.KindTable)
	order, err := topoOrderTables(tableCreates, target, false)
	if err != nil {
		return nil, err
	}
	for _, name := range order {
		c := findCreateByLowerName(tableCreates, name)
		steps = append(steps, Step{Kind: StepCreateObject, Name: c.Target.Name, SQL: c.Target.NormalizedSQL})
	}

	for _, c := range creates(schema.KindVirtualTable) {
		steps = append(steps, Step{Kind: StepCreateObject, Name: c.Target.Name, SQL: c.Target.NormalizedSQL})
	}
	for _, c := range creates(schema.KindIndex) {
		steps = append(steps, Step{Kind: StepCreateObject, Name: c.Target.Name, SQL: c.Target.NormalizedSQL})
	}
	for _, c := range creates(schema.KindView) {
		steps = append(steps, Step{Kind: StepCreateObject, Name: c.Target.Name, SQL: c.Target.NormalizedSQL})
	}
	for _, c := range creates(schema.KindTrigger) {
		steps = append(steps, Step{Kind: StepCreateObject, Name: c.Target.Name, SQL: c.Target.NormalizedSQL})
	}
	return steps, nil
}

func findCreateByLowerName(changes []differ.Change, lowerName string) differ.Change {
	for _, c := range changes {
		if strings.ToLower(c.Target.Name) == lowerName {
			return c
		}
	}
	return differ.Change{}
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// RenderSQL concatenates a Step list into the script a Script-only mode
// invocation returns, in execution order, each statement terminated with a
// semicolon. RebuildTable steps expand to their full five-statement dance.
func RenderSQL(steps []Step) string {
	var sb strings.Builder
	for _, s := range steps {
		switch s.Kind {
		case StepRebuildTable:
			sb.WriteString(renderRebuildSQL(s.Plan))
		default:
			sb.WriteString(s.SQL)
			sb.WriteString(";\n")
		}
	}
	return sb.String()
}

func renderRebuildSQL(p *RebuildPlan) string {
	var sb strings.Builder
	sb.WriteString(p.CreateShadow)
	sb.WriteString(";\n")
	if len(p.CommonColumns) > 0 {
		cols := quoteIdentList(p.CommonColumns)
		fmt.Fprintf(&sb, "INSERT INTO %s (%s) SELECT %s FROM %s;\n",
			quoteIdent(p.ShadowName), cols, cols, quoteIdent(p.TableName))
	}
	fmt.Fprintf(&sb, "DROP TABLE %s;\n", quoteIdent(p.TableName))
	fmt.Fprintf(&sb, "ALTER TABLE %s RENAME TO %s;\n", quoteIdent(p.ShadowName), quoteIdent(p.TableName))
	return sb.String()
}

func quoteIdentList(names []string) string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = quoteIdent(n)
	}
	return strings.Join(out, ", ")
}
