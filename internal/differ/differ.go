// Package differ compares a target schema against a live schema and
// produces the ordered set of changes needed to reconcile them, per
// spec §4.5.
package differ

import (
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/tordrt/sqlitemigrate/internal/schema"
)

// ChangeKind classifies a single Change.
type ChangeKind string

const (
	// ChangeCreate means the object exists in target but not live.
	ChangeCreate ChangeKind = "create"
	// ChangeDrop means the object exists in live but not target.
	ChangeDrop ChangeKind = "drop"
	// ChangeRecreate means the object exists in both but differs
	// structurally: replace-in-place for most kinds, rebuild-via-shadow-
	// table for tables.
	ChangeRecreate ChangeKind = "recreate"
)

// Change is one structural difference between target and live.
type Change struct {
	Kind ChangeKind
	// Target is the desired object (nil for ChangeDrop).
	Target *schema.Object
	// Live is the current object (nil for ChangeCreate).
	Live *schema.Object
}

// Key returns the identity key of whichever side of the Change is present.
func (c Change) Key() schema.Key {
	if c.Target != nil {
		return c.Target.Key()
	}
	return c.Live.Key()
}

// Diff compares target against live and returns every Change needed to
// bring live in line with target, in the (kind_rank, lower_name) order
// exposed by schema.Schema.All — stable, not yet phase-ordered. The
// Planner is responsible for sequencing Changes into Steps. log is
// optional; a nil log is treated as zap.NewNop().
func Diff(target, live *schema.Schema, log *zap.Logger) []Change {
	if log == nil {
		log = zap.NewNop()
	}
	var changes []Change
	for _, t := range target.All() {
		l, ok := live.GetKey(t.Key())
		switch {
		case !ok:
			changes = append(changes, Change{Kind: ChangeCreate, Target: t})
		case !t.Equal(l):
			changes = append(changes, Change{Kind: ChangeRecreate, Target: t, Live: l})
		}
	}
	for _, l := range live.All() {
		if _, ok := target.GetKey(l.Key()); !ok {
			changes = append(changes, Change{Kind: ChangeDrop, Live: l})
		}
	}
	changes = promoteDependentViews(changes, target, live, log)
	sort.SliceStable(changes, func(i, j int) bool {
		ki, kj := changes[i].Key(), changes[j].Key()
		if ri, rj := schema.KindRank(ki.Kind), schema.KindRank(kj.Kind); ri != rj {
			return ri < rj
		}
		return ki.Name < kj.Name
	})
	return changes
}

// fromJoinRef matches the table name following FROM or JOIN, used to find
// a view's table dependencies well enough for §9's stipulation without a
// full SQL parser: views are not parsed further than their NormalizedSQL.
var fromJoinRef = regexp.MustCompile(`(?i)\b(?:FROM|JOIN)\s+"?([A-Za-z_][A-Za-z0-9_]*)"?`)

// viewDependencies returns the lower-cased table names sql's FROM/JOIN
// clauses reference.
func viewDependencies(sql string) map[string]bool {
	deps := make(map[string]bool)
	for _, m := range fromJoinRef.FindAllStringSubmatch(sql, -1) {
		deps[strings.ToLower(m[1])] = true
	}
	return deps
}

// promoteDependentViews implements spec §9's stipulation: any view whose
// dependencies are being rebuilt or dropped is itself dropped in Phase 1
// and re-created in Phase 3, regardless of whether the view's own text
// changed. Without this, a view left untouched by the Differ would survive
// with column projections stale against the table's new shape. Unchanged
// indexes and triggers whose parent table is rebuilt are promoted the same
// way, since the rebuild's DROP TABLE removes them along with the table.
func promoteDependentViews(changes []Change, target, live *schema.Schema, log *zap.Logger) []Change {
	touched := make(map[string]bool)
	for _, c := range changes {
		if c.Kind == ChangeDrop && c.Live.Kind == schema.KindTable {
			touched[strings.ToLower(c.Live.Name)] = true
		}
		if c.Kind == ChangeRecreate && c.Target != nil && c.Target.Kind == schema.KindTable {
			touched[strings.ToLower(c.Target.Name)] = true
		}
	}
	if len(touched) == 0 {
		return changes
	}

	already := make(map[schema.Key]bool, len(changes))
	for _, c := range changes {
		already[c.Key()] = true
	}

	for _, v := range target.All() {
		if already[v.Key()] {
			continue
		}
		l, ok := live.GetKey(v.Key())
		if !ok {
			continue
		}
		if v.Kind == schema.KindIndex || v.Kind == schema.KindTrigger {
			if touched[strings.ToLower(v.Parent)] {
				log.Debug("promoting attached object to recreate: parent table rebuilt or dropped",
					zap.String("name", v.Name), zap.String("parent", v.Parent))
				changes = append(changes, Change{Kind: ChangeRecreate, Target: v, Live: l})
				already[v.Key()] = true
			}
			continue
		}
		if v.Kind != schema.KindView {
			continue
		}
		deps := viewDependencies(v.NormalizedSQL)
		for dep := range deps {
			if touched[dep] {
				log.Debug("promoting view to recreate: dependency rebuilt or dropped",
					zap.String("view", v.Name), zap.String("depends_on", dep))
				changes = append(changes, Change{Kind: ChangeRecreate, Target: v, Live: l})
				already[v.Key()] = true
				break
			}
		}
	}
	return changes
}
