package planner

import (
	"sort"
	"strings"

	"github.com/tordrt/sqlitemigrate/internal/differ"
	"github.com/tordrt/sqlitemigrate/internal/schema"
)

// fkEdges returns, for each table in s (lower-case name), the lower-case
// names of the tables it foreign-key-references, restricted to names also
// present in s (an FK to a table outside the set being ordered does not
// constrain the order).
func fkEdges(s *schema.Schema) map[string][]string {
	edges := make(map[string][]string)
	for _, obj := range s.Tables() {
		key := strings.ToLower(obj.Name)
		seen := make(map[string]bool)
		for _, c := range obj.TableConstraints {
			if c.Kind != schema.ConstraintForeignKey || c.RefTable == "" {
				continue
			}
			ref := strings.ToLower(c.RefTable)
			if ref == key || seen[ref] {
				continue
			}
			if _, ok := s.Get(schema.KindTable, ref); !ok {
				continue
			}
			seen[ref] = true
			edges[key] = append(edges[key], ref)
		}
	}
	return edges
}

// topoOrderTables returns the lower-case names of the tables named by
// changes (via their Live or Target object, whichever the change carries)
// in dependency order: referent before referencer. When reversed is true,
// the order is inverted (referencer before referent), used for Phase 1
// drops. src supplies the Schema (live or target) the FK graph is read
// from. On a cycle, per spec §4.6's documented fallback, order degrades to
// stable (lower_name) order rather than failing — SQLite's deferred foreign
// keys tolerate such cycles at the SQL level.
func topoOrderTables(changes []differ.Change, src *schema.Schema, reversed bool) ([]string, error) {
	names := make([]string, 0, len(changes))
	nameSet := make(map[string]bool, len(changes))
	for _, c := range changes {
		var n string
		if c.Live != nil {
			n = c.Live.Name
		} else if c.Target != nil {
			n = c.Target.Name
		}
		if n == "" {
			continue
		}
		lower := strings.ToLower(n)
		if !nameSet[lower] {
			nameSet[lower] = true
			names = append(names, lower)
		}
	}
	sort.Strings(names)

	allEdges := fkEdges(src)
	edges := make(map[string][]string, len(names))
	indegree := make(map[string]int, len(names))
	for _, n := range names {
		indegree[n] = 0
	}
	for _, n := range names {
		for _, ref := range allEdges[n] {
			if !nameSet[ref] {
				continue
			}
			edges[ref] = append(edges[ref], n) // ref -> n: ref must come first
			indegree[n]++
		}
	}

	var queue []string
	for _, n := range names {
		if indegree[n] == 0 {
			queue = append(queue, n)
		}
	}
	sort.Strings(queue)

	var order []string
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		order = append(order, n)
		var next []string
		for _, m := range edges[n] {
			indegree[m]--
			if indegree[m] == 0 {
				next = append(next, m)
			}
		}
		sort.Strings(next)
		queue = append(queue, next...)
		sort.Strings(queue)
	}

	if len(order) != len(names) {
		// Cycle: fall back to stable name order for whatever remains
		// unresolved, appended after the portion that did resolve.
		resolved := make(map[string]bool, len(order))
		for _, n := range order {
			resolved[n] = true
		}
		for _, n := range names {
			if !resolved[n] {
				order = append(order, n)
			}
		}
	}

	if reversed {
		for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
			order[i], order[j] = order[j], order[i]
		}
	}
	return order, nil
}
