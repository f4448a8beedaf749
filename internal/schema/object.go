// Package schema holds the in-memory representation of a SQLite schema:
// the named objects (tables, indexes, views, triggers, virtual tables) that
// make up either the user's target DDL or a live database's sqlite_master.
// It is the single data model crossed by every other core package (lexer,
// parser, differ, planner, executor); none of them reach behind it.
package schema

import (
	"fmt"
	"sort"
	"strings"
)

// Kind classifies a schema object.
type Kind string

const (
	KindTable        Kind = "table"
	KindIndex        Kind = "index"
	KindView         Kind = "view"
	KindTrigger      Kind = "trigger"
	KindVirtualTable Kind = "virtual_table"
)

// kindRank orders object kinds the way the Planner wants to create them:
// tables, then virtual tables, then indexes, views, triggers.
func kindRank(k Kind) int {
	switch k {
	case KindTable:
		return 0
	case KindVirtualTable:
		return 1
	case KindIndex:
		return 2
	case KindView:
		return 3
	case KindTrigger:
		return 4
	default:
		return 5
	}
}

// Column is an ordered attribute set for a single table column. Equality
// compares every field literally after normalization, so Column is kept
// comparable with ==.
type Column struct {
	Name          string
	DeclaredType  string
	NotNull       bool
	DefaultExpr   string
	Collation     string
	IsPrimaryKey  bool
	AutoIncrement bool
	CheckExpr     string
}

// Equal reports whether c and o are identical after normalization.
func (c Column) Equal(o Column) bool {
	return c == o
}

// ConstraintKind tags the variant of a table-level Constraint.
type ConstraintKind string

const (
	ConstraintPrimaryKey ConstraintKind = "primary_key"
	ConstraintUnique     ConstraintKind = "unique"
	ConstraintForeignKey ConstraintKind = "foreign_key"
	ConstraintCheck      ConstraintKind = "check"
)

// Constraint is a table-level constraint not attached to a single column:
// PRIMARY KEY, UNIQUE, FOREIGN KEY, or CHECK. A column-level REFERENCES
// clause is lifted into a ForeignKey Constraint at parse time so the
// Differ/Planner have one place to look for the foreign-key graph.
type Constraint struct {
	Kind ConstraintKind

	// Columns holds the local column list for PrimaryKey, Unique, and
	// ForeignKey constraints.
	Columns []string
	// Collations is parallel to Columns for Unique constraints; "" means
	// no explicit COLLATE was given for that column.
	Collations []string
	// AutoIncrement applies to PrimaryKey only.
	AutoIncrement bool

	// RefTable, RefColumns, OnDelete, OnUpdate apply to ForeignKey only.
	RefTable   string
	RefColumns []string
	OnDelete   string
	OnUpdate   string

	// CheckExpr applies to Check only.
	CheckExpr string
}

func stringSlicesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Equal compares two constraints field by field.
func (c Constraint) Equal(o Constraint) bool {
	return c.Kind == o.Kind &&
		stringSlicesEqual(c.Columns, o.Columns) &&
		stringSlicesEqual(c.Collations, o.Collations) &&
		c.AutoIncrement == o.AutoIncrement &&
		strings.EqualFold(c.RefTable, o.RefTable) &&
		stringSlicesEqual(c.RefColumns, o.RefColumns) &&
		c.OnDelete == o.OnDelete &&
		c.OnUpdate == o.OnUpdate &&
		c.CheckExpr == o.CheckExpr
}

func (c Constraint) canonicalKey() string {
	return fmt.Sprintf("%s\x1f%s\x1f%s\x1f%v\x1f%s\x1f%s\x1f%s\x1f%s\x1f%s",
		c.Kind,
		strings.Join(c.Columns, ","),
		strings.Join(c.Collations, ","),
		c.AutoIncrement,
		strings.ToLower(c.RefTable),
		strings.Join(c.RefColumns, ","),
		c.OnDelete,
		c.OnUpdate,
		c.CheckExpr,
	)
}

// constraintSetEqual compares two constraint lists as sets, per spec: table
// constraints are unordered.
func constraintSetEqual(a, b []Constraint) bool {
	if len(a) != len(b) {
		return false
	}
	ak := make([]string, len(a))
	bk := make([]string, len(b))
	for i, c := range a {
		ak[i] = c.canonicalKey()
	}
	for i, c := range b {
		bk[i] = c.canonicalKey()
	}
	sort.Strings(ak)
	sort.Strings(bk)
	return stringSlicesEqual(ak, bk)
}

// Object is a single named schema element: a table, index, view, trigger,
// or virtual table.
type Object struct {
	Kind Kind
	Name string
	// Parent is the owning table name for indexes and triggers; empty for
	// tables, views, and virtual tables.
	Parent string
	// NormalizedSQL is the statement rendered in canonical form (§4.2):
	// collapsed whitespace, upper-cased keywords, reordered column
	// modifiers, original-case identifiers preserved.
	NormalizedSQL string
	// Columns is populated for tables only, in declaration order.
	Columns []Column
	// TableConstraints is populated for tables only.
	TableConstraints []Constraint
	// Module is populated for virtual tables only (e.g. "fts5").
	Module string
}

// Key is the unique identity of an Object within a Schema.
type Key struct {
	Kind Kind
	Name string // always lower-cased
}

// Key returns o's identity key.
func (o *Object) Key() Key {
	return Key{Kind: o.Kind, Name: strings.ToLower(o.Name)}
}

// Equal compares two objects structurally, per spec §4.5: tables compare
// field-wise (ordered columns, then the constraint set); every other kind
// compares on NormalizedSQL.
func (o *Object) Equal(other *Object) bool {
	if other == nil {
		return false
	}
	if o.Kind != other.Kind {
		return false
	}
	if o.Kind != KindTable {
		return o.NormalizedSQL == other.NormalizedSQL
	}
	if len(o.Columns) != len(other.Columns) {
		return false
	}
	for i := range o.Columns {
		if !o.Columns[i].Equal(other.Columns[i]) {
			return false
		}
	}
	return constraintSetEqual(o.TableConstraints, other.TableConstraints)
}

// KindRank exposes the canonical (kind_rank, lower_name) creation order
// used by Schema.All, the Differ's tie-break, and the Planner's buildup
// phase.
func KindRank(k Kind) int { return kindRank(k) }
