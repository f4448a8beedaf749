package parser

import (
	"fmt"
	"strings"

	"github.com/tordrt/sqlitemigrate/internal/errs"
	"github.com/tordrt/sqlitemigrate/internal/schema"
)

func parseTable(stmt, rest string) (*schema.Object, error) {
	rest = stripIfNotExistsAnywhere(rest)
	name, rest, ok := readIdent(rest)
	if !ok {
		return nil, errs.New(errs.KindParse, "parser.parseTable", map[string]any{
			"statement": stmt, "reason": "expected table name",
		})
	}
	body, tail, err := extractParens(rest)
	if err != nil {
		return nil, errs.New(errs.KindParse, "parser.parseTable", map[string]any{
			"statement": stmt, "reason": "malformed table body: " + err.Error(),
		})
	}

	var cols []schema.Column
	var constraints []schema.Constraint
	for _, item := range splitTopLevelCommas(body) {
		if item == "" {
			continue
		}
		if isTableConstraintStart(item) {
			c, err := parseTableConstraint(item)
			if err != nil {
				return nil, err
			}
			constraints = append(constraints, c)
			continue
		}
		col, extra, err := parseColumnDef(item)
		if err != nil {
			return nil, err
		}
		cols = append(cols, col)
		constraints = append(constraints, extra...)
	}

	tail = collapseWhitespace(tail)
	return &schema.Object{
		Kind:             schema.KindTable,
		Name:             name,
		Columns:          cols,
		TableConstraints: constraints,
		NormalizedSQL:    renderCreateTable(name, cols, constraints, tail),
	}, nil
}

// parseColumnDef parses a single column-def entry. A column-level
// REFERENCES or UNIQUE clause is lifted into a standalone table-level
// Constraint (extra) so the Differ/Planner have one place to look for the
// foreign-key graph; column-level PRIMARY KEY stays on the Column itself.
func parseColumnDef(item string) (schema.Column, []schema.Constraint, error) {
	name, rest, ok := readIdent(item)
	if !ok {
		return schema.Column{}, nil, errs.New(errs.KindParse, "parser.parseColumnDef", map[string]any{
			"statement": item, "reason": "expected column name",
		})
	}
	typeExpr, rest := captureExprUntilModifier(strings.TrimSpace(rest))
	col := schema.Column{Name: name, DeclaredType: collapseWhitespace(typeExpr)}
	var extra []schema.Constraint

	for {
		rest = strings.TrimSpace(rest)
		if rest == "" {
			break
		}
		switch {
		case hasKeyword(rest, "NOT"):
			t := trimKeyword(rest, "NOT")
			if !hasKeyword(t, "NULL") {
				return col, extra, colErrf(item, "expected NULL after NOT")
			}
			col.NotNull = true
			rest = trimKeyword(t, "NULL")

		case hasKeyword(rest, "NULL"):
			col.NotNull = false
			rest = trimKeyword(rest, "NULL")

		case hasKeyword(rest, "DEFAULT"):
			t := trimKeyword(rest, "DEFAULT")
			expr, t2 := captureExprUntilModifier(t)
			col.DefaultExpr = strings.TrimSpace(expr)
			rest = t2

		case hasKeyword(rest, "COLLATE"):
			t := trimKeyword(rest, "COLLATE")
			collName, t2, ok2 := readIdent(t)
			if !ok2 {
				return col, extra, colErrf(item, "expected collation name")
			}
			col.Collation = strings.ToUpper(collName)
			rest = t2

		case hasKeyword(rest, "CHECK"):
			t := trimKeyword(rest, "CHECK")
			body, t2, err := extractParens(t)
			if err != nil {
				return col, extra, colErrf(item, "malformed CHECK: %v", err)
			}
			col.CheckExpr = strings.TrimSpace(body)
			rest = t2

		case hasKeyword(rest, "PRIMARY"):
			t := trimKeyword(rest, "PRIMARY")
			if !hasKeyword(t, "KEY") {
				return col, extra, colErrf(item, "expected KEY after PRIMARY")
			}
			t = trimKeyword(t, "KEY")
			col.IsPrimaryKey = true
			for hasKeyword(t, "ASC") || hasKeyword(t, "DESC") {
				if hasKeyword(t, "ASC") {
					t = trimKeyword(t, "ASC")
				} else {
					t = trimKeyword(t, "DESC")
				}
			}
			if hasKeyword(t, "AUTOINCREMENT") {
				col.AutoIncrement = true
				t = trimKeyword(t, "AUTOINCREMENT")
			}
			rest = t

		case hasKeyword(rest, "REFERENCES"):
			t := trimKeyword(rest, "REFERENCES")
			refTable, t2, ok2 := readIdent(t)
			if !ok2 {
				return col, extra, colErrf(item, "expected reference table")
			}
			var refCols []string
			t3 := strings.TrimSpace(t2)
			if strings.HasPrefix(t3, "(") {
				var err error
				refCols, t3, err = readParenColumnList(t3)
				if err != nil {
					return col, extra, colErrf(item, "malformed REFERENCES column list: %v", err)
				}
			}
			onDelete, onUpdate, t5 := parseFKActions(t3)
			extra = append(extra, schema.Constraint{
				Kind:       schema.ConstraintForeignKey,
				Columns:    []string{name},
				RefTable:   refTable,
				RefColumns: refCols,
				OnDelete:   onDelete,
				OnUpdate:   onUpdate,
			})
			rest = t5

		case hasKeyword(rest, "UNIQUE"):
			rest = trimKeyword(rest, "UNIQUE")
			extra = append(extra, schema.Constraint{
				Kind:       schema.ConstraintUnique,
				Columns:    []string{name},
				Collations: []string{""},
			})

		default:
			return col, extra, colErrf(item, "unrecognized column modifier near %q", rest)
		}
	}
	return col, extra, nil
}

func colErrf(stmt, format string, args ...any) error {
	return errs.New(errs.KindParse, "parser.parseColumnDef", map[string]any{
		"statement": stmt,
		"reason":    fmt.Sprintf(format, args...),
	})
}

// renderCreateTable rebuilds a canonical CREATE TABLE statement directly
// from structured fields, which gives normalization determinism (§8.6) for
// free: any two inputs that parse to the same Columns/TableConstraints
// render identically regardless of original modifier order or whether a
// foreign key was declared inline or as a table constraint.
func renderCreateTable(name string, cols []schema.Column, constraints []schema.Constraint, tail string) string {
	parts := make([]string, 0, len(cols)+len(constraints))
	for _, c := range cols {
		parts = append(parts, renderColumnDef(c))
	}
	for _, c := range constraints {
		parts = append(parts, renderConstraint(c))
	}
	sql := fmt.Sprintf("CREATE TABLE %s (%s)", quoteIfNeeded(name), strings.Join(parts, ", "))
	if tail != "" {
		sql += " " + strings.ToUpper(tail)
	}
	return sql
}

func renderColumnDef(c schema.Column) string {
	var sb strings.Builder
	sb.WriteString(quoteIfNeeded(c.Name))
	sb.WriteString(" ")
	sb.WriteString(c.DeclaredType)
	if c.NotNull {
		sb.WriteString(" NOT NULL")
	}
	if c.DefaultExpr != "" {
		sb.WriteString(" DEFAULT ")
		sb.WriteString(c.DefaultExpr)
	}
	if c.Collation != "" {
		sb.WriteString(" COLLATE ")
		sb.WriteString(c.Collation)
	}
	if c.CheckExpr != "" {
		sb.WriteString(" CHECK(")
		sb.WriteString(c.CheckExpr)
		sb.WriteString(")")
	}
	if c.IsPrimaryKey {
		sb.WriteString(" PRIMARY KEY")
		if c.AutoIncrement {
			sb.WriteString(" AUTOINCREMENT")
		}
	}
	return sb.String()
}

func renderConstraint(c schema.Constraint) string {
	switch c.Kind {
	case schema.ConstraintPrimaryKey:
		s := fmt.Sprintf("PRIMARY KEY (%s)", quoteIdentList(c.Columns))
		if c.AutoIncrement {
			s += " AUTOINCREMENT"
		}
		return s
	case schema.ConstraintUnique:
		return fmt.Sprintf("UNIQUE (%s)", quoteIdentListWithCollation(c.Columns, c.Collations))
	case schema.ConstraintForeignKey:
		s := fmt.Sprintf("FOREIGN KEY (%s) REFERENCES %s (%s)",
			quoteIdentList(c.Columns), quoteIfNeeded(c.RefTable), quoteIdentList(c.RefColumns))
		if c.OnDelete != "" {
			s += " ON DELETE " + c.OnDelete
		}
		if c.OnUpdate != "" {
			s += " ON UPDATE " + c.OnUpdate
		}
		return s
	case schema.ConstraintCheck:
		return fmt.Sprintf("CHECK (%s)", c.CheckExpr)
	default:
		return ""
	}
}

func quoteIdentListWithCollation(names, collations []string) string {
	out := make([]string, len(names))
	for i, n := range names {
		s := quoteIfNeeded(n)
		if i < len(collations) && collations[i] != "" {
			s += " COLLATE " + collations[i]
		}
		out[i] = s
	}
	return strings.Join(out, ", ")
}
