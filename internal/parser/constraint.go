package parser

import (
	"fmt"
	"strings"

	"github.com/tordrt/sqlitemigrate/internal/errs"
	"github.com/tordrt/sqlitemigrate/internal/schema"
)

func isTableConstraintStart(item string) bool {
	return hasKeyword(item, "CONSTRAINT") ||
		hasKeyword(item, "PRIMARY") ||
		hasKeyword(item, "FOREIGN") ||
		hasKeyword(item, "UNIQUE") ||
		hasKeyword(item, "CHECK")
}

// parseTableConstraint parses one table_constraint entry from a CREATE
// TABLE body (spec §4.2): PRIMARY KEY, UNIQUE, FOREIGN KEY, or CHECK,
// optionally prefixed by a named "CONSTRAINT <name>" (the name itself is
// not part of the data model and is discarded).
func parseTableConstraint(item string) (schema.Constraint, error) {
	s := item
	if hasKeyword(s, "CONSTRAINT") {
		s = trimKeyword(s, "CONSTRAINT")
		_, rest, ok := readIdent(s)
		if ok {
			s = rest
		}
	}
	switch {
	case hasKeyword(s, "PRIMARY"):
		s = trimKeyword(s, "PRIMARY")
		if !hasKeyword(s, "KEY") {
			return schema.Constraint{}, parseErrf(item, "expected KEY after PRIMARY")
		}
		s = trimKeyword(s, "KEY")
		cols, rest, err := readParenColumnList(s)
		if err != nil {
			return schema.Constraint{}, parseErrf(item, "malformed PRIMARY KEY column list: %v", err)
		}
		autoInc := hasKeyword(strings.TrimSpace(rest), "AUTOINCREMENT")
		return schema.Constraint{Kind: schema.ConstraintPrimaryKey, Columns: cols, AutoIncrement: autoInc}, nil

	case hasKeyword(s, "UNIQUE"):
		s = trimKeyword(s, "UNIQUE")
		cols, collations, _, err := readParenColumnListWithCollation(s)
		if err != nil {
			return schema.Constraint{}, parseErrf(item, "malformed UNIQUE column list: %v", err)
		}
		return schema.Constraint{Kind: schema.ConstraintUnique, Columns: cols, Collations: collations}, nil

	case hasKeyword(s, "FOREIGN"):
		s = trimKeyword(s, "FOREIGN")
		if !hasKeyword(s, "KEY") {
			return schema.Constraint{}, parseErrf(item, "expected KEY after FOREIGN")
		}
		s = trimKeyword(s, "KEY")
		cols, rest, err := readParenColumnList(s)
		if err != nil {
			return schema.Constraint{}, parseErrf(item, "malformed FOREIGN KEY column list: %v", err)
		}
		rest = strings.TrimSpace(rest)
		if !hasKeyword(rest, "REFERENCES") {
			return schema.Constraint{}, parseErrf(item, "expected REFERENCES")
		}
		rest = trimKeyword(rest, "REFERENCES")
		refTable, rest, ok := readIdent(rest)
		if !ok {
			return schema.Constraint{}, parseErrf(item, "expected reference table")
		}
		var refCols []string
		rest = strings.TrimSpace(rest)
		if strings.HasPrefix(rest, "(") {
			refCols, rest, err = readParenColumnList(rest)
			if err != nil {
				return schema.Constraint{}, parseErrf(item, "malformed REFERENCES column list: %v", err)
			}
		}
		onDelete, onUpdate, _ := parseFKActions(rest)
		return schema.Constraint{
			Kind:       schema.ConstraintForeignKey,
			Columns:    cols,
			RefTable:   refTable,
			RefColumns: refCols,
			OnDelete:   onDelete,
			OnUpdate:   onUpdate,
		}, nil

	case hasKeyword(s, "CHECK"):
		s = trimKeyword(s, "CHECK")
		body, _, err := extractParens(s)
		if err != nil {
			return schema.Constraint{}, parseErrf(item, "malformed CHECK expression: %v", err)
		}
		return schema.Constraint{Kind: schema.ConstraintCheck, CheckExpr: strings.TrimSpace(body)}, nil

	default:
		return schema.Constraint{}, parseErrf(item, "unrecognized table constraint")
	}
}

func parseFKActions(s string) (onDelete, onUpdate, rest string) {
	rest = s
	for {
		rest = strings.TrimSpace(rest)
		switch {
		case hasKeyword(rest, "ON"):
			t := trimKeyword(rest, "ON")
			switch {
			case hasKeyword(t, "DELETE"):
				action, t2 := readFKAction(trimKeyword(t, "DELETE"))
				onDelete = action
				rest = t2
			case hasKeyword(t, "UPDATE"):
				action, t2 := readFKAction(trimKeyword(t, "UPDATE"))
				onUpdate = action
				rest = t2
			default:
				return onDelete, onUpdate, rest
			}
		case hasKeyword(rest, "MATCH"):
			t := trimKeyword(rest, "MATCH")
			_, t2, ok := readIdent(t)
			if !ok {
				return onDelete, onUpdate, rest
			}
			rest = t2
		default:
			return onDelete, onUpdate, rest
		}
	}
}

func readFKAction(s string) (action, rest string) {
	s = strings.TrimSpace(s)
	switch {
	case hasKeyword(s, "CASCADE"):
		return "CASCADE", trimKeyword(s, "CASCADE")
	case hasKeyword(s, "RESTRICT"):
		return "RESTRICT", trimKeyword(s, "RESTRICT")
	case hasKeyword(s, "SET"):
		t := trimKeyword(s, "SET")
		if hasKeyword(t, "NULL") {
			return "SET NULL", trimKeyword(t, "NULL")
		}
		if hasKeyword(t, "DEFAULT") {
			return "SET DEFAULT", trimKeyword(t, "DEFAULT")
		}
		return "SET", t
	case hasKeyword(s, "NO"):
		t := trimKeyword(s, "NO")
		if hasKeyword(t, "ACTION") {
			return "NO ACTION", trimKeyword(t, "ACTION")
		}
		return "NO", t
	default:
		return "", s
	}
}

func parseErrf(stmt, format string, args ...any) error {
	return errs.New(errs.KindParse, "parser.parseTableConstraint", map[string]any{
		"statement": stmt,
		"reason":    fmt.Sprintf(format, args...),
	})
}
