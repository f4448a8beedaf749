// Package parser classifies each lexed DDL statement (table, index, view,
// trigger, virtual table) and normalizes it into a schema.Object, per
// spec §4.2.
package parser

import (
	"strings"

	"github.com/tordrt/sqlitemigrate/internal/errs"
	"github.com/tordrt/sqlitemigrate/internal/lexer"
	"github.com/tordrt/sqlitemigrate/internal/schema"
)

// ParseSchema lexes sqlText into statements and parses each into an Object,
// building a Schema. It fails on the first Lex/Parse/DuplicateObject error.
func ParseSchema(sqlText string) (*schema.Schema, error) {
	stmts, err := lexer.Split(sqlText)
	if err != nil {
		return nil, err
	}
	s := schema.New()
	for _, stmt := range stmts {
		obj, err := ParseObject(stmt)
		if err != nil {
			return nil, err
		}
		if err := s.Insert(obj); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// ParseObject classifies and normalizes a single DDL statement.
func ParseObject(stmt string) (*schema.Object, error) {
	kind, rest, unique, err := classifyHeader(stmt)
	if err != nil {
		return nil, err
	}
	switch kind {
	case schema.KindTable:
		return parseTable(stmt, rest)
	case schema.KindIndex:
		return parseIndex(stmt, rest, unique)
	case schema.KindView:
		return parseView(stmt, rest)
	case schema.KindTrigger:
		return parseTrigger(stmt, rest)
	case schema.KindVirtualTable:
		return parseVirtualTable(stmt, rest)
	default:
		return nil, errs.New(errs.KindParse, "parser.ParseObject", map[string]any{
			"statement": stmt,
			"reason":    "unrecognized leading token",
		})
	}
}

// classifyHeader identifies the statement's object kind from its first
// keywords, per spec §4.2: CREATE [TEMP|TEMPORARY] [UNIQUE] <kind>. It
// returns the text following the kind keyword and whether UNIQUE was seen
// (meaningful for indexes only).
func classifyHeader(stmt string) (schema.Kind, string, bool, error) {
	s := strings.TrimSpace(stmt)
	if !hasKeyword(s, "CREATE") {
		return "", "", false, errs.New(errs.KindParse, "parser.classifyHeader", map[string]any{
			"statement": stmt,
			"reason":    "expected CREATE",
		})
	}
	s = trimKeyword(s, "CREATE")
	unique := false
loop:
	for {
		switch {
		case hasKeyword(s, "TEMPORARY"):
			s = trimKeyword(s, "TEMPORARY")
		case hasKeyword(s, "TEMP"):
			s = trimKeyword(s, "TEMP")
		case hasKeyword(s, "UNIQUE"):
			unique = true
			s = trimKeyword(s, "UNIQUE")
		default:
			break loop
		}
	}
	switch {
	case hasKeyword(s, "VIRTUAL"):
		s = trimKeyword(s, "VIRTUAL")
		if !hasKeyword(s, "TABLE") {
			return "", "", false, errs.New(errs.KindParse, "parser.classifyHeader", map[string]any{
				"statement": stmt,
				"reason":    "expected TABLE after VIRTUAL",
			})
		}
		return schema.KindVirtualTable, trimKeyword(s, "TABLE"), false, nil
	case hasKeyword(s, "TABLE"):
		return schema.KindTable, trimKeyword(s, "TABLE"), false, nil
	case hasKeyword(s, "INDEX"):
		return schema.KindIndex, trimKeyword(s, "INDEX"), unique, nil
	case hasKeyword(s, "VIEW"):
		return schema.KindView, trimKeyword(s, "VIEW"), false, nil
	case hasKeyword(s, "TRIGGER"):
		return schema.KindTrigger, trimKeyword(s, "TRIGGER"), false, nil
	default:
		return "", "", false, errs.New(errs.KindParse, "parser.classifyHeader", map[string]any{
			"statement": stmt,
			"reason":    "unrecognized leading token",
		})
	}
}
