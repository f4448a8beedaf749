package parser

import (
	"strings"

	"github.com/tordrt/sqlitemigrate/internal/errs"
	"github.com/tordrt/sqlitemigrate/internal/schema"
)

func parseIndex(stmt, rest string, _ bool) (*schema.Object, error) {
	rest = stripIfNotExistsAnywhere(rest)
	name, afterName, ok := readIdent(rest)
	if !ok {
		return nil, errs.New(errs.KindParse, "parser.parseIndex", map[string]any{
			"statement": stmt, "reason": "expected index name",
		})
	}
	afterName = strings.TrimSpace(afterName)
	if !hasKeyword(afterName, "ON") {
		return nil, errs.New(errs.KindParse, "parser.parseIndex", map[string]any{
			"statement": stmt, "reason": "expected ON",
		})
	}
	afterOn := trimKeyword(afterName, "ON")
	parent, _, ok := readIdent(afterOn)
	if !ok {
		return nil, errs.New(errs.KindParse, "parser.parseIndex", map[string]any{
			"statement": stmt, "reason": "expected table name after ON",
		})
	}
	return &schema.Object{
		Kind:          schema.KindIndex,
		Name:          name,
		Parent:        parent,
		NormalizedSQL: normalizeFullStatement(stmt),
	}, nil
}

func parseView(stmt, rest string) (*schema.Object, error) {
	rest = stripIfNotExistsAnywhere(rest)
	name, _, ok := readIdent(rest)
	if !ok {
		return nil, errs.New(errs.KindParse, "parser.parseView", map[string]any{
			"statement": stmt, "reason": "expected view name",
		})
	}
	return &schema.Object{
		Kind:          schema.KindView,
		Name:          name,
		NormalizedSQL: normalizeFullStatement(stmt),
	}, nil
}

func parseTrigger(stmt, rest string) (*schema.Object, error) {
	rest = stripIfNotExistsAnywhere(rest)
	name, afterName, ok := readIdent(rest)
	if !ok {
		return nil, errs.New(errs.KindParse, "parser.parseTrigger", map[string]any{
			"statement": stmt, "reason": "expected trigger name",
		})
	}
	parent, err := findTriggerParent(afterName)
	if err != nil {
		return nil, errs.Wrap(errs.KindParse, "parser.parseTrigger", err, map[string]any{"statement": stmt})
	}
	return &schema.Object{
		Kind:          schema.KindTrigger,
		Name:          name,
		Parent:        parent,
		NormalizedSQL: normalizeFullStatement(stmt),
	}, nil
}

// findTriggerParent scans the BEFORE/AFTER/INSTEAD OF <event> ON <table>
// clause that precedes a trigger's BEGIN...END body.
func findTriggerParent(s string) (string, error) {
	rest := s
	for {
		rest = strings.TrimSpace(rest)
		if rest == "" || hasKeyword(rest, "BEGIN") {
			return "", errForTriggerParent()
		}
		if hasKeyword(rest, "ON") {
			t := trimKeyword(rest, "ON")
			name, _, ok := readIdent(t)
			if !ok {
				return "", errForTriggerParent()
			}
			return name, nil
		}
		_, next, ok := readAnyToken(rest)
		if !ok {
			return "", errForTriggerParent()
		}
		rest = next
	}
}

func errForTriggerParent() error {
	return errs.New(errs.KindParse, "parser.findTriggerParent", map[string]any{
		"reason": "expected ON <table> before trigger body",
	})
}

// readAnyToken consumes one identifier, one parenthesized group, or one
// punctuation character from the front of s.
func readAnyToken(s string) (tok, rest string, ok bool) {
	s = strings.TrimLeft(s, " \t\n\r")
	if s == "" {
		return "", s, false
	}
	if name, r, ok2 := readIdent(s); ok2 {
		return name, r, true
	}
	if s[0] == '(' {
		body, r, err := extractParens(s)
		if err != nil {
			return "", s, false
		}
		return body, r, true
	}
	return s[:1], s[1:], true
}

func parseVirtualTable(stmt, rest string) (*schema.Object, error) {
	rest = stripIfNotExistsAnywhere(rest)
	name, afterName, ok := readIdent(rest)
	if !ok {
		return nil, errs.New(errs.KindParse, "parser.parseVirtualTable", map[string]any{
			"statement": stmt, "reason": "expected virtual table name",
		})
	}
	afterName = strings.TrimSpace(afterName)
	if !hasKeyword(afterName, "USING") {
		return nil, errs.New(errs.KindParse, "parser.parseVirtualTable", map[string]any{
			"statement": stmt, "reason": "expected USING",
		})
	}
	afterUsing := trimKeyword(afterName, "USING")
	module, _, ok := readIdent(afterUsing)
	if !ok {
		return nil, errs.New(errs.KindParse, "parser.parseVirtualTable", map[string]any{
			"statement": stmt, "reason": "expected module name",
		})
	}
	return &schema.Object{
		Kind:          schema.KindVirtualTable,
		Name:          name,
		Module:        module,
		NormalizedSQL: normalizeFullStatement(stmt),
	}, nil
}
