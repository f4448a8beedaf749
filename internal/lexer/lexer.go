// Package lexer splits a blob of SQL text into individual DDL statements,
// stripping comments and respecting quoted identifiers, string literals,
// and the BEGIN...END nesting of trigger bodies.
package lexer

import (
	"strings"
	"unicode"

	"github.com/tordrt/sqlitemigrate/internal/errs"
)

// Split consumes a UTF-8 string and returns its constituent statements,
// each trimmed and with its terminating semicolon removed. A ';' is only
// treated as a separator when it lies outside string/identifier quoting
// and outside a BEGIN...END block (tracked by nesting depth).
func Split(sql string) ([]string, error) {
	src := []rune(sql)
	n := len(src)
	i := 0
	depth := 0
	var cur strings.Builder
	var stmts []string

	isWordChar := func(r rune) bool {
		return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
	}

	flush := func() {
		stmt := strings.TrimSpace(cur.String())
		if stmt != "" {
			stmts = append(stmts, stmt)
		}
		cur.Reset()
	}

	for i < n {
		r := src[i]
		switch {
		case r == '-' && i+1 < n && src[i+1] == '-':
			for i < n && src[i] != '\n' {
				i++
			}
		case r == '/' && i+1 < n && src[i+1] == '*':
			j := i + 2
			closed := false
			for j+1 <= n-1 {
				if src[j] == '*' && src[j+1] == '/' {
					j += 2
					closed = true
					break
				}
				j++
			}
			if !closed {
				return nil, errs.New(errs.KindLex, "lexer.Split", map[string]any{
					"reason": "unterminated block comment",
				})
			}
			i = j
		case r == '\'':
			cur.WriteRune(r)
			i++
			for {
				if i >= n {
					return nil, errs.New(errs.KindLex, "lexer.Split", map[string]any{
						"reason": "unterminated string literal",
					})
				}
				c := src[i]
				cur.WriteRune(c)
				i++
				if c == '\'' {
					if i < n && src[i] == '\'' {
						cur.WriteRune(src[i])
						i++
						continue
					}
					break
				}
			}
		case r == '"' || r == '`':
			quote := r
			cur.WriteRune(r)
			i++
			closed := false
			for i < n {
				c := src[i]
				cur.WriteRune(c)
				i++
				if c == quote {
					closed = true
					break
				}
			}
			if !closed {
				return nil, errs.New(errs.KindLex, "lexer.Split", map[string]any{
					"reason": "unterminated quoted identifier",
				})
			}
		case r == '[':
			cur.WriteRune(r)
			i++
			closed := false
			for i < n {
				c := src[i]
				cur.WriteRune(c)
				i++
				if c == ']' {
					closed = true
					break
				}
			}
			if !closed {
				return nil, errs.New(errs.KindLex, "lexer.Split", map[string]any{
					"reason": "unterminated bracketed identifier",
				})
			}
		case isWordChar(r):
			j := i
			for j < n && isWordChar(src[j]) {
				j++
			}
			word := string(src[i:j])
			switch strings.ToUpper(word) {
			case "BEGIN":
				depth++
			case "END":
				if depth == 0 {
					return nil, errs.New(errs.KindLex, "lexer.Split", map[string]any{
						"reason": "END without matching BEGIN",
					})
				}
				depth--
			}
			cur.WriteString(word)
			i = j
		case r == ';' && depth == 0:
			flush()
			i++
		default:
			cur.WriteRune(r)
			i++
		}
	}
	flush()
	return stmts, nil
}
