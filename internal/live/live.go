// Package live reads the schema materialized in an open SQLite connection's
// sqlite_master table and parses it into the same schema.Schema model the
// target DDL produces, per spec §4.4.
package live

import (
	"context"
	"database/sql"
	"regexp"
	"strings"

	"github.com/tordrt/sqlitemigrate/internal/errs"
	"github.com/tordrt/sqlitemigrate/internal/parser"
	"github.com/tordrt/sqlitemigrate/internal/schema"
)

// Read queries sqlite_master on conn and parses every surviving row's sql
// text into a Schema. Rows whose name begins with "sqlite_" (auto-indexes,
// internal shadow tables) and rows with a NULL sql column (implicit
// FTS-managed shadow objects) are skipped. Any object whose "kind:name"
// matches one of ignore is excluded after parsing, mirroring
// options.ignore_objects (spec §6).
func Read(ctx context.Context, conn *sql.Conn, ignore []*regexp.Regexp) (*schema.Schema, error) {
	rows, err := conn.QueryContext(ctx, `SELECT name, sql FROM sqlite_master WHERE sql IS NOT NULL`)
	if err != nil {
		return nil, errs.Wrap(errs.KindUnknown, "live.Read", err, nil)
	}
	defer rows.Close()

	s := schema.New()
	for rows.Next() {
		var name, stmt string
		if err := rows.Scan(&name, &stmt); err != nil {
			return nil, errs.Wrap(errs.KindUnknown, "live.Read", err, nil)
		}
		if strings.HasPrefix(name, "sqlite_") {
			continue
		}
		obj, err := parser.ParseObject(stmt)
		if err != nil {
			return nil, err
		}
		if matchesIgnore(obj, ignore) {
			continue
		}
		if err := s.Insert(obj); err != nil {
			return nil, err
		}
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(errs.KindUnknown, "live.Read", err, nil)
	}
	return s, nil
}

// FilterIgnored returns a copy of s with every object matching ignore
// removed. Used to apply options.ignore_objects to the target schema the
// same way Read applies it to the live schema, so both sides of the diff
// are filtered consistently (spec §6).
func FilterIgnored(s *schema.Schema, ignore []*regexp.Regexp) *schema.Schema {
	if len(ignore) == 0 {
		return s
	}
	out := schema.New()
	for _, obj := range s.All() {
		if matchesIgnore(obj, ignore) {
			continue
		}
		_ = out.Insert(obj) // source schema already enforced (kind, name) uniqueness
	}
	return out
}

func matchesIgnore(obj *schema.Object, ignore []*regexp.Regexp) bool {
	if len(ignore) == 0 {
		return false
	}
	label := string(obj.Kind) + ":" + strings.ToLower(obj.Name)
	for _, re := range ignore {
		if re.MatchString(label) {
			return true
		}
	}
	return false
}
