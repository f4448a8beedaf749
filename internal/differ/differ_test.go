package differ

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tordrt/sqlitemigrate/internal/parser"
	"github.com/tordrt/sqlitemigrate/internal/schema"
)

func mustSchema(t *testing.T, sql string) *schema.Schema {
	t.Helper()
	s, err := parser.ParseSchema(sql)
	require.NoError(t, err)
	return s
}

func TestDiff(t *testing.T) {
	t.Run("identical schemas produce no changes", func(t *testing.T) {
		sql := `CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT NOT NULL);`
		target := mustSchema(t, sql)
		live := mustSchema(t, sql)

		changes := Diff(target, live, nil)
		assert.Empty(t, changes)
	})

	t.Run("new table in target is a create", func(t *testing.T) {
		target := mustSchema(t, `CREATE TABLE users (id INTEGER PRIMARY KEY);`)
		live := mustSchema(t, ``)

		changes := Diff(target, live, nil)
		require.Len(t, changes, 1)
		assert.Equal(t, ChangeCreate, changes[0].Kind)
		assert.Equal(t, "users", changes[0].Target.Name)
	})

	t.Run("table absent from target is a drop", func(t *testing.T) {
		target := mustSchema(t, ``)
		live := mustSchema(t, `CREATE TABLE users (id INTEGER PRIMARY KEY);`)

		changes := Diff(target, live, nil)
		require.Len(t, changes, 1)
		assert.Equal(t, ChangeDrop, changes[0].Kind)
		assert.Equal(t, "users", changes[0].Live.Name)
	})

	t.Run("changed column set is a recreate", func(t *testing.T) {
		target := mustSchema(t, `CREATE TABLE users (id INTEGER PRIMARY KEY, email TEXT NOT NULL);`)
		live := mustSchema(t, `CREATE TABLE users (id INTEGER PRIMARY KEY);`)

		changes := Diff(target, live, nil)
		require.Len(t, changes, 1)
		assert.Equal(t, ChangeRecreate, changes[0].Kind)
	})

	t.Run("table constraints compare as a set, order ignored", func(t *testing.T) {
		target := mustSchema(t, `CREATE TABLE t (a INTEGER, b INTEGER, UNIQUE(a), UNIQUE(b));`)
		live := mustSchema(t, `CREATE TABLE t (a INTEGER, b INTEGER, UNIQUE(b), UNIQUE(a));`)

		changes := Diff(target, live, nil)
		assert.Empty(t, changes)
	})

	t.Run("index recognized via NormalizedSQL text equality", func(t *testing.T) {
		sql := `CREATE TABLE t (a INTEGER); CREATE INDEX idx_t_a ON t (a);`
		target := mustSchema(t, sql)
		live := mustSchema(t, sql)

		assert.Empty(t, Diff(target, live, nil))
	})

	t.Run("unchanged view is recreated when its table is rebuilt", func(t *testing.T) {
		viewSQL := `CREATE VIEW v AS SELECT id FROM t;`
		live := mustSchema(t, `CREATE TABLE t (id INTEGER PRIMARY KEY); `+viewSQL)
		target := mustSchema(t, `CREATE TABLE t (id INTEGER PRIMARY KEY, name TEXT); `+viewSQL)

		changes := Diff(target, live, nil)

		var sawView bool
		for _, c := range changes {
			if c.Key().Kind == schema.KindView {
				sawView = true
				assert.Equal(t, ChangeRecreate, c.Kind)
			}
		}
		assert.True(t, sawView, "view depending on rebuilt table should be recreated")
	})

	t.Run("unrelated view is left alone when an unrelated table is rebuilt", func(t *testing.T) {
		viewSQL := `CREATE VIEW v AS SELECT id FROM other;`
		live := mustSchema(t, `CREATE TABLE t (id INTEGER PRIMARY KEY); CREATE TABLE other (id INTEGER PRIMARY KEY); `+viewSQL)
		target := mustSchema(t, `CREATE TABLE t (id INTEGER PRIMARY KEY, name TEXT); CREATE TABLE other (id INTEGER PRIMARY KEY); `+viewSQL)

		changes := Diff(target, live, nil)

		for _, c := range changes {
			assert.NotEqual(t, schema.KindView, c.Key().Kind)
		}
	})
}
