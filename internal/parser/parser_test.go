package parser

import (
	"testing"

	"github.com/tordrt/sqlitemigrate/internal/errs"
	"github.com/tordrt/sqlitemigrate/internal/schema"
)

func mustParseObject(t *testing.T, stmt string) *schema.Object {
	t.Helper()
	obj, err := ParseObject(stmt)
	if err != nil {
		t.Fatalf("ParseObject(%q): %v", stmt, err)
	}
	return obj
}

// TestNormalizationEquivalence covers spec §4.2's normalization rules 1-3,
// 5 and 6: two syntactically different statements that describe the same
// object must parse to Equal objects.
func TestNormalizationEquivalence(t *testing.T) {
	cases := []struct {
		name string
		a, b string
	}{
		{
			name: "whitespace collapsing",
			a:    "CREATE TABLE t (id INTEGER PRIMARY KEY)",
			b:    "CREATE   TABLE\nt\t(\n  id   INTEGER    PRIMARY   KEY\n)",
		},
		{
			name: "reserved keyword casing",
			a:    "create table t (id INTEGER not null primary key)",
			b:    "CREATE TABLE t (id INTEGER NOT NULL PRIMARY KEY)",
		},
		{
			name: "quoted vs bare identifiers",
			a:    `CREATE TABLE "t" ("id" INTEGER PRIMARY KEY)`,
			b:    "CREATE TABLE t (id INTEGER PRIMARY KEY)",
		},
		{
			name: "bracket-quoted vs bare identifiers",
			a:    "CREATE TABLE [t] ([id] INTEGER PRIMARY KEY)",
			b:    "CREATE TABLE t (id INTEGER PRIMARY KEY)",
		},
		{
			name: "column modifier reordering",
			a:    "CREATE TABLE t (id INTEGER NOT NULL DEFAULT 0 PRIMARY KEY)",
			b:    "CREATE TABLE t (id INTEGER PRIMARY KEY DEFAULT 0 NOT NULL)",
		},
		{
			name: "inline REFERENCES vs table-level FOREIGN KEY",
			a:    "CREATE TABLE t (id INTEGER PRIMARY KEY, owner_id INTEGER REFERENCES users(id))",
			b:    "CREATE TABLE t (id INTEGER PRIMARY KEY, owner_id INTEGER, FOREIGN KEY (owner_id) REFERENCES users (id))",
		},
		{
			name: "trailing comma tolerance",
			a:    "CREATE TABLE t (id INTEGER PRIMARY KEY,)",
			b:    "CREATE TABLE t (id INTEGER PRIMARY KEY)",
		},
		{
			name: "IF NOT EXISTS is transparent to identity",
			a:    "CREATE TABLE IF NOT EXISTS t (id INTEGER PRIMARY KEY)",
			b:    "CREATE TABLE t (id INTEGER PRIMARY KEY)",
		},
		{
			name: "index whitespace and identifier normalization",
			a:    `CREATE INDEX "idx_t_name" ON "t" ("name")`,
			b:    "CREATE   INDEX idx_t_name    ON t (name)",
		},
		{
			name: "view keyword casing and whitespace",
			a:    "create   view  v   as SELECT id FROM t",
			b:    "CREATE VIEW v AS SELECT id FROM t",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a := mustParseObject(t, tc.a)
			b := mustParseObject(t, tc.b)
			if !a.Equal(b) {
				t.Fatalf("expected equal objects\na: %+v (normalized %q)\nb: %+v (normalized %q)",
					a, a.NormalizedSQL, b, b.NormalizedSQL)
			}
		})
	}
}

// TestNormalizationRoundTrip covers Testable Property 2: re-lexing and
// re-parsing an object's NormalizedSQL must reproduce an equal object, for
// every object kind.
func TestNormalizationRoundTrip(t *testing.T) {
	stmts := []string{
		"CREATE TABLE t (id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT NOT NULL DEFAULT 'anon', owner_id INTEGER, FOREIGN KEY (owner_id) REFERENCES t (id) ON DELETE CASCADE)",
		"CREATE INDEX idx_t_name ON t (name)",
		"CREATE VIEW v AS SELECT id, name FROM t WHERE owner_id IS NOT NULL",
		"CREATE TRIGGER trg AFTER INSERT ON t BEGIN SELECT 1; END",
		"CREATE VIRTUAL TABLE ft USING fts5(name)",
	}
	for _, stmt := range stmts {
		t.Run(stmt, func(t *testing.T) {
			obj := mustParseObject(t, stmt)
			again := mustParseObject(t, obj.NormalizedSQL)
			if !obj.Equal(again) {
				t.Fatalf("round-trip mismatch: %q -> %q -> %q", stmt, obj.NormalizedSQL, again.NormalizedSQL)
			}
		})
	}
}

func TestClassifyHeaderKinds(t *testing.T) {
	cases := []struct {
		stmt string
		kind schema.Kind
	}{
		{"CREATE TABLE t (id INTEGER)", schema.KindTable},
		{"CREATE TEMP TABLE t (id INTEGER)", schema.KindTable},
		{"CREATE TEMPORARY TABLE t (id INTEGER)", schema.KindTable},
		{"CREATE UNIQUE INDEX idx ON t (id)", schema.KindIndex},
		{"CREATE INDEX idx ON t (id)", schema.KindIndex},
		{"CREATE VIEW v AS SELECT 1", schema.KindView},
		{"CREATE TRIGGER trg AFTER INSERT ON t BEGIN SELECT 1; END", schema.KindTrigger},
		{"CREATE VIRTUAL TABLE ft USING fts5(x)", schema.KindVirtualTable},
	}
	for _, tc := range cases {
		obj := mustParseObject(t, tc.stmt)
		if obj.Kind != tc.kind {
			t.Errorf("ParseObject(%q).Kind = %v, want %v", tc.stmt, obj.Kind, tc.kind)
		}
	}
}

func TestClassifyHeaderRejectsGarbage(t *testing.T) {
	_, err := ParseObject("SELECT * FROM t")
	if errs.KindOf(err) != errs.KindParse {
		t.Fatalf("expected KindParse, got %v (err=%v)", errs.KindOf(err), err)
	}
}

func TestParseTableLiftsColumnConstraintsAndActions(t *testing.T) {
	obj := mustParseObject(t, "CREATE TABLE t ("+
		"id INTEGER PRIMARY KEY, "+
		"name TEXT UNIQUE, "+
		"owner_id INTEGER REFERENCES users(id) ON DELETE CASCADE ON UPDATE SET NULL, "+
		"CHECK (owner_id <> id))")

	if len(obj.Columns) != 3 {
		t.Fatalf("expected 3 columns, got %d: %+v", len(obj.Columns), obj.Columns)
	}

	var fk, unique, check bool
	for _, c := range obj.TableConstraints {
		switch c.Kind {
		case schema.ConstraintForeignKey:
			fk = true
			if c.RefTable != "users" || c.OnDelete != "CASCADE" || c.OnUpdate != "SET NULL" {
				t.Errorf("unexpected foreign key constraint: %+v", c)
			}
		case schema.ConstraintUnique:
			unique = true
		case schema.ConstraintCheck:
			check = true
			if c.CheckExpr != "owner_id <> id" {
				t.Errorf("unexpected check expr: %q", c.CheckExpr)
			}
		}
	}
	if !fk || !unique || !check {
		t.Fatalf("missing lifted constraint(s): fk=%v unique=%v check=%v (%+v)", fk, unique, check, obj.TableConstraints)
	}
}

func TestParseTablePrimaryKeyAutoincrement(t *testing.T) {
	obj := mustParseObject(t, "CREATE TABLE t (id INTEGER PRIMARY KEY AUTOINCREMENT)")
	if len(obj.Columns) != 1 || !obj.Columns[0].IsPrimaryKey || !obj.Columns[0].AutoIncrement {
		t.Fatalf("unexpected column: %+v", obj.Columns)
	}
}

func TestParseIndexAndTriggerCaptureParent(t *testing.T) {
	idx := mustParseObject(t, "CREATE INDEX idx_t_name ON t (name)")
	if idx.Parent != "t" {
		t.Fatalf("index Parent = %q, want %q", idx.Parent, "t")
	}
	trg := mustParseObject(t, "CREATE TRIGGER trg AFTER INSERT ON t BEGIN SELECT 1; END")
	if trg.Parent != "t" {
		t.Fatalf("trigger Parent = %q, want %q", trg.Parent, "t")
	}
}

func TestParseVirtualTableCapturesModule(t *testing.T) {
	obj := mustParseObject(t, "CREATE VIRTUAL TABLE ft USING fts5(name)")
	if obj.Module != "fts5" {
		t.Fatalf("Module = %q, want %q", obj.Module, "fts5")
	}
}

func TestParseSchemaFailsOnDuplicateObject(t *testing.T) {
	_, err := ParseSchema("CREATE TABLE t (id INTEGER); CREATE TABLE t (id INTEGER);")
	if errs.KindOf(err) != errs.KindDuplicateObject {
		t.Fatalf("expected KindDuplicateObject, got %v (err=%v)", errs.KindOf(err), err)
	}
}

func TestParseSchemaPropagatesLexError(t *testing.T) {
	_, err := ParseSchema("CREATE TABLE t (id INTEGER DEFAULT 'unterminated);")
	if errs.KindOf(err) != errs.KindLex {
		t.Fatalf("expected KindLex, got %v (err=%v)", errs.KindOf(err), err)
	}
}
