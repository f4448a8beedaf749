package live

import (
	"context"
	"database/sql"
	"regexp"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/tordrt/sqlitemigrate/internal/schema"
)

func openMemDB(t *testing.T) *sql.Conn {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	conn, err := db.Conn(ctx)
	if err != nil {
		t.Fatalf("conn: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func exec(t *testing.T, conn *sql.Conn, stmt string) {
	t.Helper()
	if _, err := conn.ExecContext(context.Background(), stmt); err != nil {
		t.Fatalf("exec %q: %v", stmt, err)
	}
}

func TestReadSkipsInternalObjects(t *testing.T) {
	conn := openMemDB(t)
	exec(t, conn, `CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT NOT NULL, email TEXT UNIQUE)`)
	exec(t, conn, `CREATE INDEX idx_users_name ON users (name)`)

	s, err := Read(context.Background(), conn, nil)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	if _, ok := s.Get(schema.KindTable, "users"); !ok {
		t.Fatal("expected users table in live schema")
	}
	if _, ok := s.Get(schema.KindIndex, "idx_users_name"); !ok {
		t.Fatal("expected idx_users_name index in live schema")
	}
	if _, ok := s.Get(schema.KindIndex, "sqlite_autoindex_users_1"); ok {
		t.Fatal("sqlite_ prefixed auto-index should have been filtered out")
	}
}

func TestReadHonorsIgnoreObjects(t *testing.T) {
	conn := openMemDB(t)
	exec(t, conn, `CREATE TABLE users (id INTEGER PRIMARY KEY)`)
	exec(t, conn, `CREATE TABLE fts_shadow (id INTEGER PRIMARY KEY)`)

	ignore := []*regexp.Regexp{regexp.MustCompile(`^table:fts_shadow$`)}
	s, err := Read(context.Background(), conn, ignore)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if _, ok := s.Get(schema.KindTable, "fts_shadow"); ok {
		t.Fatal("fts_shadow should have been excluded by ignore_objects")
	}
	if _, ok := s.Get(schema.KindTable, "users"); !ok {
		t.Fatal("expected users table to survive filtering")
	}
}
