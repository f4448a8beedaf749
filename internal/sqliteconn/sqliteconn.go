// Package sqliteconn opens the single pinned connection a migration runs
// on, registering a driver variant whose ConnectHook loads the caller's
// requested extensions before the connection is ever handed back, per
// spec §9's "dynamic extension loading" note.
package sqliteconn

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/mattn/go-sqlite3"

	"github.com/tordrt/sqlitemigrate/internal/errs"
)

var (
	driverName = "sqlite3_slitemigrate"
	registerMu sync.Mutex
	registered = make(map[string]bool)
)

// driverNameFor returns a process-unique driver name for a given extension
// set, registering it with database/sql on first use. database/sql.Register
// panics on a duplicate name, so each distinct extension list gets its own
// driver name, cached by a stable key.
func driverNameFor(extensions []string) string {
	key := driverName
	for _, e := range extensions {
		key += "|" + e
	}

	registerMu.Lock()
	defer registerMu.Unlock()
	if registered[key] {
		return key
	}
	exts := append([]string(nil), extensions...)
	sql.Register(key, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			for _, ext := range exts {
				if err := conn.LoadExtension(ext, ""); err != nil {
					return fmt.Errorf("load extension %q: %w", ext, err)
				}
			}
			return nil
		},
	})
	registered[key] = true
	return key
}

// Open opens path with the given extensions preloaded on every connection
// in the pool, returning the *sql.DB. Callers that need extension effects
// to be guaranteed visible (e.g. before reading sqlite_master for a
// virtual-table module) must pin a single *sql.Conn via PinnedConn rather
// than relying on the pool, since database/sql does not guarantee which
// physical connection serves a later query.
func Open(path string, extensions []string) (*sql.DB, error) {
	name := driverNameFor(extensions)
	db, err := sql.Open(name, path)
	if err != nil {
		return nil, errs.Wrap(errs.KindUnknown, "sqliteconn.Open", err, map[string]any{"path": path})
	}
	return db, nil
}

// PinnedConn acquires and returns a single *sql.Conn from db, guaranteed to
// be the same physical connection (and therefore carry the same
// ConnectHook-loaded extensions) for every subsequent use until Close is
// called on it. The caller is responsible for closing it.
func PinnedConn(ctx context.Context, db *sql.DB) (*sql.Conn, error) {
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, errs.Wrap(errs.KindUnknown, "sqliteconn.PinnedConn", err, nil)
	}
	return conn, nil
}
