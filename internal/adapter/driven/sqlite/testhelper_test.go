package sqlite

import (
	"path/filepath"
	"testing"
)

// setupTestDB creates a temporary file-backed SQLite database for testing,
// opened through NewDB so tests run with the production connection setup
// (WAL mode, dual reader/writer connections). A per-test temp directory
// ensures isolation between parallel tests.
//
// A shared-cache in-memory database is deliberately not used here: under
// shared cache a writer blocks behind any open reader, so code paths that
// write while a read cursor is open (e.g. ChangeLog.Poll parking an
// undecodable event) deadlock — a situation that cannot occur with the WAL
// file databases used in production.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("create test db: %v", err)
	}

	if err := RunMigrations(db.Writer); err != nil {
		_ = db.Close()
		t.Fatalf("run migrations: %v", err)
	}

	t.Cleanup(func() { _ = db.Close() })

	return db
}
