package testutil

import (
	"database/sql"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"chainpad/internal/db"
)

// SetupTestDB creates an in-memory SQLite database with the full schema
// applied, for use in repository tests. The database is closed automatically
// when the test finishes.
func SetupTestDB(t *testing.T) *db.DB {
	t.Helper()

	rawDB, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	if _, err := rawDB.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("failed to enable foreign keys: %v", err)
	}

	schema := `
CREATE TABLE sessions (
    id TEXT PRIMARY KEY,
    network TEXT NOT NULL,
    profile TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'starting',
    ports TEXT NOT NULL DEFAULT '{}',
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX idx_sessions_network ON sessions(network);
CREATE INDEX idx_sessions_status ON sessions(status);

CREATE TABLE session_services (
    id TEXT PRIMARY KEY,
    session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
    name TEXT NOT NULL,
    instance_id TEXT NOT NULL DEFAULT '',
    runtime TEXT NOT NULL DEFAULT '',
    image TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL DEFAULT 'pending',
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(session_id, name)
);

CREATE INDEX idx_session_services_session_id ON session_services(session_id);

CREATE TRIGGER update_sessions_updated_at AFTER UPDATE ON sessions
BEGIN
    UPDATE sessions SET updated_at = CURRENT_TIMESTAMP WHERE id = NEW.id;
END;

CREATE TRIGGER update_session_services_updated_at AFTER UPDATE ON session_services
BEGIN
    UPDATE session_services SET updated_at = CURRENT_TIMESTAMP WHERE id = NEW.id;
END;
`

	if _, err := rawDB.Exec(schema); err != nil {
		t.Fatalf("failed to apply test schema: %v", err)
	}

	var tableCount int
	err = rawDB.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name IN ('sessions', 'session_services')").Scan(&tableCount)
	if err != nil {
		t.Fatalf("failed to verify test schema: %v", err)
	}
	if tableCount != 2 {
		t.Fatalf("expected 2 tables, found %d", tableCount)
	}

	sqlxDB := sqlx.NewDb(rawDB, "sqlite3")
	database := &db.DB{DB: sqlxDB}
	t.Cleanup(func() {
		_ = database.Close()
	})

	return database
}
