// Package docstore is the document store collaborator: per-user notes,
// summaries and client-owned flashcard sets, kept in SQLite. A Batch commits
// as one transaction so readers never observe a note without its summary.
package docstore

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const coreSchemaSQL = `
CREATE TABLE IF NOT EXISTS notes (
	user_id    TEXT NOT NULL,
	id         TEXT NOT NULL,
	title      TEXT NOT NULL DEFAULT '',
	content    TEXT NOT NULL DEFAULT '',
	source     TEXT NOT NULL DEFAULT 'text',
	summary    TEXT NOT NULL DEFAULT '',
	summary_id TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (user_id, id)
);

CREATE TABLE IF NOT EXISTS summaries (
	user_id    TEXT NOT NULL,
	id         TEXT NOT NULL,
	note_id    TEXT NOT NULL DEFAULT '',
	summary    TEXT NOT NULL DEFAULT '',
	title      TEXT NOT NULL DEFAULT '',
	backend_id TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (user_id, id)
);

CREATE INDEX IF NOT EXISTS idx_notes_created ON notes(user_id, created_at);
CREATE INDEX IF NOT EXISTS idx_summaries_created ON summaries(user_id, created_at);
CREATE INDEX IF NOT EXISTS idx_summaries_note ON summaries(user_id, note_id);

CREATE TABLE IF NOT EXISTS flashcard_sets (
	user_id         TEXT NOT NULL,
	id              TEXT NOT NULL,
	name            TEXT NOT NULL,
	note_id         TEXT NOT NULL DEFAULT '',
	note_title      TEXT NOT NULL DEFAULT '',
	flashcard_count INTEGER NOT NULL DEFAULT 0,
	created_at      TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (user_id, id)
);

CREATE TABLE IF NOT EXISTS imports (
	path        TEXT PRIMARY KEY,
	checksum    TEXT NOT NULL,
	summary_id  TEXT NOT NULL DEFAULT '',
	imported_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_imports_checksum ON imports(checksum);
`

// DB wraps a sql.DB with document-store operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("docstore: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("docstore: ping: %w", err)
	}
	if _, err := conn.Exec(coreSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("docstore: apply core schema: %w", err)
	}
	if err := ensureColumn(conn, "summaries", "backend_id", "TEXT NOT NULL DEFAULT ''"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("docstore: migrate summaries: %w", err)
	}
	if err := initFTS(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("docstore: apply fts schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Conn exposes the connection so the outbox can share the same database file.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// ensureColumn adds a column to databases created before it existed.
func ensureColumn(conn *sql.DB, table, column, decl string) error {
	rows, err := conn.Query(`SELECT name FROM pragma_table_info(?)`, table)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return err
		}
		if name == column {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	_, err = conn.Exec(fmt.Sprintf(`ALTER TABLE %s ADD COLUMN %s %s`, table, column, decl))
	return err
}
