package docstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ImportChecksum returns the checksum last recorded for path, or "" when the
// file was never imported.
func (db *DB) ImportChecksum(ctx context.Context, path string) (string, error) {
	var cs string
	err := db.conn.QueryRowContext(ctx, `SELECT checksum FROM imports WHERE path = ?`, path).Scan(&cs)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("docstore: import checksum: %w", err)
	}
	return cs, nil
}

// ChecksumImported reports whether any file with this checksum was imported.
func (db *DB) ChecksumImported(ctx context.Context, checksum string) (bool, error) {
	var n int
	err := db.conn.QueryRowContext(ctx, `SELECT count(*) FROM imports WHERE checksum = ?`, checksum).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("docstore: checksum imported: %w", err)
	}
	return n > 0, nil
}

// RecordImport remembers that path with the given checksum produced summaryID.
func (db *DB) RecordImport(ctx context.Context, path, checksum, summaryID string) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO imports (path, checksum, summary_id, imported_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			checksum    = excluded.checksum,
			summary_id  = excluded.summary_id,
			imported_at = excluded.imported_at
	`, path, checksum, summaryID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("docstore: record import: %w", err)
	}
	return nil
}
