//go:build sqlite_fts5

package docstore

import (
	"context"
	"database/sql"
	"fmt"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS notes_fts USING fts5(
			user_id UNINDEXED,
			note_id UNINDEXED,
			title,
			content,
			summary,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(tx *sql.Tx, userID, noteID, title, content, summary string) error {
	_, _ = tx.Exec(`DELETE FROM notes_fts WHERE user_id = ? AND note_id = ?`, userID, noteID)
	_, err := tx.Exec(`INSERT INTO notes_fts (user_id, note_id, title, content, summary) VALUES (?, ?, ?, ?, ?)`,
		userID, noteID, title, content, summary)
	if err != nil {
		return fmt.Errorf("docstore: upsert fts: %w", err)
	}
	return nil
}

func ftsDelete(tx *sql.Tx, userID, noteID string) {
	_, _ = tx.Exec(`DELETE FROM notes_fts WHERE user_id = ? AND note_id = ?`, userID, noteID)
}

// Search performs an FTS5 full-text search over the user's notes and their
// summaries and returns matching results with snippets.
func (db *DB) Search(ctx context.Context, userID, query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.QueryContext(ctx, `
		SELECT note_id,
		       title,
		       snippet(notes_fts, 3, '<b>', '</b>', '...', 64)
		FROM notes_fts
		WHERE notes_fts MATCH ? AND user_id = ?
		ORDER BY rank
		LIMIT ?
	`, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("docstore: search: %w", err)
	}
	defer rows.Close()

	out := []SearchResult{}
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.NoteID, &r.Title, &r.Snippet); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
