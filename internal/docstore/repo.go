package docstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/starford/studyai/internal/apperr"
	"github.com/starford/studyai/internal/models"
)

// SearchResult represents one search hit.
type SearchResult struct {
	NoteID  string `json:"note_id"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

// Commit applies every write in b within a single transaction.
func (db *DB) Commit(ctx context.Context, userID string, b *Batch) error {
	if userID == "" {
		return errors.New("docstore: empty user id")
	}
	if b == nil || b.Len() == 0 {
		return nil
	}
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("docstore: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	for i, w := range b.writes {
		if w.ID == "" {
			return fmt.Errorf("docstore: write %d has empty id", i)
		}
		if err := applyWrite(ctx, tx, userID, w); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func applyWrite(ctx context.Context, tx *sql.Tx, uid string, w Write) error {
	switch w.Kind {
	case SetNote:
		n := w.Note
		_, err := tx.ExecContext(ctx, `
			INSERT INTO notes (user_id, id, title, content, source, summary, summary_id, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(user_id, id) DO UPDATE SET
				title      = excluded.title,
				content    = excluded.content,
				source     = excluded.source,
				summary    = excluded.summary,
				summary_id = excluded.summary_id
		`, uid, n.ID, n.Title, n.Content, string(n.Source), n.Summary, n.SummaryID, stamp(n.CreatedAt))
		if err != nil {
			return fmt.Errorf("docstore: upsert note: %w", err)
		}
		return ftsUpsert(tx, uid, n.ID, n.Title, n.Content, n.Summary)

	case SetSummary:
		s := w.Summary
		_, err := tx.ExecContext(ctx, `
			INSERT INTO summaries (user_id, id, note_id, summary, title, backend_id, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(user_id, id) DO UPDATE SET
				note_id    = excluded.note_id,
				summary    = excluded.summary,
				title      = excluded.title,
				backend_id = excluded.backend_id
		`, uid, s.ID, s.NoteID, s.Summary, s.Title, s.BackendID, stamp(s.CreatedAt))
		if err != nil {
			return fmt.Errorf("docstore: upsert summary: %w", err)
		}
		return nil

	case SetFlashcardSet:
		fs := w.Set
		_, err := tx.ExecContext(ctx, `
			INSERT INTO flashcard_sets (user_id, id, name, note_id, note_title, flashcard_count, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(user_id, id) DO UPDATE SET
				name            = excluded.name,
				note_id         = excluded.note_id,
				note_title      = excluded.note_title,
				flashcard_count = excluded.flashcard_count
		`, uid, fs.ID, fs.Name, fs.NoteID, fs.NoteTitle, fs.FlashcardCount, fs.CreatedAt)
		if err != nil {
			return fmt.Errorf("docstore: upsert flashcard set: %w", err)
		}
		return nil

	case DeleteNote:
		ftsDelete(tx, uid, w.ID)
		if _, err := tx.ExecContext(ctx, `DELETE FROM notes WHERE user_id = ? AND id = ?`, uid, w.ID); err != nil {
			return fmt.Errorf("docstore: delete note: %w", err)
		}
		return nil

	case DeleteSummary:
		if _, err := tx.ExecContext(ctx, `DELETE FROM summaries WHERE user_id = ? AND id = ?`, uid, w.ID); err != nil {
			return fmt.Errorf("docstore: delete summary: %w", err)
		}
		return nil

	case DeleteFlashcardSet:
		if _, err := tx.ExecContext(ctx, `DELETE FROM flashcard_sets WHERE user_id = ? AND id = ?`, uid, w.ID); err != nil {
			return fmt.Errorf("docstore: delete flashcard set: %w", err)
		}
		return nil

	default:
		return fmt.Errorf("docstore: unknown write kind %d", w.Kind)
	}
}

func stamp(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t.UTC()
}

const noteColumns = `id, title, content, source, summary, summary_id, created_at`

func scanNote(row interface{ Scan(...any) error }) (models.Note, error) {
	var n models.Note
	var source string
	err := row.Scan(&n.ID, &n.Title, &n.Content, &source, &n.Summary, &n.SummaryID, &n.CreatedAt)
	n.Source = models.SourceKind(source)
	return n, err
}

// GetNote returns a note or apperr.ErrNotFound.
func (db *DB) GetNote(ctx context.Context, userID, noteID string) (*models.Note, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+noteColumns+` FROM notes WHERE user_id = ? AND id = ?`, userID, noteID)
	n, err := scanNote(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("docstore: get note: %w", err)
	}
	return &n, nil
}

// ListNotes returns the user's notes, newest first.
func (db *DB) ListNotes(ctx context.Context, userID string) ([]models.Note, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+noteColumns+` FROM notes WHERE user_id = ? ORDER BY created_at DESC, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("docstore: list notes: %w", err)
	}
	defer rows.Close()

	out := []models.Note{}
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// Summary titles fall back to the title of the note they reference.
const summarySelect = `
	SELECT s.id, s.note_id, s.summary, COALESCE(NULLIF(s.title, ''), n.title, ''), s.backend_id, s.created_at
	FROM summaries s
	LEFT JOIN notes n ON n.user_id = s.user_id AND n.id = s.note_id
`

func (db *DB) querySummaries(ctx context.Context, where string, args ...any) ([]models.Summary, error) {
	rows, err := db.conn.QueryContext(ctx, summarySelect+where+` ORDER BY s.created_at DESC, s.id`, args...)
	if err != nil {
		return nil, fmt.Errorf("docstore: list summaries: %w", err)
	}
	defer rows.Close()

	out := []models.Summary{}
	for rows.Next() {
		var s models.Summary
		if err := rows.Scan(&s.ID, &s.NoteID, &s.Summary, &s.Title, &s.BackendID, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// GetSummary returns a summary or apperr.ErrNotFound.
func (db *DB) GetSummary(ctx context.Context, userID, summaryID string) (*models.Summary, error) {
	list, err := db.querySummaries(ctx, `WHERE s.user_id = ? AND s.id = ?`, userID, summaryID)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, apperr.ErrNotFound
	}
	return &list[0], nil
}

// ListSummaries returns the user's summaries, newest first.
func (db *DB) ListSummaries(ctx context.Context, userID string) ([]models.Summary, error) {
	return db.querySummaries(ctx, `WHERE s.user_id = ?`, userID)
}

// SummariesForNote returns every summary that references noteID, newest first.
func (db *DB) SummariesForNote(ctx context.Context, userID, noteID string) ([]models.Summary, error) {
	return db.querySummaries(ctx, `WHERE s.user_id = ? AND s.note_id = ?`, userID, noteID)
}

const setColumns = `id, name, note_id, note_title, flashcard_count, created_at`

func scanSet(row interface{ Scan(...any) error }) (models.FlashcardSet, error) {
	var fs models.FlashcardSet
	err := row.Scan(&fs.ID, &fs.Name, &fs.NoteID, &fs.NoteTitle, &fs.FlashcardCount, &fs.CreatedAt)
	return fs, err
}

// ListFlashcardSets returns the client-owned sets, newest first.
func (db *DB) ListFlashcardSets(ctx context.Context, userID string) ([]models.FlashcardSet, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+setColumns+` FROM flashcard_sets WHERE user_id = ? ORDER BY created_at DESC, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("docstore: list flashcard sets: %w", err)
	}
	defer rows.Close()

	out := []models.FlashcardSet{}
	for rows.Next() {
		fs, err := scanSet(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, fs)
	}
	return out, rows.Err()
}

// GetFlashcardSet returns a client-owned set or apperr.ErrNotFound.
func (db *DB) GetFlashcardSet(ctx context.Context, userID, setID string) (*models.FlashcardSet, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+setColumns+` FROM flashcard_sets WHERE user_id = ? AND id = ?`, userID, setID)
	fs, err := scanSet(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("docstore: get flashcard set: %w", err)
	}
	return &fs, nil
}
