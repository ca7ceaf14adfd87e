package docstore

import (
	"context"

	"github.com/starford/studyai/internal/models"
)

// UpsertPair writes a note and its summary in one batch. Both writes are
// keyed by id so replaying the same pair is harmless.
func (db *DB) UpsertPair(ctx context.Context, userID string, n models.Note, s models.Summary) error {
	return db.Commit(ctx, userID, NewBatch().SetNote(n).SetSummary(s))
}

// DeletePair removes a summary and, when noteID is known, its note.
func (db *DB) DeletePair(ctx context.Context, userID, noteID, summaryID string) error {
	b := NewBatch()
	if summaryID != "" {
		b.DeleteSummary(summaryID)
	}
	if noteID != "" {
		b.DeleteNote(noteID)
	}
	return db.Commit(ctx, userID, b)
}
