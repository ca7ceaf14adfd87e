package docstore

import (
	"context"

	"github.com/starford/studyai/internal/models"
)

// Store defines the document-store operations. Consumers should depend on
// this interface rather than the concrete *DB type to facilitate testing
// with fakes.
type Store interface {
	Commit(ctx context.Context, userID string, b *Batch) error
	GetNote(ctx context.Context, userID, noteID string) (*models.Note, error)
	ListNotes(ctx context.Context, userID string) ([]models.Note, error)
	GetSummary(ctx context.Context, userID, summaryID string) (*models.Summary, error)
	ListSummaries(ctx context.Context, userID string) ([]models.Summary, error)
	SummariesForNote(ctx context.Context, userID, noteID string) ([]models.Summary, error)
	ListFlashcardSets(ctx context.Context, userID string) ([]models.FlashcardSet, error)
	GetFlashcardSet(ctx context.Context, userID, setID string) (*models.FlashcardSet, error)
	Search(ctx context.Context, userID, query string, limit int) ([]SearchResult, error)
	Close() error
}

// Verify *DB satisfies Store at compile time.
var _ Store = (*DB)(nil)

// WriteKind is the type of a single write in a Batch.
type WriteKind int

// Write kinds.
const (
	SetNote WriteKind = iota + 1
	SetSummary
	SetFlashcardSet
	DeleteNote
	DeleteSummary
	DeleteFlashcardSet
)

// Write is one document write. Set writes carry the document, delete writes
// carry only ID.
type Write struct {
	Kind    WriteKind
	ID      string
	Note    *models.Note
	Summary *models.Summary
	Set     *models.FlashcardSet
}

// Batch collects writes that commit together or not at all.
type Batch struct {
	writes []Write
}

// NewBatch returns an empty batch.
func NewBatch() *Batch {
	return &Batch{}
}

// SetNote upserts a note.
func (b *Batch) SetNote(n models.Note) *Batch {
	b.writes = append(b.writes, Write{Kind: SetNote, ID: n.ID, Note: &n})
	return b
}

// SetSummary upserts a summary.
func (b *Batch) SetSummary(s models.Summary) *Batch {
	b.writes = append(b.writes, Write{Kind: SetSummary, ID: s.ID, Summary: &s})
	return b
}

// SetFlashcardSet upserts a client-owned flashcard set.
func (b *Batch) SetFlashcardSet(fs models.FlashcardSet) *Batch {
	b.writes = append(b.writes, Write{Kind: SetFlashcardSet, ID: fs.ID, Set: &fs})
	return b
}

// DeleteNote removes a note. Deleting a missing note is not an error.
func (b *Batch) DeleteNote(id string) *Batch {
	b.writes = append(b.writes, Write{Kind: DeleteNote, ID: id})
	return b
}

// DeleteSummary removes a summary.
func (b *Batch) DeleteSummary(id string) *Batch {
	b.writes = append(b.writes, Write{Kind: DeleteSummary, ID: id})
	return b
}

// DeleteFlashcardSet removes a client-owned set.
func (b *Batch) DeleteFlashcardSet(id string) *Batch {
	b.writes = append(b.writes, Write{Kind: DeleteFlashcardSet, ID: id})
	return b
}

// Writes returns the queued writes in order.
func (b *Batch) Writes() []Write {
	return b.writes
}

// Len returns the number of queued writes.
func (b *Batch) Len() int {
	return len(b.writes)
}
