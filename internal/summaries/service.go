// Package summaries is the read/edit side of captured notes: the summaries
// list, note detail with its primary summary, in-place edits, full-text
// search, and the list view that reacts to the "just created" signal.
package summaries

import (
	"context"
	"strings"
	"time"

	"github.com/starford/studyai/internal/apperr"
	"github.com/starford/studyai/internal/auth"
	"github.com/starford/studyai/internal/checksum"
	"github.com/starford/studyai/internal/docstore"
	"github.com/starford/studyai/internal/models"
)

// ListItem is one row of the summaries list.
type ListItem struct {
	ID        string    `json:"id"`
	NoteID    string    `json:"note_id"`
	Title     string    `json:"title"`
	Preview   string    `json:"preview"`
	CreatedAt time.Time `json:"created_at"`
}

// NoteDetail is a note with the summary shown next to it. History holds every
// summary that references the note, newest first, and is read-only.
type NoteDetail struct {
	Note     models.Note      `json:"note"`
	Checksum string           `json:"checksum"`
	Primary  *models.Summary  `json:"primary,omitempty"`
	History  []models.Summary `json:"history"`
}

const previewRunes = 160

// Service reads and edits the user's notes and summaries in the document store.
type Service struct {
	store docstore.Store
	users auth.Provider
}

// NewService creates a summaries service.
func NewService(store docstore.Store, users auth.Provider) *Service {
	return &Service{store: store, users: users}
}

// List returns the user's summaries, newest first.
func (s *Service) List(ctx context.Context) ([]ListItem, error) {
	uid, err := s.users.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := s.store.ListSummaries(ctx, uid)
	if err != nil {
		return nil, err
	}
	items := make([]ListItem, len(rows))
	for i, r := range rows {
		items[i] = ListItem{
			ID:        r.ID,
			NoteID:    r.NoteID,
			Title:     r.Title,
			Preview:   preview(r.Summary),
			CreatedAt: r.CreatedAt,
		}
	}
	return items, nil
}

// Note returns the note and its primary summary: the one the note references
// by SummaryID, or the newest one when that reference is missing or stale.
func (s *Service) Note(ctx context.Context, noteID string) (*NoteDetail, error) {
	uid, err := s.users.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	return s.detail(ctx, uid, noteID)
}

func (s *Service) detail(ctx context.Context, uid, noteID string) (*NoteDetail, error) {
	n, err := s.store.GetNote(ctx, uid, noteID)
	if err != nil {
		return nil, err
	}
	history, err := s.store.SummariesForNote(ctx, uid, noteID)
	if err != nil {
		return nil, err
	}
	d := &NoteDetail{
		Note:     *n,
		Checksum: checksum.Sum([]byte(n.Content)),
		History:  history,
	}
	for i := range history {
		if history[i].ID == n.SummaryID {
			d.Primary = &history[i]
			break
		}
	}
	if d.Primary == nil && len(history) > 0 {
		d.Primary = &history[0]
	}
	return d, nil
}

// UpdateNote edits a note's title and content. When ifMatch is set it must
// equal the checksum of the stored content.
func (s *Service) UpdateNote(ctx context.Context, noteID, title, content, ifMatch string) (*NoteDetail, error) {
	uid, err := s.users.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(title) == "" {
		return nil, apperr.Validation("title", "can't be empty")
	}
	n, err := s.store.GetNote(ctx, uid, noteID)
	if err != nil {
		return nil, err
	}
	if ifMatch != "" && ifMatch != checksum.Sum([]byte(n.Content)) {
		return nil, apperr.ErrConflict
	}
	n.Title, n.Content = title, content
	if err := s.store.Commit(ctx, uid, docstore.NewBatch().SetNote(*n)); err != nil {
		return nil, err
	}
	return s.detail(ctx, uid, noteID)
}

// UpdateSummary replaces the text of the note's primary summary. The copy
// denormalized onto the note is updated in the same batch.
func (s *Service) UpdateSummary(ctx context.Context, noteID, body string) (*NoteDetail, error) {
	uid, err := s.users.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	d, err := s.detail(ctx, uid, noteID)
	if err != nil {
		return nil, err
	}
	if d.Primary == nil {
		return nil, apperr.ErrNotFound
	}
	sum := *d.Primary
	sum.Summary = body
	n := d.Note
	n.Summary = body
	if n.SummaryID == "" {
		n.SummaryID = sum.ID
	}
	if err := s.store.Commit(ctx, uid, docstore.NewBatch().SetNote(n).SetSummary(sum)); err != nil {
		return nil, err
	}
	return s.detail(ctx, uid, noteID)
}

// Summary returns a single summary by id.
func (s *Service) Summary(ctx context.Context, summaryID string) (*models.Summary, error) {
	uid, err := s.users.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	return s.store.GetSummary(ctx, uid, summaryID)
}

// Search runs a full-text query over the user's notes and summaries.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]docstore.SearchResult, error) {
	uid, err := s.users.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(query) == "" {
		return nil, apperr.Validation("q", "query can't be empty")
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.store.Search(ctx, uid, query, limit)
}

func preview(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= previewRunes {
		return s
	}
	return string(r[:previewRunes]) + "…"
}
