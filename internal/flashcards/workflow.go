// Package flashcards drives flashcard sets: generation from note content,
// manual authoring with a duplicate-name guard, and the review session in
// which cards are browsed, edited and deleted.
package flashcards

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/starford/studyai/internal/apperr"
	"github.com/starford/studyai/internal/artifact"
	"github.com/starford/studyai/internal/auth"
	"github.com/starford/studyai/internal/backend"
	"github.com/starford/studyai/internal/docstore"
	"github.com/starford/studyai/internal/models"
)

// Backend is the subset of the backend client used for flashcards.
type Backend interface {
	GenerateFlashcards(ctx context.Context, req backend.GenerateRequest) (backend.Success, error)
	CreateFlashcardSet(ctx context.Context, req backend.CreateSetRequest) (string, error)
	ListFlashcardSets(ctx context.Context, userID string) ([]models.FlashcardSet, error)
	GetFlashcardSet(ctx context.Context, userID, setID string) (*models.FlashcardSetDetail, error)
	UpdateFlashcardSet(ctx context.Context, userID, setID string, cards []models.Flashcard) error
	DeleteFlashcardSet(ctx context.Context, userID, setID string) error
}

// SetStore records sets the client authored itself.
type SetStore interface {
	Commit(ctx context.Context, userID string, b *docstore.Batch) error
	GetFlashcardSet(ctx context.Context, userID, setID string) (*models.FlashcardSet, error)
}

// Publisher broadcasts set changes to mounted views.
type Publisher interface {
	Publish(ev artifact.Event)
}

// CardInput is a manually authored card before it has an id.
type CardInput struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Workflow owns the collaborators shared by every flashcard session.
type Workflow struct {
	backend Backend
	store   SetStore
	users   auth.Provider
	events  Publisher
	logger  *slog.Logger
	newID   func() string
	now     func() time.Time
}

// NewWorkflow creates a Workflow. events may be nil.
func NewWorkflow(b Backend, store SetStore, users auth.Provider, events Publisher, logger *slog.Logger) *Workflow {
	if logger == nil {
		logger = slog.Default()
	}
	return &Workflow{
		backend: b,
		store:   store,
		users:   users,
		events:  events,
		logger:  logger,
		newID:   uuid.NewString,
		now:     time.Now,
	}
}

func (w *Workflow) publish(setID string) {
	if w.events != nil {
		w.events.Publish(artifact.Event{Type: artifact.FlashcardsChange, ID: setID})
	}
}

// ListSets returns the user's sets as reported by the backend.
func (w *Workflow) ListSets(ctx context.Context) ([]models.FlashcardSet, error) {
	uid, err := w.users.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	return w.backend.ListFlashcardSets(ctx, uid)
}

// GetSet returns a set with its cards.
func (w *Workflow) GetSet(ctx context.Context, setID string) (*models.FlashcardSetDetail, error) {
	uid, err := w.users.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	return w.backend.GetFlashcardSet(ctx, uid, setID)
}

// CreateManual stores a hand-written set. A set whose name matches an
// existing one, ignoring case, is rejected with a ConflictError. The check
// is client-side and not atomic with the create.
func (w *Workflow) CreateManual(ctx context.Context, setName string, cards []CardInput, noteID, noteTitle string) (*models.FlashcardSetDetail, error) {
	uid, err := w.users.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	setName = strings.TrimSpace(setName)
	if setName == "" {
		return nil, apperr.Validation("set_name", "can't be empty")
	}

	out := make([]models.Flashcard, 0, len(cards))
	for _, c := range cards {
		q, a := strings.TrimSpace(c.Question), strings.TrimSpace(c.Answer)
		if q == "" && a == "" {
			continue
		}
		if q == "" || a == "" {
			return nil, apperr.Validation("flashcards", "every card needs a question and an answer")
		}
		out = append(out, models.Flashcard{ID: w.newID(), Question: q, Answer: a})
	}
	if len(out) == 0 {
		return nil, apperr.Validation("flashcards", "add at least one card")
	}

	existing, err := w.backend.ListFlashcardSets(ctx, uid)
	if err != nil {
		return nil, err
	}
	for _, s := range existing {
		if strings.EqualFold(strings.TrimSpace(s.Name), setName) {
			return nil, &apperr.ConflictError{Name: setName}
		}
	}

	setID, err := w.backend.CreateFlashcardSet(ctx, backend.CreateSetRequest{
		UserID:     uid,
		SetName:    setName,
		Flashcards: out,
		NoteID:     noteID,
		NoteTitle:  noteTitle,
	})
	if err != nil {
		return nil, err
	}

	created := w.now().UTC().Format(time.RFC3339)
	owned := models.FlashcardSet{
		ID:             setID,
		Name:           setName,
		NoteID:         noteID,
		NoteTitle:      noteTitle,
		FlashcardCount: len(out),
		CreatedAt:      created,
	}
	if err := w.store.Commit(ctx, uid, docstore.NewBatch().SetFlashcardSet(owned)); err != nil {
		w.logger.Warn("flashcards: record manual set failed",
			slog.String("set_id", setID),
			slog.String("error", err.Error()))
	}
	w.publish(setID)

	return &models.FlashcardSetDetail{
		ID:         setID,
		Name:       setName,
		NoteID:     noteID,
		NoteTitle:  noteTitle,
		Flashcards: out,
		CreatedAt:  created,
	}, nil
}

// DeleteSet deletes a set through the backend. Sets the client authored are
// also removed from the document store directly, even when the backend no
// longer knows them.
func (w *Workflow) DeleteSet(ctx context.Context, setID string) error {
	uid, err := w.users.CurrentUser(ctx)
	if err != nil {
		return err
	}
	_, lookupErr := w.store.GetFlashcardSet(ctx, uid, setID)
	owned := lookupErr == nil
	if lookupErr != nil && !errors.Is(lookupErr, apperr.ErrNotFound) {
		w.logger.Warn("flashcards: ownership lookup failed",
			slog.String("set_id", setID),
			slog.String("error", lookupErr.Error()))
	}

	if err := w.backend.DeleteFlashcardSet(ctx, uid, setID); err != nil {
		if !owned || apperr.IsTransport(err) {
			return err
		}
		w.logger.Warn("flashcards: backend delete failed for client-owned set",
			slog.String("set_id", setID),
			slog.String("error", err.Error()))
	}
	if owned {
		if err := w.store.Commit(ctx, uid, docstore.NewBatch().DeleteFlashcardSet(setID)); err != nil {
			return err
		}
	}
	w.publish(setID)
	return nil
}

// NewSession starts an idle generation session.
func (w *Workflow) NewSession() *Session {
	return &Session{w: w, state: StateIdle}
}

// Open starts a review session over an existing set.
func (w *Workflow) Open(ctx context.Context, setID string) (*Session, error) {
	detail, err := w.GetSet(ctx, setID)
	if err != nil {
		return nil, err
	}
	s := w.NewSession()
	s.review(detail)
	return s, nil
}
