package flashcards

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/starford/studyai/internal/apperr"
	"github.com/starford/studyai/internal/backend"
	"github.com/starford/studyai/internal/models"
)

// State is the lifecycle of a Session.
type State string

// Session states.
const (
	StateIdle       State = "idle"
	StateGenerating State = "generating"
	StateReviewing  State = "reviewing"
	StateFailed     State = "failed"
	StateDismissed  State = "dismissed"
)

// ErrNotReviewing is returned by review operations outside the reviewing state.
var ErrNotReviewing = errors.New("session is not reviewing a set")

// GenerateInput is the content and naming for a generated set.
type GenerateInput struct {
	Content   string `json:"content"`
	SetName   string `json:"set_name"`
	NoteID    string `json:"note_id,omitempty"`
	NoteTitle string `json:"note_title,omitempty"`
}

// Snapshot is a copy of the session state for rendering.
type Snapshot struct {
	State   State                      `json:"state"`
	SetID   string                     `json:"set_id,omitempty"`
	Set     *models.FlashcardSetDetail `json:"set,omitempty"`
	Index   int                        `json:"index"`
	Flipped bool                       `json:"flipped"`
	Error   string                     `json:"error,omitempty"`
}

// Session is one generate-then-review flow, or a review of an existing set.
type Session struct {
	w *Workflow

	mu      sync.Mutex
	state   State
	set     *models.FlashcardSetDetail
	index   int
	flipped bool
	errMsg  string
}

// Generate submits content for generation, then fetches the created set.
// The endpoint only returns the new id, so this takes two round trips. On
// failure the session moves to StateFailed and keeps no set id.
func (s *Session) Generate(ctx context.Context, in GenerateInput) (*models.FlashcardSetDetail, error) {
	uid, err := s.w.users.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Content) == "" {
		return nil, apperr.Validation("content", "can't be empty")
	}
	if strings.TrimSpace(in.SetName) == "" {
		return nil, apperr.Validation("set_name", "can't be empty")
	}

	s.mu.Lock()
	if s.state != StateIdle && s.state != StateFailed {
		st := s.state
		s.mu.Unlock()
		return nil, fmt.Errorf("flashcards: cannot generate while %s", st)
	}
	s.state, s.set, s.errMsg = StateGenerating, nil, ""
	s.mu.Unlock()

	res, err := s.w.backend.GenerateFlashcards(ctx, backend.GenerateRequest{
		Content:   in.Content,
		UserID:    uid,
		SetName:   strings.TrimSpace(in.SetName),
		NoteID:    in.NoteID,
		NoteTitle: in.NoteTitle,
	})
	if err != nil {
		s.fail(err)
		return nil, err
	}
	detail, err := s.w.backend.GetFlashcardSet(ctx, uid, res.ID)
	if err != nil {
		s.fail(err)
		return nil, err
	}
	if detail.Name == "" {
		detail.Name = strings.TrimSpace(in.SetName)
	}

	s.review(detail)
	s.w.publish(detail.ID)
	return s.copySet(), nil
}

func (s *Session) fail(err error) {
	msg := err.Error()
	var api *apperr.APIError
	if errors.As(err, &api) {
		msg = api.Message
	}
	s.mu.Lock()
	s.state, s.set, s.errMsg = StateFailed, nil, msg
	s.mu.Unlock()
}

func (s *Session) review(detail *models.FlashcardSetDetail) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.set = detail
	s.index, s.flipped, s.errMsg = 0, false, ""
	if len(detail.Flashcards) == 0 {
		s.state = StateDismissed
		return
	}
	s.state = StateReviewing
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the failure message of a failed session.
func (s *Session) Err() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errMsg
}

// SetID returns the id of the set under review, or "".
func (s *Session) SetID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.set == nil {
		return ""
	}
	return s.set.ID
}

// Index returns the position of the current card.
func (s *Session) Index() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index
}

// Current returns the card being viewed.
func (s *Session) Current() (models.Flashcard, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateReviewing || len(s.set.Flashcards) == 0 {
		return models.Flashcard{}, false
	}
	return s.set.Flashcards[s.index], true
}

// Snapshot returns a copy of the session for rendering.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{State: s.state, Index: s.index, Flipped: s.flipped, Error: s.errMsg}
	if s.set != nil {
		snap.SetID = s.set.ID
		snap.Set = cloneSet(s.set)
	}
	return snap
}

func (s *Session) copySet() *models.FlashcardSetDetail {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneSet(s.set)
}

func cloneSet(d *models.FlashcardSetDetail) *models.FlashcardSetDetail {
	if d == nil {
		return nil
	}
	c := *d
	c.Flashcards = append([]models.Flashcard(nil), d.Flashcards...)
	return &c
}

// Next moves to the following card, wrapping to the first.
func (s *Session) Next() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateReviewing || len(s.set.Flashcards) == 0 {
		return
	}
	s.index = (s.index + 1) % len(s.set.Flashcards)
	s.flipped = false
}

// Prev moves to the previous card, wrapping to the last.
func (s *Session) Prev() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateReviewing || len(s.set.Flashcards) == 0 {
		return
	}
	n := len(s.set.Flashcards)
	s.index = (s.index - 1 + n) % n
	s.flipped = false
}

// Flip toggles between question and answer.
func (s *Session) Flip() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateReviewing {
		s.flipped = !s.flipped
	}
	return s.flipped
}

// EditCard changes a card's question and answer locally, then replaces the
// whole card list on the backend. A failed push keeps the local edit.
func (s *Session) EditCard(ctx context.Context, id, question, answer string) error {
	question, answer = strings.TrimSpace(question), strings.TrimSpace(answer)
	if question == "" || answer == "" {
		return apperr.Validation("flashcard", "question and answer can't be empty")
	}

	s.mu.Lock()
	if s.state != StateReviewing {
		s.mu.Unlock()
		return ErrNotReviewing
	}
	i := s.set.IndexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return apperr.ErrNotFound
	}
	s.set.Flashcards[i].Question = question
	s.set.Flashcards[i].Answer = answer
	setID, cards := s.set.ID, append([]models.Flashcard(nil), s.set.Flashcards...)
	s.mu.Unlock()

	return s.push(ctx, setID, cards)
}

// DeleteCard removes a card locally, then replaces the whole card list on the
// backend. Removing the last card dismisses the session.
func (s *Session) DeleteCard(ctx context.Context, id string) error {
	s.mu.Lock()
	if s.state != StateReviewing {
		s.mu.Unlock()
		return ErrNotReviewing
	}
	i := s.set.IndexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return apperr.ErrNotFound
	}
	s.set.Flashcards = append(s.set.Flashcards[:i], s.set.Flashcards[i+1:]...)
	n := len(s.set.Flashcards)
	if s.index >= n {
		s.index = max(0, n-1)
	}
	s.flipped = false
	if n == 0 {
		s.state = StateDismissed
	}
	setID, cards := s.set.ID, append([]models.Flashcard{}, s.set.Flashcards...)
	s.mu.Unlock()

	return s.push(ctx, setID, cards)
}

func (s *Session) push(ctx context.Context, setID string, cards []models.Flashcard) error {
	uid, err := s.w.users.CurrentUser(ctx)
	if err != nil {
		return err
	}
	if err := s.w.backend.UpdateFlashcardSet(ctx, uid, setID, cards); err != nil {
		return err
	}
	s.w.publish(setID)
	return nil
}
