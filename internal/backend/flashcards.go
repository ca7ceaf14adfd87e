package backend

import (
	"context"
	"errors"
	"time"

	"github.com/starford/studyai/internal/apperr"
	"github.com/starford/studyai/internal/models"
)

// GenerateRequest is the body of POST /generate_flashcards.
type GenerateRequest struct {
	Content   string `json:"content"`
	UserID    string `json:"user_id"`
	SetName   string `json:"set_name"`
	NoteID    string `json:"note_id,omitempty"`
	NoteTitle string `json:"note_title,omitempty"`
}

// CreateSetRequest is the body of POST /create_flashcard_set.
type CreateSetRequest struct {
	UserID     string             `json:"user_id"`
	SetName    string             `json:"set_name"`
	Flashcards []models.Flashcard `json:"flashcards"`
	NoteID     string             `json:"note_id,omitempty"`
	NoteTitle  string             `json:"note_title,omitempty"`
}

// GenerateFlashcards asks the backend to generate a set from note content.
// Success.ID is the new set id; the cards must be fetched separately.
func (c *Client) GenerateFlashcards(ctx context.Context, req GenerateRequest) (res Success, err error) {
	const op = "generate_flashcards"
	start := time.Now()
	defer func() { observe(op, start, err) }()

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		Post("/generate_flashcards")
	return c.result(op, resp, err, func(e envelope) string { return e.SetID })
}

// CreateFlashcardSet stores a manually authored set and returns its id.
func (c *Client) CreateFlashcardSet(ctx context.Context, req CreateSetRequest) (setID string, err error) {
	const op = "create_flashcard_set"
	start := time.Now()
	defer func() { observe(op, start, err) }()

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		Post("/create_flashcard_set")
	res, err := c.result(op, resp, err, func(e envelope) string { return e.SetID })
	if err != nil {
		return "", err
	}
	return res.ID, nil
}

// ListFlashcardSets returns the user's sets.
func (c *Client) ListFlashcardSets(ctx context.Context, userID string) (sets []models.FlashcardSet, err error) {
	const op = "list_flashcard_sets"
	start := time.Now()
	defer func() { observe(op, start, err) }()

	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("uid", userID).
		Get("/flashcard_sets/{uid}")
	if err := checkStatus(op, resp, err); err != nil {
		return nil, err
	}
	var body struct {
		Success bool                  `json:"success"`
		Sets    []models.FlashcardSet `json:"sets"`
		Error   string                `json:"error"`
	}
	if err := decodeJSON(op, resp, &body); err != nil {
		return nil, err
	}
	if !body.Success {
		msg := body.Error
		if msg == "" {
			msg = unknownFailure
		}
		return nil, &apperr.APIError{Message: msg}
	}
	if body.Sets == nil {
		body.Sets = []models.FlashcardSet{}
	}
	return body.Sets, nil
}

// GetFlashcardSet fetches a set with all of its cards.
func (c *Client) GetFlashcardSet(ctx context.Context, userID, setID string) (detail *models.FlashcardSetDetail, err error) {
	const op = "get_flashcard_set"
	start := time.Now()
	defer func() { observe(op, start, err) }()

	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParams(map[string]string{"uid": userID, "sid": setID}).
		Get("/flashcard_set/{uid}/{sid}")
	if err := checkStatus(op, resp, err); err != nil {
		return nil, err
	}
	var body struct {
		models.FlashcardSetDetail
		Success *bool  `json:"success"`
		Error   string `json:"error"`
	}
	if err := decodeJSON(op, resp, &body); err != nil {
		return nil, err
	}
	if body.Success != nil && !*body.Success {
		msg := body.Error
		if msg == "" {
			msg = unknownFailure
		}
		return nil, &apperr.APIError{Message: msg}
	}
	if body.ID == "" {
		return nil, &apperr.TransportError{Op: op, Status: resp.StatusCode(), Err: errors.New("set detail without id")}
	}
	d := body.FlashcardSetDetail
	if d.Flashcards == nil {
		d.Flashcards = []models.Flashcard{}
	}
	return &d, nil
}

// UpdateFlashcardSet replaces the full card list of a set.
func (c *Client) UpdateFlashcardSet(ctx context.Context, userID, setID string, cards []models.Flashcard) (err error) {
	const op = "update_flashcard_set"
	start := time.Now()
	defer func() { observe(op, start, err) }()

	if cards == nil {
		cards = []models.Flashcard{}
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParams(map[string]string{"uid": userID, "sid": setID}).
		SetBody(cards).
		Put("/flashcard_set/{uid}/{sid}")
	return checkStatus(op, resp, err)
}

// DeleteFlashcardSet removes a set.
func (c *Client) DeleteFlashcardSet(ctx context.Context, userID, setID string) (err error) {
	const op = "delete_flashcard_set"
	start := time.Now()
	defer func() { observe(op, start, err) }()

	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParams(map[string]string{"uid": userID, "sid": setID}).
		Delete("/flashcard_set/{uid}/{sid}")
	return checkStatus(op, resp, err)
}
