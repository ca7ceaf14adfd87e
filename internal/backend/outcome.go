package backend

import (
	"github.com/starford/studyai/internal/apperr"
)

// envelope is the full schema the backend may return from an ingest or
// generation call. Every field is optional on the wire.
type envelope struct {
	Success   *bool  `json:"success"`
	SummaryID string `json:"summary_id"`
	SetID     string `json:"set_id"`
	NoteID    string `json:"note_id"`
	Summary   string `json:"summary"`
	Count     int    `json:"count"`
	Error     string `json:"error"`
	Warning   string `json:"warning"`
}

// Outcome is the decoded result of an ingest or generation call. It is either
// Success or Failure.
type Outcome interface {
	outcome()
}

// Success carries the identifier the backend created. ID is the summary id
// for ingestion and the set id for flashcard generation.
type Success struct {
	ID      string
	NoteID  string
	Summary string
	Count   int
	Warning string
}

// Failure is a well-formed response that reports a logical failure.
type Failure struct {
	Reason string
}

func (Success) outcome() {}
func (Failure) outcome() {}

const unknownFailure = "unknown error"

// decodeOutcome classifies an envelope. id selects the field that success
// requires (summary_id or set_id). A payload that claims success without an
// id is rejected with apperr.ErrAmbiguousResponse.
func decodeOutcome(env envelope, id string) (Outcome, error) {
	if env.Success != nil && *env.Success {
		if id == "" {
			return nil, apperr.ErrAmbiguousResponse
		}
		return Success{
			ID:      id,
			NoteID:  env.NoteID,
			Summary: env.Summary,
			Count:   env.Count,
			Warning: env.Warning,
		}, nil
	}
	switch {
	case env.Error != "":
		return Failure{Reason: env.Error}, nil
	case env.Warning != "":
		return Failure{Reason: env.Warning}, nil
	default:
		return Failure{Reason: unknownFailure}, nil
	}
}

// resolve turns an Outcome into a Success or an APIError, logging soft
// warnings that accompany a success.
func (c *Client) resolve(op string, out Outcome) (Success, error) {
	switch o := out.(type) {
	case Success:
		if o.Warning != "" {
			c.logger.Warn("backend: warning on success", "op", op, "id", o.ID, "warning", o.Warning)
		}
		return o, nil
	case Failure:
		return Success{}, &apperr.APIError{Message: o.Reason}
	default:
		return Success{}, apperr.ErrAmbiguousResponse
	}
}
