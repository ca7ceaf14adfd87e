package api

import (
	"github.com/starford/studyai/internal/capture"
	"github.com/starford/studyai/internal/flashcards"
	"github.com/starford/studyai/internal/models"
	"github.com/starford/studyai/internal/persist"
	"github.com/starford/studyai/internal/summaries"
)

// Save modes accepted by CaptureRequest.Mode.
const (
	ModeServerAtomic = "server_atomic"
	ModeDualWrite    = "dual_write"
)

// CaptureRequest is the request body for submitting a text or voice capture.
type CaptureRequest struct {
	Title       string            `json:"title" example:"Lecture 3" validate:"required"`
	Body        string            `json:"body" validate:"required"`
	Source      models.SourceKind `json:"source" example:"text" enums:"text,voice"`
	SummaryType string            `json:"summary_type,omitempty" example:"detailed"`
	Mode        string            `json:"mode,omitempty" example:"server_atomic" enums:"server_atomic,dual_write"`
	// Long applies the paste gate (at least 300 characters) to text captures.
	Long bool `json:"long,omitempty"`
}

// Capture converts the request into a domain capture.
func (r CaptureRequest) Capture() models.Capture {
	src := r.Source
	if src == "" {
		src = models.SourceText
	}
	return models.Capture{Title: r.Title, Body: r.Body, Source: src, SummaryType: r.SummaryType}
}

// SavedResponse is returned after a capture was persisted.
type SavedResponse = persist.Saved

// UpdateNoteRequest is the request body for editing a note.
type UpdateNoteRequest struct {
	Title   string `json:"title" example:"Cell biology" validate:"required"`
	Content string `json:"content"`
}

// UpdateSummaryRequest is the request body for editing a note's primary summary.
type UpdateSummaryRequest struct {
	Summary string `json:"summary" validate:"required"`
}

// SummaryListResponse wraps the summaries list.
type SummaryListResponse struct {
	Summaries []summaries.ListItem `json:"summaries" validate:"required"`
}

// CreateSetRequest is the request body for a manually authored set.
type CreateSetRequest struct {
	SetName    string                 `json:"set_name" example:"Chapter 1" validate:"required"`
	Flashcards []flashcards.CardInput `json:"flashcards" validate:"required"`
	NoteID     string                 `json:"note_id,omitempty"`
	NoteTitle  string                 `json:"note_title,omitempty"`
}

// EditCardRequest is the request body for editing one card.
type EditCardRequest struct {
	Question string `json:"question" validate:"required"`
	Answer   string `json:"answer" validate:"required"`
}

// SessionResponse identifies a review session and carries its state.
type SessionResponse struct {
	ID string `json:"id"`
	flashcards.Snapshot
}

// VoiceSessionResponse identifies a voice recording and carries its state.
type VoiceSessionResponse struct {
	ID string `json:"id"`
	capture.VoiceSnapshot
}

// PartialRequest carries the latest running transcription of a recording.
type PartialRequest struct {
	Text string `json:"text"`
}

// LevelRequest carries one captured audio buffer for the level meter.
type LevelRequest struct {
	Samples []float32 `json:"samples"`
}

// FinishVoiceRequest names a stopped recording and saves it.
type FinishVoiceRequest struct {
	Title       string `json:"title" example:"Lab debrief" validate:"required"`
	SummaryType string `json:"summary_type,omitempty" example:"detailed"`
	Mode        string `json:"mode,omitempty" example:"server_atomic" enums:"server_atomic,dual_write"`
}
