package models

import "time"

// Note is a captured note as held by the document store
// (users/{uid}/notes/{noteId}).
type Note struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Content   string     `json:"content"`
	Source    SourceKind `json:"source"`
	Summary   string     `json:"summary,omitempty"`
	SummaryID string     `json:"summary_id,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// Summary is a generated summary (users/{uid}/summaries/{summaryId}).
// NoteID is a back-reference, not ownership: several summaries may point at
// the same note. BackendID is set when the client chose ID itself and the
// backend knows the summary under another id.
type Summary struct {
	ID        string    `json:"id"`
	NoteID    string    `json:"note_id"`
	Summary   string    `json:"summary"`
	Title     string    `json:"title,omitempty"`
	BackendID string    `json:"backend_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
