// Package models defines the domain types for studyai.
package models

import (
	"strings"
	"unicode/utf8"
)

// MinCaptureLength is the minimum number of characters a voice, PDF or pasted
// capture must carry before it may be sent to the backend.
const MinCaptureLength = 300

// SourceKind identifies which capture source produced a note.
type SourceKind string

// Capture sources.
const (
	SourceText  SourceKind = "text"
	SourceVoice SourceKind = "voice"
	SourcePDF   SourceKind = "pdf"
)

// Valid reports whether k is one of the known capture sources.
func (k SourceKind) Valid() bool {
	switch k {
	case SourceText, SourceVoice, SourcePDF:
		return true
	}
	return false
}

// Capture is raw user input prior to backend processing. It lives only as long
// as the screen that produced it.
type Capture struct {
	Title  string      `json:"title"`
	Body   string      `json:"body"`
	Source SourceKind  `json:"source"`
	File   *Attachment `json:"-"`

	// SummaryType overrides the configured summary_type for this capture.
	SummaryType string `json:"summary_type,omitempty"`
}

// Attachment is the original file behind a capture (the imported PDF).
type Attachment struct {
	Name string
	Data []byte
}

// CharCount returns the number of characters in the body.
func (c Capture) CharCount() int {
	return utf8.RuneCountInString(c.Body)
}

// TrimmedCharCount returns the number of characters in the body ignoring
// leading and trailing whitespace.
func (c Capture) TrimmedCharCount() int {
	return utf8.RuneCountInString(strings.TrimSpace(c.Body))
}
