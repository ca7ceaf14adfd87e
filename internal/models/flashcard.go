package models

// Flashcard is a single question/answer card. Identity is by ID: client UUIDs
// for manually authored cards, server ids for generated ones.
type Flashcard struct {
	ID       string `json:"id"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// FlashcardSet is a lightweight set representation returned by list calls.
type FlashcardSet struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	NoteID         string `json:"noteId,omitempty"`
	NoteTitle      string `json:"noteTitle,omitempty"`
	FlashcardCount int    `json:"flashcardCount"`
	CreatedAt      string `json:"createdAt"`
}

// FlashcardSetDetail is a set together with its cards.
type FlashcardSetDetail struct {
	ID         string      `json:"id"`
	Name       string      `json:"name,omitempty"`
	NoteID     string      `json:"note_id,omitempty"`
	NoteTitle  string      `json:"note_title,omitempty"`
	Flashcards []Flashcard `json:"flashcards"`
	CreatedAt  string      `json:"created_at,omitempty"`
}

// IndexOf returns the position of the card with the given id, or -1.
func (d *FlashcardSetDetail) IndexOf(id string) int {
	for i, c := range d.Flashcards {
		if c.ID == id {
			return i
		}
	}
	return -1
}
