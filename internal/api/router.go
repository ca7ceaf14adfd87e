package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/studyai/internal/auth"
	"github.com/starford/studyai/internal/capture"
	"github.com/starford/studyai/internal/flashcards"
	"github.com/starford/studyai/internal/persist"
	"github.com/starford/studyai/internal/summaries"
)

// Deps are the services the API routes call into.
type Deps struct {
	Persist    *persist.Adapter
	Summaries  *summaries.Service
	View       *summaries.View
	Flashcards *flashcards.Workflow
	Outbox     Outbox
	PDF        capture.Extractor
	// Users resolves the owner of flashcard and voice sessions. Nil means
	// only the X-User-ID header identifies a user.
	Users auth.Provider

	AuthEnabled bool
	Token       string
	// Events, if non-nil, is mounted at GET /events inside the auth group.
	Events http.Handler
}

// NewRouter creates a chi router with all API routes mounted.
func NewRouter(d Deps) chi.Router {
	h := NewHandler(d)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(d.AuthEnabled, d.Token))
	r.Use(UserMiddleware)

	// Captures.
	r.Post("/captures", h.CreateCapture)
	r.Post("/captures/pdf", h.UploadPDF)

	// Summaries and notes.
	r.Get("/summaries", h.ListSummaries)
	r.Get("/summaries/view", h.SummaryView)
	r.Get("/summaries/{id}", h.GetSummary)
	r.Delete("/summaries/{id}", h.DeleteSummary)
	r.Get("/notes/{id}", h.GetNote)
	r.Put("/notes/{id}", h.UpdateNote)
	r.Put("/notes/{id}/summary", h.UpdateNoteSummary)

	// Search.
	r.Get("/search", h.Search)

	// Flashcards.
	r.Route("/flashcards", func(r chi.Router) {
		r.Get("/sets", h.ListSets)
		r.Post("/sets", h.CreateSet)
		r.Get("/sets/{id}", h.GetSet)
		r.Delete("/sets/{id}", h.DeleteSet)
		r.Post("/sets/{id}/review", h.ReviewSet)

		r.Post("/sessions", h.CreateSession)
		r.Get("/sessions/{sid}", h.GetSession)
		r.Delete("/sessions/{sid}", h.CloseSession)
		r.Post("/sessions/{sid}/generate", h.GenerateSession)
		r.Post("/sessions/{sid}/next", h.NextCard)
		r.Post("/sessions/{sid}/prev", h.PrevCard)
		r.Post("/sessions/{sid}/flip", h.FlipCard)
		r.Put("/sessions/{sid}/cards/{cid}", h.EditCard)
		r.Delete("/sessions/{sid}/cards/{cid}", h.DeleteCard)
	})

	// Voice recordings.
	r.Route("/voice", func(r chi.Router) {
		r.Post("/sessions", h.CreateVoiceSession)
		r.Get("/sessions/{vid}", h.GetVoiceSession)
		r.Delete("/sessions/{vid}", h.DiscardVoiceSession)
		r.Post("/sessions/{vid}/start", h.StartRecording)
		r.Post("/sessions/{vid}/pause", h.PauseRecording)
		r.Post("/sessions/{vid}/resume", h.ResumeRecording)
		r.Post("/sessions/{vid}/stop", h.StopRecording)
		r.Post("/sessions/{vid}/partial", h.FeedPartial)
		r.Post("/sessions/{vid}/level", h.ObserveLevel)
		r.Post("/sessions/{vid}/finish", h.FinishRecording)
	})

	// Mirror outbox.
	if d.Outbox != nil {
		r.Get("/outbox", h.OutboxStats)
		r.Post("/outbox/requeue", h.RequeueOutbox)
	}

	// SSE endpoint (protected by same auth middleware).
	if d.Events != nil {
		r.Get("/events", d.Events.ServeHTTP)
	}

	return r
}
