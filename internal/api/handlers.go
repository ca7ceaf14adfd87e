package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/studyai/internal/auth"
	"github.com/starford/studyai/internal/capture"
	"github.com/starford/studyai/internal/flashcards"
	"github.com/starford/studyai/internal/outbox"
	"github.com/starford/studyai/internal/persist"
	"github.com/starford/studyai/internal/summaries"
)

// Outbox exposes the mirror queue for operators.
type Outbox interface {
	Stats(ctx context.Context) (outbox.Stats, error)
	Requeue(ctx context.Context) (int64, error)
}

// Handler holds API route handlers.
type Handler struct {
	persist    *persist.Adapter
	summaries  *summaries.Service
	view       *summaries.View
	flashcards *flashcards.Workflow
	outbox     Outbox
	pdf        capture.Extractor
	users      auth.Provider
	sessions   *sessionStore[*flashcards.Session]
	voice      *sessionStore[*voiceSession]
}

// NewHandler creates a new Handler from the router dependencies.
func NewHandler(d Deps) *Handler {
	users := d.Users
	if users == nil {
		users = auth.Resolver{}
	}
	return &Handler{
		persist:    d.Persist,
		summaries:  d.Summaries,
		view:       d.View,
		flashcards: d.Flashcards,
		outbox:     d.Outbox,
		pdf:        d.PDF,
		users:      users,
		sessions:   newSessionStore[*flashcards.Session](nil),
		voice:      newSessionStore(func(v *voiceSession) { v.sess.Reset() }),
	}
}

// ListSummaries handles GET /api/summaries.
//
//	@Summary		List summaries, newest first
//	@Tags			summaries
//	@Produce		json
//	@Success		200	{object}	SummaryListResponse
//	@Security		BearerAuth
//	@Router			/summaries [get]
func (h *Handler) ListSummaries(w http.ResponseWriter, r *http.Request) {
	items, err := h.summaries.List(r.Context())
	if err != nil {
		writeError(w, "list summaries", err)
		return
	}
	if items == nil {
		items = []summaries.ListItem{}
	}
	writeJSON(w, http.StatusOK, SummaryListResponse{Summaries: items})
}

// SummaryView handles GET /api/summaries/view. It returns the list as the
// mounted view sees it, including the currently highlighted row.
func (h *Handler) SummaryView(w http.ResponseWriter, r *http.Request) {
	if h.view == nil {
		writeJSON(w, http.StatusNotFound, errorBody("summary view is not running"))
		return
	}
	writeJSON(w, http.StatusOK, h.view.Snapshot())
}

// GetSummary handles GET /api/summaries/{id}.
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	s, err := h.summaries.Summary(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "get summary", err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// DeleteSummary handles DELETE /api/summaries/{id}.
//
//	@Summary		Delete a summary and its note
//	@Tags			summaries
//	@Param			id	path	string	true	"Summary id"
//	@Success		204	"Summary deleted"
//	@Failure		502	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/summaries/{id} [delete]
func (h *Handler) DeleteSummary(w http.ResponseWriter, r *http.Request) {
	if err := h.persist.DeleteSummary(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, "delete summary", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetNote handles GET /api/notes/{id}.
//
//	@Summary		Get a note with its primary summary and history
//	@Tags			notes
//	@Produce		json
//	@Param			id	path		string	true	"Note id"
//	@Success		200	{object}	summaries.NoteDetail
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [get]
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	d, err := h.summaries.Note(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "get note", err)
		return
	}
	w.Header().Set("ETag", `"`+d.Checksum+`"`)
	writeJSON(w, http.StatusOK, d)
}

// UpdateNote handles PUT /api/notes/{id}.
//
//	@Summary		Update a note with optimistic concurrency
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			id			path		string				true	"Note id"
//	@Param			If-Match	header		string				false	"SHA-256 checksum for optimistic concurrency"
//	@Param			body		body		UpdateNoteRequest	true	"Updated note"
//	@Success		200			{object}	summaries.NoteDetail
//	@Failure		404			{object}	errResponse
//	@Failure		409			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [put]
func (h *Handler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxCaptureBytes)
	var req UpdateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}

	// Strip surrounding quotes if present (standard ETag format).
	ifMatch := strings.Trim(r.Header.Get("If-Match"), `"`)

	d, err := h.summaries.UpdateNote(r.Context(), chi.URLParam(r, "id"), req.Title, req.Content, ifMatch)
	if err != nil {
		writeError(w, "update note", err)
		return
	}
	w.Header().Set("ETag", `"`+d.Checksum+`"`)
	writeJSON(w, http.StatusOK, d)
}

// UpdateNoteSummary handles PUT /api/notes/{id}/summary.
func (h *Handler) UpdateNoteSummary(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxCaptureBytes)
	var req UpdateSummaryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	d, err := h.summaries.UpdateSummary(r.Context(), chi.URLParam(r, "id"), req.Summary)
	if err != nil {
		writeError(w, "update summary", err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across notes and summaries
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	map[string]any
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.summaries.Search(r.Context(), r.URL.Query().Get("q"), limit)
	if err != nil {
		writeError(w, "search", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"results": results,
	})
}

// OutboxStats handles GET /api/outbox.
func (h *Handler) OutboxStats(w http.ResponseWriter, r *http.Request) {
	st, err := h.outbox.Stats(r.Context())
	if err != nil {
		writeError(w, "outbox stats", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// RequeueOutbox handles POST /api/outbox/requeue. Parked jobs become pending
// again and are retried on the worker's next pass.
func (h *Handler) RequeueOutbox(w http.ResponseWriter, r *http.Request) {
	n, err := h.outbox.Requeue(r.Context())
	if err != nil {
		writeError(w, "requeue outbox", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"requeued": n})
}

// owner resolves the user a session belongs to. It writes the error response
// and reports false when no user is available.
func (h *Handler) owner(w http.ResponseWriter, r *http.Request) (string, bool) {
	uid, err := h.users.CurrentUser(r.Context())
	if err != nil {
		writeError(w, "resolve user", err)
		return "", false
	}
	return uid, true
}
