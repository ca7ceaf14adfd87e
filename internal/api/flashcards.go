package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/studyai/internal/flashcards"
	"github.com/starford/studyai/internal/models"
)

// ListSets handles GET /api/flashcards/sets.
//
//	@Summary		List flashcard sets
//	@Tags			flashcards
//	@Produce		json
//	@Success		200	{object}	map[string]any
//	@Security		BearerAuth
//	@Router			/flashcards/sets [get]
func (h *Handler) ListSets(w http.ResponseWriter, r *http.Request) {
	sets, err := h.flashcards.ListSets(r.Context())
	if err != nil {
		writeError(w, "list flashcard sets", err)
		return
	}
	if sets == nil {
		sets = []models.FlashcardSet{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"flashcard_sets": sets})
}

// CreateSet handles POST /api/flashcards/sets.
//
//	@Summary		Create a set from manually authored cards
//	@Tags			flashcards
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateSetRequest	true	"Set to create"
//	@Success		201		{object}	models.FlashcardSetDetail
//	@Failure		409		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/flashcards/sets [post]
func (h *Handler) CreateSet(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxCaptureBytes)
	var req CreateSetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	d, err := h.flashcards.CreateManual(r.Context(), req.SetName, req.Flashcards, req.NoteID, req.NoteTitle)
	if err != nil {
		writeError(w, "create flashcard set", err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

// GetSet handles GET /api/flashcards/sets/{id}.
func (h *Handler) GetSet(w http.ResponseWriter, r *http.Request) {
	d, err := h.flashcards.GetSet(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "get flashcard set", err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// DeleteSet handles DELETE /api/flashcards/sets/{id}.
func (h *Handler) DeleteSet(w http.ResponseWriter, r *http.Request) {
	if err := h.flashcards.DeleteSet(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, "delete flashcard set", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ReviewSet handles POST /api/flashcards/sets/{id}/review. It opens a review
// session over an existing set.
func (h *Handler) ReviewSet(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.owner(w, r)
	if !ok {
		return
	}
	sess, err := h.flashcards.Open(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "open flashcard set", err)
		return
	}
	id := h.sessions.add(uid, sess)
	writeJSON(w, http.StatusCreated, SessionResponse{ID: id, Snapshot: sess.Snapshot()})
}

// CreateSession handles POST /api/flashcards/sessions. The new session is idle
// until content is submitted to its generate endpoint.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.owner(w, r)
	if !ok {
		return
	}
	sess := h.flashcards.NewSession()
	id := h.sessions.add(uid, sess)
	writeJSON(w, http.StatusCreated, SessionResponse{ID: id, Snapshot: sess.Snapshot()})
}

// GenerateSession handles POST /api/flashcards/sessions/{sid}/generate.
//
//	@Summary		Generate flashcards from note content
//	@Tags			flashcards
//	@Accept			json
//	@Produce		json
//	@Param			sid		path		string						true	"Session id"
//	@Param			body	body		flashcards.GenerateInput	true	"Content to generate from"
//	@Success		200		{object}	SessionResponse
//	@Failure		409		{object}	errResponse
//	@Failure		502		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/flashcards/sessions/{sid}/generate [post]
func (h *Handler) GenerateSession(w http.ResponseWriter, r *http.Request) {
	id, sess, ok := h.session(w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxCaptureBytes)
	var in flashcards.GenerateInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if _, err := sess.Generate(r.Context(), in); err != nil {
		writeError(w, "generate flashcards", err)
		return
	}
	writeJSON(w, http.StatusOK, SessionResponse{ID: id, Snapshot: sess.Snapshot()})
}

// GetSession handles GET /api/flashcards/sessions/{sid}.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	id, sess, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, SessionResponse{ID: id, Snapshot: sess.Snapshot()})
}

// CloseSession handles DELETE /api/flashcards/sessions/{sid}.
func (h *Handler) CloseSession(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.owner(w, r)
	if !ok {
		return
	}
	if _, ok := h.sessions.remove(uid, chi.URLParam(r, "sid")); !ok {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// NextCard handles POST /api/flashcards/sessions/{sid}/next.
func (h *Handler) NextCard(w http.ResponseWriter, r *http.Request) {
	h.navigate(w, r, (*flashcards.Session).Next)
}

// PrevCard handles POST /api/flashcards/sessions/{sid}/prev.
func (h *Handler) PrevCard(w http.ResponseWriter, r *http.Request) {
	h.navigate(w, r, (*flashcards.Session).Prev)
}

// FlipCard handles POST /api/flashcards/sessions/{sid}/flip.
func (h *Handler) FlipCard(w http.ResponseWriter, r *http.Request) {
	h.navigate(w, r, func(s *flashcards.Session) { s.Flip() })
}

func (h *Handler) navigate(w http.ResponseWriter, r *http.Request, move func(*flashcards.Session)) {
	id, sess, ok := h.session(w, r)
	if !ok {
		return
	}
	if sess.State() != flashcards.StateReviewing {
		writeError(w, "navigate", flashcards.ErrNotReviewing)
		return
	}
	move(sess)
	writeJSON(w, http.StatusOK, SessionResponse{ID: id, Snapshot: sess.Snapshot()})
}

// EditCard handles PUT /api/flashcards/sessions/{sid}/cards/{cid}.
//
//	@Summary		Edit one card of the reviewed set
//	@Tags			flashcards
//	@Accept			json
//	@Produce		json
//	@Param			sid		path		string			true	"Session id"
//	@Param			cid		path		string			true	"Card id"
//	@Param			body	body		EditCardRequest	true	"New question and answer"
//	@Success		200		{object}	SessionResponse
//	@Failure		404		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/flashcards/sessions/{sid}/cards/{cid} [put]
func (h *Handler) EditCard(w http.ResponseWriter, r *http.Request) {
	id, sess, ok := h.session(w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxCaptureBytes)
	var req EditCardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := sess.EditCard(r.Context(), chi.URLParam(r, "cid"), req.Question, req.Answer); err != nil {
		writeError(w, "edit flashcard", err)
		return
	}
	writeJSON(w, http.StatusOK, SessionResponse{ID: id, Snapshot: sess.Snapshot()})
}

// DeleteCard handles DELETE /api/flashcards/sessions/{sid}/cards/{cid}.
func (h *Handler) DeleteCard(w http.ResponseWriter, r *http.Request) {
	id, sess, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := sess.DeleteCard(r.Context(), chi.URLParam(r, "cid")); err != nil {
		writeError(w, "delete flashcard", err)
		return
	}
	writeJSON(w, http.StatusOK, SessionResponse{ID: id, Snapshot: sess.Snapshot()})
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (string, *flashcards.Session, bool) {
	uid, ok := h.owner(w, r)
	if !ok {
		return "", nil, false
	}
	id := chi.URLParam(r, "sid")
	sess, ok := h.sessions.get(uid, id)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody("session not found"))
		return "", nil, false
	}
	return id, sess, true
}
