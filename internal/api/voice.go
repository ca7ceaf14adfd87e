package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/studyai/internal/capture"
)

// voiceSession pairs a recording with the recognizer its device feeds.
type voiceSession struct {
	sess *capture.VoiceSession
	rec  *capture.RelayRecognizer
}

func (v *voiceSession) response(id string) VoiceSessionResponse {
	return VoiceSessionResponse{ID: id, VoiceSnapshot: v.sess.Snapshot()}
}

// CreateVoiceSession handles POST /api/voice/sessions. The recording starts
// idle.
func (h *Handler) CreateVoiceSession(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.owner(w, r)
	if !ok {
		return
	}
	rec := capture.NewRelayRecognizer()
	v := &voiceSession{sess: capture.NewVoiceSession(rec), rec: rec}
	id := h.voice.add(uid, v)
	writeJSON(w, http.StatusCreated, v.response(id))
}

// GetVoiceSession handles GET /api/voice/sessions/{vid}.
func (h *Handler) GetVoiceSession(w http.ResponseWriter, r *http.Request) {
	id, v, ok := h.voiceSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, v.response(id))
}

// DiscardVoiceSession handles DELETE /api/voice/sessions/{vid}. The recording
// is dropped without saving anything.
func (h *Handler) DiscardVoiceSession(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.owner(w, r)
	if !ok {
		return
	}
	v, ok := h.voice.remove(uid, chi.URLParam(r, "vid"))
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody("session not found"))
		return
	}
	v.sess.Reset()
	w.WriteHeader(http.StatusNoContent)
}

// StartRecording handles POST /api/voice/sessions/{vid}/start.
func (h *Handler) StartRecording(w http.ResponseWriter, r *http.Request) {
	// The recognizer outlives this request.
	ctx := context.WithoutCancel(r.Context())
	h.transition(w, r, "start recording", func(s *capture.VoiceSession) error { return s.Start(ctx) })
}

// PauseRecording handles POST /api/voice/sessions/{vid}/pause.
func (h *Handler) PauseRecording(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "pause recording", (*capture.VoiceSession).Pause)
}

// ResumeRecording handles POST /api/voice/sessions/{vid}/resume.
func (h *Handler) ResumeRecording(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "resume recording", (*capture.VoiceSession).Resume)
}

// StopRecording handles POST /api/voice/sessions/{vid}/stop.
func (h *Handler) StopRecording(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "stop recording", (*capture.VoiceSession).Stop)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, op string, fn func(*capture.VoiceSession) error) {
	id, v, ok := h.voiceSession(w, r)
	if !ok {
		return
	}
	if err := fn(v.sess); err != nil {
		writeError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, v.response(id))
}

// FeedPartial handles POST /api/voice/sessions/{vid}/partial. The text
// replaces the transcript while recording; the session applies it
// asynchronously, so the response carries no state.
//
//	@Summary		Deliver a running transcription
//	@Tags			voice
//	@Accept			json
//	@Param			vid		path	string			true	"Voice session id"
//	@Param			body	body	PartialRequest	true	"Latest best transcription"
//	@Success		202
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/voice/sessions/{vid}/partial [post]
func (h *Handler) FeedPartial(w http.ResponseWriter, r *http.Request) {
	_, v, ok := h.voiceSession(w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxCaptureBytes)
	var req PartialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := v.rec.Feed(req.Text); err != nil {
		writeError(w, "feed transcription", err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// ObserveLevel handles POST /api/voice/sessions/{vid}/level and returns the
// meter intensity for the buffer.
func (h *Handler) ObserveLevel(w http.ResponseWriter, r *http.Request) {
	_, v, ok := h.voiceSession(w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxCaptureBytes)
	var req LevelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]float64{"level": v.sess.ObserveBuffer(req.Samples)})
}

// FinishRecording handles POST /api/voice/sessions/{vid}/finish. A stopped
// recording is titled and saved; on success the session is closed.
//
//	@Summary		Title and save a stopped recording
//	@Tags			voice
//	@Accept			json
//	@Produce		json
//	@Param			vid		path		string				true	"Voice session id"
//	@Param			body	body		FinishVoiceRequest	true	"Title and save options"
//	@Success		201		{object}	SavedResponse
//	@Failure		409		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Failure		502		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/voice/sessions/{vid}/finish [post]
func (h *Handler) FinishRecording(w http.ResponseWriter, r *http.Request) {
	id, v, ok := h.voiceSession(w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxCaptureBytes)
	var req FinishVoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if !validMode(req.Mode) {
		writeJSON(w, http.StatusBadRequest, errorBody(fmt.Sprintf("unknown mode %q", req.Mode)))
		return
	}

	cp, err := v.sess.Finish(req.Title)
	if err != nil {
		writeError(w, "finish recording", err)
		return
	}
	cp.SummaryType = req.SummaryType
	saved, err := h.save(r.Context(), req.Mode, cp, false)
	if err != nil {
		writeError(w, "save recording", err)
		return
	}

	if uid, err := h.users.CurrentUser(r.Context()); err == nil {
		h.voice.remove(uid, id)
	}
	v.sess.Reset()
	writeJSON(w, http.StatusCreated, saved)
}

func (h *Handler) voiceSession(w http.ResponseWriter, r *http.Request) (string, *voiceSession, bool) {
	uid, ok := h.owner(w, r)
	if !ok {
		return "", nil, false
	}
	id := chi.URLParam(r, "vid")
	v, ok := h.voice.get(uid, id)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody("session not found"))
		return "", nil, false
	}
	return id, v, true
}
