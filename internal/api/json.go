package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/starford/studyai/internal/apperr"
	"github.com/starford/studyai/internal/capture"
	"github.com/starford/studyai/internal/flashcards"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

type errResponse struct {
	Error string `json:"error" validate:"required"`
	Field string `json:"field,omitempty"`
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}

// writeError maps the error taxonomy onto HTTP statuses. Backend messages are
// passed through so the client can show them verbatim.
func writeError(w http.ResponseWriter, op string, err error) {
	var (
		ve   *apperr.ValidationError
		api  *apperr.APIError
		conf *apperr.ConflictError
	)
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusUnprocessableEntity, errResponse{Error: ve.Reason, Field: ve.Field})
	case apperr.IsAuth(err):
		writeJSON(w, http.StatusUnauthorized, errorBody(err.Error()))
	case errors.As(err, &conf):
		writeJSON(w, http.StatusConflict, errorBody(conf.Error()))
	case errors.Is(err, apperr.ErrConflict):
		writeJSON(w, http.StatusConflict, errorBody("checksum mismatch"))
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, capture.ErrUnreadablePDF):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody(capture.ErrUnreadablePDF.Error()))
	case errors.Is(err, capture.ErrInvalidTransition), errors.Is(err, capture.ErrRecognizerStopped):
		writeJSON(w, http.StatusConflict, errorBody(err.Error()))
	case errors.Is(err, flashcards.ErrNotReviewing):
		writeJSON(w, http.StatusConflict, errorBody(err.Error()))
	case errors.As(err, &api):
		writeJSON(w, http.StatusBadGateway, errorBody(api.Message))
	case errors.Is(err, apperr.ErrAmbiguousResponse):
		slog.Warn(op+" failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadGateway, errorBody("invalid backend response"))
	case apperr.IsTransport(err):
		slog.Warn(op+" failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusServiceUnavailable, errorBody(err.Error()))
	default:
		slog.Error(op+" failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}
