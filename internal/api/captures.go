package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/starford/studyai/internal/capture"
	"github.com/starford/studyai/internal/models"
	"github.com/starford/studyai/internal/persist"
)

const (
	maxCaptureBytes = 10 << 20
	maxUploadBytes  = 50 << 20 // 50 MB
)

// CreateCapture handles POST /api/captures.
//
//	@Summary		Submit a text or voice capture for summarization
//	@Tags			captures
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CaptureRequest	true	"Capture"
//	@Success		201		{object}	SavedResponse
//	@Failure		422		{object}	errResponse
//	@Failure		502		{object}	errResponse
//	@Failure		503		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/captures [post]
func (h *Handler) CreateCapture(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxCaptureBytes)
	var req CaptureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	cp := req.Capture()
	if cp.Source == models.SourcePDF {
		writeJSON(w, http.StatusBadRequest, errorBody("PDF captures are uploaded to /captures/pdf"))
		return
	}

	if !validMode(req.Mode) {
		writeJSON(w, http.StatusBadRequest, errorBody(fmt.Sprintf("unknown mode %q", req.Mode)))
		return
	}
	saved, err := h.save(r.Context(), req.Mode, cp, req.Long)
	if err != nil {
		writeError(w, "create capture", err)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

func validMode(mode string) bool {
	switch mode {
	case "", ModeServerAtomic, ModeDualWrite:
		return true
	}
	return false
}

// save persists cp with the requested write shape. Server-atomic is the default.
func (h *Handler) save(ctx context.Context, mode string, cp models.Capture, long bool) (persist.Saved, error) {
	if mode == ModeDualWrite {
		return h.persist.SaveDualWrite(ctx, cp, long)
	}
	return h.persist.SaveServerAtomic(ctx, cp, long)
}

// UploadPDF handles POST /api/captures/pdf (multipart/form-data, field
// "file", optional "title" and "summary_type").
func (h *Handler) UploadPDF(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return
	}
	defer file.Close()

	name, err := safeName(header.Filename)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read file"))
		return
	}

	title := strings.TrimSpace(r.FormValue("title"))
	if title == "" {
		title = strings.TrimSuffix(name, filepath.Ext(name))
	}
	cp, err := capture.ImportPDF(h.pdf, name, data, title)
	if err != nil {
		writeError(w, "import pdf", err)
		return
	}
	cp.SummaryType = r.FormValue("summary_type")

	saved, err := h.persist.SaveServerAtomic(r.Context(), cp, false)
	if err != nil {
		writeError(w, "upload pdf", err)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

// safeName validates that the filename is a plain PDF name (no path
// separators, no traversal).
func safeName(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("filename is required")
	}
	cleaned := filepath.Clean(name)
	if cleaned != filepath.Base(cleaned) || strings.Contains(cleaned, "..") {
		return "", fmt.Errorf("invalid filename: %s", name)
	}
	if !strings.EqualFold(filepath.Ext(cleaned), ".pdf") {
		return "", fmt.Errorf("only .pdf files are accepted")
	}
	return cleaned, nil
}
