package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/studyai/internal/apperr"
	"github.com/starford/studyai/internal/models"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL)
}

func writeBody(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func sampleCapture() models.Capture {
	return models.Capture{Title: "Cells", Body: strings.Repeat("mitochondria ", 30), Source: models.SourceText}
}

func TestSummarizeRaw_SendsMultipartFields(t *testing.T) {
	var got map[string]string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/summarize_raw", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		got = map[string]string{
			"content":      r.FormValue("content"),
			"user_id":      r.FormValue("user_id"),
			"title":        r.FormValue("title"),
			"summary_type": r.FormValue("summary_type"),
		}
		writeBody(w, http.StatusOK, `{"success":true,"summary_id":"sum-1","note_id":"note-1","summary":"short"}`)
	})

	cp := sampleCapture()
	res, err := c.SummarizeRaw(context.Background(), "u1", cp, "")
	require.NoError(t, err)

	assert.Equal(t, "sum-1", res.ID)
	assert.Equal(t, "note-1", res.NoteID)
	assert.Equal(t, "short", res.Summary)
	assert.Equal(t, cp.Body, got["content"])
	assert.Equal(t, "u1", got["user_id"])
	assert.Equal(t, "Cells", got["title"])
	assert.Equal(t, DefaultSummaryType, got["summary_type"])
}

func TestUploadPDF_SendsFilePart(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/upload_pdf", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		data, _ := io.ReadAll(f)
		assert.Equal(t, "notes.pdf", hdr.Filename)
		assert.Equal(t, "%PDF-1.4", string(data))
		assert.Equal(t, "brief", r.FormValue("summary_type"))
		writeBody(w, http.StatusOK, `{"success":true,"summary_id":"sum-pdf"}`)
	})

	cp := sampleCapture()
	cp.Source = models.SourcePDF
	cp.File = &models.Attachment{Name: "notes.pdf", Data: []byte("%PDF-1.4")}
	res, err := c.UploadPDF(context.Background(), "u1", cp, "brief")
	require.NoError(t, err)
	assert.Equal(t, "sum-pdf", res.ID)
}

func TestUploadPDF_RequiresFile(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		writeBody(w, http.StatusOK, `{}`)
	})
	_, err := c.UploadPDF(context.Background(), "u1", sampleCapture(), "")
	require.Error(t, err)
	assert.True(t, apperr.IsValidation(err))
	assert.Zero(t, calls)
}

func TestIngestOutcomes(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, res Success, err error)
	}{
		{
			name:   "failure prefers error",
			status: http.StatusOK,
			body:   `{"success":false,"error":"bad input","warning":"ignored"}`,
			check: func(t *testing.T, _ Success, err error) {
				var apiErr *apperr.APIError
				require.ErrorAs(t, err, &apiErr)
				assert.Equal(t, "bad input", apiErr.Message)
			},
		},
		{
			name:   "duplicate note surfaces warning",
			status: http.StatusOK,
			body:   `{"warning":"Note already existed.","success":false,"note_id":"n","summary_id":"s"}`,
			check: func(t *testing.T, _ Success, err error) {
				var apiErr *apperr.APIError
				require.ErrorAs(t, err, &apiErr)
				assert.Equal(t, "Note already existed.", apiErr.Message)
			},
		},
		{
			name:   "error without success field",
			status: http.StatusOK,
			body:   `{"error":"Content is empty."}`,
			check: func(t *testing.T, _ Success, err error) {
				var apiErr *apperr.APIError
				require.ErrorAs(t, err, &apiErr)
				assert.Equal(t, "Content is empty.", apiErr.Message)
			},
		},
		{
			name:   "generic fallback",
			status: http.StatusOK,
			body:   `{"success":false}`,
			check: func(t *testing.T, _ Success, err error) {
				var apiErr *apperr.APIError
				require.ErrorAs(t, err, &apiErr)
				assert.Equal(t, "unknown error", apiErr.Message)
			},
		},
		{
			name:   "success without id is ambiguous",
			status: http.StatusOK,
			body:   `{"success":true}`,
			check: func(t *testing.T, _ Success, err error) {
				assert.ErrorIs(t, err, apperr.ErrAmbiguousResponse)
				assert.False(t, apperr.IsAPI(err))
				assert.False(t, apperr.IsTransport(err))
			},
		},
		{
			name:   "id without success flag is not success",
			status: http.StatusOK,
			body:   `{"summary_id":"s"}`,
			check: func(t *testing.T, _ Success, err error) {
				assert.True(t, apperr.IsAPI(err))
			},
		},
		{
			name:   "warning on success is not surfaced",
			status: http.StatusOK,
			body:   `{"success":true,"summary_id":"s","warning":"slow model"}`,
			check: func(t *testing.T, res Success, err error) {
				require.NoError(t, err)
				assert.Equal(t, "s", res.ID)
			},
		},
		{
			name:   "undecodable body is transport",
			status: http.StatusOK,
			body:   `<html>oops</html>`,
			check: func(t *testing.T, _ Success, err error) {
				var te *apperr.TransportError
				require.ErrorAs(t, err, &te)
				assert.Equal(t, http.StatusOK, te.Status)
			},
		},
		{
			name:   "non-200 without json is transport",
			status: http.StatusBadGateway,
			body:   `upstream down`,
			check: func(t *testing.T, _ Success, err error) {
				var te *apperr.TransportError
				require.ErrorAs(t, err, &te)
				assert.Equal(t, http.StatusBadGateway, te.Status)
			},
		},
		{
			name:   "non-200 with detail is api",
			status: http.StatusNotFound,
			body:   `{"detail":"Summary not found"}`,
			check: func(t *testing.T, _ Success, err error) {
				var apiErr *apperr.APIError
				require.ErrorAs(t, err, &apiErr)
				assert.Equal(t, "Summary not found", apiErr.Message)
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeBody(w, tc.status, tc.body)
			})
			res, err := c.SummarizeRaw(context.Background(), "u1", sampleCapture(), "")
			tc.check(t, res, err)
		})
	}
}

func TestConnectionRefusedIsTransport(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := New(url).SummarizeRaw(context.Background(), "u1", sampleCapture(), "")
	var te *apperr.TransportError
	require.ErrorAs(t, err, &te)
	assert.Zero(t, te.Status)
	assert.Equal(t, "summarize_raw", te.Op)
}

func TestDeleteSummary(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/delete_summary/u1/sum-1", r.URL.Path)
		writeBody(w, http.StatusOK, `{"success":true,"message":"Deleted","note_id":"note-1"}`)
	})
	noteID, err := c.DeleteSummary(context.Background(), "u1", "sum-1")
	require.NoError(t, err)
	assert.Equal(t, "note-1", noteID)
}

func TestGenerateFlashcards_TwoRoundTrips(t *testing.T) {
	var genReq GenerateRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/generate_flashcards":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&genReq))
			writeBody(w, http.StatusOK, `{"success":true,"set_id":"abc","count":1}`)
		case r.Method == http.MethodGet && r.URL.Path == "/flashcard_set/u1/abc":
			writeBody(w, http.StatusOK, `{"id":"abc","name":"Bio","note_id":"n1","flashcards":[{"id":"1","question":"Q","answer":"A"}]}`)
		default:
			http.NotFound(w, r)
		}
	})

	res, err := c.GenerateFlashcards(context.Background(), GenerateRequest{
		Content: "content", UserID: "u1", SetName: "Bio", NoteID: "n1",
	})
	require.NoError(t, err)
	assert.Equal(t, "abc", res.ID)
	assert.Equal(t, "Bio", genReq.SetName)
	assert.Equal(t, "n1", genReq.NoteID)

	detail, err := c.GetFlashcardSet(context.Background(), "u1", res.ID)
	require.NoError(t, err)
	require.Len(t, detail.Flashcards, 1)
	assert.Equal(t, "Q", detail.Flashcards[0].Question)
	assert.Equal(t, "n1", detail.NoteID)
}

func TestGenerateFlashcards_Failure(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeBody(w, http.StatusOK, `{"success":false,"error":"bad input"}`)
	})
	_, err := c.GenerateFlashcards(context.Background(), GenerateRequest{Content: "x", UserID: "u1", SetName: "s"})
	var apiErr *apperr.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "bad input", apiErr.Message)
}

func TestUpdateFlashcardSet_PutsFullList(t *testing.T) {
	var cards []models.Flashcard
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/flashcard_set/u1/set-1", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&cards))
		writeBody(w, http.StatusOK, `{"success":true}`)
	})
	err := c.UpdateFlashcardSet(context.Background(), "u1", "set-1", []models.Flashcard{
		{ID: "1", Question: "Q1", Answer: "A1"},
		{ID: "2", Question: "Q2", Answer: "A2"},
	})
	require.NoError(t, err)
	require.Len(t, cards, 2)
	assert.Equal(t, "2", cards[1].ID)
}

func TestListFlashcardSets(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/flashcard_sets/u1", r.URL.Path)
		writeBody(w, http.StatusOK, `{"success":true,"sets":[{"id":"s1","name":"Chapter 1","flashcardCount":3,"createdAt":"2025-01-01"}]}`)
	})
	sets, err := c.ListFlashcardSets(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, sets, 1)
	assert.Equal(t, "Chapter 1", sets[0].Name)
	assert.Equal(t, 3, sets[0].FlashcardCount)
}

func TestCreateFlashcardSet(t *testing.T) {
	var req CreateSetRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		writeBody(w, http.StatusOK, `{"success":true,"set_id":"new-set"}`)
	})
	id, err := c.CreateFlashcardSet(context.Background(), CreateSetRequest{
		UserID:     "u1",
		SetName:    "Manual",
		Flashcards: []models.Flashcard{{ID: "c1", Question: "Q", Answer: "A"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "new-set", id)
	require.Len(t, req.Flashcards, 1)
	assert.Equal(t, "c1", req.Flashcards[0].ID)
}

func TestDeleteFlashcardSet_NotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeBody(w, http.StatusNotFound, `{"detail":"Set not found"}`)
	})
	err := c.DeleteFlashcardSet(context.Background(), "u1", "gone")
	require.Error(t, err)
	assert.True(t, apperr.IsAPI(err))
	assert.False(t, errors.Is(err, apperr.ErrAmbiguousResponse))
}
