package mcpserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/studyai/internal/artifact"
	"github.com/starford/studyai/internal/auth"
	"github.com/starford/studyai/internal/backend"
	"github.com/starford/studyai/internal/docstore"
	"github.com/starford/studyai/internal/flashcards"
	"github.com/starford/studyai/internal/models"
	"github.com/starford/studyai/internal/outbox"
	"github.com/starford/studyai/internal/persist"
	"github.com/starford/studyai/internal/summaries"
	"github.com/starford/studyai/internal/testutil"
)

// stubBackend answers every call with canned data.
type stubBackend struct {
	mu    sync.Mutex
	n     int
	calls int
	sets  map[string]*models.FlashcardSetDetail
}

func (b *stubBackend) SummarizeRaw(_ context.Context, _ string, cp models.Capture, _ string) (backend.Success, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	b.n++
	return backend.Success{ID: fmt.Sprintf("sum-%d", b.n), NoteID: fmt.Sprintf("note-%d", b.n), Summary: "summary of " + cp.Title}, nil
}

func (b *stubBackend) UploadPDF(ctx context.Context, uid string, cp models.Capture, st string) (backend.Success, error) {
	return b.SummarizeRaw(ctx, uid, cp, st)
}

func (b *stubBackend) DeleteSummary(context.Context, string, string) (string, error) { return "", nil }

func (b *stubBackend) GenerateFlashcards(_ context.Context, req backend.GenerateRequest) (backend.Success, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sets["gen-1"] = &models.FlashcardSetDetail{ID: "gen-1", Flashcards: []models.Flashcard{{ID: "1", Question: "Q", Answer: "A"}}}
	return backend.Success{ID: "gen-1"}, nil
}

func (b *stubBackend) CreateFlashcardSet(context.Context, backend.CreateSetRequest) (string, error) {
	return "", nil
}

func (b *stubBackend) ListFlashcardSets(context.Context, string) ([]models.FlashcardSet, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []models.FlashcardSet
	for _, s := range b.sets {
		out = append(out, models.FlashcardSet{ID: s.ID, Name: s.Name, FlashcardCount: len(s.Flashcards)})
	}
	return out, nil
}

func (b *stubBackend) GetFlashcardSet(_ context.Context, _ string, id string) (*models.FlashcardSetDetail, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := *b.sets[id]
	return &s, nil
}

func (b *stubBackend) UpdateFlashcardSet(context.Context, string, string, []models.Flashcard) error {
	return nil
}

func (b *stubBackend) DeleteFlashcardSet(context.Context, string, string) error { return nil }

type pageExtractor struct{ text string }

func (p pageExtractor) ExtractPages(io.ReaderAt, int64) ([]string, error) {
	return []string{p.text}, nil
}

func testServer(t *testing.T) (*Server, *stubBackend, *docstore.DB) {
	t.Helper()
	db := testutil.TestDB(t)
	q, err := outbox.NewQueue(db.Conn())
	if err != nil {
		t.Fatal(err)
	}
	broker := artifact.NewBroker()
	t.Cleanup(broker.Close)

	be := &stubBackend{sets: map[string]*models.FlashcardSetDetail{}}
	users := auth.Static("u1")
	srv := New(
		persist.New(users, be, db, q, broker),
		summaries.NewService(db, users),
		flashcards.NewWorkflow(be, db, users, broker, nil),
		pageExtractor{text: strings.Repeat("chlorophyll absorbs light ", 20)},
	)
	srv.fetch = func(context.Context, string) ([]byte, error) {
		return []byte("%PDF-1.7 remote"), nil
	}
	return srv, be, db
}

func callTool(t *testing.T, srv *Server, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no direct "call tool" test helper, so the handlers are
	// invoked directly.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "summarize_text":
		result, err = srv.summarizeText(ctx, req)
	case "summarize_pdf":
		result, err = srv.summarizePDF(ctx, req)
	case "list_summaries":
		result, err = srv.listSummaries(ctx, req)
	case "search_summaries":
		result, err = srv.searchSummaries(ctx, req)
	case "generate_flashcards":
		result, err = srv.generateFlashcards(ctx, req)
	case "list_flashcard_sets":
		result, err = srv.listFlashcardSets(ctx, req)
	case "get_capture_contract":
		result, err = srv.getCaptureContract(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestSummarizeText(t *testing.T) {
	srv, _, _ := testServer(t)

	r := callTool(t, srv, "summarize_text", map[string]any{
		"title": "Cells",
		"body":  "The cell is the unit of life.",
	})
	if r.IsError {
		t.Fatalf("error: %s", resultText(r))
	}
	var saved persist.Saved
	if err := json.Unmarshal([]byte(resultText(r)), &saved); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if saved.SummaryID != "sum-1" || saved.Summary != "summary of Cells" {
		t.Errorf("saved = %+v", saved)
	}
}

func TestSummarizeText_GateRunsBeforeBackend(t *testing.T) {
	srv, be, _ := testServer(t)

	r := callTool(t, srv, "summarize_text", map[string]any{
		"title":  "Memo",
		"body":   "short transcript",
		"source": "voice",
	})
	if !r.IsError || !strings.Contains(resultText(r), "at least 300") {
		t.Errorf("result = %q, want min-length error", resultText(r))
	}
	if be.calls != 0 {
		t.Errorf("backend called %d times for a rejected capture", be.calls)
	}
}

func TestSummarizeText_UnknownSource(t *testing.T) {
	srv, _, _ := testServer(t)
	r := callTool(t, srv, "summarize_text", map[string]any{"title": "T", "body": "b", "source": "fax"})
	if !r.IsError {
		t.Error("expected error for unknown source")
	}
}

func TestSummarizePDF_DataURI(t *testing.T) {
	srv, _, _ := testServer(t)
	uri := "data:application/pdf;base64," + base64.StdEncoding.EncodeToString([]byte("%PDF-1.4 body"))

	r := callTool(t, srv, "summarize_pdf", map[string]any{"url": uri, "title": "Photosynthesis"})
	if r.IsError {
		t.Fatalf("error: %s", resultText(r))
	}
	if !strings.Contains(resultText(r), "summary of Photosynthesis") {
		t.Errorf("result = %s", resultText(r))
	}
}

func TestSummarizePDF_URLTitleFromFileName(t *testing.T) {
	srv, _, _ := testServer(t)
	r := callTool(t, srv, "summarize_pdf", map[string]any{"url": "https://example.com/papers/lecture-7.pdf"})
	if r.IsError {
		t.Fatalf("error: %s", resultText(r))
	}
	if !strings.Contains(resultText(r), "summary of lecture-7") {
		t.Errorf("result = %s", resultText(r))
	}
}

func TestSummarizePDF_RejectsNonPDF(t *testing.T) {
	srv, _, _ := testServer(t)
	uri := "data:application/pdf;base64," + base64.StdEncoding.EncodeToString([]byte("<html>nope</html>"))
	r := callTool(t, srv, "summarize_pdf", map[string]any{"url": uri})
	if !r.IsError || !strings.Contains(resultText(r), "not a PDF") {
		t.Errorf("result = %q", resultText(r))
	}

	r = callTool(t, srv, "summarize_pdf", map[string]any{"url": "data:image/png;base64,AAAA"})
	if !r.IsError {
		t.Error("expected error for non-PDF data URI")
	}
}

func TestListAndSearchSummaries(t *testing.T) {
	srv, _, db := testServer(t)
	ctx := context.Background()

	r := callTool(t, srv, "list_summaries", map[string]any{})
	if resultText(r) != "no summaries found" {
		t.Errorf("empty list = %q", resultText(r))
	}

	n := models.Note{ID: "n1", Title: "Enzymes", Content: "catalysts lower activation energy", SummaryID: "s1"}
	s := models.Summary{ID: "s1", NoteID: "n1", Summary: "enzymes speed reactions"}
	if err := db.UpsertPair(ctx, "u1", n, s); err != nil {
		t.Fatal(err)
	}

	r = callTool(t, srv, "list_summaries", map[string]any{})
	if !strings.Contains(resultText(r), `"id": "s1"`) {
		t.Errorf("list = %s", resultText(r))
	}

	r = callTool(t, srv, "search_summaries", map[string]any{"query": "catalysts", "limit": 5})
	if r.IsError || !strings.Contains(resultText(r), "n1") {
		t.Errorf("search = %s", resultText(r))
	}

	r = callTool(t, srv, "search_summaries", map[string]any{})
	if !r.IsError {
		t.Error("expected error for missing query")
	}
}

func TestGenerateFlashcards(t *testing.T) {
	srv, _, _ := testServer(t)

	r := callTool(t, srv, "generate_flashcards", map[string]any{
		"content":  "Mitosis has four phases.",
		"set_name": "Cell division",
	})
	if r.IsError {
		t.Fatalf("error: %s", resultText(r))
	}
	var set models.FlashcardSetDetail
	if err := json.Unmarshal([]byte(resultText(r)), &set); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if set.ID != "gen-1" || set.Name != "Cell division" || len(set.Flashcards) != 1 {
		t.Errorf("set = %+v", set)
	}

	r = callTool(t, srv, "list_flashcard_sets", map[string]any{})
	if !strings.Contains(resultText(r), "gen-1") {
		t.Errorf("sets = %s", resultText(r))
	}
}

func TestGetCaptureContract(t *testing.T) {
	srv, _, _ := testServer(t)
	r := callTool(t, srv, "get_capture_contract", map[string]any{})
	if resultText(r) != CaptureContract {
		t.Error("contract text mismatch")
	}
}

func TestCheckBlockedHost(t *testing.T) {
	for _, host := range []string{"127.0.0.1", "10.0.0.8", "169.254.169.254", "metadata.google.internal"} {
		if err := checkBlockedHost(host); err == nil {
			t.Errorf("%s should be blocked", host)
		}
	}
	if err := checkBlockedHost("93.184.216.34"); err != nil {
		t.Errorf("public address blocked: %v", err)
	}
}

func TestFilenameFromURL(t *testing.T) {
	if got := filenameFromURL("https://x.org/a/notes%20v2.pdf"); got != "notes_v2.pdf" {
		t.Errorf("got %q", got)
	}
	if got := filenameFromURL("https://x.org/download?id=3"); got != "download.pdf" {
		t.Errorf("got %q", got)
	}
}
