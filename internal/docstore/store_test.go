package docstore

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/starford/studyai/internal/apperr"
	"github.com/starford/studyai/internal/models"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "studyai-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := Open(f.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

var base = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	for _, table := range []string{"notes", "summaries", "flashcard_sets", "imports"} {
		var count int
		if err := db.conn.QueryRow(`SELECT count(*) FROM ` + table).Scan(&count); err != nil {
			t.Fatalf("%s table missing: %v", table, err)
		}
	}
}

func TestOpen_AddsBackendIDToExistingDatabase(t *testing.T) {
	f, err := os.CreateTemp("", "studyai-legacy-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	legacy, err := sql.Open("sqlite3", f.Name())
	if err != nil {
		t.Fatal(err)
	}
	_, err = legacy.Exec(`CREATE TABLE summaries (
		user_id    TEXT NOT NULL,
		id         TEXT NOT NULL,
		note_id    TEXT NOT NULL DEFAULT '',
		summary    TEXT NOT NULL DEFAULT '',
		title      TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (user_id, id)
	);
	INSERT INTO summaries (user_id, id, note_id, summary) VALUES ('u1', 's0', 'n0', 'old')`)
	legacy.Close()
	if err != nil {
		t.Fatalf("legacy schema: %v", err)
	}

	db, err := Open(f.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	ctx := context.Background()

	old, err := db.GetSummary(ctx, "u1", "s0")
	if err != nil {
		t.Fatalf("GetSummary(old): %v", err)
	}
	if old.BackendID != "" || old.Summary != "old" {
		t.Errorf("old summary = %+v", old)
	}

	s := models.Summary{ID: "s1", NoteID: "n1", Summary: "sum", BackendID: "srv-1", CreatedAt: base}
	if err := db.Commit(ctx, "u1", NewBatch().SetSummary(s)); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	got, err := db.GetSummary(ctx, "u1", "s1")
	if err != nil {
		t.Fatalf("GetSummary: %v", err)
	}
	if got.BackendID != "srv-1" {
		t.Errorf("backend_id = %q, want srv-1", got.BackendID)
	}

	// A second open must not try to add the column again.
	db2, err := Open(f.Name())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	db2.Close()
}

func TestCommitPairAndRead(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	n := models.Note{ID: "n1", Title: "Cells", Content: "body", Source: models.SourceVoice, Summary: "sum", SummaryID: "s1", CreatedAt: base}
	s := models.Summary{ID: "s1", NoteID: "n1", Summary: "sum", CreatedAt: base}
	if err := db.Commit(ctx, "u1", NewBatch().SetNote(n).SetSummary(s)); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	got, err := db.GetNote(ctx, "u1", "n1")
	if err != nil {
		t.Fatalf("GetNote: %v", err)
	}
	if got.Title != "Cells" || got.Source != models.SourceVoice || got.SummaryID != "s1" {
		t.Errorf("note = %+v", got)
	}
	if !got.CreatedAt.Equal(base) {
		t.Errorf("created_at = %v, want %v", got.CreatedAt, base)
	}

	sum, err := db.GetSummary(ctx, "u1", "s1")
	if err != nil {
		t.Fatalf("GetSummary: %v", err)
	}
	if sum.Title != "Cells" {
		t.Errorf("summary title should fall back to note title, got %q", sum.Title)
	}
}

func TestCommitIsAtomic(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	b := NewBatch().
		SetNote(models.Note{ID: "n1", Title: "ok"}).
		SetSummary(models.Summary{ID: "", NoteID: "n1"})
	if err := db.Commit(ctx, "u1", b); err == nil {
		t.Fatal("expected error for empty summary id")
	}
	if _, err := db.GetNote(ctx, "u1", "n1"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("note from failed batch is visible: err = %v", err)
	}
}

func TestUsersAreIsolated(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	_ = db.Commit(ctx, "u1", NewBatch().SetNote(models.Note{ID: "n1", Title: "mine"}))

	if _, err := db.GetNote(ctx, "u2", "n1"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected ErrNotFound for other user, got %v", err)
	}
	list, _ := db.ListNotes(ctx, "u2")
	if len(list) != 0 {
		t.Errorf("other user sees %d notes", len(list))
	}
}

func TestListSummaries_NewestFirst(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	b := NewBatch()
	for i, id := range []string{"old", "mid", "new"} {
		b.SetSummary(models.Summary{ID: id, NoteID: "n", Summary: id, CreatedAt: base.Add(time.Duration(i) * time.Minute)})
	}
	if err := db.Commit(ctx, "u1", b); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	list, err := db.ListSummaries(ctx, "u1")
	if err != nil {
		t.Fatalf("ListSummaries: %v", err)
	}
	if len(list) != 3 || list[0].ID != "new" || list[2].ID != "old" {
		t.Errorf("order = %+v", list)
	}
}

func TestSummariesForNote(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	_ = db.Commit(ctx, "u1", NewBatch().
		SetSummary(models.Summary{ID: "a", NoteID: "n1", CreatedAt: base}).
		SetSummary(models.Summary{ID: "b", NoteID: "n1", CreatedAt: base.Add(time.Hour)}).
		SetSummary(models.Summary{ID: "c", NoteID: "n2", CreatedAt: base}))

	list, err := db.SummariesForNote(ctx, "u1", "n1")
	if err != nil {
		t.Fatalf("SummariesForNote: %v", err)
	}
	if len(list) != 2 || list[0].ID != "b" {
		t.Errorf("history = %+v", list)
	}
}

func TestUpsertUpdatesExisting(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	_ = db.Commit(ctx, "u1", NewBatch().SetNote(models.Note{ID: "n1", Title: "Old", CreatedAt: base}))
	_ = db.Commit(ctx, "u1", NewBatch().SetNote(models.Note{ID: "n1", Title: "New", CreatedAt: base.Add(time.Hour)}))

	got, _ := db.GetNote(ctx, "u1", "n1")
	if got.Title != "New" {
		t.Errorf("title = %q, want New", got.Title)
	}
	if !got.CreatedAt.Equal(base) {
		t.Errorf("created_at must not change on update, got %v", got.CreatedAt)
	}
}

func TestMirrorPairIsIdempotent(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	n := models.Note{ID: "n1", Title: "T"}
	s := models.Summary{ID: "s1", NoteID: "n1"}

	for i := 0; i < 2; i++ {
		if err := db.UpsertPair(ctx, "u1", n, s); err != nil {
			t.Fatalf("UpsertPair #%d: %v", i, err)
		}
	}
	list, _ := db.ListSummaries(ctx, "u1")
	if len(list) != 1 {
		t.Fatalf("expected 1 summary, got %d", len(list))
	}

	if err := db.DeletePair(ctx, "u1", "n1", "s1"); err != nil {
		t.Fatalf("DeletePair: %v", err)
	}
	if err := db.DeletePair(ctx, "u1", "n1", "s1"); err != nil {
		t.Fatalf("DeletePair replay: %v", err)
	}
	if _, err := db.GetNote(ctx, "u1", "n1"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("note still present after DeletePair")
	}
}

func TestFlashcardSets(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	fs := models.FlashcardSet{ID: "set1", Name: "Chapter 1", FlashcardCount: 2, CreatedAt: "2025-03-01T12:00:00Z"}
	if err := db.Commit(ctx, "u1", NewBatch().SetFlashcardSet(fs)); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	got, err := db.GetFlashcardSet(ctx, "u1", "set1")
	if err != nil {
		t.Fatalf("GetFlashcardSet: %v", err)
	}
	if got.Name != "Chapter 1" || got.FlashcardCount != 2 {
		t.Errorf("set = %+v", got)
	}

	_ = db.Commit(ctx, "u1", NewBatch().DeleteFlashcardSet("set1"))
	list, _ := db.ListFlashcardSets(ctx, "u1")
	if len(list) != 0 {
		t.Errorf("expected no sets after delete, got %d", len(list))
	}
}

func TestImports(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	cs, err := db.ImportChecksum(ctx, "inbox/a.md")
	if err != nil || cs != "" {
		t.Fatalf("ImportChecksum on unknown path = %q, %v", cs, err)
	}
	if err := db.RecordImport(ctx, "inbox/a.md", "abc", "s1"); err != nil {
		t.Fatalf("RecordImport: %v", err)
	}
	cs, _ = db.ImportChecksum(ctx, "inbox/a.md")
	if cs != "abc" {
		t.Errorf("checksum = %q, want abc", cs)
	}
	seen, _ := db.ChecksumImported(ctx, "abc")
	if !seen {
		t.Error("checksum should be recorded")
	}
}

func TestSearch_Basic(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	_ = db.Commit(ctx, "u1", NewBatch().SetNote(models.Note{ID: "n1", Title: "Search Me", Content: "uniqueword appears here"}))

	results, err := db.Search(ctx, "u1", "uniqueword", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].NoteID != "n1" {
		t.Errorf("search results = %+v, want 1 hit for n1", results)
	}
}
