package persist

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/studyai/internal/apperr"
	"github.com/starford/studyai/internal/auth"
	"github.com/starford/studyai/internal/backend"
	"github.com/starford/studyai/internal/docstore"
	"github.com/starford/studyai/internal/models"
	"github.com/starford/studyai/internal/outbox"
)

type fakeIngest struct {
	mu      sync.Mutex
	raw     int
	pdf     int
	deletes []string
	res     backend.Success
	err     error
	noteID  string
}

func (f *fakeIngest) SummarizeRaw(_ context.Context, _ string, _ models.Capture, _ string) (backend.Success, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.raw++
	return f.res, f.err
}

func (f *fakeIngest) UploadPDF(_ context.Context, _ string, _ models.Capture, _ string) (backend.Success, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pdf++
	return f.res, f.err
}

func (f *fakeIngest) DeleteSummary(_ context.Context, _ string, sid string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, sid)
	return f.noteID, f.err
}

func (f *fakeIngest) calls() int { return f.raw + f.pdf + len(f.deletes) }

type fakeStore struct {
	batches   []*docstore.Batch
	summaries map[string]models.Summary
	err       error
}

func (f *fakeStore) Commit(_ context.Context, _ string, b *docstore.Batch) error {
	f.batches = append(f.batches, b)
	return f.err
}

func (f *fakeStore) GetSummary(_ context.Context, _ string, id string) (*models.Summary, error) {
	s, ok := f.summaries[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return &s, nil
}

type job struct {
	op      string
	id      string
	payload any
}

type fakeQueue struct{ jobs []job }

func (f *fakeQueue) Enqueue(_ context.Context, op, _, id string, payload any) (int64, error) {
	f.jobs = append(f.jobs, job{op, id, payload})
	return int64(len(f.jobs)), nil
}

type fakeSignal struct{ ids []string }

func (f *fakeSignal) SetLastCreated(id string) { f.ids = append(f.ids, id) }

type fixture struct {
	ingest *fakeIngest
	store  *fakeStore
	queue  *fakeQueue
	signal *fakeSignal
	a      *Adapter
}

func newFixture(user string) *fixture {
	f := &fixture{
		ingest: &fakeIngest{res: backend.Success{ID: "sum-1", NoteID: "note-1", Summary: "short"}},
		store:  &fakeStore{},
		queue:  &fakeQueue{},
		signal: &fakeSignal{},
	}
	f.a = New(auth.Static(user), f.ingest, f.store, f.queue, f.signal)
	n := 0
	f.a.newID = func() string {
		n++
		return fmt.Sprintf("client-%d", n)
	}
	return f
}

func longText() models.Capture {
	return models.Capture{Title: "Lecture", Body: strings.Repeat("a", 300), Source: models.SourceText}
}

func TestSaveServerAtomic_SignalsReturnedID(t *testing.T) {
	f := newFixture("u1")
	saved, err := f.a.SaveServerAtomic(context.Background(), longText(), true)
	require.NoError(t, err)

	assert.Equal(t, "sum-1", saved.SummaryID)
	assert.Equal(t, []string{"sum-1"}, f.signal.ids)
	assert.Equal(t, 1, f.ingest.raw)
	assert.Empty(t, f.queue.jobs)

	require.Len(t, f.store.batches, 1)
	writes := f.store.batches[0].Writes()
	require.Len(t, writes, 2)
	assert.Equal(t, "note-1", writes[0].Note.ID)
	assert.Equal(t, "sum-1", writes[0].Note.SummaryID)
	assert.Equal(t, "note-1", writes[1].Summary.NoteID)
	assert.Empty(t, writes[1].Summary.BackendID)
}

func TestSaveServerAtomic_MirrorFailureQueued(t *testing.T) {
	f := newFixture("u1")
	f.store.err = errors.New("database is locked")

	saved, err := f.a.SaveServerAtomic(context.Background(), longText(), true)
	require.NoError(t, err)
	assert.Equal(t, []string{"sum-1"}, f.signal.ids)
	require.Len(t, f.queue.jobs, 1)
	assert.Equal(t, outbox.OpUpsertPair, f.queue.jobs[0].op)

	p := f.queue.jobs[0].payload.(outbox.PairPayload)
	assert.Equal(t, saved.NoteID, p.Note.ID)
	assert.Equal(t, "sum-1", p.Summary.ID)
}

func TestSaveServerAtomic_PDFUsesUpload(t *testing.T) {
	f := newFixture("u1")
	cp := longText()
	cp.Source = models.SourcePDF
	cp.File = &models.Attachment{Name: "a.pdf", Data: []byte("%PDF-1.4")}

	_, err := f.a.SaveServerAtomic(context.Background(), cp, false)
	require.NoError(t, err)
	assert.Equal(t, 1, f.ingest.pdf)
	assert.Equal(t, 0, f.ingest.raw)
}

func TestShortCaptureMakesNoCalls(t *testing.T) {
	for _, src := range []models.SourceKind{models.SourceVoice, models.SourcePDF, models.SourceText} {
		f := newFixture("u1")
		cp := models.Capture{Title: "T", Body: strings.Repeat("x", 299), Source: src}

		_, err := f.a.SaveServerAtomic(context.Background(), cp, true)
		require.Error(t, err, src)
		assert.True(t, apperr.IsValidation(err), "source %s: %v", src, err)

		_, err = f.a.SaveDualWrite(context.Background(), cp, true)
		assert.True(t, apperr.IsValidation(err), "source %s: %v", src, err)

		assert.Zero(t, f.ingest.calls(), "source %s", src)
		assert.Empty(t, f.signal.ids)
	}
}

func TestNoUserFailsBeforeNetwork(t *testing.T) {
	f := newFixture("")

	_, err := f.a.SaveServerAtomic(context.Background(), longText(), true)
	assert.True(t, apperr.IsAuth(err))
	_, err = f.a.SaveDualWrite(context.Background(), longText(), true)
	assert.True(t, apperr.IsAuth(err))
	err = f.a.DeleteSummary(context.Background(), "sum-1")
	assert.True(t, apperr.IsAuth(err))

	assert.Zero(t, f.ingest.calls())
}

func TestBackendFailureLeavesSignalUntouched(t *testing.T) {
	f := newFixture("u1")
	f.ingest.err = &apperr.APIError{Message: "Note already existed."}

	_, err := f.a.SaveServerAtomic(context.Background(), longText(), true)
	require.Error(t, err)
	assert.True(t, apperr.IsAPI(err))
	assert.Empty(t, f.signal.ids)
	assert.Empty(t, f.queue.jobs)
}

func TestSaveDualWrite_SingleBatchSharedNoteID(t *testing.T) {
	f := newFixture("u1")
	saved, err := f.a.SaveDualWrite(context.Background(), longText(), true)
	require.NoError(t, err)

	require.Len(t, f.store.batches, 1)
	writes := f.store.batches[0].Writes()
	require.Len(t, writes, 2)
	assert.Equal(t, docstore.SetNote, writes[0].Kind)
	assert.Equal(t, docstore.SetSummary, writes[1].Kind)
	assert.Equal(t, writes[0].Note.ID, writes[1].Summary.NoteID)
	assert.Equal(t, writes[1].Summary.ID, writes[0].Note.SummaryID)
	assert.Equal(t, "short", writes[0].Note.Summary)
	assert.Equal(t, "sum-1", writes[1].Summary.BackendID)
	assert.NotEqual(t, "sum-1", saved.SummaryID)

	assert.Equal(t, []string{saved.SummaryID}, f.signal.ids)
	assert.Empty(t, f.queue.jobs)
}

func TestSaveDualWrite_BatchFailureIsQueuedNotSurfaced(t *testing.T) {
	f := newFixture("u1")
	f.store.err = errors.New("disk full")

	saved, err := f.a.SaveDualWrite(context.Background(), longText(), true)
	require.NoError(t, err)
	require.Len(t, f.queue.jobs, 1)
	assert.Equal(t, outbox.OpUpsertPair, f.queue.jobs[0].op)
	assert.Equal(t, saved.SummaryID, f.queue.jobs[0].id)
	assert.Equal(t, []string{saved.SummaryID}, f.signal.ids)
}

func TestDeleteSummary_RoutesThroughBackend(t *testing.T) {
	f := newFixture("u1")
	f.ingest.noteID = "note-1"

	require.NoError(t, f.a.DeleteSummary(context.Background(), "sum-1"))
	assert.Equal(t, []string{"sum-1"}, f.ingest.deletes)

	require.Len(t, f.store.batches, 1)
	writes := f.store.batches[0].Writes()
	require.Len(t, writes, 2)
	assert.Equal(t, docstore.DeleteSummary, writes[0].Kind)
	assert.Equal(t, docstore.DeleteNote, writes[1].Kind)
	assert.Equal(t, "note-1", writes[1].ID)
}

func TestDeleteSummary_BackendErrorSkipsLocalDelete(t *testing.T) {
	f := newFixture("u1")
	f.ingest.err = &apperr.TransportError{Op: "delete_summary", Status: 503, Err: errors.New("unavailable")}

	err := f.a.DeleteSummary(context.Background(), "sum-1")
	assert.True(t, apperr.IsTransport(err))
	assert.Empty(t, f.store.batches)
}

func TestDeleteSummary_LocalFailureQueued(t *testing.T) {
	f := newFixture("u1")
	f.store.err = errors.New("locked")

	require.NoError(t, f.a.DeleteSummary(context.Background(), "sum-1"))
	require.Len(t, f.queue.jobs, 1)
	assert.Equal(t, outbox.OpDeletePair, f.queue.jobs[0].op)
}

func TestDeleteSummary_DualWriteUsesBackendID(t *testing.T) {
	f := newFixture("u1")
	f.store.summaries = map[string]models.Summary{
		"client-2": {ID: "client-2", NoteID: "client-1", BackendID: "sum-1"},
	}
	f.ingest.noteID = "note-1"

	require.NoError(t, f.a.DeleteSummary(context.Background(), "client-2"))
	assert.Equal(t, []string{"sum-1"}, f.ingest.deletes)

	require.Len(t, f.store.batches, 1)
	writes := f.store.batches[0].Writes()
	require.Len(t, writes, 2)
	assert.Equal(t, "client-2", writes[0].ID)
	assert.Equal(t, "client-1", writes[1].ID)
}
