// Package persist saves submitted captures. Two write shapes exist:
// server-atomic, where the backend creates the note and summary in one call,
// and client dual-write, where the client commits both documents to the
// document store in a single batch after the backend produced the summary.
package persist

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/starford/studyai/internal/apperr"
	"github.com/starford/studyai/internal/auth"
	"github.com/starford/studyai/internal/backend"
	"github.com/starford/studyai/internal/capture"
	"github.com/starford/studyai/internal/docstore"
	"github.com/starford/studyai/internal/models"
	"github.com/starford/studyai/internal/outbox"
)

// Ingestor is the subset of the backend client used for capture submission.
type Ingestor interface {
	SummarizeRaw(ctx context.Context, userID string, cp models.Capture, summaryType string) (backend.Success, error)
	UploadPDF(ctx context.Context, userID string, cp models.Capture, summaryType string) (backend.Success, error)
	DeleteSummary(ctx context.Context, userID, summaryID string) (string, error)
}

// Signaler receives the id of each newly created summary.
type Signaler interface {
	SetLastCreated(id string)
}

// Enqueuer hands mirror writes to the reconciliation outbox.
type Enqueuer interface {
	Enqueue(ctx context.Context, op, userID, aggregateID string, payload any) (int64, error)
}

// Store is the document-store side of the adapter: atomic batches plus the
// summary lookup that maps local ids back to backend ids.
type Store interface {
	Commit(ctx context.Context, userID string, b *docstore.Batch) error
	GetSummary(ctx context.Context, userID, summaryID string) (*models.Summary, error)
}

// Saved describes a successfully persisted capture.
type Saved struct {
	NoteID    string `json:"note_id"`
	SummaryID string `json:"summary_id"`
	Summary   string `json:"summary"`
}

// Adapter persists captures and deletes summaries on behalf of the current
// user.
type Adapter struct {
	users       auth.Provider
	ingest      Ingestor
	store       Store
	mirror      Enqueuer
	signal      Signaler
	summaryType string
	logger      *slog.Logger
	now         func() time.Time
	newID       func() string
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithSummaryType sets the summary_type form field sent to the backend.
func WithSummaryType(t string) Option {
	return func(a *Adapter) {
		if t != "" {
			a.summaryType = t
		}
	}
}

// WithLogger sets the adapter logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Adapter) {
		if l != nil {
			a.logger = l
		}
	}
}

// New builds an Adapter. store and mirror may share the same SQLite file.
func New(users auth.Provider, ingest Ingestor, store Store, mirror Enqueuer, signal Signaler, opts ...Option) *Adapter {
	a := &Adapter{
		users:       users,
		ingest:      ingest,
		store:       store,
		mirror:      mirror,
		signal:      signal,
		summaryType: backend.DefaultSummaryType,
		logger:      slog.Default(),
		now:         time.Now,
		newID:       uuid.NewString,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// SaveServerAtomic submits the capture once. The backend creates the note and
// summary, and the pair is mirrored into the local document store before the
// returned summary id is published as the sync signal. A failed mirror write
// is queued for the outbox. long selects the paste gate for text captures.
func (a *Adapter) SaveServerAtomic(ctx context.Context, cp models.Capture, long bool) (Saved, error) {
	uid, err := a.users.CurrentUser(ctx)
	if err != nil {
		return Saved{}, err
	}
	if err := capture.Validate(cp, long); err != nil {
		return Saved{}, err
	}

	res, err := a.submit(ctx, uid, cp)
	if err != nil {
		return Saved{}, err
	}

	noteID := res.NoteID
	if noteID == "" {
		noteID = a.newID()
	}
	note, sum := a.pair(cp, noteID, res.ID, res.Summary)
	a.commitPair(ctx, uid, note, sum)
	a.signal.SetLastCreated(res.ID)

	a.logger.Info("persist: capture saved",
		slog.String("mode", "server_atomic"),
		slog.String("source", string(cp.Source)),
		slog.String("summary_id", res.ID))
	return Saved{NoteID: noteID, SummaryID: res.ID, Summary: res.Summary}, nil
}

// SaveDualWrite asks the backend for a summary, then writes the note and the
// summary with a shared client-generated note id in one batch. The backend
// call is authoritative: a failed batch is logged and handed to the outbox,
// never returned to the caller.
func (a *Adapter) SaveDualWrite(ctx context.Context, cp models.Capture, long bool) (Saved, error) {
	uid, err := a.users.CurrentUser(ctx)
	if err != nil {
		return Saved{}, err
	}
	if err := capture.Validate(cp, long); err != nil {
		return Saved{}, err
	}

	res, err := a.submit(ctx, uid, cp)
	if err != nil {
		return Saved{}, err
	}

	noteID, summaryID := a.newID(), a.newID()
	note, sum := a.pair(cp, noteID, summaryID, res.Summary)
	sum.BackendID = res.ID

	a.commitPair(ctx, uid, note, sum)
	a.signal.SetLastCreated(summaryID)

	a.logger.Info("persist: capture saved",
		slog.String("mode", "dual_write"),
		slog.String("source", string(cp.Source)),
		slog.String("summary_id", summaryID))
	return Saved{NoteID: noteID, SummaryID: summaryID, Summary: res.Summary}, nil
}

// DeleteSummary deletes through the backend so the note and summary cascade
// together, then drops the local rows. Dual-write summaries are deleted on the
// backend under the id it assigned. A failed local delete is queued.
func (a *Adapter) DeleteSummary(ctx context.Context, summaryID string) error {
	uid, err := a.users.CurrentUser(ctx)
	if err != nil {
		return err
	}

	remoteID, localNote := summaryID, ""
	local, err := a.store.GetSummary(ctx, uid, summaryID)
	switch {
	case err == nil:
		localNote = local.NoteID
		if local.BackendID != "" {
			remoteID = local.BackendID
		}
	case !errors.Is(err, apperr.ErrNotFound):
		a.logger.Warn("persist: summary lookup failed, deleting by id",
			slog.String("summary_id", summaryID),
			slog.String("error", err.Error()))
	}

	noteID, err := a.ingest.DeleteSummary(ctx, uid, remoteID)
	if err != nil {
		return err
	}
	if localNote != "" {
		noteID = localNote
	}

	b := docstore.NewBatch().DeleteSummary(summaryID)
	if noteID != "" {
		b.DeleteNote(noteID)
	}
	if err := a.store.Commit(ctx, uid, b); err != nil {
		a.logger.Warn("persist: local delete failed, queued for reconciliation",
			slog.String("summary_id", summaryID),
			slog.String("error", err.Error()))
		payload := outbox.DeletePayload{NoteID: noteID, SummaryID: summaryID}
		if _, qerr := a.mirror.Enqueue(ctx, outbox.OpDeletePair, uid, summaryID, payload); qerr != nil {
			a.logger.Error("persist: outbox enqueue failed",
				slog.String("summary_id", summaryID),
				slog.String("error", qerr.Error()))
		}
	}
	return nil
}

// commitPair writes the note and summary in one batch. The backend already
// holds the capture, so a failure is logged and handed to the outbox.
func (a *Adapter) commitPair(ctx context.Context, uid string, note models.Note, sum models.Summary) {
	err := a.store.Commit(ctx, uid, docstore.NewBatch().SetNote(note).SetSummary(sum))
	if err == nil {
		return
	}
	a.logger.Warn("persist: document batch failed, queued for reconciliation",
		slog.String("note_id", note.ID),
		slog.String("summary_id", sum.ID),
		slog.String("error", err.Error()))
	if _, qerr := a.mirror.Enqueue(ctx, outbox.OpUpsertPair, uid, sum.ID, outbox.PairPayload{Note: note, Summary: sum}); qerr != nil {
		a.logger.Error("persist: outbox enqueue failed",
			slog.String("summary_id", sum.ID),
			slog.String("error", qerr.Error()))
	}
}

func (a *Adapter) submit(ctx context.Context, uid string, cp models.Capture) (backend.Success, error) {
	st := a.summaryType
	if cp.SummaryType != "" {
		st = cp.SummaryType
	}
	if cp.Source == models.SourcePDF && cp.File != nil {
		return a.ingest.UploadPDF(ctx, uid, cp, st)
	}
	return a.ingest.SummarizeRaw(ctx, uid, cp, st)
}

func (a *Adapter) pair(cp models.Capture, noteID, summaryID, summary string) (models.Note, models.Summary) {
	ts := a.now().UTC()
	n := models.Note{
		ID:        noteID,
		Title:     cp.Title,
		Content:   cp.Body,
		Source:    cp.Source,
		Summary:   summary,
		SummaryID: summaryID,
		CreatedAt: ts,
	}
	s := models.Summary{
		ID:        summaryID,
		NoteID:    noteID,
		Summary:   summary,
		Title:     cp.Title,
		CreatedAt: ts,
	}
	return n, s
}
