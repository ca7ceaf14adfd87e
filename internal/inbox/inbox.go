// Package inbox turns files dropped into a folder into captures. Files are
// ingested one at a time, in arrival order, and then moved to processed/ or
// failed/ so each drop is submitted once.
package inbox

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/starford/studyai/internal/apperr"
	"github.com/starford/studyai/internal/capture"
	"github.com/starford/studyai/internal/models"
	"github.com/starford/studyai/internal/persist"
	"github.com/starford/studyai/internal/storage"
)

// Event kinds passed to EventCallback.
const (
	EventIngested  = "ingested"
	EventDuplicate = "duplicate"
	EventFailed    = "failed"
)

// EventCallback is called after each handled file.
type EventCallback func(kind string, path string)

// Saver submits a capture through the server-atomic path.
type Saver interface {
	SaveServerAtomic(ctx context.Context, cp models.Capture, long bool) (persist.Saved, error)
}

// Ledger remembers which file contents were already ingested.
type Ledger interface {
	ChecksumImported(ctx context.Context, checksum string) (bool, error)
	RecordImport(ctx context.Context, path, checksum, summaryID string) error
}

// Inbox processes the drop folder.
type Inbox struct {
	files  storage.Provider
	save   Saver
	ledger Ledger
	pdf    capture.Extractor
	logger *slog.Logger
	cb     EventCallback
}

// New creates an Inbox. pdf may be nil to use the default extractor.
func New(files storage.Provider, save Saver, ledger Ledger, pdf capture.Extractor, logger *slog.Logger, cb EventCallback) *Inbox {
	if logger == nil {
		logger = slog.Default()
	}
	return &Inbox{files: files, save: save, ledger: ledger, pdf: pdf, logger: logger, cb: cb}
}

func (in *Inbox) emit(kind, p string) {
	if in.cb != nil {
		in.cb(kind, p)
	}
}

// Sync processes every pending file and returns how many were ingested.
// A rejected file is moved to failed/ with an error note and the pass goes
// on. Files that hit a transport or auth error stay where they are.
func (in *Inbox) Sync(ctx context.Context) (int, error) {
	metas, err := in.files.List("")
	if err != nil {
		return 0, err
	}
	n := 0
	for _, m := range metas {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		if in.process(ctx, m) {
			n++
		}
	}
	return n, nil
}

func (in *Inbox) process(ctx context.Context, m storage.FileMeta) bool {
	seen, err := in.ledger.ChecksumImported(ctx, m.Checksum)
	if err != nil {
		in.logger.Warn("inbox: ledger lookup failed", slog.String("path", m.Path), slog.String("error", err.Error()))
		return false
	}
	if seen {
		in.logger.Info("inbox: duplicate drop skipped", slog.String("path", m.Path))
		in.moveTo(storage.ProcessedDir, m.Path)
		in.emit(EventDuplicate, m.Path)
		return false
	}

	data, err := in.files.Read(m.Path)
	if err != nil {
		in.logger.Warn("inbox: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
		return false
	}

	cp, err := in.toCapture(m, data)
	if err == nil {
		var saved persist.Saved
		saved, err = in.save.SaveServerAtomic(ctx, cp, true)
		if err == nil {
			if rerr := in.ledger.RecordImport(ctx, m.Path, m.Checksum, saved.SummaryID); rerr != nil {
				in.logger.Warn("inbox: record import failed", slog.String("path", m.Path), slog.String("error", rerr.Error()))
			}
			in.moveTo(storage.ProcessedDir, m.Path)
			in.logger.Info("inbox: ingested",
				slog.String("path", m.Path),
				slog.String("summary_id", saved.SummaryID))
			in.emit(EventIngested, m.Path)
			return true
		}
	}

	if ctx.Err() != nil {
		return false
	}
	if apperr.IsTransport(err) || apperr.IsAuth(err) {
		// Left in place; the next pass retries it.
		in.logger.Warn("inbox: ingest deferred", slog.String("path", m.Path), slog.String("error", err.Error()))
		return false
	}
	in.logger.Warn("inbox: capture rejected", slog.String("path", m.Path), slog.String("error", err.Error()))
	in.moveTo(storage.FailedDir, m.Path)
	note := fmt.Sprintf("%s\n", err.Error())
	if werr := in.files.Write(path.Join(storage.FailedDir, path.Base(m.Path)+".error.txt"), []byte(note)); werr != nil {
		in.logger.Warn("inbox: write error note failed", slog.String("path", m.Path), slog.String("error", werr.Error()))
	}
	in.emit(EventFailed, m.Path)
	return false
}

func (in *Inbox) toCapture(m storage.FileMeta, data []byte) (models.Capture, error) {
	name := path.Base(m.Path)
	title := strings.TrimSuffix(name, path.Ext(name))
	switch m.Ext {
	case ".pdf":
		return capture.ImportPDF(in.pdf, name, data, title)
	case ".md", ".txt":
		return capture.ParseMarkdown(data).Capture(title), nil
	default:
		return models.Capture{}, fmt.Errorf("inbox: unsupported file type %q", m.Ext)
	}
}

func (in *Inbox) moveTo(dir, p string) {
	if err := in.files.Move(p, path.Join(dir, path.Base(p))); err != nil {
		in.logger.Warn("inbox: move failed",
			slog.String("path", p),
			slog.String("to", dir),
			slog.String("error", err.Error()))
	}
}
