package inbox

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/studyai/internal/storage"
)

// DefaultSettle is the quiet period after the last file event before the
// folder is scanned, so files still being copied are not read half-written.
const DefaultSettle = 200 * time.Millisecond

// Watch runs an initial pass, then watches root for new files until ctx is
// cancelled. Bursts of events collapse into one pass, and passes run on this
// goroutine only, so at most one ingestion is in flight.
func (in *Inbox) Watch(ctx context.Context, root string, settle time.Duration) error {
	if settle <= 0 {
		settle = DefaultSettle
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, root); err != nil {
		return err
	}
	in.logger.Info("inbox: watching", slog.String("root", root))

	in.runPass(ctx)

	var timer *time.Timer
	var fire <-chan time.Time
	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(settle)
			fire = timer.C
		} else {
			timer.Reset(settle)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			in.logger.Info("inbox: stopped")
			return nil

		case <-fire:
			in.runPass(ctx)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if handled(root, ev.Name) {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
				if addErr := addDirsRecursive(w, ev.Name); addErr != nil {
					in.logger.Warn("inbox: add new dir failed",
						slog.String("path", ev.Name),
						slog.String("error", addErr.Error()))
				}
				schedule()
				continue
			}
			if !storage.Capturable(strings.ToLower(filepath.Ext(ev.Name))) {
				continue
			}
			schedule()

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			in.logger.Error("inbox: watcher error", slog.String("error", watchErr.Error()))
		}
	}
}

func (in *Inbox) runPass(ctx context.Context) {
	n, err := in.Sync(ctx)
	if err != nil && ctx.Err() == nil {
		in.logger.Warn("inbox: pass failed", slog.String("error", err.Error()))
		return
	}
	if n > 0 {
		in.logger.Info("inbox: pass complete", slog.Int("ingested", n))
	}
}

// handled reports whether p lies in processed/ or failed/ under root.
func handled(root, p string) bool {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return true
	}
	first := strings.SplitN(filepath.ToSlash(rel), "/", 2)[0]
	return first == storage.ProcessedDir || first == storage.FailedDir || first == ".."
}

// addDirsRecursive adds root and its subdirectories, except handled ones, to
// the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		name := d.Name()
		if p != root && (name == storage.ProcessedDir || name == storage.FailedDir || strings.HasPrefix(name, ".")) {
			return filepath.SkipDir
		}
		return w.Add(p)
	})
}
