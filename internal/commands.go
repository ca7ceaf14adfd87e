package internal

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/starford/studyai/internal/capture"
	"github.com/starford/studyai/internal/mcpserver"
	"github.com/starford/studyai/internal/models"
	"github.com/starford/studyai/internal/persist"
)

// RunMCP serves the MCP tools on stdin/stdout. The outbox worker runs
// alongside so server-atomic captures still reach the local mirror.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}
	svc, err := app.build()
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() { _ = svc.worker.Run(ctx) }()

	srv := mcpserver.New(svc.persist, svc.summaries, svc.flashcards, nil)
	svc.logger.Info("MCP server starting on stdio")
	return srv.ServeStdio()
}

// SubmitText saves a text or voice capture once through the server-atomic
// path and drains the mirror queue before returning.
func SubmitText(ctx context.Context, cp models.Capture, long bool, opts ...Option) (persist.Saved, error) {
	app, err := newApplication(opts)
	if err != nil {
		return persist.Saved{}, err
	}
	svc, err := app.build()
	if err != nil {
		return persist.Saved{}, err
	}
	defer svc.Close()

	saved, err := svc.persist.SaveServerAtomic(ctx, cp, long)
	if err != nil {
		return persist.Saved{}, err
	}
	drain(ctx, svc)
	return saved, nil
}

// SubmitPDF imports a PDF file and saves it like SubmitText. An empty title
// falls back to the file name.
func SubmitPDF(ctx context.Context, path, title, summaryType string, opts ...Option) (persist.Saved, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return persist.Saved{}, fmt.Errorf("read pdf: %w", err)
	}
	name := filepath.Base(path)
	if strings.TrimSpace(title) == "" {
		title = strings.TrimSuffix(name, filepath.Ext(name))
	}
	cp, err := capture.ImportPDF(nil, name, data, title)
	if err != nil {
		return persist.Saved{}, err
	}
	cp.SummaryType = summaryType
	return SubmitText(ctx, cp, false, opts...)
}

// Reconcile moves parked outbox jobs back to pending and processes the queue
// until no job is due. It returns the number of completed jobs.
func Reconcile(ctx context.Context, opts ...Option) (int, error) {
	app, err := newApplication(opts)
	if err != nil {
		return 0, err
	}
	svc, err := app.build()
	if err != nil {
		return 0, err
	}
	defer svc.Close()

	requeued, err := svc.queue.Requeue(ctx)
	if err != nil {
		return 0, err
	}
	svc.logger.Info("reconcile: requeued parked jobs", slog.Int64("count", requeued))

	total := 0
	for {
		n, err := svc.worker.ProcessOnce(ctx)
		if err != nil {
			return total, err
		}
		if n == 0 {
			break
		}
		total += n
	}

	st, err := svc.queue.Stats(ctx)
	if err != nil {
		return total, err
	}
	svc.logger.Info("reconcile: done",
		slog.Int("applied", total),
		slog.Int("pending", st.Pending),
		slog.Int("failed", st.Failed))
	return total, nil
}

// drain applies the mirror jobs enqueued by a one-shot command. Failures stay
// queued for the next serve or reconcile run.
func drain(ctx context.Context, svc *services) {
	if _, err := svc.worker.ProcessOnce(ctx); err != nil {
		svc.logger.Warn("mirror drain failed", slog.String("error", err.Error()))
	}
}
