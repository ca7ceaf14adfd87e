package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/starford/studyai/internal/models"
)

var jobsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "studyai",
		Subsystem: "outbox",
		Name:      "jobs_total",
		Help:      "Outbox job attempts by operation and result.",
	},
	[]string{"op", "result"},
)

// Applier performs mirror writes against the document store.
type Applier interface {
	UpsertPair(ctx context.Context, userID string, n models.Note, s models.Summary) error
	DeletePair(ctx context.Context, userID, noteID, summaryID string) error
}

// PairPayload is the payload of an upsert_pair job.
type PairPayload struct {
	Note    models.Note    `json:"note"`
	Summary models.Summary `json:"summary"`
}

// DeletePayload is the payload of a delete_pair job.
type DeletePayload struct {
	NoteID    string `json:"note_id"`
	SummaryID string `json:"summary_id"`
}

// Config controls batch size, polling cadence and retry policy.
type Config struct {
	BatchSize   int
	Interval    time.Duration
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

// Worker applies queued mirror operations.
type Worker struct {
	q      *Queue
	apply  Applier
	cfg    Config
	logger *slog.Logger
}

// errPermanent marks jobs that can never succeed.
var errPermanent = errors.New("permanent failure")

// NewWorker constructs a Worker. Zero config values fall back to defaults.
func NewWorker(q *Queue, apply Applier, cfg Config, logger *slog.Logger) *Worker {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 2 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 8
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = time.Second
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 5 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{q: q, apply: apply, cfg: cfg, logger: logger}
}

// Run polls the queue until ctx is cancelled. Enqueue wakes it early.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("outbox: worker started",
		slog.Int("batch", w.cfg.BatchSize),
		slog.Duration("interval", w.cfg.Interval))
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("outbox: worker stopped")
			return nil
		case <-ticker.C:
		case <-w.q.Kicks():
		}
		if _, err := w.ProcessOnce(ctx); err != nil && ctx.Err() == nil {
			w.logger.Error("outbox: process failed", slog.String("error", err.Error()))
		}
	}
}

// ProcessOnce leases one batch of due jobs and applies them. It returns the
// number of jobs that completed.
func (w *Worker) ProcessOnce(ctx context.Context) (int, error) {
	jobs, err := w.q.Lease(ctx, w.cfg.BatchSize)
	if err != nil {
		return 0, err
	}
	done := 0
	for _, j := range jobs {
		err := w.handle(ctx, j)
		if err == nil {
			jobsTotal.WithLabelValues(j.Op, "done").Inc()
			if e := w.q.MarkDone(ctx, j.ID); e != nil {
				w.logger.Error("outbox: mark done", slog.Int64("id", j.ID), slog.String("error", e.Error()))
			}
			done++
			continue
		}
		w.fail(ctx, j, err)
	}
	return done, nil
}

func (w *Worker) fail(ctx context.Context, j Job, cause error) {
	attempts := j.Attempts + 1
	if errors.Is(cause, errPermanent) || attempts >= w.cfg.MaxAttempts {
		jobsTotal.WithLabelValues(j.Op, "failed").Inc()
		w.logger.Warn("outbox: job parked",
			slog.Int64("id", j.ID),
			slog.String("op", j.Op),
			slog.Int("attempts", attempts),
			slog.String("error", cause.Error()))
		if e := w.q.MarkFailed(ctx, j.ID, attempts, cause); e != nil {
			w.logger.Error("outbox: mark failed", slog.Int64("id", j.ID), slog.String("error", e.Error()))
		}
		return
	}

	jobsTotal.WithLabelValues(j.Op, "retry").Inc()
	next := w.q.now().Add(w.Delay(attempts))
	w.logger.Warn("outbox: job retry scheduled",
		slog.Int64("id", j.ID),
		slog.String("op", j.Op),
		slog.Int("attempts", attempts),
		slog.Time("next_attempt_at", next),
		slog.String("error", cause.Error()))
	if e := w.q.MarkRetry(ctx, j.ID, attempts, next, cause); e != nil {
		w.logger.Error("outbox: mark retry", slog.Int64("id", j.ID), slog.String("error", e.Error()))
	}
}

// Delay returns the wait before retry number attempt (1-based).
func (w *Worker) Delay(attempt int) time.Duration {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = w.cfg.BaseBackoff
	exp.Multiplier = 2
	exp.MaxInterval = w.cfg.MaxBackoff
	exp.RandomizationFactor = 0
	exp.MaxElapsedTime = 0
	exp.Reset()

	d := exp.NextBackOff()
	for i := 1; i < attempt; i++ {
		d = exp.NextBackOff()
	}
	return d
}

// handle executes the outbox operation.
func (w *Worker) handle(ctx context.Context, j Job) error {
	switch j.Op {
	case OpUpsertPair:
		var p PairPayload
		if err := json.Unmarshal(j.Payload, &p); err != nil {
			return fmt.Errorf("%w: bad payload: %v", errPermanent, err)
		}
		return w.apply.UpsertPair(ctx, j.UserID, p.Note, p.Summary)
	case OpDeletePair:
		var p DeletePayload
		if err := json.Unmarshal(j.Payload, &p); err != nil {
			return fmt.Errorf("%w: bad payload: %v", errPermanent, err)
		}
		return w.apply.DeletePair(ctx, j.UserID, p.NoteID, p.SummaryID)
	default:
		return fmt.Errorf("%w: unknown op %q", errPermanent, j.Op)
	}
}
