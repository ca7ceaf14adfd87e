// Package outbox reconciles the local document-store mirror with the backend.
// Mirror operations are queued in SQLite and applied by a Worker with
// exponential backoff, so a failed mirror write is retried instead of lost.
package outbox

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Operation names stored in outbox.op. Every operation is idempotent.
const (
	OpUpsertPair = "upsert_pair"
	OpDeletePair = "delete_pair"
)

// Job statuses.
const (
	StatusPending = "pending"
	StatusDone    = "done"
	StatusFailed  = "failed"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS outbox (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	op              TEXT NOT NULL,
	user_id         TEXT NOT NULL,
	aggregate_id    TEXT NOT NULL,
	payload         TEXT NOT NULL,
	status          TEXT NOT NULL DEFAULT 'pending',
	attempt_count   INTEGER NOT NULL DEFAULT 0,
	last_error      TEXT NOT NULL DEFAULT '',
	next_attempt_at DATETIME NOT NULL,
	created_at      DATETIME NOT NULL,
	updated_at      DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_outbox_ready ON outbox(status, next_attempt_at);
`

const (
	selectReadySQL = `
SELECT id, op, user_id, aggregate_id, payload, attempt_count
FROM outbox
WHERE status = 'pending' AND next_attempt_at <= ?
ORDER BY id ASC
LIMIT ?`

	markDoneSQL = `UPDATE outbox SET status = 'done', updated_at = ? WHERE id = ?`

	markRetrySQL = `
UPDATE outbox
SET attempt_count = ?, next_attempt_at = ?, last_error = ?, updated_at = ?
WHERE id = ?`

	markFailedSQL = `
UPDATE outbox
SET status = 'failed', attempt_count = ?, last_error = ?, updated_at = ?
WHERE id = ?`
)

// Job is one leased outbox row.
type Job struct {
	ID          int64
	Op          string
	UserID      string
	AggregateID string
	Payload     json.RawMessage
	Attempts    int
}

// Stats counts jobs by status.
type Stats struct {
	Pending int `json:"pending"`
	Done    int `json:"done"`
	Failed  int `json:"failed"`
}

// Queue is the SQLite-backed outbox table.
type Queue struct {
	db    *sql.DB
	now   func() time.Time
	kicks chan struct{}
}

// NewQueue applies the outbox schema to db and returns a Queue over it.
func NewQueue(db *sql.DB) (*Queue, error) {
	if _, err := db.Exec(schemaSQL); err != nil {
		return nil, fmt.Errorf("outbox: apply schema: %w", err)
	}
	return &Queue{db: db, now: time.Now, kicks: make(chan struct{}, 1)}, nil
}

// Enqueue stores a job for immediate processing and wakes the worker.
func (q *Queue) Enqueue(ctx context.Context, op, userID, aggregateID string, payload any) (int64, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("outbox: encode payload: %w", err)
	}
	now := q.now().UTC()
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO outbox (op, user_id, aggregate_id, payload, status, next_attempt_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, 'pending', ?, ?, ?)
	`, op, userID, aggregateID, string(raw), now, now, now)
	if err != nil {
		return 0, fmt.Errorf("outbox: enqueue: %w", err)
	}
	id, _ := res.LastInsertId()
	q.kick()
	return id, nil
}

func (q *Queue) kick() {
	select {
	case q.kicks <- struct{}{}:
	default:
	}
}

// Kicks fires after every Enqueue. Bursts collapse into one wake-up.
func (q *Queue) Kicks() <-chan struct{} {
	return q.kicks
}

// Lease returns up to limit pending jobs whose next attempt is due.
func (q *Queue) Lease(ctx context.Context, limit int) ([]Job, error) {
	rows, err := q.db.QueryContext(ctx, selectReadySQL, q.now().UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("outbox: lease: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		var j Job
		var raw string
		if err := rows.Scan(&j.ID, &j.Op, &j.UserID, &j.AggregateID, &raw, &j.Attempts); err != nil {
			return nil, err
		}
		j.Payload = json.RawMessage(raw)
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// MarkDone completes a job.
func (q *Queue) MarkDone(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, markDoneSQL, q.now().UTC(), id)
	return err
}

// MarkRetry records a failed attempt and schedules the next one.
func (q *Queue) MarkRetry(ctx context.Context, id int64, attempts int, next time.Time, cause error) error {
	_, err := q.db.ExecContext(ctx, markRetrySQL, attempts, next.UTC(), cause.Error(), q.now().UTC(), id)
	return err
}

// MarkFailed parks a job that exhausted its attempts.
func (q *Queue) MarkFailed(ctx context.Context, id int64, attempts int, cause error) error {
	_, err := q.db.ExecContext(ctx, markFailedSQL, attempts, cause.Error(), q.now().UTC(), id)
	return err
}

// Stats returns job counts by status.
func (q *Queue) Stats(ctx context.Context) (Stats, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT status, count(*) FROM outbox GROUP BY status`)
	if err != nil {
		return Stats{}, fmt.Errorf("outbox: stats: %w", err)
	}
	defer rows.Close()

	var st Stats
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return Stats{}, err
		}
		switch status {
		case StatusPending:
			st.Pending = n
		case StatusDone:
			st.Done = n
		case StatusFailed:
			st.Failed = n
		}
	}
	return st, rows.Err()
}

// Requeue moves failed jobs back to pending so the next pass retries them.
func (q *Queue) Requeue(ctx context.Context) (int64, error) {
	now := q.now().UTC()
	res, err := q.db.ExecContext(ctx, `
		UPDATE outbox
		SET status = 'pending', attempt_count = 0, next_attempt_at = ?, updated_at = ?
		WHERE status = 'failed'
	`, now, now)
	if err != nil {
		return 0, fmt.Errorf("outbox: requeue: %w", err)
	}
	return res.RowsAffected()
}
