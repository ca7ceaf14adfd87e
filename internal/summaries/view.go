package summaries

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/starford/studyai/internal/artifact"
)

// DefaultHighlightDelay is how long a newly created summary stays highlighted.
const DefaultHighlightDelay = 2 * time.Second

// rowRetryInterval is how often a mounted view reloads while a signalled row
// has not reached the document store yet.
const rowRetryInterval = 100 * time.Millisecond

// Signal is the consuming side of the artifact broker.
type Signal interface {
	Subscribe() *artifact.Subscription
	Consume(id string) bool
	Clear(id string) bool
}

// Snapshot is the current state of the list view.
type Snapshot struct {
	Rows        []ListItem `json:"rows"`
	Highlighted string     `json:"highlighted,omitempty"`
}

// View is the summaries list as a mounted screen sees it. While Run is active
// it reacts to newly created summaries: it scrolls the row into view,
// highlights it and, after the highlight delay, clears both the highlight and
// the signal.
type View struct {
	svc      *Service
	signal   Signal
	delay    time.Duration
	onScroll func(index int)
	logger   *slog.Logger

	mu          sync.RWMutex
	rows        []ListItem
	highlighted string
}

// ViewOption configures a View.
type ViewOption func(*View)

// WithHighlightDelay overrides DefaultHighlightDelay.
func WithHighlightDelay(d time.Duration) ViewOption {
	return func(v *View) {
		if d > 0 {
			v.delay = d
		}
	}
}

// WithScroll registers the callback that brings a row index into view.
func WithScroll(fn func(index int)) ViewOption {
	return func(v *View) { v.onScroll = fn }
}

// WithViewLogger sets the view logger.
func WithViewLogger(l *slog.Logger) ViewOption {
	return func(v *View) {
		if l != nil {
			v.logger = l
		}
	}
}

// NewView creates an unmounted view.
func NewView(svc *Service, signal Signal, opts ...ViewOption) *View {
	v := &View{
		svc:    svc,
		signal: signal,
		delay:  DefaultHighlightDelay,
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(v)
	}
	return v
}

// Refresh reloads the rows from the document store.
func (v *View) Refresh(ctx context.Context) error {
	rows, err := v.svc.List(ctx)
	if err != nil {
		return err
	}
	v.mu.Lock()
	v.rows = rows
	v.mu.Unlock()
	return nil
}

// Snapshot returns a copy of the rows and the highlighted id.
func (v *View) Snapshot() Snapshot {
	v.mu.RLock()
	defer v.mu.RUnlock()
	rows := make([]ListItem, len(v.rows))
	copy(rows, v.rows)
	return Snapshot{Rows: rows, Highlighted: v.highlighted}
}

// Highlighted returns the id currently highlighted, or "".
func (v *View) Highlighted() string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.highlighted
}

func (v *View) indexOf(id string) int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	for i, r := range v.rows {
		if r.ID == id {
			return i
		}
	}
	return -1
}

// scrollTo brings id into view and reports whether the row was found.
func (v *View) scrollTo(id string) bool {
	idx := v.indexOf(id)
	if idx < 0 {
		return false
	}
	if v.onScroll != nil {
		v.onScroll(idx)
	}
	return true
}

func (v *View) setHighlight(id string) {
	v.mu.Lock()
	v.highlighted = id
	v.mu.Unlock()
}

// clearHighlight drops the highlight only if it still belongs to id.
func (v *View) clearHighlight(id string) {
	v.mu.Lock()
	if v.highlighted == id {
		v.highlighted = ""
	}
	v.mu.Unlock()
}

// Run mounts the view until ctx is cancelled. Signals fired while the view is
// not mounted are not replayed. When the signalled row is not in the store yet
// the view keeps reloading until it shows up or the highlight expires.
func (v *View) Run(ctx context.Context) error {
	sub := v.signal.Subscribe()
	defer sub.Close()

	if err := v.Refresh(ctx); err != nil {
		v.logger.Warn("summaries: initial load failed", slog.String("error", err.Error()))
	}

	var (
		timer   *time.Timer
		expired <-chan time.Time
		current string

		retry  *time.Ticker
		retryC <-chan time.Time
	)
	stopRetry := func() {
		if retry != nil {
			retry.Stop()
			retry, retryC = nil, nil
		}
	}
	defer func() {
		if timer != nil {
			timer.Stop()
		}
		stopRetry()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-sub.C:
			if !ok {
				return nil
			}
			if ev.Type != artifact.SummaryCreated {
				continue
			}
			if !v.signal.Consume(ev.ID) {
				continue
			}
			stopRetry()
			if err := v.Refresh(ctx); err != nil {
				v.logger.Warn("summaries: refresh failed", slog.String("error", err.Error()))
			}
			v.setHighlight(ev.ID)
			current = ev.ID
			if !v.scrollTo(ev.ID) {
				retry = time.NewTicker(rowRetryInterval)
				retryC = retry.C
			}

			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(v.delay)
			expired = timer.C

		case <-retryC:
			if err := v.Refresh(ctx); err != nil {
				v.logger.Warn("summaries: refresh failed", slog.String("error", err.Error()))
				continue
			}
			if v.scrollTo(current) {
				stopRetry()
			}

		case <-expired:
			expired = nil
			stopRetry()
			v.clearHighlight(current)
			v.signal.Clear(current)
			current = ""
		}
	}
}
