// Package artifact implements the "artifact just created" notification: a
// one-shot, last-write-wins signal carrying the id of the newest summary,
// delivered to the views mounted at publish time, plus an SSE stream of the
// same events for UI shells.
package artifact

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
)

// Event types.
const (
	SummaryCreated   = "summary.created"
	SummaryCleared   = "summary.cleared"
	FlashcardsChange = "flashcards.updated"

	// InboxPrefix prefixes inbox file events, e.g. "inbox.ingested".
	InboxPrefix = "inbox."
)

// Event is a notification delivered to subscribers.
type Event struct {
	Type string `json:"type"`
	ID   string `json:"id,omitempty"`
}

type signalOp int

const (
	opConsume signalOp = iota
	opClear
)

type signalReq struct {
	op   signalOp
	id   string
	resp chan bool
}

type pendingResp struct {
	id string
	ok bool
}

// Broker owns the pending signal and the set of mounted subscribers.
//
// Concurrency model: a single internal event loop (goroutine) owns mutable
// state (subscribers + pending id). Public methods communicate with this loop
// through channels, so no mutexes are required.
type Broker struct {
	subscribeCh   chan chan Event
	unsubscribeCh chan chan Event
	publishCh     chan Event
	createdCh     chan string
	signalCh      chan signalReq
	pendingReqCh  chan chan pendingResp
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a broker and starts its event loop.
func NewBroker() *Broker {
	b := &Broker{
		subscribeCh:   make(chan chan Event),
		unsubscribeCh: make(chan chan Event),
		publishCh:     make(chan Event, 64),
		createdCh:     make(chan string),
		signalCh:      make(chan signalReq),
		pendingReqCh:  make(chan chan pendingResp),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan Event]struct{})
	var (
		pending  string
		has      bool
		consumed bool
	)

	broadcast := func(ev Event) {
		for ch := range clients {
			select {
			case ch <- ev:
			default:
				// Subscriber buffer full; skip to avoid blocking the loop.
			}
		}
	}

	for {
		select {
		case <-b.stopCh:
			for ch := range clients {
				close(ch)
			}
			return

		case ch := <-b.subscribeCh:
			clients[ch] = struct{}{}

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case ev := <-b.publishCh:
			broadcast(ev)

		case id := <-b.createdCh:
			// Last write wins: an unconsumed id is simply replaced.
			pending, has, consumed = id, true, false
			broadcast(Event{Type: SummaryCreated, ID: id})

		case req := <-b.signalCh:
			ok := false
			switch req.op {
			case opConsume:
				if has && pending == req.id && !consumed {
					consumed = true
					ok = true
				}
			case opClear:
				if has && pending == req.id {
					pending, has, consumed = "", false, false
					ok = true
					broadcast(Event{Type: SummaryCleared, ID: req.id})
				}
			}
			req.resp <- ok

		case resp := <-b.pendingReqCh:
			resp <- pendingResp{id: pending, ok: has}

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

// Close gracefully stops the broker loop and closes all subscriber channels.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// SetLastCreated records id as the newest artifact, overwriting any
// unconsumed previous value, and notifies mounted subscribers. Views that
// mount later do not receive it.
func (b *Broker) SetLastCreated(id string) {
	if b.closed.Load() || id == "" {
		return
	}
	select {
	case b.createdCh <- id:
	case <-b.stopped:
	}
}

// Pending returns the outstanding artifact id, if any.
func (b *Broker) Pending() (string, bool) {
	if b.closed.Load() {
		return "", false
	}
	resp := make(chan pendingResp, 1)
	select {
	case b.pendingReqCh <- resp:
	case <-b.stopped:
		return "", false
	}
	select {
	case r := <-resp:
		return r.id, r.ok
	case <-b.stopped:
		return "", false
	}
}

// Consume marks id as observed by a view. It reports false when id is no
// longer the pending signal or was already consumed, in which case the caller
// must not start another highlight cycle for it.
func (b *Broker) Consume(id string) bool {
	return b.signal(opConsume, id)
}

// Clear resets the signal to empty if it still holds id. A newer id published
// meanwhile is left untouched.
func (b *Broker) Clear(id string) bool {
	return b.signal(opClear, id)
}

func (b *Broker) signal(op signalOp, id string) bool {
	if b.closed.Load() {
		return false
	}
	resp := make(chan bool, 1)
	select {
	case b.signalCh <- signalReq{op: op, id: id, resp: resp}:
	case <-b.stopped:
		return false
	}
	select {
	case ok := <-resp:
		return ok
	case <-b.stopped:
		return false
	}
}

// Publish broadcasts a non-signal event (for example a flashcard set change).
func (b *Broker) Publish(ev Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- ev:
	case <-b.stopped:
	}
}

// Subscription is one mounted view's feed of events.
type Subscription struct {
	C <-chan Event

	ch chan Event
	b  *Broker
}

// Subscribe mounts a new subscriber. Call Close on teardown.
func (b *Broker) Subscribe() *Subscription {
	ch := make(chan Event, 16)
	sub := &Subscription{C: ch, ch: ch, b: b}
	if b.closed.Load() {
		close(ch)
		return sub
	}

	select {
	case b.subscribeCh <- ch:
	case <-b.stopped:
		close(ch)
	}
	return sub
}

// Close unsubscribes and closes C.
func (s *Subscription) Close() {
	if s.b.closed.Load() {
		return
	}
	select {
	case s.b.unsubscribeCh <- s.ch:
	case <-s.b.stopped:
	}
}

// ClientCount returns the number of mounted subscribers.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}

	resp := make(chan int, 1)
	select {
	case b.countReqCh <- resp:
	case <-b.stopped:
		return 0
	}

	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// ServeHTTP is the SSE endpoint handler (GET /api/events).
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sub := b.Subscribe()
	defer sub.Close()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.C:
			if !ok {
				return
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			_, _ = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, payload)
			flusher.Flush()
		}
	}
}
