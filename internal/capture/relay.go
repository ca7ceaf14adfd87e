package capture

import (
	"context"
	"errors"
	"sync"
)

// ErrRecognizerStopped is returned by Feed when no recording is running.
var ErrRecognizerStopped = errors.New("capture: recognizer is not running")

// RelayRecognizer is a Recognizer whose transcriptions come from outside the
// process, typically speech-to-text running on the capturing device. Only the
// latest undelivered partial is kept.
type RelayRecognizer struct {
	mu  sync.Mutex
	out chan string
}

// NewRelayRecognizer returns a stopped recognizer.
func NewRelayRecognizer() *RelayRecognizer {
	return &RelayRecognizer{}
}

// Start implements Recognizer.
func (r *RelayRecognizer) Start(ctx context.Context) (<-chan string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.out != nil {
		return nil, errors.New("capture: recognizer already running")
	}
	ch := make(chan string, 1)
	r.out = ch
	go func() {
		<-ctx.Done()
		r.closeChan(ch)
	}()
	return ch, nil
}

// Feed delivers a running best transcription. An undelivered older partial is
// replaced, never queued behind.
func (r *RelayRecognizer) Feed(text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.out == nil {
		return ErrRecognizerStopped
	}
	select {
	case <-r.out:
	default:
	}
	r.out <- text
	return nil
}

// Pause implements Recognizer. The session drops partials while paused.
func (r *RelayRecognizer) Pause() error { return nil }

// Resume implements Recognizer.
func (r *RelayRecognizer) Resume() error { return nil }

// Stop implements Recognizer.
func (r *RelayRecognizer) Stop() error {
	r.mu.Lock()
	ch := r.out
	r.mu.Unlock()
	if ch != nil {
		r.closeChan(ch)
	}
	return nil
}

// closeChan closes ch if it is still the running channel.
func (r *RelayRecognizer) closeChan(ch chan string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.out == ch {
		close(ch)
		r.out = nil
	}
}
