package capture

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/starford/studyai/internal/models"
)

// RecordingState is the state of a voice recording session.
type RecordingState int

// Recording states.
const (
	StateIdle RecordingState = iota
	StateRecording
	StatePaused
	StateStopped
)

func (s RecordingState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StatePaused:
		return "paused"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("RecordingState(%d)", int(s))
	}
}

// ErrInvalidTransition is returned when an operation does not apply to the
// current recording state.
var ErrInvalidTransition = errors.New("invalid recording transition")

// Recognizer is the speech-to-text engine. Start returns a channel of running
// best transcriptions (each value supersedes the previous one, they are not
// deltas). The channel must be closed once Stop is called or ctx is cancelled.
type Recognizer interface {
	Start(ctx context.Context) (<-chan string, error)
	Pause() error
	Resume() error
	Stop() error
}

// Visual intensity bounds for the audio level meter.
const (
	MinLevel = 0.4
	MaxLevel = 1.5
)

// Level maps a buffer of PCM samples to the bounded visual intensity used by
// the recording indicator.
func Level(samples []float32) float64 {
	if len(samples) == 0 {
		return MinLevel
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	rms := math.Sqrt(sum / float64(len(samples)))
	return math.Min(math.Max(rms*10, MinLevel), MaxLevel)
}

// VoiceSession drives one recording: idle → recording ⇄ paused → stopped.
type VoiceSession struct {
	rec Recognizer
	now func() time.Time

	mu         sync.Mutex
	state      RecordingState
	transcript string
	level      float64
	elapsed    time.Duration
	resumedAt  time.Time
	partials   <-chan string
	done       chan struct{}
	cancel     context.CancelFunc
}

// NewVoiceSession creates an idle session backed by rec.
func NewVoiceSession(rec Recognizer) *VoiceSession {
	return &VoiceSession{rec: rec, now: time.Now, level: MinLevel}
}

// Start begins recording. Only valid from idle.
func (s *VoiceSession) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateIdle {
		return s.transitionErr("start")
	}

	rctx, cancel := context.WithCancel(ctx)
	partials, err := s.rec.Start(rctx)
	if err != nil {
		cancel()
		return fmt.Errorf("capture: start recognizer: %w", err)
	}

	s.state = StateRecording
	s.transcript = ""
	s.elapsed = 0
	s.resumedAt = s.now()
	s.partials = partials
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.consume(partials, s.done)
	return nil
}

func (s *VoiceSession) consume(partials <-chan string, done chan struct{}) {
	defer close(done)
	for p := range partials {
		s.mu.Lock()
		if s.state == StateRecording && s.partials == partials {
			s.transcript = p
		}
		s.mu.Unlock()
	}
}

// Pause suspends recording; partials arriving while paused are ignored.
func (s *VoiceSession) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateRecording {
		return s.transitionErr("pause")
	}
	if err := s.rec.Pause(); err != nil {
		return fmt.Errorf("capture: pause recognizer: %w", err)
	}
	s.elapsed += s.now().Sub(s.resumedAt)
	s.state = StatePaused
	s.level = MinLevel
	return nil
}

// Resume continues a paused recording.
func (s *VoiceSession) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StatePaused {
		return s.transitionErr("resume")
	}
	if err := s.rec.Resume(); err != nil {
		return fmt.Errorf("capture: resume recognizer: %w", err)
	}
	s.resumedAt = s.now()
	s.state = StateRecording
	return nil
}

// Stop ends the recording. The transcript is kept until Finish or Reset.
func (s *VoiceSession) Stop() error {
	s.mu.Lock()
	if s.state != StateRecording && s.state != StatePaused {
		defer s.mu.Unlock()
		return s.transitionErr("stop")
	}
	if s.state == StateRecording {
		s.elapsed += s.now().Sub(s.resumedAt)
	}
	s.state = StateStopped
	s.level = MinLevel
	done := s.done
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	err := s.rec.Stop()
	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
	return err
}

// Finish turns a stopped recording into a voice capture titled title. The
// capture is gated on MinCaptureLength.
func (s *VoiceSession) Finish(title string) (models.Capture, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateStopped {
		return models.Capture{}, s.transitionErr("finish")
	}
	c := models.Capture{Title: title, Body: s.transcript, Source: models.SourceVoice}
	if err := ValidateVoice(c); err != nil {
		return models.Capture{}, err
	}
	return c, nil
}

// Reset discards the recording and returns the session to idle.
func (s *VoiceSession) Reset() {
	s.mu.Lock()
	active := s.state == StateRecording || s.state == StatePaused
	cancel := s.cancel
	done := s.done
	s.state = StateIdle
	s.transcript = ""
	s.elapsed = 0
	s.level = MinLevel
	s.partials = nil
	s.cancel = nil
	s.done = nil
	s.mu.Unlock()

	if active {
		_ = s.rec.Stop()
	}
	if cancel != nil {
		cancel()
	}
	if active && done != nil {
		<-done
	}
}

// ObserveBuffer feeds a captured audio buffer to the level meter. Buffers are
// ignored unless recording.
func (s *VoiceSession) ObserveBuffer(samples []float32) float64 {
	lvl := Level(samples)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateRecording {
		return s.level
	}
	s.level = lvl
	return lvl
}

// State returns the current recording state.
func (s *VoiceSession) State() RecordingState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Transcript returns the latest transcription.
func (s *VoiceSession) Transcript() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transcript
}

// CharCount returns the transcript length in characters.
func (s *VoiceSession) CharCount() int {
	return models.Capture{Body: s.Transcript()}.CharCount()
}

// Elapsed returns recorded time, excluding pauses.
func (s *VoiceSession) Elapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateRecording {
		return s.elapsed + s.now().Sub(s.resumedAt)
	}
	return s.elapsed
}

// VoiceSnapshot is the observable state of a recording.
type VoiceSnapshot struct {
	State      string  `json:"state"`
	Transcript string  `json:"transcript"`
	CharCount  int     `json:"char_count"`
	Level      float64 `json:"level"`
	ElapsedMS  int64   `json:"elapsed_ms"`
}

// Snapshot returns the current state of the recording.
func (s *VoiceSession) Snapshot() VoiceSnapshot {
	s.mu.Lock()
	st, text, lvl := s.state, s.transcript, s.level
	s.mu.Unlock()
	return VoiceSnapshot{
		State:      st.String(),
		Transcript: text,
		CharCount:  models.Capture{Body: text}.CharCount(),
		Level:      lvl,
		ElapsedMS:  s.Elapsed().Milliseconds(),
	}
}

func (s *VoiceSession) transitionErr(op string) error {
	return fmt.Errorf("capture: cannot %s while %s: %w", op, s.state, ErrInvalidTransition)
}
