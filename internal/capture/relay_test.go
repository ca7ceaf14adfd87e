package capture

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRelayRecognizer_FeedsSession(t *testing.T) {
	rec := NewRelayRecognizer()
	if err := rec.Feed("early"); !errors.Is(err, ErrRecognizerStopped) {
		t.Fatalf("Feed before start = %v", err)
	}

	s := NewVoiceSession(rec)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := rec.Feed("photosynthesis"); err != nil {
		t.Fatalf("Feed: %v", err)
	}
	eventually(t, time.Second, func() bool { return s.Transcript() == "photosynthesis" }, "partial not applied")

	if err := s.Pause(); err != nil {
		t.Fatal(err)
	}
	_ = rec.Feed("spoken while paused")
	time.Sleep(20 * time.Millisecond)
	if s.Transcript() != "photosynthesis" {
		t.Errorf("paused session took %q", s.Transcript())
	}

	if err := s.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := rec.Feed("late"); !errors.Is(err, ErrRecognizerStopped) {
		t.Errorf("Feed after stop = %v", err)
	}
}

func TestRelayRecognizer_KeepsOnlyLatestUndelivered(t *testing.T) {
	rec := NewRelayRecognizer()
	ch, err := rec.Start(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	_ = rec.Feed("a")
	_ = rec.Feed("ab")
	_ = rec.Feed("abc")
	if got := <-ch; got != "abc" {
		t.Errorf("got %q, want the latest partial", got)
	}
	if err := rec.Stop(); err != nil {
		t.Fatal(err)
	}
	if _, open := <-ch; open {
		t.Error("channel still open after Stop")
	}
}

func TestRelayRecognizer_RestartAfterCancel(t *testing.T) {
	rec := NewRelayRecognizer()
	ctx, cancel := context.WithCancel(context.Background())
	first, err := rec.Start(ctx)
	if err != nil {
		t.Fatal(err)
	}
	cancel()
	for range first {
	}

	second, err := rec.Start(context.Background())
	if err != nil {
		t.Fatalf("restart: %v", err)
	}
	if err := rec.Feed("again"); err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if got := <-second; got != "again" {
		t.Errorf("got %q", got)
	}
	_ = rec.Stop()
}

func TestVoiceSession_InvalidTransitionIsTyped(t *testing.T) {
	s := NewVoiceSession(NewRelayRecognizer())
	if err := s.Pause(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Pause while idle = %v", err)
	}
	if got := s.Snapshot(); got.State != "idle" || got.Level != MinLevel {
		t.Errorf("snapshot = %+v", got)
	}
}
