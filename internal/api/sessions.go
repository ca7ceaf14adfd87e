package api

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// sessionIdleTTL is how long an untouched session survives before the next
// add drops it.
const sessionIdleTTL = 2 * time.Hour

type sessionEntry[T any] struct {
	owner    string
	sess     T
	lastUsed time.Time
}

// sessionStore holds the interactive sessions opened through the API. A
// session belongs to the user that opened it and is invisible to others. It
// lives until it is deleted, sits idle past the TTL, or the process exits.
type sessionStore[T any] struct {
	ttl     time.Duration
	now     func() time.Time
	onEvict func(T)

	mu       sync.Mutex
	sessions map[string]*sessionEntry[T]
}

func newSessionStore[T any](onEvict func(T)) *sessionStore[T] {
	return &sessionStore[T]{
		ttl:      sessionIdleTTL,
		now:      time.Now,
		onEvict:  onEvict,
		sessions: make(map[string]*sessionEntry[T]),
	}
}

func (s *sessionStore[T]) add(owner string, sess T) string {
	id := uuid.NewString()
	now := s.now()

	s.mu.Lock()
	var expired []T
	for k, e := range s.sessions {
		if now.Sub(e.lastUsed) > s.ttl {
			expired = append(expired, e.sess)
			delete(s.sessions, k)
		}
	}
	s.sessions[id] = &sessionEntry[T]{owner: owner, sess: sess, lastUsed: now}
	s.mu.Unlock()

	if s.onEvict != nil {
		for _, e := range expired {
			s.onEvict(e)
		}
	}
	return id
}

func (s *sessionStore[T]) get(owner, id string) (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[id]
	if !ok || e.owner != owner {
		var zero T
		return zero, false
	}
	e.lastUsed = s.now()
	return e.sess, true
}

func (s *sessionStore[T]) remove(owner, id string) (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[id]
	if !ok || e.owner != owner {
		var zero T
		return zero, false
	}
	delete(s.sessions, id)
	return e.sess, true
}

func (s *sessionStore[T]) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
