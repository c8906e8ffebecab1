package session

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrUnknownSession is returned when a session ID is not in the registry.
var ErrUnknownSession = errors.New("session: unknown session")

// Session represents one crawl run from seeding to report.
// Identity and targets are immutable after creation; completion time is
// recorded through Finish.
type Session struct {
	// ID uniquely identifies the session. Tasks and stored pages
	// carry this ID so results can be scoped to one run.
	ID string

	// Targets are the seed URLs the session was started with.
	Targets []string

	// StartedAt is when the session was created.
	StartedAt time.Time

	mu         sync.Mutex
	finishedAt time.Time
	cancel     context.CancelFunc
}

// Bind associates the session with a running crawl's cancel function.
// Cancelling through the registry stops the crawl.
func (s *Session) Bind(cancel context.CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancel = cancel
}

// Finish records the session end time. Calling Finish more than once
// keeps the first recorded time.
func (s *Session) Finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finishedAt.IsZero() {
		s.finishedAt = time.Now()
	}
}

// FinishedAt returns the recorded end time, or the zero time while the
// session is still running.
func (s *Session) FinishedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finishedAt
}

// Active reports whether the session has not finished yet.
func (s *Session) Active() bool {
	return s.FinishedAt().IsZero()
}

// Registry tracks sessions by ID.
//
// Design decision: The registry is owned by the top-level driver and
// passed by handle into the components that need session lookup. A
// process-wide map would make concurrent embedders share state and
// make tests order-dependent.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry creates an empty session registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
	}
}

// Begin creates a new session for the given seed URLs and registers it.
func (r *Registry) Begin(targets []string) *Session {
	s := &Session{
		ID:        uuid.NewString(),
		Targets:   append([]string(nil), targets...),
		StartedAt: time.Now(),
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = s

	return s
}

// Get returns the session with the given ID.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// List returns all registered sessions ordered by start time.
func (r *Registry) List() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		list = append(list, s)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].StartedAt.Before(list[j].StartedAt)
	})

	return list
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Cancel stops the crawl bound to the given session, if any, and marks
// the session finished. The session stays in the registry so its results
// remain addressable.
func (r *Registry) Cancel(id string) error {
	s, ok := r.Get(id)
	if !ok {
		return ErrUnknownSession
	}

	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.Finish()

	return nil
}

// CancelAll stops every active session. Used on shutdown.
func (r *Registry) CancelAll() {
	for _, s := range r.List() {
		if s.Active() {
			_ = r.Cancel(s.ID)
		}
	}
}

// Remove deletes a session from the registry.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[id]; !ok {
		return ErrUnknownSession
	}
	delete(r.sessions, id)

	return nil
}
