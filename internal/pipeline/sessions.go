package pipeline

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// SessionStatus represents the outcome of a session's latest run.
type SessionStatus string

const (
	StatusEmpty      SessionStatus = "empty"
	StatusProcessing SessionStatus = "processing"
	StatusReady      SessionStatus = "ready"
	StatusWarning    SessionStatus = "warning"
	StatusFailed     SessionStatus = "failed"
)

// Session holds the latest State between sequential user actions.
type Session struct {
	mu sync.Mutex

	ID        string
	CreatedAt time.Time
	UpdatedAt time.Time

	status  SessionStatus
	state   *State
	lastErr string
	runs    int
}

func newSession(now time.Time) *Session {
	return &Session{
		ID:        uuid.NewString(),
		CreatedAt: now,
		UpdatedAt: now,
		status:    StatusEmpty,
	}
}

// Begin marks the session as processing.
func (s *Session) Begin() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = StatusProcessing
	s.UpdatedAt = time.Now()
}

// Complete replaces the latest state.
func (s *Session) Complete(st *State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = st
	s.lastErr = ""
	s.runs++
	s.status = StatusReady
	if len(st.Warnings) > 0 {
		s.status = StatusWarning
	}
	s.UpdatedAt = time.Now()
}

// Fail records err. The previous state, if any, is kept.
func (s *Session) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = err.Error()
	s.runs++
	s.status = StatusFailed
	s.UpdatedAt = time.Now()
}

// State returns the latest successful state, or nil.
func (s *Session) State() *State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) touch() {
	s.mu.Lock()
	s.UpdatedAt = time.Now()
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.UpdatedAt
}

// SessionSnapshot is a read-only, JSON-safe copy of session state.
type SessionSnapshot struct {
	ID        string        `json:"session_id"`
	Status    SessionStatus `json:"status"`
	Source    string        `json:"source,omitempty"`
	Page      int           `json:"page"`
	Title     string        `json:"title,omitempty"`
	Tables    int           `json:"tables"`
	Metrics   int           `json:"metrics"`
	Warnings  []string      `json:"warnings"`
	Error     string        `json:"error,omitempty"`
	Runs      int           `json:"runs"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Snapshot returns a JSON-safe copy of the session.
func (s *Session) Snapshot() SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := SessionSnapshot{
		ID:        s.ID,
		Status:    s.status,
		Warnings:  []string{},
		Error:     s.lastErr,
		Runs:      s.runs,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
	if st := s.state; st != nil {
		snap.Source = st.Source
		snap.Page = st.Page + 1
		snap.Title = st.Document.Title
		snap.Tables = len(st.Document.Tables)
		snap.Metrics = st.Metrics.Len()
		snap.Warnings = append(snap.Warnings, st.Warnings...)
	}
	return snap
}

// SessionStore is a thread-safe in-memory session registry with idle TTL
// eviction.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
}

func NewSessionStore(ttl time.Duration) *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*Session),
		ttl:      ttl,
	}
}

// Create registers a new empty session.
func (s *SessionStore) Create() *Session {
	sess := newSession(time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = sess
	return sess
}

// Get returns the session and marks it active, or nil.
func (s *SessionStore) Get(id string) *Session {
	s.mu.Lock()
	sess := s.sessions[id]
	s.mu.Unlock()
	if sess != nil {
		sess.touch()
	}
	return sess
}

// Delete removes a session and reports whether it existed.
func (s *SessionStore) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	return ok
}

func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Cleanup removes sessions idle for longer than the TTL and returns how
// many were removed.
func (s *SessionStore) Cleanup() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	removed := 0
	for id, sess := range s.sessions {
		if now.Sub(sess.idleSince()) > s.ttl {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}
