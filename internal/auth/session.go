package auth

import (
	"sync"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/flatblog/internal/clock"
	"github.com/sakif/flatblog/internal/model"
)

// Session is the server-side state behind one session cookie.
// An empty Username means the visitor is not logged in.
type Session struct {
	ID        string
	Username  string
	Flashes   []model.Flash
	ExpiresAt time.Time
}

// SessionStore keeps sessions in process memory. Nothing is persisted, so a
// restart logs everyone out, and two server processes do not share sessions.
//
// All methods are safe for concurrent use. Callers only ever get copies of a
// Session; changes go through the store's methods.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
	clock    clock.Clock
}

func NewSessionStore(ttl time.Duration, clk clock.Clock) *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		clock:    clk,
	}
}

// Create starts a new anonymous session.
func (s *SessionStore) Create() Session {
	sess := &Session{
		ID:        xid.New().String(),
		ExpiresAt: s.clock.Now().Add(s.ttl),
	}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	return copySession(sess)
}

// Get returns the session with the given ID. Expired sessions are removed
// and reported as missing.
func (s *SessionStore) Get(id string) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.live(id)
	if !ok {
		return Session{}, false
	}
	return copySession(sess), true
}

// SetUsername attaches a logged-in identity to the session.
// It reports false if the session does not exist.
func (s *SessionStore) SetUsername(id, username string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.live(id)
	if !ok {
		return false
	}
	sess.Username = username
	return true
}

// ClearUsername logs the session out but keeps it, so a flash queued right
// after logout still reaches the visitor.
func (s *SessionStore) ClearUsername(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.live(id); ok {
		sess.Username = ""
	}
}

// AddFlash queues a message for the next rendered page.
func (s *SessionStore) AddFlash(id string, f model.Flash) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.live(id); ok {
		sess.Flashes = append(sess.Flashes, f)
	}
}

// PopFlashes returns the queued messages and clears the queue.
func (s *SessionStore) PopFlashes(id string) []model.Flash {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.live(id)
	if !ok {
		return nil
	}
	flashes := sess.Flashes
	sess.Flashes = nil
	return flashes
}

// Delete drops the session entirely.
func (s *SessionStore) Delete(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

// Prune removes every expired session and returns how many were removed.
func (s *SessionStore) Prune() int {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, sess := range s.sessions {
		if !now.Before(sess.ExpiresAt) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored sessions, expired ones included.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// live must be called with mu held.
func (s *SessionStore) live(id string) (*Session, bool) {
	sess, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	if !s.clock.Now().Before(sess.ExpiresAt) {
		delete(s.sessions, id)
		return nil, false
	}
	return sess, true
}

func copySession(sess *Session) Session {
	c := *sess
	if sess.Flashes != nil {
		c.Flashes = append([]model.Flash(nil), sess.Flashes...)
	}
	return c
}
