package flow

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/BTreeMap/TastingFlow/internal/models"
	"github.com/google/uuid"
)

// ErrSessionNotFound is returned for unknown session IDs.
var ErrSessionNotFound = errors.New("session not found")

// SessionManager keeps the active sessions of this process.
type SessionManager struct {
	mu        sync.RWMutex
	sessions  map[string]*Session
	submitter Submitter
}

// NewSessionManager creates a manager whose sessions submit through submitter.
func NewSessionManager(submitter Submitter) *SessionManager {
	return &SessionManager{
		sessions:  make(map[string]*Session),
		submitter: submitter,
	}
}

// Create registers a new session for a signed-in participant.
func (m *SessionManager) Create(participant models.Participant, tastingCode string) *Session {
	s := NewSession(uuid.NewString(), participant, tastingCode, m.submitter)

	m.mu.Lock()
	m.sessions[s.ID()] = s
	m.mu.Unlock()

	slog.Debug("SessionManager.Create", "sessionID", s.ID(), "tastingCode", tastingCode)
	return s
}

// Get looks up a session by ID.
func (m *SessionManager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Remove forgets a session.
func (m *SessionManager) Remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

// Count returns the number of active sessions.
func (m *SessionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// PurgeStartedBefore forgets sessions created before cutoff and returns how many were dropped.
func (m *SessionManager) PurgeStartedBefore(cutoff time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, s := range m.sessions {
		if s.createdAt.Before(cutoff) {
			delete(m.sessions, id)
			n++
		}
	}
	if n > 0 {
		slog.Info("SessionManager.PurgeStartedBefore", "removed", n, "remaining", len(m.sessions))
	}
	return n
}
