package storage

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Ensure MemoryStorage implements Store
var _ Store = (*MemoryStorage)(nil)

// MemoryStorage keeps sessions in process memory. It is meant for single
// instance deployments and tests; records do not survive restarts.
type MemoryStorage struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	now      func() time.Time
}

// NewMemoryStorage creates a new storage instance
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

// Get returns a copy of the session stored under state
func (s *MemoryStorage) Get(_ context.Context, state string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[state]
	if !ok || session.Expired(s.now()) {
		return nil, ErrSessionNotFound
	}
	sessionCopy := *session
	return &sessionCopy, nil
}

// Put stores a copy of session
func (s *MemoryStorage) Put(_ context.Context, session *Session) error {
	if session == nil || session.State == "" {
		return fmt.Errorf("session state cannot be empty")
	}

	sessionCopy := *session
	s.mu.Lock()
	s.sessions[session.State] = &sessionCopy
	s.mu.Unlock()
	return nil
}

// Delete removes the session stored under state
func (s *MemoryStorage) Delete(_ context.Context, state string) error {
	s.mu.Lock()
	delete(s.sessions, state)
	s.mu.Unlock()
	return nil
}

// CleanupExpiredSessions drops every expired record
func (s *MemoryStorage) CleanupExpiredSessions(_ context.Context) (int, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for state, session := range s.sessions {
		if session.Expired(now) {
			delete(s.sessions, state)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of records held, expired ones included
func (s *MemoryStorage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Close is a no-op
func (s *MemoryStorage) Close() error {
	return nil
}
