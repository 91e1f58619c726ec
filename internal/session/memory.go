package session

import (
	"context"
	"sync"
	"time"
)

type memorySession struct {
	values    map[string]string
	expiresAt time.Time
}

// MemoryStore is an in-process Store for development and tests.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*memorySession
	ttl      time.Duration
	now      func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*memorySession),
		ttl:      ttl,
		now:      time.Now,
	}
}

// live returns the session if it exists and has not expired. Callers hold mu.
func (s *MemoryStore) live(sessionID string) *memorySession {
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil
	}
	if !s.now().Before(sess.expiresAt) {
		delete(s.sessions, sessionID)
		return nil
	}
	return sess
}

func (s *MemoryStore) Get(_ context.Context, sessionID, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.live(sessionID)
	if sess == nil {
		return "", ErrNotFound
	}
	value, ok := sess.values[key]
	if !ok {
		return "", ErrNotFound
	}
	return value, nil
}

func (s *MemoryStore) Set(_ context.Context, sessionID, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.live(sessionID)
	if sess == nil {
		sess = &memorySession{values: make(map[string]string)}
		s.sessions[sessionID] = sess
	}
	sess.values[key] = value
	sess.expiresAt = s.now().Add(s.ttl)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, sessionID, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess := s.live(sessionID); sess != nil {
		delete(sess.values, key)
	}
	return nil
}

func (s *MemoryStore) Destroy(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, sessionID)
	return nil
}

func (s *MemoryStore) Touch(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess := s.live(sessionID); sess != nil {
		sess.expiresAt = s.now().Add(s.ttl)
	}
	return nil
}

// Len returns the number of live sessions.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id := range s.sessions {
		if s.live(id) != nil {
			n++
		}
	}
	return n
}
