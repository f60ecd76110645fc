package session

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrNotFound indicates the session does not exist or was revoked.
var ErrNotFound = errors.New("session: not found")

// Store persists sessions. Implementations must be safe for
// concurrent use.
type Store interface {
	Save(ctx context.Context, sess Session) error
	Get(ctx context.Context, id string) (Session, error)
	Delete(ctx context.Context, id string) error
	Touch(ctx context.Context, id string, at time.Time) error
}

// MemoryStore keeps sessions in process memory. It is the default
// when no database is configured; sessions die with the server.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]Session)}
}

// Save stores or replaces a session.
func (m *MemoryStore) Save(_ context.Context, sess Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sess.ID] = sess
	return nil
}

// Get returns a session by ID.
func (m *MemoryStore) Get(_ context.Context, id string) (Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[id]
	if !ok {
		return Session{}, ErrNotFound
	}
	return sess, nil
}

// Delete removes a session. Deleting a missing session is not an
// error.
func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

// Touch updates a session's last access time.
func (m *MemoryStore) Touch(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	if !ok {
		return ErrNotFound
	}
	sess.LastAccessed = at
	m.sessions[id] = sess
	return nil
}

// Len reports the number of stored sessions.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
