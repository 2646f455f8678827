package reconcileapp

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/krbiz/backend/internal/domain/delivery"
)

var ErrSessionNotFound = errors.New("reconcile: session not found or expired")

// OrderFile is one uploaded order file as received. It is never modified
// after upload; a re-upload under the same name replaces it.
type OrderFile struct {
	Name       string
	Data       []byte
	Password   string
	UploadedAt time.Time
}

// Session holds the uploads of one user: the order files in upload order and
// the single active delivery confirmation. Writers take the session lock for
// the whole mutation; readers work on snapshots.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu         sync.Mutex
	lastAccess time.Time
	orders     []*OrderFile
	delivery   *delivery.Confirmation
	outputs    map[string]OutputFile
}

func newSession(id string) *Session {
	now := time.Now()
	return &Session{ID: id, CreatedAt: now, lastAccess: now}
}

// PutOrderFile stores a file, replacing a file of the same name in place.
// It reports whether an existing file was replaced.
func (s *Session) PutOrderFile(f *OrderFile) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastAccess = time.Now()
	for i, existing := range s.orders {
		if existing.Name == f.Name {
			s.orders[i] = f
			return true
		}
	}
	s.orders = append(s.orders, f)
	return false
}

// RemoveOrderFile deletes a file by name and reports whether it existed
func (s *Session) RemoveOrderFile(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastAccess = time.Now()
	for i, existing := range s.orders {
		if existing.Name == name {
			s.orders = append(s.orders[:i:i], s.orders[i+1:]...)
			return true
		}
	}
	return false
}

// OrderFiles returns the files in upload order
func (s *Session) OrderFiles() []*OrderFile {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastAccess = time.Now()
	return append([]*OrderFile(nil), s.orders...)
}

// SetDelivery replaces the active delivery confirmation
func (s *Session) SetDelivery(c *delivery.Confirmation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastAccess = time.Now()
	s.delivery = c
}

// Delivery returns the active delivery confirmation, nil when none
func (s *Session) Delivery() *delivery.Confirmation {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastAccess = time.Now()
	return s.delivery
}

// ClearDelivery drops the active delivery confirmation
func (s *Session) ClearDelivery() {
	s.SetDelivery(nil)
}

// KeepOutputs retains produced files for later download, replacing files
// of the same name
func (s *Session) KeepOutputs(files ...OutputFile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastAccess = time.Now()
	if s.outputs == nil {
		s.outputs = make(map[string]OutputFile, len(files))
	}
	for _, f := range files {
		if f.Table != nil {
			s.outputs[f.Name] = f
		}
	}
}

// Output returns a retained file by name
func (s *Session) Output(name string) (OutputFile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastAccess = time.Now()
	f, ok := s.outputs[name]
	return f, ok
}

func (s *Session) idleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastAccess)
}

// SessionStore keeps sessions between requests
type SessionStore interface {
	Create() *Session
	Get(id string) (*Session, error)
	Delete(id string)
}

// InMemorySessionStore is an in-memory SessionStore. Sessions idle for longer
// than the TTL are dropped by a background cleanup loop.
type InMemorySessionStore struct {
	sessions map[string]*Session
	mu       sync.RWMutex
	ttl      time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewInMemorySessionStore creates a store and starts its cleanup loop
func NewInMemorySessionStore(ttl time.Duration) *InMemorySessionStore {
	store := &InMemorySessionStore{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		stopCh:   make(chan struct{}),
	}
	go store.startCleanupLoop(cleanupInterval(ttl))
	return store
}

func cleanupInterval(ttl time.Duration) time.Duration {
	interval := ttl / 4
	if interval < time.Second {
		interval = time.Second
	}
	if interval > 5*time.Minute {
		interval = 5 * time.Minute
	}
	return interval
}

func (s *InMemorySessionStore) startCleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.Cleanup()
		case <-s.stopCh:
			return
		}
	}
}

// Stop stops the background cleanup goroutine
func (s *InMemorySessionStore) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

// Create starts a new empty session
func (s *InMemorySessionStore) Create() *Session {
	session := newSession(uuid.NewString())
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = session
	return session
}

// Get returns a live session
func (s *InMemorySessionStore) Get(id string) (*Session, error) {
	s.mu.RLock()
	session, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok || session.idleSince(time.Now()) > s.ttl {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// Delete drops a session
func (s *InMemorySessionStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// Len returns the number of stored sessions, expired ones included
func (s *InMemorySessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Cleanup removes expired sessions
func (s *InMemorySessionStore) Cleanup() {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, session := range s.sessions {
		if session.idleSince(now) > s.ttl {
			delete(s.sessions, id)
		}
	}
}
