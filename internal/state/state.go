package state

import (
	"sync"
	"time"
)

// DefaultPendingTTL bounds how long a started OAuth flow may wait for its callback
const DefaultPendingTTL = 10 * time.Minute

// PendingAuth is an OAuth flow started by /auth/airtable/start
type PendingAuth struct {
	Verifier  string
	UserID    string
	CreatedAt time.Time
}

// AppState holds the in-process state shared by request handlers
type AppState struct {
	mu sync.RWMutex

	pending map[string]PendingAuth
	ttl     time.Duration
	now     func() time.Time
}

// New returns an empty AppState whose pending flows expire after ttl
func New(ttl time.Duration) *AppState {
	if ttl <= 0 {
		ttl = DefaultPendingTTL
	}
	return &AppState{
		pending: make(map[string]PendingAuth),
		ttl:     ttl,
		now:     time.Now,
	}
}

// PutPending records a started flow under its state value
func (s *AppState) PutPending(state string, auth PendingAuth) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if auth.CreatedAt.IsZero() {
		auth.CreatedAt = s.now()
	}
	s.pruneLocked()
	s.pending[state] = auth
}

// TakePending removes and returns the flow for state. Expired flows are
// reported as missing.
func (s *AppState) TakePending(state string) (PendingAuth, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	auth, ok := s.pending[state]
	if !ok {
		return PendingAuth{}, false
	}
	delete(s.pending, state)
	if s.expired(auth) {
		return PendingAuth{}, false
	}
	return auth, true
}

// PendingCount returns the number of unexpired flows
func (s *AppState) PendingCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, auth := range s.pending {
		if !s.expired(auth) {
			count++
		}
	}
	return count
}

func (s *AppState) expired(auth PendingAuth) bool {
	return s.now().Sub(auth.CreatedAt) > s.ttl
}

func (s *AppState) pruneLocked() {
	for key, auth := range s.pending {
		if s.expired(auth) {
			delete(s.pending, key)
		}
	}
}
