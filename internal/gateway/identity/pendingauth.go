package identity

import (
	"crypto/rand"
	"encoding/base64"
	"sync"
	"time"

	"github.com/latticehq/lattice/internal/common/apperrors"
)

// pendingAuth is one in-flight authorization redirect.
type pendingAuth struct {
	sessionID string
	createdAt time.Time
}

// PendingAuthStore correlates an external authorization redirect back to
// the session that requested it. Nonces are single-use and expire after a
// fixed TTL. The set size is bounded by concurrently in-flight logins, so
// expired entries are swept opportunistically on Consume rather than by a
// background task.
type PendingAuthStore struct {
	mu      sync.Mutex
	entries map[string]pendingAuth
	ttl     time.Duration

	now func() time.Time
}

// NewPendingAuthStore creates a pending-authorization store with the given
// entry lifetime.
func NewPendingAuthStore(ttl time.Duration) *PendingAuthStore {
	return &PendingAuthStore{
		entries: make(map[string]pendingAuth),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Issue generates a cryptographically random, single-use nonce bound to
// the issuing session.
func (s *PendingAuthStore) Issue(sessionID string) string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		panic("unable to generate authorization state")
	}
	nonce := base64.RawURLEncoding.EncodeToString(buf)

	s.mu.Lock()
	s.entries[nonce] = pendingAuth{sessionID: sessionID, createdAt: s.now()}
	s.mu.Unlock()
	return nonce
}

// Consume removes and returns the session binding for the nonce. Absent or
// expired nonces yield ErrStateNotFound. Every call sweeps expired entries.
func (s *PendingAuthStore) Consume(nonce string) (string, apperrors.Error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for n, e := range s.entries {
		if now.Sub(e.createdAt) > s.ttl {
			delete(s.entries, n)
		}
	}

	e, ok := s.entries[nonce]
	if !ok {
		return "", ErrStateNotFound
	}
	delete(s.entries, nonce)
	return e.sessionID, nil
}
