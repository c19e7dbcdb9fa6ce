// Package identity manages per-session credential state: OAuth-issued
// tokens with refresh-ahead renewal, caller-delegated bearer credentials,
// and the short-lived state correlating authorization redirects back to
// the session that requested them.
package identity

import (
	"context"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"

	"github.com/latticehq/lattice/internal/common/apperrors"
)

// Token is the credential state held for one session.
type Token struct {
	AccessToken  string
	RefreshToken string    // empty for delegated credentials
	Expiry       time.Time // for delegated credentials this is an assumed value
	Delegated    bool
}

// TokenEndpoint is the surface of the authorization server the store needs.
type TokenEndpoint interface {
	AuthorizeURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, apperrors.Error)
	Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, apperrors.Error)
}

// TokenStore holds at most one Token per session. All mutation happens
// through its methods; concurrent refreshes of the same session resolve
// with last-write-wins semantics.
type TokenStore struct {
	mu     sync.Mutex
	tokens map[string]*Token

	endpoint      TokenEndpoint
	refreshWindow time.Duration
	delegatedTTL  time.Duration

	now func() time.Time
}

// NewTokenStore creates a token store. refreshWindow is the refresh-ahead
// margin before expiry; delegatedTTL is the assumed lifetime of delegated
// bearers that carry no expiry of their own.
func NewTokenStore(endpoint TokenEndpoint, refreshWindow, delegatedTTL time.Duration) *TokenStore {
	return &TokenStore{
		tokens:        make(map[string]*Token),
		endpoint:      endpoint,
		refreshWindow: refreshWindow,
		delegatedTTL:  delegatedTTL,
		now:           time.Now,
	}
}

// Acquire returns a usable token for the session. A stored token outside
// the refresh window is returned unchanged. Inside the window, exactly one
// refresh call is made: success overwrites the stored state, failure drops
// it and surfaces ErrAuthFailed so the session restarts the full flow.
// A missing or unrefreshable-stale token yields ErrAuthRequired.
func (s *TokenStore) Acquire(ctx context.Context, sessionID string) (*Token, apperrors.Error) {
	s.mu.Lock()
	tok, ok := s.tokens[sessionID]
	if ok && s.now().Before(tok.Expiry.Add(-s.refreshWindow)) {
		cp := *tok
		s.mu.Unlock()
		return &cp, nil
	}
	if !ok {
		s.mu.Unlock()
		return nil, ErrAuthRequired
	}
	if tok.RefreshToken == "" {
		// Delegated credentials cannot self-refresh; the caller must
		// re-supply one.
		delete(s.tokens, sessionID)
		s.mu.Unlock()
		return nil, ErrAuthRequired
	}
	refreshToken := tok.RefreshToken
	s.mu.Unlock()

	fresh, err := s.endpoint.Refresh(ctx, refreshToken)
	if err != nil {
		s.mu.Lock()
		delete(s.tokens, sessionID)
		s.mu.Unlock()
		return nil, err
	}

	next := &Token{
		AccessToken:  fresh.AccessToken,
		RefreshToken: fresh.RefreshToken,
		Expiry:       fresh.Expiry,
	}
	if next.RefreshToken == "" {
		next.RefreshToken = refreshToken
	}
	s.mu.Lock()
	s.tokens[sessionID] = next
	cp := *next
	s.mu.Unlock()
	return &cp, nil
}

// ExchangeCode performs the authorization-code exchange and installs the
// resulting state for the session.
func (s *TokenStore) ExchangeCode(ctx context.Context, sessionID, code string) (*Token, apperrors.Error) {
	fresh, err := s.endpoint.Exchange(ctx, code)
	if err != nil {
		return nil, err
	}
	tok := &Token{
		AccessToken:  fresh.AccessToken,
		RefreshToken: fresh.RefreshToken,
		Expiry:       fresh.Expiry,
	}
	if tok.Expiry.IsZero() {
		tok.Expiry = s.now().Add(s.delegatedTTL)
	}
	s.mu.Lock()
	s.tokens[sessionID] = tok
	cp := *tok
	s.mu.Unlock()
	return &cp, nil
}

// AdoptDelegated installs an ephemeral token from a caller-supplied bearer
// value. If the bearer parses as a JWT with an exp claim, that expiry is
// honored; otherwise the configured conservative TTL applies. The token
// has no refresh capability.
func (s *TokenStore) AdoptDelegated(sessionID, bearer string) *Token {
	tok := &Token{
		AccessToken: bearer,
		Expiry:      s.now().Add(s.delegatedTTL),
		Delegated:   true,
	}
	if exp, ok := bearerExpiry(bearer); ok {
		tok.Expiry = exp
	}
	s.mu.Lock()
	s.tokens[sessionID] = tok
	cp := *tok
	s.mu.Unlock()
	return &cp
}

// RemoveDelegated drops the session's token state only if it was adopted
// from a delegated bearer. Durable OAuth-issued state is kept so a
// reconnecting session does not have to log in again.
func (s *TokenStore) RemoveDelegated(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tok, ok := s.tokens[sessionID]; ok && tok.Delegated {
		delete(s.tokens, sessionID)
	}
}

// AuthorizeURL constructs the authorization URL for the given state nonce.
func (s *TokenStore) AuthorizeURL(state string) string {
	return s.endpoint.AuthorizeURL(state)
}

// bearerExpiry extracts the exp claim from a JWT-shaped bearer without
// verifying its signature. Verification belongs to the backend; the store
// only needs a better-than-guessed lifetime.
func bearerExpiry(bearer string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(bearer, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
