package identity

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/latticehq/lattice/internal/common/apperrors"
)

// fakeEndpoint counts calls and returns canned tokens.
type fakeEndpoint struct {
	mu          sync.Mutex
	refreshes   int
	exchanges   int
	refreshErr  apperrors.Error
	exchangeErr apperrors.Error
	issued      *oauth2.Token
}

func (f *fakeEndpoint) AuthorizeURL(state string) string {
	return "https://auth.example.com/oauth/authorize?state=" + state
}

func (f *fakeEndpoint) Exchange(ctx context.Context, code string) (*oauth2.Token, apperrors.Error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exchanges++
	if f.exchangeErr != nil {
		return nil, f.exchangeErr
	}
	return f.issued, nil
}

func (f *fakeEndpoint) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, apperrors.Error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshes++
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	return f.issued, nil
}

func (f *fakeEndpoint) refreshCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshes
}

func newTestStore(ep TokenEndpoint) *TokenStore {
	return NewTokenStore(ep, 5*time.Minute, time.Hour)
}

func TestAcquireWithoutTokenReportsAuthRequired(t *testing.T) {
	s := newTestStore(&fakeEndpoint{})
	_, err := s.Acquire(context.Background(), "s1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAuthRequired))
}

func TestAcquireReturnsFreshTokenUnchanged(t *testing.T) {
	ep := &fakeEndpoint{}
	s := newTestStore(ep)
	s.tokens["s1"] = &Token{
		AccessToken:  "tok-a",
		RefreshToken: "ref-a",
		Expiry:       time.Now().Add(time.Hour),
	}

	tok, err := s.Acquire(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "tok-a", tok.AccessToken)
	assert.Equal(t, 0, ep.refreshCount())
}

func TestAcquireRefreshesInsideWindow(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ep := &fakeEndpoint{issued: &oauth2.Token{
		AccessToken: "tok-b",
		Expiry:      base.Add(time.Hour),
	}}
	s := newTestStore(ep)
	s.now = func() time.Time { return base }

	// expiry 4 minutes out: inside the 5 minute refresh window
	s.tokens["s1"] = &Token{
		AccessToken:  "tok-a",
		RefreshToken: "ref-a",
		Expiry:       base.Add(4 * time.Minute),
	}

	tok, err := s.Acquire(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "tok-b", tok.AccessToken)
	assert.Equal(t, 1, ep.refreshCount())
	// refresh token is carried over when the endpoint omits it
	assert.Equal(t, "ref-a", tok.RefreshToken)
	assert.True(t, tok.Expiry.After(base))
}

func TestAcquireJustOutsideWindowDoesNotRefresh(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ep := &fakeEndpoint{}
	s := newTestStore(ep)
	s.now = func() time.Time { return base }

	s.tokens["s1"] = &Token{
		AccessToken:  "tok-a",
		RefreshToken: "ref-a",
		Expiry:       base.Add(5*time.Minute + time.Second),
	}

	tok, err := s.Acquire(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "tok-a", tok.AccessToken)
	assert.Equal(t, 0, ep.refreshCount())
}

func TestAcquireNeverReturnsExpiredToken(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ep := &fakeEndpoint{issued: &oauth2.Token{
		AccessToken: "tok-b",
		Expiry:      base.Add(time.Hour),
	}}
	s := newTestStore(ep)
	s.now = func() time.Time { return base }

	s.tokens["s1"] = &Token{
		AccessToken:  "tok-a",
		RefreshToken: "ref-a",
		Expiry:       base.Add(-time.Minute),
	}

	tok, err := s.Acquire(context.Background(), "s1")
	require.NoError(t, err)
	assert.True(t, tok.Expiry.After(base))
}

func TestRefreshFailureDropsStateAndSurfacesAuthFailed(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ep := &fakeEndpoint{refreshErr: ErrAuthFailed.Msg("token refresh rejected")}
	s := newTestStore(ep)
	s.now = func() time.Time { return base }

	s.tokens["s1"] = &Token{
		AccessToken:  "tok-a",
		RefreshToken: "ref-a",
		Expiry:       base.Add(time.Minute),
	}

	_, err := s.Acquire(context.Background(), "s1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAuthFailed))

	// the broken state is gone: the session must restart the flow
	_, err = s.Acquire(context.Background(), "s1")
	assert.True(t, errors.Is(err, ErrAuthRequired))
	assert.Equal(t, 1, ep.refreshCount())
}

func TestStaleDelegatedTokenReportsAuthRequired(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ep := &fakeEndpoint{}
	s := newTestStore(ep)
	s.now = func() time.Time { return base }

	s.tokens["s1"] = &Token{
		AccessToken: "delegated-a",
		Expiry:      base.Add(time.Minute),
		Delegated:   true,
	}

	_, err := s.Acquire(context.Background(), "s1")
	assert.True(t, errors.Is(err, ErrAuthRequired))
	assert.Equal(t, 0, ep.refreshCount())
}

func TestExchangeCodeInstallsState(t *testing.T) {
	ep := &fakeEndpoint{issued: &oauth2.Token{
		AccessToken:  "tok-x",
		RefreshToken: "ref-x",
		Expiry:       time.Now().Add(time.Hour),
	}}
	s := newTestStore(ep)

	tok, err := s.ExchangeCode(context.Background(), "s1", "code-1")
	require.NoError(t, err)
	assert.Equal(t, "tok-x", tok.AccessToken)

	got, err := s.Acquire(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "tok-x", got.AccessToken)
}

func TestAdoptDelegatedUsesConfiguredTTL(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := newTestStore(&fakeEndpoint{})
	s.now = func() time.Time { return base }

	tok := s.AdoptDelegated("s1", "opaque-bearer")
	assert.True(t, tok.Delegated)
	assert.Equal(t, base.Add(time.Hour), tok.Expiry)
	assert.Empty(t, tok.RefreshToken)
}

func TestAdoptDelegatedHonorsJWTExpiry(t *testing.T) {
	exp := time.Now().Add(20 * time.Minute).Truncate(time.Second)
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-1",
		"exp": exp.Unix(),
	}).SignedString([]byte("irrelevant"))
	require.NoError(t, err)

	s := newTestStore(&fakeEndpoint{})
	tok := s.AdoptDelegated("s1", raw)
	assert.WithinDuration(t, exp, tok.Expiry, time.Second)
}

func TestRemoveDelegatedKeepsOAuthState(t *testing.T) {
	s := newTestStore(&fakeEndpoint{})
	s.tokens["oauth"] = &Token{AccessToken: "tok-a", RefreshToken: "ref-a", Expiry: time.Now().Add(time.Hour)}
	s.AdoptDelegated("delegated", "bearer-b")

	s.RemoveDelegated("oauth")
	s.RemoveDelegated("delegated")

	_, err := s.Acquire(context.Background(), "oauth")
	assert.NoError(t, err)
	_, err = s.Acquire(context.Background(), "delegated")
	assert.True(t, errors.Is(err, ErrAuthRequired))
}

func TestSessionsAreIsolated(t *testing.T) {
	s := newTestStore(&fakeEndpoint{})
	s.AdoptDelegated("s1", "bearer-1")
	s.AdoptDelegated("s2", "bearer-2")

	t1, err := s.Acquire(context.Background(), "s1")
	require.NoError(t, err)
	t2, err := s.Acquire(context.Background(), "s2")
	require.NoError(t, err)
	assert.NotEqual(t, t1.AccessToken, t2.AccessToken)

	s.RemoveDelegated("s1")
	_, err = s.Acquire(context.Background(), "s2")
	assert.NoError(t, err)
}
