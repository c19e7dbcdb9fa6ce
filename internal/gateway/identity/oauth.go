package identity

import (
	"context"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
	"golang.org/x/oauth2"

	"github.com/latticehq/lattice/internal/common/apperrors"
	"github.com/latticehq/lattice/internal/gateway/config"
)

// OAuthClient performs authorization-code exchange and token refresh
// against the upstream authorization server.
type OAuthClient struct {
	conf *oauth2.Config
}

// NewOAuthClient builds an OAuth client from the gateway configuration.
func NewOAuthClient(c *config.ConfigParam) *OAuthClient {
	return &OAuthClient{
		conf: &oauth2.Config{
			ClientID:     c.OAuth.ClientID,
			ClientSecret: c.OAuth.ClientSecret,
			RedirectURL:  c.GetRedirectURI(),
			Scopes:       c.OAuth.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  c.OAuth.AuthorizeURL,
				TokenURL: c.OAuth.TokenURL,
			},
		},
	}
}

// AuthorizeURL constructs the authorization URL carrying the given state.
func (c *OAuthClient) AuthorizeURL(state string) string {
	return c.conf.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// Exchange performs the authorization-code exchange. Transport failures are
// retried; a rejection from the token endpoint is not.
func (c *OAuthClient) Exchange(ctx context.Context, code string) (*oauth2.Token, apperrors.Error) {
	var tok *oauth2.Token
	err := retry.Do(func() error {
		var err error
		tok, err = c.conf.Exchange(ctx, code)
		if err != nil {
			if rerr, ok := err.(*oauth2.RetrieveError); ok && rerr.Response.StatusCode < http.StatusInternalServerError {
				return retry.Unrecoverable(err)
			}
			return err
		}
		return nil
	}, retry.Attempts(3), retry.Delay(500*time.Millisecond), retry.DelayType(retry.BackOffDelay), retry.Context(ctx))
	if err != nil {
		return nil, ErrAuthFailed.MsgErr("code exchange rejected", err)
	}
	return tok, nil
}

// Refresh obtains a fresh access token from a refresh token. The token
// source is constructed without an access token so exactly one refresh
// call is made.
func (c *OAuthClient) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, apperrors.Error) {
	src := c.conf.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, ErrAuthFailed.MsgErr("token refresh rejected", err)
	}
	return tok, nil
}
