package server

import (
	"fmt"
	"html"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/latticehq/lattice/internal/common/httpx"
)

const successPage = `<!DOCTYPE html>
<html>
<head><title>Signed in</title></head>
<body>
<h1>Signed in</h1>
<p>Authorization complete. You can close this window and retry your request.</p>
</body>
</html>
`

const failurePage = `<!DOCTYPE html>
<html>
<head><title>Sign-in failed</title></head>
<body>
<h1>Sign-in failed</h1>
<p>%s</p>
<p>Close this window and start the authorization again from your client.</p>
</body>
</html>
`

func failureResponse(statusCode int, reason string) *httpx.Response {
	return &httpx.Response{
		StatusCode:  statusCode,
		ContentType: "text/html",
		Response:    fmt.Sprintf(failurePage, html.EscapeString(reason)),
	}
}

// handleOAuthCallback completes the authorization-code flow. The state
// parameter is consumed to recover the session that started the flow; the
// code is then exchanged and the resulting token installed for that session.
func (s *GatewayServer) handleOAuthCallback(r *http.Request) (*httpx.Response, error) {
	ctx := r.Context()
	q := r.URL.Query()

	if errParam := q.Get("error"); errParam != "" {
		reason := errParam
		if desc := q.Get("error_description"); desc != "" {
			reason = reason + ": " + desc
		}
		log.Ctx(ctx).Warn().Str("reason", reason).Msg("authorization denied by provider")
		return failureResponse(http.StatusBadRequest, "The authorization server reported: "+reason), nil
	}

	code := q.Get("code")
	state := q.Get("state")
	if code == "" || state == "" {
		return failureResponse(http.StatusBadRequest, "The callback is missing its code or state parameter."), nil
	}

	sessionID, err := s.pending.Consume(state)
	if err != nil {
		log.Ctx(ctx).Warn().Msg("authorization state unknown or expired")
		return failureResponse(http.StatusBadRequest, "This sign-in link has expired or was already used."), nil
	}

	if _, err := s.tokens.ExchangeCode(ctx, sessionID, code); err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("authorization code exchange failed")
		return failureResponse(http.StatusBadGateway, "The authorization server rejected the sign-in."), nil
	}

	log.Ctx(ctx).Info().Str("session_id", sessionID).Msg("authorization completed")
	return &httpx.Response{
		StatusCode:  http.StatusOK,
		ContentType: "text/html",
		Response:    successPage,
	}, nil
}
