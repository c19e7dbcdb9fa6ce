// Package dispatch routes tool calls from the transport to the Workboard
// backend. It owns the fixed tool catalog, validates call arguments against
// each tool's schema, and resolves a credential for the calling session
// before any backend call is made.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/latticehq/lattice/internal/common/apperrors"
	"github.com/latticehq/lattice/internal/gateway/backend"
	"github.com/latticehq/lattice/internal/gateway/identity"
	"github.com/latticehq/lattice/pkg/api"
)

// WorkboardAPI is the backend surface the engine dispatches to.
type WorkboardAPI interface {
	ListBoards(ctx context.Context, bearer string) ([]backend.Board, apperrors.Error)
	GetBoard(ctx context.Context, bearer, boardID string) (*backend.Board, apperrors.Error)
	ListItems(ctx context.Context, bearer, boardID string) ([]backend.Item, apperrors.Error)
	CreateItem(ctx context.Context, bearer, boardID, title, body string) (*backend.Item, apperrors.Error)
	UpdateItem(ctx context.Context, bearer, itemID string, fields map[string]any) (*backend.Item, apperrors.Error)
	DeleteItem(ctx context.Context, bearer, itemID string) apperrors.Error
	SearchItems(ctx context.Context, bearer, query string) ([]backend.Item, apperrors.Error)
}

// DelegatedCredentials is the per-session cache of caller-supplied bearers.
type DelegatedCredentials interface {
	DelegatedBearer(sessionID string) (string, bool)
}

// handlerFunc executes one tool against the backend with a resolved bearer.
type handlerFunc func(ctx context.Context, bearer string, args map[string]any) (*api.Envelope, apperrors.Error)

// Engine validates and executes tool calls.
type Engine struct {
	catalog   *Catalog
	tokens    *identity.TokenStore
	pending   *identity.PendingAuthStore
	delegated DelegatedCredentials
	board     WorkboardAPI
	handlers  map[string]handlerFunc
}

// NewEngine builds the engine and its catalog. Construction fails when the
// catalog and the handler set do not match one to one.
func NewEngine(tokens *identity.TokenStore, pending *identity.PendingAuthStore, delegated DelegatedCredentials, board WorkboardAPI) (*Engine, apperrors.Error) {
	e := &Engine{
		tokens:    tokens,
		pending:   pending,
		delegated: delegated,
		board:     board,
	}
	e.handlers = map[string]handlerFunc{
		"list_boards":  e.handleListBoards,
		"get_board":    e.handleGetBoard,
		"list_items":   e.handleListItems,
		"create_item":  e.handleCreateItem,
		"update_item":  e.handleUpdateItem,
		"delete_item":  e.handleDeleteItem,
		"search_items": e.handleSearchItems,
	}
	catalog, err := loadCatalog(e.handlers)
	if err != nil {
		return nil, err
	}
	e.catalog = catalog
	return e, nil
}

// Resources returns the resource descriptors bound by the catalog.
func (e *Engine) Resources() []*api.ResourceMeta {
	return e.catalog.Resources()
}

// ListTools returns the fixed catalog.
func (e *Engine) ListTools() api.ListToolsResult {
	result := api.ListToolsResult{Tools: make([]api.ToolInfo, 0, len(e.catalog.Tools()))}
	for _, t := range e.catalog.Tools() {
		result.Tools = append(result.Tools, t.Info)
	}
	return result
}

// Call validates and executes one tool call for the session. A call without
// a resolvable credential succeeds with an envelope carrying the authorize
// URL; the caller completes the login and retries. The credential gate runs
// before argument validation, so an unauthorized call gets the guidance
// envelope even when its arguments are malformed.
func (e *Engine) Call(ctx context.Context, sessionID, tool string, args map[string]any) (*api.Envelope, apperrors.Error) {
	t, ok := e.catalog.Get(tool)
	if !ok {
		return nil, ErrUnknownTool.Msg(fmt.Sprintf("no tool named %q", tool))
	}

	bearer, guidance := e.resolveCredential(ctx, sessionID)
	if guidance != nil {
		return guidance, nil
	}

	if err := t.Validate(args); err != nil {
		return nil, err
	}

	env, err := e.handlers[tool](ctx, bearer, args)
	if err != nil {
		return nil, err
	}
	if env.Resource == nil && t.Resource != nil {
		env.Resource = t.Resource
	}
	return env, nil
}

// resolveCredential walks the provider chain: stored token state first, the
// session's delegated bearer second. When neither yields a credential the
// second return value is a guidance envelope directing the user through the
// authorization flow.
func (e *Engine) resolveCredential(ctx context.Context, sessionID string) (string, *api.Envelope) {
	tok, err := e.tokens.Acquire(ctx, sessionID)
	if err == nil {
		return tok.AccessToken, nil
	}
	if !errors.Is(err, identity.ErrAuthRequired) && !errors.Is(err, identity.ErrAuthFailed) {
		log.Ctx(ctx).Warn().Err(err).Msg("credential acquisition failed")
	}

	if bearer, ok := e.delegated.DelegatedBearer(sessionID); ok {
		adopted := e.tokens.AdoptDelegated(sessionID, bearer)
		// a cached bearer whose expiry has passed cannot be used; the
		// caller must supply a fresh one or complete the login flow
		if time.Now().Before(adopted.Expiry) {
			return adopted.AccessToken, nil
		}
	}

	state := e.pending.Issue(sessionID)
	guidance := api.AuthGuidance{AuthorizeURL: e.tokens.AuthorizeURL(state)}
	structured, _ := json.Marshal(guidance)
	return "", &api.Envelope{
		Summary:    "Authorization required. Open the link to sign in, then retry the call.",
		Structured: structured,
	}
}
