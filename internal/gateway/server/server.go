// Package server provides the HTTP surface of the gateway: the long-lived
// event stream, the message endpoint, the OAuth callback, and static
// resource serving. It wires routing and middleware around the dispatch
// engine and the session registry.
package server

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/latticehq/lattice/internal/common/apperrors"
	"github.com/latticehq/lattice/internal/common/httpx"
	"github.com/latticehq/lattice/internal/common/logtrace"
	"github.com/latticehq/lattice/internal/common/middleware"
	"github.com/latticehq/lattice/internal/gateway/backend"
	"github.com/latticehq/lattice/internal/gateway/config"
	"github.com/latticehq/lattice/internal/gateway/dispatch"
	"github.com/latticehq/lattice/internal/gateway/identity"
	"github.com/latticehq/lattice/internal/gateway/registry"
	"github.com/latticehq/lattice/internal/gateway/resources"
)

// Version is the gateway server version.
const Version = "0.1.0"

// GatewayServer is the main HTTP server for the gateway.
type GatewayServer struct {
	Router *chi.Mux

	registry *registry.Registry
	tokens   *identity.TokenStore
	pending  *identity.PendingAuthStore
	engine   *dispatch.Engine
	resolver *resources.Resolver
}

// CreateNewServer builds the server and its component graph from the
// loaded configuration.
func CreateNewServer() (*GatewayServer, apperrors.Error) {
	cfg := config.Config()

	oauth := identity.NewOAuthClient(cfg)
	tokens := identity.NewTokenStore(oauth, cfg.GetRefreshWindow(), cfg.GetDelegatedTTL())
	pending := identity.NewPendingAuthStore(cfg.GetPendingAuthTTL())
	reg := registry.New()
	reg.OnClose(tokens.RemoveDelegated)

	engine, err := dispatch.NewEngine(tokens, pending, reg, backend.NewClient(cfg))
	if err != nil {
		return nil, err
	}

	s := &GatewayServer{
		Router:   chi.NewRouter(),
		registry: reg,
		tokens:   tokens,
		pending:  pending,
		engine:   engine,
		resolver: resources.NewResolver(cfg.ResourceRoot),
	}
	return s, nil
}

// MountHandlers sets up all HTTP routes and middleware for the server.
func (s *GatewayServer) MountHandlers() {
	s.Router.Use(middleware.RequestLogger)
	s.Router.Use(middleware.PanicHandler)
	if config.Config().HandleCORS {
		s.Router.Use(middleware.HandleCORS(config.Config().AllowedOrigins))
	}

	// The event stream is long-lived by design; every other route gets the
	// request timeout.
	s.Router.Get("/events", s.handleEventStream)
	s.Router.Group(func(r chi.Router) {
		r.Use(middleware.SetTimeout(config.Config().GetRequestTimeout()))
		r.Post("/messages", s.handleMessage)
		r.Get(config.Config().OAuth.RedirectPath, httpx.WrapHandler(s.handleOAuthCallback))
		r.Get("/version", s.getVersion)
		r.Get("/ready", s.getReadiness)
		r.Get("/*", s.handleStatic)
	})

	if logtrace.IsTraceEnabled() {
		fmt.Println("Routes in gateway router")
		walkFunc := func(method string, route string, handler http.Handler, middlewares ...func(http.Handler) http.Handler) error {
			fmt.Printf("%s %s\n", method, route)
			return nil
		}
		if err := chi.Walk(s.Router, walkFunc); err != nil {
			log.Error().Err(err).Msg("Error walking router")
		}
	}
}

// GetVersionRsp represents the response for version information.
type GetVersionRsp struct {
	ServerVersion string `json:"serverVersion"`
	ApiVersion    string `json:"apiVersion"`
}

func (s *GatewayServer) getVersion(w http.ResponseWriter, r *http.Request) {
	log.Ctx(r.Context()).Debug().Msg("GetVersion")
	rsp := &GetVersionRsp{
		ServerVersion: "Lattice Gateway: " + Version,
		ApiVersion:    Version,
	}
	httpx.SendJSONRsp(r.Context(), w, http.StatusOK, rsp)
}

func (s *GatewayServer) getReadiness(w http.ResponseWriter, r *http.Request) {
	log.Ctx(r.Context()).Debug().Msg("Readiness check")
	httpx.SendJSONRsp(r.Context(), w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}
