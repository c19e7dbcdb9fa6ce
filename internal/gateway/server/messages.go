package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/latticehq/lattice/internal/common/apperrors"
	"github.com/latticehq/lattice/internal/common/httpx"
	"github.com/latticehq/lattice/internal/common/jsonrpc"
	"github.com/latticehq/lattice/internal/gateway/backend"
	"github.com/latticehq/lattice/internal/gateway/dispatch"
	"github.com/latticehq/lattice/internal/gateway/registry"
)

// callParams is the params shape of a tools/call request.
type callParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// handleMessage accepts one JSON-RPC request addressed to a live binding.
// The request is acknowledged with 202; the response frame is delivered on
// the bound event stream after ordered processing.
func (s *GatewayServer) handleMessage(w http.ResponseWriter, r *http.Request) {
	correlationID := r.URL.Query().Get("session")
	if correlationID == "" {
		httpx.ErrInvalidRequest("missing session query parameter").Send(w)
		return
	}
	binding, err := s.registry.Lookup(correlationID)
	if err != nil {
		httpx.SendError(w, err)
		return
	}

	// A bearer on the post refreshes the session's delegated credential.
	if auth := r.Header.Get("Authorization"); auth != "" {
		if bearer, ok := strings.CutPrefix(auth, "Bearer "); ok && bearer != "" {
			s.registry.SetDelegatedBearer(binding.SessionID(), bearer)
		}
	}

	body, rerr := io.ReadAll(r.Body)
	if rerr != nil {
		httpx.ErrUnableToParseRequest().Send(w)
		return
	}
	req, perr := jsonrpc.ParseRequest(body)
	if perr != nil {
		httpx.ErrInvalidRequest("malformed JSON-RPC request").Send(w)
		return
	}

	if err := binding.Enqueue(func(ctx context.Context) {
		s.processRequest(ctx, binding, req)
	}); err != nil {
		httpx.SendError(w, err)
		return
	}

	httpx.SendJSONRsp(r.Context(), w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// processRequest runs one JSON-RPC request on the binding's worker and
// writes the response frame to the stream. Notifications produce no frame.
func (s *GatewayServer) processRequest(ctx context.Context, binding *registry.TransportBinding, req *jsonrpc.Request) {
	var rsp *jsonrpc.Response
	switch req.Method {
	case "ping":
		rsp = jsonrpc.NewSuccessResponse(req.ID, map[string]any{})
	case "tools/list":
		rsp = jsonrpc.NewSuccessResponse(req.ID, s.engine.ListTools())
	case "tools/call":
		rsp = s.processCall(ctx, binding, req)
	default:
		rsp = jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrCodeMethodNotFound,
			"method not supported: "+string(req.Method), nil)
	}

	if req.IsNotification() {
		return
	}
	frame, err := json.Marshal(rsp)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("unable to encode response frame")
		return
	}
	if err := binding.Send("message", frame); err != nil {
		// The stream is gone; the result is discarded.
		log.Ctx(ctx).Debug().Err(err).Msg("dropping response frame for closed stream")
	}
}

func (s *GatewayServer) processCall(ctx context.Context, binding *registry.TransportBinding, req *jsonrpc.Request) *jsonrpc.Response {
	var params callParams
	if len(req.Params) == 0 {
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrCodeInvalidParams, "missing call params", nil)
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrCodeInvalidParams, "malformed call params", nil)
	}

	env, err := s.engine.Call(ctx, binding.SessionID(), params.Name, params.Arguments)
	if err != nil {
		return jsonrpc.NewErrorResponse(req.ID, rpcErrorCode(err), err.ErrorAll(), rpcErrorData(err))
	}
	return jsonrpc.NewSuccessResponse(req.ID, env)
}

// rpcErrorCode maps a dispatch error onto the JSON-RPC error code space.
func rpcErrorCode(err apperrors.Error) int {
	switch {
	case errors.Is(err, dispatch.ErrValidation), errors.Is(err, dispatch.ErrUnknownTool):
		return jsonrpc.ErrCodeInvalidParams
	case errors.Is(err, backend.ErrUpstream):
		return jsonrpc.ErrCodeUpstreamError
	default:
		return jsonrpc.ErrCodeInternalError
	}
}

// rpcErrorData surfaces the upstream status and body when present.
func rpcErrorData(err apperrors.Error) any {
	status, body, ok := backend.UpstreamDetail(err)
	if !ok {
		return nil
	}
	return map[string]any{
		"upstreamStatus": status,
		"upstreamBody":   string(body),
	}
}
