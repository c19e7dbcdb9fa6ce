// Package httpx provides HTTP request/response handling utilities shared by
// the gateway's endpoints. It includes JSON response helpers, a uniform
// error-response shape, and a handler wrapper that converts application
// errors into structured responses.
package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/latticehq/lattice/internal/common/apperrors"
)

// GetRequestData parses a JSON request body into the provided data structure.
// Only supports POST and PUT methods. Returns an error if the request body
// is empty or cannot be parsed.
func GetRequestData(r *http.Request, data any) error {
	if r.Method != http.MethodPost && r.Method != http.MethodPut {
		return ErrMethodNotSupported()
	}
	if r.Body == nil {
		log.Ctx(r.Context()).Error().Msg("empty request body")
		return ErrUnableToParseRequest()
	}
	if err := json.NewDecoder(r.Body).Decode(data); err != nil {
		return ErrUnableToParseRequest()
	}
	return nil
}

// Response represents an HTTP response with configurable status code and
// content type. Response may be a struct, pre-marshaled JSON, or a plain
// string for text/html content types.
type Response struct {
	StatusCode  int
	Response    any
	ContentType string
}

// RequestHandler is the handler signature used by gateway endpoints.
// Returning an error produces a structured error response; returning a
// Response writes it with the configured content type.
type RequestHandler func(r *http.Request) (*Response, error)

// WrapHandler wraps a RequestHandler to provide standardized response
// handling. Handler errors become JSON error envelopes: *httpx.Error values
// are sent as-is, apperrors carry their status code, anything else becomes
// a 500.
func WrapHandler(handler RequestHandler) http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rsp, err := handler(r)
		if err != nil {
			SendAnyError(w, err)
			return
		}
		if rsp == nil {
			ErrApplicationError().Send(w)
			return
		}
		if rsp.ContentType == "" {
			rsp.ContentType = "application/json"
		}
		switch rsp.ContentType {
		case "application/json":
			SendJSONRsp(r.Context(), w, rsp.StatusCode, rsp.Response)
		default:
			w.Header().Set("Content-Type", rsp.ContentType)
			w.WriteHeader(rsp.StatusCode)
			switch body := rsp.Response.(type) {
			case []byte:
				w.Write(body)
			case string:
				w.Write([]byte(body))
			default:
				log.Ctx(r.Context()).Error().Msg("unsupported response body type")
			}
		}
	})
}

// SendAnyError maps any error to a structured JSON error response.
func SendAnyError(w http.ResponseWriter, err error) {
	if httperror, ok := err.(*Error); ok {
		httperror.Send(w)
		return
	}
	if appErr, ok := err.(apperrors.Error); ok {
		SendError(w, appErr)
		return
	}
	ErrApplicationError(err.Error()).Send(w)
}
