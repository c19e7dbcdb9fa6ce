// Package jsonrpc provides utilities for handling JSON-RPC 2.0 protocol
// messages. It supports request/response construction, parsing, and error
// management for the gateway's message endpoint.
package jsonrpc

import (
	"encoding/json"
	"errors"
)

// Version specifies the JSON-RPC protocol version.
const Version = "2.0"

// MethodType represents a JSON-RPC method name.
type MethodType string

// Request represents a JSON-RPC 2.0 request or notification.
// ID is absent for notifications.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  MethodType      `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// IsNotification reports whether the request carries no ID.
func (r *Request) IsNotification() bool {
	return len(r.ID) == 0
}

// Response represents a JSON-RPC 2.0 response.
// Either Result or Error must be set, but not both.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *ErrorObject    `json:"error,omitempty"`
}

// ErrorObject represents a JSON-RPC 2.0 error object. Code must be a valid
// JSON-RPC error code. Data is optional additional error information.
type ErrorObject struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// NewSuccessResponse creates a JSON-RPC response with a result.
// The result must be JSON-serializable.
func NewSuccessResponse(id json.RawMessage, result any) *Response {
	return &Response{
		JSONRPC: Version,
		ID:      id,
		Result:  result,
	}
}

// NewErrorResponse creates a JSON-RPC error response. The data parameter is
// optional and must be JSON-serializable if provided.
func NewErrorResponse(id json.RawMessage, code int, message string, data any) *Response {
	return &Response{
		JSONRPC: Version,
		ID:      id,
		Error: &ErrorObject{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// ParseRequest unmarshals a JSON-RPC request or notification.
// Returns an error if the request is invalid or missing required fields.
func ParseRequest(data []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, err
	}
	if req.JSONRPC != Version || req.Method == "" {
		return nil, errors.New("invalid JSON-RPC request")
	}
	return &req, nil
}

// Standard JSON-RPC 2.0 error codes.
const (
	ErrCodeParseError     = -32700 // invalid JSON was received
	ErrCodeInvalidRequest = -32600 // the JSON sent is not a valid Request object
	ErrCodeMethodNotFound = -32601 // the method does not exist
	ErrCodeInvalidParams  = -32602 // invalid method parameter(s)
	ErrCodeInternalError  = -32603 // internal JSON-RPC error
	ErrCodeUpstreamError  = -32010 // the backend call returned a non-success response
)
