package apperrors

import (
	"errors"
	"strings"
)

// gatewayError is the concrete Error implementation. A value is immutable
// once created; derivation methods return copies.
type gatewayError struct {
	msg    string
	base   error
	causes []error
	status int
}

func (e *gatewayError) Error() string {
	return e.msg
}

// ErrorAll returns the message followed by every wrapped cause, separated
// by "; ".
func (e *gatewayError) ErrorAll() string {
	if len(e.causes) == 0 {
		return e.msg
	}
	var b strings.Builder
	b.WriteString(e.msg)
	for _, err := range e.causes {
		b.WriteString("; ")
		b.WriteString(err.Error())
	}
	return b.String()
}

func (e *gatewayError) Unwrap() error {
	return e.base
}

func (e *gatewayError) UnwrapAll() []error {
	return e.causes
}

// New creates a fresh error using the current error as its template.
// The new error inherits the status code and unwraps to the template.
func (e *gatewayError) New(msg string) Error {
	return &gatewayError{
		msg:    msg,
		base:   e,
		status: e.status,
	}
}

// Msg creates a new error with the given message, wrapping the original.
func (e *gatewayError) Msg(msg string) Error {
	return &gatewayError{
		msg:    msg,
		base:   e,
		causes: append([]error{e}, e.causes...),
		status: e.status,
	}
}

// MsgErr creates a new error with the given message and additional causes.
func (e *gatewayError) MsgErr(msg string, errs ...error) Error {
	return &gatewayError{
		msg:    msg,
		base:   e,
		causes: append([]error{e}, errs...),
		status: e.status,
	}
}

// Err attaches additional causes, keeping the original message.
func (e *gatewayError) Err(errs ...error) Error {
	return &gatewayError{
		msg:    e.msg,
		base:   e,
		causes: append([]error{e}, errs...),
		status: e.status,
	}
}

// SetStatusCode returns a copy with the given HTTP status code.
func (e *gatewayError) SetStatusCode(code int) Error {
	cp := *e
	cp.status = code
	return &cp
}

func (e *gatewayError) StatusCode() int {
	return e.status
}

// Is matches against the base template and every wrapped cause so that
// errors.Is works across the whole derivation chain.
func (e *gatewayError) Is(target error) bool {
	if target == nil {
		return false
	}
	if errors.Is(e.base, target) {
		return true
	}
	for _, err := range e.causes {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// New creates a root-level error with the given message.
func New(msg string) Error {
	return &gatewayError{msg: msg}
}
