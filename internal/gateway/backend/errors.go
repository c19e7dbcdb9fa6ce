package backend

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/latticehq/lattice/internal/common/apperrors"
)

var (
	// ErrBackendError is the base error for Workboard API calls.
	ErrBackendError apperrors.Error = apperrors.New("backend error").SetStatusCode(http.StatusBadGateway)

	// ErrUpstream indicates the Workboard API answered with a non-success
	// status or was unreachable after retries.
	ErrUpstream apperrors.Error = ErrBackendError.New("upstream request failed").SetStatusCode(http.StatusBadGateway)
)

// CallError carries the raw upstream status and body of a failed call.
type CallError struct {
	Status int
	Body   []byte
}

func (e *CallError) Error() string {
	return fmt.Sprintf("upstream returned %d: %s", e.Status, string(e.Body))
}

// UpstreamDetail extracts the upstream status and body from an error
// produced by this package, if present.
func UpstreamDetail(err error) (int, []byte, bool) {
	var ce *CallError
	if errors.As(err, &ce) {
		return ce.Status, ce.Body, true
	}
	if ae, ok := err.(apperrors.Error); ok {
		for _, cause := range ae.UnwrapAll() {
			if status, body, ok := UpstreamDetail(cause); ok {
				return status, body, true
			}
		}
	}
	return 0, nil, false
}
