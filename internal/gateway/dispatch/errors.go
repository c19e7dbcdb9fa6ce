package dispatch

import (
	"net/http"

	"github.com/latticehq/lattice/internal/common/apperrors"
)

var (
	// ErrDispatchError is the base error for the dispatch engine.
	ErrDispatchError apperrors.Error = apperrors.New("dispatch error").SetStatusCode(http.StatusInternalServerError)

	// ErrValidation indicates the call arguments failed schema validation.
	ErrValidation apperrors.Error = ErrDispatchError.New("invalid arguments").SetStatusCode(http.StatusBadRequest)

	// ErrUnknownTool indicates the named tool is not in the catalog.
	ErrUnknownTool apperrors.Error = ErrDispatchError.New("unknown tool").SetStatusCode(http.StatusNotFound)

	// ErrCatalogInvalid indicates the embedded catalog manifest could not be
	// loaded. This is fatal at startup.
	ErrCatalogInvalid apperrors.Error = ErrDispatchError.New("invalid tool catalog")
)
