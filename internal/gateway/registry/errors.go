package registry

import (
	"net/http"

	"github.com/latticehq/lattice/internal/common/apperrors"
)

var (
	// ErrRegistryError is the base error for session registry operations.
	ErrRegistryError apperrors.Error = apperrors.New("session registry error").SetStatusCode(http.StatusInternalServerError)

	// ErrUnknownSession indicates the correlation id resolves to no live binding.
	ErrUnknownSession apperrors.Error = ErrRegistryError.New("unknown session").SetStatusCode(http.StatusNotFound)
)
