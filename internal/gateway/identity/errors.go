package identity

import (
	"net/http"

	"github.com/latticehq/lattice/internal/common/apperrors"
)

var (
	// ErrIdentityError is the base error for all identity-related errors.
	ErrIdentityError apperrors.Error = apperrors.New("error in identity processing").SetStatusCode(http.StatusInternalServerError)

	// ErrAuthRequired is returned when a session has no stored credential.
	// Non-fatal: the caller falls back to a delegated credential or starts
	// the authorization flow.
	ErrAuthRequired apperrors.Error = ErrIdentityError.New("authorization required").SetStatusCode(http.StatusUnauthorized)

	// ErrAuthFailed is returned when a refresh or code exchange is rejected.
	// The session must restart the full authorization flow.
	ErrAuthFailed apperrors.Error = ErrIdentityError.New("authorization failed").SetStatusCode(http.StatusUnauthorized)

	// ErrStateNotFound is returned when pending authorization state is
	// unknown or has expired.
	ErrStateNotFound apperrors.Error = ErrIdentityError.New("unknown or expired authorization state").SetStatusCode(http.StatusBadRequest)
)
