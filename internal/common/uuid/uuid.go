// Package uuid provides UUID functionality with UUIDv7 (time-ordered) as the
// default. It wraps github.com/google/uuid.
package uuid

import (
	"github.com/google/uuid"
)

// UUID represents a UUID, aliased from github.com/google/uuid.UUID.
type UUID = uuid.UUID

// New returns a new random UUIDv7. Panics if generation fails.
func New() UUID {
	u, err := uuid.NewV7()
	if err != nil {
		panic(err)
	}
	return u
}

// NewRandom returns a new random UUIDv7 and any error encountered.
func NewRandom() (UUID, error) {
	return uuid.NewV7()
}

// Parse parses a UUID string. Returns an error if the string is not a
// valid UUID.
func Parse(s string) (UUID, error) {
	return uuid.Parse(s)
}

// MustParse parses a UUID string and panics on failure.
func MustParse(s string) UUID {
	return uuid.MustParse(s)
}

// Nil is the zero UUID.
var Nil = uuid.Nil
