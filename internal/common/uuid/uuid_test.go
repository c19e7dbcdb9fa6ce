package uuid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIsV7(t *testing.T) {
	u := New()
	assert.Equal(t, byte(7), u[6]>>4)
}

func TestParseRoundTrip(t *testing.T) {
	u := New()
	parsed, err := Parse(u.String())
	require.NoError(t, err)
	assert.Equal(t, u, parsed)
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := Parse("not-a-uuid")
	assert.Error(t, err)
}
