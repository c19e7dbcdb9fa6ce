package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDuration(t *testing.T) {
	cases := map[string]time.Duration{
		"30s": 30 * time.Second,
		"5m":  5 * time.Minute,
		"1h":  time.Hour,
		"2d":  48 * time.Hour,
	}
	for in, want := range cases {
		got, err := ParseDuration(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseDuration("10x")
	assert.Error(t, err)
	_, err = ParseDuration("m")
	assert.Error(t, err)
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	resourceRoot := filepath.Join(dir, "resources")
	require.NoError(t, os.MkdirAll(resourceRoot, 0o755))

	conf := `
format_version = "0.1.0"
server_hostname = "127.0.0.1"
server_port = "8900"
public_url = "https://gateway.example.com"
handle_cors = true
allowed_origins = ["https://app.example.com"]
resource_root = "` + resourceRoot + `"

[oauth]
client_id = "abc"
client_secret = "def"
authorize_url = "https://auth.example.com/oauth/authorize"
token_url = "https://auth.example.com/oauth/token"

[backend]
base_url = "https://api.workboard.example.com"
`
	file := filepath.Join(dir, "lattice.conf")
	require.NoError(t, os.WriteFile(file, []byte(conf), 0o600))

	require.NoError(t, LoadConfig(file))
	t.Cleanup(func() { cfg = nil })

	c := Config()
	assert.Equal(t, "https://gateway.example.com", c.GetPublicURL())
	assert.Equal(t, "https://gateway.example.com/oauth/callback", c.GetRedirectURI())
	assert.Equal(t, 5*time.Minute, c.GetRefreshWindow())
	assert.Equal(t, time.Hour, c.GetDelegatedTTL())
	assert.Equal(t, 10*time.Minute, c.GetPendingAuthTTL())
	assert.Equal(t, uint(3), c.Backend.RetryAttempts)
}

func TestLoadConfigRejectsMissingOAuth(t *testing.T) {
	dir := t.TempDir()
	conf := `
format_version = "0.1.0"
server_port = "8900"
resource_root = "` + dir + `"

[backend]
base_url = "https://api.workboard.example.com"
`
	file := filepath.Join(dir, "lattice.conf")
	require.NoError(t, os.WriteFile(file, []byte(conf), 0o600))

	err := LoadConfig(file)
	assert.Error(t, err)
}

func TestClientSecretFromEnvironment(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("LATTICE_OAUTH_CLIENT_ID", "env-client")

	c := &ConfigParam{
		FormatVersion: ConfigFormatVersion,
		ServerPort:    "8900",
		ResourceRoot:  dir,
		OAuth: OAuthConfig{
			AuthorizeURL: "https://auth.example.com/oauth/authorize",
			TokenURL:     "https://auth.example.com/oauth/token",
		},
		Backend: BackendConfig{BaseURL: "https://api.workboard.example.com"},
	}
	require.NoError(t, ValidateConfig(c))
	assert.Equal(t, "env-client", c.OAuth.ClientID)
}
