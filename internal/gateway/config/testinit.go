package config

import (
	"testing"
)

// TestInit installs a self-contained configuration for tests. The resource
// root points at a per-test temporary directory so resolver and static
// serving tests can create files freely.
func TestInit(t *testing.T) *ConfigParam {
	t.Helper()
	prev := cfg
	cfg = &ConfigParam{
		FormatVersion:  ConfigFormatVersion,
		ServerHostName: "127.0.0.1",
		ServerPort:     "8900",
		PublicURL:      "http://127.0.0.1:8900",
		HandleCORS:     true,
		AllowedOrigins: []string{"https://app.example.com"},
		ResourceRoot:   t.TempDir(),
		OAuth: OAuthConfig{
			ClientID:     "test-client",
			ClientSecret: "test-secret",
			AuthorizeURL: "https://auth.example.com/oauth/authorize",
			TokenURL:     "https://auth.example.com/oauth/token",
			RedirectPath: "/oauth/callback",
			Scopes:       []string{"boards:read", "boards:write"},
		},
		Backend: BackendConfig{
			BaseURL:       "https://api.workboard.example.com",
			RetryAttempts: 1,
		},
	}
	t.Cleanup(func() { cfg = prev })
	return cfg
}
