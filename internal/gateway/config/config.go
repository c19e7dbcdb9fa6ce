// Package config loads and validates the gateway configuration. The
// configuration comes from a TOML file, with secrets optionally overlaid
// from the process environment (a .env file is honored when present).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// OAuthConfig holds the settings for the upstream authorization server.
type OAuthConfig struct {
	ClientID     string   `toml:"client_id" validate:"required"`
	ClientSecret string   `toml:"client_secret"`
	AuthorizeURL string   `toml:"authorize_url" validate:"required,url"`
	TokenURL     string   `toml:"token_url" validate:"required,url"`
	RedirectPath string   `toml:"redirect_path"`
	Scopes       []string `toml:"scopes"`
}

// BackendConfig holds the settings for the Workboard data API.
type BackendConfig struct {
	BaseURL       string `toml:"base_url" validate:"required,url"`
	Timeout       string `toml:"timeout"`
	RetryAttempts uint   `toml:"retry_attempts"`
}

// IdentityConfig holds token lifetime policy.
type IdentityConfig struct {
	RefreshWindow  string `toml:"refresh_window"`   // refresh-ahead window before expiry
	DelegatedTTL   string `toml:"delegated_ttl"`    // assumed lifetime of delegated bearers
	PendingAuthTTL string `toml:"pending_auth_ttl"` // lifetime of in-flight authorization state
}

// ConfigParam holds all configuration parameters for the gateway.
type ConfigParam struct {
	FormatVersion string `toml:"format_version"`

	ServerHostName string   `toml:"server_hostname"`
	ServerPort     string   `toml:"server_port" validate:"required"`
	PublicURL      string   `toml:"public_url"` // externally reachable base URL
	HandleCORS     bool     `toml:"handle_cors"`
	AllowedOrigins []string `toml:"allowed_origins"`
	RequestTimeout string   `toml:"request_timeout"`

	ResourceRoot string `toml:"resource_root" validate:"required"`

	OAuth    OAuthConfig    `toml:"oauth"`
	Backend  BackendConfig  `toml:"backend"`
	Identity IdentityConfig `toml:"identity"`
}

var cfg *ConfigParam

// Config returns the current configuration.
func Config() *ConfigParam {
	return cfg
}

// GetPublicURL returns the externally reachable base URL of the gateway.
func (c *ConfigParam) GetPublicURL() string {
	if c.PublicURL != "" {
		return strings.TrimSuffix(c.PublicURL, "/")
	}
	host := c.ServerHostName
	if host == "" {
		host = "localhost"
	}
	return "http://" + host + ":" + c.ServerPort
}

// GetRedirectURI returns the full OAuth redirect URI.
func (c *ConfigParam) GetRedirectURI() string {
	return c.GetPublicURL() + c.OAuth.RedirectPath
}

// ParseDuration parses a duration string in the format "<number><unit>"
// where unit is one of s, m, h, or d.
func ParseDuration(input string) (time.Duration, error) {
	if len(input) < 2 {
		return 0, fmt.Errorf("invalid duration format: %q", input)
	}
	unit := input[len(input)-1:]
	value, err := strconv.Atoi(input[:len(input)-1])
	if err != nil {
		return 0, fmt.Errorf("invalid number in duration: %w", err)
	}
	switch unit {
	case "s":
		return time.Duration(value) * time.Second, nil
	case "m":
		return time.Duration(value) * time.Minute, nil
	case "h":
		return time.Duration(value) * time.Hour, nil
	case "d":
		return time.Duration(value) * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("unknown time unit: %s", unit)
	}
}

// durationOrDefault parses a duration field, panicking on values that
// survived validation but are malformed.
func durationOrDefault(input string, def time.Duration) time.Duration {
	if input == "" {
		return def
	}
	d, err := ParseDuration(input)
	if err != nil {
		panic(fmt.Sprintf("invalid duration %q: %v", input, err))
	}
	return d
}

// GetRequestTimeout returns the per-request timeout for non-streaming routes.
func (c *ConfigParam) GetRequestTimeout() time.Duration {
	return durationOrDefault(c.RequestTimeout, 30*time.Second)
}

// GetRefreshWindow returns the refresh-ahead window for stored tokens.
func (c *ConfigParam) GetRefreshWindow() time.Duration {
	return durationOrDefault(c.Identity.RefreshWindow, 5*time.Minute)
}

// GetDelegatedTTL returns the assumed lifetime for delegated bearer
// credentials that carry no expiry of their own.
func (c *ConfigParam) GetDelegatedTTL() time.Duration {
	return durationOrDefault(c.Identity.DelegatedTTL, time.Hour)
}

// GetPendingAuthTTL returns the lifetime of pending authorization state.
func (c *ConfigParam) GetPendingAuthTTL() time.Duration {
	return durationOrDefault(c.Identity.PendingAuthTTL, 10*time.Minute)
}

// GetBackendTimeout returns the HTTP timeout for backend calls.
func (c *ConfigParam) GetBackendTimeout() time.Duration {
	return durationOrDefault(c.Backend.Timeout, 30*time.Second)
}

// ConfigFormatVersion is the current version of the configuration file format.
const ConfigFormatVersion = "0.1.0"

// ValidateConfig checks that all required configuration values are present
// and valid, and fills in defaults.
func ValidateConfig(c *ConfigParam) error {
	if c.FormatVersion != ConfigFormatVersion {
		return fmt.Errorf("unsupported config file format version: %s", c.FormatVersion)
	}

	// Secrets may come from the environment rather than the config file.
	if v := os.Getenv("LATTICE_OAUTH_CLIENT_ID"); v != "" {
		c.OAuth.ClientID = v
	}
	if v := os.Getenv("LATTICE_OAUTH_CLIENT_SECRET"); v != "" {
		c.OAuth.ClientSecret = v
	}

	if c.OAuth.RedirectPath == "" {
		c.OAuth.RedirectPath = "/oauth/callback"
	}
	if c.Backend.RetryAttempts == 0 {
		c.Backend.RetryAttempts = 3
	}

	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	for _, field := range []string{
		c.RequestTimeout, c.Identity.RefreshWindow, c.Identity.DelegatedTTL,
		c.Identity.PendingAuthTTL, c.Backend.Timeout,
	} {
		if field == "" {
			continue
		}
		if _, err := ParseDuration(field); err != nil {
			return err
		}
	}

	if _, err := os.Stat(c.ResourceRoot); err != nil {
		return fmt.Errorf("resource_root %q: %w", c.ResourceRoot, err)
	}

	return nil
}

// LoadConfig loads configuration from a TOML file. A .env file in the
// working directory is loaded first so that secret overrides are visible
// during validation.
func LoadConfig(filename string) error {
	if filename == "" {
		return fmt.Errorf("config filename is required")
	}

	// Missing .env is not an error.
	_ = godotenv.Load()

	content, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}

	c := &ConfigParam{}
	if _, err := toml.Decode(string(content), c); err != nil {
		return fmt.Errorf("error parsing config file: %w", err)
	}

	if err := ValidateConfig(c); err != nil {
		return err
	}

	cfg = c
	return nil
}
