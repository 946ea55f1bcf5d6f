package profile

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// Profile describes one JSON-RPC endpoint and how to authenticate with it.
type Profile struct {
	// Unique identifier for the profile (e.g., "local", "prod")
	ID string `yaml:"id" toml:"id"`

	// URL is the JSON-RPC endpoint, e.g. "https://reviews.example.com/v1/rpc/"
	URL string `yaml:"url" toml:"url"`

	// User and Password enable Basic authentication
	User     string `yaml:"user,omitempty" toml:"user,omitempty"`
	Password string `yaml:"password,omitempty" toml:"password,omitempty"`

	// SessionHeader overrides the header carrying the session token
	SessionHeader string `yaml:"session_header,omitempty" toml:"session_header,omitempty"`

	// TokenStore is "memory" or "keychain"
	TokenStore string `yaml:"token_store,omitempty" toml:"token_store,omitempty"`

	// Token seeds the token store
	Token string `yaml:"token,omitempty" toml:"token,omitempty"`

	TimeoutMs int               `yaml:"timeout_ms,omitempty" toml:"timeout_ms,omitempty"`
	RateLimit float64           `yaml:"rate_limit,omitempty" toml:"rate_limit,omitempty"`
	Burst     int               `yaml:"burst,omitempty" toml:"burst,omitempty"`
	Headers   map[string]string `yaml:"headers,omitempty" toml:"headers,omitempty"`

	TLS   *TLS   `yaml:"tls,omitempty" toml:"tls,omitempty"`
	OAuth *OAuth `yaml:"oauth,omitempty" toml:"oauth,omitempty"`
}

// TLS holds the files for a mutual TLS connection.
type TLS struct {
	Cert string `yaml:"cert" toml:"cert"`
	Key  string `yaml:"key" toml:"key"`
	CA   string `yaml:"ca" toml:"ca"`
}

// OAuth configures session token refresh via the refresh-token grant.
type OAuth struct {
	ClientID     string   `yaml:"client_id" toml:"client_id"`
	ClientSecret string   `yaml:"client_secret,omitempty" toml:"client_secret,omitempty"`
	TokenURL     string   `yaml:"token_url" toml:"token_url"`
	RefreshToken string   `yaml:"refresh_token" toml:"refresh_token"`
	Scopes       []string `yaml:"scopes,omitempty" toml:"scopes,omitempty"`
}

// Timeout returns the request timeout, zero meaning the client default.
func (p Profile) Timeout() time.Duration {
	return time.Duration(p.TimeoutMs) * time.Millisecond
}

// Validate checks if the profile configuration is valid.
func (p Profile) Validate() error {
	if p.ID == "" {
		return errors.New("profile id is required")
	}
	if p.URL == "" {
		return fmt.Errorf("profile %s: url is required", p.ID)
	}
	u, err := url.Parse(p.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("profile %s: invalid url %q", p.ID, p.URL)
	}
	if p.TimeoutMs < 0 || p.RateLimit < 0 || p.Burst < 0 {
		return fmt.Errorf("profile %s: timeout, rate limit and burst must not be negative", p.ID)
	}
	if p.TLS != nil && (p.TLS.Cert == "" || p.TLS.Key == "" || p.TLS.CA == "") {
		return fmt.Errorf("profile %s: tls needs cert, key and ca", p.ID)
	}
	if p.OAuth != nil && (p.OAuth.TokenURL == "" || p.OAuth.ClientID == "") {
		return fmt.Errorf("profile %s: oauth needs client_id and token_url", p.ID)
	}
	return nil
}
