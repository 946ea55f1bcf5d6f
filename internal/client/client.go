// Package client implements a JSON-RPC 2.0 client over HTTP with batching,
// response correlation and coordinated session token refresh.
package client

import (
	"encoding/base64"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rpcwire/rpcwire/internal/logger"
	"golang.org/x/time/rate"
)

const (
	// DefaultTimeout bounds every HTTP round trip.
	DefaultTimeout = 20 * time.Second

	// DefaultSessionHeader carries the session token. It is distinct from
	// Authorization so Basic credentials and the session can coexist.
	DefaultSessionHeader = "Authorization2"

	// SlowRequestThreshold is the duration above which a slow request is logged.
	SlowRequestThreshold = 3000 * time.Millisecond
)

// Config describes a client instance. URL is required.
type Config struct {
	URL      string
	User     string
	Password string

	// Timeout defaults to DefaultTimeout. Ignored when HTTPClient is set.
	Timeout       time.Duration
	SessionHeader string
	HTTPClient    *http.Client

	// Tokens defaults to an empty MemoryTokenStore.
	Tokens TokenStore

	// Refresher is called on authorization failures. Nil disables refresh.
	Refresher RefreshFunc

	// Interactive marks a client driven by a user session. With it set, an
	// empty refreshed token invokes OnSessionInvalidated.
	Interactive          bool
	OnSessionInvalidated func()

	// OnResponse observes every resolved call and batch entry.
	OnResponse ResponseHook

	// Limiter throttles sends when set.
	Limiter *rate.Limiter
}

// Client is safe for concurrent use.
type Client struct {
	url           string
	user          string
	password      string
	sessionHeader string
	httpClient    *http.Client
	timeout       time.Duration
	limiter       *rate.Limiter
	interactive   bool

	tokens               TokenStore
	refresher            RefreshFunc
	onSessionInvalidated func()

	nextID atomic.Uint64

	mu          sync.Mutex
	headers     map[string]string
	onResponse  ResponseHook
	refreshing  *refreshHandle
	refreshedAt time.Time
}

// New creates a client for cfg.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	sessionHeader := cfg.SessionHeader
	if sessionHeader == "" {
		sessionHeader = DefaultSessionHeader
	}
	tokens := cfg.Tokens
	if tokens == nil {
		tokens = NewMemoryTokenStore("")
	}

	logger.Redact(cfg.Password)
	logger.Redact(tokens.Token())

	return &Client{
		url:                  cfg.URL,
		user:                 cfg.User,
		password:             cfg.Password,
		sessionHeader:        sessionHeader,
		httpClient:           httpClient,
		timeout:              timeout,
		limiter:              cfg.Limiter,
		interactive:          cfg.Interactive,
		tokens:               tokens,
		refresher:            cfg.Refresher,
		onSessionInvalidated: cfg.OnSessionInvalidated,
		onResponse:           cfg.OnResponse,
		headers: map[string]string{
			"Content-Type": "application/json",
			"Accept":       "application/json",
		},
	}
}

// URL returns the configured endpoint.
func (c *Client) URL() string {
	return c.url
}

// SetHeader sets an extra header sent with every request.
func (c *Client) SetHeader(key, value string) {
	c.mu.Lock()
	c.headers[key] = value
	c.mu.Unlock()
}

// SetResponseHook replaces the observability hook.
func (c *Client) SetResponseHook(hook ResponseHook) {
	c.mu.Lock()
	c.onResponse = hook
	c.mu.Unlock()
}

// Token returns the current session token.
func (c *Client) Token() string {
	return c.tokens.Token()
}

// RefreshedAt returns the time of the last successful refresh, or zero.
func (c *Client) RefreshedAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refreshedAt
}

// Headers returns a snapshot of the headers the next request would carry.
func (c *Client) Headers() map[string]string {
	c.mu.Lock()
	result := make(map[string]string, len(c.headers)+2)
	for k, v := range c.headers {
		result[k] = v
	}
	c.mu.Unlock()

	if c.user != "" {
		result["Authorization"] = "Basic " + base64.StdEncoding.EncodeToString([]byte(c.user+":"+c.password))
	}
	if token := c.tokens.Token(); token != "" {
		result[c.sessionHeader] = token
	}
	return result
}

func (c *Client) hook() ResponseHook {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.onResponse
}
