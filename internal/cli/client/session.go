// Package client builds library clients from configured profiles.
package client

import (
	"fmt"
	"net/http"
	"time"

	rpcclient "github.com/rpcwire/rpcwire/internal/client"
	"github.com/rpcwire/rpcwire/internal/domain/integration"
	"github.com/rpcwire/rpcwire/internal/domain/profile"
	"github.com/rpcwire/rpcwire/internal/logger"
	"github.com/rpcwire/rpcwire/internal/transport"
	"golang.org/x/time/rate"
)

// Options adjust a session beyond what its profile sets.
type Options struct {
	// Timeout overrides the profile timeout when positive.
	Timeout time.Duration

	// Hooks observe responses in addition to the debug log.
	Hooks []rpcclient.ResponseHook

	Interactive bool
}

// Session is a client bound to a profile and its token store.
type Session struct {
	Profile   profile.Profile
	Client    *rpcclient.Client
	Tokens    rpcclient.TokenStore
	Refresher *integration.OAuthRefresher
}

// NewSession wires the token store, refresher, limiter and transport
// described by p into a new client.
func NewSession(p profile.Profile, opts Options) (*Session, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	logger.Redact(p.Password)
	logger.Redact(p.Token)

	tokens, err := integration.NewTokenStore(p.TokenStore, p.ID, p.Token)
	if err != nil {
		return nil, fmt.Errorf("profile %s: %w", p.ID, err)
	}
	logger.Redact(tokens.Token())

	timeout := p.Timeout()
	if opts.Timeout > 0 {
		timeout = opts.Timeout
	}
	if timeout == 0 {
		timeout = rpcclient.DefaultTimeout
	}

	var httpClient *http.Client
	if p.TLS != nil {
		httpClient, err = transport.BuildHTTP2Client(p.TLS.Cert, p.TLS.Key, p.TLS.CA, timeout)
		if err != nil {
			return nil, fmt.Errorf("profile %s: %w", p.ID, err)
		}
	}

	s := &Session{Profile: p, Tokens: tokens}

	cfg := rpcclient.Config{
		URL:           p.URL,
		User:          p.User,
		Password:      p.Password,
		Timeout:       timeout,
		SessionHeader: p.SessionHeader,
		HTTPClient:    httpClient,
		Tokens:        tokens,
		Interactive:   opts.Interactive,
		OnSessionInvalidated: func() {
			logger.Warnf("session for profile %s was invalidated, run 'rpcwire token set' to log in again", p.ID)
		},
		OnResponse: rpcclient.ChainHooks(append([]rpcclient.ResponseHook{logResponse}, opts.Hooks...)...),
	}

	if p.OAuth != nil {
		logger.Redact(p.OAuth.ClientSecret)
		logger.Redact(p.OAuth.RefreshToken)
		s.Refresher = integration.NewOAuthRefresher(p.OAuth.ClientID, p.OAuth.ClientSecret, p.OAuth.TokenURL, p.OAuth.Scopes, p.OAuth.RefreshToken)
		cfg.Refresher = s.Refresher.Refresh
	}

	if p.RateLimit > 0 {
		burst := p.Burst
		if burst < 1 {
			burst = 1
		}
		cfg.Limiter = rate.NewLimiter(rate.Limit(p.RateLimit), burst)
	}

	s.Client = rpcclient.New(cfg)
	for k, v := range p.Headers {
		s.Client.SetHeader(k, v)
	}
	return s, nil
}

func logResponse(l rpcclient.ResponseLog) {
	if l.Batch != "" {
		logger.Debugf("batch %s: %s request=%s %dms", l.Batch, l.Method, l.RequestID, l.Duration.Milliseconds())
		return
	}
	logger.Debugf("%s request=%s %dms", l.Method, l.RequestID, l.Duration.Milliseconds())
}
