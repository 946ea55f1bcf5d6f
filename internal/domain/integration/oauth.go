package integration

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rpcwire/rpcwire/internal/client"
	"github.com/rpcwire/rpcwire/internal/logger"
	"golang.org/x/oauth2"
)

// OAuthRefresher renews the session token with the OAuth 2 refresh-token grant.
type OAuthRefresher struct {
	config *oauth2.Config

	mu           sync.Mutex
	refreshToken string
}

// NewOAuthRefresher creates a refresher for the given client and token endpoint.
func NewOAuthRefresher(clientID, clientSecret, tokenURL string, scopes []string, refreshToken string) *OAuthRefresher {
	return &OAuthRefresher{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL:  tokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
			Scopes: scopes,
		},
		refreshToken: refreshToken,
	}
}

// Refresh implements client.RefreshFunc. A rotated refresh token returned by
// the server replaces the current one.
func (r *OAuthRefresher) Refresh(ctx context.Context, _ client.RefreshRequest) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.refreshToken == "" {
		return "", errors.New("oauth: no refresh token configured")
	}

	tok, err := r.config.TokenSource(ctx, &oauth2.Token{RefreshToken: r.refreshToken}).Token()
	if err != nil {
		return "", fmt.Errorf("oauth: refresh session token: %w", err)
	}
	if tok.RefreshToken != "" {
		r.refreshToken = tok.RefreshToken
	}

	logger.Redact(tok.AccessToken)
	logger.Debugf("oauth: session token refreshed, expires %s", tok.Expiry.Format("15:04:05"))
	return tok.AccessToken, nil
}

// RefreshToken returns the refresh token currently in use.
func (r *OAuthRefresher) RefreshToken() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.refreshToken
}
