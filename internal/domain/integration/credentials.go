package integration

import (
	"fmt"
	"strings"

	"github.com/rpcwire/rpcwire/internal/client"
	"github.com/rpcwire/rpcwire/internal/logger"
)

// Token store kinds accepted in profiles.
const (
	StoreMemory   = "memory"
	StoreKeychain = "keychain"
)

// SecretBackend is the subset of Keychain used by KeychainTokenStore.
type SecretBackend interface {
	GetSecret(id string) (string, error)
	SetSecret(id, secret string) error
	RemoveSecret(id string) error
}

// KeychainTokenStore keeps a profile's session token in the OS credential store.
type KeychainTokenStore struct {
	backend SecretBackend
	id      string
}

// NewKeychainTokenStore creates a store for the session token of profileID.
func NewKeychainTokenStore(backend SecretBackend, profileID string) *KeychainTokenStore {
	return &KeychainTokenStore{backend: backend, id: profileID + ":session"}
}

// Token returns "" when no credential is stored or the store is unavailable.
func (s *KeychainTokenStore) Token() string {
	token, err := s.backend.GetSecret(s.id)
	if err != nil {
		logger.Debugf("keychain: no session token for %s: %v", s.id, err)
		return ""
	}
	return token
}

// SetToken stores token. An empty token removes the credential.
func (s *KeychainTokenStore) SetToken(token string) error {
	if token == "" {
		if err := s.backend.RemoveSecret(s.id); err != nil {
			logger.Debugf("keychain: remove %s: %v", s.id, err)
		}
		return nil
	}
	if err := s.backend.SetSecret(s.id, token); err != nil {
		return fmt.Errorf("keychain: store session token: %w", err)
	}
	return nil
}

// NewTokenStore returns the token store of the given kind. seed, when not
// empty, replaces the stored token.
func NewTokenStore(kind, profileID, seed string) (client.TokenStore, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", StoreMemory:
		return client.NewMemoryTokenStore(seed), nil
	case StoreKeychain:
		store := NewKeychainTokenStore(NewKeychain("rpcwire"), profileID)
		if seed != "" {
			if err := store.SetToken(seed); err != nil {
				return nil, err
			}
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown token store %q", kind)
	}
}
