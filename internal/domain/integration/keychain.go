package integration

import (
	"fmt"

	"github.com/danieljoos/wincred"
)

// Keychain handles secure storage of credentials in the Windows Credential
// Manager through wincred. On other platforms every call fails, so GetSecret
// reports no secret and profiles should use the memory store instead.
type Keychain struct {
	prefix string
}

// NewKeychain creates a new keychain manager.
func NewKeychain(prefix string) *Keychain {
	return &Keychain{prefix: prefix}
}

func (k *Keychain) target(id string) string {
	return fmt.Sprintf("%s:%s", k.prefix, id)
}

// SetSecret stores a secret in the Windows Credential Manager for the
// current logon session.
func (k *Keychain) SetSecret(id, secret string) error {
	cred := wincred.NewGenericCredential(k.target(id))
	cred.CredentialBlob = []byte(secret)
	cred.Persist = wincred.PersistSession
	return cred.Write()
}

// GetSecret retrieves a secret from the Windows Credential Manager.
func (k *Keychain) GetSecret(id string) (string, error) {
	cred, err := wincred.GetGenericCredential(k.target(id))
	if err != nil {
		return "", err
	}
	return string(cred.CredentialBlob), nil
}

// RemoveSecret deletes a secret from the Windows Credential Manager.
func (k *Keychain) RemoveSecret(id string) error {
	cred, err := wincred.GetGenericCredential(k.target(id))
	if err != nil {
		return err
	}
	return cred.Delete()
}
