// Package credentials provides OS-native secret storage for session tokens.
//
// Tokens live in the platform's secret facility (Windows Credential Manager,
// macOS Keychain, or the freedesktop Secret Service on Linux) rather than in
// the metadata database, so no plaintext token ever touches disk under our
// control. The go-keyring library selects the backend per build target.
package credentials

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

// service is the keyring service name under which all foldsync tokens live.
// Secrets are isolated per username within this service.
const service = "foldsync"

// activeUserAccount is the reserved account name recording which username
// owns the current session, so a fresh process can re-authenticate.
const activeUserAccount = "foldsync/active-user"

// Store is the capability interface over the OS secret facility.
//
// Implementations hold no state: every call goes straight to the OS, so two
// Store values backed by the same facility always agree.
type Store interface {
	// SaveToken stores or overwrites the token for a username.
	SaveToken(username, token string) error
	// LoadToken returns the stored token, or "" if absent.
	LoadToken(username string) (string, error)
	// DeleteToken removes the stored token. Deleting an absent token is not
	// an error.
	DeleteToken(username string) error
	// HasToken reports whether a token is stored for the username.
	HasToken(username string) (bool, error)
	// SaveActiveUser records which username owns the current session.
	SaveActiveUser(username string) error
	// ActiveUser returns the recorded session owner, or "" if none.
	ActiveUser() (string, error)
	// ClearActiveUser forgets the recorded session owner. Idempotent.
	ClearActiveUser() error
}

// Keyring is the production Store backed by the platform keyring.
type Keyring struct{}

// NewKeyring returns a Store backed by the OS secret facility.
func NewKeyring() *Keyring {
	return &Keyring{}
}

// SaveToken implements Store.SaveToken.
//
// Tokens round-trip byte-for-byte, including Unicode and multi-kilobyte
// payloads. Empty usernames or tokens are rejected before touching the OS.
func (k *Keyring) SaveToken(username, token string) error {
	if username == "" {
		return fmt.Errorf("username is required")
	}
	if token == "" {
		return fmt.Errorf("token is required")
	}

	if err := keyring.Set(service, username, token); err != nil {
		return fmt.Errorf("failed to save token for %s: %w", username, err)
	}
	return nil
}

// LoadToken implements Store.LoadToken.
func (k *Keyring) LoadToken(username string) (string, error) {
	if username == "" {
		return "", fmt.Errorf("username is required")
	}

	token, err := keyring.Get(service, username)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load token for %s: %w", username, err)
	}
	return token, nil
}

// DeleteToken implements Store.DeleteToken.
func (k *Keyring) DeleteToken(username string) error {
	if username == "" {
		return fmt.Errorf("username is required")
	}

	err := keyring.Delete(service, username)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to delete token for %s: %w", username, err)
	}
	return nil
}

// HasToken implements Store.HasToken.
func (k *Keyring) HasToken(username string) (bool, error) {
	token, err := k.LoadToken(username)
	if err != nil {
		return false, err
	}
	return token != "", nil
}

// SaveActiveUser implements Store.SaveActiveUser.
func (k *Keyring) SaveActiveUser(username string) error {
	if username == "" {
		return fmt.Errorf("username is required")
	}

	if err := keyring.Set(service, activeUserAccount, username); err != nil {
		return fmt.Errorf("failed to record active user: %w", err)
	}
	return nil
}

// ActiveUser implements Store.ActiveUser.
func (k *Keyring) ActiveUser() (string, error) {
	username, err := keyring.Get(service, activeUserAccount)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read active user: %w", err)
	}
	return username, nil
}

// ClearActiveUser implements Store.ClearActiveUser.
func (k *Keyring) ClearActiveUser() error {
	err := keyring.Delete(service, activeUserAccount)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to clear active user: %w", err)
	}
	return nil
}
