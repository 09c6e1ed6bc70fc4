package credential

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/99designs/keyring"
)

const serviceName = "inboxagent"

// Well-known credential keys.
const (
	KeyIMAPPassword = "imap-password"
	KeyAIAPIKey     = "ai-api-key"
)

// ErrNotFound is returned when the keyring holds no value for a key.
var ErrNotFound = errors.New("credential not found")

// Ring stores secrets for the agent.
type Ring struct {
	ring keyring.Keyring
}

// Open returns the system keyring, falling back to an encrypted file
// under dir.
func Open(dir string) (*Ring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  filepath.Join(dir, "credentials"),
		FilePasswordFunc:         filePassword,
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return &Ring{ring: ring}, nil
}

// NewRing wraps an existing keyring. Tests use keyring.NewArrayKeyring.
func NewRing(ring keyring.Keyring) *Ring {
	return &Ring{ring: ring}
}

// filePassword lets headless deployments unlock the file backend from the
// environment.
func filePassword(prompt string) (string, error) {
	if pw := os.Getenv("INBOXAGENT_KEYRING_PASSWORD"); pw != "" {
		return pw, nil
	}
	return keyring.FixedStringPrompt("inboxagent-file-key")(prompt)
}

// Get retrieves a credential value by key.
func (r *Ring) Get(key string) (string, error) {
	item, err := r.ring.Get(key)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", fmt.Errorf("getting credential %q: %w", key, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", key, err)
	}

	return string(item.Data), nil
}

// Set stores a credential value by key.
func (r *Ring) Set(key string, value string) error {
	err := r.ring.Set(keyring.Item{
		Key:  key,
		Data: []byte(value),
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", key, err)
	}

	return nil
}

// Delete removes a credential by key.
func (r *Ring) Delete(key string) error {
	if err := r.ring.Remove(key); err != nil {
		return fmt.Errorf("deleting credential %q: %w", key, err)
	}

	return nil
}

// Resolve returns explicit when it is non-empty, otherwise the keyring
// value for key.
func (r *Ring) Resolve(explicit, key string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if r == nil {
		return "", fmt.Errorf("resolving credential %q: %w", key, ErrNotFound)
	}
	return r.Get(key)
}
