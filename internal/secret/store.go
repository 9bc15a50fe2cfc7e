package secret

import (
	"os/exec"
	"runtime"
	"sync"
)

// Well-known keys.
const (
	KeyAPIToken   = "smartclass:api-token"
	KeyDBPassword = "smartclass:db-password"
)

// SecretStore is the token storage port. Desktop builds use the OS
// credential store; servers and tests use MemoryStore.
type SecretStore interface {
	// Set stores a secret value under the given key.
	Set(key string, value []byte) error

	// Get retrieves the secret value for the given key.
	// Returns empty slice and nil error if key does not exist.
	Get(key string) ([]byte, error)

	// Delete removes the secret for the given key.
	Delete(key string) error
}

// Default returns the Keychain on macOS, libsecret on Linux when
// secret-tool is installed, and an in-memory store otherwise.
func Default() SecretStore {
	switch runtime.GOOS {
	case "darwin":
		return NewKeychainStore()
	case "linux":
		if _, err := exec.LookPath("secret-tool"); err == nil {
			return NewLibsecretStore()
		}
	}
	return NewMemoryStore()
}

type MemoryStore struct {
	mu      sync.RWMutex
	secrets map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{secrets: make(map[string][]byte)}
}

func (m *MemoryStore) Set(key string, value []byte) error {
	m.mu.Lock()
	m.secrets[key] = append([]byte(nil), value...)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Get(key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.secrets[key]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), v...), nil
}

func (m *MemoryStore) Delete(key string) error {
	m.mu.Lock()
	delete(m.secrets, key)
	m.mu.Unlock()
	return nil
}

// GetString is Get for text secrets.
func GetString(s SecretStore, key string) (string, error) {
	v, err := s.Get(key)
	if err != nil {
		return "", err
	}
	return string(v), nil
}
