// Package secret keeps the Firebird password in the OS credential store so
// that it does not have to live in the project file or the shell history.
package secret

import (
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/99designs/keyring"

	"github.com/deixis/falconctl/internal/config"
)

// ServiceName namespaces falconctl entries in the credential store.
const ServiceName = "falconctl"

// KeyPassword is the item holding the default Firebird password.
const KeyPassword = "firebird_password"

// Store reads and writes credentials. It is safe for concurrent use.
type Store struct {
	mu   sync.RWMutex
	ring keyring.Keyring
}

// NewStore wraps an already opened keyring.
func NewStore(ring keyring.Keyring) *Store {
	return &Store{ring: ring}
}

// Open opens the platform's native credential store. There is no file
// fallback: when no native backend is available Open fails.
func Open() (*Store, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName:     ServiceName,
		AllowedBackends: nativeBackends(runtime.GOOS),
		KeychainName:    "login",
		PassPrefix:      ServiceName,
		WinCredPrefix:   ServiceName,
	})
	if err != nil {
		return nil, fmt.Errorf("opening credential store: %w", err)
	}
	return NewStore(ring), nil
}

func nativeBackends(goos string) []keyring.BackendType {
	switch goos {
	case "darwin":
		return []keyring.BackendType{keyring.KeychainBackend, keyring.PassBackend}
	case "windows":
		return []keyring.BackendType{keyring.WinCredBackend}
	}
	return []keyring.BackendType{keyring.SecretServiceBackend, keyring.KWalletBackend, keyring.PassBackend}
}

// Password returns the stored password. found is false when nothing is
// stored.
func (s *Store) Password() (pw config.Secret, found bool, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, err := s.ring.Get(KeyPassword)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading password: %w", err)
	}
	return config.Secret(item.Data), true, nil
}

// SetPassword stores pw, replacing any previous value.
func (s *Store) SetPassword(pw config.Secret) error {
	if pw.IsZero() {
		return errors.New("refusing to store an empty password")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.ring.Set(keyring.Item{
		Key:         KeyPassword,
		Data:        []byte(pw.Reveal()),
		Label:       "falconctl Firebird password",
		Description: "Default password passed to the Firebird extractor",
	})
	if err != nil {
		return fmt.Errorf("storing password: %w", err)
	}
	return nil
}

// DeletePassword removes the stored password. Removing a password that is
// not there is not an error.
func (s *Store) DeletePassword() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.ring.Remove(KeyPassword)
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("removing password: %w", err)
	}
	return nil
}
