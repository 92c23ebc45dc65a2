package session

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/99designs/keyring"
)

const (
	tokenKey         = "token"
	authenticatedKey = "authenticated"
)

// KeyringStore keeps the session in the OS credential store.
type KeyringStore struct {
	ring keyring.Keyring
}

// OpenKeyring opens the system keyring for the given service name. fileDir
// is used by the encrypted-file fallback backend.
func OpenKeyring(serviceName, fileDir string) (*KeyringStore, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  fileDir,
		FilePasswordFunc:         keyring.FixedStringPrompt(serviceName + "-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return NewKeyringStore(ring), nil
}

// NewKeyringStore wraps an already opened keyring.
func NewKeyringStore(ring keyring.Keyring) *KeyringStore {
	return &KeyringStore{ring: ring}
}

// Load reads the session. Missing keys mean "no session", not an error.
func (k *KeyringStore) Load() (Session, error) {
	token, err := k.get(tokenKey)
	if err != nil {
		return Session{}, err
	}
	flag, err := k.get(authenticatedKey)
	if err != nil {
		return Session{}, err
	}

	authenticated := false
	if flag != "" {
		authenticated, err = strconv.ParseBool(flag)
		if err != nil {
			return Session{}, fmt.Errorf("parsing %q credential: %w", authenticatedKey, err)
		}
	}

	return Session{Token: token, Authenticated: authenticated}, nil
}

// Save writes both session keys.
func (k *KeyringStore) Save(s Session) error {
	if err := k.ring.Set(keyring.Item{Key: tokenKey, Data: []byte(s.Token)}); err != nil {
		return fmt.Errorf("setting credential %q: %w", tokenKey, err)
	}
	err := k.ring.Set(keyring.Item{Key: authenticatedKey, Data: []byte(strconv.FormatBool(s.Authenticated))})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", authenticatedKey, err)
	}
	return nil
}

// Clear removes both session keys. Keys that are already gone are fine.
func (k *KeyringStore) Clear() error {
	for _, key := range []string{tokenKey, authenticatedKey} {
		if err := k.ring.Remove(key); err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
			return fmt.Errorf("deleting credential %q: %w", key, err)
		}
	}
	return nil
}

func (k *KeyringStore) get(key string) (string, error) {
	item, err := k.ring.Get(key)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", key, err)
	}
	return string(item.Data), nil
}
