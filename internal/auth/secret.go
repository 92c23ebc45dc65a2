package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// TokenFileName is the file under the config dir holding the local API token.
const TokenFileName = "api-token"

// LoadOrCreateToken reads the local API token from configDir, or generates
// and persists a new 256-bit hex token if the file is missing or blank.
func LoadOrCreateToken(configDir string) (string, error) {
	path := filepath.Join(configDir, TokenFileName)

	data, err := os.ReadFile(path)
	if err == nil {
		if token := strings.TrimSpace(string(data)); token != "" {
			return token, nil
		}
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("read api token: %w", err)
	}

	return RotateToken(configDir)
}

// RotateToken replaces the local API token. Clients holding the old one
// are rejected from then on.
func RotateToken(configDir string) (string, error) {
	token, err := generateToken()
	if err != nil {
		return "", err
	}
	if err := writeToken(configDir, token); err != nil {
		return "", err
	}
	return token, nil
}

// Matches compares a presented token against the expected one in constant time.
func Matches(expected, presented string) bool {
	if expected == "" || presented == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(presented)) == 1
}

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate api token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func writeToken(configDir, token string) error {
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	path := filepath.Join(configDir, TokenFileName)
	if err := os.WriteFile(path, []byte(token+"\n"), 0600); err != nil {
		return fmt.Errorf("write api token: %w", err)
	}
	// WriteFile keeps the mode of an existing file.
	if err := os.Chmod(path, 0600); err != nil {
		return fmt.Errorf("chmod api token: %w", err)
	}
	return nil
}
