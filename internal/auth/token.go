// Package auth provides authentication for the wakesentry host.
// This file implements the control token manager: a random bearer token the
// local CLI uses to authenticate schedule/cancel requests against the
// running daemon.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/bcrypt"

	hostErrors "github.com/wakesentry/host/internal/errors"
)

// TokenHashStore persists the bcrypt hash of the control token.
// Only the hash is durable; the plaintext lives solely in the token file.
type TokenHashStore interface {
	GetControlTokenHash() (hash string, ok bool, err error)
	SetControlTokenHash(hash string) error
}

// ControlTokenManager handles the CLI control token.
// The token is a random 32-byte hex string (64 characters) stored in a file
// with 0600 permissions; the store keeps only its bcrypt hash.
//
// Thread safety: after EnsureToken() is called, the hash is immutable and
// Validate is safe for concurrent use.
type ControlTokenManager struct {
	tokenPath string
	store     TokenHashStore

	// hash is the loaded bcrypt hash. Empty until EnsureToken() is called.
	hash string
}

// NewControlTokenManager creates a token manager with the given token path.
// Use DefaultControlTokenPath() to get the standard path
// (~/.wakesentry/control.token).
func NewControlTokenManager(tokenPath string, store TokenHashStore) *ControlTokenManager {
	return &ControlTokenManager{
		tokenPath: tokenPath,
		store:     store,
	}
}

// DefaultControlTokenPath returns the default path for the control token file.
func DefaultControlTokenPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".wakesentry", "control.token"), nil
}

// EnsureToken loads the token file and reconciles it with the stored hash,
// generating a fresh token when either side is missing or inconsistent.
// The parent directory is created if needed with 0700 permissions and the
// token file with 0600 (owner read/write only).
//
// Returns the plaintext token for display; subsequent Validate calls use the
// cached hash.
func (m *ControlTokenManager) EnsureToken() (string, error) {
	data, err := os.ReadFile(m.tokenPath)
	if err == nil {
		token := strings.TrimSpace(string(data))
		if token != "" {
			hash, ok, err := m.store.GetControlTokenHash()
			if err != nil {
				return "", err
			}
			if ok && bcrypt.CompareHashAndPassword([]byte(hash), []byte(token)) == nil {
				m.hash = hash
				log.Printf("auth: loaded control token from %s", m.tokenPath)
				return token, nil
			}
			// Store hash missing or stale (e.g. database recreated):
			// re-hash the existing token so the CLI keeps working.
			if err := m.saveHash(token); err != nil {
				return "", err
			}
			log.Printf("auth: re-registered control token from %s", m.tokenPath)
			return token, nil
		}
		// Empty file, regenerate below.
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to read token file %s: %w", m.tokenPath, err)
	}

	return m.generateNewToken()
}

// Validate checks a presented bearer token against the stored hash.
func (m *ControlTokenManager) Validate(token string) error {
	if m.hash == "" {
		return hostErrors.New(hostErrors.CodeAuthInvalid, "control token is not initialized")
	}
	if token == "" {
		return hostErrors.New(hostErrors.CodeAuthRequired, "control token required")
	}
	// bcrypt.CompareHashAndPassword handles timing-safe comparison.
	if err := bcrypt.CompareHashAndPassword([]byte(m.hash), []byte(token)); err != nil {
		return hostErrors.New(hostErrors.CodeAuthInvalid, "invalid control token")
	}
	return nil
}

func (m *ControlTokenManager) generateNewToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	token := hex.EncodeToString(b)

	dir := filepath.Dir(m.tokenPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create token directory: %w", err)
	}
	if err := os.WriteFile(m.tokenPath, []byte(token+"\n"), 0600); err != nil {
		return "", fmt.Errorf("failed to write token file %s: %w", m.tokenPath, err)
	}

	if err := m.saveHash(token); err != nil {
		return "", err
	}

	log.Printf("auth: generated new control token at %s", m.tokenPath)
	return token, nil
}

func (m *ControlTokenManager) saveHash(token string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash token: %w", err)
	}
	if err := m.store.SetControlTokenHash(string(hash)); err != nil {
		return fmt.Errorf("failed to store token hash: %w", err)
	}
	m.hash = string(hash)
	return nil
}
