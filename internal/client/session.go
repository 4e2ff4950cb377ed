// Package client is a Go client for the kindfund API that keeps the admin
// session token between invocations.
package client

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SessionFile is the name of the token file inside the data directory.
const SessionFile = "session"

// TokenStore holds at most one session token.
type TokenStore interface {
	// Store replaces any held token.
	Store(token string) error
	// Load returns the held token, or "" when none is held.
	Load() (string, error)
	// Clear discards the held token. Clearing an empty store is not an error.
	Clear() error
}

// FileTokenStore keeps the token in a file readable only by its owner, so
// it survives process restarts.
type FileTokenStore struct {
	path string
}

// NewFileTokenStore returns a store backed by <dir>/session.
func NewFileTokenStore(dir string) *FileTokenStore {
	return &FileTokenStore{path: filepath.Join(dir, SessionFile)}
}

// Path returns the token file location.
func (s *FileTokenStore) Path() string { return s.path }

// Store writes token, replacing the previous one.
func (s *FileTokenStore) Store(token string) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	// Write to a temp file and rename so a crash never leaves half a token.
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".session-*")
	if err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return fmt.Errorf("write session: %w", err)
	}
	if _, err := tmp.WriteString(token); err != nil {
		tmp.Close()
		return fmt.Errorf("write session: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}

// Load reads the held token.
func (s *FileTokenStore) Load() (string, error) {
	b, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read session: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}

// Clear removes the token file.
func (s *FileTokenStore) Clear() error {
	err := os.Remove(s.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// MemoryTokenStore keeps the token for the life of the process.
type MemoryTokenStore struct {
	token string
}

// Store keeps token in memory.
func (m *MemoryTokenStore) Store(token string) error { m.token = token; return nil }

// Load returns the stored token, or "" when there is none.
func (m *MemoryTokenStore) Load() (string, error) { return m.token, nil }

// Clear forgets the stored token.
func (m *MemoryTokenStore) Clear() error { m.token = ""; return nil }
