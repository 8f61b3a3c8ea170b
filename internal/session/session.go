// Package session persists the logged-in identity between CLI runs.
//
// The session file is a small TOML document next to the local database.
// The identity is an opaque string (an e-mail address); no validation is
// performed on it. When no session exists, the fixed seed identity is
// used so the tool works before any account is registered.
package session

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// SeedIdentity is used when no session has been saved.
const SeedIdentity = "hire-me@anshumat.org"

// Session is the persisted login state.
type Session struct {
	Email   string    `toml:"email"`
	Token   string    `toml:"token,omitempty"`
	SavedAt time.Time `toml:"saved_at"`
}

// Path returns the session file location under dir.
func Path(dir string) string {
	return filepath.Join(dir, "session.toml")
}

// Resolve returns the identity to sync as: the stored session's email,
// or SeedIdentity if no session exists or it cannot be read.
func Resolve(dir string) string {
	s, err := Load(dir)
	if err != nil || s.Email == "" {
		return SeedIdentity
	}
	return s.Email
}

// Load reads the session file. Returns os.ErrNotExist (wrapped) when no
// session has been saved.
func Load(dir string) (*Session, error) {
	var s Session
	if _, err := toml.DecodeFile(Path(dir), &s); err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}
	return &s, nil
}

// Save writes the session file, creating the directory if needed.
func Save(dir string, s *Session) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	s.SavedAt = time.Now()

	f, err := os.OpenFile(Path(dir), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to open session file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(s); err != nil {
		return fmt.Errorf("failed to write session: %w", err)
	}
	return nil
}

// Clear removes the session file. Removing a session that does not
// exist is not an error.
func Clear(dir string) error {
	err := os.Remove(Path(dir))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}
