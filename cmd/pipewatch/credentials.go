package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Credentials is what a successful login leaves on disk.
type Credentials struct {
	ServerURL string    `json:"serverUrl"`
	Username  string    `json:"username"`
	Token     string    `json:"token,omitempty"`
	SavedAt   time.Time `json:"savedAt"`
}

// CredentialStore handles credentials persistence and access
type CredentialStore struct {
	path  string
	creds Credentials
	mu    sync.RWMutex
}

// DefaultCredentialsPath returns pipewatch/credentials.json under the user
// config directory.
func DefaultCredentialsPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate config directory: %w", err)
	}
	return filepath.Join(dir, "pipewatch", "credentials.json"), nil
}

// NewCredentialStore opens the store at path. A missing file is an empty
// store.
func NewCredentialStore(path string) (*CredentialStore, error) {
	s := &CredentialStore{path: path}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *CredentialStore) load() error {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read credentials: %w", err)
	}
	if err := json.Unmarshal(data, &s.creds); err != nil {
		return fmt.Errorf("failed to parse credentials %s: %w", s.path, err)
	}
	return nil
}

func (s *CredentialStore) save() error {
	data, err := json.MarshalIndent(s.creds, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write credentials: %w", err)
	}
	return os.Rename(tmp, s.path)
}

// Get returns a copy of the stored credentials
func (s *CredentialStore) Get() Credentials {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creds
}

// Save replaces the stored credentials
func (s *CredentialStore) Save(c Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.SavedAt.IsZero() {
		c.SavedAt = time.Now().UTC()
	}
	s.creds = c
	return s.save()
}

// ClearToken forgets the token but keeps the server and username.
func (s *CredentialStore) ClearToken() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds.Token = ""
	return s.save()
}
