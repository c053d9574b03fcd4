// Package config loads and persists gatewayd's JSON configuration file
// and the environment variable overlay.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/bnema/gatewayd/internal/domain"
)

// AcmeConfig mirrors the "acme" object in the config file.
type AcmeConfig struct {
	DirectoryURL string `json:"directoryUrl"`
	ConfigDir    string `json:"configDir"`
}

// File is the decoded shape of the on-disk JSON config. Extra is every
// top-level key this struct doesn't name, preserved verbatim across saves.
type File struct {
	Email         string       `json:"email"`
	AgreeToTerms  bool         `json:"agreeToTerms"`
	AdminToken    string       `json:"adminToken,omitempty"`
	Acme          AcmeConfig   `json:"acme"`
	Apps          []domain.App `json:"apps"`
	Extra         map[string]json.RawMessage `json:"-"`
}

// Store loads and atomically rewrites a config File at a fixed path,
// preserving unrecognized top-level keys: the persisted config and
// in-memory map stay equal after every committed mutation.
type Store struct {
	path string
	mu   sync.Mutex
}

// NewStore opens (without yet reading) the config file at path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load reads and decodes the config file.
func (s *Store) Load() (*File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *Store) load() (*File, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", s.path, err)
	}

	var known struct {
		Email        string       `json:"email"`
		AgreeToTerms bool         `json:"agreeToTerms"`
		AdminToken   string       `json:"adminToken,omitempty"`
		Acme         AcmeConfig   `json:"acme"`
		Apps         []domain.App `json:"apps"`
	}
	if err := json.Unmarshal(raw, &known); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", s.path, err)
	}

	var extra map[string]json.RawMessage
	if err := json.Unmarshal(raw, &extra); err != nil {
		return nil, fmt.Errorf("parse config %s as map: %w", s.path, err)
	}
	for _, known := range []string{"email", "agreeToTerms", "adminToken", "acme", "apps"} {
		delete(extra, known)
	}

	return &File{
		Email:        known.Email,
		AgreeToTerms: known.AgreeToTerms,
		AdminToken:   known.AdminToken,
		Acme:         known.Acme,
		Apps:         known.Apps,
		Extra:        extra,
	}, nil
}

// Save rewrites the config file via temp-file-and-rename, merging Extra
// back in so unrelated keys survive a mutation to Apps or Acme.
func (s *Store) Save(f *File) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	merged := map[string]json.RawMessage{}
	for k, v := range f.Extra {
		merged[k] = v
	}

	for key, val := range map[string]any{
		"email":        f.Email,
		"agreeToTerms": f.AgreeToTerms,
		"acme":         f.Acme,
		"apps":         f.Apps,
	} {
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Errorf("encode %s: %w", key, err)
		}
		merged[key] = b
	}
	if f.AdminToken != "" {
		b, err := json.Marshal(f.AdminToken)
		if err != nil {
			return fmt.Errorf("encode adminToken: %w", err)
		}
		merged["adminToken"] = b
	}

	out, err := json.MarshalIndent(merged, "", "  ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	return writeFileAtomic(s.path, out, 0o644)
}

// writeFileAtomic writes data to a temp file in dir(path) and renames it
// into place, so readers never observe a partially-written file. This is
// the same write-temp-then-rename idiom used for certificate files (C1).
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("ensure config dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp config file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp config file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp config file: %w", err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("chmod temp config file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp config file into place: %w", err)
	}
	return nil
}
