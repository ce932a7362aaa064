package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// DefaultProfileName is the profile used when no name is given.
const DefaultProfileName = "default"

// Store provides persistence for named browser profiles.
type Store interface {
	// Load loads the profiles from disk
	Load() error

	// Save saves the profiles to disk
	Save() error

	// Profile retrieves a named profile
	Profile(name string) (*Profile, error)

	// SetProfile stores a named profile
	SetProfile(name string, profile *Profile) error

	// Names returns the names of all stored profiles
	Names() []string
}

// FileStore implements Store using a YAML file.
type FileStore struct {
	path     string
	profiles map[string]*Profile
	version  string
	mu       sync.RWMutex
	modified bool
}

// NewFileStore creates a new file-based profile store.
// If path is empty, defaults to ~/.pilot/profiles.yaml
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		path = filepath.Join(homeDir, ".pilot", "profiles.yaml")
	}

	store := &FileStore{
		path:     path,
		profiles: make(map[string]*Profile),
		version:  "1",
	}

	// Try to load existing profiles, but don't fail if the file doesn't exist
	if err := store.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load profiles from %s: %w", path, err)
	}

	return store, nil
}

// storeFile is the on-disk YAML shape.
type storeFile struct {
	Version  string              `yaml:"version"`
	Profiles map[string]*Profile `yaml:"profiles"`
}

// Load loads the profiles from disk.
func (s *FileStore) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			// File doesn't exist yet, start empty
			s.profiles = make(map[string]*Profile)
			return nil
		}
		return fmt.Errorf("failed to read profile file: %w", err)
	}

	var file storeFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return fmt.Errorf("failed to parse profile file: %w", err)
	}

	if file.Version != "" {
		s.version = file.Version
	}
	if file.Profiles != nil {
		s.profiles = file.Profiles
	} else {
		s.profiles = make(map[string]*Profile)
	}
	s.modified = false

	return nil
}

// Save saves the profiles to disk.
func (s *FileStore) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create profile directory: %w", err)
	}

	raw, err := yaml.Marshal(storeFile{
		Version:  s.version,
		Profiles: s.profiles,
	})
	if err != nil {
		return fmt.Errorf("failed to encode profiles: %w", err)
	}

	// Write to a temp file and rename for atomicity
	tempPath := s.path + ".tmp"
	if err := os.WriteFile(tempPath, raw, 0600); err != nil {
		return fmt.Errorf("failed to write temp profile file: %w", err)
	}
	if err := os.Rename(tempPath, s.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename temp profile file: %w", err)
	}

	s.modified = false
	return nil
}

// Profile retrieves a named profile. Returns an error if the profile
// does not exist, except for the default profile which is implicitly
// empty when absent.
func (s *FileStore) Profile(name string) (*Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if name == "" {
		name = DefaultProfileName
	}

	if profile, exists := s.profiles[name]; exists {
		return profile.Clone(), nil
	}

	if name == DefaultProfileName {
		return &Profile{}, nil
	}

	return nil, fmt.Errorf("profile %q not found", name)
}

// SetProfile stores a named profile.
func (s *FileStore) SetProfile(name string, profile *Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if name == "" {
		return fmt.Errorf("profile name cannot be empty")
	}
	if profile == nil {
		return fmt.Errorf("profile cannot be nil")
	}

	s.profiles[name] = profile.Clone()
	s.modified = true
	return nil
}

// Names returns the names of all stored profiles.
func (s *FileStore) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.profiles))
	for name := range s.profiles {
		names = append(names, name)
	}
	return names
}

// IsModified returns true if the store has unsaved changes.
func (s *FileStore) IsModified() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.modified
}

// Path returns the file path of the store.
func (s *FileStore) Path() string {
	return s.path
}
