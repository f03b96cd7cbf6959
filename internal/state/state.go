// Package state implements the recipe state sidecar: the durable record
// of whether a package is installed, as opposed to ctx which records how
// to reproduce the install. Persisted as a single mutex-guarded JSON
// file keyed by recipe path, written via atomic write-then-rename,
// rather than a database — the sidecar here is small enough that a
// sqlite store would be unjustified ceremony.
package state

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/levitate-os/recipe/internal/rerr"
)

// Entry is one recipe's sidecar record.
type Entry struct {
	Installed        bool     `json:"installed"`
	InstalledVersion string   `json:"installed_version,omitempty"`
	InstalledAt      int64    `json:"installed_at,omitempty"`
	InstalledFiles   []string `json:"installed_files,omitempty"`
}

type fileFormat struct {
	Recipes map[string]Entry `json:"recipes"`
}

// Store is the sidecar's JSON-file-backed storage, one file per engine
// home directory, covering every recipe path seen by this engine
// instance.
type Store struct {
	path string
	mu   sync.Mutex
}

// NewStore returns a Store persisting to <homeDir>/state.json.
func NewStore(homeDir string) *Store {
	return &Store{path: filepath.Join(homeDir, "state.json")}
}

func (s *Store) load() (fileFormat, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return fileFormat{Recipes: map[string]Entry{}}, nil
	}
	if err != nil {
		return fileFormat{}, rerr.Wrap(rerr.IoError, "reading state sidecar", err)
	}

	var ff fileFormat
	if err := json.Unmarshal(data, &ff); err != nil {
		return fileFormat{}, rerr.Wrap(rerr.IoError, "parsing state sidecar", err)
	}
	if ff.Recipes == nil {
		ff.Recipes = map[string]Entry{}
	}
	return ff, nil
}

func (s *Store) save(ff fileFormat) error {
	data, err := json.MarshalIndent(ff, "", "  ")
	if err != nil {
		return rerr.Wrap(rerr.IoError, "marshaling state sidecar", err)
	}

	tmp := s.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return rerr.Wrap(rerr.IoError, "creating state sidecar directory", err)
	}
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return rerr.Wrap(rerr.IoError, "writing state sidecar temp file", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return rerr.Wrap(rerr.IoError, "renaming state sidecar temp file", err)
	}
	return nil
}

// Get returns the entry for recipePath, or the zero Entry if none exists.
func (s *Store) Get(recipePath string) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ff, err := s.load()
	if err != nil {
		return Entry{}, err
	}
	return ff.Recipes[recipePath], nil
}

// RecordInstalled sets installed=true and the install metadata after a
// successful execute.
func (s *Store) RecordInstalled(recipePath, version string, installedFiles []string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ff, err := s.load()
	if err != nil {
		return err
	}
	ff.Recipes[recipePath] = Entry{
		Installed:        true,
		InstalledVersion: version,
		InstalledAt:      now.Unix(),
		InstalledFiles:   installedFiles,
	}
	return s.save(ff)
}

// RecordRemoved sets installed=false and clears the other fields after a
// successful remove.
func (s *Store) RecordRemoved(recipePath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ff, err := s.load()
	if err != nil {
		return err
	}
	ff.Recipes[recipePath] = Entry{Installed: false}
	return s.save(ff)
}
