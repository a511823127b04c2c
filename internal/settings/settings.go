// Package settings persists the orchestrator's runtime-tunable state in a
// small JSON file. Unlike the static YAML config, these values change while
// the system runs (from the web UI) and must survive restarts.
package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Settings is the runtime-tunable state.
type Settings struct {
	// SelectedModel is the model id the orchestrator uses for new requests.
	SelectedModel string `json:"selected_model"`

	// ActiveMCPs is the comma-separated MCP key list to launch.
	ActiveMCPs string `json:"active_mcps"`
}

// File is a mutex-guarded settings file.
type File struct {
	mu      sync.Mutex
	path    string
	current Settings
}

// Open loads the settings file at path, creating it with defaults when it
// does not exist yet.
func Open(path string, defaults Settings) (*File, error) {
	if path == "" {
		return nil, errors.New("settings: path must not be empty")
	}

	f := &File{path: path, current: defaults}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if err := f.persistLocked(); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, fmt.Errorf("settings: read %q: %w", path, err)
	default:
		if err := json.Unmarshal(data, &f.current); err != nil {
			return nil, fmt.Errorf("settings: decode %q: %w", path, err)
		}
	}
	return f, nil
}

// Get returns a copy of the current settings.
func (f *File) Get() Settings {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

// Put replaces the settings and persists them.
func (f *File) Put(s Settings) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = s
	return f.persistLocked()
}

// persistLocked writes through a temp file and rename so a crash mid-write
// never leaves a truncated settings file.
func (f *File) persistLocked() error {
	data, err := json.MarshalIndent(f.current, "", "  ")
	if err != nil {
		return fmt.Errorf("settings: encode: %w", err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("settings: create dir %q: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".settings-*.tmp")
	if err != nil {
		return fmt.Errorf("settings: temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("settings: write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("settings: close temp: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("settings: rename into place: %w", err)
	}
	return nil
}
