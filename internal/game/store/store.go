// Package store persists characters and worlds as JSON files under the
// saves directory. Characters live in saves/characters/{save_id}.json;
// worlds keep a pristine template in saves/worlds/{name}.world and the
// mutable runtime state in saves/worlds/{name}.state.json.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Beykus-Y/mcp-agent/internal/game/character"
	"github.com/Beykus-Y/mcp-agent/internal/game/world"
	"github.com/Beykus-Y/mcp-agent/internal/game/worldgen"
)

// ErrNotFound is returned when a save does not exist.
var ErrNotFound = errors.New("store: save not found")

// CharacterStore reads and writes character saves.
type CharacterStore struct {
	dir string
}

// NewCharacterStore roots the store at {savesDir}/characters.
func NewCharacterStore(savesDir string) *CharacterStore {
	return &CharacterStore{dir: filepath.Join(savesDir, "characters")}
}

// Load reads the character with the given save id. A missing file is
// [ErrNotFound].
func (s *CharacterStore) Load(saveID string) (*character.Character, error) {
	path, err := s.path(saveID)
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("store: character %q: %w", saveID, ErrNotFound)
		}
		return nil, fmt.Errorf("store: read character %q: %w", saveID, err)
	}

	var c character.Character
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("store: decode character %q: %w", saveID, err)
	}
	return &c, nil
}

// Save writes the character under the given save id, creating the directory
// as needed.
func (s *CharacterStore) Save(c *character.Character, saveID string) error {
	path, err := s.path(saveID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("store: create characters dir: %w", err)
	}
	raw, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("store: encode character %q: %w", saveID, err)
	}
	if err := writeAtomic(path, raw); err != nil {
		return fmt.Errorf("store: write character %q: %w", saveID, err)
	}
	return nil
}

// List returns the save ids present on disk.
func (s *CharacterStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("store: list characters: %w", err)
	}
	var ids []string
	for _, e := range entries {
		if name, ok := strings.CutSuffix(e.Name(), ".json"); ok && !e.IsDir() {
			ids = append(ids, name)
		}
	}
	return ids, nil
}

func (s *CharacterStore) path(saveID string) (string, error) {
	if saveID == "" || saveID != filepath.Base(saveID) || strings.ContainsAny(saveID, `/\`) {
		return "", fmt.Errorf("store: invalid save id %q", saveID)
	}
	return filepath.Join(s.dir, saveID+".json"), nil
}

// WorldStore reads and writes world templates and runtime state.
type WorldStore struct {
	dir string
}

// NewWorldStore roots the store at {savesDir}/worlds.
func NewWorldStore(savesDir string) *WorldStore {
	return &WorldStore{dir: filepath.Join(savesDir, "worlds")}
}

// LoadOrGenerate resolves a playable world for the given name:
// runtime state if present, else the pristine template, else a freshly
// generated world whose template is saved for next time.
func (s *WorldStore) LoadOrGenerate(name string, genCfg worldgen.Config) (*world.State, error) {
	if st, err := s.loadFile(s.statePath(name)); err == nil {
		return st, nil
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	if st, err := s.loadFile(s.templatePath(name)); err == nil {
		return st, nil
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	genCfg.Name = name
	st := worldgen.Generate(genCfg)
	if err := s.writeFile(s.templatePath(name), st); err != nil {
		return nil, err
	}
	return st, nil
}

// SaveState writes the mutable world state. The template is never touched
// after generation.
func (s *WorldStore) SaveState(st *world.State) error {
	return s.writeFile(s.statePath(st.WorldName), st)
}

func (s *WorldStore) loadFile(path string) (*world.State, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("store: world file %q: %w", path, ErrNotFound)
		}
		return nil, fmt.Errorf("store: read world file %q: %w", path, err)
	}
	var st world.State
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("store: decode world file %q: %w", path, err)
	}
	return &st, nil
}

func (s *WorldStore) writeFile(path string, st *world.State) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("store: create worlds dir: %w", err)
	}
	raw, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("store: encode world %q: %w", st.WorldName, err)
	}
	if err := writeAtomic(path, raw); err != nil {
		return fmt.Errorf("store: write world file %q: %w", path, err)
	}
	return nil
}

// writeAtomic writes data through a temp file and rename so a crash mid-write
// never leaves a truncated save on disk.
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".save-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

func (s *WorldStore) templatePath(name string) string {
	return filepath.Join(s.dir, sanitizeName(name)+".world")
}

func (s *WorldStore) statePath(name string) string {
	return filepath.Join(s.dir, sanitizeName(name)+".state.json")
}

func sanitizeName(name string) string {
	return strings.ReplaceAll(name, " ", "_")
}
