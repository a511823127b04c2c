// Package chat persists conversation sessions as one JSON file per chat in a
// directory. File names are the chat id: the unix-millisecond creation time,
// which makes lexical directory order roughly chronological.
package chat

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Beykus-Y/mcp-agent/pkg/types"
)

// ErrNotFound is returned when the requested chat does not exist.
var ErrNotFound = errors.New("chat: not found")

// defaultTitle is used for chats without a user message yet.
const defaultTitle = "New chat"

// titleRunes caps a derived title's length.
const titleRunes = 50

// Chat is one stored conversation.
type Chat struct {
	ID       string          `json:"id"`
	Title    string          `json:"title"`
	Messages []types.Message `json:"messages"`
}

// Summary is the listing row for one chat.
type Summary struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Store is a mutex-guarded directory of chat files.
type Store struct {
	mu  sync.Mutex
	dir string
}

// NewStore opens (creating if needed) a chat store rooted at dir.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		return nil, errors.New("chat: store directory must not be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("chat: create store dir %q: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

// Create starts a new empty chat and returns it.
func (s *Store) Create() (*Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := strconv.FormatInt(time.Now().UnixMilli(), 10)
	if _, err := os.Stat(s.path(id)); err == nil {
		// Two creations in the same millisecond.
		id = id + "-" + uuid.NewString()[:8]
	}

	c := &Chat{ID: id, Title: defaultTitle, Messages: []types.Message{}}
	if err := s.writeLocked(c); err != nil {
		return nil, err
	}
	return c, nil
}

// Get loads one chat by id.
func (s *Store) Get(id string) (*Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readLocked(id)
}

// Append adds messages to a chat. The title is derived from the first user
// message the chat ever receives.
func (s *Store) Append(id string, msgs ...types.Message) (*Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.readLocked(id)
	if err != nil {
		return nil, err
	}
	c.Messages = append(c.Messages, msgs...)

	if c.Title == defaultTitle {
		for _, m := range c.Messages {
			if m.Role == "user" && strings.TrimSpace(m.Content) != "" {
				c.Title = truncate(strings.TrimSpace(m.Content), titleRunes)
				break
			}
		}
	}

	if err := s.writeLocked(c); err != nil {
		return nil, err
	}
	return c, nil
}

// List returns all chats, newest first.
func (s *Store) List() ([]Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("chat: list store dir: %w", err)
	}

	var out []Summary
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		id := strings.TrimSuffix(e.Name(), ".json")
		c, err := s.readLocked(id)
		if err != nil {
			continue // skip corrupt files rather than failing the listing
		}
		out = append(out, Summary{ID: c.ID, Title: c.Title})
	}

	// IDs are unix-ms stamps, so a descending string-numeric sort is
	// newest-first.
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

// Delete removes a chat.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path, err := s.safePath(id)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("chat: delete %s: %w", id, ErrNotFound)
		}
		return fmt.Errorf("chat: delete %s: %w", id, err)
	}
	return nil
}

func (s *Store) readLocked(id string) (*Chat, error) {
	path, err := s.safePath(id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("chat: %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("chat: read %s: %w", id, err)
	}

	var c Chat
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("chat: decode %s: %w", id, err)
	}
	if c.Messages == nil {
		c.Messages = []types.Message{}
	}
	return &c, nil
}

func (s *Store) writeLocked(c *Chat) error {
	path, err := s.safePath(c.ID)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("chat: encode %s: %w", c.ID, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("chat: write %s: %w", c.ID, err)
	}
	return nil
}

func (s *Store) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

// safePath rejects ids that would resolve outside the store directory.
func (s *Store) safePath(id string) (string, error) {
	if id == "" || id != filepath.Base(id) || strings.ContainsAny(id, `/\`) {
		return "", fmt.Errorf("chat: invalid chat id %q", id)
	}
	return s.path(id), nil
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
