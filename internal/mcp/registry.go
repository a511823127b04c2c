package mcp

import (
	"fmt"
	"os"
	"strconv"
)

// Descriptor describes one MCP known to the fabric: how the launcher starts
// it and where its HTTP endpoint listens. Descriptors are the single source
// of truth for what MCPs exist.
type Descriptor struct {
	// Key is the short identifier used in ACTIVE_MCPS lists and allow-lists.
	Key string `yaml:"key"`

	// DisplayName is the human-readable name used in logs and diagnostics.
	DisplayName string `yaml:"display_name"`

	// Command is the argv used by the launcher to spawn the MCP process.
	// Empty for MCPs that are managed externally and only discovered.
	Command []string `yaml:"command"`

	// PortEnv names the environment variable that overrides DefaultPort.
	PortEnv string `yaml:"port_env"`

	// DefaultPort is used when PortEnv is unset or unparseable.
	DefaultPort int `yaml:"default_port"`

	// Description summarizes the MCP's capabilities for the launcher UI/log.
	Description string `yaml:"description"`
}

// Port resolves the listen port: the PortEnv environment variable when it
// holds a positive integer, otherwise DefaultPort.
func (d Descriptor) Port() int {
	if d.PortEnv != "" {
		if v, err := strconv.Atoi(os.Getenv(d.PortEnv)); err == nil && v > 0 {
			return v
		}
	}
	return d.DefaultPort
}

// BaseURL returns the MCP's HTTP base URL. All fabric services bind to
// loopback; the fabric is a local-machine construct.
func (d Descriptor) BaseURL() string {
	return fmt.Sprintf("http://127.0.0.1:%d", d.Port())
}

// Registry holds the known MCP descriptors in registration order.
type Registry struct {
	order []string
	byKey map[string]Descriptor
}

// DefaultRegistry returns the registry of MCPs shipped with this repository.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(Descriptor{
		Key:         "files",
		DisplayName: "File Sandbox",
		Command:     []string{"./mcp-files"},
		PortEnv:     "MCP_FILES_PORT",
		DefaultPort: 8001,
		Description: "Sandboxed file listing, reading, writing and deletion.",
	})
	r.Register(Descriptor{
		Key:         "rpg",
		DisplayName: "RPG World",
		Command:     []string{"./mcp-rpg"},
		PortEnv:     "MCP_RPG_PORT",
		DefaultPort: 8008,
		Description: "Live RPG world access: player status, movement, quests, dice.",
	})
	return r
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byKey: make(map[string]Descriptor)}
}

// Register adds or replaces a descriptor. Replacing keeps the original
// position so config overrides do not reorder startup.
func (r *Registry) Register(d Descriptor) {
	if _, exists := r.byKey[d.Key]; !exists {
		r.order = append(r.order, d.Key)
	}
	r.byKey[d.Key] = d
}

// Get returns the descriptor for key.
func (r *Registry) Get(key string) (Descriptor, bool) {
	d, ok := r.byKey[key]
	return d, ok
}

// Keys returns all registered keys in registration order.
func (r *Registry) Keys() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Select returns the descriptors for the given keys, in the given order.
// Unknown keys produce an error naming every missing one.
func (r *Registry) Select(keys []string) ([]Descriptor, error) {
	var missing []string
	out := make([]Descriptor, 0, len(keys))
	for _, k := range keys {
		d, ok := r.byKey[k]
		if !ok {
			missing = append(missing, k)
			continue
		}
		out = append(out, d)
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("mcp: unknown MCP keys %v (registered: %v)", missing, r.order)
	}
	return out, nil
}
