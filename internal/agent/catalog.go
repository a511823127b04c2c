package agent

import (
	"log/slog"

	"github.com/Beykus-Y/mcp-agent/pkg/types"
)

// remoteBinding maps one discovered function to the handle that serves it.
type remoteBinding struct {
	caller RemoteCaller
	def    types.ToolDefinition
}

// Catalog is the shared registry of remote MCP functions. It is populated
// once at startup from discovery results and is read-only afterwards, so it
// is safe for concurrent use by any number of agents.
//
// Function names collide first-wins: the MCP registered earlier keeps the
// name and the duplicate is logged and ignored.
type Catalog struct {
	log      *slog.Logger
	order    []string
	bindings map[string]remoteBinding
}

// NewCatalog creates an empty catalog. A nil logger means slog.Default().
func NewCatalog(log *slog.Logger) *Catalog {
	if log == nil {
		log = slog.Default()
	}
	return &Catalog{
		log:      log,
		bindings: make(map[string]remoteBinding),
	}
}

// AddMCP registers every function an MCP advertised. Names already taken by
// an earlier MCP are skipped with a warning.
func (c *Catalog) AddMCP(caller RemoteCaller, fns []types.ToolDefinition) {
	for _, def := range fns {
		if existing, taken := c.bindings[def.Name]; taken {
			c.log.Warn("duplicate function name in catalog, keeping first",
				"function", def.Name,
				"kept_mcp", existing.caller.Name(),
				"ignored_mcp", caller.Name())
			continue
		}
		c.bindings[def.Name] = remoteBinding{caller: caller, def: def}
		c.order = append(c.order, def.Name)
	}
	c.log.Info("mcp functions registered", "mcp", caller.Name(), "count", len(fns))
}

// Definitions returns the schemas visible through the allow-list, in
// registration order. A nil allow-list means every MCP is visible.
func (c *Catalog) Definitions(allow []string) []types.ToolDefinition {
	var out []types.ToolDefinition
	for _, name := range c.order {
		b := c.bindings[name]
		if mcpAllowed(allow, b.caller.Name()) {
			out = append(out, b.def)
		}
	}
	return out
}

// Resolve looks up a function by name within the allow-list. The second
// return is false both for unknown names and for functions whose MCP the
// allow-list hides; callers cannot distinguish the two, matching what the
// LLM was shown.
func (c *Catalog) Resolve(name string, allow []string) (RemoteCaller, bool) {
	b, ok := c.bindings[name]
	if !ok || !mcpAllowed(allow, b.caller.Name()) {
		return nil, false
	}
	return b.caller, true
}

// Size returns the number of registered functions.
func (c *Catalog) Size() int { return len(c.order) }

// mcpAllowed reports whether an MCP key passes the allow-list; nil allows all.
func mcpAllowed(allow []string, key string) bool {
	if allow == nil {
		return true
	}
	for _, k := range allow {
		if k == key {
			return true
		}
	}
	return false
}
